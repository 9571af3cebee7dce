// Package cmm reads ICC profiles and converts device colors through the
// profile connection space to sRGB.
package cmm

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	headerSize = 128
	maxTags    = 256
)

var (
	ErrShortProfile = errors.New("cmm: profile truncated")
	ErrBadSignature = errors.New("cmm: missing acsp signature")
	ErrNoTransform  = errors.New("cmm: profile has no usable device to PCS transform")
)

// Profile is a parsed ICC profile. Tag data is kept as raw byte slices
// into the profile and decoded on demand.
type Profile struct {
	Version    uint32
	Class      string
	ColorSpace string
	PCS        string
	Intent     RenderingIntent

	data []byte
	tags map[string][]byte
}

// RenderingIntent is the header's default rendering intent.
type RenderingIntent int

const (
	IntentPerceptual RenderingIntent = iota
	IntentRelativeColorimetric
	IntentSaturation
	IntentAbsoluteColorimetric
)

// Parse reads the header and tag table of an ICC profile.
func Parse(data []byte) (*Profile, error) {
	if len(data) < headerSize+4 {
		return nil, ErrShortProfile
	}
	if string(data[36:40]) != "acsp" {
		return nil, ErrBadSignature
	}
	p := &Profile{
		Version:    binary.BigEndian.Uint32(data[8:12]),
		Class:      string(data[12:16]),
		ColorSpace: string(data[16:20]),
		PCS:        string(data[20:24]),
		Intent:     RenderingIntent(binary.BigEndian.Uint32(data[64:68]) & 3),
		data:       data,
		tags:       make(map[string][]byte),
	}
	count := int(binary.BigEndian.Uint32(data[headerSize:]))
	if count > maxTags || headerSize+4+count*12 > len(data) {
		return nil, fmt.Errorf("cmm: tag table of %d entries: %w", count, ErrShortProfile)
	}
	for i := 0; i < count; i++ {
		entry := data[headerSize+4+i*12:]
		sig := string(entry[0:4])
		off := int(binary.BigEndian.Uint32(entry[4:8]))
		size := int(binary.BigEndian.Uint32(entry[8:12]))
		if off < 0 || size < 0 || off > len(data) || size > len(data)-off {
			return nil, fmt.Errorf("cmm: tag %q out of bounds: %w", sig, ErrShortProfile)
		}
		p.tags[sig] = data[off : off+size]
	}
	return p, nil
}

// Components returns the channel count of the profile's color space, or
// 0 for spaces this package does not know.
func (p *Profile) Components() int {
	switch p.ColorSpace {
	case "GRAY":
		return 1
	case "RGB ", "Lab ", "XYZ ", "YCbr", "HSV ", "HLS ", "CMY ", "Luv ", "Yxy ":
		return 3
	case "CMYK":
		return 4
	}
	if len(p.ColorSpace) == 4 && p.ColorSpace[1:] == "CLR" {
		switch c := p.ColorSpace[0]; {
		case c >= '2' && c <= '9':
			return int(c - '0')
		case c >= 'A' && c <= 'F':
			return int(c-'A') + 10
		}
	}
	return 0
}

// Tag returns the raw data of a tag.
func (p *Profile) Tag(sig string) ([]byte, bool) {
	b, ok := p.tags[sig]
	return b, ok
}

// Data returns the profile bytes.
func (p *Profile) Data() []byte { return p.data }

// Description returns the ASCII part of the desc tag, if any.
func (p *Profile) Description() string {
	b, ok := p.tags["desc"]
	if !ok || len(b) < 12 {
		return ""
	}
	switch string(b[:4]) {
	case "desc":
		n := int(binary.BigEndian.Uint32(b[8:12]))
		if n > len(b)-12 {
			n = len(b) - 12
		}
		s := b[12 : 12+n]
		for len(s) > 0 && s[len(s)-1] == 0 {
			s = s[:len(s)-1]
		}
		return string(s)
	case "mluc":
		if len(b) < 28 {
			return ""
		}
		size := int(binary.BigEndian.Uint32(b[20:24]))
		off := int(binary.BigEndian.Uint32(b[24:28]))
		if off < 0 || size < 0 || off > len(b) || size > len(b)-off {
			return ""
		}
		u := b[off : off+size]
		out := make([]rune, 0, len(u)/2)
		for i := 0; i+1 < len(u); i += 2 {
			out = append(out, rune(binary.BigEndian.Uint16(u[i:])))
		}
		return string(out)
	}
	return ""
}

func s15Fixed16(v uint32) float64 {
	return float64(int32(v)) / 65536
}

func (p *Profile) xyz(sig string) ([3]float64, bool) {
	b, ok := p.tags[sig]
	if !ok || len(b) < 20 || string(b[:4]) != "XYZ " {
		return [3]float64{}, false
	}
	return [3]float64{
		s15Fixed16(binary.BigEndian.Uint32(b[8:])),
		s15Fixed16(binary.BigEndian.Uint32(b[12:])),
		s15Fixed16(binary.BigEndian.Uint32(b[16:])),
	}, true
}
