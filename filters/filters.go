// Package filters decodes and encodes PDF stream filters.
//
// Every decoder is an io.Reader adapter over its input, so a chain such as
// [/ASCIIHexDecode /FlateDecode] reads as Flate(ASCIIHex(raw)) without
// materializing intermediate buffers.
package filters

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/wudi/pdfcore/ir/raw"
	"github.com/wudi/pdfcore/recovery"
)

// Decoder wraps an encoded reader with a decoding reader.
type Decoder interface {
	Name() string
	NewReader(r io.Reader, params *raw.DictObj) (io.Reader, error)
}

// Encoder wraps a writer with an encoding writer. Close flushes.
type Encoder interface {
	Name() string
	NewWriter(w io.Writer, params *raw.DictObj) (io.WriteCloser, error)
}

// Stage is one filter of a chain with its /DecodeParms.
type Stage struct {
	Name   string
	Params *raw.DictObj
}

type Limits struct {
	MaxDecompressedSize int64
	MaxDecodeTime       time.Duration
}

// ErrUnknownFilter is returned for filter names without a decoder.
var ErrUnknownFilter = errors.New("unknown filter")

// Registry maps filter names, including their inline-image abbreviations,
// to decoders and encoders.
type Registry struct {
	mu       sync.RWMutex
	decoders map[string]Decoder
	encoders map[string]Encoder
}

func (r *Registry) Register(d Decoder, aliases ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.decoders == nil {
		r.decoders = make(map[string]Decoder)
	}
	r.decoders[d.Name()] = d
	for _, a := range aliases {
		r.decoders[a] = d
	}
	if e, ok := d.(Encoder); ok {
		if r.encoders == nil {
			r.encoders = make(map[string]Encoder)
		}
		r.encoders[e.Name()] = e
	}
}

func (r *Registry) Get(name string) (Decoder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.decoders[name]
	return d, ok
}

func (r *Registry) Encoder(name string) (Encoder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.encoders[name]
	return e, ok
}

// RegisterCodec routes an image filter to an external codec.
func (r *Registry) RegisterCodec(name string, c ImageCodec) {
	r.Register(codecDecoder{name: name, codec: c})
}

// NewRegistry returns a registry holding every built-in filter.
func NewRegistry() *Registry {
	r := &Registry{}
	r.Register(flateFilter{}, "Fl")
	r.Register(lzwFilter{}, "LZW")
	r.Register(asciiHexFilter{}, "AHx")
	r.Register(ascii85Filter{}, "A85")
	r.Register(runLengthFilter{}, "RL")
	r.Register(ccittFilter{}, "CCF")
	r.Register(brotliFilter{})
	r.Register(codecDecoder{name: "DCTDecode", codec: JPEGCodec{}}, "DCT")
	return r
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// DefaultRegistry returns the shared built-in registry.
func DefaultRegistry() *Registry {
	defaultOnce.Do(func() { defaultRegistry = NewRegistry() })
	return defaultRegistry
}

// CryptFunc decrypts a stream for a /Crypt filter stage naming a crypt
// filter.
type CryptFunc func(name string, r io.Reader) (io.Reader, error)

type Pipeline struct {
	registry *Registry
	limits   Limits
	crypt    CryptFunc
}

// NewPipeline constructs a pipeline; a nil registry uses DefaultRegistry.
func NewPipeline(reg *Registry, limits Limits) *Pipeline {
	if reg == nil {
		reg = DefaultRegistry()
	}
	return &Pipeline{registry: reg, limits: limits}
}

// WithCrypt returns a copy of p that resolves /Crypt stages through fn.
func (p *Pipeline) WithCrypt(fn CryptFunc) *Pipeline {
	cp := *p
	cp.crypt = fn
	return &cp
}

func (p *Pipeline) Registry() *Registry { return p.registry }

// NewReader chains the decoders for stages over r.
func (p *Pipeline) NewReader(ctx context.Context, r io.Reader, stages []Stage) (io.Reader, error) {
	var deadline time.Time
	if p.limits.MaxDecodeTime > 0 {
		deadline = time.Now().Add(p.limits.MaxDecodeTime)
	}
	for _, st := range stages {
		if st.Name == "Crypt" {
			cr, err := p.cryptReader(r, st.Params)
			if err != nil {
				return nil, err
			}
			r = cr
			continue
		}
		dec, ok := p.registry.Get(st.Name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownFilter, st.Name)
		}
		next, err := dec.NewReader(r, st.Params)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", st.Name, err)
		}
		r = next
	}
	return &guardReader{r: r, ctx: ctx, deadline: deadline, max: p.limits.MaxDecompressedSize}, nil
}

func (p *Pipeline) cryptReader(r io.Reader, params *raw.DictObj) (io.Reader, error) {
	name := "Identity"
	if v, ok := params.GetKey("Name"); ok {
		if n, ok := v.(raw.NameObj); ok {
			name = n.Value()
		}
	}
	if name == "Identity" {
		return r, nil
	}
	if p.crypt == nil {
		return nil, fmt.Errorf("crypt filter %s: no security handler", name)
	}
	return p.crypt(name, r)
}

// Decode runs input through stages. Any error discards the partial output.
func (p *Pipeline) Decode(ctx context.Context, input []byte, stages []Stage) ([]byte, error) {
	if len(stages) == 0 {
		return input, nil
	}
	r, err := p.NewReader(ctx, bytes.NewReader(input), stages)
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if _, err := io.Copy(&out, r); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// Encode applies the encoders for stages so that Decode with the same
// stages returns input. stages are listed in decode order.
func (p *Pipeline) Encode(input []byte, stages []Stage) ([]byte, error) {
	data := input
	for i := len(stages) - 1; i >= 0; i-- {
		enc, ok := p.registry.Encoder(stages[i].Name)
		if !ok {
			return nil, fmt.Errorf("%w: no encoder for %s", ErrUnknownFilter, stages[i].Name)
		}
		var buf bytes.Buffer
		w, err := enc.NewWriter(&buf, stages[i].Params)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(data); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		data = buf.Bytes()
	}
	return data, nil
}

// guardReader enforces the size and time limits and honours cancellation.
type guardReader struct {
	r        io.Reader
	ctx      context.Context
	deadline time.Time
	max      int64
	n        int64
}

func (g *guardReader) Read(p []byte) (int, error) {
	if g.ctx != nil {
		if err := g.ctx.Err(); err != nil {
			return 0, recovery.New(recovery.KindAborted, "decode", err)
		}
	}
	if !g.deadline.IsZero() && time.Now().After(g.deadline) {
		return 0, recovery.Errorf(recovery.KindLimit, "decode", "decode time exceeds limit")
	}
	n, err := g.r.Read(p)
	g.n += int64(n)
	if g.max > 0 && g.n > g.max {
		return n, recovery.Errorf(recovery.KindLimit, "decode", "decompressed size exceeds limit of %d bytes", g.max)
	}
	return n, err
}
