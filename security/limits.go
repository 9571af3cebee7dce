package security

import "time"

// Limits bounds the resources a single document may consume. Zero fields
// take the DefaultLimits value.
type Limits struct {
	MaxDecompressedSize int64 // decoded bytes per stream
	MaxIndirectDepth    int   // reference chains followed by Resolve
	MaxXRefDepth        int   // /Prev sections
	MaxXObjectDepth     int   // nested form XObjects
	MaxPageTreeDepth    int
	MaxArraySize        int
	MaxDictSize         int
	MaxTokenLength      int
	MaxStreamLength     int64 // raw /Length
	MaxObjStmObjects    int   // /N of one object stream
	MaxDecodeTime       time.Duration
}

func DefaultLimits() Limits {
	return Limits{
		MaxDecompressedSize: 100 << 20,
		MaxIndirectDepth:    100,
		MaxXRefDepth:        50,
		MaxXObjectDepth:     20,
		MaxPageTreeDepth:    64,
		MaxArraySize:        100000,
		MaxDictSize:         10000,
		MaxTokenLength:      10 << 20,
		MaxStreamLength:     50 << 20,
		MaxObjStmObjects:    100000,
		MaxDecodeTime:       30 * time.Second,
	}
}

func orDefault[T int | int64 | time.Duration](v, d T) T {
	if v <= 0 {
		return d
	}
	return v
}

// WithDefaults fills zero and negative fields from DefaultLimits.
func (l Limits) WithDefaults() Limits {
	d := DefaultLimits()
	return Limits{
		MaxDecompressedSize: orDefault(l.MaxDecompressedSize, d.MaxDecompressedSize),
		MaxIndirectDepth:    orDefault(l.MaxIndirectDepth, d.MaxIndirectDepth),
		MaxXRefDepth:        orDefault(l.MaxXRefDepth, d.MaxXRefDepth),
		MaxXObjectDepth:     orDefault(l.MaxXObjectDepth, d.MaxXObjectDepth),
		MaxPageTreeDepth:    orDefault(l.MaxPageTreeDepth, d.MaxPageTreeDepth),
		MaxArraySize:        orDefault(l.MaxArraySize, d.MaxArraySize),
		MaxDictSize:         orDefault(l.MaxDictSize, d.MaxDictSize),
		MaxTokenLength:      orDefault(l.MaxTokenLength, d.MaxTokenLength),
		MaxStreamLength:     orDefault(l.MaxStreamLength, d.MaxStreamLength),
		MaxObjStmObjects:    orDefault(l.MaxObjStmObjects, d.MaxObjStmObjects),
		MaxDecodeTime:       orDefault(l.MaxDecodeTime, d.MaxDecodeTime),
	}
}
