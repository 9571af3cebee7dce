package pdf

import (
	"github.com/wudi/pdfcore/filters"
	"github.com/wudi/pdfcore/observability"
	"github.com/wudi/pdfcore/security"
	"github.com/wudi/pdfcore/store"
)

const (
	defaultObjectCacheBytes = 32 << 20
	defaultStreamCacheBytes = 64 << 20
	defaultPageCacheBytes   = 1 << 20
)

// Config controls how a document is opened and cached. The zero value is
// usable.
type Config struct {
	// Password is tried before the empty password on encrypted files.
	Password string
	// Strict fails on malformed input instead of repairing it.
	Strict bool
	Limits security.Limits

	ObjectCacheBytes int64
	StreamCacheBytes int64
	Eviction         store.Policy

	Logger observability.Logger
	Tracer observability.Tracer
	// Codecs supplies decoders for image filters, keyed by filter name
	// (DCTDecode, JPXDecode, JBIG2Decode).
	Codecs map[string]filters.ImageCodec
}

func (c Config) withDefaults() Config {
	c.Limits = c.Limits.WithDefaults()
	if c.ObjectCacheBytes <= 0 {
		c.ObjectCacheBytes = defaultObjectCacheBytes
	}
	if c.StreamCacheBytes <= 0 {
		c.StreamCacheBytes = defaultStreamCacheBytes
	}
	if c.Logger == nil {
		c.Logger = observability.NopLogger{}
	}
	if c.Tracer == nil {
		c.Tracer = observability.NopTracer()
	}
	return c
}

func (c Config) registry() *filters.Registry {
	if len(c.Codecs) == 0 {
		return filters.DefaultRegistry()
	}
	reg := filters.NewRegistry()
	for name, codec := range c.Codecs {
		reg.RegisterCodec(name, codec)
	}
	return reg
}

func (c Config) storeConfig(logger observability.Logger) store.Config {
	return store.Config{
		MaxBytes: c.ObjectCacheBytes + c.StreamCacheBytes + defaultPageCacheBytes,
		Policy:   c.Eviction,
		TypeCeilings: map[store.ItemType]int64{
			store.TypeObject: c.ObjectCacheBytes,
			store.TypeStream: c.StreamCacheBytes,
			store.TypePage:   defaultPageCacheBytes,
		},
		OnEvict: func(k store.Key, size int64) {
			logger.Debug("cache eviction",
				observability.String("type", k.Type.String()),
				observability.Object(k.Num, k.Gen),
				observability.Int64("bytes", size))
		},
	}
}
