// Package pdf is the document layer: it opens a byte source, reads or
// repairs the cross-reference table, resolves and caches objects, decrypts
// strings and streams, walks the page tree and applies mutations.
//
// A Document is a per-goroutine handle. Clone returns another handle over
// the same shared file data with its own caches, error state and parser
// position. Mutations through any handle bump a shared revision counter,
// and every handle flushes its caches when it observes a new revision.
package pdf

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/bits-and-blooms/bitset"

	"github.com/wudi/pdfcore/filters"
	"github.com/wudi/pdfcore/ir/raw"
	"github.com/wudi/pdfcore/names"
	"github.com/wudi/pdfcore/observability"
	"github.com/wudi/pdfcore/parser"
	"github.com/wudi/pdfcore/recovery"
	"github.com/wudi/pdfcore/security"
	"github.com/wudi/pdfcore/source"
	"github.com/wudi/pdfcore/store"
	"github.com/wudi/pdfcore/xref"
)

// ErrOutOfRange is wrapped by errors for page or object indexes outside
// the document.
var ErrOutOfRange = errors.New("out of range")

// shared is the document data every handle points at.
type shared struct {
	mu sync.RWMutex

	src          source.Source
	data         []byte
	table        *xref.Table
	version      string
	headerOffset int64
	linearized   bool

	crypt      *security.Handler
	encryptNum int

	revision atomic.Uint64
	refs     atomic.Int32
}

// Document is a handle on an open PDF.
type Document struct {
	sh  *shared
	cfg Config

	state    *recovery.State
	scope    *names.Scope
	cache    *store.Store
	pipeline *filters.Pipeline
	logger   observability.Logger
	tracer   observability.Tracer

	seen    uint64
	active  *bitset.BitSet
	holding bool
	refs    int32
}

// Open reads the header, cross-reference table and security handler of
// src. Damaged tables are rebuilt unless cfg.Strict is set. The document
// takes ownership of src.
func Open(ctx context.Context, src source.Source, cfg Config) (*Document, error) {
	cfg = cfg.withDefaults()
	ctx, span := cfg.Tracer.StartSpan(ctx, "pdf.Open")
	defer span.Finish()

	sh := &shared{src: src, data: src.Bytes()}
	sh.refs.Store(1)
	d := newHandle(sh, cfg)
	if err := d.load(ctx); err != nil {
		span.SetError(err)
		d.scope.ReleaseAll()
		return nil, err
	}
	span.SetTag("version", sh.version)
	span.SetTag("objects", sh.table.Size())
	return d, nil
}

// OpenBytes opens an in-memory file.
func OpenBytes(ctx context.Context, data []byte, cfg Config) (*Document, error) {
	return Open(ctx, source.NewMemory(data), cfg)
}

// OpenFile maps path and opens it.
func OpenFile(ctx context.Context, path string, cfg Config) (*Document, error) {
	src, err := source.OpenFile(path)
	if err != nil {
		return nil, recovery.New(recovery.KindResource, "open", err)
	}
	doc, err := Open(ctx, src, cfg)
	if err != nil {
		src.Close()
		return nil, err
	}
	return doc, nil
}

func newHandle(sh *shared, cfg Config) *Document {
	state := recovery.NewState(cfg.Strict)
	d := &Document{
		sh:     sh,
		cfg:    cfg,
		state:  state,
		scope:  names.NewScope(names.Default()),
		logger: cfg.Logger,
		tracer: cfg.Tracer,
		active: bitset.New(64),
		refs:   1,
	}
	d.cache = store.New(cfg.storeConfig(d.logger))
	d.pipeline = filters.NewPipeline(cfg.registry(), filters.Limits{
		MaxDecompressedSize: cfg.Limits.MaxDecompressedSize,
		MaxDecodeTime:       cfg.Limits.MaxDecodeTime,
	})
	d.seen = sh.revision.Load()
	return d
}

func (d *Document) load(ctx context.Context) error {
	data := d.sh.data
	version, hoff, err := parser.Header(data)
	if err != nil {
		if d.cfg.Strict {
			return err
		}
		d.warnf("header", "%v", err)
		version = "1.7"
	}
	if hoff < 0 {
		hoff = 0
	}
	d.sh.version = version
	d.sh.headerOffset = hoff

	table, err := d.readXRef(ctx)
	if err != nil {
		return err
	}
	d.sh.table = table

	quiet := d.parserConfig()
	quiet.Recovery = &recovery.Lenient{}
	_, d.sh.linearized = parser.New(data, quiet).Linearization()

	if err := d.initSecurity(); err != nil {
		return err
	}
	if _, ok := d.Catalog(); !ok {
		if d.cfg.Strict || table.Repaired() {
			return recovery.Errorf(recovery.KindSyntax, "open", "document catalog is missing")
		}
		if err := d.repair(ctx); err != nil {
			return err
		}
		if _, ok := d.Catalog(); !ok {
			return recovery.Errorf(recovery.KindSyntax, "open", "document catalog is missing")
		}
	}
	return nil
}

func (d *Document) readXRef(ctx context.Context) (*xref.Table, error) {
	p := parser.New(d.sh.data, d.parserConfig())
	start, err := parser.FindStartXRef(d.sh.data)
	if err == nil {
		var t *xref.Table
		if t, err = p.ParseXRef(ctx, start, d.sh.headerOffset); err == nil {
			return t, nil
		}
	}
	switch {
	case errors.Is(err, recovery.ErrAborted), errors.Is(err, recovery.ErrLimit):
		return nil, err
	case d.cfg.Strict:
		return nil, fmt.Errorf("read xref: %w", err)
	}
	d.logger.Warn("cross-reference table unreadable", observability.Error("error", err))
	return p.Repair(ctx)
}

// repair replaces the table with one rebuilt by scanning the file. It
// runs at most once per document and never over local changes.
func (d *Document) repair(ctx context.Context) error {
	if d.holding {
		return errors.New("repair: table is locked")
	}
	d.sh.mu.Lock()
	defer d.sh.mu.Unlock()
	if d.sh.table.Repaired() || d.sh.table.HasLocal() || d.sh.table.Rewritten() {
		return errors.New("repair: table already repaired or modified")
	}
	t, err := parser.New(d.sh.data, d.parserConfig()).Repair(ctx)
	if err != nil {
		return err
	}
	d.sh.table = t
	d.sh.revision.Add(1)
	return nil
}

// ParserConfig returns the parser settings of this handle: its limits,
// name scope, filters and recovery state.
func (d *Document) ParserConfig() parser.Config { return d.parserConfig() }

func (d *Document) parserConfig() parser.Config {
	return parser.Config{
		Recovery: d.state,
		Limits:   d.cfg.Limits,
		Names:    d.scope,
		Pipeline: d.pipeline,
		Logger:   d.logger,
	}
}

// Clone returns a handle over the same document with independent caches,
// error state and parser position.
func (d *Document) Clone() *Document {
	d.sh.refs.Add(1)
	return newHandle(d.sh, d.cfg)
}

// Keep takes another reference on the handle.
func (d *Document) Keep() *Document {
	d.refs++
	return d
}

// Drop releases a reference. The last drop of the last handle closes the
// source.
func (d *Document) Drop() error {
	if d == nil || d.refs <= 0 {
		return nil
	}
	d.refs--
	if d.refs > 0 {
		return nil
	}
	d.cache.Flush()
	d.scope.ReleaseAll()
	if d.sh.refs.Add(-1) == 0 {
		return d.sh.src.Close()
	}
	return nil
}

// Version returns the header version, e.g. "1.7".
func (d *Document) Version() string { return d.sh.version }

// Data returns the bytes of the source.
func (d *Document) Data() []byte { return d.sh.data }

// Linearized reports whether the file starts with a linearization
// dictionary.
func (d *Document) Linearized() bool { return d.sh.linearized }

// Repaired reports whether the table was rebuilt by scanning the file.
func (d *Document) Repaired() bool {
	d.rlock()
	defer d.runlock()
	return d.sh.table.Repaired()
}

// Revision returns the shared mutation counter.
func (d *Document) Revision() uint64 { return d.sh.revision.Load() }

// Config returns the configuration the document was opened with.
func (d *Document) Config() Config { return d.cfg }

// Pipeline returns the filter pipeline of this handle.
func (d *Document) Pipeline() *filters.Pipeline { return d.pipeline }

// Logger returns the handle's logger.
func (d *Document) Logger() observability.Logger { return d.logger }

// Tracer returns the handle's tracer.
func (d *Document) Tracer() observability.Tracer { return d.tracer }

// Trailer returns a copy of the merged trailer dictionary.
func (d *Document) Trailer() *raw.DictObj {
	d.rlock()
	defer d.runlock()
	return raw.CopyDict(d.sh.table.Trailer())
}

// SetTrailerKey sets or, with a null value, removes a trailer entry.
func (d *Document) SetTrailerKey(key names.ID, value raw.Object) {
	d.mutate(func(t *xref.Table) error {
		tr := raw.CopyDict(t.Trailer())
		tr.Set(key, value)
		t.SetTrailer(tr)
		return nil
	})
}

// Catalog returns the resolved /Root dictionary.
func (d *Document) Catalog() (*raw.DictObj, bool) {
	tr := d.Trailer()
	root, _ := tr.Get(names.Root)
	return raw.AsDict(d.Resolve(root))
}

// Info returns the resolved /Info dictionary.
func (d *Document) Info() (*raw.DictObj, bool) {
	info, _ := d.Trailer().Get(names.Info)
	return raw.AsDict(d.Resolve(info))
}

// State exposes the handle's error state.
func (d *Document) State() *recovery.State { return d.state }

// HasError reports whether an error is pending on the handle.
func (d *Document) HasError() bool { return d.state.HasError() }

// CaughtMessage returns the pending error message.
func (d *Document) CaughtMessage() string { return d.state.CaughtMessage() }

// Warnings returns the buffered warnings.
func (d *Document) Warnings() []string { return d.state.Warnings() }

// IgnoreError clears the pending error.
func (d *Document) IgnoreError() { d.state.Ignore() }

// Rethrow returns the pending error once and clears it.
func (d *Document) Rethrow() error { return d.state.Rethrow() }

// Warnf records a warning for component on the handle's buffer.
func (d *Document) Warnf(component, format string, args ...any) { d.warnf(component, format, args...) }

// Fail records err as the handle's pending error and returns it.
func (d *Document) Fail(err error) error { return d.fail(err) }

func (d *Document) warnf(component, format string, args ...any) {
	msg := component + ": " + fmt.Sprintf(format, args...)
	d.state.Warn(msg)
	d.logger.Warn(msg)
}

// fail records err on the handle and returns it.
func (d *Document) fail(err error) error {
	return d.state.Record(err)
}

func (d *Document) rlock() {
	if !d.holding {
		d.sh.mu.RLock()
	}
}

func (d *Document) runlock() {
	if !d.holding {
		d.sh.mu.RUnlock()
	}
}

// mutate runs fn under the shared write lock and publishes a new revision.
func (d *Document) mutate(fn func(t *xref.Table) error) error {
	if !d.holding {
		d.sh.mu.Lock()
		defer d.sh.mu.Unlock()
	}
	if err := fn(d.sh.table); err != nil {
		return d.fail(err)
	}
	d.sh.revision.Add(1)
	return nil
}

// View runs fn with read access to the table. Objects may be resolved
// from fn.
func (d *Document) View(fn func(t *xref.Table) error) error {
	if d.holding {
		return fn(d.sh.table)
	}
	d.sh.mu.RLock()
	d.holding = true
	defer func() {
		d.holding = false
		d.sh.mu.RUnlock()
	}()
	return fn(d.sh.table)
}

// sync flushes the caches when another handle published a mutation.
func (d *Document) sync() {
	if rev := d.sh.revision.Load(); rev != d.seen {
		d.cache.Flush()
		d.seen = rev
	}
}
