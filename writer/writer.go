// Package writer serializes a document's object graph back to PDF bytes:
// full rewrites, incremental updates, object streams and linearized files.
package writer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/wudi/pdfcore/cookie"
	"github.com/wudi/pdfcore/observability"
	"github.com/wudi/pdfcore/pdf"
	"github.com/wudi/pdfcore/recovery"
	"github.com/wudi/pdfcore/security"
)

// Options selects the output layout and encodings. The zero value writes
// a full file holding every live object as found.
type Options struct {
	// Incremental appends changed objects and a new xref section to the
	// original bytes.
	Incremental bool
	// Linearize emits the Fast Web View layout.
	Linearize bool
	// ObjectStreams packs non-stream objects into /ObjStm streams with a
	// cross-reference stream.
	ObjectStreams bool
	// Garbage runs garbage collection first: 0 none, 1 collect, 2 also
	// renumber, 3 also deduplicate.
	Garbage int
	// Compress flate-encodes streams that carry no filter.
	Compress bool
	// Pretty puts dictionary entries on their own lines.
	Pretty bool
	// ASCII hex-encodes binary strings and binary stream payloads.
	ASCII bool

	Encrypt       bool
	UserPassword  string
	OwnerPassword string
	// EncryptMethod defaults to AES-128 when Encrypt is set.
	EncryptMethod security.Method
	// Permissions defaults to everything.
	Permissions *security.Permissions

	// Deterministic derives a missing file identifier from the content
	// instead of a random source.
	Deterministic bool
	Cookie        *cookie.Cookie
}

var (
	ErrIncompatible = errors.New("incompatible write options")
	ErrRepaired     = errors.New("cannot append to a repaired file")
)

func (o Options) validate() error {
	if o.Garbage < 0 || o.Garbage > 3 {
		return fmt.Errorf("%w: garbage level %d", ErrIncompatible, o.Garbage)
	}
	if o.Incremental {
		switch {
		case o.Linearize:
			return fmt.Errorf("%w: incremental and linearize", ErrIncompatible)
		case o.Garbage > 0:
			return fmt.Errorf("%w: incremental and garbage collection", ErrIncompatible)
		case o.Encrypt:
			return fmt.Errorf("%w: incremental and encrypt", ErrIncompatible)
		}
	}
	return nil
}

// Write serializes doc to w.
func Write(ctx context.Context, doc *pdf.Document, w io.Writer, opt Options) (err error) {
	ctx, span := doc.Tracer().StartSpan(ctx, "writer.Write")
	defer func() {
		if err != nil {
			span.SetError(err)
		}
		span.Finish()
	}()
	if err := opt.validate(); err != nil {
		return recovery.New(recovery.KindSemantic, "write", err)
	}
	if doc.NeedsPassword() {
		return recovery.New(recovery.KindSemantic, "write", security.ErrNotAuthenticated)
	}
	if opt.Garbage > 0 {
		if _, err := doc.GarbageCollect(opt.Garbage); err != nil {
			return err
		}
	}

	var out []byte
	if opt.Incremental {
		out, err = writeIncremental(ctx, doc, opt)
	} else {
		out, err = writeFull(ctx, doc, opt)
	}
	if err != nil {
		return err
	}
	if _, err := w.Write(out); err != nil {
		return recovery.New(recovery.KindResource, "write", err)
	}
	doc.Logger().Debug("document written",
		observability.Int("bytes", len(out)),
		observability.Any("incremental", opt.Incremental),
		observability.Any("linearize", opt.Linearize),
		observability.Any("objstm", opt.ObjectStreams))
	return nil
}

// WriteFile writes doc to path, replacing any existing file once the
// output is complete.
func WriteFile(ctx context.Context, doc *pdf.Document, path string, opt Options) error {
	var buf bytes.Buffer
	if err := Write(ctx, doc, &buf, opt); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return recovery.New(recovery.KindResource, "write", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return recovery.New(recovery.KindResource, "write", err)
	}
	return nil
}

func writeFull(ctx context.Context, doc *pdf.Document, opt Options) ([]byte, error) {
	p, err := collect(ctx, doc, opt)
	if err != nil {
		return nil, err
	}
	if err := p.prepare(opt); err != nil {
		return nil, err
	}
	if opt.Linearize {
		return p.linearize(ctx, opt)
	}
	if opt.ObjectStreams {
		return p.emitPacked(ctx, opt)
	}
	return p.emitClassic(ctx, opt)
}

// checkpoint reports cancellation and cookie aborts between objects.
func checkpoint(ctx context.Context, c *cookie.Cookie) error {
	if err := ctx.Err(); err != nil {
		return recovery.New(recovery.KindAborted, "write", err)
	}
	return c.Err("write")
}
