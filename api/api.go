// Package api is a flat, handle-based facade over the document, text and
// writer packages. Every call returns a Code or a sentinel value and keeps
// the failure on the Context, so it maps one to one onto a C ABI.
package api

import (
	"bytes"
	"context"
	"errors"
	"sync"

	"github.com/wudi/pdfcore/contentstream"
	"github.com/wudi/pdfcore/coords"
	"github.com/wudi/pdfcore/observability"
	"github.com/wudi/pdfcore/pdf"
	"github.com/wudi/pdfcore/recovery"
	"github.com/wudi/pdfcore/stext"
	"github.com/wudi/pdfcore/writer"
)

// Code is the result of an API call.
type Code int

const (
	OK               Code = 0
	NullParameter    Code = -1
	OutParameterNull Code = -2
	FileOpenFailed   Code = -3
	OutOfRange       Code = -4
	OperationFailed  Code = -5
)

func (c Code) String() string {
	switch c {
	case OK:
		return "ok"
	case NullParameter:
		return "null parameter"
	case OutParameterNull:
		return "out parameter is null"
	case FileOpenFailed:
		return "file open failed"
	case OutOfRange:
		return "out of range"
	case OperationFailed:
		return "operation failed"
	}
	return "unknown"
}

// Handle names a document or page owned by a Context. Zero is never a
// valid handle.
type Handle uint32

var (
	errNullHandle = errors.New("null handle")
	errBadHandle  = errors.New("unknown handle")
	errPassword   = errors.New("document requires a password")
)

// CodeOf classifies err.
func CodeOf(err error) Code {
	switch {
	case err == nil:
		return OK
	case errors.Is(err, errNullHandle), errors.Is(err, errBadHandle):
		return NullParameter
	case errors.Is(err, pdf.ErrOutOfRange):
		return OutOfRange
	}
	return OperationFailed
}

type page struct {
	doc  Handle
	page *pdf.Page
}

// Context owns handles and the error state of the calls made through it.
// A Context is meant for one goroutine; use CloneDocument to hand a
// document to another Context.
type Context struct {
	// Config is used for every document opened afterwards.
	Config pdf.Config
	// Text controls ExtractText.
	Text stext.Options

	mu    sync.Mutex
	state *recovery.State
	next  Handle
	docs  map[Handle]*pdf.Document
	pages map[Handle]page
}

// NewContext returns an empty Context.
func NewContext(cfg pdf.Config) *Context {
	return &Context{
		Config: cfg,
		state:  recovery.NewState(cfg.Strict),
		docs:   make(map[Handle]*pdf.Document),
		pages:  make(map[Handle]page),
	}
}

func (c *Context) logger() observability.Logger {
	if c.Config.Logger == nil {
		return observability.NopLogger{}
	}
	return c.Config.Logger
}

// fail records err and returns its code.
func (c *Context) fail(op string, err error) Code {
	var re *recovery.Error
	if !errors.As(err, &re) {
		err = recovery.New(recovery.KindSemantic, op, err)
	}
	c.state.Record(err)
	c.logger().Debug("api call failed", observability.String("op", op), observability.Any("error", err))
	return CodeOf(err)
}

func (c *Context) add(doc *pdf.Document) Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.next++
	c.docs[c.next] = doc
	return c.next
}

func (c *Context) doc(h Handle) (*pdf.Document, error) {
	if h == 0 {
		return nil, errNullHandle
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.docs[h]
	if !ok {
		return nil, errBadHandle
	}
	return d, nil
}

func (c *Context) page(h Handle) (page, error) {
	if h == 0 {
		return page{}, errNullHandle
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.pages[h]
	if !ok {
		return page{}, errBadHandle
	}
	return p, nil
}

// HasError reports whether a call failed since the last IgnoreError.
func (c *Context) HasError() bool { return c.state.HasError() }

// CaughtMessage returns the message of the pending error.
func (c *Context) CaughtMessage() string { return c.state.CaughtMessage() }

// IgnoreError clears the pending error.
func (c *Context) IgnoreError() { c.state.Ignore() }

// Rethrow returns the pending error once.
func (c *Context) Rethrow() error { return c.state.Rethrow() }

// OpenDocument opens the file at path.
func (c *Context) OpenDocument(ctx context.Context, path string, out *Handle) Code {
	switch {
	case path == "":
		return c.fail("open document", errNullHandle)
	case out == nil:
		return OutParameterNull
	}
	*out = 0
	doc, err := pdf.OpenFile(ctx, path, c.Config)
	if err != nil {
		c.fail("open document", err)
		return FileOpenFailed
	}
	*out = c.add(doc)
	c.logger().Debug("document opened", observability.String("path", path), observability.Int("handle", int(*out)))
	return OK
}

// OpenMemory opens an in-memory file. data must not change while the
// document is open.
func (c *Context) OpenMemory(ctx context.Context, data []byte, out *Handle) Code {
	switch {
	case data == nil:
		return c.fail("open memory", errNullHandle)
	case out == nil:
		return OutParameterNull
	}
	*out = 0
	doc, err := pdf.OpenBytes(ctx, data, c.Config)
	if err != nil {
		c.fail("open memory", err)
		return FileOpenFailed
	}
	*out = c.add(doc)
	return OK
}

// CloneDocument returns a second handle over the same file with its own
// caches and error state.
func (c *Context) CloneDocument(h Handle, out *Handle) Code {
	d, err := c.doc(h)
	if err != nil {
		return c.fail("clone document", err)
	}
	if out == nil {
		return OutParameterNull
	}
	*out = c.add(d.Clone())
	return OK
}

// DropDocument releases h and the pages loaded from it.
func (c *Context) DropDocument(h Handle) Code {
	d, err := c.doc(h)
	if err != nil {
		return c.fail("drop document", err)
	}
	c.mu.Lock()
	delete(c.docs, h)
	for ph, p := range c.pages {
		if p.doc == h {
			delete(c.pages, ph)
		}
	}
	c.mu.Unlock()
	if err := d.Drop(); err != nil {
		return c.fail("drop document", err)
	}
	return OK
}

// Document returns the document behind h for callers using the Go API.
func (c *Context) Document(h Handle) (*pdf.Document, Code) {
	d, err := c.doc(h)
	if err != nil {
		return nil, c.fail("document", err)
	}
	return d, OK
}

// Warnings returns the repair warnings of the document.
func (c *Context) Warnings(h Handle) []string {
	d, err := c.doc(h)
	if err != nil {
		c.fail("warnings", err)
		return nil
	}
	return d.Warnings()
}

// NeedsPassword returns 1 when the document needs a password, 0 when it
// does not and -1 on error.
func (c *Context) NeedsPassword(h Handle) int {
	d, err := c.doc(h)
	if err != nil {
		c.fail("needs password", err)
		return -1
	}
	if d.NeedsPassword() {
		return 1
	}
	return 0
}

// AuthenticatePassword tries password as user or owner password.
func (c *Context) AuthenticatePassword(h Handle, password string) Code {
	d, err := c.doc(h)
	if err != nil {
		return c.fail("authenticate", err)
	}
	if !d.Authenticate(password) {
		return c.fail("authenticate", errPassword)
	}
	return OK
}

// CountPages returns the page count, or -1 on error.
func (c *Context) CountPages(h Handle) int {
	d, err := c.doc(h)
	if err != nil {
		c.fail("count pages", err)
		return -1
	}
	n := d.CountPages()
	if n == 0 && d.HasError() {
		c.fail("count pages", d.Rethrow())
		return -1
	}
	return n
}

// LoadPage loads page k counting from zero.
func (c *Context) LoadPage(h Handle, k int, out *Handle) Code {
	d, err := c.doc(h)
	if err != nil {
		return c.fail("load page", err)
	}
	if out == nil {
		return OutParameterNull
	}
	*out = 0
	p, err := d.LoadPage(k)
	if err != nil {
		d.IgnoreError()
		return c.fail("load page", err)
	}
	c.mu.Lock()
	c.next++
	c.pages[c.next] = page{doc: h, page: p}
	*out = c.next
	c.mu.Unlock()
	return OK
}

// DropPage releases a page handle.
func (c *Context) DropPage(h Handle) Code {
	if _, err := c.page(h); err != nil {
		return c.fail("drop page", err)
	}
	c.mu.Lock()
	delete(c.pages, h)
	c.mu.Unlock()
	return OK
}

// PageMediaBox stores the media box of the page in default user space.
func (c *Context) PageMediaBox(h Handle, out *coords.Rect) Code {
	p, err := c.page(h)
	if err != nil {
		return c.fail("page mediabox", err)
	}
	if out == nil {
		return OutParameterNull
	}
	*out = p.page.MediaBox
	return OK
}

// PageBounds stores the page area after rotation.
func (c *Context) PageBounds(h Handle, out *coords.Rect) Code {
	p, err := c.page(h)
	if err != nil {
		return c.fail("page bounds", err)
	}
	if out == nil {
		return OutParameterNull
	}
	*out = p.page.Bound()
	return OK
}

// ExtractText stores the plain text of the page. out is set to "" when
// the call fails.
func (c *Context) ExtractText(ctx context.Context, h Handle, out *string) Code {
	p, err := c.page(h)
	if err != nil {
		return c.fail("extract text", err)
	}
	if out == nil {
		return OutParameterNull
	}
	*out = ""
	doc := p.page.Document()
	if doc.NeedsPassword() {
		return c.fail("extract text", errPassword)
	}
	st, err := stext.FromPage(ctx, p.page, c.Text, contentstream.Config{
		Logger: doc.Logger(),
		Tracer: doc.Tracer(),
	})
	if err != nil {
		return c.fail("extract text", err)
	}
	*out = st.Text(c.Text)
	return OK
}

// GarbageCollect removes unreachable objects. Level 2 and above also
// renumber densely; level 3 merges duplicates.
func (c *Context) GarbageCollect(h Handle, level int) Code {
	d, err := c.doc(h)
	if err != nil {
		return c.fail("garbage collect", err)
	}
	if level < 0 || level > 3 {
		return c.fail("garbage collect", pdf.ErrOutOfRange)
	}
	if _, err := d.GarbageCollect(level); err != nil {
		return c.fail("garbage collect", err)
	}
	return OK
}

// CountObjects returns the number of live objects, or -1 on error.
func (c *Context) CountObjects(h Handle) int {
	d, err := c.doc(h)
	if err != nil {
		c.fail("count objects", err)
		return -1
	}
	return d.CountObjects()
}

// Save writes the document to path.
func (c *Context) Save(ctx context.Context, h Handle, path string, opt writer.Options) Code {
	d, err := c.doc(h)
	if err != nil {
		return c.fail("save", err)
	}
	if path == "" {
		return c.fail("save", errNullHandle)
	}
	if err := writer.WriteFile(ctx, d, path, opt); err != nil {
		return c.fail("save", err)
	}
	return OK
}

// SaveMemory writes the document into *out.
func (c *Context) SaveMemory(ctx context.Context, h Handle, opt writer.Options, out *[]byte) Code {
	d, err := c.doc(h)
	if err != nil {
		return c.fail("save", err)
	}
	if out == nil {
		return OutParameterNull
	}
	var buf bytes.Buffer
	if err := writer.Write(ctx, d, &buf, opt); err != nil {
		*out = nil
		return c.fail("save", err)
	}
	*out = buf.Bytes()
	return OK
}
