// Package source provides the byte sources documents are parsed from:
// in-memory buffers and memory-mapped files.
package source

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// Advice is an access-pattern hint for mapped files.
type Advice int

const (
	AdviceNormal Advice = iota
	AdviceSequential
	AdviceRandom
	AdviceWillNeed
	AdviceDontNeed
)

// Source is a random-access, immutable byte source.
type Source interface {
	io.ReaderAt
	// Bytes returns the whole content. The slice must not be modified.
	Bytes() []byte
	Size() int64
	// Advise passes an access hint for [off, off+n). Sources that cannot
	// act on hints return nil.
	Advise(off, n int64, a Advice) error
	Close() error
}

// Memory wraps a byte slice.
type Memory struct {
	data []byte
}

// NewMemory returns a source over data. The slice is not copied.
func NewMemory(data []byte) *Memory { return &Memory{data: data} }

func (m *Memory) Bytes() []byte                     { return m.data }
func (m *Memory) Size() int64                       { return int64(len(m.data)) }
func (m *Memory) Advise(_, _ int64, _ Advice) error { return nil }
func (m *Memory) Close() error                      { return nil }

func (m *Memory) ReadAt(p []byte, off int64) (int, error) {
	return readAt(m.data, p, off)
}

func readAt(data, p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, errors.New("source: negative offset")
	}
	if off >= int64(len(data)) {
		return 0, io.EOF
	}
	n := copy(p, data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// OpenFile maps path into memory, falling back to reading it whole when
// mapping is unavailable.
func OpenFile(path string) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if st.Size() == 0 {
		return NewMemory(nil), nil
	}
	if m, err := mapFile(f, st.Size()); err == nil {
		return m, nil
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return NewMemory(data), nil
}
