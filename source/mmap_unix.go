//go:build unix

package source

import (
	"errors"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// Mapped is a read-only memory-mapped file.
type Mapped struct {
	mu   sync.Mutex
	data []byte
}

func mapFile(f *os.File, size int64) (*Mapped, error) {
	if int64(int(size)) != size {
		return nil, errors.New("source: file too large to map")
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, err
	}
	return &Mapped{data: data}, nil
}

func (m *Mapped) Bytes() []byte { return m.data }
func (m *Mapped) Size() int64   { return int64(len(m.data)) }

func (m *Mapped) ReadAt(p []byte, off int64) (int, error) {
	return readAt(m.data, p, off)
}

// Advise forwards the hint to madvise for the page-aligned range.
func (m *Mapped) Advise(off, n int64, a Advice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return errors.New("source: mapping closed")
	}
	if off < 0 || off >= int64(len(m.data)) {
		return errors.New("source: advise range out of bounds")
	}
	page := int64(os.Getpagesize())
	start := off - off%page
	end := off + n
	if n <= 0 || end > int64(len(m.data)) {
		end = int64(len(m.data))
	}
	adv := unix.MADV_NORMAL
	switch a {
	case AdviceSequential:
		adv = unix.MADV_SEQUENTIAL
	case AdviceRandom:
		adv = unix.MADV_RANDOM
	case AdviceWillNeed:
		adv = unix.MADV_WILLNEED
	case AdviceDontNeed:
		adv = unix.MADV_DONTNEED
	}
	return unix.Madvise(m.data[start:end], adv)
}

func (m *Mapped) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return nil
	}
	err := unix.Munmap(m.data)
	m.data = nil
	return err
}
