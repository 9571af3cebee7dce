package filters

import (
	"bufio"
	"io"

	"github.com/wudi/pdfcore/ir/raw"
)

type runLengthFilter struct{}

func (runLengthFilter) Name() string { return "RunLengthDecode" }

func (runLengthFilter) NewReader(r io.Reader, _ *raw.DictObj) (io.Reader, error) {
	return &runLengthReader{r: bufio.NewReader(r)}, nil
}

func (runLengthFilter) NewWriter(w io.Writer, _ *raw.DictObj) (io.WriteCloser, error) {
	return &runLengthWriter{w: w}, nil
}

// runLengthReader expands length bytes 0-127 (copy length+1 literal bytes),
// 129-255 (repeat the next byte 257-length times) and stops at 128.
type runLengthReader struct {
	r      *bufio.Reader
	lit    int
	rep    int
	repVal byte
	done   bool
}

func (rl *runLengthReader) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		switch {
		case rl.lit > 0:
			c, err := rl.r.ReadByte()
			if err != nil {
				rl.done = true
				rl.lit = 0
				continue
			}
			p[n] = c
			n++
			rl.lit--
		case rl.rep > 0:
			p[n] = rl.repVal
			n++
			rl.rep--
		case rl.done:
			if n == 0 {
				return 0, io.EOF
			}
			return n, nil
		default:
			code, err := rl.r.ReadByte()
			if err != nil || code == 128 {
				rl.done = true
				continue
			}
			if code < 128 {
				rl.lit = int(code) + 1
				continue
			}
			v, err := rl.r.ReadByte()
			if err != nil {
				rl.done = true
				continue
			}
			rl.rep = 257 - int(code)
			rl.repVal = v
		}
	}
	return n, nil
}

type runLengthWriter struct {
	w   io.Writer
	buf []byte
}

func (rw *runLengthWriter) Write(p []byte) (int, error) {
	rw.buf = append(rw.buf, p...)
	return len(p), nil
}

func (rw *runLengthWriter) Close() error {
	var out []byte
	data := rw.buf
	for i := 0; i < len(data); {
		run := 1
		for i+run < len(data) && run < 128 && data[i+run] == data[i] {
			run++
		}
		if run > 1 {
			out = append(out, byte(257-run), data[i])
			i += run
			continue
		}
		start := i
		for i < len(data) && i-start < 128 {
			if i+1 < len(data) && data[i+1] == data[i] {
				break
			}
			i++
		}
		if i == start {
			i++
		}
		out = append(out, byte(i-start-1))
		out = append(out, data[start:i]...)
	}
	out = append(out, 128)
	_, err := rw.w.Write(out)
	return err
}
