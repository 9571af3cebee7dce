package parser

import (
	"context"
	"testing"

	"github.com/wudi/pdfcore/recovery"
)

func FuzzParseObject(f *testing.F) {
	f.Add([]byte("<</Type/Catalog/Pages 2 0 R>>"))
	f.Add([]byte("[1 2 0 R (a\\)b) <4142> /N#20x 3.5 true null]"))
	f.Add([]byte("<</Length 3>>stream\nabc\nendstream"))
	f.Add([]byte("[[[[<<"))

	f.Fuzz(func(t *testing.T, data []byte) {
		p := New(data, Config{Recovery: recovery.NewState(false)})
		for i := 0; i < 16; i++ {
			if _, err := p.ParseObject(); err != nil {
				return
			}
		}
	})
}

func FuzzOpenXRef(f *testing.F) {
	f.Add([]byte("%PDF-1.4\n1 0 obj\n<</Type/Catalog>>\nendobj\nxref\n0 2\n0000000000 65535 f \n0000000009 00000 n \ntrailer\n<</Size 2/Root 1 0 R>>\nstartxref\n44\n%%EOF\n"))

	f.Fuzz(func(t *testing.T, data []byte) {
		ctx := context.Background()
		p := New(data, Config{Recovery: recovery.NewState(false)})
		if off, err := FindStartXRef(data); err == nil {
			if _, err := p.ParseXRef(ctx, off, 0); err == nil {
				return
			}
		}
		_, _ = p.Repair(ctx)
	})
}
