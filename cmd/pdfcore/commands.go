package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/midbel/hexdump"

	"github.com/wudi/pdfcore/contentstream"
	"github.com/wudi/pdfcore/coords"
	"github.com/wudi/pdfcore/device"
	"github.com/wudi/pdfcore/ir/raw"
	"github.com/wudi/pdfcore/names"
	"github.com/wudi/pdfcore/pdf"
	"github.com/wudi/pdfcore/security"
	"github.com/wudi/pdfcore/stext"
	"github.com/wudi/pdfcore/writer"
)

func parseRanges(spec string, n int) ([]int, error) {
	if spec == "" {
		out := make([]int, n)
		for i := range out {
			out[i] = i
		}
		return out, nil
	}
	var out []int
	for _, part := range strings.Split(spec, ",") {
		lo, hi, isRange := strings.Cut(strings.TrimSpace(part), "-")
		a, err := strconv.Atoi(lo)
		if err != nil {
			return nil, fmt.Errorf("page range %q: %w", part, err)
		}
		b := a
		if isRange {
			if hi == "" {
				b = n
			} else if b, err = strconv.Atoi(hi); err != nil {
				return nil, fmt.Errorf("page range %q: %w", part, err)
			}
		}
		if a < 1 || b > n || a > b {
			return nil, fmt.Errorf("page range %q outside 1-%d", part, n)
		}
		for k := a; k <= b; k++ {
			out = append(out, k-1)
		}
	}
	return out, nil
}

// withDoc parses the flags, opens the single remaining argument and hands
// the document to fn.
func withDoc(ctx context.Context, fs *flag.FlagSet, args []string, o *openFlags, fn func(*pdf.Document) error) error {
	o.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errUsage
	}
	doc, err := o.open(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	defer doc.Drop()
	if err := fn(doc); err != nil {
		return err
	}
	for _, w := range doc.Warnings() {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}
	return nil
}

func runInfo(ctx context.Context, fs *flag.FlagSet, args []string) error {
	var o openFlags
	return withDoc(ctx, fs, args, &o, func(doc *pdf.Document) error {
		fmt.Printf("version:     %s\n", doc.Version())
		fmt.Printf("pages:       %d\n", doc.CountPages())
		fmt.Printf("objects:     %d\n", doc.CountObjects())
		fmt.Printf("linearized:  %t\n", doc.Linearized())
		fmt.Printf("repaired:    %t\n", doc.Repaired())
		fmt.Printf("encrypted:   %t\n", doc.Encrypted())
		if h := doc.SecurityHandler(); h != nil {
			fmt.Printf("permissions: %+v\n", doc.Permissions())
		}
		if info, ok := doc.Info(); ok {
			info.Each(func(key names.ID, v raw.Object) bool {
				if s, ok := raw.AsString(doc.Resolve(v)); ok {
					fmt.Printf("%-12s %s\n", names.Default().String(key)+":", raw.DecodeTextString(s))
				}
				return true
			})
		}
		return nil
	})
}

func runPages(ctx context.Context, fs *flag.FlagSet, args []string) error {
	var o openFlags
	return withDoc(ctx, fs, args, &o, func(doc *pdf.Document) error {
		pages, err := o.selected(doc)
		if err != nil {
			return err
		}
		for _, k := range pages {
			p, err := doc.LoadPage(k)
			if err != nil {
				return err
			}
			mb := p.MediaBox
			fmt.Printf("page %d: obj %d %d, mediabox [%g %g %g %g], rotate %d\n",
				k+1, p.Ref.Num, p.Ref.Gen, mb.X0, mb.Y0, mb.X1, mb.Y1, p.Rotate)
		}
		return nil
	})
}

func runShow(ctx context.Context, fs *flag.FlagSet, args []string) error {
	var o openFlags
	o.register(fs)
	hex := fs.Bool("hex", false, "Hex dump stream data")
	decode := fs.Bool("decode", false, "Print the decoded stream data")
	pretty := fs.Bool("pretty", true, "Indent dictionaries")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 2 || fs.NArg() > 3 {
		return errUsage
	}
	num, err := strconv.Atoi(fs.Arg(1))
	if err != nil {
		return fmt.Errorf("object number: %w", err)
	}
	gen := 0
	if fs.NArg() == 3 {
		if gen, err = strconv.Atoi(fs.Arg(2)); err != nil {
			return fmt.Errorf("generation: %w", err)
		}
	}
	doc, err := o.open(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	defer doc.Drop()

	var obj raw.Object
	if num == 0 {
		obj = doc.Trailer()
	} else {
		obj = doc.Object(num, gen)
	}
	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()
	fmt.Fprintf(out, "%d %d obj\n", num, gen)
	out.Write(raw.Append(nil, obj, raw.FormatOptions{Pretty: *pretty}))
	out.WriteString("\n")
	st, ok := raw.AsStream(obj)
	if !ok || !(*hex || *decode) {
		return nil
	}
	var data []byte
	if *decode {
		data, err = doc.DecodeStream(ctx, st)
	} else {
		data, err = doc.StreamBytes(st)
	}
	if err != nil {
		return err
	}
	out.WriteString("stream\n")
	if *hex {
		out.WriteString(hexdump.Dump(data))
	} else {
		out.Write(data)
	}
	out.WriteString("\nendstream\n")
	return nil
}

type textFlags struct {
	normalize, dehyphenate, skipInvisible bool
}

func (t *textFlags) register(fs *flag.FlagSet) {
	fs.BoolVar(&t.normalize, "normalize", false, "Apply NFKC to the output")
	fs.BoolVar(&t.dehyphenate, "dehyphenate", false, "Join hyphenated line ends")
	fs.BoolVar(&t.skipInvisible, "skip-invisible", false, "Drop text drawn in render mode 3")
}

func (t *textFlags) options() stext.Options {
	return stext.Options{Normalize: t.normalize, Dehyphenate: t.dehyphenate, SkipInvisible: t.skipInvisible}
}

func extract(ctx context.Context, doc *pdf.Document, o *openFlags, opt stext.Options) ([]*stext.Page, error) {
	sel, err := o.selected(doc)
	if err != nil {
		return nil, err
	}
	out := make([]*stext.Page, 0, len(sel))
	for _, k := range sel {
		p, err := doc.LoadPage(k)
		if err != nil {
			return nil, err
		}
		sp, err := stext.FromPage(ctx, p, opt, contentstream.Config{})
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", k+1, err)
		}
		out = append(out, sp)
	}
	return out, nil
}

func runText(ctx context.Context, fs *flag.FlagSet, args []string) error {
	var o openFlags
	var t textFlags
	t.register(fs)
	return withDoc(ctx, fs, args, &o, func(doc *pdf.Document) error {
		pages, err := extract(ctx, doc, &o, t.options())
		if err != nil {
			return err
		}
		out := bufio.NewWriter(os.Stdout)
		if err := stext.WriteText(out, t.options(), pages...); err != nil {
			return err
		}
		return out.Flush()
	})
}

func runHTML(ctx context.Context, fs *flag.FlagSet, args []string) error {
	var o openFlags
	var t textFlags
	t.register(fs)
	return withDoc(ctx, fs, args, &o, func(doc *pdf.Document) error {
		pages, err := extract(ctx, doc, &o, t.options())
		if err != nil {
			return err
		}
		out := bufio.NewWriter(os.Stdout)
		if err := stext.WriteHTML(out, t.options(), pages...); err != nil {
			return err
		}
		return out.Flush()
	})
}

func runClean(ctx context.Context, fs *flag.FlagSet, args []string) error {
	var o openFlags
	o.register(fs)
	var opt writer.Options
	fs.IntVar(&opt.Garbage, "g", 0, "Garbage collection level 0-3")
	fs.BoolVar(&opt.Compress, "z", false, "Compress unfiltered streams")
	fs.BoolVar(&opt.Linearize, "l", false, "Linearize")
	fs.BoolVar(&opt.ObjectStreams, "objstm", false, "Pack objects into object streams")
	fs.BoolVar(&opt.Incremental, "incremental", false, "Append changes to the original file")
	fs.BoolVar(&opt.Pretty, "pretty", false, "Indent dictionaries")
	fs.BoolVar(&opt.ASCII, "ascii", false, "Hex-encode binary data")
	fs.BoolVar(&opt.Deterministic, "deterministic", false, "Derive the file ID from the content")
	encrypt := fs.String("encrypt", "", "Encrypt with rc4-40, rc4-128, aes-128 or aes-256")
	fs.StringVar(&opt.UserPassword, "user", "", "User password for -encrypt")
	fs.StringVar(&opt.OwnerPassword, "owner", "", "Owner password for -encrypt")
	sanitize := fs.Bool("sanitize", false, "Rewrite page content streams from their parsed operators")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return errUsage
	}
	if *encrypt != "" {
		m, err := security.ParseMethod(*encrypt)
		if err != nil {
			return err
		}
		opt.Encrypt = m != security.MethodNone
		opt.EncryptMethod = m
	}
	doc, err := o.open(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	defer doc.Drop()
	if *sanitize {
		sel, err := o.selected(doc)
		if err != nil {
			return err
		}
		for _, k := range sel {
			if err := sanitizePage(ctx, doc, k); err != nil {
				return fmt.Errorf("page %d: %w", k+1, err)
			}
		}
	}
	return writer.WriteFile(ctx, doc, fs.Arg(1), opt)
}

// sanitizePage replaces the contents of page k with one stream written
// from the parsed operators, dropping whatever did not parse.
func sanitizePage(ctx context.Context, doc *pdf.Document, k int) error {
	p, err := doc.LoadPage(k)
	if err != nil {
		return err
	}
	data, err := p.Contents(ctx)
	if err != nil {
		return err
	}
	ops, err := contentstream.Parse(data)
	if err != nil {
		return err
	}
	ref, err := doc.NewStream(nil, contentstream.Append(nil, ops))
	if err != nil {
		return err
	}
	dict := raw.CopyDict(p.Dict)
	dict.Set(names.Contents, ref)
	return doc.Update(p.Ref.Num, dict)
}

func runBBox(ctx context.Context, fs *flag.FlagSet, args []string) error {
	var o openFlags
	return withDoc(ctx, fs, args, &o, func(doc *pdf.Document) error {
		sel, err := o.selected(doc)
		if err != nil {
			return err
		}
		for _, k := range sel {
			p, err := doc.LoadPage(k)
			if err != nil {
				return err
			}
			dev := device.NewBBoxDevice()
			if err := contentstream.RunPage(ctx, p, dev, coords.Identity(), contentstream.Config{}); err != nil {
				return fmt.Errorf("page %d: %w", k+1, err)
			}
			r := dev.Result
			if r.IsEmpty() {
				fmt.Printf("page %d: empty\n", k+1)
				continue
			}
			fmt.Printf("page %d: [%g %g %g %g] %d events\n", k+1, r.X0, r.Y0, r.X1, r.Y1, dev.Events)
		}
		return nil
	})
}

func runDraw(ctx context.Context, fs *flag.FlagSet, args []string) error {
	var o openFlags
	dpi := fs.Float64("dpi", 72, "Resolution")
	outPattern := fs.String("o", "page-%d.png", "Output file pattern, formatted with the page number")
	return withDoc(ctx, fs, args, &o, func(doc *pdf.Document) error {
		sel, err := o.selected(doc)
		if err != nil {
			return err
		}
		for _, k := range sel {
			p, err := doc.LoadPage(k)
			if err != nil {
				return err
			}
			if err := drawPage(ctx, p, *dpi/72, fmt.Sprintf(*outPattern, k+1)); err != nil {
				return fmt.Errorf("page %d: %w", k+1, err)
			}
		}
		return nil
	})
}

func drawPage(ctx context.Context, p *pdf.Page, scale float64, path string) error {
	ctm := p.Transform().Multiply(coords.Scale(scale, scale))
	b := p.Bound()
	w := int(math.Ceil(b.Width() * scale))
	h := int(math.Ceil(b.Height() * scale))
	dst := image.NewRGBA(image.Rect(0, 0, max(w, 1), max(h, 1)))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	dev := device.NewDrawDevice(dst)
	defer dev.Drop()
	if err := contentstream.RunPage(ctx, p, dev, ctm, contentstream.Config{}); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, dev.Image()); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func runTrace(ctx context.Context, fs *flag.FlagSet, args []string) error {
	var o openFlags
	return withDoc(ctx, fs, args, &o, func(doc *pdf.Document) error {
		sel, err := o.selected(doc)
		if err != nil {
			return err
		}
		o.verbose = true
		logger := o.logger()
		for _, k := range sel {
			p, err := doc.LoadPage(k)
			if err != nil {
				return err
			}
			dev := device.NewTraceDevice(logger, nil)
			if err := contentstream.RunPage(ctx, p, dev, coords.Identity(), contentstream.Config{}); err != nil {
				return fmt.Errorf("page %d: %w", k+1, err)
			}
		}
		return nil
	})
}
