package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/wudi/pdfcore/extractor"
	"github.com/wudi/pdfcore/pdf"
)

func withExtractor(ctx context.Context, fs *flag.FlagSet, args []string, fn func(*extractor.Extractor) error) error {
	var o openFlags
	return withDoc(ctx, fs, args, &o, func(doc *pdf.Document) error {
		e, err := extractor.New(doc)
		if err != nil {
			return err
		}
		return fn(e)
	})
}

func runOutline(ctx context.Context, fs *flag.FlagSet, args []string) error {
	return withExtractor(ctx, fs, args, func(e *extractor.Extractor) error {
		for _, item := range e.TableOfContents() {
			page := "-"
			if item.Page >= 0 {
				page = item.Label
			}
			fmt.Printf("%s%s\t%s\n", strings.Repeat("  ", item.Depth), item.Title, page)
		}
		return nil
	})
}

func runFonts(ctx context.Context, fs *flag.FlagSet, args []string) error {
	return withExtractor(ctx, fs, args, func(e *extractor.Extractor) error {
		for _, f := range e.Fonts() {
			pages := make([]string, len(f.Pages))
			for i, k := range f.Pages {
				pages[i] = fmt.Sprint(k + 1)
			}
			fmt.Printf("%-6s %-32s %-10s %-18s embedded=%t tounicode=%t pages=%s\n",
				f.ResourceName, f.BaseFont, f.Subtype, f.Encoding, f.Embedded, f.HasToUnicode, strings.Join(pages, ","))
		}
		return nil
	})
}

func runAnnots(ctx context.Context, fs *flag.FlagSet, args []string) error {
	return withExtractor(ctx, fs, args, func(e *extractor.Extractor) error {
		for _, a := range e.Annotations() {
			r := a.Rect
			fmt.Printf("page %d: %s [%g %g %g %g]", a.Page+1, a.Subtype, r.X0, r.Y0, r.X1, r.Y1)
			if a.URI != "" {
				fmt.Printf(" uri=%s", a.URI)
			}
			if a.Contents != "" {
				fmt.Printf(" %q", a.Contents)
			}
			fmt.Println()
		}
		return nil
	})
}

func runImages(ctx context.Context, fs *flag.FlagSet, args []string) error {
	return withExtractor(ctx, fs, args, func(e *extractor.Extractor) error {
		for _, img := range e.Images() {
			fmt.Printf("page %d: %s obj %d %dx%d bpc=%d cs=%s filters=%s\n", img.Page+1, img.ResourceName,
				img.Ref.Num, img.Width, img.Height, img.BitsPerComponent, img.ColorSpace, strings.Join(img.Filters, ","))
		}
		return nil
	})
}

func runAttachments(ctx context.Context, fs *flag.FlagSet, args []string) error {
	dir := fs.String("out", "", "Directory to write attachments into (default list only)")
	return withExtractor(ctx, fs, args, func(e *extractor.Extractor) error {
		files, err := e.EmbeddedFiles(ctx)
		if err != nil {
			return err
		}
		for _, f := range files {
			fmt.Printf("%s\t%d bytes\t%s\n", f.Name, len(f.Data), f.Description)
			if *dir == "" {
				continue
			}
			name := filepath.Base(f.FileName)
			if name == "." || name == string(filepath.Separator) || name == "" {
				name = filepath.Base(f.Name)
			}
			if err := os.WriteFile(filepath.Join(*dir, name), f.Data, 0o644); err != nil {
				return err
			}
		}
		return nil
	})
}
