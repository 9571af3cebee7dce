package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/wudi/pdfcore/cmm"
	"github.com/wudi/pdfcore/ir/raw"
	"github.com/wudi/pdfcore/names"
	"github.com/wudi/pdfcore/pdf"
	"github.com/wudi/pdfcore/scanner"
	"github.com/wudi/pdfcore/source"
)

// runTokens prints the lexical tokens of a file, skipping stream bodies.
func runTokens(ctx context.Context, fs *flag.FlagSet, args []string) error {
	limit := fs.Int("n", 0, "Stop after n tokens (default all)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errUsage
	}
	src, err := source.OpenFile(fs.Arg(0))
	if err != nil {
		return err
	}
	defer src.Close()
	s := scanner.New(src.Bytes(), scanner.Config{})
	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()
	for i := 0; *limit <= 0 || i < *limit; i++ {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		tok, err := s.Next()
		if err != nil {
			fmt.Fprintf(out, "%d: error: %v\n", s.Position(), err)
			return nil
		}
		switch tok.Kind {
		case scanner.EOF:
			return nil
		case scanner.Int:
			fmt.Fprintf(out, "%d: %s %d\n", tok.Pos, tok.Kind, tok.Int)
		case scanner.Real:
			fmt.Fprintf(out, "%d: %s %g\n", tok.Pos, tok.Kind, tok.Real)
		case scanner.Name, scanner.String, scanner.Keyword:
			fmt.Fprintf(out, "%d: %s %q\n", tok.Pos, tok.Kind, tok.Bytes)
		case scanner.Stream:
			fmt.Fprintf(out, "%d: %s\n", tok.Pos, tok.Kind)
			end := s.IndexFrom(s.Position(), []byte("endstream"))
			if end < 0 {
				return nil
			}
			fmt.Fprintf(out, "%d: (%d bytes)\n", s.Position(), end-s.Position())
			if err := s.Seek(end); err != nil {
				return err
			}
		default:
			fmt.Fprintf(out, "%d: %s\n", tok.Pos, tok.Kind)
		}
	}
	return nil
}

type iccEntry struct {
	ref   raw.ObjectRef
	where string
	st    *raw.StreamObj
}

// runICC lists the embedded ICC profiles of output intents and page color
// spaces.
func runICC(ctx context.Context, fs *flag.FlagSet, args []string) error {
	var o openFlags
	dir := fs.String("out", "", "Directory to write profiles into (default list only)")
	return withDoc(ctx, fs, args, &o, func(doc *pdf.Document) error {
		found := map[raw.ObjectRef]*iccEntry{}
		add := func(st *raw.StreamObj, where string) {
			if _, ok := found[st.Ref]; !ok {
				found[st.Ref] = &iccEntry{ref: st.Ref, where: where, st: st}
			}
		}
		if cat, ok := doc.Catalog(); ok {
			intents, _ := raw.AsArray(doc.Resolve(get(cat, "OutputIntents")))
			for i := 0; i < intents.Len(); i++ {
				oi, _ := raw.AsDict(doc.Resolve(intents.At(i)))
				if st, ok := raw.AsStream(doc.Resolve(get(oi, "DestOutputProfile"))); ok {
					add(st, "output intent")
				}
			}
		}
		pages, err := o.selected(doc)
		if err != nil {
			return err
		}
		for _, k := range pages {
			p, err := doc.LoadPage(k)
			if err != nil {
				doc.IgnoreError()
				continue
			}
			spaces, _ := raw.AsDict(doc.Resolve(get(p.Resources, "ColorSpace")))
			spaces.Each(func(key names.ID, v raw.Object) bool {
				arr, ok := raw.AsArray(doc.Resolve(v))
				if !ok {
					return true
				}
				if id, _ := raw.AsName(doc.Resolve(arr.At(0))); id != names.ICCBased {
					return true
				}
				if st, ok := raw.AsStream(doc.Resolve(arr.At(1))); ok {
					add(st, fmt.Sprintf("page %d /%s", k+1, names.Default().String(key)))
				}
				return true
			})
		}
		entries := make([]*iccEntry, 0, len(found))
		for _, e := range found {
			entries = append(entries, e)
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].ref.Num < entries[j].ref.Num })
		for _, e := range entries {
			data, err := doc.DecodeStream(ctx, e.st)
			if err != nil {
				fmt.Printf("obj %d\t%s\terror: %v\n", e.ref.Num, e.where, err)
				doc.IgnoreError()
				continue
			}
			prof, err := cmm.Parse(data)
			if err != nil {
				fmt.Printf("obj %d\t%s\t%d bytes\t%v\n", e.ref.Num, e.where, len(data), err)
				continue
			}
			fmt.Printf("obj %d\t%s\t%d bytes\t%s %s->%s\t%s\n", e.ref.Num, e.where, len(data),
				prof.Class, prof.ColorSpace, prof.PCS, prof.Description())
			if *dir != "" {
				name := filepath.Join(*dir, fmt.Sprintf("obj%d.icc", e.ref.Num))
				if err := os.WriteFile(name, data, 0o644); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func get(d *raw.DictObj, key string) raw.Object {
	v, ok := d.GetKey(key)
	if !ok {
		return raw.Null
	}
	return v
}
