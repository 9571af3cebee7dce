// Command pdfcore inspects, extracts from and rewrites PDF files.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/wudi/pdfcore/observability"
	"github.com/wudi/pdfcore/pdf"
)

type command struct {
	usage string
	run   func(ctx context.Context, fs *flag.FlagSet, args []string) error
}

var commands = map[string]command{
	"info":  {"info [flags] <pdf>", runInfo},
	"pages": {"pages [flags] <pdf>", runPages},
	"show":  {"show [flags] <pdf> <num> [gen]", runShow},
	"text":  {"text [flags] <pdf>", runText},
	"html":  {"html [flags] <pdf>", runHTML},
	"clean": {"clean [flags] <in> <out>", runClean},
	"bbox":  {"bbox [flags] <pdf>", runBBox},
	"draw":  {"draw [flags] <pdf>", runDraw},
	"trace": {"trace [flags] <pdf>", runTrace},

	"tokens": {"tokens [flags] <file>", runTokens},
	"icc":    {"icc [flags] <pdf>", runICC},

	"outline":     {"outline [flags] <pdf>", runOutline},
	"fonts":       {"fonts [flags] <pdf>", runFonts},
	"annots":      {"annots [flags] <pdf>", runAnnots},
	"images":      {"images [flags] <pdf>", runImages},
	"attachments": {"attachments [flags] <pdf>", runAttachments},
}

var errUsage = errors.New("usage")

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	name := os.Args[1]
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "pdfcore: unknown command %q\n", name)
		usage()
		os.Exit(2)
	}
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: pdfcore %s\n", cmd.usage)
		fs.PrintDefaults()
	}
	err := cmd.run(context.Background(), fs, os.Args[2:])
	switch {
	case errors.Is(err, errUsage):
		fs.Usage()
		os.Exit(2)
	case err != nil:
		fmt.Fprintf(os.Stderr, "pdfcore %s: %v\n", name, err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: pdfcore <command> [flags] <args>\n\nCommands:\n")
	keys := make([]string, 0, len(commands))
	for k := range commands {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(os.Stderr, "  %s\n", commands[k].usage)
	}
}

// openFlags are shared by every command that reads a document.
type openFlags struct {
	password string
	strict   bool
	verbose  bool
	pages    string
}

func (o *openFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&o.password, "password", "", "Password for encrypted files")
	fs.BoolVar(&o.strict, "strict", false, "Fail on malformed input instead of repairing")
	fs.BoolVar(&o.verbose, "v", false, "Log debug records to stderr")
	fs.StringVar(&o.pages, "pages", "", "Page ranges counting from 1, e.g. 1-3,7 (default all)")
}

func (o *openFlags) logger() observability.Logger {
	if !o.verbose {
		return observability.NopLogger{}
	}
	return observability.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
}

func (o *openFlags) open(ctx context.Context, path string) (*pdf.Document, error) {
	logger := o.logger()
	cfg := pdf.Config{
		Password: o.password,
		Strict:   o.strict,
		Logger:   logger,
	}
	if o.verbose {
		cfg.Tracer = observability.LogTracer{Logger: logger}
	}
	doc, err := pdf.OpenFile(ctx, path, cfg)
	if err != nil {
		return nil, err
	}
	if doc.NeedsPassword() {
		doc.Drop()
		return nil, fmt.Errorf("%s: password required", path)
	}
	return doc, nil
}

// selected returns the zero-based page numbers named by -pages.
func (o *openFlags) selected(doc *pdf.Document) ([]int, error) {
	return parseRanges(o.pages, doc.CountPages())
}
