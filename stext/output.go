package stext

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/text/unicode/norm"
)

// Text returns the page as plain text: one line per text line and an
// empty line after each block.
func (p *Page) Text(opt Options) string {
	var b strings.Builder
	for _, blk := range p.Blocks {
		for i, l := range blk.Lines {
			s := l.String()
			if opt.Dehyphenate && i+1 < len(blk.Lines) && strings.HasSuffix(s, "-") {
				b.WriteString(strings.TrimSuffix(s, "-"))
				continue
			}
			b.WriteString(s)
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	}
	if opt.Normalize {
		return norm.NFKC.String(b.String())
	}
	return b.String()
}

// WriteText writes the text of pages separated by form feeds.
func WriteText(w io.Writer, opt Options, pages ...*Page) error {
	for i, p := range pages {
		if i > 0 {
			if _, err := io.WriteString(w, "\f"); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, p.Text(opt)); err != nil {
			return err
		}
	}
	return nil
}

func element(a atom.Atom, attrs ...string) *html.Node {
	n := &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String()}
	for i := 0; i+1 < len(attrs); i += 2 {
		n.Attr = append(n.Attr, html.Attribute{Key: attrs[i], Val: attrs[i+1]})
	}
	return n
}

// HTML returns the node tree of p: a positioned div per page, a p per
// block and a span per run of characters sharing font and size.
func (p *Page) HTML(opt Options) *html.Node {
	div := element(atom.Div, "class", "page",
		"style", fmt.Sprintf("position:relative;width:%.1fpt;height:%.1fpt", p.MediaBox.Width(), p.MediaBox.Height()))
	text := func(s string) string {
		if opt.Normalize {
			return norm.NFKC.String(s)
		}
		return s
	}
	for _, blk := range p.Blocks {
		para := element(atom.P, "style", fmt.Sprintf("position:absolute;margin:0;top:%.1fpt;left:%.1fpt", blk.Box.Y0, blk.Box.X0))
		for i, l := range blk.Lines {
			if i > 0 {
				para.AppendChild(element(atom.Br))
			}
			for _, run := range runs(l) {
				span := element(atom.Span, "style", fmt.Sprintf("font-family:%q;font-size:%.1fpt", run.font, run.size))
				span.AppendChild(&html.Node{Type: html.TextNode, Data: text(run.text)})
				para.AppendChild(span)
			}
		}
		div.AppendChild(para)
	}
	return div
}

// WriteHTML writes a complete HTML document holding pages.
func WriteHTML(w io.Writer, opt Options, pages ...*Page) error {
	doc := &html.Node{Type: html.DocumentNode}
	doc.AppendChild(&html.Node{Type: html.DoctypeNode, Data: "html"})
	root := element(atom.Html)
	head := element(atom.Head)
	meta := element(atom.Meta, "charset", "utf-8")
	head.AppendChild(meta)
	body := element(atom.Body)
	for _, p := range pages {
		body.AppendChild(p.HTML(opt))
	}
	root.AppendChild(head)
	root.AppendChild(body)
	doc.AppendChild(root)
	return html.Render(w, doc)
}

type run struct {
	text string
	font string
	size float64
}

func runs(l *Line) []run {
	var out []run
	var b strings.Builder
	for i, c := range l.Chars {
		if i > 0 {
			prev := l.Chars[i-1]
			if prev.Font != c.Font || prev.Size != c.Size {
				out = append(out, run{text: b.String(), font: prev.Font, size: prev.Size})
				b.Reset()
			}
		}
		b.WriteString(c.Text)
	}
	if n := len(l.Chars); n > 0 {
		out = append(out, run{text: b.String(), font: l.Chars[n-1].Font, size: l.Chars[n-1].Size})
	}
	return out
}
