package renderer

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/tdewolff/minify/v2"
	minifyhtml "github.com/tdewolff/minify/v2/html"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	htmlRenderer "github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// Heading is an anchor target produced while rendering markdown.
type Heading struct {
	ID    string
	Text  string
	Level int
}

// Result wraps rendered markup with the headings found in the source.
type Result struct {
	HTML     string
	Headings []Heading
	Meta     map[string]any
}

// Renderer turns plugin sources into HTML fragments.
type Renderer struct {
	md       goldmark.Markdown
	minifier *minify.M

	cssOnce sync.Once
	css     string
}

// New constructs a renderer with GitHub-flavored markdown and class-based syntax highlighting.
func New() *Renderer {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			extension.DefinitionList,
			extension.Footnote,
			extension.Typographer,
			highlighting.NewHighlighting(
				highlighting.WithFormatOptions(
					chromahtml.WithClasses(true),
					chromahtml.ClassPrefix(classPrefix),
					chromahtml.PreventSurroundingPre(true),
				),
				highlighting.WithWrapperRenderer(codeWrapper),
			),
			meta.Meta,
		),
		goldmark.WithParserOptions(
			parser.WithAttribute(),
		),
		goldmark.WithRendererOptions(
			htmlRenderer.WithUnsafe(),
		),
	)

	m := minify.New()
	m.Add("text/html", &minifyhtml.Minifier{
		KeepDocumentTags: true,
		KeepEndTags:      true,
		KeepQuotes:       true,
	})

	return &Renderer{md: md, minifier: m}
}

// Markdown converts src into HTML, assigning stable ids to headings.
func (r *Renderer) Markdown(src []byte) (*Result, error) {
	pctx := parser.NewContext()
	doc := r.md.Parser().Parse(text.NewReader(src), parser.WithContext(pctx))

	headings := make([]Heading, 0, 8)
	seen := make(map[string]int)
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		heading, ok := n.(*ast.Heading)
		if !ok || !entering {
			return ast.WalkContinue, nil
		}
		label := headingText(heading, src)
		id := ""
		if raw, ok := heading.AttributeString("id"); ok {
			if b, isBytes := raw.([]byte); isBytes {
				id = string(b)
			}
		}
		if id == "" {
			base := Slugify(label)
			id = base
			if count := seen[base]; count > 0 {
				id = fmt.Sprintf("%s-%d", base, count)
			}
			seen[base]++
			heading.SetAttributeString("id", []byte(id))
		}
		headings = append(headings, Heading{ID: id, Text: label, Level: heading.Level})
		return ast.WalkSkipChildren, nil
	})

	var buf bytes.Buffer
	if err := r.md.Renderer().Render(&buf, src, doc); err != nil {
		return nil, err
	}
	return &Result{HTML: buf.String(), Headings: headings, Meta: meta.Get(pctx)}, nil
}

// MinifyHTML compacts an HTML document or fragment.
func (r *Renderer) MinifyHTML(raw []byte) ([]byte, error) {
	return r.minifier.Bytes("text/html", raw)
}

// MinifyFragment is MinifyHTML for string fragments.
func (r *Renderer) MinifyFragment(raw string) (string, error) {
	return r.minifier.String("text/html", raw)
}

func headingText(root ast.Node, source []byte) string {
	var sb strings.Builder
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if t, ok := n.(*ast.Text); ok && entering {
			sb.Write(t.Segment.Value(source))
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}

// Slugify lowercases input and keeps ASCII letters and digits joined by dashes.
func Slugify(input string) string {
	input = strings.ToLower(strings.TrimSpace(input))
	var sb strings.Builder
	lastDash := false
	for _, r := range input {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
			lastDash = false
		case r == ' ' || r == '-' || r == '_' || r == '.':
			if sb.Len() == 0 || lastDash {
				continue
			}
			sb.WriteByte('-')
			lastDash = true
		}
	}
	slug := strings.Trim(sb.String(), "-")
	if slug == "" {
		return "section"
	}
	return slug
}

func codeWrapper(w util.BufWriter, ctx highlighting.CodeBlockContext, entering bool) {
	lang := "text"
	if raw, ok := ctx.Language(); ok && len(raw) > 0 {
		lang = string(raw)
	}
	lang = string(util.EscapeHTML([]byte(lang)))
	if entering {
		_, _ = fmt.Fprintf(w, `<pre tabindex="0" class="%[2]schroma language-%[1]s" data-lang="%[1]s"><code>`, lang, classPrefix)
		return
	}
	_, _ = w.WriteString("</code></pre>\n")
}
