package renderer

import (
	"fmt"
	"html"
	"strings"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

const (
	classPrefix = "z-"
	styleName   = "github"
)

func (r *Renderer) formatter() *chromahtml.Formatter {
	return chromahtml.New(
		chromahtml.WithClasses(true),
		chromahtml.ClassPrefix(classPrefix),
		chromahtml.PreventSurroundingPre(true),
	)
}

// Highlight renders code as a highlighted <pre> block. Unknown languages fall
// back to plain text.
func (r *Renderer) Highlight(code, language string) (string, error) {
	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	style := styles.Get(styleName)
	if style == nil {
		style = styles.Fallback
	}

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return "", fmt.Errorf("tokenise %s: %w", language, err)
	}

	var sb strings.Builder
	lang := html.EscapeString(strings.TrimSpace(language))
	if lang == "" {
		lang = "text"
	}
	fmt.Fprintf(&sb, `<pre tabindex="0" class="%[2]schroma language-%[1]s" data-lang="%[1]s"><code>`, lang, classPrefix)
	if err := r.formatter().Format(&sb, style, iterator); err != nil {
		return "", fmt.Errorf("format %s: %w", language, err)
	}
	sb.WriteString("</code></pre>")
	return sb.String(), nil
}

// HighlightCSS returns the stylesheet matching the classes emitted by Highlight.
func (r *Renderer) HighlightCSS() string {
	r.cssOnce.Do(func() {
		style := styles.Get(styleName)
		if style == nil {
			style = styles.Fallback
		}
		var sb strings.Builder
		if err := r.formatter().WriteCSS(&sb, style); err == nil {
			r.css = sb.String()
		}
	})
	return r.css
}
