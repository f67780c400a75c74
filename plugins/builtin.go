package plugins

import (
	"fmt"
	"html/template"

	"github.com/iedon/cms-render-go/content"
	"github.com/iedon/cms-render-go/renderer"
)

const (
	TypeText    = "TextPlugin"
	TypeCode    = "CodePlugin"
	TypeLink    = "LinkPlugin"
	TypeSection = "SectionPlugin"
	TypeRawHTML = "RawHTMLPlugin"

	// HighlightStylesheet is the deferred css asset registered by code plugins.
	HighlightStylesheet = "/theme/highlight.css"
)

// TextPlugin renders its "body" as Markdown. Front matter values are exposed
// to the template as "meta".
type TextPlugin struct {
	Base
	md *renderer.Renderer
}

func NewTextPlugin(r *renderer.Renderer) *TextPlugin {
	return &TextPlugin{
		Base: Base{
			Meta: Info{
				Type: TypeText, Name: "Text", Module: "Generic",
				RendersContent: true, AllowChildren: true,
				ChildTypes: []string{TypeLink},
			},
			Source: `<div class="cms-text">{{with .meta.title}}<h2 class="cms-text-title">{{.}}</h2>{{end}}{{.body}}</div>`,
		},
		md: r,
	}
}

func (p *TextPlugin) Render(ctx *Context, inst *content.Plugin, slot string) (*Context, error) {
	ctx, _ = p.Base.Render(ctx, inst, slot)
	res, err := p.md.Markdown([]byte(inst.String("body")))
	if err != nil {
		return nil, fmt.Errorf("text plugin %d: %w", inst.ID, err)
	}
	ctx.Set("body", template.HTML(res.HTML))
	ctx.Set("headings", res.Headings)
	meta := res.Meta
	if meta == nil {
		meta = map[string]any{}
	}
	ctx.Set("meta", meta)
	return ctx, nil
}

// CodePlugin renders a highlighted code listing.
type CodePlugin struct {
	Base
	md *renderer.Renderer
}

func NewCodePlugin(r *renderer.Renderer) *CodePlugin {
	return &CodePlugin{
		Base: Base{
			Meta:   Info{Type: TypeCode, Name: "Code", Module: "Generic", RendersContent: true},
			Source: `<figure class="cms-code">{{.code}}{{with .caption}}<figcaption>{{.}}</figcaption>{{end}}</figure>`,
		},
		md: r,
	}
}

func (p *CodePlugin) Render(ctx *Context, inst *content.Plugin, slot string) (*Context, error) {
	ctx, _ = p.Base.Render(ctx, inst, slot)
	out, err := p.md.Highlight(inst.String("code"), inst.String("language"))
	if err != nil {
		return nil, fmt.Errorf("code plugin %d: %w", inst.ID, err)
	}
	ctx.Set("code", template.HTML(out))
	if ctx.Assets != nil {
		ctx.Assets.Add("css", HighlightStylesheet)
	}
	return ctx, nil
}

func NewLinkPlugin() Base {
	return Base{
		Meta: Info{Type: TypeLink, Name: "Link", Module: "Generic", RendersContent: true},
		Source: `<a class="cms-link" href="{{.url}}"{{with .target}} target="{{.}}"{{end}}>` +
			`{{if .label}}{{.label}}{{else}}{{.url}}{{end}}</a>`,
	}
}

// NewSectionPlugin returns a structural container; it renders nothing itself.
func NewSectionPlugin() Base {
	return Base{
		Meta: Info{Type: TypeSection, Name: "Section", Module: "Layout", AllowChildren: true},
	}
}

// RawHTMLPlugin outputs its "html" value unescaped.
type RawHTMLPlugin struct {
	Base
}

func NewRawHTMLPlugin() *RawHTMLPlugin {
	return &RawHTMLPlugin{Base: Base{
		Meta:   Info{Type: TypeRawHTML, Name: "HTML", Module: "Advanced", RendersContent: true},
		Source: `{{.html}}`,
	}}
}

func (p *RawHTMLPlugin) Render(ctx *Context, inst *content.Plugin, slot string) (*Context, error) {
	ctx, _ = p.Base.Render(ctx, inst, slot)
	ctx.Set("html", template.HTML(inst.String("html")))
	return ctx, nil
}

// RegisterBuiltins adds the shipped plugin types to pool.
func RegisterBuiltins(pool *Pool, r *renderer.Renderer) error {
	for _, plugin := range []Plugin{
		NewTextPlugin(r),
		NewCodePlugin(r),
		NewLinkPlugin(),
		NewSectionPlugin(),
		NewRawHTMLPlugin(),
	} {
		if err := pool.Register(plugin); err != nil {
			return fmt.Errorf("register %s: %w", plugin.Info().Type, err)
		}
	}
	return nil
}
