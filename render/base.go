// Package render turns placeholders and their plugin trees into markup, for
// visitors (content) and for the editing overlay (structure).
package render

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/iedon/cms-render-go/cache"
	"github.com/iedon/cms-render-go/content"
	"github.com/iedon/cms-render-go/plugins"
	"github.com/iedon/cms-render-go/toolbar"
)

const (
	AttrPlaceholderID   = "cms.placeholder.id"
	AttrPlaceholderSlot = "cms.placeholder.slot"
	AttrLanguage        = "cms.language"
	AttrCached          = "cms.cached"
	AttrEditable        = "cms.editable"
)

// Templates compiles and executes plugin templates.
type Templates interface {
	Resolve(ref string) (*template.Template, error)
	Execute(tpl *template.Template, data any) (string, error)
}

// Deps are the collaborators a renderer works with. They are shared between
// requests; everything a renderer derives from them is not.
type Deps struct {
	Pages  content.PageTree
	Loader content.Loader
	Pool   *plugins.Pool
	// Templates resolves plugin templates.
	Templates Templates
	// Cache is the external placeholder cache; nil disables it.
	Cache        cache.Store
	CacheEnabled bool
	Processors   plugins.Processors
	// ExtraContext returns configured defaults for a slot on a layout.
	ExtraContext func(slot, template string) map[string]any
	SiteID       int64
	Logger       *slog.Logger
	Tracer       trace.Tracer
}

type base struct {
	deps    Deps
	page    *content.Page
	session *toolbar.Session
	scope   *Scope
	logger  *slog.Logger
	tracer  trace.Tracer

	rendered renderedSet
	statics  staticSet
}

func newBase(deps Deps, page *content.Page, session *toolbar.Session) base {
	if session == nil {
		session = toolbar.NewSession(nil, false, "")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	tracer := deps.Tracer
	if tracer == nil {
		tracer = otel.Tracer("github.com/iedon/cms-render-go/render")
	}
	return base{
		deps:    deps,
		page:    page,
		session: session,
		scope:   NewScope(),
		logger:  logger.With("component", "render"),
		tracer:  tracer,
	}
}

// CurrentPage is the page the request renders, or nil.
func (b *base) CurrentPage() *content.Page {
	return b.page
}

// Session is the toolbar state the renderer was built with.
func (b *base) Session() *toolbar.Session {
	return b.session
}

// Scope returns the request memo shared by every pass of this renderer.
func (b *base) Scope() *Scope {
	return b.scope
}

// RenderedPlaceholders lists the distinct placeholders rendered so far, in first-seen order.
func (b *base) RenderedPlaceholders() []RenderedPlaceholder {
	return b.rendered.all()
}

// RenderedEditablePlaceholders lists the rendered placeholders that were editable.
func (b *base) RenderedEditablePlaceholders() []RenderedPlaceholder {
	out := make([]RenderedPlaceholder, 0, len(b.rendered.order))
	for _, r := range b.rendered.order {
		if r.Editable {
			out = append(out, r)
		}
	}
	return out
}

// RenderedStaticPlaceholders lists the static placeholders rendered so far, deduplicated by code.
func (b *base) RenderedStaticPlaceholders() []*content.StaticPlaceholder {
	return append([]*content.StaticPlaceholder(nil), b.statics.order...)
}

func (b *base) language(requested string) string {
	if requested != "" {
		return requested
	}
	return b.session.RequestLanguage
}

func templateOf(page *content.Page, language string) string {
	if page == nil {
		return ""
	}
	return page.TemplateFor(language)
}

func (b *base) pluginType(pluginType string) (plugins.Plugin, error) {
	if plugin, ok := b.scope.pluginTypes[pluginType]; ok {
		return plugin, nil
	}
	plugin, err := b.deps.Pool.Get(pluginType)
	if err != nil {
		return nil, fmt.Errorf("plugin type %q: %w", pluginType, err)
	}
	b.scope.pluginTypes[pluginType] = plugin
	return plugin, nil
}

func (b *base) template(ref string) (*template.Template, error) {
	if tpl, ok := b.scope.templates[ref]; ok {
		return tpl, nil
	}
	tpl, err := b.deps.Templates.Resolve(ref)
	if err != nil {
		return nil, err
	}
	b.scope.templates[ref] = tpl
	return tpl, nil
}

// pluginsToRender returns the flattened plugin sequence of ph, loading the
// tree when no earlier pass attached it.
func (b *base) pluginsToRender(ctx context.Context, ph *content.Placeholder, language, tpl string) ([]*content.Plugin, error) {
	roots, resolved := ph.Plugins()
	if !resolved {
		err := b.deps.Loader.AssignPlugins(ctx, content.LoadRequest{
			Placeholders: []*content.Placeholder{ph},
			Template:     tpl,
			Language:     language,
			SiteID:       b.deps.SiteID,
		})
		if err != nil {
			return nil, fmt.Errorf("load plugins of placeholder %d: %w", ph.ID, err)
		}
		roots, _ = ph.Plugins()
	}
	return content.Flatten(roots), nil
}

func (b *base) placeholderToolbarJS(ph *content.Placeholder, language string, page *content.Page) string {
	allowed := make([]string, 0)
	for _, plugin := range b.deps.Pool.AllowedFor(ph.Slot, templateOf(page, language)) {
		allowed = append(allowed, plugin.Info().Type)
	}
	allowed = append(allowed, b.deps.Pool.SystemPlugins()...)
	return toolbar.PlaceholderJS(ph, b.session.RequestLanguage, language, allowed)
}

func (b *base) pluginToolbarJS(inst *content.Plugin, ph *content.Placeholder, page *content.Page) string {
	bk := b.scope.Bookkeeping(ph.ID)
	restriction := toolbar.Restrictions(inst, b.deps.Pool, ph.Slot, templateOf(page, b.session.RequestLanguage), bk.Restrictions)
	name := inst.Type
	if plugin, err := b.pluginType(inst.Type); err == nil {
		name = plugin.Info().Name
	}
	return toolbar.PluginJS(inst, name, restriction, b.session.RequestLanguage)
}

func (b *base) pluginMenu(ph *content.Placeholder, page *content.Page) (string, error) {
	return toolbar.PluginMenu(b.session.Viewer, b.deps.Pool, ph.Slot, templateOf(page, b.session.RequestLanguage))
}

func (b *base) pluginJS(rendered []*content.Plugin, ph *content.Placeholder, page *content.Page) string {
	var sb strings.Builder
	for _, inst := range rendered {
		sb.WriteString(b.pluginToolbarJS(inst, ph, page))
	}
	return sb.String()
}
