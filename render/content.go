package render

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/iedon/cms-render-go/cache"
	"github.com/iedon/cms-render-go/content"
	"github.com/iedon/cms-render-go/plugins"
	"github.com/iedon/cms-render-go/toolbar"
)

const (
	pluginEditTemplate = `<template class="cms-plugin cms-plugin-start cms-plugin-%d"></template>%s` +
		`<template class="cms-plugin cms-plugin-end cms-plugin-%d"></template>`
	placeholderEditTemplate = "%s <div class=\"cms-placeholder cms-placeholder-%d\"></div> <script data-cms>%s\n%s</script>"
	legacyEditTemplate      = "\n%s\n<div class=\"cms-placeholder cms-placeholder-%d\"></div>\n" +
		"<script data-cms id=\"cms-plugin-child-classes-%d\" type=\"text/cms-template\">\n    %s\n</script>\n" +
		"<script data-cms>%s\n%s</script>\n"
)

// Fallback renders the markup used when a placeholder produces nothing.
type Fallback func(ctx *plugins.Context) (string, error)

// FallbackText is a Fallback returning fixed markup.
func FallbackText(markup string) Fallback {
	return func(*plugins.Context) (string, error) { return markup, nil }
}

// Options tune a single placeholder render.
type Options struct {
	// Language defaults to the request language.
	Language string
	// Page selects the layout whose settings apply to the placeholder.
	Page     *content.Page
	Editable bool
	UseCache bool
	Fallback Fallback
	// Width overrides the placeholder default width.
	Width int
}

// ContentRenderer renders placeholders for visitors, optionally with edit
// markers. One renderer serves exactly one request.
type ContentRenderer struct {
	base
	editMode bool
	withMenu bool
}

// NewContentRenderer returns a renderer for one request on page; page may be
// nil when only static placeholders are rendered.
func NewContentRenderer(deps Deps, page *content.Page, session *toolbar.Session) *ContentRenderer {
	r := &ContentRenderer{base: newBase(deps, page, session)}
	r.editMode = r.session.EditModeActive()
	return r
}

// CacheEnabled reports whether the external placeholder cache may serve this request.
func (r *ContentRenderer) CacheEnabled() bool {
	if !r.deps.CacheEnabled || r.deps.Cache == nil {
		return false
	}
	if r.session.Viewer.IsStaff() {
		return false
	}
	return !r.editMode
}

// RenderPlaceholder renders ph against pctx.
func (r *ContentRenderer) RenderPlaceholder(ctx context.Context, ph *content.Placeholder, pctx *plugins.Context, opts Options) (string, error) {
	if pctx == nil {
		pctx = plugins.NewContext(nil)
	}
	language := r.language(opts.Language)
	editable := opts.Editable && r.editMode
	useCache := opts.UseCache && !editable && ph.Cacheable && r.CacheEnabled()

	ctx, span := r.tracer.Start(ctx, "render.placeholder", trace.WithAttributes(
		attribute.Int64(AttrPlaceholderID, int64(ph.ID)),
		attribute.String(AttrPlaceholderSlot, ph.Slot),
		attribute.String(AttrLanguage, language),
		attribute.Bool(AttrEditable, editable),
	))
	defer span.End()

	if useCache {
		if rec, ok := r.cachedContent(ctx, ph, language); ok {
			span.SetAttributes(attribute.Bool(AttrCached, true))
			pctx.Assets.Merge(rec.Assets)
			return rec.Content, nil
		}
	}

	seen := len(r.scope.peekBookkeeping(ph.ID).Plugins)
	out, err := r.renderFresh(ctx, ph, pctx, language, editable, useCache, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	rendered := RenderedPlaceholder{
		Placeholder: ph,
		Language:    language,
		SiteID:      r.deps.SiteID,
		Cached:      useCache,
		Editable:    editable,
	}
	if r.rendered.add(rendered) {
		r.session.MarkRendered(useCache)
	}

	if editable {
		out, err = r.wrapEditable(ph, out, language, opts.Page, seen)
		if err != nil {
			return "", err
		}
	}
	return out, nil
}

func (r *ContentRenderer) renderFresh(ctx context.Context, ph *content.Placeholder, pctx *plugins.Context, language string, editable, useCache bool, opts Options) (string, error) {
	pctx.Push()
	defer pctx.Pop()

	width := opts.Width
	if width == 0 {
		width = ph.DefaultWidth
	}
	if width > 0 {
		pctx.Set("width", width)
	}

	tpl := templateOf(opts.Page, language)
	for key, value := range ph.ExtraContext {
		if !pctx.Has(key) {
			pctx.Set(key, value)
		}
	}
	if r.deps.ExtraContext != nil {
		for key, value := range r.deps.ExtraContext(ph.Slot, tpl) {
			if !pctx.Has(key) {
				pctx.Set(key, value)
			}
		}
	}

	var mark plugins.Mark
	if useCache {
		mark = pctx.Assets.Mark()
	}

	nodes, err := r.pluginsToRender(ctx, ph, language, tpl)
	if err != nil {
		return "", err
	}
	var out []byte
	for _, inst := range nodes {
		chunk, err := r.renderPlugin(inst, pctx, ph, editable)
		if err != nil {
			return "", err
		}
		out = append(out, chunk...)
	}

	markup := string(out)
	if markup == "" && opts.Fallback != nil {
		if markup, err = opts.Fallback(pctx); err != nil {
			return "", err
		}
	}

	if useCache {
		r.storeContent(ctx, ph, language, cache.Record{Content: markup, Assets: pctx.Assets.Since(mark)})
	}
	return markup, nil
}

// renderPlugin renders one plugin node. Unknown and structural plugin types
// render nothing.
func (r *ContentRenderer) renderPlugin(inst *content.Plugin, pctx *plugins.Context, ph *content.Placeholder, editable bool) (string, error) {
	plugin, err := r.pluginType(inst.Type)
	if err != nil {
		r.logger.Debug("skip plugin", "plugin", inst.ID, "error", err)
		return "", nil
	}
	if !plugin.Info().RendersContent {
		return "", nil
	}

	local := pctx.Derive()
	for _, process := range r.deps.Processors.Context {
		local.Update(process(inst, ph, local))
	}
	local, err = plugin.Render(local, inst, ph.Slot)
	if err != nil {
		return "", fmt.Errorf("render plugin %d: %w", inst.ID, err)
	}

	tpl, err := r.template(plugin.Template(inst))
	if err != nil {
		return "", fmt.Errorf("template of plugin %d: %w", inst.ID, err)
	}
	out, err := r.deps.Templates.Execute(tpl, local.Flatten())
	if err != nil {
		return "", fmt.Errorf("execute plugin %d: %w", inst.ID, err)
	}
	for _, process := range r.deps.Processors.Output {
		if out, err = process(inst, ph, out, local); err != nil {
			return "", fmt.Errorf("process plugin %d: %w", inst.ID, err)
		}
	}

	if editable {
		out = fmt.Sprintf(pluginEditTemplate, inst.ID, out, inst.ID)
		bk := r.scope.Bookkeeping(ph.ID)
		bk.Plugins = append(bk.Plugins, inst)
	}
	return out, nil
}

// wrapEditable adds the edit markers and trailer to markup. Only plugins
// recorded in this pass, from index seen on, get toolbar JS.
func (r *ContentRenderer) wrapEditable(ph *content.Placeholder, markup, language string, page *content.Page, seen int) (string, error) {
	bk := r.scope.peekBookkeeping(ph.ID)
	placeholderJS := r.placeholderToolbarJS(ph, language, page)
	pluginJS := r.pluginJS(bk.Plugins[seen:], ph, page)
	if !r.withMenu {
		return fmt.Sprintf(placeholderEditTemplate, markup, ph.ID, pluginJS, placeholderJS), nil
	}
	menu, err := r.pluginMenu(ph, page)
	if err != nil {
		return "", fmt.Errorf("plugin menu of placeholder %d: %w", ph.ID, err)
	}
	return fmt.Sprintf(legacyEditTemplate, markup, ph.ID, ph.ID, menu, pluginJS, placeholderJS), nil
}

func (r *ContentRenderer) cacheKey(ph *content.Placeholder, language string) contentKey {
	return contentKey{site: r.deps.SiteID, language: language, placeholder: ph.ID}
}

// cachedContent consults the request memo, then the external cache. Misses
// are remembered for the rest of the request as well.
func (r *ContentRenderer) cachedContent(ctx context.Context, ph *content.Placeholder, language string) (cache.Record, bool) {
	key := r.cacheKey(ph, language)
	if rec, known := r.scope.cached(key); known {
		if rec == nil {
			return cache.Record{}, false
		}
		return *rec, true
	}

	rec, ok, err := r.deps.Cache.Get(ctx, cache.Key{Placeholder: ph.ID, Language: language, SiteID: r.deps.SiteID})
	if err != nil {
		r.logger.Warn("placeholder cache get", "placeholder", ph.ID, "language", language, "error", err)
		ok = false
	}
	if !ok {
		r.scope.remember(key, nil)
		return cache.Record{}, false
	}
	r.scope.remember(key, &rec)
	return rec, true
}

func (r *ContentRenderer) storeContent(ctx context.Context, ph *content.Placeholder, language string, rec cache.Record) {
	err := r.deps.Cache.Set(ctx, cache.Key{Placeholder: ph.ID, Language: language, SiteID: r.deps.SiteID}, rec)
	if err != nil {
		r.logger.Warn("placeholder cache set", "placeholder", ph.ID, "language", language, "error", err)
	}
}

// RenderStaticPlaceholder renders the draft of sp for editors allowed to edit
// static placeholders, and the cached public version for everybody else.
func (r *ContentRenderer) RenderStaticPlaceholder(ctx context.Context, sp *content.StaticPlaceholder, pctx *plugins.Context, fallback Fallback) (string, error) {
	opts := Options{Fallback: fallback}
	ph := sp.Public
	if r.editMode && r.session.Viewer.CanEditStatic() {
		ph = sp.Draft
		opts.Editable = true
	} else {
		opts.UseCache = true
	}

	out, err := r.RenderPlaceholder(ctx, ph, pctx, opts)
	if err != nil {
		return "", err
	}
	r.statics.add(sp)
	return out, nil
}

// LegacyRenderer is a ContentRenderer whose editable trailer also carries the
// plugin insertion menu.
type LegacyRenderer struct {
	*ContentRenderer
}

func NewLegacyRenderer(deps Deps, page *content.Page, session *toolbar.Session) *LegacyRenderer {
	r := NewContentRenderer(deps, page, session)
	r.withMenu = true
	return &LegacyRenderer{ContentRenderer: r}
}
