package render

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/iedon/cms-render-go/content"
	"github.com/iedon/cms-render-go/toolbar"
)

const structureTemplate = "\n<script data-cms id=\"cms-plugin-child-classes-%d\" type=\"text/cms-template\">\n    %s\n</script>\n" +
	"<script data-cms>%s\n%s</script>\n"

// StructureRenderer produces the editing overlay: toolbar descriptors for
// every plugin and placeholder. It never touches the placeholder cache.
type StructureRenderer struct {
	base
}

// NewStructureRenderer returns a structure renderer for one request.
func NewStructureRenderer(deps Deps, page *content.Page, session *toolbar.Session) *StructureRenderer {
	return &StructureRenderer{base: newBase(deps, page, session)}
}

// RenderPlaceholder renders the structure of ph. page may be nil for static placeholders.
func (r *StructureRenderer) RenderPlaceholder(ctx context.Context, ph *content.Placeholder, language string, page *content.Page) (string, error) {
	language = r.language(language)
	ctx, span := r.tracer.Start(ctx, "render.structure", trace.WithAttributes(
		attribute.Int64(AttrPlaceholderID, int64(ph.ID)),
		attribute.String(AttrPlaceholderSlot, ph.Slot),
		attribute.String(AttrLanguage, language),
	))
	defer span.End()

	nodes, err := r.pluginsToRender(ctx, ph, language, templateOf(page, language))
	if err != nil {
		return "", err
	}
	bk := r.scope.Bookkeeping(ph.ID)
	var pluginJS strings.Builder
	for _, inst := range nodes {
		bk.Plugins = append(bk.Plugins, inst)
		pluginJS.WriteString(r.pluginToolbarJS(inst, ph, page))
	}

	placeholderJS := r.placeholderToolbarJS(ph, language, page)
	r.rendered.add(RenderedPlaceholder{
		Placeholder: ph,
		Language:    language,
		SiteID:      r.deps.SiteID,
		Cached:      false,
		Editable:    true,
	})

	menu, err := r.pluginMenu(ph, page)
	if err != nil {
		return "", fmt.Errorf("plugin menu of placeholder %d: %w", ph.ID, err)
	}
	return fmt.Sprintf(structureTemplate, ph.ID, menu, pluginJS.String(), placeholderJS), nil
}

func (r *StructureRenderer) RenderPagePlaceholder(ctx context.Context, page *content.Page, ph *content.Placeholder, language string) (string, error) {
	return r.RenderPlaceholder(ctx, ph, language, page)
}

// RenderStaticPlaceholder renders the draft of sp, or nothing when the
// viewer may not edit static placeholders.
func (r *StructureRenderer) RenderStaticPlaceholder(ctx context.Context, sp *content.StaticPlaceholder, language string) (string, error) {
	if !r.session.Viewer.CanEditStatic() {
		return "", nil
	}
	out, err := r.RenderPlaceholder(ctx, sp.Draft, language, nil)
	if err != nil {
		return "", err
	}
	r.statics.add(sp)
	return out, nil
}
