package site

import (
	"context"
	"errors"
	"fmt"
	"html"
	"html/template"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/iedon/cms-render-go/content"
	"github.com/iedon/cms-render-go/plugins"
	"github.com/iedon/cms-render-go/render"
	"github.com/iedon/cms-render-go/templatex"
	"github.com/iedon/cms-render-go/toolbar"
)

const assetMarkerFormat = "<!--cms-assets:%s-->"

// PageRequest describes one page view.
type PageRequest struct {
	Path string
	// Language is matched against the configured languages; empty selects the default.
	Language string
	Viewer   *toolbar.Viewer
	EditMode bool
}

// PageResult is a rendered page with the facts a response needs.
type PageResult struct {
	RequestID string
	Page      *content.Page
	Language  string
	HTML      []byte
	// Cacheable is false once any rendered placeholder bypassed the
	// placeholder cache, or when an edit session is active.
	Cacheable bool
	Rendered  []render.RenderedPlaceholder
}

// RenderPage renders the page at req.Path through its layout.
func (s *Service) RenderPage(ctx context.Context, req PageRequest) (*PageResult, error) {
	requestID := uuid.NewString()
	ctx, span := s.tracer.Start(ctx, "site.render_page", trace.WithAttributes(
		attribute.String(attrRequestID, requestID),
		attribute.String(attrPath, req.Path),
	))
	defer span.End()

	result, err := s.renderPage(ctx, req, requestID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Bool("cms.cacheable", result.Cacheable))
	return result, nil
}

func (s *Service) renderPage(ctx context.Context, req PageRequest, requestID string) (*PageResult, error) {
	if req.EditMode && req.Viewer == nil {
		return nil, fmt.Errorf("edit mode: %w", ErrForbidden)
	}
	pagePath, err := resolvePath(req.Path)
	if err != nil {
		return nil, err
	}
	page, err := s.store.PageByPath(ctx, pagePath)
	if err != nil {
		return nil, err
	}
	lang := s.NegotiateLanguage(req.Language, "")

	session := toolbar.NewSession(req.Viewer, req.EditMode, lang)
	rend := s.contentRenderer(page, session)
	pctx := plugins.NewContext(map[string]any{
		"request_language": lang,
		"page_path":        page.Path,
		"page_title":       page.Title,
		"site_name":        s.cfg.SiteName,
	})

	layout, err := s.layoutFor(page, lang)
	if err != nil {
		return nil, err
	}
	tpl, err := s.templates.Layout(layout, s.layoutFuncs(ctx, rend, pctx))
	if err != nil {
		return nil, err
	}
	out, err := s.templates.Execute(tpl, templatex.PageData{
		Title:     page.Title,
		PageTitle: s.pageTitle(page.Title),
		Path:      page.Path,
		Language:  lang,
		Languages: s.Languages(),
		SiteName:  s.cfg.SiteName,
		BaseURL:   s.cfg.BaseURL,
		EditMode:  req.EditMode,
	})
	if err != nil {
		return nil, fmt.Errorf("render page %s: %w", page.Path, err)
	}
	out = injectAssets(out, pctx.Assets)

	if req.EditMode {
		cfg := toolbar.Config{EditMode: true, RequestLanguage: lang}
		for _, r := range rend.RenderedEditablePlaceholders() {
			cfg.Placeholders = append(cfg.Placeholders, int64(r.Placeholder.ID))
		}
		for _, sp := range rend.RenderedStaticPlaceholders() {
			cfg.StaticPlaceholders = append(cfg.StaticPlaceholders, sp.Code)
		}
		out = injectBeforeBodyEnd(out, cfg.Script())
	}

	body := []byte(out)
	if s.cfg.Minify && !req.EditMode {
		if body, err = s.renderer.MinifyHTML(body); err != nil {
			return nil, fmt.Errorf("minify %s: %w", page.Path, err)
		}
	}

	rendered := rend.RenderedPlaceholders()
	s.logger.Debug("page rendered",
		"request_id", requestID,
		"path", page.Path,
		"language", lang,
		"placeholders", len(rendered),
		"cacheable", session.Cacheable())
	return &PageResult{
		RequestID: requestID,
		Page:      page,
		Language:  lang,
		HTML:      body,
		Cacheable: session.Cacheable(),
		Rendered:  rendered,
	}, nil
}

// layoutFuncs binds the placeholder functions of a layout to one request.
func (s *Service) layoutFuncs(ctx context.Context, rend *render.ContentRenderer, pctx *plugins.Context) template.FuncMap {
	slot := func(name string, inherit bool, fallback render.Fallback) (template.HTML, error) {
		out, err := rend.RenderPagePlaceholder(ctx, name, pctx, inherit, fallback)
		return template.HTML(out), err
	}
	return template.FuncMap{
		templatex.FuncPlaceholder: func(name string) (template.HTML, error) {
			return slot(name, false, nil)
		},
		templatex.FuncPlaceholderOr: func(name, fallback string) (template.HTML, error) {
			return slot(name, false, render.FallbackText(fallback))
		},
		templatex.FuncInheritedPlaceholder: func(name string) (template.HTML, error) {
			return slot(name, true, nil)
		},
		templatex.FuncStaticPlaceholder: func(code string) (template.HTML, error) {
			sp, err := s.store.StaticPlaceholder(ctx, code, s.cfg.SiteID)
			if errors.Is(err, content.ErrStaticNotFound) {
				s.logger.Debug("static placeholder missing", "code", code)
				return "", nil
			}
			if err != nil {
				return "", err
			}
			out, err := rend.RenderStaticPlaceholder(ctx, sp, pctx, nil)
			return template.HTML(out), err
		},
		templatex.FuncAssets: func(namespace string) template.HTML {
			return template.HTML(fmt.Sprintf(assetMarkerFormat, namespace))
		},
	}
}

// injectAssets replaces asset markers with the deferred assets collected
// while the placeholders rendered.
func injectAssets(out string, assets *plugins.Assets) string {
	if !strings.Contains(out, "<!--cms-assets:") {
		return out
	}
	for _, namespace := range assets.Namespaces() {
		marker := fmt.Sprintf(assetMarkerFormat, namespace)
		if !strings.Contains(out, marker) {
			continue
		}
		var sb strings.Builder
		for _, item := range assets.Items(namespace) {
			sb.WriteString(assetTag(namespace, item))
		}
		out = strings.ReplaceAll(out, marker, sb.String())
	}
	// Markers of namespaces nothing contributed to.
	for {
		start := strings.Index(out, "<!--cms-assets:")
		if start < 0 {
			return out
		}
		end := strings.Index(out[start:], "-->")
		if end < 0 {
			return out
		}
		out = out[:start] + out[start+end+len("-->"):]
	}
}

func assetTag(namespace, item string) string {
	if strings.HasPrefix(strings.TrimSpace(item), "<") {
		return item
	}
	switch namespace {
	case "css":
		return fmt.Sprintf(`<link rel="stylesheet" href="%s">`, html.EscapeString(item))
	case "js":
		return fmt.Sprintf(`<script src="%s"></script>`, html.EscapeString(item))
	default:
		return html.EscapeString(item)
	}
}

func injectBeforeBodyEnd(out, snippet string) string {
	idx := strings.LastIndex(strings.ToLower(out), "</body>")
	if idx < 0 {
		return out + snippet
	}
	return out[:idx] + snippet + out[idx:]
}

func (s *Service) pageTitle(raw string) string {
	title := strings.TrimSpace(raw)
	site := strings.TrimSpace(s.cfg.SiteName)
	switch {
	case title == "":
		return site
	case site == "":
		return title
	default:
		return fmt.Sprintf("%s - %s", title, site)
	}
}
