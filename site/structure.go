package site

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/iedon/cms-render-go/content"
	"github.com/iedon/cms-render-go/render"
	"github.com/iedon/cms-render-go/toolbar"
)

// StructureEntry is the overlay markup of one placeholder.
type StructureEntry struct {
	Slot        string `json:"slot,omitempty"`
	Static      string `json:"static,omitempty"`
	Placeholder int64  `json:"placeholder"`
	Markup      string `json:"markup"`
}

// StructureResult is the structure board of a page.
type StructureResult struct {
	RequestID string           `json:"requestId"`
	Path      string           `json:"path"`
	Language  string           `json:"language"`
	Entries   []StructureEntry `json:"entries"`
	Toolbar   string           `json:"toolbar"`
}

// RenderStructure renders the structure board of every slot the page layout
// declares plus the configured static placeholders.
func (s *Service) RenderStructure(ctx context.Context, req PageRequest) (*StructureResult, error) {
	requestID := uuid.NewString()
	ctx, span := s.tracer.Start(ctx, "site.render_structure", trace.WithAttributes(
		attribute.String(attrRequestID, requestID),
		attribute.String(attrPath, req.Path),
	))
	defer span.End()

	result, err := s.renderStructure(ctx, req, requestID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return result, nil
}

func (s *Service) renderStructure(ctx context.Context, req PageRequest, requestID string) (*StructureResult, error) {
	if req.Viewer == nil {
		return nil, fmt.Errorf("structure: %w", ErrForbidden)
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

	session := toolbar.NewSession(req.Viewer, true, lang)
	rend := render.NewStructureRenderer(s.deps(), page, session)

	placeholders, err := s.store.Placeholders(ctx, page, lang, nil)
	if err != nil {
		return nil, fmt.Errorf("placeholders of %s: %w", page.Path, err)
	}
	result := &StructureResult{
		RequestID: requestID,
		Path:      page.Path,
		Language:  lang,
		Entries:   make([]StructureEntry, 0, len(placeholders)+len(s.cfg.StaticPlaceholders)),
	}
	for _, ph := range placeholders {
		markup, err := rend.RenderPagePlaceholder(ctx, page, ph, lang)
		if err != nil {
			return nil, err
		}
		result.Entries = append(result.Entries, StructureEntry{Slot: ph.Slot, Placeholder: int64(ph.ID), Markup: markup})
	}

	for _, code := range s.cfg.StaticPlaceholders {
		sp, err := s.store.StaticPlaceholder(ctx, code, s.cfg.SiteID)
		if errors.Is(err, content.ErrStaticNotFound) {
			s.logger.Debug("static placeholder missing", "code", code)
			continue
		}
		if err != nil {
			return nil, err
		}
		markup, err := rend.RenderStaticPlaceholder(ctx, sp, lang)
		if err != nil {
			return nil, err
		}
		if markup == "" {
			continue
		}
		result.Entries = append(result.Entries, StructureEntry{Static: sp.Code, Placeholder: int64(sp.Draft.ID), Markup: markup})
	}

	cfg := toolbar.Config{EditMode: true, RequestLanguage: lang}
	for _, r := range rend.RenderedPlaceholders() {
		cfg.Placeholders = append(cfg.Placeholders, int64(r.Placeholder.ID))
	}
	for _, sp := range rend.RenderedStaticPlaceholders() {
		cfg.StaticPlaceholders = append(cfg.StaticPlaceholders, sp.Code)
	}
	result.Toolbar = cfg.Script()
	return result, nil
}
