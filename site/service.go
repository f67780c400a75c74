package site

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/language"

	"github.com/iedon/cms-render-go/cache"
	"github.com/iedon/cms-render-go/config"
	"github.com/iedon/cms-render-go/content"
	"github.com/iedon/cms-render-go/plugins"
	"github.com/iedon/cms-render-go/render"
	"github.com/iedon/cms-render-go/renderer"
	"github.com/iedon/cms-render-go/templatex"
	"github.com/iedon/cms-render-go/toolbar"
)

const (
	attrRequestID = "cms.request.id"
	attrPath      = "cms.page.path"
)

// Store is the content store pages are rendered from.
type Store interface {
	content.PageTree
	content.Loader
	content.StaticSource
	PageByPath(ctx context.Context, path string) (*content.Page, error)
	Pages(ctx context.Context) ([]*content.Page, error)
}

// Service orchestrates page rendering, the placeholder cache and static builds.
type Service struct {
	cfg       *config.Config
	store     Store
	cache     cache.Store
	templates *templatex.Engine
	renderer  *renderer.Renderer
	pool      *plugins.Pool
	procs     plugins.Processors

	languages []string
	matcher   language.Matcher

	logger *slog.Logger
	tracer trace.Tracer
}

// NewService wires the shipped plugins, the configured processors and slot
// rules. placeholderCache may be nil to run without the external cache.
func NewService(cfg *config.Config, store Store, placeholderCache cache.Store, templates *templatex.Engine, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	rend := renderer.New()

	pool := plugins.NewPool()
	if err := plugins.RegisterBuiltins(pool, rend); err != nil {
		return nil, err
	}
	rules := make([]plugins.SlotRule, 0, len(cfg.Placeholders))
	for _, ph := range cfg.Placeholders {
		if len(ph.Plugins) == 0 {
			continue
		}
		rules = append(rules, plugins.SlotRule{
			Slot:     content.NormalizeSlot(ph.Slot),
			Template: ph.Template,
			Plugins:  ph.Plugins,
		})
	}
	pool.SetSlotRules(rules)

	procs, err := plugins.LookupProcessors(cfg.PluginContextProcessors, cfg.PluginProcessors, rend)
	if err != nil {
		return nil, fmt.Errorf("plugin processors: %w", err)
	}

	// The default language goes first so the matcher falls back to it.
	languages := []string{cfg.DefaultLanguage}
	for _, lang := range cfg.Languages {
		if lang != cfg.DefaultLanguage {
			languages = append(languages, lang)
		}
	}
	tags := make([]language.Tag, 0, len(languages))
	for _, lang := range languages {
		tags = append(tags, language.Make(lang))
	}

	return &Service{
		cfg:       cfg,
		store:     store,
		cache:     placeholderCache,
		templates: templates,
		renderer:  rend,
		pool:      pool,
		procs:     procs,
		languages: languages,
		matcher:   language.NewMatcher(tags),
		logger:    logger.With("component", "site"),
		tracer:    otel.Tracer("github.com/iedon/cms-render-go/site"),
	}, nil
}

// RegisterPlugin adds a plugin type next to the shipped ones.
func (s *Service) RegisterPlugin(p plugins.Plugin) error {
	return s.pool.Register(p)
}

// Languages lists the configured languages, the default one first.
func (s *Service) Languages() []string {
	return append([]string(nil), s.languages...)
}

// NegotiateLanguage picks the configured language best matching an explicit
// request and then the Accept-Language header.
func (s *Service) NegotiateLanguage(requested, acceptLanguage string) string {
	if requested != "" {
		if tag, err := language.Parse(requested); err == nil {
			if _, idx, conf := s.matcher.Match(tag); conf != language.No {
				return s.languages[idx]
			}
		}
	}
	if acceptLanguage != "" {
		if tags, _, err := language.ParseAcceptLanguage(acceptLanguage); err == nil && len(tags) > 0 {
			if _, idx, conf := s.matcher.Match(tags...); conf != language.No {
				return s.languages[idx]
			}
		}
	}
	return s.cfg.DefaultLanguage
}

// PurgeCache drops every cached placeholder rendering.
func (s *Service) PurgeCache(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	if err := s.cache.Purge(ctx); err != nil {
		return fmt.Errorf("purge placeholder cache: %w", err)
	}
	s.logger.Info("placeholder cache purged")
	return nil
}

// CacheTTL is how long visitors may keep fully cacheable pages.
func (s *Service) CacheTTL() int {
	return s.cfg.Cache.TTLSec
}

// HighlightCSS returns the stylesheet matching highlighted code blocks.
func (s *Service) HighlightCSS() string {
	return s.renderer.HighlightCSS()
}

// ThemeDir returns the directory containing template assets, if any.
func (s *Service) ThemeDir() string {
	return s.templates.StaticDir
}

func (s *Service) deps() render.Deps {
	return render.Deps{
		Pages:        s.store,
		Loader:       s.store,
		Pool:         s.pool,
		Templates:    s.templates,
		Cache:        s.cache,
		CacheEnabled: s.cfg.Cache.Enabled && s.cache != nil,
		Processors:   s.procs,
		ExtraContext: s.cfg.ExtraContextFor,
		SiteID:       s.cfg.SiteID,
		Logger:       s.logger,
		Tracer:       s.tracer,
	}
}

func (s *Service) contentRenderer(page *content.Page, session *toolbar.Session) *render.ContentRenderer {
	if s.cfg.LegacyToolbar {
		return render.NewLegacyRenderer(s.deps(), page, session).ContentRenderer
	}
	return render.NewContentRenderer(s.deps(), page, session)
}

// layoutFor picks the page layout for language, using the default layout when
// the page names one that is not loaded.
func (s *Service) layoutFor(page *content.Page, lang string) (string, error) {
	name := page.TemplateFor(lang)
	if name != "" && s.templates.HasLayout(name) {
		return name, nil
	}
	if s.templates.HasLayout(templatex.DefaultLayout) {
		s.logger.Debug("layout fallback", "page", page.Path, "layout", name)
		return templatex.DefaultLayout, nil
	}
	return "", fmt.Errorf("page %s: %w: %q", page.Path, ErrNoLayout, name)
}
