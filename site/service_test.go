package site

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iedon/cms-render-go/cache"
	"github.com/iedon/cms-render-go/config"
	"github.com/iedon/cms-render-go/content"
	"github.com/iedon/cms-render-go/store"
	"github.com/iedon/cms-render-go/templatex"
	"github.com/iedon/cms-render-go/toolbar"
)

const siteSeed = `
templates:
  default.html:
    - {name: content}
    - {name: banner, inherit: true}
    - {name: sidebar}
pages:
  - {id: 1, path: /, title: Home, template: default.html}
  - {id: 2, parent: 1, path: /about, title: About, template: default.html}
placeholders:
  - {id: 10, page: 1, slot: banner}
  - {id: 12, page: 1, slot: content}
  - {id: 20, page: 2, slot: content}
  - {id: 30, slot: footer}
  - {id: 31, slot: footer}
plugins:
  - {id: 100, placeholder: 10, type: TextPlugin, language: en, data: {body: Banner}}
  - {id: 120, placeholder: 12, type: RawHTMLPlugin, language: en, data: {html: "<p>home</p>"}}
  - {id: 121, placeholder: 12, type: RawHTMLPlugin, language: de, data: {html: "<p>startseite</p>"}}
  - {id: 200, placeholder: 20, type: CodePlugin, language: en, data: {code: "x := 1", language: go}}
  - {id: 201, placeholder: 20, type: CodePlugin, language: de, data: {code: "x := 2", language: go}}
  - {id: 300, placeholder: 30, type: RawHTMLPlugin, language: en, data: {html: draft}}
  - {id: 310, placeholder: 31, type: RawHTMLPlugin, language: en, data: {html: public}}
statics:
  - {code: footer, draft: 30, public: 31}
`

const siteLayout = `<!DOCTYPE html><html><head><title>{{.PageTitle}}</title>{{assets "css"}}</head><body>
<main>{{placeholder "content"}}</main>
<aside>{{inherited_placeholder "banner"}}</aside>
<nav>{{placeholder_or "sidebar" "<em>empty</em>"}}</nav>
<footer>{{static_placeholder "footer"}}{{static_placeholder "nope"}}</footer>
</body></html>`

type siteFixture struct {
	svc   *Service
	store *store.Memory
	cfg   *config.Config
}

func newSiteFixture(t *testing.T, tune ...func(*config.Config)) *siteFixture {
	t.Helper()
	seed, err := store.ParseSeed([]byte(siteSeed))
	require.NoError(t, err)
	mem := store.NewMemory(seed, nil)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "default.html"), []byte(siteLayout), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "assets"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "assets", "site.css"), []byte("body{}"), 0o644))
	engine, err := templatex.Load(dir)
	require.NoError(t, err)

	cfg := &config.Config{
		SiteID:             1,
		SiteName:           "Test",
		DefaultLanguage:    "en",
		Languages:          []string{"en", "de"},
		OutputDir:          filepath.Join(t.TempDir(), "dist"),
		Cache:              config.CacheConfig{Enabled: true, Backend: "memory", TTLSec: 60},
		StaticPlaceholders: []string{"footer"},
	}
	for _, fn := range tune {
		fn(cfg)
	}
	svc, err := NewService(cfg, mem, cache.NewMemory(time.Minute, time.Minute), engine, nil)
	require.NoError(t, err)
	return &siteFixture{svc: svc, store: mem, cfg: cfg}
}

func editorViewer() *toolbar.Viewer {
	return &toolbar.Viewer{Name: "ed", Staff: true, Permissions: []string{toolbar.PermAddPlugin, toolbar.PermEditStatic}}
}

func TestRenderPage_Home(t *testing.T) {
	f := newSiteFixture(t)
	res, err := f.svc.RenderPage(context.Background(), PageRequest{Path: "/"})
	require.NoError(t, err)

	html := string(res.HTML)
	assert.Contains(t, html, "<title>Home - Test</title>")
	assert.Contains(t, html, "<main><p>home</p></main>")
	assert.Contains(t, html, "Banner")
	assert.Contains(t, html, "<nav><em>empty</em></nav>")
	assert.Contains(t, html, "<footer>public</footer>")
	assert.NotContains(t, html, "cms-assets")
	assert.NotContains(t, html, "CMS.config")

	assert.True(t, res.Cacheable)
	assert.Equal(t, "en", res.Language)
	assert.Len(t, res.Rendered, 4)
	_, err = uuid.Parse(res.RequestID)
	assert.NoError(t, err)
}

func TestRenderPage_Language(t *testing.T) {
	f := newSiteFixture(t)
	res, err := f.svc.RenderPage(context.Background(), PageRequest{Path: "/", Language: "de"})
	require.NoError(t, err)
	assert.Equal(t, "de", res.Language)
	assert.Contains(t, string(res.HTML), "<main><p>startseite</p></main>")
	assert.NotContains(t, string(res.HTML), "Banner")
}

func TestNegotiateLanguage(t *testing.T) {
	f := newSiteFixture(t)
	cases := []struct {
		requested, accept, want string
	}{
		{"de", "", "de"},
		{"fr", "", "en"},
		{"", "de-DE,de;q=0.9", "de"},
		{"", "fr, de;q=0.5", "de"},
		{"", "", "en"},
		{"!!", "de", "de"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, f.svc.NegotiateLanguage(tc.requested, tc.accept), "%q/%q", tc.requested, tc.accept)
	}
}

func TestRenderPage_InheritsAndInjectsAssets(t *testing.T) {
	f := newSiteFixture(t)
	res, err := f.svc.RenderPage(context.Background(), PageRequest{Path: "/about/"})
	require.NoError(t, err)

	html := string(res.HTML)
	assert.Contains(t, html, "Banner")
	assert.Contains(t, html, `<link rel="stylesheet" href="/theme/highlight.css">`)
	assert.Contains(t, html, "cms-code")
}

func TestRenderPage_SecondRequestServedFromCache(t *testing.T) {
	f := newSiteFixture(t)
	ctx := context.Background()

	first, err := f.svc.RenderPage(ctx, PageRequest{Path: "/about"})
	require.NoError(t, err)
	loads := f.store.Loads()
	require.Positive(t, loads)

	second, err := f.svc.RenderPage(ctx, PageRequest{Path: "/about"})
	require.NoError(t, err)
	assert.Equal(t, loads, f.store.Loads())
	assert.Equal(t, string(first.HTML), string(second.HTML))
	assert.True(t, second.Cacheable)
	assert.NotEqual(t, first.RequestID, second.RequestID)

	require.NoError(t, f.svc.PurgeCache(ctx))
	_, err = f.svc.RenderPage(ctx, PageRequest{Path: "/about"})
	require.NoError(t, err)
	assert.Greater(t, f.store.Loads(), loads)
}

func TestRenderPage_EditMode(t *testing.T) {
	f := newSiteFixture(t, func(c *config.Config) { c.Minify = true })
	res, err := f.svc.RenderPage(context.Background(), PageRequest{Path: "/", Viewer: editorViewer(), EditMode: true})
	require.NoError(t, err)

	html := string(res.HTML)
	assert.False(t, res.Cacheable)
	assert.Contains(t, html, "cms-placeholder cms-placeholder-12")
	assert.Contains(t, html, "cms-plugin-start cms-plugin-120")
	assert.Contains(t, html, "CMS.config")
	assert.Contains(t, html, `"static_placeholders":["footer"]`)
	assert.Contains(t, html, "draft")
	assert.NotContains(t, html, "public")
}

func TestRenderPage_Errors(t *testing.T) {
	f := newSiteFixture(t)
	ctx := context.Background()

	_, err := f.svc.RenderPage(ctx, PageRequest{Path: "/missing"})
	assert.ErrorIs(t, err, content.ErrPageNotFound)

	_, err = f.svc.RenderPage(ctx, PageRequest{Path: "/api/cache"})
	assert.ErrorIs(t, err, ErrReservedPath)

	_, err = f.svc.RenderPage(ctx, PageRequest{Path: "/../etc"})
	assert.ErrorIs(t, err, content.ErrInvalidPath)

	_, err = f.svc.RenderPage(ctx, PageRequest{Path: "/", EditMode: true})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestRenderPage_Minify(t *testing.T) {
	plain := newSiteFixture(t)
	minified := newSiteFixture(t, func(c *config.Config) { c.Minify = true })
	ctx := context.Background()

	a, err := plain.svc.RenderPage(ctx, PageRequest{Path: "/"})
	require.NoError(t, err)
	b, err := minified.svc.RenderPage(ctx, PageRequest{Path: "/"})
	require.NoError(t, err)
	assert.Less(t, len(b.HTML), len(a.HTML))
	assert.Contains(t, string(b.HTML), "<p>home</p>")
}

func TestRenderStructure(t *testing.T) {
	f := newSiteFixture(t)
	ctx := context.Background()

	_, err := f.svc.RenderStructure(ctx, PageRequest{Path: "/"})
	require.ErrorIs(t, err, ErrForbidden)

	res, err := f.svc.RenderStructure(ctx, PageRequest{Path: "/", Viewer: editorViewer()})
	require.NoError(t, err)
	require.Len(t, res.Entries, 4)

	slots := make([]string, 0, 3)
	for _, e := range res.Entries[:3] {
		slots = append(slots, e.Slot)
	}
	assert.ElementsMatch(t, []string{"content", "banner", "sidebar"}, slots)
	assert.Equal(t, "footer", res.Entries[3].Static)
	assert.Equal(t, int64(30), res.Entries[3].Placeholder)
	assert.Contains(t, res.Toolbar, `"static_placeholders":["footer"]`)

	viewer := &toolbar.Viewer{Name: "writer", Permissions: []string{toolbar.PermAddPlugin}}
	res, err = f.svc.RenderStructure(ctx, PageRequest{Path: "/", Viewer: viewer})
	require.NoError(t, err)
	assert.Len(t, res.Entries, 3)
}

func TestBuildStatic(t *testing.T) {
	f := newSiteFixture(t)
	require.NoError(t, f.svc.BuildStatic(context.Background()))

	out := f.cfg.OutputDir
	for _, file := range []string{
		"index.html",
		filepath.Join("about", "index.html"),
		filepath.Join("de", "index.html"),
		filepath.Join("de", "about", "index.html"),
		filepath.Join("theme", "highlight.css"),
		filepath.Join("theme", "site.css"),
	} {
		assert.FileExists(t, filepath.Join(out, file))
	}
	raw, err := os.ReadFile(filepath.Join(out, "de", "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "startseite")

	require.NoError(t, f.svc.BuildStatic(context.Background()))
	assert.FileExists(t, filepath.Join(out, "index.html"))
}

func TestOutputFile(t *testing.T) {
	assert.Equal(t, "index.html", outputFile("/", "en", "en"))
	assert.Equal(t, filepath.Join("a", "b", "index.html"), outputFile("/a/b", "en", "en"))
	assert.Equal(t, filepath.Join("de", "a", "index.html"), outputFile("/a", "de", "en"))
}
