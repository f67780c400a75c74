package templatex

import (
	"fmt"
	"html/template"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	FuncPlaceholder          = "placeholder"
	FuncPlaceholderOr        = "placeholder_or"
	FuncInheritedPlaceholder = "inherited_placeholder"
	FuncStaticPlaceholder    = "static_placeholder"
	FuncAssets               = "assets"

	DefaultLayout        = "default.html"
	pluginTemplatePrefix = "plugins/"
	defaultInlineCache   = 256
)

// Engine holds page layouts and plugin templates. Layouts are never executed
// directly; callers get a clone bound to request specific functions.
type Engine struct {
	dir       string
	StaticDir string

	mu      sync.RWMutex
	layouts *template.Template
	plugins *template.Template
	inline  *lru.Cache[string, *template.Template]
}

// PageData represents the data model handed to page layouts.
type PageData struct {
	Title     string
	PageTitle string
	Path      string
	Language  string
	Languages []string
	SiteName  string
	BaseURL   string
	EditMode  bool
}

func baseFuncs() template.FuncMap {
	stub := func(string) template.HTML { return "" }
	return template.FuncMap{
		FuncPlaceholder:          stub,
		FuncInheritedPlaceholder: stub,
		FuncStaticPlaceholder:    stub,
		FuncAssets:               stub,
		FuncPlaceholderOr:        func(string, string) template.HTML { return "" },
		"safeHTML": func(v any) template.HTML {
			switch value := v.(type) {
			case template.HTML:
				return value
			case string:
				return template.HTML(value)
			default:
				return ""
			}
		},
		"baseHref": func(base string) string {
			base = strings.TrimSpace(base)
			if base == "" || base == "/" {
				return "/"
			}
			return "/" + strings.Trim(base, "/") + "/"
		},
	}
}

// Load instantiates an engine using files from templateDir: layouts are the
// top level *.html files plus partials/*.html, plugin templates live in plugins/*.html.
func Load(templateDir string) (*Engine, error) {
	if templateDir == "" {
		return nil, fmt.Errorf("template directory not configured")
	}
	inline, err := lru.New[string, *template.Template](defaultInlineCache)
	if err != nil {
		return nil, fmt.Errorf("inline template cache: %w", err)
	}
	engine := &Engine{dir: templateDir, inline: inline}
	if err := engine.Reload(); err != nil {
		return nil, err
	}

	assetsPath := filepath.Join(templateDir, "assets")
	if info, err := os.Stat(assetsPath); err == nil && info.IsDir() {
		engine.StaticDir = assetsPath
	}
	return engine, nil
}

// Reload re-parses every template from disk and drops compiled inline templates.
func (e *Engine) Reload() error {
	files, err := globAll(e.dir, "*.html", filepath.Join("partials", "*.html"))
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no templates found in %s", e.dir)
	}
	layouts, err := template.New("root").Funcs(baseFuncs()).ParseFiles(files...)
	if err != nil {
		return fmt.Errorf("parse layouts: %w", err)
	}

	pluginFiles, err := globAll(e.dir, filepath.Join("plugins", "*.html"))
	if err != nil {
		return err
	}
	plugins := template.New("plugins").Funcs(baseFuncs())
	for _, file := range pluginFiles {
		raw, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("read %s: %w", file, err)
		}
		name := pluginTemplatePrefix + filepath.Base(file)
		if _, err := plugins.New(name).Parse(string(raw)); err != nil {
			return fmt.Errorf("parse %s: %w", name, err)
		}
	}

	e.mu.Lock()
	e.layouts = layouts
	e.plugins = plugins
	e.mu.Unlock()
	e.inline.Purge()
	return nil
}

func globAll(dir string, patterns ...string) ([]string, error) {
	files := make([]string, 0)
	for _, pattern := range patterns {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, fmt.Errorf("glob %s: %w", pattern, err)
		}
		files = append(files, matches...)
	}
	sort.Strings(files)
	return files, nil
}

// HasLayout reports whether a layout named name was loaded.
func (e *Engine) HasLayout(name string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.layouts.Lookup(name) != nil
}

// Layout returns a private copy of the named layout with funcs bound.
func (e *Engine) Layout(name string, funcs template.FuncMap) (*template.Template, error) {
	e.mu.RLock()
	layouts := e.layouts
	e.mu.RUnlock()

	if name == "" {
		name = DefaultLayout
	}
	if layouts.Lookup(name) == nil {
		return nil, fmt.Errorf("layout %q is not defined", name)
	}
	clone, err := layouts.Clone()
	if err != nil {
		return nil, fmt.Errorf("clone layouts: %w", err)
	}
	return clone.Funcs(funcs).Lookup(name), nil
}

// Resolve turns a plugin template reference into a compiled template. A
// reference naming a file under plugins/ resolves to it; anything else is
// treated as inline template source.
func (e *Engine) Resolve(ref string) (*template.Template, error) {
	if strings.HasPrefix(ref, pluginTemplatePrefix) && path.Ext(ref) == ".html" {
		e.mu.RLock()
		tpl := e.plugins.Lookup(ref)
		e.mu.RUnlock()
		if tpl == nil {
			return nil, fmt.Errorf("plugin template %q is not defined", ref)
		}
		return tpl, nil
	}

	if tpl, ok := e.inline.Get(ref); ok {
		return tpl, nil
	}
	tpl, err := template.New("inline").Funcs(baseFuncs()).Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("parse inline template: %w", err)
	}
	e.inline.Add(ref, tpl)
	return tpl, nil
}

// Execute renders tpl against data.
func (e *Engine) Execute(tpl *template.Template, data any) (string, error) {
	var sb strings.Builder
	if err := tpl.Execute(&sb, data); err != nil {
		return "", err
	}
	return sb.String(), nil
}
