package content

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

type (
	PageID        int64
	PlaceholderID int64
	PluginID      int64
)

// Page is a node of the page tree. ParentID zero marks the root.
type Page struct {
	ID        PageID
	ParentID  PageID
	SiteID    int64
	Path      string
	Title     string
	Template  string
	Templates map[string]string
}

// HasParent reports whether the page sits below another page.
func (p *Page) HasParent() bool {
	return p != nil && p.ParentID != 0
}

// TemplateFor returns the layout selected for language, falling back to the default layout.
func (p *Page) TemplateFor(language string) string {
	if p == nil {
		return ""
	}
	if name, ok := p.Templates[language]; ok && strings.TrimSpace(name) != "" {
		return name
	}
	return p.Template
}

// DeclaredSlot describes a slot declared by a page layout.
type DeclaredSlot struct {
	Name    string `yaml:"name"`
	Inherit bool   `yaml:"inherit"`
}

// PlaceholderKind discriminates page placeholders from the two static variants.
type PlaceholderKind int

const (
	KindPage PlaceholderKind = iota
	KindStaticDraft
	KindStaticPublic
)

func (k PlaceholderKind) String() string {
	switch k {
	case KindPage:
		return "page"
	case KindStaticDraft:
		return "static-draft"
	case KindStaticPublic:
		return "static-public"
	default:
		return "unknown"
	}
}

// Placeholder is the container bound to a slot of a page, or one half of a static placeholder.
type Placeholder struct {
	ID           PlaceholderID
	Slot         string
	Kind         PlaceholderKind
	PageID       PageID
	Cacheable    bool
	DefaultWidth int
	ExtraContext map[string]any

	plugins  []*Plugin
	resolved bool
}

// IsStatic reports whether the placeholder belongs to a static placeholder.
func (p *Placeholder) IsStatic() bool {
	return p.Kind == KindStaticDraft || p.Kind == KindStaticPublic
}

// SetPlugins attaches the root plugin list and marks the placeholder as resolved.
func (p *Placeholder) SetPlugins(roots []*Plugin) {
	p.plugins = roots
	p.resolved = true
}

// Plugins returns the attached root plugins. The boolean is false when the
// placeholder was never resolved, which differs from resolved but empty.
func (p *Placeholder) Plugins() ([]*Plugin, bool) {
	return p.plugins, p.resolved
}

// HasPlugins reports whether a resolved plugin tree with at least one node is attached.
func (p *Placeholder) HasPlugins() bool {
	return p.resolved && len(p.plugins) > 0
}

// ResetPlugins drops the attached plugin tree.
func (p *Placeholder) ResetPlugins() {
	p.plugins = nil
	p.resolved = false
}

// Plugin is a single content node.
type Plugin struct {
	ID            PluginID
	PlaceholderID PlaceholderID
	ParentID      PluginID
	Type          string
	Position      int
	Language      string
	Data          map[string]any
	Children      []*Plugin
}

// String returns the plugin data value stored under key, or "".
func (p *Plugin) String(key string) string {
	if p == nil || p.Data == nil {
		return ""
	}
	switch v := p.Data[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// StaticPlaceholder pairs a draft and a public placeholder under one code.
type StaticPlaceholder struct {
	Code   string
	SiteID int64
	Draft  *Placeholder
	Public *Placeholder
}

// NormalizeSlot canonicalises a slot name so lookups are stable across input sources.
func NormalizeSlot(slot string) string {
	return norm.NFC.String(strings.TrimSpace(slot))
}
