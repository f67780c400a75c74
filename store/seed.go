// Package store provides the content stores backing the page tree: an
// in-process store and a SQLite one, both seeded from YAML documents.
package store

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/iedon/cms-render-go/content"
)

// Seed is the YAML document describing a site's content.
type Seed struct {
	SiteID       int64                             `yaml:"site"`
	Templates    map[string][]content.DeclaredSlot `yaml:"templates"`
	Pages        []PageSeed                        `yaml:"pages"`
	Placeholders []PlaceholderSeed                 `yaml:"placeholders"`
	Plugins      []PluginSeed                      `yaml:"plugins"`
	Statics      []StaticSeed                      `yaml:"statics"`
}

type PageSeed struct {
	ID        int64             `yaml:"id"`
	Parent    int64             `yaml:"parent"`
	Path      string            `yaml:"path"`
	Title     string            `yaml:"title"`
	Template  string            `yaml:"template"`
	Templates map[string]string `yaml:"templates"`
}

type PlaceholderSeed struct {
	ID           int64          `yaml:"id"`
	Page         int64          `yaml:"page"`
	Slot         string         `yaml:"slot"`
	Cacheable    *bool          `yaml:"cacheable"`
	Width        int            `yaml:"width"`
	ExtraContext map[string]any `yaml:"extraContext"`
}

type PluginSeed struct {
	ID          int64          `yaml:"id"`
	Placeholder int64          `yaml:"placeholder"`
	Parent      int64          `yaml:"parent"`
	Type        string         `yaml:"type"`
	Position    int            `yaml:"position"`
	Language    string         `yaml:"language"`
	Data        map[string]any `yaml:"data"`
}

// StaticSeed declares a static placeholder; Draft and Public are placeholder ids.
type StaticSeed struct {
	Code   string `yaml:"code"`
	Draft  int64  `yaml:"draft"`
	Public int64  `yaml:"public"`
}

// ParseSeed decodes and validates a YAML seed document.
func ParseSeed(raw []byte) (*Seed, error) {
	var seed Seed
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	if err := seed.normalize(); err != nil {
		return nil, err
	}
	return &seed, nil
}

// LoadSeed reads a seed document from path.
func LoadSeed(path string) (*Seed, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}
	return ParseSeed(raw)
}

func (s *Seed) normalize() error {
	if s.SiteID == 0 {
		s.SiteID = 1
	}
	for name, slots := range s.Templates {
		for i := range slots {
			slots[i].Name = content.NormalizeSlot(slots[i].Name)
		}
		s.Templates[name] = slots
	}

	pages := make(map[int64]struct{}, len(s.Pages))
	for i := range s.Pages {
		page := &s.Pages[i]
		if page.ID <= 0 {
			return fmt.Errorf("seed page %q: id must be positive", page.Path)
		}
		if _, dup := pages[page.ID]; dup {
			return fmt.Errorf("seed page %d: duplicate id", page.ID)
		}
		pages[page.ID] = struct{}{}
		cleaned, err := content.CleanPath(page.Path)
		if err != nil {
			return fmt.Errorf("seed page %d: %w", page.ID, err)
		}
		page.Path = cleaned
	}
	for _, page := range s.Pages {
		if page.Parent == 0 {
			continue
		}
		if _, ok := pages[page.Parent]; !ok {
			return fmt.Errorf("seed page %d: unknown parent %d", page.ID, page.Parent)
		}
	}
	if err := checkAcyclic(s.Pages); err != nil {
		return err
	}

	placeholders := make(map[int64]struct{}, len(s.Placeholders))
	for i := range s.Placeholders {
		ph := &s.Placeholders[i]
		if ph.ID <= 0 {
			return fmt.Errorf("seed placeholder %q: id must be positive", ph.Slot)
		}
		if _, dup := placeholders[ph.ID]; dup {
			return fmt.Errorf("seed placeholder %d: duplicate id", ph.ID)
		}
		placeholders[ph.ID] = struct{}{}
		ph.Slot = content.NormalizeSlot(ph.Slot)
	}
	for _, plugin := range s.Plugins {
		if _, ok := placeholders[plugin.Placeholder]; !ok {
			return fmt.Errorf("seed plugin %d: unknown placeholder %d", plugin.ID, plugin.Placeholder)
		}
	}
	for _, static := range s.Statics {
		for _, id := range []int64{static.Draft, static.Public} {
			if _, ok := placeholders[id]; !ok {
				return fmt.Errorf("seed static %q: unknown placeholder %d", static.Code, id)
			}
		}
	}
	return nil
}

func checkAcyclic(pages []PageSeed) error {
	parent := make(map[int64]int64, len(pages))
	for _, page := range pages {
		parent[page.ID] = page.Parent
	}
	for _, page := range pages {
		steps := 0
		for id := page.Parent; id != 0; id = parent[id] {
			if id == page.ID || steps > len(pages) {
				return fmt.Errorf("seed page %d: parent chain forms a cycle", page.ID)
			}
			steps++
		}
	}
	return nil
}

func (p PlaceholderSeed) cacheable() bool {
	return p.Cacheable == nil || *p.Cacheable
}

func (p PageSeed) page(siteID int64) *content.Page {
	templates := make(map[string]string, len(p.Templates))
	for k, v := range p.Templates {
		templates[k] = v
	}
	return &content.Page{
		ID:        content.PageID(p.ID),
		ParentID:  content.PageID(p.Parent),
		SiteID:    siteID,
		Path:      p.Path,
		Title:     p.Title,
		Template:  p.Template,
		Templates: templates,
	}
}

// pickLanguage chooses the language whose plugins a placeholder renders.
// Fallback languages are consulted only when strict is false.
func pickLanguage(available map[string]int, language string, fallbacks []string, strict bool) (string, bool) {
	if available[language] > 0 {
		return language, true
	}
	if strict {
		return "", false
	}
	for _, candidate := range fallbacks {
		if candidate != language && available[candidate] > 0 {
			return candidate, true
		}
	}
	return "", false
}
