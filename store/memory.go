package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/iedon/cms-render-go/content"
)

type placeholderRecord struct {
	id           content.PlaceholderID
	page         content.PageID
	slot         string
	kind         content.PlaceholderKind
	cacheable    bool
	width        int
	extraContext map[string]any
}

func (r placeholderRecord) placeholder() *content.Placeholder {
	extra := make(map[string]any, len(r.extraContext))
	for k, v := range r.extraContext {
		extra[k] = v
	}
	return &content.Placeholder{
		ID:           r.id,
		Slot:         r.slot,
		Kind:         r.kind,
		PageID:       r.page,
		Cacheable:    r.cacheable,
		DefaultWidth: r.width,
		ExtraContext: extra,
	}
}

// Memory is an in-process content store. Every call hands out fresh
// placeholder and plugin values, so requests never share render state.
type Memory struct {
	mu        sync.RWMutex
	siteID    int64
	fallbacks []string

	templates    map[string][]content.DeclaredSlot
	pages        map[content.PageID]*content.Page
	byPath       map[string]content.PageID
	placeholders map[content.PageID]map[string]placeholderRecord
	records      map[content.PlaceholderID]placeholderRecord
	plugins      map[content.PlaceholderID][]content.Plugin
	statics      map[string]StaticSeed
	nextID       content.PlaceholderID

	loads atomic.Int64
}

// NewMemory builds a store from seed. fallbacks lists the languages tried, in
// order, when a placeholder has no plugins in the requested language.
func NewMemory(seed *Seed, fallbacks []string) *Memory {
	m := &Memory{
		siteID:       seed.SiteID,
		fallbacks:    append([]string(nil), fallbacks...),
		templates:    make(map[string][]content.DeclaredSlot, len(seed.Templates)),
		pages:        make(map[content.PageID]*content.Page, len(seed.Pages)),
		byPath:       make(map[string]content.PageID, len(seed.Pages)),
		placeholders: make(map[content.PageID]map[string]placeholderRecord),
		records:      make(map[content.PlaceholderID]placeholderRecord),
		plugins:      make(map[content.PlaceholderID][]content.Plugin),
		statics:      make(map[string]StaticSeed, len(seed.Statics)),
	}
	for name, slots := range seed.Templates {
		m.templates[name] = append([]content.DeclaredSlot(nil), slots...)
	}
	for _, p := range seed.Pages {
		page := p.page(seed.SiteID)
		m.pages[page.ID] = page
		m.byPath[page.Path] = page.ID
	}

	statics := make(map[int64]content.PlaceholderKind)
	for _, s := range seed.Statics {
		m.statics[s.Code] = s
		statics[s.Draft] = content.KindStaticDraft
		statics[s.Public] = content.KindStaticPublic
	}
	for _, ph := range seed.Placeholders {
		rec := placeholderRecord{
			id:           content.PlaceholderID(ph.ID),
			page:         content.PageID(ph.Page),
			slot:         ph.Slot,
			kind:         statics[ph.ID],
			cacheable:    ph.cacheable(),
			width:        ph.Width,
			extraContext: ph.ExtraContext,
		}
		m.records[rec.id] = rec
		if rec.kind == content.KindPage {
			if m.placeholders[rec.page] == nil {
				m.placeholders[rec.page] = make(map[string]placeholderRecord)
			}
			m.placeholders[rec.page][rec.slot] = rec
		}
		if rec.id > m.nextID {
			m.nextID = rec.id
		}
	}
	for _, p := range seed.Plugins {
		id := content.PlaceholderID(p.Placeholder)
		m.plugins[id] = append(m.plugins[id], content.Plugin{
			ID:            content.PluginID(p.ID),
			PlaceholderID: id,
			ParentID:      content.PluginID(p.Parent),
			Type:          p.Type,
			Position:      p.Position,
			Language:      p.Language,
			Data:          p.Data,
		})
	}
	return m
}

// Loads reports how many times AssignPlugins ran.
func (m *Memory) Loads() int64 {
	return m.loads.Load()
}

func (m *Memory) SiteID() int64 {
	return m.siteID
}

func (m *Memory) Page(_ context.Context, id content.PageID) (*content.Page, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	page, ok := m.pages[id]
	if !ok {
		return nil, fmt.Errorf("page %d: %w", id, content.ErrPageNotFound)
	}
	copied := *page
	return &copied, nil
}

func (m *Memory) PageByPath(ctx context.Context, path string) (*content.Page, error) {
	cleaned, err := content.CleanPath(path)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	id, ok := m.byPath[cleaned]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("page %s: %w", cleaned, content.ErrPageNotFound)
	}
	return m.Page(ctx, id)
}

// Pages lists every page ordered by path.
func (m *Memory) Pages(_ context.Context) ([]*content.Page, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*content.Page, 0, len(m.pages))
	for _, page := range m.pages {
		copied := *page
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (m *Memory) DeclaredSlots(_ context.Context, page *content.Page, language string) ([]content.DeclaredSlot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]content.DeclaredSlot(nil), m.templates[page.TemplateFor(language)]...), nil
}

// Placeholders returns the placeholders of page for slots, creating records
// for declared slots that have none yet.
func (m *Memory) Placeholders(ctx context.Context, page *content.Page, language string, slots []string) ([]*content.Placeholder, error) {
	if slots == nil {
		declared, err := m.DeclaredSlots(ctx, page, language)
		if err != nil {
			return nil, err
		}
		slots = make([]string, 0, len(declared))
		for _, d := range declared {
			slots = append(slots, d.Name)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	byslot := m.placeholders[page.ID]
	if byslot == nil {
		byslot = make(map[string]placeholderRecord)
		m.placeholders[page.ID] = byslot
	}
	out := make([]*content.Placeholder, 0, len(slots))
	for _, slot := range slots {
		slot = content.NormalizeSlot(slot)
		rec, ok := byslot[slot]
		if !ok {
			m.nextID++
			rec = placeholderRecord{id: m.nextID, page: page.ID, slot: slot, kind: content.KindPage, cacheable: true}
			byslot[slot] = rec
			m.records[rec.id] = rec
		}
		out = append(out, rec.placeholder())
	}
	return out, nil
}

// ExistingPlaceholders looks up slots on page without creating records.
func (m *Memory) ExistingPlaceholders(_ context.Context, page *content.Page, slots []string) ([]*content.Placeholder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	byslot := m.placeholders[page.ID]
	out := make([]*content.Placeholder, 0, len(slots))
	for _, slot := range slots {
		if rec, ok := byslot[content.NormalizeSlot(slot)]; ok {
			out = append(out, rec.placeholder())
		}
	}
	return out, nil
}

// AssignPlugins attaches the root plugin trees of req.Placeholders.
func (m *Memory) AssignPlugins(_ context.Context, req content.LoadRequest) error {
	m.loads.Add(1)
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, ph := range req.Placeholders {
		stored := m.plugins[ph.ID]
		available := make(map[string]int)
		for _, p := range stored {
			available[p.Language]++
		}
		language, ok := pickLanguage(available, req.Language, m.fallbacks, req.IsFallback)
		if !ok {
			ph.SetPlugins(nil)
			continue
		}
		flat := make([]*content.Plugin, 0, available[language])
		for _, p := range stored {
			if p.Language != language {
				continue
			}
			copied := p
			copied.Children = nil
			flat = append(flat, &copied)
		}
		ph.SetPlugins(content.BuildTree(flat))
	}
	return nil
}

func (m *Memory) StaticPlaceholder(_ context.Context, code string, siteID int64) (*content.StaticPlaceholder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.statics[code]
	if !ok || (siteID != 0 && siteID != m.siteID) {
		return nil, fmt.Errorf("static placeholder %q: %w", code, content.ErrStaticNotFound)
	}
	return &content.StaticPlaceholder{
		Code:   s.Code,
		SiteID: m.siteID,
		Draft:  m.records[content.PlaceholderID(s.Draft)].placeholder(),
		Public: m.records[content.PlaceholderID(s.Public)].placeholder(),
	}, nil
}
