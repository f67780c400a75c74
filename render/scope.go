package render

import (
	"html/template"

	"github.com/iedon/cms-render-go/cache"
	"github.com/iedon/cms-render-go/content"
	"github.com/iedon/cms-render-go/plugins"
	"github.com/iedon/cms-render-go/toolbar"
)

type contentKey struct {
	site        int64
	language    string
	placeholder content.PlaceholderID
}

type pageIndex struct {
	page  *content.Page
	slots map[string]*content.Placeholder
	// complete is false when only an inheritance pass primed the page.
	complete bool
}

// Bookkeeping is the toolbar state accumulated for one placeholder.
type Bookkeeping struct {
	Plugins      []*content.Plugin
	Restrictions toolbar.RestrictionsCache
}

// Scope memoizes lookups for the lifetime of one request. It is not safe for
// concurrent use.
type Scope struct {
	templates   map[string]*template.Template
	pluginTypes map[string]plugins.Plugin
	content     map[contentKey]*cache.Record
	pages       map[content.PageID]*pageIndex
	bookkeeping map[content.PlaceholderID]*Bookkeeping
}

// NewScope returns an empty memo for one request.
func NewScope() *Scope {
	return &Scope{
		templates:   make(map[string]*template.Template),
		pluginTypes: make(map[string]plugins.Plugin),
		content:     make(map[contentKey]*cache.Record),
		pages:       make(map[content.PageID]*pageIndex),
		bookkeeping: make(map[content.PlaceholderID]*Bookkeeping),
	}
}

// cached returns the memoized external cache lookup for key. known is false
// when the external cache was never asked; a known miss returns a nil record.
func (s *Scope) cached(key contentKey) (rec *cache.Record, known bool) {
	rec, known = s.content[key]
	return rec, known
}

func (s *Scope) remember(key contentKey, rec *cache.Record) {
	s.content[key] = rec
}

func (s *Scope) page(id content.PageID) (*pageIndex, bool) {
	idx, ok := s.pages[id]
	return idx, ok
}

func (s *Scope) setPage(idx *pageIndex) {
	s.pages[idx.page.ID] = idx
}

// Bookkeeping returns the toolbar state of placeholder id, creating it on first use.
func (s *Scope) Bookkeeping(id content.PlaceholderID) *Bookkeeping {
	bk, ok := s.bookkeeping[id]
	if !ok {
		bk = &Bookkeeping{Restrictions: make(toolbar.RestrictionsCache)}
		s.bookkeeping[id] = bk
	}
	return bk
}

// peekBookkeeping is Bookkeeping without creating an entry.
func (s *Scope) peekBookkeeping(id content.PlaceholderID) *Bookkeeping {
	if bk, ok := s.bookkeeping[id]; ok {
		return bk
	}
	return &Bookkeeping{Restrictions: make(toolbar.RestrictionsCache)}
}
