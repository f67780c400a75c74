package render

import "github.com/iedon/cms-render-go/content"

// RenderedPlaceholder records a placeholder rendered during a request. Two
// records are the same when they refer to the same placeholder, whatever
// language or flags they were rendered with.
type RenderedPlaceholder struct {
	Placeholder *content.Placeholder
	Language    string
	SiteID      int64
	Cached      bool
	Editable    bool
}

// renderedSet keeps the first record of every placeholder in insertion order.
type renderedSet struct {
	order []RenderedPlaceholder
	seen  map[content.PlaceholderID]struct{}
}

// add reports whether r was the first record of its placeholder.
func (s *renderedSet) add(r RenderedPlaceholder) bool {
	if s.seen == nil {
		s.seen = make(map[content.PlaceholderID]struct{})
	}
	if _, ok := s.seen[r.Placeholder.ID]; ok {
		return false
	}
	s.seen[r.Placeholder.ID] = struct{}{}
	s.order = append(s.order, r)
	return true
}

func (s *renderedSet) all() []RenderedPlaceholder {
	return append([]RenderedPlaceholder(nil), s.order...)
}

type staticSet struct {
	order []*content.StaticPlaceholder
	seen  map[string]struct{}
}

func (s *staticSet) add(sp *content.StaticPlaceholder) {
	if s.seen == nil {
		s.seen = make(map[string]struct{})
	}
	if _, ok := s.seen[sp.Code]; ok {
		return
	}
	s.seen[sp.Code] = struct{}{}
	s.order = append(s.order, sp)
}
