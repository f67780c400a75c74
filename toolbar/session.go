package toolbar

// Session is the toolbar state of one request.
type Session struct {
	Viewer          *Viewer
	EditMode        bool
	RequestLanguage string

	cacheDisabled bool
}

// NewSession starts the toolbar state of a request. viewer is nil for
// anonymous visitors.
func NewSession(viewer *Viewer, editMode bool, language string) *Session {
	return &Session{Viewer: viewer, EditMode: editMode, RequestLanguage: language}
}

// EditModeActive reports whether the viewer is editing the page.
func (s *Session) EditModeActive() bool {
	return s != nil && s.EditMode
}

// MarkRendered reports whether a newly rendered placeholder went through the
// placeholder cache. The first placeholder rendered without it disables
// response caching for the rest of the request.
func (s *Session) MarkRendered(cached bool) {
	if !s.cacheDisabled {
		s.cacheDisabled = !cached
	}
}

// Cacheable reports whether the response may be stored by shared caches.
func (s *Session) Cacheable() bool {
	return !s.cacheDisabled && !s.EditMode
}
