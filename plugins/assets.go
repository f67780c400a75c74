package plugins

import "sort"

// Assets collects deferred page assets (stylesheets, scripts) registered by
// plugins while rendering. Items keep their first registration order and are
// unique per namespace.
type Assets struct {
	items map[string][]string
	seen  map[string]map[string]struct{}
}

// Mark records how many items each namespace held at a point in time.
type Mark map[string]int

func NewAssets() *Assets {
	return &Assets{items: make(map[string][]string), seen: make(map[string]map[string]struct{})}
}

// Add registers item under namespace; duplicates are ignored.
func (a *Assets) Add(namespace, item string) {
	if item == "" {
		return
	}
	set := a.seen[namespace]
	if set == nil {
		set = make(map[string]struct{})
		a.seen[namespace] = set
	}
	if _, ok := set[item]; ok {
		return
	}
	set[item] = struct{}{}
	a.items[namespace] = append(a.items[namespace], item)
}

func (a *Assets) Items(namespace string) []string {
	return append([]string(nil), a.items[namespace]...)
}

// Namespaces lists namespaces holding at least one item, sorted.
func (a *Assets) Namespaces() []string {
	out := make([]string, 0, len(a.items))
	for ns, items := range a.items {
		if len(items) > 0 {
			out = append(out, ns)
		}
	}
	sort.Strings(out)
	return out
}

func (a *Assets) Mark() Mark {
	m := make(Mark, len(a.items))
	for ns, items := range a.items {
		m[ns] = len(items)
	}
	return m
}

// Since returns the items added after mark was taken, or nil when there are none.
func (a *Assets) Since(mark Mark) map[string][]string {
	var out map[string][]string
	for ns, items := range a.items {
		start := mark[ns]
		if start >= len(items) {
			continue
		}
		if out == nil {
			out = make(map[string][]string)
		}
		out[ns] = append([]string(nil), items[start:]...)
	}
	return out
}

// Merge registers every item of changes, namespaces in sorted order.
func (a *Assets) Merge(changes map[string][]string) {
	namespaces := make([]string, 0, len(changes))
	for ns := range changes {
		namespaces = append(namespaces, ns)
	}
	sort.Strings(namespaces)
	for _, ns := range namespaces {
		for _, item := range changes[ns] {
			a.Add(ns, item)
		}
	}
}
