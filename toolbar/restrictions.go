package toolbar

import (
	"github.com/iedon/cms-render-go/content"
	"github.com/iedon/cms-render-go/plugins"
)

// Restriction lists the plugin types a plugin accepts as children and the
// types it may be nested under.
type Restriction struct {
	Children []string
	Parents  []string
}

// RestrictionsCache memoizes restrictions per plugin type inside one placeholder.
type RestrictionsCache map[string]Restriction

// Restrictions computes the child and parent restrictions of inst.
func Restrictions(inst *content.Plugin, pool *plugins.Pool, slot, template string, cache RestrictionsCache) Restriction {
	if r, ok := cache[inst.Type]; ok {
		return r
	}

	var r Restriction
	if plugin, err := pool.Get(inst.Type); err == nil {
		info := plugin.Info()
		if info.AllowChildren {
			if len(info.ChildTypes) > 0 {
				for _, t := range info.ChildTypes {
					if _, err := pool.Get(t); err == nil {
						r.Children = append(r.Children, t)
					}
				}
			} else {
				for _, allowed := range pool.AllowedFor(slot, template) {
					r.Children = append(r.Children, allowed.Info().Type)
				}
			}
		}
		r.Parents = append(r.Parents, info.ParentTypes...)
	}
	if r.Children == nil {
		r.Children = []string{}
	}
	if r.Parents == nil {
		r.Parents = []string{}
	}

	if cache != nil {
		cache[inst.Type] = r
	}
	return r
}
