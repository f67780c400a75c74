// Package plugins defines the content plugin contract, the plugin pool and
// the plugins shipped with the service.
package plugins

import (
	"sort"
	"strings"
	"sync"

	"github.com/iedon/cms-render-go/content"
)

// Info describes a plugin type.
type Info struct {
	Type   string
	Name   string
	Module string
	// RendersContent is false for structural plugins that produce no markup themselves.
	RendersContent bool
	AllowChildren  bool
	// ChildTypes restricts which plugin types may be nested; empty allows any.
	ChildTypes []string
	// ParentTypes restricts where the plugin may be placed; empty allows any.
	ParentTypes []string
	System      bool
}

// Plugin is the render contract every plugin type implements.
type Plugin interface {
	Info() Info
	// Template returns a named template or an inline template source.
	Template(inst *content.Plugin) string
	// Render returns the context the plugin template is executed against.
	Render(ctx *Context, inst *content.Plugin, slot string) (*Context, error)
}

// SlotRule limits the plugin types offered for a slot, optionally for one layout only.
type SlotRule struct {
	Slot     string
	Template string
	Plugins  []string
}

// Pool is the registry of plugin types keyed by type identifier.
type Pool struct {
	mu      sync.RWMutex
	plugins map[string]Plugin
	rules   []SlotRule
}

func NewPool() *Pool {
	return &Pool{plugins: make(map[string]Plugin)}
}

// Register adds a plugin type.
func (p *Pool) Register(plugin Plugin) error {
	info := plugin.Info()
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.plugins[info.Type]; exists {
		return ErrDuplicatePlugin
	}
	p.plugins[info.Type] = plugin
	return nil
}

// Get resolves a plugin type identifier.
func (p *Pool) Get(pluginType string) (Plugin, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	plugin, ok := p.plugins[pluginType]
	if !ok {
		return nil, ErrUnknownPlugin
	}
	return plugin, nil
}

// All returns every registered plugin ordered by module, then name.
func (p *Pool) All() []Plugin {
	p.mu.RLock()
	out := make([]Plugin, 0, len(p.plugins))
	for _, plugin := range p.plugins {
		out = append(out, plugin)
	}
	p.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Info(), out[j].Info()
		if a.Module != b.Module {
			return a.Module < b.Module
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.Type < b.Type
	})
	return out
}

func (p *Pool) SetSlotRules(rules []SlotRule) {
	p.mu.Lock()
	p.rules = append([]SlotRule(nil), rules...)
	p.mu.Unlock()
}

// AllowedFor lists the non-system plugins that may be added to slot on a page
// using template. A rule bound to the template wins over a slot-wide rule.
func (p *Pool) AllowedFor(slot, template string) []Plugin {
	p.mu.RLock()
	var allowed []string
	found := false
	for _, rule := range p.rules {
		if !strings.EqualFold(rule.Slot, slot) {
			continue
		}
		if rule.Template != "" && rule.Template == template {
			allowed, found = rule.Plugins, true
			break
		}
		if rule.Template == "" && !found {
			allowed, found = rule.Plugins, true
		}
	}
	p.mu.RUnlock()

	var set map[string]struct{}
	if found && len(allowed) > 0 {
		set = make(map[string]struct{}, len(allowed))
		for _, t := range allowed {
			set[t] = struct{}{}
		}
	}

	out := make([]Plugin, 0)
	for _, plugin := range p.All() {
		info := plugin.Info()
		if info.System {
			continue
		}
		if set != nil {
			if _, ok := set[info.Type]; !ok {
				continue
			}
		}
		out = append(out, plugin)
	}
	return out
}

// SystemPlugins lists the type identifiers of system plugins, which are
// always allowed in any placeholder.
func (p *Pool) SystemPlugins() []string {
	out := make([]string, 0)
	for _, plugin := range p.All() {
		if info := plugin.Info(); info.System {
			out = append(out, info.Type)
		}
	}
	return out
}

// Base implements Plugin for types that only expose their data to a template.
type Base struct {
	Meta   Info
	Source string
}

func (b Base) Info() Info { return b.Meta }

func (b Base) Template(*content.Plugin) string { return b.Source }

func (b Base) Render(ctx *Context, inst *content.Plugin, slot string) (*Context, error) {
	ctx.Set("instance", inst)
	ctx.Set("placeholder_slot", slot)
	for k, v := range inst.Data {
		ctx.Set(k, v)
	}
	return ctx, nil
}
