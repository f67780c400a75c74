package toolbar

import (
	"html/template"
	"strings"

	"github.com/iedon/cms-render-go/plugins"
)

// MenuItem is an entry of the plugin insertion menu.
type MenuItem struct {
	Type   string
	Name   string
	Module string
}

// MenuGroup holds the menu entries of one module.
type MenuGroup struct {
	Module string
	Items  []MenuItem
}

var menuTemplate = template.Must(template.New("plugin-menu").Parse(
	`{{range .}}<div class="cms-submenu-item cms-submenu-item-title"><span>{{.Module}}</span></div>` +
		`{{range .Items}}<div class="cms-submenu-item"><a data-rel="add" href="{{.Type}}">{{.Name}}</a></div>{{end}}{{end}}`))

// MenuStruct returns the plugins viewer may add to slot, grouped by module.
func MenuStruct(viewer *Viewer, pool *plugins.Pool, slot, tpl string) []MenuGroup {
	groups := make([]MenuGroup, 0)
	for _, plugin := range pool.AllowedFor(slot, tpl) {
		info := plugin.Info()
		if !viewer.CanAddPlugin(info.Type) {
			continue
		}
		item := MenuItem{Type: info.Type, Name: info.Name, Module: info.Module}
		if n := len(groups); n > 0 && groups[n-1].Module == info.Module {
			groups[n-1].Items = append(groups[n-1].Items, item)
			continue
		}
		groups = append(groups, MenuGroup{Module: info.Module, Items: []MenuItem{item}})
	}
	return groups
}

// PluginMenu renders the plugin insertion menu for slot.
func PluginMenu(viewer *Viewer, pool *plugins.Pool, slot, tpl string) (string, error) {
	var sb strings.Builder
	if err := menuTemplate.Execute(&sb, MenuStruct(viewer, pool, slot, tpl)); err != nil {
		return "", err
	}
	return sb.String(), nil
}
