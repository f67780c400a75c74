package toolbar

import (
	"encoding/json"
	"fmt"

	"github.com/iedon/cms-render-go/content"
)

type placeholderDescriptor struct {
	Type            string   `json:"type"`
	PlaceholderID   int64    `json:"placeholder_id"`
	Slot            string   `json:"slot"`
	Static          bool     `json:"static,omitempty"`
	Language        string   `json:"plugin_language"`
	RequestLanguage string   `json:"request_language"`
	Restriction     []string `json:"plugin_restriction"`
}

type pluginDescriptor struct {
	Type              string   `json:"type"`
	PluginID          int64    `json:"plugin_id"`
	PluginType        string   `json:"plugin_type"`
	PluginName        string   `json:"plugin_name"`
	PluginParent      int64    `json:"plugin_parent,omitempty"`
	PlaceholderID     int64    `json:"placeholder_id"`
	Language          string   `json:"plugin_language"`
	RequestLanguage   string   `json:"request_language"`
	Restriction       []string `json:"plugin_restriction"`
	ParentRestriction []string `json:"plugin_parent_restriction"`
}

// PlaceholderJS returns the script statement registering ph with the editor.
// allowed lists the plugin types that may be added to it.
func PlaceholderJS(ph *content.Placeholder, requestLanguage, renderLanguage string, allowed []string) string {
	if allowed == nil {
		allowed = []string{}
	}
	payload, _ := json.Marshal(placeholderDescriptor{
		Type:            "placeholder",
		PlaceholderID:   int64(ph.ID),
		Slot:            ph.Slot,
		Static:          ph.IsStatic(),
		Language:        renderLanguage,
		RequestLanguage: requestLanguage,
		Restriction:     allowed,
	})
	return fmt.Sprintf("CMS._placeholders.push(%s);", payload)
}

// PluginJS returns the script statement registering a rendered plugin.
func PluginJS(inst *content.Plugin, name string, r Restriction, requestLanguage string) string {
	payload, _ := json.Marshal(pluginDescriptor{
		Type:              "plugin",
		PluginID:          int64(inst.ID),
		PluginType:        inst.Type,
		PluginName:        name,
		PluginParent:      int64(inst.ParentID),
		PlaceholderID:     int64(inst.PlaceholderID),
		Language:          inst.Language,
		RequestLanguage:   requestLanguage,
		Restriction:       r.Children,
		ParentRestriction: r.Parents,
	})
	return fmt.Sprintf(`CMS._plugins.push(["cms-plugin-%d",%s]);`, inst.ID, payload)
}

// Config is the bootstrap data of the editor front end.
type Config struct {
	EditMode           bool     `json:"edit_mode"`
	RequestLanguage    string   `json:"request_language"`
	Placeholders       []int64  `json:"placeholders"`
	StaticPlaceholders []string `json:"static_placeholders"`
}

// Script renders c as the script setting CMS.config.
func (c Config) Script() string {
	if c.Placeholders == nil {
		c.Placeholders = []int64{}
	}
	if c.StaticPlaceholders == nil {
		c.StaticPlaceholders = []string{}
	}
	payload, _ := json.Marshal(c)
	return fmt.Sprintf(`<script data-cms>window.CMS = window.CMS || {_plugins: [], _placeholders: []}; CMS.config = %s;</script>`, payload)
}
