package plugins

import (
	"fmt"
	"strings"

	"github.com/iedon/cms-render-go/content"
	"github.com/iedon/cms-render-go/renderer"
)

// ContextProcessor contributes values to every plugin context.
type ContextProcessor func(inst *content.Plugin, ph *content.Placeholder, ctx *Context) map[string]any

// OutputProcessor post-processes the markup of a rendered plugin.
type OutputProcessor func(inst *content.Plugin, ph *content.Placeholder, out string, ctx *Context) (string, error)

// Processors groups the processors applied around each plugin render.
type Processors struct {
	Context []ContextProcessor
	Output  []OutputProcessor
}

// PluginMeta exposes the plugin identity to templates.
func PluginMeta(inst *content.Plugin, ph *content.Placeholder, _ *Context) map[string]any {
	values := map[string]any{
		"plugin_id":   int64(inst.ID),
		"plugin_type": inst.Type,
	}
	if ph != nil {
		values["placeholder_id"] = int64(ph.ID)
	}
	return values
}

// Minify returns an output processor compacting plugin markup.
func Minify(r *renderer.Renderer) OutputProcessor {
	return func(_ *content.Plugin, _ *content.Placeholder, out string, _ *Context) (string, error) {
		return r.MinifyFragment(out)
	}
}

// Trim strips surrounding whitespace from plugin markup.
func Trim(_ *content.Plugin, _ *content.Placeholder, out string, _ *Context) (string, error) {
	return strings.TrimSpace(out), nil
}

// LookupProcessors resolves processor names from configuration.
func LookupProcessors(contextNames, outputNames []string, r *renderer.Renderer) (Processors, error) {
	var procs Processors
	for _, name := range contextNames {
		switch strings.TrimSpace(name) {
		case "plugin_meta":
			procs.Context = append(procs.Context, PluginMeta)
		default:
			return Processors{}, fmt.Errorf("%w: context processor %q", ErrUnknownProcessor, name)
		}
	}
	for _, name := range outputNames {
		switch strings.TrimSpace(name) {
		case "minify":
			procs.Output = append(procs.Output, Minify(r))
		case "trim":
			procs.Output = append(procs.Output, Trim)
		default:
			return Processors{}, fmt.Errorf("%w: output processor %q", ErrUnknownProcessor, name)
		}
	}
	return procs, nil
}
