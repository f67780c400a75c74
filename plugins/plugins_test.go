package plugins

import (
	"errors"
	"html/template"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iedon/cms-render-go/content"
	"github.com/iedon/cms-render-go/renderer"
)

func newPool(t *testing.T) *Pool {
	t.Helper()
	pool := NewPool()
	require.NoError(t, RegisterBuiltins(pool, renderer.New()))
	return pool
}

func TestPool_GetAndDuplicates(t *testing.T) {
	pool := newPool(t)

	plugin, err := pool.Get(TypeText)
	require.NoError(t, err)
	assert.Equal(t, "Text", plugin.Info().Name)

	_, err = pool.Get("NoSuchPlugin")
	assert.True(t, errors.Is(err, ErrUnknownPlugin))

	err = pool.Register(NewLinkPlugin())
	assert.True(t, errors.Is(err, ErrDuplicatePlugin))
}

func TestPool_AllSorted(t *testing.T) {
	pool := newPool(t)
	var modules []string
	for _, p := range pool.All() {
		modules = append(modules, p.Info().Module)
	}
	assert.Equal(t, []string{"Advanced", "Generic", "Generic", "Generic", "Layout"}, modules)
}

func TestPool_AllowedFor(t *testing.T) {
	pool := newPool(t)
	pool.Register(Base{Meta: Info{Type: "AliasPlugin", Name: "Alias", System: true}})
	pool.SetSlotRules([]SlotRule{
		{Slot: "banner", Plugins: []string{TypeText, TypeLink}},
		{Slot: "banner", Template: "wide.html", Plugins: []string{TypeCode}},
	})

	types := func(list []Plugin) []string {
		out := make([]string, 0, len(list))
		for _, p := range list {
			out = append(out, p.Info().Type)
		}
		return out
	}

	assert.ElementsMatch(t, []string{TypeText, TypeLink}, types(pool.AllowedFor("banner", "default.html")))
	assert.Equal(t, []string{TypeCode}, types(pool.AllowedFor("banner", "wide.html")))
	assert.Len(t, pool.AllowedFor("content", ""), 5)
	assert.Equal(t, []string{"AliasPlugin"}, pool.SystemPlugins())
}

func TestContext_Layers(t *testing.T) {
	ctx := NewContext(map[string]any{"a": 1})
	ctx.Push(map[string]any{"b": 2})
	ctx.Set("a", 10)

	v, ok := ctx.Get("a")
	require.True(t, ok)
	assert.Equal(t, 10, v)
	assert.Equal(t, map[string]any{"a": 10, "b": 2}, ctx.Flatten())

	ctx.Pop()
	v, _ = ctx.Get("a")
	assert.Equal(t, 1, v)
	assert.False(t, ctx.Has("b"))

	ctx.Pop()
	assert.Equal(t, 1, ctx.Depth())

	derived := ctx.Derive()
	derived.Set("c", 3)
	assert.False(t, ctx.Has("c"))
	assert.Same(t, ctx.Assets, derived.Assets)
}

func TestAssets_MarkSinceMerge(t *testing.T) {
	a := NewAssets()
	a.Add("css", "base.css")
	mark := a.Mark()
	a.Add("css", "base.css")
	a.Add("css", "extra.css")
	a.Add("js", "app.js")

	changes := a.Since(mark)
	assert.Equal(t, map[string][]string{"css": {"extra.css"}, "js": {"app.js"}}, changes)
	assert.Nil(t, a.Since(a.Mark()))

	b := NewAssets()
	b.Add("css", "extra.css")
	b.Merge(changes)
	assert.Equal(t, []string{"extra.css"}, b.Items("css"))
	assert.Equal(t, []string{"css", "js"}, b.Namespaces())
}

func TestTextPlugin_Render(t *testing.T) {
	pool := newPool(t)
	plugin, err := pool.Get(TypeText)
	require.NoError(t, err)

	inst := &content.Plugin{ID: 9, Type: TypeText, Data: map[string]any{"body": "**bold**"}}
	ctx, err := plugin.Render(NewContext(nil), inst, "content")
	require.NoError(t, err)

	body, _ := ctx.Get("body")
	assert.Contains(t, string(body.(template.HTML)), "<strong>bold</strong>")
	slot, _ := ctx.Get("placeholder_slot")
	assert.Equal(t, "content", slot)
}

func TestTextPlugin_FrontMatter(t *testing.T) {
	pool := newPool(t)
	plugin, err := pool.Get(TypeText)
	require.NoError(t, err)

	body := "---\ntitle: Release notes\n---\nShipped."
	inst := &content.Plugin{ID: 10, Type: TypeText, Data: map[string]any{"body": body}}
	ctx, err := plugin.Render(NewContext(nil), inst, "content")
	require.NoError(t, err)

	meta, _ := ctx.Get("meta")
	assert.Equal(t, "Release notes", meta.(map[string]any)["title"])

	tpl := template.Must(template.New("text").Parse(plugin.Template(inst)))
	var sb strings.Builder
	require.NoError(t, tpl.Execute(&sb, ctx.Flatten()))
	assert.Contains(t, sb.String(), `<h2 class="cms-text-title">Release notes</h2>`)
	assert.NotContains(t, sb.String(), "title:")
	assert.Contains(t, sb.String(), "Shipped.")

	plain := &content.Plugin{ID: 11, Type: TypeText, Data: map[string]any{"body": "plain"}}
	ctx, err = plugin.Render(NewContext(nil), plain, "content")
	require.NoError(t, err)
	sb.Reset()
	require.NoError(t, tpl.Execute(&sb, ctx.Flatten()))
	assert.NotContains(t, sb.String(), "cms-text-title")
}

func TestCodePlugin_RegistersStylesheet(t *testing.T) {
	pool := newPool(t)
	plugin, err := pool.Get(TypeCode)
	require.NoError(t, err)

	base := NewContext(nil)
	inst := &content.Plugin{ID: 1, Type: TypeCode, Data: map[string]any{"code": "x := 1", "language": "go"}}
	_, err = plugin.Render(base, inst, "content")
	require.NoError(t, err)
	assert.Equal(t, []string{HighlightStylesheet}, base.Assets.Items("css"))
}

func TestSectionPlugin_IsStructural(t *testing.T) {
	info := NewSectionPlugin().Info()
	assert.False(t, info.RendersContent)
	assert.True(t, info.AllowChildren)
}

func TestLookupProcessors(t *testing.T) {
	r := renderer.New()
	procs, err := LookupProcessors([]string{"plugin_meta"}, []string{"trim", "minify"}, r)
	require.NoError(t, err)
	assert.Len(t, procs.Context, 1)
	assert.Len(t, procs.Output, 2)

	inst := &content.Plugin{ID: 5, Type: TypeLink}
	values := procs.Context[0](inst, &content.Placeholder{ID: 2}, NewContext(nil))
	assert.Equal(t, int64(5), values["plugin_id"])
	assert.Equal(t, int64(2), values["placeholder_id"])

	out, err := procs.Output[0](inst, nil, "  <b>x</b>  ", nil)
	require.NoError(t, err)
	assert.Equal(t, "<b>x</b>", out)

	_, err = LookupProcessors([]string{"nope"}, nil, r)
	assert.True(t, errors.Is(err, ErrUnknownProcessor))
}
