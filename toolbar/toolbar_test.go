package toolbar

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iedon/cms-render-go/content"
	"github.com/iedon/cms-render-go/plugins"
	"github.com/iedon/cms-render-go/renderer"
)

func newPool(t *testing.T) *plugins.Pool {
	t.Helper()
	r := renderer.New()
	pool := plugins.NewPool()
	require.NoError(t, plugins.RegisterBuiltins(pool, r))
	return pool
}

func TestViewer_Permissions(t *testing.T) {
	var anonymous *Viewer
	assert.False(t, anonymous.CanAddPlugin(plugins.TypeText))
	assert.False(t, anonymous.CanEditStatic())
	assert.False(t, anonymous.IsStaff())

	scoped := &Viewer{Name: "ed", Permissions: []string{"add_plugin:TextPlugin"}}
	assert.True(t, scoped.CanAddPlugin(plugins.TypeText))
	assert.False(t, scoped.CanAddPlugin(plugins.TypeCode))

	admin := &Viewer{Name: "root", Staff: true, Permissions: []string{" ADD_PLUGIN ", PermEditStatic}}
	assert.True(t, admin.CanAddPlugin(plugins.TypeCode))
	assert.True(t, admin.CanEditStatic())
	assert.True(t, admin.IsStaff())
}

func TestSession_FirstFalseWins(t *testing.T) {
	s := NewSession(nil, false, "en")
	assert.True(t, s.Cacheable())

	s.MarkRendered(true)
	assert.True(t, s.Cacheable())
	s.MarkRendered(false)
	assert.False(t, s.Cacheable())
	s.MarkRendered(true)
	assert.False(t, s.Cacheable())

	edit := NewSession(nil, true, "en")
	edit.MarkRendered(true)
	assert.False(t, edit.Cacheable())
	assert.True(t, edit.EditModeActive())

	var none *Session
	assert.False(t, none.EditModeActive())
}

func TestRestrictions(t *testing.T) {
	pool := newPool(t)
	cache := RestrictionsCache{}

	text := Restrictions(&content.Plugin{ID: 1, Type: plugins.TypeText}, pool, "content", "", cache)
	assert.Equal(t, []string{plugins.TypeLink}, text.Children)
	assert.Empty(t, text.Parents)
	assert.Contains(t, cache, plugins.TypeText)

	section := Restrictions(&content.Plugin{ID: 2, Type: plugins.TypeSection}, pool, "content", "", cache)
	assert.Len(t, section.Children, 5)

	code := Restrictions(&content.Plugin{ID: 3, Type: plugins.TypeCode}, pool, "content", "", cache)
	assert.NotNil(t, code.Children)
	assert.Empty(t, code.Children)

	cache[plugins.TypeLink] = Restriction{Children: []string{"cached"}}
	link := Restrictions(&content.Plugin{ID: 4, Type: plugins.TypeLink}, pool, "content", "", cache)
	assert.Equal(t, []string{"cached"}, link.Children)
}

func TestPlaceholderJS(t *testing.T) {
	ph := &content.Placeholder{ID: 7, Slot: "content", Kind: content.KindPage}
	js := PlaceholderJS(ph, "en", "de", []string{plugins.TypeText})
	require.True(t, strings.HasPrefix(js, "CMS._placeholders.push("))
	require.True(t, strings.HasSuffix(js, ");"))

	raw := strings.TrimSuffix(strings.TrimPrefix(js, "CMS._placeholders.push("), ");")
	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &got))
	assert.Equal(t, "placeholder", got["type"])
	assert.EqualValues(t, 7, got["placeholder_id"])
	assert.Equal(t, "de", got["plugin_language"])
	assert.Equal(t, "en", got["request_language"])
	assert.Equal(t, []any{plugins.TypeText}, got["plugin_restriction"])
	assert.NotContains(t, got, "static")
}

func TestPluginJS_EscapesMarkup(t *testing.T) {
	inst := &content.Plugin{ID: 9, PlaceholderID: 7, Type: plugins.TypeText, Language: "en"}
	js := PluginJS(inst, "</script><b>", Restriction{Children: []string{}, Parents: []string{}}, "en")
	assert.True(t, strings.HasPrefix(js, `CMS._plugins.push(["cms-plugin-9",`))
	assert.NotContains(t, js, "</script>")
	assert.Contains(t, js, `\u003c/script\u003e`)
}

func TestPluginMenu(t *testing.T) {
	pool := newPool(t)
	pool.SetSlotRules([]plugins.SlotRule{{Slot: "sidebar", Plugins: []string{plugins.TypeText, plugins.TypeLink}}})

	editor := &Viewer{Permissions: []string{PermAddPlugin}}
	groups := MenuStruct(editor, pool, "sidebar", "")
	require.Len(t, groups, 1)
	assert.Equal(t, "Generic", groups[0].Module)
	require.Len(t, groups[0].Items, 2)
	assert.Equal(t, plugins.TypeLink, groups[0].Items[0].Type)

	menu, err := PluginMenu(editor, pool, "sidebar", "")
	require.NoError(t, err)
	assert.Contains(t, menu, `<span>Generic</span>`)
	assert.Contains(t, menu, `href="TextPlugin"`)
	assert.NotContains(t, menu, "CodePlugin")

	empty, err := PluginMenu(nil, pool, "sidebar", "")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestConfigScript(t *testing.T) {
	out := Config{EditMode: true, RequestLanguage: "en", Placeholders: []int64{3, 1}}.Script()
	assert.Contains(t, out, `"placeholders":[3,1]`)
	assert.Contains(t, out, `"static_placeholders":[]`)
	assert.Contains(t, out, `"edit_mode":true`)
}
