package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func typesOf(list []*Plugin) []string {
	out := make([]string, 0, len(list))
	for _, p := range list {
		out = append(out, p.Type)
	}
	return out
}

func TestFlatten_PreOrder(t *testing.T) {
	d := &Plugin{ID: 4, Type: "D"}
	e := &Plugin{ID: 5, Type: "E"}
	b := &Plugin{ID: 2, Type: "B", Children: []*Plugin{d, e}}
	c := &Plugin{ID: 3, Type: "C"}
	a := &Plugin{ID: 1, Type: "A", Children: []*Plugin{b, c}}

	got := Flatten([]*Plugin{a})
	assert.Equal(t, []string{"A", "B", "D", "E", "C"}, typesOf(got))
}

func TestFlatten_MultipleRoots(t *testing.T) {
	roots := []*Plugin{
		{ID: 1, Type: "A", Children: []*Plugin{{ID: 3, Type: "A1"}}},
		{ID: 2, Type: "B"},
	}
	assert.Equal(t, []string{"A", "A1", "B"}, typesOf(Flatten(roots)))
}

func TestFlatten_Empty(t *testing.T) {
	assert.Nil(t, Flatten(nil))
	assert.Empty(t, Flatten([]*Plugin{}))
}

func TestBuildTree_OrdersByPosition(t *testing.T) {
	flat := []*Plugin{
		{ID: 1, Type: "section", Position: 1},
		{ID: 2, Type: "text", ParentID: 1, Position: 2},
		{ID: 3, Type: "text", ParentID: 1, Position: 1},
		{ID: 4, Type: "link", Position: 0},
		{ID: 5, Type: "orphan", ParentID: 99, Position: 5},
	}
	roots := BuildTree(flat)
	require.Len(t, roots, 3)
	assert.Equal(t, PluginID(4), roots[0].ID)
	assert.Equal(t, PluginID(1), roots[1].ID)
	assert.Equal(t, PluginID(5), roots[2].ID)
	require.Len(t, roots[1].Children, 2)
	assert.Equal(t, PluginID(3), roots[1].Children[0].ID)
	assert.Equal(t, PluginID(2), roots[1].Children[1].ID)
}

func genTree(t *rapid.T, depth int, next *int64) *Plugin {
	*next++
	node := &Plugin{ID: PluginID(*next)}
	if depth == 0 {
		return node
	}
	n := rapid.IntRange(0, 3).Draw(t, "children")
	for i := 0; i < n; i++ {
		child := genTree(t, depth-1, next)
		child.ParentID = node.ID
		node.Children = append(node.Children, child)
	}
	return node
}

func TestFlatten_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var next int64
		roots := make([]*Plugin, rapid.IntRange(0, 4).Draw(t, "roots"))
		for i := range roots {
			roots[i] = genTree(t, rapid.IntRange(0, 3).Draw(t, "depth"), &next)
		}

		flat := Flatten(roots)
		if len(flat) != int(next) {
			t.Fatalf("expected %d nodes, got %d", next, len(flat))
		}

		index := make(map[PluginID]int, len(flat))
		for i, p := range flat {
			if _, dup := index[p.ID]; dup {
				t.Fatalf("plugin %d emitted twice", p.ID)
			}
			index[p.ID] = i
		}
		for _, p := range flat {
			for _, child := range p.Children {
				if index[child.ID] <= index[p.ID] {
					t.Fatalf("child %d emitted before parent %d", child.ID, p.ID)
				}
			}
			// A subtree is contiguous: the first child follows its parent directly.
			if len(p.Children) > 0 && index[p.Children[0].ID] != index[p.ID]+1 {
				t.Fatalf("first child of %d not adjacent", p.ID)
			}
		}
	})
}

func TestPlaceholder_ResolvedVersusEmpty(t *testing.T) {
	ph := &Placeholder{ID: 1, Slot: "content"}
	plugins, ok := ph.Plugins()
	assert.False(t, ok)
	assert.Nil(t, plugins)
	assert.False(t, ph.HasPlugins())

	ph.SetPlugins(nil)
	_, ok = ph.Plugins()
	assert.True(t, ok)
	assert.False(t, ph.HasPlugins())

	ph.SetPlugins([]*Plugin{{ID: 1}})
	assert.True(t, ph.HasPlugins())

	ph.ResetPlugins()
	_, ok = ph.Plugins()
	assert.False(t, ok)
}

func TestPage_TemplateFor(t *testing.T) {
	p := &Page{Template: "default.html", Templates: map[string]string{"de": "wide.html"}}
	assert.Equal(t, "wide.html", p.TemplateFor("de"))
	assert.Equal(t, "default.html", p.TemplateFor("en"))
	assert.False(t, p.HasParent())
	assert.True(t, (&Page{ParentID: 3}).HasParent())
}

func TestPlaceholderKind(t *testing.T) {
	assert.True(t, (&Placeholder{Kind: KindStaticDraft}).IsStatic())
	assert.True(t, (&Placeholder{Kind: KindStaticPublic}).IsStatic())
	assert.False(t, (&Placeholder{Kind: KindPage}).IsStatic())
	assert.Equal(t, "static-public", KindStaticPublic.String())
}
