package content

import "sort"

// Flatten returns every plugin of the given root list in pre-order: each node
// precedes its children, and a node's subtree is complete before its next
// sibling. The input is not modified.
func Flatten(roots []*Plugin) []*Plugin {
	if len(roots) == 0 {
		return nil
	}
	out := make([]*Plugin, 0, len(roots))
	stack := make([]*Plugin, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, roots[i])
	}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if node == nil {
			continue
		}
		out = append(out, node)
		for i := len(node.Children) - 1; i >= 0; i-- {
			stack = append(stack, node.Children[i])
		}
	}
	return out
}

// BuildTree links a flat plugin list into trees using ParentID and returns the
// roots. Siblings are ordered by Position, then ID. Plugins whose parent is
// missing from the list are treated as roots.
func BuildTree(flat []*Plugin) []*Plugin {
	byID := make(map[PluginID]*Plugin, len(flat))
	for _, p := range flat {
		p.Children = nil
		byID[p.ID] = p
	}
	roots := make([]*Plugin, 0, len(flat))
	for _, p := range flat {
		parent, ok := byID[p.ParentID]
		if p.ParentID == 0 || !ok || parent == p {
			roots = append(roots, p)
			continue
		}
		parent.Children = append(parent.Children, p)
	}
	sortPlugins(roots)
	for _, p := range flat {
		sortPlugins(p.Children)
	}
	return roots
}

func sortPlugins(list []*Plugin) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Position != list[j].Position {
			return list[i].Position < list[j].Position
		}
		return list[i].ID < list[j].ID
	})
}
