package graph

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
)

// Dot writes the graph in Graphviz dot format. Purely observational, for
// debugging; node order is sorted so output is stable.
func (g *Graph) Dot(w io.Writer) error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	if _, err := fmt.Fprintln(w, "digraph assets {"); err != nil {
		return err
	}
	for _, id := range ids {
		n := g.nodes[id]
		if _, err := fmt.Fprintf(w, "  %q [label=%q];\n", short(id), dotLabel(n)); err != nil {
			return err
		}
	}
	for _, id := range ids {
		for _, child := range g.edges[id] {
			if _, err := fmt.Fprintf(w, "  %q -> %q;\n", short(id), short(child)); err != nil {
				return err
			}
		}
	}
	_, err := fmt.Fprintln(w, "}")
	return err
}

func short(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

func dotLabel(n *Node) string {
	switch n.Kind {
	case KindEntrySpecifier:
		return "entry: " + n.Specifier
	case KindEntryFile:
		return "file: " + filepath.Base(n.EntryFile.FilePath)
	case KindDependency:
		label := "dep: " + n.Dependency.Specifier
		if n.Excluded {
			label += " (excluded)"
		}
		return label
	case KindAssetGroup:
		return fmt.Sprintf("group: %s [%s]", filepath.Base(n.Group.FilePath), n.Group.Target.Name)
	case KindAsset:
		return "asset: " + filepath.Base(n.Asset.FilePath)
	default:
		return n.Kind.String()
	}
}
