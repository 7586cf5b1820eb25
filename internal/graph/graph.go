// Package graph implements the mutable asset dependency graph the builder
// walks. Nodes are typed, identified by content-derived ids, and mutated
// only through the four resolution operations, which fold a
// sub-computation's result back into the graph. All operations are
// concurrency-safe; folds from different completing requests serialize on
// one mutex so node and edge identity never corrupts.
package graph

import (
	"fmt"
	"sync"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/AceTheCreator/parcel/internal/model"
)

// Kind tags a graph node.
type Kind int

const (
	KindRoot Kind = iota
	KindEntrySpecifier
	KindEntryFile
	KindDependency
	KindAssetGroup
	KindAsset
)

func (k Kind) String() string {
	switch k {
	case KindRoot:
		return "root"
	case KindEntrySpecifier:
		return "entry_specifier"
	case KindEntryFile:
		return "entry_file"
	case KindDependency:
		return "dependency"
	case KindAssetGroup:
		return "asset_group"
	case KindAsset:
		return "asset"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Node is one vertex of the graph. Exactly one payload field matching the
// kind is set. Accessors on Graph return copies; mutation happens only
// under the graph lock inside the resolution operations.
type Node struct {
	ID   string
	Kind Kind

	// Payload, by kind.
	Specifier  string
	EntryFile  *model.EntryFile
	Dependency *model.Dependency
	Group      *model.AssetGroup
	Asset      *model.Asset

	// Complete marks that this node's computation already produced a
	// result that need not be redone.
	Complete bool

	// RequestID identifies the sub-computation that produced (or will
	// produce) this node's result.
	RequestID string

	// PendingDeferral marks a previously skipped edge that must be
	// re-evaluated even if the node was already visited.
	PendingDeferral bool

	// Excluded marks a dependency currently gated out of the walk.
	Excluded bool
}

// Graph is the long-lived dependency graph shared across build passes.
type Graph struct {
	mu      sync.RWMutex
	nodes   map[string]*Node
	edges   map[string][]string
	rootID  string
	exclude []string
}

// New creates a graph containing only the root node. The exclude patterns
// gate dependency children during the walk.
func New(exclude []string) *Graph {
	g := &Graph{
		nodes:   make(map[string]*Node),
		edges:   make(map[string][]string),
		rootID:  model.HashOf("root"),
		exclude: exclude,
	}
	g.nodes[g.rootID] = &Node{ID: g.rootID, Kind: KindRoot}
	return g
}

// EntrySpecifierID derives the node id for an entry specifier.
func EntrySpecifierID(specifier string) string {
	return model.HashOf(KindEntrySpecifier.String(), specifier)
}

// EntryFileID derives the node id for an entry file.
func EntryFileID(f model.EntryFile) string {
	return model.HashOf(KindEntryFile.String(), f)
}

// DependencyID derives the node id for a dependency.
func DependencyID(d model.Dependency) string {
	return model.HashOf(KindDependency.String(), d)
}

// AssetGroupID derives the node id for an asset group.
func AssetGroupID(g model.AssetGroup) string {
	return model.HashOf(KindAssetGroup.String(), g)
}

// AssetNodeID derives the node id for a produced asset.
func AssetNodeID(a model.Asset) string {
	return model.HashOf(KindAsset.String(), a.ID)
}

// Root returns a copy of the root node, or nil if it is missing.
func (g *Graph) Root() *Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return cloneNode(g.nodes[g.rootID])
}

// Node returns a copy of the node with the given id, or nil.
func (g *Graph) Node(id string) *Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return cloneNode(g.nodes[id])
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// ChildrenOf returns copies of the nodes reachable by an outgoing edge, in
// edge insertion order. Order is deterministic for a given mutation
// history; correctness does not depend on it.
func (g *Graph) ChildrenOf(id string) []*Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ids := g.edges[id]
	children := make([]*Node, 0, len(ids))
	for _, cid := range ids {
		if n := g.nodes[cid]; n != nil {
			children = append(children, cloneNode(n))
		}
	}
	return children
}

// AddEntry ensures an entry specifier node exists as a child of the root.
func (g *Graph) AddEntry(specifier string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := g.ensure(&Node{ID: EntrySpecifierID(specifier), Kind: KindEntrySpecifier, Specifier: specifier})
	g.addEdge(g.rootID, n.ID)
}

// AddSeedGroup ensures a pre-known asset group node exists as a child of
// the root. Used to thread externally supplied work items into a pass.
func (g *Graph) AddSeedGroup(group model.AssetGroup) {
	g.mu.Lock()
	defer g.mu.Unlock()
	gc := group
	n := g.ensure(&Node{ID: AssetGroupID(group), Kind: KindAssetGroup, Group: &gc})
	g.addEdge(g.rootID, n.ID)
}

// ShouldVisitChild is the domain gate consulted before recursing into a
// child. Dependency nodes whose specifier matches an exclude pattern are
// gated out and marked excluded. A true result also clears the child's
// pending deferral, since the deferred edge is now being taken.
func (g *Graph) ShouldVisitChild(parentID, childID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	child := g.nodes[childID]
	if child == nil {
		return false
	}
	if child.Kind == KindDependency && child.Dependency != nil && g.matchesExclude(child.Dependency.Specifier) {
		child.Excluded = true
		child.PendingDeferral = false
		return false
	}
	child.PendingDeferral = false
	return true
}

// SetExcludePatterns replaces the exclude patterns. Dependency nodes that
// were excluded but no longer match get an explicit pending deferral so
// the next pass re-evaluates their skipped edges.
func (g *Graph) SetExcludePatterns(patterns []string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.exclude = patterns
	for _, n := range g.nodes {
		if n.Kind != KindDependency || !n.Excluded || n.Dependency == nil {
			continue
		}
		if !g.matchesExclude(n.Dependency.Specifier) {
			n.Excluded = false
			n.PendingDeferral = true
		}
	}
}

func (g *Graph) matchesExclude(specifier string) bool {
	for _, pattern := range g.exclude {
		if ok, err := doublestar.Match(pattern, specifier); err == nil && ok {
			return true
		}
	}
	return false
}

// ensure inserts n if no node with its id exists and returns the graph's
// node. Re-inserting an equivalent node is a no-op, which is what makes
// the resolution operations idempotent with respect to id derivation.
func (g *Graph) ensure(n *Node) *Node {
	if existing, ok := g.nodes[n.ID]; ok {
		return existing
	}
	g.nodes[n.ID] = n
	return n
}

func (g *Graph) addEdge(from, to string) {
	for _, id := range g.edges[from] {
		if id == to {
			return
		}
	}
	g.edges[from] = append(g.edges[from], to)
}

func cloneNode(n *Node) *Node {
	if n == nil {
		return nil
	}
	c := *n
	return &c
}
