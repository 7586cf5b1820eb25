package graph

import (
	"fmt"

	"github.com/AceTheCreator/parcel/internal/model"
)

// The four resolution operations fold a sub-computation's result back into
// the graph: add or update nodes, add edges, mark the originating node
// complete and record the request id that produced the result. Each is
// idempotent; re-resolving the same payload to the same result creates no
// duplicate nodes or edges.

// ResolveEntry folds discovered entry files in under their specifier node.
func (g *Graph) ResolveEntry(specifier string, files []model.EntryFile, requestID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	parent := g.nodes[EntrySpecifierID(specifier)]
	if parent == nil {
		return fmt.Errorf("graph: resolve entry %q: no entry_specifier node", specifier)
	}
	for _, f := range files {
		fc := f
		child := g.ensure(&Node{ID: EntryFileID(f), Kind: KindEntryFile, EntryFile: &fc})
		g.addEdge(parent.ID, child.ID)
	}
	parent.Complete = true
	parent.RequestID = requestID
	return nil
}

// ResolveTargets folds resolved build targets in under their entry file
// node, one asset group child per target.
func (g *Graph) ResolveTargets(entry model.EntryFile, targets []model.Target, requestID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	parent := g.nodes[EntryFileID(entry)]
	if parent == nil {
		return fmt.Errorf("graph: resolve targets for %q: no entry_file node", entry.FilePath)
	}
	for _, t := range targets {
		group := model.AssetGroup{FilePath: entry.FilePath, Target: t}
		child := g.ensure(&Node{ID: AssetGroupID(group), Kind: KindAssetGroup, Group: &group})
		g.addEdge(parent.ID, child.ID)
	}
	parent.Complete = true
	parent.RequestID = requestID
	return nil
}

// ResolveDependency folds the resolved asset group in under its dependency
// node. A nil group records an unresolved dependency: the node completes
// with no children, which is not an error.
func (g *Graph) ResolveDependency(dep model.Dependency, group *model.AssetGroup, requestID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	parent := g.nodes[DependencyID(dep)]
	if parent == nil {
		return fmt.Errorf("graph: resolve dependency %q: no dependency node", dep.Specifier)
	}
	if group != nil {
		gc := *group
		child := g.ensure(&Node{ID: AssetGroupID(gc), Kind: KindAssetGroup, Group: &gc})
		g.addEdge(parent.ID, child.ID)
	}
	parent.Complete = true
	parent.RequestID = requestID
	return nil
}

// ResolveAssetGroup folds produced assets in under their asset group node.
// Each asset's declared dependencies become dependency child nodes of the
// asset, inheriting the group's target.
func (g *Graph) ResolveAssetGroup(group model.AssetGroup, assets []model.Asset, requestID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	parent := g.nodes[AssetGroupID(group)]
	if parent == nil {
		return fmt.Errorf("graph: resolve asset group %q: no asset_group node", group.FilePath)
	}
	for _, a := range assets {
		ac := a
		assetNode := g.ensure(&Node{ID: AssetNodeID(a), Kind: KindAsset, Asset: &ac, Complete: true})
		g.addEdge(parent.ID, assetNode.ID)
		for _, d := range a.Dependencies {
			d.Target = group.Target
			d.SourceAssetID = a.ID
			dc := d
			depNode := g.ensure(&Node{ID: DependencyID(d), Kind: KindDependency, Dependency: &dc})
			g.addEdge(assetNode.ID, depNode.ID)
		}
	}
	parent.Complete = true
	parent.RequestID = requestID
	return nil
}
