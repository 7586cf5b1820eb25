// Package builder implements the graph-builder orchestrator: one
// incremental build pass that walks the asset graph from its root, decides
// per node whether work is needed, dispatches the matching request through
// the task queue, folds settled results back into the graph, and commits
// the pass result.
//
// The walk is a mutual recursion of visit and visitChildren. Dispatch is
// asynchronous, so a node's children are visited only after its own
// request has settled, and the pass completes only once the queue is fully
// drained.
package builder

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/AceTheCreator/parcel/internal/ctxlog"
	"github.com/AceTheCreator/parcel/internal/graph"
	"github.com/AceTheCreator/parcel/internal/model"
	"github.com/AceTheCreator/parcel/internal/request"
	"github.com/AceTheCreator/parcel/internal/taskqueue"
	"github.com/AceTheCreator/parcel/internal/tracker"
)

// graphVersion scopes pass cache keys to the graph schema. Bump when the
// node or result shape changes incompatibly.
const graphVersion = "1"

// ErrNoRoot reports a graph without a root node, a structural error.
var ErrNoRoot = errors.New("builder: graph has no root node")

// ErrUnexpectedKind reports a node kind outside the dispatch table reaching
// dispatch, a programming-contract violation.
var ErrUnexpectedKind = errors.New("builder: unexpected node kind")

// BuildError wraps the first sub-computation failure of a pass. Later
// concurrent failures are discarded.
type BuildError struct {
	Cause error
}

func (e *BuildError) Error() string { return "build failed: " + e.Cause.Error() }

func (e *BuildError) Unwrap() error { return e.Cause }

// BuildRequest is the input of one build pass.
type BuildRequest struct {
	// Entries are the entry specifiers seeding the walk.
	Entries []string

	// SeedGroups are externally known asset groups folded in under the
	// root before the walk.
	SeedGroups []model.AssetGroup

	// BuildName is the logical build name scoping cached transforms.
	BuildName string

	// Options is the shared build options reference.
	Options *model.Options
}

// CacheKey derives the pass identity from configuration version, logical
// build name and entry list. Matching keys gate top-level graph reuse.
func (r BuildRequest) CacheKey() string {
	version := ""
	if r.Options != nil {
		version = r.Options.Version
	}
	return model.HashOf("build_pass", graphVersion, version, r.BuildName, r.Entries)
}

// PassResult is the product of one pass. The graph is long-lived and may
// be threaded into the next pass; changed assets and new work items are
// accumulated fresh each pass.
type PassResult struct {
	Graph         *graph.Graph
	ChangedAssets map[string]*model.Asset
	NewWorkItems  []model.AssetGroup
	CacheKey      string
}

// Builder drives one pass. It exclusively owns the visited set and the
// accumulated changed assets and work items for the pass duration; the
// graph is shared across passes and mutated only through its resolution
// operations.
type Builder struct {
	graph   *graph.Graph
	tracker *tracker.Tracker
	queue   *taskqueue.Queue
	req     BuildRequest

	mu         sync.Mutex
	visited    map[string]struct{}
	errs       []error
	structural error
	changed    map[string]*model.Asset
	newWork    []model.AssetGroup
}

// New creates a builder for one pass over g.
func New(g *graph.Graph, tr *tracker.Tracker, q *taskqueue.Queue, req BuildRequest) *Builder {
	return &Builder{
		graph:   g,
		tracker: tr,
		queue:   q,
		req:     req,
		visited: make(map[string]struct{}),
		changed: make(map[string]*model.Asset),
	}
}

// Run executes one pass. When a prior pass result is supplied and its
// cache key matches the request's, the prior graph is reused as the
// traversal base; otherwise a fresh graph is created.
func Run(ctx context.Context, req BuildRequest, tr *tracker.Tracker, q *taskqueue.Queue, prior *PassResult) (*PassResult, error) {
	var exclude []string
	if req.Options != nil {
		exclude = req.Options.Exclude
	}
	var g *graph.Graph
	if prior != nil && prior.Graph != nil && prior.CacheKey == req.CacheKey() {
		g = prior.Graph
		g.SetExcludePatterns(exclude)
	} else {
		g = graph.New(exclude)
	}
	return New(g, tr, q, req).Build(ctx)
}

// Build walks the graph, drains the queue, commits the pass, and returns
// either the accumulated result or the first recorded error.
func (b *Builder) Build(ctx context.Context) (*PassResult, error) {
	logger := ctxlog.FromContext(ctx)

	root := b.graph.Root()
	if root == nil {
		return nil, ErrNoRoot
	}
	for _, entry := range b.req.Entries {
		b.graph.AddEntry(entry)
	}
	for _, seed := range b.req.SeedGroups {
		b.graph.AddSeedGroup(seed)
	}

	logger.Debug("build pass started.", "build", b.req.BuildName, "entries", len(b.req.Entries))

	b.mu.Lock()
	b.visited[root.ID] = struct{}{}
	b.mu.Unlock()
	b.visit(ctx, root)

	// Dispatch is asynchronous: a subtree's children may be scheduled
	// after visit returns, so the pass settles only at full drain.
	if err := b.queue.Drain(ctx); err != nil {
		return nil, err
	}

	key := b.req.CacheKey()
	// Only the graph shape is memoized under the pass key; the stored
	// aggregate carries empty changed assets and work items while the
	// returned result carries the real ones.
	b.tracker.StorePassResult(key, &PassResult{
		Graph:         b.graph,
		ChangedAssets: make(map[string]*model.Asset),
		CacheKey:      key,
	})

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.structural != nil {
		return nil, b.structural
	}
	if len(b.errs) > 0 {
		if len(b.errs) > 1 {
			logger.Warn("discarding additional build errors.", "discarded", len(b.errs)-1)
		}
		return nil, &BuildError{Cause: b.errs[0]}
	}

	logger.Debug("build pass finished.", "nodes", b.graph.Len(), "changed_assets", len(b.changed))
	return &PassResult{
		Graph:         b.graph,
		ChangedAssets: b.changed,
		NewWorkItems:  b.newWork,
		CacheKey:      key,
	}, nil
}

// visit runs the skip predicate for one node and either recurses straight
// into its children or dispatches the matching request.
func (b *Builder) visit(ctx context.Context, n *graph.Node) {
	if b.failed() {
		// A recorded error halts scheduling of new visits; work already
		// in flight still settles.
		return
	}
	if b.skip(n) {
		b.visitChildren(ctx, n)
		return
	}
	b.dispatch(ctx, n)
}

// skip reports whether the node's computation can be skipped: already
// complete, not a requestable kind, or its prior result is still valid.
func (b *Builder) skip(n *graph.Node) bool {
	if n.Complete {
		return true
	}
	if !requestable(n.Kind) {
		return true
	}
	if n.RequestID != "" && b.tracker.IsStillValid(n.RequestID) {
		return true
	}
	return false
}

func requestable(k graph.Kind) bool {
	switch k {
	case graph.KindEntrySpecifier, graph.KindEntryFile, graph.KindDependency, graph.KindAssetGroup:
		return true
	default:
		return false
	}
}

// dispatch submits the node's request to the queue and chains the child
// visit to run only after the request settles and its result is folded
// into the graph, preserving parent-before-descendant mutation order.
func (b *Builder) dispatch(ctx context.Context, n *graph.Node) {
	var req request.Request
	var fold func(request.Result) error

	switch n.Kind {
	case graph.KindEntrySpecifier:
		specifier := n.Specifier
		r := request.NewEntryRequest(specifier, b.projectRoot())
		req = r
		fold = func(res request.Result) error {
			er, ok := res.(*request.EntryResult)
			if !ok {
				return fmt.Errorf("builder: entry request %s settled with %T", r.ID(), res)
			}
			return b.graph.ResolveEntry(specifier, er.Files, r.ID())
		}

	case graph.KindEntryFile:
		entry := *n.EntryFile
		r := request.NewTargetRequest(entry)
		req = r
		fold = func(res request.Result) error {
			tr, ok := res.(*request.TargetsResult)
			if !ok {
				return fmt.Errorf("builder: target request %s settled with %T", r.ID(), res)
			}
			return b.graph.ResolveTargets(entry, tr.Targets, r.ID())
		}

	case graph.KindDependency:
		dep := *n.Dependency
		r := request.NewPathRequest(dep)
		req = r
		fold = func(res request.Result) error {
			pr, ok := res.(*request.PathResult)
			if !ok {
				return fmt.Errorf("builder: path request %s settled with %T", r.ID(), res)
			}
			return b.graph.ResolveDependency(dep, pr.Group, r.ID())
		}

	case graph.KindAssetGroup:
		group := *n.Group
		r := request.NewAssetGroupRequest(group, b.req.BuildName, b.req.Options)
		req = r
		// Recorded before dispatch so the work item is tracked even if
		// the transform ultimately fails.
		b.mu.Lock()
		b.newWork = append(b.newWork, group)
		b.mu.Unlock()
		fold = func(res request.Result) error {
			ar, ok := res.(*request.AssetGroupResult)
			if !ok {
				return fmt.Errorf("builder: asset group request %s settled with %T", r.ID(), res)
			}
			if err := b.graph.ResolveAssetGroup(group, ar.Assets, r.ID()); err != nil {
				return err
			}
			b.mu.Lock()
			for i := range ar.Assets {
				asset := ar.Assets[i]
				b.changed[asset.ID] = &asset
			}
			b.mu.Unlock()
			return nil
		}

	default:
		b.setStructural(fmt.Errorf("%w: %s reached dispatch", ErrUnexpectedKind, n.Kind))
		return
	}

	nodeID := n.ID
	b.queue.Submit(ctx, func(ctx context.Context) error {
		res, err := b.tracker.RunRequest(ctx, req)
		if err != nil {
			// Recorded, not raised: one failing subtree must not halt
			// independent sibling subtrees already queued.
			b.recordError(err)
			return err
		}
		if err := fold(res); err != nil {
			b.setStructural(err)
			return err
		}
		if settled := b.graph.Node(nodeID); settled != nil {
			b.visitChildren(ctx, settled)
		}
		return nil
	})
}

// visitChildren walks every node reachable by an outgoing edge, skipping
// children already visited this pass unless a deferral is pending, and
// consulting the graph's child-visitation gate before recursing.
func (b *Builder) visitChildren(ctx context.Context, n *graph.Node) {
	for _, child := range b.graph.ChildrenOf(n.ID) {
		b.mu.Lock()
		_, seen := b.visited[child.ID]
		b.mu.Unlock()
		if seen && !child.PendingDeferral {
			continue
		}
		if !b.graph.ShouldVisitChild(n.ID, child.ID) {
			continue
		}
		b.mu.Lock()
		b.visited[child.ID] = struct{}{}
		b.mu.Unlock()
		b.visit(ctx, child)
	}
}

func (b *Builder) projectRoot() string {
	if b.req.Options != nil {
		return b.req.Options.ProjectRoot
	}
	return ""
}

func (b *Builder) failed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.structural != nil || len(b.errs) > 0
}

// recordError appends a sub-computation failure in queue-settlement order;
// index zero is the pass's reported error.
func (b *Builder) recordError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.errs = append(b.errs, err)
}

func (b *Builder) setStructural(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.structural == nil {
		b.structural = err
	}
}
