// Package request defines the four request descriptors the graph builder
// dispatches, one per requestable node kind. Descriptors are immutable
// value types with a stable content-derived id, so the memoization layer
// recognizes identical requests across build passes.
package request

import (
	"context"

	"github.com/AceTheCreator/parcel/internal/model"
)

// Kind enumerates the request types.
type Kind int

const (
	// KindEntry discovers entry files for an entry specifier.
	KindEntry Kind = iota
	// KindTargets resolves build targets for an entry file.
	KindTargets
	// KindPath resolves a dependency specifier to an asset group.
	KindPath
	// KindAssetGroup transforms an asset group into assets.
	KindAssetGroup
)

func (k Kind) String() string {
	switch k {
	case KindEntry:
		return "entry"
	case KindTargets:
		return "targets"
	case KindPath:
		return "path"
	case KindAssetGroup:
		return "asset_group"
	default:
		return "unknown"
	}
}

// Result is the settled value of a request. The concrete type matches the
// request kind: *EntryResult, *TargetsResult, *PathResult or
// *AssetGroupResult.
type Result any

// EntryResult lists the entry files discovered for a specifier.
type EntryResult struct {
	Files []model.EntryFile
}

// TargetsResult lists the targets an entry file builds for.
type TargetsResult struct {
	Targets []model.Target
}

// PathResult carries the asset group a dependency resolved to. A nil
// Group is a legitimate miss, not an error.
type PathResult struct {
	Group *model.AssetGroup
}

// AssetGroupResult carries the assets a transform produced.
type AssetGroupResult struct {
	Assets []model.Asset
}

// EntrySource discovers entry files for an entry specifier.
type EntrySource interface {
	Discover(ctx context.Context, specifier string) ([]model.EntryFile, error)
}

// TargetSource resolves the targets an entry file should build for.
type TargetSource interface {
	ResolveTargets(ctx context.Context, file model.EntryFile) ([]model.Target, error)
}

// PathResolver resolves a dependency to the asset group it imports.
// Returning (nil, nil) records a legitimate miss.
type PathResolver interface {
	Resolve(ctx context.Context, dep model.Dependency) (*model.AssetGroup, error)
}

// TransformSource transforms one asset group into its assets.
type TransformSource interface {
	Transform(ctx context.Context, group model.AssetGroup) ([]model.Asset, error)
}

// Env bundles the collaborators requests execute against. Descriptors stay
// pure; the environment is supplied at run time by the tracker.
type Env struct {
	Entries      EntrySource
	Targets      TargetSource
	Resolver     PathResolver
	Transformers TransformSource
}

// Request is an immutable, hashable description of one sub-computation.
type Request interface {
	// ID is stable across processes for equal inputs.
	ID() string
	Kind() Kind
	Run(ctx context.Context, env *Env) (Result, error)
}

// EntryRequest discovers entry files for one entry specifier.
type EntryRequest struct {
	Specifier   string
	ProjectRoot string
	id          string
}

// NewEntryRequest builds an entry discovery request.
func NewEntryRequest(specifier, projectRoot string) *EntryRequest {
	return &EntryRequest{
		Specifier:   specifier,
		ProjectRoot: projectRoot,
		id:          model.HashOf(KindEntry.String(), specifier, projectRoot),
	}
}

func (r *EntryRequest) ID() string { return r.id }

func (r *EntryRequest) Kind() Kind { return KindEntry }

func (r *EntryRequest) Run(ctx context.Context, env *Env) (Result, error) {
	files, err := env.Entries.Discover(ctx, r.Specifier)
	if err != nil {
		return nil, err
	}
	return &EntryResult{Files: files}, nil
}

// TargetRequest resolves build targets for one entry file.
type TargetRequest struct {
	Entry model.EntryFile
	id    string
}

// NewTargetRequest builds a target resolution request.
func NewTargetRequest(entry model.EntryFile) *TargetRequest {
	return &TargetRequest{
		Entry: entry,
		id:    model.HashOf(KindTargets.String(), entry),
	}
}

func (r *TargetRequest) ID() string { return r.id }

func (r *TargetRequest) Kind() Kind { return KindTargets }

func (r *TargetRequest) Run(ctx context.Context, env *Env) (Result, error) {
	targets, err := env.Targets.ResolveTargets(ctx, r.Entry)
	if err != nil {
		return nil, err
	}
	return &TargetsResult{Targets: targets}, nil
}

// PathRequest resolves one dependency specifier.
type PathRequest struct {
	Dependency model.Dependency
	id         string
}

// NewPathRequest builds a dependency path resolution request.
func NewPathRequest(dep model.Dependency) *PathRequest {
	return &PathRequest{
		Dependency: dep,
		id:         model.HashOf(KindPath.String(), dep),
	}
}

func (r *PathRequest) ID() string { return r.id }

func (r *PathRequest) Kind() Kind { return KindPath }

func (r *PathRequest) Run(ctx context.Context, env *Env) (Result, error) {
	group, err := env.Resolver.Resolve(ctx, r.Dependency)
	if err != nil {
		return nil, err
	}
	return &PathResult{Group: group}, nil
}

// AssetGroupRequest transforms one asset group. It carries the logical
// build name and a shared reference to the build options so caching is
// scoped per logical target; only the options version participates in the
// id.
type AssetGroupRequest struct {
	Group     model.AssetGroup
	BuildName string
	Options   *model.Options
	id        string
}

// NewAssetGroupRequest builds an asset transform request.
func NewAssetGroupRequest(group model.AssetGroup, buildName string, opts *model.Options) *AssetGroupRequest {
	version := ""
	if opts != nil {
		version = opts.Version
	}
	return &AssetGroupRequest{
		Group:     group,
		BuildName: buildName,
		Options:   opts,
		id:        model.HashOf(KindAssetGroup.String(), group, buildName, version),
	}
}

func (r *AssetGroupRequest) ID() string { return r.id }

func (r *AssetGroupRequest) Kind() Kind { return KindAssetGroup }

func (r *AssetGroupRequest) Run(ctx context.Context, env *Env) (Result, error) {
	assets, err := env.Transformers.Transform(ctx, r.Group)
	if err != nil {
		return nil, err
	}
	return &AssetGroupResult{Assets: assets}, nil
}
