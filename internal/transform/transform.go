// Package transform turns asset groups into assets by reading source files
// and extracting their dependencies.
package transform

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/AceTheCreator/parcel/internal/ctxlog"
	"github.com/AceTheCreator/parcel/internal/model"
)

// Transformer extracts the dependencies of one source file kind.
type Transformer interface {
	// Extensions lists the file extensions the transformer handles,
	// with leading dot.
	Extensions() []string

	// Transform parses code and returns the dependencies it declares.
	Transform(ctx context.Context, group model.AssetGroup, code []byte) ([]model.Dependency, error)
}

// Registry dispatches asset groups to transformers by file extension.
// Files with no registered transformer become opaque assets with no
// dependencies.
type Registry struct {
	byExt map[string]Transformer
}

// NewRegistry creates a registry over the given transformers. A later
// transformer claiming an extension overrides an earlier one.
func NewRegistry(transformers ...Transformer) *Registry {
	r := &Registry{byExt: make(map[string]Transformer)}
	for _, t := range transformers {
		for _, ext := range t.Extensions() {
			r.byExt[strings.ToLower(ext)] = t
		}
	}
	return r
}

// Transform implements request.TransformSource. The asset id is derived
// from the file path, target and content hash, so editing a file yields a
// new asset identity while an untouched file keeps its old one.
func (r *Registry) Transform(ctx context.Context, group model.AssetGroup) ([]model.Asset, error) {
	logger := ctxlog.FromContext(ctx)

	code, err := os.ReadFile(group.FilePath)
	if err != nil {
		return nil, fmt.Errorf("transform: reading %s: %w", group.FilePath, err)
	}

	var deps []model.Dependency
	ext := strings.ToLower(filepath.Ext(group.FilePath))
	if t, ok := r.byExt[ext]; ok {
		deps, err = t.Transform(ctx, group, code)
		if err != nil {
			return nil, fmt.Errorf("transform: %s: %w", group.FilePath, err)
		}
	} else {
		logger.Debug("no transformer for extension, emitting opaque asset.", "path", group.FilePath, "ext", ext)
	}

	contentHash := model.HashOf(code)
	asset := model.Asset{
		ID:           model.HashOf(group.FilePath, group.Target, contentHash),
		FilePath:     group.FilePath,
		Target:       group.Target,
		ContentHash:  contentHash,
		Code:         code,
		Dependencies: deps,
	}
	return []model.Asset{asset}, nil
}
