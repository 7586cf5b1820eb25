// Package entry discovers entry files from entry specifiers and decides
// the targets each entry builds for.
package entry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/AceTheCreator/parcel/internal/ctxlog"
	"github.com/AceTheCreator/parcel/internal/model"
	"github.com/AceTheCreator/parcel/internal/resolve"
)

// indexCandidates are probed when a directory entry has no package.json
// entry point.
var indexCandidates = []string{"index.js", "index.mjs", "index.ts", "index.tsx", "index.html"}

// Discoverer resolves entry specifiers to concrete entry files. A
// specifier may be a file path, a directory, or a glob pattern relative to
// the project root.
type Discoverer struct {
	root string
}

// NewDiscoverer creates a discoverer rooted at the project directory.
func NewDiscoverer(root string) *Discoverer {
	return &Discoverer{root: root}
}

// Discover implements request.EntrySource. A specifier matching nothing is
// an error: a build with a dangling entry cannot proceed.
func (d *Discoverer) Discover(ctx context.Context, specifier string) ([]model.EntryFile, error) {
	logger := ctxlog.FromContext(ctx)

	pattern := specifier
	if !filepath.IsAbs(pattern) {
		pattern = filepath.Join(d.root, pattern)
	}

	var paths []string
	if isGlob(specifier) {
		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return nil, fmt.Errorf("entry: bad pattern %q: %w", specifier, err)
		}
		paths = matches
	} else {
		paths = []string{pattern}
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("entry: %q matched no files", specifier)
	}
	sort.Strings(paths)

	files := make([]model.EntryFile, 0, len(paths))
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("entry: %q: %w", specifier, err)
		}
		if info.IsDir() {
			path, err = d.directoryEntry(path)
			if err != nil {
				return nil, err
			}
		}
		files = append(files, model.EntryFile{
			FilePath:    path,
			PackagePath: d.packagePath(path),
		})
	}

	logger.Debug("entries discovered.", "specifier", specifier, "count", len(files))
	return files, nil
}

// directoryEntry picks the entry file of a directory: the package.json
// source, module or main field when present, otherwise an index file.
func (d *Discoverer) directoryEntry(dir string) (string, error) {
	if pkg := readPackage(filepath.Join(dir, "package.json")); pkg != nil {
		for _, field := range []string{pkg.Source, pkg.Module, pkg.Main} {
			if field == "" {
				continue
			}
			candidate := filepath.Join(dir, field)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate, nil
			}
		}
	}
	for _, name := range indexCandidates {
		candidate := filepath.Join(dir, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("entry: directory %s has no entry point", dir)
}

// packagePath finds the nearest enclosing directory holding a
// package.json, falling back to the project root.
func (d *Discoverer) packagePath(path string) string {
	dir := filepath.Dir(path)
	for {
		if _, err := os.Stat(filepath.Join(dir, "package.json")); err == nil {
			return dir
		}
		if dir == d.root || dir == filepath.Dir(dir) {
			return d.root
		}
		dir = filepath.Dir(dir)
	}
}

func readPackage(path string) *resolve.PackageJSON {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	pkg, err := resolve.ParsePackageJSON(data)
	if err != nil {
		return nil
	}
	return pkg
}

func isGlob(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[{")
}

// TargetResolver resolves the targets an entry file builds for. Configured
// targets apply to every entry; without configuration every entry builds
// for the default browser target.
type TargetResolver struct {
	targets []model.Target
}

// NewTargetResolver creates a resolver over the configured targets.
func NewTargetResolver(targets []model.Target) *TargetResolver {
	return &TargetResolver{targets: targets}
}

// ResolveTargets implements request.TargetSource.
func (r *TargetResolver) ResolveTargets(_ context.Context, _ model.EntryFile) ([]model.Target, error) {
	if len(r.targets) == 0 {
		return []model.Target{model.DefaultTarget()}, nil
	}
	return append([]model.Target(nil), r.targets...), nil
}
