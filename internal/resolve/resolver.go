// Package resolve maps dependency specifiers to files on disk using
// node-style resolution: relative and web-absolute paths with extension
// probing, and bare specifiers through node_modules package exports.
package resolve

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/AceTheCreator/parcel/internal/ctxlog"
	"github.com/AceTheCreator/parcel/internal/model"
)

// extensionCandidates are probed, in order, when a specifier does not name
// an existing file directly.
var extensionCandidates = []string{".js", ".mjs", ".ts", ".tsx", ".jsx"}

// Resolver turns dependencies into asset groups. A nil group with a nil
// error means the specifier legitimately resolves to nothing.
type Resolver struct {
	root       string
	conditions []string
	pkgs       *packageCache
}

// New creates a resolver for a project root. The conditions order export
// condition matching for bare specifiers; nil selects the browser defaults.
func New(root string, conditions []string) *Resolver {
	return &Resolver{
		root:       root,
		conditions: conditions,
		pkgs:       newPackageCache(),
	}
}

// Resolve implements request.PathResolver.
func (r *Resolver) Resolve(ctx context.Context, dep model.Dependency) (*model.AssetGroup, error) {
	logger := ctxlog.FromContext(ctx)

	var resolved string
	var err error
	switch {
	case strings.HasPrefix(dep.Specifier, "./") || strings.HasPrefix(dep.Specifier, "../"):
		resolved = r.resolveFile(filepath.Join(filepath.Dir(dep.SourcePath), dep.Specifier))
	case strings.HasPrefix(dep.Specifier, "/"):
		resolved = r.resolveFile(filepath.Join(r.root, dep.Specifier))
	case strings.Contains(dep.Specifier, "://"):
		// URL imports stay external.
		return nil, nil
	default:
		resolved, err = r.resolveBare(dep)
		if err != nil {
			return nil, err
		}
	}
	if resolved == "" {
		logger.Debug("specifier did not resolve.", "specifier", dep.Specifier, "from", dep.SourcePath)
		return nil, nil
	}

	return &model.AssetGroup{FilePath: resolved, Target: dep.Target}, nil
}

// Invalidate drops the cached package.json for a path, typically after a
// file change notification.
func (r *Resolver) Invalidate(pkgJSONPath string) {
	r.pkgs.mu.Lock()
	delete(r.pkgs.cache, pkgJSONPath)
	r.pkgs.mu.Unlock()
	r.pkgs.loading.Delete(pkgJSONPath)
}

// resolveFile probes a path as written, then with each known extension,
// then as a directory index. Returns "" when nothing exists.
func (r *Resolver) resolveFile(path string) string {
	if isFile(path) {
		return path
	}
	for _, ext := range extensionCandidates {
		if candidate := path + ext; isFile(candidate) {
			return candidate
		}
	}
	for _, ext := range extensionCandidates {
		if candidate := filepath.Join(path, "index"+ext); isFile(candidate) {
			return candidate
		}
	}
	return ""
}

// resolveBare resolves a bare specifier by walking node_modules directories
// upward from the importing file, resolving the subpath through the
// package's exports.
func (r *Resolver) resolveBare(dep model.Dependency) (string, error) {
	pkgName := packageName(dep.Specifier)
	subpath := strings.TrimPrefix(dep.Specifier, pkgName)
	if subpath == "" {
		subpath = "."
	} else {
		subpath = "." + subpath
	}

	for _, dir := range r.nodeModulesDirs(dep.SourcePath) {
		pkgPath := filepath.Join(dir, pkgName)
		pkg, err := r.pkgs.getOrLoad(filepath.Join(pkgPath, "package.json"))
		if err != nil {
			return "", err
		}
		if pkg == nil {
			continue
		}
		return r.resolvePackageSubpath(pkg, pkgPath, subpath), nil
	}
	return "", nil
}

// resolvePackageSubpath resolves a subpath within a package directory
// through its exports field. Packages with exports enforce them; packages
// without fall back to direct subpath resolution.
func (r *Resolver) resolvePackageSubpath(pkg *PackageJSON, pkgPath, subpath string) string {
	target, err := pkg.ResolveExport(subpath, r.conditions)
	if err == nil {
		return r.resolveFile(filepath.Join(pkgPath, target))
	}
	if pkg.Exports != nil {
		return ""
	}
	if subpath == "." {
		return r.resolveFile(filepath.Join(pkgPath, "index"))
	}
	return r.resolveFile(filepath.Join(pkgPath, trimDotSlash(subpath)))
}

// nodeModulesDirs lists every node_modules directory between the importing
// file and the project root, nearest first.
func (r *Resolver) nodeModulesDirs(sourcePath string) []string {
	var dirs []string
	dir := filepath.Dir(sourcePath)
	for {
		dirs = append(dirs, filepath.Join(dir, "node_modules"))
		if dir == r.root || dir == filepath.Dir(dir) {
			break
		}
		dir = filepath.Dir(dir)
	}
	return dirs
}

// packageName extracts the package name from a bare specifier, handling
// scoped packages like "@scope/name/subpath".
func packageName(specifier string) string {
	if strings.HasPrefix(specifier, "@") {
		parts := strings.SplitN(specifier, "/", 3)
		if len(parts) >= 2 {
			return parts[0] + "/" + parts[1]
		}
		return specifier
	}
	if idx := strings.Index(specifier, "/"); idx > 0 {
		return specifier[:idx]
	}
	return specifier
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
