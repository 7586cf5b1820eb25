package resolve

import (
	"encoding/json"
	"errors"
	"os"
	"strings"
	"sync"
)

// ErrNotExported reports a subpath the package's exports field does not
// expose.
var ErrNotExported = errors.New("not exported by package.json")

// DefaultConditions is the export condition priority used when the build
// options carry none.
var DefaultConditions = []string{"browser", "import", "default"}

// PackageJSON is the subset of package.json the resolver needs.
type PackageJSON struct {
	Name         string            `json:"name"`
	Main         string            `json:"main,omitempty"`
	Module       string            `json:"module,omitempty"`
	Source       string            `json:"source,omitempty"`
	Exports      any               `json:"exports,omitempty"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

// ParsePackageJSON parses package.json data.
func ParsePackageJSON(data []byte) (*PackageJSON, error) {
	var pkg PackageJSON
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, err
	}
	return &pkg, nil
}

// ResolveExport resolves a subpath ("." or "./x") through the exports
// field, trying each condition in order. Without an exports field it falls
// back to module then main for the root subpath.
func (pkg *PackageJSON) ResolveExport(subpath string, conditions []string) (string, error) {
	if pkg.Exports == nil {
		if subpath != "." {
			return "", ErrNotExported
		}
		if pkg.Module != "" {
			return trimDotSlash(pkg.Module), nil
		}
		if pkg.Main != "" {
			return trimDotSlash(pkg.Main), nil
		}
		return "", ErrNotExported
	}

	if exportStr, ok := pkg.Exports.(string); ok {
		if subpath == "." {
			return trimDotSlash(exportStr), nil
		}
		return "", ErrNotExported
	}

	exportsMap, ok := pkg.Exports.(map[string]any)
	if !ok {
		return "", ErrNotExported
	}

	// A map whose keys are conditions rather than subpaths describes only
	// the root entry.
	hasSubpaths := false
	for key := range exportsMap {
		if strings.HasPrefix(key, ".") {
			hasSubpaths = true
			break
		}
	}
	if !hasSubpaths {
		if subpath == "." {
			return resolveConditions(exportsMap, conditions)
		}
		return "", ErrNotExported
	}

	value, ok := exportsMap[subpath]
	if !ok {
		return "", ErrNotExported
	}
	switch v := value.(type) {
	case string:
		return trimDotSlash(v), nil
	case map[string]any:
		return resolveConditions(v, conditions)
	}
	return "", ErrNotExported
}

// resolveConditions picks the first matching condition, recursing into
// nested condition maps.
func resolveConditions(exports map[string]any, conditions []string) (string, error) {
	if len(conditions) == 0 {
		conditions = DefaultConditions
	}
	for _, cond := range conditions {
		value, ok := exports[cond]
		if !ok {
			continue
		}
		switch v := value.(type) {
		case string:
			return trimDotSlash(v), nil
		case map[string]any:
			if resolved, err := resolveConditions(v, conditions); err == nil {
				return resolved, nil
			}
		}
	}
	return "", ErrNotExported
}

func trimDotSlash(path string) string {
	return strings.TrimPrefix(path, "./")
}

// packageEntry coordinates a single concurrent load of one package.json.
type packageEntry struct {
	pkg  *PackageJSON
	err  error
	once sync.Once
}

// packageCache memoizes parsed package.json files by path. Loads are
// single-flight: concurrent callers for one path share a single read.
type packageCache struct {
	mu      sync.RWMutex
	cache   map[string]*PackageJSON
	loading sync.Map
}

func newPackageCache() *packageCache {
	return &packageCache{cache: make(map[string]*PackageJSON)}
}

// getOrLoad returns the cached package for path, reading and parsing the
// file at most once. Missing files are cached as nil with no error.
func (c *packageCache) getOrLoad(path string) (*PackageJSON, error) {
	c.mu.RLock()
	if pkg, ok := c.cache[path]; ok {
		c.mu.RUnlock()
		return pkg, nil
	}
	c.mu.RUnlock()

	actual, _ := c.loading.LoadOrStore(path, &packageEntry{})
	entry := actual.(*packageEntry)
	entry.once.Do(func() {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				// Negative result, cached so repeated misses stay cheap.
				c.mu.Lock()
				c.cache[path] = nil
				c.mu.Unlock()
				return
			}
			entry.err = err
			return
		}
		entry.pkg, entry.err = ParsePackageJSON(data)
		if entry.err == nil {
			c.mu.Lock()
			c.cache[path] = entry.pkg
			c.mu.Unlock()
		}
	})
	return entry.pkg, entry.err
}
