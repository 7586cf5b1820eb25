package resolve

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AceTheCreator/parcel/internal/model"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func dep(specifier, sourcePath string) model.Dependency {
	return model.Dependency{Specifier: specifier, SourcePath: sourcePath, Target: model.DefaultTarget()}
}

func TestResolveRelative(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "src", "a.js"), "export const a = 1\n")
	writeFile(t, filepath.Join(root, "src", "b.ts"), "export const b = 2\n")
	writeFile(t, filepath.Join(root, "src", "lib", "index.js"), "export const lib = 3\n")
	source := filepath.Join(root, "src", "index.js")

	r := New(root, nil)

	t.Run("exact path", func(t *testing.T) {
		group, err := r.Resolve(context.Background(), dep("./a.js", source))
		require.NoError(t, err)
		require.NotNil(t, group)
		assert.Equal(t, filepath.Join(root, "src", "a.js"), group.FilePath)
		assert.Equal(t, model.DefaultTarget(), group.Target)
	})

	t.Run("extension probing", func(t *testing.T) {
		group, err := r.Resolve(context.Background(), dep("./b", source))
		require.NoError(t, err)
		require.NotNil(t, group)
		assert.Equal(t, filepath.Join(root, "src", "b.ts"), group.FilePath)
	})

	t.Run("directory index", func(t *testing.T) {
		group, err := r.Resolve(context.Background(), dep("./lib", source))
		require.NoError(t, err)
		require.NotNil(t, group)
		assert.Equal(t, filepath.Join(root, "src", "lib", "index.js"), group.FilePath)
	})

	t.Run("parent directory", func(t *testing.T) {
		nested := filepath.Join(root, "src", "lib", "index.js")
		group, err := r.Resolve(context.Background(), dep("../a.js", nested))
		require.NoError(t, err)
		require.NotNil(t, group)
		assert.Equal(t, filepath.Join(root, "src", "a.js"), group.FilePath)
	})
}

func TestResolveWebAbsolute(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "vendor", "util.js"), "export {}\n")
	source := filepath.Join(root, "src", "deep", "page.js")

	r := New(root, nil)
	group, err := r.Resolve(context.Background(), dep("/vendor/util.js", source))
	require.NoError(t, err)
	require.NotNil(t, group)
	assert.Equal(t, filepath.Join(root, "vendor", "util.js"), group.FilePath)
}

func TestResolveBare(t *testing.T) {
	root := t.TempDir()
	source := filepath.Join(root, "src", "index.js")

	litDir := filepath.Join(root, "node_modules", "lit")
	writeFile(t, filepath.Join(litDir, "package.json"), `{
		"name": "lit",
		"exports": {
			".": {"browser": "./lit.browser.js", "import": "./lit.js"},
			"./decorators.js": "./decorators.js"
		}
	}`)
	writeFile(t, filepath.Join(litDir, "lit.browser.js"), "export {}\n")
	writeFile(t, filepath.Join(litDir, "lit.js"), "export {}\n")
	writeFile(t, filepath.Join(litDir, "decorators.js"), "export {}\n")

	scopedDir := filepath.Join(root, "node_modules", "@scope", "pkg")
	writeFile(t, filepath.Join(scopedDir, "package.json"), `{"name": "@scope/pkg", "main": "./main.js"}`)
	writeFile(t, filepath.Join(scopedDir, "main.js"), "export {}\n")
	writeFile(t, filepath.Join(scopedDir, "extra.js"), "export {}\n")

	r := New(root, nil)

	t.Run("root export picks first matching condition", func(t *testing.T) {
		group, err := r.Resolve(context.Background(), dep("lit", source))
		require.NoError(t, err)
		require.NotNil(t, group)
		assert.Equal(t, filepath.Join(litDir, "lit.browser.js"), group.FilePath)
	})

	t.Run("condition order is configurable", func(t *testing.T) {
		esm := New(root, []string{"import", "default"})
		group, err := esm.Resolve(context.Background(), dep("lit", source))
		require.NoError(t, err)
		require.NotNil(t, group)
		assert.Equal(t, filepath.Join(litDir, "lit.js"), group.FilePath)
	})

	t.Run("subpath export", func(t *testing.T) {
		group, err := r.Resolve(context.Background(), dep("lit/decorators.js", source))
		require.NoError(t, err)
		require.NotNil(t, group)
		assert.Equal(t, filepath.Join(litDir, "decorators.js"), group.FilePath)
	})

	t.Run("exports restrict unexported subpaths", func(t *testing.T) {
		group, err := r.Resolve(context.Background(), dep("lit/internal.js", source))
		require.NoError(t, err)
		assert.Nil(t, group)
	})

	t.Run("scoped package via main", func(t *testing.T) {
		group, err := r.Resolve(context.Background(), dep("@scope/pkg", source))
		require.NoError(t, err)
		require.NotNil(t, group)
		assert.Equal(t, filepath.Join(scopedDir, "main.js"), group.FilePath)
	})

	t.Run("scoped package subpath without exports", func(t *testing.T) {
		group, err := r.Resolve(context.Background(), dep("@scope/pkg/extra.js", source))
		require.NoError(t, err)
		require.NotNil(t, group)
		assert.Equal(t, filepath.Join(scopedDir, "extra.js"), group.FilePath)
	})
}

func TestResolveNestedNodeModules(t *testing.T) {
	root := t.TempDir()
	inner := filepath.Join(root, "packages", "app", "node_modules", "util")
	writeFile(t, filepath.Join(inner, "package.json"), `{"name": "util", "main": "./u.js"}`)
	writeFile(t, filepath.Join(inner, "u.js"), "export {}\n")

	source := filepath.Join(root, "packages", "app", "src", "index.js")
	r := New(root, nil)
	group, err := r.Resolve(context.Background(), dep("util", source))
	require.NoError(t, err)
	require.NotNil(t, group)
	assert.Equal(t, filepath.Join(inner, "u.js"), group.FilePath, "nearest node_modules wins")
}

func TestResolveMisses(t *testing.T) {
	root := t.TempDir()
	source := filepath.Join(root, "src", "index.js")
	r := New(root, nil)

	t.Run("missing relative file", func(t *testing.T) {
		group, err := r.Resolve(context.Background(), dep("./nope", source))
		require.NoError(t, err, "a miss is not an error")
		assert.Nil(t, group)
	})

	t.Run("unknown bare specifier", func(t *testing.T) {
		group, err := r.Resolve(context.Background(), dep("ghost-package", source))
		require.NoError(t, err)
		assert.Nil(t, group)
	})

	t.Run("url import stays external", func(t *testing.T) {
		group, err := r.Resolve(context.Background(), dep("https://cdn.example.com/lib.js", source))
		require.NoError(t, err)
		assert.Nil(t, group)
	})
}

func TestResolveExport(t *testing.T) {
	t.Run("string exports", func(t *testing.T) {
		pkg := &PackageJSON{Exports: "./dist/index.js"}
		target, err := pkg.ResolveExport(".", nil)
		require.NoError(t, err)
		assert.Equal(t, "dist/index.js", target)

		_, err = pkg.ResolveExport("./x", nil)
		assert.ErrorIs(t, err, ErrNotExported)
	})

	t.Run("module beats main without exports", func(t *testing.T) {
		pkg := &PackageJSON{Main: "./cjs.js", Module: "./esm.js"}
		target, err := pkg.ResolveExport(".", nil)
		require.NoError(t, err)
		assert.Equal(t, "esm.js", target)
	})

	t.Run("nested conditions", func(t *testing.T) {
		pkg := &PackageJSON{Exports: map[string]any{
			".": map[string]any{
				"browser": map[string]any{"import": "./b.mjs"},
				"default": "./fallback.js",
			},
		}}
		target, err := pkg.ResolveExport(".", nil)
		require.NoError(t, err)
		assert.Equal(t, "b.mjs", target)
	})

	t.Run("no match falls through conditions", func(t *testing.T) {
		pkg := &PackageJSON{Exports: map[string]any{
			".": map[string]any{"node": "./node.js"},
		}}
		_, err := pkg.ResolveExport(".", nil)
		assert.ErrorIs(t, err, ErrNotExported)
	})
}

func TestPackageCacheReadsOnce(t *testing.T) {
	root := t.TempDir()
	pkgJSON := filepath.Join(root, "node_modules", "once", "package.json")
	writeFile(t, pkgJSON, `{"name": "once", "main": "./o.js"}`)
	writeFile(t, filepath.Join(root, "node_modules", "once", "o.js"), "export {}\n")

	r := New(root, nil)
	source := filepath.Join(root, "src", "index.js")

	for range 3 {
		group, err := r.Resolve(context.Background(), dep("once", source))
		require.NoError(t, err)
		require.NotNil(t, group)
	}

	// Removing the file does not evict the cache; invalidation does.
	require.NoError(t, os.Remove(pkgJSON))
	group, err := r.Resolve(context.Background(), dep("once", source))
	require.NoError(t, err)
	assert.NotNil(t, group)

	r.Invalidate(pkgJSON)
	group, err = r.Resolve(context.Background(), dep("once", source))
	require.NoError(t, err)
	assert.Nil(t, group)
}
