package request

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AceTheCreator/parcel/internal/model"
)

func TestRequestIDStability(t *testing.T) {
	t.Run("equal inputs produce equal ids", func(t *testing.T) {
		a := NewEntryRequest("src/index.js", "/proj")
		b := NewEntryRequest("src/index.js", "/proj")
		assert.Equal(t, a.ID(), b.ID())

		dep := model.Dependency{Specifier: "./util.js", SourcePath: "/proj/src/index.js"}
		assert.Equal(t, NewPathRequest(dep).ID(), NewPathRequest(dep).ID())
	})

	t.Run("different inputs produce different ids", func(t *testing.T) {
		a := NewEntryRequest("src/index.js", "/proj")
		b := NewEntryRequest("src/other.js", "/proj")
		assert.NotEqual(t, a.ID(), b.ID())
	})

	t.Run("kinds never collide for the same payload shape", func(t *testing.T) {
		entry := model.EntryFile{FilePath: "/proj/src/index.js", PackagePath: "/proj"}
		group := model.AssetGroup{FilePath: "/proj/src/index.js", Target: model.DefaultTarget()}
		assert.NotEqual(t, NewTargetRequest(entry).ID(), NewAssetGroupRequest(group, "main", nil).ID())
	})
}

func TestAssetGroupRequestScoping(t *testing.T) {
	group := model.AssetGroup{FilePath: "/proj/src/index.js", Target: model.DefaultTarget()}

	t.Run("build name scopes the id", func(t *testing.T) {
		a := NewAssetGroupRequest(group, "main", nil)
		b := NewAssetGroupRequest(group, "worker", nil)
		assert.NotEqual(t, a.ID(), b.ID())
	})

	t.Run("options version scopes the id, pointer identity does not", func(t *testing.T) {
		v1a := NewAssetGroupRequest(group, "main", &model.Options{Version: "v1"})
		v1b := NewAssetGroupRequest(group, "main", &model.Options{Version: "v1"})
		v2 := NewAssetGroupRequest(group, "main", &model.Options{Version: "v2"})
		assert.Equal(t, v1a.ID(), v1b.ID())
		assert.NotEqual(t, v1a.ID(), v2.ID())
	})
}

func TestKindString(t *testing.T) {
	require.Equal(t, "entry", KindEntry.String())
	require.Equal(t, "targets", KindTargets.String())
	require.Equal(t, "path", KindPath.String())
	require.Equal(t, "asset_group", KindAssetGroup.String())
}
