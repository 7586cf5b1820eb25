// Package model defines the domain value types shared across the build
// pipeline: entries, targets, dependencies, asset groups and assets.
//
// Everything here is a plain value. Identity is content-derived (see
// HashOf), so equivalent values observed on different build passes hash to
// the same id and collapse to the same graph node.
package model

// Options holds the build options shared by every request of a logical
// build. A single instance is constructed per build and passed by
// reference; only Version participates in request hashing.
type Options struct {
	// ProjectRoot is the absolute path all web-absolute specifiers
	// resolve against.
	ProjectRoot string

	// Mode is the build mode, e.g. "development" or "production".
	Mode string

	// Conditions is the package.json export condition priority.
	Conditions []string

	// Exclude lists doublestar patterns for dependency specifiers whose
	// subtrees are excluded from the walk.
	Exclude []string

	// Defines holds compile-time definitions from the define block.
	Defines map[string]string

	// Version is a stable hash of the configuration that produced these
	// options. It scopes cached results to one configuration generation.
	Version string
}

// EntryFile is a discovered entry point on disk.
type EntryFile struct {
	// FilePath is the absolute path of the entry module.
	FilePath string `json:"filePath"`

	// PackagePath is the directory of the nearest package.json, or the
	// project root when none exists.
	PackagePath string `json:"packagePath"`
}

// Target describes one output environment an entry is built for.
type Target struct {
	Name    string `json:"name"`
	Env     string `json:"env"`
	DistDir string `json:"distDir"`
}

// DefaultTarget is used when neither configuration nor package.json
// declare any targets.
func DefaultTarget() Target {
	return Target{Name: "default", Env: "browser", DistDir: "dist"}
}

// Dependency is a single declared import edge: an asset asking for a
// specifier to be resolved.
type Dependency struct {
	// Specifier is the raw import string as written in source.
	Specifier string `json:"specifier"`

	// SourcePath is the file that declared the import.
	SourcePath string `json:"sourcePath"`

	// SourceAssetID is the id of the asset that declared the import.
	SourceAssetID string `json:"sourceAssetId"`

	// Target is inherited from the importing asset group.
	Target Target `json:"target"`

	// IsDynamic marks import() expressions.
	IsDynamic bool `json:"isDynamic,omitempty"`
}

// AssetGroup identifies one file to be transformed for one target. It is
// the unit of transform work and the payload of asset-group nodes.
type AssetGroup struct {
	FilePath string `json:"filePath"`
	Target   Target `json:"target"`
}

// Asset is the product of transforming an asset group: code plus the
// dependencies it declares.
type Asset struct {
	// ID is derived from file path, target and content hash.
	ID string `json:"id"`

	FilePath    string `json:"filePath"`
	Target      Target `json:"target"`
	ContentHash string `json:"contentHash"`

	// Code is the transformed source. Output generation is a later
	// phase; the graph builder only carries it.
	Code []byte `json:"-"`

	// Dependencies are the imports this asset declared, in source order.
	Dependencies []Dependency `json:"dependencies,omitempty"`
}
