package config

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	"github.com/AceTheCreator/parcel/internal/ctxlog"
	"github.com/AceTheCreator/parcel/internal/model"
)

// Loader parses HCL build configuration files.
type Loader struct{}

// NewLoader creates a new HCL configuration loader.
func NewLoader() *Loader {
	return &Loader{}
}

// fileRoot decodes the top-level blocks and attributes of a config file.
type fileRoot struct {
	Workers    *int           `hcl:"workers,optional"`
	Exclude    []string       `hcl:"exclude,optional"`
	Conditions []string       `hcl:"conditions,optional"`
	Bundles    []*bundleBlock `hcl:"bundle,block"`
	Targets    []*targetBlock `hcl:"target,block"`
	Define     *defineBlock   `hcl:"define,block"`
}

type bundleBlock struct {
	Name    string   `hcl:"name,label"`
	Entries []string `hcl:"entries"`
}

type targetBlock struct {
	Name    string `hcl:"name,label"`
	DistDir string `hcl:"dist_dir"`
	Env     string `hcl:"env,optional"`
}

// defineBlock holds free-form attributes: each one becomes a compile-time
// substitution.
type defineBlock struct {
	Body hcl.Body `hcl:",remain"`
}

// Load parses one HCL config file into the configuration model.
func (l *Loader) Load(ctx context.Context, path string) (*Config, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("config loader started.", "path", path)

	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, diags)
	}

	var root fileRoot
	diags = gohcl.DecodeBody(hclFile.Body, nil, &root)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode config file %s: %w", path, diags)
	}

	cfg := &Config{
		Exclude:    root.Exclude,
		Conditions: root.Conditions,
	}
	if root.Workers != nil {
		if *root.Workers <= 0 {
			return nil, fmt.Errorf("config: workers must be positive, got %d", *root.Workers)
		}
		cfg.Workers = *root.Workers
	}

	for _, b := range root.Bundles {
		cfg.Bundles = append(cfg.Bundles, Bundle{Name: b.Name, Entries: b.Entries})
	}
	for _, t := range root.Targets {
		env := t.Env
		if env == "" {
			env = "browser"
		}
		cfg.Targets = append(cfg.Targets, model.Target{Name: t.Name, Env: env, DistDir: t.DistDir})
	}

	if root.Define != nil {
		defines, err := decodeDefines(root.Define.Body)
		if err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
		cfg.Defines = defines
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Version = cfg.fingerprint()

	logger.Debug("config loaded.", "bundles", len(cfg.Bundles), "targets", len(cfg.Targets), "defines", len(cfg.Defines))
	return cfg, nil
}

// decodeDefines reads every attribute of the define block as a string.
func decodeDefines(body hcl.Body) (map[string]string, error) {
	attrs, diags := body.JustAttributes()
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode define block: %w", diags)
	}
	if len(attrs) == 0 {
		return nil, nil
	}

	defines := make(map[string]string, len(attrs))
	for name, attr := range attrs {
		value, valDiags := attr.Expr.Value(nil)
		if valDiags.HasErrors() {
			return nil, fmt.Errorf("failed to evaluate define %q: %w", name, valDiags)
		}
		strVal, err := convert.Convert(value, cty.String)
		if err != nil {
			return nil, fmt.Errorf("define %q is not convertible to string: %w", name, err)
		}
		defines[name] = strVal.AsString()
	}
	return defines, nil
}
