package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/AceTheCreator/parcel/internal/builder"
	"github.com/AceTheCreator/parcel/internal/config"
	"github.com/AceTheCreator/parcel/internal/ctxlog"
	"github.com/AceTheCreator/parcel/internal/entry"
	"github.com/AceTheCreator/parcel/internal/model"
	"github.com/AceTheCreator/parcel/internal/request"
	"github.com/AceTheCreator/parcel/internal/resolve"
	"github.com/AceTheCreator/parcel/internal/taskqueue"
	"github.com/AceTheCreator/parcel/internal/tracker"
	"github.com/AceTheCreator/parcel/internal/transform"
)

// Run executes every configured bundle build. Bundles build sequentially
// and share one request tracker and task queue; a failing bundle does not
// stop the remaining ones, and the first failure is returned.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	cfg := a.buildCfg
	bundles := cfg.Bundles
	if a.appCfg.ConfigPath != "" && len(a.appCfg.Entries) > 0 {
		// Command-line entries build alongside the configured bundles.
		bundles = append(append([]config.Bundle(nil), bundles...), config.Bundle{Name: "cli", Entries: a.appCfg.Entries})
	}

	workers := cfg.Workers
	if workers == 0 {
		workers = a.appCfg.WorkerCount
	}

	env := &request.Env{
		Entries:  entry.NewDiscoverer(a.root),
		Targets:  entry.NewTargetResolver(cfg.Targets),
		Resolver: resolve.New(a.root, cfg.Conditions),
		Transformers: transform.NewRegistry(
			transform.NewJSTransformer(cfg.Defines),
			transform.NewHTMLTransformer(),
		),
	}
	tr, err := tracker.New(env, tracker.DefaultCacheSize)
	if err != nil {
		return fmt.Errorf("failed to create request tracker: %w", err)
	}
	queue := taskqueue.New(workers)

	opts := &model.Options{
		ProjectRoot: a.root,
		Mode:        a.appCfg.Mode,
		Conditions:  cfg.Conditions,
		Exclude:     cfg.Exclude,
		Defines:     cfg.Defines,
		Version:     cfg.Version,
	}

	a.logger.Info("Starting build.", "bundles", len(bundles), "workers", workers)

	var firstErr error
	for _, bundle := range bundles {
		req := builder.BuildRequest{
			Entries:   bundle.Entries,
			BuildName: bundle.Name,
			Options:   opts,
		}
		res, err := builder.Run(ctx, req, tr, queue, nil)
		if err != nil {
			a.logger.Error("Bundle build failed.", "bundle", bundle.Name, "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("bundle %s: %w", bundle.Name, err)
			}
			continue
		}

		a.logger.Info("Bundle built.",
			"bundle", bundle.Name,
			"nodes", res.Graph.Len(),
			"changed_assets", len(res.ChangedAssets),
			"work_items", len(res.NewWorkItems),
		)

		if a.appCfg.GraphDot != "" {
			if err := a.exportDot(res, bundle.Name, len(bundles) > 1); err != nil {
				a.logger.Error("Graph export failed.", "bundle", bundle.Name, "error", err)
				if firstErr == nil {
					firstErr = err
				}
			}
		}
	}

	a.logger.Debug("App.Run method finished.")
	return firstErr
}

// exportDot writes a bundle's graph in Graphviz format. With multiple
// bundles the bundle name is folded into the file name.
func (a *App) exportDot(res *builder.PassResult, bundleName string, multi bool) error {
	path := a.appCfg.GraphDot
	if multi {
		ext := filepath.Ext(path)
		path = strings.TrimSuffix(path, ext) + "." + bundleName + ext
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create graph file: %w", err)
	}
	defer f.Close()

	if err := res.Graph.Dot(f); err != nil {
		return fmt.Errorf("failed to write graph: %w", err)
	}
	a.logger.Info("Graph exported.", "path", path)
	return nil
}
