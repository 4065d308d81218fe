package manifest

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/dbt-governance/pkg/core"
)

// maxConcurrentLoads bounds how many manifests are decoded at once.
const maxConcurrentLoads = 4

// LoadAll reads the manifests of dirs concurrently. Projects are returned in
// the order of dirs. Two directories resolving to the same project name are
// rejected, since model identity is (project, name).
func LoadAll(ctx context.Context, dirs []string, targetDir string, logger *slog.Logger) ([]*Project, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	projects := make([]*Project, len(dirs))
	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(maxConcurrentLoads)

	for i, dir := range dirs {
		eg.Go(func() error {
			if err := egctx.Err(); err != nil {
				return err
			}
			p, err := LoadProject(dir, targetDir)
			if err != nil {
				return err
			}
			logger.Debug("manifest loaded", "project", p.ID, "path", p.ManifestPath, "models", len(p.Models), "dbt_version", p.DbtVersion)
			projects[i] = p
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[string]string, len(projects))
	for _, p := range projects {
		if prev, dup := seen[p.ID]; dup {
			return nil, fmt.Errorf("%w %q in %s and %s", ErrDuplicateProject, p.ID, prev, p.Dir)
		}
		seen[p.ID] = p.Dir
	}
	return projects, nil
}

// Models flattens the models of projects, preserving project order.
func Models(projects []*Project) []*core.Model {
	n := 0
	for _, p := range projects {
		n += len(p.Models)
	}
	models := make([]*core.Model, 0, n)
	for _, p := range projects {
		models = append(models, p.Models...)
	}
	return models
}
