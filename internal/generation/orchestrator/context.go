package orchestrator

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/Crohnos/dnd-generator/internal/data/aggregates"
	"github.com/Crohnos/dnd-generator/internal/data/repos"
	domainworld "github.com/Crohnos/dnd-generator/internal/domain/world"
	"github.com/Crohnos/dnd-generator/internal/generation/stages"
	"github.com/Crohnos/dnd-generator/internal/pkg/dbctx"
)

const contextReadParallelism = 4

// categoryContext is the committed content of one category.
type categoryContext struct {
	Category string
	Rows     []repos.WorldSummary
}

// dependencyCategories lists the record categories owned by the stages d
// depends on, in dependency order and without repeats.
func dependencyCategories(reg *stages.Registry, d stages.Descriptor) []string {
	seen := map[string]bool{}
	var out []string
	for _, depID := range d.Dependencies {
		dep, ok := reg.Get(depID)
		if !ok {
			continue
		}
		for _, c := range dep.Categories {
			if seen[c] || !domainworld.IsRecordTable(c) {
				continue
			}
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}

// readContext re-reads every dependency category from the database. Nothing
// is cached between stages.
func (o *Orchestrator) readContext(ctx context.Context, campaignID uint, d stages.Descriptor) ([]categoryContext, error) {
	categories := dependencyCategories(o.Registry, d)
	out := make([]categoryContext, len(categories))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(contextReadParallelism)
	for i, category := range categories {
		g.Go(func() error {
			rows, err := o.World.Summaries(dbctx.Context{Ctx: gctx}, category, campaignID)
			if err != nil {
				return aggregates.MapError("orchestrator.context."+category, err)
			}
			out[i] = categoryContext{Category: category, Rows: rows}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
