package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/Crohnos/dnd-generator/internal/data/aggregates"
	"github.com/Crohnos/dnd-generator/internal/data/repos"
	"github.com/Crohnos/dnd-generator/internal/generation/orchestrator"
	"github.com/Crohnos/dnd-generator/internal/generation/persist"
	"github.com/Crohnos/dnd-generator/internal/generation/prompts"
	"github.com/Crohnos/dnd-generator/internal/generation/schema"
	"github.com/Crohnos/dnd-generator/internal/generation/stages"
	"github.com/Crohnos/dnd-generator/internal/jobs/pipeline/campaign_generate"
	"github.com/Crohnos/dnd-generator/internal/jobs/runtime"
	"github.com/Crohnos/dnd-generator/internal/jobs/worker"
	"github.com/Crohnos/dnd-generator/internal/platform/logger"
	"github.com/Crohnos/dnd-generator/internal/services"
)

type Services struct {
	Campaigns    services.CampaignService
	Generation   services.GenerationService
	Orchestrator *orchestrator.Orchestrator
	JobWorker    *worker.Worker
}

func wireServices(db *gorm.DB, log *logger.Logger, reposet repos.Repos, clients Clients, cat *schema.Catalog) (Services, error) {
	reg := stages.Default()
	pc, err := prompts.Load(reg)
	if err != nil {
		return Services{}, fmt.Errorf("load prompts: %w", err)
	}
	tx := aggregates.NewGormTxRunner(db)

	var (
		progress orchestrator.Notifier
		jobs     runtime.Notifier
	)
	if clients.Bus != nil {
		progress = clients.Bus
		jobs = clients.Bus
	}

	orch, err := orchestrator.New(log, orchestrator.Deps{
		Registry:    reg,
		Tools:       schema.NewToolset(reg, cat, log),
		Prompts:     pc,
		Generator:   clients.Generator,
		Persister:   persist.New(tx, reposet.Campaign, reposet.StageStatus, reposet.World, log),
		Campaigns:   reposet.Campaign,
		StageStatus: reposet.StageStatus,
		World:       reposet.World,
		Notifier:    progress,
	})
	if err != nil {
		return Services{}, fmt.Errorf("init orchestrator: %w", err)
	}

	registry := runtime.NewRegistry()
	if err := registry.Register(campaign_generate.New(log, orch)); err != nil {
		return Services{}, fmt.Errorf("register pipeline: %w", err)
	}

	return Services{
		Campaigns:    services.NewCampaignService(log, tx, reposet),
		Generation:   services.NewGenerationService(log, tx, reposet, jobs),
		Orchestrator: orch,
		JobWorker:    worker.NewWorker(log, reposet.JobRun, registry, jobs),
	}, nil
}
