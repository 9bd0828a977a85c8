package repos

import (
	"gorm.io/gorm"

	"github.com/Crohnos/dnd-generator/internal/data/repos/campaign"
	"github.com/Crohnos/dnd-generator/internal/data/repos/jobs"
	"github.com/Crohnos/dnd-generator/internal/data/repos/world"
	"github.com/Crohnos/dnd-generator/internal/platform/logger"
)

type CampaignRepo = campaign.CampaignRepo
type StageStatusRepo = campaign.StageStatusRepo
type WorldRepo = world.WorldRepo
type JobRunRepo = jobs.JobRunRepo

type WorldSummary = world.Summary

// Repos bundles every repository the service wires at startup.
type Repos struct {
	Campaign    CampaignRepo
	StageStatus StageStatusRepo
	World       WorldRepo
	JobRun      JobRunRepo
}

func New(db *gorm.DB, log *logger.Logger) Repos {
	return Repos{
		Campaign:    campaign.NewCampaignRepo(db, log),
		StageStatus: campaign.NewStageStatusRepo(db, log),
		World:       world.NewWorldRepo(db, log),
		JobRun:      jobs.NewJobRunRepo(db, log),
	}
}
