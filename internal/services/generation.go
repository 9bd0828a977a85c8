package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/Crohnos/dnd-generator/internal/data/aggregates"
	"github.com/Crohnos/dnd-generator/internal/data/repos"
	types "github.com/Crohnos/dnd-generator/internal/domain"
	domainagg "github.com/Crohnos/dnd-generator/internal/domain/aggregates"
	"github.com/Crohnos/dnd-generator/internal/jobs/pipeline/campaign_generate"
	"github.com/Crohnos/dnd-generator/internal/jobs/runtime"
	"github.com/Crohnos/dnd-generator/internal/pkg/dbctx"
	"github.com/Crohnos/dnd-generator/internal/platform/ctxutil"
	"github.com/Crohnos/dnd-generator/internal/platform/logger"
)

const (
	GenerateJobType = campaign_generate.JobType
	campaignEntity  = "campaign"

	InterruptedMessage = campaign_generate.InterruptedReason
)

type GenerationService interface {
	// Enqueue queues a campaign_generate job. When a queued or running job
	// already exists for the campaign it is returned with created=false.
	Enqueue(ctx context.Context, campaignID uint) (job *types.JobRun, created bool, err error)
	GetJob(ctx context.Context, id uuid.UUID) (*types.JobRun, error)
}

type generationService struct {
	log       *logger.Logger
	tx        aggregates.TxRunner
	campaigns repos.CampaignRepo
	jobs      repos.JobRunRepo
	notify    runtime.Notifier
}

func NewGenerationService(baseLog *logger.Logger, tx aggregates.TxRunner, r repos.Repos, notify runtime.Notifier) GenerationService {
	return &generationService{
		log:       baseLog.With("service", "GenerationService"),
		tx:        tx,
		campaigns: r.Campaign,
		jobs:      r.JobRun,
		notify:    notify,
	}
}

func (s *generationService) Enqueue(ctx context.Context, campaignID uint) (*types.JobRun, bool, error) {
	const op = "generation.enqueue"
	var (
		job     *types.JobRun
		created bool
	)
	err := s.tx.InTx(ctx, func(dbc dbctx.Context) error {
		c, err := s.campaigns.GetByID(dbc, campaignID)
		if err != nil {
			return err
		}
		if c == nil {
			return domainagg.NotFound(op, "campaign")
		}
		if c.Status == types.CampaignStatusCompleted {
			return domainagg.PreconditionFailed(op, "campaign is already generated")
		}

		busy, err := s.jobs.HasRunnableForEntity(dbc, campaignEntity, campaignID, GenerateJobType)
		if err != nil {
			return err
		}
		if busy {
			job, err = s.jobs.GetLatestByEntity(dbc, campaignEntity, campaignID, GenerateJobType)
			if err == nil && job == nil {
				err = aggregates.ConflictError("generation already pending")
			}
			return err
		}
		if c.Status == types.CampaignStatusGenerating {
			// No job owns the run, so it died with its worker. Mark it
			// interrupted so the new job resumes from the completed stages.
			if _, err := s.campaigns.UpdateFieldsIfStatus(dbc, campaignID, []string{types.CampaignStatusGenerating}, map[string]interface{}{
				"status":     types.CampaignStatusError,
				"last_error": InterruptedMessage,
			}); err != nil {
				return err
			}
			s.log.Warn("Recovered interrupted generation", "campaign_id", campaignID)
		}

		payload := map[string]any{"campaign_id": campaignID}
		if td := ctxutil.GetTraceData(ctx); td != nil {
			if td.TraceID != "" {
				payload["trace_id"] = td.TraceID
			}
			if td.RequestID != "" {
				payload["request_id"] = td.RequestID
			}
		}
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		now := time.Now()
		entityID := campaignID
		job = &types.JobRun{
			JobType:    GenerateJobType,
			EntityType: campaignEntity,
			EntityID:   &entityID,
			Status:     types.JobStatusQueued,
			Stage:      "queued",
			Payload:    datatypes.JSON(raw),
			Result:     datatypes.JSON([]byte(`{}`)),
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if _, err := s.jobs.Create(dbc, []*types.JobRun{job}); err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		return nil, false, aggregates.MapError(op, err)
	}

	if created {
		s.log.Info("Generation job queued", "campaign_id", campaignID, "job_id", job.ID)
		if s.notify != nil {
			s.notify.JobUpdated(ctx, job)
		}
	} else {
		s.log.Info("Generation job already pending", "campaign_id", campaignID, "job_id", job.ID)
	}
	return job, created, nil
}

func (s *generationService) GetJob(ctx context.Context, id uuid.UUID) (*types.JobRun, error) {
	if id == uuid.Nil {
		return nil, domainagg.NotFound("generation.job", "job")
	}
	rows, err := s.jobs.GetByIDs(dbctx.Context{Ctx: ctx}, []uuid.UUID{id})
	if err != nil {
		return nil, aggregates.MapError("generation.job", err)
	}
	if len(rows) == 0 {
		return nil, domainagg.NotFound("generation.job", "job")
	}
	return rows[0], nil
}
