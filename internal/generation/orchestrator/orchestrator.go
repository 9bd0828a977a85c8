// Package orchestrator runs the campaign generation stages in order, one
// generative call and one committed transaction per stage.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Crohnos/dnd-generator/internal/data/aggregates"
	"github.com/Crohnos/dnd-generator/internal/data/repos"
	campaignrepo "github.com/Crohnos/dnd-generator/internal/data/repos/campaign"
	types "github.com/Crohnos/dnd-generator/internal/domain"
	domainagg "github.com/Crohnos/dnd-generator/internal/domain/aggregates"
	"github.com/Crohnos/dnd-generator/internal/domain/generation"
	"github.com/Crohnos/dnd-generator/internal/generation/persist"
	"github.com/Crohnos/dnd-generator/internal/generation/prompts"
	"github.com/Crohnos/dnd-generator/internal/generation/schema"
	"github.com/Crohnos/dnd-generator/internal/generation/stages"
	"github.com/Crohnos/dnd-generator/internal/observability"
	"github.com/Crohnos/dnd-generator/internal/pkg/dbctx"
	"github.com/Crohnos/dnd-generator/internal/platform/anthropic"
	"github.com/Crohnos/dnd-generator/internal/platform/logger"
)

// Generator is the generative service as seen by a run.
type Generator interface {
	Invoke(ctx context.Context, req anthropic.Request) (json.RawMessage, error)
}

// Notifier receives progress after every state change. Publishing is best effort.
type Notifier interface {
	Publish(ctx context.Context, p types.CampaignProgress)
}

type Deps struct {
	Registry    *stages.Registry
	Tools       *schema.Toolset
	Prompts     *prompts.Catalog
	Generator   Generator
	Persister   *persist.Persister
	Campaigns   repos.CampaignRepo
	StageStatus repos.StageStatusRepo
	World       repos.WorldRepo
	Notifier    Notifier
}

type Orchestrator struct {
	Deps
	log *logger.Logger
}

func New(log *logger.Logger, deps Deps) (*Orchestrator, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	switch {
	case deps.Registry == nil:
		return nil, fmt.Errorf("stage registry required")
	case deps.Tools == nil:
		return nil, fmt.Errorf("toolset required")
	case deps.Prompts == nil:
		return nil, fmt.Errorf("prompt catalog required")
	case deps.Generator == nil:
		return nil, fmt.Errorf("generator required")
	case deps.Persister == nil:
		return nil, fmt.Errorf("persister required")
	case deps.Campaigns == nil || deps.StageStatus == nil || deps.World == nil:
		return nil, fmt.Errorf("repos required")
	}
	for _, d := range deps.Registry.Ordered() {
		if _, err := promptFor(d.ID); err != nil {
			return nil, err
		}
	}
	return &Orchestrator{Deps: deps, log: log.With("component", "Orchestrator")}, nil
}

// Run generates every stage of a campaign that has not completed yet. It
// reports false without touching the campaign when the campaign is already
// generating or completed. A failed stage ends the run with status error;
// stages committed before it stay committed.
func (o *Orchestrator) Run(ctx context.Context, campaignID uint) (bool, error) {
	ctx, span := observability.Tracer().Start(ctx, "generation.run",
		trace.WithAttributes(attribute.Int64("campaign.id", int64(campaignID))))
	defer span.End()

	dbc := dbctx.Context{Ctx: ctx}
	ordered := o.Registry.Ordered()
	total := len(ordered)

	began, err := o.Campaigns.BeginGeneration(dbc, campaignID, total)
	if err != nil {
		return false, aggregates.MapError("orchestrator.begin", err)
	}
	if !began {
		exists, err := o.Campaigns.Exists(dbc, campaignID)
		if err != nil {
			return false, aggregates.MapError("orchestrator.begin", err)
		}
		if !exists {
			return false, domainagg.NotFound("orchestrator.begin", "campaign")
		}
		o.log.Info("Generation already running or finished; skipping", "campaign_id", campaignID)
		span.SetAttributes(attribute.Bool("generation.skipped", true))
		return false, nil
	}

	campaign, err := o.Campaigns.GetByID(dbc, campaignID)
	if err != nil {
		return true, o.fail(ctx, campaignID, "", fmt.Sprintf("load campaign: %v", err), aggregates.MapError("orchestrator.load", err))
	}
	if campaign == nil {
		return true, domainagg.NotFound("orchestrator.load", "campaign")
	}

	completed, err := o.resume(dbc, campaignID)
	if err != nil {
		return true, o.fail(ctx, campaignID, "", fmt.Sprintf("resume: %v", err), err)
	}
	percent := completed.Len() * 100 / total
	if completed.Len() > 0 {
		if err := o.Campaigns.SetPercent(dbc, campaignID, percent); err != nil {
			return true, o.fail(ctx, campaignID, "", fmt.Sprintf("resume: record progress: %v", err), aggregates.MapError("orchestrator.percent", err))
		}
		o.log.Info("Resuming generation", "campaign_id", campaignID, "completed", completed.Len(), "total", total)
	}
	o.publish(ctx, types.CampaignProgress{CampaignID: campaignID, Status: types.CampaignStatusGenerating, PercentComplete: percent})

	for _, d := range ordered {
		if completed.Has(d.ID) {
			continue
		}
		stage := d.Name()
		if err := o.Registry.Validate(completed, d.ID); err != nil {
			return true, o.fail(ctx, campaignID, stage, stage+": "+err.Error(), err)
		}
		if err := o.StageStatus.Upsert(dbc, campaignID, stage, campaignrepo.StageGenerating, ""); err != nil {
			return true, o.failBookkeeping(ctx, campaignID, d, "record stage status", aggregates.MapError("orchestrator.stage_status", err))
		}
		if err := o.Campaigns.SetCurrentStage(dbc, campaignID, stage); err != nil {
			return true, o.failBookkeeping(ctx, campaignID, d, "record current stage", aggregates.MapError("orchestrator.current_stage", err))
		}
		o.publish(ctx, types.CampaignProgress{CampaignID: campaignID, Status: types.CampaignStatusGenerating, Stage: stage, PercentComplete: percent})

		start := time.Now()
		if err := o.runStage(ctx, campaign, d); err != nil {
			observability.Current().ObserveStage(stage, campaignrepo.StageError, time.Since(start))
			msg := fmt.Sprintf("Failed in stage %d (%s): %v", d.Ordinal, stage, err)
			if uErr := o.StageStatus.Upsert(dbc, campaignID, stage, campaignrepo.StageError, err.Error()); uErr != nil {
				o.log.Warn("Failed to record stage error", "campaign_id", campaignID, "stage", stage, "error", uErr)
			}
			return true, o.fail(ctx, campaignID, stage, msg, err)
		}
		observability.Current().ObserveStage(stage, campaignrepo.StageCompleted, time.Since(start))

		// The stage's completed status was written with its rows; a failure
		// from here on leaves the stage committed and the next run skips it.
		completed.Add(d.ID)
		percent = completed.Len() * 100 / total
		if err := o.Campaigns.SetPercent(dbc, campaignID, percent); err != nil {
			return true, o.failBookkeeping(ctx, campaignID, d, "record progress", aggregates.MapError("orchestrator.percent", err))
		}
		o.publish(ctx, types.CampaignProgress{CampaignID: campaignID, Status: types.CampaignStatusGenerating, Stage: stage, PercentComplete: percent})
		o.log.Info("Stage completed", "campaign_id", campaignID, "stage", stage, "percent", percent, "duration_ms", time.Since(start).Milliseconds())
	}

	if err := o.Campaigns.Complete(dbc, campaignID); err != nil {
		return true, o.fail(ctx, campaignID, "", fmt.Sprintf("complete: %v", err), aggregates.MapError("orchestrator.complete", err))
	}
	o.publish(ctx, types.CampaignProgress{CampaignID: campaignID, Status: types.CampaignStatusCompleted, PercentComplete: 100})
	o.log.Info("Campaign generation completed", "campaign_id", campaignID)
	return true, nil
}

// Recover releases a campaign left in generating by a run that died with its
// worker: the campaign moves to error and a stage caught mid-flight is marked
// failed, so the next Run resumes after the last committed stage. Callers must
// know no other run is alive; the job runtime guarantees this for a reclaimed
// stale job. It reports whether anything was released.
func (o *Orchestrator) Recover(ctx context.Context, campaignID uint, reason string) (bool, error) {
	dbc := dbctx.Context{Ctx: ctx}
	c, err := o.Campaigns.GetByID(dbc, campaignID)
	if err != nil {
		return false, aggregates.MapError("orchestrator.recover", err)
	}
	if c == nil || c.Status != types.CampaignStatusGenerating {
		return false, nil
	}
	rows, err := o.StageStatus.ListByCampaign(dbc, campaignID)
	if err != nil {
		return false, aggregates.MapError("orchestrator.recover", err)
	}
	for _, r := range rows {
		if r.Status != campaignrepo.StageGenerating {
			continue
		}
		if err := o.StageStatus.Upsert(dbc, campaignID, r.Stage, campaignrepo.StageError, reason); err != nil {
			return false, aggregates.MapError("orchestrator.recover", err)
		}
	}
	ok, err := o.Campaigns.UpdateFieldsIfStatus(dbc, campaignID, []string{types.CampaignStatusGenerating}, map[string]interface{}{
		"status":     types.CampaignStatusError,
		"last_error": reason,
	})
	if err != nil {
		return false, aggregates.MapError("orchestrator.recover", err)
	}
	if ok {
		o.log.Warn("Released interrupted generation", "campaign_id", campaignID, "reason", reason)
		o.publish(ctx, types.CampaignProgress{CampaignID: campaignID, Status: types.CampaignStatusError, PercentComplete: c.PercentComplete, Error: reason})
	}
	return ok, nil
}

// resume rebuilds the completed set from durable per-stage statuses.
func (o *Orchestrator) resume(dbc dbctx.Context, campaignID uint) (*stages.Set, error) {
	names, err := o.StageStatus.CompletedStages(dbc, campaignID)
	if err != nil {
		return nil, aggregates.MapError("orchestrator.resume", err)
	}
	completed := stages.NewSet()
	for _, name := range names {
		id, err := stages.Parse(name)
		if err != nil {
			o.log.Warn("Ignoring unknown completed stage", "campaign_id", campaignID, "stage", name)
			continue
		}
		if _, ok := o.Registry.Get(id); ok {
			completed.Add(id)
		}
	}
	return completed, nil
}

func (o *Orchestrator) runStage(ctx context.Context, campaign *types.Campaign, d stages.Descriptor) error {
	stage := d.Name()
	ctx, span := observability.Tracer().Start(ctx, "generation.stage", trace.WithAttributes(
		attribute.String("stage.id", stage),
		attribute.Int("stage.ordinal", d.Ordinal),
	))
	defer span.End()

	err := func() error {
		tool, missing, err := o.Tools.Tool(d.ID)
		if err != nil {
			return err
		}
		plan, err := promptFor(d.ID)
		if err != nil {
			return err
		}
		sp, ok := o.Prompts.Stage(d.ID)
		if !ok {
			return fmt.Errorf("no prompt instructions for %s", stage)
		}
		deps, err := o.readContext(ctx, campaign.ID, d)
		if err != nil {
			return err
		}
		prompt := buildPrompt(plan, campaign, d, sp, deps, tool, missing)

		payload, err := o.Generator.Invoke(ctx, anthropic.Request{
			System:      o.Prompts.System(),
			Prompt:      prompt,
			Tool:        tool,
			MaxTokens:   d.Budget.MaxTokens,
			Temperature: d.Budget.Temperature,
		})
		if err != nil {
			return generation.GenerationInterface(stage, err)
		}

		res, err := o.Persister.Commit(ctx, campaign.ID, d, payload)
		if err != nil {
			return err
		}
		metrics := observability.Current()
		for _, n := range res.Inserted {
			metrics.AddStageRows(stage, "inserted", n)
		}
		metrics.AddStageRows(stage, "stub", res.Stubs)
		metrics.AddStageRows(stage, "dropped", res.Dropped+res.DroppedLinks)
		return nil
	}()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// fail moves the campaign to error with msg and returns cause.
func (o *Orchestrator) fail(ctx context.Context, campaignID uint, stage, msg string, cause error) error {
	o.log.Error("Campaign generation failed", "campaign_id", campaignID, "stage", stage, "error", msg)
	if err := o.Campaigns.Fail(dbctx.Context{Ctx: ctx}, campaignID, msg); err != nil {
		o.log.Warn("Failed to record campaign error", "campaign_id", campaignID, "error", err)
	}
	o.publish(ctx, types.CampaignProgress{CampaignID: campaignID, Status: types.CampaignStatusError, Stage: stage, Error: msg})
	return cause
}

func (o *Orchestrator) failBookkeeping(ctx context.Context, campaignID uint, d stages.Descriptor, what string, cause error) error {
	msg := fmt.Sprintf("Failed in stage %d (%s): %s: %v", d.Ordinal, d.Name(), what, cause)
	return o.fail(ctx, campaignID, d.Name(), msg, cause)
}

func (o *Orchestrator) publish(ctx context.Context, p types.CampaignProgress) {
	if o.Notifier == nil {
		return
	}
	o.Notifier.Publish(ctx, p)
}
