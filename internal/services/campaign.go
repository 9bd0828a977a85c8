package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"gorm.io/datatypes"

	"github.com/Crohnos/dnd-generator/internal/data/aggregates"
	"github.com/Crohnos/dnd-generator/internal/data/repos"
	types "github.com/Crohnos/dnd-generator/internal/domain"
	domainagg "github.com/Crohnos/dnd-generator/internal/domain/aggregates"
	domainworld "github.com/Crohnos/dnd-generator/internal/domain/world"
	"github.com/Crohnos/dnd-generator/internal/pkg/dbctx"
	"github.com/Crohnos/dnd-generator/internal/platform/logger"
)

const (
	maxStartingLevel = 20
	maxNameLength    = 200
)

// CreateCampaignInput is the request body of POST /api/campaigns. Omitted
// settings take the same defaults the campaigns table declares.
type CreateCampaignInput struct {
	Name             string                  `json:"name"`
	Setting          string                  `json:"setting"`
	Themes           []string                `json:"themes"`
	PlayerCharacters []types.PlayerCharacter `json:"player_characters"`
	ProgressionType  string                  `json:"progression_type"`
	Tone             string                  `json:"tone"`
	Difficulty       string                  `json:"difficulty"`
	StartingLevel    int                     `json:"starting_level"`
	CampaignLength   string                  `json:"campaign_length"`
	AdditionalNotes  string                  `json:"additional_notes"`
	// Metadata seeds the campaign metadata object; stage payloads are added
	// to it during generation.
	Metadata map[string]any `json:"metadata"`
}

// UpdateCampaignInput is a partial update. Nil fields are left untouched.
type UpdateCampaignInput struct {
	Name             *string                  `json:"name"`
	Setting          *string                  `json:"setting"`
	Themes           *[]string                `json:"themes"`
	PlayerCharacters *[]types.PlayerCharacter `json:"player_characters"`
	ProgressionType  *string                  `json:"progression_type"`
	Tone             *string                  `json:"tone"`
	Difficulty       *string                  `json:"difficulty"`
	StartingLevel    *int                     `json:"starting_level"`
	CampaignLength   *string                  `json:"campaign_length"`
	AdditionalNotes  *string                  `json:"additional_notes"`
}

// CampaignStatus is the generation state of one campaign.
type CampaignStatus struct {
	CampaignID      uint                         `json:"campaign_id"`
	Status          string                       `json:"status"`
	CurrentStage    *string                      `json:"current_stage"`
	PercentComplete int                          `json:"percent_complete"`
	TotalStages     int                          `json:"total_stages"`
	LastError       *string                      `json:"last_error"`
	Stages          []*types.CampaignStageStatus `json:"stages"`
	LatestJob       *types.JobRun                `json:"latest_job,omitempty"`
}

// CampaignWorld is a campaign together with everything generated for it,
// keyed by table. Every record table is present, empty or not.
type CampaignWorld struct {
	Campaign *types.Campaign                 `json:"campaign"`
	World    map[string][]repos.WorldSummary `json:"world"`
}

type CampaignService interface {
	Create(ctx context.Context, in CreateCampaignInput) (*types.Campaign, error)
	Get(ctx context.Context, id uint) (*types.Campaign, error)
	List(ctx context.Context, limit, offset int) ([]*types.Campaign, error)
	// Update is refused with precondition_failed unless the campaign is
	// created or error.
	Update(ctx context.Context, id uint, in UpdateCampaignInput) (*types.Campaign, error)
	// Delete removes the campaign with every generated row in one transaction.
	Delete(ctx context.Context, id uint) error
	Status(ctx context.Context, id uint) (*CampaignStatus, error)
	World(ctx context.Context, id uint) (*CampaignWorld, error)
}

type campaignService struct {
	log         *logger.Logger
	tx          aggregates.TxRunner
	campaigns   repos.CampaignRepo
	stageStatus repos.StageStatusRepo
	world       repos.WorldRepo
	jobs        repos.JobRunRepo
}

func NewCampaignService(baseLog *logger.Logger, tx aggregates.TxRunner, r repos.Repos) CampaignService {
	return &campaignService{
		log:         baseLog.With("service", "CampaignService"),
		tx:          tx,
		campaigns:   r.Campaign,
		stageStatus: r.StageStatus,
		world:       r.World,
		jobs:        r.JobRun,
	}
}

func (s *campaignService) Create(ctx context.Context, in CreateCampaignInput) (*types.Campaign, error) {
	const op = "campaign.create"
	name := strings.TrimSpace(in.Name)
	if err := validateName(name); err != nil {
		return nil, aggregates.MapError(op, err)
	}
	if err := validateParty(in.PlayerCharacters); err != nil {
		return nil, aggregates.MapError(op, err)
	}
	level := in.StartingLevel
	if level == 0 {
		level = 1
	}
	if err := validateLevel(level); err != nil {
		return nil, aggregates.MapError(op, err)
	}

	themes, err := encodeJSON(nonNil(in.Themes))
	if err != nil {
		return nil, aggregates.MapError(op, aggregates.ValidationError("themes: "+err.Error()))
	}
	pcs, err := encodeJSON(nonNil(in.PlayerCharacters))
	if err != nil {
		return nil, aggregates.MapError(op, aggregates.ValidationError("player_characters: "+err.Error()))
	}
	meta := in.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	metadata, err := encodeJSON(meta)
	if err != nil {
		return nil, aggregates.MapError(op, aggregates.ValidationError("metadata: "+err.Error()))
	}

	c := &types.Campaign{
		Name:             name,
		Setting:          strings.TrimSpace(in.Setting),
		Themes:           themes,
		PlayerCharacters: pcs,
		ProgressionType:  orDefault(in.ProgressionType, "milestone"),
		Tone:             orDefault(in.Tone, "balanced"),
		Difficulty:       orDefault(in.Difficulty, "medium"),
		StartingLevel:    level,
		CampaignLength:   orDefault(in.CampaignLength, "medium"),
		AdditionalNotes:  strings.TrimSpace(in.AdditionalNotes),
		Status:           types.CampaignStatusCreated,
		Metadata:         metadata,
	}
	if _, err := s.campaigns.Create(dbctx.Context{Ctx: ctx}, c); err != nil {
		return nil, aggregates.MapError(op, err)
	}
	s.log.Info("Campaign created", "campaign_id", c.ID, "player_characters", len(in.PlayerCharacters))
	return c, nil
}

func (s *campaignService) Get(ctx context.Context, id uint) (*types.Campaign, error) {
	c, err := s.campaigns.GetByID(dbctx.Context{Ctx: ctx}, id)
	if err != nil {
		return nil, aggregates.MapError("campaign.get", err)
	}
	if c == nil {
		return nil, domainagg.NotFound("campaign.get", "campaign")
	}
	return c, nil
}

func (s *campaignService) List(ctx context.Context, limit, offset int) ([]*types.Campaign, error) {
	out, err := s.campaigns.List(dbctx.Context{Ctx: ctx}, limit, offset)
	if err != nil {
		return nil, aggregates.MapError("campaign.list", err)
	}
	return out, nil
}

func (s *campaignService) Update(ctx context.Context, id uint, in UpdateCampaignInput) (*types.Campaign, error) {
	const op = "campaign.update"
	updates := map[string]interface{}{}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if err := validateName(name); err != nil {
			return nil, aggregates.MapError(op, err)
		}
		updates["name"] = name
	}
	if in.Setting != nil {
		updates["setting"] = strings.TrimSpace(*in.Setting)
	}
	if in.Themes != nil {
		raw, err := encodeJSON(nonNil(*in.Themes))
		if err != nil {
			return nil, aggregates.MapError(op, aggregates.ValidationError("themes: "+err.Error()))
		}
		updates["themes"] = raw
	}
	if in.PlayerCharacters != nil {
		if err := validateParty(*in.PlayerCharacters); err != nil {
			return nil, aggregates.MapError(op, err)
		}
		raw, err := encodeJSON(nonNil(*in.PlayerCharacters))
		if err != nil {
			return nil, aggregates.MapError(op, aggregates.ValidationError("player_characters: "+err.Error()))
		}
		updates["player_characters"] = raw
	}
	if in.StartingLevel != nil {
		if err := validateLevel(*in.StartingLevel); err != nil {
			return nil, aggregates.MapError(op, err)
		}
		updates["starting_level"] = *in.StartingLevel
	}
	for col, v := range map[string]*string{
		"progression_type": in.ProgressionType,
		"tone":             in.Tone,
		"difficulty":       in.Difficulty,
		"campaign_length":  in.CampaignLength,
	} {
		if v == nil {
			continue
		}
		if strings.TrimSpace(*v) == "" {
			return nil, aggregates.MapError(op, aggregates.ValidationError(col+" must not be empty"))
		}
		updates[col] = strings.TrimSpace(*v)
	}
	if in.AdditionalNotes != nil {
		updates["additional_notes"] = strings.TrimSpace(*in.AdditionalNotes)
	}

	dbc := dbctx.Context{Ctx: ctx}
	if len(updates) > 0 {
		ok, err := s.campaigns.UpdateFieldsIfStatus(dbc, id, []string{types.CampaignStatusCreated, types.CampaignStatusError}, updates)
		if err != nil {
			return nil, aggregates.MapError(op, err)
		}
		if !ok {
			return nil, s.explainRefusedUpdate(dbc, id)
		}
	}
	return s.Get(ctx, id)
}

// explainRefusedUpdate distinguishes a missing campaign from one whose
// status does not allow edits.
func (s *campaignService) explainRefusedUpdate(dbc dbctx.Context, id uint) error {
	const op = "campaign.update"
	c, err := s.campaigns.GetByID(dbc, id)
	if err != nil {
		return aggregates.MapError(op, err)
	}
	if c == nil {
		return domainagg.NotFound(op, "campaign")
	}
	return domainagg.PreconditionFailed(op, fmt.Sprintf("campaign is %s; only created or error campaigns can be edited", c.Status))
}

func (s *campaignService) Delete(ctx context.Context, id uint) error {
	const op = "campaign.delete"
	err := s.tx.InTx(ctx, func(dbc dbctx.Context) error {
		exists, err := s.campaigns.Exists(dbc, id)
		if err != nil {
			return err
		}
		if !exists {
			return domainagg.NotFound(op, "campaign")
		}
		if err := s.world.DeleteByCampaign(dbc, id); err != nil {
			return err
		}
		return s.campaigns.Delete(dbc, id)
	})
	if err != nil {
		return aggregates.MapError(op, err)
	}
	s.log.Info("Campaign deleted", "campaign_id", id)
	return nil
}

func (s *campaignService) Status(ctx context.Context, id uint) (*CampaignStatus, error) {
	const op = "campaign.status"
	dbc := dbctx.Context{Ctx: ctx}
	c, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	stages, err := s.stageStatus.ListByCampaign(dbc, id)
	if err != nil {
		return nil, aggregates.MapError(op, err)
	}
	job, err := s.jobs.GetLatestByEntity(dbc, campaignEntity, id, GenerateJobType)
	if err != nil {
		return nil, aggregates.MapError(op, err)
	}
	if stages == nil {
		stages = []*types.CampaignStageStatus{}
	}
	return &CampaignStatus{
		CampaignID:      c.ID,
		Status:          c.Status,
		CurrentStage:    c.CurrentStage,
		PercentComplete: c.PercentComplete,
		TotalStages:     c.TotalStages,
		LastError:       c.LastError,
		Stages:          stages,
		LatestJob:       job,
	}, nil
}

func validateName(name string) error {
	if name == "" {
		return aggregates.ValidationError("name is required")
	}
	if len([]rune(name)) > maxNameLength {
		return aggregates.ValidationError(fmt.Sprintf("name exceeds %d characters", maxNameLength))
	}
	return nil
}

func validateLevel(level int) error {
	if level < 1 || level > maxStartingLevel {
		return aggregates.ValidationError(fmt.Sprintf("starting_level must be between 1 and %d", maxStartingLevel))
	}
	return nil
}

// validateParty requires a unique, non-empty name per player character. PC
// names are registered for reference resolution during generation.
func validateParty(pcs []types.PlayerCharacter) error {
	seen := map[string]bool{}
	for i, pc := range pcs {
		key := strings.ToLower(strings.TrimSpace(pc.Name))
		if key == "" {
			return aggregates.ValidationError(fmt.Sprintf("player_characters[%d].name is required", i))
		}
		if seen[key] {
			return aggregates.ValidationError(fmt.Sprintf("duplicate player character %q", pc.Name))
		}
		seen[key] = true
		if pc.Level < 0 || pc.Level > maxStartingLevel {
			return aggregates.ValidationError(fmt.Sprintf("player_characters[%d].level out of range", i))
		}
	}
	return nil
}

func encodeJSON(v any) (datatypes.JSON, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return def
}

func (s *campaignService) World(ctx context.Context, id uint) (*CampaignWorld, error) {
	const op = "campaign.world"
	out := &CampaignWorld{World: make(map[string][]repos.WorldSummary, len(domainworld.RecordTables))}
	err := s.tx.InTx(ctx, func(dbc dbctx.Context) error {
		c, err := s.campaigns.GetByID(dbc, id)
		if err != nil {
			return err
		}
		if c == nil {
			return domainagg.NotFound(op, "campaign")
		}
		out.Campaign = c
		for _, table := range domainworld.RecordTables {
			rows, err := s.world.Summaries(dbc, table, id)
			if err != nil {
				return fmt.Errorf("%s: %w", table, err)
			}
			out.World[table] = nonNil(rows)
		}
		return nil
	})
	if err != nil {
		return nil, aggregates.MapError(op, err)
	}
	return out, nil
}
