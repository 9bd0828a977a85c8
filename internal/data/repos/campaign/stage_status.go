package campaign

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/Crohnos/dnd-generator/internal/domain"
	"github.com/Crohnos/dnd-generator/internal/pkg/dbctx"
	"github.com/Crohnos/dnd-generator/internal/platform/logger"
)

// Per-stage status values.
const (
	StageGenerating = "generating"
	StageCompleted  = "completed"
	StageError      = "error"
)

type StageStatusRepo interface {
	Upsert(dbc dbctx.Context, campaignID uint, stage, status, errMsg string) error
	ListByCampaign(dbc dbctx.Context, campaignID uint) ([]*types.CampaignStageStatus, error)
	CompletedStages(dbc dbctx.Context, campaignID uint) ([]string, error)
}

type stageStatusRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewStageStatusRepo(db *gorm.DB, baseLog *logger.Logger) StageStatusRepo {
	return &stageStatusRepo{
		db:  db,
		log: baseLog.With("repo", "StageStatusRepo"),
	}
}

func (r *stageStatusRepo) Upsert(dbc dbctx.Context, campaignID uint, stage, status, errMsg string) error {
	transaction := dbc.DB(r.db)
	now := time.Now()
	row := &types.CampaignStageStatus{
		CampaignID: campaignID,
		Stage:      stage,
		Status:     status,
		Error:      errMsg,
		UpdatedAt:  now,
	}
	updates := map[string]interface{}{
		"status":     status,
		"error":      errMsg,
		"updated_at": now,
	}
	switch status {
	case StageGenerating:
		row.StartedAt = &now
		updates["started_at"] = now
		updates["completed_at"] = nil
	case StageCompleted:
		row.CompletedAt = &now
		updates["completed_at"] = now
	}
	return transaction.WithContext(dbc.Context()).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "campaign_id"}, {Name: "stage"}},
			DoUpdates: clause.Assignments(updates),
		}).
		Create(row).Error
}

func (r *stageStatusRepo) ListByCampaign(dbc dbctx.Context, campaignID uint) ([]*types.CampaignStageStatus, error) {
	transaction := dbc.DB(r.db)
	var out []*types.CampaignStageStatus
	if err := transaction.WithContext(dbc.Context()).
		Where("campaign_id = ?", campaignID).
		Order("id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *stageStatusRepo) CompletedStages(dbc dbctx.Context, campaignID uint) ([]string, error) {
	transaction := dbc.DB(r.db)
	var out []string
	if err := transaction.WithContext(dbc.Context()).
		Model(&types.CampaignStageStatus{}).
		Where("campaign_id = ? AND status = ?", campaignID, StageCompleted).
		Order("id ASC").
		Pluck("stage", &out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
