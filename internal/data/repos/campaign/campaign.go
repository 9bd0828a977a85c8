package campaign

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/Crohnos/dnd-generator/internal/domain"
	"github.com/Crohnos/dnd-generator/internal/pkg/dbctx"
	"github.com/Crohnos/dnd-generator/internal/platform/logger"
)

type CampaignRepo interface {
	Create(dbc dbctx.Context, c *types.Campaign) (*types.Campaign, error)
	GetByID(dbc dbctx.Context, id uint) (*types.Campaign, error)
	Exists(dbc dbctx.Context, id uint) (bool, error)
	List(dbc dbctx.Context, limit, offset int) ([]*types.Campaign, error)
	UpdateFields(dbc dbctx.Context, id uint, updates map[string]interface{}) error
	UpdateFieldsIfStatus(dbc dbctx.Context, id uint, allowedStatuses []string, updates map[string]interface{}) (bool, error)
	Delete(dbc dbctx.Context, id uint) error

	// BeginGeneration moves the campaign to generating unless it is already
	// generating or completed. It reports false when nothing changed.
	BeginGeneration(dbc dbctx.Context, id uint, totalStages int) (bool, error)
	SetCurrentStage(dbc dbctx.Context, id uint, stage string) error
	SetPercent(dbc dbctx.Context, id uint, percent int) error
	Fail(dbc dbctx.Context, id uint, message string) error
	Complete(dbc dbctx.Context, id uint) error
	// PutMetadata stores raw under key in the campaign metadata object.
	PutMetadata(dbc dbctx.Context, id uint, key string, raw json.RawMessage) error
}

type campaignRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCampaignRepo(db *gorm.DB, baseLog *logger.Logger) CampaignRepo {
	return &campaignRepo{
		db:  db,
		log: baseLog.With("repo", "CampaignRepo"),
	}
}

func (r *campaignRepo) tx(dbc dbctx.Context) *gorm.DB {
	transaction := dbc.DB(r.db)
	return transaction.WithContext(dbc.Context())
}

func (r *campaignRepo) Create(dbc dbctx.Context, c *types.Campaign) (*types.Campaign, error) {
	if c == nil {
		return nil, fmt.Errorf("campaign is nil")
	}
	if c.Status == "" {
		c.Status = types.CampaignStatusCreated
	}
	if len(c.Metadata) == 0 {
		c.Metadata = datatypes.JSON([]byte("{}"))
	}
	if err := r.tx(dbc).Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

func (r *campaignRepo) GetByID(dbc dbctx.Context, id uint) (*types.Campaign, error) {
	if id == 0 {
		return nil, nil
	}
	var out types.Campaign
	if err := r.tx(dbc).Where("id = ?", id).Limit(1).Find(&out).Error; err != nil {
		return nil, err
	}
	if out.ID == 0 {
		return nil, nil
	}
	return &out, nil
}

func (r *campaignRepo) Exists(dbc dbctx.Context, id uint) (bool, error) {
	var count int64
	if err := r.tx(dbc).Model(&types.Campaign{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *campaignRepo) List(dbc dbctx.Context, limit, offset int) ([]*types.Campaign, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	var out []*types.Campaign
	if err := r.tx(dbc).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *campaignRepo) UpdateFields(dbc dbctx.Context, id uint, updates map[string]interface{}) error {
	if id == 0 || len(updates) == 0 {
		return nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return r.tx(dbc).Model(&types.Campaign{}).Where("id = ?", id).Updates(updates).Error
}

func (r *campaignRepo) UpdateFieldsIfStatus(dbc dbctx.Context, id uint, allowedStatuses []string, updates map[string]interface{}) (bool, error) {
	if id == 0 {
		return false, nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	q := r.tx(dbc).Model(&types.Campaign{}).Where("id = ?", id)
	if len(allowedStatuses) > 0 {
		q = q.Where("status IN ?", allowedStatuses)
	}
	res := q.Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *campaignRepo) Delete(dbc dbctx.Context, id uint) error {
	if id == 0 {
		return nil
	}
	if err := r.tx(dbc).Where("campaign_id = ?", id).Delete(&types.CampaignStageStatus{}).Error; err != nil {
		return err
	}
	return r.tx(dbc).Where("id = ?", id).Delete(&types.Campaign{}).Error
}

func (r *campaignRepo) BeginGeneration(dbc dbctx.Context, id uint, totalStages int) (bool, error) {
	res := r.tx(dbc).Model(&types.Campaign{}).
		Where("id = ? AND status NOT IN ?", id, []string{types.CampaignStatusGenerating, types.CampaignStatusCompleted}).
		Updates(map[string]interface{}{
			"status":           types.CampaignStatusGenerating,
			"percent_complete": 0,
			"total_stages":     totalStages,
			"last_error":       nil,
			"current_stage":    nil,
			"updated_at":       time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *campaignRepo) SetCurrentStage(dbc dbctx.Context, id uint, stage string) error {
	return r.UpdateFields(dbc, id, map[string]interface{}{"current_stage": stage})
}

func (r *campaignRepo) SetPercent(dbc dbctx.Context, id uint, percent int) error {
	return r.UpdateFields(dbc, id, map[string]interface{}{"percent_complete": percent})
}

func (r *campaignRepo) Fail(dbc dbctx.Context, id uint, message string) error {
	return r.UpdateFields(dbc, id, map[string]interface{}{
		"status":     types.CampaignStatusError,
		"last_error": message,
	})
}

func (r *campaignRepo) Complete(dbc dbctx.Context, id uint) error {
	return r.UpdateFields(dbc, id, map[string]interface{}{
		"status":           types.CampaignStatusCompleted,
		"percent_complete": 100,
		"current_stage":    nil,
		"last_error":       nil,
	})
}

func (r *campaignRepo) PutMetadata(dbc dbctx.Context, id uint, key string, raw json.RawMessage) error {
	var row types.Campaign
	if err := r.tx(dbc).Select("id", "metadata").Where("id = ?", id).Limit(1).Find(&row).Error; err != nil {
		return err
	}
	if row.ID == 0 {
		return gorm.ErrRecordNotFound
	}
	meta := map[string]json.RawMessage{}
	if len(row.Metadata) > 0 {
		if err := json.Unmarshal(row.Metadata, &meta); err != nil {
			r.log.Warn("Discarding unreadable campaign metadata", "campaign_id", id, "error", err)
			meta = map[string]json.RawMessage{}
		}
	}
	meta[key] = raw
	b, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	return r.UpdateFields(dbc, id, map[string]interface{}{"metadata": datatypes.JSON(b)})
}
