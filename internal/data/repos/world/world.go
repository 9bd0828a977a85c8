package world

import (
	"fmt"

	"gorm.io/gorm"

	domainworld "github.com/Crohnos/dnd-generator/internal/domain/world"
	"github.com/Crohnos/dnd-generator/internal/pkg/dbctx"
	"github.com/Crohnos/dnd-generator/internal/platform/logger"
)

// Summary is the slice of a named row that later stages see as context and
// that name resolution indexes.
type Summary struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type WorldRepo interface {
	// Insert creates any world model; the generated id is written back.
	Insert(dbc dbctx.Context, model any) error
	Summaries(dbc dbctx.Context, table string, campaignID uint) ([]Summary, error)
	// StubLocations lists locations that were created only because another
	// row referenced them.
	StubLocations(dbc dbctx.Context, campaignID uint) ([]Summary, error)
	UpdateFields(dbc dbctx.Context, table string, id uint, updates map[string]interface{}) error
	Count(dbc dbctx.Context, table string, campaignID uint) (int64, error)
	DeleteByCampaign(dbc dbctx.Context, campaignID uint) error
}

type worldRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewWorldRepo(db *gorm.DB, baseLog *logger.Logger) WorldRepo {
	return &worldRepo{
		db:  db,
		log: baseLog.With("repo", "WorldRepo"),
	}
}

func (r *worldRepo) tx(dbc dbctx.Context) *gorm.DB {
	transaction := dbc.DB(r.db)
	return transaction.WithContext(dbc.Context())
}

func (r *worldRepo) Insert(dbc dbctx.Context, model any) error {
	if model == nil {
		return fmt.Errorf("insert: nil model")
	}
	return r.tx(dbc).Create(model).Error
}

func (r *worldRepo) Summaries(dbc dbctx.Context, table string, campaignID uint) ([]Summary, error) {
	if !domainworld.IsRecordTable(table) {
		return nil, fmt.Errorf("summaries: unknown record table %q", table)
	}
	var out []Summary
	if err := r.tx(dbc).
		Table(table).
		Select("id", "name", "description").
		Where("campaign_id = ?", campaignID).
		Order("id ASC").
		Scan(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *worldRepo) StubLocations(dbc dbctx.Context, campaignID uint) ([]Summary, error) {
	var out []Summary
	if err := r.tx(dbc).
		Table("locations").
		Select("id", "name", "description").
		Where("campaign_id = ? AND is_stub = ?", campaignID, true).
		Order("id ASC").
		Scan(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *worldRepo) UpdateFields(dbc dbctx.Context, table string, id uint, updates map[string]interface{}) error {
	if !domainworld.IsRecordTable(table) {
		return fmt.Errorf("update: unknown record table %q", table)
	}
	if id == 0 || len(updates) == 0 {
		return nil
	}
	return r.tx(dbc).Table(table).Where("id = ?", id).Updates(updates).Error
}

func (r *worldRepo) Count(dbc dbctx.Context, table string, campaignID uint) (int64, error) {
	if !domainworld.IsRecordTable(table) && !domainworld.IsLinkTable(table) {
		return 0, fmt.Errorf("count: unknown table %q", table)
	}
	var n int64
	if err := r.tx(dbc).Table(table).Where("campaign_id = ?", campaignID).Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}

func (r *worldRepo) DeleteByCampaign(dbc dbctx.Context, campaignID uint) error {
	tables := append(append([]string{}, domainworld.LinkTables...), domainworld.RecordTables...)
	for _, table := range tables {
		if err := r.tx(dbc).Exec("DELETE FROM "+table+" WHERE campaign_id = ?", campaignID).Error; err != nil {
			return fmt.Errorf("delete %s: %w", table, err)
		}
	}
	return nil
}
