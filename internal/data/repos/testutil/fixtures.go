package testutil

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/Crohnos/dnd-generator/internal/domain"
)

// SeedCampaign inserts a campaign in status created with two player
// characters.
func SeedCampaign(tb testing.TB, ctx context.Context, tx *gorm.DB, name string) *types.Campaign {
	tb.Helper()
	pcs, _ := json.Marshal([]types.PlayerCharacter{
		{Name: "Aria", Race: "Elf", Class: "Ranger", Level: 3},
		{Name: "Borin", Race: "Dwarf", Class: "Cleric", Level: 3},
	})
	c := &types.Campaign{
		Name:             name,
		Setting:          "A storm-wracked archipelago",
		Themes:           datatypes.JSON([]byte(`["intrigue","exploration"]`)),
		PlayerCharacters: datatypes.JSON(pcs),
		ProgressionType:  "milestone",
		Tone:             "balanced",
		Difficulty:       "medium",
		StartingLevel:    3,
		CampaignLength:   "medium",
		Status:           types.CampaignStatusCreated,
		Metadata:         datatypes.JSON([]byte("{}")),
	}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed campaign: %v", err)
	}
	return c
}

// SeedRecord inserts a named world row. model must embed world.Record.
func SeedRecord(tb testing.TB, ctx context.Context, tx *gorm.DB, model any) {
	tb.Helper()
	if err := tx.WithContext(ctx).Create(model).Error; err != nil {
		tb.Fatalf("seed %T: %v", model, err)
	}
}

func Record(campaignID uint, name string) types.WorldRecord {
	return types.WorldRecord{
		CampaignID: campaignID,
		Name:       name,
		Attributes: datatypes.JSON([]byte("{}")),
	}
}

func PtrUint(v uint) *uint { return &v }

func PtrTime(v time.Time) *time.Time { return &v }
