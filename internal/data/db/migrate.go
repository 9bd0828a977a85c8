package db

import (
	types "github.com/Crohnos/dnd-generator/internal/domain"
	"gorm.io/gorm"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(
		// Campaign + generation progress
		&types.Campaign{},
		&types.CampaignStageStatus{},

		// Jobs
		&types.JobRun{},

		// Phase 1: world foundation
		&types.CalendarSystem{},
		&types.Plane{},
		&types.GeographyRegion{},
		&types.HistoricalPeriod{},
		&types.EconomicSystem{},
		&types.LegalSystem{},
		&types.CelestialBody{},
		&types.Race{},
		&types.CharacterClass{},
		&types.Feat{},
		&types.Background{},
		&types.Language{},
		&types.Culture{},
		&types.Faction{},
		&types.Pantheon{},
		&types.Deity{},

		// Phase 2: player-centric content
		&types.Entity{},
		&types.Location{},
		&types.Dungeon{},
		&types.Building{},
		&types.Item{},
		&types.ItemEffect{},
		&types.SentientItemProperty{},

		// Phase 3: world population
		&types.QuestHook{},
		&types.Encounter{},
		&types.Shop{},
		&types.Tavern{},
		&types.Temple{},

		// Links
		&types.EntityRelationship{},
		&types.EntityLocation{},
		&types.EntityFaction{},
		&types.FactionRelationship{},
		&types.EntityItem{},
		&types.LocationItem{},
	)
}
