package world

type CalendarSystem struct{ Record }

func (CalendarSystem) TableName() string { return "calendar_systems" }

type Plane struct{ Record }

func (Plane) TableName() string { return "planes" }

type GeographyRegion struct {
	Record
	PlaneID *uint `gorm:"column:plane_id;index" json:"plane_id"`
}

func (GeographyRegion) TableName() string { return "geography_regions" }

type HistoricalPeriod struct{ Record }

func (HistoricalPeriod) TableName() string { return "historical_periods" }

type EconomicSystem struct{ Record }

func (EconomicSystem) TableName() string { return "economic_systems" }

type LegalSystem struct{ Record }

func (LegalSystem) TableName() string { return "legal_systems" }

type CelestialBody struct{ Record }

func (CelestialBody) TableName() string { return "celestial_bodies" }

type Race struct {
	Record
	HomelandRegionID *uint `gorm:"column:homeland_region_id;index" json:"homeland_region_id"`
}

func (Race) TableName() string { return "races" }

type CharacterClass struct{ Record }

func (CharacterClass) TableName() string { return "character_classes" }

type Feat struct{ Record }

func (Feat) TableName() string { return "feats" }

type Background struct{ Record }

func (Background) TableName() string { return "backgrounds" }

type Language struct{ Record }

func (Language) TableName() string { return "languages" }

type Culture struct {
	Record
	LanguageID *uint `gorm:"column:language_id;index" json:"language_id"`
	RaceID     *uint `gorm:"column:race_id;index" json:"race_id"`
}

func (Culture) TableName() string { return "cultures" }

type Faction struct{ Record }

func (Faction) TableName() string { return "factions" }

type Pantheon struct{ Record }

func (Pantheon) TableName() string { return "pantheons" }

type Deity struct {
	Record
	PantheonID *uint `gorm:"column:pantheon_id;index" json:"pantheon_id"`
}

func (Deity) TableName() string { return "deities" }
