package campaign

import (
	"time"

	"gorm.io/datatypes"
)

// Generation status of a campaign.
const (
	StatusCreated    = "created"
	StatusGenerating = "generating"
	StatusCompleted  = "completed"
	StatusError      = "error"
)

type Campaign struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	Name             string         `gorm:"column:name;not null" json:"name"`
	Setting          string         `gorm:"column:setting" json:"setting"`
	Themes           datatypes.JSON `gorm:"column:themes;type:jsonb" json:"themes"`
	PlayerCharacters datatypes.JSON `gorm:"column:player_characters;type:jsonb" json:"player_characters"`
	ProgressionType  string         `gorm:"column:progression_type;not null;default:'milestone'" json:"progression_type"`
	Tone             string         `gorm:"column:tone;not null;default:'balanced'" json:"tone"`
	Difficulty       string         `gorm:"column:difficulty;not null;default:'medium'" json:"difficulty"`
	StartingLevel    int            `gorm:"column:starting_level;not null;default:1" json:"starting_level"`
	CampaignLength   string         `gorm:"column:campaign_length;not null;default:'medium'" json:"campaign_length"`
	AdditionalNotes  string         `gorm:"column:additional_notes" json:"additional_notes"`

	Status          string  `gorm:"column:status;not null;default:'created';index" json:"status"`
	CurrentStage    *string `gorm:"column:current_stage" json:"current_stage"`
	PercentComplete int     `gorm:"column:percent_complete;not null;default:0" json:"percent_complete"`
	TotalStages     int     `gorm:"column:total_stages;not null;default:0" json:"total_stages"`
	LastError       *string `gorm:"column:last_error" json:"last_error"`

	// Metadata accumulates each stage's raw payload under the stage id.
	Metadata datatypes.JSON `gorm:"column:metadata;type:jsonb" json:"metadata"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (Campaign) TableName() string { return "campaigns" }

// PlayerCharacter is one entry of Campaign.PlayerCharacters.
type PlayerCharacter struct {
	Name       string `json:"name"`
	Race       string `json:"race,omitempty"`
	Class      string `json:"class,omitempty"`
	Level      int    `json:"level,omitempty"`
	Background string `json:"background,omitempty"`
	Backstory  string `json:"backstory,omitempty"`
}

// StageStatus records the outcome of one stage for one campaign.
type StageStatus struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	CampaignID  uint       `gorm:"column:campaign_id;not null;uniqueIndex:idx_campaign_stage" json:"campaign_id"`
	Stage       string     `gorm:"column:stage;not null;uniqueIndex:idx_campaign_stage" json:"stage"`
	Status      string     `gorm:"column:status;not null" json:"status"`
	Error       string     `gorm:"column:error" json:"error,omitempty"`
	StartedAt   *time.Time `gorm:"column:started_at" json:"started_at,omitempty"`
	CompletedAt *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`
	UpdatedAt   time.Time  `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (StageStatus) TableName() string { return "campaign_stage_statuses" }
