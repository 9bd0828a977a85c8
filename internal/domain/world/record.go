package world

import (
	"time"

	"gorm.io/datatypes"
)

// Record holds the columns every named world row shares. Attributes keeps
// the generated element as it was received.
type Record struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	CampaignID  uint           `gorm:"column:campaign_id;not null;index" json:"campaign_id"`
	Name        string         `gorm:"column:name;not null;index" json:"name"`
	Description string         `gorm:"column:description" json:"description"`
	Attributes  datatypes.JSON `gorm:"column:attributes;type:jsonb" json:"attributes"`
	CreatedAt   time.Time      `gorm:"not null;autoCreateTime" json:"created_at"`
}

// Link holds the columns every relationship row shares.
type Link struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	CampaignID       uint           `gorm:"column:campaign_id;not null;index" json:"campaign_id"`
	RelationshipType string         `gorm:"column:relationship_type" json:"relationship_type"`
	Description      string         `gorm:"column:description" json:"description"`
	Attributes       datatypes.JSON `gorm:"column:attributes;type:jsonb" json:"attributes"`
	CreatedAt        time.Time      `gorm:"not null;autoCreateTime" json:"created_at"`
}
