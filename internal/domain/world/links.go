package world

type EntityRelationship struct {
	Link
	EntityID        uint `gorm:"column:entity_id;not null;index" json:"entity_id"`
	RelatedEntityID uint `gorm:"column:related_entity_id;not null;index" json:"related_entity_id"`
}

func (EntityRelationship) TableName() string { return "entity_relationships" }

type EntityLocation struct {
	Link
	EntityID   uint `gorm:"column:entity_id;not null;index" json:"entity_id"`
	LocationID uint `gorm:"column:location_id;not null;index" json:"location_id"`
}

func (EntityLocation) TableName() string { return "entity_locations" }

type EntityFaction struct {
	Link
	EntityID  uint `gorm:"column:entity_id;not null;index" json:"entity_id"`
	FactionID uint `gorm:"column:faction_id;not null;index" json:"faction_id"`
}

func (EntityFaction) TableName() string { return "entity_factions" }

type FactionRelationship struct {
	Link
	FactionID        uint `gorm:"column:faction_id;not null;index" json:"faction_id"`
	RelatedFactionID uint `gorm:"column:related_faction_id;not null;index" json:"related_faction_id"`
}

func (FactionRelationship) TableName() string { return "faction_relationships" }

type EntityItem struct {
	Link
	EntityID uint `gorm:"column:entity_id;not null;index" json:"entity_id"`
	ItemID   uint `gorm:"column:item_id;not null;index" json:"item_id"`
}

func (EntityItem) TableName() string { return "entity_items" }

type LocationItem struct {
	Link
	LocationID uint `gorm:"column:location_id;not null;index" json:"location_id"`
	ItemID     uint `gorm:"column:item_id;not null;index" json:"item_id"`
}

func (LocationItem) TableName() string { return "location_items" }
