package world

const (
	EntityTypePC  = "pc"
	EntityTypeNPC = "npc"
)

type Entity struct {
	Record
	EntityType        string `gorm:"column:entity_type;not null;default:'npc'" json:"entity_type"`
	IsPlayerCharacter bool   `gorm:"column:is_player_character;not null;default:false" json:"is_player_character"`
	RaceID            *uint  `gorm:"column:race_id;index" json:"race_id"`
	ClassID           *uint  `gorm:"column:class_id;index" json:"class_id"`
	BackgroundID      *uint  `gorm:"column:background_id;index" json:"background_id"`
	FactionID         *uint  `gorm:"column:faction_id;index" json:"faction_id"`
}

func (Entity) TableName() string { return "entities" }

type Location struct {
	Record
	LocationType     string `gorm:"column:location_type" json:"location_type"`
	IsStub           bool   `gorm:"column:is_stub;not null;default:false" json:"is_stub"`
	ParentLocationID *uint  `gorm:"column:parent_location_id;index" json:"parent_location_id"`
	RegionID         *uint  `gorm:"column:region_id;index" json:"region_id"`
}

func (Location) TableName() string { return "locations" }

type Dungeon struct {
	Record
	LocationID *uint `gorm:"column:location_id;index" json:"location_id"`
}

func (Dungeon) TableName() string { return "dungeons" }

type Building struct {
	Record
	LocationID    *uint `gorm:"column:location_id;index" json:"location_id"`
	OwnerEntityID *uint `gorm:"column:owner_entity_id;index" json:"owner_entity_id"`
}

func (Building) TableName() string { return "buildings" }

type Item struct {
	Record
	ItemType      string `gorm:"column:item_type" json:"item_type"`
	Rarity        string `gorm:"column:rarity" json:"rarity"`
	OwnerEntityID *uint  `gorm:"column:owner_entity_id;index" json:"owner_entity_id"`
	LocationID    *uint  `gorm:"column:location_id;index" json:"location_id"`
}

func (Item) TableName() string { return "items" }

type ItemEffect struct {
	Record
	ItemID *uint `gorm:"column:item_id;index" json:"item_id"`
}

func (ItemEffect) TableName() string { return "item_effects" }

type SentientItemProperty struct {
	Record
	ItemID *uint `gorm:"column:item_id;index" json:"item_id"`
}

func (SentientItemProperty) TableName() string { return "sentient_item_properties" }

const (
	QuestStatusAvailable = "available"
	QuestStatusActive    = "active"
	QuestStatusCompleted = "completed"
)

type QuestHook struct {
	Record
	Status             string `gorm:"column:status;not null;default:'available'" json:"status"`
	QuestGiverEntityID *uint  `gorm:"column:quest_giver_entity_id;index" json:"quest_giver_entity_id"`
	LocationID         *uint  `gorm:"column:location_id;index" json:"location_id"`
}

func (QuestHook) TableName() string { return "quest_hooks" }

type Encounter struct {
	Record
	LocationID *uint `gorm:"column:location_id;index" json:"location_id"`
}

func (Encounter) TableName() string { return "encounters" }

type Shop struct {
	Record
	LocationID    *uint `gorm:"column:location_id;index" json:"location_id"`
	OwnerEntityID *uint `gorm:"column:owner_entity_id;index" json:"owner_entity_id"`
}

func (Shop) TableName() string { return "shops" }

type Tavern struct {
	Record
	LocationID    *uint `gorm:"column:location_id;index" json:"location_id"`
	OwnerEntityID *uint `gorm:"column:owner_entity_id;index" json:"owner_entity_id"`
}

func (Tavern) TableName() string { return "taverns" }

type Temple struct {
	Record
	LocationID         *uint `gorm:"column:location_id;index" json:"location_id"`
	DeityID            *uint `gorm:"column:deity_id;index" json:"deity_id"`
	HighPriestEntityID *uint `gorm:"column:high_priest_entity_id;index" json:"high_priest_entity_id"`
}

func (Temple) TableName() string { return "temples" }
