package stages

import "sync"

var (
	defaultOnce sync.Once
	defaultReg  *Registry
)

// Default returns the campaign generation stage catalogue.
func Default() *Registry {
	defaultOnce.Do(func() {
		reg, err := NewRegistry(DefaultDescriptors()...)
		if err != nil {
			panic(err)
		}
		defaultReg = reg
	})
	return defaultReg
}

func DefaultDescriptors() []Descriptor {
	world := Budget{MaxTokens: 8000, Temperature: 0.7}
	pc := Budget{MaxTokens: 10000, Temperature: 0.8}
	population := Budget{MaxTokens: 12000, Temperature: 0.9}

	return []Descriptor{
		{
			ID:          CoreWorld,
			Ordinal:     1,
			Description: "Core world: calendar, planes, geography, history, economy, law and the sky",
			Categories: []string{
				"calendar_systems", "planes", "geography_regions", "historical_periods",
				"economic_systems", "legal_systems", "celestial_bodies",
			},
			Budget: world,
		},
		{
			ID:           CharacterBuilding,
			Ordinal:      2,
			Description:  "Character building: races, classes, feats and backgrounds",
			Categories:   []string{"races", "character_classes", "feats", "backgrounds"},
			Dependencies: []ID{CoreWorld},
			Budget:       world,
		},
		{
			ID:           SocialFramework,
			Ordinal:      3,
			Description:  "Social framework: languages, cultures, factions, pantheons and deities",
			Categories:   []string{"languages", "cultures", "factions", "pantheons", "deities"},
			Dependencies: []ID{CoreWorld},
			Budget:       world,
		},
		{
			ID:           PCEntities,
			Ordinal:      4,
			Description:  "Entities connected to the player characters",
			Categories:   []string{"entities"},
			Dependencies: []ID{CoreWorld, CharacterBuilding, SocialFramework},
			Budget:       pc,
		},
		{
			ID:           PCLocations,
			Ordinal:      5,
			Description:  "Locations, dungeons and buildings tied to the player characters",
			Categories:   []string{"locations", "dungeons", "buildings"},
			Dependencies: []ID{CoreWorld, PCEntities},
			Budget:       pc,
		},
		{
			ID:           PCItems,
			Ordinal:      6,
			Description:  "Items, item effects and sentient item properties",
			Categories:   []string{"items", "item_effects", "sentient_item_properties"},
			Dependencies: []ID{PCEntities, PCLocations},
			Budget:       pc,
		},
		{
			ID:           QuestsEncounters,
			Ordinal:      7,
			Description:  "Quest hooks and encounters",
			Categories:   []string{"quest_hooks", "encounters"},
			Dependencies: []ID{PCEntities, PCLocations, PCItems},
			Budget:       population,
		},
		{
			ID:           WorldPopulation,
			Ordinal:      8,
			Description:  "Townsfolk, settlements, shops, taverns and temples",
			Categories:   []string{"entities", "locations", "shops", "taverns", "temples"},
			Dependencies: []ID{SocialFramework, PCLocations},
			Budget:       population,
		},
		{
			ID:          Relationships,
			Ordinal:     9,
			Description: "Relationships between entities, locations, factions and items",
			Categories: []string{
				"entity_relationships", "entity_locations", "entity_factions",
				"faction_relationships", "entity_items", "location_items",
			},
			Dependencies: []ID{SocialFramework, PCEntities, PCLocations, PCItems, QuestsEncounters, WorldPopulation},
			Budget:       Budget{MaxTokens: 12000, Temperature: 0.7},
		},
	}
}
