package stages

import (
	"strconv"
	"strings"

	"github.com/Crohnos/dnd-generator/internal/domain/generation"
)

// ID is the closed set of generation stages. Adding a stage means adding a
// constant here and a case to every switch over ID.
type ID int

const (
	CoreWorld ID = iota + 1
	CharacterBuilding
	SocialFramework
	PCEntities
	PCLocations
	PCItems
	QuestsEncounters
	WorldPopulation
	Relationships
)

var idNames = map[ID]string{
	CoreWorld:         "phase_1a_core_world",
	CharacterBuilding: "phase_1b_character_building",
	SocialFramework:   "phase_1c_social_framework",
	PCEntities:        "phase_2a_pc_entities",
	PCLocations:       "phase_2b_pc_locations",
	PCItems:           "phase_2c_pc_items",
	QuestsEncounters:  "phase_3a_quests_encounters",
	WorldPopulation:   "phase_3b_world_population",
	Relationships:     "phase_3c_relationships",
}

// All lists every stage ID in declaration order.
func All() []ID {
	return []ID{
		CoreWorld, CharacterBuilding, SocialFramework,
		PCEntities, PCLocations, PCItems,
		QuestsEncounters, WorldPopulation, Relationships,
	}
}

func (id ID) String() string {
	if name, ok := idNames[id]; ok {
		return name
	}
	return "stage(" + strconv.Itoa(int(id)) + ")"
}

// Valid reports whether id is one of the declared stages.
func (id ID) Valid() bool {
	_, ok := idNames[id]
	return ok
}

// Parse maps a stage name to its ID.
func Parse(name string) (ID, error) {
	name = strings.TrimSpace(name)
	for id, n := range idNames {
		if n == name {
			return id, nil
		}
	}
	return 0, generation.UnknownStage(name)
}

// Budget is the static generation budget for a stage.
type Budget struct {
	MaxTokens   int
	Temperature float64
}

// Descriptor is the immutable definition of one stage.
type Descriptor struct {
	ID           ID
	Ordinal      int
	Description  string
	Categories   []string
	Dependencies []ID
	Budget       Budget
}

func (d Descriptor) Name() string { return d.ID.String() }
