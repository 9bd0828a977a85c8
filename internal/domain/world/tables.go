package world

// Tables holding named rows, in the order their categories are generated.
var RecordTables = []string{
	"calendar_systems", "planes", "geography_regions", "historical_periods",
	"economic_systems", "legal_systems", "celestial_bodies",
	"races", "character_classes", "feats", "backgrounds",
	"languages", "cultures", "factions", "pantheons", "deities",
	"entities",
	"locations", "dungeons", "buildings",
	"items", "item_effects", "sentient_item_properties",
	"quest_hooks", "encounters",
	"shops", "taverns", "temples",
}

var LinkTables = []string{
	"entity_relationships", "entity_locations", "entity_factions",
	"faction_relationships", "entity_items", "location_items",
}

var recordSet, linkSet = toSet(RecordTables), toSet(LinkTables)

func IsRecordTable(name string) bool { return recordSet[name] }

func IsLinkTable(name string) bool { return linkSet[name] }

func toSet(names []string) map[string]bool {
	out := make(map[string]bool, len(names))
	for _, n := range names {
		out[n] = true
	}
	return out
}
