package persist

import (
	"strings"

	types "github.com/Crohnos/dnd-generator/internal/domain"
)

// categoryWriter inserts one element of category. n is its 1-based position.
type categoryWriter struct {
	category string
	write    func(w *writer, el element, n int) error
}

// plain is a writer for categories without references.
func plain[T any](category string, kind Kind, wrap func(types.WorldRecord) *T, rec func(*T) *types.WorldRecord) categoryWriter {
	return categoryWriter{category: category, write: func(w *writer, el element, n int) error {
		row := wrap(w.record(category, el, n))
		return w.insert(category, kind, row, rec(row))
	}}
}

var (
	calendarSystems = plain("calendar_systems", "",
		func(r types.WorldRecord) *types.CalendarSystem { return &types.CalendarSystem{Record: r} },
		func(t *types.CalendarSystem) *types.WorldRecord { return &t.Record })
	planes = plain("planes", KindPlane,
		func(r types.WorldRecord) *types.Plane { return &types.Plane{Record: r} },
		func(t *types.Plane) *types.WorldRecord { return &t.Record })
	historicalPeriods = plain("historical_periods", "",
		func(r types.WorldRecord) *types.HistoricalPeriod { return &types.HistoricalPeriod{Record: r} },
		func(t *types.HistoricalPeriod) *types.WorldRecord { return &t.Record })
	economicSystems = plain("economic_systems", "",
		func(r types.WorldRecord) *types.EconomicSystem { return &types.EconomicSystem{Record: r} },
		func(t *types.EconomicSystem) *types.WorldRecord { return &t.Record })
	legalSystems = plain("legal_systems", "",
		func(r types.WorldRecord) *types.LegalSystem { return &types.LegalSystem{Record: r} },
		func(t *types.LegalSystem) *types.WorldRecord { return &t.Record })
	celestialBodies = plain("celestial_bodies", "",
		func(r types.WorldRecord) *types.CelestialBody { return &types.CelestialBody{Record: r} },
		func(t *types.CelestialBody) *types.WorldRecord { return &t.Record })
	characterClasses = plain("character_classes", KindClass,
		func(r types.WorldRecord) *types.CharacterClass { return &types.CharacterClass{Record: r} },
		func(t *types.CharacterClass) *types.WorldRecord { return &t.Record })
	feats = plain("feats", "",
		func(r types.WorldRecord) *types.Feat { return &types.Feat{Record: r} },
		func(t *types.Feat) *types.WorldRecord { return &t.Record })
	backgrounds = plain("backgrounds", KindBackground,
		func(r types.WorldRecord) *types.Background { return &types.Background{Record: r} },
		func(t *types.Background) *types.WorldRecord { return &t.Record })
	languages = plain("languages", KindLanguage,
		func(r types.WorldRecord) *types.Language { return &types.Language{Record: r} },
		func(t *types.Language) *types.WorldRecord { return &t.Record })
	factions = plain("factions", KindFaction,
		func(r types.WorldRecord) *types.Faction { return &types.Faction{Record: r} },
		func(t *types.Faction) *types.WorldRecord { return &t.Record })
	pantheons = plain("pantheons", KindPantheon,
		func(r types.WorldRecord) *types.Pantheon { return &types.Pantheon{Record: r} },
		func(t *types.Pantheon) *types.WorldRecord { return &t.Record })
)

var geographyRegions = categoryWriter{"geography_regions", func(w *writer, el element, n int) error {
	planeID, err := w.ref(KindPlane, el.str("plane"))
	if err != nil {
		return err
	}
	row := &types.GeographyRegion{Record: w.record("geography_regions", el, n), PlaneID: planeID}
	return w.insert("geography_regions", KindRegion, row, &row.Record)
}}

var races = categoryWriter{"races", func(w *writer, el element, n int) error {
	homeland, err := w.ref(KindRegion, el.str("homeland", "homeland_region"))
	if err != nil {
		return err
	}
	row := &types.Race{Record: w.record("races", el, n), HomelandRegionID: homeland}
	return w.insert("races", KindRace, row, &row.Record)
}}

var cultures = categoryWriter{"cultures", func(w *writer, el element, n int) error {
	lang, err := w.ref(KindLanguage, el.str("primary_language", "language"))
	if err != nil {
		return err
	}
	race, err := w.ref(KindRace, el.str("primary_race", "race"))
	if err != nil {
		return err
	}
	row := &types.Culture{Record: w.record("cultures", el, n), LanguageID: lang, RaceID: race}
	return w.insert("cultures", "", row, &row.Record)
}}

var deities = categoryWriter{"deities", func(w *writer, el element, n int) error {
	pantheon, err := w.ref(KindPantheon, el.str("pantheon"))
	if err != nil {
		return err
	}
	row := &types.Deity{Record: w.record("deities", el, n), PantheonID: pantheon}
	return w.insert("deities", KindDeity, row, &row.Record)
}}

var entities = categoryWriter{"entities", func(w *writer, el element, n int) error {
	row := &types.Entity{Record: w.record("entities", el, n)}
	row.EntityType = strings.ToLower(el.str("entity_type", "type"))
	if row.EntityType == "" {
		row.EntityType = types.EntityTypeNPC
	}
	row.IsPlayerCharacter = row.EntityType == types.EntityTypePC
	var err error
	if row.RaceID, err = w.ref(KindRace, el.str("race")); err != nil {
		return err
	}
	if row.ClassID, err = w.ref(KindClass, el.str("class", "character_class")); err != nil {
		return err
	}
	if row.BackgroundID, err = w.ref(KindBackground, el.str("background")); err != nil {
		return err
	}
	if row.FactionID, err = w.ref(KindFaction, el.str("faction")); err != nil {
		return err
	}
	if err := w.insert("entities", KindEntity, row, &row.Record); err != nil {
		return err
	}
	if pc := el.str("connected_pc"); pc != "" {
		w.later(func() error {
			other, err := w.ref(KindEntity, pc)
			if err != nil || other == nil {
				return err
			}
			link := &types.EntityRelationship{
				Link:            w.link(element{}, "connected_pc"),
				EntityID:        row.ID,
				RelatedEntityID: *other,
			}
			return w.insertLink("entity_relationships", link)
		})
	}
	return nil
}}

var locations = categoryWriter{"locations", func(w *writer, el element, n int) error {
	rec := w.record("locations", el, n)
	locType := strings.ToLower(el.str("location_type", "type"))
	parent, err := w.ref(KindLocation, el.str("parent_location", "parent"))
	if err != nil {
		return err
	}
	region, err := w.ref(KindRegion, el.str("region"))
	if err != nil {
		return err
	}

	var locationID uint
	if stubID, ok := w.stubs[normalizeName(rec.Name)]; ok {
		// A stub referenced earlier now gets its full description.
		if err := w.world.UpdateFields(w.dbc, "locations", stubID, map[string]interface{}{
			"description":        rec.Description,
			"attributes":         rec.Attributes,
			"location_type":      locType,
			"is_stub":            false,
			"parent_location_id": parent,
			"region_id":          region,
		}); err != nil {
			return err
		}
		delete(w.stubs, normalizeName(rec.Name))
		w.result.Inserted["locations"]++
		locationID = stubID
	} else {
		row := &types.Location{Record: rec, LocationType: locType, ParentLocationID: parent, RegionID: region}
		if err := w.insert("locations", KindLocation, row, &row.Record); err != nil {
			return err
		}
		locationID = row.ID
	}

	for _, inhabitant := range el.names("inhabitants") {
		w.later(func() error {
			entityID, err := w.ref(KindEntity, inhabitant)
			if err != nil || entityID == nil {
				return err
			}
			link := &types.EntityLocation{
				Link:       w.link(element{}, "resides"),
				EntityID:   *entityID,
				LocationID: locationID,
			}
			return w.insertLink("entity_locations", link)
		})
	}
	return nil
}}

var dungeons = categoryWriter{"dungeons", func(w *writer, el element, n int) error {
	loc, err := w.locationOrStub("dungeons", el.str("location"))
	if err != nil {
		return err
	}
	row := &types.Dungeon{Record: w.record("dungeons", el, n), LocationID: loc}
	return w.insert("dungeons", "", row, &row.Record)
}}

var buildings = categoryWriter{"buildings", func(w *writer, el element, n int) error {
	loc, err := w.locationOrStub("buildings", el.str("location"))
	if err != nil {
		return err
	}
	owner, err := w.ref(KindEntity, el.str("owner"))
	if err != nil {
		return err
	}
	row := &types.Building{Record: w.record("buildings", el, n), LocationID: loc, OwnerEntityID: owner}
	return w.insert("buildings", "", row, &row.Record)
}}

var items = categoryWriter{"items", func(w *writer, el element, n int) error {
	owner, err := w.ref(KindEntity, el.str("owner"))
	if err != nil {
		return err
	}
	loc, err := w.ref(KindLocation, el.str("location"))
	if err != nil {
		return err
	}
	row := &types.Item{
		Record:        w.record("items", el, n),
		ItemType:      el.str("item_type", "type"),
		Rarity:        strings.ToLower(el.str("rarity")),
		OwnerEntityID: owner,
		LocationID:    loc,
	}
	return w.insert("items", KindItem, row, &row.Record)
}}

var itemEffects = categoryWriter{"item_effects", func(w *writer, el element, n int) error {
	item, err := w.ref(KindItem, el.str("item"))
	if err != nil {
		return err
	}
	row := &types.ItemEffect{Record: w.record("item_effects", el, n), ItemID: item}
	return w.insert("item_effects", "", row, &row.Record)
}}

var sentientItemProperties = categoryWriter{"sentient_item_properties", func(w *writer, el element, n int) error {
	item, err := w.ref(KindItem, el.str("item"))
	if err != nil {
		return err
	}
	row := &types.SentientItemProperty{Record: w.record("sentient_item_properties", el, n), ItemID: item}
	return w.insert("sentient_item_properties", "", row, &row.Record)
}}

func questStatus(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case types.QuestStatusActive:
		return types.QuestStatusActive
	case types.QuestStatusCompleted:
		return types.QuestStatusCompleted
	}
	return types.QuestStatusAvailable
}

var questHooks = categoryWriter{"quest_hooks", func(w *writer, el element, n int) error {
	giver, err := w.ref(KindEntity, el.str("quest_giver"))
	if err != nil {
		return err
	}
	loc, err := w.ref(KindLocation, el.str("location"))
	if err != nil {
		return err
	}
	row := &types.QuestHook{
		Record:             w.record("quest_hooks", el, n),
		Status:             questStatus(el.str("status")),
		QuestGiverEntityID: giver,
		LocationID:         loc,
	}
	return w.insert("quest_hooks", "", row, &row.Record)
}}

var encounters = categoryWriter{"encounters", func(w *writer, el element, n int) error {
	loc, err := w.ref(KindLocation, el.str("location"))
	if err != nil {
		return err
	}
	row := &types.Encounter{Record: w.record("encounters", el, n), LocationID: loc}
	return w.insert("encounters", "", row, &row.Record)
}}

var shops = categoryWriter{"shops", func(w *writer, el element, n int) error {
	loc, owner, err := premises(w, "shops", el)
	if err != nil {
		return err
	}
	row := &types.Shop{Record: w.record("shops", el, n), LocationID: loc, OwnerEntityID: owner}
	return w.insert("shops", "", row, &row.Record)
}}

var taverns = categoryWriter{"taverns", func(w *writer, el element, n int) error {
	loc, owner, err := premises(w, "taverns", el)
	if err != nil {
		return err
	}
	row := &types.Tavern{Record: w.record("taverns", el, n), LocationID: loc, OwnerEntityID: owner}
	return w.insert("taverns", "", row, &row.Record)
}}

func premises(w *writer, category string, el element) (loc, owner *uint, err error) {
	if loc, err = w.locationOrStub(category, el.str("location")); err != nil {
		return nil, nil, err
	}
	if owner, err = w.ref(KindEntity, el.str("owner", "proprietor")); err != nil {
		return nil, nil, err
	}
	return loc, owner, nil
}

var temples = categoryWriter{"temples", func(w *writer, el element, n int) error {
	loc, err := w.locationOrStub("temples", el.str("location"))
	if err != nil {
		return err
	}
	deity, err := w.ref(KindDeity, el.str("deity"))
	if err != nil {
		return err
	}
	priest, err := w.ref(KindEntity, el.str("high_priest"))
	if err != nil {
		return err
	}
	row := &types.Temple{Record: w.record("temples", el, n), LocationID: loc, DeityID: deity, HighPriestEntityID: priest}
	return w.insert("temples", "", row, &row.Record)
}}

// linkWriter inserts a relationship row when both sides resolve and drops it
// otherwise.
func linkWriter(category string, left, right Kind, leftKey, rightKey string, build func(w *writer, el element, l, r uint) any) categoryWriter {
	return categoryWriter{category: category, write: func(w *writer, el element, _ int) error {
		l, err := w.ref(left, el.str(leftKey))
		if err != nil {
			return err
		}
		r, err := w.ref(right, el.str(rightKey))
		if err != nil {
			return err
		}
		if l == nil || r == nil {
			w.result.DroppedLinks++
			return nil
		}
		return w.insertLink(category, build(w, el, *l, *r))
	}}
}

var (
	entityRelationships = linkWriter("entity_relationships", KindEntity, KindEntity, "entity", "related_entity",
		func(w *writer, el element, l, r uint) any {
			return &types.EntityRelationship{Link: w.link(el, "knows"), EntityID: l, RelatedEntityID: r}
		})
	entityLocations = linkWriter("entity_locations", KindEntity, KindLocation, "entity", "location",
		func(w *writer, el element, l, r uint) any {
			return &types.EntityLocation{Link: w.link(el, "resides"), EntityID: l, LocationID: r}
		})
	entityFactions = linkWriter("entity_factions", KindEntity, KindFaction, "entity", "faction",
		func(w *writer, el element, l, r uint) any {
			return &types.EntityFaction{Link: w.link(el, "member"), EntityID: l, FactionID: r}
		})
	factionRelationships = linkWriter("faction_relationships", KindFaction, KindFaction, "faction", "related_faction",
		func(w *writer, el element, l, r uint) any {
			return &types.FactionRelationship{Link: w.link(el, "neutral"), FactionID: l, RelatedFactionID: r}
		})
	entityItems = linkWriter("entity_items", KindEntity, KindItem, "entity", "item",
		func(w *writer, el element, l, r uint) any {
			return &types.EntityItem{Link: w.link(el, "owns"), EntityID: l, ItemID: r}
		})
	locationItems = linkWriter("location_items", KindLocation, KindItem, "location", "item",
		func(w *writer, el element, l, r uint) any {
			return &types.LocationItem{Link: w.link(el, "contains"), LocationID: l, ItemID: r}
		})
)
