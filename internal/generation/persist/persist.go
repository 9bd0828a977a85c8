// Package persist commits one stage's generated payload as campaign rows and
// resolves the name references between them.
package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gorm.io/datatypes"

	"github.com/Crohnos/dnd-generator/internal/data/aggregates"
	campaignrepo "github.com/Crohnos/dnd-generator/internal/data/repos/campaign"
	worldrepo "github.com/Crohnos/dnd-generator/internal/data/repos/world"
	types "github.com/Crohnos/dnd-generator/internal/domain"
	"github.com/Crohnos/dnd-generator/internal/domain/generation"
	"github.com/Crohnos/dnd-generator/internal/generation/stages"
	"github.com/Crohnos/dnd-generator/internal/pkg/dbctx"
	"github.com/Crohnos/dnd-generator/internal/platform/logger"
)

// Result summarizes a committed stage.
type Result struct {
	Inserted     map[string]int `json:"inserted"`
	Stubs        int            `json:"stubs"`
	Dropped      int            `json:"dropped_references"`
	DroppedLinks int            `json:"dropped_links"`
}

type Persister struct {
	tx          aggregates.TxRunner
	campaigns   campaignrepo.CampaignRepo
	stageStatus campaignrepo.StageStatusRepo
	world       worldrepo.WorldRepo
	log         *logger.Logger
}

func New(tx aggregates.TxRunner, campaigns campaignrepo.CampaignRepo, stageStatus campaignrepo.StageStatusRepo, world worldrepo.WorldRepo, baseLog *logger.Logger) *Persister {
	return &Persister{
		tx:          tx,
		campaigns:   campaigns,
		stageStatus: stageStatus,
		world:       world,
		log:         baseLog.With("component", "Persister"),
	}
}

// Commit writes payload for stage d in one transaction together with the
// stage's completed status, so a committed stage is never generated twice.
// Any failure rolls the whole stage back and is returned as a persistence
// error.
func (p *Persister) Commit(ctx context.Context, campaignID uint, d stages.Descriptor, payload json.RawMessage) (Result, error) {
	stage := d.Name()
	sp, err := persisterFor(d.ID)
	if err != nil {
		return Result{}, err
	}
	var categories map[string]json.RawMessage
	if err := json.Unmarshal(payload, &categories); err != nil {
		return Result{}, generation.Persistence(stage, fmt.Errorf("payload is not an object: %w", err))
	}
	owned := map[string]bool{}
	for _, c := range d.Categories {
		owned[c] = true
	}
	for c := range categories {
		if !owned[c] {
			p.log.Warn("Ignoring category not owned by stage", "stage", stage, "category", c)
		}
	}

	var res Result
	err = p.tx.InTx(ctx, func(dbc dbctx.Context) error {
		campaign, err := p.campaigns.GetByID(dbc, campaignID)
		if err != nil {
			return aggregates.MapError("persist.load_campaign", err)
		}
		if campaign == nil {
			return fmt.Errorf("campaign %d no longer exists", campaignID)
		}

		w := &writer{
			dbc:      dbc,
			world:    p.world,
			log:      p.log,
			campaign: campaign,
			stage:    stage,
			refs:     NewRefMap(),
			stubs:    map[string]uint{},
			result:   Result{Inserted: map[string]int{}},
		}
		if err := p.seed(w); err != nil {
			return err
		}
		if sp.before != nil {
			if err := sp.before(w); err != nil {
				return err
			}
		}
		for _, cw := range sp.writers {
			if !owned[cw.category] {
				continue
			}
			elements, err := decodeCategory(cw.category, categories[cw.category])
			if err != nil {
				return err
			}
			for i, el := range elements {
				if err := cw.write(w, el, i+1); err != nil {
					return fmt.Errorf("%s #%d: %w", cw.category, i+1, err)
				}
			}
		}
		if err := w.flush(); err != nil {
			return err
		}
		if err := p.campaigns.PutMetadata(dbc, campaignID, stage, payload); err != nil {
			return aggregates.MapError("persist.metadata", err)
		}
		if err := p.stageStatus.Upsert(dbc, campaignID, stage, campaignrepo.StageCompleted, ""); err != nil {
			return aggregates.MapError("persist.stage_status", err)
		}
		res = w.result
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrAmbiguousReference) {
			return Result{}, generation.Persistence(stage, err)
		}
		return Result{}, generation.Persistence(stage, aggregates.MapError("persist."+stage, err))
	}
	p.log.Info("Stage committed",
		"stage", stage,
		"campaign_id", campaignID,
		"inserted", res.Inserted,
		"stubs", res.Stubs,
		"dropped_references", res.Dropped,
		"dropped_links", res.DroppedLinks,
	)
	return res, nil
}

// seed loads every committed name of every referenceable kind.
func (p *Persister) seed(w *writer) error {
	for _, kt := range kindTables {
		rows, err := p.world.Summaries(w.dbc, kt.table, w.campaign.ID)
		if err != nil {
			return aggregates.MapError("persist.seed."+kt.table, err)
		}
		for _, r := range rows {
			w.refs.Register(kt.kind, r.Name, r.ID)
		}
	}
	stubs, err := p.world.StubLocations(w.dbc, w.campaign.ID)
	if err != nil {
		return aggregates.MapError("persist.seed.stubs", err)
	}
	for _, s := range stubs {
		w.stubs[normalizeName(s.Name)] = s.ID
	}
	return nil
}

type stagePersister struct {
	before  func(w *writer) error
	writers []categoryWriter
}

// persisterFor lists the writers of each stage in the order its categories
// are declared.
func persisterFor(id stages.ID) (stagePersister, error) {
	switch id {
	case stages.CoreWorld:
		return stagePersister{writers: []categoryWriter{
			calendarSystems, planes, geographyRegions, historicalPeriods,
			economicSystems, legalSystems, celestialBodies,
		}}, nil
	case stages.CharacterBuilding:
		return stagePersister{writers: []categoryWriter{races, characterClasses, feats, backgrounds}}, nil
	case stages.SocialFramework:
		return stagePersister{writers: []categoryWriter{languages, cultures, factions, pantheons, deities}}, nil
	case stages.PCEntities:
		return stagePersister{before: insertPlayerCharacters, writers: []categoryWriter{entities}}, nil
	case stages.PCLocations:
		return stagePersister{writers: []categoryWriter{locations, dungeons, buildings}}, nil
	case stages.PCItems:
		return stagePersister{writers: []categoryWriter{items, itemEffects, sentientItemProperties}}, nil
	case stages.QuestsEncounters:
		return stagePersister{writers: []categoryWriter{questHooks, encounters}}, nil
	case stages.WorldPopulation:
		return stagePersister{writers: []categoryWriter{entities, locations, shops, taverns, temples}}, nil
	case stages.Relationships:
		return stagePersister{writers: []categoryWriter{
			entityRelationships, entityLocations, entityFactions,
			factionRelationships, entityItems, locationItems,
		}}, nil
	}
	return stagePersister{}, generation.UnknownStage(id.String())
}

// insertPlayerCharacters turns the campaign's player characters into entities
// unless an entity with the same name already exists.
func insertPlayerCharacters(w *writer) error {
	if len(w.campaign.PlayerCharacters) == 0 {
		return nil
	}
	var pcs []json.RawMessage
	if err := json.Unmarshal(w.campaign.PlayerCharacters, &pcs); err != nil {
		w.log.Warn("Skipping unreadable player characters", "campaign_id", w.campaign.ID, "error", err)
		return nil
	}
	for _, raw := range pcs {
		var pc types.PlayerCharacter
		if err := json.Unmarshal(raw, &pc); err != nil || strings.TrimSpace(pc.Name) == "" {
			continue
		}
		if w.refs.Has(KindEntity, pc.Name) {
			continue
		}
		row := &types.Entity{
			Record: types.WorldRecord{
				CampaignID:  w.campaign.ID,
				Name:        strings.TrimSpace(pc.Name),
				Description: pc.Backstory,
				Attributes:  datatypes.JSON(raw),
			},
			EntityType:        types.EntityTypePC,
			IsPlayerCharacter: true,
		}
		var err error
		if row.RaceID, err = w.ref(KindRace, pc.Race); err != nil {
			return err
		}
		if row.ClassID, err = w.ref(KindClass, pc.Class); err != nil {
			return err
		}
		if row.BackgroundID, err = w.ref(KindBackground, pc.Background); err != nil {
			return err
		}
		if err := w.insert("entities", KindEntity, row, &row.Record); err != nil {
			return err
		}
	}
	return nil
}
