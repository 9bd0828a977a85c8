package persist

import (
	"encoding/json"
	"fmt"
	"strings"

	"gorm.io/datatypes"

	worldrepo "github.com/Crohnos/dnd-generator/internal/data/repos/world"
	types "github.com/Crohnos/dnd-generator/internal/domain"
	"github.com/Crohnos/dnd-generator/internal/pkg/dbctx"
	"github.com/Crohnos/dnd-generator/internal/platform/logger"
)

// writer carries the state of one stage's unit of work.
type writer struct {
	dbc      dbctx.Context
	world    worldrepo.WorldRepo
	log      *logger.Logger
	campaign *types.Campaign
	stage    string
	refs     *RefMap
	// stubs maps a normalized location name to the id of its stub row.
	stubs    map[string]uint
	deferred []func() error
	result   Result
}

func (w *writer) record(category string, el element, n int) types.WorldRecord {
	attrs := datatypes.JSON([]byte("{}"))
	if len(el.raw) > 0 {
		attrs = datatypes.JSON(append([]byte(nil), el.raw...))
	}
	return types.WorldRecord{
		CampaignID:  w.campaign.ID,
		Name:        el.name(category, n),
		Description: el.str("description", "summary"),
		Attributes:  attrs,
	}
}

func (w *writer) link(el element, defaultType string) types.WorldLink {
	attrs := datatypes.JSON([]byte("{}"))
	if len(el.raw) > 0 {
		attrs = datatypes.JSON(append([]byte(nil), el.raw...))
	}
	relType := el.str("relationship_type", "type", "role")
	if relType == "" {
		relType = defaultType
	}
	return types.WorldLink{
		CampaignID:       w.campaign.ID,
		RelationshipType: relType,
		Description:      el.str("description", "notes"),
		Attributes:       attrs,
	}
}

// insert creates the row and, for referenceable kinds, registers its name.
func (w *writer) insert(category string, kind Kind, model any, rec *types.WorldRecord) error {
	if err := w.world.Insert(w.dbc, model); err != nil {
		return fmt.Errorf("insert %s %q: %w", category, rec.Name, err)
	}
	if kind != "" {
		w.refs.Register(kind, rec.Name, rec.ID)
	}
	w.result.Inserted[category]++
	return nil
}

func (w *writer) insertLink(category string, model any) error {
	if err := w.world.Insert(w.dbc, model); err != nil {
		return fmt.Errorf("insert %s: %w", category, err)
	}
	w.result.Inserted[category]++
	return nil
}

// ref resolves a name to an id. Unknown names resolve to nil and are counted
// as dropped; ambiguous names fail the stage.
func (w *writer) ref(kind Kind, name string) (*uint, error) {
	if strings.TrimSpace(name) == "" {
		return nil, nil
	}
	id, ok, err := w.refs.Lookup(kind, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		w.result.Dropped++
		w.log.Debug("Unresolved reference dropped", "stage", w.stage, "kind", kind, "name", name)
		return nil, nil
	}
	return &id, nil
}

// locationOrStub resolves a location, creating a stub row when the name is
// not known yet.
func (w *writer) locationOrStub(category, name string) (*uint, error) {
	if strings.TrimSpace(name) == "" {
		return nil, nil
	}
	id, ok, err := w.refs.Lookup(KindLocation, name)
	if err != nil {
		return nil, err
	}
	if ok {
		return &id, nil
	}
	attrs, _ := json.Marshal(map[string]string{"referenced_by": category})
	stub := &types.Location{
		Record: types.WorldRecord{
			CampaignID: w.campaign.ID,
			Name:       strings.TrimSpace(name),
			Attributes: datatypes.JSON(attrs),
		},
		LocationType: "unknown",
		IsStub:       true,
	}
	if err := w.world.Insert(w.dbc, stub); err != nil {
		return nil, fmt.Errorf("insert stub location %q: %w", name, err)
	}
	w.refs.Register(KindLocation, stub.Name, stub.ID)
	w.stubs[normalizeName(stub.Name)] = stub.ID
	w.result.Stubs++
	return &stub.ID, nil
}

// later queues work that needs every category of the stage inserted first.
func (w *writer) later(fn func() error) {
	w.deferred = append(w.deferred, fn)
}

func (w *writer) flush() error {
	for _, fn := range w.deferred {
		if err := fn(); err != nil {
			return err
		}
	}
	w.deferred = nil
	return nil
}
