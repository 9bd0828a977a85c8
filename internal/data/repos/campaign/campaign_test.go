package campaign

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/Crohnos/dnd-generator/internal/data/repos/testutil"
	types "github.com/Crohnos/dnd-generator/internal/domain"
	"github.com/Crohnos/dnd-generator/internal/pkg/dbctx"
)

func TestCampaignRepo_BeginGeneration(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewCampaignRepo(db, testutil.Logger(t))

	c := testutil.SeedCampaign(t, ctx, tx, "Stormreach")

	ok, err := repo.BeginGeneration(dbc, c.ID, 9)
	if err != nil || !ok {
		t.Fatalf("BeginGeneration: ok=%v err=%v", ok, err)
	}
	if err := repo.SetPercent(dbc, c.ID, 33); err != nil {
		t.Fatalf("SetPercent: %v", err)
	}

	ok, err = repo.BeginGeneration(dbc, c.ID, 9)
	if err != nil {
		t.Fatalf("BeginGeneration while generating: %v", err)
	}
	if ok {
		t.Fatalf("BeginGeneration while generating should be a no-op")
	}
	got, err := repo.GetByID(dbc, c.ID)
	if err != nil || got == nil {
		t.Fatalf("GetByID: got=%v err=%v", got, err)
	}
	if got.PercentComplete != 33 || got.TotalStages != 9 {
		t.Fatalf("expected percent 33 / total 9, got %d / %d", got.PercentComplete, got.TotalStages)
	}

	if err := repo.Fail(dbc, c.ID, "boom"); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	ok, err = repo.BeginGeneration(dbc, c.ID, 9)
	if err != nil || !ok {
		t.Fatalf("BeginGeneration after error: ok=%v err=%v", ok, err)
	}
	got, _ = repo.GetByID(dbc, c.ID)
	if got.LastError != nil || got.PercentComplete != 0 || got.Status != types.CampaignStatusGenerating {
		t.Fatalf("restart did not reset state: %+v", got)
	}

	if err := repo.Complete(dbc, c.ID); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if ok, _ := repo.BeginGeneration(dbc, c.ID, 9); ok {
		t.Fatalf("BeginGeneration on completed campaign should be a no-op")
	}
	got, _ = repo.GetByID(dbc, c.ID)
	if got.Status != types.CampaignStatusCompleted || got.PercentComplete != 100 {
		t.Fatalf("Complete: got status=%q percent=%d", got.Status, got.PercentComplete)
	}
}

func TestCampaignRepo_CRUD(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewCampaignRepo(db, testutil.Logger(t))

	created, err := repo.Create(dbc, &types.Campaign{Name: "Ashfall", StartingLevel: 1})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID == 0 || created.Status != types.CampaignStatusCreated {
		t.Fatalf("Create: unexpected row %+v", created)
	}

	ok, err := repo.UpdateFieldsIfStatus(dbc, created.ID, []string{types.CampaignStatusCreated}, map[string]interface{}{"tone": "grim"})
	if err != nil || !ok {
		t.Fatalf("UpdateFieldsIfStatus: ok=%v err=%v", ok, err)
	}
	ok, err = repo.UpdateFieldsIfStatus(dbc, created.ID, []string{types.CampaignStatusError}, map[string]interface{}{"tone": "light"})
	if err != nil || ok {
		t.Fatalf("UpdateFieldsIfStatus with wrong status: ok=%v err=%v", ok, err)
	}

	list, err := repo.List(dbc, 10, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	found := false
	for _, c := range list {
		if c.ID == created.ID {
			found = c.Tone == "grim"
		}
	}
	if !found {
		t.Fatalf("List: expected updated campaign %d", created.ID)
	}

	if err := repo.Delete(dbc, created.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if exists, err := repo.Exists(dbc, created.ID); err != nil || exists {
		t.Fatalf("Exists after delete: exists=%v err=%v", exists, err)
	}
	if got, err := repo.GetByID(dbc, created.ID); err != nil || got != nil {
		t.Fatalf("GetByID after delete: got=%v err=%v", got, err)
	}
}

func TestCampaignRepo_PutMetadata(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewCampaignRepo(db, testutil.Logger(t))

	c := testutil.SeedCampaign(t, ctx, tx, "Meta")
	if err := repo.PutMetadata(dbc, c.ID, "phase_1a_core_world", json.RawMessage(`{"planes":[]}`)); err != nil {
		t.Fatalf("PutMetadata 1a: %v", err)
	}
	if err := repo.PutMetadata(dbc, c.ID, "phase_1b_character_building", json.RawMessage(`{"races":[{"name":"Elf"}]}`)); err != nil {
		t.Fatalf("PutMetadata 1b: %v", err)
	}
	got, _ := repo.GetByID(dbc, c.ID)
	var meta map[string]json.RawMessage
	if err := json.Unmarshal(got.Metadata, &meta); err != nil {
		t.Fatalf("metadata json: %v", err)
	}
	if len(meta) != 2 {
		t.Fatalf("expected both stage payloads in metadata, got %s", string(got.Metadata))
	}
	if err := repo.PutMetadata(dbc, 999999, "x", json.RawMessage(`{}`)); err == nil {
		t.Fatalf("expected error for missing campaign")
	}
}

func TestStageStatusRepo_Upsert(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewStageStatusRepo(db, testutil.Logger(t))

	c := testutil.SeedCampaign(t, ctx, tx, "Stages")
	if err := repo.Upsert(dbc, c.ID, "phase_1a_core_world", StageGenerating, ""); err != nil {
		t.Fatalf("Upsert generating: %v", err)
	}
	if err := repo.Upsert(dbc, c.ID, "phase_1a_core_world", StageCompleted, ""); err != nil {
		t.Fatalf("Upsert completed: %v", err)
	}
	if err := repo.Upsert(dbc, c.ID, "phase_1b_character_building", StageError, "boom"); err != nil {
		t.Fatalf("Upsert error: %v", err)
	}

	rows, err := repo.ListByCampaign(dbc, c.ID)
	if err != nil {
		t.Fatalf("ListByCampaign: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected one row per stage, got %d", len(rows))
	}
	if rows[1].Error != "boom" || rows[1].Status != StageError {
		t.Fatalf("unexpected error row: %+v", rows[1])
	}

	done, err := repo.CompletedStages(dbc, c.ID)
	if err != nil {
		t.Fatalf("CompletedStages: %v", err)
	}
	if len(done) != 1 || done[0] != "phase_1a_core_world" {
		t.Fatalf("CompletedStages: got %v", done)
	}
}
