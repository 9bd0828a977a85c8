package world

import (
	"context"
	"testing"

	"github.com/Crohnos/dnd-generator/internal/data/repos/testutil"
	types "github.com/Crohnos/dnd-generator/internal/domain"
	"github.com/Crohnos/dnd-generator/internal/pkg/dbctx"
)

func TestWorldRepo_InsertAndSummaries(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewWorldRepo(db, testutil.Logger(t))

	c := testutil.SeedCampaign(t, ctx, tx, "World")
	other := testutil.SeedCampaign(t, ctx, tx, "Other")

	plane := &types.Plane{Record: testutil.Record(c.ID, "Material Plane")}
	plane.Description = "Where mortals live"
	if err := repo.Insert(dbc, plane); err != nil {
		t.Fatalf("Insert plane: %v", err)
	}
	if plane.ID == 0 {
		t.Fatalf("expected generated id")
	}
	region := &types.GeographyRegion{Record: testutil.Record(c.ID, "Saltmarsh"), PlaneID: testutil.PtrUint(plane.ID)}
	if err := repo.Insert(dbc, region); err != nil {
		t.Fatalf("Insert region: %v", err)
	}
	testutil.SeedRecord(t, ctx, tx, &types.Plane{Record: testutil.Record(other.ID, "Feywild")})

	got, err := repo.Summaries(dbc, "planes", c.ID)
	if err != nil {
		t.Fatalf("Summaries: %v", err)
	}
	if len(got) != 1 || got[0].Name != "Material Plane" || got[0].Description != "Where mortals live" {
		t.Fatalf("Summaries: unexpected %+v", got)
	}
	if _, err := repo.Summaries(dbc, "users", c.ID); err == nil {
		t.Fatalf("expected unknown table error")
	}

	n, err := repo.Count(dbc, "geography_regions", c.ID)
	if err != nil || n != 1 {
		t.Fatalf("Count: n=%d err=%v", n, err)
	}

	if err := repo.DeleteByCampaign(dbc, c.ID); err != nil {
		t.Fatalf("DeleteByCampaign: %v", err)
	}
	if n, _ := repo.Count(dbc, "planes", c.ID); n != 0 {
		t.Fatalf("expected campaign rows deleted, got %d", n)
	}
	if n, _ := repo.Count(dbc, "planes", other.ID); n != 1 {
		t.Fatalf("expected other campaign untouched, got %d", n)
	}
}
