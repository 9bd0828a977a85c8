package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/Crohnos/dnd-generator/internal/data/repos/testutil"
	types "github.com/Crohnos/dnd-generator/internal/domain"
	"github.com/Crohnos/dnd-generator/internal/pkg/dbctx"
)

func newJob(jobType string, entityID uint, status string, created time.Time) *types.JobRun {
	return &types.JobRun{
		JobType:    jobType,
		EntityType: "campaign",
		EntityID:   testutil.PtrUint(entityID),
		Status:     status,
		Stage:      status,
		Payload:    datatypes.JSON([]byte("{}")),
		Result:     datatypes.JSON([]byte("{}")),
		CreatedAt:  created,
		UpdatedAt:  created,
	}
}

func TestJobRunRepo_CreateAndLookup(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewJobRunRepo(db, testutil.Logger(t))

	now := time.Now().UTC()
	older := newJob("campaign_generate", 7, types.JobStatusSucceeded, now.Add(-2*time.Hour))
	newer := newJob("campaign_generate", 7, types.JobStatusQueued, now.Add(-1*time.Hour))
	created, err := repo.Create(dbc, []*types.JobRun{older, newer})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(created) != 2 || older.ID == uuid.Nil || newer.ID == uuid.Nil {
		t.Fatalf("Create: expected generated ids, got %v / %v", older.ID, newer.ID)
	}

	rows, err := repo.GetByIDs(dbc, []uuid.UUID{older.ID, newer.ID})
	if err != nil || len(rows) != 2 {
		t.Fatalf("GetByIDs: err=%v len=%d", err, len(rows))
	}

	latest, err := repo.GetLatestByEntity(dbc, "campaign", 7, "campaign_generate")
	if err != nil {
		t.Fatalf("GetLatestByEntity: %v", err)
	}
	if latest == nil || latest.ID != newer.ID {
		t.Fatalf("GetLatestByEntity: expected %v got %v", newer.ID, latest)
	}
	if none, err := repo.GetLatestByEntity(dbc, "campaign", 8, "campaign_generate"); err != nil || none != nil {
		t.Fatalf("GetLatestByEntity (missing): err=%v job=%v", err, none)
	}

	has, err := repo.HasRunnableForEntity(dbc, "campaign", 7, "campaign_generate")
	if err != nil || !has {
		t.Fatalf("HasRunnableForEntity: has=%v err=%v", has, err)
	}

	ok, err := repo.UpdateFieldsUnlessStatus(dbc, newer.ID, []string{types.JobStatusCanceled}, map[string]interface{}{
		"status": types.JobStatusCanceled,
	})
	if err != nil || !ok {
		t.Fatalf("UpdateFieldsUnlessStatus: ok=%v err=%v", ok, err)
	}
	ok, err = repo.UpdateFieldsUnlessStatus(dbc, newer.ID, []string{types.JobStatusCanceled}, map[string]interface{}{
		"status": types.JobStatusRunning,
	})
	if err != nil || ok {
		t.Fatalf("UpdateFieldsUnlessStatus on canceled: ok=%v err=%v", ok, err)
	}

	has, err = repo.HasRunnableForEntity(dbc, "campaign", 7, "campaign_generate")
	if err != nil || has {
		t.Fatalf("HasRunnableForEntity after cancel: has=%v err=%v", has, err)
	}
}

func TestJobRunRepo_ClaimNextRunnable(t *testing.T) {
	db := testutil.DB(t)
	if !testutil.IsPostgres(db) {
		t.Skip("claim ordering relies on Postgres timestamp comparison; set TEST_POSTGRES_DSN")
	}
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewJobRunRepo(db, testutil.Logger(t))

	now := time.Now().UTC()
	queued := newJob("claim_test", 1, types.JobStatusQueued, now.Add(-3*time.Hour))
	failed := newJob("claim_test", 2, types.JobStatusFailed, now.Add(-2*time.Hour))
	failed.LastErrorAt = testutil.PtrTime(now.Add(-2 * time.Hour))
	stale := newJob("claim_test", 3, types.JobStatusRunning, now.Add(-1*time.Hour))
	stale.HeartbeatAt = testutil.PtrTime(now.Add(-10 * time.Hour))
	if _, err := repo.Create(dbc, []*types.JobRun{queued, failed, stale}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	for i, want := range []uuid.UUID{queued.ID, failed.ID, stale.ID} {
		claimed, err := repo.ClaimNextRunnable(dbc, 3, time.Hour, time.Hour)
		if err != nil {
			t.Fatalf("ClaimNextRunnable #%d: %v", i+1, err)
		}
		if claimed == nil || claimed.ID != want {
			t.Fatalf("ClaimNextRunnable #%d: expected %v got %v", i+1, want, claimed)
		}
		if claimed.Status != types.JobStatusRunning {
			t.Fatalf("ClaimNextRunnable #%d: status = %q", i+1, claimed.Status)
		}
	}
	if err := repo.Heartbeat(dbc, failed.ID); err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}
}
