package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/Crohnos/dnd-generator/internal/data/repos"
	"github.com/Crohnos/dnd-generator/internal/data/repos/testutil"
	types "github.com/Crohnos/dnd-generator/internal/domain"
	"github.com/Crohnos/dnd-generator/internal/jobs/runtime"
	"github.com/Crohnos/dnd-generator/internal/pkg/dbctx"
)

type handlerFunc struct {
	jobType string
	run     func(jc *runtime.Context) error
}

func (h handlerFunc) Type() string                  { return h.jobType }
func (h handlerFunc) Run(jc *runtime.Context) error { return h.run(jc) }

func setup(t *testing.T, handlers ...runtime.Handler) (*Worker, repos.JobRunRepo) {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	repo := repos.New(db, log).JobRun
	reg := runtime.NewRegistry()
	for _, h := range handlers {
		if err := reg.Register(h); err != nil {
			t.Fatalf("register: %v", err)
		}
	}
	return NewWorker(log, repo, reg, nil), repo
}

func claimed(t *testing.T, repo repos.JobRunRepo, jobType string) *types.JobRun {
	t.Helper()
	job := &types.JobRun{
		JobType:  jobType,
		Status:   types.JobStatusRunning,
		Stage:    "claimed",
		Attempts: 1,
		Payload:  datatypes.JSON([]byte(`{"campaign_id": 1}`)),
	}
	if _, err := repo.Create(dbctx.Context{Ctx: context.Background()}, []*types.JobRun{job}); err != nil {
		t.Fatalf("create job: %v", err)
	}
	return job
}

func stored(t *testing.T, repo repos.JobRunRepo, id uuid.UUID) *types.JobRun {
	t.Helper()
	rows, err := repo.GetByIDs(dbctx.Context{Ctx: context.Background()}, []uuid.UUID{id})
	if err != nil || len(rows) != 1 {
		t.Fatalf("load job: err=%v len=%d", err, len(rows))
	}
	return rows[0]
}

func TestDispatch(t *testing.T) {
	cases := []struct {
		name      string
		run       func(jc *runtime.Context) error
		jobType   string
		wantState string
		wantStage string
	}{
		{
			name:      "succeeds",
			run:       func(jc *runtime.Context) error { jc.Succeed("done", map[string]any{"ok": true}); return nil },
			wantState: types.JobStatusSucceeded,
			wantStage: "done",
		},
		{
			name:      "handler fails itself",
			run:       func(jc *runtime.Context) error { jc.Fail("generate", errors.New("bad")); return nil },
			wantState: types.JobStatusFailed,
			wantStage: "generate",
		},
		{
			name:      "returned error",
			run:       func(*runtime.Context) error { return errors.New("bad") },
			wantState: types.JobStatusFailed,
			wantStage: "run",
		},
		{
			name:      "panic",
			run:       func(*runtime.Context) error { panic("kaboom") },
			wantState: types.JobStatusFailed,
			wantStage: "panic",
		},
		{
			name:      "no terminal transition",
			run:       func(*runtime.Context) error { return nil },
			wantState: types.JobStatusFailed,
			wantStage: "run",
		},
		{
			name:      "unknown job type",
			run:       func(*runtime.Context) error { return nil },
			jobType:   "mystery",
			wantState: types.JobStatusFailed,
			wantStage: "dispatch",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, repo := setup(t, handlerFunc{jobType: "campaign_generate", run: tc.run})
			jobType := tc.jobType
			if jobType == "" {
				jobType = "campaign_generate"
			}
			job := claimed(t, repo, jobType)

			w.dispatch(context.Background(), job)

			got := stored(t, repo, job.ID)
			if got.Status != tc.wantState || got.Stage != tc.wantStage {
				t.Fatalf("status=%q stage=%q, want %q/%q (error=%q)", got.Status, got.Stage, tc.wantState, tc.wantStage, got.Error)
			}
			if got.LockedAt != nil {
				t.Fatalf("expected lock released")
			}
		})
	}
}

func TestPanicErrorCarriesValue(t *testing.T) {
	if got := errFromRecover("kaboom").Error(); got != "panic: kaboom" {
		t.Fatalf("panic error = %q", got)
	}
}

func TestClaimLoopRunsQueuedJob(t *testing.T) {
	db := testutil.DB(t)
	if !testutil.IsPostgres(db) {
		t.Skip("claiming uses FOR UPDATE SKIP LOCKED; set TEST_POSTGRES_DSN")
	}
	log := testutil.Logger(t)
	repo := repos.New(db, log).JobRun
	reg := runtime.NewRegistry()
	done := make(chan struct{})
	jobType := "worker_test_" + uuid.NewString()
	if err := reg.Register(handlerFunc{jobType: jobType, run: func(jc *runtime.Context) error {
		jc.Succeed("done", nil)
		close(done)
		return nil
	}}); err != nil {
		t.Fatalf("register: %v", err)
	}
	job := &types.JobRun{JobType: jobType, Status: types.JobStatusQueued, Stage: "queued", Payload: datatypes.JSON([]byte(`{}`))}
	if _, err := repo.Create(dbctx.Context{Ctx: context.Background()}, []*types.JobRun{job}); err != nil {
		t.Fatalf("create: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := NewWorker(log, repo, reg, nil)
	w.Start(ctx)
	select {
	case <-done:
	case <-time.After(30 * time.Second):
		t.Fatalf("job was not claimed")
	}
	cancel()
	w.Wait()

	if got := stored(t, repo, job.ID); got.Status != types.JobStatusSucceeded {
		t.Fatalf("status=%q", got.Status)
	}
}
