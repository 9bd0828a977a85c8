package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/Crohnos/dnd-generator/internal/data/repos"
	"github.com/Crohnos/dnd-generator/internal/data/repos/testutil"
	types "github.com/Crohnos/dnd-generator/internal/domain"
	"github.com/Crohnos/dnd-generator/internal/pkg/dbctx"
	"github.com/Crohnos/dnd-generator/internal/platform/ctxutil"
)

type recordingNotifier struct{ statuses []string }

func (n *recordingNotifier) JobUpdated(_ context.Context, job *types.JobRun) {
	n.statuses = append(n.statuses, job.Status)
}

func seedJob(t *testing.T, repo repos.JobRunRepo, payload string) *types.JobRun {
	t.Helper()
	job := &types.JobRun{
		JobType:  "campaign_generate",
		Status:   types.JobStatusRunning,
		Stage:    "queued",
		Attempts: 1,
		Payload:  datatypes.JSON([]byte(payload)),
	}
	if _, err := repo.Create(dbctx.Context{Ctx: context.Background()}, []*types.JobRun{job}); err != nil {
		t.Fatalf("create job: %v", err)
	}
	return job
}

func reload(t *testing.T, repo repos.JobRunRepo, job *types.JobRun) *types.JobRun {
	t.Helper()
	rows, err := repo.GetByIDs(dbctx.Context{Ctx: context.Background()}, []uuid.UUID{job.ID})
	if err != nil || len(rows) != 1 {
		t.Fatalf("reload job: err=%v len=%d", err, len(rows))
	}
	return rows[0]
}

func TestContext_ProgressAndSucceed(t *testing.T) {
	db := testutil.DB(t)
	repo := repos.New(db, testutil.Logger(t)).JobRun
	job := seedJob(t, repo, `{"campaign_id": 12}`)
	n := &recordingNotifier{}

	jc := NewContext(context.Background(), job, repo, n)
	jc.Progress("generate", 40)
	got := reload(t, repo, job)
	if got.Stage != "generate" || got.Progress != 40 || got.Status != types.JobStatusRunning {
		t.Fatalf("after Progress: stage=%q progress=%d status=%q", got.Stage, got.Progress, got.Status)
	}

	jc.Succeed("done", map[string]any{"campaign_id": 12})
	got = reload(t, repo, job)
	if got.Status != types.JobStatusSucceeded || got.Progress != 100 || got.LockedAt != nil {
		t.Fatalf("after Succeed: status=%q progress=%d locked=%v", got.Status, got.Progress, got.LockedAt)
	}
	var res map[string]any
	if err := json.Unmarshal(got.Result, &res); err != nil || res["campaign_id"] != float64(12) {
		t.Fatalf("result: %s (err=%v)", string(got.Result), err)
	}
	if len(n.statuses) != 2 || n.statuses[1] != types.JobStatusSucceeded {
		t.Fatalf("notifications: %v", n.statuses)
	}
}

func TestContext_FailRecordsError(t *testing.T) {
	db := testutil.DB(t)
	repo := repos.New(db, testutil.Logger(t)).JobRun
	job := seedJob(t, repo, `{}`)

	jc := NewContext(context.Background(), job, repo, nil)
	jc.Fail("generate", errors.New("boom"))

	got := reload(t, repo, job)
	if got.Status != types.JobStatusFailed || got.Stage != "generate" || got.Error != "boom" || got.LastErrorAt == nil {
		t.Fatalf("after Fail: %+v", got)
	}
}

func TestContext_CanceledRunIsNotOverwritten(t *testing.T) {
	db := testutil.DB(t)
	repo := repos.New(db, testutil.Logger(t)).JobRun
	job := seedJob(t, repo, `{}`)
	if err := repo.UpdateFields(dbctx.Context{Ctx: context.Background()}, job.ID, map[string]interface{}{
		"status": types.JobStatusCanceled,
	}); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	n := &recordingNotifier{}

	jc := NewContext(context.Background(), job, repo, n)
	jc.Succeed("done", nil)

	got := reload(t, repo, job)
	if got.Status != types.JobStatusCanceled {
		t.Fatalf("expected canceled to stick, got %q", got.Status)
	}
	if len(n.statuses) != 0 {
		t.Fatalf("expected no notifications, got %v", n.statuses)
	}
}

func TestContext_Payload(t *testing.T) {
	job := &types.JobRun{Payload: datatypes.JSON([]byte(`{
		"campaign_id": 7,
		"as_string": "9",
		"negative": -1,
		"fraction": 1.5,
		"trace_id": "trace-1",
		"request_id": "req-1"
	}`))}
	jc := NewContext(context.Background(), job, nil, nil)

	cases := []struct {
		key  string
		want uint
		ok   bool
	}{
		{"campaign_id", 7, true},
		{"as_string", 9, true},
		{"negative", 0, false},
		{"fraction", 0, false},
		{"missing", 0, false},
	}
	for _, tc := range cases {
		got, ok := jc.PayloadUint(tc.key)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("PayloadUint(%q) = %d,%v want %d,%v", tc.key, got, ok, tc.want, tc.ok)
		}
	}

	td := ctxutil.GetTraceData(jc.Ctx)
	if td == nil || td.TraceID != "trace-1" || td.RequestID != "req-1" {
		t.Fatalf("trace data not applied: %+v", td)
	}
}

func TestContext_MalformedPayloadIsEmpty(t *testing.T) {
	jc := NewContext(context.Background(), &types.JobRun{Payload: datatypes.JSON([]byte(`not json`))}, nil, nil)
	if len(jc.Payload()) != 0 {
		t.Fatalf("expected empty payload, got %v", jc.Payload())
	}
	if _, ok := jc.PayloadUint("campaign_id"); ok {
		t.Fatalf("expected no campaign_id")
	}
}
