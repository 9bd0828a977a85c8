package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"gorm.io/gorm"

	"github.com/Crohnos/dnd-generator/internal/data/aggregates"
	"github.com/Crohnos/dnd-generator/internal/data/repos"
	"github.com/Crohnos/dnd-generator/internal/data/repos/testutil"
	types "github.com/Crohnos/dnd-generator/internal/domain"
	domainagg "github.com/Crohnos/dnd-generator/internal/domain/aggregates"
	"github.com/Crohnos/dnd-generator/internal/domain/generation"
	domainworld "github.com/Crohnos/dnd-generator/internal/domain/world"
	"github.com/Crohnos/dnd-generator/internal/generation/persist"
	"github.com/Crohnos/dnd-generator/internal/generation/prompts"
	"github.com/Crohnos/dnd-generator/internal/generation/schema"
	"github.com/Crohnos/dnd-generator/internal/generation/stages"
	"github.com/Crohnos/dnd-generator/internal/pkg/dbctx"
	"github.com/Crohnos/dnd-generator/internal/platform/anthropic"
)

// fakeGenerator answers every tool call with one named element per record
// category and no links.
type fakeGenerator struct {
	mu      sync.Mutex
	fail    map[string]error
	calls   []string
	prompts map[string]string
}

func newFakeGenerator() *fakeGenerator {
	return &fakeGenerator{fail: map[string]error{}, prompts: map[string]string{}}
}

func (f *fakeGenerator) Invoke(ctx context.Context, req anthropic.Request) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req.Tool.Name)
	f.prompts[req.Tool.Name] = req.Prompt
	if err := f.fail[req.Tool.Name]; err != nil {
		return nil, err
	}
	stage := strings.TrimPrefix(req.Tool.Name, "generate_")
	props, _ := req.Tool.InputSchema["properties"].(map[string]any)
	out := map[string]any{}
	for category := range props {
		if domainworld.IsLinkTable(category) {
			out[category] = []any{}
			continue
		}
		out[category] = []map[string]any{{
			"name":        stage + " " + category,
			"description": "generated " + category,
		}}
	}
	return json.Marshal(out)
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []types.CampaignProgress
}

func (n *fakeNotifier) Publish(ctx context.Context, p types.CampaignProgress) {
	n.mu.Lock()
	n.events = append(n.events, p)
	n.mu.Unlock()
}

func (n *fakeNotifier) last() types.CampaignProgress {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.events) == 0 {
		return types.CampaignProgress{}
	}
	return n.events[len(n.events)-1]
}

// catalogFor translates a name/description insert type for every category
// owned by reg, except those in skip.
func catalogFor(reg *stages.Registry, skip ...string) *schema.Catalog {
	skipped := map[string]bool{}
	for _, s := range skip {
		skipped[s] = true
	}
	seen := map[string]bool{}
	var in []schema.Type
	for _, d := range reg.Ordered() {
		for _, c := range d.Categories {
			if seen[c] || skipped[c] {
				continue
			}
			seen[c] = true
			in = append(in, schema.Type{
				Name: c + "_insert_input",
				Kind: "INPUT_OBJECT",
				Fields: []schema.Field{
					{Name: "name", Type: schema.NonNull(schema.Scalar("String"))},
					{Name: "description", Type: schema.Scalar("String")},
				},
			})
		}
	}
	cat, _ := schema.Translate(in)
	return cat
}

type harness struct {
	db       *gorm.DB
	repos    repos.Repos
	gen      *fakeGenerator
	notifier *fakeNotifier
	orch     *Orchestrator
}

func newHarness(t *testing.T, reg *stages.Registry, cat *schema.Catalog) *harness {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	r := repos.New(db, log)
	pc, err := prompts.Load(reg)
	if err != nil {
		t.Fatalf("prompts.Load: %v", err)
	}
	h := &harness{db: db, repos: r, gen: newFakeGenerator(), notifier: &fakeNotifier{}}
	h.orch, err = New(log, Deps{
		Registry:    reg,
		Tools:       schema.NewToolset(reg, cat, log),
		Prompts:     pc,
		Generator:   h.gen,
		Persister:   persist.New(aggregates.NewGormTxRunner(db), r.Campaign, r.StageStatus, r.World, log),
		Campaigns:   r.Campaign,
		StageStatus: r.StageStatus,
		World:       r.World,
		Notifier:    h.notifier,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return h
}

func (h *harness) campaign(t *testing.T, id uint) *types.Campaign {
	t.Helper()
	c, err := h.repos.Campaign.GetByID(dbctx.Context{Ctx: context.Background()}, id)
	if err != nil || c == nil {
		t.Fatalf("load campaign %d: %v", id, err)
	}
	return c
}

func TestPromptForCoversEveryStage(t *testing.T) {
	for _, id := range stages.All() {
		if _, err := promptFor(id); err != nil {
			t.Fatalf("promptFor(%s): %v", id, err)
		}
	}
	if _, err := promptFor(stages.ID(42)); generation.KindOf(err) != generation.KindUnknownStage {
		t.Fatalf("expected unknown stage, got %v", err)
	}
}

func TestRunGeneratesEveryStage(t *testing.T) {
	reg := stages.Default()
	h := newHarness(t, reg, catalogFor(reg))
	ctx := context.Background()
	c := testutil.SeedCampaign(t, ctx, h.db, "Stormwake")

	began, err := h.orch.Run(ctx, c.ID)
	if err != nil || !began {
		t.Fatalf("Run: began=%v err=%v", began, err)
	}
	if len(h.gen.calls) != reg.Len() {
		t.Fatalf("expected %d generative calls, got %v", reg.Len(), h.gen.calls)
	}
	for i, d := range reg.Ordered() {
		if h.gen.calls[i] != schema.ToolName(d.ID) {
			t.Fatalf("call %d = %s, want %s", i, h.gen.calls[i], schema.ToolName(d.ID))
		}
	}

	got := h.campaign(t, c.ID)
	if got.Status != types.CampaignStatusCompleted || got.PercentComplete != 100 || got.LastError != nil {
		t.Fatalf("unexpected final state: status=%s percent=%d err=%v", got.Status, got.PercentComplete, got.LastError)
	}
	if got.TotalStages != reg.Len() {
		t.Fatalf("total_stages=%d", got.TotalStages)
	}
	var meta map[string]json.RawMessage
	if err := json.Unmarshal(got.Metadata, &meta); err != nil || len(meta) != reg.Len() {
		t.Fatalf("metadata should hold every stage payload: %v %s", err, got.Metadata)
	}

	done, err := h.repos.StageStatus.CompletedStages(dbctx.Context{Ctx: ctx}, c.ID)
	if err != nil || len(done) != reg.Len() {
		t.Fatalf("completed stages = %v (%v)", done, err)
	}

	// Later stages see earlier rows as context.
	p := h.gen.prompts[schema.ToolName(stages.CharacterBuilding)]
	if !strings.Contains(p, "- phase_1a_core_world planes") {
		t.Fatalf("character building prompt lacks core world context:\n%s", p)
	}
	if !strings.Contains(p, "Aria (Elf Ranger level 3)") {
		t.Fatalf("character building prompt lacks party:\n%s", p)
	}
	if strings.Contains(h.gen.prompts[schema.ToolName(stages.CoreWorld)], "# Established world") {
		t.Fatalf("core world has no dependencies and should carry no context")
	}
	rel := h.gen.prompts[schema.ToolName(stages.Relationships)]
	for _, want := range []string{"- phase_2a_pc_entities entities", "- phase_3b_world_population entities", "- Aria"} {
		if !strings.Contains(rel, want) {
			t.Fatalf("relationships prompt lacks %q", want)
		}
	}

	if last := h.notifier.last(); last.Status != types.CampaignStatusCompleted || last.PercentComplete != 100 {
		t.Fatalf("last progress event %+v", last)
	}
}

func TestRunIsNoOpWhileGenerating(t *testing.T) {
	reg := stages.Default()
	h := newHarness(t, reg, catalogFor(reg))
	ctx := context.Background()
	c := testutil.SeedCampaign(t, ctx, h.db, "Busy")
	if err := h.db.Model(&types.Campaign{}).Where("id = ?", c.ID).
		Updates(map[string]interface{}{"status": types.CampaignStatusGenerating, "percent_complete": 40}).Error; err != nil {
		t.Fatalf("set generating: %v", err)
	}

	began, err := h.orch.Run(ctx, c.ID)
	if err != nil || began {
		t.Fatalf("expected no-op, began=%v err=%v", began, err)
	}
	if len(h.gen.calls) != 0 {
		t.Fatalf("generator called during no-op: %v", h.gen.calls)
	}
	got := h.campaign(t, c.ID)
	if got.Status != types.CampaignStatusGenerating || got.PercentComplete != 40 {
		t.Fatalf("no-op touched the campaign: status=%s percent=%d", got.Status, got.PercentComplete)
	}
}

func TestRunMissingCampaign(t *testing.T) {
	reg := stages.Default()
	h := newHarness(t, reg, catalogFor(reg))
	_, err := h.orch.Run(context.Background(), 9999)
	if !domainagg.IsCode(err, domainagg.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRunAbortsWhenStageHasNoSchema(t *testing.T) {
	reg := stages.Default()
	h := newHarness(t, reg, catalogFor(reg, "locations", "dungeons", "buildings"))
	ctx := context.Background()
	c := testutil.SeedCampaign(t, ctx, h.db, "Schemaless")

	_, err := h.orch.Run(ctx, c.ID)
	if generation.KindOf(err) != generation.KindSchemaTranslationGap {
		t.Fatalf("expected schema translation gap, got %v", err)
	}
	got := h.campaign(t, c.ID)
	if got.Status != types.CampaignStatusError || got.LastError == nil {
		t.Fatalf("expected error status, got %s", got.Status)
	}
	if !strings.HasPrefix(*got.LastError, "Failed in stage 5 (phase_2b_pc_locations): ") {
		t.Fatalf("last_error = %q", *got.LastError)
	}
	if got.PercentComplete != 4*100/reg.Len() {
		t.Fatalf("percent = %d", got.PercentComplete)
	}
	if len(h.gen.calls) != 4 {
		t.Fatalf("generator should not be called for the failing stage: %v", h.gen.calls)
	}
}

func TestRunKeepsCommittedStagesOnNonConformingOutputAndResumes(t *testing.T) {
	reg := stages.Default()
	h := newHarness(t, reg, catalogFor(reg))
	ctx := context.Background()
	c := testutil.SeedCampaign(t, ctx, h.db, "Halfway")

	failing := schema.ToolName(stages.QuestsEncounters)
	h.gen.fail[failing] = generation.NonConformingOutput("no tool_use block")

	_, err := h.orch.Run(ctx, c.ID)
	if generation.ReasonOf(err) != generation.ReasonNonConformingOutput {
		t.Fatalf("expected non-conforming output, got %v", err)
	}
	if !errors.Is(err, &generation.Error{Kind: generation.KindGenerationInterface, Stage: "phase_3a_quests_encounters"}) {
		t.Fatalf("error does not name the failing stage: %v", err)
	}
	got := h.campaign(t, c.ID)
	if got.Status != types.CampaignStatusError || got.LastError == nil ||
		!strings.Contains(*got.LastError, "Failed in stage 7 (phase_3a_quests_encounters)") {
		t.Fatalf("unexpected state: status=%s err=%v", got.Status, got.LastError)
	}
	if got.PercentComplete != 6*100/reg.Len() {
		t.Fatalf("percent = %d", got.PercentComplete)
	}
	var entities int64
	h.db.Model(&types.Entity{}).Where("campaign_id = ?", c.ID).Count(&entities)
	if entities == 0 {
		t.Fatalf("committed stages were rolled back")
	}
	statuses, _ := h.repos.StageStatus.ListByCampaign(dbctx.Context{Ctx: ctx}, c.ID)
	var sawError bool
	for _, s := range statuses {
		if s.Stage == "phase_3a_quests_encounters" && s.Status == "error" {
			sawError = true
		}
	}
	if !sawError {
		t.Fatalf("stage status error not recorded: %+v", statuses)
	}

	delete(h.gen.fail, failing)
	h.gen.calls = nil
	began, err := h.orch.Run(ctx, c.ID)
	if err != nil || !began {
		t.Fatalf("resume: began=%v err=%v", began, err)
	}
	want := []string{
		schema.ToolName(stages.QuestsEncounters),
		schema.ToolName(stages.WorldPopulation),
		schema.ToolName(stages.Relationships),
	}
	if strings.Join(h.gen.calls, ",") != strings.Join(want, ",") {
		t.Fatalf("resume called %v, want %v", h.gen.calls, want)
	}
	got = h.campaign(t, c.ID)
	if got.Status != types.CampaignStatusCompleted || got.PercentComplete != 100 || got.LastError != nil {
		t.Fatalf("resume final state: status=%s percent=%d", got.Status, got.PercentComplete)
	}
}

func TestRunValidationFailureMessage(t *testing.T) {
	// core world listed first but depending on a later stage.
	reg, err := stages.NewRegistry(
		stages.Descriptor{ID: stages.CoreWorld, Ordinal: 1, Categories: []string{"planes"}, Dependencies: []stages.ID{stages.CharacterBuilding}},
		stages.Descriptor{ID: stages.CharacterBuilding, Ordinal: 2, Categories: []string{"races"}},
	)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	h := newHarness(t, reg, catalogFor(reg))
	ctx := context.Background()
	c := testutil.SeedCampaign(t, ctx, h.db, "Inverted")

	_, err = h.orch.Run(ctx, c.ID)
	if generation.KindOf(err) != generation.KindMissingDependency {
		t.Fatalf("expected missing dependency, got %v", err)
	}
	got := h.campaign(t, c.ID)
	want := "phase_1a_core_world: stage phase_1a_core_world requires phase_1b_character_building to be completed first"
	if got.Status != types.CampaignStatusError || got.LastError == nil || *got.LastError != want {
		t.Fatalf("last_error = %v", got.LastError)
	}
	if len(h.gen.calls) != 0 {
		t.Fatalf("generator called: %v", h.gen.calls)
	}
}

func TestRecoverReleasesInterruptedRun(t *testing.T) {
	reg := stages.Default()
	h := newHarness(t, reg, catalogFor(reg))
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}
	c := testutil.SeedCampaign(t, ctx, h.db, "Crashed")

	first := reg.Ordered()[0].Name()
	second := reg.Ordered()[1].Name()
	if err := h.repos.StageStatus.Upsert(dbc, c.ID, first, "completed", ""); err != nil {
		t.Fatalf("seed stage: %v", err)
	}
	if err := h.repos.StageStatus.Upsert(dbc, c.ID, second, "generating", ""); err != nil {
		t.Fatalf("seed stage: %v", err)
	}
	if err := h.db.Model(&types.Campaign{}).Where("id = ?", c.ID).
		Updates(map[string]interface{}{"status": types.CampaignStatusGenerating}).Error; err != nil {
		t.Fatalf("set generating: %v", err)
	}

	released, err := h.orch.Recover(ctx, c.ID, "generation interrupted")
	if err != nil || !released {
		t.Fatalf("Recover: released=%v err=%v", released, err)
	}
	got := h.campaign(t, c.ID)
	if got.Status != types.CampaignStatusError || got.LastError == nil || *got.LastError != "generation interrupted" {
		t.Fatalf("unexpected state after recover: status=%s err=%v", got.Status, got.LastError)
	}
	rows, err := h.repos.StageStatus.ListByCampaign(dbc, c.ID)
	if err != nil {
		t.Fatalf("ListByCampaign: %v", err)
	}
	for _, r := range rows {
		if r.Stage == second && r.Status != "error" {
			t.Fatalf("in-flight stage should be error, got %s", r.Status)
		}
	}

	// The next run resumes after the committed stage.
	if began, err := h.orch.Run(ctx, c.ID); err != nil || !began {
		t.Fatalf("Run after recover: began=%v err=%v", began, err)
	}
	if len(h.gen.calls) != reg.Len()-1 {
		t.Fatalf("expected %d calls after resume, got %v", reg.Len()-1, h.gen.calls)
	}

	if released, err := h.orch.Recover(ctx, c.ID, "again"); err != nil || released {
		t.Fatalf("Recover on completed campaign: released=%v err=%v", released, err)
	}
}

// flakyCampaigns fails the first progress update after a stage commit.
type flakyCampaigns struct {
	repos.CampaignRepo
	failed bool
}

func (f *flakyCampaigns) SetPercent(dbc dbctx.Context, id uint, percent int) error {
	if !f.failed && percent > 0 {
		f.failed = true
		return errors.New("connection reset")
	}
	return f.CampaignRepo.SetPercent(dbc, id, percent)
}

func TestRunProgressFailureAfterCommitDoesNotRepeatStage(t *testing.T) {
	reg := stages.Default()
	h := newHarness(t, reg, catalogFor(reg))
	h.orch.Campaigns = &flakyCampaigns{CampaignRepo: h.repos.Campaign}
	ctx := context.Background()
	c := testutil.SeedCampaign(t, ctx, h.db, "Flaky")

	if _, err := h.orch.Run(ctx, c.ID); err == nil {
		t.Fatalf("expected the progress failure to end the run")
	}
	got := h.campaign(t, c.ID)
	if got.Status != types.CampaignStatusError || got.LastError == nil ||
		!strings.Contains(*got.LastError, "Failed in stage 1 (phase_1a_core_world): record progress") {
		t.Fatalf("unexpected state: status=%s err=%v", got.Status, got.LastError)
	}
	done, err := h.repos.StageStatus.CompletedStages(dbctx.Context{Ctx: ctx}, c.ID)
	if err != nil || len(done) != 1 || done[0] != "phase_1a_core_world" {
		t.Fatalf("committed stage not marked completed: %v (%v)", done, err)
	}

	h.gen.calls = nil
	if began, err := h.orch.Run(ctx, c.ID); err != nil || !began {
		t.Fatalf("resume: began=%v err=%v", began, err)
	}
	if len(h.gen.calls) != reg.Len()-1 || h.gen.calls[0] == schema.ToolName(stages.CoreWorld) {
		t.Fatalf("resume regenerated the committed stage: %v", h.gen.calls)
	}
	var planes int64
	h.db.Model(&types.Plane{}).Where("campaign_id = ?", c.ID).Count(&planes)
	if planes != 1 {
		t.Fatalf("planes rows = %d, want 1", planes)
	}
	if got := h.campaign(t, c.ID); got.Status != types.CampaignStatusCompleted {
		t.Fatalf("final status = %s", got.Status)
	}
}
