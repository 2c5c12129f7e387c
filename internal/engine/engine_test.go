package engine_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkboard/internal/config"
	"linkboard/internal/db"
	"linkboard/internal/domain"
	"linkboard/internal/engine"
	"linkboard/internal/engine/auth"
	"linkboard/internal/migrate"
	"linkboard/internal/queue"
	"linkboard/internal/repo"
)

var fixedNow = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

type testEnv struct {
	Engine engine.Engine
	Queue  *queue.Memory
	Ctx    context.Context
	Domain domain.Domain
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))
	q := queue.NewMemory()
	eng := engine.New(conn, config.Default(), q)
	eng.Now = func() time.Time { return fixedNow }
	ctx := context.Background()
	d, err := eng.CreateDomain(ctx, "alice", "https://www.Alice.example/blog", "Alice")
	require.NoError(t, err)
	return testEnv{Engine: eng, Queue: q, Ctx: ctx, Domain: d}
}

func intPtr(v int) *int { return &v }

func threeItems() domain.PlanContent {
	return domain.PlanContent{
		Version: 1,
		Items: []domain.PlanItem{
			{Key: "fix-broken-backlinks", Title: "Reclaim broken backlinks", Priority: "p1", ImpactScore: intPtr(90), Effort: "medium", PlannerGroup: "today"},
			{Key: "anchor-text-diversity", Title: "Diversify anchor text", Priority: "p2", ImpactScore: intPtr(60), Effort: "low", PlannerGroup: "week"},
			{Title: "Refresh  Pillar Pages", Priority: "p3", ImpactScore: intPtr(40), Effort: "high", PlannerGroup: "month", DueInDays: intPtr(500)},
		},
	}
}

func insertDraft(t *testing.T, env testEnv, domainID string, period int, content domain.PlanContent) domain.Plan {
	t.Helper()
	raw, err := json.Marshal(content)
	require.NoError(t, err)
	p := domain.Plan{
		ID:          uuid.New().String(),
		DomainID:    domainID,
		RequestedBy: "alice",
		PeriodDays:  period,
		ContentJSON: string(raw),
		Status:      domain.PlanDraft,
		CreatedAt:   env.Engine.Now().UTC().Format(time.RFC3339),
	}
	require.NoError(t, env.Engine.Repo.InsertPlan(env.Ctx, nil, p))
	return p
}

func requireForbidden(t *testing.T, err error) {
	t.Helper()
	var forbidden auth.ForbiddenError
	require.Error(t, err)
	require.True(t, errors.As(err, &forbidden), "expected forbidden, got %v", err)
}

func requireValidation(t *testing.T, err error, field string) {
	t.Helper()
	var verr *engine.ValidationError
	require.Error(t, err)
	require.True(t, errors.As(err, &verr), "expected validation error, got %v", err)
	assert.Contains(t, verr.Fields, field)
}

func TestCreateDomainNormalizesHost(t *testing.T) {
	env := newTestEnv(t)
	assert.Equal(t, "alice.example", env.Domain.Host)
	assert.Equal(t, "alice", env.Domain.OwnerID)

	_, err := env.Engine.CreateDomain(env.Ctx, "alice", "alice.example", "again")
	require.ErrorIs(t, err, engine.ErrDuplicate)

	_, err = env.Engine.CreateDomain(env.Ctx, "alice", "localhost", "")
	requireValidation(t, err, "host")

	// Another owner may register the same host.
	_, err = env.Engine.CreateDomain(env.Ctx, "bob", "alice.example", "")
	require.NoError(t, err)
}

func TestCreateManualTaskDerivesImpact(t *testing.T) {
	env := newTestEnv(t)
	for priority, impact := range map[string]int{"p1": 75, "p2": 50, "p3": 25} {
		task, err := env.Engine.CreateManualTask(env.Ctx, engine.ManualTaskInput{
			DomainID: env.Domain.ID,
			UserID:   "alice",
			Title:    "  Write outreach email  ",
			Priority: priority,
			DueAt:    "2024-03-15",
		})
		require.NoError(t, err)
		assert.Equal(t, impact, task.ImpactScore, priority)
		assert.Equal(t, "Write outreach email", task.Title)
		assert.Equal(t, domain.EffortMedium, task.Effort)
		assert.Equal(t, domain.SourceInsights, task.Source)
		assert.Equal(t, domain.CreatedByUser, task.CreatedBy)
		assert.Equal(t, domain.TaskOpen, task.Status)
		assert.Nil(t, task.PlannerGroup)
		require.NotNil(t, task.DueAt)
		assert.Equal(t, "2024-03-15T00:00:00Z", *task.DueAt)

		stored, err := env.Engine.Repo.GetTask(env.Ctx, task.ID)
		require.NoError(t, err)
		assert.Equal(t, impact, stored.ImpactScore)
	}
}

func TestCreateManualTaskValidation(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.CreateManualTask(env.Ctx, engine.ManualTaskInput{DomainID: env.Domain.ID, UserID: "alice", Title: " ", Priority: "p9", DueAt: "soon"})
	var verr *engine.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "title")
	assert.Contains(t, verr.Fields, "priority")
	assert.Contains(t, verr.Fields, "due_at")

	tasks, err := env.Engine.ListTasks(env.Ctx, env.Domain.ID, "alice", "")
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestUpdateTaskStatusIsFreeForm(t *testing.T) {
	env := newTestEnv(t)
	task, err := env.Engine.CreateManualTask(env.Ctx, engine.ManualTaskInput{DomainID: env.Domain.ID, UserID: "alice", Title: "Audit", Priority: "p2"})
	require.NoError(t, err)

	for _, status := range []string{"done", "open", "dismissed", "doing", "open"} {
		task, err = env.Engine.UpdateTaskStatus(env.Ctx, env.Domain.ID, task.ID, "alice", status)
		require.NoError(t, err)
		assert.Equal(t, domain.TaskStatus(status), task.Status)
	}

	_, err = env.Engine.UpdateTaskStatus(env.Ctx, env.Domain.ID, task.ID, "alice", "archived")
	requireValidation(t, err, "status")

	stored, err := env.Engine.Repo.GetTask(env.Ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskOpen, stored.Status)

	events, err := env.Engine.Repo.LatestEvents(env.Ctx, 10, env.Domain.ID, "task.status.updated")
	require.NoError(t, err)
	assert.Len(t, events, 5)
}

func TestUpdateTaskStatusRejectsTaskOfOtherDomain(t *testing.T) {
	env := newTestEnv(t)
	other, err := env.Engine.CreateDomain(env.Ctx, "alice", "second.example", "")
	require.NoError(t, err)
	task, err := env.Engine.CreateManualTask(env.Ctx, engine.ManualTaskInput{DomainID: other.ID, UserID: "alice", Title: "Elsewhere", Priority: "p1"})
	require.NoError(t, err)

	_, err = env.Engine.UpdateTaskStatus(env.Ctx, env.Domain.ID, task.ID, "alice", "done")
	requireForbidden(t, err)

	_, err = env.Engine.UpdateTaskStatus(env.Ctx, env.Domain.ID, "missing", "alice", "done")
	require.ErrorIs(t, err, repo.ErrNotFound)
}

func TestBoardBucketsActivePlannedTasks(t *testing.T) {
	env := newTestEnv(t)
	insertDraft(t, env, env.Domain.ID, 28, domain.PlanContent{Version: 1, Items: []domain.PlanItem{
		{Key: "a", Title: "Low today", Priority: "p3", ImpactScore: intPtr(10), Effort: "low", PlannerGroup: "today"},
		{Key: "b", Title: "High today", Priority: "p1", ImpactScore: intPtr(95), Effort: "low", PlannerGroup: "today"},
		{Key: "c", Title: "Week", Priority: "p2", ImpactScore: intPtr(50), Effort: "low", PlannerGroup: "week"},
		{Key: "d", Title: "Done month", Priority: "p2", ImpactScore: intPtr(70), Effort: "low", PlannerGroup: "month"},
		{Key: "e", Title: "Month", Priority: "p2", ImpactScore: intPtr(30), Effort: "low", PlannerGroup: "month"},
	}})
	_, err := env.Engine.ApplyLatestDraft(env.Ctx, env.Domain.ID, "alice")
	require.NoError(t, err)
	manual, err := env.Engine.CreateManualTask(env.Ctx, engine.ManualTaskInput{DomainID: env.Domain.ID, UserID: "alice", Title: "Unscheduled", Priority: "p1"})
	require.NoError(t, err)

	tasks, err := env.Engine.ListTasks(env.Ctx, env.Domain.ID, "alice", "open")
	require.NoError(t, err)
	for _, task := range tasks {
		if task.Title == "Done month" {
			_, err := env.Engine.UpdateTaskStatus(env.Ctx, env.Domain.ID, task.ID, "alice", "done")
			require.NoError(t, err)
		}
	}

	board, err := env.Engine.Board(env.Ctx, env.Domain.ID, "alice")
	require.NoError(t, err)
	assert.Nil(t, board.Plan, "applied plan is no longer the latest draft")
	titles := func(ts []domain.Task) []string {
		out := []string{}
		for _, task := range ts {
			out = append(out, task.Title)
		}
		return out
	}
	assert.Equal(t, []string{"High today", "Low today"}, titles(board.Today))
	assert.Equal(t, []string{"Week"}, titles(board.Week))
	assert.Equal(t, []string{"Month"}, titles(board.Month))
	for _, g := range domain.PlannerGroups {
		for _, task := range board.Bucket(g) {
			assert.NotEqual(t, manual.ID, task.ID)
			assert.True(t, task.OnBoard())
		}
	}
}

func TestBoardOnEmptyDomain(t *testing.T) {
	env := newTestEnv(t)
	board, err := env.Engine.Board(env.Ctx, env.Domain.ID, "alice")
	require.NoError(t, err)
	assert.Nil(t, board.Plan)
	assert.NotNil(t, board.Today)
	assert.NotNil(t, board.Week)
	assert.NotNil(t, board.Month)

	draft := insertDraft(t, env, env.Domain.ID, 28, threeItems())
	board, err = env.Engine.Board(env.Ctx, env.Domain.ID, "alice")
	require.NoError(t, err)
	require.NotNil(t, board.Plan)
	assert.Equal(t, draft.ID, board.Plan.ID)
}

func TestApplyIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	insertDraft(t, env, env.Domain.ID, 28, threeItems())
	first, err := env.Engine.ApplyLatestDraft(env.Ctx, env.Domain.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, 3, first.Created)
	assert.Equal(t, 0, first.Updated)

	insertDraft(t, env, env.Domain.ID, 28, threeItems())
	second, err := env.Engine.ApplyLatestDraft(env.Ctx, env.Domain.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, 0, second.Created)
	assert.Equal(t, 3, second.Updated)
	assert.Equal(t, "Plan applied: 0 tasks created, 3 tasks updated.", second.Message)

	tasks, err := env.Engine.ListTasks(env.Ctx, env.Domain.ID, "alice", "")
	require.NoError(t, err)
	assert.Len(t, tasks, 3)
	for _, task := range tasks {
		assert.Equal(t, domain.CreatedBySystem, task.CreatedBy)
		require.NotNil(t, task.PlanID)
		assert.Equal(t, second.Plan.ID, *task.PlanID)
	}
}

func TestApplyRefreshesMutableFields(t *testing.T) {
	env := newTestEnv(t)
	insertDraft(t, env, env.Domain.ID, 28, threeItems())
	_, err := env.Engine.ApplyLatestDraft(env.Ctx, env.Domain.ID, "alice")
	require.NoError(t, err)

	changed := threeItems()
	changed.Items[1].ImpactScore = intPtr(99)
	changed.Items[1].PlannerGroup = "today"
	changed.Items[2].Title = "refresh pillar pages"
	insertDraft(t, env, env.Domain.ID, 14, changed)
	res, err := env.Engine.ApplyLatestDraft(env.Ctx, env.Domain.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, 0, res.Created)
	assert.Equal(t, 3, res.Updated)

	board, err := env.Engine.Board(env.Ctx, env.Domain.ID, "alice")
	require.NoError(t, err)
	require.Len(t, board.Today, 2)
	assert.Equal(t, "Diversify anchor text", board.Today[0].Title)
	assert.Equal(t, 99, board.Today[0].ImpactScore)
	require.Len(t, board.Month, 1)
	// Due offsets are clamped to the plan period.
	assert.Equal(t, fixedNow.AddDate(0, 0, 14).Format(time.RFC3339), *board.Month[0].DueAt)
}

func TestApplySkipsClosedTasksWhenMatching(t *testing.T) {
	env := newTestEnv(t)
	insertDraft(t, env, env.Domain.ID, 28, threeItems())
	_, err := env.Engine.ApplyLatestDraft(env.Ctx, env.Domain.ID, "alice")
	require.NoError(t, err)
	board, err := env.Engine.Board(env.Ctx, env.Domain.ID, "alice")
	require.NoError(t, err)
	_, err = env.Engine.UpdateTaskStatus(env.Ctx, env.Domain.ID, board.Today[0].ID, "alice", "done")
	require.NoError(t, err)

	insertDraft(t, env, env.Domain.ID, 28, threeItems())
	res, err := env.Engine.ApplyLatestDraft(env.Ctx, env.Domain.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 2, res.Updated)
}

func TestApplyMalformedContentWritesNothing(t *testing.T) {
	env := newTestEnv(t)
	content := threeItems()
	content.Items = append(content.Items,
		domain.PlanItem{Priority: "p1", ImpactScore: intPtr(10), Effort: "low", PlannerGroup: "week"},
		domain.PlanItem{Key: "fix-broken-backlinks", Title: "Dup", Priority: "p1", ImpactScore: intPtr(10), Effort: "low", PlannerGroup: "week"},
	)
	draft := insertDraft(t, env, env.Domain.ID, 28, content)

	_, err := env.Engine.ApplyLatestDraft(env.Ctx, env.Domain.ID, "alice")
	requireValidation(t, err, "items[3].title")
	requireValidation(t, err, "items[4].key")

	tasks, err := env.Engine.ListTasks(env.Ctx, env.Domain.ID, "alice", "")
	require.NoError(t, err)
	assert.Empty(t, tasks)
	stored, err := env.Engine.Repo.GetPlan(env.Ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PlanDraft, stored.Status)
	assert.Nil(t, stored.AppliedAt)
}

func TestApplyWithoutDraftIsNotFound(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.ApplyLatestDraft(env.Ctx, env.Domain.ID, "alice")
	require.ErrorIs(t, err, engine.ErrNoDraftPlan)
	require.ErrorIs(t, err, repo.ErrNotFound)
}

func TestConcurrentApplyHasOneWinner(t *testing.T) {
	env := newTestEnv(t)
	insertDraft(t, env, env.Domain.ID, 28, threeItems())

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.Engine.ApplyLatestDraft(env.Ctx, env.Domain.ID, "alice")
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		require.ErrorIs(t, err, engine.ErrNoDraftPlan)
	}
	assert.Equal(t, 1, wins)
	tasks, err := env.Engine.ListTasks(env.Ctx, env.Domain.ID, "alice", "")
	require.NoError(t, err)
	assert.Len(t, tasks, 3)
}

func TestGenerateApplyScenario(t *testing.T) {
	env := newTestEnv(t)
	ack, err := env.Engine.RequestPlan(env.Ctx, env.Domain.ID, "alice", 14)
	require.NoError(t, err)
	assert.Equal(t, "low", ack.Queue)
	assert.Equal(t, 14, ack.PeriodDays)

	plans, err := env.Engine.ListPlans(env.Ctx, env.Domain.ID, "alice", 0)
	require.NoError(t, err)
	assert.Empty(t, plans, "generation request writes nothing synchronously")

	msgs := env.Queue.Drain()
	require.Len(t, msgs, 1)
	assert.Equal(t, queue.TypeGeneratePlan, msgs[0].Type)
	payload, err := queue.DecodeGeneratePlan(msgs[0].Payload)
	require.NoError(t, err)
	assert.Equal(t, queue.GeneratePlanPayload{DomainID: env.Domain.ID, UserID: "alice", PeriodDays: 14}, payload)

	// Stand in for the worker.
	draft := insertDraft(t, env, payload.DomainID, payload.PeriodDays, threeItems())
	res, err := env.Engine.ApplyLatestDraft(env.Ctx, env.Domain.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, 3, res.Created)
	assert.Equal(t, 0, res.Updated)
	assert.Equal(t, "Plan applied: 3 tasks created, 0 tasks updated.", res.Message)

	stored, err := env.Engine.Repo.GetPlan(env.Ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PlanApplied, stored.Status)
	assert.Equal(t, 14, stored.PeriodDays)
	require.NotNil(t, stored.AppliedAt)

	_, err = env.Engine.ApplyLatestDraft(env.Ctx, env.Domain.ID, "alice")
	require.ErrorIs(t, err, engine.ErrNoDraftPlan)
}

func TestRequestPlanValidatesPeriod(t *testing.T) {
	env := newTestEnv(t)
	ack, err := env.Engine.RequestPlan(env.Ctx, env.Domain.ID, "alice", 0)
	require.NoError(t, err)
	assert.Equal(t, 28, ack.PeriodDays)

	_, err = env.Engine.RequestPlan(env.Ctx, env.Domain.ID, "alice", 91)
	requireValidation(t, err, "period_days")
	_, err = env.Engine.RequestPlan(env.Ctx, env.Domain.ID, "alice", -3)
	requireValidation(t, err, "period_days")
	assert.Equal(t, 1, env.Queue.Len())

	env.Queue.Err = errors.New("redis down")
	_, err = env.Engine.RequestPlan(env.Ctx, env.Domain.ID, "alice", 7)
	require.Error(t, err)
}

func TestArchivePlan(t *testing.T) {
	env := newTestEnv(t)
	draft := insertDraft(t, env, env.Domain.ID, 28, threeItems())

	archived, err := env.Engine.ArchivePlan(env.Ctx, env.Domain.ID, draft.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.PlanArchived, archived.Status)
	require.NotNil(t, archived.ArchivedAt)

	again, err := env.Engine.ArchivePlan(env.Ctx, env.Domain.ID, draft.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, archived, again)

	_, err = env.Engine.ApplyLatestDraft(env.Ctx, env.Domain.ID, "alice")
	require.ErrorIs(t, err, engine.ErrNoDraftPlan)

	events, err := env.Engine.Repo.LatestEvents(env.Ctx, 10, env.Domain.ID, "plan.archived")
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestArchiveAppliedPlanAndForeignPlan(t *testing.T) {
	env := newTestEnv(t)
	insertDraft(t, env, env.Domain.ID, 28, threeItems())
	res, err := env.Engine.ApplyLatestDraft(env.Ctx, env.Domain.ID, "alice")
	require.NoError(t, err)
	archived, err := env.Engine.ArchivePlan(env.Ctx, env.Domain.ID, res.Plan.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.PlanArchived, archived.Status)
	assert.NotNil(t, archived.AppliedAt)

	other, err := env.Engine.CreateDomain(env.Ctx, "alice", "other.example", "")
	require.NoError(t, err)
	foreign := insertDraft(t, env, other.ID, 28, threeItems())
	_, err = env.Engine.ArchivePlan(env.Ctx, env.Domain.ID, foreign.ID, "alice")
	requireForbidden(t, err)
	stored, err := env.Engine.Repo.GetPlan(env.Ctx, foreign.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PlanDraft, stored.Status)
}

func TestOwnershipIsolation(t *testing.T) {
	env := newTestEnv(t)
	bobDomain, err := env.Engine.CreateDomain(env.Ctx, "bob", "bob.example", "")
	require.NoError(t, err)
	draft := insertDraft(t, env, env.Domain.ID, 28, threeItems())
	task, err := env.Engine.CreateManualTask(env.Ctx, engine.ManualTaskInput{DomainID: env.Domain.ID, UserID: "alice", Title: "Mine", Priority: "p1"})
	require.NoError(t, err)

	a := env.Domain.ID
	_, err = env.Engine.Board(env.Ctx, a, "bob")
	requireForbidden(t, err)
	_, err = env.Engine.RequestPlan(env.Ctx, a, "bob", 14)
	requireForbidden(t, err)
	_, err = env.Engine.ApplyLatestDraft(env.Ctx, a, "bob")
	requireForbidden(t, err)
	_, err = env.Engine.ArchivePlan(env.Ctx, a, draft.ID, "bob")
	requireForbidden(t, err)
	_, err = env.Engine.UpdateTaskStatus(env.Ctx, a, task.ID, "bob", "done")
	requireForbidden(t, err)
	_, err = env.Engine.CreateManualTask(env.Ctx, engine.ManualTaskInput{DomainID: a, UserID: "bob", Title: "Intrude", Priority: "p1"})
	requireForbidden(t, err)
	_, err = env.Engine.ListTasks(env.Ctx, a, "bob", "")
	requireForbidden(t, err)
	_, err = env.Engine.ListPlans(env.Ctx, a, "bob", 0)
	requireForbidden(t, err)
	_, err = env.Engine.GrantMember(env.Ctx, a, "bob", "bob", "analyst")
	requireForbidden(t, err)

	// Validation never runs before the capability check.
	_, err = env.Engine.UpdateTaskStatus(env.Ctx, a, task.ID, "bob", "bogus")
	requireForbidden(t, err)

	// Alice's plan reached through Bob's own domain is still forbidden.
	_, err = env.Engine.ArchivePlan(env.Ctx, bobDomain.ID, draft.ID, "bob")
	requireForbidden(t, err)

	assert.Equal(t, 0, env.Queue.Len())
	stored, err := env.Engine.Repo.GetPlan(env.Ctx, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PlanDraft, stored.Status)
}

func TestMemberRolesGrantCapabilities(t *testing.T) {
	env := newTestEnv(t)
	insertDraft(t, env, env.Domain.ID, 28, threeItems())
	_, err := env.Engine.GrantMember(env.Ctx, env.Domain.ID, "alice", "carol", "viewer")
	require.NoError(t, err)

	_, err = env.Engine.Board(env.Ctx, env.Domain.ID, "carol")
	require.NoError(t, err)
	_, err = env.Engine.ApplyLatestDraft(env.Ctx, env.Domain.ID, "carol")
	requireForbidden(t, err)
	// Task mutations stay owner-only whatever the role.
	_, err = env.Engine.CreateManualTask(env.Ctx, engine.ManualTaskInput{DomainID: env.Domain.ID, UserID: "carol", Title: "x", Priority: "p1"})
	requireForbidden(t, err)

	_, err = env.Engine.GrantMember(env.Ctx, env.Domain.ID, "alice", "carol", "analyst")
	require.NoError(t, err)
	res, err := env.Engine.ApplyLatestDraft(env.Ctx, env.Domain.ID, "carol")
	require.NoError(t, err)
	assert.Equal(t, 3, res.Created)

	domains, err := env.Engine.ListDomains(env.Ctx, "carol")
	require.NoError(t, err)
	require.Len(t, domains, 1)
	assert.Equal(t, env.Domain.ID, domains[0].ID)

	require.NoError(t, env.Engine.RevokeMember(env.Ctx, env.Domain.ID, "alice", "carol"))
	_, err = env.Engine.Board(env.Ctx, env.Domain.ID, "carol")
	requireForbidden(t, err)

	_, err = env.Engine.GrantMember(env.Ctx, env.Domain.ID, "alice", "dave", "admin")
	requireValidation(t, err, "role")
}

func TestParsePlanContentRejectsGarbage(t *testing.T) {
	_, err := engine.ParsePlanContent(`{"items": [`)
	requireValidation(t, err, "content")
	c, err := engine.ParsePlanContent(`{"version":1,"items":[]}`)
	require.NoError(t, err)
	assert.Empty(t, c.Items)
}

func TestMatchKey(t *testing.T) {
	assert.Equal(t, "fix", engine.MatchKey(domain.PlanItem{Key: " Fix ", Title: "ignored"}))
	assert.Equal(t, "refresh pillar pages", engine.MatchKey(domain.PlanItem{Title: " Refresh   Pillar\tPages "}))
}
