package worker

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkboard/internal/config"
	"linkboard/internal/db"
	"linkboard/internal/domain"
	"linkboard/internal/engine"
	"linkboard/internal/insights"
	"linkboard/internal/migrate"
	"linkboard/internal/queue"
)

type flakySource struct {
	failures int32
	calls    *atomic.Int32
	inner    insights.Source
}

func (f flakySource) Plan(ctx context.Context, req insights.Request) (domain.PlanContent, error) {
	if f.calls.Add(1) <= f.failures {
		return domain.PlanContent{}, errors.New("insights backend unavailable")
	}
	return f.inner.Plan(ctx, req)
}

type fixture struct {
	engine engine.Engine
	queue  *queue.Memory
	domain domain.Domain
	logs   *bytes.Buffer
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(conn))
	q := queue.NewMemory()
	eng := engine.New(conn, config.Default(), q)
	d, err := eng.CreateDomain(context.Background(), "alice", "alice.example", "")
	require.NoError(t, err)
	return fixture{engine: eng, queue: q, domain: d, logs: &bytes.Buffer{}}
}

func (f fixture) processor(src insights.Source) Processor {
	logger := NewLoggerTo(f.logs, "debug", "json")
	return Processor{Generator: insights.NewGenerator(f.engine.DB, src, logger), Logger: logger}
}

func rules() insights.Source {
	return insights.RuleSource{Rules: config.Default().Insights.Rules}
}

func TestGenerateThenApplyEndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.engine.RequestPlan(ctx, f.domain.ID, "alice", 14)
	require.NoError(t, err)

	runner := Inline{Queue: f.queue, Processor: f.processor(rules())}
	assert.Equal(t, 0, runner.RunOnce(ctx))

	board, err := f.engine.Board(ctx, f.domain.ID, "alice")
	require.NoError(t, err)
	require.NotNil(t, board.Plan)
	assert.Equal(t, 14, board.Plan.PeriodDays)
	assert.Equal(t, domain.PlanDraft, board.Plan.Status)

	res, err := f.engine.ApplyLatestDraft(ctx, f.domain.ID, "alice")
	require.NoError(t, err)
	// internal-linking needs a 28 day horizon.
	assert.Equal(t, 4, res.Created)
	assert.Equal(t, 0, res.Updated)
	require.NotNil(t, res.Plan.AppliedAt)

	_, err = f.engine.ApplyLatestDraft(ctx, f.domain.ID, "alice")
	require.ErrorIs(t, err, engine.ErrNoDraftPlan)
	assert.Contains(t, f.logs.String(), "Plan generation completed")
}

func TestProcessorPermanentFailures(t *testing.T) {
	f := newFixture(t)
	proc := f.processor(rules())
	ctx := context.Background()

	err := proc.Process(ctx, queue.Message{Type: queue.TypeGeneratePlan, Payload: []byte(`{"domain_id":""}`)})
	assert.True(t, IsPermanent(err))

	msg, err := queue.NewGeneratePlan(queue.GeneratePlanPayload{DomainID: "gone", UserID: "alice", PeriodDays: 7}, "low", 5)
	require.NoError(t, err)
	err = proc.Process(ctx, msg)
	assert.True(t, IsPermanent(err))

	err = proc.Process(ctx, queue.Message{Type: "plan:unknown"})
	assert.True(t, IsPermanent(err))
}

func TestInlineRetriesTransientFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	calls := &atomic.Int32{}
	runner := Inline{Queue: f.queue, Processor: f.processor(flakySource{failures: 2, calls: calls, inner: rules()})}

	msg, err := queue.NewGeneratePlan(queue.GeneratePlanPayload{DomainID: f.domain.ID, UserID: "alice", PeriodDays: 28}, "low", 5)
	require.NoError(t, err)
	_, err = f.queue.Submit(ctx, msg)
	require.NoError(t, err)

	assert.Equal(t, 0, runner.RunOnce(ctx))
	assert.Equal(t, int32(3), calls.Load())
	plans, err := f.engine.ListPlans(ctx, f.domain.ID, "alice", 0)
	require.NoError(t, err)
	assert.Len(t, plans, 1)
}

func TestInlineGivesUpAfterMaxRetry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	calls := &atomic.Int32{}
	runner := Inline{Queue: f.queue, Processor: f.processor(flakySource{failures: 100, calls: calls, inner: rules()})}

	msg, err := queue.NewGeneratePlan(queue.GeneratePlanPayload{DomainID: f.domain.ID, UserID: "alice", PeriodDays: 28}, "low", 2)
	require.NoError(t, err)
	_, err = f.queue.Submit(ctx, msg)
	require.NoError(t, err)

	assert.Equal(t, 1, runner.RunOnce(ctx))
	assert.Equal(t, int32(3), calls.Load())
	plans, err := f.engine.ListPlans(ctx, f.domain.ID, "alice", 0)
	require.NoError(t, err)
	assert.Empty(t, plans)
}

func TestInlineRunStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		Inline{Queue: f.queue, Processor: f.processor(rules()), Interval: 10 * time.Millisecond}.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("inline runner did not stop")
	}
}

func TestNewLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, "warn", "text")
	logger.Info("hidden")
	logger.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
	assert.NotNil(t, NewLogger("bogus", "json"))
}
