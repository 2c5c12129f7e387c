package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkboard/internal/config"
	"linkboard/internal/db"
	"linkboard/internal/engine"
	"linkboard/internal/events"
	"linkboard/internal/insights"
	"linkboard/internal/migrate"
	"linkboard/internal/queue"
	"linkboard/internal/worker"
	linkboardsdk "linkboard/sdk/go"
)

const testSecret = "test-secret"

type testServer struct {
	URL    string
	engine engine.Engine
	queue  *queue.Memory
	runner worker.Inline
}

func newTestServer(t *testing.T, cfg *config.Config) *testServer {
	t.Helper()
	workspace := t.TempDir()
	_, err := db.EnsureWorkspace(workspace)
	require.NoError(t, err)
	conn, err := db.Open(db.Config{Workspace: workspace})
	require.NoError(t, err)
	require.NoError(t, migrate.Migrate(conn))
	if cfg == nil {
		cfg = config.Default()
	}
	q := queue.NewMemory()
	e := engine.New(conn, cfg, q)
	logger := worker.NewLoggerTo(io.Discard, "error", "text")
	handler, err := New(Config{
		Engine:   e,
		BasePath: "/v1",
		Auth:     AuthConfig{JWTSecret: testSecret, EnableDevLogin: true},
		Logger:   logger,
	})
	require.NoError(t, err)
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	t.Cleanup(func() {
		srv.Shutdown(context.Background())
		conn.Close()
	})
	source := insights.RuleSource{Rules: cfg.Insights.Rules}
	return &testServer{
		URL:    "http://" + ln.Addr().String(),
		engine: e,
		queue:  q,
		runner: worker.Inline{
			Queue:     q,
			Processor: worker.Processor{Generator: insights.NewGenerator(conn, source, logger), Logger: logger},
		},
	}
}

func (s *testServer) clientFor(t *testing.T, userID string) *linkboardsdk.Client {
	t.Helper()
	c := linkboardsdk.New(s.URL)
	token, err := c.DevLogin(context.Background(), userID)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	c.BearerToken = token
	return c
}

func requireAPIError(t *testing.T, err error, status int, code string) *linkboardsdk.APIError {
	t.Helper()
	var apiErr *linkboardsdk.APIError
	require.True(t, errors.As(err, &apiErr), "expected api error, got %v", err)
	assert.Equal(t, status, apiErr.StatusCode, apiErr.Body)
	assert.Equal(t, code, apiErr.Code, apiErr.Body)
	return apiErr
}

func TestHealthIsPublic(t *testing.T) {
	srv := newTestServer(t, nil)
	res, err := http.Get(srv.URL + "/v1/health")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestUnauthenticatedRequestsRejected(t *testing.T) {
	srv := newTestServer(t, nil)
	ctx := context.Background()

	_, err := linkboardsdk.New(srv.URL).ListDomains(ctx)
	requireAPIError(t, err, http.StatusUnauthorized, "unauthorized")

	forged := linkboardsdk.New(srv.URL)
	forged.BearerToken = "not-a-jwt"
	_, err = forged.ListDomains(ctx)
	requireAPIError(t, err, http.StatusUnauthorized, "invalid_credentials")

	otherSecret, err := SignToken("other-secret", "alice", 0)
	require.NoError(t, err)
	forged.BearerToken = otherSecret
	_, err = forged.ListDomains(ctx)
	requireAPIError(t, err, http.StatusUnauthorized, "invalid_credentials")
}

func TestPlannerFlowOverHTTP(t *testing.T) {
	srv := newTestServer(t, nil)
	ctx := context.Background()
	alice := srv.clientFor(t, "alice")

	d, err := alice.CreateDomain(ctx, "https://alice.example", "Alice")
	require.NoError(t, err)
	assert.Equal(t, "alice.example", d.Host)

	board, err := alice.Board(ctx, d.ID)
	require.NoError(t, err)
	assert.Nil(t, board.Plan)
	assert.Empty(t, board.Tasks.Today)
	assert.NotNil(t, board.Tasks.Week)

	ack, err := alice.GeneratePlan(ctx, d.ID, 14)
	require.NoError(t, err)
	assert.Equal(t, "queued", ack.Status)
	assert.Equal(t, 14, ack.PeriodDays)
	assert.NotEmpty(t, ack.TaskID)
	assert.Equal(t, 1, srv.queue.Len())

	// Nothing is written until the job runs.
	board, err = alice.Board(ctx, d.ID)
	require.NoError(t, err)
	assert.Nil(t, board.Plan)

	assert.Equal(t, 0, srv.runner.RunOnce(ctx))
	board, err = alice.Board(ctx, d.ID)
	require.NoError(t, err)
	require.NotNil(t, board.Plan)
	assert.Equal(t, "draft", board.Plan.Status)
	require.NotNil(t, board.Plan.Content)
	assert.Len(t, board.Plan.Content.Items, 4)

	res, err := alice.ApplyPlan(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Created)
	assert.Equal(t, 0, res.Updated)
	assert.Equal(t, "Plan applied: 4 tasks created, 0 tasks updated.", res.Message)
	assert.Equal(t, "applied", res.Plan.Status)

	_, err = alice.ApplyPlan(ctx, d.ID)
	requireAPIError(t, err, http.StatusNotFound, "no_draft_plan")

	board, err = alice.Board(ctx, d.ID)
	require.NoError(t, err)
	assert.Len(t, board.Tasks.Today, 1)
	assert.Len(t, board.Tasks.Week, 2)
	assert.Len(t, board.Tasks.Month, 1)

	plans, err := alice.ListPlans(ctx, d.ID, 0)
	require.NoError(t, err)
	require.Len(t, plans, 1)
	archived, err := alice.ArchivePlan(ctx, d.ID, plans[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "archived", archived.Status)
	assert.NotNil(t, archived.ArchivedAt)

	evts, err := alice.Events(ctx, d.ID, events.PlanApplied, 10)
	require.NoError(t, err)
	require.Len(t, evts, 1)
	assert.EqualValues(t, 4, evts[0].Payload["created"])
}

func TestGenerateWithoutBodyUsesDefaultPeriod(t *testing.T) {
	srv := newTestServer(t, nil)
	ctx := context.Background()
	alice := srv.clientFor(t, "alice")
	d, err := alice.CreateDomain(ctx, "alice.example", "")
	require.NoError(t, err)

	ack, err := alice.GeneratePlan(ctx, d.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, config.Default().Planner.DefaultPeriodDays, ack.PeriodDays)
}

func TestStrangerIsForbiddenBeforeValidation(t *testing.T) {
	srv := newTestServer(t, nil)
	ctx := context.Background()
	alice := srv.clientFor(t, "alice")
	bob := srv.clientFor(t, "bob")
	d, err := alice.CreateDomain(ctx, "alice.example", "")
	require.NoError(t, err)

	_, err = bob.Board(ctx, d.ID)
	apiErr := requireAPIError(t, err, http.StatusForbidden, "forbidden")
	assert.Equal(t, "insights.view", apiErr.Details["capability"])

	_, err = bob.GeneratePlan(ctx, d.ID, 999)
	requireAPIError(t, err, http.StatusForbidden, "forbidden")

	_, err = bob.CreateTask(ctx, d.ID, linkboardsdk.ManualTask{})
	requireAPIError(t, err, http.StatusForbidden, "forbidden")

	_, err = bob.ApplyPlan(ctx, d.ID)
	requireAPIError(t, err, http.StatusForbidden, "forbidden")
	assert.Equal(t, 0, srv.queue.Len())
}

func TestMemberRoleGrantsPlannerAccess(t *testing.T) {
	srv := newTestServer(t, nil)
	ctx := context.Background()
	alice := srv.clientFor(t, "alice")
	carol := srv.clientFor(t, "carol")
	d, err := alice.CreateDomain(ctx, "alice.example", "")
	require.NoError(t, err)

	_, err = alice.GrantMember(ctx, d.ID, "carol", "viewer")
	require.NoError(t, err)
	_, err = carol.Board(ctx, d.ID)
	require.NoError(t, err)
	_, err = carol.GeneratePlan(ctx, d.ID, 7)
	requireAPIError(t, err, http.StatusForbidden, "forbidden")

	_, err = alice.GrantMember(ctx, d.ID, "carol", "bogus")
	requireAPIError(t, err, http.StatusUnprocessableEntity, "validation_failed")

	require.NoError(t, alice.RevokeMember(ctx, d.ID, "carol"))
	_, err = carol.Board(ctx, d.ID)
	requireAPIError(t, err, http.StatusForbidden, "forbidden")
}

func TestValidationErrorsUseEnvelope(t *testing.T) {
	srv := newTestServer(t, nil)
	ctx := context.Background()
	alice := srv.clientFor(t, "alice")
	d, err := alice.CreateDomain(ctx, "alice.example", "")
	require.NoError(t, err)

	_, err = alice.CreateTask(ctx, d.ID, linkboardsdk.ManualTask{Priority: "p9"})
	apiErr := requireAPIError(t, err, http.StatusUnprocessableEntity, "validation_failed")
	fields, ok := apiErr.Details["fields"].(map[string]any)
	require.True(t, ok, apiErr.Body)
	assert.Contains(t, fields, "title")
	assert.Contains(t, fields, "priority")

	_, err = alice.GeneratePlan(ctx, d.ID, 999)
	apiErr = requireAPIError(t, err, http.StatusUnprocessableEntity, "validation_failed")
	assert.Contains(t, apiErr.Body, "period_days")

	_, err = alice.CreateDomain(ctx, "alice.example", "")
	requireAPIError(t, err, http.StatusConflict, "conflict")

	_, err = alice.Board(ctx, "missing")
	requireAPIError(t, err, http.StatusNotFound, "not_found")
}

func TestManualTaskLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t, nil)
	ctx := context.Background()
	alice := srv.clientFor(t, "alice")
	d, err := alice.CreateDomain(ctx, "alice.example", "")
	require.NoError(t, err)

	task, err := alice.CreateTask(ctx, d.ID, linkboardsdk.ManualTask{Title: "Email the editor", Priority: "p1", DueAt: "2026-11-01"})
	require.NoError(t, err)
	assert.Equal(t, 75, task.ImpactScore)
	assert.Equal(t, "insights", task.Source)
	assert.Equal(t, "user", task.CreatedBy)
	assert.Nil(t, task.PlannerGroup)

	updated, err := alice.UpdateTaskStatus(ctx, d.ID, task.ID, "done")
	require.NoError(t, err)
	assert.Equal(t, "done", updated.Status)

	_, err = alice.UpdateTaskStatus(ctx, d.ID, task.ID, "finished")
	requireAPIError(t, err, http.StatusUnprocessableEntity, "validation_failed")

	done, err := alice.ListTasks(ctx, d.ID, "done")
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, task.ID, done[0].ID)
}

func TestAPIKeyAuthentication(t *testing.T) {
	srv := newTestServer(t, nil)
	ctx := context.Background()
	alice := srv.clientFor(t, "alice")
	_, err := alice.CreateDomain(ctx, "alice.example", "")
	require.NoError(t, err)

	key, err := alice.CreateAPIKey(ctx, "ci")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(key.Key, "lbk_"))

	byKey := linkboardsdk.New(srv.URL)
	byKey.APIKey = key.Key
	domains, err := byKey.ListDomains(ctx)
	require.NoError(t, err)
	require.Len(t, domains, 1)

	byKey.APIKey = "lbk_unknown"
	_, err = byKey.ListDomains(ctx)
	requireAPIError(t, err, http.StatusUnauthorized, "invalid_credentials")
}

func TestOpenAPIDocumentIsPublic(t *testing.T) {
	srv := newTestServer(t, nil)
	res, err := http.Get(srv.URL + "/v1/openapi.json")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	var doc map[string]any
	require.NoError(t, json.NewDecoder(res.Body).Decode(&doc))
	paths, ok := doc["paths"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, paths, "/v1/domains/{domain_id}/planner/apply")
}

func TestWebhookDispatcherFiltersEvents(t *testing.T) {
	var mu sync.Mutex
	var received []string
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body webhookEvent
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		received = append(received, r.Header.Get("X-Linkboard-Event")+"|"+body.Type+"|"+r.Header.Get("X-Linkboard-Secret"))
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer hook.Close()

	cfg := config.Default()
	cfg.Webhooks = []config.WebhookConfig{{URL: hook.URL, Events: []string{events.TaskStatusUpdated}, Secret: "s3"}}
	srv := newTestServer(t, cfg)
	ctx := context.Background()
	dispatcher := NewWebhookDispatcher(srv.engine, worker.NewLoggerTo(io.Discard, "error", "text"))
	require.NotNil(t, dispatcher)

	d, err := srv.engine.CreateDomain(ctx, "alice", "alice.example", "")
	require.NoError(t, err)
	// The first pass only positions the cursor.
	dispatcher.DispatchOnce(ctx)

	task, err := srv.engine.CreateManualTask(ctx, engine.ManualTaskInput{DomainID: d.ID, UserID: "alice", Title: "Fix redirects", Priority: "p2"})
	require.NoError(t, err)
	_, err = srv.engine.UpdateTaskStatus(ctx, d.ID, task.ID, "alice", "doing")
	require.NoError(t, err)
	dispatcher.DispatchOnce(ctx)
	dispatcher.DispatchOnce(ctx)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"task.status.updated|task.status.updated|s3"}, received)
}

func TestWebhookDispatcherDisabled(t *testing.T) {
	cfg := config.Default()
	off := false
	cfg.Webhooks = []config.WebhookConfig{{URL: "http://127.0.0.1:1/hook", Enabled: &off}}
	srv := newTestServer(t, cfg)
	assert.Nil(t, NewWebhookDispatcher(srv.engine, nil))
}

func TestEventFilter(t *testing.T) {
	all := newEventFilter(nil)
	assert.True(t, all.match("anything"))
	blank := newEventFilter([]string{" ", ""})
	assert.True(t, blank.match("plan.applied"))
	some := newEventFilter([]string{"plan.applied", " task.created "})
	assert.True(t, some.match("task.created"))
	assert.False(t, some.match("plan.archived"))
}
