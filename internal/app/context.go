package app

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"linkboard/internal/config"
	"linkboard/internal/db"
	"linkboard/internal/engine"
	"linkboard/internal/insights"
	"linkboard/internal/migrate"
	"linkboard/internal/queue"
	"linkboard/internal/worker"
)

// Runtime is an opened workspace: a migrated database plus its config.
type Runtime struct {
	Workspace string
	DB        *sql.DB
	Config    *config.Config
}

// Open prepares the workspace directory, opens and migrates the database and
// loads linkboard.yml, falling back to defaults when it is absent.
func Open(workspace string) (*Runtime, error) {
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		return nil, err
	}
	cfg, err := config.Load(workspace)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, err
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Runtime{Workspace: workspace, DB: conn, Config: cfg}, nil
}

func (rt *Runtime) Close() error {
	return rt.DB.Close()
}

// Queue picks the work queue: asynq when a Redis URL is set, otherwise an
// in-process queue that must be drained by worker.Inline.
func (rt *Runtime) Queue(redisURL string) (queue.Enqueuer, *queue.Memory, func() error, error) {
	if strings.TrimSpace(redisURL) == "" {
		mem := queue.NewMemory()
		return mem, mem, func() error { return nil }, nil
	}
	q, err := queue.NewAsynq(redisURL)
	if err != nil {
		return nil, nil, nil, err
	}
	return q, nil, q.Close, nil
}

func (rt *Runtime) Engine(q queue.Enqueuer) engine.Engine {
	return engine.New(rt.DB, rt.Config, q)
}

// Processor builds the plan generation job handler from the configured
// insights source.
func (rt *Runtime) Processor(logger *slog.Logger) (worker.Processor, error) {
	source, err := insights.NewSource(rt.Config.Insights)
	if err != nil {
		return worker.Processor{}, err
	}
	return worker.Processor{
		Generator: insights.NewGenerator(rt.DB, source, logger),
		Logger:    logger,
	}, nil
}
