// Package worker runs queued jobs: the asynq server in production and an
// inline runner over queue.Memory for single-process setups and tests.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"linkboard/internal/insights"
	"linkboard/internal/queue"
	"linkboard/internal/repo"
)

// Processor executes job payloads. It is shared by the asynq mux and the
// inline runner so both paths behave the same.
type Processor struct {
	Generator insights.Generator
	Logger    *slog.Logger
}

func (p Processor) log() *slog.Logger {
	if p.Logger == nil {
		return slog.Default()
	}
	return p.Logger
}

// Process dispatches a message by type. Errors wrapping asynq.SkipRetry are
// permanent.
func (p Processor) Process(ctx context.Context, msg queue.Message) error {
	switch msg.Type {
	case queue.TypeGeneratePlan:
		return p.generatePlan(ctx, msg.Payload)
	}
	return fmt.Errorf("unknown task type %q: %w", msg.Type, asynq.SkipRetry)
}

func (p Processor) handleGeneratePlan(ctx context.Context, task *asynq.Task) error {
	return p.generatePlan(ctx, task.Payload())
}

func (p Processor) generatePlan(ctx context.Context, payload []byte) error {
	req, err := queue.DecodeGeneratePlan(payload)
	if err != nil {
		return fmt.Errorf("invalid payload: %v: %w", err, asynq.SkipRetry)
	}
	p.log().Info("Processing plan:generate task",
		"domain_id", req.DomainID,
		"user_id", req.UserID,
		"period_days", req.PeriodDays,
	)
	plan, err := p.Generator.Generate(ctx, req.DomainID, req.UserID, req.PeriodDays)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		p.log().Error("Domain not found", "domain_id", req.DomainID)
		return fmt.Errorf("domain %s not found: %w", req.DomainID, asynq.SkipRetry)
	case errors.Is(err, insights.ErrInvalidContent):
		p.log().Error("Generated content rejected", "domain_id", req.DomainID, "error", err.Error())
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	case err != nil:
		return fmt.Errorf("generate plan: %w", err)
	}
	p.log().Info("Plan generation completed", "domain_id", req.DomainID, "plan_id", plan.ID)
	return nil
}

// IsPermanent reports whether a job error must not be retried.
func IsPermanent(err error) bool {
	return errors.Is(err, asynq.SkipRetry)
}

type Options struct {
	RedisURL    string
	Concurrency int
	// Queue is the low-priority queue plan generation runs on.
	Queue string
}

// Run starts the asynq server and blocks until a shutdown signal.
func Run(opts Options, proc Processor) error {
	srv, mux, err := newServer(opts, proc)
	if err != nil {
		return err
	}
	return srv.Run(mux)
}

// Start runs the asynq server in the background and returns a stop function.
func Start(opts Options, proc Processor) (stop func(), err error) {
	srv, mux, err := newServer(opts, proc)
	if err != nil {
		return nil, err
	}
	if err := srv.Start(mux); err != nil {
		return nil, fmt.Errorf("failed to start worker: %w", err)
	}
	return srv.Shutdown, nil
}

func newServer(opts Options, proc Processor) (*asynq.Server, *asynq.ServeMux, error) {
	redisOpt, err := asynq.ParseRedisURI(opts.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 5
	}
	if opts.Queue == "" {
		opts.Queue = "low"
	}
	logger := proc.log()
	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency:     opts.Concurrency,
		Queues:          map[string]int{"default": 3, opts.Queue: 1},
		ShutdownTimeout: 30 * time.Second,
		ErrorHandler:    asynq.ErrorHandlerFunc(makeErrorHandler(logger)),
		Logger:          asynqLogger{logger: logger},
	})
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TypeGeneratePlan, proc.handleGeneratePlan)
	logger.Info("Worker starting", "concurrency", opts.Concurrency, "queue", opts.Queue)
	return srv, mux, nil
}

func makeErrorHandler(logger *slog.Logger) func(context.Context, *asynq.Task, error) {
	return func(ctx context.Context, task *asynq.Task, err error) {
		retried, _ := asynq.GetRetryCount(ctx)
		maxRetry, _ := asynq.GetMaxRetry(ctx)
		logger.Error("Task execution failed",
			"task_type", task.Type(),
			"error", err.Error(),
			"retry_count", retried,
			"max_retry", maxRetry,
		)
		if retried >= maxRetry || IsPermanent(err) {
			logger.Error("Task moved to archive",
				"task_type", task.Type(),
				"payload", string(task.Payload()),
			)
		}
	}
}
