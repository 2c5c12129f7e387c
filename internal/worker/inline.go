package worker

import (
	"context"
	"time"

	"linkboard/internal/queue"
)

// Inline drains a queue.Memory on an interval and processes each message in
// process, retrying transient failures up to the message's MaxRetry.
type Inline struct {
	Queue     *queue.Memory
	Processor Processor
	Interval  time.Duration
	// Backoff between attempts of one message.
	Backoff time.Duration
}

// Run blocks until ctx is cancelled.
func (in Inline) Run(ctx context.Context) {
	interval := in.Interval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		in.RunOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce processes everything currently queued and returns how many
// messages ended in failure.
func (in Inline) RunOnce(ctx context.Context) int {
	failed := 0
	for _, msg := range in.Queue.Drain() {
		if err := in.process(ctx, msg); err != nil {
			failed++
		}
	}
	return failed
}

func (in Inline) process(ctx context.Context, msg queue.Message) error {
	logger := in.Processor.log()
	var err error
	for attempt := 0; attempt <= msg.MaxRetry; attempt++ {
		runCtx := ctx
		cancel := func() {}
		if msg.Timeout > 0 {
			runCtx, cancel = context.WithTimeout(ctx, msg.Timeout)
		}
		err = in.Processor.Process(runCtx, msg)
		cancel()
		if err == nil {
			return nil
		}
		logger.Error("Task execution failed",
			"task_type", msg.Type,
			"error", err.Error(),
			"retry_count", attempt,
			"max_retry", msg.MaxRetry,
		)
		if IsPermanent(err) || ctx.Err() != nil {
			return err
		}
		if in.Backoff > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(in.Backoff):
			}
		}
	}
	return err
}
