package queue

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
)

// Asynq submits messages to Redis through an asynq client.
type Asynq struct {
	client *asynq.Client
}

func NewAsynq(redisURL string) (*Asynq, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &Asynq{client: asynq.NewClient(opt)}, nil
}

func (a *Asynq) Submit(ctx context.Context, msg Message) (Ack, error) {
	opts := []asynq.Option{asynq.MaxRetry(msg.MaxRetry)}
	if msg.Queue != "" {
		opts = append(opts, asynq.Queue(msg.Queue))
	}
	if msg.Timeout > 0 {
		opts = append(opts, asynq.Timeout(msg.Timeout))
	}
	if msg.Retention > 0 {
		opts = append(opts, asynq.Retention(msg.Retention))
	}
	info, err := a.client.EnqueueContext(ctx, asynq.NewTask(msg.Type, msg.Payload), opts...)
	if err != nil {
		return Ack{}, fmt.Errorf("enqueue %s: %w", msg.Type, err)
	}
	return Ack{ID: info.ID, Queue: info.Queue}, nil
}

// Close closes the client connection gracefully.
func (a *Asynq) Close() error {
	return a.client.Close()
}
