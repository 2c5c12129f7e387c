// Package queue is the boundary to the durable work queue. Callers submit a
// Message and get an Ack back; delivery and retries belong to the backend.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Task type constants
const (
	TypeGeneratePlan = "plan:generate"
)

type Message struct {
	Type      string
	Payload   []byte
	Queue     string
	MaxRetry  int
	Timeout   time.Duration
	Retention time.Duration
}

type Ack struct {
	ID    string
	Queue string
}

// Enqueuer submits messages for asynchronous processing.
type Enqueuer interface {
	Submit(ctx context.Context, msg Message) (Ack, error)
}

// GeneratePlanPayload is the body of a plan:generate message.
type GeneratePlanPayload struct {
	DomainID   string `json:"domain_id"`
	UserID     string `json:"user_id"`
	PeriodDays int    `json:"period_days"`
}

// NewGeneratePlan builds a plan generation message. The job gets a 5-minute
// timeout and is retained for 24 hours after completion.
func NewGeneratePlan(p GeneratePlanPayload, queueName string, maxRetry int) (Message, error) {
	if p.DomainID == "" || p.UserID == "" {
		return Message{}, errors.New("domain_id and user_id required")
	}
	if p.PeriodDays <= 0 {
		return Message{}, errors.New("period_days must be positive")
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return Message{}, err
	}
	return Message{
		Type:      TypeGeneratePlan,
		Payload:   payload,
		Queue:     queueName,
		MaxRetry:  maxRetry,
		Timeout:   5 * time.Minute,
		Retention: 24 * time.Hour,
	}, nil
}

// DecodeGeneratePlan parses a plan:generate payload.
func DecodeGeneratePlan(data []byte) (GeneratePlanPayload, error) {
	var p GeneratePlanPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return p, err
	}
	if p.DomainID == "" || p.UserID == "" || p.PeriodDays <= 0 {
		return p, errors.New("incomplete plan:generate payload")
	}
	return p, nil
}
