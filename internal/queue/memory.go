package queue

import (
	"context"
	"fmt"
	"sync"
)

// Memory keeps submitted messages in process. Tests drain it and hand the
// messages to the worker's processor.
type Memory struct {
	mu       sync.Mutex
	seq      int
	messages []Message
	// Err, when set, is returned by Submit instead of accepting the message.
	Err error
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Submit(ctx context.Context, msg Message) (Ack, error) {
	if err := ctx.Err(); err != nil {
		return Ack{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return Ack{}, m.Err
	}
	m.seq++
	m.messages = append(m.messages, msg)
	return Ack{ID: fmt.Sprintf("mem-%d", m.seq), Queue: msg.Queue}, nil
}

// Drain returns pending messages in submission order and clears the queue.
func (m *Memory) Drain() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.messages
	m.messages = nil
	return out
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}
