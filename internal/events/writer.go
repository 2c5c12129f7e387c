package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

const (
	DomainCreated     = "domain.created"
	MemberGranted     = "member.granted"
	MemberRevoked     = "member.revoked"
	TaskCreated       = "task.created"
	TaskStatusUpdated = "task.status.updated"
	PlanGenerated     = "plan.generated"
	PlanApplied       = "plan.applied"
	PlanArchived      = "plan.archived"
)

type Writer struct {
	Now func() time.Time
}

type EventPayload map[string]any

// Append records an event inside the caller's transaction so the log never
// disagrees with the state it describes.
func (w Writer) Append(ctx context.Context, tx *sql.Tx, evtType, domainID, entityKind, entityID, actorID string, payload EventPayload) error {
	if w.Now == nil {
		w.Now = time.Now
	}
	ts := w.Now().UTC().Format(time.RFC3339)
	if payload == nil {
		payload = EventPayload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO events(ts,type,domain_id,entity_kind,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?,?)`,
		ts, evtType, nullable(domainID), entityKind, nullable(entityID), actorID, string(data))
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
