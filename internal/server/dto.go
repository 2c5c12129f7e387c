package server

import (
	"encoding/json"

	"linkboard/internal/domain"
	"linkboard/internal/engine"
)

// Request payloads. Fields the engine validates are marked optional so
// capability checks run before field errors are reported.

type CreateDomainRequest struct {
	Host string `json:"host" required:"false" doc:"Host name or URL of the site"`
	Name string `json:"name,omitempty"`
}

type GeneratePlanRequest struct {
	PeriodDays int `json:"period_days,omitempty" doc:"Planning horizon in days, 28 when omitted"`
}

type CreateTaskRequest struct {
	Title       string `json:"title" required:"false"`
	Priority    string `json:"priority" required:"false" doc:"p1, p2 or p3"`
	Description string `json:"description,omitempty"`
	DueAt       string `json:"due_at,omitempty" doc:"RFC3339 timestamp or YYYY-MM-DD"`
}

type UpdateTaskStatusRequest struct {
	Status string `json:"status" required:"false" doc:"open, doing, done or dismissed"`
}

type GrantMemberRequest struct {
	Role string `json:"role" required:"false"`
}

type CreateAPIKeyRequest struct {
	Name string `json:"name,omitempty"`
}

type DevLoginRequest struct {
	UserID     string `json:"user_id"`
	TTLSeconds int    `json:"ttl_seconds,omitempty"`
}

// Response payloads

type PlanResponse struct {
	domain.Plan
	Content *domain.PlanContent `json:"content,omitempty"`
}

type BoardTasks struct {
	Today []domain.Task `json:"today"`
	Week  []domain.Task `json:"week"`
	Month []domain.Task `json:"month"`
}

type BoardResponse struct {
	Domain domain.Domain `json:"domain"`
	Plan   *PlanResponse `json:"plan"`
	Tasks  BoardTasks    `json:"tasks"`
}

type GeneratePlanResponse struct {
	Status     string `json:"status" example:"queued"`
	Message    string `json:"message"`
	TaskID     string `json:"task_id"`
	Queue      string `json:"queue"`
	DomainID   string `json:"domain_id"`
	PeriodDays int    `json:"period_days"`
}

type ApplyPlanResponse struct {
	Message string       `json:"message" example:"Plan applied: 3 tasks created, 0 tasks updated."`
	Created int          `json:"created"`
	Updated int          `json:"updated"`
	Plan    PlanResponse `json:"plan"`
}

type EventResponse struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	DomainID   string         `json:"domain_id,omitempty"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}

type APIKeyResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	CreatedAt string `json:"created_at"`
	// Key is only present in the creation response.
	Key string `json:"key,omitempty"`
}

type WhoAmIResponse struct {
	UserID string `json:"user_id"`
	Source string `json:"source"`
}

type CapabilitiesResponse struct {
	DomainID     string   `json:"domain_id"`
	Capabilities []string `json:"capabilities"`
}

type DevLoginResponse struct {
	Token string `json:"token"`
}

func planResponse(p domain.Plan) PlanResponse {
	resp := PlanResponse{Plan: p}
	if content, err := engine.ParsePlanContent(p.ContentJSON); err == nil {
		resp.Content = &content
	}
	return resp
}

func boardResponse(b engine.Board) BoardResponse {
	resp := BoardResponse{
		Domain: b.Domain,
		Tasks: BoardTasks{
			Today: nonNilSlice(b.Today),
			Week:  nonNilSlice(b.Week),
			Month: nonNilSlice(b.Month),
		},
	}
	if b.Plan != nil {
		p := planResponse(*b.Plan)
		resp.Plan = &p
	}
	return resp
}

func eventResponse(evt domain.Event) EventResponse {
	payload := map[string]any{}
	if evt.Payload != "" {
		_ = json.Unmarshal([]byte(evt.Payload), &payload)
	}
	return EventResponse{
		ID:         evt.ID,
		TS:         evt.TS,
		Type:       evt.Type,
		DomainID:   evt.DomainID,
		EntityKind: evt.EntityKind,
		EntityID:   evt.EntityID,
		ActorID:    evt.ActorID,
		Payload:    payload,
	}
}

func apiKeyResponse(k domain.APIKey) APIKeyResponse {
	return APIKeyResponse{ID: k.ID, Name: k.Name, CreatedAt: k.CreatedAt}
}

func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
