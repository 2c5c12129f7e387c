package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"linkboard/internal/domain"
	"linkboard/internal/engine/auth"
	"linkboard/internal/events"
	"linkboard/internal/repo"
)

const maxTitleLen = 255

type ManualTaskInput struct {
	DomainID    string
	UserID      string
	Title       string
	Priority    string
	Description string
	// DueAt accepts RFC3339 or a plain YYYY-MM-DD date.
	DueAt string
}

// CreateManualTask adds a user-authored task. Impact is derived from priority.
func (e Engine) CreateManualTask(ctx context.Context, in ManualTaskInput) (domain.Task, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()
	d, err := e.Auth.RequireOwner(ctx, tx, in.DomainID, in.UserID)
	if err != nil {
		return domain.Task{}, err
	}

	verr := &ValidationError{}
	title := strings.TrimSpace(in.Title)
	switch {
	case title == "":
		verr.add("title", "is required")
	case utf8.RuneCountInString(title) > maxTitleLen:
		verr.add("title", fmt.Sprintf("must be at most %d characters", maxTitleLen))
	}
	priority, perr := domain.ParsePriority(strings.TrimSpace(in.Priority))
	if perr != nil {
		verr.add("priority", "must be one of p1, p2, p3")
	}
	var dueAt *string
	if strings.TrimSpace(in.DueAt) != "" {
		ts, derr := parseDue(in.DueAt)
		if derr != nil {
			verr.add("due_at", derr.Error())
		} else {
			dueAt = &ts
		}
	}
	if err := verr.orNil(); err != nil {
		return domain.Task{}, err
	}

	now := e.stamp()
	userID := in.UserID
	task := domain.Task{
		ID:          uuid.New().String(),
		DomainID:    d.ID,
		UserID:      &userID,
		Source:      domain.SourceInsights,
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Priority:    priority,
		ImpactScore: priority.ImpactScore(),
		Effort:      domain.EffortMedium,
		Status:      domain.TaskOpen,
		DueAt:       dueAt,
		CreatedBy:   domain.CreatedByUser,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.Repo.InsertTask(ctx, tx, task); err != nil {
		return domain.Task{}, fmt.Errorf("insert task: %w", err)
	}
	if err := e.events().Append(ctx, tx, events.TaskCreated, d.ID, "task", task.ID, in.UserID, events.EventPayload{
		"title":      task.Title,
		"priority":   string(task.Priority),
		"created_by": string(task.CreatedBy),
	}); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return task, nil
}

func parseDue(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC().Format(time.RFC3339), nil
	}
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t.UTC().Format(time.RFC3339), nil
	}
	return "", errors.New("must be RFC3339 or YYYY-MM-DD")
}

// UpdateTaskStatus sets a task's status. Any status may move to any other.
func (e Engine) UpdateTaskStatus(ctx context.Context, domainID, taskID, userID, status string) (domain.Task, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()
	d, err := e.Auth.RequireOwner(ctx, tx, domainID, userID)
	if err != nil {
		return domain.Task{}, err
	}
	task, err := e.Repo.GetTaskTx(ctx, tx, taskID)
	if err != nil {
		return domain.Task{}, err
	}
	if task.DomainID != d.ID {
		return domain.Task{}, auth.ForbiddenError{Capability: "ownership", DomainID: d.ID, Reason: "task does not belong to domain"}
	}
	next, err := domain.ParseTaskStatus(strings.TrimSpace(status))
	if err != nil {
		return domain.Task{}, invalid("status", "must be one of open, doing, done, dismissed")
	}
	prev := task.Status
	now := e.stamp()
	if err := e.Repo.UpdateTaskStatus(ctx, tx, task.ID, next, now); err != nil {
		return domain.Task{}, err
	}
	if err := e.events().Append(ctx, tx, events.TaskStatusUpdated, d.ID, "task", task.ID, userID, events.EventPayload{
		"from": string(prev),
		"to":   string(next),
	}); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	task.Status = next
	task.UpdatedAt = now
	return task, nil
}

// ListTasks returns the domain's tasks, newest first, optionally filtered by status.
func (e Engine) ListTasks(ctx context.Context, domainID, userID, status string) ([]domain.Task, error) {
	d, err := e.Auth.Require(ctx, nil, domainID, userID, domain.CapViewInsights)
	if err != nil {
		return nil, err
	}
	filters := repo.TaskFilters{DomainID: d.ID}
	if status != "" {
		s, err := domain.ParseTaskStatus(status)
		if err != nil {
			return nil, invalid("status", err.Error())
		}
		filters.Statuses = []domain.TaskStatus{s}
	}
	tasks, err := e.Repo.ListTasks(ctx, filters)
	if err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []domain.Task{}
	}
	return tasks, nil
}
