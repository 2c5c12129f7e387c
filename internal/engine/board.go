package engine

import (
	"context"
	"errors"
	"fmt"

	"linkboard/internal/domain"
	"linkboard/internal/repo"
)

// Board is the planner view of a domain: the latest draft plan, if any, and
// the active scheduled tasks split by planner group.
type Board struct {
	Domain domain.Domain
	Plan   *domain.Plan
	Today  []domain.Task
	Week   []domain.Task
	Month  []domain.Task
}

func (e Engine) Board(ctx context.Context, domainID, userID string) (Board, error) {
	d, err := e.Auth.Require(ctx, nil, domainID, userID, domain.CapViewInsights)
	if err != nil {
		return Board{}, err
	}
	b := Board{
		Domain: d,
		Today:  []domain.Task{},
		Week:   []domain.Task{},
		Month:  []domain.Task{},
	}
	plan, err := e.Repo.LatestDraftPlan(ctx, nil, d.ID)
	switch {
	case err == nil:
		b.Plan = &plan
	case errors.Is(err, repo.ErrNotFound):
	default:
		return Board{}, fmt.Errorf("latest draft: %w", err)
	}
	tasks, err := e.Repo.ListTasks(ctx, repo.TaskFilters{
		DomainID:    d.ID,
		Statuses:    []domain.TaskStatus{domain.TaskOpen, domain.TaskDoing},
		OnlyPlanned: true,
		ByImpact:    true,
	})
	if err != nil {
		return Board{}, fmt.Errorf("board tasks: %w", err)
	}
	for _, t := range tasks {
		if !t.OnBoard() {
			continue
		}
		switch *t.PlannerGroup {
		case domain.GroupToday:
			b.Today = append(b.Today, t)
		case domain.GroupWeek:
			b.Week = append(b.Week, t)
		case domain.GroupMonth:
			b.Month = append(b.Month, t)
		}
	}
	return b, nil
}

// Bucket returns the tasks of one planner group.
func (b Board) Bucket(g domain.PlannerGroup) []domain.Task {
	switch g {
	case domain.GroupToday:
		return b.Today
	case domain.GroupWeek:
		return b.Week
	case domain.GroupMonth:
		return b.Month
	}
	return nil
}
