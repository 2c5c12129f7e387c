package engine

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"linkboard/internal/domain"
	"linkboard/internal/engine/auth"
	"linkboard/internal/events"
	"linkboard/internal/queue"
	"linkboard/internal/repo"
)

// ActionPlanner turns plan content into task mutations. It holds no state of
// its own and always runs inside the caller's transaction.
type ActionPlanner struct {
	Repo   repo.Repo
	Events events.Writer
	Now    func() time.Time
}

type ApplyInput struct {
	DomainID   string
	PlanID     string
	Content    domain.PlanContent
	PeriodDays int
	ActorID    string
}

type ApplyCounts struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
}

// plannedItem is a validated plan item ready to be written.
type plannedItem struct {
	key         string
	title       string
	description string
	priority    domain.Priority
	impact      int
	effort      domain.Effort
	group       domain.PlannerGroup
	dueInDays   int
}

// MatchKey is the identity of a plan item across applies: the explicit key
// when present, otherwise the title lower-cased with whitespace collapsed.
func MatchKey(item domain.PlanItem) string {
	if k := strings.TrimSpace(item.Key); k != "" {
		return strings.ToLower(k)
	}
	return strings.Join(strings.Fields(strings.ToLower(item.Title)), " ")
}

// ValidatePlanContent reports every problem in content as one ValidationError.
func ValidatePlanContent(content domain.PlanContent, periodDays int) error {
	_, err := planItems(content, periodDays)
	return err
}

func planItems(content domain.PlanContent, periodDays int) ([]plannedItem, error) {
	verr := &ValidationError{}
	if periodDays <= 0 {
		verr.add("period_days", "must be positive")
	}
	seen := map[string]int{}
	items := make([]plannedItem, 0, len(content.Items))
	for i, item := range content.Items {
		field := func(name string) string { return fmt.Sprintf("items[%d].%s", i, name) }
		p := plannedItem{
			title:       strings.TrimSpace(item.Title),
			description: strings.TrimSpace(item.Description),
		}
		if p.title == "" {
			verr.add(field("title"), "is required")
		} else if len([]rune(p.title)) > maxTitleLen {
			verr.add(field("title"), fmt.Sprintf("must be at most %d characters", maxTitleLen))
		}
		var err error
		if p.priority, err = domain.ParsePriority(item.Priority); err != nil {
			verr.add(field("priority"), "must be one of p1, p2, p3")
		}
		if item.ImpactScore == nil {
			verr.add(field("impact_score"), "is required")
		} else if *item.ImpactScore < 0 || *item.ImpactScore > 100 {
			verr.add(field("impact_score"), "must be between 0 and 100")
		} else {
			p.impact = *item.ImpactScore
		}
		if p.effort, err = domain.ParseEffort(item.Effort); err != nil {
			verr.add(field("effort"), "must be one of low, medium, high")
		}
		if p.group, err = domain.ParsePlannerGroup(item.PlannerGroup); err != nil {
			verr.add(field("planner_group"), "must be one of today, week, month")
		}
		if p.title != "" {
			p.key = MatchKey(item)
			if prev, dup := seen[p.key]; dup {
				verr.add(field("key"), fmt.Sprintf("duplicates items[%d]", prev))
			}
			seen[p.key] = i
		}
		if periodDays > 0 && p.group != "" {
			days := p.group.DefaultDueInDays(periodDays)
			if item.DueInDays != nil {
				days = *item.DueInDays
			}
			p.dueInDays = min(max(days, 0), periodDays)
		}
		items = append(items, p)
	}
	if err := verr.orNil(); err != nil {
		return nil, err
	}
	return items, nil
}

// ApplyPlan creates tasks for new items and refreshes the active system task
// already carrying an item's match key. Reapplying identical content creates
// nothing.
func (p ActionPlanner) ApplyPlan(ctx context.Context, tx *sql.Tx, in ApplyInput) (ApplyCounts, error) {
	var counts ApplyCounts
	items, err := planItems(in.Content, in.PeriodDays)
	if err != nil {
		return counts, err
	}
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	ts := now().UTC()
	stamp := ts.Format(time.RFC3339)
	w := p.Events
	if w.Now == nil {
		w.Now = now
	}
	for _, item := range items {
		due := ts.AddDate(0, 0, item.dueInDays).Format(time.RFC3339)
		group := item.group
		planID := optionalString(in.PlanID)
		existing, err := p.Repo.FindPlannedTask(ctx, tx, in.DomainID, item.key)
		switch {
		case errors.Is(err, repo.ErrNotFound):
			key := item.key
			task := domain.Task{
				ID:           uuid.New().String(),
				DomainID:     in.DomainID,
				UserID:       optionalString(in.ActorID),
				PlanID:       planID,
				Source:       domain.SourceInsights,
				Title:        item.title,
				Description:  item.description,
				Priority:     item.priority,
				ImpactScore:  item.impact,
				Effort:       item.effort,
				Status:       domain.TaskOpen,
				DueAt:        &due,
				PlannerGroup: &group,
				CreatedBy:    domain.CreatedBySystem,
				MatchKey:     &key,
				CreatedAt:    stamp,
				UpdatedAt:    stamp,
			}
			if err := p.Repo.InsertTask(ctx, tx, task); err != nil {
				return counts, fmt.Errorf("insert task %q: %w", item.key, err)
			}
			if err := w.Append(ctx, tx, events.TaskCreated, in.DomainID, "task", task.ID, in.ActorID, events.EventPayload{
				"title":      task.Title,
				"plan_id":    in.PlanID,
				"created_by": string(task.CreatedBy),
			}); err != nil {
				return counts, err
			}
			counts.Created++
		case err != nil:
			return counts, fmt.Errorf("match task %q: %w", item.key, err)
		default:
			existing.PlanID = planID
			existing.Priority = item.priority
			existing.ImpactScore = item.impact
			existing.Effort = item.effort
			existing.DueAt = &due
			existing.PlannerGroup = &group
			if item.description != "" {
				existing.Description = item.description
			}
			existing.UpdatedAt = stamp
			if err := p.Repo.RefreshPlannedTask(ctx, tx, existing); err != nil {
				return counts, fmt.Errorf("refresh task %q: %w", item.key, err)
			}
			counts.Updated++
		}
	}
	return counts, nil
}

// ParsePlanContent decodes a stored plan document.
func ParsePlanContent(raw string) (domain.PlanContent, error) {
	var c domain.PlanContent
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&c); err != nil {
		return c, invalid("content", fmt.Sprintf("malformed plan content: %v", err))
	}
	return c, nil
}

func (e Engine) planner() ActionPlanner {
	return ActionPlanner{Repo: e.Repo, Events: e.events(), Now: e.Now}
}

// ApplyResult summarizes an applied plan.
type ApplyResult struct {
	Plan    domain.Plan
	Created int
	Updated int
	Message string
}

// ApplyLatestDraft materializes the newest draft plan into tasks and marks it
// applied. Task writes and the status change commit together or not at all.
func (e Engine) ApplyLatestDraft(ctx context.Context, domainID, userID string) (ApplyResult, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return ApplyResult{}, err
	}
	defer tx.Rollback()
	d, err := e.Auth.Require(ctx, tx, domainID, userID, domain.CapRunInsights)
	if err != nil {
		return ApplyResult{}, err
	}
	plan, err := e.Repo.LatestDraftPlan(ctx, tx, d.ID)
	if errors.Is(err, repo.ErrNotFound) {
		return ApplyResult{}, ErrNoDraftPlan
	}
	if err != nil {
		return ApplyResult{}, err
	}
	content, err := ParsePlanContent(plan.ContentJSON)
	if err != nil {
		return ApplyResult{}, err
	}
	counts, err := e.planner().ApplyPlan(ctx, tx, ApplyInput{
		DomainID:   d.ID,
		PlanID:     plan.ID,
		Content:    content,
		PeriodDays: plan.PeriodDays,
		ActorID:    userID,
	})
	if err != nil {
		return ApplyResult{}, err
	}
	now := e.stamp()
	if err := e.Repo.MarkPlanApplied(ctx, tx, plan.ID, now); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ApplyResult{}, ErrNoDraftPlan
		}
		return ApplyResult{}, err
	}
	if err := e.events().Append(ctx, tx, events.PlanApplied, d.ID, "plan", plan.ID, userID, events.EventPayload{
		"created": counts.Created,
		"updated": counts.Updated,
	}); err != nil {
		return ApplyResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return ApplyResult{}, err
	}
	plan.Status = domain.PlanApplied
	plan.AppliedAt = &now
	return ApplyResult{
		Plan:    plan,
		Created: counts.Created,
		Updated: counts.Updated,
		Message: fmt.Sprintf("Plan applied: %d tasks created, %d tasks updated.", counts.Created, counts.Updated),
	}, nil
}

// ArchivePlan retires a plan whatever its status. Archiving twice changes nothing.
func (e Engine) ArchivePlan(ctx context.Context, domainID, planID, userID string) (domain.Plan, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Plan{}, err
	}
	defer tx.Rollback()
	d, err := e.Auth.Require(ctx, tx, domainID, userID, domain.CapViewInsights)
	if err != nil {
		return domain.Plan{}, err
	}
	plan, err := e.Repo.GetPlanTx(ctx, tx, planID)
	if err != nil {
		return domain.Plan{}, err
	}
	if plan.DomainID != d.ID {
		return domain.Plan{}, auth.ForbiddenError{Capability: string(domain.CapViewInsights), DomainID: d.ID, Reason: "plan does not belong to domain"}
	}
	if plan.Status == domain.PlanArchived {
		return plan, nil
	}
	from := plan.Status
	if err := e.Repo.ArchivePlan(ctx, tx, plan.ID, e.stamp()); err != nil {
		return domain.Plan{}, err
	}
	if err := e.events().Append(ctx, tx, events.PlanArchived, d.ID, "plan", plan.ID, userID, events.EventPayload{"from": string(from)}); err != nil {
		return domain.Plan{}, err
	}
	plan, err = e.Repo.GetPlanTx(ctx, tx, plan.ID)
	if err != nil {
		return domain.Plan{}, err
	}
	return plan, tx.Commit()
}

// ListPlans returns every plan of the domain, newest first.
func (e Engine) ListPlans(ctx context.Context, domainID, userID string, limit int) ([]domain.Plan, error) {
	d, err := e.Auth.Require(ctx, nil, domainID, userID, domain.CapViewInsights)
	if err != nil {
		return nil, err
	}
	plans, err := e.Repo.ListPlans(ctx, d.ID, limit)
	if err != nil {
		return nil, err
	}
	if plans == nil {
		plans = []domain.Plan{}
	}
	return plans, nil
}

// GenerateAck acknowledges an enqueued plan generation.
type GenerateAck struct {
	TaskID     string
	Queue      string
	DomainID   string
	PeriodDays int
}

// RequestPlan enqueues plan generation and returns without touching the
// database. The draft shows up once a worker has run the job.
func (e Engine) RequestPlan(ctx context.Context, domainID, userID string, periodDays int) (GenerateAck, error) {
	d, err := e.Auth.Require(ctx, nil, domainID, userID, domain.CapRunInsights)
	if err != nil {
		return GenerateAck{}, err
	}
	if periodDays == 0 {
		periodDays = e.Config.Planner.DefaultPeriodDays
	}
	if periodDays < 1 || periodDays > e.Config.Planner.MaxPeriodDays {
		return GenerateAck{}, invalid("period_days", fmt.Sprintf("must be between 1 and %d", e.Config.Planner.MaxPeriodDays))
	}
	if e.Queue == nil {
		return GenerateAck{}, errors.New("no work queue configured")
	}
	msg, err := queue.NewGeneratePlan(queue.GeneratePlanPayload{
		DomainID:   d.ID,
		UserID:     userID,
		PeriodDays: periodDays,
	}, e.Config.Planner.Queue, e.Config.Planner.MaxRetry)
	if err != nil {
		return GenerateAck{}, err
	}
	ack, err := e.Queue.Submit(ctx, msg)
	if err != nil {
		return GenerateAck{}, fmt.Errorf("enqueue plan generation: %w", err)
	}
	return GenerateAck{TaskID: ack.ID, Queue: ack.Queue, DomainID: d.ID, PeriodDays: periodDays}, nil
}
