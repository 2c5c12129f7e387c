// Package insights produces draft plans for domains. A Source computes the
// content; the Generator validates and persists it.
package insights

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"linkboard/internal/domain"
	"linkboard/internal/engine"
	"linkboard/internal/events"
	"linkboard/internal/repo"
)

type Generator struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Source Source
	Logger *slog.Logger
	Now    func() time.Time
}

func NewGenerator(db *sql.DB, source Source, logger *slog.Logger) Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return Generator{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Source: source,
		Logger: logger,
		Now:    time.Now,
	}
}

// Generate computes content for the domain and stores it as one new draft
// plan. Nothing is written unless the content is valid. An unknown domain
// yields repo.ErrNotFound and invalid content wraps ErrInvalidContent; both
// are permanent.
func (g Generator) Generate(ctx context.Context, domainID, userID string, periodDays int) (domain.Plan, error) {
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	d, err := g.Repo.GetDomain(ctx, domainID)
	if err != nil {
		return domain.Plan{}, fmt.Errorf("load domain %s: %w", domainID, err)
	}
	start := time.Now()
	content, err := g.Source.Plan(ctx, Request{Domain: d, PeriodDays: periodDays})
	if err != nil {
		return domain.Plan{}, fmt.Errorf("compute plan: %w", err)
	}
	if err := ValidateContent(content); err != nil {
		return domain.Plan{}, err
	}
	if err := engine.ValidatePlanContent(content, periodDays); err != nil {
		return domain.Plan{}, fmt.Errorf("%w: %v", ErrInvalidContent, err)
	}
	raw, err := json.Marshal(content)
	if err != nil {
		return domain.Plan{}, fmt.Errorf("marshal content: %w", err)
	}

	plan := domain.Plan{
		ID:          uuid.New().String(),
		DomainID:    d.ID,
		RequestedBy: userID,
		PeriodDays:  periodDays,
		ContentJSON: string(raw),
		Status:      domain.PlanDraft,
		CreatedAt:   now().UTC().Format(time.RFC3339),
	}
	tx, err := g.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Plan{}, err
	}
	defer tx.Rollback()
	if err := g.Repo.EnsureUser(ctx, tx, userID, plan.CreatedAt); err != nil {
		return domain.Plan{}, fmt.Errorf("ensure user: %w", err)
	}
	if err := g.Repo.InsertPlan(ctx, tx, plan); err != nil {
		return domain.Plan{}, fmt.Errorf("insert plan: %w", err)
	}
	w := g.Events
	if w.Now == nil {
		w.Now = now
	}
	if err := w.Append(ctx, tx, events.PlanGenerated, d.ID, "plan", plan.ID, userID, events.EventPayload{
		"period_days": periodDays,
		"items":       len(content.Items),
	}); err != nil {
		return domain.Plan{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Plan{}, err
	}
	g.Logger.Info("Plan generated",
		"domain_id", d.ID,
		"plan_id", plan.ID,
		"period_days", periodDays,
		"items", len(content.Items),
		"duration", time.Since(start),
	)
	return plan, nil
}
