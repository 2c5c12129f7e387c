package repo

import (
	"context"
	"database/sql"
	"fmt"

	"linkboard/internal/domain"
)

const planColumns = `id,domain_id,requested_by,period_days,content_json,status,applied_at,archived_at,created_at`

func scanPlan(row rowScanner) (domain.Plan, error) {
	var p domain.Plan
	var status string
	var appliedAt, archivedAt sql.NullString
	if err := row.Scan(&p.ID, &p.DomainID, &p.RequestedBy, &p.PeriodDays, &p.ContentJSON, &status, &appliedAt, &archivedAt, &p.CreatedAt); err != nil {
		return p, err
	}
	s, err := domain.ParsePlanStatus(status)
	if err != nil {
		return p, fmt.Errorf("plan %s: %w", p.ID, err)
	}
	p.Status = s
	if appliedAt.Valid {
		p.AppliedAt = &appliedAt.String
	}
	if archivedAt.Valid {
		p.ArchivedAt = &archivedAt.String
	}
	return p, nil
}

func (r Repo) InsertPlan(ctx context.Context, tx *sql.Tx, p domain.Plan) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO domain_plans(`+planColumns+`) VALUES (?,?,?,?,?,?,?,?,?)`,
		p.ID, p.DomainID, p.RequestedBy, p.PeriodDays, p.ContentJSON, string(p.Status),
		nullableStringPtr(p.AppliedAt), nullableStringPtr(p.ArchivedAt), p.CreatedAt)
	return err
}

func (r Repo) GetPlan(ctx context.Context, id string) (domain.Plan, error) {
	return r.GetPlanTx(ctx, nil, id)
}

func (r Repo) GetPlanTx(ctx context.Context, tx *sql.Tx, id string) (domain.Plan, error) {
	p, err := scanPlan(r.q(tx).QueryRowContext(ctx, `SELECT `+planColumns+` FROM domain_plans WHERE id=?`, id))
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	return p, err
}

// LatestDraftPlan returns the most recently created draft for the domain.
func (r Repo) LatestDraftPlan(ctx context.Context, tx *sql.Tx, domainID string) (domain.Plan, error) {
	p, err := scanPlan(r.q(tx).QueryRowContext(ctx, `SELECT `+planColumns+` FROM domain_plans
WHERE domain_id=? AND status=? ORDER BY created_at DESC, rowid DESC LIMIT 1`, domainID, string(domain.PlanDraft)))
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	return p, err
}

func (r Repo) ListPlans(ctx context.Context, domainID string, limit int) ([]domain.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM domain_plans WHERE domain_id=? ORDER BY created_at DESC, rowid DESC`
	args := []any{domainID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// MarkPlanApplied moves a draft to applied. It only succeeds while the plan
// is still a draft, so two concurrent applies cannot both win.
func (r Repo) MarkPlanApplied(ctx context.Context, tx *sql.Tx, id, appliedAt string) error {
	res, err := r.q(tx).ExecContext(ctx, `UPDATE domain_plans SET status=?, applied_at=? WHERE id=? AND status=?`,
		string(domain.PlanApplied), appliedAt, id, string(domain.PlanDraft))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ArchivePlan sets archived status; archived_at keeps the first archive time.
func (r Repo) ArchivePlan(ctx context.Context, tx *sql.Tx, id, archivedAt string) error {
	res, err := r.q(tx).ExecContext(ctx, `UPDATE domain_plans SET status=?, archived_at=COALESCE(archived_at, ?) WHERE id=?`,
		string(domain.PlanArchived), archivedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
