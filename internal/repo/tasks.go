package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"linkboard/internal/domain"
)

const taskColumns = `id,domain_id,user_id,plan_id,source,title,description,priority,impact_score,effort,status,due_at,planner_group,created_by,match_key,created_at,updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (domain.Task, error) {
	var t domain.Task
	var userID, planID, description, dueAt, group, matchKey sql.NullString
	var source, priority, effort, status, createdBy string
	if err := row.Scan(&t.ID, &t.DomainID, &userID, &planID, &source, &t.Title, &description, &priority, &t.ImpactScore,
		&effort, &status, &dueAt, &group, &createdBy, &matchKey, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return t, err
	}
	var err error
	if t.Source, err = domain.ParseTaskSource(source); err != nil {
		return t, fmt.Errorf("task %s: %w", t.ID, err)
	}
	if t.Priority, err = domain.ParsePriority(priority); err != nil {
		return t, fmt.Errorf("task %s: %w", t.ID, err)
	}
	if t.Effort, err = domain.ParseEffort(effort); err != nil {
		return t, fmt.Errorf("task %s: %w", t.ID, err)
	}
	if t.Status, err = domain.ParseTaskStatus(status); err != nil {
		return t, fmt.Errorf("task %s: %w", t.ID, err)
	}
	if t.CreatedBy, err = domain.ParseCreator(createdBy); err != nil {
		return t, fmt.Errorf("task %s: %w", t.ID, err)
	}
	if group.Valid {
		g, err := domain.ParsePlannerGroup(group.String)
		if err != nil {
			return t, fmt.Errorf("task %s: %w", t.ID, err)
		}
		t.PlannerGroup = &g
	}
	if userID.Valid {
		t.UserID = &userID.String
	}
	if planID.Valid {
		t.PlanID = &planID.String
	}
	if description.Valid {
		t.Description = description.String
	}
	if dueAt.Valid {
		t.DueAt = &dueAt.String
	}
	if matchKey.Valid {
		t.MatchKey = &matchKey.String
	}
	return t, nil
}

func groupValue(g *domain.PlannerGroup) any {
	if g == nil {
		return nil
	}
	return string(*g)
}

func (r Repo) InsertTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO domain_tasks(`+taskColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.DomainID, nullableStringPtr(t.UserID), nullableStringPtr(t.PlanID), string(t.Source), t.Title, nullable(t.Description),
		string(t.Priority), t.ImpactScore, string(t.Effort), string(t.Status), nullableStringPtr(t.DueAt), groupValue(t.PlannerGroup),
		string(t.CreatedBy), nullableStringPtr(t.MatchKey), t.CreatedAt, t.UpdatedAt)
	return err
}

// RefreshPlannedTask overwrites the fields a re-applied plan is allowed to change.
func (r Repo) RefreshPlannedTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	res, err := r.q(tx).ExecContext(ctx, `UPDATE domain_tasks SET plan_id=?, description=?, priority=?, impact_score=?, effort=?, due_at=?, planner_group=?, updated_at=? WHERE id=?`,
		nullableStringPtr(t.PlanID), nullable(t.Description), string(t.Priority), t.ImpactScore, string(t.Effort),
		nullableStringPtr(t.DueAt), groupValue(t.PlannerGroup), t.UpdatedAt, t.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) UpdateTaskStatus(ctx context.Context, tx *sql.Tx, id string, status domain.TaskStatus, updatedAt string) error {
	res, err := r.q(tx).ExecContext(ctx, `UPDATE domain_tasks SET status=?, updated_at=? WHERE id=?`, string(status), updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetTask(ctx context.Context, id string) (domain.Task, error) {
	return r.GetTaskTx(ctx, nil, id)
}

func (r Repo) GetTaskTx(ctx context.Context, tx *sql.Tx, id string) (domain.Task, error) {
	t, err := scanTask(r.q(tx).QueryRowContext(ctx, `SELECT `+taskColumns+` FROM domain_tasks WHERE id=?`, id))
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	return t, err
}

// FindPlannedTask looks up the active system task carrying matchKey.
func (r Repo) FindPlannedTask(ctx context.Context, tx *sql.Tx, domainID, matchKey string) (domain.Task, error) {
	t, err := scanTask(r.q(tx).QueryRowContext(ctx, `SELECT `+taskColumns+` FROM domain_tasks
WHERE domain_id=? AND source=? AND created_by=? AND match_key=? AND status IN (?,?)
ORDER BY created_at ASC, rowid ASC LIMIT 1`,
		domainID, string(domain.SourceInsights), string(domain.CreatedBySystem), matchKey, string(domain.TaskOpen), string(domain.TaskDoing)))
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	return t, err
}

type TaskFilters struct {
	DomainID string
	Statuses []domain.TaskStatus
	// OnlyPlanned restricts to tasks with a planner group.
	OnlyPlanned bool
	// ByImpact orders by impact score instead of recency.
	ByImpact bool
	Limit    int
}

func (r Repo) ListTasks(ctx context.Context, f TaskFilters) ([]domain.Task, error) {
	var clauses []string
	var args []any
	if f.DomainID != "" {
		clauses = append(clauses, "domain_id=?")
		args = append(args, f.DomainID)
	}
	if len(f.Statuses) > 0 {
		marks := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			marks[i] = "?"
			args = append(args, string(s))
		}
		clauses = append(clauses, "status IN ("+strings.Join(marks, ",")+")")
	}
	if f.OnlyPlanned {
		clauses = append(clauses, "planner_group IS NOT NULL")
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	order := ` ORDER BY created_at DESC, rowid DESC`
	if f.ByImpact {
		order = ` ORDER BY impact_score DESC, created_at ASC, rowid ASC`
	}
	query := `SELECT ` + taskColumns + ` FROM domain_tasks ` + where + order
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func (r Repo) CountTasksByStatus(ctx context.Context, domainID string) (map[domain.TaskStatus]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT status, count(*) FROM domain_tasks WHERE domain_id=? GROUP BY status`, domainID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[domain.TaskStatus]int{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		s, err := domain.ParseTaskStatus(status)
		if err != nil {
			return nil, err
		}
		res[s] = count
	}
	return res, rows.Err()
}
