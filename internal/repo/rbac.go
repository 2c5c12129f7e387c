package repo

import (
	"context"
	"database/sql"

	"linkboard/internal/domain"
)

func (r Repo) UpsertMember(ctx context.Context, tx *sql.Tx, m domain.Member) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO domain_members(domain_id, user_id, role, created_at) VALUES (?,?,?,?)
ON CONFLICT(domain_id, user_id) DO UPDATE SET role=excluded.role`, m.DomainID, m.UserID, m.Role, m.CreatedAt)
	return err
}

func (r Repo) DeleteMember(ctx context.Context, tx *sql.Tx, domainID, userID string) error {
	res, err := r.q(tx).ExecContext(ctx, `DELETE FROM domain_members WHERE domain_id=? AND user_id=?`, domainID, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// MemberRole returns the user's role on a domain, ErrNotFound when absent.
func (r Repo) MemberRole(ctx context.Context, tx *sql.Tx, domainID, userID string) (string, error) {
	var role string
	err := r.q(tx).QueryRowContext(ctx, `SELECT role FROM domain_members WHERE domain_id=? AND user_id=?`, domainID, userID).Scan(&role)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return role, err
}

func (r Repo) ListMembers(ctx context.Context, domainID string) ([]domain.Member, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT domain_id, user_id, role, created_at FROM domain_members WHERE domain_id=? ORDER BY created_at, user_id`, domainID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var members []domain.Member
	for rows.Next() {
		var m domain.Member
		if err := rows.Scan(&m.DomainID, &m.UserID, &m.Role, &m.CreatedAt); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}
