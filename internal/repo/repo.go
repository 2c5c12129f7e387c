package repo

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"linkboard/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r Repo) q(tx *sql.Tx) querier {
	if tx != nil {
		return tx
	}
	return r.DB
}

func (r Repo) EnsureUser(ctx context.Context, tx *sql.Tx, userID, now string) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT OR IGNORE INTO users(id, created_at) VALUES (?,?)`, userID, now)
	return err
}

func (r Repo) InsertDomain(ctx context.Context, tx *sql.Tx, d domain.Domain) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO domains(id,owner_id,host,name,created_at) VALUES (?,?,?,?,?)`,
		d.ID, d.OwnerID, d.Host, nullable(d.Name), d.CreatedAt)
	return err
}

const domainColumns = `id,owner_id,host,COALESCE(name,''),created_at`

func (r Repo) GetDomain(ctx context.Context, id string) (domain.Domain, error) {
	return r.GetDomainTx(ctx, nil, id)
}

func (r Repo) GetDomainTx(ctx context.Context, tx *sql.Tx, id string) (domain.Domain, error) {
	var d domain.Domain
	err := r.q(tx).QueryRowContext(ctx, `SELECT `+domainColumns+` FROM domains WHERE id=?`, id).
		Scan(&d.ID, &d.OwnerID, &d.Host, &d.Name, &d.CreatedAt)
	if err == sql.ErrNoRows {
		return d, ErrNotFound
	}
	return d, err
}

// ListDomainsForUser returns domains the user owns or is a member of.
func (r Repo) ListDomainsForUser(ctx context.Context, userID string) ([]domain.Domain, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+domainColumns+` FROM domains
WHERE owner_id=? OR id IN (SELECT domain_id FROM domain_members WHERE user_id=?)
ORDER BY created_at DESC, id DESC`, userID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Domain
	for rows.Next() {
		var d domain.Domain
		if err := rows.Scan(&d.ID, &d.OwnerID, &d.Host, &d.Name, &d.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, rows.Err()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}

// IsUniqueViolation reports whether err came from a UNIQUE constraint.
func IsUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
