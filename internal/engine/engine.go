package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"linkboard/internal/config"
	"linkboard/internal/domain"
	"linkboard/internal/engine/auth"
	"linkboard/internal/events"
	"linkboard/internal/queue"
	"linkboard/internal/repo"
)

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Auth   auth.Service
	Config *config.Config
	Queue  queue.Enqueuer
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config, q queue.Enqueuer) Engine {
	r := repo.Repo{DB: db}
	return Engine{
		DB:     db,
		Repo:   r,
		Events: events.Writer{},
		Auth:   auth.Service{Repo: r, Config: cfg},
		Config: cfg,
		Queue:  q,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) stamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

func (e Engine) events() events.Writer {
	w := e.Events
	if w.Now == nil {
		w.Now = e.Now
	}
	return w
}

var (
	// ErrNoDraftPlan is returned when a domain has no plan in draft status.
	ErrNoDraftPlan = fmt.Errorf("no draft plan: %w", repo.ErrNotFound)
	ErrDuplicate   = errors.New("already exists")
)

// ValidationError carries per-field reasons for rejected input.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, reason string) {
	if e.Fields == nil {
		e.Fields = map[string]string{}
	}
	if _, exists := e.Fields[field]; !exists {
		e.Fields[field] = reason
	}
}

func (e *ValidationError) orNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

func invalid(field, reason string) error {
	v := &ValidationError{}
	v.add(field, reason)
	return v
}

// CreateDomain registers a domain owned by ownerID.
func (e Engine) CreateDomain(ctx context.Context, ownerID, host, name string) (domain.Domain, error) {
	if strings.TrimSpace(ownerID) == "" {
		return domain.Domain{}, auth.ForbiddenError{Capability: "ownership", Reason: "authenticated user required"}
	}
	normalized, err := normalizeHost(host)
	if err != nil {
		return domain.Domain{}, invalid("host", err.Error())
	}
	now := e.stamp()
	d := domain.Domain{
		ID:        uuid.New().String(),
		OwnerID:   ownerID,
		Host:      normalized,
		Name:      strings.TrimSpace(name),
		CreatedAt: now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Domain{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.EnsureUser(ctx, tx, ownerID, now); err != nil {
		return domain.Domain{}, fmt.Errorf("ensure user: %w", err)
	}
	if err := e.Repo.InsertDomain(ctx, tx, d); err != nil {
		if repo.IsUniqueViolation(err) {
			return domain.Domain{}, fmt.Errorf("domain %s: %w", d.Host, ErrDuplicate)
		}
		return domain.Domain{}, fmt.Errorf("insert domain: %w", err)
	}
	if err := e.events().Append(ctx, tx, events.DomainCreated, d.ID, "domain", d.ID, ownerID, events.EventPayload{"host": d.Host}); err != nil {
		return domain.Domain{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Domain{}, err
	}
	return d, nil
}

func normalizeHost(raw string) (string, error) {
	raw = strings.TrimSpace(strings.ToLower(raw))
	if raw == "" {
		return "", errors.New("is required")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return "", errors.New("must be a host name")
	}
	host := strings.TrimPrefix(u.Hostname(), "www.")
	if !strings.Contains(host, ".") {
		return "", errors.New("must be a fully qualified host name")
	}
	return host, nil
}

// ListDomains returns the domains userID owns or collaborates on.
func (e Engine) ListDomains(ctx context.Context, userID string) ([]domain.Domain, error) {
	return e.Repo.ListDomainsForUser(ctx, userID)
}

// GrantMember gives memberID a config-defined role on the domain. Owner only.
func (e Engine) GrantMember(ctx context.Context, domainID, ownerID, memberID, role string) (domain.Member, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Member{}, err
	}
	defer tx.Rollback()
	d, err := e.Auth.RequireOwner(ctx, tx, domainID, ownerID)
	if err != nil {
		return domain.Member{}, err
	}
	memberID = strings.TrimSpace(memberID)
	if memberID == "" {
		return domain.Member{}, invalid("user_id", "is required")
	}
	if memberID == d.OwnerID {
		return domain.Member{}, invalid("user_id", "owner already holds every capability")
	}
	if _, ok := e.Config.RolePermissions(role); !ok {
		return domain.Member{}, invalid("role", fmt.Sprintf("unknown role %q", role))
	}
	now := e.stamp()
	m := domain.Member{DomainID: d.ID, UserID: memberID, Role: role, CreatedAt: now}
	if err := e.Repo.EnsureUser(ctx, tx, memberID, now); err != nil {
		return m, fmt.Errorf("ensure user: %w", err)
	}
	if err := e.Repo.UpsertMember(ctx, tx, m); err != nil {
		return m, err
	}
	if err := e.events().Append(ctx, tx, events.MemberGranted, d.ID, "member", memberID, ownerID, events.EventPayload{"role": role}); err != nil {
		return m, err
	}
	return m, tx.Commit()
}

// RevokeMember removes memberID from the domain. Owner only.
func (e Engine) RevokeMember(ctx context.Context, domainID, ownerID, memberID string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	d, err := e.Auth.RequireOwner(ctx, tx, domainID, ownerID)
	if err != nil {
		return err
	}
	if err := e.Repo.DeleteMember(ctx, tx, d.ID, memberID); err != nil {
		return err
	}
	if err := e.events().Append(ctx, tx, events.MemberRevoked, d.ID, "member", memberID, ownerID, nil); err != nil {
		return err
	}
	return tx.Commit()
}

// --- helpers ---

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
