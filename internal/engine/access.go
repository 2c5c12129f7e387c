package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"linkboard/internal/domain"
	"linkboard/internal/repo"
)

// CreateAPIKey issues a key for userID. The plaintext is returned once and
// only its hash is stored.
func (e Engine) CreateAPIKey(ctx context.Context, userID, name string) (domain.APIKey, string, error) {
	if strings.TrimSpace(userID) == "" {
		return domain.APIKey{}, "", invalid("user_id", "is required")
	}
	plain, err := repo.GenerateAPIKey()
	if err != nil {
		return domain.APIKey{}, "", fmt.Errorf("generate key: %w", err)
	}
	now := e.stamp()
	key := domain.APIKey{
		ID:        uuid.New().String(),
		UserID:    userID,
		Name:      strings.TrimSpace(name),
		KeyHash:   repo.HashAPIKey(plain),
		CreatedAt: now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.APIKey{}, "", err
	}
	defer tx.Rollback()
	if err := e.Repo.EnsureUser(ctx, tx, userID, now); err != nil {
		return domain.APIKey{}, "", err
	}
	if err := e.Repo.InsertAPIKey(ctx, tx, key); err != nil {
		return domain.APIKey{}, "", err
	}
	return key, plain, tx.Commit()
}

func (e Engine) ListAPIKeys(ctx context.Context, userID string) ([]domain.APIKey, error) {
	keys, err := e.Repo.ListAPIKeys(ctx, userID)
	if err != nil {
		return nil, err
	}
	if keys == nil {
		keys = []domain.APIKey{}
	}
	return keys, nil
}

func (e Engine) RevokeAPIKey(ctx context.Context, userID, keyID string) error {
	return e.Repo.DeleteAPIKey(ctx, userID, keyID)
}

// ListMembers returns the domain's collaborators.
func (e Engine) ListMembers(ctx context.Context, domainID, userID string) ([]domain.Member, error) {
	d, err := e.Auth.Require(ctx, nil, domainID, userID, domain.CapViewInsights)
	if err != nil {
		return nil, err
	}
	members, err := e.Repo.ListMembers(ctx, d.ID)
	if err != nil {
		return nil, err
	}
	if members == nil {
		members = []domain.Member{}
	}
	return members, nil
}

// Capabilities lists what userID may do on the domain.
func (e Engine) Capabilities(ctx context.Context, domainID, userID string) ([]string, error) {
	d, err := e.Repo.GetDomain(ctx, domainID)
	if err != nil {
		return nil, err
	}
	return e.Auth.Capabilities(ctx, d, userID)
}

// DomainEvents returns the newest events recorded for the domain.
func (e Engine) DomainEvents(ctx context.Context, domainID, userID, evtType string, limit int) ([]domain.Event, error) {
	d, err := e.Auth.Require(ctx, nil, domainID, userID, domain.CapViewInsights)
	if err != nil {
		return nil, err
	}
	evts, err := e.Repo.LatestEvents(ctx, limit, d.ID, evtType)
	if err != nil {
		return nil, err
	}
	if evts == nil {
		evts = []domain.Event{}
	}
	return evts, nil
}
