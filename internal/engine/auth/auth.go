package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"linkboard/internal/config"
	"linkboard/internal/domain"
	"linkboard/internal/repo"
)

// ForbiddenError indicates a missing capability on a domain.
type ForbiddenError struct {
	Capability string
	DomainID   string
	// Reason replaces the default message when the check was not a
	// capability lookup, e.g. a child record belonging to another domain.
	Reason string
}

func (e ForbiddenError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	if e.DomainID == "" {
		return fmt.Sprintf("capability %s required", e.Capability)
	}
	return fmt.Sprintf("capability %s required on domain %s", e.Capability, e.DomainID)
}

const ownership = "ownership"

// Service resolves capabilities from domain ownership and member roles.
type Service struct {
	Repo   repo.Repo
	Config *config.Config
}

// Require loads the domain and checks that userID holds capability on it.
// The owner holds every capability; members hold the permissions of their role.
func (s Service) Require(ctx context.Context, tx *sql.Tx, domainID, userID string, capability domain.Capability) (domain.Domain, error) {
	d, err := s.Repo.GetDomainTx(ctx, tx, domainID)
	if err != nil {
		return d, err
	}
	if userID == "" {
		return d, ForbiddenError{Capability: string(capability), DomainID: domainID}
	}
	if d.OwnerID == userID {
		return d, nil
	}
	ok, err := s.memberHas(ctx, tx, domainID, userID, capability)
	if err != nil {
		return d, err
	}
	if !ok {
		return d, ForbiddenError{Capability: string(capability), DomainID: domainID}
	}
	return d, nil
}

// RequireOwner loads the domain and checks that userID owns it.
func (s Service) RequireOwner(ctx context.Context, tx *sql.Tx, domainID, userID string) (domain.Domain, error) {
	d, err := s.Repo.GetDomainTx(ctx, tx, domainID)
	if err != nil {
		return d, err
	}
	if userID == "" || d.OwnerID != userID {
		return d, ForbiddenError{Capability: ownership, DomainID: domainID}
	}
	return d, nil
}

// Capabilities lists what userID may do on the domain.
func (s Service) Capabilities(ctx context.Context, d domain.Domain, userID string) ([]string, error) {
	if d.OwnerID == userID {
		return []string{ownership, string(domain.CapViewInsights), string(domain.CapRunInsights)}, nil
	}
	role, err := s.Repo.MemberRole(ctx, nil, d.ID, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	perms, _ := s.rolePermissions(role)
	return append([]string{}, perms...), nil
}

func (s Service) memberHas(ctx context.Context, tx *sql.Tx, domainID, userID string, capability domain.Capability) (bool, error) {
	role, err := s.Repo.MemberRole(ctx, tx, domainID, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	perms, ok := s.rolePermissions(role)
	if !ok {
		return false, nil
	}
	for _, p := range perms {
		if p == string(capability) {
			return true, nil
		}
	}
	return false, nil
}

func (s Service) rolePermissions(role string) ([]string, bool) {
	if s.Config == nil {
		return nil, false
	}
	return s.Config.RolePermissions(role)
}
