// Package auth resolves inbound credentials into a Principal, a Session and
// the account/org/project Scope that parameterizes every backend call.
package auth

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidScope indicates a scope that breaks the account > org > project
// hierarchy.
var ErrInvalidScope = errors.New("invalid scope")

// PrincipalKind identifies how a principal authenticated.
type PrincipalKind string

// Principal kinds
const (
	PrincipalAPIKey  PrincipalKind = "API_KEY"
	PrincipalUser    PrincipalKind = "USER"
	PrincipalService PrincipalKind = "SERVICE"
)

// Principal is the resolved identity of a caller. It is built once per
// request and never modified afterwards.
type Principal struct {
	SubjectID   string
	AccountID   string
	OrgID       string
	ProjectID   string
	DisplayName string
	Kind        PrincipalKind
}

// Scope is the account/org/project hierarchy a backend call runs in.
// A project implies an org and an org implies an account.
type Scope struct {
	AccountID string
	OrgID     string
	ProjectID string
}

// NewScope builds a validated Scope.
func NewScope(accountID, orgID, projectID string) (Scope, error) {
	s := Scope{AccountID: accountID, OrgID: orgID, ProjectID: projectID}
	if err := s.Validate(); err != nil {
		return Scope{}, err
	}
	return s, nil
}

// Validate checks the hierarchy invariant.
func (s Scope) Validate() error {
	if s.AccountID == "" {
		return fmt.Errorf("%w: account id is required", ErrInvalidScope)
	}
	if s.ProjectID != "" && s.OrgID == "" {
		return fmt.Errorf("%w: project %q requires an org id", ErrInvalidScope, s.ProjectID)
	}
	return nil
}

// WithOverrides returns a copy of s with the non-empty org and project
// replaced. The result is validated.
func (s Scope) WithOverrides(orgID, projectID string) (Scope, error) {
	if orgID != "" {
		if orgID != s.OrgID {
			// a project never carries over to a different org
			s.ProjectID = ""
		}
		s.OrgID = orgID
	}
	if projectID != "" {
		s.ProjectID = projectID
	}
	return NewScope(s.AccountID, s.OrgID, s.ProjectID)
}

// Session binds a principal to the credential it presented.
type Session struct {
	Principal  Principal
	Credential string
	// ExpiresAt is zero for credentials that never expire.
	ExpiresAt time.Time
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// Scope derives the request scope from the principal. Org and project the
// principal does not carry are taken from the configured defaults; the
// default project is only applied inside the default org.
func (s *Session) Scope(defaultOrgID, defaultProjectID string) (Scope, error) {
	orgID := s.Principal.OrgID
	projectID := s.Principal.ProjectID
	if orgID == "" {
		orgID = defaultOrgID
	}
	if projectID == "" && orgID == defaultOrgID {
		projectID = defaultProjectID
	}
	return NewScope(s.Principal.AccountID, orgID, projectID)
}
