package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/harness/mcp-server/internal/rpcerr"
)

// Claims is the payload of an internal bearer token.
type Claims struct {
	jwt.RegisteredClaims
	Name      string        `json:"name,omitempty"`
	Type      PrincipalKind `json:"type,omitempty"`
	AccountID string        `json:"accountId"`
	OrgID     string        `json:"orgId,omitempty"`
	ProjectID string        `json:"projectId,omitempty"`
}

// BearerResolver verifies HS256 tokens signed with a shared secret.
type BearerResolver struct {
	secret []byte
	now    func() time.Time
}

// BearerOption configures a BearerResolver.
type BearerOption func(*BearerResolver)

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) BearerOption {
	return func(r *BearerResolver) {
		r.now = now
	}
}

// NewBearerResolver creates a resolver for tokens signed with secret.
func NewBearerResolver(secret []byte, opts ...BearerOption) *BearerResolver {
	r := &BearerResolver{secret: secret, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve implements Resolver.
func (r *BearerResolver) Resolve(credential string) (*Session, error) {
	if credential == "" {
		return nil, rpcerr.New(rpcerr.InvalidCredential, "bearer token is empty")
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(credential, claims, func(token *jwt.Token) (any, error) {
		return r.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(r.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, rpcerr.Wrap(rpcerr.Expired, err, "bearer token expired")
		}
		return nil, rpcerr.Wrap(rpcerr.InvalidCredential, err, "invalid bearer token")
	}

	if claims.Subject == "" {
		return nil, rpcerr.New(rpcerr.InvalidCredential, "bearer token is missing the sub claim")
	}
	if _, err := NewScope(claims.AccountID, claims.OrgID, claims.ProjectID); err != nil {
		return nil, rpcerr.Wrap(rpcerr.InvalidCredential, err, "bearer token carries an invalid scope")
	}

	kind := claims.Type
	if kind != PrincipalUser {
		kind = PrincipalService
	}

	session := &Session{
		Principal: Principal{
			SubjectID:   claims.Subject,
			AccountID:   claims.AccountID,
			OrgID:       claims.OrgID,
			ProjectID:   claims.ProjectID,
			DisplayName: claims.Name,
			Kind:        kind,
		},
		Credential: credential,
	}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time
	}
	return session, nil
}

// Issue mints a token for principal valid for ttl. A non-positive ttl
// produces a token that is already expired.
func (r *BearerResolver) Issue(principal Principal, ttl time.Duration) (string, error) {
	if _, err := NewScope(principal.AccountID, principal.OrgID, principal.ProjectID); err != nil {
		return "", err
	}

	now := r.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   principal.SubjectID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Name:      principal.DisplayName,
		Type:      principal.Kind,
		AccountID: principal.AccountID,
		OrgID:     principal.OrgID,
		ProjectID: principal.ProjectID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(r.secret)
}
