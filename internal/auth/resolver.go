package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/harness/mcp-server/internal/rpcerr"
)

// Deployment modes. Each mode activates exactly one resolution strategy.
const (
	ModeExternal = "external"
	ModeInternal = "internal"
)

// Resolver turns an inbound credential into a Session. Failures are
// *rpcerr.Error of kind InvalidCredential or Expired.
//
//go:generate mockgen -destination=mocks/mock_resolver.go -package=mocks github.com/harness/mcp-server/internal/auth Resolver
type Resolver interface {
	Resolve(credential string) (*Session, error)
}

// NewResolver returns the resolver for a deployment mode: API keys for
// external deployments, shared-secret bearer tokens for internal ones.
func NewResolver(mode string, secret []byte) (Resolver, error) {
	switch mode {
	case ModeExternal, "":
		return APIKeyResolver{}, nil
	case ModeInternal:
		if len(secret) == 0 {
			return nil, errors.New("internal mode requires a bearer secret")
		}
		return NewBearerResolver(secret), nil
	default:
		return nil, fmt.Errorf("unknown auth mode: %s", mode)
	}
}

// APIKeyResolver resolves dot-delimited API keys such as
// "pat.<account>.<token id>.<secret>". The account is the second segment.
type APIKeyResolver struct{}

// Resolve implements Resolver.
func (APIKeyResolver) Resolve(credential string) (*Session, error) {
	accountID, err := AccountIDFromAPIKey(credential)
	if err != nil {
		return nil, err
	}

	segments := strings.Split(credential, ".")
	subject := segments[0]
	if len(segments) > 2 && segments[2] != "" {
		subject = segments[2]
	}

	return &Session{
		Principal: Principal{
			SubjectID: subject,
			AccountID: accountID,
			Kind:      PrincipalAPIKey,
		},
		Credential: credential,
	}, nil
}

// AccountIDFromAPIKey extracts the account identifier from an API key.
func AccountIDFromAPIKey(apiKey string) (string, error) {
	if apiKey == "" {
		return "", rpcerr.New(rpcerr.InvalidCredential, "api key is empty")
	}
	segments := strings.Split(apiKey, ".")
	if len(segments) < 2 {
		return "", rpcerr.New(rpcerr.InvalidCredential, "api key must have at least two dot-separated segments")
	}
	if segments[1] == "" {
		return "", rpcerr.New(rpcerr.InvalidCredential, "api key has an empty account segment")
	}
	return segments[1], nil
}
