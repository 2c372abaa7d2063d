package auth

import "context"

type credentialKey struct{}

type sessionKey struct{}

// WithCredential attaches the raw inbound credential. Transports call this;
// the dispatcher resolves it only when a tool is invoked.
func WithCredential(ctx context.Context, credential string) context.Context {
	return context.WithValue(ctx, credentialKey{}, credential)
}

// CredentialFromContext returns the raw credential attached by the transport.
func CredentialFromContext(ctx context.Context) (string, bool) {
	credential, ok := ctx.Value(credentialKey{}).(string)
	return credential, ok && credential != ""
}

// WithSession attaches the resolved session for the backend executor.
func WithSession(ctx context.Context, session *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, session)
}

// SessionFromContext returns the resolved session, or nil if not present.
func SessionFromContext(ctx context.Context) *Session {
	session, _ := ctx.Value(sessionKey{}).(*Session)
	return session
}
