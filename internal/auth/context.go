package auth

import "context"

// Identity is the caller resolved from a verified token.
type Identity struct {
	Role    Role
	Subject string
}

type identityKey struct{}

// WithIdentity attaches the caller to ctx for handlers and the audit log.
func WithIdentity(ctx context.Context, role Role, subject string) context.Context {
	return context.WithValue(ctx, identityKey{}, Identity{Role: role, Subject: subject})
}

// IdentityFromContext returns the caller and whether one was attached.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// RoleFromContext returns the caller's role, or "" for anonymous requests.
func RoleFromContext(ctx context.Context) Role {
	id, _ := IdentityFromContext(ctx)
	return id.Role
}

// SubjectFromContext returns the token subject, usually the operator login.
func SubjectFromContext(ctx context.Context) string {
	id, _ := IdentityFromContext(ctx)
	return id.Subject
}
