// ABOUTME: Request-scoped identity propagation for HTTP handlers
// ABOUTME: Provides WithUser/UserFromContext; handlers pass the id on explicitly

package auth

import "context"

// userIDKey is the key type for storing the authenticated user id in a context.
type userIDKey struct{}

// WithUser returns a new context with the authenticated user id attached.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// UserFromContext retrieves the authenticated user id, returning "" if not
// present. The chat core never calls this: transports extract the id at the
// boundary and pass it as an explicit parameter.
func UserFromContext(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey{}).(string)
	return id
}
