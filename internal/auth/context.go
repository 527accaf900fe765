package auth

import (
	"context"

	"github.com/surpresalabs/surpresa/internal/store"
)

type contextKey string

const contextKeyUser contextKey = "user"

func WithUser(ctx context.Context, user *store.User) context.Context {
	return context.WithValue(ctx, contextKeyUser, user)
}

// UserFromContext returns the authenticated user, if any. Handlers mounted
// behind RequireSession may assume ok; public handlers must check it.
func UserFromContext(ctx context.Context) (*store.User, bool) {
	u, ok := ctx.Value(contextKeyUser).(*store.User)
	return u, ok && u != nil
}
