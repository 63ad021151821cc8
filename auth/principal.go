package auth

import (
	"context"

	"github.com/kevinaaaquil/writeups/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type contextKey string

const (
	principalKey contextKey = "principal"
	tokenKey     contextKey = "token"
)

// Principal is the authenticated caller, either an admin or a user.
type Principal struct {
	ID    primitive.ObjectID `json:"id"`
	Role  string             `json:"role"`
	Email string             `json:"email"`
	Name  string             `json:"name,omitempty"`
}

func (p Principal) IsAdmin() bool { return p.Role == models.RoleAdmin }

func WithPrincipal(ctx context.Context, p Principal, token string) context.Context {
	ctx = context.WithValue(ctx, principalKey, p)
	return context.WithValue(ctx, tokenKey, token)
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}

func TokenFromContext(ctx context.Context) string {
	t, _ := ctx.Value(tokenKey).(string)
	return t
}
