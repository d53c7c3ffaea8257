package middleware

import (
	"context"
	"errors"

	"github.com/Dosada05/tournament-ops/services"
)

var ErrNoClaims = errors.New("organizer claims not found in context")

func GetClaimsFromContext(ctx context.Context) (*services.OrganizerClaims, error) {
	claims, ok := ctx.Value(claimsContextKey).(*services.OrganizerClaims)
	if !ok || claims == nil {
		return nil, ErrNoClaims
	}
	return claims, nil
}

func GetRoleFromContext(ctx context.Context) (string, error) {
	claims, err := GetClaimsFromContext(ctx)
	if err != nil {
		return "", err
	}
	if claims.Role == "" {
		return "", errors.New("missing 'role' claim in token")
	}
	return claims.Role, nil
}

// WithClaims returns a copy of ctx carrying claims, for handlers exercised without a token.
func WithClaims(ctx context.Context, claims *services.OrganizerClaims) context.Context {
	return context.WithValue(ctx, claimsContextKey, claims)
}
