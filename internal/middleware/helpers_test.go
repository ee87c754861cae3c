package middleware

import (
	"context"

	"github.com/carebridge/securitycore/internal/auth"
	"github.com/carebridge/securitycore/internal/models"
)

func withClaims(ctx context.Context, accountID string) context.Context {
	return context.WithValue(ctx, auth.AccountContextKey, &models.TokenClaims{AccountID: accountID})
}
