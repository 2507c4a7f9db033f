package handlers

import (
	"context"
	"net/http"

	"github.com/dkotenko/finance-tracker/internal/jwt"
)

// Tokener defines the token methods protected handlers need to resolve the
// authenticated owner.
type Tokener interface {
	GetTokenFromRequest(ctx context.Context, r *http.Request) (string, error)
	GetClaims(ctx context.Context, tokenString string) (*jwt.Claims, error)
}
