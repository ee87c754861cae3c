package models

import "github.com/golang-jwt/jwt/v5"

// TokenClaims are the JWT claims carried by access tokens issued to
// API clients. Browser sessions use opaque session tokens instead.
type TokenClaims struct {
	AccountID string `json:"sub_id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}
