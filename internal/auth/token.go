// Package auth validates the JWT carried on the WebSocket upgrade request's
// token query parameter (§6), grounded on the voice service's room-token
// validator. Anonymous (missing or invalid token) connections are rejected
// by both route types.
package auth

import (
	"errors"
	"net/http"
	"os"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the JWT payload issued for a matchmaking/signaling connection.
// UserID is carried as a string claim (matching the voice service's own
// RoomTokenClaims shape) and parsed to int64 for use as the domain's user id.
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// Validator validates connection tokens against a single HMAC secret.
type Validator struct {
	secret []byte
}

// NewValidator creates a Validator using the given secret.
func NewValidator(secret string) *Validator {
	return &Validator{secret: []byte(secret)}
}

// NewValidatorFromEnv reads JWT_SECRET, falling back to a well-known
// development default when unset.
func NewValidatorFromEnv() *Validator {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "your-secret-key"
	}
	return NewValidator(secret)
}

// ValidateToken parses and validates a token string, returning the user id
// carried in its user_id claim.
func (v *Validator) ValidateToken(tokenString string) (int64, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("auth: unexpected signing method")
		}
		return v.secret, nil
	})
	if err != nil {
		return 0, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return 0, errors.New("auth: invalid token claims")
	}

	userID, err := strconv.ParseInt(claims.UserID, 10, 64)
	if err != nil {
		return 0, errors.New("auth: user_id claim is not numeric")
	}
	return userID, nil
}

// Authenticate implements ws.Authenticator: it reads the token query
// parameter from the upgrade request and validates it.
func (v *Validator) Authenticate(r *http.Request) (int64, bool) {
	token := r.URL.Query().Get("token")
	if token == "" {
		return 0, false
	}
	userID, err := v.ValidateToken(token)
	if err != nil {
		return 0, false
	}
	return userID, true
}
