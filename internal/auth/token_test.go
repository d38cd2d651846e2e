package auth

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signToken(t *testing.T, secret string, claims Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestValidateToken_Valid(t *testing.T) {
	v := NewValidator("test-secret")
	tok := signToken(t, "test-secret", Claims{
		UserID: "42",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	userID, err := v.ValidateToken(tok)
	if err != nil {
		t.Fatalf("ValidateToken returned error: %v", err)
	}
	if userID != 42 {
		t.Fatalf("expected userID 42, got %d", userID)
	}
}

func TestValidateToken_WrongSecret(t *testing.T) {
	v := NewValidator("test-secret")
	tok := signToken(t, "other-secret", Claims{UserID: "42"})

	if _, err := v.ValidateToken(tok); err == nil {
		t.Fatal("expected error for token signed with wrong secret")
	}
}

func TestValidateToken_Expired(t *testing.T) {
	v := NewValidator("test-secret")
	tok := signToken(t, "test-secret", Claims{
		UserID: "42",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})

	if _, err := v.ValidateToken(tok); err == nil {
		t.Fatal("expected error for expired token")
	}
}

func TestValidateToken_NonNumericUserID(t *testing.T) {
	v := NewValidator("test-secret")
	tok := signToken(t, "test-secret", Claims{UserID: "not-a-number"})

	if _, err := v.ValidateToken(tok); err == nil {
		t.Fatal("expected error for non-numeric user_id claim")
	}
}

func TestValidateToken_WrongSigningMethod(t *testing.T) {
	v := NewValidator("test-secret")
	token := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "42"})
	tok, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none-alg token: %v", err)
	}

	if _, err := v.ValidateToken(tok); err == nil {
		t.Fatal("expected error for alg=none token")
	}
}

func TestAuthenticate_MissingToken(t *testing.T) {
	v := NewValidator("test-secret")
	r := &http.Request{URL: &url.URL{}}

	if _, ok := v.Authenticate(r); ok {
		t.Fatal("expected Authenticate to reject a request with no token param")
	}
}

func TestAuthenticate_ValidToken(t *testing.T) {
	v := NewValidator("test-secret")
	tok := signToken(t, "test-secret", Claims{UserID: "7"})

	r := &http.Request{URL: &url.URL{RawQuery: url.Values{"token": {tok}}.Encode()}}

	userID, ok := v.Authenticate(r)
	if !ok {
		t.Fatal("expected Authenticate to accept a valid token")
	}
	if userID != 7 {
		t.Fatalf("expected userID 7, got %d", userID)
	}
}
