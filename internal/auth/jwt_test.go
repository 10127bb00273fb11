package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func TestJWTRoundTrip(t *testing.T) {
	id := uuid.New()
	tok, err := GenerateJWT("secret", id, "arbitrator", time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	claims, err := ParseJWT("secret", tok)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != id {
		t.Errorf("user id = %s, want %s", claims.UserID, id)
	}
	if claims.Role != "arbitrator" {
		t.Errorf("role = %s, want arbitrator", claims.Role)
	}
}

func TestJWTRejectsWrongSecret(t *testing.T) {
	tok, err := GenerateJWT("secret", uuid.New(), "user", time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := ParseJWT("other", tok); err == nil {
		t.Error("expected error for wrong secret")
	}
}

func TestJWTRejectsExpired(t *testing.T) {
	claims := Claims{
		UserID: uuid.New(),
		Role:   "user",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := ParseJWT("secret", tok); err == nil {
		t.Error("expected error for expired token")
	}
}
