package jwtlocal

import (
	"context"
	"errors"
	"testing"
	"time"

	"medication-adherence/internal/ports/auth"

	"github.com/golang-jwt/jwt/v5"
)

const secret = "super-secret"

func sign(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"sub":   "u1",
		"email": "p@example.com",
		"aud":   "authenticated",
		"role":  "authenticated",
		"exp":   time.Now().Add(time.Hour).Unix(),
	}
}

func TestVerify_Valid(t *testing.T) {
	v, err := NewVerifier(secret, "authenticated")
	if err != nil {
		t.Fatal(err)
	}

	claims, err := v.Verify(context.Background(), sign(t, jwt.SigningMethodHS256, []byte(secret), validClaims()))
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if claims.UserID != "u1" || claims.Email != "p@example.com" || claims.Role != auth.RolePatient {
		t.Fatalf("unexpected claims %#v", claims)
	}

	c := validClaims()
	c["user_metadata"] = map[string]any{"role": "caretaker"}
	claims, err = v.Verify(context.Background(), sign(t, jwt.SigningMethodHS256, []byte(secret), c))
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if claims.Role != auth.RoleCaretaker {
		t.Fatalf("expected caretaker, got %q", claims.Role)
	}
}

func TestVerify_Rejects(t *testing.T) {
	v, _ := NewVerifier(secret, "authenticated")

	expired := validClaims()
	expired["exp"] = time.Now().Add(-time.Minute).Unix()

	noExp := validClaims()
	delete(noExp, "exp")

	wrongAud := validClaims()
	wrongAud["aud"] = "service_role"

	noSub := validClaims()
	delete(noSub, "sub")

	cases := map[string]string{
		"wrong secret": sign(t, jwt.SigningMethodHS256, []byte("other"), validClaims()),
		"wrong alg":    sign(t, jwt.SigningMethodHS512, []byte(secret), validClaims()),
		"expired":      sign(t, jwt.SigningMethodHS256, []byte(secret), expired),
		"no exp":       sign(t, jwt.SigningMethodHS256, []byte(secret), noExp),
		"audience":     sign(t, jwt.SigningMethodHS256, []byte(secret), wrongAud),
		"no sub":       sign(t, jwt.SigningMethodHS256, []byte(secret), noSub),
		"garbage":      "not.a.jwt",
		"empty":        "",
	}
	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := v.Verify(context.Background(), tok); !errors.Is(err, auth.ErrInvalidToken) {
				t.Fatalf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

func TestNewVerifier_RequiresSecret(t *testing.T) {
	if _, err := NewVerifier(" ", ""); !errors.Is(err, ErrMissingSecret) {
		t.Fatalf("expected ErrMissingSecret, got %v", err)
	}
}
