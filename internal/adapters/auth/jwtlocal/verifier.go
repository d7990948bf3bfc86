package jwtlocal

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"medication-adherence/internal/ports/auth"

	"github.com/golang-jwt/jwt/v5"
)

var ErrMissingSecret = errors.New("jwt secret is empty")

// Verifier valida localmente los access tokens HS256 firmados con el secreto
// del proyecto. Evita un round-trip al proveedor de identidad por request.
type Verifier struct {
	secret []byte
	parser *jwt.Parser
}

type tokenClaims struct {
	Email        string         `json:"email"`
	Role         string         `json:"role"`
	UserMetadata map[string]any `json:"user_metadata"`
	jwt.RegisteredClaims
}

func NewVerifier(secret, audience string) (*Verifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrMissingSecret
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if a := strings.TrimSpace(audience); a != "" {
		opts = append(opts, jwt.WithAudience(a))
	}
	return &Verifier{
		secret: []byte(secret),
		parser: jwt.NewParser(opts...),
	}, nil
}

func (v *Verifier) Verify(_ context.Context, token string) (auth.Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return auth.Claims{}, auth.ErrInvalidToken
	}

	var tc tokenClaims
	_, err := v.parser.ParseWithClaims(token, &tc, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		return auth.Claims{}, fmt.Errorf("%w: %w", auth.ErrInvalidToken, err)
	}

	sub := strings.TrimSpace(tc.Subject)
	if sub == "" {
		return auth.Claims{}, fmt.Errorf("%w: missing sub", auth.ErrInvalidToken)
	}

	return auth.Claims{
		UserID: sub,
		Email:  strings.TrimSpace(tc.Email),
		Role:   role(tc),
	}, nil
}

// user_metadata.role manda; "role" de primer nivel solo si ya es un rol de la app.
func role(tc tokenClaims) auth.Role {
	raw := ""
	if s, ok := tc.UserMetadata["role"].(string); ok {
		raw = s
	} else {
		raw = tc.Role
	}
	if auth.Role(strings.ToLower(strings.TrimSpace(raw))) == auth.RoleCaretaker {
		return auth.RoleCaretaker
	}
	return auth.RolePatient
}
