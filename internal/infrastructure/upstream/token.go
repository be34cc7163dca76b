package upstream

import (
	"context"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type tokenKey struct{}

// ContextWithToken attaches a caller's bearer token so it is forwarded
// instead of the configured one.
func ContextWithToken(ctx context.Context, token string) context.Context {
	token = normalizeToken(token)
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFromContext returns the forwarded bearer token, if any
func TokenFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if tok, ok := ctx.Value(tokenKey{}).(string); ok {
		return tok
	}
	return ""
}

func normalizeToken(token string) string {
	token = strings.TrimSpace(token)
	if len(token) > 7 && strings.EqualFold(token[:7], "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	return token
}

// checkExpiry reads the exp claim without verifying the signature; the
// upstream API owns the signing key. Tokens that are not JWTs pass.
func checkExpiry(token string, now time.Time) error {
	if token == "" {
		return nil
	}
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return nil
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil
	}
	if !now.Before(exp.Time) {
		return ErrTokenExpired
	}
	return nil
}
