// Package middleware provides HTTP middleware for the SCP front server.
package middleware

import (
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nfmesh/scp/internal/logger"
	"github.com/nfmesh/scp/pkg/api/handlers"
)

// OAuth2Options configures bearer-token validation.
type OAuth2Options struct {
	// Issuer is the expected iss claim.
	Issuer string

	// Audience is the set of accepted aud values; any match passes.
	Audience []string

	// RequiredScope must appear in the space-separated scope claim
	// when set.
	RequiredScope string

	// Secret is the HMAC key tokens are signed with.
	Secret []byte
}

// scopedClaims extends the registered claims with the OAuth2 scope.
type scopedClaims struct {
	jwt.RegisteredClaims
	Scope string `json:"scope,omitempty"`
}

// OAuth2 validates the Authorization bearer token on every request it
// wraps. Signature, expiry, issuer, audience, and scope are checked;
// failures produce problem responses without leaking validation detail.
func OAuth2(opts OAuth2Options) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := extractBearerToken(r)
			if !ok {
				handlers.Unauthorized(w, "missing bearer token")
				return
			}

			claims, err := validateToken(token, opts)
			if err != nil {
				logger.Debug("token validation failed", logger.KeyError, err.Error())
				handlers.Unauthorized(w, "invalid bearer token")
				return
			}

			if opts.RequiredScope != "" && !hasScope(claims.Scope, opts.RequiredScope) {
				handlers.Forbidden(w, "token lacks required scope")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// extractBearerToken pulls the token out of the Authorization header.
func extractBearerToken(r *http.Request) (string, bool) {
	authorization := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(authorization) <= len(prefix) || !strings.EqualFold(authorization[:len(prefix)], prefix) {
		return "", false
	}
	return authorization[len(prefix):], true
}

func validateToken(tokenString string, opts OAuth2Options) (*scopedClaims, error) {
	claims := &scopedClaims{}
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
	}
	if opts.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(opts.Issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return opts.Secret, nil
	}, parserOpts...)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("token is not valid")
	}

	if len(opts.Audience) > 0 && !audienceMatches(claims.Audience, opts.Audience) {
		return nil, errors.New("audience mismatch")
	}

	return claims, nil
}

func audienceMatches(tokenAudience jwt.ClaimStrings, accepted []string) bool {
	for _, aud := range tokenAudience {
		if slices.Contains(accepted, aud) {
			return true
		}
	}
	return false
}

func hasScope(scopeClaim, required string) bool {
	return slices.Contains(strings.Fields(scopeClaim), required)
}
