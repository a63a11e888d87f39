package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/reclaimai/reclaim/internal/domain/auth"
)

// BearerJWT verifies an HS256 access token signed with secret and puts the
// subject and the raw token into the request context. Preflight requests
// pass through untouched.
func BearerJWT(secret []byte) func(http.Handler) http.Handler {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			if header == "" {
				writeAuthError(w, "missing Authorization header")
				return
			}
			raw, ok := strings.CutPrefix(header, "Bearer ")
			raw = strings.TrimSpace(raw)
			if !ok || raw == "" {
				writeAuthError(w, "invalid Authorization header format")
				return
			}

			userID, err := Subject(parser, raw, secret)
			if err != nil {
				writeAuthError(w, "invalid access token")
				return
			}

			ctx := auth.WithUserID(r.Context(), userID)
			ctx = auth.WithAccessToken(ctx, raw)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

var errNoSubject = errors.New("token has no subject")

// Subject verifies raw and returns its sub claim.
func Subject(parser *jwt.Parser, raw string, secret []byte) (string, error) {
	claims := jwt.RegisteredClaims{}
	_, err := parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", errNoSubject
	}
	return claims.Subject, nil
}

func writeAuthError(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
