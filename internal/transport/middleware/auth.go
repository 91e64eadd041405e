package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/frahmantamala/loan-servicing/internal"
)

// ActorClaims is the token payload the ledger cares about: who is acting.
// Every mutation records this identity in history rows and audit columns.
type ActorClaims struct {
	Name string `json:"name"`
	jwt.RegisteredClaims
}

// ActorAuth validates the bearer token and stores the actor identity in the
// request context. Handlers refuse to mutate without an actor.
func ActorAuth(signingKey string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearerToken(r)
			if token == "" {
				logger.Error("auth middleware: missing authorization token", "path", r.URL.Path)
				writeUnauthorized(w, "missing authorization token")
				return
			}

			actor, err := validateToken(token, signingKey)
			if err != nil {
				logger.Error("token validation failed", "error", err, "path", r.URL.Path)
				writeUnauthorized(w, "invalid token")
				return
			}

			ctx := internal.ContextWithActor(r.Context(), actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func extractBearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

func validateToken(tokenString, signingKey string) (string, error) {
	claims := &ActorClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(signingKey), nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", errors.New("token is not valid")
	}

	actor := claims.Name
	if actor == "" {
		actor = claims.Subject
	}
	if actor == "" {
		return "", errors.New("token carries no actor identity")
	}
	return actor, nil
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"` + message + `"}`))
}
