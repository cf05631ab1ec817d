package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/carelink/clinic-scheduling/internal/schedule"
)

const requestorKey contextKey = "requestor"

type userClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// AuthMiddleware enforces an HMAC-signed JWT whose subject is the user
// profile ID. The role claim drives read scoping; unknown roles fall back to
// the least privileged one.
func AuthMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				writeError(w, http.StatusUnauthorized, "auth_disabled", "authentication is not configured")
				return
			}

			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				writeError(w, http.StatusUnauthorized, "missing_token", "Authorization header required")
				return
			}

			claims := userClaims{}
			token, err := jwt.ParseWithClaims(strings.TrimPrefix(auth, "Bearer "), &claims, func(token *jwt.Token) (any, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				writeError(w, http.StatusUnauthorized, "invalid_token", "token is invalid or expired")
				return
			}

			userID, err := uuid.Parse(claims.Subject)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid_token", "subject must be a user ID")
				return
			}

			requestor := schedule.Requestor{ID: userID, Role: parseRole(claims.Role)}
			ctx := context.WithValue(r.Context(), requestorKey, requestor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func parseRole(s string) schedule.Role {
	switch schedule.Role(s) {
	case schedule.RoleAdmin:
		return schedule.RoleAdmin
	case schedule.RoleProvider:
		return schedule.RoleProvider
	}
	return schedule.RolePatient
}

// RequestorFromContext returns the authenticated caller, if any.
func RequestorFromContext(ctx context.Context) (schedule.Requestor, bool) {
	requestor, ok := ctx.Value(requestorKey).(schedule.Requestor)
	return requestor, ok
}
