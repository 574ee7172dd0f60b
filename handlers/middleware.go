package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/hlog"

	"github.com/CrowderSoup/admin-panel/services"
)

// SessionCookie carries the signed session token.
const SessionCookie = "admin.sid"

type contextKey string

const sessionContextKey contextKey = "session"

type AuthMiddleware struct {
	authService *services.AuthService
}

func NewAuthMiddleware(authService *services.AuthService) *AuthMiddleware {
	return &AuthMiddleware{
		authService: authService,
	}
}

// tokenFrom reads the session cookie, falling back to a Bearer header.
func tokenFrom(r *http.Request) string {
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return c.Value
	}
	authParts := strings.Split(r.Header.Get("Authorization"), " ")
	if len(authParts) == 2 && authParts[0] == "Bearer" {
		return authParts[1]
	}
	return ""
}

func (m *AuthMiddleware) session(r *http.Request) (services.Session, bool) {
	token := tokenFrom(r)
	if token == "" {
		return services.Session{}, false
	}
	sess, err := m.authService.VerifyJWT(token)
	if err != nil {
		hlog.FromRequest(r).Debug().Err(err).Msg("Rejected session token")
		return services.Session{}, false
	}
	return sess, true
}

func (m *AuthMiddleware) Auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := m.session(r)
		if !ok {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "unauthorized"})
			return
		}
		ctx := context.WithValue(r.Context(), sessionContextKey, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionFrom(ctx context.Context) (services.Session, bool) {
	sess, ok := ctx.Value(sessionContextKey).(services.Session)
	return sess, ok
}
