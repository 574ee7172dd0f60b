package handlers

import (
	"net/http"
	"time"

	"github.com/rs/zerolog/hlog"

	"github.com/CrowderSoup/admin-panel/services"
)

// AuthHandler handles login, logout and session lookup
type AuthHandler struct {
	authService *services.AuthService
	middleware  *AuthMiddleware
}

func NewAuthHandler(authService *services.AuthService, middleware *AuthMiddleware) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		middleware:  middleware,
	}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Username == "" || req.Password == "" {
		badRequest(w, "username and password are required")
		return
	}

	user, token, err := h.authService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(h.authService.TTL() / time.Second),
	})
	hlog.FromRequest(r).Info().Str("username", user.Username).Msg("User logged in")
	writeOK(w, map[string]any{"username": user.Username, "token": token, "must_change_password": user.MustChangePassword})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
	writeOK(w, nil)
}

// Session reports whether the request carries a valid session. It never
// fails with 401.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.middleware.session(r)
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"authenticated": true, "username": sess.Username})
}
