package httpapi

import (
	"errors"
	"net/http"
	"time"

	"simantu.org/internal/audit"
	"simantu.org/internal/auth"
	"simantu.org/internal/obs"
)

type loginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      auth.Profile `json:"user"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if a.auth == nil {
		writeError(w, r, http.StatusServiceUnavailable, "auth service unavailable")
		return
	}

	var creds auth.Credentials
	if err := decodeJSON(w, r, &creds); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid input data")
		return
	}

	res, principal, err := a.auth.Login(r.Context(), creds)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidInput):
			obs.ObserveLogin("invalid_input")
			writeError(w, r, http.StatusBadRequest, err.Error())
		case errors.Is(err, auth.ErrUnauthorized):
			obs.ObserveLogin("invalid")
			a.audit(r.Context(), audit.EventLoginFailed, map[string]any{
				"email":     creds.Email,
				"remote_ip": clientIP(r),
			})
			writeError(w, r, http.StatusUnauthorized, "invalid credentials")
		default:
			obs.ObserveLogin("error")
			handleServiceError(w, r, "account", err)
		}
		return
	}

	obs.ObserveLogin("success")
	ctx := auth.ContextWithPrincipal(r.Context(), principal)
	a.audit(ctx, audit.EventLoginSucceeded, map[string]any{
		"email":      principal.Account.Email,
		"expires_at": res.ExpiresAt.Format(time.RFC3339),
	})

	writeJSON(w, http.StatusOK, loginResponse{
		Token:     res.Token,
		ExpiresAt: res.ExpiresAt,
		User:      res.Profile,
	})
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	writeJSON(w, http.StatusOK, principal.Profile())
}
