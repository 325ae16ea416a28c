package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"simantu.org/internal/audit"
	"simantu.org/internal/auth"
	"simantu.org/internal/obs"
)

const serviceName = "simantu-api"

// ReadinessChecker reports whether backing services can take traffic.
type ReadinessChecker interface {
	Check(ctx context.Context) error
}

// Options configures the HTTP API.
type Options struct {
	Auth        *auth.Service
	Ready       ReadinessChecker
	Version     string
	Env         string
	CORSOrigins []string
	RateBurst   int
	RatePerSec  float64

	// TrustedProxies may set X-Forwarded-For; other peers are keyed on RemoteAddr.
	TrustedProxies []netip.Prefix
}

// API: HTTP слой.
type API struct {
	mux         *http.ServeMux
	auth        *auth.Service
	ready       ReadinessChecker
	version     string
	env         string
	started     time.Time
	corsOrigins []string
	rateBurst   int
	ratePerSec  float64
	proxies     []netip.Prefix
}

func New(opts Options) *API {
	a := &API{
		mux:         http.NewServeMux(),
		auth:        opts.Auth,
		ready:       opts.Ready,
		version:     opts.Version,
		env:         opts.Env,
		started:     time.Now(),
		corsOrigins: opts.CORSOrigins,
		rateBurst:   opts.RateBurst,
		ratePerSec:  opts.RatePerSec,
		proxies:     opts.TrustedProxies,
	}
	if a.env == "" {
		a.env = "development"
	}
	if a.rateBurst <= 0 {
		a.rateBurst = 40
	}
	if a.ratePerSec <= 0 {
		a.ratePerSec = 20
	}

	a.mux.HandleFunc("/api/auth/login", a.handleLogin)
	a.mux.HandleFunc("/api/auth/me", a.handleMe)

	a.mux.HandleFunc("/api/users", a.handleUsersCollection)
	a.mux.HandleFunc("/api/users/{id}", a.handleUserResource)
	a.mux.HandleFunc("/api/roles", a.handleRolesCollection)
	a.mux.HandleFunc("/api/roles/{id}", a.handleRoleResource)

	a.mux.HandleFunc("/api/health", a.handleHealth)
	a.mux.HandleFunc("/api/health/detailed", a.handleHealthDetailed)
	a.mux.HandleFunc("/api/health/ready", a.handleReady)
	a.mux.HandleFunc("/api/health/live", a.handleLive)

	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "resource not found")
	})

	return a
}

// Handler returns the mux wrapped in the full middleware chain.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withAuth(h)
	h = MaxBodyBytes(h, 1<<20)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = CORS(h, a.corsOrigins)
	h = SecurityHeaders(h)
	h = Recover(h)
	h = LoggingJSON(h)
	h = ClientIP(h, a.proxies)
	h = RequestID(h)
	return obs.Instrument(h)
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

// RequestIDFromContext returns the id assigned by the RequestID middleware.
func RequestIDFromContext(ctx context.Context) string {
	return audit.RequestIDFromContext(ctx)
}

// handleServiceError maps auth sentinels onto HTTP statuses; resource names
// the entity in 404 messages.
func handleServiceError(w http.ResponseWriter, r *http.Request, resource string, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrUnauthorized), errors.Is(err, auth.ErrInvalidToken):
		writeError(w, r, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, auth.ErrForbidden):
		writeError(w, r, http.StatusForbidden, "forbidden")
	case errors.Is(err, auth.ErrNotFound):
		writeError(w, r, http.StatusNotFound, resource+" not found")
	case errors.Is(err, auth.ErrConflict):
		writeError(w, r, http.StatusConflict, err.Error())
	default:
		obs.Error("request failed", map[string]any{
			"request_id": RequestIDFromContext(r.Context()),
			"path":       r.URL.Path,
			"error":      err.Error(),
		})
		writeError(w, r, http.StatusInternalServerError, "server error")
	}
}

func (a *API) audit(ctx context.Context, event string, fields map[string]any) {
	_ = audit.LogEvent(ctx, event, fields)
}
