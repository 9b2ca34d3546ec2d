// Package authapi exposes the session authority over HTTP:
// login, heartbeat, logout. The token travels as an opaque bearer credential.
package authapi

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"sole/cmd/identity"
	"sole/cmd/internal/auth/session"
)

// MetricsRecorder observes endpoint outcomes. Optional.
type MetricsRecorder interface {
	RecordLogin(outcome string)
	RecordHeartbeat(outcome string)
}

type nopMetrics struct{}

func (nopMetrics) RecordLogin(string)     {}
func (nopMetrics) RecordHeartbeat(string) {}

// Handler wires HTTP auth endpoints to the identity verifier and the session
// authority.
type Handler struct {
	log *slog.Logger
	cfg Config

	verifier identity.Verifier
	sessions *session.Service
	sessCfg  session.Config

	metrics MetricsRecorder
}

// HandlerOption configures optional auth handler dependencies.
type HandlerOption func(*Handler)

// WithMetrics overrides the default no-op metrics recorder.
func WithMetrics(m MetricsRecorder) HandlerOption {
	return func(h *Handler) {
		if h == nil || m == nil {
			return
		}
		h.metrics = m
	}
}

// NewHandler constructs an auth Handler.
func NewHandler(log *slog.Logger, cfg Config, sessCfg session.Config, verifier identity.Verifier, sessions *session.Service, opts ...HandlerOption) (*Handler, error) {
	if log == nil {
		log = slog.Default()
	}
	if verifier == nil {
		return nil, errors.New("auth: nil verifier")
	}
	if sessions == nil {
		return nil, errors.New("auth: nil session service")
	}

	h := &Handler{
		log:      log,
		cfg:      cfg,
		verifier: verifier,
		sessions: sessions,
		sessCfg:  sessCfg,
		metrics:  nopMetrics{},
	}

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(h)
	}

	return h, nil
}

// Register wires auth routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("/auth/login", h.handleLogin)
	mux.HandleFunc("/auth/heartbeat", h.handleHeartbeat)
	mux.HandleFunc("/auth/logout", h.handleLogout)
}

// ---- handlers ----

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "username and password are required")
		return
	}

	ctx := r.Context()
	now := time.Now().UTC()

	principalID, err := h.verifier.VerifyPassword(ctx, username, req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			h.metrics.RecordLogin("rejected")
			writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid username or password")
			return
		}
		h.metrics.RecordLogin("unavailable")
		h.log.Error("login.verify.fail", "err", err)
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", "try again")
		return
	}

	created, err := h.sessions.Create(ctx, now, principalID, session.DeviceDescriptor{
		Browser:    strings.TrimSpace(req.Device.Browser),
		OS:         strings.TrimSpace(req.Device.OS),
		FormFactor: strings.TrimSpace(req.Device.FormFactor),
	}, clientIP(r, h.cfg.TrustProxy), strings.TrimSpace(r.UserAgent()))
	if err != nil {
		h.metrics.RecordLogin("unavailable")
		h.log.Error("login.create.fail", "err", err)
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", "try again")
		return
	}

	h.metrics.RecordLogin("ok")
	h.log.Info("auth.login", "principal_id", principalID, "session_id", created.SessionID)

	writeJSON(w, http.StatusOK, loginResponse{
		SessionID:        created.SessionID,
		Token:            created.Token,
		HeartbeatSeconds: int64(h.sessCfg.HeartbeatEvery / time.Second),
	})
}

func (h *Handler) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusBadRequest, "missing_token", "bearer token required")
		return
	}

	claims, err := h.sessions.Validate(r.Context(), time.Now().UTC(), token)
	if err != nil {
		if reason, ok := session.ReasonFromError(err); ok {
			h.metrics.RecordHeartbeat(string(reason))
			writeError(w, http.StatusUnauthorized, string(reason), "session rejected")
			return
		}
		// Infrastructure fault: the caller must not conflate this with a
		// rejection; it retries with backoff.
		h.metrics.RecordHeartbeat("unavailable")
		h.log.Error("heartbeat.fail", "err", err)
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", "try again")
		return
	}

	h.metrics.RecordHeartbeat("ok")
	writeJSON(w, http.StatusOK, heartbeatResponse{
		PrincipalID: claims.PrincipalID,
		SessionID:   claims.SessionID,
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	token := bearerToken(r)
	if token != "" {
		if err := h.sessions.Terminate(r.Context(), time.Now().UTC(), token); err != nil {
			// Logout never fails the caller; the client clears local state
			// regardless and the sweep closes stragglers.
			h.log.Error("logout.fail", "err", err)
		}
	}

	writeJSON(w, http.StatusOK, logoutResponse{OK: true})
}

// ---- helpers ----

func bearerToken(r *http.Request) string {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if len(auth) <= len(prefix) || !strings.EqualFold(auth[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(auth[len(prefix):])
}

func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); xff != "" {
			if first, _, ok := strings.Cut(xff, ","); ok {
				return strings.TrimSpace(first)
			}
			return xff
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
