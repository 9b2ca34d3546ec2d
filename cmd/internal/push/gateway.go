package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"sole/cmd/internal/auth/session"

	"github.com/coder/websocket"
)

const (
	wsSubprotocolV1 = "sole.push.v1"

	wsDefaultWriteTimeout = 5 * time.Second
	wsDefaultHelloTimeout = 10 * time.Second
	wsDefaultPingEvery    = 30 * time.Second
	wsMaxPingFailures     = 3

	wsMaxHelloBytes = 8 << 10

	// Security defaults:
	// - Origin is required by default.
	// - Only localhost is allowed by default (secure-by-default for dev).
	wsDefaultOriginRequired = true
	wsDefaultAllowedOrigins = "http://localhost,http://127.0.0.1"
)

// Validator is the slice of the session service the gateway needs.
type Validator interface {
	Validate(ctx context.Context, now time.Time, token string) (session.Claims, error)
}

// envelope is the wire format of the push channel. The client sends exactly
// one hello carrying its token; the server answers with hello.ack and then
// streams session.status events until the session closes.
type envelope struct {
	Type      string    `json:"type"`
	Token     string    `json:"token,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	Status    string    `json:"status,omitempty"`
	At        time.Time `json:"at,omitempty"`
	Code      string    `json:"code,omitempty"`
	Message   string    `json:"message,omitempty"`
}

const (
	typeHello    = "hello"
	typeHelloAck = "hello.ack"
	typeStatus   = "session.status"
	typeError    = "error"
)

// Gateway is the WebSocket entrypoint for the revocation propagation channel.
//
// It enforces origin policy and subprotocol selection, authenticates the
// connection by validating the session token, subscribes the connection to
// the bus for that session, and closes the socket after delivering a terminal
// status event.
type Gateway struct {
	log       *slog.Logger
	bus       *Bus
	validator Validator

	originRequired bool
	allowedOrigins []string

	// Derived for websocket.Accept origin checks.
	// Accept() authorizes same-host origins by default, but for cross-origin it requires OriginPatterns.
	originPatterns []string

	writeTimeout time.Duration
	helloTimeout time.Duration
	pingEvery    time.Duration
}

// NewGateway constructs a gateway with secure defaults.
func NewGateway(log *slog.Logger, bus *Bus, validator Validator) *Gateway {
	if log == nil {
		log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	if bus == nil {
		bus = NewBus()
	}

	g := &Gateway{log: log, bus: bus, validator: validator}

	g.originRequired = envBoolWS("SOLE_WS_ORIGIN_REQUIRED", wsDefaultOriginRequired)
	g.allowedOrigins = envCSVWS("SOLE_WS_ALLOWED_ORIGINS", wsDefaultAllowedOrigins)
	g.originPatterns = deriveOriginPatternsFromAllowedOrigins(g.allowedOrigins)

	g.writeTimeout = envDurationWS("SOLE_WS_WRITE_TIMEOUT", wsDefaultWriteTimeout)
	g.helloTimeout = envDurationWS("SOLE_WS_HELLO_TIMEOUT", wsDefaultHelloTimeout)
	g.pingEvery = envDurationWS("SOLE_WS_PING_INTERVAL", wsDefaultPingEvery)

	return g
}

// ServeHTTP adapter so the gateway can be mounted as http.Handler.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.HandleWS(w, r)
}

// HandleWS upgrades an HTTP request to a WebSocket session and runs the push loop.
func (g *Gateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	if err := g.enforceOrigin(r); err != nil {
		g.log.Info("ws.reject.origin", "err", err, "origin", r.Header.Get("Origin"), "remote", r.RemoteAddr)
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{wsSubprotocolV1},
		OriginPatterns: g.originPatterns,
	})
	if err != nil {
		g.log.Error("ws.accept.fail", "err", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "bye") }()

	if sp := conn.Subprotocol(); sp != wsSubprotocolV1 {
		g.log.Info("ws.reject.subprotocol", "got", sp, "want", wsSubprotocolV1)
		_ = conn.Close(websocket.StatusProtocolError, "subprotocol required")
		return
	}

	conn.SetReadLimit(wsMaxHelloBytes)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	claims, err := g.awaitHello(ctx, conn)
	if err != nil {
		g.log.Info("ws.reject.hello", "err", err, "remote", r.RemoteAddr)
		g.tryWrite(ctx, conn, envelope{Type: typeError, Code: "unauthorized", Message: "token rejected"})
		_ = conn.Close(websocket.StatusPolicyViolation, "unauthorized")
		return
	}

	events, unsubscribe := g.bus.Subscribe(claims.SessionID)
	defer unsubscribe()

	if err := g.write(ctx, conn, envelope{Type: typeHelloAck, SessionID: claims.SessionID}); err != nil {
		g.log.Info("ws.write.fail", "session_id", claims.SessionID, "err", err)
		return
	}

	g.log.Info("ws.subscribed", "session_id", claims.SessionID)

	// Reader goroutine: the client never sends after hello; a read returning
	// is the peer closing (or a protocol violation), either way we stop.
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				cancel()
				return
			}
		}
	}()

	pings := time.NewTicker(g.pingEvery)
	defer pings.Stop()

	pingFailures := 0
	for {
		select {
		case <-ctx.Done():
			return

		case ev := <-events:
			env := envelope{
				Type:      typeStatus,
				SessionID: ev.SessionID,
				Status:    string(ev.Status),
				At:        ev.At,
			}
			if err := g.write(ctx, conn, env); err != nil {
				g.log.Info("ws.write.fail", "session_id", claims.SessionID, "err", err)
				return
			}
			// Both close statuses are terminal; nothing more will ever arrive.
			_ = conn.Close(websocket.StatusNormalClosure, "session closed")
			return

		case <-pings.C:
			pingCtx, pingCancel := context.WithTimeout(ctx, g.writeTimeout)
			err := conn.Ping(pingCtx)
			pingCancel()

			if err != nil {
				pingFailures++
				g.log.Info("ws.ping.fail", "session_id", claims.SessionID, "failures", pingFailures, "err", err)
				if pingFailures >= wsMaxPingFailures {
					_ = conn.Close(websocket.StatusGoingAway, "heartbeat failed")
					return
				}
				continue
			}
			pingFailures = 0
		}
	}
}

// awaitHello reads the hello envelope and validates its token.
func (g *Gateway) awaitHello(parent context.Context, conn *websocket.Conn) (session.Claims, error) {
	ctx, cancel := context.WithTimeout(parent, g.helloTimeout)
	defer cancel()

	mt, data, err := conn.Read(ctx)
	if err != nil {
		return session.Claims{}, err
	}
	if mt != websocket.MessageText {
		return session.Claims{}, fmt.Errorf("unsupported message type: %v", mt)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return session.Claims{}, err
	}
	if env.Type != typeHello || strings.TrimSpace(env.Token) == "" {
		return session.Claims{}, errors.New("hello with token required")
	}

	return g.validator.Validate(ctx, time.Now().UTC(), env.Token)
}

func (g *Gateway) write(parent context.Context, conn *websocket.Conn, env envelope) error {
	ctx, cancel := context.WithTimeout(parent, g.writeTimeout)
	defer cancel()

	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, b)
}

func (g *Gateway) tryWrite(ctx context.Context, conn *websocket.Conn, env envelope) {
	_ = g.write(ctx, conn, env)
}

// ---- origin policy ----

func (g *Gateway) enforceOrigin(r *http.Request) error {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		if g.originRequired {
			return errors.New("missing origin")
		}
		return nil
	}

	if len(g.allowedOrigins) == 0 {
		return errors.New("origin not allowed (no allowlist)")
	}

	originHost := originHostOnly(origin)

	for _, a := range g.allowedOrigins {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if a == "*" {
			// Strongly discouraged, but honored if explicitly configured.
			return nil
		}

		// Full origin match (scheme + host + optional port).
		if origin == a {
			return nil
		}

		// Host match fallback (ignores port/scheme).
		if originHost != "" && originHost == originHostOnly(a) {
			return nil
		}
	}

	return fmt.Errorf("origin not allowed: %s", origin)
}

func originHostOnly(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}

	// URL form.
	if strings.Contains(s, "://") {
		u, err := url.Parse(s)
		if err != nil {
			return ""
		}
		h := strings.TrimSpace(u.Host)
		if h == "" {
			return ""
		}
		if host, _, err := net.SplitHostPort(h); err == nil {
			return strings.ToLower(host)
		}
		return strings.ToLower(h)
	}

	// host[:port] form.
	if host, _, err := net.SplitHostPort(s); err == nil {
		return strings.ToLower(host)
	}
	return strings.ToLower(s)
}

func deriveOriginPatternsFromAllowedOrigins(allowed []string) []string {
	// websocket.Accept matches OriginPatterns against the origin host using filepath.Match patterns.
	// We keep this strict: only hosts extracted from allowlist are accepted.
	seen := make(map[string]struct{}, len(allowed))

	for _, a := range allowed {
		h := originHostOnly(a)
		if h == "" || h == "*" {
			continue
		}
		seen[h] = struct{}{}
	}

	out := make([]string, 0, len(seen))
	for h := range seen {
		out = append(out, h)
	}

	// Stable in-file sort (avoid importing sort just for this).
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j] < out[i] {
				out[i], out[j] = out[j], out[i]
			}
		}
	}

	return out
}

// ---- env helpers ----

func envBoolWS(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envDurationWS(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func envCSVWS(key string, def string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		raw = def
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
