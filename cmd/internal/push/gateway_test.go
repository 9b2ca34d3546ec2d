package push

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"sole/cmd/internal/auth/session"

	"github.com/coder/websocket"
)

type stubValidator struct {
	claims session.Claims
	err    error
}

func (v stubValidator) Validate(_ context.Context, _ time.Time, token string) (session.Claims, error) {
	if v.err != nil {
		return session.Claims{}, v.err
	}
	if strings.TrimSpace(token) == "" {
		return session.Claims{}, session.ErrSessionNotFound
	}
	return v.claims, nil
}

func newTestGateway(t *testing.T, bus *Bus, v Validator) *httptest.Server {
	t.Helper()

	// Non-browser test client sends no Origin header.
	t.Setenv("SOLE_WS_ORIGIN_REQUIRED", "false")

	g := NewGateway(nil, bus, v)
	ts := httptest.NewServer(http.HandlerFunc(g.HandleWS))
	t.Cleanup(ts.Close)
	return ts
}

func dialPush(t *testing.T, ctx context.Context, ts *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		Subprotocols: []string{"sole.push.v1"},
	})
	if err != nil {
		t.Fatalf("websocket.Dial: %v", err)
	}
	return conn
}

func readEnvelope(t *testing.T, ctx context.Context, conn *websocket.Conn) envelope {
	t.Helper()

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("conn.Read: %v", err)
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return env
}

func writeEnvelope(t *testing.T, ctx context.Context, conn *websocket.Conn, env envelope) {
	t.Helper()

	b, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("encode envelope: %v", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, b); err != nil {
		t.Fatalf("conn.Write: %v", err)
	}
}

func TestGateway_StreamsCloseEvent(t *testing.T) {
	bus := NewBus()
	ts := newTestGateway(t, bus, stubValidator{
		claims: session.Claims{PrincipalID: "alice", SessionID: "sess-1"},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn := dialPush(t, ctx, ts)
	defer conn.Close(websocket.StatusNormalClosure, "")

	writeEnvelope(t, ctx, conn, envelope{Type: "hello", Token: "valid-token"})

	ack := readEnvelope(t, ctx, conn)
	if ack.Type != "hello.ack" || ack.SessionID != "sess-1" {
		t.Fatalf("unexpected ack: %+v", ack)
	}

	bus.Publish(session.Event{
		SessionID:   "sess-1",
		PrincipalID: "alice",
		Status:      session.StatusRevoked,
		At:          time.Now().UTC(),
	})

	ev := readEnvelope(t, ctx, conn)
	if ev.Type != "session.status" || ev.Status != "revoked" || ev.SessionID != "sess-1" {
		t.Fatalf("unexpected status event: %+v", ev)
	}

	// The server closes after the terminal event.
	if _, _, err := conn.Read(ctx); err == nil {
		t.Fatalf("expected connection close after terminal event")
	}
}

func TestGateway_RejectsInvalidToken(t *testing.T) {
	bus := NewBus()
	ts := newTestGateway(t, bus, stubValidator{err: session.ErrSessionRevoked})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn := dialPush(t, ctx, ts)
	defer conn.Close(websocket.StatusNormalClosure, "")

	writeEnvelope(t, ctx, conn, envelope{Type: "hello", Token: "stale-token"})

	env := readEnvelope(t, ctx, conn)
	if env.Type != "error" || env.Code != "unauthorized" {
		t.Fatalf("expected unauthorized error envelope, got %+v", env)
	}
}

func TestGateway_RejectsHelloWithoutToken(t *testing.T) {
	bus := NewBus()
	ts := newTestGateway(t, bus, stubValidator{
		claims: session.Claims{PrincipalID: "alice", SessionID: "sess-1"},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn := dialPush(t, ctx, ts)
	defer conn.Close(websocket.StatusNormalClosure, "")

	writeEnvelope(t, ctx, conn, envelope{Type: "hello"})

	env := readEnvelope(t, ctx, conn)
	if env.Type != "error" {
		t.Fatalf("expected error envelope, got %+v", env)
	}
}

func TestOriginHostOnly(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"http://localhost:3000", "localhost"},
		{"https://App.Example.com", "app.example.com"},
		{"localhost:8080", "localhost"},
		{"example.com", "example.com"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := originHostOnly(tc.in); got != tc.want {
			t.Fatalf("originHostOnly(%q)=%q want %q", tc.in, got, tc.want)
		}
	}
}

func TestDeriveOriginPatterns(t *testing.T) {
	got := deriveOriginPatternsFromAllowedOrigins([]string{
		"http://localhost:3000",
		"http://localhost",
		"https://app.example.com",
		"*",
	})
	want := []string{"app.example.com", "localhost"}
	if len(got) != len(want) {
		t.Fatalf("patterns=%v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("patterns=%v want %v", got, want)
		}
	}
}
