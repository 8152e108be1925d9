package monitor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"overlayctl/internal/overlay"
	"overlayctl/internal/script"
)

type fakeSession struct {
	mu       sync.Mutex
	toggles  []bool
	finished int
}

func (f *fakeSession) Snapshot() script.Snapshot {
	return script.Snapshot{
		SessionID:       "session-1",
		Step:            "step2",
		Status:          "running",
		InputCollection: true,
	}
}

func (f *fakeSession) SetInputCollection(enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toggles = append(f.toggles, enabled)
}

func (f *fakeSession) Finish() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finished++
}

func (f *fakeSession) finishCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.finished
}

func (f *fakeSession) toggleList() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.toggles...)
}

func newTestServer(t *testing.T, token string) (*Server, *fakeSession, *httptest.Server) {
	t.Helper()
	session := &fakeSession{}
	srv := NewServer(session, token, nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		_ = srv.Shutdown(context.Background())
		ts.Close()
	})
	return srv, session, ts
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestHealth(t *testing.T) {
	_, _, ts := newTestServer(t, "secret")

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /health status = %d, want 200 without token", resp.StatusCode)
	}
}

func TestStatusRequiresToken(t *testing.T) {
	_, _, ts := newTestServer(t, "secret")

	resp, err := http.Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("GET /api/status without token = %d, want 401", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/status", nil)
	req.Header.Set("Authorization", "Bearer secret")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /api/status with token = %d, want 200", resp.StatusCode)
	}

	var snap script.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatal(err)
	}
	if snap.SessionID != "session-1" || snap.Step != "step2" || !snap.InputCollection {
		t.Errorf("status = %+v", snap)
	}
}

func TestControlEndpoints(t *testing.T) {
	_, session, ts := newTestServer(t, "")

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodPost, "/api/input?enabled=false", http.StatusOK},
		{http.MethodPost, "/api/input?enabled=maybe", http.StatusBadRequest},
		{http.MethodGet, "/api/input?enabled=true", http.StatusMethodNotAllowed},
		{http.MethodPost, "/api/finish", http.StatusOK},
		{http.MethodGet, "/api/finish", http.StatusMethodNotAllowed},
		{http.MethodPost, "/api/status", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		req, _ := http.NewRequest(tt.method, ts.URL+tt.path, nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != tt.want {
			t.Errorf("%s %s = %d, want %d", tt.method, tt.path, resp.StatusCode, tt.want)
		}
	}

	if got := session.toggleList(); len(got) != 1 || got[0] != false {
		t.Errorf("toggles = %v, want [false]", got)
	}
	if n := session.finishCount(); n != 1 {
		t.Errorf("finish calls = %d, want 1", n)
	}
}

func dial(t *testing.T, ts *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg map[string]any
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	return msg
}

func TestWebSocketStream(t *testing.T) {
	srv, _, ts := newTestServer(t, "secret")
	conn := dial(t, ts, "?token=secret")

	hello := readMessage(t, conn)
	if hello["type"] != string(TypeHello) {
		t.Fatalf("first message type = %v, want hello", hello["type"])
	}
	waitFor(t, "client registration", func() bool { return srv.hub.clientCount() == 1 })

	srv.StepChanged("session-1", script.Step3)
	msg := readMessage(t, conn)
	if msg["type"] != string(TypeStep) {
		t.Fatalf("message type = %v, want step", msg["type"])
	}
	payload := msg["payload"].(map[string]any)
	if payload["step"] != "step3" {
		t.Errorf("step = %v, want step3", payload["step"])
	}

	srv.KeyInput("session-1", overlay.KeyEvent{Type: overlay.EventKeyDown, KeyCode: 38}, 1)
	msg = readMessage(t, conn)
	payload = msg["payload"].(map[string]any)
	if msg["type"] != string(TypeInput) || payload["device"] != "keyboard" || payload["key_code"] != float64(38) {
		t.Errorf("input message = %v", msg)
	}

	srv.MouseInput("session-1", overlay.MouseEvent{Type: overlay.EventMouseMove, X: 3, Y: 4}, 3)
	msg = readMessage(t, conn)
	payload = msg["payload"].(map[string]any)
	if payload["device"] != "mouse" || payload["result"] != float64(3) {
		t.Errorf("mouse message = %v", msg)
	}

	srv.InputCollectionChanged("session-1", false)
	msg = readMessage(t, conn)
	payload = msg["payload"].(map[string]any)
	if msg["type"] != string(TypeToggle) || payload["enabled"] != false || payload["session_id"] != "session-1" {
		t.Errorf("toggle message = %v", msg)
	}
}

func TestWebSocketRejectsMissingToken(t *testing.T) {
	_, _, ts := newTestServer(t, "secret")

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("Dial() without token succeeded")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("handshake response = %v, want 401", resp)
	}
}

func TestWebSocketCommands(t *testing.T) {
	srv, session, ts := newTestServer(t, "")
	conn := dial(t, ts, "")
	readMessage(t, conn) // hello
	waitFor(t, "client registration", func() bool { return srv.hub.clientCount() == 1 })

	if err := conn.WriteJSON(Message{Type: TypeToggle, Payload: TogglePayload{Enabled: true}}); err != nil {
		t.Fatal(err)
	}
	if err := conn.WriteJSON(Message{Type: TypeFinish}); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "finish", func() bool { return session.finishCount() == 1 })
	if got := session.toggleList(); len(got) != 1 || !got[0] {
		t.Errorf("toggles = %v, want [true]", got)
	}

	if err := conn.WriteJSON(Message{Type: "reboot"}); err != nil {
		t.Fatal(err)
	}
	msg := readMessage(t, conn)
	if msg["type"] != string(TypeError) {
		t.Errorf("reply type = %v, want error", msg["type"])
	}
}

func TestShutdownDisconnectsClients(t *testing.T) {
	srv, _, ts := newTestServer(t, "")
	conn := dial(t, ts, "")
	readMessage(t, conn)
	waitFor(t, "client registration", func() bool { return srv.hub.clientCount() == 1 })

	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("ReadMessage() after shutdown succeeded, want close")
	}

	// Publishing after shutdown must not block or panic.
	srv.StepChanged("session-1", script.StepStopped)
}

func TestShutdownBeforeStart(t *testing.T) {
	srv := NewServer(&fakeSession{}, "", nil)
	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- srv.Start("127.0.0.1:0") }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() after Shutdown error = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start() kept serving after Shutdown")
	}
}
