package web

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/teslashibe/blinkwatch/pkg/blink"
)

func testSession() Session {
	return Session{
		ID:           "initial",
		Config:       blink.DefaultConfig(),
		AlertMessage: "Wake up!",
		Started:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func doJSON(t *testing.T, s *Server, method, path, body string, out any) int {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.App().Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func TestStatus(t *testing.T) {
	s := NewServer(DefaultConfig(), testSession())
	s.UpdateState(func(st *Status) {
		st.Blinks = 4
		st.Phase = blink.EyesClosing
	})

	var got map[string]any
	if code := doJSON(t, s, "GET", "/api/status", "", &got); code != http.StatusOK {
		t.Fatalf("status code = %d", code)
	}
	if got["blinks"] != float64(4) || got["phase"] != blink.EyesClosing.String() || got["session_id"] != "initial" {
		t.Errorf("status = %v", got)
	}
}

func TestLogs(t *testing.T) {
	s := NewServer(DefaultConfig(), testSession())
	for i := 0; i < maxLogs+10; i++ {
		s.AddLog("blink", "blink")
	}
	s.AddLog("alert", "last")

	var got []LogEntry
	doJSON(t, s, "GET", "/api/logs", "", &got)
	if len(got) != maxLogs {
		t.Errorf("got %d logs, want %d", len(got), maxLogs)
	}
	if got[len(got)-1].Message != "last" {
		t.Errorf("last log = %+v", got[len(got)-1])
	}
}

func TestConfigView(t *testing.T) {
	s := NewServer(DefaultConfig(), testSession(), WithConfigView(map[string]string{"camera": "0"}))

	var got map[string]string
	doJSON(t, s, "GET", "/api/config", "", &got)
	if got["camera"] != "0" {
		t.Errorf("config = %v", got)
	}
}

func TestNewSession(t *testing.T) {
	s := NewServer(DefaultConfig(), testSession())

	var sess Session
	code := doJSON(t, s, "POST", "/api/session", `{"threshold":0.25,"cooldown":"10s","alert_message":"Stay awake"}`, &sess)
	if code != http.StatusAccepted {
		t.Fatalf("status code = %d", code)
	}
	if sess.ID == "" || sess.ID == "initial" {
		t.Errorf("expected a fresh session id, got %q", sess.ID)
	}
	if sess.Config.Threshold != 0.25 || sess.Config.Cooldown != 10*time.Second {
		t.Errorf("config = %+v", sess.Config)
	}
	if sess.Config.AlertDuration != blink.DefaultConfig().AlertDuration {
		t.Errorf("alert duration should carry over, got %v", sess.Config.AlertDuration)
	}
	if sess.AlertMessage != "Stay awake" {
		t.Errorf("message = %q", sess.AlertMessage)
	}

	select {
	case got := <-s.Sessions():
		if got.ID != sess.ID {
			t.Errorf("queued session %s, want %s", got.ID, sess.ID)
		}
	default:
		t.Fatal("session not queued for the frame loop")
	}

	s.SetSession(sess)
	if s.State().SessionID != sess.ID {
		t.Errorf("state session = %s", s.State().SessionID)
	}
	var cur Session
	doJSON(t, s, "GET", "/api/session", "", &cur)
	if cur.ID != sess.ID {
		t.Errorf("current session = %s", cur.ID)
	}
}

func TestNewSession_Rejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad json", `{`},
		{"threshold out of range", `{"threshold":1.5}`},
		{"bad duration", `{"alert_duration":"soon"}`},
		{"zero cooldown", `{"cooldown":"0s"}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := NewServer(DefaultConfig(), testSession())
			var body map[string]string
			if code := doJSON(t, s, "POST", "/api/session", tc.body, &body); code != http.StatusBadRequest {
				t.Errorf("status code = %d, want 400", code)
			}
			if body["error"] == "" {
				t.Error("expected error message")
			}
		})
	}
}

func TestNewSession_OnePending(t *testing.T) {
	s := NewServer(DefaultConfig(), testSession())

	if code := doJSON(t, s, "POST", "/api/session", "", nil); code != http.StatusAccepted {
		t.Fatalf("first request = %d", code)
	}
	if code := doJSON(t, s, "POST", "/api/session", "", nil); code != http.StatusConflict {
		t.Errorf("second request = %d, want 409", code)
	}
}

func TestMetricsRoute(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "blinkwatch_frames_total 7\n")
	})
	s := NewServer(DefaultConfig(), testSession(), WithMetrics(h))

	resp, err := s.App().Test(httptest.NewRequest("GET", "/metrics", nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "blinkwatch_frames_total 7") {
		t.Errorf("metrics body = %q", body)
	}
}

func TestWebSocketRequiresUpgrade(t *testing.T) {
	s := NewServer(DefaultConfig(), testSession())
	resp, err := s.App().Test(httptest.NewRequest("GET", "/ws/status", nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusUpgradeRequired {
		t.Errorf("status code = %d, want 426", resp.StatusCode)
	}
}

func TestStatusWebSocket(t *testing.T) {
	s := NewServer(DefaultConfig(), testSession())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("cannot listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Serve(ctx, ln)

	url := "ws://" + ln.Addr().String() + "/ws/status"
	var conn *websocket.Conn
	deadline := time.Now().Add(2 * time.Second)
	for {
		conn, _, err = websocket.DefaultDialer.Dial(url, nil)
		if err == nil || time.Now().After(deadline) {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var first Status
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read initial status: %v", err)
	}
	if first.SessionID != "initial" {
		t.Errorf("initial status = %+v", first)
	}

	// Registration is asynchronous; keep updating until one arrives.
	got := make(chan Status, 1)
	go func() {
		var st Status
		if conn.ReadJSON(&st) == nil {
			got <- st
		}
	}()
	for i := 0; ; i++ {
		s.UpdateState(func(st *Status) { st.Blinks = 9 })
		select {
		case st := <-got:
			if st.Blinks != 9 {
				t.Errorf("broadcast status = %+v", st)
			}
			return
		case <-time.After(20 * time.Millisecond):
		}
		if i > 100 {
			t.Fatal("no status broadcast received")
		}
	}
}
