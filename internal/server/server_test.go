package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/verte-zerg/repjudge/internal/analysis"
	"github.com/verte-zerg/repjudge/internal/judge"
	"github.com/verte-zerg/repjudge/internal/model"
	"github.com/verte-zerg/repjudge/internal/store"
)

const (
	deepFrame  = `{"t":0.5,"joints":{"shoulder":{"x":0.4,"y":0.45},"elbow":{"x":0.45,"y":0.4},"wrist":{"x":0.5,"y":0.35},"hip":{"x":0.3,"y":0.75},"knee":{"x":0.5,"y":0.7},"ankle":{"x":0.5,"y":0.9}}}`
	lockedTop  = `{"t":1.0,"joints":{"shoulder":{"x":0.5,"y":0.3},"elbow":{"x":0.5,"y":0.2},"wrist":{"x":0.5,"y":0.1},"hip":{"x":0.5,"y":0.5},"knee":{"x":0.5,"y":0.7},"ankle":{"x":0.5,"y":0.9}}}`
	emptyFrame = `{"t":1.2}`
)

func newTestServer(t *testing.T, st *store.Store) *httptest.Server {
	t.Helper()
	srv := New(analysis.DefaultAnalyzeConfig(judge.Thruster), st)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func dial(t *testing.T, ts *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}

func readOut(t *testing.T, conn *websocket.Conn) Outbound {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(5 * time.Second)); err != nil {
		t.Fatalf("set deadline: %v", err)
	}
	var out Outbound
	if err := conn.ReadJSON(&out); err != nil {
		t.Fatalf("read message: %v", err)
	}
	return out
}

func send(t *testing.T, conn *websocket.Conn, msg string) {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		t.Fatalf("write message: %v", err)
	}
}

func TestLiveSessionScoresAndSaves(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "repjudge.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	ts := newTestServer(t, st)
	conn := dial(t, ts, "?movement=thruster&depth=90")

	ready := readOut(t, conn)
	if ready.Type != TypeReady || ready.Session == "" || ready.Movement != "thruster" || ready.Feedback != judge.FeedbackSetup {
		t.Fatalf("unexpected ready message: %+v", ready)
	}

	send(t, conn, emptyFrame)
	skipped := readOut(t, conn)
	if skipped.Type != TypeResult || skipped.Observed || skipped.Code != "missing_landmark" || skipped.Angles != nil {
		t.Fatalf("unexpected skipped result: %+v", skipped)
	}

	send(t, conn, deepFrame)
	deep := readOut(t, conn)
	if !deep.Observed || deep.Phase != judge.PhaseBottom.String() || deep.Angles == nil || deep.Angles.Knee == nil {
		t.Fatalf("unexpected depth result: %+v", deep)
	}

	send(t, conn, lockedTop)
	top := readOut(t, conn)
	if top.Reps != 1 || top.Event == nil || top.Event.Outcome != judge.ValidRep.String() || top.Feedback != judge.FeedbackRep {
		t.Fatalf("unexpected top result: %+v", top)
	}

	send(t, conn, `{"type":"end"}`)
	sum := readOut(t, conn)
	if sum.Type != TypeSummary || sum.Session != ready.Session || sum.Reps != 1 || sum.Frame != 3 || !sum.Saved || len(sum.Events) != 1 {
		t.Fatalf("unexpected summary: %+v", sum)
	}

	stored, err := st.GetSession(context.Background(), ready.Session)
	if err != nil {
		t.Fatalf("get stored session: %v", err)
	}
	if stored.Reps != 1 || stored.DepthThreshold != 90 || stored.SkippedFrames != 1 || stored.Movement != "thruster" {
		t.Fatalf("unexpected stored session: %+v", stored)
	}
}

func TestLiveSessionReportsBadMessages(t *testing.T) {
	ts := newTestServer(t, nil)
	conn := dial(t, ts, "")
	readOut(t, conn)

	send(t, conn, `not json`)
	if out := readOut(t, conn); out.Type != TypeError || out.Code != "invalid_argument" {
		t.Fatalf("expected decode error, got %+v", out)
	}
	send(t, conn, `{"type":"dance"}`)
	if out := readOut(t, conn); out.Type != TypeError || !strings.Contains(out.Error, "dance") {
		t.Fatalf("expected unknown type error, got %+v", out)
	}
	send(t, conn, `{"t":-1}`)
	if out := readOut(t, conn); out.Type != TypeError {
		t.Fatalf("expected negative time error, got %+v", out)
	}

	send(t, conn, `{"type":"end"}`)
	if out := readOut(t, conn); out.Type != TypeSummary || out.Saved || out.Frame != 0 {
		t.Fatalf("unexpected summary without store: %+v", out)
	}
}

func TestRejectsInvalidQuery(t *testing.T) {
	ts := newTestServer(t, nil)
	for _, query := range []string{"depth=40", "fps=NaN", "min-visibility=NaN"} {
		url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?" + query
		_, resp, err := websocket.DefaultDialer.Dial(url, nil)
		if err == nil {
			t.Fatalf("%s: expected handshake failure", query)
		}
		if resp == nil || resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: expected 400 response, got %+v", query, resp)
		}
	}
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, nil)
	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("get healthz: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if resp.StatusCode != http.StatusOK || strings.TrimSpace(string(body)) != "ok" {
		t.Fatalf("unexpected healthz response: %d %q", resp.StatusCode, body)
	}
}

func TestConnConfigOverlay(t *testing.T) {
	srv := New(model.AnalyzeConfig{Movement: "thruster", Depth: 85, Extension: 165, Side: "left", MinVisibility: 0.5, FPS: 30, MaxDuration: 60}, nil)
	req := httptest.NewRequest(http.MethodGet, "/ws?movement=air-squat&side=right&min-visibility=0.7&save=true", nil)
	cfg, save, err := srv.connConfig(req)
	if err != nil {
		t.Fatalf("conn config: %v", err)
	}
	if cfg.Movement != "air-squat" || cfg.Side != "right" || cfg.MinVisibility != 0.7 || cfg.MaxDuration != 0 || cfg.Depth != 85 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if save {
		t.Fatalf("save must stay off without a store")
	}
	req = httptest.NewRequest(http.MethodGet, "/ws?fps=fast", nil)
	if _, _, err := srv.connConfig(req); err == nil {
		t.Fatalf("expected invalid fps error")
	}
}
