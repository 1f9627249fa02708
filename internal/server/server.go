// Package server exposes live judging over WebSocket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/verte-zerg/repjudge/internal/analysis"
	"github.com/verte-zerg/repjudge/internal/judge"
	"github.com/verte-zerg/repjudge/internal/log"
	"github.com/verte-zerg/repjudge/internal/model"
	"github.com/verte-zerg/repjudge/internal/pose"
	"github.com/verte-zerg/repjudge/internal/store"
)

const (
	wsWriteWait = 10 * time.Second
	wsPongWait  = 60 * time.Second
	wsPingEvery = (wsPongWait * 9) / 10

	shutdownTimeout = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// Message types sent to clients.
const (
	TypeReady   = "ready"
	TypeResult  = "result"
	TypeError   = "error"
	TypeSummary = "summary"
)

// inbound is the control envelope; frame fields are decoded separately.
type inbound struct {
	Type string `json:"type"`
}

// Outbound is a message sent to the client.
type Outbound struct {
	Type     string     `json:"type"`
	Session  string     `json:"session,omitempty"`
	Movement string     `json:"movement,omitempty"`
	Frame    int        `json:"frame"`
	Time     float64    `json:"time"`
	Reps     int        `json:"reps"`
	NoReps   int        `json:"no_reps"`
	Feedback string     `json:"feedback,omitempty"`
	Phase    string     `json:"phase,omitempty"`
	Observed bool       `json:"observed"`
	Angles   *AnglesOut `json:"angles,omitempty"`
	Event    *EventOut  `json:"event,omitempty"`
	Saved    bool       `json:"saved,omitempty"`
	Events   []EventOut `json:"events,omitempty"`
	Error    string     `json:"error,omitempty"`
	Code     string     `json:"code,omitempty"`
}

// AnglesOut carries measured joint angles in degrees; unmeasured angles are omitted.
type AnglesOut struct {
	Knee  *float64 `json:"knee,omitempty"`
	Hip   *float64 `json:"hip,omitempty"`
	Elbow *float64 `json:"elbow,omitempty"`
}

// EventOut is a scored attempt.
type EventOut struct {
	Time    float64 `json:"time"`
	Outcome string  `json:"outcome"`
	Reason  string  `json:"reason"`
}

// Server judges pose frames streamed by WebSocket clients.
type Server struct {
	defaults model.AnalyzeConfig
	store    *store.Store
}

// New returns a server. Sessions are persisted only when st is non-nil.
func New(defaults model.AnalyzeConfig, st *store.Store) *Server {
	return &Server{defaults: defaults, store: st}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if _, err := w.Write([]byte("ok\n")); err != nil {
			// Best-effort health response.
			_ = err
		}
	})
	return mux
}

// ListenAndServe serves on addr until ctx is canceled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	log.Info("live judging server listening", "addr", addr)
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to serve: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down server: %w", err)
		}
		return nil
	}
}

// connConfig overlays query parameters on the server defaults.
func (s *Server) connConfig(r *http.Request) (model.AnalyzeConfig, bool, error) {
	cfg := s.defaults
	// Live streams have no end to budget against.
	cfg.MaxDuration = 0
	q := r.URL.Query()
	if v := strings.TrimSpace(q.Get("movement")); v != "" {
		cfg.Movement = v
	}
	if v := strings.TrimSpace(q.Get("side")); v != "" {
		cfg.Side = v
	}
	floats := []struct {
		key string
		dst *float64
	}{
		{"depth", &cfg.Depth},
		{"extension", &cfg.Extension},
		{"min-visibility", &cfg.MinVisibility},
		{"fps", &cfg.FPS},
	}
	for _, f := range floats {
		v := strings.TrimSpace(q.Get(f.key))
		if v == "" {
			continue
		}
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return cfg, false, fmt.Errorf("invalid %s %q", f.key, v)
		}
		*f.dst = parsed
	}
	save := s.store != nil
	if v := strings.TrimSpace(q.Get("save")); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, false, fmt.Errorf("invalid save %q", v)
		}
		save = parsed && s.store != nil
	}
	return cfg, save, nil
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	cfg, save, err := s.connConfig(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	j, opts, err := analysis.FromConfig(cfg)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := conn.SetReadDeadline(time.Now().Add(wsPongWait)); err != nil {
		log.Warn("websocket set read deadline failed", "err", err)
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	writeCh := make(chan Outbound, 32)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		ticker := time.NewTicker(wsPingEvery)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case out, ok := <-writeCh:
				if !ok {
					return
				}
				if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
					return
				}
				if err := conn.WriteJSON(out); err != nil {
					return
				}
			case <-ticker.C:
				if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
					return
				}
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	push := func(out Outbound) {
		select {
		case writeCh <- out:
		case <-writerDone:
		}
	}

	sessionID := uuid.NewString()
	started := time.Now()
	session := analysis.NewSession(j, opts)
	logger := log.With("session", sessionID, "remote", r.RemoteAddr)
	logger.Info("live session opened", "movement", j.Config().Movement.Slug())

	push(Outbound{
		Type:     TypeReady,
		Session:  sessionID,
		Movement: j.Config().Movement.Slug(),
		Feedback: j.Feedback(),
		Phase:    j.State().Phase.String(),
	})

	index := 0
	ended := false
	for !ended {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			session.Stop(analysis.StopCanceled)
			break
		}
		if msgType != websocket.TextMessage {
			continue
		}
		var env inbound
		if err := json.Unmarshal(data, &env); err != nil {
			push(errorOut(index, "invalid_argument", err))
			continue
		}
		switch strings.ToLower(strings.TrimSpace(env.Type)) {
		case "", "frame":
			frame, err := pose.DecodeFrame(data)
			if err != nil {
				push(errorOut(index, "invalid_argument", err))
				continue
			}
			frame.Index = index
			index++
			push(resultOut(session.Step(frame)))
		case "end":
			session.Stop(analysis.StopEndOfStream)
			ended = true
		default:
			push(errorOut(index, "invalid_argument", fmt.Errorf("unknown message type %q", env.Type)))
		}
	}

	summary := session.Summary()
	saved := false
	if save && summary.Frames > 0 {
		if err := s.persist(context.Background(), sessionID, started, r.RemoteAddr, cfg.Side, summary); err != nil {
			logger.Error("failed to save live session", "err", err)
		} else {
			saved = true
		}
	}
	logger.Info("live session closed",
		"reps", summary.Reps,
		"no_reps", summary.NoReps,
		"frames", summary.Frames,
		"saved", saved,
	)

	if ended {
		push(summaryOut(sessionID, summary, saved))
		close(writeCh)
		<-writerDone
		if err := conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(wsWriteWait)); err != nil {
			// Best-effort close handshake.
			_ = err
		}
		return
	}
	cancel()
	<-writerDone
}

func (s *Server) persist(ctx context.Context, id string, started time.Time, source, side string, sum analysis.Summary) error {
	sess := model.Session{
		UUID:               id,
		StartedAt:          started,
		EndedAt:            time.Now(),
		Source:             "ws:" + source,
		Movement:           sum.Config.Movement.Slug(),
		DepthThreshold:     sum.Config.DepthThreshold,
		ExtensionThreshold: sum.Config.ExtensionThreshold,
		Side:               side,
		Reps:               sum.Reps,
		NoReps:             sum.NoReps,
		Frames:             sum.Frames,
		SkippedFrames:      sum.Skipped,
		AnalyzedSeconds:    sum.Analyzed,
	}
	_, err := s.store.InsertSession(ctx, sess, sum.Events)
	return err
}

func resultOut(step analysis.Step) Outbound {
	res := step.Result
	out := Outbound{
		Type:     TypeResult,
		Frame:    step.Frame.Index,
		Time:     step.Time,
		Reps:     res.Reps,
		NoReps:   res.NoReps,
		Feedback: res.Feedback,
		Phase:    res.Phase.String(),
		Observed: res.Observed,
	}
	if res.Observed {
		out.Angles = &AnglesOut{
			Knee:  finite(res.Angles.Knee),
			Hip:   finite(res.Angles.Hip),
			Elbow: finite(res.Angles.Elbow),
		}
	}
	if res.Event != nil {
		ev := eventOut(*res.Event)
		out.Event = &ev
	}
	if step.Err != nil {
		out.Error = step.Err.Error()
		out.Code = errorCode(step.Err)
	}
	return out
}

func summaryOut(id string, sum analysis.Summary, saved bool) Outbound {
	events := make([]EventOut, len(sum.Events))
	for i, ev := range sum.Events {
		events[i] = eventOut(ev)
	}
	return Outbound{
		Type:     TypeSummary,
		Session:  id,
		Movement: sum.Config.Movement.Slug(),
		Frame:    sum.Frames,
		Time:     sum.Analyzed,
		Reps:     sum.Reps,
		NoReps:   sum.NoReps,
		Saved:    saved,
		Events:   events,
	}
}

func errorOut(index int, code string, err error) Outbound {
	return Outbound{Type: TypeError, Frame: index, Code: code, Error: err.Error()}
}

func eventOut(ev judge.Event) EventOut {
	return EventOut{Time: ev.Time, Outcome: ev.Outcome.String(), Reason: ev.Reason}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, judge.ErrMissingLandmark):
		return "missing_landmark"
	case errors.Is(err, judge.ErrDegenerateGeometry):
		return "degenerate_geometry"
	default:
		return "unobserved"
	}
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
