package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/openfluke/mlviz/anim"
	"github.com/openfluke/mlviz/config"
	"github.com/openfluke/mlviz/lab"
	"github.com/openfluke/mlviz/transformer"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	return New(config.Default(), WithClock(anim.NewFakeClock()), WithoutAccessLog())
}

func get(t *testing.T, s *Server, path string) (int, string, string) {
	t.Helper()
	resp, err := s.App().Test(httptest.NewRequest("GET", path, nil))
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp.StatusCode, resp.Header.Get("Content-Type"), string(body)
}

func TestIndex(t *testing.T) {
	code, ctype, body := get(t, testServer(t), "/")
	if code != 200 || !strings.HasPrefix(ctype, "text/html") {
		t.Fatalf("GET / = %d %s", code, ctype)
	}
	if !strings.Contains(body, "/ws/") {
		t.Fatal("index page does not open a websocket")
	}
}

func TestListDemos(t *testing.T) {
	code, _, body := get(t, testServer(t), "/api/demos")
	if code != 200 {
		t.Fatalf("status %d", code)
	}
	var demos []lab.Info
	if err := json.Unmarshal([]byte(body), &demos); err != nil {
		t.Fatal(err)
	}
	if len(demos) != 6 {
		t.Fatalf("got %d demos", len(demos))
	}
}

func TestSnapshotEndpoint(t *testing.T) {
	code, _, body := get(t, testServer(t), "/api/demos/transformer")
	if code != 200 {
		t.Fatalf("status %d: %s", code, body)
	}
	var out struct {
		Name   string   `json:"name"`
		Params []string `json:"params"`
		State  struct {
			Status   string   `json:"status"`
			Sequence []string `json:"sequence"`
		} `json:"state"`
	}
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		t.Fatal(err)
	}
	if out.Name != "transformer" || out.State.Status != "idle" || len(out.State.Sequence) != 1 {
		t.Fatalf("snapshot = %+v", out)
	}
}

func TestUnknownDemoIs404(t *testing.T) {
	if code, _, _ := get(t, testServer(t), "/api/demos/nope"); code != 404 {
		t.Fatalf("status %d, want 404", code)
	}
}

func TestSVGEndpoint(t *testing.T) {
	code, ctype, body := get(t, testServer(t), "/api/demos/descent/svg")
	if code != 200 || ctype != "image/svg+xml" {
		t.Fatalf("GET svg = %d %s", code, ctype)
	}
	if !strings.HasPrefix(body, "<svg") {
		t.Fatalf("body = %.40q", body)
	}
}

func TestWebsocketNeedsUpgrade(t *testing.T) {
	if code, _, _ := get(t, testServer(t), "/ws/transformer"); code != 426 {
		t.Fatalf("status %d, want 426", code)
	}
}

// recorder collects what writeLoop sends.
type recorder struct {
	mu   sync.Mutex
	msgs []any
	got  chan struct{}
}

func newRecorder() *recorder { return &recorder{got: make(chan struct{}, 128)} }

func (r *recorder) WriteJSON(v any) error {
	r.mu.Lock()
	r.msgs = append(r.msgs, v)
	r.mu.Unlock()
	r.got <- struct{}{}
	return nil
}

func (r *recorder) wait(t *testing.T, n int) []any {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-r.got:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for message %d", i+1)
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]any(nil), r.msgs...)
}

func newTestSession(t *testing.T, name string) (*session, *anim.FakeClock) {
	t.Helper()
	clock := anim.NewFakeClock()
	d, err := lab.New(name, config.Default(), clock)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(d.Close)
	return newSession(d), clock
}

func TestSessionPushesSchedulerEvents(t *testing.T) {
	sess, clock := newTestSession(t, "transformer")
	rec := newRecorder()
	done := make(chan struct{})
	defer close(done)
	go sess.writeLoop(rec, done)

	if out := sess.handle(clientMessage{Action: "start"}); out != nil {
		t.Fatalf("start replied %+v", out)
	}
	clock.Advance(250 * time.Millisecond)

	msgs := rec.wait(t, 2)
	start, tick := msgs[0].(stateMessage), msgs[1].(stateMessage)
	if start.Event != "start" || tick.Event != "tick" || tick.Demo != "transformer" {
		t.Fatalf("events = %q, %q", start.Event, tick.Event)
	}
	if !strings.Contains(tick.SVG, "<svg") {
		t.Fatal("state push without svg")
	}
}

func TestSessionManualStepPushesState(t *testing.T) {
	sess, _ := newTestSession(t, "transformer")
	rec := newRecorder()
	done := make(chan struct{})
	defer close(done)
	go sess.writeLoop(rec, done)

	if out := sess.handle(clientMessage{Action: "step"}); out != nil {
		t.Fatalf("step replied %+v", out)
	}
	msg, ok := rec.wait(t, 1)[0].(stateMessage)
	if !ok || msg.Event != "step" {
		t.Fatalf("push = %+v", msg)
	}
	snap, ok := msg.State.(transformer.Snapshot)
	if !ok || len(snap.Sequence) != 2 || snap.Sequence[1] != "The" {
		t.Fatalf("pushed state = %+v", msg.State)
	}
	if !strings.Contains(msg.SVG, "The") {
		t.Fatal("pushed svg does not show the appended token")
	}
}

func TestSessionSetAndErrors(t *testing.T) {
	sess, _ := newTestSession(t, "activation")

	msg := clientMessage{Action: "set"}
	msg.Payload.Param, msg.Payload.Value = "function", "tanh"
	out, ok := sess.handle(msg).(stateMessage)
	if !ok || out.Event != "set" {
		t.Fatalf("set reply = %+v", out)
	}

	msg.Payload.Param = "colour"
	em, ok := sess.handle(msg).(errorMessage)
	if !ok || em.Type != "error" || !strings.Contains(em.Error, "unknown parameter") {
		t.Fatalf("unknown param reply = %+v", em)
	}

	if em, ok := sess.handle(clientMessage{Action: "dance"}).(errorMessage); !ok || !strings.Contains(em.Error, "dance") {
		t.Fatalf("unknown action reply = %+v", em)
	}

	if r, ok := sess.handle(clientMessage{Action: "refresh"}).(stateMessage); !ok || r.Event != "refresh" {
		t.Fatalf("refresh reply = %+v", r)
	}
}

func TestSessionStepWhileRunning(t *testing.T) {
	sess, _ := newTestSession(t, "linear")
	if out := sess.handle(clientMessage{Action: "start"}); out != nil {
		t.Fatal(out)
	}
	em, ok := sess.handle(clientMessage{Action: "step"}).(errorMessage)
	if !ok || !strings.Contains(em.Error, anim.ErrRunning.Error()) {
		t.Fatalf("step while running = %+v", em)
	}
}

func TestSessionLimit(t *testing.T) {
	cfg := config.Default()
	cfg.Server.MaxSessions = 1
	s := New(cfg, WithoutAccessLog())
	if !s.sessions.TryAcquire(1) {
		t.Fatal("first session should fit")
	}
	if s.sessions.TryAcquire(1) {
		t.Fatal("second session should be refused")
	}
	s.sessions.Release(1)
}

func TestWriteLoopStopsOnError(t *testing.T) {
	sess, _ := newTestSession(t, "linear")
	sess.send(sess.state("init"))
	finished := make(chan struct{})
	go func() {
		sess.writeLoop(failingWriter{}, make(chan struct{}))
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("writeLoop kept running after a write error")
	}
}

type failingWriter struct{}

func (failingWriter) WriteJSON(any) error { return errors.New("broken pipe") }
