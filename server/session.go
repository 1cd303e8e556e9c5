package server

import (
	"fmt"
	"log"

	"github.com/openfluke/mlviz/anim"
	"github.com/openfluke/mlviz/lab"
)

// eventBuffer bounds the frames queued for a slow client; ticks beyond it
// are dropped.
const eventBuffer = 64

type clientMessage struct {
	Action  string `json:"action"`
	Payload struct {
		Param string `json:"param"`
		Value string `json:"value"`
	} `json:"payload"`
}

type stateMessage struct {
	Type  string `json:"type"`
	Demo  string `json:"demo"`
	Event string `json:"event"`
	SVG   string `json:"svg"`
	State any    `json:"state"`
}

type errorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// jsonWriter is the write half of a websocket connection.
type jsonWriter interface {
	WriteJSON(v any) error
}

// session is one client's private demo. Scheduler events arrive on
// events, replies to the client's own actions on outbox; writeLoop is the
// only writer to the connection.
type session struct {
	demo   lab.Demo
	events *anim.ChannelObserver
	outbox chan any
}

func newSession(d lab.Demo) *session {
	s := &session{
		demo:   d,
		events: anim.NewChannelObserver(eventBuffer),
		outbox: make(chan any, eventBuffer),
	}
	d.Observe(s.events)
	return s
}

func (s *session) state(event string) stateMessage {
	return stateMessage{
		Type:  "state",
		Demo:  s.demo.Name(),
		Event: event,
		SVG:   s.demo.SVG(),
		State: s.demo.Snapshot(),
	}
}

func (s *session) send(v any) {
	select {
	case s.outbox <- v:
	default:
		log.Printf("server: %s outbox full, dropping reply", s.demo.Name())
	}
}

// handle applies one client action. State changes that go through the
// scheduler are reported by its events, so only the rest return a reply.
func (s *session) handle(msg clientMessage) any {
	var err error
	switch msg.Action {
	case "start":
		err = s.demo.Start()
	case "pause":
		s.demo.Pause()
	case "toggle":
		err = s.demo.Toggle()
	case "reset":
		s.demo.Reset()
	case "step":
		err = s.demo.Step()
	case "set":
		if err = s.demo.Set(msg.Payload.Param, msg.Payload.Value); err == nil {
			return s.state("set")
		}
	case "refresh":
		return s.state("refresh")
	default:
		err = fmt.Errorf("unknown action %q", msg.Action)
	}
	if err != nil {
		return errorMessage{Type: "error", Error: err.Error()}
	}
	return nil
}

func (s *session) writeLoop(w jsonWriter, done <-chan struct{}) {
	for {
		var v any
		select {
		case <-done:
			return
		case e := <-s.events.Events:
			v = s.state(string(e.Kind))
		case v = <-s.outbox:
		}
		if err := w.WriteJSON(v); err != nil {
			log.Printf("server: %s write failed: %v", s.demo.Name(), err)
			return
		}
	}
}
