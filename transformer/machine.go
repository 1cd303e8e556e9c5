// Package transformer animates a conceptual decoder-only transformer.
//
// The model is a toy: each generated token is the vocabulary entry after the
// previous one. What is animated is the processing order. Every generated
// token walks the same cycle, one phase per tick:
//
//	embedding -> (layer_process -> attention x (p+1) -> ffn) x NumLayers -> predict -> append
//
// where p is the position of the newest token. The attention sweep visits
// source positions p, p-1, ..., 0.
//
// Step is a pure function over State; the Animator pairs it with an
// anim.Scheduler to run it on a timer.
package transformer

import "fmt"

const (
	DefaultNumLayers = 3
	DefaultMaxLen    = 10
)

// Config holds the compile-time shape of the animated model.
type Config struct {
	NumLayers int
	MaxLen    int
	Vocab     *Vocabulary
}

// DefaultConfig returns 3 layers, max length 10 and the default vocabulary.
func DefaultConfig() Config {
	return Config{
		NumLayers: DefaultNumLayers,
		MaxLen:    DefaultMaxLen,
		Vocab:     DefaultVocabulary(),
	}
}

// Validate checks the configuration is usable.
func (c Config) Validate() error {
	if c.NumLayers < 1 {
		return fmt.Errorf("transformer: num layers must be >= 1, got %d", c.NumLayers)
	}
	if c.MaxLen < 1 {
		return fmt.Errorf("transformer: max length must be >= 1, got %d", c.MaxLen)
	}
	if c.Vocab == nil {
		return fmt.Errorf("transformer: vocabulary is nil")
	}
	return nil
}

// CycleTicks is the number of ticks needed to generate the token that
// follows position pos.
func (c Config) CycleTicks(pos int) int {
	return 1 + c.NumLayers*(pos+3) + 2
}

// State is the full observable state of the animator.
type State struct {
	Phase    Phase
	Sequence []string
	Stopped  bool
}

// NewState returns the initial state: idle with only the start sentinel.
func NewState() State {
	return State{Phase: Idle{}, Sequence: []string{StartToken}}
}

// Kind returns the current phase kind.
func (s State) Kind() StepKind {
	if s.Phase == nil {
		return StepIdle
	}
	return s.Phase.Kind()
}

// Layer returns the active layer while in a layer phase.
func (s State) Layer() (int, bool) {
	switch p := s.Phase.(type) {
	case LayerProcess:
		return p.Layer, true
	case Attention:
		return p.Layer, true
	case FFN:
		return p.Layer, true
	}
	return 0, false
}

// Attention returns the current attention highlight, if any.
func (s State) Attention() (Attention, bool) {
	a, ok := s.Phase.(Attention)
	return a, ok
}

// Predicted returns the token produced by the last predict phase while it is
// still on display: during append, and after the run stops on it.
func (s State) Predicted() (string, bool) {
	switch p := s.Phase.(type) {
	case Append:
		return p.Token, true
	case Idle:
		return p.Predicted, p.Predicted != ""
	}
	return "", false
}

// Last returns the newest token in the sequence.
func (s State) Last() string {
	if len(s.Sequence) == 0 {
		return ""
	}
	return s.Sequence[len(s.Sequence)-1]
}

// Clone returns a deep copy whose sequence can be retained by the caller.
func (s State) Clone() State {
	seq := make([]string, len(s.Sequence))
	copy(seq, s.Sequence)
	s.Sequence = seq
	return s
}

func (s State) finished(cfg Config) bool {
	return len(s.Sequence) >= cfg.MaxLen || s.Last() == EndToken
}

// Step advances the state by one tick. It never mutates its input; the
// sequence is copied when a token is appended. A stopped state is returned
// unchanged.
func Step(cfg Config, s State) State {
	if s.Stopped {
		return s
	}
	pos := len(s.Sequence) - 1

	switch p := s.Phase.(type) {
	case nil, Idle, Append:
		if s.finished(cfg) {
			last, _ := s.Predicted()
			return State{Phase: Idle{Predicted: last}, Sequence: s.Sequence, Stopped: true}
		}
		return State{Phase: Embedding{}, Sequence: s.Sequence}

	case Embedding:
		return State{Phase: LayerProcess{Layer: 0}, Sequence: s.Sequence}

	case LayerProcess:
		return State{Phase: Attention{Layer: p.Layer, Target: pos, Source: pos}, Sequence: s.Sequence}

	case Attention:
		if p.Source > 0 {
			p.Source--
			return State{Phase: p, Sequence: s.Sequence}
		}
		return State{Phase: FFN{Layer: p.Layer}, Sequence: s.Sequence}

	case FFN:
		if p.Layer < cfg.NumLayers-1 {
			return State{Phase: LayerProcess{Layer: p.Layer + 1}, Sequence: s.Sequence}
		}
		return State{Phase: Predict{}, Sequence: s.Sequence}

	case Predict:
		tok := cfg.Vocab.Next(s.Sequence)
		if tok != EndToken && len(s.Sequence) < cfg.MaxLen {
			return State{Phase: Append{Token: tok}, Sequence: appendToken(s.Sequence, tok)}
		}
		seq := s.Sequence
		if s.Last() != EndToken && len(seq) < cfg.MaxLen {
			seq = appendToken(seq, EndToken)
		}
		return State{Phase: Idle{Predicted: tok}, Sequence: seq, Stopped: true}
	}

	return State{Phase: Idle{}, Sequence: s.Sequence, Stopped: true}
}

// ManualStep appends the next predicted token directly, skipping the
// animated phases. It reports false when the sequence is already finished.
func ManualStep(cfg Config, s State) (State, bool) {
	if s.Last() == EndToken || len(s.Sequence) >= cfg.MaxLen {
		return s, false
	}
	tok := cfg.Vocab.Next(s.Sequence)
	return State{Phase: Idle{}, Sequence: appendToken(s.Sequence, tok)}, true
}

func appendToken(seq []string, tok string) []string {
	out := make([]string, len(seq), len(seq)+1)
	copy(out, seq)
	return append(out, tok)
}
