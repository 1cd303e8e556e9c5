package transformer

import (
	"errors"
	"testing"
	"time"

	"github.com/openfluke/mlviz/anim"
)

func smallConfig(t *testing.T) Config {
	t.Helper()
	v, err := NewVocabulary(StartToken, "The", "quick", EndToken)
	if err != nil {
		t.Fatalf("NewVocabulary: %v", err)
	}
	return Config{NumLayers: DefaultNumLayers, MaxLen: 4, Vocab: v}
}

// runToStop steps until the state stops, bounded to catch runaway loops.
func runToStop(t *testing.T, cfg Config, s State) (State, []State) {
	t.Helper()
	var trace []State
	for i := 0; i < 10000; i++ {
		if s.Stopped {
			return s, trace
		}
		s = Step(cfg, s)
		trace = append(trace, s)
	}
	t.Fatal("state machine never stopped")
	return s, trace
}

func TestNewVocabularyValidation(t *testing.T) {
	cases := []struct {
		name   string
		tokens []string
	}{
		{"too short", []string{StartToken}},
		{"start not first", []string{"a", StartToken, EndToken}},
		{"end not last", []string{StartToken, EndToken, "a"}},
		{"duplicate", []string{StartToken, "a", "a", EndToken}},
	}
	for _, tc := range cases {
		if _, err := NewVocabulary(tc.tokens...); !errors.Is(err, ErrInvalidVocabulary) {
			t.Errorf("%s: expected ErrInvalidVocabulary, got %v", tc.name, err)
		}
	}
	if _, err := NewVocabulary(StartToken, EndToken); err != nil {
		t.Errorf("minimal vocabulary rejected: %v", err)
	}
}

func TestPredictionRule(t *testing.T) {
	v := DefaultVocabulary()
	toks := v.Tokens()
	n := len(toks)
	for i := 0; i < n-2; i++ {
		if got := v.Next([]string{StartToken, toks[i]}); got != toks[i+1] {
			t.Errorf("Next after %q = %q, want %q", toks[i], got, toks[i+1])
		}
	}
	for _, last := range []string{toks[n-2], EndToken, "zebra"} {
		if got := v.Next([]string{StartToken, last}); got != EndToken {
			t.Errorf("Next after %q = %q, want %s", last, got, EndToken)
		}
	}
	if got := v.Next(nil); got != EndToken {
		t.Errorf("Next on empty sequence = %q, want %s", got, EndToken)
	}
}

func TestSequenceNeverExceedsMaxLen(t *testing.T) {
	for _, maxLen := range []int{1, 2, 3, 5, 10, 20} {
		cfg := DefaultConfig()
		cfg.MaxLen = maxLen
		final, trace := runToStop(t, cfg, NewState())
		for _, s := range trace {
			if len(s.Sequence) > maxLen {
				t.Fatalf("maxLen %d: sequence grew to %d", maxLen, len(s.Sequence))
			}
		}
		if len(final.Sequence) > maxLen {
			t.Errorf("maxLen %d: final length %d", maxLen, len(final.Sequence))
		}
	}
}

func TestNoAppendAfterEnd(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxLen = 64
	final, trace := runToStop(t, cfg, NewState())
	if final.Last() != EndToken {
		t.Fatalf("expected run to end with %s, got %v", EndToken, final.Sequence)
	}
	seenEnd := false
	prevLen := 0
	for _, s := range trace {
		if seenEnd && len(s.Sequence) != prevLen {
			t.Fatalf("token appended after %s: %v", EndToken, s.Sequence)
		}
		if s.Last() == EndToken {
			seenEnd = true
		}
		prevLen = len(s.Sequence)
	}
	for i := 0; i < 5; i++ {
		next := Step(cfg, final)
		if len(next.Sequence) != len(final.Sequence) || !next.Stopped {
			t.Fatalf("stopped state is not a fixed point")
		}
	}
}

func TestAttentionSweepOrder(t *testing.T) {
	cfg := DefaultConfig()
	for p := 0; p < 4; p++ {
		seq := []string{StartToken}
		for len(seq) < p+1 {
			seq = append(seq, cfg.Vocab.Next(seq))
		}
		s := Step(cfg, State{Phase: LayerProcess{Layer: 1}, Sequence: seq})
		var sources []int
		for s.Kind() == StepAttention {
			a, _ := s.Attention()
			if a.Target != p || a.Layer != 1 {
				t.Fatalf("p=%d: unexpected highlight %+v", p, a)
			}
			sources = append(sources, a.Source)
			s = Step(cfg, s)
		}
		if len(sources) != p+1 {
			t.Fatalf("p=%d: sweep took %d ticks, want %d", p, len(sources), p+1)
		}
		for i, src := range sources {
			if src != p-i {
				t.Fatalf("p=%d: sweep %v is not p..0", p, sources)
			}
		}
		if f, ok := s.Phase.(FFN); !ok || f.Layer != 1 {
			t.Fatalf("p=%d: sweep should end in ffn(1), got %v", p, s.Kind())
		}
		if _, ok := s.Attention(); ok {
			t.Fatalf("p=%d: highlight still active after sweep", p)
		}
	}
}

func TestFullCycleVisitOrder(t *testing.T) {
	cfg := DefaultConfig()
	seq := []string{StartToken, "The", "quick"}
	p := len(seq) - 1

	var want []StepKind
	want = append(want, StepEmbedding)
	for l := 0; l < cfg.NumLayers; l++ {
		want = append(want, StepLayerProcess)
		for i := 0; i <= p; i++ {
			want = append(want, StepAttention)
		}
		want = append(want, StepFFN)
	}
	want = append(want, StepPredict, StepAppend)

	if len(want) != cfg.CycleTicks(p) {
		t.Fatalf("CycleTicks(%d) = %d, want %d", p, cfg.CycleTicks(p), len(want))
	}

	s := State{Phase: Idle{}, Sequence: seq}
	for i, k := range want {
		s = Step(cfg, s)
		if s.Kind() != k {
			t.Fatalf("tick %d: got %v, want %v", i+1, s.Kind(), k)
		}
		if k == StepLayerProcess {
			if l, _ := s.Layer(); l != (i-1)/(p+3) {
				t.Fatalf("tick %d: layer %d, want %d", i+1, l, (i-1)/(p+3))
			}
		}
	}
	tok, ok := s.Predicted()
	if !ok || tok != "brown" {
		t.Fatalf("predicted = %q,%v; want brown", tok, ok)
	}
	if s.Last() != "brown" || len(s.Sequence) != 4 {
		t.Fatalf("append should extend the sequence, got %v", s.Sequence)
	}
}

func TestStepDoesNotMutateInput(t *testing.T) {
	cfg := DefaultConfig()
	seq := make([]string, 1, 8)
	seq[0] = StartToken
	s := State{Phase: Predict{}, Sequence: seq}
	next := Step(cfg, s)
	if len(s.Sequence) != 1 || seq[:2][1] != "" {
		t.Fatalf("input sequence was modified: %v", seq[:2])
	}
	if len(next.Sequence) != 2 {
		t.Fatalf("expected append, got %v", next.Sequence)
	}
}

func TestExampleScenario(t *testing.T) {
	cfg := smallConfig(t)

	s := NewState()
	for i := 0; i < cfg.CycleTicks(0); i++ {
		s = Step(cfg, s)
	}
	tok, ok := s.Predicted()
	if !ok || tok != "The" {
		t.Fatalf("after first cycle predicted = %q, want The", tok)
	}
	if len(s.Sequence) != 2 || s.Sequence[1] != "The" {
		t.Fatalf("after first cycle sequence = %v", s.Sequence)
	}

	final, _ := runToStop(t, cfg, s)
	want := []string{StartToken, "The", "quick", EndToken}
	if len(final.Sequence) != len(want) {
		t.Fatalf("final sequence %v, want %v", final.Sequence, want)
	}
	for i := range want {
		if final.Sequence[i] != want[i] {
			t.Fatalf("final sequence %v, want %v", final.Sequence, want)
		}
	}
	if final.Kind() != StepIdle {
		t.Fatalf("stopped in %v, want idle", final.Kind())
	}
}

func TestStoppedRunKeepsFinalPrediction(t *testing.T) {
	final, _ := runToStop(t, smallConfig(t), NewState())
	if tok, ok := final.Predicted(); !ok || tok != EndToken {
		t.Fatalf("predicted after stop = %q,%v; want %s", tok, ok, EndToken)
	}

	// stopping on max length keeps the token appended last
	cfg := DefaultConfig()
	cfg.MaxLen = 2
	final, _ = runToStop(t, cfg, NewState())
	if tok, ok := final.Predicted(); !ok || tok != "The" || final.Kind() != StepIdle {
		t.Fatalf("predicted after stop = %q,%v in %v; want The", tok, ok, final.Kind())
	}
	if v := Project(cfg, final); v.Predicted != "The" || v.OutputActive || v.Predicting {
		t.Fatalf("stopped view = %+v", v)
	}
}

func TestManualStep(t *testing.T) {
	cfg := smallConfig(t)
	s := NewState()
	var ok bool
	for _, want := range []string{"The", "quick", EndToken} {
		s, ok = ManualStep(cfg, s)
		if !ok || s.Last() != want {
			t.Fatalf("ManualStep appended %q (ok=%v), want %q", s.Last(), ok, want)
		}
	}
	if _, ok = ManualStep(cfg, s); ok {
		t.Fatal("ManualStep should refuse after end")
	}
}

func TestAnimatorScenarioWithFakeClock(t *testing.T) {
	cfg := smallConfig(t)
	clock := anim.NewFakeClock()
	a, err := NewAnimator(cfg, clock)
	if err != nil {
		t.Fatalf("NewAnimator: %v", err)
	}
	defer a.Close()

	if err := a.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	// first tick at half the delay, then one per delay
	clock.Advance(250 * time.Millisecond)
	clock.Advance(time.Duration(cfg.CycleTicks(0)-1) * 500 * time.Millisecond)
	if tok, ok := a.State().Predicted(); !ok || tok != "The" {
		t.Fatalf("predicted %q,%v after one cycle", tok, ok)
	}

	clock.Advance(time.Minute)
	s := a.State()
	if !s.Stopped || a.Running() {
		t.Fatalf("run should have stopped: stopped=%v running=%v", s.Stopped, a.Running())
	}
	if len(s.Sequence) != 4 || s.Last() != EndToken {
		t.Fatalf("final sequence %v", s.Sequence)
	}
	if clock.Pending() != 0 {
		t.Fatalf("stopped run left %d pending timers", clock.Pending())
	}

	clock.Advance(time.Minute)
	if got := a.State(); len(got.Sequence) != 4 {
		t.Fatalf("ticks after stop changed state: %v", got.Sequence)
	}
}

func TestAnimatorResetCancelsPendingTick(t *testing.T) {
	clock := anim.NewFakeClock()
	a, err := NewAnimator(DefaultConfig(), clock)
	if err != nil {
		t.Fatalf("NewAnimator: %v", err)
	}
	defer a.Close()

	if err := a.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	clock.Advance(250*time.Millisecond + 4*500*time.Millisecond)
	if a.State().Kind() == StepIdle {
		t.Fatal("expected animator to be mid-cycle")
	}

	a.Reset()
	clock.Advance(10 * time.Second)

	s := a.State()
	if s.Kind() != StepIdle || len(s.Sequence) != 1 || s.Sequence[0] != StartToken {
		t.Fatalf("reset state = %+v", s)
	}
	if _, ok := s.Layer(); ok {
		t.Fatal("layer should be inactive after reset")
	}
	if _, ok := s.Attention(); ok {
		t.Fatal("attention should be inactive after reset")
	}
	if _, ok := s.Predicted(); ok {
		t.Fatal("predicted token should be cleared after reset")
	}
	if a.Running() {
		t.Fatal("reset should stop the run")
	}
}

func TestAnimatorManualStepRejectedWhileRunning(t *testing.T) {
	clock := anim.NewFakeClock()
	a, err := NewAnimator(DefaultConfig(), clock)
	if err != nil {
		t.Fatalf("NewAnimator: %v", err)
	}
	defer a.Close()

	if ok, err := a.ManualStep(); err != nil || !ok {
		t.Fatalf("ManualStep while paused: %v, %v", ok, err)
	}
	if err := a.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := a.ManualStep(); !errors.Is(err, anim.ErrRunning) {
		t.Fatalf("expected ErrRunning, got %v", err)
	}
}
