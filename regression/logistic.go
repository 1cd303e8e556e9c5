package regression

import (
	"math"
	"math/rand"
	"time"

	"github.com/openfluke/mlviz/anim"
	"github.com/openfluke/mlviz/plot"
)

const (
	DefaultLogisticLR = 0.05
	MinLogisticLR     = 0.01
	MaxLogisticLR     = 0.5

	DefaultPointsPerClass = 25
	DefaultNoise          = 0.5

	// Epsilon clips probabilities away from 0 and 1 in the log loss.
	Epsilon = 1e-9

	// Threshold is the probability at or above which class 1 is predicted.
	Threshold = 0.5
)

// Class centres of the generated clusters.
var (
	Centre0 = plot.Point{X: 2, Y: 3}
	Centre1 = plot.Point{X: 6, Y: 7}
)

// Sample is a labelled 2-D point.
type Sample struct {
	X1 float64 `json:"x1"`
	X2 float64 `json:"x2"`
	Y  int     `json:"y"`
}

// GenerateData draws perClass points uniformly jittered around each centre:
// class 0 first, then class 1.
func GenerateData(rng *rand.Rand, perClass int, noise float64) []Sample {
	jitter := func() float64 { return (rng.Float64() - 0.5) * 4 * noise * 2 }
	data := make([]Sample, 0, 2*perClass)
	for i := 0; i < perClass; i++ {
		data = append(data, Sample{X1: Centre0.X + jitter(), X2: Centre0.Y + jitter(), Y: 0})
	}
	for i := 0; i < perClass; i++ {
		data = append(data, Sample{X1: Centre1.X + jitter(), X2: Centre1.Y + jitter(), Y: 1})
	}
	return data
}

// LogisticState holds the weights of p(y=1) = sigmoid(W1*x1 + W2*x2 + B).
type LogisticState struct {
	W1, W2, B float64
	Iteration int
	Converged bool
}

func sigmoid(z float64) float64 { return 1 / (1 + math.Exp(-z)) }

// Probability is p(y=1 | x1, x2).
func (s LogisticState) Probability(x1, x2 float64) float64 {
	return sigmoid(s.W1*x1 + s.W2*x2 + s.B)
}

// LogLoss is the mean binary cross-entropy with probabilities clipped to
// [Epsilon, 1-Epsilon].
func (s LogisticState) LogLoss(data []Sample) float64 {
	if len(data) == 0 {
		return 0
	}
	var total float64
	for _, d := range data {
		p := math.Max(Epsilon, math.Min(1-Epsilon, s.Probability(d.X1, d.X2)))
		y := float64(d.Y)
		total -= y*math.Log(p) + (1-y)*math.Log(1-p)
	}
	return total / float64(len(data))
}

// Accuracy is the percentage of samples classified correctly at Threshold.
func (s LogisticState) Accuracy(data []Sample) float64 {
	if len(data) == 0 {
		return 0
	}
	correct := 0
	for _, d := range data {
		pred := 0
		if s.Probability(d.X1, d.X2) >= Threshold {
			pred = 1
		}
		if pred == d.Y {
			correct++
		}
	}
	return float64(correct) / float64(len(data)) * 100
}

// Gradients returns the mean log-loss gradients for W1, W2 and B.
func (s LogisticState) Gradients(data []Sample) (g1, g2, gb float64) {
	n := float64(len(data))
	for _, d := range data {
		e := s.Probability(d.X1, d.X2) - float64(d.Y)
		g1 += e * d.X1 / n
		g2 += e * d.X2 / n
		gb += e / n
	}
	return g1, g2, gb
}

// Step applies one gradient update. It reports false without changing the
// weights when data is empty or, after the warmup, the gradient magnitude is
// below Tolerance.
func (s *LogisticState) Step(data []Sample, lr float64) bool {
	if len(data) == 0 {
		return false
	}
	g1, g2, gb := s.Gradients(data)
	if s.Iteration > WarmupIterations && math.Sqrt(g1*g1+g2*g2+gb*gb) < Tolerance {
		s.Converged = true
		return false
	}
	s.W1 -= lr * g1
	s.W2 -= lr * g2
	s.B -= lr * gb
	s.Iteration++
	return true
}

// Boundary returns the pixel segment where W1*x1 + W2*x2 + B = 0 across the
// viewport. The line is vertical when W2 is ~0, and absent when both weights
// are.
func (s LogisticState) Boundary(v plot.Viewport) (plot.Point, plot.Point, bool) {
	const tiny = 1e-6
	if math.Abs(s.W2) < tiny {
		if math.Abs(s.W1) <= tiny {
			return plot.Point{}, plot.Point{}, false
		}
		px := v.ToPixel(-s.B/s.W1, 0).X
		return plot.Point{X: px, Y: 0}, plot.Point{X: px, Y: v.Height}, true
	}
	y1 := (-s.W1*v.XMin - s.B) / s.W2
	y2 := (-s.W1*v.XMax - s.B) / s.W2
	return v.ToPixel(v.XMin, y1), v.ToPixel(v.XMax, y2), true
}

// ClampLogisticLR bounds a learning rate to [MinLogisticLR, MaxLogisticLR].
func ClampLogisticLR(v float64) float64 {
	return math.Min(MaxLogisticLR, math.Max(MinLogisticLR, v))
}

type logisticModel struct {
	state LogisticState
	data  []Sample
	lr    float64
}

func (m *logisticModel) Tick() bool { return m.state.Step(m.data, m.lr) }
func (m *logisticModel) Reset()     { m.state = LogisticState{} }

// LogisticConfig holds the data and training parameters. Zero values take
// the defaults; a zero Seed seeds from the clock.
type LogisticConfig struct {
	LearningRate   float64
	PointsPerClass int
	Noise          float64
	Seed           int64
}

// Logistic runs logistic regression once per frame until it converges.
type Logistic struct {
	m     *logisticModel
	sched *anim.Scheduler
	rng   *rand.Rand
	cfg   LogisticConfig
}

// NewLogistic generates a data set and builds a paused animation.
func NewLogistic(cfg LogisticConfig, clock anim.Clock) *Logistic {
	if cfg.LearningRate == 0 {
		cfg.LearningRate = DefaultLogisticLR
	}
	if cfg.PointsPerClass <= 0 {
		cfg.PointsPerClass = DefaultPointsPerClass
	}
	if cfg.Noise == 0 {
		cfg.Noise = DefaultNoise
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	m := &logisticModel{
		data: GenerateData(rng, cfg.PointsPerClass, cfg.Noise),
		lr:   ClampLogisticLR(cfg.LearningRate),
	}
	return &Logistic{m: m, sched: anim.NewScheduler(clock, m, anim.FrameOptions()), rng: rng, cfg: cfg}
}

func (l *Logistic) Scheduler() *anim.Scheduler { return l.sched }

func (l *Logistic) Start() error            { return l.sched.Start() }
func (l *Logistic) Pause()                  { l.sched.Pause() }
func (l *Logistic) Toggle() error           { return l.sched.Toggle() }
func (l *Logistic) Reset()                  { l.sched.Reset() }
func (l *Logistic) Running() bool           { return l.sched.Running() }
func (l *Logistic) Observe(o anim.Observer) { l.sched.Observe(o) }
func (l *Logistic) Close()                  { l.sched.Close() }

// Step applies one update by hand.
func (l *Logistic) Step() error {
	_, err := l.sched.StepOnce()
	return err
}

// SetLearningRate is rejected while running.
func (l *Logistic) SetLearningRate(v float64) (float64, error) {
	v = ClampLogisticLR(v)
	return v, l.sched.DoPaused(func() { l.m.lr = v })
}

// NewData stops the run, draws a fresh data set and resets the weights.
func (l *Logistic) NewData() {
	l.sched.Reset()
	l.sched.Do(func() {
		l.m.data = GenerateData(l.rng, l.cfg.PointsPerClass, l.cfg.Noise)
	})
}

// State returns the weights, a copy of the data and the rate in use.
func (l *Logistic) State() (LogisticState, []Sample, float64) {
	var s LogisticState
	var data []Sample
	var lr float64
	l.sched.Do(func() {
		s, lr = l.m.state, l.m.lr
		data = append([]Sample(nil), l.m.data...)
	})
	return s, data, lr
}
