// Package config loads the JSON settings for the server, the terminal view
// and every animation.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/openfluke/mlviz/activation"
	"github.com/openfluke/mlviz/anim"
	"github.com/openfluke/mlviz/netviz"
	"github.com/openfluke/mlviz/nn"
	"github.com/openfluke/mlviz/transformer"
)

// Environment overrides, applied after the file.
const (
	EnvAddr        = "MLVIZ_ADDR"
	EnvMaxSessions = "MLVIZ_MAX_SESSIONS"
	EnvGPU         = "MLVIZ_GPU"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("config: invalid value")

type Config struct {
	Server      ServerConfig      `json:"server"`
	Transformer TransformerConfig `json:"transformer"`
	Activation  ActivationConfig  `json:"activation"`
	Descent     DescentConfig     `json:"descent"`
	Linear      LinearConfig      `json:"linear"`
	Logistic    LogisticConfig    `json:"logistic"`
	NetViz      NetVizConfig      `json:"netviz"`
	GPU         bool              `json:"gpu"` // sample activation curves on the GPU when built with -tags gpu
}

type ServerConfig struct {
	Addr        string `json:"addr"`
	MaxSessions int    `json:"max_sessions"`
}

type TransformerConfig struct {
	DelayMS   int      `json:"delay_ms"`
	NumLayers int      `json:"num_layers"`
	MaxLen    int      `json:"max_len"`
	Vocab     []string `json:"vocab,omitempty"` // empty means the built-in vocabulary
}

type ActivationConfig struct {
	Function string  `json:"function"`
	Speed    float64 `json:"speed"`
}

type DescentConfig struct {
	StartX       float64 `json:"start_x"`
	LearningRate float64 `json:"learning_rate"`
	Schedule     string  `json:"schedule"`
}

type LinearConfig struct {
	LearningRate float64 `json:"learning_rate"`
}

type LogisticConfig struct {
	LearningRate   float64 `json:"learning_rate"`
	PointsPerClass int     `json:"points_per_class"`
	Noise          float64 `json:"noise"`
	Seed           int64   `json:"seed"` // 0 seeds from the clock
}

type NetVizConfig struct {
	Speed      int    `json:"speed"`
	Activation string `json:"activation"`
	Seed       int64  `json:"seed,omitempty"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Server: ServerConfig{Addr: ":8080", MaxSessions: 32},
		Transformer: TransformerConfig{
			DelayMS:   500,
			NumLayers: transformer.DefaultNumLayers,
			MaxLen:    transformer.DefaultMaxLen,
		},
		Activation: ActivationConfig{Function: "relu", Speed: activation.DefaultSpeed},
		Descent:    DescentConfig{StartX: 8, LearningRate: 0.3, Schedule: "constant"},
		Linear:     LinearConfig{LearningRate: 0.01},
		Logistic:   LogisticConfig{LearningRate: 0.05, PointsPerClass: 25, Noise: 0.5},
		NetViz:     NetVizConfig{Speed: netviz.DefaultSpeed, Activation: "relu"},
	}
}

// Load reads path over the defaults, applies the environment and
// validates. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config: %w", err)
		}
		if cfg, err = LoadBytes(data); err != nil {
			return cfg, err
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// LoadBytes parses JSON over the defaults. Fields absent from data keep
// their default values.
func LoadBytes(data []byte) (Config, error) {
	cfg := Default()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides the server address, session cap and GPU switch from
// the environment.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvAddr); ok && v != "" {
		c.Server.Addr = v
	}
	if v, ok := lookup(EnvMaxSessions); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %v", ErrInvalid, EnvMaxSessions, v, err)
		}
		c.Server.MaxSessions = n
	}
	if v, ok := lookup(EnvGPU); ok && v != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: %s=%q: %v", ErrInvalid, EnvGPU, v, err)
		}
		c.GPU = b
	}
	return nil
}

func invalid(field string, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalid, field, fmt.Sprintf(format, args...))
}

// Validate checks every field and names the first bad one.
func (c Config) Validate() error {
	if c.Server.Addr == "" {
		return invalid("server.addr", "must not be empty")
	}
	if c.Server.MaxSessions < 1 {
		return invalid("server.max_sessions", "must be >= 1, got %d", c.Server.MaxSessions)
	}

	t := c.Transformer
	opts := anim.TickOptions()
	if d := time.Duration(t.DelayMS) * time.Millisecond; d < opts.MinDelay || d > opts.MaxDelay {
		return invalid("transformer.delay_ms", "must be in [%d, %d], got %d",
			opts.MinDelay.Milliseconds(), opts.MaxDelay.Milliseconds(), t.DelayMS)
	}
	if t.NumLayers < 1 || t.NumLayers > 12 {
		return invalid("transformer.num_layers", "must be in [1, 12], got %d", t.NumLayers)
	}
	if t.MaxLen < 2 || t.MaxLen > 64 {
		return invalid("transformer.max_len", "must be in [2, 64], got %d", t.MaxLen)
	}
	if len(t.Vocab) > 0 {
		if _, err := transformer.NewVocabulary(t.Vocab...); err != nil {
			return invalid("transformer.vocab", "%v", err)
		}
	}

	if _, err := activation.ParseFunction(c.Activation.Function); err != nil {
		return invalid("activation.function", "%v", err)
	}
	if s := c.Activation.Speed; s < activation.MinSpeed || s > activation.MaxSpeed {
		return invalid("activation.speed", "must be in [%g, %g], got %g", activation.MinSpeed, activation.MaxSpeed, s)
	}

	if c.Descent.LearningRate <= 0 {
		return invalid("descent.learning_rate", "must be > 0, got %g", c.Descent.LearningRate)
	}
	if _, err := nn.NewSchedule(c.Descent.Schedule, 1, 1); err != nil {
		return invalid("descent.schedule", "%v", err)
	}

	if c.Linear.LearningRate <= 0 {
		return invalid("linear.learning_rate", "must be > 0, got %g", c.Linear.LearningRate)
	}

	l := c.Logistic
	if l.LearningRate <= 0 {
		return invalid("logistic.learning_rate", "must be > 0, got %g", l.LearningRate)
	}
	if l.PointsPerClass < 1 {
		return invalid("logistic.points_per_class", "must be >= 1, got %d", l.PointsPerClass)
	}
	if l.Noise < 0 {
		return invalid("logistic.noise", "must be >= 0, got %g", l.Noise)
	}

	if s := c.NetViz.Speed; s < netviz.MinSpeed || s > netviz.MaxSpeed {
		return invalid("netviz.speed", "must be in [%d, %d], got %d", netviz.MinSpeed, netviz.MaxSpeed, s)
	}
	if _, err := netviz.ParseActivation(c.NetViz.Activation); err != nil {
		return invalid("netviz.activation", "%v", err)
	}
	return nil
}

// TransformerSettings builds the step machine configuration and the tick
// delay.
func (c Config) TransformerSettings() (transformer.Config, time.Duration, error) {
	tc := transformer.Config{
		NumLayers: c.Transformer.NumLayers,
		MaxLen:    c.Transformer.MaxLen,
		Vocab:     transformer.DefaultVocabulary(),
	}
	if len(c.Transformer.Vocab) > 0 {
		v, err := transformer.NewVocabulary(c.Transformer.Vocab...)
		if err != nil {
			return tc, 0, err
		}
		tc.Vocab = v
	}
	return tc, time.Duration(c.Transformer.DelayMS) * time.Millisecond, nil
}
