package lab

import (
	"fmt"
	"time"

	"github.com/openfluke/mlviz/activation"
	"github.com/openfluke/mlviz/anim"
	"github.com/openfluke/mlviz/config"
	"github.com/openfluke/mlviz/descent"
	"github.com/openfluke/mlviz/netviz"
	"github.com/openfluke/mlviz/nn"
	"github.com/openfluke/mlviz/regression"
	"github.com/openfluke/mlviz/transformer"
)

const (
	titleTransformer = "Decoder-Only Transformer"
	titleActivation  = "Activation Functions"
	titleDescent     = "Gradient Descent"
	titleLinear      = "Linear Regression"
	titleLogistic    = "Logistic Regression"
	titleNetViz      = "Neural Network Architecture"
)

func init() {
	Register("transformer", titleTransformer, newTransformer)
	Register("activation", titleActivation, newActivation)
	Register("descent", titleDescent, newDescent)
	Register("linear", titleLinear, newLinear)
	Register("logistic", titleLogistic, newLogistic)
	Register("netviz", titleNetViz, newNetViz)
}

func newTransformer(cfg config.Config, clock anim.Clock) (Demo, error) {
	tc, delay, err := cfg.TransformerSettings()
	if err != nil {
		return nil, err
	}
	a, err := transformer.NewAnimator(tc, clock)
	if err != nil {
		return nil, err
	}
	a.SetDelay(delay)
	return &demo{
		controls: a,
		name:     "transformer",
		title:    titleTransformer,
		step: func() error {
			_, err := a.ManualStep()
			return err
		},
		params: map[string]func(string) error{
			// milliseconds, clamped and snapped to the tick bounds
			"delay": func(v string) error {
				ms, err := parseInt("delay", v)
				if err != nil {
					return err
				}
				if ms <= 0 {
					return fmt.Errorf("%w: delay=%d", ErrOutOfRange, ms)
				}
				a.SetDelay(time.Duration(ms) * time.Millisecond)
				return nil
			},
		},
		snapshot: func() any { return a.Snapshot() },
		svg:      a.SVG,
	}, nil
}

func newActivation(cfg config.Config, clock anim.Clock) (Demo, error) {
	sampler := nn.NewSampler(cfg.GPU)
	a, err := activation.New(activation.Config{
		Function: cfg.Activation.Function,
		Speed:    cfg.Activation.Speed,
	}, clock, sampler)
	if err != nil {
		sampler.Close()
		return nil, err
	}
	return &demo{
		controls: a,
		name:     "activation",
		title:    titleActivation,
		step:     a.Step,
		params: map[string]func(string) error{
			"function": a.SetFunction,
			"speed": func(v string) error {
				f, err := parseFloat("speed", v)
				if err != nil {
					return err
				}
				a.SetSpeed(f)
				return nil
			},
		},
		snapshot: func() any { return a.Snapshot() },
		svg:      a.SVG,
	}, nil
}

func newDescent(cfg config.Config, clock anim.Clock) (Demo, error) {
	a, err := descent.New(descent.Config{
		StartX:       cfg.Descent.StartX,
		LearningRate: cfg.Descent.LearningRate,
		Schedule:     cfg.Descent.Schedule,
	}, clock)
	if err != nil {
		return nil, err
	}
	v := descent.Viewport()
	return &demo{
		controls: a,
		name:     "descent",
		title:    titleDescent,
		step:     a.Step,
		params: map[string]func(string) error{
			"learning_rate": func(s string) error {
				f, err := parseFloat("learning_rate", s)
				if err != nil {
					return err
				}
				_, err = a.SetLearningRate(f)
				return err
			},
			"schedule": a.SetSchedule,
			"start_x": func(s string) error {
				x, err := parseFloat("start_x", s)
				if err != nil {
					return err
				}
				if err := checkRange("start_x", x, v.XMin, v.XMax); err != nil {
					return err
				}
				return a.SetStartX(x)
			},
		},
		snapshot: func() any { return a.Snapshot() },
		svg:      a.SVG,
	}, nil
}

func newLinear(cfg config.Config, clock anim.Clock) (Demo, error) {
	a := regression.NewLinear(regression.LinearConfig{LearningRate: cfg.Linear.LearningRate}, clock)
	return &demo{
		controls: a,
		name:     "linear",
		title:    titleLinear,
		step:     a.Step,
		params: map[string]func(string) error{
			"learning_rate": func(s string) error {
				f, err := parseFloat("learning_rate", s)
				if err != nil {
					return err
				}
				_, err = a.SetLearningRate(f)
				return err
			},
		},
		snapshot: func() any { return a.Snapshot() },
		svg:      a.SVG,
	}, nil
}

func newLogistic(cfg config.Config, clock anim.Clock) (Demo, error) {
	a := regression.NewLogistic(regression.LogisticConfig{
		LearningRate:   cfg.Logistic.LearningRate,
		PointsPerClass: cfg.Logistic.PointsPerClass,
		Noise:          cfg.Logistic.Noise,
		Seed:           cfg.Logistic.Seed,
	}, clock)
	return &demo{
		controls: a,
		name:     "logistic",
		title:    titleLogistic,
		step:     a.Step,
		params: map[string]func(string) error{
			"learning_rate": func(s string) error {
				f, err := parseFloat("learning_rate", s)
				if err != nil {
					return err
				}
				_, err = a.SetLearningRate(f)
				return err
			},
			// any value draws a fresh data set and resets the fit
			"new_data": func(string) error {
				a.NewData()
				return nil
			},
		},
		snapshot: func() any { return a.Snapshot() },
		svg:      a.SVG,
	}, nil
}

func newNetViz(cfg config.Config, clock anim.Clock) (Demo, error) {
	sampler := nn.NewSampler(cfg.GPU)
	a, err := netviz.New(netviz.Config{
		Speed:      cfg.NetViz.Speed,
		Activation: cfg.NetViz.Activation,
		Seed:       cfg.NetViz.Seed,
	}, clock, sampler)
	if err != nil {
		sampler.Close()
		return nil, err
	}
	toggle := func(param string, set func(bool)) func(string) error {
		return func(v string) error {
			on, err := parseBool(param, v)
			if err != nil {
				return err
			}
			set(on)
			return nil
		}
	}
	return &demo{
		controls: a,
		name:     "netviz",
		title:    titleNetViz,
		step:     a.Step,
		params: map[string]func(string) error{
			"speed": func(v string) error {
				n, err := parseInt("speed", v)
				if err != nil {
					return err
				}
				a.SetSpeed(n)
				return nil
			},
			"activation":            a.SetActivation,
			"show_weights":          toggle("show_weights", a.SetShowWeights),
			"show_activation_layer": toggle("show_activation_layer", a.SetShowActivationLayer),
			"highlight_bias":        toggle("highlight_bias", a.SetHighlightBias),
		},
		snapshot: func() any { return a.Snapshot() },
		svg:      a.SVG,
	}, nil
}
