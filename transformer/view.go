package transformer

import "strconv"

// Chip is one rendered token of the input sequence.
type Chip struct {
	Text            string   `json:"text"`
	Processing      bool     `json:"processing"`
	Embedding       bool     `json:"embedding"`
	AttentionSource bool     `json:"attention_source"`
	AttentionTarget bool     `json:"attention_target"`
	Classes         []string `json:"classes"`
}

// Arrow is the attention arrow inside the active layer, in percent of the
// sequence row width.
type Arrow struct {
	LeftPct  float64 `json:"left_pct"`
	WidthPct float64 `json:"width_pct"`
}

// LayerBox is one decoder layer with its two sub-blocks.
type LayerBox struct {
	Index           int    `json:"index"`
	Active          bool   `json:"active"`
	AttentionActive bool   `json:"attention_active"`
	FFNActive       bool   `json:"ffn_active"`
	Arrow           *Arrow `json:"arrow,omitempty"`
}

// View is everything a renderer needs for one frame. It is derived from a
// State and never feeds back into it.
type View struct {
	Chips           []Chip     `json:"chips"`
	Predicting      bool       `json:"predicting"` // trailing "?" chip
	EmbeddingActive bool       `json:"embedding_active"`
	Layers          []LayerBox `json:"layers"`
	OutputActive    bool       `json:"output_active"`
	Predicted       string     `json:"predicted,omitempty"`
	Status          string     `json:"status"`
	Len             int        `json:"len"`
	LayerLabel      string     `json:"layer"`
	Stopped         bool       `json:"stopped"`
}

// Project derives the view for s.
func Project(cfg Config, s State) View {
	kind := s.Kind()
	n := len(s.Sequence)
	att, attOK := s.Attention()
	busy := kind != StepIdle && kind != StepAppend

	v := View{
		Chips:           make([]Chip, n),
		Predicting:      busy && s.Last() != EndToken && n < cfg.MaxLen,
		EmbeddingActive: kind == StepEmbedding,
		Layers:          make([]LayerBox, cfg.NumLayers),
		OutputActive:    kind == StepPredict || kind == StepAppend,
		Status:          kind.String(),
		Len:             n,
		LayerLabel:      "N/A",
		Stopped:         s.Stopped,
	}
	if tok, ok := s.Predicted(); ok {
		v.Predicted = tok
	}

	for i, tok := range s.Sequence {
		c := Chip{
			Text:            tok,
			Processing:      busy && i == n-1,
			Embedding:       kind == StepEmbedding && i == n-1,
			AttentionSource: attOK && i == att.Source,
			AttentionTarget: attOK && i == att.Target,
		}
		c.Classes = chipClasses(c)
		v.Chips[i] = c
	}

	layer, inLayer := s.Layer()
	if inLayer {
		v.LayerLabel = strconv.Itoa(layer + 1)
	}
	for i := range v.Layers {
		box := LayerBox{Index: i, Active: inLayer && layer == i}
		box.AttentionActive = box.Active && kind == StepAttention
		box.FFNActive = box.Active && kind == StepFFN
		if box.AttentionActive && attOK {
			box.Arrow = arrowFor(att, n)
		}
		v.Layers[i] = box
	}
	return v
}

func chipClasses(c Chip) []string {
	classes := []string{"token"}
	if c.Processing && !c.AttentionSource {
		classes = append(classes, "token-processing")
	}
	if c.Embedding {
		classes = append(classes, "token-embedding")
	}
	if c.AttentionSource {
		classes = append(classes, "token-attention-source")
	}
	if c.AttentionTarget && !c.AttentionSource {
		classes = append(classes, "token-attention-target")
	}
	return classes
}

func arrowFor(a Attention, n int) *Arrow {
	if n < 1 {
		n = 1
	}
	width := float64(a.Target-a.Source) / float64(n) * 100
	if width < 0 {
		width = 0
	}
	return &Arrow{
		LeftPct:  (float64(a.Source) + 0.5) / float64(n) * 100,
		WidthPct: width,
	}
}

// HasClass reports whether the chip carries class.
func (c Chip) HasClass(class string) bool {
	for _, cl := range c.Classes {
		if cl == class {
			return true
		}
	}
	return false
}
