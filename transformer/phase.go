package transformer

// StepKind enumerates the phases of one generation cycle.
type StepKind int

const (
	StepIdle StepKind = iota
	StepEmbedding
	StepLayerProcess
	StepAttention
	StepFFN
	StepPredict
	StepAppend
)

var stepNames = [...]string{
	StepIdle:         "idle",
	StepEmbedding:    "embedding",
	StepLayerProcess: "layer_process",
	StepAttention:    "attention",
	StepFFN:          "ffn",
	StepPredict:      "predict",
	StepAppend:       "append",
}

func (k StepKind) String() string {
	if k < 0 || int(k) >= len(stepNames) {
		return "unknown"
	}
	return stepNames[k]
}

// MarshalText lets StepKind appear by name in JSON views.
func (k StepKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Phase is a tagged variant: each concrete type carries only the fields
// that are meaningful in that phase.
type Phase interface {
	Kind() StepKind
	phase()
}

type (
	// Idle is the resting phase before a cycle starts or after a run stops.
	// A stopped run keeps its final prediction in Predicted.
	Idle struct{ Predicted string }

	// Embedding marks the newest position being embedded.
	Embedding struct{}

	// LayerProcess is entered once per decoder layer.
	LayerProcess struct{ Layer int }

	// Attention sweeps Source from Target down to 0, one position per tick.
	Attention struct {
		Layer  int
		Target int
		Source int
	}

	// FFN is the feed-forward block of Layer.
	FFN struct{ Layer int }

	// Predict runs the output head.
	Predict struct{}

	// Append holds the token that was just appended to the sequence.
	Append struct{ Token string }
)

func (Idle) Kind() StepKind         { return StepIdle }
func (Embedding) Kind() StepKind    { return StepEmbedding }
func (LayerProcess) Kind() StepKind { return StepLayerProcess }
func (Attention) Kind() StepKind    { return StepAttention }
func (FFN) Kind() StepKind          { return StepFFN }
func (Predict) Kind() StepKind      { return StepPredict }
func (Append) Kind() StepKind       { return StepAppend }

func (Idle) phase()         {}
func (Embedding) phase()    {}
func (LayerProcess) phase() {}
func (Attention) phase()    {}
func (FFN) phase()          {}
func (Predict) phase()      {}
func (Append) phase()       {}
