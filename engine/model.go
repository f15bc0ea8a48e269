package engine

import (
	"fmt"
	"math"
	"strings"
)

// Loss and optimizer identifiers accepted by Compile.
const (
	LossCategoricalCrossEntropy = "categorical_crossentropy"

	OptimizerAdam = "adam"
	OptimizerSGD  = "sgd"

	MetricAccuracy = "accuracy"
)

// Model is a multi-input text classifier: each input slot is a token-id
// sequence that is embedded and mean-pooled through a shared Embedding, the
// pooled slot vectors are concatenated, passed through a stack of hidden
// Dense layers, and classified by a softmax output head.
//
// The model does not copy its layers. Wiring a model from layers owned by
// another model (e.g. a solver's retained embedding) means training this
// model updates those layers' parameters in place.
type Model struct {
	name      string
	numSlots  int
	embedding *Embedding
	hidden    []*Dense
	output    *Dense

	compiled      bool
	loss          string
	optimizer     string
	trackAccuracy bool
	adam          *adamState
}

// ModelConfig wires up a Model from its layers.
type ModelConfig struct {
	// Name identifies the model in summaries and errors.
	Name string

	// NumSlots is the number of token-sequence inputs per example.
	// If zero, 1 is used.
	NumSlots int

	// Embedding applied to every input slot. Required.
	Embedding *Embedding

	// Hidden is the stack of layers applied to the concatenated pooled
	// slot vectors, in order. May be empty.
	Hidden []*Dense

	// Output is the classification head. Required.
	Output *Dense
}

// NewModel builds a model from the given layers, validating that their
// dimensions chain together.
func NewModel(cfg ModelConfig) (*Model, error) {
	if cfg.Embedding == nil {
		return nil, fmt.Errorf("model %q: embedding layer is required", cfg.Name)
	}
	if cfg.Output == nil {
		return nil, fmt.Errorf("model %q: output layer is required", cfg.Name)
	}
	numSlots := cfg.NumSlots
	if numSlots == 0 {
		numSlots = 1
	}
	if numSlots < 0 {
		return nil, fmt.Errorf("model %q: invalid slot count %d", cfg.Name, numSlots)
	}

	// Validate the dimension chain from concatenated pooled slots through to
	// the output head.
	expect := numSlots * cfg.Embedding.Dim()
	for _, layer := range cfg.Hidden {
		if layer.InDim() != expect {
			return nil, fmt.Errorf("model %q: layer %q expects input dim %d, got %d",
				cfg.Name, layer.Name, layer.InDim(), expect)
		}
		expect = layer.OutDim()
	}
	if cfg.Output.InDim() != expect {
		return nil, fmt.Errorf("model %q: output layer %q expects input dim %d, got %d",
			cfg.Name, cfg.Output.Name, cfg.Output.InDim(), expect)
	}

	return &Model{
		name:      cfg.Name,
		numSlots:  numSlots,
		embedding: cfg.Embedding,
		hidden:    cfg.Hidden,
		output:    cfg.Output,
	}, nil
}

// NumSlots returns the number of input slots the model expects.
func (m *Model) NumSlots() int { return m.numSlots }

// NumClasses returns the output dimension of the classification head.
func (m *Model) NumClasses() int { return m.output.OutDim() }

// denses returns all dense layers in forward order, output head last.
func (m *Model) denses() []*Dense {
	layers := make([]*Dense, 0, len(m.hidden)+1)
	layers = append(layers, m.hidden...)
	layers = append(layers, m.output)
	return layers
}

// Summary returns a human-readable description of the model's layers and
// parameter counts.
func (m *Model) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Model %q (%d input slots)\n", m.name, m.numSlots)
	total := 0
	embParams := m.embedding.VocabSize() * m.embedding.Dim()
	total += embParams
	fmt.Fprintf(&b, "  %-24s embedding %dx%d  params=%d\n",
		m.embedding.Name, m.embedding.VocabSize(), m.embedding.Dim(), embParams)
	for _, layer := range m.denses() {
		params := layer.OutDim()*layer.InDim() + layer.OutDim()
		total += params
		fmt.Fprintf(&b, "  %-24s dense %dx%d %s  params=%d\n",
			layer.Name, layer.OutDim(), layer.InDim(), layer.Activation, params)
	}
	fmt.Fprintf(&b, "  total params=%d", total)
	return b.String()
}

// Compile validates the loss, optimizer and metric identifiers and prepares
// optimizer state. Must be called before Fit.
func (m *Model) Compile(loss, optimizer string, metrics []string) error {
	if loss != LossCategoricalCrossEntropy {
		return fmt.Errorf("model %q: unsupported loss %q", m.name, loss)
	}
	if m.output.Activation != ActivationSoftmax {
		return fmt.Errorf("model %q: loss %q requires a softmax output layer, got %q",
			m.name, loss, m.output.Activation)
	}
	switch optimizer {
	case OptimizerAdam, OptimizerSGD:
	default:
		return fmt.Errorf("model %q: unsupported optimizer %q", m.name, optimizer)
	}
	for _, metric := range metrics {
		if metric != MetricAccuracy {
			return fmt.Errorf("model %q: unsupported metric %q", m.name, metric)
		}
		m.trackAccuracy = true
	}
	m.loss = loss
	m.optimizer = optimizer
	if optimizer == OptimizerAdam {
		m.adam = newAdamState(m)
	}
	m.compiled = true
	return nil
}

// forwardExample runs one example through the model, returning every
// intermediate value needed for backpropagation.
type forwardState struct {
	pooled [][]float32 // per slot
	used   [][]int32   // non-padding ids per slot
	concat []float32
	pres   [][]float32 // per dense layer
	acts   [][]float32 // per dense layer; last is the softmax output
}

func (m *Model) forwardExample(slots [][]int32) (*forwardState, error) {
	if len(slots) != m.numSlots {
		return nil, fmt.Errorf("model %q: example has %d input slots, expected %d",
			m.name, len(slots), m.numSlots)
	}
	st := &forwardState{
		pooled: make([][]float32, m.numSlots),
		used:   make([][]int32, m.numSlots),
	}
	dim := m.embedding.Dim()
	st.concat = make([]float32, m.numSlots*dim)
	for s, ids := range slots {
		pooled, used := m.embedding.poolSequence(ids)
		st.pooled[s] = pooled
		st.used[s] = used
		copy(st.concat[s*dim:], pooled)
	}

	in := st.concat
	for _, layer := range m.denses() {
		pre, act := layer.forward(in)
		st.pres = append(st.pres, pre)
		st.acts = append(st.acts, act)
		in = act
	}
	return st, nil
}

// Predict runs a forward pass over slot-major inputs and returns one
// probability vector per example.
func (m *Model) Predict(inputs [][][]int32) ([][]float32, error) {
	n, err := m.checkInputs(inputs)
	if err != nil {
		return nil, err
	}
	out := make([][]float32, n)
	for i := 0; i < n; i++ {
		st, err := m.forwardExample(exampleSlots(inputs, i))
		if err != nil {
			return nil, err
		}
		out[i] = st.acts[len(st.acts)-1]
	}
	return out, nil
}

// Evaluate computes mean loss and accuracy over slot-major inputs.
func (m *Model) Evaluate(inputs [][][]int32, labels [][]float32) (loss, accuracy float64, err error) {
	if !m.compiled {
		return 0, 0, fmt.Errorf("model %q: not compiled", m.name)
	}
	n, err := m.checkInputs(inputs)
	if err != nil {
		return 0, 0, err
	}
	if n != len(labels) {
		return 0, 0, fmt.Errorf("model %q: %d examples but %d labels", m.name, n, len(labels))
	}
	if n == 0 {
		return 0, 0, nil
	}
	var sumLoss float64
	correct := 0
	for i := 0; i < n; i++ {
		st, err := m.forwardExample(exampleSlots(inputs, i))
		if err != nil {
			return 0, 0, err
		}
		probs := st.acts[len(st.acts)-1]
		sumLoss += crossEntropy(probs, labels[i])
		if argmax(probs) == argmax(labels[i]) {
			correct++
		}
	}
	return sumLoss / float64(n), float64(correct) / float64(n), nil
}

// checkInputs validates slot-major inputs and returns the example count.
func (m *Model) checkInputs(inputs [][][]int32) (int, error) {
	if len(inputs) != m.numSlots {
		return 0, fmt.Errorf("model %q: got %d input arrays, expected %d", m.name, len(inputs), m.numSlots)
	}
	n := len(inputs[0])
	for s := 1; s < len(inputs); s++ {
		if len(inputs[s]) != n {
			return 0, fmt.Errorf("model %q: input slot %d has %d examples, slot 0 has %d",
				m.name, s, len(inputs[s]), n)
		}
	}
	return n, nil
}

// exampleSlots gathers example i's sequences from slot-major inputs.
func exampleSlots(inputs [][][]int32, i int) [][]int32 {
	slots := make([][]int32, len(inputs))
	for s := range inputs {
		slots[s] = inputs[s][i]
	}
	return slots
}

const lossEpsilon = 1e-7

// crossEntropy computes categorical cross-entropy for one example.
func crossEntropy(probs, label []float32) float64 {
	var loss float64
	for i := range label {
		if label[i] == 0 {
			continue
		}
		p := float64(probs[i])
		if p < lossEpsilon {
			p = lossEpsilon
		}
		loss -= float64(label[i]) * math.Log(p)
	}
	return loss
}

func argmax(x []float32) int {
	best := 0
	for i, v := range x {
		if v > x[best] {
			best = i
		}
	}
	return best
}
