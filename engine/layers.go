package engine

import (
	"math"
	"math/rand"
)

// Trainable layers. A layer owns its parameter storage directly: models hold
// layers by pointer, so two models wired from the same layer see every
// in-place parameter update the other makes. This is what allows a solver to
// retain a layer as a member and have a pretraining model update it.

// Activation identifiers accepted by Dense.
const (
	ActivationLinear  = "linear"
	ActivationReLU    = "relu"
	ActivationSoftmax = "softmax"
)

// Embedding maps token ids to dense vectors. Row 0 is the padding row and is
// kept at zero; padded positions contribute nothing to pooled outputs.
type Embedding struct {
	Name  string
	Table [][]float32 // [vocab][dim]
}

// NewEmbedding creates an embedding table with small random entries.
func NewEmbedding(name string, vocabSize, dim int, seed int64) *Embedding {
	rng := rand.New(rand.NewSource(seed))
	table := make([][]float32, vocabSize)
	limit := float32(math.Sqrt(6.0 / float64(vocabSize+dim)))
	for i := range table {
		row := make([]float32, dim)
		if i != 0 { // row 0 stays zero for padding
			for j := range row {
				row[j] = (rng.Float32()*2.0 - 1.0) * limit * 0.5
			}
		}
		table[i] = row
	}
	return &Embedding{Name: name, Table: table}
}

// Dim returns the embedding dimensionality.
func (e *Embedding) Dim() int {
	if len(e.Table) == 0 {
		return 0
	}
	return len(e.Table[0])
}

// VocabSize returns the number of rows in the table.
func (e *Embedding) VocabSize() int { return len(e.Table) }

// poolSequence returns the mean embedding of the non-padding ids in the
// sequence, along with the ids that contributed (needed to scatter gradients
// back into the table). An all-padding sequence pools to the zero vector.
func (e *Embedding) poolSequence(ids []int32) (pooled []float32, used []int32) {
	dim := e.Dim()
	pooled = make([]float32, dim)
	for _, id := range ids {
		if id <= 0 || int(id) >= len(e.Table) {
			continue
		}
		row := e.Table[id]
		for j := range pooled {
			pooled[j] += row[j]
		}
		used = append(used, id)
	}
	if len(used) > 0 {
		inv := float32(1.0 / float64(len(used)))
		for j := range pooled {
			pooled[j] *= inv
		}
	}
	return pooled, used
}

// Dense is a fully connected layer with an optional activation.
type Dense struct {
	Name       string
	Weights    [][]float32 // [out][in]
	Biases     []float32
	Activation string
}

// NewDense creates a dense layer with Xavier/Glorot-style initialization.
func NewDense(name string, in, out int, activation string, seed int64) *Dense {
	rng := rand.New(rand.NewSource(seed))
	weights := make([][]float32, out)
	limit := float32(math.Sqrt(6.0 / float64(in+out)))
	for j := range weights {
		row := make([]float32, in)
		for i := range row {
			row[i] = (rng.Float32()*2.0 - 1.0) * limit * 0.5
		}
		weights[j] = row
	}
	return &Dense{
		Name:       name,
		Weights:    weights,
		Biases:     make([]float32, out),
		Activation: activation,
	}
}

// InDim returns the input dimension.
func (d *Dense) InDim() int {
	if len(d.Weights) == 0 {
		return 0
	}
	return len(d.Weights[0])
}

// OutDim returns the output dimension.
func (d *Dense) OutDim() int { return len(d.Weights) }

// forward computes pre-activations and activations for one input vector.
func (d *Dense) forward(in []float32) (pre, act []float32) {
	out := len(d.Weights)
	pre = make([]float32, out)
	for j := 0; j < out; j++ {
		sum := d.Biases[j]
		row := d.Weights[j]
		for i := range in {
			sum += row[i] * in[i]
		}
		pre[j] = sum
	}
	act = applyActivation(d.Activation, pre)
	return pre, act
}

func applyActivation(activation string, pre []float32) []float32 {
	act := make([]float32, len(pre))
	copy(act, pre)
	switch activation {
	case ActivationReLU:
		for i := range act {
			if act[i] < 0 {
				act[i] = 0
			}
		}
	case ActivationSoftmax:
		softmaxInPlace(act)
	}
	return act
}

// softmaxInPlace applies a numerically stable softmax.
func softmaxInPlace(x []float32) {
	maxV := x[0]
	for _, v := range x[1:] {
		if v > maxV {
			maxV = v
		}
	}
	var sum float64
	for i := range x {
		e := math.Exp(float64(x[i] - maxV))
		sum += e
		x[i] = float32(e)
	}
	if sum > 0 {
		inv := float32(1.0 / sum)
		for i := range x {
			x[i] *= inv
		}
	}
}

// reluDeriv returns the elementwise ReLU derivative for pre-activations.
func reluDeriv(pre []float32) []float32 {
	d := make([]float32, len(pre))
	for i := range pre {
		if pre[i] > 0 {
			d[i] = 1.0
		}
	}
	return d
}
