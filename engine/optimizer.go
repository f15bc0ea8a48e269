package engine

import "math"

// Adam hyperparameters. These match the common defaults and are not
// configurable per-model; the learning rate is passed to Fit.
const (
	adamBeta1 = 0.9
	adamBeta2 = 0.999
	adamEps   = 1e-8
)

// denseGrads accumulates gradients for one dense layer over a minibatch.
type denseGrads struct {
	w [][]float32
	b []float32
}

// modelGrads accumulates gradients for a whole model over a minibatch.
// Embedding gradients are kept sparse, keyed by the rows actually touched.
type modelGrads struct {
	emb   map[int32][]float32
	dense []denseGrads
}

func newModelGrads(m *Model) *modelGrads {
	layers := m.denses()
	g := &modelGrads{
		emb:   make(map[int32][]float32),
		dense: make([]denseGrads, len(layers)),
	}
	for k, layer := range layers {
		g.dense[k].w = make([][]float32, layer.OutDim())
		for j := range g.dense[k].w {
			g.dense[k].w[j] = make([]float32, layer.InDim())
		}
		g.dense[k].b = make([]float32, layer.OutDim())
	}
	return g
}

// embRow returns the accumulator row for a table row, creating it on demand.
func (g *modelGrads) embRow(id int32, dim int) []float32 {
	row, ok := g.emb[id]
	if !ok {
		row = make([]float32, dim)
		g.emb[id] = row
	}
	return row
}

// backwardExample runs one example forward, accumulates its gradients into g,
// and returns its loss and whether the prediction was correct.
func (m *Model) backwardExample(slots [][]int32, label []float32, g *modelGrads) (loss float64, correct bool, err error) {
	st, err := m.forwardExample(slots)
	if err != nil {
		return 0, false, err
	}
	layers := m.denses()
	probs := st.acts[len(st.acts)-1]
	loss = crossEntropy(probs, label)
	correct = argmax(probs) == argmax(label)

	// Softmax + cross-entropy: delta at the output pre-activation is p - y.
	delta := make([]float32, len(probs))
	for i := range delta {
		delta[i] = probs[i] - label[i]
	}

	for k := len(layers) - 1; k >= 0; k-- {
		layer := layers[k]
		var in []float32
		if k == 0 {
			in = st.concat
		} else {
			in = st.acts[k-1]
		}

		gw := g.dense[k].w
		gb := g.dense[k].b
		for j := range delta {
			gb[j] += delta[j]
			row := gw[j]
			for i := range in {
				row[i] += delta[j] * in[i]
			}
		}

		// Propagate delta through the layer's weights, then through the
		// previous layer's activation.
		prev := make([]float32, layer.InDim())
		for i := range prev {
			var sum float32
			for j := range delta {
				sum += layer.Weights[j][i] * delta[j]
			}
			prev[i] = sum
		}
		if k > 0 && layers[k-1].Activation == ActivationReLU {
			deriv := reluDeriv(st.pres[k-1])
			for i := range prev {
				prev[i] *= deriv[i]
			}
		}
		delta = prev
	}

	// delta now sits at the concatenated pooled vector; scatter it back into
	// the embedding rows that produced each slot's mean pool.
	dim := m.embedding.Dim()
	for s := range st.used {
		used := st.used[s]
		if len(used) == 0 {
			continue
		}
		seg := delta[s*dim : (s+1)*dim]
		inv := float32(1.0 / float64(len(used)))
		for _, id := range used {
			row := g.embRow(id, dim)
			for j := range seg {
				row[j] += seg[j] * inv
			}
		}
	}
	return loss, correct, nil
}

// applyGradients applies averaged minibatch gradients with the configured
// optimizer, mutating the model's layers in place.
func (m *Model) applyGradients(g *modelGrads, batchN int, lr float64) {
	if batchN == 0 {
		return
	}
	inv := float32(1.0 / float64(batchN))
	if m.optimizer == OptimizerAdam {
		m.adam.step(m, g, inv, lr)
		return
	}

	// Plain SGD.
	lrf := float32(lr)
	layers := m.denses()
	for k, layer := range layers {
		for j := range layer.Weights {
			layer.Biases[j] -= lrf * g.dense[k].b[j] * inv
			row := layer.Weights[j]
			grow := g.dense[k].w[j]
			for i := range row {
				row[i] -= lrf * grow[i] * inv
			}
		}
	}
	for id, grow := range g.emb {
		row := m.embedding.Table[id]
		for j := range row {
			row[j] -= lrf * grow[j] * inv
		}
	}
}

// denseMoments holds Adam first/second moment estimates for one dense layer.
type denseMoments struct {
	mW, vW [][]float32
	mB, vB []float32
}

// adamState holds per-model Adam moments. Moments belong to the model, not
// the layers, so a shared layer trained by two models in sequence gets fresh
// optimizer state each time, the same way recompiling does.
type adamState struct {
	t     int
	mEmb  [][]float32
	vEmb  [][]float32
	dense []denseMoments
}

func newAdamState(m *Model) *adamState {
	st := &adamState{
		mEmb: zeroMatrix(m.embedding.VocabSize(), m.embedding.Dim()),
		vEmb: zeroMatrix(m.embedding.VocabSize(), m.embedding.Dim()),
	}
	for _, layer := range m.denses() {
		st.dense = append(st.dense, denseMoments{
			mW: zeroMatrix(layer.OutDim(), layer.InDim()),
			vW: zeroMatrix(layer.OutDim(), layer.InDim()),
			mB: make([]float32, layer.OutDim()),
			vB: make([]float32, layer.OutDim()),
		})
	}
	return st
}

func zeroMatrix(rows, cols int) [][]float32 {
	m := make([][]float32, rows)
	for i := range m {
		m[i] = make([]float32, cols)
	}
	return m
}

// step applies one Adam update from averaged gradients. Embedding moments are
// updated lazily, only for rows present in the minibatch.
func (a *adamState) step(m *Model, g *modelGrads, inv float32, lr float64) {
	a.t++
	correction := lr * math.Sqrt(1.0-math.Pow(adamBeta2, float64(a.t))) /
		(1.0 - math.Pow(adamBeta1, float64(a.t)))

	update := func(param, mom, vel []float32, grad []float32) {
		for i := range param {
			gi := float64(grad[i]) * float64(inv)
			mi := adamBeta1*float64(mom[i]) + (1.0-adamBeta1)*gi
			vi := adamBeta2*float64(vel[i]) + (1.0-adamBeta2)*gi*gi
			mom[i] = float32(mi)
			vel[i] = float32(vi)
			param[i] -= float32(correction * mi / (math.Sqrt(vi) + adamEps))
		}
	}

	layers := m.denses()
	for k, layer := range layers {
		for j := range layer.Weights {
			update(layer.Weights[j], a.dense[k].mW[j], a.dense[k].vW[j], g.dense[k].w[j])
		}
		update(layer.Biases, a.dense[k].mB, a.dense[k].vB, g.dense[k].b)
	}
	for id, grow := range g.emb {
		update(m.embedding.Table[id], a.mEmb[id], a.vEmb[id], grow)
	}
}
