package engine

import (
	"fmt"
	"log"
	"math/rand"
	"time"
)

// Metrics holds the values measured at the end of one training epoch.
type Metrics struct {
	Loss     float64
	Accuracy float64

	// Validation metrics, meaningful only when HasValidation is true.
	ValLoss       float64
	ValAccuracy   float64
	HasValidation bool
}

// History records per-epoch metrics for one Fit call.
type History struct {
	Epochs []Metrics

	// StoppedEarly reports whether a callback terminated the loop before
	// the epoch budget was exhausted.
	StoppedEarly bool
}

// Callback is consulted once per epoch with that epoch's metrics. Returning
// true terminates the training loop; the model keeps whatever parameter
// state it has at that point.
type Callback interface {
	OnEpochEnd(epoch int, metrics Metrics) (stop bool)
}

// FitOptions configures one call to Fit.
type FitOptions struct {
	// Epochs is the epoch budget. Must be positive.
	Epochs int

	// BatchSize for minibatch updates. Defaults to 32.
	BatchSize int

	// ValidationSplit in [0, 1): fraction of examples withheld from
	// training, taken from the tail in original order. Zero disables
	// validation entirely.
	ValidationSplit float64

	// LearningRate for the optimizer. Defaults to 0.001.
	LearningRate float64

	// Callbacks consulted at the end of every epoch.
	Callbacks []Callback

	// Seed for minibatch shuffling. Zero uses a time-based seed.
	Seed int64

	// Verbose logs per-epoch metrics.
	Verbose bool
}

// Fit trains the model on slot-major inputs: inputs[s][i] is example i's
// token-id sequence for input slot s. Labels are one-hot rows aligned with
// the examples. Training mutates the model's layers in place, including any
// layers shared with other models.
func (m *Model) Fit(inputs [][][]int32, labels [][]float32, opts FitOptions) (*History, error) {
	if !m.compiled {
		return nil, fmt.Errorf("model %q: not compiled", m.name)
	}
	n, err := m.checkInputs(inputs)
	if err != nil {
		return nil, err
	}
	if n != len(labels) {
		return nil, fmt.Errorf("model %q: %d examples but %d labels", m.name, n, len(labels))
	}
	if n == 0 {
		return nil, fmt.Errorf("model %q: no training examples", m.name)
	}
	if opts.Epochs <= 0 {
		return nil, fmt.Errorf("model %q: invalid epoch budget %d", m.name, opts.Epochs)
	}
	if opts.ValidationSplit < 0 || opts.ValidationSplit >= 1 {
		return nil, fmt.Errorf("model %q: invalid validation split %f", m.name, opts.ValidationSplit)
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = 32
	}
	lr := opts.LearningRate
	if lr <= 0 {
		lr = 0.001
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	// The validation slice is the tail of the data in original order; the
	// head is what gets shuffled into minibatches.
	valN := int(float64(n) * opts.ValidationSplit)
	trainN := n - valN
	if trainN == 0 {
		return nil, fmt.Errorf("model %q: validation split %f leaves no training examples",
			m.name, opts.ValidationSplit)
	}
	var valInputs [][][]int32
	var valLabels [][]float32
	if valN > 0 {
		valInputs = make([][][]int32, len(inputs))
		for s := range inputs {
			valInputs[s] = inputs[s][trainN:]
		}
		valLabels = labels[trainN:]
	}

	indices := make([]int, trainN)
	for i := range indices {
		indices[i] = i
	}

	history := &History{}
	for epoch := 0; epoch < opts.Epochs; epoch++ {
		rng.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})

		var sumLoss float64
		correct := 0
		for start := 0; start < trainN; start += batchSize {
			end := start + batchSize
			if end > trainN {
				end = trainN
			}
			grads := newModelGrads(m)
			for _, idx := range indices[start:end] {
				loss, ok, err := m.backwardExample(exampleSlots(inputs, idx), labels[idx], grads)
				if err != nil {
					return nil, err
				}
				sumLoss += loss
				if ok {
					correct++
				}
			}
			m.applyGradients(grads, end-start, lr)
		}

		metrics := Metrics{
			Loss:     sumLoss / float64(trainN),
			Accuracy: float64(correct) / float64(trainN),
		}
		if valN > 0 {
			valLoss, valAcc, err := m.Evaluate(valInputs, valLabels)
			if err != nil {
				return nil, err
			}
			metrics.ValLoss = valLoss
			metrics.ValAccuracy = valAcc
			metrics.HasValidation = true
		}
		history.Epochs = append(history.Epochs, metrics)

		if opts.Verbose {
			if metrics.HasValidation {
				log.Printf("[%s] epoch %d/%d loss=%.4f acc=%.4f val_loss=%.4f val_acc=%.4f",
					m.name, epoch+1, opts.Epochs, metrics.Loss, metrics.Accuracy,
					metrics.ValLoss, metrics.ValAccuracy)
			} else {
				log.Printf("[%s] epoch %d/%d loss=%.4f acc=%.4f",
					m.name, epoch+1, opts.Epochs, metrics.Loss, metrics.Accuracy)
			}
		}

		stop := false
		for _, cb := range opts.Callbacks {
			if cb.OnEpochEnd(epoch, metrics) {
				stop = true
			}
		}
		if stop {
			history.StoppedEarly = true
			break
		}
	}
	return history, nil
}
