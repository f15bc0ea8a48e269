package pretrain

import "github.com/quillml/textsolve/engine"

// EarlyStopping is the stopping policy consulted once per epoch with the
// latest metrics. It tracks the best monitored value seen so far and a
// non-improvement counter that resets on improvement; once the counter
// reaches the configured patience, training stops.
//
// The model keeps whatever parameter state exists at the stopping epoch.
// There is deliberately no rollback to the best-observed epoch.
type EarlyStopping struct {
	patience int

	best    float64
	wait    int
	started bool
	stopped bool
}

// NewEarlyStopping creates a policy that stops after patience consecutive
// epochs without improvement in the monitored loss.
func NewEarlyStopping(patience int) *EarlyStopping {
	return &EarlyStopping{patience: patience}
}

// OnEpochEnd implements engine.Callback. It monitors validation loss when
// the fit has a validation split, and falls back to training loss otherwise.
func (es *EarlyStopping) OnEpochEnd(epoch int, metrics engine.Metrics) bool {
	if es.stopped {
		return true
	}
	value := metrics.Loss
	if metrics.HasValidation {
		value = metrics.ValLoss
	}
	if !es.started || value < es.best {
		es.best = value
		es.wait = 0
		es.started = true
		return false
	}
	es.wait++
	if es.wait >= es.patience {
		es.stopped = true
		return true
	}
	return false
}

// Stopped reports whether the policy has triggered.
func (es *EarlyStopping) Stopped() bool { return es.stopped }

// Best returns the best monitored value seen so far. Only meaningful after
// at least one epoch.
func (es *EarlyStopping) Best() float64 { return es.best }
