package pretrain

import (
	"testing"

	"github.com/quillml/textsolve/engine"
)

func feedLosses(es *EarlyStopping, losses []float64, validation bool) (stoppedAt int) {
	for i, loss := range losses {
		metrics := engine.Metrics{Loss: loss}
		if validation {
			metrics = engine.Metrics{Loss: loss * 2, ValLoss: loss, HasValidation: true}
		}
		if es.OnEpochEnd(i, metrics) {
			return i
		}
	}
	return -1
}

func TestEarlyStoppingWaitResetsOnImprovement(t *testing.T) {
	es := NewEarlyStopping(2)
	// One non-improving epoch, then an improvement resets the counter, then
	// two non-improving epochs trigger the stop.
	stoppedAt := feedLosses(es, []float64{1.0, 1.1, 0.8, 0.9, 0.9}, false)
	if stoppedAt != 4 {
		t.Fatalf("stopped at epoch %d, want 4", stoppedAt)
	}
	if !es.Stopped() {
		t.Fatalf("Stopped() = false after trigger")
	}
	if es.Best() != 0.8 {
		t.Fatalf("Best() = %f, want 0.8", es.Best())
	}
}

func TestEarlyStoppingEqualLossCountsAsNoImprovement(t *testing.T) {
	es := NewEarlyStopping(2)
	stoppedAt := feedLosses(es, []float64{0.5, 0.5, 0.5}, false)
	if stoppedAt != 2 {
		t.Fatalf("stopped at epoch %d, want 2", stoppedAt)
	}
}

func TestEarlyStoppingMonitorsValidationLoss(t *testing.T) {
	es := NewEarlyStopping(1)
	// Validation loss degrades while training loss (its double here) would
	// tell the same story; the monitored value must be the validation one.
	stoppedAt := feedLosses(es, []float64{0.4, 0.6}, true)
	if stoppedAt != 1 {
		t.Fatalf("stopped at epoch %d, want 1", stoppedAt)
	}
	if es.Best() != 0.4 {
		t.Fatalf("Best() = %f, want validation loss 0.4", es.Best())
	}
}

func TestEarlyStoppingNeverTriggersOnSteadyImprovement(t *testing.T) {
	es := NewEarlyStopping(1)
	stoppedAt := feedLosses(es, []float64{1.0, 0.9, 0.8, 0.7}, false)
	if stoppedAt != -1 {
		t.Fatalf("stopped at epoch %d, want no stop", stoppedAt)
	}
	if es.Stopped() {
		t.Fatalf("Stopped() = true without trigger")
	}
}

func TestEarlyStoppingStaysStopped(t *testing.T) {
	es := NewEarlyStopping(1)
	feedLosses(es, []float64{0.5, 0.6}, false)
	if !es.Stopped() {
		t.Fatalf("policy did not trigger")
	}
	// An improving epoch after the trigger does not resurrect the run.
	if !es.OnEpochEnd(2, engine.Metrics{Loss: 0.1}) {
		t.Fatalf("stopped policy returned false")
	}
}
