package pretrain

import (
	"fmt"

	"github.com/quillml/textsolve/engine"
)

// Config holds the pretraining run parameters. Obtain defaults from
// DefaultConfig and override fields before constructing the Pretrainer; the
// configuration is immutable for the run's lifetime after that.
type Config struct {
	// NumEpochs is the epoch budget for the optimization loop.
	NumEpochs int

	// ValidationSplit in [0, 1) is the tail fraction of the shaped data
	// withheld for validation. Zero disables validation.
	ValidationSplit float64

	// EarlyStopping enables terminating the loop once validation loss
	// fails to improve for Patience consecutive epochs.
	EarlyStopping bool

	// Patience is the number of consecutive non-improving epochs tolerated
	// before stopping. Only consulted when EarlyStopping is set.
	Patience int

	// Loss is the objective identifier the model is compiled against.
	// Most pretraining tasks want categorical cross-entropy; empty means
	// the default.
	Loss string
}

// DefaultConfig returns the standard pretraining configuration: 30 epochs,
// 10% validation split, early stopping with patience 3, categorical
// cross-entropy.
func DefaultConfig() Config {
	return Config{
		NumEpochs:       30,
		ValidationSplit: 0.1,
		EarlyStopping:   true,
		Patience:        3,
		Loss:            engine.LossCategoricalCrossEntropy,
	}
}

// validate checks the fields that have to be coherent before any training
// begins. The epoch budget itself is left to the optimization engine, which
// rejects non-positive budgets at fit time.
func (c *Config) validate() error {
	if c.ValidationSplit < 0 || c.ValidationSplit >= 1 {
		return fmt.Errorf("validation split %f outside [0, 1)", c.ValidationSplit)
	}
	if c.EarlyStopping && c.Patience <= 0 {
		return fmt.Errorf("early stopping requires positive patience, got %d", c.Patience)
	}
	if c.Loss == "" {
		c.Loss = engine.LossCategoricalCrossEntropy
	}
	return nil
}
