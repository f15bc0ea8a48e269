// Package pretrain orchestrates auxiliary training passes over components
// shared with a main solver.
//
// A pretraining task pulls some layers out of a solver, wires a new model
// from them, and trains that model on its own objective with its own data.
// The whole point is that the layers are reused by reference: when the task
// finishes, the solver's retained layers carry the updated parameters, and
// the solver's own training just keeps going from there.
//
// The important invariant: every layer a task wires into its pretraining
// model must be one the solver retains as a member (see the Owner accessors
// on the concrete solver). A layer the solver rebuilds from scratch for its
// own graph would silently discard everything pretraining did to the copy.
package pretrain

import (
	"errors"
	"fmt"
	"log"

	"github.com/quillml/textsolve/datasets"
	"github.com/quillml/textsolve/engine"
)

// ErrNotImplemented is returned when a Task contract method was not
// overridden by a concrete task. It signals an integration error and is
// never retried.
var ErrNotImplemented = errors.New("pretrain: not implemented")

// Task is the contract concrete pretraining tasks implement: where the
// auxiliary data comes from, and how to wire a model from the owning
// solver's shared layers.
type Task interface {
	// LoadDataset reads the pretraining dataset. Called at most once per
	// Pretrainer; the result is memoized.
	LoadDataset() (*datasets.TextDataset, error)

	// BuildModel wires a fresh pretraining model from layers retained by
	// the owning solver. Called once per Train invocation.
	BuildModel() (Model, error)
}

// Unimplemented is an embeddable Task base whose methods fail with
// ErrNotImplemented. Concrete tasks embed it and override both methods;
// driving a Pretrainer with a task that has not done so fails fatally.
type Unimplemented struct{}

// LoadDataset fails with ErrNotImplemented.
func (Unimplemented) LoadDataset() (*datasets.TextDataset, error) {
	return nil, fmt.Errorf("LoadDataset: %w", ErrNotImplemented)
}

// BuildModel fails with ErrNotImplemented.
func (Unimplemented) BuildModel() (Model, error) {
	return nil, fmt.Errorf("BuildModel: %w", ErrNotImplemented)
}

// Model is the slice of the optimization engine the orchestrator drives:
// a layer summary, compilation against an objective, and a bounded fit.
// *engine.Model satisfies it; tests substitute stubs.
type Model interface {
	Summary() string
	Compile(loss, optimizer string, metrics []string) error
	Fit(inputs [][][]int32, labels [][]float32, opts engine.FitOptions) (*engine.History, error)
}

// Owner is the view of the owning solver the orchestrator needs: the shared
// vocabulary indexer and the padding length constraints, so the pretraining
// model's input shapes match the solver's.
type Owner interface {
	MaxLengths() datasets.Lengths
	DataIndexer() *datasets.WordIndexer
}

// Pretrainer runs one pretraining task against one owning solver. It holds
// the run configuration and a memoized dataset; the model itself is built
// fresh on every Train call and discarded afterwards, only the shared
// layers' updated parameters persist.
type Pretrainer struct {
	owner Owner
	task  Task
	cfg   Config

	// Two-state dataset cache: unloaded until the first successful
	// LoadDataset, loaded (possibly for several Train calls) after.
	dataset *datasets.TextDataset
	loaded  bool

	history *engine.History
}

// NewPretrainer creates a pretrainer for the given owner and task. A nil
// task leaves the contract methods unimplemented, so Train and FitIndexer
// fail with ErrNotImplemented.
func NewPretrainer(owner Owner, task Task, cfg Config) (*Pretrainer, error) {
	if owner == nil {
		return nil, fmt.Errorf("pretrain: nil owner")
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("pretrain: invalid config: %w", err)
	}
	if task == nil {
		task = Unimplemented{}
	}
	return &Pretrainer{owner: owner, task: task, cfg: cfg}, nil
}

// Config returns the run configuration.
func (p *Pretrainer) Config() Config { return p.cfg }

// GetDataset returns the pretraining dataset, invoking the task's loader
// exactly once across the pretrainer's lifetime. Safe to call repeatedly;
// subsequent calls return the cached dataset with no repeated I/O.
func (p *Pretrainer) GetDataset() (*datasets.TextDataset, error) {
	if !p.loaded {
		dataset, err := p.task.LoadDataset()
		if err != nil {
			return nil, err
		}
		p.dataset = dataset
		p.loaded = true
	}
	return p.dataset, nil
}

// FitIndexer feeds the pretraining dataset's raw text into the indexer so
// vocabulary from pretraining data is available for downstream indexing.
// Uses the memoized dataset; does not reload.
func (p *Pretrainer) FitIndexer(indexer *datasets.WordIndexer) error {
	dataset, err := p.GetDataset()
	if err != nil {
		return err
	}
	indexer.FitWordDictionary(dataset)
	return nil
}

// Train runs the pretraining pass: load (or reuse) the dataset, index and
// pad it with the owner's shared indexer and length constraints, shape it
// into model inputs, build the task's model from the owner's shared layers,
// and drive the optimization loop to completion or early termination.
//
// There is no result beyond the error: the side effect is that the shared
// layers' parameters have been updated in place, and the owner's own
// training can simply continue. Failures from collaborators propagate
// unchanged; no recovery, no rollback.
func (p *Pretrainer) Train() error {
	dataset, err := p.GetDataset()
	if err != nil {
		return err
	}
	indexed, err := dataset.ToIndexed(p.owner.DataIndexer())
	if err != nil {
		return err
	}
	if err := indexed.PadInstances(p.owner.MaxLengths()); err != nil {
		return err
	}
	examples, labels, err := indexed.AsTrainingData()
	if err != nil {
		return err
	}
	inputs, err := shapeInputs(examples)
	if err != nil {
		return err
	}

	model, err := p.task.BuildModel()
	if err != nil {
		return err
	}
	log.Printf("%s", model.Summary())
	if err := model.Compile(p.cfg.Loss, engine.OptimizerAdam, []string{engine.MetricAccuracy}); err != nil {
		return err
	}

	opts := engine.FitOptions{Epochs: p.cfg.NumEpochs, Verbose: true}
	if p.cfg.ValidationSplit > 0 {
		opts.ValidationSplit = p.cfg.ValidationSplit
	}
	if p.cfg.EarlyStopping {
		opts.Callbacks = []engine.Callback{NewEarlyStopping(p.cfg.Patience)}
	}
	history, err := model.Fit(inputs, labels, opts)
	if err != nil {
		return err
	}
	p.history = history
	return nil
}

// History returns the per-epoch metrics of the most recent Train call, or
// nil if Train has not completed.
func (p *Pretrainer) History() *engine.History { return p.history }

// shapeInputs transposes example-major indexed data into slot-major model
// inputs. An example carrying an N-tuple of aligned slots becomes N
// contiguous arrays; a single-slot example stays a single array. Example
// order is preserved in every slot.
func shapeInputs(examples [][][]int32) ([][][]int32, error) {
	if len(examples) == 0 {
		return nil, fmt.Errorf("no examples to shape")
	}
	slots := len(examples[0])
	if slots == 0 {
		return nil, fmt.Errorf("examples carry no input slots")
	}
	inputs := make([][][]int32, slots)
	for s := range inputs {
		inputs[s] = make([][]int32, len(examples))
	}
	for i, example := range examples {
		if len(example) != slots {
			return nil, fmt.Errorf("example %d has %d slots, example 0 has %d", i, len(example), slots)
		}
		for s := range example {
			inputs[s][i] = example[s]
		}
	}
	return inputs, nil
}
