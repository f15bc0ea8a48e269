// Package solver implements the main text-classification model that owns
// the canonical parameter storage: the shared vocabulary indexer and the
// retained embedding and encoder layers that pretraining tasks reuse.
package solver

import (
	"fmt"
	"time"

	"github.com/quillml/textsolve/datasets"
	"github.com/quillml/textsolve/engine"
)

// Config holds the solver's hyperparameters.
type Config struct {
	// MaxWords is the fixed token length every input slot is padded or
	// truncated to. Default 50.
	MaxWords int

	// NumSlots is the number of aligned text inputs per instance.
	// Default 1.
	NumSlots int

	// EmbeddingDim is the word-embedding dimensionality. Default 64.
	EmbeddingDim int

	// EncoderDim is the encoder layer's output dimensionality. Default 32.
	EncoderDim int

	// NumEpochs for the main training loop. Default 10.
	NumEpochs int

	// BatchSize for minibatch updates. Default 32.
	BatchSize int

	// LearningRate for the optimizer. Default 0.001.
	LearningRate float64

	// ValidationSplit in [0, 1) for the main training loop. Zero disables
	// validation.
	ValidationSplit float64

	// Seed controls layer initialization and shuffling. Zero uses a
	// time-based seed.
	Seed int64
}

// Solver is the main model. Its embedding and encoder layers are created
// lazily and retained as members — that retention is what allows a
// pretraining model wired from the same layers to leave its updates behind.
// A layer rebuilt from scratch on every Train call would lose them.
type Solver struct {
	cfg     Config
	indexer *datasets.WordIndexer

	// Retained shared layers; see EmbeddingLayer and EncoderLayer.
	embedding *engine.Embedding
	encoder   *engine.Dense

	model   *engine.Model
	history *engine.History
}

// New creates a solver with the provided configuration, applying defaults
// for zero fields.
func New(cfg Config) *Solver {
	if cfg.MaxWords == 0 {
		cfg.MaxWords = 50
	}
	if cfg.NumSlots == 0 {
		cfg.NumSlots = 1
	}
	if cfg.EmbeddingDim == 0 {
		cfg.EmbeddingDim = 64
	}
	if cfg.EncoderDim == 0 {
		cfg.EncoderDim = 32
	}
	if cfg.NumEpochs == 0 {
		cfg.NumEpochs = 10
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 32
	}
	if cfg.LearningRate == 0 {
		cfg.LearningRate = 0.001
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	return &Solver{
		cfg:     cfg,
		indexer: datasets.NewWordIndexer(),
	}
}

// Config returns the solver's configuration.
func (s *Solver) Config() Config { return s.cfg }

// DataIndexer returns the shared vocabulary indexer.
func (s *Solver) DataIndexer() *datasets.WordIndexer { return s.indexer }

// MaxLengths returns the padding constraints shared with pretraining tasks.
func (s *Solver) MaxLengths() datasets.Lengths {
	return datasets.Lengths{Words: s.cfg.MaxWords}
}

// FitDictionary extends the shared vocabulary with the dataset's words.
// Call this for every dataset (main and pretraining) before the first layer
// access: the embedding table is sized to the vocabulary at creation time,
// and words added afterwards index past the table and pool as unknowns.
func (s *Solver) FitDictionary(dataset *datasets.TextDataset) {
	s.indexer.FitWordDictionary(dataset)
}

// EmbeddingLayer returns the retained word-embedding layer, creating it on
// first access sized to the current vocabulary.
func (s *Solver) EmbeddingLayer() *engine.Embedding {
	if s.embedding == nil {
		s.embedding = engine.NewEmbedding("word_embedding",
			s.indexer.VocabSize(), s.cfg.EmbeddingDim, s.cfg.Seed)
	}
	return s.embedding
}

// EncoderLayer returns the retained encoder layer, creating it on first
// access.
func (s *Solver) EncoderLayer() *engine.Dense {
	if s.encoder == nil {
		s.encoder = engine.NewDense("encoder",
			s.cfg.NumSlots*s.cfg.EmbeddingDim, s.cfg.EncoderDim,
			engine.ActivationReLU, s.cfg.Seed+1)
	}
	return s.encoder
}

// Train runs the main training procedure: index and pad the dataset, build
// the solver's classifier from the retained layers plus a fresh softmax
// head, and fit it. If pretraining ran first on the same layers, training
// continues from the pretrained parameters.
func (s *Solver) Train(dataset *datasets.TextDataset) error {
	if dataset.Len() == 0 {
		return fmt.Errorf("solver: empty training dataset")
	}
	if dataset.NumSlots() != s.cfg.NumSlots {
		return fmt.Errorf("solver: dataset has %d input slots, solver configured for %d",
			dataset.NumSlots(), s.cfg.NumSlots)
	}
	s.FitDictionary(dataset)

	indexed, err := dataset.ToIndexed(s.indexer)
	if err != nil {
		return err
	}
	if err := indexed.PadInstances(s.MaxLengths()); err != nil {
		return err
	}
	examples, labels, err := indexed.AsTrainingData()
	if err != nil {
		return err
	}
	inputs := slotMajor(examples, s.cfg.NumSlots)

	head := engine.NewDense("solver_softmax",
		s.cfg.EncoderDim, indexed.NumClasses, engine.ActivationSoftmax, s.cfg.Seed+2)
	model, err := engine.NewModel(engine.ModelConfig{
		Name:      "solver",
		NumSlots:  s.cfg.NumSlots,
		Embedding: s.EmbeddingLayer(),
		Hidden:    []*engine.Dense{s.EncoderLayer()},
		Output:    head,
	})
	if err != nil {
		return err
	}
	if err := model.Compile(engine.LossCategoricalCrossEntropy,
		engine.OptimizerAdam, []string{engine.MetricAccuracy}); err != nil {
		return err
	}

	history, err := model.Fit(inputs, labels, engine.FitOptions{
		Epochs:          s.cfg.NumEpochs,
		BatchSize:       s.cfg.BatchSize,
		LearningRate:    s.cfg.LearningRate,
		ValidationSplit: s.cfg.ValidationSplit,
		Seed:            s.cfg.Seed,
	})
	if err != nil {
		return err
	}
	s.model = model
	s.history = history
	return nil
}

// History returns the per-epoch metrics of the most recent Train call.
func (s *Solver) History() *engine.History { return s.history }

// Predict classifies raw instances with the most recently trained model,
// returning one probability vector per instance.
func (s *Solver) Predict(instances []*datasets.TextInstance) ([][]float32, error) {
	if s.model == nil {
		return nil, fmt.Errorf("solver: not trained")
	}
	dataset := datasets.NewTextDataset(instances)
	indexed, err := dataset.ToIndexed(s.indexer)
	if err != nil {
		return nil, err
	}
	if err := indexed.PadInstances(s.MaxLengths()); err != nil {
		return nil, err
	}
	inputs := make([][][]int32, s.cfg.NumSlots)
	for s2 := range inputs {
		inputs[s2] = make([][]int32, len(indexed.Instances))
	}
	for i, inst := range indexed.Instances {
		for s2 := range inst.Slots {
			inputs[s2][i] = inst.Slots[s2]
		}
	}
	return s.model.Predict(inputs)
}

// slotMajor transposes example-major indexed data into one array per slot.
func slotMajor(examples [][][]int32, slots int) [][][]int32 {
	inputs := make([][][]int32, slots)
	for s := range inputs {
		inputs[s] = make([][]int32, len(examples))
	}
	for i, example := range examples {
		for s := range example {
			inputs[s][i] = example[s]
		}
	}
	return inputs
}
