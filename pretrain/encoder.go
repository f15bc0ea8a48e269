package pretrain

import (
	"fmt"
	"time"

	"github.com/quillml/textsolve/datasets"
	"github.com/quillml/textsolve/engine"
)

// Dataset formats understood by EncoderTask.
const (
	FormatTSV   = "tsv"
	FormatJSONL = "jsonl"
)

// SharedLayerOwner is an Owner that also exposes its retained trainable
// layers for reuse. The accessors must return the same layer instance the
// owner's own model is (or will be) wired from — that identity is what makes
// pretraining updates persist.
type SharedLayerOwner interface {
	Owner
	EmbeddingLayer() *engine.Embedding
	EncoderLayer() *engine.Dense
}

// EncoderTask pretrains a solver's embedding and encoder layers on an
// auxiliary labeled text corpus, with a fresh softmax head sized to the
// corpus's label set. The head is thrown away with the model; the embedding
// and encoder keep their updated parameters inside the owning solver.
type EncoderTask struct {
	// Seed for the fresh output head's initialization. Zero means
	// non-deterministic, mirroring layer construction elsewhere.
	Seed int64

	owner  SharedLayerOwner
	path   string
	format string

	dataset *datasets.TextDataset
}

// NewEncoderTask creates a task reading its corpus from path in the given
// format (FormatTSV or FormatJSONL; empty means TSV).
func NewEncoderTask(owner SharedLayerOwner, path, format string) *EncoderTask {
	if format == "" {
		format = FormatTSV
	}
	return &EncoderTask{owner: owner, path: path, format: format}
}

// LoadDataset reads the auxiliary corpus. Parse and I/O failures propagate
// unchanged.
func (t *EncoderTask) LoadDataset() (*datasets.TextDataset, error) {
	var dataset *datasets.TextDataset
	var err error
	switch t.format {
	case FormatTSV:
		dataset, err = datasets.ReadTSVDataset(t.path)
	case FormatJSONL:
		dataset, err = datasets.ReadJSONLDataset(t.path)
	default:
		return nil, fmt.Errorf("unknown dataset format %q", t.format)
	}
	if err != nil {
		return nil, err
	}
	t.dataset = dataset
	return dataset, nil
}

// BuildModel wires the pretraining model from the owner's retained embedding
// and encoder, plus a fresh softmax head for this corpus's classes.
func (t *EncoderTask) BuildModel() (Model, error) {
	if t.dataset == nil {
		return nil, fmt.Errorf("encoder task: dataset must be loaded before building the model")
	}
	numClasses := t.dataset.NumClasses()
	if numClasses < 2 {
		return nil, fmt.Errorf("encoder task: corpus has %d label classes, need at least 2", numClasses)
	}

	embedding := t.owner.EmbeddingLayer()
	encoder := t.owner.EncoderLayer()
	seed := t.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	head := engine.NewDense("pretrain_softmax", encoder.OutDim(), numClasses, engine.ActivationSoftmax, seed)

	return engine.NewModel(engine.ModelConfig{
		Name:      "encoder_pretraining",
		NumSlots:  t.dataset.NumSlots(),
		Embedding: embedding,
		Hidden:    []*engine.Dense{encoder},
		Output:    head,
	})
}
