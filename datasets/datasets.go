package datasets

import "fmt"

// This file provides the raw and indexed dataset representations used by the
// solver and the pretraining tasks.
//
// A TextDataset is the raw, format-agnostic form: a list of instances, each
// carrying one or more aligned text slots and a label index. Loaders for
// concrete file formats live in tsv.go and jsonl.go.
//
// An IndexedDataset is the derived numeric form: each text slot converted to
// token ids through a WordIndexer, padded to fixed lengths, and convertible
// into (inputs, labels) arrays for training. IndexedDatasets are consumed
// once per training invocation and not kept around.

// TextInstance is a single raw example: one or more aligned text slots and a
// label index. Most datasets have a single slot; pair datasets (e.g.
// premise/hypothesis) carry two.
type TextInstance struct {
	// Texts holds the raw text for each input slot, in slot order.
	Texts []string

	// Label is the class index for this instance.
	Label int
}

// TextDataset is an in-memory collection of raw text instances.
type TextDataset struct {
	Instances []*TextInstance
}

// NewTextDataset creates a dataset from a list of instances.
func NewTextDataset(instances []*TextInstance) *TextDataset {
	return &TextDataset{Instances: instances}
}

// Len returns the number of instances.
func (d *TextDataset) Len() int { return len(d.Instances) }

// NumSlots returns the number of aligned input slots per instance, determined
// from the first instance. Returns 0 for an empty dataset.
func (d *TextDataset) NumSlots() int {
	if len(d.Instances) == 0 {
		return 0
	}
	return len(d.Instances[0].Texts)
}

// NumClasses returns the number of label classes, computed as the largest
// label index plus one.
func (d *TextDataset) NumClasses() int {
	maxLabel := -1
	for _, inst := range d.Instances {
		if inst.Label > maxLabel {
			maxLabel = inst.Label
		}
	}
	return maxLabel + 1
}

// Lengths holds the maximum-length constraints used when padding an indexed
// dataset. The owning solver decides these; pretraining reuses them so the
// pretraining model's input shapes match the solver's.
type Lengths struct {
	// Words is the fixed token length every slot is padded or truncated to.
	Words int
}

// IndexedInstance is a single example after vocabulary indexing: one token-id
// sequence per input slot, plus the label index.
type IndexedInstance struct {
	Slots [][]int32
	Label int
}

// IndexedDataset is the padded, vectorized form of a TextDataset.
type IndexedDataset struct {
	Instances  []*IndexedInstance
	NumClasses int

	// BatchSize used when yielding tensor batches (see tensors.go).
	BatchSize int

	padded bool
	cursor int
}

// ToIndexed converts the dataset to token ids using the given indexer. The
// returned IndexedDataset is unpadded; call PadInstances before extracting
// training data. Instance order is preserved.
func (d *TextDataset) ToIndexed(indexer *WordIndexer) (*IndexedDataset, error) {
	if indexer == nil {
		return nil, fmt.Errorf("nil indexer")
	}
	out := &IndexedDataset{
		Instances:  make([]*IndexedInstance, len(d.Instances)),
		NumClasses: d.NumClasses(),
		BatchSize:  32,
	}
	slots := d.NumSlots()
	for i, inst := range d.Instances {
		if len(inst.Texts) != slots {
			return nil, fmt.Errorf("instance %d has %d text slots, expected %d", i, len(inst.Texts), slots)
		}
		indexed := &IndexedInstance{
			Slots: make([][]int32, len(inst.Texts)),
			Label: inst.Label,
		}
		for s, text := range inst.Texts {
			indexed.Slots[s] = indexer.IndexText(text)
		}
		out.Instances[i] = indexed
	}
	return out, nil
}

// PadInstances pads or truncates every slot of every instance to the word
// length in lengths. Short sequences are left-padded with the padding id;
// long sequences keep their tail. After this call all slots have identical
// length and the dataset is ready for AsTrainingData.
func (d *IndexedDataset) PadInstances(lengths Lengths) error {
	if lengths.Words <= 0 {
		return fmt.Errorf("invalid word length %d", lengths.Words)
	}
	for _, inst := range d.Instances {
		for s, slot := range inst.Slots {
			inst.Slots[s] = padSequence(slot, lengths.Words)
		}
	}
	d.padded = true
	return nil
}

// padSequence left-pads ids with the padding id up to length, or keeps the
// last length tokens when the sequence is too long.
func padSequence(ids []int32, length int) []int32 {
	if len(ids) == length {
		return ids
	}
	if len(ids) > length {
		trimmed := make([]int32, length)
		copy(trimmed, ids[len(ids)-length:])
		return trimmed
	}
	padded := make([]int32, length)
	copy(padded[length-len(ids):], ids)
	return padded
}

// AsTrainingData returns the dataset as (inputs, labels) arrays suitable for
// the optimization engine. Inputs are example-major: inputs[i][s] is the
// token-id sequence for example i's slot s. Labels are one-hot vectors over
// NumClasses. Example order is preserved.
func (d *IndexedDataset) AsTrainingData() (inputs [][][]int32, labels [][]float32, err error) {
	if !d.padded {
		return nil, nil, fmt.Errorf("dataset must be padded before extracting training data")
	}
	if d.NumClasses <= 0 {
		return nil, nil, fmt.Errorf("dataset has no labels")
	}
	inputs = make([][][]int32, len(d.Instances))
	labels = make([][]float32, len(d.Instances))
	for i, inst := range d.Instances {
		inputs[i] = inst.Slots
		if inst.Label < 0 || inst.Label >= d.NumClasses {
			return nil, nil, fmt.Errorf("instance %d label %d out of range [0, %d)", i, inst.Label, d.NumClasses)
		}
		oneHot := make([]float32, d.NumClasses)
		oneHot[inst.Label] = 1.0
		labels[i] = oneHot
	}
	return inputs, labels, nil
}
