package datasets

import (
	"fmt"
	"io"

	"github.com/gomlx/gomlx/pkg/core/tensors"
)

// Conversion of padded indexed data into gomlx tensors. The training core in
// this repository uses the pure-Go engine package, but an IndexedDataset can
// also feed a gomlx training loop directly: Tensors converts an arbitrary
// batch, and Yield/Restart/Name satisfy gomlx's train.Dataset shape.

// Tensors converts the instances at the given indices into one tensor per
// input slot plus a one-hot label tensor. The dataset must be padded so every
// slot has a fixed length.
func (d *IndexedDataset) Tensors(indices []int) (inputs []*tensors.Tensor, labels *tensors.Tensor, err error) {
	if !d.padded {
		return nil, nil, fmt.Errorf("dataset must be padded before converting to tensors")
	}
	if len(indices) == 0 {
		return nil, nil, fmt.Errorf("empty batch")
	}
	slots := len(d.Instances[0].Slots)

	// One [batch][words] matrix per slot.
	slotData := make([][][]int32, slots)
	for s := range slotData {
		slotData[s] = make([][]int32, len(indices))
	}
	labelData := make([][]float32, len(indices))

	for bi, idx := range indices {
		if idx < 0 || idx >= len(d.Instances) {
			return nil, nil, fmt.Errorf("index %d out of range [0, %d)", idx, len(d.Instances))
		}
		inst := d.Instances[idx]
		if len(inst.Slots) != slots {
			return nil, nil, fmt.Errorf("instance %d has %d slots, expected %d", idx, len(inst.Slots), slots)
		}
		for s := range inst.Slots {
			slotData[s][bi] = inst.Slots[s]
		}
		oneHot := make([]float32, d.NumClasses)
		if inst.Label >= 0 && inst.Label < d.NumClasses {
			oneHot[inst.Label] = 1.0
		}
		labelData[bi] = oneHot
	}

	inputs = make([]*tensors.Tensor, slots)
	for s := range slotData {
		inputs[s] = tensors.FromAnyValue(slotData[s])
	}
	labels = tensors.FromAnyValue(labelData)
	return inputs, labels, nil
}

// Name returns the name of the dataset.
func (d *IndexedDataset) Name() string { return "IndexedDataset" }

// Yield returns the next batch of tensors, advancing an internal cursor.
// Returns io.EOF once all instances have been yielded; Restart resets the
// cursor for another epoch.
func (d *IndexedDataset) Yield() (spec any, inputs []*tensors.Tensor, labels []*tensors.Tensor, err error) {
	if d.cursor >= len(d.Instances) {
		return nil, nil, nil, io.EOF
	}
	batch := d.BatchSize
	if batch <= 0 {
		batch = 32
	}
	end := d.cursor + batch
	if end > len(d.Instances) {
		end = len(d.Instances)
	}
	indices := make([]int, 0, end-d.cursor)
	for i := d.cursor; i < end; i++ {
		indices = append(indices, i)
	}
	d.cursor = end

	in, lab, err := d.Tensors(indices)
	if err != nil {
		return nil, nil, nil, err
	}
	return nil, in, []*tensors.Tensor{lab}, nil
}

// Restart resets the yield cursor for a new epoch.
func (d *IndexedDataset) Restart() error {
	d.cursor = 0
	return nil
}
