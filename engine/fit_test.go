package engine

import "testing"

// trainingData builds a separable single-slot problem: tokens 2 and 3 mark
// class 0, tokens 4 and 5 mark class 1.
func trainingData() (inputs [][][]int32, labels [][]float32) {
	sequences := [][]int32{
		{2, 3, 2}, {3, 2, 3}, {2, 2, 3}, {3, 3, 2},
		{4, 5, 4}, {5, 4, 5}, {4, 4, 5}, {5, 5, 4},
	}
	labels = [][]float32{
		{1, 0}, {1, 0}, {1, 0}, {1, 0},
		{0, 1}, {0, 1}, {0, 1}, {0, 1},
	}
	return [][][]int32{sequences}, labels
}

func compiledTestModel(t *testing.T) *Model {
	t.Helper()
	m := newTestModel(t, 1)
	if err := m.Compile(LossCategoricalCrossEntropy, OptimizerAdam, []string{MetricAccuracy}); err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	return m
}

type stopAfter struct {
	epoch int
	seen  int
}

func (s *stopAfter) OnEpochEnd(epoch int, _ Metrics) bool {
	s.seen++
	return epoch >= s.epoch
}

func TestFitLossDecreases(t *testing.T) {
	m := compiledTestModel(t)
	inputs, labels := trainingData()

	history, err := m.Fit(inputs, labels, FitOptions{
		Epochs:       60,
		BatchSize:    4,
		LearningRate: 0.01,
		Seed:         7,
	})
	if err != nil {
		t.Fatalf("Fit error: %v", err)
	}
	if len(history.Epochs) != 60 {
		t.Fatalf("got %d epochs, want 60", len(history.Epochs))
	}
	first := history.Epochs[0]
	last := history.Epochs[len(history.Epochs)-1]
	if last.Loss >= first.Loss {
		t.Fatalf("loss did not decrease: first=%f last=%f", first.Loss, last.Loss)
	}
	if last.Accuracy < 0.9 {
		t.Fatalf("final accuracy %f too low", last.Accuracy)
	}
	if last.HasValidation {
		t.Fatalf("unexpected validation metrics without a split")
	}
}

func TestFitValidationSplitTakesTail(t *testing.T) {
	m := compiledTestModel(t)
	inputs, labels := trainingData()

	history, err := m.Fit(inputs, labels, FitOptions{
		Epochs:          5,
		ValidationSplit: 0.25,
		LearningRate:    0.01,
		Seed:            7,
	})
	if err != nil {
		t.Fatalf("Fit error: %v", err)
	}
	for i, metrics := range history.Epochs {
		if !metrics.HasValidation {
			t.Fatalf("epoch %d missing validation metrics", i)
		}
		if metrics.ValLoss <= 0 {
			t.Fatalf("epoch %d: validation loss %f", i, metrics.ValLoss)
		}
	}
}

func TestFitCallbackStopsTraining(t *testing.T) {
	m := compiledTestModel(t)
	inputs, labels := trainingData()

	cb := &stopAfter{epoch: 2}
	history, err := m.Fit(inputs, labels, FitOptions{
		Epochs:    50,
		Seed:      7,
		Callbacks: []Callback{cb},
	})
	if err != nil {
		t.Fatalf("Fit error: %v", err)
	}
	if !history.StoppedEarly {
		t.Fatalf("expected StoppedEarly")
	}
	if len(history.Epochs) != 3 {
		t.Fatalf("got %d epochs, want 3", len(history.Epochs))
	}
	if cb.seen != 3 {
		t.Fatalf("callback consulted %d times, want 3", cb.seen)
	}
}

func TestFitUpdatesSharedLayers(t *testing.T) {
	emb := NewEmbedding("shared_emb", 8, 4, 1)
	hidden := NewDense("shared_hidden", 4, 6, ActivationReLU, 2)

	first, err := NewModel(ModelConfig{
		Name:      "first",
		Embedding: emb,
		Hidden:    []*Dense{hidden},
		Output:    NewDense("first_out", 6, 2, ActivationSoftmax, 3),
	})
	if err != nil {
		t.Fatalf("NewModel error: %v", err)
	}
	second, err := NewModel(ModelConfig{
		Name:      "second",
		Embedding: emb,
		Hidden:    []*Dense{hidden},
		Output:    NewDense("second_out", 6, 2, ActivationSoftmax, 4),
	})
	if err != nil {
		t.Fatalf("NewModel error: %v", err)
	}
	if first.embedding != second.embedding || first.hidden[0] != second.hidden[0] {
		t.Fatalf("models do not share layer storage")
	}

	before := make([]float32, len(emb.Table[2]))
	copy(before, emb.Table[2])

	if err := first.Compile(LossCategoricalCrossEntropy, OptimizerAdam, nil); err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	inputs, labels := trainingData()
	if _, err := first.Fit(inputs, labels, FitOptions{Epochs: 5, LearningRate: 0.01, Seed: 7}); err != nil {
		t.Fatalf("Fit error: %v", err)
	}

	changed := false
	for i, v := range emb.Table[2] {
		if v != before[i] {
			changed = true
			break
		}
	}
	if !changed {
		t.Fatalf("training did not update the shared embedding row")
	}
	// The second model reads the same storage, so it sees the update too.
	if &second.embedding.Table[2][0] != &emb.Table[2][0] {
		t.Fatalf("second model lost the shared embedding storage")
	}
}

func TestFitRejectsBadArguments(t *testing.T) {
	inputs, labels := trainingData()

	uncompiled := newTestModel(t, 1)
	if _, err := uncompiled.Fit(inputs, labels, FitOptions{Epochs: 1}); err == nil {
		t.Fatalf("expected error fitting uncompiled model")
	}

	m := compiledTestModel(t)
	if _, err := m.Fit(inputs, labels, FitOptions{Epochs: 0}); err == nil {
		t.Fatalf("expected error for zero epoch budget")
	}
	if _, err := m.Fit(inputs, labels, FitOptions{Epochs: 1, ValidationSplit: 1.0}); err == nil {
		t.Fatalf("expected error for validation split of 1")
	}
	if _, err := m.Fit(inputs, labels, FitOptions{Epochs: 1, ValidationSplit: -0.1}); err == nil {
		t.Fatalf("expected error for negative validation split")
	}
	if _, err := m.Fit(inputs, labels[:4], FitOptions{Epochs: 1}); err == nil {
		t.Fatalf("expected error for mismatched label count")
	}
}
