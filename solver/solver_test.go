package solver

import (
	"testing"

	"github.com/quillml/textsolve/datasets"
)

func sentimentDataset() *datasets.TextDataset {
	rows := []struct {
		text  string
		label int
	}{
		{"good great fine", 0},
		{"great good nice", 0},
		{"fine nice good", 0},
		{"nice fine great", 0},
		{"bad awful poor", 1},
		{"awful bad worse", 1},
		{"poor worse bad", 1},
		{"worse poor awful", 1},
	}
	instances := make([]*datasets.TextInstance, len(rows))
	for i, r := range rows {
		instances[i] = &datasets.TextInstance{Texts: []string{r.text}, Label: r.label}
	}
	return datasets.NewTextDataset(instances)
}

func TestNewAppliesDefaults(t *testing.T) {
	s := New(Config{})
	cfg := s.Config()
	if cfg.MaxWords != 50 || cfg.NumSlots != 1 || cfg.EmbeddingDim != 64 || cfg.EncoderDim != 32 {
		t.Fatalf("unexpected layer defaults: %+v", cfg)
	}
	if cfg.NumEpochs != 10 || cfg.BatchSize != 32 || cfg.LearningRate != 0.001 {
		t.Fatalf("unexpected training defaults: %+v", cfg)
	}
	if cfg.Seed == 0 {
		t.Fatalf("seed was not defaulted")
	}
}

func TestTrainImprovesAndPredicts(t *testing.T) {
	s := New(Config{
		MaxWords:     3,
		EmbeddingDim: 8,
		EncoderDim:   8,
		NumEpochs:    40,
		BatchSize:    4,
		LearningRate: 0.01,
		Seed:         9,
	})
	ds := sentimentDataset()
	if err := s.Train(ds); err != nil {
		t.Fatalf("Train error: %v", err)
	}

	history := s.History()
	if history == nil || len(history.Epochs) != 40 {
		t.Fatalf("unexpected history: %+v", history)
	}
	first := history.Epochs[0]
	last := history.Epochs[len(history.Epochs)-1]
	if last.Loss >= first.Loss {
		t.Fatalf("loss did not decrease: first=%f last=%f", first.Loss, last.Loss)
	}

	probs, err := s.Predict([]*datasets.TextInstance{
		{Texts: []string{"good nice"}},
		{Texts: []string{"bad worse"}},
	})
	if err != nil {
		t.Fatalf("Predict error: %v", err)
	}
	if len(probs) != 2 || len(probs[0]) != 2 {
		t.Fatalf("unexpected prediction shape: %v", probs)
	}
	if probs[0][0] <= probs[0][1] {
		t.Fatalf("positive instance scored %v", probs[0])
	}
	if probs[1][1] <= probs[1][0] {
		t.Fatalf("negative instance scored %v", probs[1])
	}
}

func TestPredictBeforeTrain(t *testing.T) {
	s := New(Config{})
	if _, err := s.Predict([]*datasets.TextInstance{{Texts: []string{"x"}}}); err == nil {
		t.Fatalf("expected error predicting before training")
	}
}

func TestTrainRejectsSlotMismatch(t *testing.T) {
	s := New(Config{NumSlots: 2, MaxWords: 3})
	ds := sentimentDataset() // single-slot
	if err := s.Train(ds); err == nil {
		t.Fatalf("expected error for slot count mismatch")
	}
}

func TestLayersAreRetainedAcrossTrainCalls(t *testing.T) {
	s := New(Config{MaxWords: 3, EmbeddingDim: 8, EncoderDim: 8, NumEpochs: 2, Seed: 9})
	ds := sentimentDataset()
	s.FitDictionary(ds)

	emb := s.EmbeddingLayer()
	enc := s.EncoderLayer()
	if emb.VocabSize() != s.DataIndexer().VocabSize() {
		t.Fatalf("embedding sized %d, vocabulary has %d entries",
			emb.VocabSize(), s.DataIndexer().VocabSize())
	}

	if err := s.Train(ds); err != nil {
		t.Fatalf("Train error: %v", err)
	}
	if s.EmbeddingLayer() != emb || s.EncoderLayer() != enc {
		t.Fatalf("training replaced the retained layers")
	}
	if err := s.Train(ds); err != nil {
		t.Fatalf("second Train error: %v", err)
	}
	if s.EmbeddingLayer() != emb || s.EncoderLayer() != enc {
		t.Fatalf("second training run replaced the retained layers")
	}
}
