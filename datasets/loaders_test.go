package datasets

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestReadTSVDataset(t *testing.T) {
	path := writeFile(t, "data.tsv",
		"0\tthe cat sat\n"+
			"1\tthe dog ran\n"+
			"\n"+
			"2\tbirds fly\n")

	ds, err := ReadTSVDataset(path)
	if err != nil {
		t.Fatalf("ReadTSVDataset error: %v", err)
	}
	if ds.Len() != 3 {
		t.Fatalf("got %d instances, want 3", ds.Len())
	}
	if ds.NumClasses() != 3 {
		t.Fatalf("NumClasses = %d, want 3", ds.NumClasses())
	}
	if ds.Instances[1].Texts[0] != "the dog ran" || ds.Instances[1].Label != 1 {
		t.Fatalf("unexpected instance 1: %+v", ds.Instances[1])
	}
}

func TestReadTSVDatasetMultiSlot(t *testing.T) {
	path := writeFile(t, "pairs.tsv",
		"0\ta premise\ta hypothesis\n"+
			"1\tanother premise\tanother hypothesis\n")

	ds, err := ReadTSVDataset(path)
	if err != nil {
		t.Fatalf("ReadTSVDataset error: %v", err)
	}
	if ds.NumSlots() != 2 {
		t.Fatalf("NumSlots = %d, want 2", ds.NumSlots())
	}
}

func TestReadTSVDatasetErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad label", "notanumber\tsome text\n"},
		{"negative label", "-1\tsome text\n"},
		{"missing text", "0\n"},
		{"ragged slots", "0\tone\ttwo\n1\tonly one\n"},
		{"empty file", ""},
	}
	for _, tt := range tests {
		path := writeFile(t, "bad.tsv", tt.content)
		if _, err := ReadTSVDataset(path); err == nil {
			t.Fatalf("%s: expected error", tt.name)
		}
	}

	if _, err := ReadTSVDataset(filepath.Join(t.TempDir(), "missing.tsv")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestReadJSONLDataset(t *testing.T) {
	path := writeFile(t, "data.jsonl",
		`{"text": "the cat sat", "label": 0}`+"\n"+
			`{"text": "the dog ran", "label": 1}`+"\n")

	ds, err := ReadJSONLDataset(path)
	if err != nil {
		t.Fatalf("ReadJSONLDataset error: %v", err)
	}
	if ds.Len() != 2 {
		t.Fatalf("got %d instances, want 2", ds.Len())
	}
	if ds.Instances[0].Texts[0] != "the cat sat" {
		t.Fatalf("unexpected instance 0: %+v", ds.Instances[0])
	}
}

func TestReadJSONLDatasetMultiSlot(t *testing.T) {
	path := writeFile(t, "pairs.jsonl",
		`{"texts": ["a premise", "a hypothesis"], "label": 0}`+"\n"+
			`{"texts": ["p two", "h two"], "label": 1}`+"\n")

	ds, err := ReadJSONLDataset(path)
	if err != nil {
		t.Fatalf("ReadJSONLDataset error: %v", err)
	}
	if ds.NumSlots() != 2 {
		t.Fatalf("NumSlots = %d, want 2", ds.NumSlots())
	}
}

func TestReadJSONLDatasetErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"invalid json", "{not json}\n"},
		{"no text", `{"label": 0}` + "\n"},
		{"negative label", `{"text": "x", "label": -2}` + "\n"},
		{"ragged slots", `{"texts": ["a", "b"], "label": 0}` + "\n" + `{"text": "c", "label": 1}` + "\n"},
		{"empty file", ""},
	}
	for _, tt := range tests {
		path := writeFile(t, "bad.jsonl", tt.content)
		if _, err := ReadJSONLDataset(path); err == nil {
			t.Fatalf("%s: expected error", tt.name)
		}
	}
}
