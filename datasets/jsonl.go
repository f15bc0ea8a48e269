package datasets

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-json"
)

// jsonlRecord is one line of a JSONL dataset. Either "text" (single slot) or
// "texts" (multiple aligned slots) must be present.
type jsonlRecord struct {
	Text  string   `json:"text"`
	Texts []string `json:"texts"`
	Label int      `json:"label"`
}

// ReadJSONLDataset loads a dataset stored as JSON lines, one object per line:
//
//	{"text": "some sentence", "label": 2}
//	{"texts": ["premise", "hypothesis"], "label": 0}
//
// All records must carry the same number of slots.
func ReadJSONLDataset(path string) (*TextDataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset %s: %w", path, err)
	}
	defer file.Close()

	var instances []*TextInstance
	slots := -1

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec jsonlRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return nil, fmt.Errorf("%s:%d: failed to parse record: %w", path, lineNo, err)
		}
		texts := rec.Texts
		if len(texts) == 0 {
			if rec.Text == "" {
				return nil, fmt.Errorf("%s:%d: record has neither \"text\" nor \"texts\"", path, lineNo)
			}
			texts = []string{rec.Text}
		}
		if rec.Label < 0 {
			return nil, fmt.Errorf("%s:%d: negative label %d", path, lineNo, rec.Label)
		}
		if slots == -1 {
			slots = len(texts)
		} else if len(texts) != slots {
			return nil, fmt.Errorf("%s:%d: expected %d text slots, got %d", path, lineNo, slots, len(texts))
		}
		instances = append(instances, &TextInstance{Texts: texts, Label: rec.Label})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read dataset %s: %w", path, err)
	}
	if len(instances) == 0 {
		return nil, fmt.Errorf("dataset %s contains no instances", path)
	}
	return NewTextDataset(instances), nil
}
