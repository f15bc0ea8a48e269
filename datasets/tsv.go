package datasets

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ReadTSVDataset loads a tab-separated dataset file. Each line is
//
//	label<TAB>text[<TAB>text...]
//
// where label is an integer class index and every text column after it is one
// input slot. All lines must carry the same number of slots. Blank lines are
// skipped; any malformed line is a parse error and aborts the load.
func ReadTSVDataset(path string) (*TextDataset, error) {
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
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 2 {
			return nil, fmt.Errorf("%s:%d: expected label<TAB>text, got %d fields", path, lineNo, len(fields))
		}
		label, err := strconv.Atoi(strings.TrimSpace(fields[0]))
		if err != nil {
			return nil, fmt.Errorf("%s:%d: failed to parse label %q: %w", path, lineNo, fields[0], err)
		}
		if label < 0 {
			return nil, fmt.Errorf("%s:%d: negative label %d", path, lineNo, label)
		}
		texts := fields[1:]
		if slots == -1 {
			slots = len(texts)
		} else if len(texts) != slots {
			return nil, fmt.Errorf("%s:%d: expected %d text slots, got %d", path, lineNo, slots, len(texts))
		}
		instances = append(instances, &TextInstance{Texts: texts, Label: label})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read dataset %s: %w", path, err)
	}
	if len(instances) == 0 {
		return nil, fmt.Errorf("dataset %s contains no instances", path)
	}
	return NewTextDataset(instances), nil
}
