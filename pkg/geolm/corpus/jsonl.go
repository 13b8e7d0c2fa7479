package corpus

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
)

// maxLineSize bounds one JSONL line; count strings for long documents are big.
const maxLineSize = 16 << 20

// LoadJSONL reads one JSON record per line. Malformed lines and duplicate
// ids are skipped with a warning; it is an error if no valid record remains.
func LoadJSONL(path string, logger *zap.Logger) (*MemorySource, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	src := NewMemorySource()
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var rec Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			logger.Warn("skipping malformed record",
				zap.String("path", path),
				zap.Int("line", lineNo),
				zap.Error(err))
			continue
		}
		if _, err := src.Add(rec); err != nil {
			logger.Warn("skipping record",
				zap.String("path", path),
				zap.Int("line", lineNo),
				zap.Error(err))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	if src.Len() == 0 {
		return nil, fmt.Errorf("no valid records found in %s", path)
	}
	return src, nil
}
