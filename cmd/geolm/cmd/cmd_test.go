package cmd

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cognicore/geolm/pkg/geolm"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("geolm %s: %v", strings.Join(args, " "), err)
	}
	return out.String()
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

const corpusJSONL = `{"id": "paris-1", "label": "paris", "counts": "eiffel:3 seine:2 louvre:2 cafe:1"}
{"id": "lyon-1", "label": "lyon", "counts": "rhone:3 saone:2 bouchon:2 cafe:1"}
{"id": "austin-1", "label": "austin", "counts": "texas:3 bbq:2 music:2"}
{"id": "q-paris", "label": "paris", "split": "test", "counts": "seine:1 louvre:1"}
{"id": "q-austin", "label": "austin", "split": "test", "counts": "bbq:2 texas:1"}
`

func TestCountsCommand(t *testing.T) {
	dir := t.TempDir()
	page := writeFile(t, dir, "page.html", `<html><body><p>Paris, Paris!</p><script>lyon()</script><p>the Seine</p></body></html>`)
	stops := writeFile(t, dir, "stop.yaml", "terms:\n  - the\n")

	out := execute(t, "counts", page, "--html", "--stoplist", stops)
	if strings.TrimSpace(out) != "paris:2 seine:1" {
		t.Errorf("Unexpected count string %q", out)
	}
}

func TestImportAndRankCommands(t *testing.T) {
	dir := t.TempDir()
	jsonl := writeFile(t, dir, "corpus.jsonl", corpusJSONL)
	cfg := writeFile(t, dir, "geolm.yaml", "strategy: dirichlet\nfactor: 5\n")
	db := filepath.Join(dir, "corpus.db")

	out := execute(t, "import", "--jsonl", jsonl, "--db", db)
	if !strings.Contains(out, "stored 5 of 5") {
		t.Errorf("Unexpected import output %q", out)
	}

	out = execute(t, "rank", "--config", cfg, "--db", db, "--top", "2", "--metric", "kl")

	var rankings []geolm.Ranking
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		var rk geolm.Ranking
		if err := json.Unmarshal(scanner.Bytes(), &rk); err != nil {
			t.Fatalf("Bad ranking line %q: %v", scanner.Text(), err)
		}
		rankings = append(rankings, rk)
	}

	if len(rankings) != 2 {
		t.Fatalf("Expected 2 rankings, got %d", len(rankings))
	}
	for _, rk := range rankings {
		if len(rk.Results) != 2 {
			t.Errorf("Expected 2 results for %s, got %d", rk.ID, len(rk.Results))
		}
		if !rk.Correct() {
			t.Errorf("%s predicted %s", rk.ID, rk.Predicted)
		}
	}
}

func TestStopwordsCommand(t *testing.T) {
	dir := t.TempDir()
	jsonl := writeFile(t, dir, "corpus.jsonl", `{"id": "a", "counts": "the:3 paris:1"}
{"id": "b", "counts": "the:2 lyon:1"}
{"id": "c", "counts": "the:1 austin:1 paris:1"}
`)

	out := execute(t, "stopwords", "--jsonl", jsonl, "--df-percent", "70", "--min-docs", "2")
	if strings.TrimSpace(out) != "terms:\n    - the" {
		t.Errorf("Unexpected stoplist %q", out)
	}
}
