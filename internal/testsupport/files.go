package testsupport

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"scout/internal/config"
)

// WriteCSV writes a CSV file with the given header and rows into the config's
// input directory and returns its path.
func WriteCSV(t testing.TB, cfg *config.Config, name string, header []string, rows [][]string) string {
	t.Helper()

	if err := os.MkdirAll(cfg.Paths.InputDir, 0o755); err != nil {
		t.Fatalf("create input dir: %v", err)
	}
	path := filepath.Join(cfg.Paths.InputDir, name)
	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("create csv %s: %v", name, err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(header); err != nil {
		t.Fatalf("write csv header: %v", err)
	}
	for _, row := range rows {
		if err := writer.Write(row); err != nil {
			t.Fatalf("write csv row: %v", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		t.Fatalf("flush csv: %v", err)
	}
	return path
}

// WriteDictionary writes a YAML dictionary document at the config's
// dictionary path.
func WriteDictionary(t testing.TB, cfg *config.Config, body string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(cfg.Paths.DictionaryPath), 0o755); err != nil {
		t.Fatalf("create dictionary dir: %v", err)
	}
	if err := os.WriteFile(cfg.Paths.DictionaryPath, []byte(body), 0o644); err != nil {
		t.Fatalf("write dictionary: %v", err)
	}
}
