package testutil

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"pollcli/pkg/contracts/domain"
)

// Raw builds a raw record from alternating key/value pairs
func Raw(pairs ...string) domain.RawRecord {
	if len(pairs)%2 != 0 {
		panic("testutil.Raw: odd number of arguments")
	}
	r := make(domain.RawRecord, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		r[pairs[i]] = pairs[i+1]
	}
	return r
}

// WriteCSV writes a header and rows as a CSV file named polls.csv in dir
// and returns its path
func WriteCSV(t *testing.T, dir string, header []string, rows [][]string) string {
	t.Helper()

	path := filepath.Join(dir, "polls.csv")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create fixture: %v", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		t.Fatalf("write fixture header: %v", err)
	}
	if err := w.WriteAll(rows); err != nil {
		t.Fatalf("write fixture rows: %v", err)
	}
	return path
}

// WriteFile writes content to name inside dir and returns its path
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}
