package testsupport

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goliatone/go-entitylist/query"
)

// LoadFixture loads test data from a fixture file.
// The path is relative to the test package directory.
func LoadFixture(t testing.TB, path string) []byte {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to load fixture from %s: %v", path, err)
	}

	return data
}

// LoadFixtureJSON loads JSON test data from a fixture file and unmarshals it.
// The path is relative to the test package directory.
func LoadFixtureJSON(t testing.TB, path string, dest any) {
	t.Helper()

	data := LoadFixture(t, path)
	if err := json.Unmarshal(data, dest); err != nil {
		t.Fatalf("failed to unmarshal JSON fixture from %s: %v", path, err)
	}
}

// LoadRecords loads a JSON array of records. Values of timeFields are parsed
// as RFC 3339 timestamps so they order as times, not strings.
func LoadRecords(t testing.TB, path string, timeFields ...string) []query.Record {
	t.Helper()

	var raw []map[string]any
	LoadFixtureJSON(t, path, &raw)

	records := make([]query.Record, len(raw))
	for i, m := range raw {
		rec := query.Record(m)
		for _, field := range timeFields {
			s, ok := rec[field].(string)
			if !ok {
				continue
			}
			ts, err := time.Parse(time.RFC3339, s)
			if err != nil {
				t.Fatalf("fixture %s record %d: field %s: %v", path, i, field, err)
			}
			rec[field] = ts.UTC()
		}
		records[i] = rec
	}
	return records
}

// LoadGolden loads expected test output from a golden file.
func LoadGolden(t testing.TB, path string) []byte {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to load golden file from %s: %v", path, err)
	}

	return data
}

// CompareWithGolden compares actual data with the golden file at path.
// If the golden file doesn't exist, it creates one with the actual data.
func CompareWithGolden(t testing.TB, path string, actual []byte) {
	t.Helper()

	expected, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			t.Logf("Golden file %s does not exist, creating it", path)
			writeGolden(t, path, actual)
			return
		}
		t.Fatalf("failed to read golden file %s: %v", path, err)
	}

	if string(actual) != string(expected) {
		t.Errorf("output mismatch for %s:\nExpected:\n%s\nActual:\n%s", path, expected, actual)
	}
}

func writeGolden(t testing.TB, path string, data []byte) {
	t.Helper()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("failed to create directory %s: %v", dir, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("failed to write golden file to %s: %v", path, err)
	}
}

// TempFile writes content to a file in a per-test temporary directory and
// returns its path. name keeps its extension so format sniffing works.
func TempFile(t testing.TB, name string, content []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

// FixturePath constructs a path to a fixture file relative to the testdata directory.
func FixturePath(filename string) string {
	return filepath.Join("testdata", filename)
}

// GoldenPath constructs a path to a golden file relative to the testdata directory.
func GoldenPath(filename string) string {
	return filepath.Join("testdata", "golden", filename)
}
