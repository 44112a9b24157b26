package feed

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bars.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write bars file: %v", err)
	}
	return path
}

func TestLoadBarsFile(t *testing.T) {
	path := writeTempFile(t, `[
		{"symbol":"SOL-USD","timestamp_ms":1000,"open":100,"high":101,"low":99,"close":100.5,"volume":5000,"liquidity_score":0.9},
		{"symbol":"SOL-USD","timestamp_ms":61000,"open":100.5,"high":102,"low":100,"close":101.5,"volume":4800,"liquidity_score":0.85}
	]`)

	bars, err := LoadBarsFile(path)
	if err != nil {
		t.Fatalf("LoadBarsFile failed: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("got %d bars, want 2", len(bars))
	}
	if bars[0].Symbol != "SOL-USD" || bars[0].TimestampMs != 1000 {
		t.Errorf("first bar = %+v", bars[0])
	}
	if bars[1].Close != 101.5 || bars[1].LiquidityScore != 0.85 {
		t.Errorf("second bar = %+v", bars[1])
	}
}

func TestLoadBarsFile_InvalidBar(t *testing.T) {
	// High below low violates the bar invariant
	path := writeTempFile(t, `[
		{"symbol":"SOL-USD","timestamp_ms":1000,"open":100,"high":99,"low":101,"close":100,"volume":5000,"liquidity_score":0.9}
	]`)

	if _, err := LoadBarsFile(path); err == nil {
		t.Error("invalid bar accepted")
	}
}

func TestLoadBarsFile_BadJSON(t *testing.T) {
	path := writeTempFile(t, `{"not":"an array"}`)
	if _, err := LoadBarsFile(path); err == nil {
		t.Error("malformed file accepted")
	}
}

func TestLoadBarsFile_Missing(t *testing.T) {
	if _, err := LoadBarsFile(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Error("missing file accepted")
	}
}
