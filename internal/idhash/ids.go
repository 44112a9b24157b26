// Package idhash computes deterministic identifiers for runs and trades.
package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
)

// ComputeTradeID computes a deterministic trade_id using SHA256.
// Formula: SHA256(run_id|symbol|entry_time_ms|window_index)
// Returns hex-encoded hash (64 characters).
func ComputeTradeID(runID, symbol string, entryTimeMs int64, windowIndex int) string {
	data := fmt.Sprintf("%s|%s|%d|%d", runID, symbol, entryTimeMs, windowIndex)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// ComputeRunID computes a short deterministic run identifier.
// Formula: base58(SHA256(symbols|start_ms|end_ms|created_at_ms)[:12])
// Short enough for log lines and report filenames while remaining unique
// per (inputs, creation time).
func ComputeRunID(symbols []string, startMs, endMs, createdAtMs int64) string {
	data := fmt.Sprintf("%s|%d|%d|%d", strings.Join(symbols, ","), startMs, endMs, createdAtMs)
	hash := sha256.Sum256([]byte(data))
	return base58.Encode(hash[:12])
}
