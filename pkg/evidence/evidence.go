// Package evidence persists per-run audit bundles: run metadata plus one
// record per pipeline stage, written as JSON under <baseDir>/<runID>/.
package evidence

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// RunRecord captures run-level metadata.
type RunRecord struct {
	ID              string    `json:"id"`
	Timestamp       time.Time `json:"timestamp"`
	InputType       string    `json:"input_type"`
	InputHash       string    `json:"input_hash"`
	InputConfidence float64   `json:"input_confidence"`
	Success         bool      `json:"success"`
	FinalAnswer     string    `json:"final_answer,omitempty"`
	Confidence      float64   `json:"confidence"`
	NeedsHITL       bool      `json:"needs_hitl"`
	HITLReason      string    `json:"hitl_reason,omitempty"`
	TotalTimeMS     float64   `json:"total_time_ms"`
}

// StageRecord captures evidence for a single pipeline stage.
type StageRecord struct {
	Name           string  `json:"name"`
	Action         string  `json:"action"`
	InputSummary   string  `json:"input_summary,omitempty"`
	OutputSummary  string  `json:"output_summary,omitempty"`
	Status         string  `json:"status"`
	DurationMillis float64 `json:"duration_ms"`
}

// Writer writes evidence bundles to disk.
type Writer struct {
	baseDir string
	runDir  string
}

// NewWriter creates a new evidence writer rooted at baseDir/runID.
func NewWriter(baseDir, runID string) (*Writer, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("base directory is required")
	}
	if runID == "" {
		return nil, fmt.Errorf("run ID is required")
	}

	runDir := filepath.Join(baseDir, runID)
	if err := os.MkdirAll(filepath.Join(runDir, "stages"), 0755); err != nil {
		return nil, err
	}

	return &Writer{baseDir: baseDir, runDir: runDir}, nil
}

// RunDir returns the run directory path.
func (w *Writer) RunDir() string {
	return w.runDir
}

// WriteRun writes run metadata to run.json.
func (w *Writer) WriteRun(record RunRecord) error {
	return writeJSON(filepath.Join(w.runDir, "run.json"), record)
}

// WriteStage writes a stage record to stages/<n>-<stage>.json. The index
// keeps stage ordering stable for repeated stages after corrections.
func (w *Writer) WriteStage(index int, record StageRecord) error {
	if record.Name == "" {
		return fmt.Errorf("stage name is required")
	}
	path := filepath.Join(w.runDir, "stages", fmt.Sprintf("%02d-%s.json", index, record.Action))
	return writeJSON(path, record)
}

// HashInput returns the content hash recorded for raw input.
func HashInput(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
