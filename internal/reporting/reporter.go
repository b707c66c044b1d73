// Package reporting persists run artifacts: the TaskResult and,
// optionally, the full conversation transcript as one JSON document per
// run.
package reporting

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/droverhq/drover-cli/api/schemas"
)

// RunReport is the persisted artifact for one run.
type RunReport struct {
	Result     *schemas.TaskResult       `json:"result"`
	Transcript []schemas.TranscriptEntry `json:"transcript,omitempty"`
}

// Reporter writes run reports into a directory.
type Reporter struct {
	dir    string
	logger *zap.Logger
}

// New creates a reporter rooted at dir, creating it if needed.
func New(dir string, logger *zap.Logger) (*Reporter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create report dir: %w", err)
	}
	return &Reporter{dir: dir, logger: logger.Named("reporting")}, nil
}

// Write persists one run report as run_<id>.json and returns its path.
func (r *Reporter) Write(result *schemas.TaskResult, entries []schemas.TranscriptEntry) (string, error) {
	if result == nil {
		return "", fmt.Errorf("cannot report a nil result")
	}
	report := RunReport{Result: result, Transcript: entries}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal run report: %w", err)
	}

	path := filepath.Join(r.dir, fmt.Sprintf("run_%s.json", result.RunID))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write run report: %w", err)
	}
	r.logger.Info("Run report written", zap.String("path", path))
	return path, nil
}
