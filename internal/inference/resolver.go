package inference

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Resolve turns a subprocess outcome into a JobResult. It returns an error only
// when the result artifact exists but cannot be read.
func Resolve(outcome SubprocessOutcome) (JobResult, error) {
	if outcome.TimedOut {
		return Timeout(), nil
	}
	if outcome.ExitCode != 0 {
		return Failure(outcome.ExitCode, outcome.Stderr), nil
	}

	path := filepath.Join(outcome.OutputDir, ResultArtifact)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return SuccessNoArtifact(), nil
		}
		return JobResult{}, fmt.Errorf("failed to read result artifact %s: %w", path, err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return SuccessNoArtifact(), nil
	}
	return Success(string(data)), nil
}
