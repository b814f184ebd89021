// Package executor runs snippet code in an isolated environment.
// The docker sub-package is the production implementation.
package executor

import (
	"context"
	"errors"
	"time"
)

// TimeoutExitCode is reported when a run is killed for exceeding its time
// limit, matching the exit status of coreutils timeout(1).
const TimeoutExitCode = 124

// ErrUnsupportedLanguage is returned for a language with no configured runtime.
var ErrUnsupportedLanguage = errors.New("executor: unsupported language")

// ExecutionRequest is one program to run.
type ExecutionRequest struct {
	Language string `json:"language"`
	Code     string `json:"code"`
}

// ExecutionResult is the output and status of a finished run.
type ExecutionResult struct {
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	ExitCode int           `json:"exitCode"`
	Duration time.Duration `json:"duration"`
}

// Executor runs code in a sandbox.
type Executor interface {
	Execute(ctx context.Context, req ExecutionRequest) (*ExecutionResult, error)
	// Languages lists the snippet languages Execute accepts, sorted.
	Languages() []string
}
