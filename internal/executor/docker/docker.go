// Package docker runs snippets inside throwaway Docker containers taken from
// per-image pools of pre-warmed, network-less containers.
package docker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/sakif/snippets-api/internal/executor"
)

const timeoutNotice = "\nExecution timed out.\n"

// Executor implements executor.Executor on top of the Docker Engine API.
type Executor struct {
	cli    *client.Client
	config Config
	logger *slog.Logger
	pools  map[string]*Pool // keyed by image
}

var _ executor.Executor = (*Executor)(nil)

// New connects to the Docker daemon described by the environment, makes sure
// every runtime image is present and starts one pool per image.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Executor, error) {
	if len(cfg.Runtimes) == 0 {
		return nil, fmt.Errorf("docker executor: no runtimes configured")
	}

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	if _, err := cli.Ping(ctx); err != nil {
		cli.Close()
		return nil, fmt.Errorf("docker daemon unreachable: %w", err)
	}

	pullCtx, cancel := context.WithTimeout(ctx, cfg.PullTimeout)
	defer cancel()
	for _, img := range cfg.Images() {
		if err := ensureImage(pullCtx, cli, img, logger); err != nil {
			cli.Close()
			return nil, err
		}
	}

	e := &Executor{
		cli:    cli,
		config: cfg,
		logger: logger,
		pools:  make(map[string]*Pool),
	}
	for _, img := range cfg.Images() {
		pool := NewPool(cli, img, cfg, logger)
		pool.Start()
		e.pools[img] = pool
	}

	return e, nil
}

// ensureImage pulls img, falling back to a local copy when the registry is
// unreachable.
func ensureImage(ctx context.Context, cli *client.Client, img string, logger *slog.Logger) error {
	logger.Info("pulling runtime image", slog.String("image", img))

	reader, err := cli.ImagePull(ctx, img, image.PullOptions{})
	if err == nil {
		defer reader.Close()
		// The pull is finished once the progress stream ends.
		if _, err = io.Copy(io.Discard, reader); err == nil {
			return nil
		}
	}

	if _, inspectErr := cli.ImageInspect(ctx, img); inspectErr == nil {
		logger.Warn("pull failed, using local image", slog.String("image", img), slog.String("error", err.Error()))
		return nil
	}
	return fmt.Errorf("pull image %s: %w", img, err)
}

// Languages returns the languages with a configured runtime.
func (e *Executor) Languages() []string {
	return e.config.Languages()
}

// Close stops every pool and the docker client.
func (e *Executor) Close() error {
	for _, pool := range e.pools {
		pool.Stop()
	}
	return e.cli.Close()
}

// Execute runs req.Code with the runtime configured for req.Language. A run
// exceeding the configured timeout reports executor.TimeoutExitCode.
func (e *Executor) Execute(ctx context.Context, req executor.ExecutionRequest) (*executor.ExecutionResult, error) {
	rt, ok := e.config.Runtimes[req.Language]
	if !ok {
		return nil, fmt.Errorf("%w: %q", executor.ErrUnsupportedLanguage, req.Language)
	}
	pool := e.pools[rt.Image]

	start := time.Now()

	containerID, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire container: %w", err)
	}
	defer pool.removeContainer(containerID)

	runCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	execResp, err := e.cli.ContainerExecCreate(runCtx, containerID, container.ExecOptions{
		AttachStdout: true,
		AttachStderr: true,
		Cmd:          rt.Command(req.Code),
	})
	if err != nil {
		return nil, fmt.Errorf("create exec: %w", err)
	}

	attachResp, err := e.cli.ContainerExecAttach(runCtx, execResp.ID, container.ExecStartOptions{})
	if err != nil {
		return nil, fmt.Errorf("attach exec: %w", err)
	}
	defer attachResp.Close()

	var stdout, stderr bytes.Buffer
	done := make(chan struct{})
	go func() {
		_, _ = stdcopy.StdCopy(&stdout, &stderr, attachResp.Reader)
		close(done)
	}()

	exitCode := 0
	timedOut := false
	select {
	case <-done:
		inspect, err := e.cli.ContainerExecInspect(ctx, execResp.ID)
		if err != nil {
			return nil, fmt.Errorf("inspect exec: %w", err)
		}
		exitCode = inspect.ExitCode
	case <-runCtx.Done():
		// Closing the stream unblocks the copier so the buffers are safe to read.
		attachResp.Close()
		<-done
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		timedOut = true
		exitCode = executor.TimeoutExitCode
	}

	if timedOut {
		stderr.WriteString(timeoutNotice)
		e.logger.Info("execution timed out",
			slog.String("language", req.Language),
			slog.Duration("timeout", e.config.Timeout),
		)
	}

	return &executor.ExecutionResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: exitCode,
		Duration: time.Since(start),
	}, nil
}
