package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/rs/zerolog"
)

// ProcessTransport runs the engine server as a local child process.
type ProcessTransport struct {
	Args   []string
	Env    []string
	Logger zerolog.Logger

	mu       sync.Mutex
	cmd      *exec.Cmd
	uploaded bool
}

// Upload copies the server binary to remotePath.
func (t *ProcessTransport) Upload(ctx context.Context, localPath, remotePath string) error {
	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer src.Close()

	dst, err := os.OpenFile(remotePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o755)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", remotePath, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("failed to copy server binary: %w", err)
	}
	if err := dst.Close(); err != nil {
		return err
	}

	t.mu.Lock()
	t.uploaded = true
	t.mu.Unlock()
	return nil
}

// Execute starts the server process. The process outlives ctx; Cleanup stops it.
func (t *ProcessTransport) Execute(ctx context.Context, remotePath string) (io.WriteCloser, io.ReadCloser, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cmd != nil {
		return nil, nil, fmt.Errorf("server already running")
	}
	cmd := exec.Command(remotePath, t.Args...)
	cmd.Env = append(os.Environ(), t.Env...)
	cmd.Stderr = t.Logger.With().Str("stream", "stderr").Logger()

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, nil, fmt.Errorf("failed to start %s: %w", remotePath, err)
	}
	t.cmd = cmd
	t.Logger.Debug().Str("path", remotePath).Int("pid", cmd.Process.Pid).Msg("Started engine server")
	return stdin, stdout, nil
}

// Cleanup waits for the server to exit after stdin closes, killing it when ctx ends
// first, then removes an uploaded binary.
func (t *ProcessTransport) Cleanup(ctx context.Context, remotePath string) error {
	t.mu.Lock()
	cmd, uploaded := t.cmd, t.uploaded
	t.cmd = nil
	t.mu.Unlock()

	var errs []error
	if cmd != nil {
		waited := make(chan error, 1)
		go func() { waited <- cmd.Wait() }()
		select {
		case err := <-waited:
			var exit *exec.ExitError
			if err != nil && !errors.As(err, &exit) {
				errs = append(errs, err)
			}
		case <-ctx.Done():
			_ = cmd.Process.Kill()
			<-waited
			errs = append(errs, ctx.Err())
		}
	}
	if uploaded {
		if err := os.Remove(remotePath); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ServeFunc serves the protocol on one reader/writer pair.
type ServeFunc func(ctx context.Context, r io.Reader, w io.Writer) error

// PipeTransport runs a server in-process over pipes.
type PipeTransport struct {
	Serve ServeFunc

	cancel context.CancelFunc
	done   chan error
}

// NewPipeTransport creates a pipe transport for serve.
func NewPipeTransport(serve ServeFunc) *PipeTransport {
	return &PipeTransport{Serve: serve}
}

// Upload is a no-op.
func (t *PipeTransport) Upload(context.Context, string, string) error { return nil }

// Execute starts Serve on a fresh pair of pipes.
func (t *PipeTransport) Execute(ctx context.Context, _ string) (io.WriteCloser, io.ReadCloser, error) {
	if t.done != nil {
		return nil, nil, fmt.Errorf("server already running")
	}
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	serveCtx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.done = make(chan error, 1)
	go func() {
		err := t.Serve(serveCtx, inR, outW)
		outW.CloseWithError(io.EOF)
		inR.Close()
		t.done <- err
	}()
	return inW, outR, nil
}

// Cleanup cancels Serve and waits for it to return.
func (t *PipeTransport) Cleanup(ctx context.Context, _ string) error {
	if t.done == nil {
		return nil
	}
	t.cancel()
	var err error
	select {
	case err = <-t.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	if errors.Is(err, io.ErrClosedPipe) {
		return nil
	}
	return err
}
