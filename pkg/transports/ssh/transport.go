// Package ssh runs an engine server on a remote host: the binary is uploaded over SFTP
// and the protocol is spoken over the stdio of an SSH session.
package ssh

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"sync"
	"time"

	"github.com/pkg/sftp"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"
)

// TransportError represents an error from the transport layer.
type TransportError struct {
	// Op is the operation that failed (e.g., "connect", "exec", "upload")
	Op string

	// Err is the underlying error
	Err error

	// IsTemporary indicates if the error is temporary and can be retried
	IsTemporary bool

	// IsAuthError indicates if the error is related to authentication
	IsAuthError bool
}

func (e *TransportError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) Temporary() bool {
	return e.IsTemporary
}

// ConnectionInfo contains details about an active SSH connection.
type ConnectionInfo struct {
	Host        string
	Port        int
	User        string
	ConnectedAt time.Time
}

// EngineTransport uploads and runs an engine server over SSH. It satisfies
// client.Transport. One transport runs one server at a time.
type EngineTransport struct {
	config *Config
	log    zerolog.Logger

	mu          sync.Mutex
	client      *ssh.Client
	connectedAt time.Time
	session     *ssh.Session
	uploaded    bool
	stopKeep    chan struct{}
}

// NewEngineTransport validates config and creates a transport. It connects lazily.
func NewEngineTransport(config *Config, logger zerolog.Logger) (*EngineTransport, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &EngineTransport{
		config: config,
		log:    logger.With().Str("component", "ssh-transport").Str("host", config.Host).Logger(),
	}, nil
}

// Connect establishes the SSH connection if it is not up yet.
func (t *EngineTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := t.connectLocked(ctx)
	return err
}

func (t *EngineTransport) connectLocked(ctx context.Context) (*ssh.Client, error) {
	if t.client != nil {
		return t.client, nil
	}

	clientConfig, err := t.config.BuildSSHClientConfig()
	if err != nil {
		return nil, &TransportError{Op: "connect", Err: err, IsAuthError: true}
	}

	address := t.config.Address()
	t.log.Debug().Str("address", address).Msg("Establishing SSH connection")

	type dialed struct {
		client *ssh.Client
		err    error
	}
	ch := make(chan dialed, 1)
	go func() {
		c, err := ssh.Dial("tcp", address, clientConfig)
		ch <- dialed{c, err}
	}()

	select {
	case <-ctx.Done():
		go func() {
			if d := <-ch; d.client != nil {
				_ = d.client.Close()
			}
		}()
		return nil, &TransportError{Op: "connect", Err: ctx.Err(), IsTemporary: true}
	case d := <-ch:
		if d.err != nil {
			return nil, &TransportError{Op: "connect", Err: d.err, IsTemporary: true}
		}
		t.client = d.client
		t.connectedAt = time.Now()
		if t.config.KeepAliveInterval > 0 {
			t.stopKeep = make(chan struct{})
			go t.keepAlive(d.client, t.stopKeep)
		}
		t.log.Info().Str("address", address).Msg("SSH connection established")
		return d.client, nil
	}
}

// Upload copies the engine server binary to remotePath over SFTP and makes it executable.
func (t *EngineTransport) Upload(ctx context.Context, localPath, remotePath string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	client, err := t.connectLocked(ctx)
	if err != nil {
		return err
	}

	local, err := os.Open(localPath)
	if err != nil {
		return &TransportError{Op: "upload", Err: fmt.Errorf("failed to open local file: %w", err)}
	}
	defer local.Close()

	sftpClient, err := sftp.NewClient(client)
	if err != nil {
		return &TransportError{Op: "sftp-init", Err: fmt.Errorf("failed to create SFTP client: %w", err), IsTemporary: true}
	}
	defer sftpClient.Close()

	if err := sftpClient.MkdirAll(path.Dir(remotePath)); err != nil {
		return &TransportError{Op: "upload", Err: fmt.Errorf("failed to create remote directory: %w", err)}
	}
	remote, err := sftpClient.Create(remotePath)
	if err != nil {
		return &TransportError{Op: "upload", Err: fmt.Errorf("failed to create remote file: %w", err), IsTemporary: true}
	}
	n, err := copyWithContext(ctx, remote, local)
	if cerr := remote.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return &TransportError{Op: "upload", Err: fmt.Errorf("failed to copy file: %w", err), IsTemporary: true}
	}
	if err := sftpClient.Chmod(remotePath, 0o755); err != nil {
		return &TransportError{Op: "upload", Err: fmt.Errorf("failed to set permissions: %w", err)}
	}

	t.uploaded = true
	t.log.Info().Str("remote", remotePath).Int64("bytes", n).Msg("Engine server uploaded")
	return nil
}

// Execute starts the engine server in a new SSH session.
func (t *EngineTransport) Execute(ctx context.Context, remotePath string) (io.WriteCloser, io.ReadCloser, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.session != nil {
		return nil, nil, &TransportError{Op: "exec", Err: fmt.Errorf("engine server already running")}
	}
	client, err := t.connectLocked(ctx)
	if err != nil {
		return nil, nil, err
	}

	session, err := client.NewSession()
	if err != nil {
		return nil, nil, &TransportError{Op: "exec", Err: fmt.Errorf("failed to open session: %w", err), IsTemporary: true}
	}
	stdin, err := session.StdinPipe()
	if err != nil {
		session.Close()
		return nil, nil, &TransportError{Op: "exec", Err: err}
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		session.Close()
		return nil, nil, &TransportError{Op: "exec", Err: err}
	}
	session.Stderr = t.log.With().Str("stream", "stderr").Logger()

	cmd := t.config.Command(remotePath)
	if err := session.Start(cmd); err != nil {
		session.Close()
		return nil, nil, &TransportError{Op: "exec", Err: fmt.Errorf("failed to start %s: %w", cmd, err)}
	}
	t.session = session
	t.log.Debug().Str("command", cmd).Msg("Engine server started")
	return stdin, readCloser{stdout, session}, nil
}

type readCloser struct {
	io.Reader
	session *ssh.Session
}

func (r readCloser) Close() error {
	err := r.session.Close()
	if err == io.EOF {
		return nil
	}
	return err
}

// Cleanup waits for the server session to end, removes an uploaded binary and
// disconnects.
func (t *EngineTransport) Cleanup(ctx context.Context, remotePath string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	var firstErr error
	if s := t.session; s != nil {
		t.session = nil
		waited := make(chan error, 1)
		go func() { waited <- s.Wait() }()
		select {
		case <-waited:
		case <-ctx.Done():
			_ = s.Close()
			firstErr = ctx.Err()
		}
	}

	if t.uploaded && t.client != nil {
		if sftpClient, err := sftp.NewClient(t.client); err == nil {
			if err := sftpClient.Remove(remotePath); err != nil && !os.IsNotExist(err) {
				t.log.Warn().Err(err).Str("remote", remotePath).Msg("Failed to remove engine server")
			}
			sftpClient.Close()
		}
		t.uploaded = false
	}

	if err := t.disconnectLocked(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func (t *EngineTransport) disconnectLocked() error {
	if t.client == nil {
		return nil
	}
	if t.stopKeep != nil {
		close(t.stopKeep)
		t.stopKeep = nil
	}
	err := t.client.Close()
	t.client = nil
	if err != nil {
		return &TransportError{Op: "disconnect", Err: err}
	}
	return nil
}

// ConnectionInfo returns information about the current connection.
func (t *EngineTransport) ConnectionInfo() ConnectionInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	return ConnectionInfo{
		Host:        t.config.Host,
		Port:        t.config.Port,
		User:        t.config.User,
		ConnectedAt: t.connectedAt,
	}
}

// keepAlive sends periodic keep-alive requests until stop is closed or too many fail.
func (t *EngineTransport) keepAlive(client *ssh.Client, stop <-chan struct{}) {
	ticker := time.NewTicker(t.config.KeepAliveInterval)
	defer ticker.Stop()

	retries := 0
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		if _, _, err := client.SendRequest("keepalive@openssh.com", true, nil); err != nil {
			retries++
			t.log.Warn().Err(err).Int("retries", retries).Msg("Keep-alive failed")
			if retries >= t.config.MaxKeepAliveRetries {
				t.log.Error().Msg("Keep-alive failed too many times, connection may be dead")
				return
			}
			continue
		}
		retries = 0
	}
}

// copyWithContext copies in chunks so a cancelled upload stops early.
func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, 32*1024)
	var written int64
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		n, err := src.Read(buf)
		if n > 0 {
			w, werr := dst.Write(buf[:n])
			written += int64(w)
			if werr != nil {
				return written, werr
			}
		}
		if err == io.EOF {
			return written, nil
		}
		if err != nil {
			return written, err
		}
	}
}
