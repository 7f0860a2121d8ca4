// Package client implements engine.Session by speaking the JSON-lines protocol to an
// engine server started through a Transport.
package client

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cookbridge/cookbridge/pkg/engine"
	"github.com/cookbridge/cookbridge/pkg/protocol"
)

// Transport uploads and starts an engine server.
type Transport interface {
	// Upload copies the server binary to where Execute will find it.
	Upload(ctx context.Context, localPath, remotePath string) error
	// Execute starts the server and returns its stdin/stdout.
	Execute(ctx context.Context, remotePath string) (stdin io.WriteCloser, stdout io.ReadCloser, err error)
	// Cleanup stops the server and removes an uploaded binary.
	Cleanup(ctx context.Context, remotePath string) error
}

// Config contains client configuration options.
type Config struct {
	Transport Transport
	// LocalPath is the server binary to upload. Empty skips the upload.
	LocalPath string
	// RemotePath is what Execute runs.
	RemotePath     string
	StartupTimeout time.Duration
	Logger         zerolog.Logger
}

// Client is an engine.Session backed by a remote engine server. Calls are serialized.
type Client struct {
	cfg Config
	log zerolog.Logger

	enc    *protocol.Encoder
	stdin  io.WriteCloser
	stdout io.ReadCloser
	inbox  chan *protocol.Message
	gone   chan struct{}
	stop   chan struct{}
	goneMu sync.Mutex
	goneErr error

	ready *protocol.ReadyMessage

	callMu sync.Mutex
	mu     sync.Mutex
	closed bool
}

var _ engine.Session = (*Client)(nil)

// New creates a new engine client. Start must be called before any engine call.
func New(cfg Config) (*Client, error) {
	if cfg.Transport == nil {
		return nil, fmt.Errorf("transport is required")
	}
	if cfg.RemotePath == "" {
		cfg.RemotePath = cfg.LocalPath
	}
	if cfg.StartupTimeout == 0 {
		cfg.StartupTimeout = 10 * time.Second
	}
	return &Client{
		cfg:   cfg,
		log:   cfg.Logger.With().Str("component", "engine-client").Logger(),
		inbox: make(chan *protocol.Message, 16),
		gone:  make(chan struct{}),
		stop:  make(chan struct{}),
	}, nil
}

// Start uploads and starts the server, then waits for READY.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("client is closed")
	}
	if c.stdin != nil {
		return fmt.Errorf("client already started")
	}

	if c.cfg.LocalPath != "" && c.cfg.LocalPath != c.cfg.RemotePath {
		if err := c.cfg.Transport.Upload(ctx, c.cfg.LocalPath, c.cfg.RemotePath); err != nil {
			return engine.NewTransientError("failed to upload engine server", err)
		}
	}

	stdin, stdout, err := c.cfg.Transport.Execute(ctx, c.cfg.RemotePath)
	if err != nil {
		return engine.NewTransientError("failed to start engine server", err)
	}
	c.stdin = stdin
	c.stdout = stdout
	c.enc = protocol.NewEncoder(stdin)
	go c.read(protocol.NewDecoder(stdout))

	readyCtx, cancel := context.WithTimeout(ctx, c.cfg.StartupTimeout)
	defer cancel()

	select {
	case <-readyCtx.Done():
		return engine.NewTransientError("timeout waiting for READY message", readyCtx.Err()).
			WithCode(engine.ErrCodeTimeout)
	case <-c.gone:
		return engine.NewSessionError("engine server exited before READY", c.readErr())
	case msg := <-c.inbox:
		if msg.Type != protocol.MessageTypeReady {
			return engine.NewSessionError(fmt.Sprintf("expected READY, got %s", msg.Type), nil)
		}
		var ready protocol.ReadyMessage
		if err := protocol.ParseData(msg.Data, &ready); err != nil {
			return engine.NewSessionError("failed to parse READY", err)
		}
		if ready.Version != protocol.Version {
			return engine.NewSessionError(fmt.Sprintf("protocol version %q, want %q", ready.Version, protocol.Version), nil)
		}
		c.ready = &ready
		c.log.Info().Int("pid", ready.PID).Str("platform", ready.Platform).Msg("Engine server ready")
		return nil
	}
}

// Ready returns the READY message received during startup.
func (c *Client) Ready() *protocol.ReadyMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready
}

func (c *Client) read(dec *protocol.Decoder) {
	defer close(c.gone)
	for {
		msg, err := dec.Decode()
		if err != nil {
			c.goneMu.Lock()
			c.goneErr = err
			c.goneMu.Unlock()
			return
		}
		if msg.Type == protocol.MessageTypeExit {
			var exit protocol.ExitMessage
			_ = protocol.ParseData(msg.Data, &exit)
			c.goneMu.Lock()
			c.goneErr = fmt.Errorf("engine server exited: %s", exit.Reason)
			c.goneMu.Unlock()
			return
		}
		select {
		case c.inbox <- msg:
		case <-c.stop:
			return
		}
	}
}

func (c *Client) readErr() error {
	c.goneMu.Lock()
	defer c.goneMu.Unlock()
	return c.goneErr
}

// call sends one call and waits for its reply. Replies to calls abandoned on
// cancellation are discarded when they arrive.
func (c *Client) call(ctx context.Context, m protocol.Method, args protocol.Args, out interface{}) error {
	c.callMu.Lock()
	defer c.callMu.Unlock()

	if c.enc == nil {
		return engine.NewSessionError("engine client is not started", nil).WithOperation(string(m))
	}
	select {
	case <-c.gone:
		return engine.NewSessionError("engine server is gone", c.readErr()).WithOperation(string(m))
	default:
	}
	if err := ctx.Err(); err != nil {
		return engine.NewTransientError("call canceled", err).WithOperation(string(m))
	}

	id := uuid.NewString()
	if err := c.enc.EncodeCall(&protocol.CallMessage{ID: id, Method: m, Args: args}); err != nil {
		return engine.NewTransientError("failed to send call", err).WithOperation(string(m))
	}

	for {
		var msg *protocol.Message
		select {
		case <-ctx.Done():
			return engine.NewTransientError("call canceled", ctx.Err()).WithOperation(string(m))
		case msg = <-c.inbox:
		case <-c.gone:
			// Replies queued before EXIT still count.
			select {
			case msg = <-c.inbox:
			default:
				return engine.NewSessionError("engine server is gone", c.readErr()).WithOperation(string(m))
			}
		}
		if done, err := c.answer(msg, id, m, out); done {
			return err
		}
	}
}

// answer handles one message received while waiting for call id.
func (c *Client) answer(msg *protocol.Message, id string, m protocol.Method, out interface{}) (bool, error) {
	switch msg.Type {
	case protocol.MessageTypeReply:
		var reply protocol.ReplyMessage
		if err := protocol.ParseData(msg.Data, &reply); err != nil {
			return true, engine.NewTransientError("failed to parse reply", err).WithOperation(string(m))
		}
		if reply.CallID != id {
			c.log.Debug().Str("call_id", reply.CallID).Msg("Discarding stale reply")
			return false, nil
		}
		if reply.Result != engine.ResultSuccess {
			return true, resultError(reply, m)
		}
		if out == nil || len(reply.Value) == 0 {
			return true, nil
		}
		if err := protocol.ParseData(reply.Value, out); err != nil {
			return true, engine.NewMismatchError(fmt.Sprintf("%s: unexpected reply value", m), err)
		}
		return true, nil

	case protocol.MessageTypeError:
		var em protocol.ErrorMessage
		if err := protocol.ParseData(msg.Data, &em); err != nil {
			return true, engine.NewTransientError("failed to parse error", err).WithOperation(string(m))
		}
		if em.CallID != "" && em.CallID != id {
			return false, nil
		}
		return true, engine.NewPermanentError(fmt.Sprintf("%s - %s", em.Code, em.Message), nil).
			WithCode(engine.ErrCodeInvalidArgument).WithOperation(string(m))
	}
	c.log.Warn().Str("type", string(msg.Type)).Msg("Ignoring unexpected message")
	return false, nil
}

func resultError(reply protocol.ReplyMessage, m protocol.Method) error {
	err := engine.ResultError(reply.Result, string(m))
	if e, ok := err.(*engine.EngineError); ok && reply.Message != "" {
		return e.WithDetail("server_message", reply.Message)
	}
	return err
}

func value[T any](ctx context.Context, c *Client, m protocol.Method, args protocol.Args) (T, error) {
	var v T
	err := c.call(ctx, m, args, &v)
	return v, err
}

// Close closes the engine session, then stops the server. It is safe to call twice.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	var callErr error
	if c.enc != nil {
		callErr = c.call(ctx, protocol.MethodClose, protocol.Args{}, nil)
	}
	if err := c.Shutdown(ctx); err != nil {
		return err
	}
	if callErr != nil && !engine.IsSessionLost(callErr) {
		return callErr
	}
	return nil
}

// Shutdown stops the server without closing the engine session first.
func (c *Client) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	close(c.stop)

	var errs []error
	if c.stdin != nil {
		if err := c.stdin.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close stdin: %w", err))
		}
	}
	if c.stdout != nil {
		if err := c.stdout.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close stdout: %w", err))
		}
	}
	if err := c.cfg.Transport.Cleanup(ctx, c.cfg.RemotePath); err != nil {
		errs = append(errs, fmt.Errorf("failed to clean up: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during close: %v", errs)
	}
	return nil
}
