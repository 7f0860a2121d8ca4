// Package server exposes an engine.Session over the JSON-lines protocol, one call at a
// time, on any reader/writer pair (stdio of an engine-server process, an SSH channel, a
// pipe in tests).
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/rs/zerolog"

	"github.com/cookbridge/cookbridge/pkg/engine"
	"github.com/cookbridge/cookbridge/pkg/protocol"
)

// Config configures a Server.
type Config struct {
	// IdleTimeout stops the server when no call arrives for this long. Zero disables it.
	IdleTimeout time.Duration
	// Metadata is announced in READY.
	Metadata map[string]string
	Logger   zerolog.Logger
}

// Server answers protocol calls against one engine session.
type Server struct {
	session engine.Session
	cfg     Config
	log     zerolog.Logger
	calls   int
}

// New creates a server for s.
func New(s engine.Session, cfg Config) *Server {
	return &Server{
		session: s,
		cfg:     cfg,
		log:     cfg.Logger.With().Str("component", "engine-server").Logger(),
	}
}

// Calls returns how many calls were answered.
func (s *Server) Calls() int {
	return s.calls
}

type decoded struct {
	msg *protocol.Message
	err error
}

// Serve sends READY, then answers calls read from r until r ends, ctx is done, the
// idle timeout expires or a Close call succeeds. It sends EXIT before returning.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	enc := protocol.NewEncoder(w)
	dec := protocol.NewDecoder(r)

	if err := enc.EncodeReady(s.ready(ctx)); err != nil {
		return fmt.Errorf("failed to send ready: %w", err)
	}

	inbox := make(chan decoded)
	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			msg, err := dec.Decode()
			select {
			case inbox <- decoded{msg, err}:
			case <-done:
				return
			}
			if errors.Is(err, io.EOF) {
				return
			}
		}
	}()

	var idle <-chan time.Time
	var timer *time.Timer
	if s.cfg.IdleTimeout > 0 {
		timer = time.NewTimer(s.cfg.IdleTimeout)
		defer timer.Stop()
		idle = timer.C
	}

	reason, code := "completed", 0
loop:
	for {
		select {
		case <-ctx.Done():
			reason = "canceled"
			break loop
		case <-idle:
			reason = "idle_timeout"
			break loop
		case in := <-inbox:
			if in.err != nil {
				if errors.Is(in.err, io.EOF) {
					reason = "stdin_closed"
					break loop
				}
				s.log.Warn().Err(in.err).Msg("Dropping unreadable message")
				if err := enc.EncodeError(&protocol.ErrorMessage{Code: protocol.CodeBadMessage, Message: in.err.Error()}); err != nil {
					return err
				}
				continue
			}
			if timer != nil {
				timer.Reset(s.cfg.IdleTimeout)
			}
			closed, err := s.handle(ctx, enc, in.msg)
			if err != nil {
				reason, code = "error", 1
				s.log.Error().Err(err).Msg("Failed to answer call")
				break loop
			}
			if closed {
				reason = "session_closed"
				break loop
			}
		}
	}

	s.log.Info().Str("reason", reason).Int("calls", s.calls).Msg("Engine server stopping")
	return enc.EncodeExit(&protocol.ExitMessage{Reason: reason, ExitCode: code, CallsTotal: s.calls})
}

func (s *Server) ready(ctx context.Context) *protocol.ReadyMessage {
	lic := engine.LicenseNone
	if v, err := s.session.GetSessionEnvInt(ctx, engine.SessionEnvLicense); err == nil {
		lic = engine.License(v)
	}
	return &protocol.ReadyMessage{
		Version:  protocol.Version,
		Platform: runtime.GOOS,
		Arch:     runtime.GOARCH,
		PID:      os.Getpid(),
		License:  lic,
		Caps: map[string]bool{
			"geometry":   true,
			"attributes": true,
			"groups":     true,
			"parms":      true,
		},
		Metadata: s.cfg.Metadata,
	}
}

// handle answers one message. It reports whether the session was closed.
func (s *Server) handle(ctx context.Context, enc *protocol.Encoder, msg *protocol.Message) (bool, error) {
	if msg.Type != protocol.MessageTypeCall {
		return false, enc.EncodeError(&protocol.ErrorMessage{
			Code:    protocol.CodeBadMessage,
			Message: fmt.Sprintf("unexpected %s message", msg.Type),
		})
	}
	call, err := protocol.DecodeCall(msg)
	if err != nil {
		code := protocol.CodeBadArgs
		var probe protocol.CallMessage
		if protocol.ParseData(msg.Data, &probe) == nil && probe.Method.Validate() != nil {
			code = protocol.CodeUnknownMethod
		}
		return false, enc.EncodeError(&protocol.ErrorMessage{CallID: probe.ID, Code: code, Message: err.Error()})
	}

	s.calls++
	start := time.Now()
	value, callErr := Dispatch(ctx, s.session, call.Method, &call.Args)
	reply := &protocol.ReplyMessage{
		CallID:   call.ID,
		Result:   engine.ResultOf(callErr),
		Duration: time.Since(start).Seconds(),
	}
	if callErr != nil {
		reply.Message = callErr.Error()
		s.log.Debug().Str("method", string(call.Method)).Str("result", reply.Result.String()).Msg("Call failed")
	} else if value != nil {
		if reply.Value, err = protocol.MarshalValue(value); err != nil {
			return false, err
		}
	}
	if err := enc.EncodeReply(reply); err != nil {
		return false, err
	}
	return call.Method == protocol.MethodClose && callErr == nil, nil
}
