package asset

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cookbridge/cookbridge/pkg/engine"
	"github.com/cookbridge/cookbridge/pkg/session"
	"github.com/cookbridge/cookbridge/pkg/telemetry"
)

// DefaultPollInterval is the pause between two cook state polls.
const DefaultPollInterval = 100 * time.Millisecond

// Cook kinds used in metrics, spans and events.
const (
	KindCook   = "cook"
	KindCreate = "create"
)

// CookerConfig controls the cook state poll loop.
type CookerConfig struct {
	// PollInterval defaults to DefaultPollInterval.
	PollInterval time.Duration
	// Timeout bounds a single wait. Zero waits until the engine reports a ready state.
	Timeout time.Duration
}

// Cooker issues node creation and cook requests and waits for the engine to finish them.
type Cooker struct {
	facade *session.Facade
	cfg    CookerConfig
	tel    *telemetry.Telemetry
	logger *telemetry.Logger
}

// NewCooker returns a cooker over the facade's session.
func NewCooker(f *session.Facade, cfg CookerConfig) *Cooker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	tel := f.Telemetry()
	return &Cooker{
		facade: f,
		cfg:    cfg,
		tel:    tel,
		logger: tel.Log().NewComponentLogger("cooker"),
	}
}

func (c *Cooker) session() (engine.Session, error) {
	s := c.facade.Session()
	if s == nil {
		return nil, engine.NewSessionError(session.NoSessionMessage, nil).WithCode(engine.ErrCodeInvalidSession)
	}
	return s, nil
}

// WaitForReady polls the cook state until it is one of the ready states and returns it.
// Any other state keeps the loop going. The wait ends early only when ctx is done, the
// configured timeout expires, or the status query fails.
func (c *Cooker) WaitForReady(ctx context.Context, kind string) (engine.State, error) {
	s, err := c.session()
	if err != nil {
		return 0, err
	}
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()
	for {
		v, err := s.GetStatus(ctx, engine.StatusCookState)
		c.tel.M().RecordPoll(kind)
		if err != nil {
			return 0, fmt.Errorf("failed to poll cook state: %w", c.facade.Check(err))
		}
		state := engine.State(v)
		if state.IsTerminal() {
			return state, nil
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return state, engine.NewTransientError(fmt.Sprintf("%s still %s when the wait expired", kind, state), ctx.Err()).
					WithCode(engine.ErrCodeTimeout)
			}
			return state, ctx.Err()
		case <-ticker.C:
		}
	}
}

// CreateNode creates a node and waits for the engine to finish loading it. A fatal
// state fails the creation and names the operator and label; cook errors only log a
// warning. The node id is returned even when the wait fails, so the caller can delete it.
func (c *Cooker) CreateNode(ctx context.Context, parent engine.NodeID, operator, label string, cookOnCreation bool) (engine.NodeID, error) {
	s, err := c.session()
	if err != nil {
		return engine.InvalidNodeID, err
	}
	log := c.logger.WithOperator(operator, label)

	id, err := s.CreateNode(ctx, parent, operator, label, cookOnCreation)
	if err != nil {
		err = c.facade.Check(err)
		log.WithError(err).Error("failed to create node")
		c.tel.M().RecordError(errorClass(err))
		return engine.InvalidNodeID, fmt.Errorf("failed to create node %s: %w", operator, err)
	}

	ctx, span := c.tel.T().StartCookSpan(ctx, KindCreate, int32(id))
	defer span.End()
	c.tel.M().RecordCookStarted(KindCreate)
	timer := telemetry.NewTimer()

	state, err := c.WaitForReady(ctx, KindCreate)
	c.tel.M().RecordCookCompleted(KindCreate, outcome(state, err), timer.Duration())
	if err != nil {
		telemetry.RecordError(span, err)
		return id, err
	}

	switch state {
	case engine.StateReadyWithFatalErrors:
		err := engine.NewFatalError("node creation finished with fatal errors", nil).
			WithCode(engine.ErrCodeCookFatal).
			WithOperation("CreateNode").
			WithDetail("operator", operator).
			WithDetail("label", label)
		log.WithNode(int32(id)).Errorf("error while instantiating: %s", c.facade.CookResult(ctx))
		telemetry.RecordError(span, err)
		return id, err
	case engine.StateReadyWithCookErrors:
		log.WithNode(int32(id)).Warnf("cook errors while instantiating: %s", c.facade.CookResult(ctx))
	}
	telemetry.RecordSuccess(span)
	return id, nil
}

// StartCook requests a cook of node without waiting. nil options use the defaults.
func (c *Cooker) StartCook(ctx context.Context, node engine.NodeID, opts *engine.CookOptions) error {
	if !node.IsValid() {
		return engine.NewPermanentError(fmt.Sprintf("cannot cook invalid node %d", node), nil).
			WithCode(engine.ErrCodeInvalidArgument)
	}
	s, err := c.session()
	if err != nil {
		return err
	}
	if opts == nil {
		def := engine.DefaultCookOptions()
		opts = &def
	}
	if err := s.CookNode(ctx, node, opts); err != nil {
		err = c.facade.Check(err)
		c.tel.M().RecordError(errorClass(err))
		return fmt.Errorf("failed to cook node %d: %w", node, err)
	}
	c.tel.M().RecordCookStarted(KindCook)
	return nil
}

// AwaitCook waits for a cook started with StartCook. A fatal state is returned with a
// fatal-class error. Cook errors are logged and returned as the state with a nil error.
func (c *Cooker) AwaitCook(ctx context.Context, node engine.NodeID) (engine.State, error) {
	ctx, span := c.tel.T().StartCookSpan(ctx, KindCook, int32(node))
	defer span.End()
	timer := telemetry.NewTimer()

	state, err := c.WaitForReady(ctx, KindCook)
	c.tel.M().RecordCookCompleted(KindCook, outcome(state, err), timer.Duration())
	if err != nil {
		telemetry.RecordError(span, err)
		return state, err
	}

	log := c.logger.WithNode(int32(node))
	switch state {
	case engine.StateReadyWithFatalErrors:
		err := engine.NewFatalError(fmt.Sprintf("cook of node %d finished with fatal errors", node), nil).
			WithCode(engine.ErrCodeCookFatal).
			WithOperation("CookNode")
		log.Errorf("cook failed: %s", c.facade.NodeErrors(ctx, node))
		telemetry.RecordError(span, err)
		return state, err
	case engine.StateReadyWithCookErrors:
		log.Warnf("cook finished with errors: %s", c.facade.NodeErrors(ctx, node))
	}
	telemetry.RecordSuccess(span)
	return state, nil
}

// CookNode requests a cook and, when wait is set, blocks until the engine is ready.
// Without wait it returns StateStartingCook once the request is accepted.
func (c *Cooker) CookNode(ctx context.Context, node engine.NodeID, opts *engine.CookOptions, wait bool) (engine.State, error) {
	if err := c.StartCook(ctx, node, opts); err != nil {
		return 0, err
	}
	if !wait {
		return engine.StateStartingCook, nil
	}
	return c.AwaitCook(ctx, node)
}

func outcome(state engine.State, err error) string {
	if err != nil {
		return "interrupted"
	}
	return state.String()
}

func errorClass(err error) string {
	var ee *engine.EngineError
	if errors.As(err, &ee) {
		return string(ee.Class)
	}
	return "unknown"
}
