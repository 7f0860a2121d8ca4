package asset

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/cookbridge/cookbridge/pkg/attribute"
	"github.com/cookbridge/cookbridge/pkg/engine"
	"github.com/cookbridge/cookbridge/pkg/generic"
	"github.com/cookbridge/cookbridge/pkg/query"
	"github.com/cookbridge/cookbridge/pkg/session"
	"github.com/cookbridge/cookbridge/pkg/socket"
	"github.com/cookbridge/cookbridge/pkg/stores"
	"github.com/cookbridge/cookbridge/pkg/telemetry"
	"github.com/cookbridge/cookbridge/pkg/transform"
)

// Output is one cooked part, gathered after a cook for the host to consume.
type Output struct {
	Part       query.GeoPartObject `json:"part"`
	Info       engine.PartInfo     `json:"info"`
	Transform  transform.Host      `json:"transform"`
	Sockets    []socket.Socket     `json:"sockets,omitempty"`
	Properties []generic.Attribute `json:"properties,omitempty"`
	Tags       []string            `json:"tags,omitempty"`
}

// Processor consumes the outputs of a finished cook.
type Processor interface {
	Process(ctx context.Context, inst *Instance, outputs []Output) error
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, inst *Instance, outputs []Output) error

// Process calls f.
func (f ProcessorFunc) Process(ctx context.Context, inst *Instance, outputs []Output) error {
	return f(ctx, inst, outputs)
}

// DriverConfig wires a Driver.
type DriverConfig struct {
	Cooker      CookerConfig
	CookOptions *engine.CookOptions
	// Codec defaults to the default transform policy.
	Codec *transform.Codec
	// Processor is optional.
	Processor Processor
	// History records cooks and transitions when set.
	History stores.Store
	// Admission checks libraries before they are loaded when set.
	Admission   Admitter
	Environment string
}

// Driver advances asset instances through the cook lifecycle, one state per Tick.
type Driver struct {
	facade    *session.Facade
	cooker    *Cooker
	libraries *LibraryLoader
	codec     *transform.Codec
	opts      *engine.CookOptions
	processor Processor
	history   stores.Store
	tel       *telemetry.Telemetry
	logger    *telemetry.Logger
}

// NewDriver returns a driver over the facade's session.
func NewDriver(f *session.Facade, cfg DriverConfig) *Driver {
	codec := cfg.Codec
	if codec == nil {
		codec = transform.NewCodec(transform.DefaultPolicy())
	}
	opts := cfg.CookOptions
	if opts == nil {
		def := engine.DefaultCookOptions()
		opts = &def
	}
	tel := f.Telemetry()
	return &Driver{
		facade:    f,
		cooker:    NewCooker(f, cfg.Cooker),
		libraries: NewLibraryLoader(f, cfg.Admission, cfg.Environment),
		codec:     codec,
		opts:      opts,
		processor: cfg.Processor,
		history:   cfg.History,
		tel:       tel,
		logger:    tel.Log().NewComponentLogger("driver"),
	}
}

// Cooker returns the driver's cooker.
func (d *Driver) Cooker() *Cooker { return d.cooker }

// Libraries returns the driver's library loader.
func (d *Driver) Libraries() *LibraryLoader { return d.libraries }

// Tick performs one step of the lifecycle and returns the resulting state. Transitions
// requested through the Mark methods since the last tick are recorded first. A step that
// fails leaves the instance in the state it was moved to and returns the error.
func (d *Driver) Tick(ctx context.Context, inst *Instance) (State, error) {
	d.flush(ctx, inst)
	err := d.step(ctx, inst)
	if err != nil {
		inst.mu.Lock()
		inst.lastErr = err
		inst.mu.Unlock()
	}
	d.flush(ctx, inst)
	return inst.State(), err
}

// Run ticks inst until it settles in a state that needs outside input, or ctx is done.
func (d *Driver) Run(ctx context.Context, inst *Instance) (State, error) {
	for {
		before := inst.State()
		after, err := d.Tick(ctx, inst)
		if err != nil {
			return after, err
		}
		if after == before {
			return after, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return after, ctxErr
		}
	}
}

func (d *Driver) step(ctx context.Context, inst *Instance) error {
	inst.mu.Lock()
	state, result := inst.state, inst.result
	enabled, recook := inst.cookingEnabled, inst.recookRequested
	inst.mu.Unlock()

	switch state {
	case StateNeedInstantiation:
		if !enabled || result == ResultFinishedWithFatalError {
			return nil
		}
		d.advance(inst, state, StatePreInstantiation, ResultWorking)
	case StatePreInstantiation:
		return d.preInstantiate(ctx, inst)
	case StateInstantiating:
		return d.instantiate(ctx, inst)
	case StatePreCook:
		if !enabled {
			return nil
		}
		return d.preCook(ctx, inst)
	case StateCooking:
		return d.cook(ctx, inst)
	case StatePostCook:
		return d.postCook(ctx, inst)
	case StatePreProcess:
		return d.preProcess(ctx, inst)
	case StateProcessing:
		return d.process(ctx, inst)
	case StateNone:
		if enabled && recook {
			inst.mu.Lock()
			inst.recookRequested = false
			inst.mu.Unlock()
			d.advance(inst, state, StatePreCook, ResultWorking)
		}
	case StateNeedRebuild:
		return d.rebuild(ctx, inst)
	case StateNeedDelete:
		return d.delete(ctx, inst)
	}
	return nil
}

// advance moves inst from one state to the next unless a Mark call moved it first.
func (d *Driver) advance(inst *Instance, from, to State, result Result) bool {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	if inst.state != from {
		return false
	}
	if err := inst.setStateLocked(to, result); err != nil {
		d.logger.WithAsset(inst.def.Name).WithError(err).Error("refused state change")
		return false
	}
	return true
}

// flush records the queued transitions of inst.
func (d *Driver) flush(ctx context.Context, inst *Instance) {
	for _, t := range inst.drainTransitions() {
		from, to, result := t.from.String(), t.to.String(), t.result.String()
		d.tel.M().RecordStateTransition(from, to)
		_ = d.tel.E().PublishStateChanged(inst.Name(), from, to, result)
		d.logger.WithAsset(inst.Name()).Debugf("%s -> %s (%s)", from, to, result)
		if d.history == nil {
			continue
		}
		err := d.history.RecordTransition(ctx, &stores.Transition{
			AssetName: inst.Name(),
			FromState: from,
			ToState:   to,
			Result:    result,
			At:        time.Now(),
		})
		if err != nil {
			d.logger.WithAsset(inst.Name()).WithError(err).Warn("failed to record transition")
		}
	}
}

func (d *Driver) preInstantiate(ctx context.Context, inst *Instance) error {
	inst.mu.Lock()
	def, lib := inst.def, inst.library
	inst.mu.Unlock()

	if def.LibraryPath != "" && lib == nil {
		loaded, err := d.libraries.Load(ctx, def.LibraryPath, def.LibraryData)
		if err != nil {
			d.advance(inst, StatePreInstantiation, StateNeedInstantiation, ResultFinishedWithFatalError)
			return err
		}
		inst.mu.Lock()
		inst.library = loaded
		if inst.def.Operator == "" {
			inst.def.Operator = loaded.Assets[0]
		}
		inst.mu.Unlock()
	}
	if inst.Definition().Operator == "" {
		d.advance(inst, StatePreInstantiation, StateNeedInstantiation, ResultFinishedWithFatalError)
		return engine.NewPermanentError(fmt.Sprintf("%s has no operator to instantiate", def.Name), nil).
			WithCode(engine.ErrCodeInvalidArgument)
	}
	d.advance(inst, StatePreInstantiation, StateInstantiating, ResultWorking)
	return nil
}

func (d *Driver) instantiate(ctx context.Context, inst *Instance) error {
	def := inst.Definition()
	label := def.Label
	if label == "" {
		label = def.Name
	}
	log := d.logger.WithAsset(def.Name).WithOperator(def.Operator, label)

	id, err := d.cooker.CreateNode(ctx, engine.InvalidNodeID, def.Operator, label, false)
	if err != nil {
		if id.IsValid() {
			d.deleteNode(ctx, inst, id)
		}
		if engine.IsLicense(err) {
			if stopErr := d.facade.Stop(ctx); stopErr != nil {
				log.WithError(stopErr).Warn("failed to stop session after license failure")
			}
		}
		log.WithError(err).Error("instantiation failed")
		d.advance(inst, StateInstantiating, StateNeedInstantiation, ResultFinishedWithFatalError)
		return err
	}

	inst.mu.Lock()
	inst.nodeID = id
	inst.recookRequested = false
	inst.mu.Unlock()
	log.WithNode(int32(id)).Info("instantiated")
	d.advance(inst, StateInstantiating, StatePreCook, ResultWorking)
	return nil
}

func (d *Driver) preCook(ctx context.Context, inst *Instance) error {
	node := inst.NodeID()
	d.uploadParameters(ctx, inst, node, inst.takeParameters())

	cookID := uuid.NewString()
	inst.mu.Lock()
	inst.cookID = cookID
	inst.cookStart = time.Now()
	inst.cookErrors = false
	inst.mu.Unlock()
	if d.history != nil {
		err := d.history.RecordCookStarted(ctx, &stores.Cook{
			ID:        cookID,
			AssetName: inst.Name(),
			NodeID:    int32(node),
			StartedAt: time.Now(),
			State:     engine.StateStartingCook.String(),
			Result:    stores.ResultWorking,
		})
		if err != nil {
			d.logger.WithAsset(inst.Name()).WithError(err).Warn("failed to record cook start")
		}
	}
	_ = d.tel.E().PublishCookStarted(inst.Name(), int32(node), KindCook)

	if err := d.cooker.StartCook(ctx, node, d.opts); err != nil {
		d.failCook(ctx, inst, StatePreCook, 0, err)
		return err
	}
	d.advance(inst, StatePreCook, StateCooking, ResultWorking)
	return nil
}

func (d *Driver) cook(ctx context.Context, inst *Instance) error {
	state, err := d.cooker.AwaitCook(ctx, inst.NodeID())
	if err != nil {
		d.failCook(ctx, inst, StateCooking, state, err)
		return err
	}
	inst.mu.Lock()
	inst.cookErrors = state == engine.StateReadyWithCookErrors
	inst.mu.Unlock()
	d.advance(inst, StateCooking, StatePostCook, ResultWorking)
	return nil
}

// failCook ends a cook that did not reach a ready state. A lost session forgets the node.
func (d *Driver) failCook(ctx context.Context, inst *Instance, from State, state engine.State, err error) {
	node := inst.NodeID()
	result := ResultFinishedWithError
	switch {
	case engine.IsSessionLost(err):
		result = ResultFinishedWithFatalError
		if d.advance(inst, from, StateNeedInstantiation, result) {
			inst.mu.Lock()
			inst.nodeID = engine.InvalidNodeID
			inst.cookCount = -1
			inst.mu.Unlock()
		}
	case engine.IsFatal(err):
		result = ResultFinishedWithFatalError
		d.advance(inst, from, StateNone, result)
	case ctx.Err() != nil && !engine.IsTransient(err):
		result = ResultAborted
		d.advance(inst, from, StateNone, result)
	default:
		d.advance(inst, from, StateNone, result)
	}
	d.completeCook(ctx, inst, node, state, result, err)
	_ = d.tel.E().PublishCookFailed(inst.Name(), int32(node), err.Error())
}

func (d *Driver) postCook(ctx context.Context, inst *Instance) error {
	count := -1
	if s := d.facade.Session(); s != nil {
		count = query.New(s, d.codec, d.tel).CookCount(ctx, inst.NodeID())
	}
	inst.mu.Lock()
	inst.cookCount = count
	inst.mu.Unlock()
	d.advance(inst, StatePostCook, StatePreProcess, ResultWorking)
	return nil
}

func (d *Driver) preProcess(ctx context.Context, inst *Instance) error {
	outputs, err := d.Gather(ctx, inst.NodeID())
	if err != nil {
		d.logger.WithAsset(inst.Name()).WithError(err).Warn("failed to gather outputs")
	}
	inst.mu.Lock()
	inst.outputs = outputs
	inst.mu.Unlock()
	d.advance(inst, StatePreProcess, StateProcessing, ResultWorking)
	return nil
}

func (d *Driver) process(ctx context.Context, inst *Instance) error {
	inst.mu.Lock()
	outputs, cookErrors := inst.outputs, inst.cookErrors
	inst.mu.Unlock()

	var err error
	if d.processor != nil {
		if err = d.processor.Process(ctx, inst, outputs); err != nil {
			err = fmt.Errorf("failed to process outputs of %s: %w", inst.Name(), err)
		}
	}
	result := ResultSuccess
	state := engine.StateReady
	if cookErrors {
		result = ResultFinishedWithError
		state = engine.StateReadyWithCookErrors
	}
	if err != nil {
		result = ResultFinishedWithError
	}
	d.advance(inst, StateProcessing, StateNone, result)
	d.completeCook(ctx, inst, inst.NodeID(), state, result, err)
	return err
}

// completeCook closes the history record of the current cook.
func (d *Driver) completeCook(ctx context.Context, inst *Instance, node engine.NodeID, state engine.State, result Result, cookErr error) {
	inst.mu.Lock()
	cookID, count, started := inst.cookID, inst.cookCount, inst.cookStart
	inst.cookID = ""
	inst.mu.Unlock()
	if cookID == "" {
		return
	}
	if result == ResultSuccess || result == ResultFinishedWithError && cookErr == nil {
		_ = d.tel.E().PublishCookCompleted(inst.Name(), int32(node), state.String(), time.Since(started))
	}
	if d.history == nil {
		return
	}

	c := stores.CookCompletion{
		State:     state.String(),
		Result:    result.String(),
		CookCount: count,
	}
	if result != ResultSuccess && node.IsValid() {
		if log := d.facade.CookLog(ctx, []engine.NodeID{node}); log != "" {
			c.CookLog = &log
		}
	}
	if cookErr != nil {
		msg := cookErr.Error()
		c.Error = &msg
	}
	if err := d.history.RecordCookCompleted(ctx, cookID, c); err != nil {
		d.logger.WithAsset(inst.Name()).WithError(err).Warn("failed to record cook completion")
	}
}

// abortCook closes the record of a cook that a rebuild or delete interrupted.
func (d *Driver) abortCook(ctx context.Context, inst *Instance, node engine.NodeID, reason string) {
	inst.mu.Lock()
	open := inst.cookID != ""
	inst.mu.Unlock()
	if !open {
		return
	}
	d.completeCook(ctx, inst, node, engine.StateCooking, ResultAborted,
		fmt.Errorf("cook of %s interrupted by %s", inst.Name(), reason))
}

func (d *Driver) rebuild(ctx context.Context, inst *Instance) error {
	node := inst.NodeID()
	d.abortCook(ctx, inst, node, "rebuild")
	if node.IsValid() {
		d.deleteNode(ctx, inst, node)
	}
	inst.mu.Lock()
	inst.nodeID = engine.InvalidNodeID
	inst.cookCount = -1
	inst.rebuildRequested = false
	inst.outputs = nil
	inst.mu.Unlock()
	d.advance(inst, StateNeedRebuild, StatePreInstantiation, ResultWorking)
	return nil
}

func (d *Driver) delete(ctx context.Context, inst *Instance) error {
	if !d.advance(inst, StateNeedDelete, StateDeleting, ResultWorking) {
		return nil
	}
	node := inst.NodeID()
	d.abortCook(ctx, inst, node, "delete")
	if node.IsValid() {
		d.deleteNode(ctx, inst, node)
	}
	inst.mu.Lock()
	inst.nodeID = engine.InvalidNodeID
	inst.pendingDelete = false
	inst.outputs = nil
	inst.result = ResultSuccess
	inst.mu.Unlock()
	return nil
}

func (d *Driver) deleteNode(ctx context.Context, inst *Instance, node engine.NodeID) {
	s := d.facade.Session()
	if s == nil {
		return
	}
	if err := s.DeleteNode(ctx, node); err != nil {
		d.logger.WithAsset(inst.Name()).WithNode(int32(node)).WithError(d.facade.Check(err)).Warn("failed to delete node")
	}
}

// uploadParameters pushes queued values in name order. Failures are logged per parameter.
func (d *Driver) uploadParameters(ctx context.Context, inst *Instance, node engine.NodeID, parms map[string]ParmValue) {
	if len(parms) == 0 {
		return
	}
	s := d.facade.Session()
	if s == nil {
		return
	}
	names := make([]string, 0, len(parms))
	for name := range parms {
		names = append(names, name)
	}
	sort.Strings(names)

	log := d.logger.WithAsset(inst.Name()).WithNode(int32(node))
	for _, name := range names {
		v := parms[name]
		var err error
		for i, x := range v.Ints {
			if err = s.SetParmIntValue(ctx, node, name, i, x); err != nil {
				break
			}
		}
		for i, x := range v.Floats {
			if err != nil {
				break
			}
			err = s.SetParmFloatValue(ctx, node, name, i, x)
		}
		for i, x := range v.Strings {
			if err != nil {
				break
			}
			err = s.SetParmStringValue(ctx, node, name, i, x)
		}
		if err != nil {
			log.WithField("parm", name).WithError(d.facade.Check(err)).Warn("failed to set parameter")
		}
	}
}

// Gather collects the display geometry parts of every object of node. Parts that fail to
// resolve are skipped with a warning; the first such error is returned with the rest.
func (d *Driver) Gather(ctx context.Context, node engine.NodeID) ([]Output, error) {
	s := d.facade.Session()
	if s == nil {
		return nil, engine.NewSessionError(session.NoSessionMessage, nil).WithCode(engine.ErrCodeInvalidSession)
	}
	q := query.New(s, d.codec, d.tel)
	attrs := attribute.New(s, d.tel)
	sockets := socket.New(s, d.codec, d.tel)
	props := generic.New(s, d.tel)

	objects, err := q.ObjectInfos(ctx, node)
	if err != nil {
		return nil, err
	}
	transforms, err := q.ObjectTransforms(ctx, node)
	if err != nil {
		return nil, err
	}

	var (
		outputs  []Output
		firstErr error
	)
	keep := func(err error) {
		if firstErr == nil {
			firstErr = err
		}
	}
	for i, obj := range objects {
		xf := transform.HostIdentity()
		if i < len(transforms) {
			xf = d.codec.ToHost(transforms[i])
		}
		geo, err := s.GetDisplayGeoInfo(ctx, obj.NodeID)
		if err != nil {
			keep(fmt.Errorf("failed to get display geo of object %d: %w", obj.NodeID, d.facade.Check(err)))
			continue
		}
		for p := 0; p < geo.PartCount; p++ {
			info, err := s.GetPartInfo(ctx, geo.NodeID, engine.PartID(p))
			if err != nil {
				keep(fmt.Errorf("failed to get part %d of geo %d: %w", p, geo.NodeID, d.facade.Check(err)))
				continue
			}
			out := Output{
				Part: query.GeoPartObject{
					AssetID:  node,
					ObjectID: obj.NodeID,
					GeoID:    geo.NodeID,
					PartID:   info.ID,
					PartName: info.Name,
				},
				Info:      info,
				Transform: xf,
			}
			log := d.logger.WithPart(int32(geo.NodeID), int32(info.ID))
			if _, err := q.NodePathForPart(ctx, &out.Part); err != nil {
				log.WithError(err).Debug("no node path for part")
			}
			if out.Sockets, err = sockets.Extract(ctx, geo.NodeID, info.ID); err != nil {
				log.WithError(err).Warn("failed to extract sockets")
				keep(err)
			}
			if out.Properties, err = props.PropertyAttributes(ctx, geo.NodeID, info.ID); err != nil {
				log.WithError(err).Warn("failed to read property attributes")
				keep(err)
			}
			if out.Tags, err = attrs.UnrealTagAttributes(ctx, geo.NodeID, info.ID); err != nil {
				log.WithError(err).Warn("failed to read tags")
				keep(err)
			}
			outputs = append(outputs, out)
		}
	}
	return outputs, firstErr
}
