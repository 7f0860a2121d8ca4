package asset

import (
	"fmt"
	"sync"
	"time"

	"github.com/cookbridge/cookbridge/pkg/engine"
)

// Definition names what an instance instantiates.
type Definition struct {
	// Name identifies the instance in logs and cook history.
	Name string `json:"name" yaml:"name"`
	// Operator is the asset operator, e.g. "Sop/rock_generator".
	Operator string `json:"operator" yaml:"operator"`
	// Label is the node label. Empty uses the operator name.
	Label string `json:"label,omitempty" yaml:"label,omitempty"`
	// LibraryPath is loaded before the first instantiation when set.
	LibraryPath string `json:"library_path,omitempty" yaml:"library_path,omitempty"`
	// LibraryData is loaded when LibraryPath does not exist on disk.
	LibraryData []byte `json:"-" yaml:"-"`
	// Template instances never cook; they can only be deleted.
	Template bool `json:"template,omitempty" yaml:"template,omitempty"`
}

// ParmValue is a pending parameter upload. Exactly one slice is set.
type ParmValue struct {
	Ints    []int32   `json:"ints,omitempty"`
	Floats  []float32 `json:"floats,omitempty"`
	Strings []string  `json:"strings,omitempty"`
}

// transition is a state change not yet recorded by the driver.
type transition struct {
	from, to State
	result   Result
}

// Instance is one asset instance driven through the cook lifecycle. Mark methods may be
// called from any goroutine; Tick is expected to run on a single one.
type Instance struct {
	mu sync.Mutex

	def       Definition
	nodeID    engine.NodeID
	state     State
	result    Result
	cookCount int

	recookRequested  bool
	rebuildRequested bool
	cookingEnabled   bool
	pendingDelete    bool

	parms      map[string]ParmValue
	cookErrors bool
	cookID     string
	cookStart  time.Time
	lastErr    error
	outputs    []Output
	library    *Library
	pending    []transition
}

// NewInstance returns an instance waiting for instantiation, or a template instance.
func NewInstance(def Definition) *Instance {
	inst := &Instance{
		def:            def,
		nodeID:         engine.InvalidNodeID,
		state:          StateNeedInstantiation,
		cookCount:      -1,
		cookingEnabled: true,
		parms:          make(map[string]ParmValue),
	}
	if def.Template {
		inst.state = StateProcessTemplate
	}
	return inst
}

// Name returns the instance name.
func (i *Instance) Name() string { return i.def.Name }

// Definition returns what the instance instantiates. The operator is filled in from
// the library when the definition left it empty.
func (i *Instance) Definition() Definition {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.def
}

// Library returns the library loaded for the instance, if any.
func (i *Instance) Library() *Library {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.library
}

// NodeID returns the engine node, or InvalidNodeID before instantiation.
func (i *Instance) NodeID() engine.NodeID {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.nodeID
}

// State returns the current state.
func (i *Instance) State() State {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

// Result returns the result attached to the current state.
func (i *Instance) Result() Result {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.result
}

// IsCooking reports whether the instance is between PreCook and PostCook.
func (i *Instance) IsCooking() bool {
	return i.State().IsCooking()
}

// CookCount returns the engine cook count read after the last cook, or -1.
func (i *Instance) CookCount() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.cookCount
}

// Err returns the error of the last failed step, if any.
func (i *Instance) Err() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.lastErr
}

// Outputs returns the outputs gathered by the last completed cook.
func (i *Instance) Outputs() []Output {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]Output(nil), i.outputs...)
}

// SetCookingEnabled pauses or resumes cooking. A paused instance stays put in
// NeedInstantiation, PreCook and None.
func (i *Instance) SetCookingEnabled(enabled bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.cookingEnabled = enabled
}

// SetParameter queues a parameter value for the next cook.
func (i *Instance) SetParameter(name string, v ParmValue) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.parms[name] = v
}

// SetParameters queues several parameter values.
func (i *Instance) SetParameters(values map[string]ParmValue) {
	i.mu.Lock()
	defer i.mu.Unlock()
	for k, v := range values {
		i.parms[k] = v
	}
}

// MarkAsNeedCook requests a recook once the instance is idle.
func (i *Instance) MarkAsNeedCook() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.recookRequested = true
	i.rebuildRequested = false
	i.pendingDelete = false
}

// MarkAsNeedRebuild drops the engine node and instantiates it again. It takes effect
// immediately, over any work in progress.
func (i *Instance) MarkAsNeedRebuild() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if err := i.setStateLocked(StateNeedRebuild, ResultNone); err != nil {
		return err
	}
	i.rebuildRequested = true
	i.recookRequested = false
	i.pendingDelete = false
	return nil
}

// MarkAsNeedInstantiation forgets the engine node, e.g. after the session was
// recreated, and instantiates from scratch.
func (i *Instance) MarkAsNeedInstantiation() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.state == StateDeleting || i.state == StateProcessTemplate {
		return engine.NewPermanentError(fmt.Sprintf("%s cannot be instantiated from %s", i.def.Name, i.state), nil).
			WithCode(engine.ErrCodeInvalidState)
	}
	i.moveLocked(StateNeedInstantiation, ResultNone)
	i.nodeID = engine.InvalidNodeID
	i.cookCount = -1
	i.recookRequested = false
	i.rebuildRequested = false
	return nil
}

// MarkAsNeedDelete schedules deletion of the engine node. It takes effect immediately.
func (i *Instance) MarkAsNeedDelete() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if err := i.setStateLocked(StateNeedDelete, ResultNone); err != nil {
		return err
	}
	i.pendingDelete = true
	i.recookRequested = false
	i.rebuildRequested = false
	return nil
}

// setStateLocked moves to a legal next state.
func (i *Instance) setStateLocked(to State, result Result) error {
	if !CanTransition(i.state, to) {
		return engine.NewPermanentError(fmt.Sprintf("%s: illegal transition %s -> %s", i.def.Name, i.state, to), nil).
			WithCode(engine.ErrCodeInvalidState)
	}
	i.moveLocked(to, result)
	return nil
}

// moveLocked changes state unconditionally and queues the change for recording.
func (i *Instance) moveLocked(to State, result Result) {
	i.pending = append(i.pending, transition{from: i.state, to: to, result: result})
	i.state = to
	i.result = result
}

// drainTransitions returns and clears the queued state changes.
func (i *Instance) drainTransitions() []transition {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := i.pending
	i.pending = nil
	return out
}

// takeParameters returns and clears the queued parameter values.
func (i *Instance) takeParameters() map[string]ParmValue {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := i.parms
	i.parms = make(map[string]ParmValue)
	return out
}
