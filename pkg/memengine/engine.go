package memengine

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/cookbridge/cookbridge/pkg/engine"
)

// AssetTemplate populates a freshly created asset node with objects, geometry and parameters.
type AssetTemplate func(b *Builder, asset engine.NodeID)

// Engine is an in-memory engine.Session. It is safe for concurrent use.
type Engine struct {
	mu sync.Mutex

	valid       bool
	initialized bool
	license     engine.License
	lastResult  engine.Result

	strings   []string
	stringIdx map[string]engine.StringHandle

	nodes  map[engine.NodeID]*node
	nextID engine.NodeID

	templates map[string]AssetTemplate

	libraryFiles map[string][]string
	libraries    map[engine.LibraryID][]string
	nextLibrary  engine.LibraryID
	memoryAssets []string

	batches     map[engine.StringBatchID][]string
	nextBatch   engine.StringBatchID
	statusText  map[engine.StatusType]string
	cookStates  []engine.State
	cookResult  engine.Result
	failures    map[string][]engine.Result
	calls       map[string]int
	onCookState func(engine.State)
}

// New returns a valid, initialized engine holding a Houdini FX license.
func New() *Engine {
	e := &Engine{
		valid:        true,
		initialized:  true,
		license:      engine.LicenseHoudiniFX,
		stringIdx:    make(map[string]engine.StringHandle),
		nodes:        make(map[engine.NodeID]*node),
		templates:    make(map[string]AssetTemplate),
		libraryFiles: make(map[string][]string),
		libraries:    make(map[engine.LibraryID][]string),
		nextLibrary:  1,
		batches:      make(map[engine.StringBatchID][]string),
		nextBatch:    1,
		statusText:   make(map[engine.StatusType]string),
		failures:     make(map[string][]engine.Result),
		calls:        make(map[string]int),
	}
	// Handle 0 is the empty string.
	e.intern("")
	return e
}

var _ engine.Session = (*Engine)(nil)

func (e *Engine) intern(s string) engine.StringHandle {
	if h, ok := e.stringIdx[s]; ok {
		return h
	}
	h := engine.StringHandle(len(e.strings))
	e.strings = append(e.strings, s)
	e.stringIdx[s] = h
	return h
}

// enter counts the call and returns the injected failure or session error, if any.
// Callers hold e.mu.
func (e *Engine) enter(op string) error {
	e.calls[op]++
	if !e.valid {
		return e.result(op, engine.ResultInvalidSession)
	}
	if q := e.failures[op]; len(q) > 0 {
		res := q[0]
		e.failures[op] = q[1:]
		return e.result(op, res)
	}
	e.lastResult = engine.ResultSuccess
	return nil
}

func (e *Engine) result(op string, res engine.Result) error {
	e.lastResult = res
	return engine.ResultError(res, op)
}

// FailNext makes the next calls of method return the given results, in order.
func (e *Engine) FailNext(method string, results ...engine.Result) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failures[method] = append(e.failures[method], results...)
}

// CallCount returns how many times method was called.
func (e *Engine) CallCount(method string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls[method]
}

// ResetCalls clears the call counters.
func (e *Engine) ResetCalls() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = make(map[string]int)
}

// Invalidate simulates a lost session: every later call fails with ResultInvalidSession.
func (e *Engine) Invalidate() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.valid = false
}

// SetInitialized toggles the initialized flag reported by IsInitialized.
func (e *Engine) SetInitialized(v bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.initialized = v
}

// SetLicense sets the license reported through the session environment.
func (e *Engine) SetLicense(l engine.License) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.license = l
}

// SetStatusString sets the text returned for a status type at any verbosity.
func (e *Engine) SetStatusString(t engine.StatusType, text string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.statusText[t] = text
}

// ScriptCookStates queues the values returned by successive GetStatus(StatusCookState)
// calls. The last value repeats once the queue is drained.
func (e *Engine) ScriptCookStates(states ...engine.State) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cookStates = append(e.cookStates, states...)
}

// OnCookStatePoll registers a hook called with every cook state returned by GetStatus.
func (e *Engine) OnCookStatePoll(fn func(engine.State)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onCookState = fn
}

// LiveStringBatches returns the number of staged string batches not yet released.
func (e *Engine) LiveStringBatches() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.batches)
}

// DefineAsset registers an operator name that CreateNode can instantiate.
func (e *Engine) DefineAsset(operator string, tmpl AssetTemplate) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[operator] = tmpl
}

// AddLibraryFile registers a library path and the operators it provides.
func (e *Engine) AddLibraryFile(path string, operators ...string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.libraryFiles[path] = append([]string(nil), operators...)
}

// SetMemoryLibrary sets the operators provided by LoadAssetLibraryFromMemory.
func (e *Engine) SetMemoryLibrary(operators ...string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.memoryAssets = append([]string(nil), operators...)
}

// IsSessionValid implements engine.StatusAPI.
func (e *Engine) IsSessionValid(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enter("IsSessionValid")
}

// IsInitialized implements engine.StatusAPI.
func (e *Engine) IsInitialized(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter("IsInitialized"); err != nil {
		return err
	}
	if !e.initialized {
		return e.result("IsInitialized", engine.ResultNotInitialized)
	}
	return nil
}

// GetStatus implements engine.StatusAPI.
func (e *Engine) GetStatus(ctx context.Context, t engine.StatusType) (int, error) {
	e.mu.Lock()
	prev := e.lastResult
	if err := e.enter("GetStatus"); err != nil {
		e.mu.Unlock()
		return 0, err
	}
	// Status queries do not overwrite the result of the previous call.
	e.lastResult = prev

	switch t {
	case engine.StatusCallResult:
		res := int(prev)
		e.mu.Unlock()
		return res, nil
	case engine.StatusCookResult:
		res := int(e.cookResult)
		e.mu.Unlock()
		return res, nil
	case engine.StatusCookState:
		state := engine.StateReady
		if len(e.cookStates) > 0 {
			state = e.cookStates[0]
			if len(e.cookStates) > 1 {
				e.cookStates = e.cookStates[1:]
			}
		}
		hook := e.onCookState
		e.mu.Unlock()
		if hook != nil {
			hook(state)
		}
		return int(state), nil
	default:
		err := e.result("GetStatus", engine.ResultInvalidArgument)
		e.mu.Unlock()
		return 0, err
	}
}

// GetStatusString implements engine.StatusAPI.
func (e *Engine) GetStatusString(ctx context.Context, t engine.StatusType, v engine.StatusVerbosity) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter("GetStatusString"); err != nil {
		return "", err
	}
	return e.statusText[t], nil
}

// ComposeNodeCookResult implements engine.StatusAPI.
func (e *Engine) ComposeNodeCookResult(ctx context.Context, id engine.NodeID, v engine.StatusVerbosity) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter("ComposeNodeCookResult"); err != nil {
		return "", err
	}
	n, ok := e.nodes[id]
	if !ok {
		return "", e.result("ComposeNodeCookResult", engine.ResultNodeInvalid)
	}
	return n.cookResult, nil
}

// GetSessionEnvInt implements engine.StatusAPI.
func (e *Engine) GetSessionEnvInt(ctx context.Context, key engine.SessionEnvInt) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter("GetSessionEnvInt"); err != nil {
		return 0, err
	}
	if key != engine.SessionEnvLicense {
		return 0, e.result("GetSessionEnvInt", engine.ResultInvalidArgument)
	}
	return int(e.license), nil
}

// GetString implements engine.StatusAPI.
func (e *Engine) GetString(ctx context.Context, h engine.StringHandle) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter("GetString"); err != nil {
		return "", err
	}
	if h < 0 || int(h) >= len(e.strings) {
		return "", e.result("GetString", engine.ResultInvalidArgument)
	}
	return e.strings[h], nil
}

// Close implements engine.StatusAPI.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter("Close"); err != nil {
		return err
	}
	e.valid = false
	return nil
}

// LoadAssetLibraryFromFile implements engine.NodeAPI.
func (e *Engine) LoadAssetLibraryFromFile(ctx context.Context, path string, allowOverwrite bool) (engine.LibraryID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter("LoadAssetLibraryFromFile"); err != nil {
		return -1, err
	}
	ops, ok := e.libraryFiles[path]
	if !ok {
		return -1, e.result("LoadAssetLibraryFromFile", engine.ResultCantLoadFile)
	}
	return e.addLibrary(ops), nil
}

// LoadAssetLibraryFromMemory implements engine.NodeAPI.
func (e *Engine) LoadAssetLibraryFromMemory(ctx context.Context, data []byte, allowOverwrite bool) (engine.LibraryID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter("LoadAssetLibraryFromMemory"); err != nil {
		return -1, err
	}
	if len(data) == 0 || len(e.memoryAssets) == 0 {
		return -1, e.result("LoadAssetLibraryFromMemory", engine.ResultCantLoadFile)
	}
	return e.addLibrary(e.memoryAssets), nil
}

func (e *Engine) addLibrary(ops []string) engine.LibraryID {
	id := e.nextLibrary
	e.nextLibrary++
	e.libraries[id] = ops
	return id
}

// GetAvailableAssets implements engine.NodeAPI.
func (e *Engine) GetAvailableAssets(ctx context.Context, lib engine.LibraryID) ([]engine.StringHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter("GetAvailableAssets"); err != nil {
		return nil, err
	}
	ops, ok := e.libraries[lib]
	if !ok {
		return nil, e.result("GetAvailableAssets", engine.ResultInvalidArgument)
	}
	handles := make([]engine.StringHandle, len(ops))
	for i, op := range ops {
		handles[i] = e.intern(op)
	}
	return handles, nil
}

// CreateNode implements engine.NodeAPI. Only operators provided by a loaded library
// and defined with DefineAsset can be instantiated.
func (e *Engine) CreateNode(ctx context.Context, parent engine.NodeID, operator, label string, cook bool) (engine.NodeID, error) {
	e.mu.Lock()
	if err := e.enter("CreateNode"); err != nil {
		e.mu.Unlock()
		return engine.InvalidNodeID, err
	}
	if parent.IsValid() {
		if _, ok := e.nodes[parent]; !ok {
			err := e.result("CreateNode", engine.ResultNodeInvalid)
			e.mu.Unlock()
			return engine.InvalidNodeID, err
		}
	}
	tmpl, ok := e.templates[operator]
	if !ok || !e.operatorLoaded(operator) {
		err := e.result("CreateNode", engine.ResultInvalidArgument)
		e.mu.Unlock()
		return engine.InvalidNodeID, err
	}

	name := label
	if name == "" {
		name = operator[strings.LastIndex(operator, "/")+1:]
	}
	n := e.newNode(parent, name, engine.NodeTypeObj)
	n.operator = operator
	n.asset = &engine.AssetInfo{
		NodeID:       n.info.ID,
		ObjectNodeID: n.info.ID,
		Name:         operator,
		Label:        name,
	}
	n.object = &engine.ObjectInfo{NodeID: n.info.ID, Name: name, IsVisible: true, ObjectToInstanceID: engine.InvalidNodeID}
	if cook {
		n.cookCount++
		n.asset.HasEverCooked = true
	}
	id := n.info.ID
	e.mu.Unlock()

	// The template uses the builder, which takes the lock itself.
	if tmpl != nil {
		tmpl(&Builder{e: e}, id)
	}
	return id, nil
}

func (e *Engine) operatorLoaded(op string) bool {
	for _, ops := range e.libraries {
		for _, o := range ops {
			if o == op {
				return true
			}
		}
	}
	return false
}

// DeleteNode implements engine.NodeAPI. Children are deleted with their parent.
func (e *Engine) DeleteNode(ctx context.Context, id engine.NodeID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter("DeleteNode"); err != nil {
		return err
	}
	if _, ok := e.nodes[id]; !ok {
		return e.result("DeleteNode", engine.ResultNodeInvalid)
	}
	e.deleteTree(id)
	return nil
}

func (e *Engine) deleteTree(id engine.NodeID) {
	for _, c := range e.children(id, engine.NodeTypeAny) {
		e.deleteTree(c.info.ID)
	}
	delete(e.nodes, id)
}

// CookNode implements engine.NodeAPI.
func (e *Engine) CookNode(ctx context.Context, id engine.NodeID, opts *engine.CookOptions) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter("CookNode"); err != nil {
		return err
	}
	n, ok := e.nodes[id]
	if !ok {
		return e.result("CookNode", engine.ResultNodeInvalid)
	}
	n.cookCount++
	if n.asset != nil {
		n.asset.HasEverCooked = true
	}
	for _, c := range e.descendants(id) {
		c.cookCount++
	}
	return nil
}

// GetNodeInfo implements engine.NodeAPI.
func (e *Engine) GetNodeInfo(ctx context.Context, id engine.NodeID) (engine.NodeInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter("GetNodeInfo"); err != nil {
		return engine.NodeInfo{}, err
	}
	n, ok := e.nodes[id]
	if !ok {
		return engine.NodeInfo{}, e.result("GetNodeInfo", engine.ResultNodeInvalid)
	}
	info := n.info
	info.IsValid = true
	info.TotalCookCount = n.cookCount
	info.ParmCount = len(n.parms)
	info.ChildNodeCount = len(e.children(id, engine.NodeTypeAny))
	return info, nil
}

// GetAssetInfo implements engine.NodeAPI.
func (e *Engine) GetAssetInfo(ctx context.Context, id engine.NodeID) (engine.AssetInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter("GetAssetInfo"); err != nil {
		return engine.AssetInfo{}, err
	}
	n, ok := e.nodes[id]
	if !ok || n.asset == nil {
		return engine.AssetInfo{}, e.result("GetAssetInfo", engine.ResultAssetInvalid)
	}
	info := *n.asset
	info.GeoInfoCount = len(e.children(id, engine.NodeTypeObj))
	return info, nil
}

// GetNodePath implements engine.NodeAPI. relativeTo may be InvalidNodeID for an absolute path.
func (e *Engine) GetNodePath(ctx context.Context, id, relativeTo engine.NodeID) (engine.StringHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter("GetNodePath"); err != nil {
		return 0, err
	}
	if _, ok := e.nodes[id]; !ok {
		return 0, e.result("GetNodePath", engine.ResultNodeInvalid)
	}
	path := e.path(id)
	if relativeTo.IsValid() {
		if _, ok := e.nodes[relativeTo]; !ok {
			return 0, e.result("GetNodePath", engine.ResultNodeInvalid)
		}
		base := e.path(relativeTo)
		switch {
		case path == base:
			path = "."
		case strings.HasPrefix(path, base+"/"):
			path = strings.TrimPrefix(path, base+"/")
		}
	}
	return e.intern(path), nil
}

// GetTotalCookCount implements engine.NodeAPI.
func (e *Engine) GetTotalCookCount(ctx context.Context, id engine.NodeID, typeFilter engine.NodeType, flags engine.NodeFlags, recursive bool) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter("GetTotalCookCount"); err != nil {
		return 0, err
	}
	n, ok := e.nodes[id]
	if !ok {
		return 0, e.result("GetTotalCookCount", engine.ResultNodeInvalid)
	}
	total := n.cookCount
	var nested []*node
	if recursive {
		nested = e.descendants(id)
	} else {
		nested = e.children(id, engine.NodeTypeAny)
	}
	for _, c := range nested {
		if typeFilter == engine.NodeTypeAny || c.info.Type&typeFilter != 0 {
			total += c.cookCount
		}
	}
	return total, nil
}

func (e *Engine) newNode(parent engine.NodeID, name string, t engine.NodeType) *node {
	id := e.nextID
	e.nextID++
	n := &node{
		info: engine.NodeInfo{
			ID:       id,
			ParentID: parent,
			Name:     name,
			Type:     t,
		},
		displayGeo: engine.InvalidNodeID,
		transform:  engine.IdentityTransform(),
	}
	e.nodes[id] = n
	return n
}

// children returns the direct children of id matching t, ordered by id.
func (e *Engine) children(id engine.NodeID, t engine.NodeType) []*node {
	var out []*node
	for _, n := range e.nodes {
		if n.info.ParentID == id && (t == engine.NodeTypeAny || n.info.Type&t != 0) {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].info.ID < out[j].info.ID })
	return out
}

func (e *Engine) descendants(id engine.NodeID) []*node {
	var out []*node
	for _, c := range e.children(id, engine.NodeTypeAny) {
		out = append(out, c)
		out = append(out, e.descendants(c.info.ID)...)
	}
	return out
}

func (e *Engine) path(id engine.NodeID) string {
	n := e.nodes[id]
	if n == nil {
		return ""
	}
	if !n.info.ParentID.IsValid() {
		return "/obj/" + n.info.Name
	}
	return e.path(n.info.ParentID) + "/" + n.info.Name
}
