package session

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/cookbridge/cookbridge/pkg/engine"
	"github.com/cookbridge/cookbridge/pkg/telemetry"
)

// NoSessionMessage is returned by status queries when no session is attached.
const NoSessionMessage = "No valid engine session."

const restartHint = "Please try to restart the current engine session.\n\n"

var errorDescriptions = map[engine.Result]string{
	engine.ResultSuccess:                         "Success",
	engine.ResultFailure:                         "Generic Failure",
	engine.ResultAlreadyInitialized:              "Already Initialized",
	engine.ResultNotInitialized:                  "Not Initialized",
	engine.ResultCantLoadFile:                    "Unable to Load File",
	engine.ResultParmSetFailed:                   "Failed Setting Parameter",
	engine.ResultInvalidArgument:                 "Invalid Argument",
	engine.ResultCantLoadGeo:                     "Uneable to Load Geometry",
	engine.ResultCantGeneratePreset:              "Uneable to Generate Preset",
	engine.ResultCantLoadPreset:                  "Uneable to Load Preset",
	engine.ResultAssetDefAlreadyLoaded:           "Asset definition already loaded",
	engine.ResultNoLicenseFound:                  "No License Found",
	engine.ResultDisallowedNCLicenseFound:        "Disallowed Non Commercial License found",
	engine.ResultDisallowedNCAssetWithCLicense:   "Disallowed Non Commercial Asset With Commercial License",
	engine.ResultDisallowedNCAssetWithLCLicense:  "Disallowed Non Commercial Asset With Limited Commercial License",
	engine.ResultDisallowedLCAssetWithCLicense:   "Disallowed Limited Commercial Asset With Commercial License",
	engine.ResultDisallowedHEngineIndieW3rdParty: "Disallowed Houdini Engine Indie With 3rd Party Plugin",
	engine.ResultAssetInvalid:                    "Invalid Asset",
	engine.ResultNodeInvalid:                     "Invalid Node",
	engine.ResultUserInterrupted:                 "User Interrupt",
	engine.ResultInvalidSession:                  "Invalid Session",
}

// ErrorDescription returns the fixed description of a result code.
func ErrorDescription(res engine.Result) string {
	if d, ok := errorDescriptions[res]; ok {
		return d
	}
	return "Unknown Failure"
}

var licenseNames = map[engine.License]string{
	engine.LicenseNone:               "No License Acquired",
	engine.LicenseHoudiniEngine:      "Houdini Engine",
	engine.LicenseHoudini:            "Houdini",
	engine.LicenseHoudiniFX:          "Houdini FX",
	engine.LicenseHoudiniEngineIndie: "Houdini Engine Indie",
	engine.LicenseHoudiniIndie:       "Houdini Indie",
}

// Facade is the status and diagnostics layer over one engine session. Status queries
// never fail: they degrade to an empty or explanatory string. Any query that reports an
// invalid session triggers the session-lost notification, which runs at most once per
// attached session.
type Facade struct {
	mu      sync.Mutex
	session engine.Session
	lost    bool
	onLost  []func(reason string)
	tel     *telemetry.Telemetry
	logger  *telemetry.Logger
}

// New attaches a facade to a session. s may be nil for a facade with no session.
func New(s engine.Session, tel *telemetry.Telemetry) *Facade {
	return &Facade{
		session: s,
		tel:     tel,
		logger:  tel.Log().NewComponentLogger("session"),
	}
}

// Session returns the attached session, or nil once stopped or lost.
func (f *Facade) Session() engine.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.session
}

// Attach replaces the session and re-arms the session-lost notification.
func (f *Facade) Attach(s engine.Session) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.session = s
	f.lost = false
}

// Telemetry returns the facade's telemetry bundle. It is never nil.
func (f *Facade) Telemetry() *telemetry.Telemetry {
	if f.tel == nil {
		return telemetry.Nop()
	}
	return f.tel
}

// OnSessionLost registers a callback run when the session is found invalid.
func (f *Facade) OnSessionLost(fn func(reason string)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onLost = append(f.onLost, fn)
}

// NotifySessionLost detaches the session and runs the callbacks. Only the first call
// after Attach has any effect.
func (f *Facade) NotifySessionLost(reason string) {
	f.mu.Lock()
	if f.lost {
		f.mu.Unlock()
		return
	}
	f.lost = true
	f.session = nil
	callbacks := append([]func(string){}, f.onLost...)
	f.mu.Unlock()

	f.logger.WithField("reason", reason).Error("engine session lost")
	f.tel.M().RecordSessionLost()
	_ = f.tel.E().PublishSessionLost(reason)
	for _, fn := range callbacks {
		fn(reason)
	}
}

// Check passes err through, notifying session loss first when err says the session is invalid.
func (f *Facade) Check(err error) error {
	if err != nil && engine.IsSessionLost(err) {
		f.NotifySessionLost(err.Error())
	}
	return err
}

// IsValid reports whether a session is attached and answers IsSessionValid.
func (f *Facade) IsValid(ctx context.Context) bool {
	s := f.Session()
	if s == nil {
		return false
	}
	return f.Check(s.IsSessionValid(ctx)) == nil
}

// Stop closes the session. Later status queries fail closed.
func (f *Facade) Stop(ctx context.Context) error {
	f.mu.Lock()
	s := f.session
	f.session = nil
	f.mu.Unlock()
	if s == nil {
		return nil
	}
	f.logger.Info("stopping engine session")
	if err := s.Close(ctx); err != nil && !engine.IsSessionLost(err) {
		return fmt.Errorf("failed to close session: %w", err)
	}
	return nil
}

// StatusString returns the engine status text for a status type.
func (f *Facade) StatusString(ctx context.Context, t engine.StatusType, v engine.StatusVerbosity) string {
	s := f.Session()
	if s == nil {
		return NoSessionMessage
	}
	text, err := s.GetStatusString(ctx, t, v)
	if err != nil {
		f.Check(err)
		f.logger.WithError(err).Debugf("status query %s failed", t)
		return ""
	}
	return text
}

// LastErrorDescription describes the result of the previous engine call.
func (f *Facade) LastErrorDescription(ctx context.Context) string {
	return f.StatusString(ctx, engine.StatusCallResult, engine.VerbosityErrors)
}

// CookResult returns the cook result text, including messages.
func (f *Facade) CookResult(ctx context.Context) string {
	return f.StatusString(ctx, engine.StatusCookResult, engine.VerbosityMessages)
}

// CookState returns the cook state text.
func (f *Facade) CookState(ctx context.Context) string {
	return f.StatusString(ctx, engine.StatusCookState, engine.VerbosityErrors)
}

// NodeErrors returns the errors, warnings and messages of a node's last cook.
func (f *Facade) NodeErrors(ctx context.Context, node engine.NodeID) string {
	s := f.Session()
	if s == nil || !node.IsValid() {
		return ""
	}
	text, err := s.ComposeNodeCookResult(ctx, node, engine.VerbosityAll)
	if err != nil {
		f.Check(err)
		return ""
	}
	return text
}

// CookLog aggregates the cook result, cook state, last error and the node errors of
// every given node. When nothing is available it explains why.
func (f *Facade) CookLog(ctx context.Context, nodes []engine.NodeID) string {
	var b strings.Builder
	section := func(title, body string) {
		if body != "" {
			b.WriteString(title + ":\n" + body + "\n\n")
		}
	}
	s := f.Session()
	if s != nil {
		section("Cook Results", f.CookResult(ctx))
		section("Cook State", f.CookState(ctx))
		section("Error Description", f.LastErrorDescription(ctx))
		for _, n := range nodes {
			b.WriteString(f.NodeErrors(ctx, n))
		}
	}
	if b.Len() > 0 {
		return b.String()
	}

	switch {
	case s == nil:
		b.WriteString("\n\nThe engine library has not been initialized properly.\n\n")
	case s.IsSessionValid(ctx) != nil:
		b.WriteString("\n\nThe current engine session is not valid.\n\n")
	case s.IsInitialized(ctx) != nil:
		b.WriteString("\n\nThe current engine session has not been initialized properly.\n\n")
	}
	if b.Len() > 0 {
		b.WriteString(restartHint)
		return b.String()
	}
	return "\n\nThe cook log is empty...\n\n"
}

// LicenseType returns the name of the license held by the session.
func (f *Facade) LicenseType(ctx context.Context) (string, error) {
	s := f.Session()
	if s == nil {
		return "", engine.NewSessionError(NoSessionMessage, nil).WithCode(engine.ErrCodeInvalidSession)
	}
	v, err := s.GetSessionEnvInt(ctx, engine.SessionEnvLicense)
	if err != nil {
		return "", fmt.Errorf("failed to read license: %w", f.Check(err))
	}
	name, ok := licenseNames[engine.License(v)]
	if !ok {
		return "", engine.NewPermanentError(fmt.Sprintf("unknown license value %d", v), nil).
			WithCode(engine.ErrCodeInvalidArgument)
	}
	return name, nil
}
