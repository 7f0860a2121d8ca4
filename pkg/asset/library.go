package asset

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cookbridge/cookbridge/pkg/attribute"
	"github.com/cookbridge/cookbridge/pkg/engine"
	"github.com/cookbridge/cookbridge/pkg/policy"
	"github.com/cookbridge/cookbridge/pkg/session"
	"github.com/cookbridge/cookbridge/pkg/telemetry"
)

// ExpandedLibraryExt marks the index file inside an expanded asset directory.
const ExpandedLibraryExt = ".hdalibrary"

// Admitter decides whether an asset library may be loaded. *policy.Engine implements it.
type Admitter interface {
	EvaluateAsset(ctx context.Context, input *policy.AssetInput) (*policy.PolicyResult, error)
}

// Library is a loaded asset library.
type Library struct {
	ID         engine.LibraryID `json:"id"`
	Path       string           `json:"path"`
	FromMemory bool             `json:"from_memory"`
	Assets     []string         `json:"assets"`
}

// LibraryLoader loads asset libraries into the facade's session.
type LibraryLoader struct {
	facade      *session.Facade
	admit       Admitter
	environment string
	tel         *telemetry.Telemetry
	logger      *telemetry.Logger
}

// NewLibraryLoader returns a loader. admit may be nil to skip admission checks.
func NewLibraryLoader(f *session.Facade, admit Admitter, environment string) *LibraryLoader {
	tel := f.Telemetry()
	return &LibraryLoader{
		facade:      f,
		admit:       admit,
		environment: environment,
		tel:         tel,
		logger:      tel.Log().NewComponentLogger("library"),
	}
}

// Load loads the library at path. Relative paths are made absolute and a .hdalibrary
// file loads its parent directory. When the file is missing and memory holds a copy of
// the library, the copy is loaded instead. License failures stop the session.
func (l *LibraryLoader) Load(ctx context.Context, path string, memory []byte) (*Library, error) {
	s := l.facade.Session()
	if s == nil {
		return nil, engine.NewSessionError(session.NoSessionMessage, nil).WithCode(engine.ErrCodeInvalidSession)
	}
	ctx, span := l.tel.T().StartSpan(ctx, "asset.load_library")
	defer span.End()

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	loadPath := abs
	if strings.EqualFold(filepath.Ext(abs), ExpandedLibraryExt) {
		loadPath = filepath.Dir(abs)
	}
	log := l.logger.WithField("library", loadPath)

	if err := l.admitLibrary(ctx, abs); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	lib := &Library{Path: loadPath}
	if _, statErr := os.Stat(loadPath); statErr != nil && len(memory) > 0 {
		log.Warn("asset library file not found, loading the in-memory copy")
		lib.FromMemory = true
		lib.ID, err = s.LoadAssetLibraryFromMemory(ctx, memory, true)
	} else {
		lib.ID, err = s.LoadAssetLibraryFromFile(ctx, loadPath, true)
	}
	if err != nil {
		err = l.facade.Check(err)
		if engine.IsLicense(err) {
			log.WithError(err).Errorf("license failure while loading asset library: %s", session.ErrorDescription(engine.ResultOf(err)))
			if stopErr := l.facade.Stop(ctx); stopErr != nil {
				log.WithError(stopErr).Warn("failed to stop session after license failure")
			}
		} else {
			log.WithError(err).Errorf("error loading asset library: %s", l.facade.LastErrorDescription(ctx))
		}
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load asset library %s: %w", loadPath, err)
	}

	lib.Assets, err = l.SubAssetNames(ctx, lib.ID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	_ = l.tel.E().PublishLibraryLoaded(loadPath, lib.Assets)
	log.Infof("loaded asset library with %d assets", len(lib.Assets))
	telemetry.RecordSuccess(span)
	return lib, nil
}

func (l *LibraryLoader) admitLibrary(ctx context.Context, path string) error {
	if l.admit == nil {
		return nil
	}
	license, err := l.facade.LicenseType(ctx)
	if err != nil {
		l.logger.WithError(err).Debug("license type unavailable for admission")
	}
	result, err := l.admit.EvaluateAsset(ctx, policy.NewAssetInput(path, "", license, l.environment))
	if err != nil {
		return fmt.Errorf("failed to evaluate asset policies: %w", err)
	}
	for _, v := range result.Violations {
		if !v.Severity.Blocks() {
			l.logger.WithField("policy", v.Policy).Warnf("asset policy warning: %s", v.Message)
		}
	}
	if result.Allowed {
		return nil
	}

	var msgs []string
	for _, v := range result.Blocking() {
		_ = l.tel.E().PublishPolicyViolation(path, v.Policy, v.Message)
		msgs = append(msgs, fmt.Sprintf("%s: %s", v.Policy, v.Message))
	}
	return engine.NewPermanentError("asset library rejected by policy", errors.New(strings.Join(msgs, "; "))).
		WithCode(engine.ErrCodePolicyDenied).
		WithResource(path)
}

// SubAssetNames returns the operator names provided by a loaded library. A library
// without assets is an error.
func (l *LibraryLoader) SubAssetNames(ctx context.Context, lib engine.LibraryID) ([]string, error) {
	s := l.facade.Session()
	if s == nil {
		return nil, engine.NewSessionError(session.NoSessionMessage, nil).WithCode(engine.ErrCodeInvalidSession)
	}
	handles, err := s.GetAvailableAssets(ctx, lib)
	if err != nil {
		return nil, fmt.Errorf("failed to list assets of library %d: %w", lib, l.facade.Check(err))
	}
	if len(handles) == 0 {
		return nil, engine.NewNotFoundError(fmt.Sprintf("asset library %d contains no assets", lib), nil)
	}
	return attribute.ResolveHandles(ctx, s, handles)
}
