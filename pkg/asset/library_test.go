package asset

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cookbridge/cookbridge/pkg/engine"
	"github.com/cookbridge/cookbridge/pkg/policy"
	"github.com/cookbridge/cookbridge/pkg/session"
)

func TestLoadLibrary(t *testing.T) {
	e := rockEngine()
	lib, err := NewLibraryLoader(newFacade(e), nil, "").Load(context.Background(), rockLibrary, nil)
	require.NoError(t, err)
	assert.Equal(t, rockLibrary, lib.Path)
	assert.False(t, lib.FromMemory)
	assert.Equal(t, []string{"Object/rock"}, lib.Assets)
}

func TestLoadExpandedLibrary(t *testing.T) {
	e := rockEngine()
	e.AddLibraryFile("/assets/rock_expanded", "Object/rock")
	lib, err := NewLibraryLoader(newFacade(e), nil, "").Load(context.Background(), "/assets/rock_expanded/index.hdalibrary", nil)
	require.NoError(t, err)
	assert.Equal(t, "/assets/rock_expanded", lib.Path)
}

func TestLoadLibraryFromMemory(t *testing.T) {
	e := rockEngine()
	e.SetMemoryLibrary("Object/rock")
	loader := NewLibraryLoader(newFacade(e), nil, "")

	lib, err := loader.Load(context.Background(), "/nowhere/rock.hda", []byte("hda"))
	require.NoError(t, err)
	assert.True(t, lib.FromMemory)
	assert.Equal(t, 0, e.CallCount("LoadAssetLibraryFromFile"))

	_, err = loader.Load(context.Background(), "/nowhere/rock.hda", nil)
	require.Error(t, err)
	assert.Equal(t, engine.ResultCantLoadFile, engine.ResultOf(err))
}

func TestLoadLibraryWithoutAssets(t *testing.T) {
	e := rockEngine()
	e.AddLibraryFile("/assets/empty.hda")
	_, err := NewLibraryLoader(newFacade(e), nil, "").Load(context.Background(), "/assets/empty.hda", nil)
	require.Error(t, err)
	assert.True(t, engine.IsNotFound(err))
}

func TestLoadLibraryWithoutSession(t *testing.T) {
	_, err := NewLibraryLoader(session.New(nil, nil), nil, "").Load(context.Background(), rockLibrary, nil)
	require.Error(t, err)
	assert.True(t, engine.IsSessionLost(err))
}

func TestLoadLibraryAdmission(t *testing.T) {
	eng, err := policy.NewEngine(zerolog.Nop())
	require.NoError(t, err)

	tests := []struct {
		name    string
		path    string
		env     string
		license engine.License
		allowed bool
	}{
		{"commercial asset", rockLibrary, "production", engine.LicenseHoudiniFX, true},
		{"unknown extension", "/assets/rock.zip", "", engine.LicenseHoudiniFX, false},
		{"non-commercial in production", "/assets/rock.hdanc", "production", engine.LicenseHoudiniFX, false},
		{"non-commercial in development", "/assets/rock.hdanc", "development", engine.LicenseHoudiniFX, true},
		{"limited commercial warns only", "/assets/rock.hdalc", "production", engine.LicenseHoudiniFX, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := rockEngine()
			e.AddLibraryFile(tt.path, "Object/rock")
			e.SetLicense(tt.license)

			_, err := NewLibraryLoader(newFacade(e), eng, tt.env).Load(context.Background(), tt.path, nil)
			if tt.allowed {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, engine.ErrCodePolicyDenied, engine.CodeOf(err))
			assert.Equal(t, 0, e.CallCount("LoadAssetLibraryFromFile"))
		})
	}
}
