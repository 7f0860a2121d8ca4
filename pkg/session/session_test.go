package session

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cookbridge/cookbridge/pkg/engine"
	"github.com/cookbridge/cookbridge/pkg/memengine"
	"github.com/cookbridge/cookbridge/pkg/telemetry"
)

func TestErrorDescription(t *testing.T) {
	tests := []struct {
		res  engine.Result
		want string
	}{
		{engine.ResultSuccess, "Success"},
		{engine.ResultFailure, "Generic Failure"},
		{engine.ResultCantLoadGeo, "Uneable to Load Geometry"},
		{engine.ResultDisallowedNCAssetWithLCLicense, "Disallowed Non Commercial Asset With Limited Commercial License"},
		{engine.ResultNodeInvalid, "Invalid Node"},
		{engine.ResultInvalidSession, "Invalid Session"},
		{engine.Result(999), "Unknown Failure"},
	}
	for _, tt := range tests {
		t.Run(tt.res.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorDescription(tt.res))
		})
	}
}

func TestStatusStringFailsClosed(t *testing.T) {
	f := New(nil, nil)
	assert.Equal(t, NoSessionMessage, f.CookResult(context.Background()))
	assert.False(t, f.IsValid(context.Background()))
}

func TestSessionLostNotifiesOnce(t *testing.T) {
	e := memengine.New()
	f := New(e, telemetry.Nop())

	calls := 0
	f.OnSessionLost(func(string) { calls++ })

	e.Invalidate()
	assert.Equal(t, "", f.CookState(context.Background()))
	assert.False(t, f.IsValid(context.Background()))
	f.NotifySessionLost("again")
	assert.Equal(t, 1, calls)
	assert.Nil(t, f.Session())

	f.Attach(memengine.New())
	f.NotifySessionLost("second session")
	assert.Equal(t, 2, calls)
}

func TestCookLog(t *testing.T) {
	ctx := context.Background()

	t.Run("sections", func(t *testing.T) {
		e := memengine.New()
		e.SetStatusString(engine.StatusCookResult, "cooked 3 nodes")
		e.SetStatusString(engine.StatusCallResult, "bad parm")
		f := New(e, nil)

		log := f.CookLog(ctx, nil)
		assert.Equal(t, "Cook Results:\ncooked 3 nodes\n\nError Description:\nbad parm\n\n", log)
	})

	t.Run("node errors", func(t *testing.T) {
		e := memengine.New()
		e.AddLibraryFile("/a.hda", "Sop/a")
		e.DefineAsset("Sop/a", func(b *memengine.Builder, asset engine.NodeID) {
			b.SetNodeCookResult(asset, "Warning: empty geometry\n")
		})
		_, err := e.LoadAssetLibraryFromFile(ctx, "/a.hda", false)
		require.NoError(t, err)
		id, err := e.CreateNode(ctx, engine.InvalidNodeID, "Sop/a", "", false)
		require.NoError(t, err)

		f := New(e, nil)
		assert.Equal(t, "Warning: empty geometry\n", f.CookLog(ctx, []engine.NodeID{id, engine.InvalidNodeID}))
	})

	t.Run("empty", func(t *testing.T) {
		f := New(memengine.New(), nil)
		assert.Equal(t, "\n\nThe cook log is empty...\n\n", f.CookLog(ctx, nil))
	})

	t.Run("not initialized", func(t *testing.T) {
		e := memengine.New()
		e.SetInitialized(false)
		log := New(e, nil).CookLog(ctx, nil)
		assert.True(t, strings.Contains(log, "has not been initialized properly"))
		assert.True(t, strings.HasSuffix(log, restartHint))
	})

	t.Run("no library", func(t *testing.T) {
		log := New(nil, nil).CookLog(ctx, nil)
		assert.Contains(t, log, "engine library has not been initialized")
	})
}

func TestLicenseType(t *testing.T) {
	e := memengine.New()
	f := New(e, nil)

	name, err := f.LicenseType(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Houdini FX", name)

	e.SetLicense(engine.LicenseNone)
	name, err = f.LicenseType(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "No License Acquired", name)

	e.SetLicense(engine.LicenseMax)
	_, err = f.LicenseType(context.Background())
	assert.Error(t, err)
}

func TestStop(t *testing.T) {
	e := memengine.New()
	f := New(e, nil)
	require.NoError(t, f.Stop(context.Background()))
	assert.Nil(t, f.Session())
	assert.Equal(t, NoSessionMessage, f.LastErrorDescription(context.Background()))
	assert.True(t, engine.IsSessionLost(e.IsSessionValid(context.Background())))
}
