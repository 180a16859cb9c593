package runtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/featlabs/featrun/packages/eval"
)

func TestScenarioConfig_Defaults(t *testing.T) {
	c := NewScenarioConfig()
	assert.Equal(t, 3, c.RetryCount)
	assert.Equal(t, 3*time.Second, c.RetryInterval)
	assert.False(t, c.ContinueOnStepFailure)
}

func TestScenarioConfig_SetRetry(t *testing.T) {
	c := NewScenarioConfig()
	require.NoError(t, c.Set("retry", map[string]any{
		"count":    float64(5),
		"interval": float64(250),
	}))
	assert.Equal(t, 5, c.RetryCount)
	assert.Equal(t, 250*time.Millisecond, c.RetryInterval)

	// partial objects only touch the given field
	c = NewScenarioConfig()
	require.NoError(t, c.Set("retry", map[string]any{"count": float64(2)}))
	assert.Equal(t, 2, c.RetryCount)
	assert.Equal(t, DefaultRetryInterval, c.RetryInterval)

	assert.Error(t, c.Set("retry", "not an object"))
	assert.Error(t, c.Set("retry", map[string]any{"count": float64(0)}))
	assert.Error(t, c.Set("retry", map[string]any{"interval": float64(-1)}))
}

func TestScenarioConfig_SetContinueOnStepFailure(t *testing.T) {
	c := NewScenarioConfig()
	require.NoError(t, c.Set("continueOnStepFailure", true))
	assert.True(t, c.ContinueOnStepFailure)
	require.NoError(t, c.Set("continueOnStepFailure", false))
	assert.False(t, c.ContinueOnStepFailure)
}

func TestScenarioConfig_SetHeaders(t *testing.T) {
	c := NewScenarioConfig()
	require.NoError(t, c.Set("headers", map[string]any{
		"Authorization": "token",
		"X-Count":       float64(3),
	}))
	assert.Equal(t, "token", c.Headers["Authorization"])
	assert.Equal(t, "3", c.Headers["X-Count"])

	assert.Error(t, c.Set("headers", "nope"))
}

func TestScenarioConfig_SetCallSingleCache(t *testing.T) {
	c := NewScenarioConfig()
	require.NoError(t, c.Set("callSingleCache", map[string]any{
		"dir":     "/tmp/cache",
		"minutes": float64(15),
	}))
	assert.Equal(t, "/tmp/cache", c.CallSingleCacheDir)
	assert.Equal(t, 15*time.Minute, c.CallSingleCacheTTL)
}

func TestScenarioConfig_SetCallbacks(t *testing.T) {
	c := NewScenarioConfig()
	fn := eval.Callable(func(args ...any) (any, error) { return nil, nil })
	require.NoError(t, c.Set("afterScenario", fn))
	require.NoError(t, c.Set("afterFeature", fn))
	assert.NotNil(t, c.AfterScenario)
	assert.NotNil(t, c.AfterFeature)

	assert.Error(t, c.Set("afterScenario", "not a function"))
}

func TestScenarioConfig_UnknownKey(t *testing.T) {
	c := NewScenarioConfig()
	err := c.Set("retyr", true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown configure key")
}

func TestScenarioConfig_CopyIsIndependent(t *testing.T) {
	c := NewScenarioConfig()
	require.NoError(t, c.Set("headers", map[string]any{"A": "1"}))

	dup := c.Copy()
	dup.RetryCount = 9
	dup.Headers["A"] = "changed"

	assert.Equal(t, 3, c.RetryCount)
	assert.Equal(t, "1", c.Headers["A"])
}
