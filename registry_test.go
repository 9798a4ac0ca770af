package trajgen

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.viam.com/rdk/logging"
)

// Test configuration factory
func testConfig(model string) *Config {
	return &Config{
		ModelFile:       "/models/" + model + ".json",
		LimitsFile:      "/models/" + model + "_limits.json",
		SamplingTimeSec: DefaultSamplingTime,
	}
}

// countingRegistry returns a registry whose loader builds gantry contexts and counts the loads.
func countingRegistry(t *testing.T) (*PlanningContextRegistry, *int64) {
	t.Helper()
	limits := gantryLimits(t)
	var loads int64
	registry := NewPlanningContextRegistry()
	registry.load = func(cfg *Config, logger logging.Logger) (*PlanningContext, error) {
		atomic.AddInt64(&loads, 1)
		return &PlanningContext{Config: cfg, Robot: newGantryRobot(), Limits: limits}, nil
	}
	return registry, &loads
}

func TestRegistryCreation(t *testing.T) {
	registry := NewPlanningContextRegistry()
	require.NotNil(t, registry)
	assert.NotNil(t, registry.entries)
	assert.NotNil(t, registry.load)
	assert.Empty(t, registry.entries)
}

func TestSharedAccess(t *testing.T) {
	registry, loads := countingRegistry(t)
	logger := logging.NewTestLogger(t)
	cfg := testConfig("gantry")

	const numGoroutines = 8
	contexts := make([]*PlanningContext, numGoroutines)
	var wg sync.WaitGroup
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			pc, err := registry.GetContext(cfg, logger)
			assert.NoError(t, err)
			contexts[i] = pc
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(1), atomic.LoadInt64(loads))
	for _, pc := range contexts {
		assert.Same(t, contexts[0], pc)
	}
	refCount, hasContext, _ := registry.GetContextStatus(cfg)
	assert.Equal(t, int64(numGoroutines), refCount)
	assert.True(t, hasContext)
}

func TestReferenceCountingLogic(t *testing.T) {
	registry, loads := countingRegistry(t)
	logger := logging.NewTestLogger(t)
	cfg := testConfig("gantry")

	for i := 0; i < 3; i++ {
		_, err := registry.GetContext(cfg, logger)
		require.NoError(t, err)
	}

	for expected := int64(2); expected >= 1; expected-- {
		registry.ReleaseContext(cfg)
		refCount, hasContext, _ := registry.GetContextStatus(cfg)
		assert.Equal(t, expected, refCount)
		assert.True(t, hasContext)
	}

	registry.ReleaseContext(cfg)
	refCount, hasContext, summary := registry.GetContextStatus(cfg)
	assert.Equal(t, int64(0), refCount)
	assert.False(t, hasContext)
	assert.Empty(t, summary)

	// the next user loads again
	_, err := registry.GetContext(cfg, logger)
	require.NoError(t, err)
	assert.Equal(t, int64(2), atomic.LoadInt64(loads))

	// releasing an unknown config is a no-op
	registry.ReleaseContext(testConfig("other"))
}

func TestConfigConflict(t *testing.T) {
	registry, _ := countingRegistry(t)
	logger := logging.NewTestLogger(t)

	cfg := testConfig("gantry")
	_, err := registry.GetContext(cfg, logger)
	require.NoError(t, err)

	conflicting := testConfig("gantry")
	conflicting.TipLink = "flange"
	_, err = registry.GetContext(conflicting, logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "conflict")

	// a different sampling time shares the context
	sampling := testConfig("gantry")
	sampling.SamplingTimeSec = 0.01
	_, err = registry.GetContext(sampling, logger)
	assert.NoError(t, err)
}

func TestCleanupOnZeroRefs(t *testing.T) {
	registry := NewPlanningContextRegistry()
	var loads int64
	registry.load = func(cfg *Config, logger logging.Logger) (*PlanningContext, error) {
		atomic.AddInt64(&loads, 1)
		return nil, fmt.Errorf("mock model error")
	}
	cfg := testConfig("broken")
	logger := logging.NewTestLogger(t)

	_, err := registry.GetContext(cfg, logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mock model error")

	// the failure is cached
	_, err = registry.GetContext(cfg, logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cached")
	assert.Equal(t, int64(1), atomic.LoadInt64(&loads))

	registry.ForceCloseContext(cfg)
	registry.mu.RLock()
	assert.Empty(t, registry.entries)
	registry.mu.RUnlock()

	_, err = registry.GetContext(cfg, logger)
	assert.Error(t, err)
	assert.Equal(t, int64(2), atomic.LoadInt64(&loads))
}

func TestForceCloseContext(t *testing.T) {
	registry, _ := countingRegistry(t)
	logger := logging.NewTestLogger(t)
	configs := []*Config{testConfig("gantry"), testConfig("scara")}

	for _, cfg := range configs {
		for i := 0; i < 2; i++ {
			_, err := registry.GetContext(cfg, logger)
			require.NoError(t, err)
		}
	}

	registry.ForceCloseContext(configs[0])

	registry.mu.RLock()
	assert.Len(t, registry.entries, 1)
	_, exists := registry.entries[configs[1].key()]
	assert.True(t, exists, "wrong entry was removed")
	registry.mu.RUnlock()

	// late releases of the closed context are harmless
	registry.ReleaseContext(configs[0])
	refCount, _, _ := registry.GetContextStatus(configs[1])
	assert.Equal(t, int64(2), refCount)
}

func TestGetContextStatus(t *testing.T) {
	registry, _ := countingRegistry(t)
	cfg := testConfig("gantry")

	refCount, hasContext, summary := registry.GetContextStatus(cfg)
	assert.Equal(t, int64(0), refCount)
	assert.False(t, hasContext)
	assert.Empty(t, summary)

	_, err := registry.GetContext(cfg, logging.NewTestLogger(t))
	require.NoError(t, err)
	refCount, hasContext, summary = registry.GetContextStatus(cfg)
	assert.Equal(t, int64(1), refCount)
	assert.True(t, hasContext)
	assert.Contains(t, summary, "/models/gantry.json")
}

func TestConcurrentRegistryAccess(t *testing.T) {
	registry, _ := countingRegistry(t)
	logger := logging.NewTestLogger(t)
	const numGoroutines = 10
	const numOperations = 100

	var wg sync.WaitGroup
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			cfg := testConfig(fmt.Sprintf("robot%d", id%3))
			for j := 0; j < numOperations; j++ {
				if _, err := registry.GetContext(cfg, logger); err == nil {
					registry.GetContextStatus(cfg)
					registry.ReleaseContext(cfg)
				}
			}
		}(i)
	}
	wg.Wait()

	registry.mu.RLock()
	defer registry.mu.RUnlock()
	assert.Empty(t, registry.entries)
}

func TestLoadPlanningContext(t *testing.T) {
	t.Setenv(DataDirEnv, "")
	cfg, err := LoadConfig("testdata/gantry_config.json")
	require.NoError(t, err)

	pc, err := LoadPlanningContext(cfg, logging.NewTestLogger(t))
	require.NoError(t, err)
	assert.True(t, pc.Robot.HasGroup("gantry"))
	assert.True(t, pc.Limits.HasCartesianLimits())

	// position limits come from the model unless the limits file declares them
	x, ok := pc.Limits.JointLimits().Limit("x")
	require.True(t, ok)
	assert.True(t, x.HasPositionLimits)
	assert.Equal(t, 1000., x.MaxPosition)
	z, ok := pc.Limits.JointLimits().Limit("z")
	require.True(t, ok)
	assert.Equal(t, 500., z.MaxPosition)

	g, err := pc.NewGenerator(PTP)
	require.NoError(t, err)
	assert.Equal(t, PTP, g.Motion())
	_, err = pc.NewSequence()
	assert.NoError(t, err)

	cfg.LimitsFile = "missing.json"
	_, err = LoadPlanningContext(cfg, nil)
	assert.Error(t, err)
}
