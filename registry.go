package trajgen

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
)

// PlanningContext bundles the shared read-only state of all generators for one robot.
type PlanningContext struct {
	Config *Config
	Robot  Robot
	Limits *LimitsContainer
}

// NewGenerator builds a generator for the context using its configured options.
func (pc *PlanningContext) NewGenerator(motion MotionType) (*Generator, error) {
	return NewGenerator(motion, pc.Robot, pc.Limits, pc.Config.GeneratorOptions()...)
}

// NewSequence builds a sequence generator for the context.
func (pc *PlanningContext) NewSequence() (*Sequence, error) {
	return NewSequence(pc.Robot, pc.Limits, pc.Config.GeneratorOptions()...)
}

// LoadPlanningContext loads the model and limits named in cfg. Joints without configured
// position limits take them from the model.
func LoadPlanningContext(cfg *Config, logger logging.Logger) (*PlanningContext, error) {
	modelJSON, err := os.ReadFile(cfg.ResolvePath(cfg.ModelFile))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read model file")
	}
	robot, err := LoadArmRobot(modelJSON, cfg.armRobotConfig(), logger)
	if err != nil {
		return nil, err
	}

	limitsCfg, err := LoadLimitsFromFile(cfg.ResolvePath(cfg.LimitsFile))
	if err != nil {
		return nil, err
	}
	if err := PositionLimitsFromModel(&limitsCfg, robot.Model(), robot.jointNames); err != nil {
		return nil, wrapError(KindInvalidLimits, err, "cannot merge model position limits")
	}
	limits, err := NewLimitsContainer(limitsCfg)
	if err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Infof("loaded planning context for group %s with %d joints", robot.group, len(robot.jointNames))
	}
	return &PlanningContext{Config: cfg, Robot: robot, Limits: limits}, nil
}

type contextEntry struct {
	context   *PlanningContext
	config    *Config
	refCount  int64 // Atomic reference counter
	lastError error
	mu        sync.RWMutex
}

// PlanningContextRegistry shares loaded planning contexts between users of the same config.
type PlanningContextRegistry struct {
	entries map[string]*contextEntry // config key -> entry
	mu      sync.RWMutex

	load func(cfg *Config, logger logging.Logger) (*PlanningContext, error)
}

func NewPlanningContextRegistry() *PlanningContextRegistry {
	return &PlanningContextRegistry{
		entries: make(map[string]*contextEntry),
		load:    LoadPlanningContext,
	}
}

// GetContext returns the context for cfg, loading it on first use. Every successful call must
// be paired with ReleaseContext.
func (r *PlanningContextRegistry) GetContext(cfg *Config, logger logging.Logger) (*PlanningContext, error) {
	key := cfg.key()

	r.mu.RLock()
	entry, exists := r.entries[key]
	r.mu.RUnlock()

	if exists {
		return r.getExistingContext(entry, cfg)
	}

	return r.createNewContext(key, cfg, logger)
}

func (r *PlanningContextRegistry) getExistingContext(entry *contextEntry, cfg *Config) (*PlanningContext, error) {
	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.context == nil {
		if entry.lastError != nil {
			return nil, fmt.Errorf("cached planning context creation error: %w", entry.lastError)
		}
		return nil, fmt.Errorf("planning context not available for model %s", cfg.ModelFile)
	}

	if !configsEqual(entry.config, cfg) {
		currentRefCount := atomic.LoadInt64(&entry.refCount)
		return nil, fmt.Errorf("conflict: existing planning context uses different config (refCount: %d)", currentRefCount)
	}

	atomic.AddInt64(&entry.refCount, 1)
	return entry.context, nil
}

func (r *PlanningContextRegistry) createNewContext(key string, cfg *Config, logger logging.Logger) (*PlanningContext, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, exists := r.entries[key]; exists && entry.context != nil {
		return r.getExistingContext(entry, cfg)
	}

	entry := &contextEntry{config: cfg}

	pc, err := r.load(cfg, logger)
	if err != nil {
		entry.lastError = err
		r.entries[key] = entry
		return nil, fmt.Errorf("failed to load planning context: %w", err)
	}

	entry.context = pc
	entry.lastError = nil
	atomic.StoreInt64(&entry.refCount, 1)
	r.entries[key] = entry

	return pc, nil
}

// ReleaseContext drops one reference; the last release forgets the context.
func (r *PlanningContextRegistry) ReleaseContext(cfg *Config) {
	key := cfg.key()

	r.mu.RLock()
	entry, exists := r.entries[key]
	r.mu.RUnlock()

	if !exists {
		return
	}

	entry.mu.Lock()
	currentRefCount := atomic.AddInt64(&entry.refCount, -1)
	if currentRefCount <= 0 {
		entry.context = nil
		entry.config = nil
		atomic.StoreInt64(&entry.refCount, 0)
		entry.lastError = nil
	}
	entry.mu.Unlock()

	if currentRefCount <= 0 {
		r.mu.Lock()
		if r.entries[key] == entry {
			delete(r.entries, key)
		}
		r.mu.Unlock()
	}
}

// ForceCloseContext forgets the context regardless of outstanding references, including a
// cached load error.
func (r *PlanningContextRegistry) ForceCloseContext(cfg *Config) {
	key := cfg.key()

	r.mu.Lock()
	entry, exists := r.entries[key]
	if exists {
		delete(r.entries, key)
	}
	r.mu.Unlock()

	if !exists {
		return
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	entry.context = nil
	entry.config = nil
	atomic.StoreInt64(&entry.refCount, 0)
	entry.lastError = nil
}

// GetContextStatus reports the reference count, whether a context is loaded, and a summary.
func (r *PlanningContextRegistry) GetContextStatus(cfg *Config) (int64, bool, string) {
	r.mu.RLock()
	entry, exists := r.entries[cfg.key()]
	r.mu.RUnlock()

	if !exists {
		return 0, false, ""
	}

	entry.mu.RLock()
	defer entry.mu.RUnlock()

	currentRefCount := atomic.LoadInt64(&entry.refCount)
	hasContext := entry.context != nil
	summary := ""
	if entry.config != nil {
		summary = fmt.Sprintf("Model: %s, Limits: %s, Sampling: %vs",
			entry.config.ModelFile, entry.config.LimitsFile, entry.config.SamplingTimeSec)
	}
	return currentRefCount, hasContext, summary
}
