package trajgen

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.viam.com/rdk/logging"
	"go.viam.com/utils"
)

// DataDirEnv names the directory relative model and limits files are resolved against.
const DataDirEnv = "TRAJGEN_DATA"

// Config describes one planning context: a kinematic model, its limits and generation settings.
type Config struct {
	ModelFile string `json:"model_file"`
	ModelName string `json:"model_name,omitempty"`
	GroupName string `json:"group_name,omitempty"`
	TipLink   string `json:"tip_link,omitempty"`

	LimitsFile string `json:"limits_file"`

	SamplingTimeSec float64 `json:"sampling_time_sec,omitempty"`
	// IKTimeout is a Go duration string such as "50ms".
	IKTimeout                 string  `json:"ik_timeout,omitempty"`
	IKPositionToleranceMM     float64 `json:"ik_position_tolerance_mm,omitempty"`
	IKOrientationToleranceRad float64 `json:"ik_orientation_tolerance_rad,omitempty"`
	CheckSelfCollision        bool    `json:"check_self_collision,omitempty"`

	// Not serialized
	Logger  logging.Logger `json:"-"`
	baseDir string
}

// Validate ensures all parts of the config are valid, filling in defaults first.
func (cfg *Config) Validate(path string) ([]string, []string, error) {
	if cfg.ModelFile == "" {
		return nil, nil, utils.NewConfigValidationFieldRequiredError(path, "model_file")
	}
	if cfg.LimitsFile == "" {
		return nil, nil, utils.NewConfigValidationFieldRequiredError(path, "limits_file")
	}

	if cfg.SamplingTimeSec == 0 {
		cfg.SamplingTimeSec = DefaultSamplingTime
	}
	if cfg.IKTimeout == "" {
		cfg.IKTimeout = defaultIKTimeout.String()
	}
	if cfg.IKPositionToleranceMM == 0 {
		cfg.IKPositionToleranceMM = defaultIKPositionTolerance
	}
	if cfg.IKOrientationToleranceRad == 0 {
		cfg.IKOrientationToleranceRad = defaultIKOrientationTolerance
	}

	if cfg.SamplingTimeSec <= minSampleDuration {
		return nil, nil, fmt.Errorf("%s: sampling_time_sec must be positive, got %v", path, cfg.SamplingTimeSec)
	}
	timeout, err := time.ParseDuration(cfg.IKTimeout)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: invalid ik_timeout: %w", path, err)
	}
	if timeout <= 0 {
		return nil, nil, fmt.Errorf("%s: ik_timeout must be positive, got %v", path, timeout)
	}
	if cfg.IKPositionToleranceMM < 0 || cfg.IKOrientationToleranceRad < 0 {
		return nil, nil, fmt.Errorf("%s: IK tolerances must not be negative", path)
	}

	return nil, nil, nil
}

// LoadConfig reads and validates a config file. Relative files in it are resolved against
// TRAJGEN_DATA, or the directory of the config file when that is not set.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	cfg.baseDir = filepath.Dir(filePath)

	if _, _, err := cfg.Validate(filePath); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ResolvePath makes a file named in the config absolute.
func (cfg *Config) ResolvePath(file string) string {
	if filepath.IsAbs(file) {
		return file
	}
	if dataDir := os.Getenv(DataDirEnv); dataDir != "" {
		return filepath.Join(dataDir, file)
	}
	if cfg.baseDir != "" {
		return filepath.Join(cfg.baseDir, file)
	}
	return file
}

// IKTimeoutDuration returns the parsed IK timeout, or the default if unset or invalid.
func (cfg *Config) IKTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(cfg.IKTimeout)
	if err != nil || d <= 0 {
		return defaultIKTimeout
	}
	return d
}

// GeneratorOptions turns the generation settings into generator options.
func (cfg *Config) GeneratorOptions() []Option {
	opts := []Option{
		WithIKTimeout(cfg.IKTimeoutDuration()),
		WithSelfCollisionCheck(cfg.CheckSelfCollision),
	}
	if cfg.SamplingTimeSec > 0 {
		opts = append(opts, WithSamplingTime(cfg.SamplingTimeSec))
	}
	if cfg.Logger != nil {
		opts = append(opts, WithLogger(cfg.Logger))
	}
	return opts
}

func (cfg *Config) armRobotConfig() ArmRobotConfig {
	return ArmRobotConfig{
		ModelName:               cfg.ModelName,
		GroupName:               cfg.GroupName,
		TipLink:                 cfg.TipLink,
		PositionToleranceMM:     cfg.IKPositionToleranceMM,
		OrientationToleranceRad: cfg.IKOrientationToleranceRad,
	}
}

// key identifies the resources a config loads.
func (cfg *Config) key() string {
	return cfg.ResolvePath(cfg.ModelFile) + "|" + cfg.ResolvePath(cfg.LimitsFile) + "|" + cfg.GroupName
}

// Compare configs for compatibility
func configsEqual(a, b *Config) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return a.key() == b.key() &&
		a.ModelName == b.ModelName &&
		a.TipLink == b.TipLink &&
		a.IKPositionToleranceMM == b.IKPositionToleranceMM &&
		a.IKOrientationToleranceRad == b.IKOrientationToleranceRad
}
