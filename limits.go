package trajgen

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/rdk/referenceframe"
)

// JointLimit holds the kinematic bounds of a single joint. MaxDeceleration is negative.
type JointLimit struct {
	MinPosition       float64 `json:"min_position,omitempty"`
	MaxPosition       float64 `json:"max_position,omitempty"`
	HasPositionLimits bool    `json:"has_position_limits,omitempty"`

	MaxVelocity       float64 `json:"max_velocity,omitempty"`
	HasVelocityLimits bool    `json:"has_velocity_limits,omitempty"`

	MaxAcceleration       float64 `json:"max_acceleration,omitempty"`
	HasAccelerationLimits bool    `json:"has_acceleration_limits,omitempty"`

	MaxDeceleration       float64 `json:"max_deceleration,omitempty"`
	HasDecelerationLimits bool    `json:"has_deceleration_limits,omitempty"`
}

func (l JointLimit) validate() error {
	if l.HasPositionLimits && l.MinPosition > l.MaxPosition {
		return fmt.Errorf("min position %v greater than max position %v", l.MinPosition, l.MaxPosition)
	}
	if l.HasVelocityLimits && l.MaxVelocity <= 0 {
		return fmt.Errorf("max velocity must be positive, got %v", l.MaxVelocity)
	}
	if l.HasAccelerationLimits && l.MaxAcceleration <= 0 {
		return fmt.Errorf("max acceleration must be positive, got %v", l.MaxAcceleration)
	}
	if l.HasDecelerationLimits && l.MaxDeceleration >= 0 {
		return fmt.Errorf("max deceleration must be negative, got %v", l.MaxDeceleration)
	}
	return nil
}

// JointLimitsContainer maps joint names to limits and remembers insertion order.
type JointLimitsContainer struct {
	names  []string
	limits map[string]JointLimit
}

// NewJointLimitsContainer returns an empty container.
func NewJointLimitsContainer() *JointLimitsContainer {
	return &JointLimitsContainer{limits: make(map[string]JointLimit)}
}

// AddLimit registers the limit for a joint. Invalid or duplicate entries are rejected and leave
// the container unchanged.
func (c *JointLimitsContainer) AddLimit(name string, limit JointLimit) error {
	if name == "" {
		return errors.New("joint name must not be empty")
	}
	if _, exists := c.limits[name]; exists {
		return fmt.Errorf("joint %s: limit already defined", name)
	}
	if err := limit.validate(); err != nil {
		return fmt.Errorf("joint %s: %w", name, err)
	}
	c.names = append(c.names, name)
	c.limits[name] = limit
	return nil
}

// Limit returns the limit of a joint.
func (c *JointLimitsContainer) Limit(name string) (JointLimit, bool) {
	l, ok := c.limits[name]
	return l, ok
}

// Names returns the joint names in insertion order.
func (c *JointLimitsContainer) Names() []string {
	return append([]string(nil), c.names...)
}

func (c *JointLimitsContainer) Len() int {
	return len(c.names)
}

func (c *JointLimitsContainer) Empty() bool {
	return len(c.names) == 0
}

// VerifyVelocityLimit reports whether |velocity| is within the joint's velocity limit, up to a
// relative tolerance of 1e-6. Joints without a velocity limit always pass.
func (c *JointLimitsContainer) VerifyVelocityLimit(name string, velocity float64) bool {
	l, ok := c.limits[name]
	if !ok || !l.HasVelocityLimits {
		return true
	}
	return !exceeds(velocity, l.MaxVelocity)
}

// VerifyPositionLimit reports whether the position is inside the joint's position bounds.
func (c *JointLimitsContainer) VerifyPositionLimit(name string, position float64) bool {
	l, ok := c.limits[name]
	if !ok || !l.HasPositionLimits {
		return true
	}
	return position >= l.MinPosition && position <= l.MaxPosition
}

// VerifyPositionLimits checks every entry of positions.
func (c *JointLimitsContainer) VerifyPositionLimits(positions map[string]float64) bool {
	for name, p := range positions {
		if !c.VerifyPositionLimit(name, p) {
			return false
		}
	}
	return true
}

// CommonLimit combines the limits of the named joints into the most strict one: the narrowest
// position range, the lowest velocity and acceleration and the deceleration with the smallest
// magnitude. A quantity is only declared on the result if some joint declares it.
func (c *JointLimitsContainer) CommonLimit(names []string) (JointLimit, error) {
	var common JointLimit
	for _, name := range names {
		l, ok := c.limits[name]
		if !ok {
			return JointLimit{}, fmt.Errorf("no limits for joint %s", name)
		}
		if l.HasPositionLimits {
			if !common.HasPositionLimits {
				common.MinPosition, common.MaxPosition = l.MinPosition, l.MaxPosition
				common.HasPositionLimits = true
			} else {
				common.MinPosition = math.Max(common.MinPosition, l.MinPosition)
				common.MaxPosition = math.Min(common.MaxPosition, l.MaxPosition)
			}
		}
		if l.HasVelocityLimits && (!common.HasVelocityLimits || l.MaxVelocity < common.MaxVelocity) {
			common.MaxVelocity = l.MaxVelocity
			common.HasVelocityLimits = true
		}
		if l.HasAccelerationLimits && (!common.HasAccelerationLimits || l.MaxAcceleration < common.MaxAcceleration) {
			common.MaxAcceleration = l.MaxAcceleration
			common.HasAccelerationLimits = true
		}
		if l.HasDecelerationLimits && (!common.HasDecelerationLimits || l.MaxDeceleration > common.MaxDeceleration) {
			common.MaxDeceleration = l.MaxDeceleration
			common.HasDecelerationLimits = true
		}
	}
	return common, nil
}

// CartesianLimit bounds the tool motion. Translation is in mm, rotation in radians.
type CartesianLimit struct {
	MaxTransVel float64 `json:"max_trans_vel"`
	MaxTransAcc float64 `json:"max_trans_acc"`
	MaxTransDec float64 `json:"max_trans_dec"`
	MaxRotVel   float64 `json:"max_rot_vel"`
}

// Validate checks that every bound is set with the right sign.
func (l CartesianLimit) Validate() error {
	var err error
	if l.MaxTransVel <= 0 {
		err = multierr.Append(err, fmt.Errorf("max translational velocity must be positive, got %v", l.MaxTransVel))
	}
	if l.MaxTransAcc <= 0 {
		err = multierr.Append(err, fmt.Errorf("max translational acceleration must be positive, got %v", l.MaxTransAcc))
	}
	if l.MaxTransDec >= 0 {
		err = multierr.Append(err, fmt.Errorf("max translational deceleration must be negative, got %v", l.MaxTransDec))
	}
	if l.MaxRotVel <= 0 {
		err = multierr.Append(err, fmt.Errorf("max rotational velocity must be positive, got %v", l.MaxRotVel))
	}
	return err
}

// MaxRotAcc derives the rotational acceleration from the translational ratio.
func (l CartesianLimit) MaxRotAcc() float64 {
	return l.MaxTransAcc / l.MaxTransVel * l.MaxRotVel
}

// MaxRotDec derives the rotational deceleration from the translational ratio.
func (l CartesianLimit) MaxRotDec() float64 {
	return l.MaxTransDec / l.MaxTransVel * l.MaxRotVel
}

// NamedJointLimit is one entry of a limits file.
type NamedJointLimit struct {
	Name string `json:"name"`
	JointLimit
}

// LimitsConfig is the on-disk representation of the limits of a robot.
type LimitsConfig struct {
	Joints    []NamedJointLimit `json:"joints"`
	Cartesian *CartesianLimit   `json:"cartesian,omitempty"`
}

// LimitsContainer is the read-only limits lookup shared by all generators.
type LimitsContainer struct {
	joints    *JointLimitsContainer
	cartesian *CartesianLimit
}

// NewLimitsContainer builds the lookup from cfg. Every invalid entry is reported.
func NewLimitsContainer(cfg LimitsConfig) (*LimitsContainer, error) {
	var err error
	joints := NewJointLimitsContainer()
	for _, jl := range cfg.Joints {
		err = multierr.Append(err, joints.AddLimit(jl.Name, jl.JointLimit))
	}
	var cartesian *CartesianLimit
	if cfg.Cartesian != nil {
		if cerr := cfg.Cartesian.Validate(); cerr != nil {
			err = multierr.Append(err, errors.Wrap(cerr, "cartesian limits"))
		} else {
			c := *cfg.Cartesian
			cartesian = &c
		}
	}
	if err != nil {
		return nil, wrapError(KindInvalidLimits, err, "invalid limits configuration")
	}
	return &LimitsContainer{joints: joints, cartesian: cartesian}, nil
}

// JointLimits returns the joint limits. The result must not be modified.
func (l *LimitsContainer) JointLimits() *JointLimitsContainer {
	return l.joints
}

func (l *LimitsContainer) HasJointLimits() bool {
	return l != nil && l.joints != nil && !l.joints.Empty()
}

func (l *LimitsContainer) HasCartesianLimits() bool {
	return l != nil && l.cartesian != nil
}

// CartesianLimit returns the Cartesian limits if configured.
func (l *LimitsContainer) CartesianLimit() (CartesianLimit, bool) {
	if l.cartesian == nil {
		return CartesianLimit{}, false
	}
	return *l.cartesian, true
}

// Config returns the configuration the container was built from.
func (l *LimitsContainer) Config() LimitsConfig {
	var cfg LimitsConfig
	for _, name := range l.joints.names {
		cfg.Joints = append(cfg.Joints, NamedJointLimit{Name: name, JointLimit: l.joints.limits[name]})
	}
	if l.cartesian != nil {
		c := *l.cartesian
		cfg.Cartesian = &c
	}
	return cfg
}

// LoadLimitsFromFile reads a limits configuration from a JSON file.
func LoadLimitsFromFile(filePath string) (LimitsConfig, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return LimitsConfig{}, fmt.Errorf("failed to read limits file: %w", err)
	}

	var cfg LimitsConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return LimitsConfig{}, fmt.Errorf("failed to parse limits JSON: %w", err)
	}
	return cfg, nil
}

// SaveLimitsToFile writes a limits configuration to a JSON file.
func SaveLimitsToFile(filePath string, cfg LimitsConfig) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal limits: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write limits file: %w", err)
	}

	return nil
}

// PositionLimitsFromModel fills in position bounds from the model's degrees of freedom for every
// joint of cfg that does not declare its own. jointNames gives the name of each DoF in order.
func PositionLimitsFromModel(cfg *LimitsConfig, model referenceframe.Model, jointNames []string) error {
	dof := model.DoF()
	if len(dof) != len(jointNames) {
		return fmt.Errorf("model has %d degrees of freedom but %d joint names were given", len(dof), len(jointNames))
	}
	bounds := make(map[string]referenceframe.Limit, len(dof))
	for i, name := range jointNames {
		bounds[name] = dof[i]
	}
	for i := range cfg.Joints {
		jl := &cfg.Joints[i]
		if jl.HasPositionLimits {
			continue
		}
		if b, ok := bounds[jl.Name]; ok {
			jl.MinPosition, jl.MaxPosition = b.Min, b.Max
			jl.HasPositionLimits = true
		}
	}
	return nil
}
