package trajgen

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/spatialmath"
)

const (
	// DefaultSamplingTime is the spacing of trajectory samples in seconds.
	DefaultSamplingTime = 0.1
	defaultIKTimeout    = 50 * time.Millisecond
)

// MotionType selects the generator variant.
type MotionType int

const (
	PTP MotionType = iota
	LIN
	CIRC
)

func (m MotionType) String() string {
	switch m {
	case PTP:
		return "PTP"
	case LIN:
		return "LIN"
	case CIRC:
		return "CIRC"
	default:
		return fmt.Sprintf("MotionType(%d)", int(m))
	}
}

// ParseMotionType accepts the motion names case-insensitively.
func ParseMotionType(s string) (MotionType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PTP":
		return PTP, nil
	case "LIN":
		return LIN, nil
	case "CIRC":
		return CIRC, nil
	default:
		return 0, fmt.Errorf("unknown motion type %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m MotionType) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *MotionType) UnmarshalText(text []byte) error {
	parsed, err := ParseMotionType(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

type generatorOptions struct {
	samplingTime       float64
	ikTimeout          time.Duration
	checkSelfCollision bool
	logger             logging.Logger
}

// Option configures a Generator.
type Option func(*generatorOptions)

// WithSamplingTime sets the default sample spacing in seconds. Requests may override it.
func WithSamplingTime(seconds float64) Option {
	return func(o *generatorOptions) {
		o.samplingTime = seconds
	}
}

// WithIKTimeout bounds each IK solve.
func WithIKTimeout(d time.Duration) Option {
	return func(o *generatorOptions) {
		o.ikTimeout = d
	}
}

// WithSelfCollisionCheck rejects IK solutions in self collision.
func WithSelfCollisionCheck(check bool) Option {
	return func(o *generatorOptions) {
		o.checkSelfCollision = check
	}
}

// WithLogger sets the logger for rejected requests and generation statistics.
func WithLogger(logger logging.Logger) Option {
	return func(o *generatorOptions) {
		o.logger = logger
	}
}

// planner is the part of generation that differs per motion type.
type planner interface {
	validateCommand(req *MotionPlanRequest) error
	extractMotionPlanInfo(ctx context.Context, req *MotionPlanRequest) (*MotionPlanInfo, error)
	plan(ctx context.Context, req *MotionPlanRequest, info *MotionPlanInfo, samplingTime float64) (*RobotTrajectory, error)
}

// Generator turns motion requests of one type into joint trajectories. The robot and limits
// are shared read-only, so a Generator may serve concurrent calls.
type Generator struct {
	motion  MotionType
	robot   Robot
	limits  *LimitsContainer
	opts    generatorOptions
	planner planner
}

// NewGenerator builds the generator for a motion type. Joint limits are always required,
// Cartesian limits only for LIN and CIRC.
func NewGenerator(motion MotionType, robot Robot, limits *LimitsContainer, opts ...Option) (*Generator, error) {
	o := generatorOptions{samplingTime: DefaultSamplingTime, ikTimeout: defaultIKTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.NewLogger("trajgen")
	}
	if o.samplingTime <= minSampleDuration {
		return nil, fmt.Errorf("sampling time must be positive, got %v", o.samplingTime)
	}
	if robot == nil {
		return nil, fmt.Errorf("no robot model given")
	}
	if !limits.HasJointLimits() {
		return nil, newError(KindInvalidLimits, "no joint limits configured")
	}

	g := &Generator{motion: motion, robot: robot, limits: limits, opts: o}
	switch motion {
	case PTP:
		g.planner = &ptpPlanner{g: g}
	case LIN, CIRC:
		if !limits.HasCartesianLimits() {
			return nil, newError(KindInvalidLimits, "%s motion requires Cartesian limits", motion)
		}
		if motion == LIN {
			g.planner = &linPlanner{g: g}
		} else {
			g.planner = &circPlanner{g: g}
		}
	default:
		return nil, fmt.Errorf("unsupported motion type %v", motion)
	}
	return g, nil
}

func (g *Generator) Motion() MotionType {
	return g.motion
}

// Generate validates req and produces its trajectory. On failure the response carries the
// error code and an empty trajectory, and the error is returned as well.
func (g *Generator) Generate(ctx context.Context, req *MotionPlanRequest) (*MotionPlanResponse, error) {
	start := time.Now()
	resp := &MotionPlanResponse{
		StartState: req.StartState,
		Trajectory: NewRobotTrajectory(req.Group, nil),
	}
	fail := func(err error) (*MotionPlanResponse, error) {
		resp.Code = CodeOf(err)
		resp.PlanningTime = time.Since(start)
		g.opts.logger.Warnf("%s request rejected: %v", g.motion, err)
		return resp, err
	}

	if err := validateRequest(g.robot, g.limits, req); err != nil {
		return fail(err)
	}
	if err := g.planner.validateCommand(req); err != nil {
		return fail(err)
	}

	info, err := g.planner.extractMotionPlanInfo(ctx, req)
	if err != nil {
		return fail(err)
	}

	samplingTime := g.opts.samplingTime
	if req.SamplingTime > 0 {
		samplingTime = req.SamplingTime
	}
	traj, err := g.planner.plan(ctx, req, info, samplingTime)
	if err != nil {
		return fail(err)
	}

	resp.Code = CodeSuccess
	resp.Trajectory = traj
	resp.PlanningTime = time.Since(start)
	logGenerationStats(g.opts.logger, traj, resp.PlanningTime)
	return resp, nil
}

func (g *Generator) jointTrajectoryOptions() JointTrajectoryOptions {
	return JointTrajectoryOptions{
		IKTimeout:          g.opts.ikTimeout,
		CheckSelfCollision: g.opts.checkSelfCollision,
		StopAtEnd:          true,
	}
}

// groupStartJoints returns the start positions of the group's joints.
func groupStartJoints(robot Robot, req *MotionPlanRequest) (names []string, joints map[string]float64, err error) {
	names, err = robot.GroupJointNames(req.Group)
	if err != nil {
		return nil, nil, wrapError(KindUnknownPlanningGroup, err, "group %s", req.Group)
	}
	all := req.StartState.PositionMap()
	joints = make(map[string]float64, len(names))
	for _, name := range names {
		p, ok := all[name]
		if !ok {
			return nil, nil, newError(KindSizeMismatchInStartState, "start state lacks joint %s of group %s", name, req.Group)
		}
		joints[name] = p
	}
	return names, joints, nil
}

func jointGoal(c Constraints) map[string]float64 {
	m := make(map[string]float64, len(c.JointConstraints))
	for _, jc := range c.JointConstraints {
		m[jc.JointName] = jc.Position
	}
	return m
}

// cartesianGoal returns the goal link and pose of a validated Cartesian goal.
func cartesianGoal(c Constraints) (string, spatialmath.Pose) {
	pc := c.PositionConstraints[0]
	oc := c.OrientationConstraints[0]
	return pc.LinkName, spatialmath.NewPose(pc.PrimitivePoses[0], oc.Orientation)
}

// extractCartesianInfo resolves start and goal poses for the Cartesian motion types. A joint
// goal is converted with forward kinematics of the group's tip link.
func extractCartesianInfo(robot Robot, req *MotionPlanRequest) (*MotionPlanInfo, error) {
	_, startJoints, err := groupStartJoints(robot, req)
	if err != nil {
		return nil, err
	}
	info := &MotionPlanInfo{
		Group:          req.Group,
		StartJoints:    startJoints,
		AuxiliaryPoint: req.AuxiliaryPoint,
	}

	goal := req.GoalConstraints[0]
	if len(goal.JointConstraints) > 0 {
		link, err := robot.GroupTipLink(req.Group)
		if err != nil {
			return nil, wrapError(KindUnknownPlanningGroup, err, "group %s", req.Group)
		}
		info.Link = link
		info.GoalJoints = jointGoal(goal)
		info.GoalPose, err = robot.ComputeLinkFK(link, info.GoalJoints)
		if err != nil {
			return nil, wrapError(KindPlanningFailed, err, "cannot compute goal pose of %s", link)
		}
	} else {
		info.Link, info.GoalPose = cartesianGoal(goal)
	}

	info.StartPose, err = robot.ComputeLinkFK(info.Link, startJoints)
	if err != nil {
		return nil, wrapError(KindPlanningFailed, err, "cannot compute start pose of %s", info.Link)
	}
	return info, nil
}

// generateCartesian times path with the Cartesian limits and converts it to joint space.
func (g *Generator) generateCartesian(
	ctx context.Context,
	req *MotionPlanRequest,
	info *MotionPlanInfo,
	path Path,
	samplingTime float64,
) (*RobotTrajectory, error) {
	cartLimit, _ := g.limits.CartesianLimit()
	profile, err := CartesianTrapVelocityProfile(req.MaxVelocityScalingFactor, req.MaxAccelerationScalingFactor, cartLimit, path)
	if err != nil {
		return nil, wrapError(KindPlanningFailed, err, "cannot build velocity profile")
	}
	cartTraj := sampleCartesianTrajectory(info.Link, path, profile, sampleTimes(profile.Duration(), samplingTime))
	return GenerateJointTrajectory(ctx, g.robot, g.limits.JointLimits(), cartTraj, info.Group, info.Link,
		info.StartJoints, nil, g.jointTrajectoryOptions())
}
