package trajgen

import (
	"context"
	"math"
	"time"

	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/spatialmath"
)

// samplingTimeEpsilon is the tolerance (seconds) on the sample spacing of blended trajectories.
const samplingTimeEpsilon = 1e-6

// BlendRequest asks to round off the corner where First ends and Second starts.
type BlendRequest struct {
	Group  string
	Link   string
	First  *RobotTrajectory
	Second *RobotTrajectory
	// BlendRadius is the radius (mm) of the sphere around the corner inside which the two
	// tool paths are mixed.
	BlendRadius float64
}

// TransitionWindowBlender blends two trajectories meeting at rest. Inside the blend sphere the
// tool follows a mix of both Cartesian paths, shifting from the first to the second with a
// quintic weight, so the tool never stops at the corner.
type TransitionWindowBlender struct {
	robot  Robot
	limits *LimitsContainer
	opts   generatorOptions
}

// NewTransitionWindowBlender returns a blender. Only the IK, collision and logging options apply.
func NewTransitionWindowBlender(robot Robot, limits *LimitsContainer, opts ...Option) *TransitionWindowBlender {
	o := generatorOptions{ikTimeout: defaultIKTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.NewLogger("trajgen")
	}
	return &TransitionWindowBlender{robot: robot, limits: limits, opts: o}
}

// blendWeight rises smoothly from 0 to 1 with zero slope and curvature at both ends.
func blendWeight(s float64) float64 {
	return s * s * s * (10 - 15*s + 6*s*s)
}

// Blend returns first up to where it enters the blend sphere, the blend segment, and second from
// where it leaves the sphere.
func (b *TransitionWindowBlender) Blend(ctx context.Context, req BlendRequest) (*RobotTrajectory, error) {
	start := time.Now()
	samplingTime, err := b.validateBlendRequest(req)
	if err != nil {
		return nil, err
	}

	corner, err := b.robot.ComputeLinkFK(req.Link, req.First.PositionMap(req.First.Len()-1))
	if err != nil {
		return nil, wrapError(KindBlendInvalid, err, "cannot compute corner pose")
	}
	center := corner.Point()

	i1, found, err := LinearSearchIntersectionPoint(b.robot, req.Link, center, req.BlendRadius, req.First, true)
	if err != nil {
		return nil, wrapError(KindBlendInvalid, err, "intersection search on first trajectory")
	}
	if !found {
		return nil, newError(KindBlendNoIntersection, "first trajectory does not cross the blend sphere of radius %v", req.BlendRadius)
	}
	i2, found, err := LinearSearchIntersectionPoint(b.robot, req.Link, center, req.BlendRadius, req.Second, false)
	if err != nil {
		return nil, wrapError(KindBlendInvalid, err, "intersection search on second trajectory")
	}
	if !found {
		return nil, newError(KindBlendNoIntersection, "second trajectory does not cross the blend sphere of radius %v", req.BlendRadius)
	}

	cartTraj, err := b.blendCartesianTrajectory(req, i1, i2, samplingTime)
	if err != nil {
		return nil, err
	}

	entry := req.First.Points[i1]
	initialVelocities := make(map[string]float64, len(req.First.JointNames))
	for j, name := range req.First.JointNames {
		initialVelocities[name] = entry.Velocities[j]
	}
	blend, err := GenerateJointTrajectory(ctx, b.robot, b.limits.JointLimits(), cartTraj, req.Group, req.Link,
		req.First.PositionMap(i1), initialVelocities, JointTrajectoryOptions{
			IKTimeout:          b.opts.ikTimeout,
			CheckSelfCollision: b.opts.checkSelfCollision,
		})
	if err != nil {
		return nil, err
	}

	result := NewRobotTrajectory(req.Group, req.First.JointNames)
	for _, p := range req.First.Points[:i1+1] {
		result.Points = append(result.Points, p.clone())
	}
	if err := AppendTrajectory(result, blend); err != nil {
		return nil, err
	}
	departure := NewRobotTrajectory(req.Group, req.Second.JointNames)
	leave := req.Second.Points[i2].TimeFromStart
	for _, p := range req.Second.Points[i2+1:] {
		p = p.clone()
		p.TimeFromStart -= leave
		departure.Points = append(departure.Points, p)
	}
	if err := AppendTrajectory(result, departure); err != nil {
		return nil, err
	}

	b.opts.logger.Debugf("blended at waypoints %d/%d with %d blend points in %v", i1, i2, blend.Len(), time.Since(start))
	return result, nil
}

func (b *TransitionWindowBlender) validateBlendRequest(req BlendRequest) (float64, error) {
	if req.First == nil || req.Second == nil || req.First.Empty() || req.Second.Empty() {
		return 0, newError(KindBlendInvalid, "both trajectories must have waypoints")
	}
	if req.BlendRadius <= 0 {
		return 0, newError(KindBlendInvalid, "blend radius must be positive, got %v", req.BlendRadius)
	}
	if !b.robot.GroupSupportsIK(req.Group, req.Link) {
		return 0, newError(KindBlendInvalid, "no IK solver for group %s and link %s", req.Group, req.Link)
	}
	if !sameJointNames(req.First.JointNames, req.Second.JointNames) {
		return 0, newError(KindBlendInvalid, "trajectories move different joints")
	}
	for _, traj := range []*RobotTrajectory{req.First, req.Second} {
		if i, ok := malformedPoint(traj); ok {
			return 0, newError(KindBlendInvalid, "waypoint %d does not have a position, velocity and acceleration for each of %d joints",
				i, len(traj.JointNames))
		}
	}

	samplingTime, err := DetermineAndCheckSamplingTime(req.First, req.Second, samplingTimeEpsilon)
	if err != nil {
		return 0, wrapError(KindBlendInvalid, err, "trajectories do not share a sampling time")
	}

	last := req.First.Points[req.First.Len()-1]
	first := req.Second.Points[0]
	if !IsRobotStateStationary(last, RobotStateEqualityEpsilon) || !IsRobotStateStationary(first, RobotStateEqualityEpsilon) {
		return 0, newError(KindBlendInvalid, "trajectories must meet at rest")
	}
	if !IsRobotStateEqual(last, first, RobotStateEqualityEpsilon) {
		return 0, newError(KindBlendInvalid, "first trajectory does not end where the second starts")
	}
	return samplingTime, nil
}

// malformedPoint returns the first waypoint whose slices do not match the joint names.
func malformedPoint(traj *RobotTrajectory) (int, bool) {
	n := len(traj.JointNames)
	for i, p := range traj.Points {
		if len(p.Positions) != n || len(p.Velocities) != n || len(p.Accelerations) != n {
			return i, true
		}
	}
	return 0, false
}

// blendCartesianTrajectory samples the blend window. The window starts at waypoint i1 of the
// first trajectory and lasts until both the rest of the first and the approach of the second to
// waypoint i2 fit into it, rounded up to whole samples; the first point is one sample after the
// window start.
func (b *TransitionWindowBlender) blendCartesianTrajectory(req BlendRequest, i1, i2 int, samplingTime float64) (CartesianTrajectory, error) {
	t1 := req.First.Points[i1].TimeFromStart.Seconds()
	end1 := req.First.Duration().Seconds()
	t2 := req.Second.Points[i2].TimeFromStart.Seconds()
	window := math.Ceil(math.Max(end1-t1, t2)/samplingTime-samplingTimeEpsilon) * samplingTime

	traj := CartesianTrajectory{Link: req.Link}
	for _, tau := range sampleTimes(window, samplingTime)[1:] {
		p1, err := poseAtTime(b.robot, req.Link, req.First, math.Min(t1+tau, end1))
		if err != nil {
			return CartesianTrajectory{}, wrapError(KindBlendInvalid, err, "first trajectory")
		}
		p2, err := poseAtTime(b.robot, req.Link, req.Second, math.Max(0, t2-window+tau))
		if err != nil {
			return CartesianTrajectory{}, wrapError(KindBlendInvalid, err, "second trajectory")
		}
		alpha := blendWeight(tau / window)
		point := p1.Point().Add(p2.Point().Sub(p1.Point()).Mul(alpha))
		traj.Points = append(traj.Points, CartesianTrajectoryPoint{
			Pose:          spatialmath.NewPose(point, spatialmath.Interpolate(p1, p2, alpha).Orientation()),
			TimeFromStart: seconds(tau),
		})
	}
	if len(traj.Points) == 0 {
		return CartesianTrajectory{}, newError(KindBlendInvalid, "blend window of %v s is shorter than one sample", window)
	}
	return traj, nil
}

// poseAtTime is the tool pose of traj at time t, interpolating joint positions linearly between
// waypoints.
func poseAtTime(robot Robot, link string, traj *RobotTrajectory, t float64) (spatialmath.Pose, error) {
	n := traj.Len()
	if t <= traj.Points[0].TimeFromStart.Seconds() {
		return robot.ComputeLinkFK(link, traj.PositionMap(0))
	}
	if t >= traj.Duration().Seconds() {
		return robot.ComputeLinkFK(link, traj.PositionMap(n-1))
	}
	k := 1
	for k < n-1 && traj.Points[k].TimeFromStart.Seconds() < t {
		k++
	}
	ta := traj.Points[k-1].TimeFromStart.Seconds()
	tb := traj.Points[k].TimeFromStart.Seconds()
	s := (t - ta) / (tb - ta)
	joints := make(map[string]float64, len(traj.JointNames))
	for j, name := range traj.JointNames {
		a := traj.Points[k-1].Positions[j]
		joints[name] = a + s*(traj.Points[k].Positions[j]-a)
	}
	return robot.ComputeLinkFK(link, joints)
}
