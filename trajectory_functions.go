package trajgen

import (
	"context"
	"fmt"
	"time"

	"github.com/golang/geo/r3"
	"go.viam.com/rdk/logging"
	"gonum.org/v1/gonum/floats"
)

// IsRobotStateEqual reports whether two waypoints agree in position, velocity and acceleration,
// each compared by the euclidean norm of the difference.
func IsRobotStateEqual(a, b JointTrajectoryPoint, epsilon float64) bool {
	return vectorsClose(a.Positions, b.Positions, epsilon) &&
		vectorsClose(a.Velocities, b.Velocities, epsilon) &&
		vectorsClose(a.Accelerations, b.Accelerations, epsilon)
}

// IsRobotStateStationary reports whether every joint of p is at rest.
func IsRobotStateStationary(p JointTrajectoryPoint, epsilon float64) bool {
	return floats.Norm(p.Velocities, 2) <= epsilon && floats.Norm(p.Accelerations, 2) <= epsilon
}

func vectorsClose(a, b []float64, epsilon float64) bool {
	// a missing vector is all zeros
	if len(a) == 0 {
		return floats.Norm(b, 2) <= epsilon
	}
	if len(b) == 0 {
		return floats.Norm(a, 2) <= epsilon
	}
	if len(a) != len(b) {
		return false
	}
	return floats.Distance(a, b, 2) <= epsilon
}

// IntersectionFound reports whether the segment from current to next leaves the sphere of
// radius r around center.
func IntersectionFound(center, current, next r3.Vector, r float64) bool {
	return current.Sub(center).Norm() <= r && next.Sub(center).Norm() >= r
}

// LinearSearchIntersectionPoint finds the waypoint where the tool path of traj crosses the
// sphere of radius r around center. Either way the returned index is the waypoint inside the
// sphere next to the crossing; the inverse search walks from the end of the trajectory.
func LinearSearchIntersectionPoint(
	robot Robot,
	link string,
	center r3.Vector,
	r float64,
	traj *RobotTrajectory,
	inverseOrder bool,
) (int, bool, error) {
	n := traj.Len()
	cache := make(map[int]r3.Vector, n)
	point := func(i int) (r3.Vector, error) {
		if p, ok := cache[i]; ok {
			return p, nil
		}
		pose, err := robot.ComputeLinkFK(link, traj.PositionMap(i))
		if err != nil {
			return r3.Vector{}, err
		}
		cache[i] = pose.Point()
		return cache[i], nil
	}

	if inverseOrder {
		for i := n - 1; i > 0; i-- {
			cur, err := point(i)
			if err != nil {
				return 0, false, err
			}
			next, err := point(i - 1)
			if err != nil {
				return 0, false, err
			}
			if IntersectionFound(center, cur, next, r) {
				return i, true, nil
			}
		}
		return 0, false, nil
	}

	for i := 0; i < n-1; i++ {
		cur, err := point(i)
		if err != nil {
			return 0, false, err
		}
		next, err := point(i + 1)
		if err != nil {
			return 0, false, err
		}
		if IntersectionFound(center, cur, next, r) {
			return i, true, nil
		}
	}
	return 0, false, nil
}

// JointTrajectoryOptions tunes GenerateJointTrajectory.
type JointTrajectoryOptions struct {
	IKTimeout          time.Duration
	CheckSelfCollision bool
	// StopAtEnd forces the last waypoint to rest.
	StopAtEnd bool
	Logger    logging.Logger
}

// sampleSolver returns the joint positions of sample i, seeded with the previous solution.
type sampleSolver func(ctx context.Context, i int, seed map[string]float64) (map[string]float64, error)

// sampleJointTrajectory turns joint samples at the given times into waypoints with estimated
// velocities and accelerations, checking every transition against the joint limits.
//
// The motion starts at the initial state at time zero. A sample at time zero is the start
// sample: it is not checked and is at rest. Velocity is the position difference over the
// interval; acceleration is the velocity difference over the distance between interval midpoints.
// Any failure discards every waypoint.
func sampleJointTrajectory(
	ctx context.Context,
	group string,
	jointNames []string,
	times []time.Duration,
	limits *JointLimitsContainer,
	initialPositions, initialVelocities map[string]float64,
	stopAtEnd bool,
	solve sampleSolver,
) (*RobotTrajectory, error) {
	traj := NewRobotTrajectory(group, jointNames)

	last := make(map[string]float64, len(jointNames))
	velLast := make(map[string]float64, len(jointNames))
	for _, name := range jointNames {
		last[name] = initialPositions[name]
		velLast[name] = initialVelocities[name]
	}
	var tLast time.Duration
	durationLast := -1.0

	for i, t := range times {
		if err := ctx.Err(); err != nil {
			return NewRobotTrajectory(group, jointNames), wrapError(KindNoIKSolution, err,
				"cancelled before sample %d", i)
		}
		current, err := solve(ctx, i, last)
		if err != nil {
			return NewRobotTrajectory(group, jointNames), wrapError(KindNoIKSolution, err,
				"no IK solution for sample %d at %.3f s", i, t.Seconds())
		}

		if !limits.VerifyPositionLimits(current) {
			return NewRobotTrajectory(group, jointNames), newError(KindPlanningFailed,
				"sample %d at %.3f s leaves the joint position limits", i, t.Seconds())
		}

		point := JointTrajectoryPoint{
			Positions:     make([]float64, len(jointNames)),
			Velocities:    make([]float64, len(jointNames)),
			Accelerations: make([]float64, len(jointNames)),
			TimeFromStart: t,
		}
		durationCurrent := (t - tLast).Seconds()

		if i == 0 && durationCurrent <= minSampleDuration {
			for j, name := range jointNames {
				point.Positions[j] = current[name]
				velLast[name] = 0
			}
		} else {
			if durationLast < 0 {
				durationLast = durationCurrent
			}
			if err := VerifySampleJointLimits(last, velLast, current, durationLast, durationCurrent, limits); err != nil {
				return NewRobotTrajectory(group, jointNames), wrapError(KindPlanningFailed, err,
					"sample %d at %.3f s violates the joint limits", i, t.Seconds())
			}
			for j, name := range jointNames {
				vel := (current[name] - last[name]) / durationCurrent
				point.Positions[j] = current[name]
				point.Velocities[j] = vel
				point.Accelerations[j] = (vel - velLast[name]) / ((durationLast + durationCurrent) / 2)
				velLast[name] = vel
			}
			durationLast = durationCurrent
		}

		traj.Points = append(traj.Points, point)
		for _, name := range jointNames {
			last[name] = current[name]
		}
		tLast = t
	}

	if stopAtEnd && len(traj.Points) > 0 {
		end := &traj.Points[len(traj.Points)-1]
		for j := range end.Velocities {
			end.Velocities[j] = 0
			end.Accelerations[j] = 0
		}
	}
	return traj, nil
}

// GenerateJointTrajectory converts a Cartesian trajectory of link into a joint trajectory by
// solving IK for every point, each seeded with the previous solution. A point at time zero is the
// start of a motion from rest; otherwise the motion continues from the initial positions and
// velocities at time zero, which are not part of the result.
func GenerateJointTrajectory(
	ctx context.Context,
	robot Robot,
	limits *JointLimitsContainer,
	traj CartesianTrajectory,
	group, link string,
	initialPositions, initialVelocities map[string]float64,
	opts JointTrajectoryOptions,
) (*RobotTrajectory, error) {
	start := time.Now()
	jointNames, err := robot.GroupJointNames(group)
	if err != nil {
		return nil, wrapError(KindUnknownPlanningGroup, err, "cannot generate joint trajectory")
	}
	if len(traj.Points) == 0 {
		return nil, newError(KindPlanningFailed, "empty Cartesian trajectory")
	}

	times := make([]time.Duration, len(traj.Points))
	for i, p := range traj.Points {
		times[i] = p.TimeFromStart
	}
	solve := func(ctx context.Context, i int, seed map[string]float64) (map[string]float64, error) {
		return robot.ComputePoseIK(ctx, IKRequest{
			Group:              group,
			Link:               link,
			Pose:               traj.Points[i].Pose,
			Frame:              robot.ModelFrame(),
			Seed:               seed,
			Timeout:            opts.IKTimeout,
			CheckSelfCollision: opts.CheckSelfCollision,
		})
	}

	out, err := sampleJointTrajectory(ctx, group, jointNames, times, limits,
		initialPositions, initialVelocities, opts.StopAtEnd, solve)
	if err != nil {
		return out, err
	}
	if opts.Logger != nil {
		logGenerationStats(opts.Logger, out, time.Since(start))
	}
	return out, nil
}

func logGenerationStats(logger logging.Logger, traj *RobotTrajectory, elapsed time.Duration) {
	ms := float64(elapsed.Microseconds()) / 1000
	if traj.Len() == 0 {
		return
	}
	logger.Debugf("generated trajectory (%d points) in %.3f ms | %.3f ms per point",
		traj.Len(), ms, ms/float64(traj.Len()))
}

func missingJoints(names []string, m map[string]float64) error {
	for _, name := range names {
		if _, ok := m[name]; !ok {
			return fmt.Errorf("joint %s missing", name)
		}
	}
	return nil
}
