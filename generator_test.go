package trajgen

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.viam.com/rdk/logging"
)

func newTestGenerator(t *testing.T, motion MotionType) *Generator {
	t.Helper()
	g, err := NewGenerator(motion, newGantryRobot(), gantryLimits(t), WithLogger(logging.NewTestLogger(t)))
	require.NoError(t, err)
	return g
}

// assertWellFormed checks the properties every generated trajectory has.
func assertWellFormed(t *testing.T, traj *RobotTrajectory, samplingTime float64) {
	t.Helper()
	require.False(t, traj.Empty())
	assert.Equal(t, gantryJoints, traj.JointNames)
	assert.Equal(t, time.Duration(0), traj.Points[0].TimeFromStart)
	for i := 1; i < traj.Len(); i++ {
		d := traj.DurationFromPrevious(i).Seconds()
		assert.Greater(t, d, 0.)
		if i < traj.Len()-1 {
			assert.InDelta(t, samplingTime, d, 1e-9)
		}
	}
	for _, p := range []JointTrajectoryPoint{traj.Points[0], traj.Points[traj.Len()-1]} {
		assert.True(t, IsRobotStateStationary(p, 0), "boundary waypoint moves: %+v", p)
	}
}

func TestMotionType(t *testing.T) {
	for _, m := range []MotionType{PTP, LIN, CIRC} {
		parsed, err := ParseMotionType(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, parsed)
	}
	parsed, err := ParseMotionType(" lin ")
	require.NoError(t, err)
	assert.Equal(t, LIN, parsed)

	_, err = ParseMotionType("SPLINE")
	assert.Error(t, err)
	assert.Equal(t, "MotionType(7)", MotionType(7).String())

	var m MotionType
	require.NoError(t, m.UnmarshalText([]byte("circ")))
	assert.Equal(t, CIRC, m)
}

func TestNewGenerator(t *testing.T) {
	robot := newGantryRobot()
	noCartesian, err := NewLimitsContainer(LimitsConfig{Joints: gantryLimitsConfig().Joints})
	require.NoError(t, err)
	empty, err := NewLimitsContainer(LimitsConfig{})
	require.NoError(t, err)

	_, err = NewGenerator(PTP, robot, noCartesian)
	assert.NoError(t, err)

	for _, m := range []MotionType{LIN, CIRC} {
		_, err = NewGenerator(m, robot, noCartesian)
		assert.Equal(t, KindInvalidLimits, KindOf(err))
	}

	_, err = NewGenerator(PTP, robot, empty)
	assert.Equal(t, KindInvalidLimits, KindOf(err))

	_, err = NewGenerator(PTP, robot, noCartesian, WithSamplingTime(0))
	assert.Error(t, err)
	_, err = NewGenerator(MotionType(9), robot, noCartesian)
	assert.Error(t, err)
}

func TestPTPJointGoal(t *testing.T) {
	g := newTestGenerator(t, PTP)
	req := validRequest()

	resp, err := g.Generate(context.Background(), &req)
	require.NoError(t, err)
	assert.Equal(t, CodeSuccess, resp.Code)
	assert.Equal(t, req.StartState, resp.StartState)

	traj := resp.Trajectory
	assertWellFormed(t, traj, DefaultSamplingTime)

	// z moves furthest under the common limit: v 500, a 2000
	lead, err := NewTrapezoidProfile(300, 500, 2000, 2000)
	require.NoError(t, err)
	assert.InDelta(t, lead.Duration(), traj.Duration().Seconds(), 1e-9)
	assert.InDelta(t, 0.85, traj.Duration().Seconds(), 1e-9)

	assert.Equal(t, []float64{0, 0, 0}, traj.Points[0].Positions)
	assert.Equal(t, []float64{100, 200, 300}, traj.Points[traj.Len()-1].Positions)
	for i := 1; i < traj.Len(); i++ {
		for j := range gantryJoints {
			assert.GreaterOrEqual(t, traj.Points[i].Positions[j], traj.Points[i-1].Positions[j])
		}
		// synchronized axes stay on the straight joint space line
		p := traj.Points[i].Positions
		assert.InDelta(t, p[2]/3, p[0], 1e-6)
		assert.InDelta(t, 2*p[2]/3, p[1], 1e-6)
	}
}

func TestPTPScalingStretchesTheMotion(t *testing.T) {
	g := newTestGenerator(t, PTP)
	req := validRequest()
	req.MaxVelocityScalingFactor = 0.5
	req.MaxAccelerationScalingFactor = 0.25
	req.SamplingTime = 0.05

	resp, err := g.Generate(context.Background(), &req)
	require.NoError(t, err)
	assertWellFormed(t, resp.Trajectory, 0.05)

	lead, err := NewTrapezoidProfile(300, 250, 500, 500)
	require.NoError(t, err)
	assert.InDelta(t, lead.Duration(), resp.Trajectory.Duration().Seconds(), 1e-9)
}

func TestPTPPoseGoal(t *testing.T) {
	g := newTestGenerator(t, PTP)
	req := validRequest()
	req.GoalConstraints = poseGoalConstraints(r3.Vector{X: -50, Y: 20, Z: 10})

	resp, err := g.Generate(context.Background(), &req)
	require.NoError(t, err)
	end := resp.Trajectory.Points[resp.Trajectory.Len()-1].Positions
	assert.InDeltaSlice(t, []float64{-50, 20, 10}, end, 1e-9)
}

func TestPTPGoalAtStart(t *testing.T) {
	g := newTestGenerator(t, PTP)
	req := validRequest()
	req.GoalConstraints = jointGoalConstraints(0, 0, 0)

	resp, err := g.Generate(context.Background(), &req)
	require.NoError(t, err)
	require.Equal(t, 1, resp.Trajectory.Len())
	assert.Equal(t, []float64{0, 0, 0}, resp.Trajectory.Points[0].Positions)
}

func TestLIN(t *testing.T) {
	g := newTestGenerator(t, LIN)
	req := validRequest()
	req.GoalConstraints = poseGoalConstraints(r3.Vector{X: 100})

	resp, err := g.Generate(context.Background(), &req)
	require.NoError(t, err)
	traj := resp.Trajectory
	assertWellFormed(t, traj, DefaultSamplingTime)

	// 100 mm at 200 mm/s and 400 mm/s^2 is exactly two ramps
	assert.InDelta(t, 1.0, traj.Duration().Seconds(), 1e-9)
	require.Equal(t, 11, traj.Len())
	for i, p := range traj.Points {
		assert.InDelta(t, 0, p.Positions[1], 1e-9, "waypoint %d left the line", i)
		assert.InDelta(t, 0, p.Positions[2], 1e-9, "waypoint %d left the line", i)
	}
	assert.InDelta(t, 50, traj.Points[5].Positions[0], 1e-9)
	assert.InDelta(t, 100, traj.Points[10].Positions[0], 1e-9)
	// velocity estimate of the interval ending at the top speed
	assert.InDelta(t, (50-32)/0.1, traj.Points[5].Velocities[0], 1e-6)
}

func TestLINJointGoal(t *testing.T) {
	g := newTestGenerator(t, LIN)
	req := validRequest()
	req.GoalConstraints = jointGoalConstraints(30, 40, 0)

	resp, err := g.Generate(context.Background(), &req)
	require.NoError(t, err)
	end := resp.Trajectory.Points[resp.Trajectory.Len()-1].Positions
	assert.InDeltaSlice(t, []float64{30, 40, 0}, end, 1e-9)
}

func TestLINUnreachableGoal(t *testing.T) {
	g := newTestGenerator(t, LIN)
	req := validRequest()
	req.GoalConstraints = poseGoalConstraints(r3.Vector{X: 1500})

	resp, err := g.Generate(context.Background(), &req)
	require.Error(t, err)
	assert.Equal(t, KindNoIKSolution, KindOf(err))
	assert.Equal(t, CodeNoIKSolution, resp.Code)
	assert.True(t, resp.Trajectory.Empty())
}

func TestLINViolatesJointLimits(t *testing.T) {
	limitsCfg := gantryLimitsConfig()
	limitsCfg.Joints[0].MaxVelocity = 50
	limits, err := NewLimitsContainer(limitsCfg)
	require.NoError(t, err)
	g, err := NewGenerator(LIN, newGantryRobot(), limits, WithLogger(logging.NewTestLogger(t)))
	require.NoError(t, err)

	req := validRequest()
	req.GoalConstraints = poseGoalConstraints(r3.Vector{X: 100})
	resp, err := g.Generate(context.Background(), &req)
	require.Error(t, err)
	assert.Equal(t, KindPlanningFailed, KindOf(err))
	assert.Equal(t, CodePlanningFailed, resp.Code)
	assert.True(t, resp.Trajectory.Empty())
}

func TestCIRC(t *testing.T) {
	g := newTestGenerator(t, CIRC)

	tests := []struct {
		name string
		aux  AuxiliaryPoint
		goal r3.Vector
	}{
		{"center", AuxiliaryPoint{Name: AuxiliaryCenter}, r3.Vector{Y: 100}},
		{"interim", AuxiliaryPoint{Name: AuxiliaryInterim, Position: r3.Vector{X: 100 / math.Sqrt2, Y: 100 / math.Sqrt2}}, r3.Vector{Y: 100}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			req.StartState = gantryState(100, 0, 0)
			req.GoalConstraints = poseGoalConstraints(tt.goal)
			aux := tt.aux
			req.AuxiliaryPoint = &aux

			resp, err := g.Generate(context.Background(), &req)
			require.NoError(t, err)
			traj := resp.Trajectory
			assertWellFormed(t, traj, DefaultSamplingTime)

			for i, p := range traj.Points {
				radius := math.Hypot(p.Positions[0], p.Positions[1])
				assert.InDelta(t, 100, radius, 1e-6, "waypoint %d left the arc", i)
			}
			assert.InDeltaSlice(t, []float64{0, 100, 0}, traj.Points[traj.Len()-1].Positions, 1e-9)

			arc, err := NewTrapezoidProfile(50*math.Pi, 200, 400, 400)
			require.NoError(t, err)
			assert.InDelta(t, arc.Duration(), traj.Duration().Seconds(), 1e-9)
		})
	}
}

func TestCIRCCollinear(t *testing.T) {
	g := newTestGenerator(t, CIRC)
	req := validRequest()
	req.StartState = gantryState(100, 0, 0)
	req.GoalConstraints = poseGoalConstraints(r3.Vector{X: -100})
	req.AuxiliaryPoint = &AuxiliaryPoint{Name: AuxiliaryCenter}

	resp, err := g.Generate(context.Background(), &req)
	require.Error(t, err)
	assert.Equal(t, KindInvalidCirclePath, KindOf(err))
	assert.Equal(t, CodeInvalidGoalConstraints, resp.Code)
	assert.True(t, resp.Trajectory.Empty())
}

func TestAuxiliaryPointRules(t *testing.T) {
	tests := []struct {
		name   string
		motion MotionType
		aux    *AuxiliaryPoint
		kind   ErrorKind
	}{
		{"PTP rejects auxiliary point", PTP, &AuxiliaryPoint{Name: AuxiliaryCenter}, KindAuxiliaryPointNotAllowed},
		{"LIN rejects auxiliary point", LIN, &AuxiliaryPoint{Name: AuxiliaryInterim}, KindAuxiliaryPointNotAllowed},
		{"CIRC needs auxiliary point", CIRC, nil, KindNoAuxiliaryPoint},
		{"CIRC unknown auxiliary name", CIRC, &AuxiliaryPoint{Name: "via"}, KindUnknownAuxiliaryPointName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestGenerator(t, tt.motion)
			req := validRequest()
			req.GoalConstraints = poseGoalConstraints(r3.Vector{Y: 100})
			req.AuxiliaryPoint = tt.aux

			resp, err := g.Generate(context.Background(), &req)
			assert.Equal(t, tt.kind, KindOf(err))
			assert.Equal(t, tt.kind.Code(), resp.Code)
		})
	}
}

func TestGenerateRejectsInvalidRequest(t *testing.T) {
	g := newTestGenerator(t, PTP)
	req := validRequest()
	req.Group = "arm"

	resp, err := g.Generate(context.Background(), &req)
	assert.Equal(t, KindUnknownPlanningGroup, KindOf(err))
	assert.Equal(t, CodeInvalidGroupName, resp.Code)
	assert.True(t, resp.Trajectory.Empty())
}

func TestGenerateHonorsCancellation(t *testing.T) {
	g := newTestGenerator(t, LIN)
	req := validRequest()
	req.GoalConstraints = poseGoalConstraints(r3.Vector{X: 100})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	resp, err := g.Generate(ctx, &req)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, KindNoIKSolution, KindOf(err))
	assert.Equal(t, CodeNoIKSolution, resp.Code)
	assert.True(t, resp.Trajectory.Empty())
}

func TestGenerateRejectsTinySamplingTime(t *testing.T) {
	for _, motion := range []MotionType{PTP, LIN} {
		t.Run(motion.String(), func(t *testing.T) {
			g := newTestGenerator(t, motion)
			req := validRequest()
			if motion == LIN {
				req.GoalConstraints = poseGoalConstraints(r3.Vector{X: 100})
			}
			req.SamplingTime = 1e-8

			resp, err := g.Generate(context.Background(), &req)
			assert.Equal(t, KindSamplingTimeIncorrect, KindOf(err))
			assert.Equal(t, CodeInvalidMotionPlan, resp.Code)
			assert.True(t, resp.Trajectory.Empty())
		})
	}
}
