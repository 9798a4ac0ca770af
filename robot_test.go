package trajgen

import (
	"context"
	"fmt"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/require"
	"go.viam.com/rdk/referenceframe"
	"go.viam.com/rdk/spatialmath"
)

const (
	testGroup = "gantry"
	testLink  = "tool"
)

// gantryRobot is a three axis cartesian robot whose joint positions are the tool position in mm.
// Its IK is exact, so trajectories only fail on the limits.
type gantryRobot struct {
	bound float64
}

var gantryJoints = []string{"x", "y", "z"}

func newGantryRobot() *gantryRobot {
	return &gantryRobot{bound: 1000}
}

func (g *gantryRobot) ModelFrame() string { return worldFrame }

func (g *gantryRobot) HasGroup(group string) bool { return group == testGroup }

func (g *gantryRobot) GroupJointNames(group string) ([]string, error) {
	if !g.HasGroup(group) {
		return nil, fmt.Errorf("unknown group %q", group)
	}
	return append([]string(nil), gantryJoints...), nil
}

func (g *gantryRobot) GroupTipLink(group string) (string, error) {
	if !g.HasGroup(group) {
		return "", fmt.Errorf("unknown group %q", group)
	}
	return testLink, nil
}

func (g *gantryRobot) GroupSupportsIK(group, link string) bool {
	return g.HasGroup(group) && link == testLink
}

func (g *gantryRobot) JointBounds(joint string) (referenceframe.Limit, bool) {
	for _, name := range gantryJoints {
		if name == joint {
			return referenceframe.Limit{Min: -g.bound, Max: g.bound}, true
		}
	}
	return referenceframe.Limit{}, false
}

func (g *gantryRobot) ComputePoseIK(ctx context.Context, req IKRequest) (map[string]float64, error) {
	if !g.GroupSupportsIK(req.Group, req.Link) {
		return nil, fmt.Errorf("no solver for %s/%s", req.Group, req.Link)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if orientationDistance(req.Pose.Orientation(), spatialmath.NewZeroOrientation()) > 1e-6 {
		return nil, fmt.Errorf("gantry cannot rotate the tool")
	}
	p := req.Pose.Point()
	joints := map[string]float64{"x": p.X, "y": p.Y, "z": p.Z}
	for name, v := range joints {
		if v < -g.bound || v > g.bound {
			return nil, fmt.Errorf("joint %s would be at %v", name, v)
		}
	}
	return joints, nil
}

func (g *gantryRobot) ComputeLinkFK(link string, joints map[string]float64) (spatialmath.Pose, error) {
	if link != testLink {
		return nil, fmt.Errorf("unknown link %s", link)
	}
	return spatialmath.NewPoseFromPoint(r3.Vector{X: joints["x"], Y: joints["y"], Z: joints["z"]}), nil
}

func (g *gantryRobot) IsStateColliding(group string, joints map[string]float64) (bool, error) {
	return false, nil
}

func gantryLimitsConfig() LimitsConfig {
	joint := func(name string, vel float64) NamedJointLimit {
		return NamedJointLimit{Name: name, JointLimit: JointLimit{
			MinPosition: -1000, MaxPosition: 1000, HasPositionLimits: true,
			MaxVelocity: vel, HasVelocityLimits: true,
			MaxAcceleration: 2000, HasAccelerationLimits: true,
			MaxDeceleration: -2000, HasDecelerationLimits: true,
		}}
	}
	return LimitsConfig{
		Joints: []NamedJointLimit{joint("x", 1000), joint("y", 500), joint("z", 1000)},
		Cartesian: &CartesianLimit{
			MaxTransVel: 200,
			MaxTransAcc: 400,
			MaxTransDec: -400,
			MaxRotVel:   1,
		},
	}
}

func gantryLimits(t *testing.T) *LimitsContainer {
	t.Helper()
	limits, err := NewLimitsContainer(gantryLimitsConfig())
	require.NoError(t, err)
	return limits
}

func gantryState(x, y, z float64) RobotState {
	return RobotState{JointNames: append([]string(nil), gantryJoints...), Positions: []float64{x, y, z}}
}

func jointGoalConstraints(x, y, z float64) []Constraints {
	return []Constraints{{JointConstraints: []JointConstraint{
		{JointName: "x", Position: x},
		{JointName: "y", Position: y},
		{JointName: "z", Position: z},
	}}}
}

func poseGoalConstraints(p r3.Vector) []Constraints {
	return []Constraints{{
		PositionConstraints:    []PositionConstraint{{LinkName: testLink, PrimitivePoses: []r3.Vector{p}}},
		OrientationConstraints: []OrientationConstraint{{LinkName: testLink, Orientation: spatialmath.NewZeroOrientation()}},
	}}
}
