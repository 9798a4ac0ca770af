package trajgen

import (
	"context"
	"time"

	"go.viam.com/rdk/referenceframe"
	"go.viam.com/rdk/spatialmath"
)

// Robot is the kinematic capability the generators need. Implementations must be safe for
// concurrent use by several generators.
type Robot interface {
	// ModelFrame is the frame poses are expressed in.
	ModelFrame() string
	HasGroup(group string) bool
	GroupJointNames(group string) ([]string, error)
	GroupTipLink(group string) (string, error)
	GroupSupportsIK(group, link string) bool
	JointBounds(joint string) (referenceframe.Limit, bool)

	ComputePoseIK(ctx context.Context, req IKRequest) (map[string]float64, error)
	ComputeLinkFK(link string, joints map[string]float64) (spatialmath.Pose, error)
	IsStateColliding(group string, joints map[string]float64) (bool, error)
}

// IKRequest asks for joint positions placing Link at Pose.
type IKRequest struct {
	Group string
	Link  string
	Pose  spatialmath.Pose
	// Frame of Pose; must be the model frame.
	Frame              string
	Seed               map[string]float64
	Timeout            time.Duration
	CheckSelfCollision bool
}
