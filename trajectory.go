package trajgen

import (
	"math"
	"time"

	"github.com/golang/geo/r3"
	"go.viam.com/rdk/spatialmath"
)

// RobotState is a named joint state. Velocities may be empty, which means at rest.
type RobotState struct {
	JointNames []string  `json:"joint_names"`
	Positions  []float64 `json:"positions"`
	Velocities []float64 `json:"velocities,omitempty"`
}

// PositionMap returns the joint positions keyed by name.
func (s RobotState) PositionMap() map[string]float64 {
	m := make(map[string]float64, len(s.JointNames))
	for i, name := range s.JointNames {
		if i < len(s.Positions) {
			m[name] = s.Positions[i]
		}
	}
	return m
}

// VelocityMap returns the joint velocities keyed by name. Missing entries are zero.
func (s RobotState) VelocityMap() map[string]float64 {
	m := make(map[string]float64, len(s.JointNames))
	for i, name := range s.JointNames {
		if i < len(s.Velocities) {
			m[name] = s.Velocities[i]
		} else {
			m[name] = 0
		}
	}
	return m
}

// JointConstraint pins one joint of a goal.
type JointConstraint struct {
	JointName string
	Position  float64
}

// PositionConstraint is the position part of a Cartesian goal. The target is the first of
// PrimitivePoses, in mm.
type PositionConstraint struct {
	LinkName       string
	PrimitivePoses []r3.Vector
}

// OrientationConstraint is the orientation part of a Cartesian goal.
type OrientationConstraint struct {
	LinkName    string
	Orientation spatialmath.Orientation
}

// Constraints is one goal. A joint goal sets JointConstraints only; a Cartesian goal sets
// exactly one position and one orientation constraint.
type Constraints struct {
	JointConstraints       []JointConstraint
	PositionConstraints    []PositionConstraint
	OrientationConstraints []OrientationConstraint
}

// Auxiliary point names for circular motion.
const (
	AuxiliaryCenter  = "center"
	AuxiliaryInterim = "interim"
)

// AuxiliaryPoint is the extra point defining an arc, either its center or a point on it.
type AuxiliaryPoint struct {
	Name     string
	Position r3.Vector
}

// MotionPlanRequest is a single motion command.
type MotionPlanRequest struct {
	Group                        string
	StartState                   RobotState
	GoalConstraints              []Constraints
	AuxiliaryPoint               *AuxiliaryPoint
	MaxVelocityScalingFactor     float64
	MaxAccelerationScalingFactor float64
	// SamplingTime overrides the generator's sampling time when positive. Seconds.
	SamplingTime float64
}

// JointTrajectoryPoint is one waypoint. The slices are indexed like the trajectory's joint names.
type JointTrajectoryPoint struct {
	Positions     []float64     `json:"positions"`
	Velocities    []float64     `json:"velocities"`
	Accelerations []float64     `json:"accelerations"`
	TimeFromStart time.Duration `json:"time_from_start"`
}

func (p JointTrajectoryPoint) clone() JointTrajectoryPoint {
	return JointTrajectoryPoint{
		Positions:     append([]float64(nil), p.Positions...),
		Velocities:    append([]float64(nil), p.Velocities...),
		Accelerations: append([]float64(nil), p.Accelerations...),
		TimeFromStart: p.TimeFromStart,
	}
}

// RobotTrajectory is a joint trajectory of one planning group.
type RobotTrajectory struct {
	Group      string                 `json:"group"`
	JointNames []string               `json:"joint_names"`
	Points     []JointTrajectoryPoint `json:"points"`
}

// NewRobotTrajectory returns an empty trajectory for the given joints.
func NewRobotTrajectory(group string, jointNames []string) *RobotTrajectory {
	return &RobotTrajectory{Group: group, JointNames: append([]string(nil), jointNames...)}
}

func (t *RobotTrajectory) Len() int {
	return len(t.Points)
}

func (t *RobotTrajectory) Empty() bool {
	return len(t.Points) == 0
}

// Duration is the time from start of the last waypoint.
func (t *RobotTrajectory) Duration() time.Duration {
	if len(t.Points) == 0 {
		return 0
	}
	return t.Points[len(t.Points)-1].TimeFromStart
}

// DurationFromPrevious returns the time between waypoint i and its predecessor. The first
// waypoint is measured from zero.
func (t *RobotTrajectory) DurationFromPrevious(i int) time.Duration {
	if i == 0 {
		return t.Points[0].TimeFromStart
	}
	return t.Points[i].TimeFromStart - t.Points[i-1].TimeFromStart
}

// PositionMap returns the positions of waypoint i keyed by joint name.
func (t *RobotTrajectory) PositionMap(i int) map[string]float64 {
	m := make(map[string]float64, len(t.JointNames))
	for j, name := range t.JointNames {
		m[name] = t.Points[i].Positions[j]
	}
	return m
}

// Clone returns a deep copy.
func (t *RobotTrajectory) Clone() *RobotTrajectory {
	c := NewRobotTrajectory(t.Group, t.JointNames)
	c.Points = make([]JointTrajectoryPoint, len(t.Points))
	for i, p := range t.Points {
		c.Points[i] = p.clone()
	}
	return c
}

// MotionPlanResponse is the outcome of a generation call.
type MotionPlanResponse struct {
	Code         ErrorCode
	StartState   RobotState
	Trajectory   *RobotTrajectory
	PlanningTime time.Duration
}

// CartesianTrajectoryPoint is a timed pose of the tool link.
type CartesianTrajectoryPoint struct {
	Pose          spatialmath.Pose
	TimeFromStart time.Duration
}

// CartesianTrajectory is a timed tool path.
type CartesianTrajectory struct {
	Link   string
	Points []CartesianTrajectoryPoint
}

// MotionPlanInfo is the canonical form of a validated request.
type MotionPlanInfo struct {
	Group          string
	Link           string
	StartPose      spatialmath.Pose
	GoalPose       spatialmath.Pose
	StartJoints    map[string]float64
	GoalJoints     map[string]float64
	AuxiliaryPoint *AuxiliaryPoint
}

func seconds(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}
