package trajgen

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/golang/geo/r3"
	commonpb "go.viam.com/api/common/v1"
	"go.viam.com/rdk/spatialmath"
	"google.golang.org/protobuf/encoding/protojson"
)

// RequestFile is the on-disk form of a motion sequence.
type RequestFile struct {
	// SamplingTime in seconds applies to every item; zero keeps the configured value.
	SamplingTime float64       `json:"sampling_time,omitempty"`
	Items        []RequestItem `json:"items"`
}

// RequestItem is one motion. Only the first item needs a start state; later items start where
// the previous one ends.
type RequestItem struct {
	Motion              MotionType          `json:"motion"`
	Group               string              `json:"group"`
	Start               *RobotState         `json:"start,omitempty"`
	JointGoal           map[string]float64  `json:"joint_goal,omitempty"`
	PoseGoal            *PoseGoal           `json:"pose_goal,omitempty"`
	AuxiliaryPoint      *AuxiliaryPointJSON `json:"auxiliary_point,omitempty"`
	VelocityScaling     float64             `json:"velocity_scaling"`
	AccelerationScaling float64             `json:"acceleration_scaling"`
	BlendRadius         float64             `json:"blend_radius,omitempty"`
}

// PoseGoal targets a link pose. Pose holds a common.v1.Pose in protobuf JSON: millimeters and
// an orientation vector in degrees.
type PoseGoal struct {
	Link string          `json:"link"`
	Pose json.RawMessage `json:"pose"`
}

type AuxiliaryPointJSON struct {
	Name string  `json:"name"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Z    float64 `json:"z"`
}

// LoadRequestFile reads a request file.
func LoadRequestFile(filePath string) (*RequestFile, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read request file: %w", err)
	}

	var rf RequestFile
	if err := json.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("failed to parse request JSON: %w", err)
	}
	if len(rf.Items) == 0 {
		return nil, fmt.Errorf("request file %s has no items", filePath)
	}
	if rf.Items[0].Start == nil {
		return nil, fmt.Errorf("first item of request file %s has no start state", filePath)
	}
	return &rf, nil
}

// DecodePose parses a protobuf JSON pose.
func DecodePose(data []byte) (spatialmath.Pose, error) {
	var pb commonpb.Pose
	if err := protojson.Unmarshal(data, &pb); err != nil {
		return nil, fmt.Errorf("failed to parse pose: %w", err)
	}
	return spatialmath.NewPoseFromProtobuf(&pb), nil
}

// EncodePose renders a pose as protobuf JSON.
func EncodePose(pose spatialmath.Pose) ([]byte, error) {
	return protojson.Marshal(spatialmath.PoseToProtobuf(pose))
}

// MotionPlanRequest converts the item. Items after the first get an empty start state.
func (item RequestItem) MotionPlanRequest(samplingTime float64) (MotionPlanRequest, error) {
	req := MotionPlanRequest{
		Group:                        item.Group,
		MaxVelocityScalingFactor:     item.VelocityScaling,
		MaxAccelerationScalingFactor: item.AccelerationScaling,
		SamplingTime:                 samplingTime,
	}
	if item.Start != nil {
		req.StartState = *item.Start
	}

	var goal Constraints
	if len(item.JointGoal) > 0 {
		names := make([]string, 0, len(item.JointGoal))
		for name := range item.JointGoal {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			goal.JointConstraints = append(goal.JointConstraints, JointConstraint{JointName: name, Position: item.JointGoal[name]})
		}
	}
	if item.PoseGoal != nil {
		pose, err := DecodePose(item.PoseGoal.Pose)
		if err != nil {
			return MotionPlanRequest{}, err
		}
		goal.PositionConstraints = []PositionConstraint{{LinkName: item.PoseGoal.Link, PrimitivePoses: []r3.Vector{pose.Point()}}}
		goal.OrientationConstraints = []OrientationConstraint{{LinkName: item.PoseGoal.Link, Orientation: pose.Orientation()}}
	}
	req.GoalConstraints = []Constraints{goal}

	if item.AuxiliaryPoint != nil {
		req.AuxiliaryPoint = &AuxiliaryPoint{
			Name:     item.AuxiliaryPoint.Name,
			Position: r3.Vector{X: item.AuxiliaryPoint.X, Y: item.AuxiliaryPoint.Y, Z: item.AuxiliaryPoint.Z},
		}
	}
	return req, nil
}

// SequenceItems converts every item of the file.
func (rf *RequestFile) SequenceItems() ([]SequenceItem, error) {
	items := make([]SequenceItem, 0, len(rf.Items))
	for i, item := range rf.Items {
		req, err := item.MotionPlanRequest(rf.SamplingTime)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		items = append(items, SequenceItem{Motion: item.Motion, Request: req, BlendRadius: item.BlendRadius})
	}
	return items, nil
}

// SaveTrajectoryToFile writes a trajectory as JSON. Times are nanoseconds from start.
func SaveTrajectoryToFile(filePath string, traj *RobotTrajectory) error {
	data, err := json.MarshalIndent(traj, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal trajectory: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write trajectory file: %w", err)
	}

	return nil
}
