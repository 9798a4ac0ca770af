package trajgen

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/referenceframe"
	"go.viam.com/rdk/spatialmath"
	"gonum.org/v1/gonum/optimize"
)

const (
	defaultIKPositionTolerance    = 0.01 // mm
	defaultIKOrientationTolerance = 1e-3 // rad
	// mm of position error equivalent to one radian of orientation error
	orientationWeight = 100.
	worldFrame        = "world"
)

// ArmRobotConfig configures the single planning group of an ArmRobot.
type ArmRobotConfig struct {
	ModelName               string
	GroupName               string
	TipLink                 string
	PositionToleranceMM     float64
	OrientationToleranceRad float64
}

// ArmRobot implements Robot on top of an rdk kinematic model. The model is a serial chain and
// forms a single planning group whose tip is the end of the chain.
type ArmRobot struct {
	model      referenceframe.Model
	group      string
	tipLink    string
	jointNames []string
	chain      []string
	bounds     []referenceframe.Limit

	positionTolerance    float64
	orientationTolerance float64

	logger logging.Logger
}

// chainFrameJSON is the part of a link or joint entry needed to order the chain.
type chainFrameJSON struct {
	ID     string `json:"id"`
	Type   string `json:"type,omitempty"`
	Parent string `json:"parent"`
}

type modelChainJSON struct {
	Name   string           `json:"name"`
	Links  []chainFrameJSON `json:"links"`
	Joints []chainFrameJSON `json:"joints"`
}

// chainOrder walks the kinematic chain from the world frame and returns every frame name in
// order together with the names of the moving joints.
func (m modelChainJSON) chainOrder() (frames, joints []string, err error) {
	children := map[string]struct {
		id      string
		isJoint bool
	}{}
	add := func(id, parent string, isJoint bool) error {
		if parent == "" {
			parent = worldFrame
		}
		if _, dup := children[parent]; dup {
			return fmt.Errorf("frame %s has more than one child, only serial chains are supported", parent)
		}
		children[parent] = struct {
			id      string
			isJoint bool
		}{id, isJoint}
		return nil
	}
	for _, l := range m.Links {
		if err := add(l.ID, l.Parent, false); err != nil {
			return nil, nil, err
		}
	}
	for _, j := range m.Joints {
		if err := add(j.ID, j.Parent, j.Type != "fixed"); err != nil {
			return nil, nil, err
		}
	}

	cur := worldFrame
	for i := 0; i <= len(children); i++ {
		next, ok := children[cur]
		if !ok {
			return frames, joints, nil
		}
		frames = append(frames, next.id)
		if next.isJoint {
			joints = append(joints, next.id)
		}
		cur = next.id
	}
	return nil, nil, errors.New("kinematic chain contains a cycle")
}

// LoadArmRobot parses an rdk JSON kinematic model and wraps it as a Robot.
func LoadArmRobot(modelJSON []byte, cfg ArmRobotConfig, logger logging.Logger) (*ArmRobot, error) {
	m := &referenceframe.ModelConfigJSON{
		OriginalFile: &referenceframe.ModelFile{
			Bytes:     modelJSON,
			Extension: "json",
		},
	}
	if err := json.Unmarshal(modelJSON, m); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal json file")
	}

	var chain modelChainJSON
	if err := json.Unmarshal(modelJSON, &chain); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal kinematic chain")
	}
	modelName := cfg.ModelName
	if modelName == "" {
		modelName = chain.Name
	}
	model, err := m.ParseConfig(modelName)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse kinematic model")
	}

	frames, joints, err := chain.chainOrder()
	if err != nil {
		return nil, err
	}
	return NewArmRobot(model, frames, joints, cfg, logger)
}

// NewArmRobot wraps an already parsed model. frames lists the chain from base to tip and
// jointNames names each degree of freedom of the model in order.
func NewArmRobot(
	model referenceframe.Model,
	frames, jointNames []string,
	cfg ArmRobotConfig,
	logger logging.Logger,
) (*ArmRobot, error) {
	bounds := model.DoF()
	if len(bounds) != len(jointNames) {
		return nil, fmt.Errorf("model has %d degrees of freedom but %d joints were named", len(bounds), len(jointNames))
	}
	if len(frames) == 0 {
		return nil, errors.New("kinematic chain is empty")
	}
	if logger == nil {
		logger = logging.NewLogger("trajgen")
	}

	r := &ArmRobot{
		model:                model,
		group:                cfg.GroupName,
		tipLink:              cfg.TipLink,
		jointNames:           append([]string(nil), jointNames...),
		chain:                append([]string(nil), frames...),
		bounds:               bounds,
		positionTolerance:    cfg.PositionToleranceMM,
		orientationTolerance: cfg.OrientationToleranceRad,
		logger:               logger,
	}
	if r.group == "" {
		r.group = model.Name()
	}
	if r.tipLink == "" {
		r.tipLink = frames[len(frames)-1]
	}
	if r.tipLink != frames[len(frames)-1] {
		return nil, fmt.Errorf("tip link %s is not the end of the kinematic chain", r.tipLink)
	}
	if r.positionTolerance <= 0 {
		r.positionTolerance = defaultIKPositionTolerance
	}
	if r.orientationTolerance <= 0 {
		r.orientationTolerance = defaultIKOrientationTolerance
	}
	return r, nil
}

// Model returns the wrapped kinematic model.
func (r *ArmRobot) Model() referenceframe.Model {
	return r.model
}

func (r *ArmRobot) ModelFrame() string {
	return worldFrame
}

func (r *ArmRobot) HasGroup(group string) bool {
	return group == r.group
}

func (r *ArmRobot) GroupJointNames(group string) ([]string, error) {
	if !r.HasGroup(group) {
		return nil, fmt.Errorf("unknown planning group %q", group)
	}
	return append([]string(nil), r.jointNames...), nil
}

func (r *ArmRobot) GroupTipLink(group string) (string, error) {
	if !r.HasGroup(group) {
		return "", fmt.Errorf("unknown planning group %q", group)
	}
	return r.tipLink, nil
}

func (r *ArmRobot) GroupSupportsIK(group, link string) bool {
	return r.HasGroup(group) && link == r.tipLink
}

func (r *ArmRobot) JointBounds(joint string) (referenceframe.Limit, bool) {
	for i, name := range r.jointNames {
		if name == joint {
			return r.bounds[i], true
		}
	}
	return referenceframe.Limit{}, false
}

func (r *ArmRobot) inputs(joints map[string]float64) []referenceframe.Input {
	values := make([]float64, len(r.jointNames))
	for i, name := range r.jointNames {
		values[i] = joints[name]
	}
	return values
}

func (r *ArmRobot) jointMap(values []float64) map[string]float64 {
	m := make(map[string]float64, len(values))
	for i, name := range r.jointNames {
		m[name] = values[i]
	}
	return m
}

// ComputeLinkFK returns the pose of link in the model frame. Joints missing from the map are zero.
func (r *ArmRobot) ComputeLinkFK(link string, joints map[string]float64) (spatialmath.Pose, error) {
	if link != r.tipLink {
		return nil, fmt.Errorf("forward kinematics only available for link %s, not %s", r.tipLink, link)
	}
	pose, err := r.model.Transform(r.inputs(joints))
	if err != nil {
		return nil, errors.Wrap(err, "failed to compute forward kinematics")
	}
	return pose, nil
}

func (r *ArmRobot) clamp(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = math.Max(r.bounds[i].Min, math.Min(r.bounds[i].Max, v))
	}
	return out
}

// ComputePoseIK solves for the tip pose with a Nelder-Mead search seeded from req.Seed. The
// search stops at req.Timeout; a result outside the configured tolerances is a failure.
func (r *ArmRobot) ComputePoseIK(ctx context.Context, req IKRequest) (map[string]float64, error) {
	if !r.GroupSupportsIK(req.Group, req.Link) {
		return nil, fmt.Errorf("no IK solver for group %q and link %q", req.Group, req.Link)
	}
	if req.Frame != "" && req.Frame != r.ModelFrame() {
		return nil, fmt.Errorf("pose frame %s does not match model frame %s", req.Frame, r.ModelFrame())
	}
	if req.Pose == nil {
		return nil, errors.New("no target pose")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	seed := r.clamp(r.inputs(req.Seed))
	target := req.Pose
	cost := func(x []float64) float64 {
		pose, err := r.model.Transform(r.clamp(x))
		if err != nil {
			return math.Inf(1)
		}
		posErr := pose.Point().Sub(target.Point()).Norm()
		rotErr := orientationDistance(pose.Orientation(), target.Orientation())
		return posErr*posErr + orientationWeight*orientationWeight*rotErr*rotErr
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = defaultIKTimeout
	}
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < timeout {
		timeout = time.Until(deadline)
	}
	settings := &optimize.Settings{
		Runtime:         timeout,
		FuncEvaluations: 4000 * len(seed),
		Converger:       &optimize.FunctionConverge{Absolute: 1e-14, Iterations: 200},
	}
	result, err := optimize.Minimize(optimize.Problem{Func: cost}, seed, settings, &optimize.NelderMead{})
	if result == nil {
		return nil, errors.Wrap(err, "IK search failed")
	}

	solution := r.clamp(result.X)
	pose, terr := r.model.Transform(solution)
	if terr != nil {
		return nil, errors.Wrap(terr, "IK solution is not valid")
	}
	posErr := pose.Point().Sub(target.Point()).Norm()
	rotErr := orientationDistance(pose.Orientation(), target.Orientation())
	if posErr > r.positionTolerance || rotErr > r.orientationTolerance {
		if err != nil {
			return nil, errors.Wrapf(err, "no IK solution within tolerance (position error %.4f mm, orientation error %.5f rad)", posErr, rotErr)
		}
		return nil, fmt.Errorf("no IK solution within tolerance (position error %.4f mm, orientation error %.5f rad)", posErr, rotErr)
	}

	joints := r.jointMap(solution)
	if req.CheckSelfCollision {
		colliding, cerr := r.IsStateColliding(req.Group, joints)
		if cerr != nil {
			return nil, cerr
		}
		if colliding {
			return nil, errors.New("IK solution is in self collision")
		}
	}
	return joints, nil
}

// IsStateColliding reports whether two non-adjacent links of the chain touch.
func (r *ArmRobot) IsStateColliding(group string, joints map[string]float64) (bool, error) {
	if !r.HasGroup(group) {
		return false, fmt.Errorf("unknown planning group %q", group)
	}
	gif, err := r.model.Geometries(r.inputs(joints))
	if err != nil {
		return false, err
	}
	geoms := gif.Geometries()

	index := make(map[string]int, len(r.chain))
	for i, name := range r.chain {
		index[name] = i
	}
	adjacent := func(a, b string) bool {
		ia, okA := index[a]
		ib, okB := index[b]
		return okA && okB && math.Abs(float64(ia-ib)) <= 1
	}

	for i := 0; i < len(geoms); i++ {
		for j := i + 1; j < len(geoms); j++ {
			if adjacent(geoms[i].Label(), geoms[j].Label()) {
				continue
			}
			dist, err := geoms[i].DistanceFrom(geoms[j])
			if err != nil {
				return false, err
			}
			if dist <= 0 {
				r.logger.Debugf("links %s and %s collide", geoms[i].Label(), geoms[j].Label())
				return true, nil
			}
		}
	}
	return false, nil
}

// orientationDistance is the rotation angle between two orientations, in [0, pi].
func orientationDistance(a, b spatialmath.Orientation) float64 {
	theta := math.Abs(spatialmath.OrientationBetween(a, b).AxisAngles().Theta)
	theta = math.Mod(theta, 2*math.Pi)
	if theta > math.Pi {
		theta = 2*math.Pi - theta
	}
	return theta
}
