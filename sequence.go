package trajgen

import (
	"context"
	"fmt"

	"go.viam.com/rdk/logging"
)

// SequenceItem is one motion of a sequence. A positive BlendRadius (mm) rounds off the corner
// to the next item instead of stopping there.
type SequenceItem struct {
	Motion      MotionType
	Request     MotionPlanRequest
	BlendRadius float64
}

// Sequence generates several motions back to back as one trajectory.
type Sequence struct {
	robot      Robot
	generators map[MotionType]*Generator
	blender    *TransitionWindowBlender
	logger     logging.Logger
}

// NewSequence prepares generators for every motion type the limits allow.
func NewSequence(robot Robot, limits *LimitsContainer, opts ...Option) (*Sequence, error) {
	s := &Sequence{
		robot:      robot,
		generators: make(map[MotionType]*Generator),
		blender:    NewTransitionWindowBlender(robot, limits, opts...),
		logger:     logging.NewLogger("trajgen"),
	}
	o := generatorOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger != nil {
		s.logger = o.logger
	}

	motions := []MotionType{PTP}
	if limits.HasCartesianLimits() {
		motions = append(motions, LIN, CIRC)
	}
	for _, m := range motions {
		g, err := NewGenerator(m, robot, limits, opts...)
		if err != nil {
			return nil, err
		}
		s.generators[m] = g
	}
	return s, nil
}

// Generate plans every item starting where the previous one ends. Items are joined at rest unless
// a blend radius is given, in which case the corner is blended.
func (s *Sequence) Generate(ctx context.Context, items []SequenceItem) (*RobotTrajectory, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("empty sequence")
	}
	if items[len(items)-1].BlendRadius != 0 {
		return nil, newError(KindBlendInvalid, "the last item of a sequence cannot be blended")
	}

	segments := make([]*RobotTrajectory, len(items))
	for i := range items {
		item := items[i]
		if item.BlendRadius < 0 {
			return nil, newError(KindBlendInvalid, "item %d: negative blend radius %v", i, item.BlendRadius)
		}
		g, ok := s.generators[item.Motion]
		if !ok {
			return nil, newError(KindInvalidLimits, "item %d: no generator for %s motion", i, item.Motion)
		}
		req := item.Request
		if i > 0 {
			req.StartState = endState(segments[i-1])
		}
		resp, err := g.Generate(ctx, &req)
		if err != nil {
			return nil, fmt.Errorf("item %d (%s): %w", i, item.Motion, err)
		}
		segments[i] = resp.Trajectory
	}

	committed := NewRobotTrajectory(segments[0].Group, segments[0].JointNames)
	pending := segments[0]
	for i := 0; i < len(items)-1; i++ {
		next := segments[i+1]
		if items[i].BlendRadius == 0 {
			if err := AppendTrajectory(committed, pending); err != nil {
				return nil, err
			}
			pending = next
			continue
		}

		link, err := s.robot.GroupTipLink(pending.Group)
		if err != nil {
			return nil, wrapError(KindUnknownPlanningGroup, err, "item %d", i)
		}
		blended, err := s.blender.Blend(ctx, BlendRequest{
			Group:       pending.Group,
			Link:        link,
			First:       pending,
			Second:      next,
			BlendRadius: items[i].BlendRadius,
		})
		if err != nil {
			return nil, fmt.Errorf("blending items %d and %d: %w", i, i+1, err)
		}
		pending = blended
	}
	if err := AppendTrajectory(committed, pending); err != nil {
		return nil, err
	}

	s.logger.Debugf("sequence of %d items: %d points over %v", len(items), committed.Len(), committed.Duration())
	return committed, nil
}

// endState is the resting state at the end of traj.
func endState(traj *RobotTrajectory) RobotState {
	last := traj.Points[traj.Len()-1]
	return RobotState{
		JointNames: append([]string(nil), traj.JointNames...),
		Positions:  append([]float64(nil), last.Positions...),
	}
}
