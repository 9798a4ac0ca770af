package trajgen

import "context"

type circPlanner struct {
	g *Generator
}

func (p *circPlanner) validateCommand(req *MotionPlanRequest) error {
	if req.AuxiliaryPoint == nil {
		return newError(KindNoAuxiliaryPoint, "CIRC motion needs a %q or %q point", AuxiliaryCenter, AuxiliaryInterim)
	}
	switch req.AuxiliaryPoint.Name {
	case AuxiliaryCenter, AuxiliaryInterim:
		return nil
	default:
		return newError(KindUnknownAuxiliaryPointName, "auxiliary point %q, expected %q or %q",
			req.AuxiliaryPoint.Name, AuxiliaryCenter, AuxiliaryInterim)
	}
}

func (p *circPlanner) extractMotionPlanInfo(_ context.Context, req *MotionPlanRequest) (*MotionPlanInfo, error) {
	return extractCartesianInfo(p.g.robot, req)
}

// plan moves the tool on the arc defined by the auxiliary point. An arc that cannot be built
// fails before any sampling.
func (p *circPlanner) plan(ctx context.Context, req *MotionPlanRequest, info *MotionPlanInfo, samplingTime float64) (*RobotTrajectory, error) {
	var (
		path *CirclePath
		err  error
	)
	aux := info.AuxiliaryPoint
	if aux.Name == AuxiliaryCenter {
		path, err = NewCirclePathFromCenter(info.StartPose, aux.Position, info.GoalPose)
	} else {
		path, err = NewCirclePathFromInterim(info.StartPose, aux.Position, info.GoalPose)
	}
	if err != nil {
		return nil, err
	}
	p.g.opts.logger.Debugf("arc of radius %.3f mm sweeping %.4f rad", path.Radius(), path.SweepAngle())
	return p.g.generateCartesian(ctx, req, info, path, samplingTime)
}
