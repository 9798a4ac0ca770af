package trajgen

import "context"

type linPlanner struct {
	g *Generator
}

func (p *linPlanner) validateCommand(req *MotionPlanRequest) error {
	if req.AuxiliaryPoint != nil {
		return newError(KindAuxiliaryPointNotAllowed, "LIN motion does not take an auxiliary point")
	}
	return nil
}

func (p *linPlanner) extractMotionPlanInfo(_ context.Context, req *MotionPlanRequest) (*MotionPlanInfo, error) {
	return extractCartesianInfo(p.g.robot, req)
}

// plan moves the tool on a straight line from the start to the goal pose.
func (p *linPlanner) plan(ctx context.Context, req *MotionPlanRequest, info *MotionPlanInfo, samplingTime float64) (*RobotTrajectory, error) {
	return p.g.generateCartesian(ctx, req, info, NewLinePath(info.StartPose, info.GoalPose), samplingTime)
}
