package trajgen

import (
	"context"
	"math"
	"time"
)

type ptpPlanner struct {
	g *Generator
}

func (p *ptpPlanner) validateCommand(req *MotionPlanRequest) error {
	if req.AuxiliaryPoint != nil {
		return newError(KindAuxiliaryPointNotAllowed, "PTP motion does not take an auxiliary point")
	}
	return nil
}

// extractMotionPlanInfo resolves the goal in joint space. A Cartesian goal is solved with IK
// seeded from the start state.
func (p *ptpPlanner) extractMotionPlanInfo(ctx context.Context, req *MotionPlanRequest) (*MotionPlanInfo, error) {
	names, startJoints, err := groupStartJoints(p.g.robot, req)
	if err != nil {
		return nil, err
	}
	info := &MotionPlanInfo{Group: req.Group, StartJoints: startJoints}

	goal := req.GoalConstraints[0]
	if len(goal.JointConstraints) > 0 {
		info.GoalJoints = jointGoal(goal)
		if info.Link, err = p.g.robot.GroupTipLink(req.Group); err != nil {
			return nil, wrapError(KindUnknownPlanningGroup, err, "group %s", req.Group)
		}
		return info, nil
	}

	info.Link, info.GoalPose = cartesianGoal(goal)
	solution, err := p.g.robot.ComputePoseIK(ctx, IKRequest{
		Group:              req.Group,
		Link:               info.Link,
		Pose:               info.GoalPose,
		Frame:              p.g.robot.ModelFrame(),
		Seed:               startJoints,
		Timeout:            p.g.opts.ikTimeout,
		CheckSelfCollision: p.g.opts.checkSelfCollision,
	})
	if err != nil {
		return nil, wrapError(KindNoIKSolution, err, "no IK solution for goal pose of %s", info.Link)
	}
	if err := missingJoints(names, solution); err != nil {
		return nil, wrapError(KindNoIKSolution, err, "incomplete IK solution")
	}
	info.GoalJoints = solution
	return info, nil
}

// plan moves every joint on a trapezoid under the most strict limit of the group. The joint with
// the longest motion leads; the others reuse its phase durations so that all joints start and
// stop together.
func (p *ptpPlanner) plan(ctx context.Context, req *MotionPlanRequest, info *MotionPlanInfo, samplingTime float64) (*RobotTrajectory, error) {
	names, err := p.g.robot.GroupJointNames(info.Group)
	if err != nil {
		return nil, wrapError(KindUnknownPlanningGroup, err, "group %s", info.Group)
	}
	jointLimits := p.g.limits.JointLimits()
	common, err := jointLimits.CommonLimit(names)
	if err != nil {
		return nil, wrapError(KindInvalidLimits, err, "group %s", info.Group)
	}
	if !common.HasVelocityLimits || !common.HasAccelerationLimits {
		return nil, newError(KindInvalidLimits, "group %s lacks velocity or acceleration limits", info.Group)
	}
	maxVel := common.MaxVelocity * req.MaxVelocityScalingFactor
	maxAcc := common.MaxAcceleration * req.MaxAccelerationScalingFactor
	maxDec := maxAcc
	if common.HasDecelerationLimits {
		maxDec = math.Abs(common.MaxDeceleration) * req.MaxAccelerationScalingFactor
	}

	profiles := make([]*TrapezoidProfile, len(names))
	signs := make([]float64, len(names))
	lead := -1
	for i, name := range names {
		delta := info.GoalJoints[name] - info.StartJoints[name]
		signs[i] = 1
		if delta < 0 {
			signs[i] = -1
		}
		profiles[i], err = NewTrapezoidProfile(math.Abs(delta), maxVel, maxAcc, maxDec)
		if err != nil {
			return nil, wrapError(KindPlanningFailed, err, "joint %s", name)
		}
		if lead < 0 || profiles[i].Duration() > profiles[lead].Duration() {
			lead = i
		}
	}

	p.g.opts.logger.Debugf("PTP led by joint %s: %.3f s at peak velocity %.4f",
		names[lead], profiles[lead].Duration(), profiles[lead].PeakVelocity())
	tAcc, tConst, tDec := profiles[lead].Phases()
	for i, name := range names {
		if i == lead {
			continue
		}
		profiles[i], err = WithPhaseDurations(profiles[i].Distance(), tAcc, tConst, tDec)
		if err != nil {
			return nil, wrapError(KindPlanningFailed, err, "joint %s", name)
		}
	}

	sampled := sampleTimes(profiles[lead].Duration(), samplingTime)
	times := make([]time.Duration, len(sampled))
	for i, t := range sampled {
		times[i] = seconds(t)
	}
	interpolate := func(_ context.Context, i int, _ map[string]float64) (map[string]float64, error) {
		positions := make(map[string]float64, len(names))
		for j, name := range names {
			if i == len(sampled)-1 {
				positions[name] = info.GoalJoints[name]
				continue
			}
			positions[name] = info.StartJoints[name] + signs[j]*profiles[j].Pos(sampled[i])
		}
		return positions, nil
	}
	return sampleJointTrajectory(ctx, info.Group, names, times, jointLimits,
		info.StartJoints, nil, true, interpolate)
}
