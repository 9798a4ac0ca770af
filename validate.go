package trajgen

import (
	"math"
)

const (
	minScalingFactor = 0.0001
	maxScalingFactor = 1.
	// Start velocities above this magnitude are rejected.
	velocityTolerance = 1e-8
)

func isScalingFactorValid(f float64) bool {
	return f > minScalingFactor && f <= maxScalingFactor
}

// validateRequest checks everything about a request that does not depend on the motion type.
func validateRequest(robot Robot, limits *LimitsContainer, req *MotionPlanRequest) error {
	if !isScalingFactorValid(req.MaxVelocityScalingFactor) {
		return newError(KindVelocityScalingIncorrect, "velocity scaling factor %v not in (%v, %v]",
			req.MaxVelocityScalingFactor, minScalingFactor, maxScalingFactor)
	}
	if !isScalingFactorValid(req.MaxAccelerationScalingFactor) {
		return newError(KindAccelerationScalingIncorrect, "acceleration scaling factor %v not in (%v, %v]",
			req.MaxAccelerationScalingFactor, minScalingFactor, maxScalingFactor)
	}
	// zero keeps the generator's sampling time
	if math.IsNaN(req.SamplingTime) || (req.SamplingTime != 0 && req.SamplingTime <= minSampleDuration) {
		return newError(KindSamplingTimeIncorrect, "sampling time %v s must be greater than %v s",
			req.SamplingTime, minSampleDuration)
	}
	if !robot.HasGroup(req.Group) {
		return newError(KindUnknownPlanningGroup, "unknown planning group %q", req.Group)
	}
	if err := checkStartState(robot, limits, req.StartState); err != nil {
		return err
	}
	return checkGoalConstraints(robot, limits, req)
}

// positionInRange checks the configured limits first and the model bounds second.
func positionInRange(robot Robot, limits *LimitsContainer, joint string, position float64) bool {
	if !limits.JointLimits().VerifyPositionLimit(joint, position) {
		return false
	}
	if b, ok := robot.JointBounds(joint); ok {
		return position >= b.Min && position <= b.Max
	}
	return true
}

func checkStartState(robot Robot, limits *LimitsContainer, state RobotState) error {
	if len(state.JointNames) == 0 {
		return newError(KindNoJointNamesInStartState, "start state has no joint names")
	}
	if len(state.JointNames) != len(state.Positions) {
		return newError(KindSizeMismatchInStartState, "start state has %d joint names but %d positions",
			len(state.JointNames), len(state.Positions))
	}
	if len(state.Velocities) != 0 && len(state.Velocities) != len(state.JointNames) {
		return newError(KindSizeMismatchInStartState, "start state has %d joint names but %d velocities",
			len(state.JointNames), len(state.Velocities))
	}
	for i, name := range state.JointNames {
		if !positionInRange(robot, limits, name, state.Positions[i]) {
			return newError(KindJointsOfStartStateOutOfRange, "joint %s of start state at %v is out of range",
				name, state.Positions[i])
		}
	}
	for i, v := range state.Velocities {
		if math.Abs(v) > velocityTolerance {
			return newError(KindNonZeroVelocityInStartState, "joint %s of start state moves with velocity %v",
				state.JointNames[i], v)
		}
	}
	return nil
}

func isJointGoalGiven(c Constraints) bool {
	return len(c.JointConstraints) > 0
}

func isCartesianGoalGiven(c Constraints) bool {
	return len(c.PositionConstraints) == 1 && len(c.OrientationConstraints) == 1
}

// isOnlyOneGoalTypeGiven is true when the goal is purely a joint goal or purely a Cartesian one.
func isOnlyOneGoalTypeGiven(c Constraints) bool {
	joint := isJointGoalGiven(c)
	cartesian := len(c.PositionConstraints) > 0 || len(c.OrientationConstraints) > 0
	if joint {
		return !cartesian
	}
	return isCartesianGoalGiven(c)
}

func checkGoalConstraints(robot Robot, limits *LimitsContainer, req *MotionPlanRequest) error {
	if len(req.GoalConstraints) != 1 {
		return newError(KindNotExactlyOneGoalConstraintGiven, "%d goal constraints given, expected exactly one",
			len(req.GoalConstraints))
	}
	goal := req.GoalConstraints[0]
	if !isOnlyOneGoalTypeGiven(goal) {
		return newError(KindOnlyOneGoalTypeAllowed,
			"goal must be either joint constraints or one position and one orientation constraint")
	}
	if isJointGoalGiven(goal) {
		return checkJointGoalConstraint(robot, limits, req.StartState, req.Group, goal)
	}
	return checkCartesianGoalConstraint(robot, req.Group, goal)
}

func checkJointGoalConstraint(robot Robot, limits *LimitsContainer, start RobotState, group string, goal Constraints) error {
	groupJoints, err := robot.GroupJointNames(group)
	if err != nil {
		return wrapError(KindUnknownPlanningGroup, err, "group %s", group)
	}
	inGroup := make(map[string]bool, len(groupJoints))
	for _, name := range groupJoints {
		inGroup[name] = true
	}
	inStart := make(map[string]bool, len(start.JointNames))
	for _, name := range start.JointNames {
		inStart[name] = true
	}

	inGoal := make(map[string]bool, len(goal.JointConstraints))
	for _, jc := range goal.JointConstraints {
		if !inStart[jc.JointName] {
			return newError(KindStartStateGoalStateMismatch, "goal joint %s is not part of the start state", jc.JointName)
		}
		inGoal[jc.JointName] = true
	}
	for _, name := range start.JointNames {
		if inGroup[name] && !inGoal[name] {
			return newError(KindStartStateGoalStateMismatch, "start joint %s has no goal", name)
		}
	}

	for _, jc := range goal.JointConstraints {
		if !inGroup[jc.JointName] {
			return newError(KindJointConstraintDoesNotBelongToGroup, "joint %s does not belong to group %s",
				jc.JointName, group)
		}
		if !positionInRange(robot, limits, jc.JointName, jc.Position) {
			return newError(KindJointsOfGoalOutOfRange, "goal of joint %s at %v is out of range",
				jc.JointName, jc.Position)
		}
	}
	return nil
}

func checkCartesianGoalConstraint(robot Robot, group string, goal Constraints) error {
	pc := goal.PositionConstraints[0]
	oc := goal.OrientationConstraints[0]
	if pc.LinkName == "" {
		return newError(KindPositionConstraintNameMissing, "position constraint has no link name")
	}
	if oc.LinkName == "" {
		return newError(KindOrientationConstraintNameMissing, "orientation constraint has no link name")
	}
	if pc.LinkName != oc.LinkName {
		return newError(KindPositionOrientationConstraintNameMismatch,
			"position constraint on %s but orientation constraint on %s", pc.LinkName, oc.LinkName)
	}
	if !robot.GroupSupportsIK(group, pc.LinkName) {
		return newError(KindNoIKSolverAvailable, "no IK solver for group %s and link %s", group, pc.LinkName)
	}
	if len(pc.PrimitivePoses) == 0 {
		return newError(KindNoPrimitivePoseGiven, "position constraint on %s has no primitive pose", pc.LinkName)
	}
	if oc.Orientation == nil {
		return newError(KindNoPrimitivePoseGiven, "orientation constraint on %s has no orientation", oc.LinkName)
	}
	return nil
}
