package trajgen

import "time"

// RobotStateEqualityEpsilon is the tolerance for treating two waypoints as the same state.
const RobotStateEqualityEpsilon = 1e-8

// AppendTrajectory adds source to the end of result. When the last waypoint of result and the
// first of source are the same state, the duplicate is skipped and source continues from its
// second waypoint. Otherwise every waypoint of source is appended, offset by the end time of
// result. Both trajectories must use the same joint ordering; an empty result adopts it.
func AppendTrajectory(result, source *RobotTrajectory) error {
	if source.Empty() {
		return nil
	}
	if result.Empty() && len(result.JointNames) == 0 {
		result.JointNames = append([]string(nil), source.JointNames...)
		if result.Group == "" {
			result.Group = source.Group
		}
	}
	if !sameJointNames(result.JointNames, source.JointNames) {
		return newError(KindTrajectoryMismatch, "cannot append trajectory of joints %v to one of joints %v",
			source.JointNames, result.JointNames)
	}

	offset := result.Duration()
	first := 0
	var base time.Duration
	if !result.Empty() && IsRobotStateEqual(result.Points[result.Len()-1], source.Points[0], RobotStateEqualityEpsilon) {
		first = 1
		base = source.Points[0].TimeFromStart
	}
	for _, p := range source.Points[first:] {
		p = p.clone()
		p.TimeFromStart = offset + p.TimeFromStart - base
		result.Points = append(result.Points, p)
	}
	return nil
}

func sameJointNames(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
