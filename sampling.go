package trajgen

import (
	"math"
)

// DetermineAndCheckSamplingTime finds the sampling time shared by two trajectories and checks
// that every interval except the last of each matches it within epsilon (seconds). The reference
// is the first interval of the first trajectory, or of the second if the first is too short.
func DetermineAndCheckSamplingTime(first, second *RobotTrajectory, epsilon float64) (float64, error) {
	// the last interval may be shorter and is not counted
	n1 := first.Len() - 1
	n2 := second.Len() - 1
	if n1 < 2 && n2 < 2 {
		return 0, newError(KindSamplingTimeMismatch, "both trajectories are too short to determine a sampling time")
	}

	var samplingTime float64
	if n1 >= 2 {
		samplingTime = first.DurationFromPrevious(1).Seconds()
	} else {
		samplingTime = second.DurationFromPrevious(1).Seconds()
	}

	for i := 1; i < max(n1, n2); i++ {
		if i < n1 {
			if d := first.DurationFromPrevious(i).Seconds(); math.Abs(samplingTime-d) > epsilon {
				return 0, newError(KindSamplingTimeMismatch,
					"first trajectory violates sampling time %v s between waypoints %d and %d (%v s)", samplingTime, i-1, i, d)
			}
		}
		if i < n2 {
			if d := second.DurationFromPrevious(i).Seconds(); math.Abs(samplingTime-d) > epsilon {
				return 0, newError(KindSamplingTimeMismatch,
					"second trajectory violates sampling time %v s between waypoints %d and %d (%v s)", samplingTime, i-1, i, d)
			}
		}
	}
	return samplingTime, nil
}
