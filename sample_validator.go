package trajgen

import (
	"fmt"
	"math"
)

const (
	// Intervals at or below this duration (seconds) are too short to differentiate over.
	minSampleDuration = 1e-6
	// Relative slack on limit comparisons; estimates sitting exactly on a limit must pass.
	limitCheckTolerance = 1e-6
)

func exceeds(value, limit float64) bool {
	return math.Abs(value) > math.Abs(limit)*(1+limitCheckTolerance)
}

// VerifySampleJointLimits checks the transition into the current sample for every joint of
// positionCurrent. Velocity is the position difference over durationCurrent; acceleration is the
// velocity difference over the distance between the two interval midpoints. Durations are in
// seconds. velocityLast may omit joints, which are then treated as at rest.
func VerifySampleJointLimits(
	positionLast, velocityLast, positionCurrent map[string]float64,
	durationLast, durationCurrent float64,
	limits *JointLimitsContainer,
) error {
	if durationCurrent <= minSampleDuration {
		return fmt.Errorf("sample duration %v s is too short to verify joint limits", durationCurrent)
	}

	for name, posCurrent := range positionCurrent {
		posLast, ok := positionLast[name]
		if !ok {
			return fmt.Errorf("joint %s missing from previous sample", name)
		}
		l, ok := limits.Limit(name)
		if !ok {
			return fmt.Errorf("no limits for joint %s", name)
		}

		velCurrent := (posCurrent - posLast) / durationCurrent
		if !limits.VerifyVelocityLimit(name, velCurrent) {
			return fmt.Errorf("joint %s: velocity %.6f exceeds limit %.6f", name, velCurrent, l.MaxVelocity)
		}

		velLast := velocityLast[name]
		acc := (velCurrent - velLast) / ((durationLast + durationCurrent) / 2)
		if math.Abs(velLast) <= math.Abs(velCurrent) {
			if l.HasAccelerationLimits && exceeds(acc, l.MaxAcceleration) {
				return fmt.Errorf("joint %s: acceleration %.6f exceeds limit %.6f", name, acc, l.MaxAcceleration)
			}
		} else {
			if l.HasDecelerationLimits && exceeds(acc, l.MaxDeceleration) {
				return fmt.Errorf("joint %s: deceleration %.6f exceeds limit %.6f", name, acc, l.MaxDeceleration)
			}
		}
	}
	return nil
}
