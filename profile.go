package trajgen

import (
	"fmt"
	"math"
)

// TrapezoidProfile is a rest-to-rest motion over a distance: constant acceleration, cruise at
// the peak velocity, constant deceleration. When the distance is too short to reach the maximum
// velocity the cruise phase vanishes and the profile is a triangle.
type TrapezoidProfile struct {
	distance float64
	tAcc     float64
	tConst   float64
	tDec     float64
	vPeak    float64
	acc      float64
	dec      float64
}

// NewTrapezoidProfile builds the fastest profile over distance (>= 0) under the given bounds.
// maxDec is a magnitude.
func NewTrapezoidProfile(distance, maxVel, maxAcc, maxDec float64) (*TrapezoidProfile, error) {
	if distance < 0 {
		return nil, fmt.Errorf("distance must not be negative, got %v", distance)
	}
	if maxVel <= 0 || maxAcc <= 0 || maxDec <= 0 {
		return nil, fmt.Errorf("profile bounds must be positive (vel %v, acc %v, dec %v)", maxVel, maxAcc, maxDec)
	}
	p := &TrapezoidProfile{distance: distance, acc: maxAcc, dec: maxDec}
	if distance == 0 {
		return p, nil
	}

	rampDistance := maxVel*maxVel/(2*maxAcc) + maxVel*maxVel/(2*maxDec)
	if distance >= rampDistance {
		p.vPeak = maxVel
		p.tAcc = maxVel / maxAcc
		p.tDec = maxVel / maxDec
		p.tConst = (distance - rampDistance) / maxVel
	} else {
		p.vPeak = math.Sqrt(2 * distance * maxAcc * maxDec / (maxAcc + maxDec))
		p.tAcc = p.vPeak / maxAcc
		p.tDec = p.vPeak / maxDec
	}
	return p, nil
}

// WithPhaseDurations builds the profile covering distance with prescribed phase durations. Used
// to synchronize several axes to a leading one.
func WithPhaseDurations(distance, tAcc, tConst, tDec float64) (*TrapezoidProfile, error) {
	if distance < 0 || tAcc < 0 || tConst < 0 || tDec < 0 {
		return nil, fmt.Errorf("invalid phase durations (%v, %v, %v) for distance %v", tAcc, tConst, tDec, distance)
	}
	p := &TrapezoidProfile{distance: distance, tAcc: tAcc, tConst: tConst, tDec: tDec}
	if distance == 0 {
		return p, nil
	}
	denom := tAcc/2 + tConst + tDec/2
	if denom <= 0 {
		return nil, fmt.Errorf("zero duration for non-zero distance %v", distance)
	}
	p.vPeak = distance / denom
	if tAcc > 0 {
		p.acc = p.vPeak / tAcc
	}
	if tDec > 0 {
		p.dec = p.vPeak / tDec
	}
	return p, nil
}

func (p *TrapezoidProfile) Distance() float64 {
	return p.distance
}

func (p *TrapezoidProfile) Duration() float64 {
	return p.tAcc + p.tConst + p.tDec
}

// Phases returns the acceleration, cruise and deceleration durations.
func (p *TrapezoidProfile) Phases() (tAcc, tConst, tDec float64) {
	return p.tAcc, p.tConst, p.tDec
}

func (p *TrapezoidProfile) PeakVelocity() float64 {
	return p.vPeak
}

// Pos is the distance covered at time t.
func (p *TrapezoidProfile) Pos(t float64) float64 {
	total := p.Duration()
	switch {
	case t <= 0 || p.distance == 0:
		return 0
	case t >= total:
		return p.distance
	case t < p.tAcc:
		return 0.5 * p.acc * t * t
	case t < p.tAcc+p.tConst:
		return 0.5*p.vPeak*p.tAcc + p.vPeak*(t-p.tAcc)
	default:
		r := total - t
		return p.distance - 0.5*p.dec*r*r
	}
}

// PathProfile times the traversal of a Path.
type PathProfile struct {
	profile *TrapezoidProfile
}

func (pp *PathProfile) Duration() float64 {
	return pp.profile.Duration()
}

// Progress is the traversed fraction of the path at time t, in [0, 1].
func (pp *PathProfile) Progress(t float64) float64 {
	if pp.profile.Distance() == 0 {
		if t > 0 {
			return 1
		}
		return 0
	}
	return math.Min(1, math.Max(0, pp.profile.Pos(t)/pp.profile.Distance()))
}

// CartesianTrapVelocityProfile times a path under scaled Cartesian limits. The translational
// and rotational profiles are computed separately and the slower one drives the path.
func CartesianTrapVelocityProfile(velScale, accScale float64, limit CartesianLimit, path Path) (*PathProfile, error) {
	trans, err := NewTrapezoidProfile(
		path.Length(),
		limit.MaxTransVel*velScale,
		limit.MaxTransAcc*accScale,
		math.Abs(limit.MaxTransDec)*accScale,
	)
	if err != nil {
		return nil, err
	}
	rot, err := NewTrapezoidProfile(
		path.Angle(),
		limit.MaxRotVel*velScale,
		limit.MaxRotAcc()*accScale,
		math.Abs(limit.MaxRotDec())*accScale,
	)
	if err != nil {
		return nil, err
	}
	if rot.Duration() > trans.Duration() {
		return &PathProfile{profile: rot}, nil
	}
	return &PathProfile{profile: trans}, nil
}

// sampleTimes returns 0, dt, 2dt, ... up to and including duration. The last interval may be
// shorter than dt; a sample closer than minSampleDuration to the end is dropped. Times are
// rounded to nanoseconds so they survive the conversion to time.Duration unchanged.
func sampleTimes(duration, samplingTime float64) []float64 {
	var times []float64
	for k := 0; ; k++ {
		t := float64(k) * samplingTime
		if t >= duration-minSampleDuration {
			break
		}
		times = append(times, seconds(t).Seconds())
	}
	return append(times, seconds(duration).Seconds())
}
