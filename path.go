package trajgen

import (
	"math"

	"github.com/golang/geo/r3"
	"go.viam.com/rdk/spatialmath"
)

const (
	// Points closer than this (mm) are considered coincident.
	pathPointTolerance = 1e-6
	// Start and goal may differ in their distance to the circle center by this much (mm).
	circleRadiusTolerance = 1e-3
	// Sine of the smallest angle three points may span before they count as collinear.
	collinearTolerance = 1e-6
)

// Path is a geometric tool path parameterized by s in [0, 1].
type Path interface {
	// Length of the translational part, mm.
	Length() float64
	// Angle of the rotational part, radians.
	Angle() float64
	Pose(s float64) spatialmath.Pose
}

// LinePath moves the tool on a straight line while rotating from the start to the goal
// orientation.
type LinePath struct {
	start, goal spatialmath.Pose
}

func NewLinePath(start, goal spatialmath.Pose) *LinePath {
	return &LinePath{start: start, goal: goal}
}

func (l *LinePath) Length() float64 {
	return l.goal.Point().Sub(l.start.Point()).Norm()
}

func (l *LinePath) Angle() float64 {
	return orientationDistance(l.start.Orientation(), l.goal.Orientation())
}

func (l *LinePath) Pose(s float64) spatialmath.Pose {
	s = math.Max(0, math.Min(1, s))
	p0, p1 := l.start.Point(), l.goal.Point()
	point := p0.Add(p1.Sub(p0).Mul(s))
	return spatialmath.NewPose(point, spatialmath.Interpolate(l.start, l.goal, s).Orientation())
}

// CirclePath moves the tool on a circular arc around center.
type CirclePath struct {
	start, goal spatialmath.Pose
	center      r3.Vector
	radius      float64
	// orthonormal basis of the arc plane; e1 points at the start
	e1, e2 r3.Vector
	theta  float64
}

func invalidCircle(format string, args ...interface{}) error {
	return newError(KindInvalidCirclePath, format, args...)
}

// NewCirclePathFromCenter builds the shorter arc from start to goal around center. Start and
// goal must be equidistant from the center and must not be collinear with it.
func NewCirclePathFromCenter(start spatialmath.Pose, center r3.Vector, goal spatialmath.Pose) (*CirclePath, error) {
	u := start.Point().Sub(center)
	v := goal.Point().Sub(center)
	r1, r2 := u.Norm(), v.Norm()
	if r1 < pathPointTolerance || r2 < pathPointTolerance {
		return nil, invalidCircle("start or goal coincides with the circle center")
	}
	if math.Abs(r1-r2) > circleRadiusTolerance {
		return nil, invalidCircle("start and goal have different distances to the center (%.6f, %.6f)", r1, r2)
	}
	n := u.Cross(v)
	if n.Norm() < collinearTolerance*r1*r2 {
		return nil, invalidCircle("start, center and goal are collinear, the circle plane is undefined")
	}
	return newCirclePath(start, goal, center, n.Normalize(), r1), nil
}

// NewCirclePathFromInterim builds the arc from start through interim to goal.
func NewCirclePathFromInterim(start spatialmath.Pose, interim r3.Vector, goal spatialmath.Pose) (*CirclePath, error) {
	a := start.Point()
	u := interim.Sub(a)
	w := goal.Point().Sub(a)
	if u.Norm() < pathPointTolerance || w.Norm() < pathPointTolerance ||
		interim.Sub(goal.Point()).Norm() < pathPointTolerance {
		return nil, invalidCircle("start, interim and goal must be distinct points")
	}
	n := u.Cross(w)
	if n.Norm() < collinearTolerance*u.Norm()*w.Norm() {
		return nil, invalidCircle("start, interim and goal are collinear")
	}
	// circumcenter of the three points
	center := a.Add(u.Mul(w.Norm2()).Sub(w.Mul(u.Norm2())).Cross(n).Mul(-1 / (2 * n.Norm2())))
	radius := a.Sub(center).Norm()
	return newCirclePath(start, goal, center, n.Normalize(), radius), nil
}

// newCirclePath sweeps counterclockwise around normal from start to goal.
func newCirclePath(start, goal spatialmath.Pose, center, normal r3.Vector, radius float64) *CirclePath {
	e1 := start.Point().Sub(center).Normalize()
	e2 := normal.Cross(e1)
	g := goal.Point().Sub(center)
	theta := math.Atan2(g.Dot(e2), g.Dot(e1))
	if theta <= 0 {
		theta += 2 * math.Pi
	}
	return &CirclePath{
		start:  start,
		goal:   goal,
		center: center,
		radius: radius,
		e1:     e1,
		e2:     e2,
		theta:  theta,
	}
}

func (c *CirclePath) Center() r3.Vector {
	return c.center
}

func (c *CirclePath) Radius() float64 {
	return c.radius
}

// SweepAngle is the arc angle from start to goal.
func (c *CirclePath) SweepAngle() float64 {
	return c.theta
}

func (c *CirclePath) Length() float64 {
	return c.radius * c.theta
}

func (c *CirclePath) Angle() float64 {
	return orientationDistance(c.start.Orientation(), c.goal.Orientation())
}

func (c *CirclePath) Pose(s float64) spatialmath.Pose {
	s = math.Max(0, math.Min(1, s))
	if s == 1 {
		return c.goal
	}
	phi := s * c.theta
	point := c.center.Add(c.e1.Mul(c.radius * math.Cos(phi))).Add(c.e2.Mul(c.radius * math.Sin(phi)))
	return spatialmath.NewPose(point, spatialmath.Interpolate(c.start, c.goal, s).Orientation())
}

// sampleCartesianTrajectory evaluates path under profile at the given sample times.
func sampleCartesianTrajectory(link string, path Path, profile *PathProfile, times []float64) CartesianTrajectory {
	traj := CartesianTrajectory{Link: link, Points: make([]CartesianTrajectoryPoint, 0, len(times))}
	for _, t := range times {
		traj.Points = append(traj.Points, CartesianTrajectoryPoint{
			Pose:          path.Pose(profile.Progress(t)),
			TimeFromStart: seconds(t),
		})
	}
	return traj
}
