package track

import (
	"errors"
	"math"
)

// Defaults for the trail geometry. The sphere radius matches the globe mesh
// the renderer draws; points projected at any other radius would float above
// or sink into it.
const (
	DefaultSphereRadius = 5.2
	DefaultMaxPast      = 100
	DefaultFuturePoints = 200
)

// futureArcSpan is the total angle covered by the future arc. A fixed
// quarter-turn regardless of the body's real angular velocity: the arc is a
// visual hint of forward motion, not a propagated prediction.
const futureArcSpan = math.Pi / 2

// ErrNotFinite is returned when a projection input or output is NaN or Inf.
var ErrNotFinite = errors.New("coordinate is not a finite number")

// Trail projects geodetic coordinates onto the scene sphere and maintains the
// recent-history buffer plus the extrapolated future arc.
//
// A Trail is not safe for concurrent use. It is owned by whoever drives the
// update loop and mutated only from Update.
type Trail struct {
	radius       float64
	maxPast      int
	futurePoints int

	past []Vec3
}

// NewTrail constructs a trail for a sphere of the given radius. Non-positive
// limits fall back to the defaults.
func NewTrail(radius float64, maxPast, futurePoints int) *Trail {
	if radius <= 0 {
		radius = DefaultSphereRadius
	}
	if maxPast <= 0 {
		maxPast = DefaultMaxPast
	}
	if futurePoints <= 0 {
		futurePoints = DefaultFuturePoints
	}
	return &Trail{
		radius:       radius,
		maxPast:      maxPast,
		futurePoints: futurePoints,
		past:         make([]Vec3, 0, maxPast),
	}
}

// Project converts a geodetic latitude/longitude (degrees) to a point on the
// scene sphere. The +180° longitude offset and the sign flip on x match the
// texture-mapping convention of the globe mesh; they are not an error.
func (t *Trail) Project(latDeg, lonDeg float64) (Vec3, error) {
	phi := (90 - latDeg) * (math.Pi / 180)
	theta := (lonDeg + 180) * (math.Pi / 180)

	p := Vec3{
		X: -t.radius * math.Sin(phi) * math.Cos(theta),
		Y: t.radius * math.Cos(phi),
		Z: t.radius * math.Sin(phi) * math.Sin(theta),
	}
	if !isFinite(latDeg) || !isFinite(lonDeg) || !p.IsFinite() {
		return Vec3{}, ErrNotFinite
	}
	return p, nil
}

// Update projects the position, appends it to the history buffer (evicting
// the oldest point once the buffer is full), and recomputes the future arc.
// The returned slices are snapshots; the caller may retain them.
//
// A non-finite position is rejected without touching the buffer; the caller
// keeps rendering the previous trail.
func (t *Trail) Update(pos Position) (past, future []Vec3, err error) {
	p, err := t.Project(pos.Latitude, pos.Longitude)
	if err != nil {
		return nil, nil, err
	}

	t.past = append(t.past, p)
	if len(t.past) > t.maxPast {
		t.past = t.past[1:]
	}

	return t.Past(), t.futureArc(), nil
}

// Past returns a copy of the history buffer in chronological order, with any
// non-finite points filtered out. Points are validated on insertion, so the
// filter only matters if the buffer is ever partially corrupted.
func (t *Trail) Past() []Vec3 {
	out := make([]Vec3, 0, len(t.past))
	for _, p := range t.past {
		if p.IsFinite() {
			out = append(out, p)
		}
	}
	return out
}

// Len returns the number of points currently buffered.
func (t *Trail) Len() int { return len(t.past) }

// Reset discards the buffered history. Used on session restart.
func (t *Trail) Reset() { t.past = t.past[:0] }

// futureArc extrapolates forward motion by rotating the latest point around
// the approximate orbital-plane normal. With fewer than two points there is
// no velocity estimate and the arc is empty.
//
// The normal comes from position × velocity, which assumes the body orbits
// the origin. If the body ever moved exactly radially the cross product would
// degenerate and the rotations become unstable; a near-circular orbit never
// does, so that case is not defended.
func (t *Trail) futureArc() []Vec3 {
	if len(t.past) < 2 {
		return nil
	}

	last := t.past[len(t.past)-1]
	velocity := last.Sub(t.past[len(t.past)-2])
	normal := last.Cross(velocity).Normalize()
	radius := last.Norm()

	arc := make([]Vec3, 0, t.futurePoints)
	for i := 1; i <= t.futurePoints; i++ {
		angle := float64(i) / float64(t.futurePoints) * futureArcSpan
		p := last.RotateAround(normal, angle)
		// Pin the point back onto the sphere; the rotation preserves length
		// analytically but drifts in floating point over the arc.
		arc = append(arc, p.Normalize().Scale(radius))
	}
	return arc
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
