package feed

import (
	"context"
	"math"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/signalsfoundry/orbit-tracker/internal/track"
)

// TLESource derives positions by propagating a two-line element set with
// SGP4. It needs no network, so it serves offline runs and acts as a fallback
// when the HTTP feed is unreachable.
//
// Altitude and velocity are still reported as the nominal constants so both
// sources produce the same feed shape downstream.
type TLESource struct {
	sat satellite.Satellite
	now func() time.Time
}

// NewTLESource constructs a source from TLE lines.
func NewTLESource(line1, line2 string) *TLESource {
	return &TLESource{
		sat: satellite.TLEToSat(line1, line2, satellite.GravityWGS72),
		now: time.Now,
	}
}

// Fetch propagates the satellite to the current wall-clock time and converts
// the ECI position to geodetic latitude/longitude.
func (s *TLESource) Fetch(ctx context.Context) (track.Position, error) {
	if err := ctx.Err(); err != nil {
		return track.Position{}, err
	}

	t := s.now().UTC()
	year, month, day := t.Date()
	hour, min, sec := t.Clock()

	posECI, _ := satellite.Propagate(s.sat, year, int(month), day, hour, min, sec)
	jd := satellite.JDay(year, int(month), day, hour, min, sec)
	gmst := satellite.ThetaG_JD(jd)

	_, _, ll := satellite.ECIToLLA(posECI, gmst)
	deg := satellite.LatLongDeg(ll)

	return track.Position{
		Latitude:    deg.Latitude,
		Longitude:   wrapLongitude(deg.Longitude),
		AltitudeKm:  track.ISSAltitudeKm,
		VelocityKmS: track.ISSVelocityKmS,
		Timestamp:   t,
	}, nil
}

// wrapLongitude maps a longitude in degrees into [-180, 180).
func wrapLongitude(lon float64) float64 {
	lon = math.Mod(lon+180, 360)
	if lon < 0 {
		lon += 360
	}
	return lon - 180
}
