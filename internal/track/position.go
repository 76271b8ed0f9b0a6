package track

import "time"

// Feed constants for the public ISS position endpoint. The feed carries only
// latitude/longitude; altitude and velocity are not measured, they are the
// station's nominal values attached to every observation.
const (
	ISSAltitudeKm  = 408.0
	ISSVelocityKmS = 7.66
)

// Position is a single point-in-time observation of the tracked body.
// Immutable once produced; one instance exists per poll tick.
type Position struct {
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	AltitudeKm  float64   `json:"altitude_km"`
	VelocityKmS float64   `json:"velocity_km_s"`
	Timestamp   time.Time `json:"timestamp"`
}
