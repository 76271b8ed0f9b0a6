// Package feed supplies position observations to the tracker, either from
// the public ISS position HTTP endpoint or from SGP4 propagation of a TLE.
package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/signalsfoundry/orbit-tracker/internal/track"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DefaultEndpoint is the open-notify ISS position API.
const DefaultEndpoint = "http://api.open-notify.org/iss-now.json"

// Sentinel errors for the poll-failure taxonomy. Both route through the
// tracker's OnError handler; callers distinguish them with errors.Is.
var (
	// ErrCancelled marks a fetch aborted by its context rather than failed
	// by the network.
	ErrCancelled = errors.New("request was cancelled")

	// ErrBadPayload marks a 2xx response whose body does not carry a
	// recognizable position. A single bad tick, not a transport problem.
	ErrBadPayload = errors.New("response missing position data")
)

// Outcome buckets a fetch error for metrics labels.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrCancelled):
		return "cancelled"
	case errors.Is(err, ErrBadPayload):
		return "bad_payload"
	default:
		return "transport"
	}
}

// issResponse is the upstream JSON shape. Latitude and longitude arrive as
// numeric strings.
type issResponse struct {
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
	Position  *struct {
		Latitude  string `json:"latitude"`
		Longitude string `json:"longitude"`
	} `json:"iss_position"`
}

// Client fetches ISS positions over HTTP. Safe for concurrent use, though the
// tracker never has more than one fetch in flight.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// NewClient creates a client for the given endpoint, defaulting to the public
// open-notify API when empty. Request deadlines come from the fetch context,
// not the http.Client.
func NewClient(endpoint string) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{},
	}
}

// Fetch performs one GET against the position endpoint and normalizes the
// response. Altitude and velocity are attached as the station's nominal
// constants; the feed does not report them.
func (c *Client) Fetch(ctx context.Context) (track.Position, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return track.Position{}, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return track.Position{}, fmt.Errorf("fetch %s: %w", c.endpoint, ErrCancelled)
		}
		return track.Position{}, fmt.Errorf("fetch %s: %w", c.endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return track.Position{}, fmt.Errorf("HTTP %d from %s", resp.StatusCode, c.endpoint)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return track.Position{}, fmt.Errorf("read response: %w", ErrCancelled)
		}
		return track.Position{}, fmt.Errorf("read response: %w", err)
	}

	return decodePosition(body)
}

func decodePosition(body []byte) (track.Position, error) {
	var raw issResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return track.Position{}, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	if raw.Position == nil {
		return track.Position{}, fmt.Errorf("%w: no iss_position field", ErrBadPayload)
	}

	lat, err := strconv.ParseFloat(raw.Position.Latitude, 64)
	if err != nil {
		return track.Position{}, fmt.Errorf("%w: bad latitude %q", ErrBadPayload, raw.Position.Latitude)
	}
	lon, err := strconv.ParseFloat(raw.Position.Longitude, 64)
	if err != nil {
		return track.Position{}, fmt.Errorf("%w: bad longitude %q", ErrBadPayload, raw.Position.Longitude)
	}

	ts := time.Unix(raw.Timestamp, 0).UTC()
	if raw.Timestamp == 0 {
		ts = time.Now().UTC()
	}

	return track.Position{
		Latitude:    lat,
		Longitude:   lon,
		AltitudeKm:  track.ISSAltitudeKm,
		VelocityKmS: track.ISSVelocityKmS,
		Timestamp:   ts,
	}, nil
}
