package nav

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"
)

const (
	directionsPath = "/directions/v5/mapbox/"
	optimizedPath  = "/optimized-trips/v1/mapbox/"

	// httpMaxIdleConns is the maximum number of idle (keep-alive) connections
	// kept in the transport pool.
	httpMaxIdleConns    = 10
	httpIdleConnTimeout = 30 * time.Second
)

// ErrInvalidCoordinate is returned for coordinates that are not finite or
// fall outside WGS84 ranges.
var ErrInvalidCoordinate = errors.New("nav: invalid coordinate")

// APIError is a non-success answer from Mapbox
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("mapbox returned status %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("mapbox returned status %d (%s)", e.Status, e.Code)
}

// Directions fetches a route for an ordered list of coordinates.
type Directions interface {
	Fetch(ctx context.Context, mode RouteMode, coords []orb.Point) (*DirectionsResult, error)
}

// Client talks to the Mapbox directions and optimization APIs
type Client struct {
	cfg        NavConfig
	httpClient *http.Client
	log        *zap.Logger
}

// NewClient creates a Client for cfg. A nil logger disables logging.
func NewClient(cfg NavConfig, log *zap.Logger) *Client {
	cfg = cfg.WithDefaults()
	if log == nil {
		log = zap.NewNop()
	}
	transport := &http.Transport{
		MaxIdleConns:        httpMaxIdleConns,
		MaxIdleConnsPerHost: httpMaxIdleConns,
		IdleConnTimeout:     httpIdleConnTimeout,
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		log: log,
	}
}

// AssembleQueryURL builds the request URL for mode. Coordinates are joined
// as "lon,lat;lon,lat" in the order given.
func AssembleQueryURL(cfg NavConfig, mode RouteMode, coords []orb.Point) string {
	cfg = cfg.WithDefaults()
	pairs := make([]string, len(coords))
	for i, c := range coords {
		pairs[i] = formatCoord(c.Lon()) + "," + formatCoord(c.Lat())
	}
	joined := strings.Join(pairs, ";")
	base := strings.TrimRight(cfg.BaseURL, "/")

	if mode == ModeOptimize {
		return base + optimizedPath + cfg.Profile + "/" + joined +
			"?roundtrip=true&overview=full&steps=true&geometries=geojson&source=first&access_token=" +
			url.QueryEscape(cfg.AccessToken)
	}
	return base + directionsPath + cfg.Profile + "/" + joined +
		"?overview=full&steps=true&geometries=geojson&access_token=" +
		url.QueryEscape(cfg.AccessToken)
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ValidateCoords rejects coordinates that are not finite or outside WGS84.
func ValidateCoords(coords []orb.Point) error {
	for i, c := range coords {
		lon, lat := c.Lon(), c.Lat()
		if math.IsNaN(lon) || math.IsNaN(lat) || math.IsInf(lon, 0) || math.IsInf(lat, 0) {
			return fmt.Errorf("%w: #%d is not finite", ErrInvalidCoordinate, i+1)
		}
		if lon < -180 || lon > 180 || lat < -90 || lat > 90 {
			return fmt.Errorf("%w: #%d (%g,%g) out of range", ErrInvalidCoordinate, i+1, lon, lat)
		}
	}
	return nil
}

// Fetch requests a route through coords. Anything past MaxWaypoints is
// dropped and reported through the result's Notice.
func (c *Client) Fetch(ctx context.Context, mode RouteMode, coords []orb.Point) (*DirectionsResult, error) {
	if len(coords) < MinLocations {
		return nil, ErrTooFewLocations
	}
	if err := ValidateCoords(coords); err != nil {
		return nil, err
	}

	var notice string
	if len(coords) > MaxWaypoints {
		c.log.Warn("dropping locations over limit",
			zap.Int("requested", len(coords)), zap.Int("limit", MaxWaypoints))
		coords = coords[:MaxWaypoints]
		notice = MaxPointsNotice
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	apiURL := AssembleQueryURL(c.cfg, mode, coords)
	c.log.Debug("mapbox request",
		zap.String("mode", string(mode)),
		zap.Int("coords", len(coords)),
		zap.String("url", redactToken(apiURL)))

	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("nav: directions: create request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("nav: directions: http: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("nav: directions: read response: %w", err)
	}

	var mResp mapboxResponse
	if err := json.Unmarshal(body, &mResp); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(body))}
		}
		return nil, fmt.Errorf("nav: directions: decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || (mResp.Code != "" && mResp.Code != "Ok") {
		return nil, &APIError{Status: resp.StatusCode, Code: mResp.Code, Message: mResp.Message}
	}

	result, err := mResp.toResult(mode)
	if err != nil {
		return nil, err
	}
	if len(result.Waypoints) > MaxWaypoints || notice != "" {
		result.Notice = MaxPointsNotice
	}
	return result, nil
}

func redactToken(u string) string {
	if i := strings.Index(u, "access_token="); i >= 0 {
		return u[:i] + "access_token=REDACTED"
	}
	return u
}

// --- JSON types for the Mapbox directions / optimization APIs ---

type mapboxManeuver struct {
	Type        string `json:"type"`
	Modifier    string `json:"modifier"`
	Instruction string `json:"instruction"`
}

type mapboxStep struct {
	Distance float64        `json:"distance"`
	Duration float64        `json:"duration"`
	Name     string         `json:"name"`
	Mode     string         `json:"mode"`
	Maneuver mapboxManeuver `json:"maneuver"`
}

type mapboxLeg struct {
	Distance float64      `json:"distance"`
	Duration float64      `json:"duration"`
	Steps    []mapboxStep `json:"steps"`
}

type mapboxRoute struct {
	Geometry *geojson.Geometry `json:"geometry"`
	Legs     []mapboxLeg       `json:"legs"`
	Distance float64           `json:"distance"`
	Duration float64           `json:"duration"`
}

type mapboxWaypoint struct {
	Name          string     `json:"name"`
	Location      [2]float64 `json:"location"`
	WaypointIndex int        `json:"waypoint_index"`
}

type mapboxResponse struct {
	Code      string           `json:"code"`
	Message   string           `json:"message"`
	Waypoints []mapboxWaypoint `json:"waypoints"`
	Routes    []mapboxRoute    `json:"routes"` // directions API
	Trips     []mapboxRoute    `json:"trips"`  // optimization API
}

func (r *mapboxResponse) toResult(mode RouteMode) (*DirectionsResult, error) {
	routes := r.Routes
	if mode == ModeOptimize {
		routes = r.Trips
	}
	if len(routes) == 0 {
		return nil, fmt.Errorf("nav: directions: no route returned")
	}

	result := &DirectionsResult{
		Mode:     mode,
		Distance: routes[0].Distance,
		Duration: routes[0].Duration,
	}

	for i, wp := range r.Waypoints {
		idx := wp.WaypointIndex
		if mode != ModeOptimize {
			idx = i
		}
		result.Waypoints = append(result.Waypoints, Waypoint{
			Name:          wp.Name,
			Location:      orb.Point(wp.Location),
			WaypointIndex: idx,
		})
	}

	for _, rt := range routes {
		line, err := lineGeometry(rt.Geometry)
		if err != nil {
			return nil, err
		}
		result.Trips = append(result.Trips, Trip{
			Geometry: line,
			Distance: rt.Distance,
			Duration: rt.Duration,
		})
	}

	number := 1
	for _, leg := range routes[0].Legs {
		for _, s := range leg.Steps {
			result.Steps = append(result.Steps, RouteStep{
				Number:      number,
				Description: abbreviateInstruction(s.Maneuver.Instruction),
				Distance:    s.Distance,
				Icon:        getStepIcon(s.Maneuver.Type, s.Maneuver.Modifier, s.Mode),
			})
			number++
		}
	}
	if len(result.Steps) > 0 {
		result.Steps[0].Icon = "Drive"
	}

	return result, nil
}

func lineGeometry(g *geojson.Geometry) (orb.LineString, error) {
	if g == nil || g.Geometry() == nil {
		return nil, fmt.Errorf("nav: directions: route has no geometry")
	}
	line, ok := g.Geometry().(orb.LineString)
	if !ok {
		return nil, fmt.Errorf("nav: directions: unexpected geometry type %s", g.Geometry().GeoJSONType())
	}
	return line, nil
}

// Helper function to abbreviate street names in instructions
func abbreviateInstruction(instruction string) string {
	if strings.Contains(instruction, "You have arrived at your destination") {
		return "Arrive at destination"
	}

	instruction = strings.TrimSuffix(instruction, ".")
	instruction = strings.ReplaceAll(instruction, " onto ", " on ")

	words := strings.Fields(instruction)
	for i, w := range words {
		if i == 0 {
			continue
		}
		if abbrev, ok := streetTypeAbbrev[strings.ToLower(w)]; ok {
			words[i] = abbrev
			continue
		}
		if i < len(words)-1 && w[0] >= 'A' && w[0] <= 'Z' {
			if abbrev, ok := directionAbbrev[strings.ToLower(w)]; ok {
				words[i] = abbrev
			}
		}
	}
	return strings.Join(words, " ")
}

// getStepIcon determines the icon from a Mapbox maneuver type, modifier and
// travel mode
func getStepIcon(maneuverType, modifier, mode string) string {
	if mode == "ferry" {
		return "Ferry"
	}

	switch maneuverType {
	case "arrive":
		return "building"
	case "merge":
		return "Merge"
	case "off ramp", "exit roundabout", "exit rotary":
		return "Exit"
	}

	switch modifier {
	case "right", "sharp right":
		return "Right"
	case "left", "sharp left", "uturn":
		return "Left"
	case "slight right":
		return "right"
	case "slight left":
		return "left"
	case "straight":
		return "Straight"
	default:
		return ""
	}
}
