package nav

import (
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// NavConfig holds navigation-specific configuration
type NavConfig struct {
	BaseURL      string        `toml:"base_url"`
	AccessToken  string        `toml:"access_token"`
	Profile      string        `toml:"profile"`
	Country      string        `toml:"country"`
	Timeout      time.Duration `toml:"timeout"`
	Padding      int           `toml:"padding"`
	CanvasWidth  int           `toml:"canvas_width"`
	CanvasHeight int           `toml:"canvas_height"`
	CacheTTL     time.Duration `toml:"cache_ttl"`
}

// WithDefaults fills in every empty field with its default value.
func (c NavConfig) WithDefaults() NavConfig {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Profile == "" {
		c.Profile = DefaultProfile
	}
	if c.Country == "" {
		c.Country = DefaultCountry
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Padding <= 0 {
		c.Padding = DefaultPadding
	}
	if c.CanvasWidth <= 0 {
		c.CanvasWidth = DefaultCanvasWidth
	}
	if c.CanvasHeight <= 0 {
		c.CanvasHeight = DefaultCanvasHeight
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = DefaultCacheTTL
	}
	return c
}

// Location is a stop selected by the user
type Location struct {
	Lon  float64 `json:"lon"`
	Lat  float64 `json:"lat"`
	Type string  `json:"type,omitempty"` // marker category, passed through untouched
}

// Point returns the location as a (lon, lat) coordinate.
func (l Location) Point() orb.Point {
	return orb.Point{l.Lon, l.Lat}
}

// Waypoint is a stop as snapped to the road network by Mapbox
type Waypoint struct {
	Name          string    `json:"name"`
	Location      orb.Point `json:"location"`
	WaypointIndex int       `json:"waypoint_index"`
}

// Trip is a route geometry with its totals. For legs produced by splitting
// a round trip, Distance and Duration are the totals of the whole loop.
type Trip struct {
	Name     string         `json:"name"`
	Geometry orb.LineString `json:"geometry"`
	Distance float64        `json:"distance"` // meters
	Duration float64        `json:"duration"` // seconds
}

// DirectionsResult is a decoded directions or optimized-trips response
type DirectionsResult struct {
	Mode      RouteMode   `json:"mode"`
	Waypoints []Waypoint  `json:"waypoints"`
	Trips     []Trip      `json:"trips"`
	Steps     []RouteStep `json:"steps"`
	Distance  float64     `json:"distance"` // meters
	Duration  float64     `json:"duration"` // seconds
	Notice    string      `json:"notice,omitempty"`
}

// RouteStep represents a single navigation step
type RouteStep struct {
	Number      int     `json:"number"`
	Description string  `json:"description"`
	Distance    float64 `json:"distance"` // in specified units
	Icon        string  `json:"icon"`     // Icon representing the step type
}

// Viewport is a map camera position
type Viewport struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
	Zoom      float64 `json:"zoom"`
}

// RouteLayer is a line overlay for the map surface
type RouteLayer struct {
	SourceID   string                     `json:"sourceId"`
	LineID     string                     `json:"lineId"`
	SymbolID   string                     `json:"symbolId"`
	LineColor  string                     `json:"lineColor"`
	ArrowColor string                     `json:"arrowColor"`
	Data       *geojson.FeatureCollection `json:"data"`
}

// RoutePlan is everything the map needs to draw one route fetch
type RoutePlan struct {
	ID        string       `json:"id"`
	Mode      RouteMode    `json:"mode"`
	Distance  float64      `json:"distance"` // in specified units
	Duration  float64      `json:"duration"` // in seconds
	Units     DistanceUnit `json:"units"`
	Steps     []RouteStep  `json:"steps"`
	Waypoints []Waypoint   `json:"waypoints"`
	Layers    []RouteLayer `json:"layers"`
	Viewport  Viewport     `json:"viewport"`
	Notice    string       `json:"notice,omitempty"`
}

// GeocodeResponse represents the response from the geocoding endpoint
type GeocodeResponse struct {
	Name      string  `json:"name"`    // Place name or street address
	Address   string  `json:"address"` // Simplified address (street, postal code, city)
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Relevance float64 `json:"relevance"` // Relevance score from 0 to 1
	Country   string  `json:"country"`   // Two-letter ISO country code
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}
