package nav

import "time"

// RouteMode selects which Mapbox endpoint a route request goes to
type RouteMode string

const (
	// ModeStandard visits the locations in the given order (directions API)
	ModeStandard RouteMode = "standard"
	// ModeOptimize asks for an optimized round trip starting at the first location
	ModeOptimize RouteMode = "optimize"
)

// DefaultMode is the default route mode if none is specified
const DefaultMode = ModeStandard

// DistanceUnit represents the unit of measurement for distances
type DistanceUnit string

const (
	UnitKilometers DistanceUnit = "km"
	UnitMiles      DistanceUnit = "mi"
)

// DefaultUnit is the default distance unit if none is specified
const DefaultUnit = UnitKilometers

const (
	// MaxWaypoints is the largest number of coordinates the Mapbox
	// optimization endpoint accepts in one request.
	MaxWaypoints = 12

	// MinLocations is the fewest locations a route can be requested for.
	MinLocations = 2

	// MaxPointsNotice is shown to the user when locations were dropped.
	MaxPointsNotice = "Maximum number of points reached."

	// MatchTolerance is the per-axis distance in degrees within which a
	// waypoint is considered to lie on a path coordinate (~1m).
	MatchTolerance = 1e-5
)

// Defaults used when the config file leaves a value empty.
const (
	DefaultBaseURL      = "https://api.mapbox.com"
	DefaultProfile      = "driving"
	DefaultCountry      = "us"
	DefaultPadding      = 175
	DefaultCanvasWidth  = 1280
	DefaultCanvasHeight = 800
	DefaultTimeout      = 10 * time.Second
	DefaultCacheTTL     = 120 * time.Second
)

// Layer identifiers and colours consumed by the map surface.
const (
	StandardSourceID = "standardRoute"
	StandardLineID   = "standardRouteLine"
	StandardSymbolID = "standardRouteArrow"

	ThereSourceID = "routeThere"
	ThereLineID   = "routeLineThere"
	ThereSymbolID = "routeArrowThere"

	BackSourceID = "routeBack"
	BackLineID   = "routeLineBack"
	BackSymbolID = "routeArrowBack"

	StandardLineColor = "orange"
	ThereLineColor    = "cornflowerblue"
	BackLineColor     = "green"
	ArrowColor        = "red"
)

// IsValid checks if the route mode is valid
func (m RouteMode) IsValid() bool {
	switch m {
	case ModeStandard, ModeOptimize:
		return true
	default:
		return false
	}
}

// IsValid checks if the distance unit is valid
func (u DistanceUnit) IsValid() bool {
	switch u {
	case UnitKilometers, UnitMiles:
		return true
	default:
		return false
	}
}
