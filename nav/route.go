package nav

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"go.uber.org/zap"
)

// ErrTooFewLocations is returned when a route is requested for fewer than
// MinLocations locations.
var ErrTooFewLocations = errors.New("nav: at least 2 locations are required")

var (
	ErrInvalidMode  = fmt.Errorf("nav: invalid mode: must be one of: %s, %s", ModeStandard, ModeOptimize)
	ErrInvalidUnits = fmt.Errorf("nav: invalid units: must be one of: %s, %s", UnitKilometers, UnitMiles)
)

const metersPerMile = 1609.344

// Service turns selected locations into drawable route plans.
type Service struct {
	cfg        NavConfig
	directions Directions
	geocoder   *Geocoder
	log        *zap.Logger
}

// NewService creates a Service. directions is usually a *Client, optionally
// wrapped by a *CachedDirections.
func NewService(cfg NavConfig, directions Directions, geocoder *Geocoder, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		cfg:        cfg.WithDefaults(),
		directions: directions,
		geocoder:   geocoder,
		log:        log,
	}
}

// PlanRoute fetches a route through locs. In ModeOptimize the returned
// round trip is split into an outbound and a return layer.
func (s *Service) PlanRoute(ctx context.Context, locs []Location, mode RouteMode, units DistanceUnit) (*RoutePlan, error) {
	if len(locs) < MinLocations {
		return nil, ErrTooFewLocations
	}
	if mode == "" {
		mode = DefaultMode
	} else if !mode.IsValid() {
		return nil, ErrInvalidMode
	}
	if units == "" {
		units = DefaultUnit
	} else if !units.IsValid() {
		return nil, ErrInvalidUnits
	}

	coords := make([]orb.Point, len(locs))
	for i, l := range locs {
		coords[i] = l.Point()
	}

	res, err := s.directions.Fetch(ctx, mode, coords)
	if err != nil {
		return nil, err
	}
	if len(res.Trips) == 0 {
		return nil, fmt.Errorf("nav: directions: no route returned")
	}

	plan := &RoutePlan{
		ID:        uuid.NewString(),
		Mode:      mode,
		Distance:  convertDistance(res.Distance, units),
		Duration:  res.Duration,
		Units:     units,
		Waypoints: res.Waypoints,
		Notice:    res.Notice,
	}
	for _, st := range res.Steps {
		st.Distance = convertDistance(st.Distance, units)
		plan.Steps = append(plan.Steps, st)
	}

	if mode == ModeOptimize {
		there, back, err := SplitRoundTrip(res)
		if err != nil {
			return nil, fmt.Errorf("nav: split round trip: %w", err)
		}
		plan.Layers = []RouteLayer{thereLayer(&there), backLayer(&back)}
		plan.Viewport = FitLine(s.cfg, there.Geometry)
	} else {
		trip := res.Trips[0]
		plan.Layers = []RouteLayer{standardLayer(&trip)}
		plan.Viewport = FitLine(s.cfg, trip.Geometry)
	}

	s.log.Info("route planned",
		zap.String("plan_id", plan.ID),
		zap.String("mode", string(mode)),
		zap.Int("locations", len(locs)),
		zap.Float64("distance_m", res.Distance),
		zap.Float64("duration_s", res.Duration),
		zap.Bool("truncated", plan.Notice != ""))

	return plan, nil
}

func convertDistance(meters float64, units DistanceUnit) float64 {
	if units == UnitMiles {
		return meters / metersPerMile
	}
	return meters / 1000 // convert to kilometers
}

// Geocode searches for addresses matching query.
func (s *Service) Geocode(ctx context.Context, query string) ([]GeocodeResponse, error) {
	if s.geocoder == nil {
		return nil, errors.New("nav: geocoding is not configured")
	}
	return s.geocoder.Geocode(ctx, query)
}
