package nav

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

const (
	// Camera limits of the map surface.
	MinZoom = 3
	MaxZoom = 16

	tileSize     = 512
	earthRadiusM = 6378137.0
)

// DefaultViewport is the camera position before any route is loaded.
var DefaultViewport = Viewport{Latitude: 37.0902, Longitude: -95.7129, Zoom: 2}

// FitBounds returns the camera that shows b inside a width x height canvas,
// keeping padding pixels free on every side.
func FitBounds(b orb.Bound, width, height, padding int) Viewport {
	lo := project.WGS84.ToMercator(b.Min)
	hi := project.WGS84.ToMercator(b.Max)
	center := project.Mercator.ToWGS84(orb.Point{(lo[0] + hi[0]) / 2, (lo[1] + hi[1]) / 2})

	availW := float64(width - 2*padding)
	availH := float64(height - 2*padding)
	if availW <= 0 {
		availW = float64(width)
	}
	if availH <= 0 {
		availH = float64(height)
	}

	spanX := hi[0] - lo[0]
	spanY := hi[1] - lo[1]
	worldM := 2 * math.Pi * earthRadiusM

	zoom := float64(MaxZoom)
	if spanX > 0 || spanY > 0 {
		scale := math.Inf(1)
		if spanX > 0 {
			scale = math.Min(scale, availW/spanX)
		}
		if spanY > 0 {
			scale = math.Min(scale, availH/spanY)
		}
		zoom = math.Log2(scale * worldM / tileSize)
	}

	return Viewport{
		Longitude: center.Lon(),
		Latitude:  center.Lat(),
		Zoom:      clampZoom(zoom),
	}
}

// FitLine fits the camera to a route line using the configured canvas.
// An empty line leaves the camera at DefaultViewport.
func FitLine(cfg NavConfig, line orb.LineString) Viewport {
	if len(line) == 0 {
		return DefaultViewport
	}
	cfg = cfg.WithDefaults()
	return FitBounds(line.Bound(), cfg.CanvasWidth, cfg.CanvasHeight, cfg.Padding)
}

func clampZoom(z float64) float64 {
	if math.IsNaN(z) || z > MaxZoom {
		return MaxZoom
	}
	if z < MinZoom {
		return MinZoom
	}
	return z
}
