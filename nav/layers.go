package nav

import (
	"github.com/paulmach/orb/geojson"
)

// featureCollection wraps a trip as a single LineString feature. A trip
// without geometry becomes an empty collection, which clears the layer.
func featureCollection(trip *Trip) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	if trip == nil || len(trip.Geometry) == 0 {
		return fc
	}

	f := geojson.NewFeature(trip.Geometry)
	f.Properties["distance"] = trip.Distance
	f.Properties["duration"] = trip.Duration
	if trip.Name != "" {
		f.Properties["name"] = trip.Name
	}
	fc.Append(f)
	fc.BBox = geojson.NewBBox(trip.Geometry.Bound())
	return fc
}

func standardLayer(trip *Trip) RouteLayer {
	return RouteLayer{
		SourceID:   StandardSourceID,
		LineID:     StandardLineID,
		SymbolID:   StandardSymbolID,
		LineColor:  StandardLineColor,
		ArrowColor: ArrowColor,
		Data:       featureCollection(trip),
	}
}

func thereLayer(trip *Trip) RouteLayer {
	return RouteLayer{
		SourceID:   ThereSourceID,
		LineID:     ThereLineID,
		SymbolID:   ThereSymbolID,
		LineColor:  ThereLineColor,
		ArrowColor: ArrowColor,
		Data:       featureCollection(trip),
	}
}

func backLayer(trip *Trip) RouteLayer {
	return RouteLayer{
		SourceID:   BackSourceID,
		LineID:     BackLineID,
		SymbolID:   BackSymbolID,
		LineColor:  BackLineColor,
		ArrowColor: ArrowColor,
		Data:       featureCollection(trip),
	}
}

// EmptyLayers returns cleared layers for mode, used when fewer than two
// locations are selected.
func EmptyLayers(mode RouteMode) []RouteLayer {
	if mode == ModeOptimize {
		return []RouteLayer{thereLayer(nil), backLayer(nil)}
	}
	return []RouteLayer{standardLayer(nil)}
}
