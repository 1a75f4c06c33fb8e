package http

import (
	"github.com/couchcryptid/risk-map-service/internal/domain"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// featureCollection converts render items into GeoJSON. Rectangles and tiles
// become polygons, points and bins become points carrying their radius.
func featureCollection(items []domain.RenderItem) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, it := range items {
		fc.Append(feature(it))
	}
	return fc
}

func feature(it domain.RenderItem) *geojson.Feature {
	var f *geojson.Feature
	if it.Bounds != nil {
		f = geojson.NewFeature(rectPolygon(*it.Bounds))
	} else {
		f = geojson.NewFeature(orb.Point{it.Lng, it.Lat})
		f.Properties["radius"] = it.Radius
	}
	if it.ID != "" {
		f.ID = it.ID
	}
	f.Properties["kind"] = string(it.Kind)
	f.Properties["weight"] = it.Weight
	f.Properties["color"] = it.Color
	f.Properties["opacity"] = it.Opacity
	if it.Count > 0 {
		f.Properties["count"] = it.Count
	}
	if it.Category != "" {
		f.Properties["category"] = it.Category
	}
	return f
}

func rectPolygon(r domain.Rect) orb.Polygon {
	return orb.Polygon{orb.Ring{
		{r.MinLng, r.MinLat},
		{r.MaxLng, r.MinLat},
		{r.MaxLng, r.MaxLat},
		{r.MinLng, r.MaxLat},
		{r.MinLng, r.MinLat},
	}}
}
