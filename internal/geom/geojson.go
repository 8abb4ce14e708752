package geom

import (
	"errors"
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// ErrParse is returned when a boundary file is not a GeoJSON feature collection.
var ErrParse = errors.New("geom: parse error")

// Fields names the feature properties shown in tooltips.
type Fields struct {
	Name string
	Kind string
	Mean string
}

// DefaultFields are the district name, district type, and mean R0 properties.
var DefaultFields = Fields{Name: "gen", Kind: "bez", Mean: "r_mean_b17"}

// Boundary is one administrative district.
type Boundary struct {
	Name     string
	Kind     string
	Mean     float64
	HasMean  bool
	Geometry orb.Geometry
}

// Layer is a loaded boundary file.
type Layer struct {
	Path       string
	Fields     Fields
	Collection *geojson.FeatureCollection
	Boundaries []Boundary
	BBox       BBox
}

// LoadBoundaries reads a GeoJSON feature collection from path.
func LoadBoundaries(path string, fields Fields) (*Layer, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load boundaries: %w", err)
	}
	l, err := ParseBoundaries(b, fields)
	if err != nil {
		return nil, fmt.Errorf("load boundaries %s: %w", path, err)
	}
	l.Path = path
	return l, nil
}

// ParseBoundaries decodes a GeoJSON feature collection.
func ParseBoundaries(b []byte, fields Fields) (*Layer, error) {
	fc, err := geojson.UnmarshalFeatureCollection(b)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if fc.Type != "" && fc.Type != "FeatureCollection" {
		return nil, fmt.Errorf("%w: type %q is not a FeatureCollection", ErrParse, fc.Type)
	}
	l := &Layer{Fields: fields, Collection: fc}
	var bound orb.Bound
	for _, f := range fc.Features {
		if f.Geometry == nil {
			continue
		}
		bd := Boundary{
			Name:     f.Properties.MustString(fields.Name, ""),
			Kind:     f.Properties.MustString(fields.Kind, ""),
			Geometry: f.Geometry,
		}
		if v, ok := f.Properties[fields.Mean].(float64); ok {
			bd.Mean, bd.HasMean = v, true
		}
		l.Boundaries = append(l.Boundaries, bd)
		if len(l.Boundaries) == 1 {
			bound = f.Geometry.Bound()
		} else {
			bound = bound.Union(f.Geometry.Bound())
		}
	}
	if len(l.Boundaries) > 0 {
		l.BBox = BBox{MinX: bound.Min[0], MinY: bound.Min[1], MaxX: bound.Max[0], MaxY: bound.Max[1]}
	}
	return l, nil
}

// GeoJSON encodes the feature collection.
func (l *Layer) GeoJSON() ([]byte, error) {
	return l.Collection.MarshalJSON()
}

// FeatureAt returns the district containing lon/lat.
func (l *Layer) FeatureAt(lon, lat float64) (*Boundary, bool) {
	pt := orb.Point{lon, lat}
	for i := range l.Boundaries {
		b := &l.Boundaries[i]
		if !b.Geometry.Bound().Contains(pt) {
			continue
		}
		switch g := b.Geometry.(type) {
		case orb.Polygon:
			if planar.PolygonContains(g, pt) {
				return b, true
			}
		case orb.MultiPolygon:
			if planar.MultiPolygonContains(g, pt) {
				return b, true
			}
		}
	}
	return nil, false
}

// Data flattens the layer into drawable points, lines and polygons.
func (l *Layer) Data() Data {
	var d Data
	addPt := func(pt orb.Point) {
		d.Points = append(d.Points, [2]float64(pt))
	}
	line := func(ls []orb.Point) [][2]float64 {
		out := make([][2]float64, len(ls))
		for i, p := range ls {
			out[i] = [2]float64(p)
		}
		return out
	}
	addPoly := func(poly orb.Polygon) {
		rings := make([][][2]float64, 0, len(poly))
		for _, r := range poly {
			rings = append(rings, line(r))
		}
		d.Polygons = append(d.Polygons, rings)
	}
	var walk func(g orb.Geometry)
	walk = func(g orb.Geometry) {
		switch g := g.(type) {
		case orb.Point:
			addPt(g)
		case orb.MultiPoint:
			for _, p := range g {
				addPt(p)
			}
		case orb.LineString:
			d.Lines = append(d.Lines, line(g))
		case orb.MultiLineString:
			for _, ls := range g {
				d.Lines = append(d.Lines, line(ls))
			}
		case orb.Ring:
			addPoly(orb.Polygon{g})
		case orb.Polygon:
			addPoly(g)
		case orb.MultiPolygon:
			for _, p := range g {
				addPoly(p)
			}
		case orb.Collection:
			for _, c := range g {
				walk(c)
			}
		}
	}
	for _, b := range l.Boundaries {
		walk(b.Geometry)
	}
	d.BBox = l.BBox
	return d
}
