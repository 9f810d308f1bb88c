package geo

import (
	"fmt"
	"math"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkt"
	"github.com/twpayne/go-geom/xy"
)

const (
	// bufferSegments is the number of sides of the polygon drawn around a
	// buffered vertex.
	bufferSegments = 16
	// maxBufferedEdges bounds the per-edge buffer of a polygon part. Larger
	// rings are buffered by the hull of all their vertex discs.
	maxBufferedEdges = 64
)

// ParseAll reads several WKT values and normalises them as one collection.
func ParseAll(values []string) (*Shape, error) {
	if len(values) == 1 {
		return Parse(values[0])
	}
	gc := geom.NewGeometryCollection()
	for _, v := range values {
		g, err := wkt.Unmarshal(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidGeometry, err)
		}
		if err := gc.Push(g); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidGeometry, err)
		}
	}
	return FromGeom(gc)
}

// Buffer returns a shape covering every point within meters of s. A point
// grows into a polygon circumscribing its disc, a polygon keeps its own
// area plus the hull of the discs at both ends of each edge. Buffers that
// cross the antimeridian are split; buffers reaching a pole become a
// latitude band.
func Buffer(s *Shape, meters float64) (*Shape, error) {
	if meters <= 0 {
		return s, nil
	}
	var n normalizer
	for _, part := range s.parts {
		switch p := part.(type) {
		case *geom.Point:
			if err := n.addHull(meters, Point{Lon: p.X(), Lat: p.Y()}); err != nil {
				return nil, err
			}
		case *geom.Polygon:
			if err := n.addPolygon(p); err != nil {
				return nil, err
			}
			if err := n.bufferPolygon(p, meters); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("%w: cannot buffer %T", ErrInvalidGeometry, part)
		}
	}
	return &Shape{parts: n.parts, center: s.center, radius: s.radius + meters}, nil
}

func (n *normalizer) bufferPolygon(p *geom.Polygon, meters float64) error {
	var rings [][]Point
	total := 0
	for i := range p.NumLinearRings() {
		ring := openRing(coordsToPoints(p.LinearRing(i).Coords()))
		rings = append(rings, ring)
		total += len(ring)
	}
	if total > maxBufferedEdges {
		var all []Point
		for _, r := range rings {
			all = append(all, r...)
		}
		return n.addHull(meters, all...)
	}
	for _, r := range rings {
		for i := range r {
			if err := n.addHull(meters, r[i], r[(i+1)%len(r)]); err != nil {
				return err
			}
		}
	}
	return nil
}

// addHull adds the convex hull of the discs of radius meters around pts.
func (n *normalizer) addHull(meters float64, pts ...Point) error {
	flat := make([]float64, 0, 2*bufferSegments*len(pts))
	for _, p := range pts {
		d, ok := disc(p, meters)
		if !ok {
			return n.addBand(meters, pts)
		}
		for _, v := range d {
			flat = append(flat, v.Lon, v.Lat)
		}
	}
	hull, ok := xy.ConvexHullFlat(geom.XY, flat).(*geom.Polygon)
	if !ok {
		return fmt.Errorf("%w: degenerate buffer", ErrInvalidGeometry)
	}
	ring := openRing(coordsToPoints(hull.LinearRing(0).Coords()))
	minLon, maxLon := math.Inf(1), math.Inf(-1)
	for _, v := range ring {
		minLon, maxLon = math.Min(minLon, v.Lon), math.Max(maxLon, v.Lon)
	}
	if maxLon-minLon >= 180 {
		return n.addBand(meters, pts)
	}
	wrapped := make([]geom.Coord, 0, len(ring)+1)
	for _, v := range ring {
		wrapped = append(wrapped, geom.Coord{WrapLongitude(v.Lon), v.Lat})
	}
	wrapped = append(wrapped, wrapped[0])
	poly, err := geom.NewPolygon(geom.XY).SetCoords([][]geom.Coord{wrapped})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidGeometry, err)
	}
	return n.addPolygon(poly)
}

// addBand covers every longitude across the latitudes reached by the
// discs around pts.
func (n *normalizer) addBand(meters float64, pts []Point) error {
	lat := meters / math.Cos(math.Pi/bufferSegments) / MetersPerDegree
	minLat, maxLat := 90.0, -90.0
	for _, p := range pts {
		minLat, maxLat = math.Min(minLat, p.Lat-lat), math.Max(maxLat, p.Lat+lat)
	}
	minLat, maxLat = math.Max(minLat, -90), math.Min(maxLat, 90)
	for _, lon := range [][2]float64{{-180, 0}, {0, 180}} {
		env, err := envelope(lon[0], minLat, lon[1], maxLat)
		if err != nil {
			return err
		}
		n.parts = append(n.parts, env)
	}
	return nil
}

// disc returns the polygon circumscribing the circle of radius meters
// around c, in unwrapped longitudes. It reports false when the circle
// reaches a pole or spans too many degrees of longitude to draw.
func disc(c Point, meters float64) ([]Point, bool) {
	r := meters / math.Cos(math.Pi/bufferSegments)
	dLat := r / MetersPerDegree
	if math.Abs(c.Lat)+dLat >= 90 {
		return nil, false
	}
	// Longitude spread is widest at the latitude edge nearest the pole.
	dLon := dLat / math.Cos((math.Abs(c.Lat)+dLat)*math.Pi/180)
	if dLon >= 90 {
		return nil, false
	}
	out := make([]Point, bufferSegments)
	for i := range out {
		a := 2 * math.Pi * float64(i) / bufferSegments
		out[i] = Point{Lon: c.Lon + dLon*math.Cos(a), Lat: c.Lat + dLat*math.Sin(a)}
	}
	return out, true
}

func coordsToPoints(coords []geom.Coord) []Point {
	out := make([]Point, len(coords))
	for i, c := range coords {
		out[i] = Point{Lon: c.X(), Lat: c.Y()}
	}
	return out
}
