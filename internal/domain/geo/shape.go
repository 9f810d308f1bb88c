package geo

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkt"
	"github.com/twpayne/go-geom/xy"
)

// ErrInvalidGeometry signals an unparsable or out-of-range geometry.
var ErrInvalidGeometry = errors.New("invalid geometry")

// degenerateEpsilon pads zero-width envelopes so they stay valid polygons.
const degenerateEpsilon = 1e-9

// Point is a lon/lat pair in degrees.
type Point struct {
	Lon float64
	Lat float64
}

// Shape is a geometry normalised into index-ready parts: points and
// clockwise polygons with counter-clockwise holes, none crossing the
// antimeridian. Geometries other than points and polygons are represented
// by their envelope.
type Shape struct {
	parts  []geom.T
	center Point
	radius float64
}

// Parse reads WKT and normalises it.
func Parse(s string) (*Shape, error) {
	g, err := wkt.Unmarshal(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidGeometry, err)
	}
	return FromGeom(g)
}

// FromGeom normalises a parsed geometry.
func FromGeom(g geom.T) (*Shape, error) {
	var n normalizer
	if err := n.add(g); err != nil {
		return nil, err
	}
	if len(n.parts) == 0 {
		return nil, fmt.Errorf("%w: empty geometry", ErrInvalidGeometry)
	}
	c := n.centerPoint()
	return &Shape{parts: n.parts, center: c, radius: farthest(c, n.vertices)}, nil
}

// Parts returns the normalised parts.
func (s *Shape) Parts() []geom.T { return s.parts }

// NumParts returns the number of parts.
func (s *Shape) NumParts() int { return len(s.parts) }

// Center is the representative point used for distance computations.
func (s *Shape) Center() Point { return s.center }

// Radius is the largest distance in meters from Center to any vertex.
func (s *Shape) Radius() float64 { return s.radius }

// IsPoint reports whether the shape is a single point.
func (s *Shape) IsPoint() bool {
	if len(s.parts) != 1 {
		return false
	}
	_, ok := s.parts[0].(*geom.Point)
	return ok
}

// PartsWKT marshals every part to WKT.
func (s *Shape) PartsWKT() ([]string, error) {
	out := make([]string, len(s.parts))
	for i, p := range s.parts {
		w, err := wkt.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("marshal part %d: %w", i, err)
		}
		out[i] = w
	}
	return out, nil
}

// Limit folds parts beyond max into the envelope of the overflow so the
// shape fits max index slots.
func (s *Shape) Limit(maxParts int) *Shape {
	if maxParts <= 0 || len(s.parts) <= maxParts {
		return s
	}
	b := geom.NewBounds(geom.XY)
	for _, p := range s.parts[maxParts-1:] {
		b.Extend(p)
	}
	env, err := envelope(b.Min(0), b.Min(1), b.Max(0), b.Max(1))
	if err != nil {
		return s
	}
	parts := slices.Clone(s.parts[:maxParts-1])
	parts = append(parts, env)
	return &Shape{parts: parts, center: s.center, radius: s.radius}
}

type normalizer struct {
	parts    []geom.T
	vertices []Point
	crosses  bool
}

func (n *normalizer) add(g geom.T) error {
	switch t := g.(type) {
	case *geom.Point:
		if t.Empty() {
			return nil
		}
		p := Point{Lon: t.X(), Lat: t.Y()}
		if err := checkPoint(p); err != nil {
			return err
		}
		n.vertices = append(n.vertices, p)
		n.parts = append(n.parts, geom.NewPointFlat(geom.XY, []float64{p.Lon, p.Lat}))
	case *geom.MultiPoint:
		for i := range t.NumPoints() {
			if err := n.add(t.Point(i)); err != nil {
				return err
			}
		}
	case *geom.Polygon:
		return n.addPolygon(t)
	case *geom.MultiPolygon:
		for i := range t.NumPolygons() {
			if err := n.addPolygon(t.Polygon(i)); err != nil {
				return err
			}
		}
	case *geom.GeometryCollection:
		for _, c := range t.Geoms() {
			if err := n.add(c); err != nil {
				return err
			}
		}
	case *geom.LineString, *geom.MultiLineString, *geom.LinearRing:
		return n.addEnvelope(g)
	default:
		return fmt.Errorf("%w: unsupported geometry %T", ErrInvalidGeometry, g)
	}
	return nil
}

func (n *normalizer) addEnvelope(g geom.T) error {
	b := g.Bounds()
	if b.IsEmpty() {
		return nil
	}
	corners := []Point{{b.Min(0), b.Min(1)}, {b.Max(0), b.Max(1)}}
	for _, p := range corners {
		if err := checkPoint(p); err != nil {
			return err
		}
	}
	env, err := envelope(b.Min(0), b.Min(1), b.Max(0), b.Max(1))
	if err != nil {
		return err
	}
	n.vertices = append(n.vertices, corners...)
	n.parts = append(n.parts, env)
	return nil
}

func (n *normalizer) addPolygon(p *geom.Polygon) error {
	if p.Empty() {
		return nil
	}
	rings := make([][]Point, 0, p.NumLinearRings())
	for i := range p.NumLinearRings() {
		ring, err := toRing(p.LinearRing(i).Coords())
		if err != nil {
			return err
		}
		rings = append(rings, ring)
	}
	n.vertices = append(n.vertices, rings[0]...)

	if !crossesAntimeridian(rings[0]) {
		poly, err := buildPolygon(rings)
		if err != nil {
			return err
		}
		n.parts = append(n.parts, poly)
		return nil
	}

	n.crosses = true
	shifted := make([][]Point, len(rings))
	for i, r := range rings {
		shifted[i] = shiftEast(r)
	}
	west := clipRings(shifted, func(p Point) bool { return p.Lon <= 180 })
	east := clipRings(shifted, func(p Point) bool { return p.Lon >= 180 })
	for i := range east {
		east[i] = translate(east[i], -360)
	}
	for _, half := range [][][]Point{west, east} {
		if len(half) == 0 {
			continue
		}
		poly, err := buildPolygon(half)
		if err != nil {
			return err
		}
		n.parts = append(n.parts, poly)
	}
	return nil
}

func (n *normalizer) centerPoint() Point {
	if len(n.vertices) == 0 {
		return Point{}
	}
	minLon, minLat := math.Inf(1), math.Inf(1)
	maxLon, maxLat := math.Inf(-1), math.Inf(-1)
	for _, v := range n.vertices {
		lon := v.Lon
		if n.crosses && lon < 0 {
			lon += 360
		}
		minLon, maxLon = math.Min(minLon, lon), math.Max(maxLon, lon)
		minLat, maxLat = math.Min(minLat, v.Lat), math.Max(maxLat, v.Lat)
	}
	return Point{Lon: WrapLongitude((minLon + maxLon) / 2), Lat: (minLat + maxLat) / 2}
}

func farthest(c Point, vertices []Point) float64 {
	var r float64
	for _, v := range vertices {
		r = math.Max(r, Haversine(c.Lat, c.Lon, v.Lat, v.Lon))
	}
	return r
}

func checkPoint(p Point) error {
	if math.IsNaN(p.Lon) || math.IsNaN(p.Lat) || !ValidateCoordinates(p.Lat, p.Lon) {
		return fmt.Errorf("%w: coordinate (%g %g) out of range", ErrInvalidGeometry, p.Lon, p.Lat)
	}
	return nil
}

// toRing converts coordinates to an open ring (closing vertex dropped).
func toRing(coords []geom.Coord) ([]Point, error) {
	ring := make([]Point, 0, len(coords))
	for _, c := range coords {
		p := Point{Lon: c.X(), Lat: c.Y()}
		if err := checkPoint(p); err != nil {
			return nil, err
		}
		ring = append(ring, p)
	}
	ring = openRing(ring)
	if len(ring) < 3 {
		return nil, fmt.Errorf("%w: polygon ring needs at least 3 distinct vertices", ErrInvalidGeometry)
	}
	return ring, nil
}

func openRing(ring []Point) []Point {
	out := make([]Point, 0, len(ring))
	for _, p := range ring {
		if len(out) > 0 && out[len(out)-1] == p {
			continue
		}
		out = append(out, p)
	}
	if len(out) > 1 && out[0] == out[len(out)-1] {
		out = out[:len(out)-1]
	}
	return out
}

func crossesAntimeridian(ring []Point) bool {
	for i := range ring {
		next := ring[(i+1)%len(ring)]
		if math.Abs(next.Lon-ring[i].Lon) > 180 {
			return true
		}
	}
	return false
}

func shiftEast(ring []Point) []Point {
	out := make([]Point, len(ring))
	for i, p := range ring {
		if p.Lon < 0 {
			p.Lon += 360
		}
		out[i] = p
	}
	return out
}

func translate(ring []Point, dLon float64) []Point {
	out := make([]Point, len(ring))
	for i, p := range ring {
		out[i] = Point{Lon: p.Lon + dLon, Lat: p.Lat}
	}
	return out
}

// clipRings clips the outer ring and holes against a half plane bounded by
// lon=180. It returns nil when the outer ring falls entirely outside.
func clipRings(rings [][]Point, inside func(Point) bool) [][]Point {
	outer := clip(rings[0], inside)
	if len(outer) < 3 {
		return nil
	}
	out := [][]Point{outer}
	for _, hole := range rings[1:] {
		if h := clip(hole, inside); len(h) >= 3 {
			out = append(out, h)
		}
	}
	return out
}

// clip is Sutherland-Hodgman against the vertical line lon=180.
func clip(ring []Point, inside func(Point) bool) []Point {
	var out []Point
	for i, cur := range ring {
		prev := ring[(i+len(ring)-1)%len(ring)]
		switch {
		case inside(cur):
			if !inside(prev) {
				out = append(out, crossAt180(prev, cur))
			}
			out = append(out, cur)
		case inside(prev):
			out = append(out, crossAt180(prev, cur))
		}
	}
	return openRing(out)
}

func crossAt180(a, b Point) Point {
	if a.Lon == b.Lon {
		return Point{Lon: 180, Lat: a.Lat}
	}
	t := (180 - a.Lon) / (b.Lon - a.Lon)
	return Point{Lon: 180, Lat: a.Lat + t*(b.Lat-a.Lat)}
}

// buildPolygon closes rings and orients the shell clockwise, holes counter-clockwise.
func buildPolygon(rings [][]Point) (*geom.Polygon, error) {
	coords := make([][]geom.Coord, len(rings))
	for i, r := range rings {
		flat := make([]float64, 0, 2*(len(r)+1))
		for _, p := range r {
			flat = append(flat, p.Lon, p.Lat)
		}
		flat = append(flat, r[0].Lon, r[0].Lat)

		ccw := xy.IsRingCounterClockwise(geom.XY, flat)
		wantCCW := i > 0
		if ccw != wantCCW {
			r = reversed(r)
		}
		ring := make([]geom.Coord, 0, len(r)+1)
		for _, p := range r {
			ring = append(ring, geom.Coord{p.Lon, p.Lat})
		}
		ring = append(ring, geom.Coord{r[0].Lon, r[0].Lat})
		coords[i] = ring
	}
	poly, err := geom.NewPolygon(geom.XY).SetCoords(coords)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidGeometry, err)
	}
	return poly, nil
}

func reversed(r []Point) []Point {
	out := slices.Clone(r)
	slices.Reverse(out)
	return out
}

func envelope(minLon, minLat, maxLon, maxLat float64) (*geom.Polygon, error) {
	if maxLon-minLon < degenerateEpsilon {
		minLon, maxLon = minLon-degenerateEpsilon, maxLon+degenerateEpsilon
	}
	if maxLat-minLat < degenerateEpsilon {
		minLat, maxLat = minLat-degenerateEpsilon, maxLat+degenerateEpsilon
	}
	return buildPolygon([][]Point{{
		{minLon, minLat}, {minLon, maxLat}, {maxLon, maxLat}, {maxLon, minLat},
	}})
}
