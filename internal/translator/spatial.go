package translator

import (
	"strconv"

	"github.com/kailas-cloud/ftcatalog/internal/domain"
	"github.com/kailas-cloud/ftcatalog/internal/domain/geo"
	"github.com/kailas-cloud/ftcatalog/internal/domain/predicate"
	"github.com/kailas-cloud/ftcatalog/internal/domain/schema"
	"github.com/kailas-cloud/ftcatalog/internal/mapper"
)

// literal holds the parameter names of a spatial literal's parts.
type literal struct {
	refs []string
}

func (c *Compiler) spatial(n *predicate.Node) (Clause, error) {
	attrs := c.geometryAttributes(n.Attribute)
	if len(attrs) == 0 {
		return None(), nil
	}
	shape, err := geo.Parse(n.WKT)
	if err != nil {
		return Clause{}, domain.NewQueryError(opCompile, n.Attribute, domain.ErrInvalidQuery, "%v", err)
	}
	center := shape.Center()
	if meters := c.distance(n); meters > 0 {
		if shape, err = geo.Buffer(shape, meters); err != nil {
			return Clause{}, domain.NewQueryError(opCompile, n.Attribute, domain.ErrInvalidQuery, "%v", err)
		}
	}
	parts, err := shape.PartsWKT()
	if err != nil {
		return Clause{}, domain.NewQueryError(opCompile, n.Attribute, domain.ErrInvalidQuery, "%v", err)
	}
	lit := literal{refs: make([]string, len(parts))}
	for i, p := range parts {
		lit.refs[i] = c.Param(p)
	}
	if c.ref == nil {
		c.ref = &Reference{
			Attribute: attrs[0].Name,
			Field:     c.t.layout.Field(attrs[0].Name, mapper.SuffixPoint),
			Point:     center,
		}
	}

	cs := make([]Clause, 0, len(attrs))
	for _, d := range attrs {
		cl, err := c.spatialOn(d.Name, n, lit)
		if err != nil {
			return Clause{}, err
		}
		cs = append(cs, cl)
	}
	return Or(cs...), nil
}

func (c *Compiler) geometryAttributes(attr string) []schema.Descriptor {
	if attr == schema.AnyGeo {
		var out []schema.Descriptor
		for _, d := range c.t.layout.Registry().AttributesOfType(schema.Geometry) {
			if d.Indexed {
				out = append(out, d)
			}
		}
		return out
	}
	d, ok := c.indexed(attr)
	if !ok || d.Type != schema.Geometry {
		return nil
	}
	return []schema.Descriptor{d}
}

func (c *Compiler) spatialOn(attr string, n *predicate.Node, lit literal) (Clause, error) {
	switch n.Spatial {
	case predicate.Intersects:
		return c.intersects(attr, lit), nil
	case predicate.Within:
		return c.within(attr, lit), nil
	case predicate.Contains:
		return c.contains(attr, lit), nil
	case predicate.DWithin, predicate.Nearest:
		return c.intersects(attr, lit), nil
	case predicate.Beyond:
		return And(c.present(attr), Not(c.intersects(attr, lit))), nil
	default:
		return Clause{}, domain.NewQueryError(opCompile, attr, domain.ErrUnsupportedPredicate,
			"spatial operator %s", n.Spatial)
	}
}

func (c *Compiler) shapeTest(attr string, slot int, op, ref string) Clause {
	return Raw("@" + c.t.layout.GeoField(attr, slot) + ":[" + op + " " + ref + "]")
}

// intersects holds when any stored part meets any literal part.
func (c *Compiler) intersects(attr string, lit literal) Clause {
	var cs []Clause
	for i := range c.t.layout.MaxParts() {
		for _, ref := range lit.refs {
			cs = append(cs, c.shapeTest(attr, i, "INTERSECTS", ref))
		}
	}
	return Or(cs...)
}

// within holds when every stored part lies within some literal part.
// Slots beyond the stored part count are vacuously satisfied.
func (c *Compiler) within(attr string, lit literal) Clause {
	partsField := c.t.layout.Field(attr, mapper.SuffixParts)
	cs := []Clause{rangeClause(partsField, "1", "+inf")}
	for i := range c.t.layout.MaxParts() {
		alts := make([]Clause, 0, len(lit.refs)+1)
		if i > 0 {
			alts = append(alts, rangeClause(partsField, "-inf", strconv.Itoa(i)))
		}
		for _, ref := range lit.refs {
			alts = append(alts, c.shapeTest(attr, i, "WITHIN", ref))
		}
		cs = append(cs, Or(alts...))
	}
	return And(cs...)
}

// contains holds when every literal part lies within some stored part.
func (c *Compiler) contains(attr string, lit literal) Clause {
	cs := make([]Clause, 0, len(lit.refs))
	for _, ref := range lit.refs {
		alts := make([]Clause, 0, c.t.layout.MaxParts())
		for i := range c.t.layout.MaxParts() {
			alts = append(alts, c.shapeTest(attr, i, "CONTAINS", ref))
		}
		cs = append(cs, Or(alts...))
	}
	return And(cs...)
}

// distance is the buffer applied to the literal of a distance operator.
// The stored geometry is within distance when it meets the buffer.
func (c *Compiler) distance(n *predicate.Node) float64 {
	switch n.Spatial {
	case predicate.DWithin, predicate.Beyond:
		return n.DistanceMeters
	case predicate.Nearest:
		return c.t.settings.NearestDistance()
	default:
		return 0
	}
}
