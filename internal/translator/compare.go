package translator

import (
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ftcatalog/internal/domain"
	"github.com/kailas-cloud/ftcatalog/internal/domain/numeric"
	"github.com/kailas-cloud/ftcatalog/internal/domain/predicate"
	"github.com/kailas-cloud/ftcatalog/internal/domain/schema"
	"github.com/kailas-cloud/ftcatalog/internal/mapper"
)

func (c *Compiler) compare(n *predicate.Node) (Clause, error) {
	if n.Op == numeric.OpEQ && n.MatchCase {
		return Clause{}, domain.NewQueryError(opCompile, n.Attribute, domain.ErrUnsupportedPredicate,
			"case-sensitive equality is not supported")
	}
	if n.Attribute == schema.AttrID {
		return c.compareID(n)
	}
	if n.Attribute == schema.AnyText {
		if n.Op != numeric.OpEQ {
			return None(), nil
		}
		s, ok := n.Literal.(string)
		if !ok {
			return None(), nil
		}
		return c.anyTextExact(s), nil
	}

	d, ok := c.indexed(n.Attribute)
	if !ok {
		return None(), nil
	}
	l := c.t.layout
	switch {
	case d.Type.IsText():
		s, isStr := n.Literal.(string)
		if !isStr {
			return None(), nil
		}
		if n.Op != numeric.OpEQ {
			c.t.logger.Debug("ordering comparison on text attribute, clause matches nothing",
				zap.String("attribute", n.Attribute), zap.Stringer("op", n.Op))
			return None(), nil
		}
		return tagExact(l.Field(d.Name, mapper.SuffixTokens), strings.ToLower(s)), nil
	case d.Type == schema.Boolean:
		b, isBool := n.Literal.(bool)
		if !isBool || n.Op != numeric.OpEQ {
			return None(), nil
		}
		return Raw("@" + l.Field(d.Name, mapper.SuffixBool) + ":{" + strconv.FormatBool(b) + "}"), nil
	case d.Type == schema.Date:
		t, isTime := n.Literal.(time.Time)
		if !isTime {
			return None(), nil
		}
		return dateRange(l.Field(d.Name, mapper.SuffixDate), n.Op, t), nil
	case d.Type.IsNumeric():
		kind, _ := d.Type.NumericKind()
		v, litKind, isNum := literalNumber(n.Literal)
		if !isNum {
			return None(), nil
		}
		return numericRange(l.Field(d.Name, mapper.NumericSuffix(d.Type)), n.Op,
			numeric.Coerce(kind, v, litKind, n.Op)), nil
	default:
		return None(), nil
	}
}

func (c *Compiler) compareID(n *predicate.Node) (Clause, error) {
	s, ok := n.Literal.(string)
	if !ok || s == "" {
		return None(), nil
	}
	if n.Op != numeric.OpEQ {
		c.t.logger.Debug("ordering comparison on id, clause matches nothing", zap.Stringer("op", n.Op))
		return None(), nil
	}
	return tagExact(mapper.FieldID, s), nil
}

// anyTextExact matches a whole value of any indexed text attribute.
func (c *Compiler) anyTextExact(s string) Clause {
	var cs []Clause
	for _, d := range c.textAttributes() {
		cs = append(cs, tagExact(c.t.layout.Field(d.Name, mapper.SuffixTokens), strings.ToLower(s)))
	}
	return Or(cs...)
}

func (c *Compiler) textAttributes() []schema.Descriptor {
	var out []schema.Descriptor
	for _, d := range c.t.layout.Registry().Attributes() {
		if d.Indexed && d.Type.IsText() {
			out = append(out, d)
		}
	}
	return out
}

func tagExact(field, value string) Clause {
	value = strings.TrimSpace(value)
	if value == "" {
		return None()
	}
	return Raw("@" + field + ":{" + escapeTag(value) + "}")
}

// literalNumber reads a numeric literal. Strings holding a number are
// accepted; integral text is a long, anything else a double.
func literalNumber(v any) (float64, numeric.Kind, bool) {
	if f, k, ok := numeric.ToFloat(v); ok {
		return f, k, true
	}
	s, ok := v.(string)
	if !ok {
		return 0, 0, false
	}
	s = strings.TrimSpace(s)
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return float64(i), numeric.Long, true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f, numeric.Double, true
	}
	return 0, 0, false
}

// numericRange renders a coerced comparison as a NUMERIC range.
// Always still requires a value to be present.
func numericRange(field string, op numeric.Op, v numeric.Coerced) Clause {
	switch v.Outcome {
	case numeric.Never:
		return None()
	case numeric.Always:
		return rangeClause(field, "-inf", "+inf")
	}
	switch op {
	case numeric.OpEQ:
		return rangeClause(field, v.Text, v.Text)
	case numeric.OpLT:
		return rangeClause(field, "-inf", "("+v.Text)
	case numeric.OpLTE:
		return rangeClause(field, "-inf", v.Text)
	case numeric.OpGT:
		return rangeClause(field, "("+v.Text, "+inf")
	default:
		return rangeClause(field, v.Text, "+inf")
	}
}

func rangeClause(field, lo, hi string) Clause {
	return Raw("@" + field + ":[" + lo + " " + hi + "]")
}

func millis(t time.Time) string { return strconv.FormatInt(t.UnixMilli(), 10) }

func dateRange(field string, op numeric.Op, t time.Time) Clause {
	ms := millis(t)
	switch op {
	case numeric.OpEQ:
		return rangeClause(field, ms, ms)
	case numeric.OpLT:
		return rangeClause(field, "-inf", "("+ms)
	case numeric.OpLTE:
		return rangeClause(field, "-inf", ms)
	case numeric.OpGT:
		return rangeClause(field, "("+ms, "+inf")
	default:
		return rangeClause(field, ms, "+inf")
	}
}

func (c *Compiler) between(n *predicate.Node) (Clause, error) {
	d, ok := c.indexed(n.Attribute)
	if !ok {
		return None(), nil
	}
	l := c.t.layout
	switch {
	case d.Type == schema.Date:
		lo, okLo := n.Literal.(time.Time)
		hi, okHi := n.Upper.(time.Time)
		if !okLo || !okHi || hi.Before(lo) {
			return None(), nil
		}
		return rangeClause(l.Field(d.Name, mapper.SuffixDate), millis(lo), millis(hi)), nil
	case d.Type.IsNumeric():
		kind, _ := d.Type.NumericKind()
		lv, lk, okLo := literalNumber(n.Literal)
		hv, hk, okHi := literalNumber(n.Upper)
		if !okLo || !okHi {
			return None(), nil
		}
		lo := numeric.Coerce(kind, lv, lk, numeric.OpGTE)
		hi := numeric.Coerce(kind, hv, hk, numeric.OpLTE)
		if lo.Outcome == numeric.Never || hi.Outcome == numeric.Never {
			return None(), nil
		}
		if lo.Outcome == numeric.Bounded && hi.Outcome == numeric.Bounded && lo.Value > hi.Value {
			return None(), nil
		}
		loText, hiText := "-inf", "+inf"
		if lo.Outcome == numeric.Bounded {
			loText = lo.Text
		}
		if hi.Outcome == numeric.Bounded {
			hiText = hi.Text
		}
		return rangeClause(l.Field(d.Name, mapper.NumericSuffix(d.Type)), loText, hiText), nil
	default:
		return None(), nil
	}
}

// null matches records without a value, using the INDEXMISSING copy.
func (c *Compiler) null(n *predicate.Node) (Clause, error) {
	field, ok := c.missingField(n.Attribute)
	if !ok {
		return None(), nil
	}
	return Raw("ismissing(@" + field + ")"), nil
}

// present matches records with a value for attr.
func (c *Compiler) present(attr string) Clause {
	if attr == schema.AnyText {
		return All()
	}
	field, ok := c.missingField(attr)
	if !ok {
		return None()
	}
	return Raw("-ismissing(@" + field + ")")
}

func (c *Compiler) missingField(attr string) (string, bool) {
	d, ok := c.indexed(attr)
	if !ok {
		return "", false
	}
	l := c.t.layout
	switch {
	case d.Type.IsText():
		return l.Field(d.Name, mapper.SuffixTokens), true
	case d.Type == schema.Date:
		return l.Field(d.Name, mapper.SuffixDate), true
	case d.Type == schema.Boolean:
		return l.Field(d.Name, mapper.SuffixBool), true
	case d.Type.IsNumeric():
		return l.Field(d.Name, mapper.NumericSuffix(d.Type)), true
	case d.Type == schema.Geometry:
		return l.Field(d.Name, mapper.SuffixParts), true
	default:
		return "", false
	}
}

func (c *Compiler) temporal(n *predicate.Node) (Clause, error) {
	d, ok := c.indexed(n.Attribute)
	if !ok || d.Type != schema.Date {
		return None(), nil
	}
	field := c.t.layout.Field(d.Name, mapper.SuffixDate)
	switch n.Temporal {
	case predicate.Before:
		return dateRange(field, numeric.OpLT, n.To), nil
	case predicate.After:
		return dateRange(field, numeric.OpGT, n.From), nil
	case predicate.During:
		if !n.From.Before(n.To) {
			return None(), nil
		}
		return rangeClause(field, "("+millis(n.From), "("+millis(n.To)), nil
	case predicate.Relative:
		if n.Duration < 0 {
			return Clause{}, domain.NewQueryError(opCompile, n.Attribute, domain.ErrInvalidQuery,
				"relative duration must not be negative")
		}
		return rangeClause(field, millis(c.now.Add(-n.Duration)), millis(c.now)), nil
	default:
		return Clause{}, domain.NewQueryError(opCompile, n.Attribute, domain.ErrUnsupportedPredicate,
			"temporal operator %s", n.Temporal)
	}
}
