// Package predicate defines the boolean predicate tree selecting records.
//
// The tree is a tagged union: every Node carries a Kind and only the fields
// relevant to that kind. Consumers switch exhaustively over Kind.
package predicate

import (
	"fmt"
	"time"

	"github.com/kailas-cloud/ftcatalog/internal/domain/numeric"
)

// Kind tags the variant of a Node.
type Kind int

// Node kinds.
const (
	KindAnd Kind = iota
	KindOr
	KindNot
	// KindInclude matches every record.
	KindInclude
	// KindExclude matches no record.
	KindExclude
	// KindCompare compares an attribute against a literal with Op.
	KindCompare
	// KindBetween is an inclusive numeric/date range.
	KindBetween
	// KindNull matches records where the attribute has no value.
	KindNull
	// KindLike is a tokenised pattern match.
	KindLike
	// KindFuzzy is an edit-distance tolerant term match.
	KindFuzzy
	// KindProximity requires phrase tokens within Slop positions.
	KindProximity
	KindSpatial
	KindTemporal
	// KindStructural tests the markup structure of xml attributes.
	KindStructural
	KindFunction
)

var kindNames = [...]string{
	"and", "or", "not", "include", "exclude", "compare", "between", "null",
	"like", "fuzzy", "proximity", "spatial", "temporal", "structural", "function",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// SpatialOp selects the spatial relation.
type SpatialOp int

// Spatial relations.
const (
	Intersects SpatialOp = iota
	Within
	Contains
	DWithin
	Beyond
	// Nearest is dwithin a configured bound, combined with a distance sort reference.
	Nearest
)

func (o SpatialOp) String() string {
	switch o {
	case Intersects:
		return "intersects"
	case Within:
		return "within"
	case Contains:
		return "contains"
	case DWithin:
		return "dwithin"
	case Beyond:
		return "beyond"
	case Nearest:
		return "nearest"
	default:
		return fmt.Sprintf("spatial(%d)", int(o))
	}
}

// TemporalOp selects the temporal relation.
type TemporalOp int

// Temporal relations.
const (
	Before TemporalOp = iota
	After
	// During is exclusive at both ends.
	During
	// Relative is [now-Duration, now].
	Relative
)

func (o TemporalOp) String() string {
	switch o {
	case Before:
		return "before"
	case After:
		return "after"
	case During:
		return "during"
	case Relative:
		return "relative"
	default:
		return fmt.Sprintf("temporal(%d)", int(o))
	}
}

// StructuralOp selects the structural test.
type StructuralOp int

// Structural tests.
const (
	// PathExists matches records whose markup has the path.
	PathExists StructuralOp = iota
	// PathLike matches records whose markup value at the path matches a pattern.
	PathLike
)

// Like pattern defaults.
const (
	DefaultWildcard = '*'
	DefaultSingle   = '?'
	DefaultEscape   = '\\'
)

// Node is one element of a predicate tree.
type Node struct {
	Kind Kind

	// And, Or: two or more children; Not: exactly one.
	Children []*Node

	Attribute string

	// Compare, Between and Like literals.
	Op        numeric.Op
	Literal   any
	Upper     any
	Text      string
	MatchCase bool
	Wildcard  rune
	Single    rune
	Escape    rune

	// Proximity.
	Slop int

	// Spatial.
	Spatial        SpatialOp
	WKT            string
	DistanceMeters float64

	// Temporal.
	Temporal TemporalOp
	From     time.Time
	To       time.Time
	Duration time.Duration

	// Structural.
	Structural StructuralOp
	Path       string

	// Function.
	Function string
	Args     []any
	Want     bool
}

// And builds a conjunction.
func And(children ...*Node) *Node { return &Node{Kind: KindAnd, Children: children} }

// Or builds a disjunction.
func Or(children ...*Node) *Node { return &Node{Kind: KindOr, Children: children} }

// Not negates a predicate.
func Not(child *Node) *Node { return &Node{Kind: KindNot, Children: []*Node{child}} }

// Include matches every record.
func Include() *Node { return &Node{Kind: KindInclude} }

// Exclude matches no record.
func Exclude() *Node { return &Node{Kind: KindExclude} }

// EqualTo matches an exact, non-tokenised value.
func EqualTo(attr string, value any) *Node {
	return &Node{Kind: KindCompare, Attribute: attr, Op: numeric.OpEQ, Literal: value}
}

// EqualToCase is EqualTo with an explicit case-sensitivity flag.
func EqualToCase(attr string, value any, matchCase bool) *Node {
	n := EqualTo(attr, value)
	n.MatchCase = matchCase
	return n
}

// NotEqualTo negates EqualTo.
func NotEqualTo(attr string, value any) *Node { return Not(EqualTo(attr, value)) }

// LessThan matches attr < value.
func LessThan(attr string, value any) *Node { return compare(attr, numeric.OpLT, value) }

// LessOrEqual matches attr <= value.
func LessOrEqual(attr string, value any) *Node { return compare(attr, numeric.OpLTE, value) }

// GreaterThan matches attr > value.
func GreaterThan(attr string, value any) *Node { return compare(attr, numeric.OpGT, value) }

// GreaterOrEqual matches attr >= value.
func GreaterOrEqual(attr string, value any) *Node { return compare(attr, numeric.OpGTE, value) }

func compare(attr string, op numeric.Op, value any) *Node {
	return &Node{Kind: KindCompare, Attribute: attr, Op: op, Literal: value}
}

// Between matches lower <= attr <= upper.
func Between(attr string, lower, upper any) *Node {
	return &Node{Kind: KindBetween, Attribute: attr, Literal: lower, Upper: upper}
}

// IsNull matches records without a value for attr.
func IsNull(attr string) *Node { return &Node{Kind: KindNull, Attribute: attr} }

// Like matches a tokenised, case-insensitive pattern with '*' and '?' wildcards.
func Like(attr, pattern string) *Node {
	return &Node{
		Kind: KindLike, Attribute: attr, Text: pattern,
		Wildcard: DefaultWildcard, Single: DefaultSingle, Escape: DefaultEscape,
	}
}

// LikeCase matches a pattern against the case-preserving copy of attr.
func LikeCase(attr, pattern string) *Node {
	n := Like(attr, pattern)
	n.MatchCase = true
	return n
}

// LikeWith is Like with custom wildcard, single-character and escape runes.
func LikeWith(attr, pattern string, wildcard, single, escape rune, matchCase bool) *Node {
	return &Node{
		Kind: KindLike, Attribute: attr, Text: pattern, MatchCase: matchCase,
		Wildcard: wildcard, Single: single, Escape: escape,
	}
}

// Fuzzy matches terms within a small edit distance.
func Fuzzy(attr, text string) *Node {
	return &Node{Kind: KindFuzzy, Attribute: attr, Text: text}
}

// Proximity requires the phrase tokens within slop word positions of each other.
func Proximity(attr string, slop int, phrase string) *Node {
	return &Node{Kind: KindProximity, Attribute: attr, Slop: slop, Text: phrase}
}

// Spatial builds a topological spatial predicate.
func Spatial(attr string, op SpatialOp, wkt string) *Node {
	return &Node{Kind: KindSpatial, Attribute: attr, Spatial: op, WKT: wkt}
}

// IntersectsShape matches geometries intersecting wkt.
func IntersectsShape(attr, wkt string) *Node { return Spatial(attr, Intersects, wkt) }

// WithinShape matches geometries wholly within wkt.
func WithinShape(attr, wkt string) *Node { return Spatial(attr, Within, wkt) }

// ContainsShape matches geometries wholly containing wkt.
func ContainsShape(attr, wkt string) *Node { return Spatial(attr, Contains, wkt) }

// DWithinDistance matches geometries within distance of wkt.
func DWithinDistance(attr, wkt string, distance float64, unit Unit) *Node {
	return &Node{Kind: KindSpatial, Attribute: attr, Spatial: DWithin, WKT: wkt, DistanceMeters: unit.ToMeters(distance)}
}

// BeyondDistance matches geometries farther than distance from wkt.
func BeyondDistance(attr, wkt string, distance float64, unit Unit) *Node {
	return &Node{Kind: KindSpatial, Attribute: attr, Spatial: Beyond, WKT: wkt, DistanceMeters: unit.ToMeters(distance)}
}

// NearestTo matches geometries near wkt and supplies the distance sort reference.
func NearestTo(attr, wkt string) *Node { return Spatial(attr, Nearest, wkt) }

// BeforeTime matches dates strictly before t.
func BeforeTime(attr string, t time.Time) *Node {
	return &Node{Kind: KindTemporal, Attribute: attr, Temporal: Before, To: t}
}

// AfterTime matches dates strictly after t.
func AfterTime(attr string, t time.Time) *Node {
	return &Node{Kind: KindTemporal, Attribute: attr, Temporal: After, From: t}
}

// DuringRange matches dates strictly between from and to.
func DuringRange(attr string, from, to time.Time) *Node {
	return &Node{Kind: KindTemporal, Attribute: attr, Temporal: During, From: from, To: to}
}

// RelativeTo matches dates in the last d, anchored to now at compile time.
func RelativeTo(attr string, d time.Duration) *Node {
	return &Node{Kind: KindTemporal, Attribute: attr, Temporal: Relative, Duration: d}
}

// XPathExists matches records whose markup contains the path.
func XPathExists(path string) *Node {
	return &Node{Kind: KindStructural, Structural: PathExists, Path: path}
}

// XPathLike matches records whose markup value at the path matches pattern.
func XPathLike(path, pattern string) *Node {
	return &Node{
		Kind: KindStructural, Structural: PathLike, Path: path, Text: pattern,
		Wildcard: DefaultWildcard, Single: DefaultSingle, Escape: DefaultEscape,
	}
}

// Function evaluates a named function of attr and compares its result with want.
func Function(name, attr string, want bool, args ...any) *Node {
	return &Node{Kind: KindFunction, Function: name, Attribute: attr, Want: want, Args: args}
}

// Walk visits n and its descendants depth first; visit returning false prunes.
func Walk(n *Node, visit func(*Node) bool) {
	if n == nil || !visit(n) {
		return
	}
	for _, c := range n.Children {
		Walk(c, visit)
	}
}
