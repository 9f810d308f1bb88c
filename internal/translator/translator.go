// Package translator compiles predicate trees into RediSearch DIALECT 2 queries.
package translator

import (
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ftcatalog/internal/db"
	"github.com/kailas-cloud/ftcatalog/internal/domain"
	"github.com/kailas-cloud/ftcatalog/internal/domain/geo"
	"github.com/kailas-cloud/ftcatalog/internal/domain/numeric"
	"github.com/kailas-cloud/ftcatalog/internal/domain/predicate"
	"github.com/kailas-cloud/ftcatalog/internal/domain/schema"
	"github.com/kailas-cloud/ftcatalog/internal/domain/settings"
	"github.com/kailas-cloud/ftcatalog/internal/mapper"
)

const opCompile = "compile"

// MatchAll is the query matching every document.
const MatchAll = "*"

// Reference is the geometry a distance sort measures from.
type Reference struct {
	Attribute string
	// Field is the GEO field holding the representative point of Attribute.
	Field string
	Point geo.Point
}

// Compiled is a translated predicate tree.
type Compiled struct {
	// Query is the native query; MatchAll when the tree matches everything.
	Query  string
	Params []db.Param
	// None is set when the tree statically matches nothing.
	None bool
	// Scored is set when a text predicate makes relevance meaningful.
	Scored bool
	// Reference is the first spatial literal in the tree, if any.
	Reference *Reference
	// IDs is set when the tree only selects records by id.
	IDs []string
}

// Filtered returns the query restricted to visible documents.
func (c *Compiled) Filtered() string {
	visible := "@" + mapper.FieldVisible + ":{" + mapper.VisibleValue + "}"
	if c.Query == "" || c.Query == MatchAll {
		return visible
	}
	return "(" + c.Query + ") " + visible
}

// Func compiles a named function predicate into a clause. The result is
// negated by the translator when the predicate wants false.
type Func func(c *Compiler, n *predicate.Node) (Clause, error)

// Translator turns predicate trees into native queries. It is safe for
// concurrent use; each Compile call gets its own Compiler.
type Translator struct {
	layout    *mapper.Layout
	settings  *settings.Settings
	now       func() time.Time
	logger    *zap.Logger
	functions map[string]Func
}

// Option configures a Translator.
type Option func(*Translator)

// WithClock overrides the clock anchoring relative temporal predicates.
func WithClock(now func() time.Time) Option {
	return func(t *Translator) { t.now = now }
}

// WithLogger sets the logger used for compiled query traces.
func WithLogger(l *zap.Logger) Option {
	return func(t *Translator) { t.logger = l }
}

// WithFunction registers or replaces a function predicate.
func WithFunction(name string, fn Func) Option {
	return func(t *Translator) { t.functions[name] = fn }
}

// New creates a translator over layout.
func New(layout *mapper.Layout, st *settings.Settings, opts ...Option) *Translator {
	if st == nil {
		st = settings.New()
	}
	t := &Translator{
		layout:    layout,
		settings:  st,
		now:       time.Now,
		logger:    zap.NewNop(),
		functions: builtinFunctions(),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Compile translates n. A nil tree matches nothing.
func (t *Translator) Compile(n *predicate.Node) (*Compiled, error) {
	if n == nil {
		return &Compiled{None: true}, nil
	}
	c := &Compiler{t: t, now: t.now()}
	cl, err := c.compile(n)
	if err != nil {
		return nil, err
	}

	out := &Compiled{Params: c.params, Scored: c.scored, Reference: c.ref}
	switch {
	case cl.none:
		out.None = true
	case cl.all:
		out.Query = MatchAll
	default:
		out.Query = cl.text
	}
	if ids, ok := idsOnly(n); ok {
		out.IDs = ids
	}
	t.logger.Debug("compiled query",
		zap.String("query", out.Query),
		zap.Bool("none", out.None),
		zap.Int("params", len(out.Params)),
	)
	return out, nil
}

// Clause is one compiled sub-expression. The zero value is invalid; use
// the constructors.
type Clause struct {
	text string
	all  bool
	none bool
}

// All matches every document.
func All() Clause { return Clause{all: true} }

// None matches no document.
func None() Clause { return Clause{none: true} }

// Raw wraps native query text.
func Raw(text string) Clause { return Clause{text: text} }

// String renders the clause for diagnostics.
func (c Clause) String() string {
	switch {
	case c.all:
		return MatchAll
	case c.none:
		return "<none>"
	default:
		return c.text
	}
}

// And intersects clauses.
func And(cs ...Clause) Clause {
	parts := make([]string, 0, len(cs))
	for _, c := range cs {
		switch {
		case c.none:
			return None()
		case c.all:
			continue
		default:
			parts = append(parts, c.text)
		}
	}
	switch len(parts) {
	case 0:
		return All()
	case 1:
		return Raw(parts[0])
	default:
		return Raw("(" + strings.Join(parts, " ") + ")")
	}
}

// Or unites clauses.
func Or(cs ...Clause) Clause {
	parts := make([]string, 0, len(cs))
	for _, c := range cs {
		switch {
		case c.all:
			return All()
		case c.none:
			continue
		default:
			parts = append(parts, c.text)
		}
	}
	switch len(parts) {
	case 0:
		return None()
	case 1:
		return Raw(parts[0])
	default:
		return Raw("(" + strings.Join(parts, " | ") + ")")
	}
}

// Not complements a clause.
func Not(c Clause) Clause {
	switch {
	case c.all:
		return None()
	case c.none:
		return All()
	default:
		return Raw("-(" + c.text + ")")
	}
}

// Compiler holds the per-call state of one compilation.
type Compiler struct {
	t      *Translator
	now    time.Time
	params []db.Param
	scored bool
	ref    *Reference
}

// Layout returns the field layout.
func (c *Compiler) Layout() *mapper.Layout { return c.t.layout }

// Param registers a query parameter and returns its reference.
func (c *Compiler) Param(value string) string {
	name := "g" + strconv.Itoa(len(c.params))
	c.params = append(c.params, db.Param{Name: name, Value: value})
	return "$" + name
}

func (c *Compiler) compile(n *predicate.Node) (Clause, error) {
	if n == nil {
		return None(), nil
	}
	switch n.Kind {
	case predicate.KindAnd:
		cs, err := c.children(n)
		if err != nil {
			return Clause{}, err
		}
		return And(cs...), nil
	case predicate.KindOr:
		cs, err := c.children(n)
		if err != nil {
			return Clause{}, err
		}
		return Or(cs...), nil
	case predicate.KindNot:
		if len(n.Children) != 1 {
			return Clause{}, domain.NewQueryError(opCompile, "", domain.ErrInvalidQuery,
				"not takes exactly one operand, got %d", len(n.Children))
		}
		cl, err := c.compile(n.Children[0])
		if err != nil {
			return Clause{}, err
		}
		return Not(cl), nil
	case predicate.KindInclude:
		return All(), nil
	case predicate.KindExclude:
		return None(), nil
	case predicate.KindCompare:
		return c.compare(n)
	case predicate.KindBetween:
		return c.between(n)
	case predicate.KindNull:
		return c.null(n)
	case predicate.KindLike:
		return c.like(n)
	case predicate.KindFuzzy:
		return c.fuzzy(n)
	case predicate.KindProximity:
		return c.proximity(n.Attribute, n.Slop, n.Text)
	case predicate.KindSpatial:
		return c.spatial(n)
	case predicate.KindTemporal:
		return c.temporal(n)
	case predicate.KindStructural:
		return c.structural(n)
	case predicate.KindFunction:
		return c.function(n)
	default:
		return Clause{}, domain.NewQueryError(opCompile, n.Attribute, domain.ErrUnsupportedPredicate,
			"predicate kind %s", n.Kind)
	}
}

func (c *Compiler) children(n *predicate.Node) ([]Clause, error) {
	out := make([]Clause, 0, len(n.Children))
	for _, child := range n.Children {
		cl, err := c.compile(child)
		if err != nil {
			return nil, err
		}
		out = append(out, cl)
	}
	return out, nil
}

// indexed resolves an attribute that has index copies. Unknown and
// unindexed attributes resolve to false.
func (c *Compiler) indexed(attr string) (schema.Descriptor, bool) {
	d, ok := c.t.layout.Descriptor(attr)
	if !ok || !d.Indexed {
		c.t.logger.Debug("attribute not indexed, clause matches nothing", zap.String("attribute", attr))
		return schema.Descriptor{}, false
	}
	return d, true
}

// idsOnly reports the ids of a tree that is an id equality or a
// disjunction of id equalities.
func idsOnly(n *predicate.Node) ([]string, bool) {
	switch n.Kind {
	case predicate.KindCompare:
		if n.Attribute != schema.AttrID || n.Op != numeric.OpEQ {
			return nil, false
		}
		s, ok := n.Literal.(string)
		if !ok || s == "" {
			return nil, false
		}
		return []string{s}, true
	case predicate.KindOr:
		var ids []string
		for _, child := range n.Children {
			sub, ok := idsOnly(child)
			if !ok {
				return nil, false
			}
			ids = append(ids, sub...)
		}
		return ids, len(ids) > 0
	default:
		return nil, false
	}
}
