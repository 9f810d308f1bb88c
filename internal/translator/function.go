package translator

import (
	"fmt"

	"github.com/kailas-cloud/ftcatalog/internal/domain"
	"github.com/kailas-cloud/ftcatalog/internal/domain/numeric"
	"github.com/kailas-cloud/ftcatalog/internal/domain/predicate"
)

// Built-in function names.
const (
	// FuncProximity takes (slop, phrase) and tests word proximity in attr.
	FuncProximity = "proximity"
	// FuncExists tests that attr has a value.
	FuncExists = "exists"
)

func builtinFunctions() map[string]Func {
	return map[string]Func{
		FuncProximity: proximityFunc,
		FuncExists:    existsFunc,
	}
}

func (c *Compiler) function(n *predicate.Node) (Clause, error) {
	fn, ok := c.t.functions[n.Function]
	if !ok {
		return Clause{}, domain.NewQueryError(opCompile, n.Attribute, domain.ErrUnsupportedPredicate,
			"unknown function %q", n.Function)
	}
	cl, err := fn(c, n)
	if err != nil {
		return Clause{}, err
	}
	if !n.Want {
		return Not(cl), nil
	}
	return cl, nil
}

func proximityFunc(c *Compiler, n *predicate.Node) (Clause, error) {
	if len(n.Args) != 2 {
		return Clause{}, funcArgError(n, "want (slop, phrase), got %d arguments", len(n.Args))
	}
	slop, _, ok := numeric.ToFloat(n.Args[0])
	if !ok {
		return Clause{}, funcArgError(n, "slop must be numeric, got %T", n.Args[0])
	}
	phrase, ok := n.Args[1].(string)
	if !ok {
		return Clause{}, funcArgError(n, "phrase must be a string, got %T", n.Args[1])
	}
	return c.proximity(n.Attribute, int(slop), phrase)
}

func existsFunc(c *Compiler, n *predicate.Node) (Clause, error) {
	if len(n.Args) != 0 {
		return Clause{}, funcArgError(n, "takes no arguments, got %d", len(n.Args))
	}
	return c.present(n.Attribute), nil
}

func funcArgError(n *predicate.Node, format string, args ...any) error {
	return domain.NewQueryError(opCompile, n.Attribute, domain.ErrInvalidQuery,
		"function %s: %s", n.Function, fmt.Sprintf(format, args...))
}
