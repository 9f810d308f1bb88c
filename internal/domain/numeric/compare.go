package numeric

import (
	"math"
	"strconv"
)

// Op is a comparison operator applied to a stored field and a literal.
type Op int

// Comparison operators.
const (
	OpEQ Op = iota
	OpLT
	OpLTE
	OpGT
	OpGTE
)

// Ops lists every comparison operator.
var Ops = []Op{OpEQ, OpLT, OpLTE, OpGT, OpGTE}

func (o Op) String() string {
	switch o {
	case OpEQ:
		return "="
	case OpLT:
		return "<"
	case OpLTE:
		return "<="
	case OpGT:
		return ">"
	case OpGTE:
		return ">="
	default:
		return "?"
	}
}

// Outcome classifies a coerced comparison.
type Outcome int

// Comparison outcomes.
const (
	// Bounded means the comparison must be evaluated against Bound.
	Bounded Outcome = iota
	// Always means every stored value of the field kind satisfies the comparison.
	Always
	// Never means no stored value of the field kind can satisfy the comparison.
	Never
)

// Coerced is a literal brought to the precision of the field it is compared against.
type Coerced struct {
	Outcome Outcome
	Value   float64
	// Text is Value formatted the same way stored values of the field are.
	Text string
}

// Coerce brings literal (of literalKind) to the precision of field for op.
// Integral fields round fractional literals in the direction that preserves
// the comparison; out-of-range literals saturate to Always or Never.
// Float fields narrow the literal to float32 before comparing.
func Coerce(field Kind, literal float64, literalKind Kind, op Op) Coerced {
	if math.IsNaN(literal) {
		return Coerced{Outcome: Never}
	}

	v := literal
	if field.IsIntegral() && !literalKind.IsIntegral() && v != math.Trunc(v) {
		switch op {
		case OpEQ:
			return Coerced{Outcome: Never}
		case OpLT, OpGTE:
			v = math.Ceil(v)
		case OpLTE, OpGT:
			v = math.Floor(v)
		}
	}

	lo, hi := field.Range()
	switch {
	case v > hi:
		if op == OpLT || op == OpLTE {
			return Coerced{Outcome: Always}
		}
		return Coerced{Outcome: Never}
	case v < lo:
		if op == OpGT || op == OpGTE {
			return Coerced{Outcome: Always}
		}
		return Coerced{Outcome: Never}
	}

	switch field {
	case Short, Integer, Long:
		return Coerced{Outcome: Bounded, Value: v, Text: strconv.FormatFloat(v, 'f', -1, 64)}
	case Float:
		f := float32(v)
		text := strconv.FormatFloat(float64(f), 'g', -1, 32)
		stored, _ := strconv.ParseFloat(text, 64)
		return Coerced{Outcome: Bounded, Value: stored, Text: text}
	default:
		return Coerced{Outcome: Bounded, Value: v, Text: strconv.FormatFloat(v, 'g', -1, 64)}
	}
}

// Holds evaluates op between a stored value and a coerced literal.
// It mirrors what the engine does with the compiled range and is used by
// tests and by in-process filtering of real-time lookups.
func Holds(stored float64, op Op, c Coerced) bool {
	switch c.Outcome {
	case Always:
		return true
	case Never:
		return false
	}
	switch op {
	case OpEQ:
		return stored == c.Value
	case OpLT:
		return stored < c.Value
	case OpLTE:
		return stored <= c.Value
	case OpGT:
		return stored > c.Value
	case OpGTE:
		return stored >= c.Value
	default:
		return false
	}
}
