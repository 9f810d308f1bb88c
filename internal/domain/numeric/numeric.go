// Package numeric models declared numeric precisions and the rules for
// comparing a stored value against a literal of a different kind.
package numeric

import (
	"fmt"
	"math"
	"strconv"
)

// Kind is a declared numeric precision.
type Kind int

// Numeric kinds, narrowest first.
const (
	Short Kind = iota
	Integer
	Long
	Float
	Double
)

// Kinds lists every kind, narrowest first.
var Kinds = []Kind{Short, Integer, Long, Float, Double}

func (k Kind) String() string {
	switch k {
	case Short:
		return "short"
	case Integer:
		return "integer"
	case Long:
		return "long"
	case Float:
		return "float"
	case Double:
		return "double"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// IsIntegral reports whether values of this kind have no fractional part.
func (k Kind) IsIntegral() bool { return k == Short || k == Integer || k == Long }

// Range returns the representable [min, max] of the kind.
func (k Kind) Range() (float64, float64) {
	switch k {
	case Short:
		return math.MinInt16, math.MaxInt16
	case Integer:
		return math.MinInt32, math.MaxInt32
	case Long:
		return math.MinInt64, math.MaxInt64
	case Float:
		return -math.MaxFloat32, math.MaxFloat32
	default:
		return -math.MaxFloat64, math.MaxFloat64
	}
}

// KindOf reports the kind of a Go numeric value.
func KindOf(v any) (Kind, bool) {
	switch v.(type) {
	case int8, int16, uint8:
		return Short, true
	case int32, uint16:
		return Integer, true
	case int, int64, uint, uint32, uint64:
		return Long, true
	case float32:
		return Float, true
	case float64:
		return Double, true
	default:
		return 0, false
	}
}

// ToFloat widens any Go numeric value to float64.
func ToFloat(v any) (float64, Kind, bool) {
	k, ok := KindOf(v)
	if !ok {
		return 0, 0, false
	}
	switch n := v.(type) {
	case int8:
		return float64(n), k, true
	case int16:
		return float64(n), k, true
	case uint8:
		return float64(n), k, true
	case int32:
		return float64(n), k, true
	case uint16:
		return float64(n), k, true
	case int:
		return float64(n), k, true
	case int64:
		return float64(n), k, true
	case uint:
		return float64(n), k, true
	case uint32:
		return float64(n), k, true
	case uint64:
		return float64(n), k, true
	case float32:
		return float64(n), k, true
	case float64:
		return n, k, true
	}
	return 0, 0, false
}

// Convert narrows or widens v to the Go type of kind k.
// Integral kinds truncate toward zero; out-of-range values are rejected.
func Convert(v any, k Kind) (any, error) {
	f, _, ok := ToFloat(v)
	if !ok {
		return nil, fmt.Errorf("value %v (%T) is not numeric", v, v)
	}
	lo, hi := k.Range()
	if math.IsNaN(f) || f < lo || f > hi {
		return nil, fmt.Errorf("value %v out of %s range", v, k)
	}
	switch k {
	case Short:
		return int16(f), nil
	case Integer:
		return int32(f), nil
	case Long:
		if i, isInt := exactInt(v); isInt {
			return i, nil
		}
		return int64(f), nil
	case Float:
		return float32(f), nil
	default:
		return f, nil
	}
}

// Format renders a value of kind k the way the index stores it.
func Format(v any, k Kind) (string, error) {
	c, err := Convert(v, k)
	if err != nil {
		return "", err
	}
	switch n := c.(type) {
	case int16:
		return strconv.FormatInt(int64(n), 10), nil
	case int32:
		return strconv.FormatInt(int64(n), 10), nil
	case int64:
		return strconv.FormatInt(n, 10), nil
	case float32:
		return strconv.FormatFloat(float64(n), 'g', -1, 32), nil
	default:
		return strconv.FormatFloat(c.(float64), 'g', -1, 64), nil
	}
}

// Parse reads a stored value of kind k back into its Go type.
func Parse(s string, k Kind) (any, error) {
	switch k {
	case Short:
		n, err := strconv.ParseInt(s, 10, 16)
		return int16(n), err
	case Integer:
		n, err := strconv.ParseInt(s, 10, 32)
		return int32(n), err
	case Long:
		return strconv.ParseInt(s, 10, 64)
	case Float:
		f, err := strconv.ParseFloat(s, 32)
		return float32(f), err
	default:
		return strconv.ParseFloat(s, 64)
	}
}

func exactInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case int32:
		return int64(n), true
	case int16:
		return int64(n), true
	case int8:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint8:
		return int64(n), true
	default:
		return 0, false
	}
}
