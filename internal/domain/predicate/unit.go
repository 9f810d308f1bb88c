package predicate

// Unit is a distance unit of a spatial literal.
type Unit int

// Distance units.
const (
	Meters Unit = iota
	Kilometers
	Feet
	Yards
	Miles
	NauticalMiles
)

// ToMeters converts d in unit u to meters.
func (u Unit) ToMeters(d float64) float64 {
	switch u {
	case Kilometers:
		return d * 1000
	case Feet:
		return d * 0.3048
	case Yards:
		return d * 0.9144
	case Miles:
		return d * 1609.344
	case NauticalMiles:
		return d * 1852
	default:
		return d
	}
}

// ParseUnit reads a unit name; unknown names are meters.
func ParseUnit(s string) Unit {
	switch s {
	case "km", "kilometers":
		return Kilometers
	case "ft", "feet":
		return Feet
	case "yd", "yards":
		return Yards
	case "mi", "miles", "statute miles":
		return Miles
	case "nmi", "nautical miles":
		return NauticalMiles
	default:
		return Meters
	}
}
