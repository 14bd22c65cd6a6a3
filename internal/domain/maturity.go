package domain

// Maturity is the ordinal stability level a plugin release declares.
type Maturity int

const (
	MaturityUnset  Maturity = 0
	MaturityAlpha  Maturity = 50
	MaturityBeta   Maturity = 100
	MaturityRC     Maturity = 150
	MaturityStable Maturity = 200
)

// String returns the human label for the maturity level.
func (m Maturity) String() string {
	switch m {
	case MaturityAlpha:
		return "Alpha"
	case MaturityBeta:
		return "Beta"
	case MaturityRC:
		return "Release candidate"
	case MaturityStable:
		return "Stable"
	case MaturityUnset:
		return "0"
	default:
		return "Unknown"
	}
}

// IsSet reports whether the release declared a maturity at all.
func (m Maturity) IsSet() bool {
	return m != MaturityUnset
}
