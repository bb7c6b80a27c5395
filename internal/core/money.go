package core

// Euros returns the euro value as a float64 for display purposes.
// Reports and their details carry it alongside the cent amounts.
// Note: Use cents for calculations to avoid floating-point precision issues.
func (m Money) Euros() float64 {
	return float64(m.Cents) / 100.0
}
