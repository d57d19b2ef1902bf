// Package indicators provides technical analysis indicators over daily
// price series.
package indicators

// Indicator computes a single streaming value from a price series.
// It is deterministic and safe to use in backtests.
type Indicator interface {
	// Name returns a stable identifier like "EMA(20)".
	Name() string

	// Warmup returns how many updates are needed before Ready() can be true.
	Warmup() int

	// Reset clears all internal state.
	Reset()

	// Update consumes the next closing price.
	Update(price float64)

	// Ready reports whether Value() is meaningful (warmup completed).
	Ready() bool

	// Value returns the current indicator value, or 0 before Ready().
	Value() float64
}
