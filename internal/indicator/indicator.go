// Package indicator computes technical indicators over an OHLCV series.
//
// The building blocks are small streaming indicators that implement the
// Indicator interface and receive one float64 per bar. Compute wires them
// together into the per-bar Fields used by signal classification and the
// backtest.
package indicator

// Indicator is the interface for all streaming indicators.
type Indicator interface {
	// Name returns the indicator name (e.g., "SMA_50", "EMA_5").
	Name() string

	// Update feeds the next value (usually a close price) and recalculates.
	Update(v float64)

	// Value returns the current calculated value. Returns 0 if not ready.
	Value() float64

	// Ready returns true when enough data has been accumulated.
	Ready() bool
}

// Value is an indicator reading that may be absent during warm-up.
// Absent readings must never be compared as if they were zero.
type Value struct {
	Float float64 `json:"value"`
	Valid bool    `json:"valid"`
}

// Some wraps a defined reading.
func Some(v float64) Value { return Value{Float: v, Valid: true} }

// None is the absent reading.
var None = Value{}

// read converts an indicator's state into a Value.
func read(ind Indicator) Value {
	if !ind.Ready() {
		return None
	}
	return Some(ind.Value())
}

// Ptr returns a pointer to the reading, or nil if absent. Used by exporters
// that model absence as a null column.
func (v Value) Ptr() *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float
	return &f
}

// GT reports a > b; false if either side is absent.
func GT(a, b Value) bool { return a.Valid && b.Valid && a.Float > b.Float }

// LT reports a < b; false if either side is absent.
func LT(a, b Value) bool { return a.Valid && b.Valid && a.Float < b.Float }

// LE reports a <= b; false if either side is absent.
func LE(a, b Value) bool { return a.Valid && b.Valid && a.Float <= b.Float }

// GE reports a >= b; false if either side is absent.
func GE(a, b Value) bool { return a.Valid && b.Valid && a.Float >= b.Float }
