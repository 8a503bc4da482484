// Package finance implements the loan accounting formulas: interest accrual,
// monthly payment amortization, payment splitting and due-date projection.
//
// All functions are pure and operate on a single point-in-time snapshot of a
// loan; the caller is responsible for loading that snapshot consistently and
// persisting any resulting mutations. Accrual and amortization fail safe: a
// loan with missing inputs, or a formula that blows up internally, yields
// zero rather than an error, with the cause logged. Callers deciding whether
// to move money should treat zero as "unavailable", not "confirmed zero".
package finance

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	one           = decimal.NewFromInt(1)
	hundred       = decimal.NewFromInt(100)
	daysPerWeek   = decimal.NewFromInt(7)
	daysPerMonth  = decimal.NewFromInt(30) // fixed 30-day month used throughout
	daysPerYear   = decimal.NewFromInt(365)
	weeksPerMonth = decimal.NewFromInt(4)
	monthsPerYear = decimal.NewFromInt(12)
)

const (
	// currencyScale is the scale of every currency result.
	currencyScale = 2

	// compoundPrecision bounds the fractional exponentiation used by the
	// compound interest-due formula.
	compoundPrecision = 12
)

// Calculator evaluates the accounting formulas against loan snapshots,
// emitting diagnostic detail for every computation. Construct with
// NewCalculator; a nil logger disables diagnostics.
type Calculator struct {
	logger *zap.Logger
}

// NewCalculator creates a Calculator with the given logger.
func NewCalculator(logger *zap.Logger) *Calculator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Calculator{logger: logger}
}

// DaysBetween returns the whole days from a to b, truncated. Partial days do
// not count.
func DaysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}

// recoverCalculation converts a panic inside a formula into an error so the
// exported methods can degrade to zero instead of crashing the caller.
func recoverCalculation(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("calculation panic: %v", r)
	}
}
