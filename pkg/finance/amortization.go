package finance

import (
	"time"

	"github.com/oscarfrank/lendcore/pkg/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AmortizedPayment returns the monthly payment that fully retires the loan's
// current balance over the remainder of its term, rounded to cents.
//
// Missing inputs (no end date, or a zero balance, rate or duration) yield
// zero. Once the term has elapsed the whole balance is due, so the balance
// itself is returned. Internal failures yield zero, with the cause logged.
func (c *Calculator) AmortizedPayment(loan *models.Loan, asOf time.Time) decimal.Decimal {
	if loan.EndDate == nil || loan.CurrentBalance.IsZero() || loan.InterestRate.IsZero() || loan.DurationDays == 0 {
		c.logger.Debug("amortization skipped: loan not fully populated",
			zap.String("loan_id", loan.ID.String()),
			zap.String("current_balance", loan.CurrentBalance.String()),
			zap.String("interest_rate", loan.InterestRate.String()),
			zap.Int("duration_days", loan.DurationDays),
		)
		return decimal.Zero
	}

	payment, err := amortizedPayment(loan, asOf)
	if err != nil {
		c.logger.Error("amortized payment calculation failed",
			zap.String("loan_id", loan.ID.String()),
			zap.Time("as_of", asOf),
			zap.Error(err),
		)
		return decimal.Zero
	}

	c.logger.Debug("amortized payment computed",
		zap.String("loan_id", loan.ID.String()),
		zap.String("current_balance", loan.CurrentBalance.String()),
		zap.Int("remaining_days", DaysBetween(asOf, *loan.EndDate)),
		zap.String("payment", payment.String()),
	)
	return payment
}

func amortizedPayment(loan *models.Loan, asOf time.Time) (payment decimal.Decimal, err error) {
	defer recoverCalculation(&err)

	remainingDays := DaysBetween(asOf, *loan.EndDate)
	if remainingDays <= 0 {
		// Term has elapsed; the whole balance is due now.
		return loan.CurrentBalance.Round(currencyScale), nil
	}

	remainingPayments := (remainingDays + 29) / 30
	if remainingPayments <= 0 {
		// Unreachable while remainingDays is positive, but a zero here would
		// otherwise divide by zero; treat it as full balance due.
		return loan.CurrentBalance.Round(currencyScale), nil
	}

	rate := monthlyRate(loan.InterestRate, loan.InterestCalculationPeriod)
	n := decimal.NewFromInt(int64(remainingPayments))
	if rate.IsZero() {
		return loan.CurrentBalance.Div(n).Round(currencyScale), nil
	}

	// payment = balance * rate * (1+rate)^n / ((1+rate)^n - 1)
	factor := one.Add(rate).Pow(n)
	payment = loan.CurrentBalance.Mul(rate).Mul(factor).Div(factor.Sub(one))
	return payment.Round(currencyScale), nil
}

// monthlyRate maps the annual percentage rate to a per-month rate for the
// given calculation period. Anything unrecognized behaves as monthly.
func monthlyRate(annualPct decimal.Decimal, period models.CalculationPeriod) decimal.Decimal {
	rate := annualPct.Div(hundred)
	switch period {
	case models.PeriodDaily:
		return rate.Div(daysPerMonth)
	case models.PeriodWeekly:
		return rate.Div(weeksPerMonth)
	case models.PeriodYearly:
		return rate.Div(monthsPerYear)
	default:
		return rate
	}
}
