package finance

import (
	"time"

	"github.com/oscarfrank/lendcore/pkg/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AccruedInterest returns the interest accrued on the loan from its start
// date through asOf, net of interest already paid, rounded to cents and
// floored at zero.
//
// A loan that is not fully populated (no start date, or a zero balance, rate
// or duration) has no financial effect and yields zero; so does an asOf
// before the start date. Internal failures also yield zero, with the cause
// logged.
func (c *Calculator) AccruedInterest(loan *models.Loan, asOf time.Time) decimal.Decimal {
	if loan.StartDate == nil || loan.CurrentBalance.IsZero() || loan.InterestRate.IsZero() || loan.DurationDays == 0 {
		c.logger.Debug("accrual skipped: loan not fully populated",
			zap.String("loan_id", loan.ID.String()),
			zap.String("current_balance", loan.CurrentBalance.String()),
			zap.String("interest_rate", loan.InterestRate.String()),
			zap.Int("duration_days", loan.DurationDays),
		)
		return decimal.Zero
	}
	if asOf.Before(*loan.StartDate) {
		return decimal.Zero
	}

	accrued, err := accruedInterest(loan, asOf)
	if err != nil {
		c.logger.Error("accrued interest calculation failed",
			zap.String("loan_id", loan.ID.String()),
			zap.Time("as_of", asOf),
			zap.Error(err),
		)
		return decimal.Zero
	}

	c.logger.Debug("accrued interest computed",
		zap.String("loan_id", loan.ID.String()),
		zap.String("current_balance", loan.CurrentBalance.String()),
		zap.String("interest_rate", loan.InterestRate.String()),
		zap.String("period", string(loan.InterestCalculationPeriod)),
		zap.Int("days_elapsed", DaysBetween(*loan.StartDate, asOf)),
		zap.String("interest_paid", loan.InterestPaid.String()),
		zap.String("accrued", accrued.String()),
	)
	return accrued
}

func accruedInterest(loan *models.Loan, asOf time.Time) (accrued decimal.Decimal, err error) {
	defer recoverCalculation(&err)

	days := decimal.NewFromInt(int64(DaysBetween(*loan.StartDate, asOf)))
	gross := loan.CurrentBalance.Mul(dailyRate(loan.InterestRate, loan.InterestCalculationPeriod)).Mul(days)
	net := gross.Sub(loan.InterestPaid)
	if net.IsNegative() {
		net = decimal.Zero
	}
	return net.Round(currencyScale), nil
}

// dailyRate maps the annual percentage rate to a per-day rate for the given
// calculation period. Anything unrecognized behaves as monthly.
func dailyRate(annualPct decimal.Decimal, period models.CalculationPeriod) decimal.Decimal {
	rate := annualPct.Div(hundred)
	switch period {
	case models.PeriodDaily:
		return rate
	case models.PeriodWeekly:
		return rate.Div(daysPerWeek)
	case models.PeriodYearly:
		return rate.Div(daysPerYear)
	default:
		return rate.Div(daysPerMonth)
	}
}
