package finance

import (
	"time"

	"github.com/oscarfrank/lendcore/pkg/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Allocation is the three-way split of a single payment.
type Allocation struct {
	Interest  decimal.Decimal `json:"interest"`
	Fees      decimal.Decimal `json:"fees"`
	Principal decimal.Decimal `json:"principal"`
}

// AllocatePayment splits amount across interest, fees and principal in strict
// priority order: interest first, then fees, then principal. A lower-priority
// bucket receives nothing until every higher-priority bucket is paid in full.
// The parts always sum exactly to amount; the split uses exact subtraction,
// never independent rounding. The caller must supply valid non-negative dues.
func AllocatePayment(amount, interestDue, feesDue decimal.Decimal) Allocation {
	if amount.LessThanOrEqual(interestDue) {
		return Allocation{Interest: amount, Fees: decimal.Zero, Principal: decimal.Zero}
	}
	remaining := amount.Sub(interestDue)
	if remaining.LessThanOrEqual(feesDue) {
		return Allocation{Interest: interestDue, Fees: remaining, Principal: decimal.Zero}
	}
	return Allocation{Interest: interestDue, Fees: feesDue, Principal: remaining.Sub(feesDue)}
}

// InterestDue returns the interest owed at paymentDate for the purpose of
// splitting a payment, rounded to cents. Unlike accrual reporting, this
// formula honors the loan's interest type. Time is measured from the last
// payment date, or the start date if no payment has been made; an
// undisbursed loan owes nothing.
func (c *Calculator) InterestDue(loan *models.Loan, paymentDate time.Time) decimal.Decimal {
	due, err := interestDue(loan, paymentDate)
	if err != nil {
		c.logger.Error("interest due calculation failed",
			zap.String("loan_id", loan.ID.String()),
			zap.Time("payment_date", paymentDate),
			zap.Error(err),
		)
		return decimal.Zero
	}
	c.logger.Debug("interest due computed",
		zap.String("loan_id", loan.ID.String()),
		zap.String("interest_type", string(loan.InterestType)),
		zap.String("principal_remaining", loan.PrincipalRemaining().String()),
		zap.String("interest_due", due.String()),
	)
	return due
}

func interestDue(loan *models.Loan, paymentDate time.Time) (due decimal.Decimal, err error) {
	defer recoverCalculation(&err)

	since := loan.StartDate
	if loan.LastPaymentDate != nil {
		since = loan.LastPaymentDate
	}
	if since == nil {
		return decimal.Zero, nil
	}

	days := DaysBetween(*since, paymentDate)
	if days < 0 {
		days = 0
	}
	years := decimal.NewFromInt(int64(days)).Div(daysPerYear)
	rate := loan.InterestRate.Div(hundred)
	principal := loan.PrincipalRemaining()

	if loan.InterestType == models.InterestTypeCompound {
		// principal * ((1+rate)^(days/365) - 1)
		factor, powErr := one.Add(rate).PowWithPrecision(years, compoundPrecision)
		if powErr != nil {
			return decimal.Zero, powErr
		}
		return principal.Mul(factor.Sub(one)).Round(currencyScale), nil
	}
	// principal * rate * days/365
	return principal.Mul(rate).Mul(years).Round(currencyScale), nil
}

// FeesDue returns the late-payment fee owed at paymentDate: zero within the
// grace period, otherwise the fixed fee plus the percentage fee applied to
// the remaining principal. A loan with no due date owes no fees.
func (c *Calculator) FeesDue(loan *models.Loan, paymentDate time.Time) decimal.Decimal {
	due, err := feesDue(loan, paymentDate)
	if err != nil {
		c.logger.Error("fees due calculation failed",
			zap.String("loan_id", loan.ID.String()),
			zap.Time("payment_date", paymentDate),
			zap.Error(err),
		)
		return decimal.Zero
	}
	if due.IsPositive() {
		c.logger.Debug("late fee assessed",
			zap.String("loan_id", loan.ID.String()),
			zap.Int("grace_period_days", loan.GracePeriodDays),
			zap.String("fees_due", due.String()),
		)
	}
	return due
}

func feesDue(loan *models.Loan, paymentDate time.Time) (due decimal.Decimal, err error) {
	defer recoverCalculation(&err)

	if loan.NextPaymentDueDate == nil {
		return decimal.Zero, nil
	}
	daysPastDue := DaysBetween(*loan.NextPaymentDueDate, paymentDate)
	if daysPastDue <= loan.GracePeriodDays {
		return decimal.Zero, nil
	}
	fee := loan.LatePaymentFeeFixed.Add(loan.PrincipalRemaining().Mul(loan.LatePaymentFeePercentage.Div(hundred)))
	return fee.Round(currencyScale), nil
}
