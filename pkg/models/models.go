package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InterestType selects which interest-due formula applies when a payment is
// split. Note that accrual reporting is always simple-interest regardless of
// this field; only the payment split honors it.
type InterestType string

const (
	InterestTypeSimple   InterestType = "simple"
	InterestTypeCompound InterestType = "compound"
)

// CalculationPeriod is the period the loan's rate is quoted against.
type CalculationPeriod string

const (
	PeriodDaily   CalculationPeriod = "daily"
	PeriodWeekly  CalculationPeriod = "weekly"
	PeriodMonthly CalculationPeriod = "monthly"
	PeriodYearly  CalculationPeriod = "yearly"
)

type LoanStatus string

const (
	LoanStatusPending   LoanStatus = "pending"
	LoanStatusApproved  LoanStatus = "approved"
	LoanStatusActive    LoanStatus = "active"
	LoanStatusInArrears LoanStatus = "in_arrears"
	LoanStatusPaid      LoanStatus = "paid"
	LoanStatusDefaulted LoanStatus = "defaulted"
	LoanStatusClosed    LoanStatus = "closed"
	LoanStatusRejected  LoanStatus = "rejected"
	LoanStatusCancelled LoanStatus = "cancelled"
)

// loanTransitions holds the allowed forward transitions for each status.
// Lifecycle changes are driven by admin workflow actions; the calculators
// never read or write status.
var loanTransitions = map[LoanStatus][]LoanStatus{
	LoanStatusPending:   {LoanStatusApproved, LoanStatusRejected, LoanStatusCancelled},
	LoanStatusApproved:  {LoanStatusActive, LoanStatusRejected, LoanStatusCancelled},
	LoanStatusActive:    {LoanStatusInArrears, LoanStatusPaid, LoanStatusDefaulted},
	LoanStatusInArrears: {LoanStatusActive, LoanStatusPaid, LoanStatusDefaulted},
	LoanStatusPaid:      {LoanStatusClosed},
	LoanStatusDefaulted: {LoanStatusClosed},
}

// CanTransitionTo reports whether moving from s to next is a legal lifecycle
// transition.
func (s LoanStatus) CanTransitionTo(next LoanStatus) bool {
	for _, allowed := range loanTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a loan in this status is immutable.
func (s LoanStatus) IsTerminal() bool {
	switch s {
	case LoanStatusClosed, LoanStatusRejected, LoanStatusCancelled:
		return true
	}
	return false
}

type Loan struct {
	ID          uuid.UUID       `json:"id"`
	BorrowerKey string          `json:"borrower_key"` // Link to external customer system
	Principal   decimal.Decimal `json:"principal"`
	// CurrentBalance is the outstanding principal plus capitalized interest.
	CurrentBalance decimal.Decimal `json:"current_balance"`
	// InterestRate is the annual rate as a percentage, e.g. 5.25 means 5.25%.
	InterestRate              decimal.Decimal   `json:"interest_rate"`
	InterestType              InterestType      `json:"interest_type"`
	InterestCalculationPeriod CalculationPeriod `json:"interest_calculation_period"`
	DurationDays              int               `json:"duration_days"`
	StartDate                 *time.Time        `json:"start_date,omitempty"` // Set at disbursement
	EndDate                   *time.Time        `json:"end_date,omitempty"`
	PrincipalPaid             decimal.Decimal   `json:"principal_paid"`
	InterestPaid              decimal.Decimal   `json:"interest_paid"`
	GracePeriodDays           int               `json:"grace_period_days"`
	LatePaymentFeeFixed       decimal.Decimal   `json:"late_payment_fee_fixed"`
	LatePaymentFeePercentage  decimal.Decimal   `json:"late_payment_fee_percentage"`
	NextPaymentDueDate        *time.Time        `json:"next_payment_due_date,omitempty"`
	LastPaymentDate           *time.Time        `json:"last_payment_date,omitempty"`
	Status                    LoanStatus        `json:"status"`
	CreatedAt                 time.Time         `json:"created_at"`
	UpdatedAt                 time.Time         `json:"updated_at"`
}

// PrincipalRemaining is the original principal minus principal already
// repaid, floored at zero. Derived on demand, never stored.
func (l *Loan) PrincipalRemaining() decimal.Decimal {
	remaining := l.Principal.Sub(l.PrincipalPaid)
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}

type PaymentStatus string

const (
	PaymentStatusScheduled  PaymentStatus = "scheduled"
	PaymentStatusDue        PaymentStatus = "due"
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusCompleted  PaymentStatus = "completed"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusCancelled  PaymentStatus = "cancelled"
	PaymentStatusDelayed    PaymentStatus = "delayed"
	PaymentStatusPartial    PaymentStatus = "partial"
)

// LoanPayment records a single repayment and its split across interest, fees
// and principal. For completed records InterestAmount + PrincipalAmount +
// FeesAmount equals Amount exactly.
type LoanPayment struct {
	ID              uuid.UUID       `json:"id"`
	LoanID          uuid.UUID       `json:"loan_id"`
	PaymentNumber   int             `json:"payment_number"`
	Amount          decimal.Decimal `json:"amount"`
	DueDate         time.Time       `json:"due_date"`
	PaymentDate     *time.Time      `json:"payment_date,omitempty"` // Nil until settled
	InterestAmount  decimal.Decimal `json:"interest_amount"`
	PrincipalAmount decimal.Decimal `json:"principal_amount"`
	FeesAmount      decimal.Decimal `json:"fees_amount"`
	DaysLate        int             `json:"days_late"`
	Status          PaymentStatus   `json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}
