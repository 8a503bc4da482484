package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/oscarfrank/lendcore/pkg/finance"
	"github.com/oscarfrank/lendcore/pkg/models"
	"github.com/oscarfrank/lendcore/pkg/store"
)

// ErrInvalidState reports a lifecycle action against a loan whose current
// status does not allow it.
var ErrInvalidState = errors.New("invalid loan state")

// Ledger handles the business logic for loans and payments. It drives the
// loan lifecycle and invokes the finance calculators, persisting the results
// through a Storage implementation. The caller is responsible for serializing
// concurrent payments against the same loan.
type Ledger struct {
	storage store.Storage
	calc    *finance.Calculator
	logger  *zap.Logger
	now     func() time.Time // Injectable clock for tests
}

// NewLedger creates a new Ledger with a given Storage implementation. A nil
// logger disables diagnostics.
func NewLedger(s store.Storage, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		storage: s,
		calc:    finance.NewCalculator(logger),
		logger:  logger,
		now:     time.Now,
	}
}

// CreateLoanInput carries a loan application.
type CreateLoanInput struct {
	BorrowerKey               string                   `json:"borrower_key"`
	Principal                 decimal.Decimal          `json:"principal"`
	InterestRate              decimal.Decimal          `json:"interest_rate"`
	InterestType              models.InterestType      `json:"interest_type"`
	InterestCalculationPeriod models.CalculationPeriod `json:"interest_calculation_period"`
	DurationDays              int                      `json:"duration_days"`
	GracePeriodDays           int                      `json:"grace_period_days"`
	LatePaymentFeeFixed       decimal.Decimal          `json:"late_payment_fee_fixed"`
	LatePaymentFeePercentage  decimal.Decimal          `json:"late_payment_fee_percentage"`
}

// CreateLoan records a loan application. The loan starts pending with a zero
// balance; dates and balances are populated at disbursement.
func (l *Ledger) CreateLoan(in CreateLoanInput) (*models.Loan, error) {
	if in.Principal.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("principal must be positive")
	}
	if in.InterestRate.IsNegative() {
		return nil, fmt.Errorf("interest rate must not be negative")
	}
	if in.DurationDays <= 0 {
		return nil, fmt.Errorf("duration must be positive")
	}
	if in.InterestType == "" {
		in.InterestType = models.InterestTypeSimple
	}
	if in.InterestCalculationPeriod == "" {
		in.InterestCalculationPeriod = models.PeriodMonthly
	}

	now := l.now()
	loan := &models.Loan{
		ID:                        uuid.New(),
		BorrowerKey:               in.BorrowerKey,
		Principal:                 in.Principal,
		CurrentBalance:            decimal.Zero,
		InterestRate:              in.InterestRate,
		InterestType:              in.InterestType,
		InterestCalculationPeriod: in.InterestCalculationPeriod,
		DurationDays:              in.DurationDays,
		PrincipalPaid:             decimal.Zero,
		InterestPaid:              decimal.Zero,
		GracePeriodDays:           in.GracePeriodDays,
		LatePaymentFeeFixed:       in.LatePaymentFeeFixed,
		LatePaymentFeePercentage:  in.LatePaymentFeePercentage,
		Status:                    models.LoanStatusPending,
		CreatedAt:                 now,
		UpdatedAt:                 now,
	}

	if err := l.storage.CreateLoan(loan); err != nil {
		return nil, fmt.Errorf("failed to store loan: %w", err)
	}
	l.logger.Info("loan application created",
		zap.String("loan_id", loan.ID.String()),
		zap.String("borrower_key", loan.BorrowerKey),
		zap.String("principal", loan.Principal.String()),
	)
	return loan, nil
}

// transition moves a loan to the next status after validating the move.
func (l *Ledger) transition(id uuid.UUID, next models.LoanStatus) (*models.Loan, error) {
	loan, err := l.storage.GetLoan(id)
	if err != nil {
		return nil, err
	}
	if !loan.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: cannot move loan from %s to %s", ErrInvalidState, loan.Status, next)
	}
	loan.Status = next
	loan.UpdatedAt = l.now()
	if err := l.storage.UpdateLoan(loan); err != nil {
		return nil, fmt.Errorf("failed to update loan status: %w", err)
	}
	l.logger.Info("loan status changed",
		zap.String("loan_id", loan.ID.String()),
		zap.String("status", string(next)),
	)
	return loan, nil
}

// ApproveLoan moves a pending loan to approved.
func (l *Ledger) ApproveLoan(id uuid.UUID) (*models.Loan, error) {
	return l.transition(id, models.LoanStatusApproved)
}

// RejectLoan rejects a pending or approved loan.
func (l *Ledger) RejectLoan(id uuid.UUID) (*models.Loan, error) {
	return l.transition(id, models.LoanStatusRejected)
}

// CancelLoan cancels a pending or approved loan.
func (l *Ledger) CancelLoan(id uuid.UUID) (*models.Loan, error) {
	return l.transition(id, models.LoanStatusCancelled)
}

// MarkDefaulted moves an active or in-arrears loan to defaulted.
func (l *Ledger) MarkDefaulted(id uuid.UUID) (*models.Loan, error) {
	return l.transition(id, models.LoanStatusDefaulted)
}

// CloseLoan closes a paid or defaulted loan.
func (l *Ledger) CloseLoan(id uuid.UUID) (*models.Loan, error) {
	return l.transition(id, models.LoanStatusClosed)
}

// DisburseLoan activates an approved loan: the term starts now, the balance
// becomes the principal, the first due date is projected and the first
// payment is scheduled.
func (l *Ledger) DisburseLoan(id uuid.UUID) (*models.Loan, error) {
	loan, err := l.storage.GetLoan(id)
	if err != nil {
		return nil, err
	}
	if !loan.Status.CanTransitionTo(models.LoanStatusActive) {
		return nil, fmt.Errorf("%w: cannot disburse loan in status %s", ErrInvalidState, loan.Status)
	}

	now := l.now()
	start := now
	end := start.AddDate(0, 0, loan.DurationDays)
	firstDue, err := finance.NextDueDate(start, loan.DurationDays, start)
	if err != nil {
		return nil, fmt.Errorf("failed to project first due date: %w", err)
	}

	loan.Status = models.LoanStatusActive
	loan.StartDate = &start
	loan.EndDate = &end
	loan.CurrentBalance = loan.Principal
	loan.NextPaymentDueDate = &firstDue
	loan.UpdatedAt = now

	if err := l.storage.UpdateLoan(loan); err != nil {
		return nil, fmt.Errorf("failed to update loan: %w", err)
	}

	scheduled := &models.LoanPayment{
		ID:              uuid.New(),
		LoanID:          loan.ID,
		PaymentNumber:   1,
		Amount:          l.calc.AmortizedPayment(loan, start),
		DueDate:         firstDue,
		InterestAmount:  decimal.Zero,
		PrincipalAmount: decimal.Zero,
		FeesAmount:      decimal.Zero,
		Status:          models.PaymentStatusScheduled,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := l.storage.CreatePayment(scheduled); err != nil {
		return nil, fmt.Errorf("failed to schedule first payment: %w", err)
	}

	l.logger.Info("loan disbursed",
		zap.String("loan_id", loan.ID.String()),
		zap.String("principal", loan.Principal.String()),
		zap.Time("start_date", start),
		zap.Time("end_date", end),
		zap.Time("first_due_date", firstDue),
	)
	return loan, nil
}

// RecordPayment processes a payment against an active or in-arrears loan.
// The amount is split across interest, fees and principal in priority order,
// the loan balances are updated and a completed payment record is persisted.
// A nil paymentDate means the payment settles now.
func (l *Ledger) RecordPayment(loanID uuid.UUID, amount decimal.Decimal, paymentDate *time.Time) (*models.LoanPayment, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("payment amount must be positive")
	}

	loan, err := l.storage.GetLoan(loanID)
	if err != nil {
		return nil, err
	}
	if loan.Status != models.LoanStatusActive && loan.Status != models.LoanStatusInArrears {
		return nil, fmt.Errorf("%w: loan is not active", ErrInvalidState)
	}

	now := l.now()
	when := now
	if paymentDate != nil {
		when = *paymentDate
	}

	interestDue := l.calc.InterestDue(loan, when)
	feesDue := l.calc.FeesDue(loan, when)
	split := finance.AllocatePayment(amount, interestDue, feesDue)

	dueDate := when
	daysLate := 0
	if loan.NextPaymentDueDate != nil {
		dueDate = *loan.NextPaymentDueDate
		if late := finance.DaysBetween(dueDate, when); late > 0 {
			daysLate = late
		}
	}

	payments, err := l.storage.GetPaymentsForLoan(loanID)
	if err != nil {
		return nil, fmt.Errorf("failed to load payments: %w", err)
	}

	// Settle the open scheduled record when one exists; otherwise this is an
	// unscheduled payment and gets a fresh record.
	var payment *models.LoanPayment
	for _, p := range payments {
		if p.Status == models.PaymentStatusScheduled || p.Status == models.PaymentStatusDue {
			payment = p
			break
		}
	}
	settling := payment != nil
	if !settling {
		payment = &models.LoanPayment{
			ID:            uuid.New(),
			LoanID:        loan.ID,
			PaymentNumber: len(payments) + 1,
			DueDate:       dueDate,
			CreatedAt:     now,
		}
	}
	payment.Amount = amount
	payment.PaymentDate = &when
	payment.InterestAmount = split.Interest
	payment.PrincipalAmount = split.Principal
	payment.FeesAmount = split.Fees
	payment.DaysLate = daysLate
	payment.Status = models.PaymentStatusCompleted
	payment.UpdatedAt = now

	loan.InterestPaid = loan.InterestPaid.Add(split.Interest)
	loan.PrincipalPaid = loan.PrincipalPaid.Add(split.Principal)
	if loan.PrincipalPaid.GreaterThan(loan.Principal) {
		loan.PrincipalPaid = loan.Principal
	}
	// Interest settles against InterestPaid only; the balance tracks unpaid
	// principal and shrinks by the principal portion alone.
	loan.CurrentBalance = loan.CurrentBalance.Sub(split.Principal)
	if loan.CurrentBalance.IsNegative() {
		loan.CurrentBalance = decimal.Zero
	}
	loan.LastPaymentDate = &when
	loan.UpdatedAt = now

	if loan.PrincipalRemaining().IsZero() {
		loan.Status = models.LoanStatusPaid
		loan.CurrentBalance = decimal.Zero
	} else if loan.StartDate != nil {
		nextDue, dueErr := finance.NextDueDate(*loan.StartDate, loan.DurationDays, when)
		if dueErr != nil {
			l.logger.Error("failed to project next due date",
				zap.String("loan_id", loan.ID.String()),
				zap.Error(dueErr),
			)
		} else {
			loan.NextPaymentDueDate = &nextDue
		}
	}

	if err := l.storage.UpdateLoan(loan); err != nil {
		return nil, fmt.Errorf("failed to update loan balances: %w", err)
	}
	if settling {
		if err := l.storage.UpdatePayment(payment); err != nil {
			return nil, fmt.Errorf("failed to settle payment: %w", err)
		}
	} else {
		if err := l.storage.CreatePayment(payment); err != nil {
			return nil, fmt.Errorf("failed to store payment: %w", err)
		}
	}

	// Roll the schedule forward while the loan still carries a balance.
	if loan.Status != models.LoanStatusPaid && loan.NextPaymentDueDate != nil {
		next := &models.LoanPayment{
			ID:              uuid.New(),
			LoanID:          loan.ID,
			PaymentNumber:   payment.PaymentNumber + 1,
			Amount:          l.calc.AmortizedPayment(loan, when),
			DueDate:         *loan.NextPaymentDueDate,
			InterestAmount:  decimal.Zero,
			PrincipalAmount: decimal.Zero,
			FeesAmount:      decimal.Zero,
			Status:          models.PaymentStatusScheduled,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := l.storage.CreatePayment(next); err != nil {
			return nil, fmt.Errorf("failed to schedule next payment: %w", err)
		}
	}

	l.logger.Info("payment recorded",
		zap.String("loan_id", loan.ID.String()),
		zap.String("payment_id", payment.ID.String()),
		zap.String("amount", amount.String()),
		zap.String("interest", split.Interest.String()),
		zap.String("fees", split.Fees.String()),
		zap.String("principal", split.Principal.String()),
		zap.String("loan_status", string(loan.Status)),
	)
	return payment, nil
}

// LoanSummary is a loan plus its derived read-model fields. The derived
// values are computed on demand and never persisted.
type LoanSummary struct {
	Loan                 *models.Loan    `json:"loan"`
	CurrentInterestDue   decimal.Decimal `json:"current_interest_due"`
	PrincipalRemaining   decimal.Decimal `json:"principal_remaining"`
	MonthlyPaymentAmount decimal.Decimal `json:"monthly_payment_amount"`
	NextPaymentDueDate   *time.Time      `json:"next_payment_due_date,omitempty"`
}

// GetLoanSummary returns the loan with its computed fields as of the given
// instant.
func (l *Ledger) GetLoanSummary(id uuid.UUID, asOf time.Time) (*LoanSummary, error) {
	loan, err := l.storage.GetLoan(id)
	if err != nil {
		return nil, err
	}

	summary := &LoanSummary{
		Loan:                 loan,
		CurrentInterestDue:   l.calc.AccruedInterest(loan, asOf),
		PrincipalRemaining:   loan.PrincipalRemaining(),
		MonthlyPaymentAmount: l.calc.AmortizedPayment(loan, asOf),
	}
	if loan.StartDate != nil && loan.DurationDays > 0 {
		due, dueErr := finance.NextDueDate(*loan.StartDate, loan.DurationDays, asOf)
		if dueErr != nil {
			l.logger.Error("failed to project next due date",
				zap.String("loan_id", loan.ID.String()),
				zap.Error(dueErr),
			)
		} else {
			summary.NextPaymentDueDate = &due
		}
	}
	return summary, nil
}

// SweepArrears flags active loans past due beyond their grace period as
// in-arrears and returns in-arrears loans that have been brought current to
// active. It returns the number of loans whose status changed.
func (l *Ledger) SweepArrears(now time.Time) (int, error) {
	changed := 0

	active, err := l.storage.GetLoansByStatus(models.LoanStatusActive)
	if err != nil {
		return 0, fmt.Errorf("failed to load active loans: %w", err)
	}
	for _, loan := range active {
		if !l.pastDue(loan, now) {
			continue
		}
		loan.Status = models.LoanStatusInArrears
		loan.UpdatedAt = l.now()
		if err := l.storage.UpdateLoan(loan); err != nil {
			l.logger.Error("failed to flag loan in arrears",
				zap.String("loan_id", loan.ID.String()),
				zap.Error(err),
			)
			continue
		}
		l.logger.Warn("loan in arrears",
			zap.String("loan_id", loan.ID.String()),
			zap.Timep("next_payment_due_date", loan.NextPaymentDueDate),
			zap.Int("grace_period_days", loan.GracePeriodDays),
		)
		changed++
	}

	arrears, err := l.storage.GetLoansByStatus(models.LoanStatusInArrears)
	if err != nil {
		return changed, fmt.Errorf("failed to load in-arrears loans: %w", err)
	}
	for _, loan := range arrears {
		if l.pastDue(loan, now) {
			continue
		}
		loan.Status = models.LoanStatusActive
		loan.UpdatedAt = l.now()
		if err := l.storage.UpdateLoan(loan); err != nil {
			l.logger.Error("failed to return loan to active",
				zap.String("loan_id", loan.ID.String()),
				zap.Error(err),
			)
			continue
		}
		l.logger.Info("loan brought current",
			zap.String("loan_id", loan.ID.String()),
		)
		changed++
	}

	return changed, nil
}

// pastDue reports whether the loan's next due date has passed by more than
// its grace period.
func (l *Ledger) pastDue(loan *models.Loan, now time.Time) bool {
	if loan.NextPaymentDueDate == nil {
		return false
	}
	return finance.DaysBetween(*loan.NextPaymentDueDate, now) > loan.GracePeriodDays
}

// GetLoan retrieves a loan by its ID.
func (l *Ledger) GetLoan(id uuid.UUID) (*models.Loan, error) {
	return l.storage.GetLoan(id)
}

// GetAllLoans retrieves all loans.
func (l *Ledger) GetAllLoans() ([]*models.Loan, error) {
	return l.storage.GetAllLoans()
}

// UpdateLoan updates an existing loan. Terminal loans are immutable.
func (l *Ledger) UpdateLoan(loan *models.Loan) error {
	current, err := l.storage.GetLoan(loan.ID)
	if err != nil {
		return err
	}
	if current.Status.IsTerminal() {
		return fmt.Errorf("%w: loan in status %s is immutable", ErrInvalidState, current.Status)
	}
	loan.UpdatedAt = l.now()
	return l.storage.UpdateLoan(loan)
}

// DeleteLoan deletes a loan and its payments.
func (l *Ledger) DeleteLoan(id uuid.UUID) error {
	return l.storage.DeleteLoan(id)
}

// GetPaymentsForLoan retrieves all payments for a loan in schedule order.
func (l *Ledger) GetPaymentsForLoan(loanID uuid.UUID) ([]*models.LoanPayment, error) {
	return l.storage.GetPaymentsForLoan(loanID)
}
