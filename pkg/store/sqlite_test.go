package store

import (
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/oscarfrank/lendcore/pkg/models"
)

func newTestStore(t *testing.T, dbFile string) *SQLiteStore {
	t.Helper()
	os.Remove(dbFile)
	t.Cleanup(func() { os.Remove(dbFile) })

	s, err := NewSQLiteStore(dbFile, nil)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testLoan() *models.Loan {
	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 360)
	nextDue := start.AddDate(0, 0, 30)
	return &models.Loan{
		ID:                        uuid.New(),
		BorrowerKey:               "cust_test",
		Principal:                 decimal.NewFromFloat(10000),
		CurrentBalance:            decimal.NewFromFloat(10000),
		InterestRate:              decimal.NewFromFloat(12.5),
		InterestType:              models.InterestTypeSimple,
		InterestCalculationPeriod: models.PeriodMonthly,
		DurationDays:              30,
		StartDate:                 &start,
		EndDate:                   &end,
		PrincipalPaid:             decimal.Zero,
		InterestPaid:              decimal.Zero,
		GracePeriodDays:           5,
		LatePaymentFeeFixed:       decimal.NewFromFloat(25),
		LatePaymentFeePercentage:  decimal.NewFromFloat(1.5),
		NextPaymentDueDate:        &nextDue,
		Status:                    models.LoanStatusActive,
		CreatedAt:                 time.Now(),
		UpdatedAt:                 time.Now(),
	}
}

func TestSQLiteStore_CreateAndGetLoan(t *testing.T) {
	s := newTestStore(t, "test_store_loan.db")

	loan := testLoan()
	if err := s.CreateLoan(loan); err != nil {
		t.Fatalf("Failed to create loan: %v", err)
	}

	fetched, err := s.GetLoan(loan.ID)
	if err != nil {
		t.Fatalf("Failed to get loan: %v", err)
	}

	if fetched.BorrowerKey != loan.BorrowerKey {
		t.Errorf("Expected BorrowerKey %s, got %s", loan.BorrowerKey, fetched.BorrowerKey)
	}
	if !fetched.Principal.Equal(loan.Principal) {
		t.Errorf("Expected Principal %s, got %s", loan.Principal, fetched.Principal)
	}
	if !fetched.InterestRate.Equal(loan.InterestRate) {
		t.Errorf("Expected InterestRate %s, got %s", loan.InterestRate, fetched.InterestRate)
	}
	if !fetched.LatePaymentFeePercentage.Equal(loan.LatePaymentFeePercentage) {
		t.Errorf("Expected fee percentage %s, got %s", loan.LatePaymentFeePercentage, fetched.LatePaymentFeePercentage)
	}
	if fetched.InterestType != models.InterestTypeSimple {
		t.Errorf("Expected InterestType simple, got %s", fetched.InterestType)
	}
	if fetched.InterestCalculationPeriod != models.PeriodMonthly {
		t.Errorf("Expected monthly period, got %s", fetched.InterestCalculationPeriod)
	}
	if fetched.Status != models.LoanStatusActive {
		t.Errorf("Expected status active, got %s", fetched.Status)
	}
	if fetched.StartDate == nil || !fetched.StartDate.Equal(*loan.StartDate) {
		t.Errorf("Expected StartDate %v, got %v", loan.StartDate, fetched.StartDate)
	}
	if fetched.NextPaymentDueDate == nil || !fetched.NextPaymentDueDate.Equal(*loan.NextPaymentDueDate) {
		t.Errorf("Expected NextPaymentDueDate %v, got %v", loan.NextPaymentDueDate, fetched.NextPaymentDueDate)
	}
	if fetched.LastPaymentDate != nil {
		t.Errorf("Expected nil LastPaymentDate, got %v", fetched.LastPaymentDate)
	}
}

func TestSQLiteStore_UpdateLoan(t *testing.T) {
	s := newTestStore(t, "test_store_update.db")

	loan := testLoan()
	if err := s.CreateLoan(loan); err != nil {
		t.Fatalf("Failed to create loan: %v", err)
	}

	paid := time.Date(2024, time.February, 15, 0, 0, 0, 0, time.UTC)
	loan.CurrentBalance = decimal.NewFromFloat(9625)
	loan.PrincipalPaid = decimal.NewFromFloat(175)
	loan.InterestPaid = decimal.NewFromFloat(200)
	loan.LastPaymentDate = &paid
	loan.Status = models.LoanStatusInArrears
	if err := s.UpdateLoan(loan); err != nil {
		t.Fatalf("Failed to update loan: %v", err)
	}

	fetched, err := s.GetLoan(loan.ID)
	if err != nil {
		t.Fatalf("Failed to get loan: %v", err)
	}
	if !fetched.CurrentBalance.Equal(decimal.NewFromFloat(9625)) {
		t.Errorf("Expected balance 9625, got %s", fetched.CurrentBalance)
	}
	if !fetched.PrincipalPaid.Equal(decimal.NewFromFloat(175)) {
		t.Errorf("Expected principal paid 175, got %s", fetched.PrincipalPaid)
	}
	if fetched.LastPaymentDate == nil || !fetched.LastPaymentDate.Equal(paid) {
		t.Errorf("Expected LastPaymentDate %v, got %v", paid, fetched.LastPaymentDate)
	}
	if fetched.Status != models.LoanStatusInArrears {
		t.Errorf("Expected status in_arrears, got %s", fetched.Status)
	}
}

func TestSQLiteStore_GetLoansByStatus(t *testing.T) {
	s := newTestStore(t, "test_store_status.db")

	active := testLoan()
	pending := testLoan()
	pending.Status = models.LoanStatusPending
	if err := s.CreateLoan(active); err != nil {
		t.Fatalf("Failed to create loan: %v", err)
	}
	if err := s.CreateLoan(pending); err != nil {
		t.Fatalf("Failed to create loan: %v", err)
	}

	loans, err := s.GetLoansByStatus(models.LoanStatusActive)
	if err != nil {
		t.Fatalf("Failed to get loans by status: %v", err)
	}
	if len(loans) != 1 {
		t.Fatalf("Expected 1 active loan, got %d", len(loans))
	}
	if loans[0].ID != active.ID {
		t.Errorf("Expected loan %s, got %s", active.ID, loans[0].ID)
	}

	all, err := s.GetAllLoans()
	if err != nil {
		t.Fatalf("Failed to get all loans: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("Expected 2 loans, got %d", len(all))
	}
}

func TestSQLiteStore_Payments(t *testing.T) {
	s := newTestStore(t, "test_store_payments.db")

	loan := testLoan()
	// Must create the loan first due to the foreign key
	if err := s.CreateLoan(loan); err != nil {
		t.Fatalf("Failed to create loan: %v", err)
	}

	due := time.Date(2024, time.January, 31, 0, 0, 0, 0, time.UTC)
	scheduled := &models.LoanPayment{
		ID:              uuid.New(),
		LoanID:          loan.ID,
		PaymentNumber:   1,
		Amount:          decimal.NewFromFloat(856.07),
		DueDate:         due,
		InterestAmount:  decimal.Zero,
		PrincipalAmount: decimal.Zero,
		FeesAmount:      decimal.Zero,
		Status:          models.PaymentStatusScheduled,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
	if err := s.CreatePayment(scheduled); err != nil {
		t.Fatalf("Failed to create payment: %v", err)
	}

	second := &models.LoanPayment{
		ID:              uuid.New(),
		LoanID:          loan.ID,
		PaymentNumber:   2,
		Amount:          decimal.NewFromFloat(856.07),
		DueDate:         due.AddDate(0, 0, 30),
		InterestAmount:  decimal.Zero,
		PrincipalAmount: decimal.Zero,
		FeesAmount:      decimal.Zero,
		Status:          models.PaymentStatusScheduled,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
	if err := s.CreatePayment(second); err != nil {
		t.Fatalf("Failed to create payment: %v", err)
	}

	// Settle the first scheduled payment.
	paidOn := due.AddDate(0, 0, 2)
	scheduled.PaymentDate = &paidOn
	scheduled.InterestAmount = decimal.NewFromFloat(100)
	scheduled.PrincipalAmount = decimal.NewFromFloat(756.07)
	scheduled.DaysLate = 2
	scheduled.Status = models.PaymentStatusCompleted
	if err := s.UpdatePayment(scheduled); err != nil {
		t.Fatalf("Failed to update payment: %v", err)
	}

	payments, err := s.GetPaymentsForLoan(loan.ID)
	if err != nil {
		t.Fatalf("Failed to get payments: %v", err)
	}
	if len(payments) != 2 {
		t.Fatalf("Expected 2 payments, got %d", len(payments))
	}
	if payments[0].PaymentNumber != 1 || payments[1].PaymentNumber != 2 {
		t.Errorf("Expected payments ordered by number, got %d then %d",
			payments[0].PaymentNumber, payments[1].PaymentNumber)
	}
	if payments[0].Status != models.PaymentStatusCompleted {
		t.Errorf("Expected first payment completed, got %s", payments[0].Status)
	}
	if !payments[0].InterestAmount.Equal(decimal.NewFromFloat(100)) {
		t.Errorf("Expected interest 100, got %s", payments[0].InterestAmount)
	}
	if payments[0].PaymentDate == nil || !payments[0].PaymentDate.Equal(paidOn) {
		t.Errorf("Expected payment date %v, got %v", paidOn, payments[0].PaymentDate)
	}
	if payments[0].DaysLate != 2 {
		t.Errorf("Expected 2 days late, got %d", payments[0].DaysLate)
	}
	if payments[1].Status != models.PaymentStatusScheduled {
		t.Errorf("Expected second payment scheduled, got %s", payments[1].Status)
	}
}

func TestSQLiteStore_DeleteLoanCascades(t *testing.T) {
	s := newTestStore(t, "test_store_delete.db")

	loan := testLoan()
	if err := s.CreateLoan(loan); err != nil {
		t.Fatalf("Failed to create loan: %v", err)
	}
	payment := &models.LoanPayment{
		ID:              uuid.New(),
		LoanID:          loan.ID,
		PaymentNumber:   1,
		Amount:          decimal.NewFromFloat(100),
		DueDate:         time.Now(),
		InterestAmount:  decimal.Zero,
		PrincipalAmount: decimal.Zero,
		FeesAmount:      decimal.Zero,
		Status:          models.PaymentStatusScheduled,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
	if err := s.CreatePayment(payment); err != nil {
		t.Fatalf("Failed to create payment: %v", err)
	}

	if err := s.DeleteLoan(loan.ID); err != nil {
		t.Fatalf("Failed to delete loan: %v", err)
	}

	if _, err := s.GetLoan(loan.ID); err == nil {
		t.Error("Expected error getting deleted loan")
	}
	payments, err := s.GetPaymentsForLoan(loan.ID)
	if err != nil {
		t.Fatalf("Failed to get payments: %v", err)
	}
	if len(payments) != 0 {
		t.Errorf("Expected no payments after delete, got %d", len(payments))
	}
}

func TestSQLiteStore_NotFound(t *testing.T) {
	s := newTestStore(t, "test_store_missing.db")

	if _, err := s.GetLoan(uuid.New()); err == nil {
		t.Error("Expected error for unknown loan")
	}
	if err := s.UpdateLoan(testLoan()); err == nil {
		t.Error("Expected error updating unknown loan")
	}
	if err := s.DeleteLoan(uuid.New()); err == nil {
		t.Error("Expected error deleting unknown loan")
	}
	payment := &models.LoanPayment{
		ID:              uuid.New(),
		LoanID:          uuid.New(),
		Amount:          decimal.NewFromFloat(1),
		DueDate:         time.Now(),
		InterestAmount:  decimal.Zero,
		PrincipalAmount: decimal.Zero,
		FeesAmount:      decimal.Zero,
		Status:          models.PaymentStatusScheduled,
	}
	if err := s.UpdatePayment(payment); err == nil {
		t.Error("Expected error updating unknown payment")
	}
}
