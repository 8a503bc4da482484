package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/oscarfrank/lendcore/pkg/models"

	_ "github.com/mattn/go-sqlite3"
)

// Persisted precision: currency amounts carry 2 fractional digits and rate
// fields carry 4, so repeated recomputation never drifts against storage.
const (
	currencyScale = 2
	rateScale     = 4
)

// SQLiteStore manages the database connection and operations for SQLite.
// Decimal fields are stored as TEXT so no precision is lost.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteStore creates a new SQLiteStore and initializes the database.
func NewSQLiteStore(dataSourceName string, logger *zap.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	// Manually enable foreign keys and WAL mode
	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}

	s := &SQLiteStore{db: db, logger: logger}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("could not initialize schema: %w", err)
	}
	logger.Info("database connection established and schema initialized",
		zap.String("path", dataSourceName))
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS loans (
		id TEXT PRIMARY KEY,
		borrower_key TEXT NOT NULL,
		principal TEXT NOT NULL,
		current_balance TEXT NOT NULL,
		interest_rate TEXT NOT NULL,
		interest_type TEXT NOT NULL,
		interest_calculation_period TEXT NOT NULL,
		duration_days INTEGER NOT NULL,
		start_date DATETIME,
		end_date DATETIME,
		principal_paid TEXT NOT NULL DEFAULT '0',
		interest_paid TEXT NOT NULL DEFAULT '0',
		grace_period_days INTEGER NOT NULL DEFAULT 0,
		late_payment_fee_fixed TEXT NOT NULL DEFAULT '0',
		late_payment_fee_percentage TEXT NOT NULL DEFAULT '0',
		next_payment_due_date DATETIME,
		last_payment_date DATETIME,
		status TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS loan_payments (
		id TEXT PRIMARY KEY,
		loan_id TEXT NOT NULL,
		payment_number INTEGER NOT NULL,
		amount TEXT NOT NULL,
		due_date DATETIME NOT NULL,
		payment_date DATETIME,
		interest_amount TEXT NOT NULL DEFAULT '0',
		principal_amount TEXT NOT NULL DEFAULT '0',
		fees_amount TEXT NOT NULL DEFAULT '0',
		days_late INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		FOREIGN KEY(loan_id) REFERENCES loans(id)
	);
	CREATE INDEX IF NOT EXISTS idx_loan_payments_loan ON loan_payments(loan_id, payment_number);
	`
	_, err := s.db.Exec(schema)
	return err
}

const loanColumns = `id, borrower_key, principal, current_balance, interest_rate, interest_type, interest_calculation_period, duration_days, start_date, end_date, principal_paid, interest_paid, grace_period_days, late_payment_fee_fixed, late_payment_fee_percentage, next_payment_due_date, last_payment_date, status, created_at, updated_at`

// CreateLoan inserts a new loan into the database.
func (s *SQLiteStore) CreateLoan(loan *models.Loan) error {
	_, err := s.db.Exec(
		fmt.Sprintf(`INSERT INTO loans (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, loanColumns),
		loan.ID.String(), loan.BorrowerKey,
		loan.Principal.StringFixed(currencyScale), loan.CurrentBalance.StringFixed(currencyScale),
		loan.InterestRate.StringFixed(rateScale),
		string(loan.InterestType), string(loan.InterestCalculationPeriod), loan.DurationDays,
		nullTime(loan.StartDate), nullTime(loan.EndDate),
		loan.PrincipalPaid.StringFixed(currencyScale), loan.InterestPaid.StringFixed(currencyScale),
		loan.GracePeriodDays,
		loan.LatePaymentFeeFixed.StringFixed(currencyScale), loan.LatePaymentFeePercentage.StringFixed(rateScale),
		nullTime(loan.NextPaymentDueDate), nullTime(loan.LastPaymentDate),
		string(loan.Status), loan.CreatedAt, loan.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create loan: %w", err)
	}
	return nil
}

// GetLoan retrieves a loan by its ID.
func (s *SQLiteStore) GetLoan(id uuid.UUID) (*models.Loan, error) {
	row := s.db.QueryRow(fmt.Sprintf(`SELECT %s FROM loans WHERE id = ?`, loanColumns), id.String())
	loan, err := scanLoan(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("loan not found")
		}
		return nil, fmt.Errorf("failed to get loan: %w", err)
	}
	return loan, nil
}

// UpdateLoan updates an existing loan in the database.
func (s *SQLiteStore) UpdateLoan(loan *models.Loan) error {
	result, err := s.db.Exec(
		`UPDATE loans SET borrower_key = ?, principal = ?, current_balance = ?, interest_rate = ?, interest_type = ?, interest_calculation_period = ?, duration_days = ?, start_date = ?, end_date = ?, principal_paid = ?, interest_paid = ?, grace_period_days = ?, late_payment_fee_fixed = ?, late_payment_fee_percentage = ?, next_payment_due_date = ?, last_payment_date = ?, status = ?, updated_at = ? WHERE id = ?`,
		loan.BorrowerKey,
		loan.Principal.StringFixed(currencyScale), loan.CurrentBalance.StringFixed(currencyScale),
		loan.InterestRate.StringFixed(rateScale),
		string(loan.InterestType), string(loan.InterestCalculationPeriod), loan.DurationDays,
		nullTime(loan.StartDate), nullTime(loan.EndDate),
		loan.PrincipalPaid.StringFixed(currencyScale), loan.InterestPaid.StringFixed(currencyScale),
		loan.GracePeriodDays,
		loan.LatePaymentFeeFixed.StringFixed(currencyScale), loan.LatePaymentFeePercentage.StringFixed(rateScale),
		nullTime(loan.NextPaymentDueDate), nullTime(loan.LastPaymentDate),
		string(loan.Status), loan.UpdatedAt, loan.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update loan: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("loan not found")
	}
	return nil
}

// DeleteLoan removes a loan and its payments within a transaction.
func (s *SQLiteStore) DeleteLoan(id uuid.UUID) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM loan_payments WHERE loan_id = ?`, id.String()); err != nil {
		return fmt.Errorf("failed to delete associated payments: %w", err)
	}

	result, err := tx.Exec(`DELETE FROM loans WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete loan: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("loan not found")
	}

	return tx.Commit()
}

// GetAllLoans retrieves all loans.
func (s *SQLiteStore) GetAllLoans() ([]*models.Loan, error) {
	rows, err := s.db.Query(fmt.Sprintf(`SELECT %s FROM loans`, loanColumns))
	if err != nil {
		return nil, fmt.Errorf("failed to get all loans: %w", err)
	}
	defer rows.Close()

	return scanLoans(rows)
}

// GetLoansByStatus retrieves all loans in the given status.
func (s *SQLiteStore) GetLoansByStatus(status models.LoanStatus) ([]*models.Loan, error) {
	rows, err := s.db.Query(fmt.Sprintf(`SELECT %s FROM loans WHERE status = ?`, loanColumns), string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to get loans by status: %w", err)
	}
	defer rows.Close()

	return scanLoans(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLoan(row rowScanner) (*models.Loan, error) {
	var loan models.Loan
	var idStr, interestType, period, status string
	var startDate, endDate, nextDue, lastPayment sql.NullTime
	var created, updated time.Time

	err := row.Scan(
		&idStr, &loan.BorrowerKey,
		&loan.Principal, &loan.CurrentBalance, &loan.InterestRate,
		&interestType, &period, &loan.DurationDays,
		&startDate, &endDate,
		&loan.PrincipalPaid, &loan.InterestPaid,
		&loan.GracePeriodDays,
		&loan.LatePaymentFeeFixed, &loan.LatePaymentFeePercentage,
		&nextDue, &lastPayment,
		&status, &created, &updated,
	)
	if err != nil {
		return nil, err
	}

	loan.ID = uuid.MustParse(idStr)
	loan.InterestType = models.InterestType(interestType)
	loan.InterestCalculationPeriod = models.CalculationPeriod(period)
	loan.Status = models.LoanStatus(status)
	loan.CreatedAt = created
	loan.UpdatedAt = updated
	if startDate.Valid {
		loan.StartDate = &startDate.Time
	}
	if endDate.Valid {
		loan.EndDate = &endDate.Time
	}
	if nextDue.Valid {
		loan.NextPaymentDueDate = &nextDue.Time
	}
	if lastPayment.Valid {
		loan.LastPaymentDate = &lastPayment.Time
	}
	return &loan, nil
}

func scanLoans(rows *sql.Rows) ([]*models.Loan, error) {
	var loans []*models.Loan
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan loan row: %w", err)
		}
		loans = append(loans, loan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return loans, nil
}

// CreatePayment inserts a new payment record into the database.
func (s *SQLiteStore) CreatePayment(payment *models.LoanPayment) error {
	_, err := s.db.Exec(
		`INSERT INTO loan_payments (id, loan_id, payment_number, amount, due_date, payment_date, interest_amount, principal_amount, fees_amount, days_late, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		payment.ID.String(), payment.LoanID.String(), payment.PaymentNumber,
		payment.Amount.StringFixed(currencyScale), payment.DueDate, nullTime(payment.PaymentDate),
		payment.InterestAmount.StringFixed(currencyScale), payment.PrincipalAmount.StringFixed(currencyScale), payment.FeesAmount.StringFixed(currencyScale),
		payment.DaysLate, string(payment.Status), payment.CreatedAt, payment.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

// UpdatePayment updates an existing payment record.
func (s *SQLiteStore) UpdatePayment(payment *models.LoanPayment) error {
	result, err := s.db.Exec(
		`UPDATE loan_payments SET payment_number = ?, amount = ?, due_date = ?, payment_date = ?, interest_amount = ?, principal_amount = ?, fees_amount = ?, days_late = ?, status = ?, updated_at = ? WHERE id = ?`,
		payment.PaymentNumber,
		payment.Amount.StringFixed(currencyScale), payment.DueDate, nullTime(payment.PaymentDate),
		payment.InterestAmount.StringFixed(currencyScale), payment.PrincipalAmount.StringFixed(currencyScale), payment.FeesAmount.StringFixed(currencyScale),
		payment.DaysLate, string(payment.Status), payment.UpdatedAt, payment.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("payment not found")
	}
	return nil
}

// GetPaymentsForLoan retrieves all payments for a loan ordered by payment
// number; ordering is significant for schedule derivation.
func (s *SQLiteStore) GetPaymentsForLoan(loanID uuid.UUID) ([]*models.LoanPayment, error) {
	rows, err := s.db.Query(
		`SELECT id, loan_id, payment_number, amount, due_date, payment_date, interest_amount, principal_amount, fees_amount, days_late, status, created_at, updated_at
		FROM loan_payments WHERE loan_id = ? ORDER BY payment_number ASC, due_date ASC`,
		loanID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get payments for loan %s: %w", loanID, err)
	}
	defer rows.Close()

	var payments []*models.LoanPayment
	for rows.Next() {
		var payment models.LoanPayment
		var idStr, loanIDStr, status string
		var paymentDate sql.NullTime
		var created, updated time.Time
		if err := rows.Scan(
			&idStr, &loanIDStr, &payment.PaymentNumber,
			&payment.Amount, &payment.DueDate, &paymentDate,
			&payment.InterestAmount, &payment.PrincipalAmount, &payment.FeesAmount,
			&payment.DaysLate, &status, &created, &updated,
		); err != nil {
			return nil, fmt.Errorf("failed to scan payment row: %w", err)
		}
		payment.ID = uuid.MustParse(idStr)
		payment.LoanID = uuid.MustParse(loanIDStr)
		payment.Status = models.PaymentStatus(status)
		payment.CreatedAt = created
		payment.UpdatedAt = updated
		if paymentDate.Valid {
			payment.PaymentDate = &paymentDate.Time
		}
		payments = append(payments, &payment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration for loan payments: %w", err)
	}
	return payments, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
