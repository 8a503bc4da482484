package store

import (
	"github.com/google/uuid"
	"github.com/oscarfrank/lendcore/pkg/models"
)

// Storage defines the interface for database operations related to loans and
// their payments.
type Storage interface {
	CreateLoan(loan *models.Loan) error
	GetLoan(id uuid.UUID) (*models.Loan, error)
	UpdateLoan(loan *models.Loan) error
	DeleteLoan(id uuid.UUID) error
	GetAllLoans() ([]*models.Loan, error)
	GetLoansByStatus(status models.LoanStatus) ([]*models.Loan, error)

	CreatePayment(payment *models.LoanPayment) error
	UpdatePayment(payment *models.LoanPayment) error
	GetPaymentsForLoan(loanID uuid.UUID) ([]*models.LoanPayment, error)

	Close() error
}
