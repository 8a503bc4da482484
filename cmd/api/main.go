package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/oscarfrank/lendcore/internal/config"
	"github.com/oscarfrank/lendcore/pkg/ledger"
	"github.com/oscarfrank/lendcore/pkg/models"
	"github.com/oscarfrank/lendcore/pkg/store"
)

// Server holds the ledger instance.
type Server struct {
	ledger  *ledger.Ledger
	storage store.Storage // Keep a reference to the storage to close it
	logger  *zap.Logger
}

func NewServer(s store.Storage, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		ledger:  ledger.NewLedger(s, logger),
		storage: s,
		logger:  logger,
	}
}

func (s *Server) createLoanHandler(w http.ResponseWriter, r *http.Request) {
	var req ledger.CreateLoanInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	loan, err := s.ledger.CreateLoan(req)
	if err != nil {
		s.logger.Error("failed to create loan", zap.Error(err))
		http.Error(w, fmt.Sprintf("Failed to create loan: %v", err), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(loan)
}

func (s *Server) getLoanHandler(w http.ResponseWriter, r *http.Request) {
	loanID, ok := parseLoanID(w, r)
	if !ok {
		return
	}

	loan, err := s.ledger.GetLoan(loanID)
	if err != nil {
		writeLoanError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(loan)
}

func (s *Server) listLoansHandler(w http.ResponseWriter, r *http.Request) {
	loans, err := s.ledger.GetAllLoans()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(loans)
}

func (s *Server) updateLoanHandler(w http.ResponseWriter, r *http.Request) {
	loanID, ok := parseLoanID(w, r)
	if !ok {
		return
	}

	var loan models.Loan
	if err := json.NewDecoder(r.Body).Decode(&loan); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	loan.ID = loanID // Ensure ID from URL is used

	if err := s.ledger.UpdateLoan(&loan); err != nil {
		writeLoanError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(loan)
}

func (s *Server) deleteLoanHandler(w http.ResponseWriter, r *http.Request) {
	loanID, ok := parseLoanID(w, r)
	if !ok {
		return
	}

	if err := s.ledger.DeleteLoan(loanID); err != nil {
		writeLoanError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// transitionHandler builds a handler for a simple lifecycle action.
func (s *Server) transitionHandler(action func(uuid.UUID) (*models.Loan, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		loanID, ok := parseLoanID(w, r)
		if !ok {
			return
		}

		loan, err := action(loanID)
		if err != nil {
			writeLoanError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(loan)
	}
}

func (s *Server) recordPaymentHandler(w http.ResponseWriter, r *http.Request) {
	loanID, ok := parseLoanID(w, r)
	if !ok {
		return
	}

	var req struct {
		Amount      decimal.Decimal `json:"amount"`
		PaymentDate *time.Time      `json:"payment_date,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.Amount.LessThanOrEqual(decimal.Zero) {
		http.Error(w, "Amount must be positive", http.StatusBadRequest)
		return
	}

	payment, err := s.ledger.RecordPayment(loanID, req.Amount, req.PaymentDate)
	if err != nil {
		writeLoanError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(payment)
}

func (s *Server) listPaymentsHandler(w http.ResponseWriter, r *http.Request) {
	loanID, ok := parseLoanID(w, r)
	if !ok {
		return
	}

	payments, err := s.ledger.GetPaymentsForLoan(loanID)
	if err != nil {
		writeLoanError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(payments)
}

func (s *Server) loanSummaryHandler(w http.ResponseWriter, r *http.Request) {
	loanID, ok := parseLoanID(w, r)
	if !ok {
		return
	}

	summary, err := s.ledger.GetLoanSummary(loanID, time.Now())
	if err != nil {
		writeLoanError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summary)
}

func parseLoanID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	loanID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid loan ID", http.StatusBadRequest)
		return uuid.UUID{}, false
	}
	return loanID, true
}

func writeLoanError(w http.ResponseWriter, err error) {
	if err.Error() == "loan not found" {
		http.Error(w, "Loan not found", http.StatusNotFound)
		return
	}
	if errors.Is(err, ledger.ErrInvalidState) {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func newRouter(server *Server) *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/loans", server.listLoansHandler).Methods("GET")
	router.HandleFunc("/loans", server.createLoanHandler).Methods("POST")
	router.HandleFunc("/loans/{id}", server.getLoanHandler).Methods("GET")
	router.HandleFunc("/loans/{id}", server.updateLoanHandler).Methods("PUT")
	router.HandleFunc("/loans/{id}", server.deleteLoanHandler).Methods("DELETE")
	router.HandleFunc("/loans/{id}/summary", server.loanSummaryHandler).Methods("GET")

	router.HandleFunc("/loans/{id}/approve", server.transitionHandler(server.ledger.ApproveLoan)).Methods("POST")
	router.HandleFunc("/loans/{id}/reject", server.transitionHandler(server.ledger.RejectLoan)).Methods("POST")
	router.HandleFunc("/loans/{id}/cancel", server.transitionHandler(server.ledger.CancelLoan)).Methods("POST")
	router.HandleFunc("/loans/{id}/disburse", server.transitionHandler(server.ledger.DisburseLoan)).Methods("POST")
	router.HandleFunc("/loans/{id}/default", server.transitionHandler(server.ledger.MarkDefaulted)).Methods("POST")
	router.HandleFunc("/loans/{id}/close", server.transitionHandler(server.ledger.CloseLoan)).Methods("POST")

	router.HandleFunc("/loans/{id}/payments", server.recordPaymentHandler).Methods("POST")
	router.HandleFunc("/loans/{id}/payments", server.listPaymentsHandler).Methods("GET")

	return router
}

// initializeLogger creates a zap logger from the configured level and format.
func initializeLogger(cfg *config.Config) (*zap.Logger, error) {
	var level zapcore.Level
	switch cfg.LogLevel {
	case "debug":
		level = zapcore.DebugLevel
	case "info", "":
		level = zapcore.InfoLevel
	case "warn", "warning":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		return nil, fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}

	var zapConfig zap.Config
	switch cfg.LogFormat {
	case "console":
		zapConfig = zap.NewDevelopmentConfig()
	case "json", "":
		zapConfig = zap.NewProductionConfig()
	default:
		return nil, fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}
	zapConfig.Level = zap.NewAtomicLevelAt(level)

	return zapConfig.Build()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := initializeLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	sqliteStore, err := store.NewSQLiteStore(cfg.DatabasePath, logger)
	if err != nil {
		logger.Fatal("failed to initialize SQLite store", zap.Error(err))
	}
	defer sqliteStore.Close()

	server := NewServer(sqliteStore, logger)

	// Periodic arrears sweep
	scheduler := cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger)))
	if _, err := scheduler.AddFunc(cfg.ArrearsSchedule, func() {
		changed, err := server.ledger.SweepArrears(time.Now())
		if err != nil {
			logger.Error("arrears sweep failed", zap.Error(err))
			return
		}
		logger.Info("arrears sweep complete", zap.Int("loans_changed", changed))
	}); err != nil {
		logger.Fatal("failed to schedule arrears sweep",
			zap.String("schedule", cfg.ArrearsSchedule), zap.Error(err))
	}
	scheduler.Start()

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: newRouter(server),
	}

	go func() {
		logger.Info("server starting", zap.String("addr", cfg.ListenAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// Wait for termination signal to gracefully shut down
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutdown signal received")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
	<-scheduler.Stop().Done()
	logger.Info("server stopped")
}
