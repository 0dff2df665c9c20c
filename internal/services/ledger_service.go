package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/analytics"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/records"
)

// storeTimeout bounds every store call made on behalf of a request.
const storeTimeout = 7 * time.Second

// ErrInvalidMonth is returned for a month filter not in YYYY-MM form.
var ErrInvalidMonth = errors.New("invalid month, expected YYYY-MM")

// AlertPublisher delivers budget alerts to the alert worker.
type AlertPublisher interface {
	PublishBudgetAlert(ctx context.Context, msg *amqp.BudgetAlertMessage) error
}

// Invalidator drops cached views derived from a user's records.
type Invalidator interface {
	Invalidate(userID int64)
}

// LedgerService stores expenses, incomes and budgets for a user and raises
// budget alerts after each expense.
type LedgerService struct {
	store       records.Store
	publisher   AlertPublisher
	invalidator Invalidator
	logger      *log.StructuredLogger
	now         func() time.Time
}

// NewLedgerService wires a ledger. publisher and invalidator may be nil.
// now supplies the wall clock in the configured time zone.
func NewLedgerService(store records.Store, publisher AlertPublisher, invalidator Invalidator, logger *log.StructuredLogger, now func() time.Time) *LedgerService {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = log.NewStructuredLogger(log.New(log.DefaultConfig()))
	}
	return &LedgerService{
		store:       store,
		publisher:   publisher,
		invalidator: invalidator,
		logger:      logger,
		now:         now,
	}
}

// CreateExpense validates and stores e, then publishes an alert for every
// budget of the same category that is in warning or danger.
func (s *LedgerService) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	e.Category = strings.TrimSpace(e.Category)
	e.Note = strings.TrimSpace(e.Note)
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}

	sctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	saved, err := s.store.CreateExpense(sctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}
	s.invalidate(saved.UserID)
	s.logger.LogRecordCreated(ctx, string(core.KindExpense), saved.UserID, saved.ID, saved.Amount.Cents, saved.Category)

	// Alerts never fail the write; the expense is already stored.
	s.raiseBudgetAlerts(sctx, saved.UserID, saved.Category)

	return saved, nil
}

func (s *LedgerService) raiseBudgetAlerts(ctx context.Context, userID int64, category string) {
	if s.publisher == nil {
		return
	}

	budgets, err := s.store.ListBudgets(ctx, userID)
	if err != nil {
		s.logger.LogError(ctx, "Failed to load budgets for alerts", err, log.ComponentLedger, log.OpRead, log.NewFields().WithUser(userID))
		return
	}
	var matching []core.Budget
	for _, b := range budgets {
		if b.Category == category {
			matching = append(matching, b)
		}
	}
	if len(matching) == 0 {
		return
	}

	expenses, err := s.store.ListExpenses(ctx, userID)
	if err != nil {
		s.logger.LogError(ctx, "Failed to load expenses for alerts", err, log.ComponentLedger, log.OpRead, log.NewFields().WithUser(userID))
		return
	}

	now := s.now()
	for _, b := range matching {
		status := analytics.EvaluateBudget(b, expenses, now)
		if status.ProgressClass == analytics.ClassNormal || math.IsInf(float64(status.Percentage), 0) {
			continue
		}

		alert := core.BudgetAlert{
			UserID:      userID,
			BudgetID:    b.ID,
			Category:    b.Category,
			Period:      b.Period,
			WindowStart: core.DateOf(analytics.PeriodWindow(b.Period, now).Start),
			Spent:       status.Spent,
			Budget:      b.Amount,
			Percentage:  math.Round(float64(status.Percentage)*100) / 100,
			Status:      status.ProgressClass,
		}
		if err := s.publisher.PublishBudgetAlert(ctx, amqp.NewBudgetAlertMessage(alert)); err != nil {
			s.logger.LogError(ctx, "Failed to publish budget alert", err, log.ComponentLedger, log.OpPublish,
				log.NewFields().WithUser(userID).WithBudget(b.ID, b.Category, string(b.Period), alert.Status, alert.Percentage))
		}
	}
}

func (s *LedgerService) DeleteExpense(ctx context.Context, userID, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	if err := s.store.DeleteExpense(ctx, userID, id); err != nil {
		return fmt.Errorf("delete expense %d: %w", id, err)
	}
	s.invalidate(userID)
	return nil
}

// ListExpenses returns the user's expenses matching f, newest first.
func (s *LedgerService) ListExpenses(ctx context.Context, userID int64, f analytics.ExpenseFilter) ([]core.Expense, error) {
	if err := validateMonth(f.Month); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	expenses, err := s.store.ListExpenses(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return analytics.SortExpensesByDate(analytics.FilterExpenses(expenses, f)), nil
}

func (s *LedgerService) CreateIncome(ctx context.Context, in core.Income) (core.Income, error) {
	in.Source = strings.TrimSpace(in.Source)
	in.Note = strings.TrimSpace(in.Note)
	if err := in.Validate(); err != nil {
		return core.Income{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	saved, err := s.store.CreateIncome(ctx, in)
	if err != nil {
		return core.Income{}, fmt.Errorf("save income: %w", err)
	}
	s.invalidate(saved.UserID)
	s.logger.LogRecordCreated(ctx, string(core.KindIncome), saved.UserID, saved.ID, saved.Amount.Cents, saved.Source)
	return saved, nil
}

func (s *LedgerService) DeleteIncome(ctx context.Context, userID, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	if err := s.store.DeleteIncome(ctx, userID, id); err != nil {
		return fmt.Errorf("delete income %d: %w", id, err)
	}
	s.invalidate(userID)
	return nil
}

// ListIncomes returns the user's incomes matching f, newest first.
func (s *LedgerService) ListIncomes(ctx context.Context, userID int64, f analytics.IncomeFilter) ([]core.Income, error) {
	if err := validateMonth(f.Month); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	incomes, err := s.store.ListIncomes(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list incomes: %w", err)
	}
	return analytics.SortIncomesByDate(analytics.FilterIncomes(incomes, f)), nil
}

// SetBudget creates the budget or replaces the amount of the existing one
// with the same category and period.
func (s *LedgerService) SetBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	b.Category = strings.TrimSpace(b.Category)
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	saved, err := s.store.SetBudget(ctx, b)
	if err != nil {
		return core.Budget{}, fmt.Errorf("save budget: %w", err)
	}
	s.invalidate(saved.UserID)
	s.logger.LogRecordCreated(ctx, "budget", saved.UserID, saved.ID, saved.Amount.Cents, saved.Category)
	return saved, nil
}

func (s *LedgerService) DeleteBudget(ctx context.Context, userID, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	if err := s.store.DeleteBudget(ctx, userID, id); err != nil {
		return fmt.Errorf("delete budget %d: %w", id, err)
	}
	s.invalidate(userID)
	return nil
}

// ListBudgets returns the user's budgets, limited to period when it is set.
func (s *LedgerService) ListBudgets(ctx context.Context, userID int64, period core.Period) ([]core.Budget, error) {
	if period != "" {
		if err := period.Validate(); err != nil {
			return nil, err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	budgets, err := s.store.ListBudgets(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	return budgetsFor(budgets, period), nil
}

// ListAlerts returns the user's recorded budget alerts, newest first.
func (s *LedgerService) ListAlerts(ctx context.Context, userID int64, limit int) ([]core.BudgetAlert, error) {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	alerts, err := s.store.ListAlerts(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	return alerts, nil
}

func (s *LedgerService) invalidate(userID int64) {
	if s.invalidator != nil {
		s.invalidator.Invalidate(userID)
	}
}

func budgetsFor(budgets []core.Budget, period core.Period) []core.Budget {
	if period == "" {
		return budgets
	}
	out := make([]core.Budget, 0, len(budgets))
	for _, b := range budgets {
		if b.Period == period {
			out = append(out, b)
		}
	}
	return out
}

func validateMonth(month string) error {
	if month == "" {
		return nil
	}
	if _, err := time.Parse("2006-01", month); err != nil {
		return ErrInvalidMonth
	}
	return nil
}
