// Package records defines the ports through which services reach the
// record store. Every operation is scoped to the owning user.
package records

import (
	"context"
	"errors"

	"fintrack/internal/core"
)

var (
	// ErrNotFound is returned when a record does not exist or belongs to
	// another user.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a unique key is already taken.
	ErrConflict = errors.New("record already exists")
)

// Ports for outbound adapters.
type (
	UserStore interface {
		// CreateUser stores a new user and returns its id. A taken username
		// yields ErrConflict.
		CreateUser(ctx context.Context, username, passwordHash string) (int64, error)
		UserByUsername(ctx context.Context, username string) (core.User, error)
		UserByID(ctx context.Context, id int64) (core.User, error)
	}

	ExpenseStore interface {
		CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
		ListExpenses(ctx context.Context, userID int64) ([]core.Expense, error)
		DeleteExpense(ctx context.Context, userID, id int64) error
	}

	IncomeStore interface {
		CreateIncome(ctx context.Context, in core.Income) (core.Income, error)
		ListIncomes(ctx context.Context, userID int64) ([]core.Income, error)
		DeleteIncome(ctx context.Context, userID, id int64) error
	}

	BudgetStore interface {
		// SetBudget inserts or replaces the budget keyed by user, category
		// and period. The id of an existing budget is kept.
		SetBudget(ctx context.Context, b core.Budget) (core.Budget, error)
		ListBudgets(ctx context.Context, userID int64) ([]core.Budget, error)
		DeleteBudget(ctx context.Context, userID, id int64) error
	}

	AlertStore interface {
		// RecordAlert stores an alert once per user, budget, window and
		// status. It reports false when the alert was already recorded.
		RecordAlert(ctx context.Context, a core.BudgetAlert) (bool, error)
		ListAlerts(ctx context.Context, userID int64, limit int) ([]core.BudgetAlert, error)
	}

	// Store groups every port. Both the SQLite repository and the memory
	// store satisfy it.
	Store interface {
		UserStore
		ExpenseStore
		IncomeStore
		BudgetStore
		AlertStore
		Ping(ctx context.Context) error
		Close() error
	}
)
