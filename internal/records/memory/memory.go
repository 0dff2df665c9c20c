// Package memory is an in-process record store used for development and
// tests. Data lives only as long as the process.
package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/records"
)

type alertKey struct {
	userID, budgetID int64
	window           string
	status           string
}

type budgetKey struct {
	userID   int64
	category string
	period   core.Period
}

type Store struct {
	mu       sync.Mutex
	nextID   int64
	users    []core.User
	expenses []core.Expense
	incomes  []core.Income
	budgets  []core.Budget
	alerts   []core.BudgetAlert
	alertSet map[alertKey]struct{}
	now      func() time.Time
}

var _ records.Store = (*Store)(nil)

func New() *Store {
	return &Store{alertSet: make(map[alertKey]struct{}), now: time.Now}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *Store) CreateUser(_ context.Context, username, passwordHash string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == username {
			return 0, records.ErrConflict
		}
	}
	u := core.User{ID: s.id(), Username: username, PasswordHash: passwordHash, CreatedAt: s.now().UTC()}
	s.users = append(s.users, u)
	return u.ID, nil
}

func (s *Store) UserByUsername(_ context.Context, username string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == username {
			return u, nil
		}
	}
	return core.User{}, records.ErrNotFound
}

func (s *Store) UserByID(_ context.Context, id int64) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ID == id {
			return u, nil
		}
	}
	return core.User{}, records.ErrNotFound
}

// CreateExpense validates and stores the expense, assigning its id.
func (s *Store) CreateExpense(_ context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = s.id()
	s.expenses = append(s.expenses, e)
	return e, nil
}

// ListExpenses returns the user's expenses, newest date first.
func (s *Store) ListExpenses(_ context.Context, userID int64) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Expense
	for _, e := range s.expenses {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	slices.SortStableFunc(out, func(a, b core.Expense) int { return strings.Compare(b.Date.String(), a.Date.String()) })
	return out, nil
}

func (s *Store) DeleteExpense(_ context.Context, userID, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.expenses, func(e core.Expense) bool { return e.ID == id && e.UserID == userID })
	if i < 0 {
		return records.ErrNotFound
	}
	s.expenses = slices.Delete(s.expenses, i, i+1)
	return nil
}

func (s *Store) CreateIncome(_ context.Context, in core.Income) (core.Income, error) {
	if err := in.Validate(); err != nil {
		return core.Income{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	in.ID = s.id()
	s.incomes = append(s.incomes, in)
	return in, nil
}

func (s *Store) ListIncomes(_ context.Context, userID int64) ([]core.Income, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Income
	for _, in := range s.incomes {
		if in.UserID == userID {
			out = append(out, in)
		}
	}
	slices.SortStableFunc(out, func(a, b core.Income) int { return strings.Compare(b.Date.String(), a.Date.String()) })
	return out, nil
}

func (s *Store) DeleteIncome(_ context.Context, userID, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.incomes, func(in core.Income) bool { return in.ID == id && in.UserID == userID })
	if i < 0 {
		return records.ErrNotFound
	}
	s.incomes = slices.Delete(s.incomes, i, i+1)
	return nil
}

// SetBudget upserts on (user, category, period).
func (s *Store) SetBudget(_ context.Context, b core.Budget) (core.Budget, error) {
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := budgetKey{b.UserID, b.Category, b.Period}
	for i, cur := range s.budgets {
		if (budgetKey{cur.UserID, cur.Category, cur.Period}) == key {
			s.budgets[i].Amount = b.Amount
			return s.budgets[i], nil
		}
	}
	b.ID = s.id()
	s.budgets = append(s.budgets, b)
	return b, nil
}

func (s *Store) ListBudgets(_ context.Context, userID int64) ([]core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Budget
	for _, b := range s.budgets {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *Store) DeleteBudget(_ context.Context, userID, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.budgets, func(b core.Budget) bool { return b.ID == id && b.UserID == userID })
	if i < 0 {
		return records.ErrNotFound
	}
	s.budgets = slices.Delete(s.budgets, i, i+1)
	return nil
}

func (s *Store) RecordAlert(_ context.Context, a core.BudgetAlert) (bool, error) {
	if err := a.Validate(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := alertKey{a.UserID, a.BudgetID, a.WindowStart.String(), a.Status}
	if _, dup := s.alertSet[key]; dup {
		return false, nil
	}
	s.alertSet[key] = struct{}{}
	a.ID = s.id()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now().UTC()
	}
	s.alerts = append(s.alerts, a)
	return true, nil
}

// ListAlerts returns the user's most recent alerts first, at most limit
// when limit is positive.
func (s *Store) ListAlerts(_ context.Context, userID int64, limit int) ([]core.BudgetAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.BudgetAlert
	for i := len(s.alerts) - 1; i >= 0; i-- {
		if s.alerts[i].UserID != userID {
			continue
		}
		out = append(out, s.alerts[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }
