package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/records"

	_ "modernc.org/sqlite"
)

const timestampLayout = time.RFC3339

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	now     func() time.Time
}

var _ records.Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	repo := &SQLiteRepository{
		db:      db,
		queries: New(db),
		now:     time.Now,
	}

	return repo, nil
}

func dsn(path string) string {
	return "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) CreateUser(ctx context.Context, username, passwordHash string) (int64, error) {
	id, err := r.queries.CreateUser(ctx, username, passwordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, records.ErrConflict
	}
	if err != nil {
		return 0, fmt.Errorf("create user: %w", err)
	}

	slog.InfoContext(ctx, "User registered", "user_id", id, "username", username)
	return id, nil
}

func (r *SQLiteRepository) UserByUsername(ctx context.Context, username string) (core.User, error) {
	u, err := r.queries.GetUserByUsername(ctx, username)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, records.ErrNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user by username: %w", err)
	}
	return toUser(u), nil
}

func (r *SQLiteRepository) UserByID(ctx context.Context, id int64) (core.User, error) {
	u, err := r.queries.GetUserByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, records.ErrNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user by id: %w", err)
	}
	return toUser(u), nil
}

func (r *SQLiteRepository) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	row, err := r.queries.CreateExpense(ctx, CreateExpenseParams{
		UserID:      e.UserID,
		AmountCents: e.Amount.Cents,
		Category:    e.Category,
		Note:        e.Note,
		Date:        e.Date.String(),
	})
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved to SQLite",
		"id", row.ID,
		"user_id", row.UserID,
		"category", row.Category,
		"amount_cents", row.AmountCents,
		"date", row.Date)

	return toExpense(ctx, row), nil
}

// ListExpenses returns the user's expenses, newest date first.
func (r *SQLiteRepository) ListExpenses(ctx context.Context, userID int64) ([]core.Expense, error) {
	rows, err := r.queries.ListExpensesByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	out := make([]core.Expense, len(rows))
	for i, row := range rows {
		out[i] = toExpense(ctx, row)
	}
	return out, nil
}

func (r *SQLiteRepository) DeleteExpense(ctx context.Context, userID, id int64) error {
	n, err := r.queries.DeleteExpense(ctx, id, userID)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	if n == 0 {
		return records.ErrNotFound
	}
	slog.InfoContext(ctx, "Expense deleted", "id", id, "user_id", userID)
	return nil
}

func (r *SQLiteRepository) CreateIncome(ctx context.Context, in core.Income) (core.Income, error) {
	if err := in.Validate(); err != nil {
		return core.Income{}, err
	}
	row, err := r.queries.CreateIncome(ctx, CreateIncomeParams{
		UserID:      in.UserID,
		AmountCents: in.Amount.Cents,
		Source:      in.Source,
		Note:        in.Note,
		Date:        in.Date.String(),
	})
	if err != nil {
		return core.Income{}, fmt.Errorf("create income: %w", err)
	}

	slog.InfoContext(ctx, "Income saved to SQLite",
		"id", row.ID,
		"user_id", row.UserID,
		"source", row.Source,
		"amount_cents", row.AmountCents)

	return toIncome(ctx, row), nil
}

func (r *SQLiteRepository) ListIncomes(ctx context.Context, userID int64) ([]core.Income, error) {
	rows, err := r.queries.ListIncomesByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list incomes: %w", err)
	}
	out := make([]core.Income, len(rows))
	for i, row := range rows {
		out[i] = toIncome(ctx, row)
	}
	return out, nil
}

func (r *SQLiteRepository) DeleteIncome(ctx context.Context, userID, id int64) error {
	n, err := r.queries.DeleteIncome(ctx, id, userID)
	if err != nil {
		return fmt.Errorf("delete income: %w", err)
	}
	if n == 0 {
		return records.ErrNotFound
	}
	return nil
}

// SetBudget upserts on (user, category, period), keeping the id of an
// existing row.
func (r *SQLiteRepository) SetBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}
	row, err := r.queries.UpsertBudget(ctx, UpsertBudgetParams{
		UserID:      b.UserID,
		Category:    b.Category,
		AmountCents: b.Amount.Cents,
		Period:      string(b.Period),
	})
	if err != nil {
		return core.Budget{}, fmt.Errorf("upsert budget: %w", err)
	}

	slog.InfoContext(ctx, "Budget set",
		"id", row.ID,
		"user_id", row.UserID,
		"category", row.Category,
		"period", row.Period,
		"amount_cents", row.AmountCents)

	return toBudget(row), nil
}

func (r *SQLiteRepository) ListBudgets(ctx context.Context, userID int64) ([]core.Budget, error) {
	rows, err := r.queries.ListBudgetsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	out := make([]core.Budget, len(rows))
	for i, row := range rows {
		out[i] = toBudget(row)
	}
	return out, nil
}

func (r *SQLiteRepository) DeleteBudget(ctx context.Context, userID, id int64) error {
	n, err := r.queries.DeleteBudget(ctx, id, userID)
	if err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	if n == 0 {
		return records.ErrNotFound
	}
	return nil
}

// RecordAlert stores the alert unless the same user, budget, window and
// status were already recorded.
func (r *SQLiteRepository) RecordAlert(ctx context.Context, a core.BudgetAlert) (bool, error) {
	if err := a.Validate(); err != nil {
		return false, err
	}
	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = r.now()
	}
	n, err := r.queries.InsertBudgetAlert(ctx, InsertBudgetAlertParams{
		UserID:      a.UserID,
		BudgetID:    a.BudgetID,
		Category:    a.Category,
		Period:      string(a.Period),
		WindowStart: a.WindowStart.String(),
		SpentCents:  a.Spent.Cents,
		BudgetCents: a.Budget.Cents,
		Percentage:  a.Percentage,
		Status:      a.Status,
		CreatedAt:   createdAt.UTC().Format(timestampLayout),
	})
	if err != nil {
		return false, fmt.Errorf("insert budget alert: %w", err)
	}
	return n > 0, nil
}

// ListAlerts returns the newest alerts first. A non-positive limit returns
// every alert.
func (r *SQLiteRepository) ListAlerts(ctx context.Context, userID int64, limit int) ([]core.BudgetAlert, error) {
	l := int64(limit)
	if l <= 0 {
		l = -1
	}
	rows, err := r.queries.ListBudgetAlertsByUser(ctx, userID, l)
	if err != nil {
		return nil, fmt.Errorf("list budget alerts: %w", err)
	}
	out := make([]core.BudgetAlert, len(rows))
	for i, row := range rows {
		out[i] = core.BudgetAlert{
			ID:          row.ID,
			UserID:      row.UserID,
			BudgetID:    row.BudgetID,
			Category:    row.Category,
			Period:      core.Period(row.Period),
			WindowStart: parseStoredDate(ctx, "budget_alerts", row.ID, row.WindowStart),
			Spent:       core.Money{Cents: row.SpentCents},
			Budget:      core.Money{Cents: row.BudgetCents},
			Percentage:  row.Percentage,
			Status:      row.Status,
			CreatedAt:   parseTimestamp(row.CreatedAt),
		}
	}
	return out, nil
}

func toUser(u User) core.User {
	return core.User{
		ID:           u.ID,
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		CreatedAt:    parseTimestamp(u.CreatedAt),
	}
}

func toExpense(ctx context.Context, e Expense) core.Expense {
	return core.Expense{
		ID:       e.ID,
		UserID:   e.UserID,
		Amount:   core.Money{Cents: e.AmountCents},
		Category: e.Category,
		Note:     e.Note,
		Date:     parseStoredDate(ctx, "expenses", e.ID, e.Date),
	}
}

func toIncome(ctx context.Context, in Income) core.Income {
	return core.Income{
		ID:     in.ID,
		UserID: in.UserID,
		Amount: core.Money{Cents: in.AmountCents},
		Source: in.Source,
		Note:   in.Note,
		Date:   parseStoredDate(ctx, "incomes", in.ID, in.Date),
	}
}

func toBudget(b Budget) core.Budget {
	return core.Budget{
		ID:       b.ID,
		UserID:   b.UserID,
		Category: b.Category,
		Amount:   core.Money{Cents: b.AmountCents},
		Period:   core.Period(b.Period),
	}
}

// parseStoredDate loads a malformed date as the zero Date so that one bad
// row never fails a whole listing.
func parseStoredDate(ctx context.Context, table string, id int64, s string) core.Date {
	d, err := core.ParseDate(s)
	if err != nil {
		slog.WarnContext(ctx, "Unparseable stored date",
			"table", table,
			"id", id,
			"value", s)
		return core.Date{}
	}
	return d
}

func parseTimestamp(s string) time.Time {
	for _, layout := range []string{timestampLayout, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
