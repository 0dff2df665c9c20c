package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// Queries holds the SQL statements of the repository, one method per
// statement.
type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// Row types mirror the tables; dates and timestamps stay as stored text.
type (
	User struct {
		ID           int64
		Username     string
		PasswordHash string
		CreatedAt    string
	}

	Expense struct {
		ID          int64
		UserID      int64
		AmountCents int64
		Category    string
		Note        string
		Date        string
	}

	Income struct {
		ID          int64
		UserID      int64
		AmountCents int64
		Source      string
		Note        string
		Date        string
	}

	Budget struct {
		ID          int64
		UserID      int64
		Category    string
		AmountCents int64
		Period      string
	}

	BudgetAlert struct {
		ID          int64
		UserID      int64
		BudgetID    int64
		Category    string
		Period      string
		WindowStart string
		SpentCents  int64
		BudgetCents int64
		Percentage  float64
		Status      string
		CreatedAt   string
	}
)

const createUser = `
INSERT INTO users (username, password_hash) VALUES (?, ?)
ON CONFLICT(username) DO NOTHING
RETURNING id`

// CreateUser returns sql.ErrNoRows when the username is taken.
func (q *Queries) CreateUser(ctx context.Context, username, passwordHash string) (int64, error) {
	var id int64
	err := q.db.QueryRowContext(ctx, createUser, username, passwordHash).Scan(&id)
	return id, err
}

const getUserByUsername = `
SELECT id, username, password_hash, created_at FROM users WHERE username = ?`

func (q *Queries) GetUserByUsername(ctx context.Context, username string) (User, error) {
	var u User
	err := q.db.QueryRowContext(ctx, getUserByUsername, username).
		Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	return u, err
}

const getUserByID = `
SELECT id, username, password_hash, created_at FROM users WHERE id = ?`

func (q *Queries) GetUserByID(ctx context.Context, id int64) (User, error) {
	var u User
	err := q.db.QueryRowContext(ctx, getUserByID, id).
		Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	return u, err
}

type CreateExpenseParams struct {
	UserID      int64
	AmountCents int64
	Category    string
	Note        string
	Date        string
}

const createExpense = `
INSERT INTO expenses (user_id, amount_cents, category, note, date)
VALUES (?, ?, ?, ?, ?)
RETURNING id, user_id, amount_cents, category, note, date`

func (q *Queries) CreateExpense(ctx context.Context, arg CreateExpenseParams) (Expense, error) {
	var e Expense
	err := q.db.QueryRowContext(ctx, createExpense, arg.UserID, arg.AmountCents, arg.Category, arg.Note, arg.Date).
		Scan(&e.ID, &e.UserID, &e.AmountCents, &e.Category, &e.Note, &e.Date)
	return e, err
}

const listExpensesByUser = `
SELECT id, user_id, amount_cents, category, note, date
FROM expenses
WHERE user_id = ?
ORDER BY date DESC, id ASC`

func (q *Queries) ListExpensesByUser(ctx context.Context, userID int64) ([]Expense, error) {
	rows, err := q.db.QueryContext(ctx, listExpensesByUser, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Expense
	for rows.Next() {
		var e Expense
		if err := rows.Scan(&e.ID, &e.UserID, &e.AmountCents, &e.Category, &e.Note, &e.Date); err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

const deleteExpense = `DELETE FROM expenses WHERE id = ? AND user_id = ?`

func (q *Queries) DeleteExpense(ctx context.Context, id, userID int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteExpense, id, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type CreateIncomeParams struct {
	UserID      int64
	AmountCents int64
	Source      string
	Note        string
	Date        string
}

const createIncome = `
INSERT INTO incomes (user_id, amount_cents, source, note, date)
VALUES (?, ?, ?, ?, ?)
RETURNING id, user_id, amount_cents, source, note, date`

func (q *Queries) CreateIncome(ctx context.Context, arg CreateIncomeParams) (Income, error) {
	var in Income
	err := q.db.QueryRowContext(ctx, createIncome, arg.UserID, arg.AmountCents, arg.Source, arg.Note, arg.Date).
		Scan(&in.ID, &in.UserID, &in.AmountCents, &in.Source, &in.Note, &in.Date)
	return in, err
}

const listIncomesByUser = `
SELECT id, user_id, amount_cents, source, note, date
FROM incomes
WHERE user_id = ?
ORDER BY date DESC, id ASC`

func (q *Queries) ListIncomesByUser(ctx context.Context, userID int64) ([]Income, error) {
	rows, err := q.db.QueryContext(ctx, listIncomesByUser, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Income
	for rows.Next() {
		var in Income
		if err := rows.Scan(&in.ID, &in.UserID, &in.AmountCents, &in.Source, &in.Note, &in.Date); err != nil {
			return nil, err
		}
		items = append(items, in)
	}
	return items, rows.Err()
}

const deleteIncome = `DELETE FROM incomes WHERE id = ? AND user_id = ?`

func (q *Queries) DeleteIncome(ctx context.Context, id, userID int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteIncome, id, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type UpsertBudgetParams struct {
	UserID      int64
	Category    string
	AmountCents int64
	Period      string
}

const upsertBudget = `
INSERT INTO budgets (user_id, category, amount_cents, period)
VALUES (?, ?, ?, ?)
ON CONFLICT(user_id, category, period) DO UPDATE SET amount_cents = excluded.amount_cents
RETURNING id, user_id, category, amount_cents, period`

func (q *Queries) UpsertBudget(ctx context.Context, arg UpsertBudgetParams) (Budget, error) {
	var b Budget
	err := q.db.QueryRowContext(ctx, upsertBudget, arg.UserID, arg.Category, arg.AmountCents, arg.Period).
		Scan(&b.ID, &b.UserID, &b.Category, &b.AmountCents, &b.Period)
	return b, err
}

const listBudgetsByUser = `
SELECT id, user_id, category, amount_cents, period
FROM budgets
WHERE user_id = ?
ORDER BY id ASC`

func (q *Queries) ListBudgetsByUser(ctx context.Context, userID int64) ([]Budget, error) {
	rows, err := q.db.QueryContext(ctx, listBudgetsByUser, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Budget
	for rows.Next() {
		var b Budget
		if err := rows.Scan(&b.ID, &b.UserID, &b.Category, &b.AmountCents, &b.Period); err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	return items, rows.Err()
}

const deleteBudget = `DELETE FROM budgets WHERE id = ? AND user_id = ?`

func (q *Queries) DeleteBudget(ctx context.Context, id, userID int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteBudget, id, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type InsertBudgetAlertParams struct {
	UserID      int64
	BudgetID    int64
	Category    string
	Period      string
	WindowStart string
	SpentCents  int64
	BudgetCents int64
	Percentage  float64
	Status      string
	CreatedAt   string
}

const insertBudgetAlert = `
INSERT INTO budget_alerts (
    user_id, budget_id, category, period, window_start,
    spent_cents, budget_cents, percentage, status, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(user_id, budget_id, window_start, status) DO NOTHING`

// InsertBudgetAlert returns the number of inserted rows: 0 for a duplicate.
func (q *Queries) InsertBudgetAlert(ctx context.Context, arg InsertBudgetAlertParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, insertBudgetAlert,
		arg.UserID, arg.BudgetID, arg.Category, arg.Period, arg.WindowStart,
		arg.SpentCents, arg.BudgetCents, arg.Percentage, arg.Status, arg.CreatedAt)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const listBudgetAlertsByUser = `
SELECT id, user_id, budget_id, category, period, window_start,
       spent_cents, budget_cents, percentage, status, created_at
FROM budget_alerts
WHERE user_id = ?
ORDER BY id DESC
LIMIT ?`

func (q *Queries) ListBudgetAlertsByUser(ctx context.Context, userID, limit int64) ([]BudgetAlert, error) {
	rows, err := q.db.QueryContext(ctx, listBudgetAlertsByUser, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []BudgetAlert
	for rows.Next() {
		var a BudgetAlert
		if err := rows.Scan(&a.ID, &a.UserID, &a.BudgetID, &a.Category, &a.Period, &a.WindowStart,
			&a.SpentCents, &a.BudgetCents, &a.Percentage, &a.Status, &a.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}
