package services

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/analytics"
	"fintrack/internal/auth"
	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/records"
	"fintrack/internal/records/memory"
)

var testNow = time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testNow }

func discardLogger() *log.Logger {
	return log.New(log.Config{Handler: slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError})})
}

func quietLogger() *log.StructuredLogger {
	return log.NewStructuredLogger(discardLogger())
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []*amqp.BudgetAlertMessage
	err  error
}

func (p *recordingPublisher) PublishBudgetAlert(_ context.Context, msg *amqp.BudgetAlertMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, msg)
	return nil
}

// flakyStore fails the list calls named in fail.
type flakyStore struct {
	*memory.Store
	fail map[string]bool
}

var errUnavailable = errors.New("store unavailable")

func (s flakyStore) ListExpenses(ctx context.Context, userID int64) ([]core.Expense, error) {
	if s.fail["expenses"] {
		return nil, errUnavailable
	}
	return s.Store.ListExpenses(ctx, userID)
}

func (s flakyStore) ListIncomes(ctx context.Context, userID int64) ([]core.Income, error) {
	if s.fail["incomes"] {
		return nil, errUnavailable
	}
	return s.Store.ListIncomes(ctx, userID)
}

func (s flakyStore) ListBudgets(ctx context.Context, userID int64) ([]core.Budget, error) {
	if s.fail["budgets"] {
		return nil, errUnavailable
	}
	return s.Store.ListBudgets(ctx, userID)
}

func newUser(t *testing.T, store records.Store) int64 {
	t.Helper()
	id, err := store.CreateUser(context.Background(), "alice", "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return id
}

func TestCreateExpensePublishesAlerts(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	user := newUser(t, store)
	pub := &recordingPublisher{}
	ledger := NewLedgerService(store, pub, nil, quietLogger(), fixedNow)

	food, _ := ledger.SetBudget(ctx, core.Budget{UserID: user, Category: "Food", Amount: core.Money{Cents: 10000}, Period: core.Monthly})
	ledger.SetBudget(ctx, core.Budget{UserID: user, Category: "Transport", Amount: core.Money{Cents: 1000}, Period: core.Monthly})

	// 50% of the food budget: normal, nothing published
	if _, err := ledger.CreateExpense(ctx, core.Expense{UserID: user, Amount: core.Money{Cents: 5000}, Category: "Food", Date: core.NewDate(2025, 3, 2)}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(pub.msgs) != 0 {
		t.Fatalf("no alert expected below 80%%, got %d", len(pub.msgs))
	}

	// 85%: warning
	ledger.CreateExpense(ctx, core.Expense{UserID: user, Amount: core.Money{Cents: 3500}, Category: "Food", Date: core.NewDate(2025, 3, 5)})
	// 105%: danger
	ledger.CreateExpense(ctx, core.Expense{UserID: user, Amount: core.Money{Cents: 2000}, Category: "Food", Date: core.NewDate(2025, 3, 6)})
	// other categories never alert the food budget; lowercase does not match exactly
	ledger.CreateExpense(ctx, core.Expense{UserID: user, Amount: core.Money{Cents: 100}, Category: "food", Date: core.NewDate(2025, 3, 6)})

	if len(pub.msgs) != 2 {
		t.Fatalf("expected 2 alerts, got %d", len(pub.msgs))
	}
	warn, danger := pub.msgs[0], pub.msgs[1]
	if warn.Status != analytics.ClassWarning || warn.Percentage != 85 || warn.BudgetID != food.ID {
		t.Fatalf("unexpected warning alert %+v", warn)
	}
	if danger.Status != analytics.ClassDanger || danger.SpentCents != 10500 || danger.WindowStart != "2025-03-01" {
		t.Fatalf("unexpected danger alert %+v", danger)
	}
	if _, err := danger.Alert(); err != nil {
		t.Fatalf("published alert should be valid: %v", err)
	}
}

func TestCreateExpenseSurvivesPublishFailure(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	user := newUser(t, store)
	ledger := NewLedgerService(store, &recordingPublisher{err: amqp.ErrCircuitOpen}, nil, quietLogger(), fixedNow)

	ledger.SetBudget(ctx, core.Budget{UserID: user, Category: "Food", Amount: core.Money{Cents: 100}, Period: core.Weekly})
	saved, err := ledger.CreateExpense(ctx, core.Expense{UserID: user, Amount: core.Money{Cents: 500}, Category: "Food", Date: core.NewDate(2025, 3, 11)})
	if err != nil || saved.ID == 0 {
		t.Fatalf("write should succeed despite publish failure: %+v %v", saved, err)
	}
}

func TestLedgerValidationAndFilters(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	user := newUser(t, store)
	ledger := NewLedgerService(store, nil, nil, quietLogger(), fixedNow)

	tests := []struct {
		name string
		e    core.Expense
		want error
	}{
		{"zero amount", core.Expense{UserID: user, Category: "Food", Date: core.NewDate(2025, 3, 1)}, core.ErrInvalidAmount},
		{"blank category", core.Expense{UserID: user, Amount: core.Money{Cents: 1}, Category: "  ", Date: core.NewDate(2025, 3, 1)}, core.ErrEmptyCategory},
		{"missing date", core.Expense{UserID: user, Amount: core.Money{Cents: 1}, Category: "Food"}, core.ErrInvalidDate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ledger.CreateExpense(ctx, tt.e); !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
		})
	}

	ledger.CreateExpense(ctx, core.Expense{UserID: user, Amount: core.Money{Cents: 100}, Category: " Food ", Date: core.NewDate(2025, 2, 1)})
	ledger.CreateExpense(ctx, core.Expense{UserID: user, Amount: core.Money{Cents: 200}, Category: "Food", Date: core.NewDate(2025, 3, 9)})
	ledger.CreateExpense(ctx, core.Expense{UserID: user, Amount: core.Money{Cents: 300}, Category: "Rent", Date: core.NewDate(2025, 3, 1)})

	list, err := ledger.ListExpenses(ctx, user, analytics.ExpenseFilter{Category: "Food"})
	if err != nil || len(list) != 2 || list[0].Amount.Cents != 200 {
		t.Fatalf("category filter newest first: %+v %v", list, err)
	}
	list, _ = ledger.ListExpenses(ctx, user, analytics.ExpenseFilter{Month: "2025-03"})
	if len(list) != 2 {
		t.Fatalf("month filter: %+v", list)
	}
	if _, err := ledger.ListExpenses(ctx, user, analytics.ExpenseFilter{Month: "03-2025"}); !errors.Is(err, ErrInvalidMonth) {
		t.Fatalf("expected ErrInvalidMonth, got %v", err)
	}
	if _, err := ledger.ListBudgets(ctx, user, "yearly"); !errors.Is(err, core.ErrInvalidPeriod) {
		t.Fatalf("expected ErrInvalidPeriod, got %v", err)
	}
	if err := ledger.DeleteIncome(ctx, user, 999); !errors.Is(err, records.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDashboardToleratesFailedFetch(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	user := newUser(t, mem)
	mem.CreateExpense(ctx, core.Expense{UserID: user, Amount: core.Money{Cents: 4000}, Category: "Food", Date: core.NewDate(2025, 3, 3)})
	mem.CreateIncome(ctx, core.Income{UserID: user, Amount: core.Money{Cents: 90000}, Source: "Salary", Date: core.NewDate(2025, 3, 1)})

	store := flakyStore{Store: mem, fail: map[string]bool{"incomes": true}}
	lru := cache.NewLRUCache[Dashboard](10, time.Minute)
	svc := NewDashboardService(store, lru, quietLogger(), fixedNow)

	d, err := svc.Dashboard(ctx, user)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if !d.Degraded || len(d.Warnings) != 1 || d.Warnings[0] != WarnIncomesUnavailable {
		t.Fatalf("expected degraded dashboard, got %+v", d)
	}
	if d.Comparison.Expenses.Cents != 4000 || d.Comparison.Income.Cents != 0 || d.Comparison.Trend != analytics.TrendNegative {
		t.Fatalf("unexpected comparison %+v", d.Comparison)
	}
	if d.BudgetHealth.Status != analytics.HealthNoBudget {
		t.Fatalf("unexpected health %+v", d.BudgetHealth)
	}
	if svc.CacheStats().Entries != 0 {
		t.Fatalf("degraded dashboards must not be cached")
	}
}

func TestDashboardCacheInvalidatedByWrites(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	user := newUser(t, store)
	svc := NewDashboardService(store, cache.NewLRUCache[Dashboard](10, time.Minute), quietLogger(), fixedNow)
	ledger := NewLedgerService(store, nil, svc, quietLogger(), fixedNow)

	ledger.SetBudget(ctx, core.Budget{UserID: user, Category: "Food", Amount: core.Money{Cents: 10000}, Period: core.Monthly})
	first, _ := svc.Dashboard(ctx, user)
	if first.Degraded || svc.CacheStats().Entries != 1 {
		t.Fatalf("healthy dashboard should be cached")
	}
	if first.BudgetHealth.Status != analytics.HealthGood {
		t.Fatalf("unexpected health %+v", first.BudgetHealth)
	}

	ledger.CreateExpense(ctx, core.Expense{UserID: user, Amount: core.Money{Cents: 9500}, Category: "FOOD", Date: core.NewDate(2025, 3, 10)})
	if svc.CacheStats().Entries != 0 {
		t.Fatalf("write should invalidate the cache")
	}

	second, _ := svc.Dashboard(ctx, user)
	if second.BudgetHealth.Status != analytics.HealthOverBudget {
		t.Fatalf("aggregate status should match categories case-insensitively, got %+v", second.BudgetHealth)
	}
	if len(second.Recent) != 1 || second.Categories["FOOD"].Cents != 9500 {
		t.Fatalf("unexpected dashboard %+v", second)
	}
	if len(second.Monthly) != analytics.DefaultSeriesMonths {
		t.Fatalf("expected %d months, got %d", analytics.DefaultSeriesMonths, len(second.Monthly))
	}
}

func TestSummariesAndBudgetReport(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	user := newUser(t, store)
	svc := NewDashboardService(store, nil, quietLogger(), fixedNow)

	store.CreateExpense(ctx, core.Expense{UserID: user, Amount: core.Money{Cents: 3000}, Category: "Food", Date: core.NewDate(2025, 3, 11)})
	store.CreateExpense(ctx, core.Expense{UserID: user, Amount: core.Money{Cents: 5000}, Category: "Rent", Date: core.NewDate(2025, 1, 5)})
	store.CreateIncome(ctx, core.Income{UserID: user, Amount: core.Money{Cents: 10000}, Source: "Salary", Date: core.NewDate(2025, 3, 1)})
	store.CreateIncome(ctx, core.Income{UserID: user, Amount: core.Money{Cents: 20000}, Source: "Salary", Date: core.NewDate(2025, 2, 1)})
	store.SetBudget(ctx, core.Budget{UserID: user, Category: "Food", Amount: core.Money{Cents: 2000}, Period: core.Weekly})
	store.SetBudget(ctx, core.Budget{UserID: user, Category: "Rent", Amount: core.Money{Cents: 5000}, Period: core.Monthly})

	es, err := svc.ExpenseSummary(ctx, user)
	if err != nil || es.MonthTotal.Cents != 3000 || es.Total.Cents != 8000 || es.TopCategory != "Rent" {
		t.Fatalf("expense summary: %+v %v", es, err)
	}

	is, err := svc.IncomeSummary(ctx, user)
	if err != nil {
		t.Fatalf("income summary: %v", err)
	}
	if is.AverageMonthly.Cents != 15000 || is.TopSource != "Salary" || is.Comparison.Balance.Cents != 7000 {
		t.Fatalf("income summary: %+v", is)
	}

	weekly, err := svc.BudgetReport(ctx, user, core.Weekly)
	if err != nil || len(weekly.Budgets) != 1 {
		t.Fatalf("weekly report: %+v %v", weekly, err)
	}
	row := weekly.Budgets[0]
	if !row.Over || row.ProgressClass != analytics.ClassDanger || row.Remaining.Cents != -1000 {
		t.Fatalf("unexpected weekly row %+v", row)
	}
	if weekly.Overview.Health != analytics.HealthOverBudget {
		t.Fatalf("unexpected weekly overview %+v", weekly.Overview)
	}

	monthly, _ := svc.BudgetReport(ctx, user, "")
	if monthly.Overview.Period != core.Monthly || monthly.Overview.Health != analytics.HealthGood || monthly.Overview.TotalSpent.Cents != 0 {
		t.Fatalf("rent spent in January should not count in March: %+v", monthly.Overview)
	}
	if _, err := svc.BudgetReport(ctx, user, "daily"); !errors.Is(err, core.ErrInvalidPeriod) {
		t.Fatalf("expected ErrInvalidPeriod, got %v", err)
	}
}

func TestAccountRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	tokens := auth.NewTokenIssuer("test-secret-0123456789", time.Hour)
	accounts := NewAccountService(store, auth.NewHasher(4), tokens, discardLogger())

	id, err := accounts.Register(ctx, "  alice ", "pass")
	if err != nil || id == 0 {
		t.Fatalf("register: %d %v", id, err)
	}
	if _, err := accounts.Register(ctx, "alice", "other"); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
	if _, err := accounts.Register(ctx, "bob", "abc"); !errors.Is(err, core.ErrShortPassword) {
		t.Fatalf("expected ErrShortPassword, got %v", err)
	}

	session, err := accounts.Login(ctx, "alice", "pass")
	if err != nil || session.User.ID != id || session.Token == "" {
		t.Fatalf("login: %+v %v", session, err)
	}
	got, err := accounts.Authenticate(session.Token)
	if err != nil || got != id {
		t.Fatalf("authenticate: %d %v", got, err)
	}

	for _, tc := range []struct{ user, pass string }{{"alice", "wrong"}, {"nobody", "pass"}, {"", ""}} {
		if _, err := accounts.Login(ctx, tc.user, tc.pass); !errors.Is(err, auth.ErrInvalidCredentials) {
			t.Fatalf("login(%q,%q): expected ErrInvalidCredentials, got %v", tc.user, tc.pass, err)
		}
	}
}
