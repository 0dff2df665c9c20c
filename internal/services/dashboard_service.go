package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/analytics"
	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/records"
)

// Warnings attached to a degraded dashboard.
const (
	WarnExpensesUnavailable = "expenses unavailable"
	WarnIncomesUnavailable  = "incomes unavailable"
	WarnBudgetsUnavailable  = "budgets unavailable"
)

// Dashboard is the combined overview of one user's finances on one day.
type Dashboard struct {
	Date         core.Date               `json:"date"`
	Comparison   analytics.Comparison    `json:"comparison"`
	BudgetHealth analytics.Health        `json:"budgetHealth"`
	Categories   map[string]core.Money   `json:"categories"`
	Monthly      []analytics.MonthPoint  `json:"monthly"`
	Recent       []analytics.Transaction `json:"recent"`
	Degraded     bool                    `json:"degraded"`
	Warnings     []string                `json:"warnings,omitempty"`
}

type ExpenseSummary struct {
	MonthTotal  core.Money            `json:"monthTotal"`
	Total       core.Money            `json:"total"`
	TopCategory string                `json:"topCategory"`
	Categories  map[string]core.Money `json:"categories"`
}

type IncomeSummary struct {
	MonthTotal     core.Money           `json:"monthTotal"`
	Total          core.Money           `json:"total"`
	TopSource      string               `json:"topSource"`
	AverageMonthly core.Money           `json:"averageMonthly"`
	Comparison     analytics.Comparison `json:"comparison"`
}

// BudgetReport is the overview of one period with a row per budget.
type BudgetReport struct {
	Overview analytics.Overview       `json:"overview"`
	Budgets  []analytics.BudgetStatus `json:"budgets"`
}

// DashboardService builds the read-side views from the record store.
type DashboardService struct {
	store  records.Store
	cache  cache.Cache[Dashboard]
	logger *log.StructuredLogger
	now    func() time.Time
}

// NewDashboardService wires the read side. A nil cache disables caching.
func NewDashboardService(store records.Store, c cache.Cache[Dashboard], logger *log.StructuredLogger, now func() time.Time) *DashboardService {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = log.NewStructuredLogger(log.New(log.DefaultConfig()))
	}
	return &DashboardService{store: store, cache: c, logger: logger, now: now}
}

func cachePrefix(userID int64) string {
	return strconv.FormatInt(userID, 10) + ":"
}

// Invalidate drops every cached dashboard of userID.
func (s *DashboardService) Invalidate(userID int64) {
	if s.cache != nil {
		s.cache.DeletePrefix(cachePrefix(userID))
	}
}

// CacheStats reports the dashboard cache counters; zero when caching is
// disabled.
func (s *DashboardService) CacheStats() cache.Stats {
	if s.cache == nil {
		return cache.Stats{}
	}
	return s.cache.Stats()
}

// Dashboard fetches the user's records concurrently and aggregates them.
// A failed fetch is replaced by an empty collection and reported in
// Warnings with Degraded set; degraded dashboards are not cached.
func (s *DashboardService) Dashboard(ctx context.Context, userID int64) (Dashboard, error) {
	now := s.now()
	key := cachePrefix(userID) + now.Format(core.DateLayout)
	if s.cache != nil {
		if d, ok := s.cache.Get(key); ok {
			return d, nil
		}
	}

	snap := s.fetch(ctx, userID)
	if err := ctx.Err(); err != nil {
		return Dashboard{}, err
	}

	monthly := analytics.FilterExpenses(snap.expenses, analytics.ExpenseFilter{Month: now.Format("2006-01")})
	d := Dashboard{
		Date:         core.DateOf(now),
		Comparison:   analytics.MonthComparison(snap.expenses, snap.incomes, now),
		BudgetHealth: analytics.AggregateStatus(snap.budgets, snap.expenses, now),
		Categories:   analytics.CategoryTotals(monthly),
		Monthly:      analytics.MonthlySeries(snap.expenses, snap.incomes, now, analytics.DefaultSeriesMonths),
		Recent:       analytics.RecentTransactions(snap.expenses, snap.incomes, analytics.DefaultRecentLimit),
		Warnings:     snap.warnings,
		Degraded:     len(snap.warnings) > 0,
	}

	if d.Degraded {
		s.logger.LogDegraded(ctx, userID, d.Warnings)
	} else if s.cache != nil {
		s.cache.Set(key, d)
	}
	return d, nil
}

type snapshot struct {
	expenses []core.Expense
	incomes  []core.Income
	budgets  []core.Budget
	warnings []string
}

// fetch loads every collection in parallel. Individual failures are
// recorded as warnings and never cancel the sibling fetches.
func (s *DashboardService) fetch(ctx context.Context, userID int64) snapshot {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	var (
		snap                   snapshot
		expErr, incErr, budErr error
		g                      errgroup.Group
	)
	g.Go(func() error {
		snap.expenses, expErr = s.store.ListExpenses(ctx, userID)
		return nil
	})
	g.Go(func() error {
		snap.incomes, incErr = s.store.ListIncomes(ctx, userID)
		return nil
	})
	g.Go(func() error {
		snap.budgets, budErr = s.store.ListBudgets(ctx, userID)
		return nil
	})
	_ = g.Wait()

	for _, f := range []struct {
		err  error
		warn string
	}{
		{expErr, WarnExpensesUnavailable},
		{incErr, WarnIncomesUnavailable},
		{budErr, WarnBudgetsUnavailable},
	} {
		if f.err == nil {
			continue
		}
		s.logger.LogError(ctx, "Dashboard fetch failed", f.err, log.ComponentDashboard, log.OpList, log.NewFields().WithUser(userID))
		snap.warnings = append(snap.warnings, f.warn)
	}
	if expErr != nil {
		snap.expenses = nil
	}
	if incErr != nil {
		snap.incomes = nil
	}
	if budErr != nil {
		snap.budgets = nil
	}
	return snap
}

func (s *DashboardService) ExpenseSummary(ctx context.Context, userID int64) (ExpenseSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	expenses, err := s.store.ListExpenses(ctx, userID)
	if err != nil {
		return ExpenseSummary{}, fmt.Errorf("list expenses: %w", err)
	}
	return ExpenseSummary{
		MonthTotal:  analytics.MonthExpenses(expenses, s.now()),
		Total:       analytics.TotalExpenses(expenses),
		TopCategory: analytics.TopCategory(expenses),
		Categories:  analytics.CategoryTotals(expenses),
	}, nil
}

func (s *DashboardService) IncomeSummary(ctx context.Context, userID int64) (IncomeSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	var (
		incomes  []core.Income
		expenses []core.Expense
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		if incomes, err = s.store.ListIncomes(gctx, userID); err != nil {
			return fmt.Errorf("list incomes: %w", err)
		}
		return nil
	})
	g.Go(func() (err error) {
		if expenses, err = s.store.ListExpenses(gctx, userID); err != nil {
			return fmt.Errorf("list expenses: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return IncomeSummary{}, err
	}

	now := s.now()
	return IncomeSummary{
		MonthTotal:     analytics.MonthIncomes(incomes, now),
		Total:          analytics.TotalIncomes(incomes),
		TopSource:      analytics.TopSource(incomes),
		AverageMonthly: analytics.AverageMonthlyIncome(incomes, now, analytics.DefaultAverageMonths),
		Comparison:     analytics.MonthComparison(expenses, incomes, now),
	}, nil
}

// BudgetReport evaluates the budgets of period. An empty period means monthly.
func (s *DashboardService) BudgetReport(ctx context.Context, userID int64, period core.Period) (BudgetReport, error) {
	if period == "" {
		period = core.Monthly
	}
	if err := period.Validate(); err != nil {
		return BudgetReport{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	var (
		budgets  []core.Budget
		expenses []core.Expense
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		if budgets, err = s.store.ListBudgets(gctx, userID); err != nil {
			return fmt.Errorf("list budgets: %w", err)
		}
		return nil
	})
	g.Go(func() (err error) {
		if expenses, err = s.store.ListExpenses(gctx, userID); err != nil {
			return fmt.Errorf("list expenses: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return BudgetReport{}, err
	}

	now := s.now()
	return BudgetReport{
		Overview: analytics.PeriodOverview(budgets, expenses, period, now),
		Budgets:  analytics.EvaluateBudgets(budgetsFor(budgets, period), expenses, now),
	}, nil
}
