package services

import (
	"context"
	"errors"
	"fmt"

	"spendtrack/internal/core"
	"spendtrack/internal/storage"
)

// ReportService builds the budget-versus-actual summary the dashboard
// renders. It is the single place this aggregation happens; the client
// no longer recomputes it.
type ReportService struct {
	expenses ExpenseStore
	budgets  BudgetStore
}

func NewReportService(expenses ExpenseStore, budgets BudgetStore) *ReportService {
	return &ReportService{
		expenses: expenses,
		budgets:  budgets,
	}
}

// Summary aggregates the month's expenses against its budget. A month
// without a saved budget still reports spending totals with NoBudget
// set so the client can render its empty state.
func (s *ReportService) Summary(ctx context.Context, userID string, month core.Month) (core.Summary, error) {
	if err := month.Validate(); err != nil {
		return core.Summary{}, validationErr(err)
	}

	expenses, err := s.expenses.ListExpensesByMonth(ctx, userID, month)
	if err != nil {
		return core.Summary{}, fmt.Errorf("list month expenses: %w", err)
	}

	var budget *core.Budget
	b, err := s.budgets.GetBudget(ctx, userID, month)
	switch {
	case err == nil:
		budget = &b
	case errors.Is(err, storage.ErrNotFound):
		// summary carries NoBudget
	default:
		return core.Summary{}, fmt.Errorf("get budget: %w", err)
	}

	return core.BuildSummary(month, expenses, budget), nil
}
