package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"spendtrack/internal/core"
	"spendtrack/internal/storage"
)

// PreferenceService reconciles a user's declared payment methods and
// expense categories with the current month's budget allocation.
type PreferenceService struct {
	budgets BudgetStore
	now     func() time.Time
}

func NewPreferenceService(budgets BudgetStore) *PreferenceService {
	return &PreferenceService{
		budgets: budgets,
		now:     time.Now,
	}
}

// Save overwrites the user's preference lists verbatim, marks the user
// onboarded, and upserts the budget for the current calendar month.
// Storage performs both writes in one transaction.
func (s *PreferenceService) Save(ctx context.Context, userID string, paymentMethods, expenseCategories []string, budgets map[string]core.Money) error {
	for name, amount := range budgets {
		if strings.TrimSpace(name) == "" {
			return validationErr(core.ErrEmptyBudgetCategory)
		}
		if amount.Cents < 0 {
			return validationErr(core.ErrNegativeAllocation)
		}
	}
	if paymentMethods == nil {
		paymentMethods = []string{}
	}
	if expenseCategories == nil {
		expenseCategories = []string{}
	}

	now := s.now()
	month := core.MonthOf(now)
	if err := s.budgets.SavePreferences(ctx, userID, paymentMethods, expenseCategories, budgets, month, now); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("save preferences: %w", err)
	}

	slog.InfoContext(ctx, "Preferences saved",
		"user_id", userID,
		"month", month,
		"payment_methods", len(paymentMethods),
		"expense_categories", len(expenseCategories),
		"budget_categories", len(budgets))
	return nil
}

// Budget returns the user's budget for the given month, or ErrNotFound.
func (s *PreferenceService) Budget(ctx context.Context, userID string, month core.Month) (core.Budget, error) {
	budget, err := s.budgets.GetBudget(ctx, userID, month)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return core.Budget{}, ErrNotFound
		}
		return core.Budget{}, fmt.Errorf("get budget: %w", err)
	}
	return budget, nil
}

// CurrentMonth returns the calendar month the service considers "now".
func (s *PreferenceService) CurrentMonth() core.Month {
	return core.MonthOf(s.now())
}
