package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"spendtrack/internal/amqp"
	"spendtrack/internal/core"
	"spendtrack/internal/storage"
)

// Budget alert thresholds, percent of the category allocation.
const (
	alertWarnPercent   = 80
	alertExceedPercent = 100
)

// ExpenseService implements the expense ledger operations and the
// best-effort budget alerting that rides along with them.
type ExpenseService struct {
	users     UserStore
	expenses  ExpenseStore
	budgets   BudgetStore
	publisher AlertPublisher
	now       func() time.Time
}

func NewExpenseService(users UserStore, expenses ExpenseStore, budgets BudgetStore, publisher AlertPublisher) *ExpenseService {
	return &ExpenseService{
		users:     users,
		expenses:  expenses,
		budgets:   budgets,
		publisher: publisher,
		now:       time.Now,
	}
}

// Log appends an expense to the caller's ledger. The category must be
// one of the user's declared expense categories once any are declared.
// A zero date defaults to now.
func (s *ExpenseService) Log(ctx context.Context, userID string, amount core.Money, category, paymentMethod string, date time.Time) (core.Expense, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return core.Expense{}, ErrNotFound
		}
		return core.Expense{}, fmt.Errorf("lookup user: %w", err)
	}

	if date.IsZero() {
		date = s.now()
	}

	expense := core.Expense{
		ID:            uuid.NewString(),
		UserID:        userID,
		Amount:        amount,
		Category:      strings.TrimSpace(category),
		PaymentMethod: strings.TrimSpace(paymentMethod),
		Date:          date,
		CreatedAt:     s.now(),
		UpdatedAt:     s.now(),
	}
	if err := expense.Validate(); err != nil {
		return core.Expense{}, validationErr(err)
	}
	if !user.AllowsCategory(expense.Category) {
		return core.Expense{}, validationErr(core.ErrUnknownCategory)
	}

	if err := s.expenses.CreateExpense(ctx, expense); err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense logged",
		"expense_id", expense.ID,
		"user_id", userID,
		"amount_cents", expense.Amount.Cents,
		"category", expense.Category)

	// Alerting must never fail the request; the expense is saved.
	s.maybePublishAlert(ctx, expense)

	return expense, nil
}

// List returns all of the caller's expenses, newest first.
func (s *ExpenseService) List(ctx context.Context, userID string) ([]core.Expense, error) {
	expenses, err := s.expenses.ListExpenses(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return expenses, nil
}

// Delete removes an expense owned by the caller.
func (s *ExpenseService) Delete(ctx context.Context, userID, expenseID string) error {
	if err := s.expenses.DeleteExpense(ctx, userID, expenseID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete expense: %w", err)
	}
	slog.InfoContext(ctx, "Expense deleted", "expense_id", expenseID, "user_id", userID)
	return nil
}

// maybePublishAlert publishes a budget alert when the new expense moves
// the month's category spending past 80% or 100% of its allocation.
func (s *ExpenseService) maybePublishAlert(ctx context.Context, e core.Expense) {
	if s.publisher == nil {
		return
	}

	month := core.MonthOf(e.Date)
	budget, err := s.budgets.GetBudget(ctx, e.UserID, month)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			slog.WarnContext(ctx, "Budget lookup for alerting failed", "error", err, "user_id", e.UserID)
		}
		return
	}
	allocated, ok := budget.Categories[e.Category]
	if !ok || allocated.Cents <= 0 {
		return
	}

	monthExpenses, err := s.expenses.ListExpensesByMonth(ctx, e.UserID, month)
	if err != nil {
		slog.WarnContext(ctx, "Expense aggregation for alerting failed", "error", err, "user_id", e.UserID)
		return
	}
	spent := core.SpentByCategory(monthExpenses)[e.Category]
	spentBefore := spent.Sub(e.Amount)

	var message string
	switch {
	case crossed(spentBefore, spent, allocated, alertExceedPercent):
		message = fmt.Sprintf("budget exceeded for category %s", e.Category)
	case crossed(spentBefore, spent, allocated, alertWarnPercent):
		message = fmt.Sprintf("approaching budget limit for category %s", e.Category)
	default:
		return
	}

	msg := amqp.NewBudgetAlertMessage(e.UserID, e.Category, month.String(), spent.Cents, allocated.Cents, message)
	if err := s.publisher.PublishBudgetAlert(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to publish budget alert",
			"error", err, "user_id", e.UserID, "category", e.Category)
	}
}

// crossed reports whether spending moved from below to at-or-above the
// given percentage of the allocation with this expense. Alerts fire on
// the crossing only, not on every expense past the threshold.
func crossed(before, after, allocated core.Money, percent int64) bool {
	// Compare spending against a cent threshold instead of scaling the
	// spending itself: a month's accumulated total can be large enough
	// for the multiplication to overflow.
	threshold := allocated.Cents / 100 * percent
	if rem := allocated.Cents % 100 * percent; rem > 0 {
		threshold += rem / 100
		if rem%100 != 0 {
			// The crossing is at-or-above, round the threshold up.
			threshold++
		}
	}
	return before.Cents < threshold && after.Cents >= threshold
}
