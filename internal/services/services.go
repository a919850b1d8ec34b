// Package services orchestrates the domain operations across storage,
// auth and messaging. HTTP handlers stay thin and call in here.
package services

import (
	"context"
	"errors"
	"time"

	"spendtrack/internal/amqp"
	"spendtrack/internal/core"
)

var (
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotFound           = errors.New("not found")
)

// ValidationError marks input errors so handlers can answer 400
// instead of 500. Unwrap exposes the underlying domain error.
type ValidationError struct {
	Err error
}

func (e ValidationError) Error() string { return e.Err.Error() }
func (e ValidationError) Unwrap() error { return e.Err }

func validationErr(err error) error { return ValidationError{Err: err} }

// UserStore is the slice of storage the auth and expense services need
// for account lookups.
type UserStore interface {
	CreateUser(ctx context.Context, u core.User) error
	GetUserByUsername(ctx context.Context, username string) (core.User, error)
	GetUserByID(ctx context.Context, id string) (core.User, error)
}

type ExpenseStore interface {
	CreateExpense(ctx context.Context, e core.Expense) error
	ListExpenses(ctx context.Context, userID string) ([]core.Expense, error)
	ListExpensesByMonth(ctx context.Context, userID string, month core.Month) ([]core.Expense, error)
	DeleteExpense(ctx context.Context, userID, expenseID string) error
}

type BudgetStore interface {
	GetBudget(ctx context.Context, userID string, month core.Month) (core.Budget, error)
	SavePreferences(ctx context.Context, userID string, paymentMethods, expenseCategories []string, budgets map[string]core.Money, month core.Month, now time.Time) error
}

// AlertPublisher pushes budget alerts onto the message broker. A nil
// publisher disables alerts without touching the expense flow.
type AlertPublisher interface {
	PublishBudgetAlert(ctx context.Context, msg *amqp.BudgetAlertMessage) error
}
