package core

import (
	"errors"
	"strings"
	"time"
)

type (
	// User is a registered account together with the preferences
	// collected during onboarding.
	User struct {
		ID                string    `json:"id"`
		Username          string    `json:"username"`
		PasswordHash      string    `json:"-"`
		PaymentMethods    []string  `json:"paymentMethods"`
		ExpenseCategories []string  `json:"expenseCategories"`
		Onboarded         bool      `json:"onboarded"`
		CreatedAt         time.Time `json:"createdAt"`
		UpdatedAt         time.Time `json:"updatedAt"`
	}

	// Expense is a single dated spend record owned by one user.
	Expense struct {
		ID            string    `json:"id"`
		UserID        string    `json:"userId"`
		Amount        Money     `json:"amount"`
		Category      string    `json:"category"`
		PaymentMethod string    `json:"paymentMethod"`
		Date          time.Time `json:"date"`
		CreatedAt     time.Time `json:"createdAt"`
		UpdatedAt     time.Time `json:"updatedAt"`
	}

	// Budget maps category names to allotted amounts for one
	// (user, calendar month) pair.
	Budget struct {
		ID         string           `json:"id"`
		UserID     string           `json:"userId"`
		Month      Month            `json:"month"`
		Categories map[string]Money `json:"categories"`
		CreatedAt  time.Time        `json:"createdAt"`
		UpdatedAt  time.Time        `json:"updatedAt"`
	}

	// Month is a calendar month in "YYYY-MM" form.
	Month string
)

var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrEmptyCategory       = errors.New("empty category")
	ErrEmptyPaymentMethod  = errors.New("empty payment method")
	ErrInvalidMonth        = errors.New("invalid month")
	ErrEmptyUsername       = errors.New("empty username")
	ErrUsernameTooLong     = errors.New("username too long (max 64 characters)")
	ErrPasswordTooShort    = errors.New("password too short (min 8 characters)")
	ErrUnknownCategory     = errors.New("category not in declared expense categories")
	ErrNegativeAllocation  = errors.New("budget allocation cannot be negative")
	ErrEmptyBudgetCategory = errors.New("budget category name cannot be empty")
)

const monthLayout = "2006-01"

// MonthOf returns the calendar month containing t.
func MonthOf(t time.Time) Month {
	return Month(t.Format(monthLayout))
}

func (m Month) Validate() error {
	if _, err := time.Parse(monthLayout, string(m)); err != nil {
		return ErrInvalidMonth
	}
	return nil
}

// Bounds returns the half-open interval [start, end) covered by the
// month. An invalid month yields zero times.
func (m Month) Bounds() (start, end time.Time) {
	t, err := time.Parse(monthLayout, string(m))
	if err != nil {
		return time.Time{}, time.Time{}
	}
	return t, t.AddDate(0, 1, 0)
}

func (m Month) String() string { return string(m) }

// Contains reports whether t falls inside the month.
func (m Month) Contains(t time.Time) bool {
	start, end := m.Bounds()
	if start.IsZero() {
		return false
	}
	return !t.Before(start) && t.Before(end)
}

// ValidateCredentials checks registration input. Hashing happens elsewhere.
func ValidateCredentials(username, password string) error {
	if strings.TrimSpace(username) == "" {
		return ErrEmptyUsername
	}
	if len(username) > 64 {
		return ErrUsernameTooLong
	}
	if len(password) < 8 {
		return ErrPasswordTooShort
	}
	return nil
}

func (e Expense) Validate() error {
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	if strings.TrimSpace(e.PaymentMethod) == "" {
		return ErrEmptyPaymentMethod
	}
	if e.Date.IsZero() {
		return errors.New("date cannot be zero")
	}
	return nil
}

func (b Budget) Validate() error {
	if err := b.Month.Validate(); err != nil {
		return err
	}
	for name, amount := range b.Categories {
		if strings.TrimSpace(name) == "" {
			return ErrEmptyBudgetCategory
		}
		if amount.Cents < 0 {
			return ErrNegativeAllocation
		}
	}
	return nil
}

// AllowsCategory reports whether the user may log an expense under the
// given category. Users that have not declared any categories yet are
// unrestricted.
func (u User) AllowsCategory(category string) bool {
	if len(u.ExpenseCategories) == 0 {
		return true
	}
	for _, c := range u.ExpenseCategories {
		if c == category {
			return true
		}
	}
	return false
}
