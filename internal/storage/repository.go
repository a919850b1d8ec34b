// Package storage persists users, expenses, budgets and notifications
// in SQLite. Times are stored as fixed-width RFC 3339 UTC text so
// month-range queries can compare lexicographically.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"spendtrack/internal/core"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrUsernameTaken = errors.New("username already exists")
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// SQLite allows one writer; a single connection avoids SQLITE_BUSY
	// under concurrent requests.
	db.SetMaxOpenConns(1)

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable, used by readiness checks.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// timeLayout keeps every digit, fraction included. RFC3339Nano trims
// trailing fractional zeros, which breaks lexicographic ordering of the
// stored text ('.' sorts before 'Z') and with it the month-range
// queries.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	// RFC3339Nano parsing accepts any fraction width, including rows
	// written before the fixed-width layout.
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// CreateUser inserts a new user row. Returns ErrUsernameTaken when the
// username is already registered.
func (r *SQLiteRepository) CreateUser(ctx context.Context, u core.User) error {
	methods, err := json.Marshal(u.PaymentMethods)
	if err != nil {
		return fmt.Errorf("marshal payment methods: %w", err)
	}
	categories, err := json.Marshal(u.ExpenseCategories)
	if err != nil {
		return fmt.Errorf("marshal expense categories: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO users (id, username, password_hash, payment_methods, expense_categories, onboarded, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Username, u.PasswordHash, string(methods), string(categories),
		u.Onboarded, formatTime(u.CreatedAt), formatTime(u.UpdatedAt))
	if isUniqueViolation(err) {
		return ErrUsernameTaken
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) GetUserByUsername(ctx context.Context, username string) (core.User, error) {
	return r.getUser(ctx, "username = ?", username)
}

func (r *SQLiteRepository) GetUserByID(ctx context.Context, id string) (core.User, error) {
	return r.getUser(ctx, "id = ?", id)
}

func (r *SQLiteRepository) getUser(ctx context.Context, where string, arg any) (core.User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash, payment_methods, expense_categories, onboarded, created_at, updated_at
		FROM users WHERE `+where, arg)

	var (
		u                    core.User
		methods, categories  string
		createdAt, updatedAt string
	)
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &methods, &categories, &u.Onboarded, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, ErrNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("scan user: %w", err)
	}
	if err := json.Unmarshal([]byte(methods), &u.PaymentMethods); err != nil {
		return core.User{}, fmt.Errorf("unmarshal payment methods: %w", err)
	}
	if err := json.Unmarshal([]byte(categories), &u.ExpenseCategories); err != nil {
		return core.User{}, fmt.Errorf("unmarshal expense categories: %w", err)
	}
	u.CreatedAt = parseTime(createdAt)
	u.UpdatedAt = parseTime(updatedAt)
	return u, nil
}

func (r *SQLiteRepository) CreateExpense(ctx context.Context, e core.Expense) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO expenses (id, user_id, amount_cents, category, payment_method, date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, e.Amount.Cents, e.Category, e.PaymentMethod,
		formatTime(e.Date), formatTime(e.CreatedAt), formatTime(e.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert expense: %w", err)
	}
	return nil
}

// ListExpenses returns all expenses owned by the user, newest first.
func (r *SQLiteRepository) ListExpenses(ctx context.Context, userID string) ([]core.Expense, error) {
	return r.listExpenses(ctx, `
		SELECT id, user_id, amount_cents, category, payment_method, date, created_at, updated_at
		FROM expenses WHERE user_id = ? ORDER BY date DESC, created_at DESC`, userID)
}

// ListExpensesByMonth returns the user's expenses dated within the
// given month, newest first.
func (r *SQLiteRepository) ListExpensesByMonth(ctx context.Context, userID string, month core.Month) ([]core.Expense, error) {
	start, end := month.Bounds()
	if start.IsZero() {
		return nil, core.ErrInvalidMonth
	}
	return r.listExpenses(ctx, `
		SELECT id, user_id, amount_cents, category, payment_method, date, created_at, updated_at
		FROM expenses WHERE user_id = ? AND date >= ? AND date < ?
		ORDER BY date DESC, created_at DESC`,
		userID, formatTime(start), formatTime(end))
}

func (r *SQLiteRepository) listExpenses(ctx context.Context, query string, args ...any) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	defer rows.Close()

	expenses := []core.Expense{}
	for rows.Next() {
		var (
			e                          core.Expense
			date, createdAt, updatedAt string
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.Amount.Cents, &e.Category, &e.PaymentMethod, &date, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		e.Date = parseTime(date)
		e.CreatedAt = parseTime(createdAt)
		e.UpdatedAt = parseTime(updatedAt)
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return expenses, nil
}

// DeleteExpense removes the expense only when owned by userID.
// Returns ErrNotFound for absent ids and for ids owned by someone else,
// so callers cannot probe other users' ledgers.
func (r *SQLiteRepository) DeleteExpense(ctx context.Context, userID, expenseID string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM expenses WHERE id = ? AND user_id = ?`, expenseID, userID)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetBudget returns the user's budget for the given month.
func (r *SQLiteRepository) GetBudget(ctx context.Context, userID string, month core.Month) (core.Budget, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, month, categories, created_at, updated_at
		FROM budgets WHERE user_id = ? AND month = ?`, userID, string(month))

	var (
		b                    core.Budget
		categories           string
		createdAt, updatedAt string
	)
	err := row.Scan(&b.ID, &b.UserID, &b.Month, &categories, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Budget{}, ErrNotFound
	}
	if err != nil {
		return core.Budget{}, fmt.Errorf("scan budget: %w", err)
	}

	var cents map[string]int64
	if err := json.Unmarshal([]byte(categories), &cents); err != nil {
		return core.Budget{}, fmt.Errorf("unmarshal budget categories: %w", err)
	}
	b.Categories = make(map[string]core.Money, len(cents))
	for name, c := range cents {
		b.Categories[name] = core.Money{Cents: c}
	}
	b.CreatedAt = parseTime(createdAt)
	b.UpdatedAt = parseTime(updatedAt)
	return b, nil
}

// SavePreferences overwrites the user's declared payment methods and
// expense categories, marks the user onboarded, and upserts the budget
// for the given month, replacing its categories map. Both writes happen
// in one transaction so a failure cannot leave the preferences updated
// but the budget missing.
func (r *SQLiteRepository) SavePreferences(ctx context.Context, userID string, paymentMethods, expenseCategories []string, budgets map[string]core.Money, month core.Month, now time.Time) error {
	methods, err := json.Marshal(paymentMethods)
	if err != nil {
		return fmt.Errorf("marshal payment methods: %w", err)
	}
	categories, err := json.Marshal(expenseCategories)
	if err != nil {
		return fmt.Errorf("marshal expense categories: %w", err)
	}
	cents := make(map[string]int64, len(budgets))
	for name, m := range budgets {
		cents[name] = m.Cents
	}
	budgetJSON, err := json.Marshal(cents)
	if err != nil {
		return fmt.Errorf("marshal budget categories: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE users
		SET payment_methods = ?, expense_categories = ?, onboarded = 1, updated_at = ?
		WHERE id = ?`,
		string(methods), string(categories), formatTime(now), userID)
	if err != nil {
		return fmt.Errorf("update user preferences: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO budgets (id, user_id, month, categories, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, month)
		DO UPDATE SET categories = excluded.categories, updated_at = excluded.updated_at`,
		uuid.NewString(), userID, string(month), string(budgetJSON),
		formatTime(now), formatTime(now))
	if err != nil {
		return fmt.Errorf("upsert budget: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit preferences: %w", err)
	}
	return nil
}

// Notification is a stored budget alert, written by the notifier worker.
type Notification struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId"`
	Category       string    `json:"category"`
	Month          string    `json:"month"`
	Message        string    `json:"message"`
	SpentCents     int64     `json:"spentCents"`
	AllocatedCents int64     `json:"allocatedCents"`
	CreatedAt      time.Time `json:"createdAt"`
}

func (r *SQLiteRepository) CreateNotification(ctx context.Context, n Notification) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, category, month, message, spent_cents, allocated_cents, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.UserID, n.Category, n.Month, n.Message, n.SpentCents, n.AllocatedCents, formatTime(n.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// ListNotifications returns the user's notifications, newest first.
func (r *SQLiteRepository) ListNotifications(ctx context.Context, userID string) ([]Notification, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, category, month, message, spent_cents, allocated_cents, created_at
		FROM notifications WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	notifications := []Notification{}
	for rows.Next() {
		var (
			n         Notification
			createdAt string
		)
		if err := rows.Scan(&n.ID, &n.UserID, &n.Category, &n.Month, &n.Message, &n.SpentCents, &n.AllocatedCents, &createdAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.CreatedAt = parseTime(createdAt)
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return notifications, nil
}
