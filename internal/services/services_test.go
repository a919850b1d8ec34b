package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"spendtrack/internal/amqp"
	"spendtrack/internal/auth"
	"spendtrack/internal/core"
	"spendtrack/internal/storage"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// fakeStore is an in-memory stand-in for the SQLite repository.
type fakeStore struct {
	users    map[string]core.User // keyed by id
	byName   map[string]string    // username -> id
	expenses []core.Expense
	budgets  map[string]core.Budget // keyed by userID+"/"+month
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:   make(map[string]core.User),
		byName:  make(map[string]string),
		budgets: make(map[string]core.Budget),
	}
}

func (f *fakeStore) CreateUser(_ context.Context, u core.User) error {
	if _, ok := f.byName[u.Username]; ok {
		return storage.ErrUsernameTaken
	}
	f.users[u.ID] = u
	f.byName[u.Username] = u.ID
	return nil
}

func (f *fakeStore) GetUserByUsername(_ context.Context, username string) (core.User, error) {
	id, ok := f.byName[username]
	if !ok {
		return core.User{}, storage.ErrNotFound
	}
	return f.users[id], nil
}

func (f *fakeStore) GetUserByID(_ context.Context, id string) (core.User, error) {
	u, ok := f.users[id]
	if !ok {
		return core.User{}, storage.ErrNotFound
	}
	return u, nil
}

func (f *fakeStore) CreateExpense(_ context.Context, e core.Expense) error {
	f.expenses = append(f.expenses, e)
	return nil
}

func (f *fakeStore) ListExpenses(_ context.Context, userID string) ([]core.Expense, error) {
	out := []core.Expense{}
	for _, e := range f.expenses {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeStore) ListExpensesByMonth(_ context.Context, userID string, month core.Month) ([]core.Expense, error) {
	out := []core.Expense{}
	for _, e := range f.expenses {
		if e.UserID == userID && month.Contains(e.Date) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeStore) DeleteExpense(_ context.Context, userID, expenseID string) error {
	for i, e := range f.expenses {
		if e.ID == expenseID && e.UserID == userID {
			f.expenses = append(f.expenses[:i], f.expenses[i+1:]...)
			return nil
		}
	}
	return storage.ErrNotFound
}

func (f *fakeStore) GetBudget(_ context.Context, userID string, month core.Month) (core.Budget, error) {
	b, ok := f.budgets[userID+"/"+month.String()]
	if !ok {
		return core.Budget{}, storage.ErrNotFound
	}
	return b, nil
}

func (f *fakeStore) SavePreferences(_ context.Context, userID string, paymentMethods, expenseCategories []string, budgets map[string]core.Money, month core.Month, now time.Time) error {
	u, ok := f.users[userID]
	if !ok {
		return storage.ErrNotFound
	}
	u.PaymentMethods = paymentMethods
	u.ExpenseCategories = expenseCategories
	u.Onboarded = true
	f.users[userID] = u
	f.budgets[userID+"/"+month.String()] = core.Budget{
		UserID:     userID,
		Month:      month,
		Categories: budgets,
	}
	return nil
}

type fakePublisher struct {
	published []*amqp.BudgetAlertMessage
}

func (f *fakePublisher) PublishBudgetAlert(_ context.Context, msg *amqp.BudgetAlertMessage) error {
	f.published = append(f.published, msg)
	return nil
}

func newAuthService(store *fakeStore) *AuthService {
	return NewAuthService(store, auth.NewTokenIssuer(testSecret, time.Hour))
}

func TestRegisterThenLogin(t *testing.T) {
	store := newFakeStore()
	svc := newAuthService(store)
	ctx := context.Background()

	if err := svc.Register(ctx, "alice", "password123"); err != nil {
		t.Fatalf("register: %v", err)
	}

	token, user, err := svc.Login(ctx, "alice", "password123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if token == "" {
		t.Fatal("expected a token")
	}
	if user.Onboarded {
		t.Fatal("freshly registered user must not be onboarded")
	}
	if user.Username != "alice" {
		t.Fatalf("expected alice, got %s", user.Username)
	}
}

func TestRegisterDuplicate(t *testing.T) {
	store := newFakeStore()
	svc := newAuthService(store)
	ctx := context.Background()

	if err := svc.Register(ctx, "alice", "password123"); err != nil {
		t.Fatalf("register: %v", err)
	}
	// Conflict regardless of the password used.
	if err := svc.Register(ctx, "alice", "différent-password"); err != ErrUserExists {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := newAuthService(newFakeStore())
	ctx := context.Background()

	var ve ValidationError
	if err := svc.Register(ctx, "", "password123"); !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError for empty username, got %v", err)
	}
	if err := svc.Register(ctx, "alice", "short"); !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError for short password, got %v", err)
	}
}

func TestLoginFailuresIndistinguishable(t *testing.T) {
	store := newFakeStore()
	svc := newAuthService(store)
	ctx := context.Background()

	if err := svc.Register(ctx, "alice", "password123"); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, _, unknownErr := svc.Login(ctx, "nobody", "password123")
	_, _, wrongErr := svc.Login(ctx, "alice", "wrongpassword")
	if unknownErr != ErrInvalidCredentials || wrongErr != ErrInvalidCredentials {
		t.Fatalf("both failures must be ErrInvalidCredentials, got %v and %v", unknownErr, wrongErr)
	}
}

func registeredUser(t *testing.T, store *fakeStore, categories []string) core.User {
	t.Helper()
	u := core.User{
		ID:                "user-1",
		Username:          "alice",
		ExpenseCategories: categories,
	}
	if err := store.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func TestLogExpense(t *testing.T) {
	store := newFakeStore()
	u := registeredUser(t, store, nil)
	svc := NewExpenseService(store, store, store, nil)
	ctx := context.Background()

	e, err := svc.Log(ctx, u.ID, core.Money{Cents: 1250}, "food", "card", time.Time{})
	if err != nil {
		t.Fatalf("log: %v", err)
	}
	if e.ID == "" || e.Date.IsZero() {
		t.Fatalf("expense not filled in: %+v", e)
	}

	list, err := svc.List(ctx, u.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 expense, got %d", len(list))
	}
}

func TestLogExpenseValidation(t *testing.T) {
	store := newFakeStore()
	u := registeredUser(t, store, []string{"food"})
	svc := NewExpenseService(store, store, store, nil)
	ctx := context.Background()

	var ve ValidationError
	if _, err := svc.Log(ctx, u.ID, core.Money{Cents: 0}, "food", "card", time.Time{}); !errors.As(err, &ve) {
		t.Fatalf("zero amount: expected ValidationError, got %v", err)
	}
	if _, err := svc.Log(ctx, u.ID, core.Money{Cents: 100}, "", "card", time.Time{}); !errors.As(err, &ve) {
		t.Fatalf("empty category: expected ValidationError, got %v", err)
	}
	if _, err := svc.Log(ctx, u.ID, core.Money{Cents: 100}, "food", "", time.Time{}); !errors.As(err, &ve) {
		t.Fatalf("empty payment method: expected ValidationError, got %v", err)
	}
	// Declared categories restrict what may be logged.
	if _, err := svc.Log(ctx, u.ID, core.Money{Cents: 100}, "yachts", "card", time.Time{}); !errors.As(err, &ve) {
		t.Fatalf("undeclared category: expected ValidationError, got %v", err)
	}
	if _, err := svc.Log(ctx, "ghost", core.Money{Cents: 100}, "food", "card", time.Time{}); err != ErrNotFound {
		t.Fatalf("unknown user: expected ErrNotFound, got %v", err)
	}
}

func TestDeleteExpenseOwnership(t *testing.T) {
	store := newFakeStore()
	u := registeredUser(t, store, nil)
	svc := NewExpenseService(store, store, store, nil)
	ctx := context.Background()

	e, err := svc.Log(ctx, u.ID, core.Money{Cents: 100}, "food", "card", time.Time{})
	if err != nil {
		t.Fatalf("log: %v", err)
	}

	if err := svc.Delete(ctx, "someone-else", e.ID); err != ErrNotFound {
		t.Fatalf("foreign delete: expected ErrNotFound, got %v", err)
	}
	if err := svc.Delete(ctx, u.ID, e.ID); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
	if err := svc.Delete(ctx, u.ID, e.ID); err != ErrNotFound {
		t.Fatalf("double delete: expected ErrNotFound, got %v", err)
	}
}

func TestBudgetAlertThresholds(t *testing.T) {
	store := newFakeStore()
	u := registeredUser(t, store, nil)
	pub := &fakePublisher{}
	svc := NewExpenseService(store, store, store, pub)
	ctx := context.Background()

	now := time.Now()
	month := core.MonthOf(now)
	store.budgets[u.ID+"/"+month.String()] = core.Budget{
		UserID:     u.ID,
		Month:      month,
		Categories: map[string]core.Money{"food": {Cents: 10000}},
	}

	// 50% of the allocation: no alert.
	if _, err := svc.Log(ctx, u.ID, core.Money{Cents: 5000}, "food", "card", now); err != nil {
		t.Fatalf("log: %v", err)
	}
	if len(pub.published) != 0 {
		t.Fatalf("no alert expected at 50%%, got %d", len(pub.published))
	}

	// Crossing 80%: warning.
	if _, err := svc.Log(ctx, u.ID, core.Money{Cents: 3500}, "food", "card", now); err != nil {
		t.Fatalf("log: %v", err)
	}
	if len(pub.published) != 1 {
		t.Fatalf("expected 1 alert after crossing 80%%, got %d", len(pub.published))
	}
	if pub.published[0].Message != "approaching budget limit for category food" {
		t.Fatalf("unexpected message: %s", pub.published[0].Message)
	}

	// Crossing 100%: exceeded.
	if _, err := svc.Log(ctx, u.ID, core.Money{Cents: 2000}, "food", "card", now); err != nil {
		t.Fatalf("log: %v", err)
	}
	if len(pub.published) != 2 {
		t.Fatalf("expected 2 alerts after crossing 100%%, got %d", len(pub.published))
	}
	if pub.published[1].Message != "budget exceeded for category food" {
		t.Fatalf("unexpected message: %s", pub.published[1].Message)
	}

	// Already past 100%: no repeat alert.
	if _, err := svc.Log(ctx, u.ID, core.Money{Cents: 1000}, "food", "card", now); err != nil {
		t.Fatalf("log: %v", err)
	}
	if len(pub.published) != 2 {
		t.Fatalf("alerts fire on crossings only, got %d", len(pub.published))
	}
}

func TestCrossedLargeAmounts(t *testing.T) {
	// The largest allocation ParseDecimalToCents admits. Accumulated
	// spending past it must not wrap around when thresholds are
	// computed.
	maxAllocated := core.Money{Cents: (1<<63 - 1) / 100}
	warn := maxAllocated.Cents / 100 * 80

	tests := []struct {
		name    string
		before  core.Money
		after   core.Money
		percent int64
		want    bool
	}{
		// The exact threshold rounds up by a few cents, keep a margin.
		{"crosses 80% of max allocation", core.Money{Cents: warn - 100}, core.Money{Cents: warn + 100}, 80, true},
		{"already past 80% of max allocation", core.Money{Cents: warn + 100}, core.Money{Cents: warn + 200}, 80, false},
		// Spending several times the allocation: scaling it by 100
		// wraps int64 and used to report a fresh crossing.
		{"spending several times the allocation", core.Money{Cents: 200_000_000_000_000_000}, core.Money{Cents: 264_000_000_000_000_000}, 80, false},
		{"spending just past the allocation", core.Money{Cents: maxAllocated.Cents + 1}, core.Money{Cents: maxAllocated.Cents + 2}, 100, false},
		{"crosses 100% of max allocation", core.Money{Cents: maxAllocated.Cents - 1}, core.Money{Cents: maxAllocated.Cents}, 100, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := crossed(tt.before, tt.after, maxAllocated, tt.percent); got != tt.want {
				t.Fatalf("crossed = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCrossedRoundsThresholdUp(t *testing.T) {
	// 80% of 1.01 is 80.8 cents; the crossing happens at 81, not 80.
	allocated := core.Money{Cents: 101}
	if crossed(core.Money{Cents: 79}, core.Money{Cents: 80}, allocated, 80) {
		t.Fatal("80 cents is below 80%% of 101, no crossing yet")
	}
	if !crossed(core.Money{Cents: 80}, core.Money{Cents: 81}, allocated, 80) {
		t.Fatal("81 cents crosses 80%% of 101")
	}
}

func TestSavePreferences(t *testing.T) {
	store := newFakeStore()
	u := registeredUser(t, store, nil)
	svc := NewPreferenceService(store)
	ctx := context.Background()

	budgets := map[string]core.Money{"food": {Cents: 10000}}
	if err := svc.Save(ctx, u.ID, []string{"card"}, []string{"food"}, budgets); err != nil {
		t.Fatalf("save: %v", err)
	}

	saved := store.users[u.ID]
	if !saved.Onboarded {
		t.Fatal("user must be onboarded")
	}
	if len(saved.ExpenseCategories) != 1 || saved.ExpenseCategories[0] != "food" {
		t.Fatalf("categories not saved: %v", saved.ExpenseCategories)
	}

	b, err := svc.Budget(ctx, u.ID, svc.CurrentMonth())
	if err != nil {
		t.Fatalf("budget: %v", err)
	}
	if b.Categories["food"].Cents != 10000 {
		t.Fatalf("allocation: expected 10000, got %d", b.Categories["food"].Cents)
	}

	var ve ValidationError
	if err := svc.Save(ctx, u.ID, nil, nil, map[string]core.Money{"food": {Cents: -1}}); !errors.As(err, &ve) {
		t.Fatalf("negative allocation: expected ValidationError, got %v", err)
	}
	if err := svc.Save(ctx, "ghost", nil, nil, nil); err != ErrNotFound {
		t.Fatalf("unknown user: expected ErrNotFound, got %v", err)
	}
}

func TestReportSummary(t *testing.T) {
	store := newFakeStore()
	u := registeredUser(t, store, nil)
	expSvc := NewExpenseService(store, store, store, nil)
	repSvc := NewReportService(store, store)
	ctx := context.Background()

	now := time.Now()
	month := core.MonthOf(now)
	store.budgets[u.ID+"/"+month.String()] = core.Budget{
		UserID:     u.ID,
		Month:      month,
		Categories: map[string]core.Money{"food": {Cents: 10000}},
	}

	for _, cents := range []int64{2000, 3500} {
		if _, err := expSvc.Log(ctx, u.ID, core.Money{Cents: cents}, "food", "card", now); err != nil {
			t.Fatalf("log: %v", err)
		}
	}

	s, err := repSvc.Summary(ctx, u.ID, month)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if s.NoBudget {
		t.Fatal("budget exists, NoBudget must be false")
	}
	if s.TotalExpenses.Cents != 5500 || s.Categories[0].Remaining.Cents != 4500 {
		t.Fatalf("unexpected summary: %+v", s)
	}

	var ve ValidationError
	if _, err := repSvc.Summary(ctx, u.ID, core.Month("bogus")); !errors.As(err, &ve) {
		t.Fatalf("invalid month: expected ValidationError, got %v", err)
	}
}
