package core

import (
	"testing"
	"time"
)

func expense(category string, cents int64) Expense {
	return Expense{
		Amount:        Money{Cents: cents},
		Category:      category,
		PaymentMethod: "card",
		Date:          time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC),
	}
}

func TestSpentByCategory(t *testing.T) {
	expenses := []Expense{
		expense("food", 2000),
		expense("food", 3500),
		expense("transport", 1000),
	}
	spent := SpentByCategory(expenses)
	if spent["food"].Cents != 5500 {
		t.Fatalf("food: expected 5500, got %d", spent["food"].Cents)
	}
	if spent["transport"].Cents != 1000 {
		t.Fatalf("transport: expected 1000, got %d", spent["transport"].Cents)
	}

	// Per-category totals always sum to the grand total.
	var sum int64
	for _, m := range spent {
		sum += m.Cents
	}
	if sum != 6500 {
		t.Fatalf("expected category sums 6500, got %d", sum)
	}
}

func TestBuildSummary(t *testing.T) {
	expenses := []Expense{
		expense("food", 2000),
		expense("food", 3500),
	}
	budget := &Budget{
		Month:      "2026-09",
		Categories: map[string]Money{"food": {Cents: 10000}},
	}

	s := BuildSummary("2026-09", expenses, budget)
	if s.NoBudget {
		t.Fatal("budget present, NoBudget must be false")
	}
	if len(s.Categories) != 1 {
		t.Fatalf("expected 1 category summary, got %d", len(s.Categories))
	}
	food := s.Categories[0]
	if food.Spent.Cents != 5500 {
		t.Fatalf("spent: expected 5500, got %d", food.Spent.Cents)
	}
	if food.Remaining.Cents != 4500 {
		t.Fatalf("remaining: expected 4500, got %d", food.Remaining.Cents)
	}
	if food.PercentUsed != 55 {
		t.Fatalf("percentUsed: expected 55, got %v", food.PercentUsed)
	}
	if s.TotalBudget.Cents != 10000 || s.TotalExpenses.Cents != 5500 {
		t.Fatalf("totals wrong: budget=%d expenses=%d", s.TotalBudget.Cents, s.TotalExpenses.Cents)
	}
	if s.RemainingBudget.Cents != 4500 {
		t.Fatalf("remainingBudget: expected 4500, got %d", s.RemainingBudget.Cents)
	}
}

func TestBuildSummaryOverspent(t *testing.T) {
	expenses := []Expense{expense("food", 15000)}
	budget := &Budget{
		Month:      "2026-09",
		Categories: map[string]Money{"food": {Cents: 10000}},
	}
	s := BuildSummary("2026-09", expenses, budget)
	if s.Categories[0].Remaining.Cents != -5000 {
		t.Fatalf("overspent remaining must be negative, got %d", s.Categories[0].Remaining.Cents)
	}
	if s.RemainingBudget.Cents != -5000 {
		t.Fatalf("remainingBudget must be negative, got %d", s.RemainingBudget.Cents)
	}
}

func TestBuildSummaryZeroAllocation(t *testing.T) {
	expenses := []Expense{expense("other", 500)}
	budget := &Budget{
		Month:      "2026-09",
		Categories: map[string]Money{"other": {Cents: 0}},
	}
	s := BuildSummary("2026-09", expenses, budget)
	if s.Categories[0].PercentUsed != 0 {
		t.Fatalf("zero allocation must report 0 percent, got %v", s.Categories[0].PercentUsed)
	}
}

func TestBuildSummaryNoBudget(t *testing.T) {
	expenses := []Expense{expense("food", 2500)}
	s := BuildSummary("2026-09", expenses, nil)
	if !s.NoBudget {
		t.Fatal("expected NoBudget")
	}
	if len(s.Categories) != 0 {
		t.Fatal("no budget means no category summaries")
	}
	if s.TotalExpenses.Cents != 2500 {
		t.Fatalf("totalExpenses: expected 2500, got %d", s.TotalExpenses.Cents)
	}
	if s.RemainingBudget.Cents != -2500 {
		t.Fatalf("remainingBudget: expected -2500, got %d", s.RemainingBudget.Cents)
	}
}

func TestBuildSummaryExpenseSumInvariant(t *testing.T) {
	expenses := []Expense{
		expense("a", 1), expense("b", 2), expense("a", 3),
		expense("c", 999), expense("b", 12345),
	}
	s := BuildSummary("2026-09", expenses, nil)
	var sum int64
	for _, m := range s.SpentByCategory {
		sum += m.Cents
	}
	if sum != s.TotalExpenses.Cents {
		t.Fatalf("sum(spentByCategory)=%d, totalExpenses=%d", sum, s.TotalExpenses.Cents)
	}
}

func TestDefaultCategoryBudgets(t *testing.T) {
	if DefaultCategoryBudgets["food"].Cents != 50000 {
		t.Fatalf("food default changed: %d", DefaultCategoryBudgets["food"].Cents)
	}
	for name, m := range DefaultCategoryBudgets {
		if m.Cents <= 0 {
			t.Fatalf("default for %s must be positive", name)
		}
	}
}
