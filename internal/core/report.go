package core

import "sort"

// CategorySummary compares spending against the allocation for one
// budgeted category.
type CategorySummary struct {
	Category    string  `json:"category"`
	Allocated   Money   `json:"allocated"`
	Spent       Money   `json:"spent"`
	Remaining   Money   `json:"remaining"`
	PercentUsed float64 `json:"percentUsed"`
}

// Summary is the budget-versus-actual view for one month.
type Summary struct {
	Month           Month             `json:"month"`
	NoBudget        bool              `json:"noBudget"`
	SpentByCategory map[string]Money  `json:"spentByCategory"`
	Categories      []CategorySummary `json:"categories"`
	TotalBudget     Money             `json:"totalBudget"`
	TotalExpenses   Money             `json:"totalExpenses"`
	RemainingBudget Money             `json:"remainingBudget"`
}

// SpentByCategory folds the expense list into per-category totals.
func SpentByCategory(expenses []Expense) map[string]Money {
	spent := make(map[string]Money, len(expenses))
	for _, e := range expenses {
		spent[e.Category] = spent[e.Category].Add(e.Amount)
	}
	return spent
}

// BuildSummary derives the month's report from the expense list and
// the month's budget. budget may be nil when none was saved; the
// summary then carries totals only and NoBudget is set so the client
// can render its empty state instead of a zeroed chart.
//
// Remaining amounts are not clamped: overspending shows up negative.
// A zero allocation reports PercentUsed 0 rather than dividing by zero.
func BuildSummary(month Month, expenses []Expense, budget *Budget) Summary {
	spent := SpentByCategory(expenses)

	s := Summary{
		Month:           month,
		SpentByCategory: spent,
	}
	for _, e := range expenses {
		s.TotalExpenses = s.TotalExpenses.Add(e.Amount)
	}

	if budget == nil {
		s.NoBudget = true
		s.RemainingBudget = s.TotalBudget.Sub(s.TotalExpenses)
		return s
	}

	names := make([]string, 0, len(budget.Categories))
	for name := range budget.Categories {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		allocated := budget.Categories[name]
		cs := CategorySummary{
			Category:  name,
			Allocated: allocated,
			Spent:     spent[name],
			Remaining: allocated.Sub(spent[name]),
		}
		if allocated.Cents > 0 {
			cs.PercentUsed = float64(spent[name].Cents) / float64(allocated.Cents) * 100
		}
		s.Categories = append(s.Categories, cs)
		s.TotalBudget = s.TotalBudget.Add(allocated)
	}

	s.RemainingBudget = s.TotalBudget.Sub(s.TotalExpenses)
	return s
}

// DefaultCategoryBudgets is the illustrative allocation table used to
// pre-fill the onboarding form. It never feeds reports; the saved
// Budget is the single source of truth once onboarding completes.
var DefaultCategoryBudgets = map[string]Money{
	"food":          {Cents: 50000},
	"transport":     {Cents: 30000},
	"shopping":      {Cents: 40000},
	"entertainment": {Cents: 20000},
	"health":        {Cents: 25000},
	"utilities":     {Cents: 15000},
	"other":         {Cents: 10000},
}
