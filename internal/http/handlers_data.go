package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"spendtrack/internal/core"
	"spendtrack/internal/services"
	"spendtrack/internal/storage"
)

type expenseRequest struct {
	Amount        core.Money `json:"amount"`
	Category      string     `json:"category"`
	PaymentMethod string     `json:"paymentMethod"`
	Date          *time.Time `json:"date"`
}

type preferencesRequest struct {
	PaymentMethods    []string              `json:"paymentMethods"`
	ExpenseCategories []string              `json:"expenseCategories"`
	Budgets           map[string]core.Money `json:"budgets"`
}

func (s *Server) handleLogExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var date time.Time
	if req.Date != nil {
		date = *req.Date
	}

	expense, err := s.expenses.Log(r.Context(), userIDFrom(r.Context()), req.Amount, req.Category, req.PaymentMethod, date)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, expense)
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	expenses, err := s.expenses.List(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, expenses)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.expenses.Delete(r.Context(), userIDFrom(r.Context()), id); err != nil {
		s.respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// requestMonth resolves the ?month= query parameter, defaulting to the
// current calendar month.
func (s *Server) requestMonth(r *http.Request) (core.Month, error) {
	raw := r.URL.Query().Get("month")
	if raw == "" {
		return s.preferences.CurrentMonth(), nil
	}
	month := core.Month(raw)
	if err := month.Validate(); err != nil {
		return "", err
	}
	return month, nil
}

func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request) {
	month, err := s.requestMonth(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid month")
		return
	}

	budget, err := s.preferences.Budget(r.Context(), userIDFrom(r.Context()), month)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			// No budget for the month is an empty result, not an error.
			respondJSON(w, http.StatusOK, nil)
			return
		}
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, budget)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	month, err := s.requestMonth(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid month")
		return
	}

	summary, err := s.reports.Summary(r.Context(), userIDFrom(r.Context()), month)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

func (s *Server) handleSavePreferences(w http.ResponseWriter, r *http.Request) {
	var req preferencesRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := s.preferences.Save(r.Context(), userIDFrom(r.Context()), req.PaymentMethods, req.ExpenseCategories, req.Budgets)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "preferences and budget saved"})
}

func (s *Server) handleDefaultBudgets(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]map[string]core.Money{
		"budgets": core.DefaultCategoryBudgets,
	})
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	if s.notifications == nil {
		respondJSON(w, http.StatusOK, []storage.Notification{})
		return
	}
	list, err := s.notifications.ListNotifications(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	if list == nil {
		list = []storage.Notification{}
	}
	respondJSON(w, http.StatusOK, list)
}
