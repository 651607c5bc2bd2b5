package http

import (
	"errors"
	"fmt"
	"net/http"

	"finboard/internal/budget"
	"finboard/internal/core"
	"finboard/internal/dashboard"
	"finboard/internal/log"
	"finboard/internal/storage"

	"github.com/shopspring/decimal"
)

type budgetRequest struct {
	Category string `json:"category"`
	Limit    any    `json:"limit"`
	Filter   string `json:"filter"`
}

type budgetsResponse struct {
	Filter   string                     `json:"filter"`
	Limits   map[string]decimal.Decimal `json:"limits"`
	Degraded bool                       `json:"degraded"`
}

type unsyncedLimit struct {
	Filter    string          `json:"filter"`
	Category  string          `json:"category"`
	Limit     decimal.Decimal `json:"limit"`
	UpdatedAt string          `json:"updatedAt"`
}

func (s *Server) handleGetBudgets(w http.ResponseWriter, r *http.Request) {
	user, ok := s.user(w, r)
	if !ok {
		return
	}
	filter := r.URL.Query().Get("filter")
	limits, degraded := s.deps.Dashboard.Limits(r.Context(), user, filter)
	if limits == nil {
		limits = budget.Limits{}
	}
	b := NewJSONResponse().Data(budgetsResponse{Filter: filter, Limits: limits, Degraded: degraded})
	if degraded {
		b.NotifyError(dashboard.NetworkErrorMessage)
	}
	b.Write(w)
}

// handleSaveBudget walks the draft through the limit editor so the same
// validation applies as in the inline ring editor, then runs the save saga.
// A failed remote push still answers 200 with synced false.
func (s *Server) handleSaveBudget(w http.ResponseWriter, r *http.Request) {
	user, ok := s.user(w, r)
	if !ok {
		return
	}
	var req budgetRequest
	if err := DecodeJSON(r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if sanitizeInput(req.Category) == "" {
		UnprocessableEntityError("category is required").Write(w)
		return
	}

	editor := budget.NewEditor()
	if err := editor.Open(sanitizeInput(req.Category), decimal.Zero); err != nil {
		InternalServerError(err.Error()).Write(w)
		return
	}
	if err := editor.Edit("", stringValue(req.Limit)); err != nil {
		InternalServerError(err.Error()).Write(w)
		return
	}
	category, limit, err := editor.Save()
	if err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}

	res, err := s.deps.Dashboard.SaveLimit(r.Context(), user, req.Filter, category, limit)
	switch {
	case errors.Is(err, core.ErrInvalidLimit):
		UnprocessableEntityError(err.Error()).Write(w)
		return
	case err != nil:
		s.logger.ErrorContext(r.Context(), "Failed to save budget locally",
			log.FieldUserID, user, log.FieldCategory, category, log.FieldError, err)
		InternalServerError("could not save budget").Write(w)
		return
	}

	b := NewJSONResponse().Data(res)
	if res.Synced {
		b.NotifySuccess(fmt.Sprintf("Budget for %s saved", res.Category))
	}
	b.Write(w)
}

func (s *Server) handleResyncBudgets(w http.ResponseWriter, r *http.Request) {
	user, ok := s.user(w, r)
	if !ok {
		return
	}
	res, err := s.deps.Dashboard.Resync(r.Context(), user)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Budget resync failed", log.FieldUserID, user, log.FieldError, err)
		InternalServerError("could not resync budgets").Write(w)
		return
	}
	b := NewJSONResponse().Data(res)
	if res.Synced > 0 {
		b.NotifySuccess(fmt.Sprintf("Synced %d budget%s", res.Synced, pluralS(res.Synced)))
	}
	b.Write(w)
}

func (s *Server) handleUnsyncedBudgets(w http.ResponseWriter, r *http.Request) {
	user, ok := s.user(w, r)
	if !ok {
		return
	}
	pending, err := s.deps.Dashboard.Unsynced(r.Context(), user)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Failed to list unsynced budgets", log.FieldUserID, user, log.FieldError, err)
		InternalServerError("could not list unsynced budgets").Write(w)
		return
	}
	NewJSONResponse().Data(toUnsynced(pending)).Write(w)
}

func toUnsynced(in []storage.RingLimit) []unsyncedLimit {
	out := make([]unsyncedLimit, 0, len(in))
	for _, l := range in {
		out = append(out, unsyncedLimit{
			Filter:    l.FilterID,
			Category:  l.Category,
			Limit:     l.Limit,
			UpdatedAt: l.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	return out
}

func pluralS(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
