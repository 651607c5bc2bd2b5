package http

import (
	"errors"
	"net/http"

	"finboard/internal/dashboard"
	"finboard/internal/layout"
	"finboard/internal/log"
)

type visibilityRequest struct {
	Hidden []string `json:"hidden"`
}

func (s *Server) scopeAndUser(w http.ResponseWriter, r *http.Request) (user, scope string, ok bool) {
	if user, ok = s.user(w, r); !ok {
		return "", "", false
	}
	scope = r.PathValue("scope")
	if !ValidScope(scope) {
		NotFoundError("unknown scope " + scope).Write(w)
		return "", "", false
	}
	return user, scope, true
}

func (s *Server) handleGetVisibility(w http.ResponseWriter, r *http.Request) {
	user, scope, ok := s.scopeAndUser(w, r)
	if !ok {
		return
	}
	chartID := r.PathValue("chart")
	if !dashboard.KnownChart(chartID) {
		NotFoundError("unknown chart " + chartID).Write(w)
		return
	}
	res, err := s.deps.Dashboard.Visibility(r.Context(), user, scope, chartID, r.URL.Query().Get("filter"))
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Failed to load visibility",
			log.FieldUserID, user, log.FieldScope, scope, log.FieldChart, chartID, log.FieldError, err)
		InternalServerError("could not load hidden categories").Write(w)
		return
	}
	NewJSONResponse().Data(res).Write(w)
}

func (s *Server) handlePutVisibility(w http.ResponseWriter, r *http.Request) {
	user, scope, ok := s.scopeAndUser(w, r)
	if !ok {
		return
	}
	chartID := r.PathValue("chart")
	var req visibilityRequest
	if err := DecodeJSON(r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	hidden, err := s.deps.Dashboard.SetVisibility(r.Context(), user, scope, chartID, req.Hidden)
	switch {
	case errors.Is(err, dashboard.ErrUnknownChart):
		NotFoundError(err.Error()).Write(w)
		return
	case err != nil:
		s.logger.ErrorContext(r.Context(), "Failed to save visibility",
			log.FieldUserID, user, log.FieldScope, scope, log.FieldChart, chartID, log.FieldError, err)
		InternalServerError("could not save hidden categories").Write(w)
		return
	}
	NewJSONResponse().Data(visibilityRequest{Hidden: hidden}).Write(w)
}

func (s *Server) handleGetLayout(w http.ResponseWriter, r *http.Request) {
	user, scope, ok := s.scopeAndUser(w, r)
	if !ok {
		return
	}
	st, err := s.deps.Layouts.Get(r.Context(), user, scope)
	if err != nil {
		// The defaults are always a usable layout.
		s.logger.WarnContext(r.Context(), "Layout unavailable, serving defaults",
			log.FieldUserID, user, log.FieldScope, scope, log.FieldError, err)
		st = layout.Default()
	}
	NewJSONResponse().Data(st).Write(w)
}

func (s *Server) handlePutLayout(w http.ResponseWriter, r *http.Request) {
	user, scope, ok := s.scopeAndUser(w, r)
	if !ok {
		return
	}
	var st layout.State
	if err := DecodeJSON(r, &st); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	saved, err := s.deps.Layouts.Save(r.Context(), user, scope, st)
	switch {
	case errors.Is(err, layout.ErrInvalidLayout):
		UnprocessableEntityError(err.Error()).Write(w)
		return
	case err != nil:
		s.logger.ErrorContext(r.Context(), "Failed to save layout",
			log.FieldUserID, user, log.FieldScope, scope, log.FieldError, err)
		InternalServerError("could not save layout").Write(w)
		return
	}
	NewJSONResponse().Data(saved).Write(w)
}

type tiersRequest struct {
	Tiers []dashboard.TierAssignment `json:"tiers"`
}

type categoryItem struct {
	Name string `json:"name"`
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	user, ok := s.user(w, r)
	if !ok {
		return
	}
	names, err := s.deps.Dashboard.Categories(r.Context(), user)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Failed to list categories", log.FieldUserID, user, log.FieldError, err)
		BadGatewayError("could not list categories").Write(w)
		return
	}
	items := make([]categoryItem, 0, len(names))
	for _, n := range names {
		items = append(items, categoryItem{Name: n})
	}
	NewJSONResponse().Data(items).Write(w)
}

func (s *Server) handleGetTiers(w http.ResponseWriter, r *http.Request) {
	user, ok := s.user(w, r)
	if !ok {
		return
	}
	tiers, err := s.deps.Dashboard.Tiers(r.Context(), user)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Failed to load tiers", log.FieldUserID, user, log.FieldError, err)
		InternalServerError("could not load tiers").Write(w)
		return
	}
	NewJSONResponse().Data(tiersRequest{Tiers: tiers}).Write(w)
}

func (s *Server) handlePutTiers(w http.ResponseWriter, r *http.Request) {
	user, ok := s.user(w, r)
	if !ok {
		return
	}
	var req tiersRequest
	if err := DecodeJSON(r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	err := s.deps.Dashboard.SetTiers(r.Context(), user, req.Tiers)
	switch {
	case errors.Is(err, dashboard.ErrInvalidTier):
		UnprocessableEntityError(err.Error()).Write(w)
		return
	case err != nil:
		s.logger.ErrorContext(r.Context(), "Failed to save tiers", log.FieldUserID, user, log.FieldError, err)
		InternalServerError("could not save tiers").Write(w)
		return
	}
	tiers, err := s.deps.Dashboard.Tiers(r.Context(), user)
	if err != nil {
		InternalServerError("could not load tiers").Write(w)
		return
	}
	NewJSONResponse().Data(tiersRequest{Tiers: tiers}).NotifySuccess("Tiers saved").Write(w)
}
