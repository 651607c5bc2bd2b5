package http

import (
	"errors"
	"net/http"

	"finboard/internal/aggregate"
	"finboard/internal/dashboard"
	"finboard/internal/log"
)

func (s *Server) handleListCharts(w http.ResponseWriter, _ *http.Request) {
	NewJSONResponse().Data(aggregate.ChartIDs()).Write(w)
}

// handleChart serves one chart. Data failures are reported through the
// degraded flag and a notification, never through the status code.
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	user, ok := s.user(w, r)
	if !ok {
		return
	}
	chartID := r.PathValue("chart")
	params := ParseChartParams(r.URL.Query())
	if !ValidScope(params.Scope) {
		BadRequestError("unknown scope " + params.Scope).Write(w)
		return
	}

	resp, err := s.deps.Dashboard.Chart(r.Context(), dashboard.ChartRequest{
		User:     user,
		Filter:   params.Filter,
		ChartID:  chartID,
		Scope:    params.Scope,
		Height:   params.Height,
		Selected: params.Categories,
	})
	switch {
	case errors.Is(err, dashboard.ErrUnknownChart):
		NotFoundError(err.Error()).Write(w)
		return
	case err != nil:
		s.sl.LogError(r.Context(), "Chart computation failed", err, log.OpRead,
			log.NewFields().WithChart(user, params.Filter, chartID))
		NewJSONResponse().
			Data(dashboard.ChartResponse{Chart: chartID, Filter: params.Filter, Degraded: true}).
			NotifyError(dashboard.NetworkErrorMessage).
			Write(w)
		return
	}

	if resp.Degraded {
		s.sl.LogChartDegraded(r.Context(), user, resp.Filter, chartID, resp.Err)
	}
	NewJSONResponse().Data(resp).Notify(resp.Notifications...).Write(w)
}
