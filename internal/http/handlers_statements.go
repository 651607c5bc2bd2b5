package http

import (
	"errors"
	"net/http"
	"path/filepath"

	"finboard/internal/backend"
	"finboard/internal/log"
	"finboard/internal/sheets"
	"finboard/internal/upstream"
)

const maxStatementSize = 10 << 20

// handleParseStatement forwards an uploaded statement file to the parser
// and returns the reviewable CSV.
func (s *Server) handleParseStatement(w http.ResponseWriter, r *http.Request) {
	user, ok := s.user(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxStatementSize)
	if err := r.ParseMultipartForm(maxStatementSize); err != nil {
		BadRequestError("expected a multipart form with a statement file").Write(w)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		BadRequestError("missing file field").Write(w)
		return
	}
	defer file.Close()

	filename := filepath.Base(header.Filename)
	logger := log.FromContext(r.Context())
	progress := func(percent int) {
		logger.DebugContext(r.Context(), "Statement parse progress",
			log.FieldUserID, user, "percent", percent)
	}

	parsed, notes, err := s.deps.Dashboard.ParseStatement(r.Context(), user, filename, file, progress)
	if err != nil {
		s.statementError(w, r, user, log.OpParse, err)
		return
	}
	NewJSONResponse().Data(parsed).Notify(notes...).Write(w)
}

func (s *Server) handleImportStatement(w http.ResponseWriter, r *http.Request) {
	user, ok := s.user(w, r)
	if !ok {
		return
	}
	var req upstream.ImportRequest
	if err := DecodeJSON(r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if req.CSV == "" {
		UnprocessableEntityError("csv is required").Write(w)
		return
	}

	out, err := s.deps.Dashboard.Import(r.Context(), user, req)
	if err != nil {
		s.statementError(w, r, user, log.OpImport, err)
		return
	}
	NewJSONResponse().Data(out).Notify(out.Notifications...).Write(w)
}

// statementError maps parse and import failures: bad input is the client's,
// a read-only source is a conflict and everything else is the upstream's.
func (s *Server) statementError(w http.ResponseWriter, r *http.Request, user, op string, err error) {
	var se *upstream.StatusError
	switch {
	case errors.Is(err, backend.ErrInvalidStatement):
		UnprocessableEntityError(err.Error()).Write(w)
	case errors.Is(err, sheets.ErrReadOnly):
		ErrorResponse(http.StatusConflict, "the configured data backend does not accept imports").Write(w)
	case errors.As(err, &se) && se.Status >= 400 && se.Status < 500:
		UnprocessableEntityError(se.Body).Write(w)
	default:
		s.sl.LogError(r.Context(), "Statement request failed", err, op,
			log.NewFields().WithComponent(log.ComponentHTTP).WithOperation(op).WithUser(user))
		BadGatewayError("statement service unavailable").Write(w)
	}
}
