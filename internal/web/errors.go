package web

// errors.go maps typed core errors onto HTTP responses. The technical error
// is logged with the request ID; the client sees the kind and a message.

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sheetvault/sheetvault/internal/core"
	"github.com/sheetvault/sheetvault/internal/logging"
)

// ErrorResponse is the JSON body for all error responses.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// respondError logs err and writes it as JSON with a status derived from
// its kind.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)

	logging.FromContext(r.Context()).Error("request error",
		"method", r.Method,
		"path", r.URL.Path,
		"status", status,
		"error", err.Error(),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error: err.Error(),
		Kind:  string(core.ErrorKind(err)),
	})
}

func statusForError(err error) int {
	if errors.Is(err, core.ErrTooManyImports) {
		return http.StatusTooManyRequests
	}
	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		return http.StatusRequestEntityTooLarge
	}
	switch core.ErrorKind(err) {
	case core.KindParse:
		return http.StatusBadRequest
	case core.KindNotFound:
		return http.StatusNotFound
	case core.KindIO, core.KindStorage, core.KindCorrupt:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
