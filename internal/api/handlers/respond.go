package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rotisserie/eris"

	"github.com/wonny/finmetric/internal/contracts"
)

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// statusFor maps the error taxonomy onto HTTP status codes
func statusFor(err error) int {
	switch {
	case eris.Is(err, contracts.ErrMalformedInput), eris.Is(err, contracts.ErrMalformedFormula):
		return http.StatusBadRequest
	case eris.Is(err, contracts.ErrCompanyNotFound), eris.Is(err, contracts.ErrNotFound):
		return http.StatusNotFound
	case eris.Is(err, contracts.ErrJobRunning), eris.Is(err, contracts.ErrReservedJobID):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondErr writes err with its mapped status; 500 은 내부 메시지를 숨긴다
func respondErr(w http.ResponseWriter, err error, internal string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		respondError(w, status, internal)
		return
	}
	respondError(w, status, err.Error())
}

// queryBool reads a boolean query parameter ("true", "1")
func queryBool(r *http.Request, name string) bool {
	switch r.URL.Query().Get(name) {
	case "1", "true", "TRUE", "True", "yes":
		return true
	}
	return false
}
