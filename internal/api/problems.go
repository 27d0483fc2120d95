package api

import (
	"encoding/json"
	"net/http"

	"github.com/moogar0880/problems"
)

func writeProblem(w http.ResponseWriter, r *http.Request, status int, problemType, detail string) {
	problem := problems.NewStatusProblem(status).
		WithInstance(r.URL.Path).
		WithType(problemType).
		WithDetail(detail)
	writeProblemJSON(w, status, problem)
}

func badRequest(w http.ResponseWriter, r *http.Request, detail string) {
	writeProblem(w, r, http.StatusBadRequest, "validation_error", detail)
}

func notFound(w http.ResponseWriter, r *http.Request, detail string) {
	writeProblem(w, r, http.StatusNotFound, "not_found", detail)
}

// invalidRequest lists every broken rule so clients can fix them in one go.
func invalidRequest(w http.ResponseWriter, r *http.Request, failedRules []string) {
	problem := problems.NewStatusProblem(http.StatusUnprocessableEntity).
		WithInstance(r.URL.Path).
		WithType("invalid_translation_request").
		WithDetail("translation request violates validation rules")
	writeProblemJSON(w, http.StatusUnprocessableEntity, struct {
		*problems.Problem
		FailedRules []string `json:"failed_rules"`
	}{problem, failedRules})
}

func internalError(w http.ResponseWriter, r *http.Request, err error) {
	problem := problems.NewStatusProblem(http.StatusInternalServerError).
		WithInstance(r.URL.Path).
		WithType("internal_error").
		WithError(err)
	writeProblemJSON(w, http.StatusInternalServerError, problem)
}

func writeProblemJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", problems.ProblemMediaType)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
