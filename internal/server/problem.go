package server

import (
	"encoding/json"
	"net/http"
)

// RFC 7807 problem type URIs.
const (
	ProblemTypeNotFound    = "https://welfaredesk.local/problems/not-found"
	ProblemTypeBadRequest  = "https://welfaredesk.local/problems/bad-request"
	ProblemTypeInternal    = "https://welfaredesk.local/problems/internal-error"
	ProblemTypeRateLimited = "https://welfaredesk.local/problems/rate-limited"
	ProblemTypeConflict    = "https://welfaredesk.local/problems/conflict"
)

// Problem is an RFC 7807 Problem Details body.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

// WriteProblem writes p as application/problem+json.
func WriteProblem(w http.ResponseWriter, p Problem) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

// problemWriter writes one fixed kind of problem.
type problemWriter func(w http.ResponseWriter, detail, instance string)

func problemOf(typ string, status int) problemWriter {
	return func(w http.ResponseWriter, detail, instance string) {
		WriteProblem(w, Problem{
			Type:     typ,
			Title:    http.StatusText(status),
			Status:   status,
			Detail:   detail,
			Instance: instance,
		})
	}
}

var (
	// NotFound writes a 404 problem.
	NotFound = problemOf(ProblemTypeNotFound, http.StatusNotFound)
	// BadRequest writes a 400 problem.
	BadRequest = problemOf(ProblemTypeBadRequest, http.StatusBadRequest)
	// InternalError writes a 500 problem.
	InternalError = problemOf(ProblemTypeInternal, http.StatusInternalServerError)
	// RateLimited writes a 429 problem.
	RateLimited = problemOf(ProblemTypeRateLimited, http.StatusTooManyRequests)
	// Conflict writes a 409 problem, used for dialog actions the dialog's
	// current state does not allow.
	Conflict = problemOf(ProblemTypeConflict, http.StatusConflict)
)
