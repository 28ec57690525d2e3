package response

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
)

// Error codes carried next to the status so clients can tell 400s apart
const (
	CodeBadRequest   = "BAD_REQUEST"
	CodeSelfRequest  = "SELF_REQUEST"
	CodeValidation   = "VALIDATION"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
	CodeNotFound     = "NOT_FOUND"
	CodeConflict     = "CONFLICT"
	CodeInternal     = "INTERNAL_ERROR"
)

// ErrorInfo is the body of every non-2xx response
type ErrorInfo struct {
	Detail string `json:"detail"`
	Code   string `json:"code"`
}

// Page is the body of every list endpoint
type Page[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

// JSON sends data as the response body
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends an error response
func Error(w http.ResponseWriter, status int, code, detail string) {
	JSON(w, status, ErrorInfo{Detail: detail, Code: code})
}

// BadRequest sends a 400 response
func BadRequest(w http.ResponseWriter, detail string) {
	Error(w, http.StatusBadRequest, CodeBadRequest, detail)
}

// SelfRequest sends the 400 for a request aimed at oneself
func SelfRequest(w http.ResponseWriter, detail string) {
	Error(w, http.StatusBadRequest, CodeSelfRequest, detail)
}

// Validation sends a 400 for a body that failed validation
func Validation(w http.ResponseWriter, detail string) {
	Error(w, http.StatusBadRequest, CodeValidation, detail)
}

// Unauthorized sends a 401 response
func Unauthorized(w http.ResponseWriter, detail string) {
	Error(w, http.StatusUnauthorized, CodeUnauthorized, detail)
}

// Forbidden sends a 403 response
func Forbidden(w http.ResponseWriter, detail string) {
	Error(w, http.StatusForbidden, CodeForbidden, detail)
}

// NotFound sends a 404 response
func NotFound(w http.ResponseWriter, detail string) {
	Error(w, http.StatusNotFound, CodeNotFound, detail)
}

// Conflict sends a 409 response
func Conflict(w http.ResponseWriter, detail string) {
	Error(w, http.StatusConflict, CodeConflict, detail)
}

// InternalError sends a 500 response
func InternalError(w http.ResponseWriter, detail string) {
	Error(w, http.StatusInternalServerError, CodeInternal, detail)
}

// Created sends a 201 response with data
func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, data)
}

// OK sends a 200 response with data
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, data)
}

// NoContent sends a 204 response
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Paginate cuts one page out of all and links its neighbours relative to r's URL
func Paginate[T any](r *http.Request, all []T, page, pageSize int) Page[T] {
	if page < 1 {
		page = 1
	}
	start := min((page-1)*pageSize, len(all))
	end := min(start+pageSize, len(all))

	p := Page[T]{Count: len(all), Results: all[start:end]}
	if p.Results == nil {
		p.Results = []T{}
	}
	if end < len(all) {
		p.Next = pageLink(r, page+1)
	}
	if page > 1 {
		p.Previous = pageLink(r, page-1)
	}
	return p
}

// PageParam reads ?page=, defaulting to 1
func PageParam(r *http.Request) int {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

func pageLink(r *http.Request, page int) *string {
	u := url.URL{Path: r.URL.Path}
	q := r.URL.Query()
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()
	link := u.String()
	return &link
}
