package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	// keeps (page-1)*limit well inside a SQL OFFSET
	maxPage = 1 << 20
)

type envelope struct {
	Success    bool              `json:"success"`
	Message    string            `json:"message,omitempty"`
	Data       any               `json:"data,omitempty"`
	Pagination *Pagination       `json:"pagination,omitempty"`
	Errors     map[string]string `json:"errors,omitempty"`
}

type Pagination struct {
	CurrentPage int   `json:"currentPage"`
	TotalPages  int   `json:"totalPages"`
	TotalItems  int64 `json:"totalItems"`
	HasNext     bool  `json:"hasNext"`
	HasPrev     bool  `json:"hasPrev"`
}

func NewPagination(page, limit int, total int64) Pagination {
	pages := 0
	if limit > 0 {
		pages = int((total + int64(limit) - 1) / int64(limit))
	}
	return Pagination{
		CurrentPage: page,
		TotalPages:  pages,
		TotalItems:  total,
		HasNext:     page < pages,
		HasPrev:     page > 1,
	}
}

// pageParams reads ?page= and ?limit=, falling back to page 1 of 20 and
// capping limit at 100 and page at maxPage.
func pageParams(r *http.Request) (page, limit int) {
	page, limit = 1, defaultPageSize
	if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && v > 0 {
		page = min(v, maxPage)
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = min(v, maxPageSize)
	}
	return page, limit
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func ok(w http.ResponseWriter, status int, msg string, data any) {
	respondJSON(w, status, envelope{Success: true, Message: msg, Data: data})
}

func okPage(w http.ResponseWriter, data any, p Pagination) {
	respondJSON(w, http.StatusOK, envelope{Success: true, Data: data, Pagination: &p})
}

func fail(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, envelope{Success: false, Message: msg})
}

func failWith(w http.ResponseWriter, status int, msg string, extra map[string]any) {
	body := map[string]any{"success": false, "message": msg}
	for k, v := range extra {
		body[k] = v
	}
	respondJSON(w, status, body)
}

func internalError(w http.ResponseWriter, lg *zap.SugaredLogger, what string, err error) {
	lg.Errorw(what, "error", err)
	fail(w, http.StatusInternalServerError, "Internal server error")
}

// invalid writes a 400 with per-field messages when err came from ozzo.
func invalid(w http.ResponseWriter, err error) {
	fields := map[string]string{}
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		for name, e := range verrs {
			fields[name] = e.Error()
		}
	} else {
		fields["body"] = err.Error()
	}
	respondJSON(w, http.StatusBadRequest, envelope{Success: false, Message: "Validation failed", Errors: fields})
}

// decode reads a JSON body into v and runs its Validate method. It writes
// the 400 itself and reports false when the request should stop.
func decode(w http.ResponseWriter, r *http.Request, v validation.Validatable) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		fail(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if err := v.Validate(); err != nil {
		invalid(w, err)
		return false
	}
	return true
}
