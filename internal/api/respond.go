package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/bankrec/internal/apperr"
	"github.com/cleared-dev/bankrec/internal/logger"
	"github.com/cleared-dev/bankrec/internal/model"
)

const (
	defaultPageSize = 20
	maxPageSize     = 500
	maxPage         = 1_000_000
	maxBodyBytes    = 10 << 20
)

type errorBody struct {
	Error  string              `json:"error"`
	Fields []apperr.FieldError `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.L.Error("encoding response failed", "error", err)
	}
}

// writeError maps service errors to status codes. Unexpected errors are
// logged and reported without detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "validation failed", Fields: apperr.Fields(err)})
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	case errors.Is(err, apperr.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	case errors.Is(err, apperr.ErrInvalidTransition):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: err.Error()})
	default:
		logger.FromContext(r.Context()).Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return apperr.Invalid("body", "malformed JSON: %v", err)
	}
	return nil
}

// Page is the envelope of a paginated list.
type Page[T any] struct {
	Content     []T `json:"content"`
	CurrentPage int `json:"currentPage"`
	TotalItems  int `json:"totalItems"`
	TotalPages  int `json:"totalPages"`
}

// writeList writes items as a plain array, or as a Page when the request
// carries a page parameter (zero-based, with optional size).
func writeList[T any](w http.ResponseWriter, r *http.Request, items []T) {
	if items == nil {
		items = []T{}
	}
	q := r.URL.Query()
	if !q.Has("page") {
		writeJSON(w, http.StatusOK, items)
		return
	}
	page, err := strconv.Atoi(q.Get("page"))
	if err != nil || page < 0 || page > maxPage {
		writeError(w, r, apperr.Invalid("page", "must be between 0 and %d", maxPage))
		return
	}
	size := defaultPageSize
	if q.Has("size") {
		size, err = strconv.Atoi(q.Get("size"))
		if err != nil || size < 1 || size > maxPageSize {
			writeError(w, r, apperr.Invalid("size", "must be between 1 and %d", maxPageSize))
			return
		}
	}

	start := len(items)
	if page <= len(items)/size {
		start = page * size
	}
	end := min(start+size, len(items))
	writeJSON(w, http.StatusOK, Page[T]{
		Content:     items[start:end],
		CurrentPage: page,
		TotalItems:  len(items),
		TotalPages:  (len(items) + size - 1) / size,
	})
}

// actor returns the named query parameter, falling back to the X-Actor header.
func actor(r *http.Request, param string) string {
	if param != "" {
		if v := strings.TrimSpace(r.URL.Query().Get(param)); v != "" {
			return v
		}
	}
	return strings.TrimSpace(r.Header.Get("X-Actor"))
}

func pathID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Invalid("id", "must be a positive integer, got %q", raw)
	}
	return id, nil
}

func queryInt64(r *http.Request, name string) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, apperr.Invalid(name, "must be an integer, got %q", raw)
	}
	return v, nil
}

func queryInt(r *http.Request, name string) (int, error) {
	v, err := queryInt64(r, name)
	return int(v), err
}

func queryIDs(r *http.Request, name string) ([]int64, error) {
	var ids []int64
	for _, raw := range r.URL.Query()[name] {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				return nil, apperr.Invalid(name, "must be a comma separated list of ids, got %q", raw)
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func queryDate(r *http.Request, name string) (model.Date, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return model.Date{}, nil
	}
	d, err := model.ParseDate(raw)
	if err != nil {
		return model.Date{}, apperr.Invalid(name, "must be a YYYY-MM-DD date, got %q", raw)
	}
	return d, nil
}

func queryDecimal(r *http.Request, name string) (decimal.Decimal, bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return decimal.Zero, false, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, false, apperr.Invalid(name, "must be a decimal number, got %q", raw)
	}
	return d, true, nil
}

func requireParam(r *http.Request, name string) (string, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return "", apperr.Invalid(name, "is required")
	}
	return v, nil
}

// firstErr returns the first non-nil error.
func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func attachment(w http.ResponseWriter, name string) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
}
