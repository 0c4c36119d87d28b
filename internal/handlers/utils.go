package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/postboard/apiserver/internal/auth"
	"github.com/postboard/apiserver/internal/services"
	"github.com/postboard/apiserver/internal/store"
	"github.com/sirupsen/logrus"
)

const (
	defaultLimit   = 100
	defaultSkip    = 0
	maxBodyBytes   = 1 << 20
	detailInternal = "internal server error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// errorDetails holds the per-route messages for the sentinel errors.
type errorDetails struct {
	notFound  string
	forbidden string
	conflict  string
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Detail: message})
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeError(w, http.StatusUnauthorized, "Could not validate credentials")
}

// writeServiceError maps service and store errors onto status codes.
// Anything unrecognised is logged and reported as a 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, log logrus.FieldLogger, err error, details errorDetails) {
	switch {
	case errors.Is(err, auth.ErrInvalidToken):
		writeUnauthorized(w)
	case errors.Is(err, auth.ErrForbidden):
		writeError(w, http.StatusForbidden, details.forbidden)
	case errors.Is(err, services.ErrInvalidCredentials):
		writeError(w, http.StatusForbidden, "Invalid Credentials")
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, details.notFound)
	case errors.Is(err, store.ErrConflict):
		writeError(w, http.StatusBadRequest, details.conflict)
	case errors.Is(err, store.ErrConstraint):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		log.WithError(err).WithFields(logrus.Fields{
			"request_id": middleware.GetReqID(r.Context()),
			"method":     r.Method,
			"path":       r.URL.Path,
		}).Error("request failed")
		writeError(w, http.StatusInternalServerError, detailInternal)
	}
}

// decodeJSON reads a single JSON object into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// normalizer is implemented by request bodies that clean up their fields
// before validation.
type normalizer interface {
	normalize()
}

// decodeAndValidate writes a 422 and returns false when the body cannot be
// decoded or fails validation.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := decodeJSON(w, r, dst); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return false
	}
	if n, ok := dst.(normalizer); ok {
		n.normalize()
	}
	if err := validateStruct(dst); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return false
	}
	return true
}

// parsePagination reads the limit and skip query parameters.
func parsePagination(r *http.Request) (limit, skip int, err error) {
	limit, skip = defaultLimit, defaultSkip

	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return 0, 0, errors.New("invalid limit")
		}
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("skip")); raw != "" {
		skip, err = strconv.Atoi(raw)
		if err != nil || skip < 0 {
			return 0, 0, errors.New("invalid skip")
		}
	}
	return limit, skip, nil
}

func parseIDParam(r *http.Request, name string) (int, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return id, nil
}

// Healthz reports liveness.
func Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
