package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/CTAG07/roster/pkg/roster"
)

// errAddFailed hides storage details from API clients; the cause is logged.
var errAddFailed = errors.New("failed to add student")

// StudentAPI holds the dependencies for the student API handlers.
type StudentAPI struct {
	store  *roster.Store
	writes *prometheus.CounterVec
	logger *slog.Logger
}

// NewStudentAPI creates a new instance of the StudentAPI. Write outcomes are
// counted on reg.
func NewStudentAPI(store *roster.Store, reg prometheus.Registerer, logger *slog.Logger) *StudentAPI {
	writes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "roster",
		Subsystem: "students",
		Name:      "writes_total",
		Help:      "Student add and remove requests by operation and result.",
	}, []string{"op", "result"})
	reg.MustRegister(writes)

	return &StudentAPI{
		store:  store,
		writes: writes,
		logger: logger,
	}
}

// RegisterRoutes sets up the routing for all /api/students endpoints.
func (a *StudentAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/students", a.handleCollection)
	mux.HandleFunc("/api/students/", a.handleItem)
}

// handleCollection lists students or adds a new one.
func (a *StudentAPI) handleCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		students, err := a.store.List(r.Context())
		if err != nil {
			a.logger.Error("Failed to list students", "error", err)
			respondWithError(w, http.StatusInternalServerError, "Failed to list students")
			return
		}
		respondWithJSON(w, http.StatusOK, students)
	case http.MethodPost:
		var st roster.Student
		if err := json.NewDecoder(r.Body).Decode(&st); err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid JSON request body")
			return
		}
		created, err := a.add(r.Context(), st)
		if err != nil {
			respondWithError(w, studentErrorStatus(err), err.Error())
			return
		}
		respondWithJSON(w, http.StatusCreated, created)
	default:
		w.Header().Set("Allow", "GET, POST")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleItem reads or deletes a single student by numeric id.
func (a *StudentAPI) handleItem(w http.ResponseWriter, r *http.Request) {
	idStr := strings.TrimPrefix(r.URL.Path, "/api/students/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		respondWithError(w, http.StatusBadRequest, "Invalid student id")
		return
	}

	switch r.Method {
	case http.MethodGet:
		st, err := a.store.Get(r.Context(), id)
		if err != nil {
			if !errors.Is(err, roster.ErrStudentNotFound) {
				a.logger.Error("Failed to get student", "id", id, "error", err)
			}
			respondWithError(w, studentErrorStatus(err), err.Error())
			return
		}
		respondWithJSON(w, http.StatusOK, st)
	case http.MethodDelete:
		err := a.store.Remove(r.Context(), id)
		a.writes.WithLabelValues("remove", resultLabel(err)).Inc()
		if err != nil {
			if !errors.Is(err, roster.ErrStudentNotFound) {
				a.logger.Error("Failed to remove student", "id", id, "error", err)
			}
			respondWithError(w, studentErrorStatus(err), err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.Header().Set("Allow", "GET, DELETE")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// add stores st and records the outcome. Storage failures are logged here.
func (a *StudentAPI) add(ctx context.Context, st roster.Student) (roster.Student, error) {
	created, err := a.store.Add(ctx, st)
	a.writes.WithLabelValues("add", resultLabel(err)).Inc()
	if err != nil && studentErrorStatus(err) == http.StatusInternalServerError {
		a.logger.ErrorContext(ctx, "Failed to add student", "error", err)
		return roster.Student{}, errAddFailed
	}
	return created, err
}

// studentErrorStatus maps roster errors to HTTP status codes.
func studentErrorStatus(err error) int {
	switch {
	case errors.Is(err, roster.ErrInvalidStudent):
		return http.StatusBadRequest
	case errors.Is(err, roster.ErrDuplicateStudent):
		return http.StatusConflict
	case errors.Is(err, roster.ErrStudentNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, roster.ErrInvalidStudent), errors.Is(err, roster.ErrDuplicateStudent):
		return "rejected"
	case errors.Is(err, roster.ErrStudentNotFound):
		return "not_found"
	default:
		return "error"
	}
}
