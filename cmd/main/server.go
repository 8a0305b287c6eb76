package main

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/CTAG07/roster/pkg/roster"
	"github.com/CTAG07/roster/pkg/templating"
)

type Server struct {
	cm          *ConfigManager
	db          *sql.DB
	logger      *slog.Logger
	store       *roster.Store
	tm          *templating.TemplateManager
	registry    *prometheus.Registry
	studentAPI  *StudentAPI
	templateAPI *TemplateAPI
	serverAPI   *ServerAPI
	mux         *http.ServeMux
}

// NewServer wires the template manager, the roster store and every API onto a
// single mux. The template directory must load, otherwise the server is not built.
func NewServer(cm *ConfigManager, logger *slog.Logger, db *sql.DB, actionChan chan string) (*Server, error) {
	config := cm.Get()

	tm, err := templating.NewTemplateManager(logger, config.Templates, config.Server.TemplateDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create template manager: %w", err)
	}
	cm.SetTemplateManager(tm)

	store, err := roster.NewStore(db, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create roster store: %w", err)
	}

	// Each server cycle gets its own registry so a restart can register again.
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	tm.SetMetrics(templating.NewMetrics(registry))

	server := &Server{
		cm:          cm,
		db:          db,
		logger:      logger,
		store:       store,
		tm:          tm,
		registry:    registry,
		studentAPI:  NewStudentAPI(store, registry, logger),
		templateAPI: NewTemplateAPI(tm, logger),
		serverAPI:   NewServerAPI(cm, actionChan, tm, logger),
		mux:         http.NewServeMux(),
	}

	server.studentAPI.RegisterRoutes(server.mux)
	server.templateAPI.RegisterRoutes(server.mux)
	server.serverAPI.RegisterRoutes(server.mux)

	server.mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	server.mux.HandleFunc("/students", server.handleStudentForm)
	server.mux.HandleFunc("/", server.handleIndex)

	return server, nil
}

// Close releases the roster store. The database itself belongs to the caller.
func (s *Server) Close() {
	s.store.Close()
}

// handleIndex renders the index template with every student pre-rendered through
// the row template.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	config := s.cm.Get()

	students, err := s.store.List(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to list students", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	var rows strings.Builder
	for _, st := range students {
		row, err := s.tm.Render(ctx, config.Server.RowTemplate, studentParams(st))
		if err != nil {
			s.logger.ErrorContext(ctx, "Failed to render student row", "template", config.Server.RowTemplate, "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		rows.WriteString(row)
	}

	page, err := s.tm.Render(ctx, config.Server.IndexTemplate, templating.Params{
		"students": rows.String(),
		"count":    len(students),
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to render index", "template", config.Server.IndexTemplate, "error", err)
		if errors.Is(err, templating.ErrTemplateNotFound) {
			http.NotFound(w, r)
			return
		}
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	setPageHeaders(w)
	_, _ = io.WriteString(w, page)
}

// handleStudentForm adds a student from an HTML form post and sends the browser
// back to the index.
func (s *Server) handleStudentForm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form body", http.StatusBadRequest)
		return
	}

	st := roster.Student{
		Name:        r.PostForm.Get("name"),
		EID:         r.PostForm.Get("eid"),
		Description: r.PostForm.Get("description"),
	}
	if _, err := s.studentAPI.add(r.Context(), st); err != nil {
		http.Error(w, err.Error(), studentErrorStatus(err))
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// studentParams exposes a student to templates both as flat variables and as a
// single "student" object.
func studentParams(st roster.Student) templating.Params {
	return templating.Params{
		"student":     st,
		"id":          st.ID,
		"name":        st.Name,
		"eid":         st.EID,
		"description": st.Description,
	}
}

func setPageHeaders(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store, no-cache")
	w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline';")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
}
