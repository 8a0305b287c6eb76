package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/CTAG07/roster/pkg/templating"
)

// maxPreviewBody caps request bodies read by the preview and test endpoints.
const maxPreviewBody = 1 << 20

// TemplateAPI holds the dependencies for the template API handlers.
type TemplateAPI struct {
	tm     *templating.TemplateManager
	logger *slog.Logger
}

// NewTemplateAPI creates a new instance of the TemplateAPI.
func NewTemplateAPI(tm *templating.TemplateManager, logger *slog.Logger) *TemplateAPI {
	return &TemplateAPI{
		tm:     tm,
		logger: logger,
	}
}

// RegisterRoutes sets up the routing for all /api/templates endpoints.
func (t *TemplateAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/templates/refresh", t.handleRefresh)
	mux.HandleFunc("/api/templates/test", t.handleTest)
	mux.HandleFunc("/api/templates/preview", t.handlePreview)
	mux.HandleFunc("/api/templates", t.handleList)
}

// handleRefresh reloads every template from disk.
func (t *TemplateAPI) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if err := t.tm.Refresh(); err != nil {
		t.logger.Error("API triggered refresh failed", "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to refresh templates: %v", err))
		return
	}
	t.logger.Info("Templates refreshed via API")
	w.WriteHeader(http.StatusNoContent)
}

// handleList returns the keys of every cached template.
func (t *TemplateAPI) handleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	names := t.tm.GetTemplateNames()
	if names == nil {
		names = []string{}
	}
	respondWithJSON(w, http.StatusOK, names)
}

// handlePreview renders a cached template with the JSON object in the request body
// as parameters. Evaluation errors are reported instead of being replaced by the
// placeholder.
func (t *TemplateAPI) handlePreview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	name := r.URL.Query().Get("name")
	if name == "" {
		respondWithError(w, http.StatusBadRequest, "Query parameter 'name' is required")
		return
	}

	params := templating.Params{}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxPreviewBody)).Decode(&params); err != nil && !errors.Is(err, io.EOF) {
		respondWithError(w, http.StatusBadRequest, "Request body must be a JSON object")
		return
	}

	out, err := t.tm.RenderStrict(r.Context(), name, params)
	if err != nil {
		t.respondWithRenderError(w, name, err)
		return
	}

	setPageHeaders(w)
	_, _ = io.WriteString(w, out)
}

// handleTest renders the request body as template content without caching it.
// Query parameters are bound as string variables.
func (t *TemplateAPI) handleTest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxPreviewBody))
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to read request body: %v", err))
		return
	}

	params := templating.Params{}
	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}

	out, err := t.tm.RenderString(r.Context(), string(body), params)
	if err != nil {
		t.respondWithRenderError(w, "", err)
		return
	}

	setPageHeaders(w)
	_, _ = io.WriteString(w, out)
}

func (t *TemplateAPI) respondWithRenderError(w http.ResponseWriter, name string, err error) {
	var evalErr *templating.EvalError
	switch {
	case errors.Is(err, templating.ErrTemplateNotFound):
		respondWithError(w, http.StatusNotFound, fmt.Sprintf("Template '%s' not found", name))
	case errors.As(err, &evalErr):
		respondWithError(w, http.StatusUnprocessableEntity, evalErr.Error())
	default:
		t.logger.Error("Failed to render preview", "template", name, "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to render preview: %v", err))
	}
}
