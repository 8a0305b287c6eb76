package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/CTAG07/roster/pkg/roster"
)

var testTemplates = map[string]string{
	"index.html":        "<ul><%= students %></ul><p><%= count %></p>",
	"students/row.html": "<li><%= name %> (<%= student.eid %>)</li>",
	"broken.html":       "<%= missing.field %>",
}

func writeTestFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for key, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(key))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("failed to create directory for %s: %v", key, err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("failed to write %s: %v", key, err)
		}
	}
}

// setupTestConfig writes a config file pointing every path into a temp directory.
func setupTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeTestFiles(t, filepath.Join(dir, "templates"), testTemplates)

	config := DefaultConfig()
	config.Server.DataDir = filepath.Join(dir, "data")
	config.Server.TemplateDir = filepath.Join(dir, "templates")
	config.Server.DatabasePath = filepath.Join(dir, "data", "roster.sqlite3")

	path := filepath.Join(dir, "config.json")
	if err := writeConfig(path, config); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

// setupTestServer builds a Server over a fresh database and template directory.
func setupTestServer(t *testing.T) (*Server, chan string) {
	t.Helper()
	cm, err := NewConfigManager(setupTestConfig(t))
	if err != nil {
		t.Fatalf("NewConfigManager() error = %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cm.SetLogger(logger)

	db, err := openDatabase(cm.Get().Server)
	if err != nil {
		t.Fatalf("openDatabase() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	actionChan := make(chan string, 1)
	server, err := NewServer(cm, logger, db, actionChan)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	t.Cleanup(server.Close)
	return server, actionChan
}

func do(t *testing.T, s *Server, method, target, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	s.mux.ServeHTTP(rr, req)
	return rr
}

func decodeJSON[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("failed to decode response %q: %v", rr.Body.String(), err)
	}
	return v
}

func TestServer_Index(t *testing.T) {
	s, _ := setupTestServer(t)

	rr := do(t, s, http.MethodGet, "/", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("GET / status = %d, body %q", rr.Code, rr.Body.String())
	}
	if got := rr.Body.String(); got != "<ul></ul><p>0</p>" {
		t.Errorf("empty index = %q", got)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}

	if rr = do(t, s, http.MethodGet, "/elsewhere", "", ""); rr.Code != http.StatusNotFound {
		t.Errorf("GET /elsewhere status = %d, want 404", rr.Code)
	}
	if rr = do(t, s, http.MethodPost, "/", "", ""); rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST / status = %d, want 405", rr.Code)
	}
}

func TestServer_StudentForm(t *testing.T) {
	s, _ := setupTestServer(t)

	form := url.Values{"name": {"Ada Lovelace"}, "eid": {"al1815"}, "description": {"Analyst"}}
	rr := do(t, s, http.MethodPost, "/students", "application/x-www-form-urlencoded", form.Encode())
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/" {
		t.Fatalf("POST /students = %d %q, want 303 to /", rr.Code, rr.Header().Get("Location"))
	}

	form = url.Values{"name": {"<b>Grace</b>"}, "eid": {"gh1906"}}
	do(t, s, http.MethodPost, "/students", "application/x-www-form-urlencoded", form.Encode())

	rr = do(t, s, http.MethodGet, "/", "", "")
	want := "<ul><li>Ada Lovelace (al1815)</li><li>Grace (gh1906)</li></ul><p>2</p>"
	if got := rr.Body.String(); got != want {
		t.Errorf("index = %q, want %q", got, want)
	}

	form = url.Values{"name": {"No EID"}}
	if rr = do(t, s, http.MethodPost, "/students", "application/x-www-form-urlencoded", form.Encode()); rr.Code != http.StatusBadRequest {
		t.Errorf("invalid form status = %d, want 400", rr.Code)
	}
	if rr = do(t, s, http.MethodGet, "/students", "", ""); rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /students status = %d, want 405", rr.Code)
	}
}

func TestServer_IndexRowErrorUsesPlaceholder(t *testing.T) {
	s, _ := setupTestServer(t)
	writeTestFiles(t, s.cm.Get().Server.TemplateDir, map[string]string{
		"students/row.html": "<li><%= student.missing.field %></li>",
	})
	if err := s.tm.Refresh(); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if _, err := s.store.Add(context.Background(), roster.Student{Name: "Ada", EID: "a1"}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	rr := do(t, s, http.MethodGet, "/", "", "")
	want := "<ul>" + s.cm.Get().Templates.ErrorPlaceholder + "</ul><p>1</p>"
	if rr.Code != http.StatusOK || rr.Body.String() != want {
		t.Errorf("GET / = %d %q, want 200 %q", rr.Code, rr.Body.String(), want)
	}
}

func TestStudentAPI(t *testing.T) {
	s, _ := setupTestServer(t)

	rr := do(t, s, http.MethodPost, "/api/students", "application/json", `{"name":"Ada","eid":"al1815","description":"Analyst"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("POST status = %d, body %q", rr.Code, rr.Body.String())
	}
	created := decodeJSON[roster.Student](t, rr)
	if created.ID == 0 || created.Name != "Ada" {
		t.Errorf("created = %+v", created)
	}

	rr = do(t, s, http.MethodGet, "/api/students", "", "")
	if diff := cmp.Diff([]roster.Student{created}, decodeJSON[[]roster.Student](t, rr)); diff != "" {
		t.Errorf("list mismatch (-want +got):\n%s", diff)
	}

	target := "/api/students/" + jsonNumber(created.ID)
	rr = do(t, s, http.MethodGet, target, "", "")
	if diff := cmp.Diff(created, decodeJSON[roster.Student](t, rr)); diff != "" {
		t.Errorf("get mismatch (-want +got):\n%s", diff)
	}

	tests := []struct {
		name   string
		method string
		target string
		body   string
		want   int
	}{
		{"duplicate eid", http.MethodPost, "/api/students", `{"name":"Other","eid":"al1815"}`, http.StatusConflict},
		{"missing name", http.MethodPost, "/api/students", `{"eid":"x1"}`, http.StatusBadRequest},
		{"bad json", http.MethodPost, "/api/students", `{`, http.StatusBadRequest},
		{"wrong method", http.MethodPut, "/api/students", ``, http.StatusMethodNotAllowed},
		{"bad id", http.MethodGet, "/api/students/abc", ``, http.StatusBadRequest},
		{"unknown id", http.MethodGet, "/api/students/999", ``, http.StatusNotFound},
		{"delete", http.MethodDelete, target, ``, http.StatusNoContent},
		{"delete again", http.MethodDelete, target, ``, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rr := do(t, s, tt.method, tt.target, "application/json", tt.body); rr.Code != tt.want {
				t.Errorf("%s %s status = %d, want %d (body %q)", tt.method, tt.target, rr.Code, tt.want, rr.Body.String())
			}
		})
	}

	rr = do(t, s, http.MethodGet, "/metrics", "", "")
	body := rr.Body.String()
	for _, metric := range []string{
		`roster_students_writes_total{op="add",result="ok"} 1`,
		`roster_students_writes_total{op="add",result="rejected"} 2`,
		`roster_students_writes_total{op="remove",result="not_found"} 1`,
		`roster_templating_templates_loaded 3`,
	} {
		if !strings.Contains(body, metric) {
			t.Errorf("/metrics missing %q", metric)
		}
	}
}

func jsonNumber(id int64) string {
	data, _ := json.Marshal(id)
	return string(data)
}

func TestTemplateAPI(t *testing.T) {
	s, _ := setupTestServer(t)

	rr := do(t, s, http.MethodGet, "/api/templates", "", "")
	want := []string{"broken.html", "index.html", "students/row.html"}
	if diff := cmp.Diff(want, decodeJSON[[]string](t, rr)); diff != "" {
		t.Errorf("template list mismatch (-want +got):\n%s", diff)
	}

	tests := []struct {
		name     string
		target   string
		body     string
		want     int
		wantBody string
	}{
		{"preview", "/api/templates/preview?name=students/row.html", `{"name":"Ada","student":{"eid":"x"}}`, http.StatusOK, "<li>Ada (x)</li>"},
		{"preview unknown", "/api/templates/preview?name=nope.html", `{}`, http.StatusNotFound, ""},
		{"preview eval error", "/api/templates/preview?name=broken.html", ``, http.StatusUnprocessableEntity, ""},
		{"preview without name", "/api/templates/preview", `{}`, http.StatusBadRequest, ""},
		{"preview bad body", "/api/templates/preview?name=index.html", `[1,2]`, http.StatusBadRequest, ""},
		{"test string", "/api/templates/test?who=Bob", "Hi\n<%= who %>", http.StatusOK, "Hi Bob"},
		{"test string error", "/api/templates/test", "<%= who.name %>", http.StatusUnprocessableEntity, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, s, http.MethodPost, tt.target, "application/json", tt.body)
			if rr.Code != tt.want {
				t.Fatalf("status = %d, want %d (body %q)", rr.Code, tt.want, rr.Body.String())
			}
			if tt.wantBody != "" && rr.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", rr.Body.String(), tt.wantBody)
			}
		})
	}

	writeTestFiles(t, s.cm.Get().Server.TemplateDir, map[string]string{"extra/new.html": "new"})
	if rr = do(t, s, http.MethodPost, "/api/templates/refresh", "", ""); rr.Code != http.StatusNoContent {
		t.Fatalf("refresh status = %d", rr.Code)
	}
	rr = do(t, s, http.MethodGet, "/api/templates", "", "")
	if got := decodeJSON[[]string](t, rr); len(got) != 4 || got[1] != "extra/new.html" {
		t.Errorf("templates after refresh = %v", got)
	}
	if rr = do(t, s, http.MethodGet, "/api/templates/refresh", "", ""); rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET refresh status = %d, want 405", rr.Code)
	}
}

func TestServerAPI(t *testing.T) {
	s, actionChan := setupTestServer(t)

	rr := do(t, s, http.MethodGet, "/api/health", "", "")
	if diff := cmp.Diff(HealthStatus{Status: "ok", Templates: 3}, decodeJSON[HealthStatus](t, rr)); diff != "" {
		t.Errorf("health mismatch (-want +got):\n%s", diff)
	}

	rr = do(t, s, http.MethodGet, "/api/server/version", "", "")
	if got := decodeJSON[VersionInfo](t, rr); got.Version != Version {
		t.Errorf("version = %+v", got)
	}

	config := s.cm.Get()
	config.Templates.ErrorPlaceholder = "oops"
	data, err := json.Marshal(config)
	if err != nil {
		t.Fatalf("failed to marshal config: %v", err)
	}
	if rr = do(t, s, http.MethodPut, "/api/server/config", "application/json", string(data)); rr.Code != http.StatusOK {
		t.Fatalf("PUT config status = %d, body %q", rr.Code, rr.Body.String())
	}
	out, err := s.tm.Render(context.Background(), "broken.html", nil)
	if err != nil || out != "oops" {
		t.Errorf("Render after config update = %q, %v; want the new placeholder", out, err)
	}
	reloaded, err := LoadConfig(s.cm.configPath)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if reloaded.Templates.ErrorPlaceholder != "oops" {
		t.Errorf("saved placeholder = %q, want oops", reloaded.Templates.ErrorPlaceholder)
	}

	if rr = do(t, s, http.MethodPut, "/api/server/config", "application/json", `{"server_config":null}`); rr.Code != http.StatusBadRequest {
		t.Errorf("invalid config status = %d, want 400", rr.Code)
	}

	if rr = do(t, s, http.MethodPost, "/api/server/restart", "", ""); rr.Code != http.StatusAccepted {
		t.Fatalf("restart status = %d", rr.Code)
	}
	select {
	case action := <-actionChan:
		if action != actionRestart {
			t.Errorf("action = %q, want %q", action, actionRestart)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("restart action was not sent")
	}
}
