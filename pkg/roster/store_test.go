package roster

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	_ "github.com/mattn/go-sqlite3"
)

// setupTestStore creates a file-backed SQLite database and a Store for testing.
func setupTestStore(t *testing.T) (*sql.DB, *Store) {
	t.Helper()
	dbFile := filepath.Join(t.TempDir(), "roster.db")
	db, err := sql.Open("sqlite3", dbFile+"?_journal_mode=WAL")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = SetupSchema(db); err != nil {
		t.Fatalf("failed to set up schema: %v", err)
	}
	s, err := NewStore(db, nil)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	t.Cleanup(s.Close)
	return db, s
}

// A read-only students view lets the SELECT statements prepare and makes the
// INSERT fail, so NewStore has to release what it already prepared.
func TestNewStore_PrepareFailure(t *testing.T) {
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "roster.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if _, err = db.Exec(`CREATE VIEW students AS SELECT 1 AS id, 'n' AS name, 'e' AS eid, '' AS description;`); err != nil {
		t.Fatalf("failed to create view: %v", err)
	}

	s, err := NewStore(db, nil)
	if err == nil || !strings.Contains(err.Error(), "insert statement") {
		t.Fatalf("NewStore() error = %v, want an insert prepare failure", err)
	}
	if s != nil {
		t.Errorf("NewStore() returned a store alongside an error")
	}

	// The partially built store must be closable.
	(&Store{}).Close()

	if _, err = db.Exec(`DROP VIEW students;`); err != nil {
		t.Fatalf("failed to drop view: %v", err)
	}
	if err = SetupSchema(db); err != nil {
		t.Fatalf("SetupSchema() error = %v", err)
	}
	if s, err = NewStore(db, nil); err != nil {
		t.Fatalf("NewStore() after schema fix error = %v", err)
	}
	s.Close()
}

func TestSetupSchema_Idempotent(t *testing.T) {
	db, _ := setupTestStore(t)
	if err := SetupSchema(db); err != nil {
		t.Fatalf("second SetupSchema() error = %v", err)
	}
}

func TestStore_AddAndList(t *testing.T) {
	_, s := setupTestStore(t)
	ctx := context.Background()

	students, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(students) != 0 {
		t.Fatalf("expected an empty roster, got %v", students)
	}

	ada, err := s.Add(ctx, Student{Name: "Ada Lovelace", EID: "al1815", Description: "Analyst"})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if ada.ID == 0 {
		t.Error("Add() should return the assigned id")
	}
	if _, err = s.Add(ctx, Student{ID: 99, Name: "Grace Hopper", EID: "gh1906"}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	students, err = s.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	want := []Student{
		{Name: "Ada Lovelace", EID: "al1815", Description: "Analyst"},
		{Name: "Grace Hopper", EID: "gh1906"},
	}
	if diff := cmp.Diff(want, students, cmpopts.IgnoreFields(Student{}, "ID")); diff != "" {
		t.Errorf("List() mismatch (-want +got):\n%s", diff)
	}
	if students[1].ID == 99 {
		t.Error("Add() should ignore the caller supplied id")
	}

	got, err := s.Get(ctx, ada.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if diff := cmp.Diff(ada, got); diff != "" {
		t.Errorf("Get() mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_AddSanitizes(t *testing.T) {
	_, s := setupTestStore(t)
	ctx := context.Background()

	st, err := s.Add(ctx, Student{
		Name:        "  <b>Bobby</b> Tables ",
		EID:         "bt1",
		Description: `<script>alert("x")</script>likes <i>SQL</i>`,
	})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if st.Name != "Bobby Tables" {
		t.Errorf("Name = %q, want markup stripped", st.Name)
	}
	if strings.Contains(st.Description, "<") || !strings.Contains(st.Description, "likes SQL") {
		t.Errorf("Description = %q, want markup stripped", st.Description)
	}

	// Values that look like SQL are stored verbatim through the parameterized insert.
	st, err = s.Add(ctx, Student{Name: "Robert'); DROP TABLE students;--", EID: "rt2"})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	students, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List() after odd insert error = %v", err)
	}
	if len(students) != 2 {
		t.Errorf("expected 2 students, got %d", len(students))
	}
}

func TestStore_AddValidation(t *testing.T) {
	_, s := setupTestStore(t)
	ctx := context.Background()

	invalid := []Student{
		{EID: "x1"},
		{Name: "No EID"},
		{Name: "   ", EID: "x2"},
		{Name: "<b></b>", EID: "x3"},
		{Name: "Spaced", EID: "a b"},
		{Name: strings.Repeat("n", maxNameLength+1), EID: "x4"},
	}
	for _, st := range invalid {
		if _, err := s.Add(ctx, st); !errors.Is(err, ErrInvalidStudent) {
			t.Errorf("Add(%+v) error = %v, want ErrInvalidStudent", st, err)
		}
	}

	if _, err := s.Add(ctx, Student{Name: "First", EID: "dup"}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if _, err := s.Add(ctx, Student{Name: "Second", EID: "dup"}); !errors.Is(err, ErrDuplicateStudent) {
		t.Errorf("duplicate Add() error = %v, want ErrDuplicateStudent", err)
	}
}

func TestStore_Remove(t *testing.T) {
	_, s := setupTestStore(t)
	ctx := context.Background()

	st, err := s.Add(ctx, Student{Name: "Temp", EID: "t1"})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err = s.Remove(ctx, st.ID); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if err = s.Remove(ctx, st.ID); !errors.Is(err, ErrStudentNotFound) {
		t.Errorf("second Remove() error = %v, want ErrStudentNotFound", err)
	}
	if _, err = s.Get(ctx, st.ID); !errors.Is(err, ErrStudentNotFound) {
		t.Errorf("Get() after Remove error = %v, want ErrStudentNotFound", err)
	}
}
