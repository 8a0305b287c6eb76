package roster

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// SetupSchema creates the students table. It is idempotent and safe to call on an
// already-initialized database.
func SetupSchema(db *sql.DB) error {
	const (
		schemaStudents = `
CREATE TABLE IF NOT EXISTS students (
    id          INTEGER PRIMARY KEY,
    name        TEXT    NOT NULL,
    eid         TEXT    NOT NULL UNIQUE,
    description TEXT    NOT NULL DEFAULT ''
);
`
		schemaStudentsName = `CREATE INDEX IF NOT EXISTS students_name ON students (name);`
	)

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	if _, err = tx.Exec(schemaStudents); err != nil {
		return fmt.Errorf("could not create students schema: %w", err)
	}
	if _, err = tx.Exec(schemaStudentsName); err != nil {
		return fmt.Errorf("could not create students index: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}
	return nil
}

// Store reads and writes student records. It holds prepared statements for every
// query it runs; call Close when done with it.
type Store struct {
	db         *sql.DB
	stmtList   *sql.Stmt
	stmtGet    *sql.Stmt
	stmtInsert *sql.Stmt
	stmtDelete *sql.Stmt
	logger     *slog.Logger
}

// NewStore prepares the roster statements against db. SetupSchema must have run first.
// A nil logger discards all logs.
func NewStore(db *sql.DB, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	s := &Store{db: db, logger: logger}
	var err error

	s.stmtList, err = db.Prepare(`SELECT id, name, eid, description FROM students ORDER BY id;`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare list statement: %w", err)
	}

	s.stmtGet, err = db.Prepare(`SELECT id, name, eid, description FROM students WHERE id = ?;`)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to prepare get statement: %w", err)
	}

	s.stmtInsert, err = db.Prepare(`INSERT INTO students (name, eid, description) VALUES (?, ?, ?);`)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to prepare insert statement: %w", err)
	}

	s.stmtDelete, err = db.Prepare(`DELETE FROM students WHERE id = ?;`)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to prepare delete statement: %w", err)
	}

	return s, nil
}

// Close releases the prepared statements. The underlying *sql.DB is left open.
func (s *Store) Close() {
	for _, stmt := range []*sql.Stmt{s.stmtList, s.stmtGet, s.stmtInsert, s.stmtDelete} {
		if stmt != nil {
			_ = stmt.Close()
		}
	}
}

// List returns every student in insertion order.
func (s *Store) List(ctx context.Context) ([]Student, error) {
	rows, err := s.stmtList.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	students := []Student{}
	for rows.Next() {
		var st Student
		if err = rows.Scan(&st.ID, &st.Name, &st.EID, &st.Description); err != nil {
			return nil, fmt.Errorf("failed to scan student: %w", err)
		}
		students = append(students, st)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	return students, nil
}

// Get returns the student with the given ID, or ErrStudentNotFound.
func (s *Store) Get(ctx context.Context, id int64) (Student, error) {
	var st Student
	err := s.stmtGet.QueryRowContext(ctx, id).Scan(&st.ID, &st.Name, &st.EID, &st.Description)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Student{}, fmt.Errorf("%w: id %d", ErrStudentNotFound, id)
		}
		return Student{}, fmt.Errorf("failed to get student %d: %w", id, err)
	}
	return st, nil
}

// Add sanitizes and validates st, then stores it. Any ID on st is ignored; the
// returned record carries the ID the database assigned.
func (s *Store) Add(ctx context.Context, st Student) (Student, error) {
	clean := st.Sanitize()
	if err := clean.Validate(); err != nil {
		return Student{}, err
	}

	res, err := s.stmtInsert.ExecContext(ctx, clean.Name, clean.EID, clean.Description)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return Student{}, fmt.Errorf("%w: eid %q", ErrDuplicateStudent, clean.EID)
		}
		return Student{}, fmt.Errorf("failed to add student: %w", err)
	}
	if clean.ID, err = res.LastInsertId(); err != nil {
		return Student{}, fmt.Errorf("failed to read new student id: %w", err)
	}

	s.logger.InfoContext(ctx, "Student added",
		slog.Int64("id", clean.ID),
		slog.String("eid", clean.EID),
	)
	return clean, nil
}

// Remove deletes the student with the given ID, or returns ErrStudentNotFound.
func (s *Store) Remove(ctx context.Context, id int64) error {
	res, err := s.stmtDelete.ExecContext(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to remove student %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to remove student %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: id %d", ErrStudentNotFound, id)
	}

	s.logger.InfoContext(ctx, "Student removed", slog.Int64("id", id))
	return nil
}
