package roster

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	// ErrInvalidStudent is returned when a record is missing a required field.
	ErrInvalidStudent = errors.New("invalid student")

	// ErrDuplicateStudent is returned when a record reuses an existing EID.
	ErrDuplicateStudent = errors.New("student already exists")

	// ErrStudentNotFound is returned when no record has the requested ID.
	ErrStudentNotFound = errors.New("student not found")
)

// Student is a single roster entry. The JSON names are the names templates use.
type Student struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	EID         string `json:"eid"`
	Description string `json:"description"`
}

const (
	maxNameLength        = 128
	maxEIDLength         = 32
	maxDescriptionLength = 4096
)

var (
	sanitizerOnce sync.Once
	sanitizer     *bluemonday.Policy
)

// textSanitizer strips all markup; what remains is HTML-escaped text.
func textSanitizer() *bluemonday.Policy {
	sanitizerOnce.Do(func() {
		sanitizer = bluemonday.StrictPolicy()
	})
	return sanitizer
}

// Sanitize returns a copy of s with surrounding whitespace trimmed and any HTML
// removed from the text fields. The ID is left untouched.
func (s Student) Sanitize() Student {
	policy := textSanitizer()
	return Student{
		ID:          s.ID,
		Name:        policy.Sanitize(strings.TrimSpace(s.Name)),
		EID:         policy.Sanitize(strings.TrimSpace(s.EID)),
		Description: policy.Sanitize(strings.TrimSpace(s.Description)),
	}
}

// Validate checks that the required fields are present and within limits.
func (s Student) Validate() error {
	switch {
	case s.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidStudent)
	case s.EID == "":
		return fmt.Errorf("%w: eid is required", ErrInvalidStudent)
	case len(s.Name) > maxNameLength:
		return fmt.Errorf("%w: name is longer than %d bytes", ErrInvalidStudent, maxNameLength)
	case len(s.EID) > maxEIDLength:
		return fmt.Errorf("%w: eid is longer than %d bytes", ErrInvalidStudent, maxEIDLength)
	case strings.ContainsAny(s.EID, " \t"):
		return fmt.Errorf("%w: eid must not contain whitespace", ErrInvalidStudent)
	case len(s.Description) > maxDescriptionLength:
		return fmt.Errorf("%w: description is longer than %d bytes", ErrInvalidStudent, maxDescriptionLength)
	}
	return nil
}
