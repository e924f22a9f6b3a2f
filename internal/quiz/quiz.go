// Package quiz provides the quiz model and a repository that stores quizzes as documents.
package quiz

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
)

const (
	idField        = "id"
	mongoIDField   = "_id"
	titleField     = "title"
	questionsField = "questions"
)

var (
	// ErrValidation is wrapped by every error caused by malformed client input.
	ErrValidation = errors.New("validation failed")
	// ErrTitleRequired is returned when a quiz is created without a title.
	ErrTitleRequired = fmt.Errorf("%w: quiz title is required", ErrValidation)
	// ErrInvalidID is returned when an id is not in the format the store generates.
	ErrInvalidID = fmt.Errorf("%w: invalid quiz id format", ErrValidation)
	// ErrMalformed is returned when a document cannot be read as a quiz.
	ErrMalformed = errors.New("malformed quiz document")
	// ErrQuizNotFound is returned when a quiz is not found.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrUninitialized is returned when the underlying store is not connected.
	ErrUninitialized = errors.New("quiz store not initialized")
)

// Quiz is a title plus opaque questions.
// Questions holds whatever JSON value the client sent, usually an array. Members other than id, title and questions
// are kept verbatim in Fields.
//
//nolint:recvcheck // MarshalJSON has a value receiver so quizzes encode the same by value and by pointer.
type Quiz struct {
	ID        string
	Title     string
	Questions json.RawMessage
	Fields    map[string]json.RawMessage
}

// Valid checks if the quiz is valid.
func (q *Quiz) Valid(_ context.Context) map[string]string {
	problems := make(map[string]string)
	if q.Title == "" {
		problems[titleField] = "Title is required"
	}

	return problems
}

// MarshalJSON writes id (when set), title, questions (when set) and then the remaining fields sorted by name.
func (q Quiz) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	first := true
	write := func(key string, value any) error {
		if !first {
			buf.WriteByte(',')
		}
		first = false

		k, err := json.Marshal(key)
		if err != nil {
			return fmt.Errorf("error encoding key %q: %w", key, err)
		}
		v, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("error encoding %q: %w", key, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)

		return nil
	}

	if q.ID != "" {
		if err := write(idField, q.ID); err != nil {
			return nil, err
		}
	}
	if err := write(titleField, q.Title); err != nil {
		return nil, err
	}
	if q.Questions != nil {
		if err := write(questionsField, q.Questions); err != nil {
			return nil, err
		}
	}

	keys := make([]string, 0, len(q.Fields))
	for k := range q.Fields {
		if !reserved(k) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	for _, k := range keys {
		if err := write(k, q.Fields[k]); err != nil {
			return nil, err
		}
	}

	buf.WriteByte('}')

	return buf.Bytes(), nil
}

// UnmarshalJSON reads a quiz from a JSON object.
// A title that is not a string is treated as missing. Questions are kept as sent.
func (q *Quiz) UnmarshalJSON(data []byte) error {
	var members map[string]json.RawMessage
	if err := json.Unmarshal(data, &members); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if members == nil {
		return fmt.Errorf("%w: not a JSON object", ErrMalformed)
	}

	qz := Quiz{Fields: make(map[string]json.RawMessage)}
	for k, v := range members {
		switch k {
		case idField:
			var id string
			if err := json.Unmarshal(v, &id); err == nil {
				qz.ID = id
			}
		case mongoIDField:
			// never stored; the id is generated by the store
		case titleField:
			var title string
			if err := json.Unmarshal(v, &title); err == nil {
				qz.Title = title
			}
		case questionsField:
			qz.Questions = v
		default:
			qz.Fields[k] = v
		}
	}
	*q = qz

	return nil
}

func reserved(key string) bool {
	switch key {
	case idField, mongoIDField, titleField, questionsField:
		return true
	default:
		return false
	}
}

// Store represents a store for quizzes.
type Store interface {
	// Ready reports whether the underlying document store is connected.
	Ready() bool
	// Ping checks the connection to the document store.
	Ping(ctx context.Context) error
	// ListQuizzes returns all quizzes in storage-native order.
	ListQuizzes(ctx context.Context) ([]*Quiz, error)
	// CreateQuiz stores a quiz and returns it as read back from the store.
	CreateQuiz(ctx context.Context, qz *Quiz) (*Quiz, error)
	// GetQuizByID returns a quiz by its ID.
	GetQuizByID(ctx context.Context, id string) (*Quiz, error)
}
