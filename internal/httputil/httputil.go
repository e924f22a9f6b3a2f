// Package httputil provides utility functions for HTTP servers.
package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// ErrTrailingData is returned by DecodeJSON when the body holds more than one JSON value.
var ErrTrailingData = errors.New("unexpected data after JSON value")

// Message is the body of every error response.
type Message struct {
	Message string `json:"message"`
}

// EncodeJSON encodes v to JSON, sets status, and writes it to w.
func EncodeJSON[T any](w http.ResponseWriter, statusCode int, v T) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		return fmt.Errorf("failed to encode json: %w", err)
	}

	return nil
}

// WriteMessage writes {"message": msg} with the given status.
func WriteMessage(w http.ResponseWriter, statusCode int, msg string) error {
	return EncodeJSON(w, statusCode, Message{Message: msg})
}

// DecodeJSON decodes a single JSON value from r. Anything but whitespace after it is an error.
func DecodeJSON[T any](r *http.Request) (T, error) {
	var v T
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&v); err != nil {
		return v, fmt.Errorf("failed to decode json: %w", err)
	}

	// Token also rejects a stray closing bracket, which More does not report.
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		if err != nil {
			return v, fmt.Errorf("%w: %w", ErrTrailingData, err)
		}

		return v, ErrTrailingData
	}

	return v, nil
}
