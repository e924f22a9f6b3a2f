// Package docstore defines the document store used to persist quizzes.
// Backends live in subpackages (mongo, sqlite) and exchange documents as JSON objects.
package docstore

import (
	"context"
	"errors"
)

var (
	// ErrConnection is returned by Connect when the database cannot be reached.
	ErrConnection = errors.New("document store unreachable")
	// ErrCollectionExists is returned by a backend when a collection is created twice.
	// EnsureCollection never returns it.
	ErrCollectionExists = errors.New("collection already exists")
	// ErrNotFound is returned when no document matches an id.
	ErrNotFound = errors.New("document not found")
	// ErrInvalidID is returned when an id is not in the format the backend generates.
	ErrInvalidID = errors.New("invalid document id")
	// ErrNotConnected is returned for operations on a store that is not (or no longer) connected.
	ErrNotConnected = errors.New("document store not connected")
	// ErrInvalidDocument is returned when a document is not a JSON object.
	ErrInvalidDocument = errors.New("document is not a JSON object")
)

// IDField is the member carrying the store-generated id in documents read back from a Collection.
const IDField = "id"

// Store owns a single connection to a document database.
type Store interface {
	// Connect establishes the connection. Returns an error wrapping ErrConnection when unreachable.
	Connect(ctx context.Context) error
	// EnsureCollection creates the named collection unless it already exists.
	EnsureCollection(ctx context.Context, name string) error
	// Collection returns a handle to the named collection.
	Collection(name string) Collection
	// Connected reports whether Connect succeeded and Close has not been called.
	Connected() bool
	// Ping checks that the database is still reachable.
	Ping(ctx context.Context) error
	// Close releases the connection. It is safe to call more than once.
	Close(ctx context.Context) error
}

// Collection provides the primitives the quiz repository needs on one collection.
type Collection interface {
	// InsertOne stores doc, a JSON object, and returns the generated id.
	InsertOne(ctx context.Context, doc []byte) (string, error)
	// Find returns every document in storage-native order.
	Find(ctx context.Context) ([][]byte, error)
	// FindByID returns the document with the given id.
	FindByID(ctx context.Context, id string) ([]byte, error)
}
