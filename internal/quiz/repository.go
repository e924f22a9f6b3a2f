package quiz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/starquake/quizstore/internal/docstore"
)

// CollectionName is the collection holding quiz documents.
const CollectionName = "quizzes"

// Repository stores quizzes in a document store collection. It holds no state of its own.
type Repository struct {
	store  docstore.Store
	coll   docstore.Collection
	logger *slog.Logger
}

var _ Store = (*Repository)(nil)

// NewRepository creates a Repository on the quizzes collection of store.
func NewRepository(store docstore.Store, logger *slog.Logger) *Repository {
	return &Repository{
		store:  store,
		coll:   store.Collection(CollectionName),
		logger: logger,
	}
}

// Ready reports whether the document store is connected.
func (r *Repository) Ready() bool {
	return r.store.Connected()
}

// Ping checks the connection to the document store.
func (r *Repository) Ping(ctx context.Context) error {
	if err := r.store.Ping(ctx); err != nil {
		return mapStoreErr(err)
	}

	return nil
}

// ListQuizzes returns every quiz. An empty store yields an empty slice.
func (r *Repository) ListQuizzes(ctx context.Context) ([]*Quiz, error) {
	docs, err := r.coll.Find(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list quizzes: %w", mapStoreErr(err))
	}

	quizzes := make([]*Quiz, 0, len(docs))
	for _, doc := range docs {
		qz, decodeErr := decode(doc)
		if decodeErr != nil {
			return nil, fmt.Errorf("failed to list quizzes: %w", decodeErr)
		}
		quizzes = append(quizzes, qz)
	}

	return quizzes, nil
}

// CreateQuiz inserts qz and returns the stored document, read back by its generated id.
// Returns ErrTitleRequired if the title is empty; nothing is stored in that case.
// Any ID on qz is ignored.
func (r *Repository) CreateQuiz(ctx context.Context, qz *Quiz) (*Quiz, error) {
	if _, ok := qz.Valid(ctx)[titleField]; ok {
		return nil, ErrTitleRequired
	}

	doc := *qz
	doc.ID = ""
	body, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode quiz: %w", err)
	}

	id, err := r.coll.InsertOne(ctx, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create quiz: %w", mapStoreErr(err))
	}

	r.logger.DebugContext(ctx, "quiz inserted", slog.String("id", id))

	stored, err := r.coll.FindByID(ctx, id)
	if err != nil {
		// A miss on a freshly generated id is a storage failure.
		if errors.Is(err, docstore.ErrNotConnected) {
			return nil, fmt.Errorf("failed to read back quiz %s: %w", id, mapStoreErr(err))
		}

		return nil, fmt.Errorf("failed to read back quiz %s: %w", id, err)
	}

	return decode(stored)
}

// GetQuizByID returns the quiz with the given id.
// Returns ErrInvalidID for ids the store could never have generated and ErrQuizNotFound if there is no such quiz.
func (r *Repository) GetQuizByID(ctx context.Context, id string) (*Quiz, error) {
	doc, err := r.coll.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get quiz: %w", mapStoreErr(err))
	}

	return decode(doc)
}

func decode(doc []byte) (*Quiz, error) {
	var qz Quiz
	if err := json.Unmarshal(doc, &qz); err != nil {
		return nil, fmt.Errorf("failed to decode quiz: %w", err)
	}

	return &qz, nil
}

func mapStoreErr(err error) error {
	switch {
	case errors.Is(err, docstore.ErrNotConnected):
		return fmt.Errorf("%w: %w", ErrUninitialized, err)
	case errors.Is(err, docstore.ErrInvalidID):
		return fmt.Errorf("%w: %w", ErrInvalidID, err)
	case errors.Is(err, docstore.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrQuizNotFound, err)
	default:
		return err
	}
}
