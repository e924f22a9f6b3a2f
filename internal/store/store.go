// Package store provides the application's data stores.
package store

import (
	"fmt"
	"log/slog"

	"github.com/starquake/quizstore/internal/config"
	"github.com/starquake/quizstore/internal/docstore"
	"github.com/starquake/quizstore/internal/docstore/mongo"
	"github.com/starquake/quizstore/internal/docstore/sqlite"
	"github.com/starquake/quizstore/internal/quiz"
)

// Stores is a collection of stores for the application.
type Stores struct {
	// Docs is the document store shared by every repository. Its owner connects and closes it.
	Docs    docstore.Store
	Quizzes quiz.Store
}

// New initializes a new Stores instance on top of docs.
func New(docs docstore.Store, logger *slog.Logger) *Stores {
	return &Stores{
		Docs:    docs,
		Quizzes: quiz.NewRepository(docs, logger),
	}
}

// Open selects the document store backend named by cfg.DBDriver. The store is not connected yet.
// Returns config.ErrUnsupportedDriver for a driver without a backend.
func Open(cfg *config.Config, logger *slog.Logger) (*Stores, error) {
	var docs docstore.Store
	switch cfg.DBDriver {
	case config.DriverMongoDB:
		docs = mongo.New(mongo.Config{
			URI:            cfg.DBURI,
			Database:       cfg.DBName,
			ConnectTimeout: cfg.DBConnectTimeout,
			MaxPoolSize:    uint64(max(cfg.DBMaxOpenConns, 0)), //nolint:gosec // clamped to non-negative
		}, logger)
	case config.DriverSQLite:
		docs = sqlite.New(sqlite.Config{
			URI:             cfg.DBURI,
			MaxOpenConns:    cfg.DBMaxOpenConns,
			MaxIdleConns:    cfg.DBMaxIdleConns,
			ConnMaxLifetime: cfg.DBConnMaxLifetime,
		}, logger)
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrUnsupportedDriver, cfg.DBDriver)
	}

	return New(docs, logger), nil
}
