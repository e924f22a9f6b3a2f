// Package api provides the HTTP handlers for the quiz API.
package api

import (
	"log/slog"
	"net/http"

	"github.com/starquake/quizstore/internal/quiz"
)

// AddRoutes registers the quiz routes on mux. Every route answers 503 while the store is not connected.
func AddRoutes(mux *http.ServeMux, logger *slog.Logger, quizzes quiz.Store) {
	mux.Handle("GET /api/quizzes", RequireStore(logger, quizzes, HandleQuizList(logger, quizzes)))
	mux.Handle("POST /api/quizzes", RequireStore(logger, quizzes, HandleQuizCreate(logger, quizzes)))
	mux.Handle("GET /api/quizzes/{id}", RequireStore(logger, quizzes, HandleQuizGet(logger, quizzes)))
}
