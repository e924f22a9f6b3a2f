// Package server contains everything related to the Server
package server

import (
	"log/slog"
	"net/http"

	"github.com/starquake/quizstore/internal/config"
	"github.com/starquake/quizstore/internal/logging"
	"github.com/starquake/quizstore/internal/store"
)

// NewServer creates a new server.
func NewServer(logger *slog.Logger, cfg *config.Config, stores *store.Stores) http.Handler {
	mux := http.NewServeMux()
	addRoutes(mux, logger, cfg, stores)
	var handler http.Handler = mux
	handler = logging.Middleware(logger, handler)

	return handler
}
