package server

import (
	"log/slog"
	"net/http"

	"github.com/starquake/quizstore/cmd/server/health"
	"github.com/starquake/quizstore/internal/api"
	"github.com/starquake/quizstore/internal/config"
	"github.com/starquake/quizstore/internal/docs"
	"github.com/starquake/quizstore/internal/store"
)

func addRoutes(
	mux *http.ServeMux,
	logger *slog.Logger,
	cfg *config.Config,
	stores *store.Stores,
) {
	api.AddRoutes(mux, logger, stores.Quizzes)
	mux.Handle("GET /healthz", health.HandleHealthz(logger, stores.Quizzes))
	mux.Handle("GET "+docs.Prefix, docs.Handler(logger, cfg))
	mux.Handle("GET /docs", http.RedirectHandler(docs.Prefix, http.StatusMovedPermanently))
}
