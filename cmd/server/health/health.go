// Package health provides health check endpoints.
package health

import (
	"log/slog"
	"net/http"

	"github.com/starquake/quizstore/internal/httputil"
	"github.com/starquake/quizstore/internal/logging"
	"github.com/starquake/quizstore/internal/quiz"
)

// Status is the body served by HandleHealthz.
type Status struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// HandleHealthz returns a handler that serves health check responses.
// Returns 200 when the quiz store answers a ping and 503 otherwise. The cause of a failed ping is only logged.
func HandleHealthz(logger *slog.Logger, quizzes quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		httpStatus := http.StatusOK
		health := Status{
			Status: "ok",
			Checks: make(map[string]string),
		}

		if err := quizzes.Ping(ctx); err != nil {
			logger.WarnContext(ctx, "database health check failed", logging.ErrAttr(err))
			health.Status = "degraded"
			health.Checks["database"] = "unhealthy"
			httpStatus = http.StatusServiceUnavailable
		} else {
			health.Checks["database"] = "healthy"
		}

		logger.DebugContext(ctx, "Health check performed", slog.String("status", health.Status))
		if err := httputil.EncodeJSON(w, httpStatus, health); err != nil {
			logger.ErrorContext(ctx, "error encoding health status", logging.ErrAttr(err))
		}
	}
}
