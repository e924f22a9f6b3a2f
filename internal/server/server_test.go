package server_test

import (
	"log/slog"
	"testing"

	"github.com/starquake/quizstore/internal/config"
	"github.com/starquake/quizstore/internal/dbtest"
	"github.com/starquake/quizstore/internal/server"
	"github.com/starquake/quizstore/internal/store"
)

func TestNewServer(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.DiscardHandler)
	stores := store.New(dbtest.OpenUnconnected(t), logger)

	srv := server.NewServer(logger, &config.Config{}, stores)

	if srv == nil {
		t.Error("srv is nil")
	}
}
