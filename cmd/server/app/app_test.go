package app_test

import (
	"errors"
	"log/slog"
	"net"
	"strings"
	"testing"
	"time"

	. "github.com/starquake/quizstore/cmd/server/app"
	"github.com/starquake/quizstore/internal/config"
	"github.com/starquake/quizstore/internal/dbtest"
	"github.com/starquake/quizstore/internal/docstore"
	"github.com/starquake/quizstore/internal/store"
	"github.com/starquake/quizstore/internal/testutil"
)

func TestRun_StartupErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		env      map[string]string
		wantErr  error
		wantLogs string
	}{
		{
			name: "unreachable mongodb",
			env: map[string]string{
				"DB_URI":             "mongodb://127.0.0.1:1/QuizApp",
				"DB_CONNECT_TIMEOUT": "500ms",
			},
			wantErr:  docstore.ErrConnection,
			wantLogs: "state=" + StateTerminated,
		},
		{
			name: "unopenable sqlite",
			env: map[string]string{
				"DB_DRIVER": "sqlite",
				"DB_URI":    "file:/nonexistent/dir/quizzes.sqlite",
			},
			wantErr:  docstore.ErrConnection,
			wantLogs: "error connecting to database",
		},
		{
			name:     "unsupported driver",
			env:      map[string]string{"DB_DRIVER": "postgres"},
			wantErr:  config.ErrUnsupportedDriver,
			wantLogs: "error parsing config",
		},
		{
			name:     "production without DB_URI",
			env:      map[string]string{"APP_ENV": "production"},
			wantErr:  config.ErrDBUriNotSetInProduction,
			wantLogs: "error parsing config",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx, _ := testutil.SignalCtx(t)
			stdout := testutil.NewTestWriter(t)
			ln := testutil.Listen(t)

			errCh := make(chan error, 1)
			go func() {
				errCh <- Run(ctx, testutil.Getenv(tt.env), stdout, ln)
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Run() error = %v, want %v", err, tt.wantErr)
				}
			case <-time.After(10 * time.Second):
				t.Fatal("Run() did not return")
			}
			if got := stdout.String(); !strings.Contains(got, tt.wantLogs) {
				t.Errorf("logs = %q, should contain %q", got, tt.wantLogs)
			}
		})
	}
}

func TestServe_EnsureCollectionFailure(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	logger := slog.New(slog.DiscardHandler)
	stores := store.New(dbtest.OpenUnconnected(t), logger)
	ln := testutil.Listen(t)

	err := Serve(ctx, ctx, logger, &config.Config{}, stores, ln)
	if !errors.Is(err, docstore.ErrNotConnected) {
		t.Fatalf("Serve() error = %v, want %v", err, docstore.ErrNotConnected)
	}
	if _, err = ln.Accept(); !errors.Is(err, net.ErrClosed) {
		t.Errorf("Accept() error = %v, want %v", err, net.ErrClosed)
	}
}
