package logging_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/starquake/quizstore/internal/logging"
)

func TestNew(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := logging.New(&buf, slog.LevelInfo)
	if logger == nil {
		t.Fatal("logger is nil")
	}

	ctx := context.Background()
	logger.DebugContext(ctx, "hidden debug message")
	logger.InfoContext(ctx, "info message", logging.ErrAttr(errors.New("jedi error")))

	got := buf.String()
	if strings.Contains(got, "hidden debug message") {
		t.Errorf("debug message logged at info level: %q", got)
	}
	if want := "info message"; !strings.Contains(got, want) {
		t.Errorf("message: got %q, want substring %q", got, want)
	}
	if want := "err=\"jedi error\""; !strings.Contains(got, want) {
		t.Errorf("error attr: got %q, want substring %q", got, want)
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{in: "debug", want: slog.LevelDebug},
		{in: "INFO", want: slog.LevelInfo},
		{in: "", want: slog.LevelInfo},
		{in: "warn", want: slog.LevelWarn},
		{in: "warning", want: slog.LevelWarn},
		{in: " error ", want: slog.LevelError},
		{in: "verbose", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			got, err := logging.ParseLevel(tt.in)
			if tt.wantErr {
				if !errors.Is(err, logging.ErrUnknownLevel) {
					t.Fatalf("got error %v, want %v", err, logging.ErrUnknownLevel)
				}

				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestErrAttr(t *testing.T) {
	t.Parallel()

	err := errors.New("jedi error")
	attr := logging.ErrAttr(err)
	if got, want := attr.Key, "err"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if got, want := attr.Value.String(), err.Error(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := logging.New(&buf, slog.LevelInfo)
	handler := logging.Middleware(logger, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/quizzes", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got, want := rec.Code, http.StatusTeapot; got != want {
		t.Errorf("status = %d, want %d", got, want)
	}
	got := buf.String()
	for _, want := range []string{"method=GET", "path=/api/quizzes", "status=418"} {
		if !strings.Contains(got, want) {
			t.Errorf("log = %q, want substring %q", got, want)
		}
	}
}
