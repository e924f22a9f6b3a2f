package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/starquake/quizstore/internal/httputil"
	"github.com/starquake/quizstore/internal/logging"
	"github.com/starquake/quizstore/internal/quiz"
)

// MaxBodyBytes is the largest request body accepted by HandleQuizCreate.
const MaxBodyBytes = 1 << 20

// Response messages.
const (
	MsgNotConnected  = "Database not connected"
	MsgTitleRequired = "Quiz title is required"
	MsgInvalidID     = "Invalid Quiz ID format"
	MsgNotFound      = "Quiz not found"
	MsgInvalidBody   = "Invalid request body"
	MsgBodyTooLarge  = "Request body too large"
	MsgFetchQuizzes  = "Failed to fetch quizzes"
	MsgCreateQuiz    = "Failed to create quiz"
	MsgFetchQuiz     = "Failed to fetch quiz"
)

// RequireStore answers 503 without calling next while the quiz store is not connected.
func RequireStore(logger *slog.Logger, quizzes quiz.Store, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !quizzes.Ready() {
			writeMessage(r.Context(), w, logger, http.StatusServiceUnavailable, MsgNotConnected)

			return
		}
		next.ServeHTTP(w, r)
	})
}

// HandleQuizList returns all quizzes.
// Returns 200 with a JSON array, which is empty when there are no quizzes.
// Returns 500 if the store fails.
func HandleQuizList(logger *slog.Logger, quizzes quiz.Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		list, err := quizzes.ListQuizzes(ctx)
		if err != nil {
			if errors.Is(err, quiz.ErrUninitialized) {
				writeMessage(ctx, w, logger, http.StatusServiceUnavailable, MsgNotConnected)

				return
			}
			logger.ErrorContext(ctx, "error retrieving quizzes from store", logging.ErrAttr(err))
			writeMessage(ctx, w, logger, http.StatusInternalServerError, MsgFetchQuizzes)

			return
		}

		if err = httputil.EncodeJSON(w, http.StatusOK, list); err != nil {
			logger.ErrorContext(ctx, "error encoding quizzes", logging.ErrAttr(err))
		}
	})
}

// HandleQuizCreate stores the quiz in the request body and returns it as stored.
// Returns 201 with the created quiz, including its generated id.
// Returns 400 if the body is not a single JSON object or the title is missing. An empty body counts as {}.
// Returns 413 if the body is larger than MaxBodyBytes.
// Returns 500 if the store fails.
func HandleQuizCreate(logger *slog.Logger, quizzes quiz.Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)

		in, err := httputil.DecodeJSON[quiz.Quiz](r)
		if err != nil && !errors.Is(err, io.EOF) {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				writeMessage(ctx, w, logger, http.StatusRequestEntityTooLarge, MsgBodyTooLarge)

				return
			}
			logger.DebugContext(ctx, "error decoding quiz", logging.ErrAttr(err))
			writeMessage(ctx, w, logger, http.StatusBadRequest, MsgInvalidBody)

			return
		}

		created, err := quizzes.CreateQuiz(ctx, &in)
		if err != nil {
			switch {
			case errors.Is(err, quiz.ErrTitleRequired):
				writeMessage(ctx, w, logger, http.StatusBadRequest, MsgTitleRequired)
			case errors.Is(err, quiz.ErrUninitialized):
				writeMessage(ctx, w, logger, http.StatusServiceUnavailable, MsgNotConnected)
			default:
				logger.ErrorContext(ctx, "error creating quiz", logging.ErrAttr(err))
				writeMessage(ctx, w, logger, http.StatusInternalServerError, MsgCreateQuiz)
			}

			return
		}

		w.Header().Set("Location", "/api/quizzes/"+created.ID)
		if err = httputil.EncodeJSON(w, http.StatusCreated, created); err != nil {
			logger.ErrorContext(ctx, "error encoding created quiz", logging.ErrAttr(err))
		}
	})
}

// HandleQuizGet returns a single quiz by the id in the path.
// Returns 400 if the id is malformed, 404 if there is no such quiz and 500 if the store fails.
func HandleQuizGet(logger *slog.Logger, quizzes quiz.Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id := r.PathValue("id")

		qz, err := quizzes.GetQuizByID(ctx, id)
		if err != nil {
			switch {
			case errors.Is(err, quiz.ErrInvalidID):
				writeMessage(ctx, w, logger, http.StatusBadRequest, MsgInvalidID)
			case errors.Is(err, quiz.ErrQuizNotFound):
				writeMessage(ctx, w, logger, http.StatusNotFound, MsgNotFound)
			case errors.Is(err, quiz.ErrUninitialized):
				writeMessage(ctx, w, logger, http.StatusServiceUnavailable, MsgNotConnected)
			default:
				logger.ErrorContext(ctx, "error retrieving quiz", slog.String("id", id), logging.ErrAttr(err))
				writeMessage(ctx, w, logger, http.StatusInternalServerError, MsgFetchQuiz)
			}

			return
		}

		if err = httputil.EncodeJSON(w, http.StatusOK, qz); err != nil {
			logger.ErrorContext(ctx, "error encoding quiz", logging.ErrAttr(err))
		}
	})
}

func writeMessage(ctx context.Context, w http.ResponseWriter, logger *slog.Logger, status int, msg string) {
	if err := httputil.WriteMessage(w, status, msg); err != nil {
		logger.ErrorContext(ctx, "error writing response", logging.ErrAttr(err))
	}
}
