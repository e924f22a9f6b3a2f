package sqlite_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/go-cmp/cmp"
	"github.com/rs/xid"

	"github.com/starquake/quizstore/internal/dbtest"
	"github.com/starquake/quizstore/internal/docstore"
	. "github.com/starquake/quizstore/internal/docstore/sqlite"
)

const testCollection = "quizzes"

func openStore(t *testing.T) (*Store, *bytes.Buffer) {
	t.Helper()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	store := New(Config{URI: dbtest.MemoryURI, MaxOpenConns: 1, MaxIdleConns: 1}, logger)
	if err := store.Connect(t.Context()); err != nil {
		t.Fatalf("error connecting: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(context.Background()); err != nil {
			t.Errorf("error closing store: %v", err)
		}
	})

	return store, &buf
}

func TestStore_EnsureCollection(t *testing.T) {
	t.Parallel()

	store, buf := openStore(t)

	if err := store.EnsureCollection(t.Context(), testCollection); err != nil {
		t.Fatalf("first EnsureCollection: %v", err)
	}
	if err := store.EnsureCollection(t.Context(), testCollection); err != nil {
		t.Fatalf("second EnsureCollection should succeed, got %v", err)
	}

	if got, want := buf.String(), "collection already exists"; !strings.Contains(got, want) {
		t.Errorf("log = %q, should contain %q", got, want)
	}
}

func TestCollection_InsertAndFind(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	store, _ := openStore(t)
	if err := store.EnsureCollection(ctx, testCollection); err != nil {
		t.Fatalf("EnsureCollection: %v", err)
	}
	coll := store.Collection(testCollection)

	tests := []struct {
		name string
		doc  string
		want func(id string) string
	}{
		{
			name: "title and questions",
			doc:  `{"title": "Math Quiz", "questions": []}`,
			want: func(id string) string { return `{"id":"` + id + `","title":"Math Quiz","questions":[]}` },
		},
		{
			name: "empty object",
			doc:  ` {} `,
			want: func(id string) string { return `{"id":"` + id + `"}` },
		},
		{
			name: "nested values",
			doc:  `{"title":"Q","questions":[{"text":"2+2?","answers":[3,4]}],"level":2}`,
			want: func(id string) string {
				return `{"id":"` + id + `","title":"Q","questions":[{"text":"2+2?","answers":[3,4]}],"level":2}`
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := coll.InsertOne(ctx, []byte(tt.doc))
			if err != nil {
				t.Fatalf("InsertOne: %v", err)
			}
			if _, err = xid.FromString(id); err != nil {
				t.Errorf("id %q is not an xid: %v", id, err)
			}

			got, err := coll.FindByID(ctx, id)
			if err != nil {
				t.Fatalf("FindByID: %v", err)
			}
			if diff := cmp.Diff(tt.want(id), string(got)); diff != "" {
				t.Errorf("FindByID mismatch (-want +got):\n%s", diff)
			}
		})
	}

	docs, err := coll.Find(ctx)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if got, want := len(docs), len(tests); got != want {
		t.Fatalf("len(docs) = %d, want %d", got, want)
	}
	if got, want := string(docs[0]), `"title":"Math Quiz"`; !strings.Contains(got, want) {
		t.Errorf("first document = %s, want insertion order", got)
	}
}

func TestCollection_Find_Empty(t *testing.T) {
	t.Parallel()

	store, _ := openStore(t)
	if err := store.EnsureCollection(t.Context(), testCollection); err != nil {
		t.Fatalf("EnsureCollection: %v", err)
	}

	docs, err := store.Collection(testCollection).Find(t.Context())
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if docs == nil || len(docs) != 0 {
		t.Errorf("docs = %v, want empty non-nil slice", docs)
	}
}

func TestCollection_FindByID_Errors(t *testing.T) {
	t.Parallel()

	store, _ := openStore(t)
	if err := store.EnsureCollection(t.Context(), testCollection); err != nil {
		t.Fatalf("EnsureCollection: %v", err)
	}
	coll := store.Collection(testCollection)

	tests := []struct {
		name    string
		id      string
		wantErr error
	}{
		{name: "malformed", id: "not-a-valid-id", wantErr: docstore.ErrInvalidID},
		{name: "empty", id: "", wantErr: docstore.ErrInvalidID},
		{name: "mongo object id", id: "64b7f0c2a1b2c3d4e5f60718", wantErr: docstore.ErrInvalidID},
		{name: "unassigned", id: xid.New().String(), wantErr: docstore.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := coll.FindByID(t.Context(), tt.id)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("got error %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCollection_InsertOne_InvalidDocument(t *testing.T) {
	t.Parallel()

	store, _ := openStore(t)
	if err := store.EnsureCollection(t.Context(), testCollection); err != nil {
		t.Fatalf("EnsureCollection: %v", err)
	}
	coll := store.Collection(testCollection)

	for _, doc := range []string{``, `[]`, `"title"`, `{"title":`} {
		_, err := coll.InsertOne(t.Context(), []byte(doc))
		if !errors.Is(err, docstore.ErrInvalidDocument) {
			t.Errorf("InsertOne(%q) error = %v, want %v", doc, err, docstore.ErrInvalidDocument)
		}
	}
}

func TestStore_NotConnected(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	store := dbtest.OpenUnconnected(t)

	if store.Connected() {
		t.Error("Connected() = true before Connect")
	}
	if err := store.Ping(ctx); !errors.Is(err, docstore.ErrNotConnected) {
		t.Errorf("Ping error = %v, want %v", err, docstore.ErrNotConnected)
	}
	if err := store.EnsureCollection(ctx, testCollection); !errors.Is(err, docstore.ErrNotConnected) {
		t.Errorf("EnsureCollection error = %v, want %v", err, docstore.ErrNotConnected)
	}

	coll := store.Collection(testCollection)
	if _, err := coll.InsertOne(ctx, []byte(`{"title":"x"}`)); !errors.Is(err, docstore.ErrNotConnected) {
		t.Errorf("InsertOne error = %v, want %v", err, docstore.ErrNotConnected)
	}
	if _, err := coll.Find(ctx); !errors.Is(err, docstore.ErrNotConnected) {
		t.Errorf("Find error = %v, want %v", err, docstore.ErrNotConnected)
	}
	if _, err := coll.FindByID(ctx, xid.New().String()); !errors.Is(err, docstore.ErrNotConnected) {
		t.Errorf("FindByID error = %v, want %v", err, docstore.ErrNotConnected)
	}
}

func TestStore_Close(t *testing.T) {
	t.Parallel()

	store := dbtest.OpenUnconnected(t)
	if err := store.Connect(t.Context()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if !store.Connected() {
		t.Fatal("Connected() = false after Connect")
	}

	for range 2 {
		if err := store.Close(t.Context()); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}
	if store.Connected() {
		t.Error("Connected() = true after Close")
	}
}

func TestStore_Connect_Unreachable(t *testing.T) {
	t.Parallel()

	uri := "file:" + filepath.Join(t.TempDir(), "missing", "dir", "db.sqlite") + "?mode=rw"
	store := New(Config{URI: uri}, slog.New(slog.DiscardHandler))

	err := store.Connect(t.Context())
	if !errors.Is(err, docstore.ErrConnection) {
		t.Fatalf("got error %v, want %v", err, docstore.ErrConnection)
	}
	if store.Connected() {
		t.Error("Connected() = true after failed Connect")
	}
}

func TestCollection_Find_QueryError(t *testing.T) {
	t.Parallel()

	conn, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer func() {
		if err = mock.ExpectationsWereMet(); err != nil {
			t.Errorf("there were unfulfilled expectations: %s", err)
		}
	}()

	store := FromDB(conn, slog.New(slog.DiscardHandler))
	testError := errors.New("disk I/O error")
	mock.ExpectQuery(FindDocumentsSQL).WithArgs(testCollection).WillReturnError(testError)
	mock.ExpectClose()

	_, err = store.Collection(testCollection).Find(t.Context())
	if !errors.Is(err, testError) {
		t.Errorf("got error %v, want %v", err, testError)
	}
	if errors.Is(err, docstore.ErrNotFound) {
		t.Error("storage failure must not be reported as not found")
	}

	if err = store.Close(t.Context()); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestCollection_FindByID_ScanError(t *testing.T) {
	t.Parallel()

	conn, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer func() {
		if err = mock.ExpectationsWereMet(); err != nil {
			t.Errorf("there were unfulfilled expectations: %s", err)
		}
	}()

	store := FromDB(conn, slog.New(slog.DiscardHandler))
	id := xid.New().String()
	rows := mock.NewRows([]string{"body"}).AddRow(`not json`)
	mock.ExpectQuery(FindDocumentSQL).WithArgs(testCollection, id).WillReturnRows(rows)
	mock.ExpectClose()

	_, err = store.Collection(testCollection).FindByID(t.Context(), id)
	if !errors.Is(err, docstore.ErrInvalidDocument) {
		t.Errorf("got error %v, want %v", err, docstore.ErrInvalidDocument)
	}

	if err = store.Close(t.Context()); err != nil {
		t.Errorf("Close: %v", err)
	}
}
