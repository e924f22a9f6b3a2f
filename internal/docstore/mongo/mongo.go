// Package mongo implements docstore.Store on top of MongoDB.
package mongo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/starquake/quizstore/internal/docstore"
)

const (
	idKey = "_id"

	namespaceExistsName = "NamespaceExists"
	namespaceExistsCode = 48
)

// Config holds the connection settings for the store.
type Config struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
	MaxPoolSize    uint64
}

// Store is a docstore.Store backed by a MongoDB database.
type Store struct {
	cfg    Config
	logger *slog.Logger

	mu     sync.RWMutex
	client *mongo.Client
	db     *mongo.Database
}

var _ docstore.Store = (*Store)(nil)

// New creates a Store. Nothing is dialed until Connect is called.
func New(cfg Config, logger *slog.Logger) *Store {
	return &Store{cfg: cfg, logger: logger}
}

// Connect creates the client using the Stable API v1 and pings the primary.
// Connect is bounded by Config.ConnectTimeout.
func (s *Store) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		return nil
	}

	serverAPI := options.ServerAPI(options.ServerAPIVersion1).SetStrict(true).SetDeprecationErrors(true)
	opts := options.Client().ApplyURI(s.cfg.URI).SetServerAPIOptions(serverAPI)
	if s.cfg.ConnectTimeout > 0 {
		opts.SetConnectTimeout(s.cfg.ConnectTimeout)
		opts.SetServerSelectionTimeout(s.cfg.ConnectTimeout)

		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ConnectTimeout)
		defer cancel()
	}
	if s.cfg.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(s.cfg.MaxPoolSize)
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return fmt.Errorf("%w: error creating client: %w", docstore.ErrConnection, err)
	}

	if err = client.Ping(ctx, readpref.Primary()); err != nil {
		if disErr := client.Disconnect(context.WithoutCancel(ctx)); disErr != nil {
			s.logger.ErrorContext(ctx, "error disconnecting client", slog.Any("err", disErr))
		}

		return fmt.Errorf("%w: error pinging deployment: %w", docstore.ErrConnection, err)
	}

	s.client = client
	s.db = client.Database(s.cfg.Database)

	return nil
}

// EnsureCollection creates the collection. A NamespaceExists reply is logged and otherwise ignored.
func (s *Store) EnsureCollection(ctx context.Context, name string) error {
	err := s.createCollection(ctx, name)
	if errors.Is(err, docstore.ErrCollectionExists) {
		s.logger.InfoContext(ctx, "collection already exists", slog.String("collection", name))

		return nil
	}
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "created collection", slog.String("collection", name))

	return nil
}

func (s *Store) createCollection(ctx context.Context, name string) error {
	db, err := s.database()
	if err != nil {
		return err
	}

	if err = db.CreateCollection(ctx, name); err != nil {
		if isNamespaceExists(err) {
			return fmt.Errorf("%w: %s", docstore.ErrCollectionExists, name)
		}

		return fmt.Errorf("error creating collection %q: %w", name, err)
	}

	return nil
}

// Collection returns a handle to the named collection.
//
//nolint:ireturn // The interface is the contract shared by every backend.
func (s *Store) Collection(name string) docstore.Collection {
	return &collection{store: s, name: name}
}

// Connected reports whether the store holds a connected client.
func (s *Store) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.client != nil
}

// Ping checks that the primary is reachable.
func (s *Store) Ping(ctx context.Context) error {
	s.mu.RLock()
	client := s.client
	s.mu.RUnlock()

	if client == nil {
		return docstore.ErrNotConnected
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("failed to ping deployment: %w", err)
	}

	return nil
}

// Close disconnects the client. Calling Close on a closed store is a no-op.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil {
		return nil
	}

	err := s.client.Disconnect(ctx)
	s.client = nil
	s.db = nil
	if err != nil {
		return fmt.Errorf("error disconnecting client: %w", err)
	}

	return nil
}

func (s *Store) database() (*mongo.Database, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, docstore.ErrNotConnected
	}

	return s.db, nil
}

type collection struct {
	store *Store
	name  string
}

func (c *collection) coll() (*mongo.Collection, error) {
	db, err := c.store.database()
	if err != nil {
		return nil, err
	}

	return db.Collection(c.name), nil
}

func (c *collection) InsertOne(ctx context.Context, doc []byte) (string, error) {
	d, err := fromJSON(doc)
	if err != nil {
		return "", err
	}

	coll, err := c.coll()
	if err != nil {
		return "", err
	}

	res, err := coll.InsertOne(ctx, d)
	if err != nil {
		return "", fmt.Errorf("error inserting document into %q: %w", c.name, err)
	}

	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", fmt.Errorf("unexpected inserted id type %T", res.InsertedID)
	}

	return oid.Hex(), nil
}

func (c *collection) Find(ctx context.Context) ([][]byte, error) {
	coll, err := c.coll()
	if err != nil {
		return nil, err
	}

	cur, err := coll.Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("error querying documents in %q: %w", c.name, err)
	}
	defer func() {
		if closeErr := cur.Close(ctx); closeErr != nil {
			c.store.logger.ErrorContext(ctx, "error closing cursor", slog.Any("err", closeErr))
		}
	}()

	docs := make([][]byte, 0)
	for cur.Next(ctx) {
		var d bson.D
		if err = cur.Decode(&d); err != nil {
			return nil, fmt.Errorf("error decoding document: %w", err)
		}
		doc, jsonErr := toJSON(d)
		if jsonErr != nil {
			return nil, jsonErr
		}
		docs = append(docs, doc)
	}
	if err = cur.Err(); err != nil {
		return nil, fmt.Errorf("error iterating documents in %q: %w", c.name, err)
	}

	return docs, nil
}

func (c *collection) FindByID(ctx context.Context, id string) ([]byte, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", docstore.ErrInvalidID, id)
	}

	coll, err := c.coll()
	if err != nil {
		return nil, err
	}

	var d bson.D
	err = coll.FindOne(ctx, bson.D{{Key: idKey, Value: oid}}).Decode(&d)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %q", docstore.ErrNotFound, id)
		}

		return nil, fmt.Errorf("error finding document %q: %w", id, err)
	}

	return toJSON(d)
}

func isNamespaceExists(err error) bool {
	var cmdErr mongo.CommandError
	if !errors.As(err, &cmdErr) {
		return false
	}

	return cmdErr.Name == namespaceExistsName || cmdErr.Code == namespaceExistsCode
}

// fromJSON parses a JSON object into a bson.D. The input is plain JSON: member order is kept, integers that fit
// stay integers and $-prefixed members such as $numberLong are ordinary fields.
// Any _id or id member is dropped; the id is always generated by the server.
func fromJSON(doc []byte) (bson.D, error) {
	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", docstore.ErrInvalidDocument, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, docstore.ErrInvalidDocument
	}

	d, err := decodeObject(dec)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", docstore.ErrInvalidDocument, err)
	}
	if _, err = dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data", docstore.ErrInvalidDocument)
	}

	out := make(bson.D, 0, len(d))
	for _, e := range d {
		if e.Key == idKey || e.Key == docstore.IDField {
			continue
		}
		out = append(out, e)
	}

	return out, nil
}

// decodeObject reads the members of an object whose opening brace has been consumed.
func decodeObject(dec *json.Decoder) (bson.D, error) {
	d := bson.D{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected object key %v", tok)
		}
		v, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		d = append(d, bson.E{Key: key, Value: v})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}

	return d, nil
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	switch v := tok.(type) {
	case json.Delim:
		switch v {
		case '{':
			return decodeObject(dec)
		case '[':
			a := bson.A{}
			for dec.More() {
				elem, elemErr := decodeValue(dec)
				if elemErr != nil {
					return nil, elemErr
				}
				a = append(a, elem)
			}
			if _, err = dec.Token(); err != nil {
				return nil, err
			}

			return a, nil
		default:
			return nil, fmt.Errorf("unexpected delimiter %v", v)
		}
	case json.Number:
		return number(v), nil
	default:
		// string, bool or nil
		return v, nil
	}
}

// number keeps integers as int32 or int64 when they fit and falls back to float64.
func number(n json.Number) any {
	if i, err := n.Int64(); err == nil {
		if i >= math.MinInt32 && i <= math.MaxInt32 {
			return int32(i)
		}

		return i
	}
	f, err := n.Float64()
	if err != nil {
		return n.String()
	}

	return f
}

// toJSON renders d as relaxed extended JSON with _id replaced by a leading id string member.
func toJSON(d bson.D) ([]byte, error) {
	out := make(bson.D, 1, len(d)+1)
	out[0] = bson.E{Key: docstore.IDField}
	for _, e := range d {
		switch e.Key {
		case idKey:
			out[0].Value = idString(e.Value)
		case docstore.IDField:
			// shadowed by _id
		default:
			out = append(out, e)
		}
	}

	b, err := bson.MarshalExtJSON(out, false, false)
	if err != nil {
		return nil, fmt.Errorf("error encoding document: %w", err)
	}

	return b, nil
}

func idString(v any) string {
	switch id := v.(type) {
	case primitive.ObjectID:
		return id.Hex()
	case string:
		return id
	default:
		return fmt.Sprint(id)
	}
}
