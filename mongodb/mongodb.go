// Package mongodb adapts a MongoDB database to the driver interfaces.
//
// Records travel as bson.D with sorted keys. References are stored as DBRefs
// ({"$ref": ..., "$id": ...}). Records saved without an id get a server-side
// ObjectID.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/andreyvit/bongo/driver"
)

type Options struct {
	Logger  *slog.Logger
	Verbose bool
}

type DB struct {
	mdb     *mongo.Database
	client  *mongo.Client // non-nil when owned by DB
	logger  *slog.Logger
	verbose bool
}

var _ driver.Database = (*DB)(nil)

// Open connects to the server at uri and uses database dbName. Close
// disconnects the client.
func Open(ctx context.Context, uri, dbName string, opt Options) (*DB, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongodb: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("mongodb: ping: %w", err)
	}
	db := Wrap(client.Database(dbName), opt)
	db.client = client
	if db.verbose {
		db.logger.LogAttrs(ctx, slog.LevelDebug, "mongodb.open", slog.String("db", dbName))
	}
	return db, nil
}

// Wrap adapts a database handle owned by the caller. Close is a no-op.
func Wrap(mdb *mongo.Database, opt Options) *DB {
	if opt.Logger == nil {
		opt.Logger = slog.Default()
	}
	return &DB{mdb: mdb, logger: opt.Logger, verbose: opt.Verbose}
}

// Mongo returns the underlying database handle.
func (db *DB) Mongo() *mongo.Database {
	return db.mdb
}

func (db *DB) Name() string {
	return db.mdb.Name()
}

func (db *DB) Collection(name string) driver.Collection {
	return &Collection{db: db, mc: db.mdb.Collection(name)}
}

// Drop deletes the whole database. Used by tests.
func (db *DB) Drop(ctx context.Context) error {
	return db.mdb.Drop(ctx)
}

func (db *DB) Close(ctx context.Context) error {
	if db.client == nil {
		return nil
	}
	client := db.client
	db.client = nil
	return translate(client.Disconnect(ctx))
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return driver.ErrNotFound
	case errors.Is(err, mongo.ErrClientDisconnected):
		return fmt.Errorf("%w: %w", driver.ErrClosed, err)
	default:
		return err
	}
}

type Collection struct {
	db *DB
	mc *mongo.Collection
}

var _ driver.Collection = (*Collection)(nil)

func (c *Collection) Name() string {
	return c.mc.Name()
}

func (c *Collection) Find(ctx context.Context, filter driver.Filter) (driver.Cursor, error) {
	return &Cursor{coll: c, filter: toBSON(filter)}, nil
}

func (c *Collection) FindOne(ctx context.Context, filter driver.Filter, order []driver.SortKey) (driver.Record, error) {
	opt := options.FindOne()
	if len(order) > 0 {
		opt.SetSort(sortToBSON(order))
	}
	var d bson.D
	err := c.mc.FindOne(ctx, toBSON(filter), opt).Decode(&d)
	if err != nil {
		return nil, translate(err)
	}
	return fromBSON(d), nil
}

func (c *Collection) Count(ctx context.Context, filter driver.Filter) (int, error) {
	n, err := c.mc.CountDocuments(ctx, toBSON(filter))
	return int(n), translate(err)
}

func (c *Collection) Remove(ctx context.Context, filter driver.Filter) (int, error) {
	res, err := c.mc.DeleteMany(ctx, toBSON(filter))
	if err != nil {
		return 0, translate(err)
	}
	if c.db.verbose {
		c.db.logger.LogAttrs(ctx, slog.LevelDebug, "mongodb.remove", slog.String("coll", c.Name()), slog.Int64("removed", res.DeletedCount))
	}
	return int(res.DeletedCount), nil
}

func (c *Collection) Save(ctx context.Context, rec driver.Record) (any, error) {
	id, hasID := rec[driver.IDField]
	if !hasID || id == nil {
		doc := rec
		if hasID {
			doc = driver.CloneRecord(rec)
			delete(doc, driver.IDField)
		}
		res, err := c.mc.InsertOne(ctx, toBSON(doc))
		if err != nil {
			return nil, translate(err)
		}
		id = res.InsertedID
	} else {
		idFilter := bson.D{{Key: driver.IDField, Value: toBSONValue(id)}}
		_, err := c.mc.ReplaceOne(ctx, idFilter, toBSON(rec), options.Replace().SetUpsert(true))
		if err != nil {
			return nil, translate(err)
		}
	}
	if c.db.verbose {
		c.db.logger.LogAttrs(ctx, slog.LevelDebug, "mongodb.save", slog.String("coll", c.Name()), slog.Any("id", id))
	}
	return id, nil
}

func (c *Collection) EnsureIndex(ctx context.Context, keys []driver.SortKey) error {
	if len(keys) == 0 {
		return fmt.Errorf("%s: index needs at least one key", c.Name())
	}
	_, err := c.mc.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: sortToBSON(keys)})
	return translate(err)
}

// Cursor issues the query on the first call to Next.
type Cursor struct {
	coll   *Collection
	filter bson.D
	sort   []driver.SortKey
	skip   int
	limit  int

	mcur *mongo.Cursor
	cur  driver.Record
	err  error

	started bool
	closed  bool
}

var _ driver.Cursor = (*Cursor)(nil)

func (c *Cursor) Sort(keys ...driver.SortKey) error {
	if c.started {
		return driver.ErrCursorStarted
	}
	c.sort = append([]driver.SortKey(nil), keys...)
	return nil
}

func (c *Cursor) Skip(n int) error {
	if c.started {
		return driver.ErrCursorStarted
	}
	c.skip = max(n, 0)
	return nil
}

func (c *Cursor) Limit(n int) error {
	if c.started {
		return driver.ErrCursorStarted
	}
	c.limit = max(n, 0)
	return nil
}

func (c *Cursor) Clone() driver.Cursor {
	return &Cursor{
		coll:   c.coll,
		filter: c.filter,
		sort:   append([]driver.SortKey(nil), c.sort...),
		skip:   c.skip,
		limit:  c.limit,
	}
}

func (c *Cursor) Count(ctx context.Context) (int, error) {
	opt := options.Count()
	if c.skip > 0 {
		opt.SetSkip(int64(c.skip))
	}
	if c.limit > 0 {
		opt.SetLimit(int64(c.limit))
	}
	n, err := c.coll.mc.CountDocuments(ctx, c.filter, opt)
	return int(n), translate(err)
}

func (c *Cursor) findOptions() *options.FindOptions {
	opt := options.Find()
	if len(c.sort) > 0 {
		opt.SetSort(sortToBSON(c.sort))
	}
	if c.skip > 0 {
		opt.SetSkip(int64(c.skip))
	}
	if c.limit > 0 {
		opt.SetLimit(int64(c.limit))
	}
	return opt
}

func (c *Cursor) Next(ctx context.Context) bool {
	if c.closed || c.err != nil {
		return false
	}
	if !c.started {
		c.started = true
		c.mcur, c.err = c.coll.mc.Find(ctx, c.filter, c.findOptions())
		if c.err != nil {
			c.err = translate(c.err)
			return false
		}
	}
	if !c.mcur.Next(ctx) {
		c.cur = nil
		c.err = translate(c.mcur.Err())
		return false
	}
	var d bson.D
	if err := c.mcur.Decode(&d); err != nil {
		c.err = err
		return false
	}
	c.cur = fromBSON(d)
	return true
}

func (c *Cursor) Record() driver.Record {
	return c.cur
}

func (c *Cursor) Err() error {
	return c.err
}

func (c *Cursor) Close(ctx context.Context) error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.cur = nil
	if c.mcur != nil {
		return translate(c.mcur.Close(ctx))
	}
	return nil
}
