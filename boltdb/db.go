// Package boltdb is a persistent embedded driver on top of Bolt.
//
// # Layout
//
// Each collection is a root bucket named after the collection, holding two
// nested buckets:
//
//  1. "data" maps encoded ids to encoded records;
//  2. "indexes" holds the index specifications passed to EnsureIndex.
//
// Queries are answered with a scan of the data bucket in key order. Generated
// ids are time-ordered UUIDv7 strings, so key order is insertion order.
//
// # Values
//
// Value header: flags (uvarint), then an xxhash64 checksum of the rest.
// Then the encoded record, msgpack by default, JSON when the flags say so. References are stored in their map form
// ({"$ref": ..., "$id": ...}) and turned back into driver.Ref on read.
package boltdb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"go.etcd.io/bbolt"

	"github.com/andreyvit/bongo/driver"
)

var (
	dataBucket  = []byte("data")
	indexBucket = []byte("indexes")
)

type Options struct {
	// Name is reported by DB.Name. Defaults to the file name without
	// extension.
	Name      string
	Logger    *slog.Logger
	Verbose   bool
	IsTesting bool
	MmapSize  int
	Timeout   time.Duration

	// Encoding is used for new writes. Existing values are read according
	// to their own header.
	Encoding Encoding
}

type DB struct {
	bdb     *bbolt.DB
	name    string
	logger  *slog.Logger
	verbose bool
	enc     Encoding
	closed  atomic.Bool
}

var _ driver.Database = (*DB)(nil)

func Open(path string, opt Options) (*DB, error) {
	bopt := new(bbolt.Options)
	*bopt = *bbolt.DefaultOptions
	bopt.Timeout = 10 * time.Second
	if opt.Timeout != 0 {
		bopt.Timeout = opt.Timeout
	}
	if opt.IsTesting {
		bopt.NoSync = true
		bopt.NoFreelistSync = true
		bopt.InitialMmapSize = 1024 * 1024 * 5
	} else {
		bopt.InitialMmapSize = 1024 * 1024 * 64
		bopt.FreelistType = bbolt.FreelistMapType
	}
	if opt.MmapSize != 0 {
		bopt.InitialMmapSize = opt.MmapSize
	}

	bdb, err := bbolt.Open(path, 0666, bopt)
	if err != nil {
		return nil, fmt.Errorf("boltdb: %w", err)
	}

	if opt.Name == "" {
		opt.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if opt.Logger == nil {
		opt.Logger = slog.Default()
	}
	db := &DB{
		bdb:     bdb,
		name:    opt.Name,
		logger:  opt.Logger,
		verbose: opt.Verbose,
		enc:     opt.Encoding,
	}
	if db.verbose {
		db.logger.LogAttrs(context.Background(), slog.LevelDebug, "boltdb.open", slog.String("path", path), slog.String("enc", db.enc.String()))
	}
	return db, nil
}

// Bolt returns the underlying Bolt handle.
func (db *DB) Bolt() *bbolt.DB {
	return db.bdb
}

func (db *DB) Name() string {
	return db.name
}

func (db *DB) Collection(name string) driver.Collection {
	return &Collection{db: db, name: name, buck: []byte(name)}
}

// CollectionNames lists collections that have been written to.
func (db *DB) CollectionNames(ctx context.Context) ([]string, error) {
	var names []string
	err := db.view(ctx, func(btx *bbolt.Tx) error {
		return btx.ForEach(func(name []byte, _ *bbolt.Bucket) error {
			names = append(names, string(name))
			return nil
		})
	})
	return names, err
}

func (db *DB) Close(ctx context.Context) error {
	if !db.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := db.bdb.Close()
	if err != nil {
		return fmt.Errorf("boltdb: closing: %w", err)
	}
	return nil
}

func (db *DB) view(ctx context.Context, f func(btx *bbolt.Tx) error) error {
	if err := db.check(ctx); err != nil {
		return err
	}
	return translate(db.bdb.View(f))
}

func (db *DB) update(ctx context.Context, f func(btx *bbolt.Tx) error) error {
	if err := db.check(ctx); err != nil {
		return err
	}
	return translate(db.bdb.Update(f))
}

func (db *DB) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if db.closed.Load() {
		return driver.ErrClosed
	}
	return nil
}

func translate(err error) error {
	if errors.Is(err, bbolt.ErrDatabaseNotOpen) {
		return fmt.Errorf("%w: %w", driver.ErrClosed, err)
	}
	return err
}
