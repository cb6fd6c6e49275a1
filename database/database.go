// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package database

import (
	"errors"
	"io"
	"log/slog"

	"github.com/blinklabs-io/certchain/database/plugin"
	"github.com/blinklabs-io/certchain/database/plugin/blob"
	_ "github.com/blinklabs-io/certchain/database/plugin/blob/badger"
	"github.com/blinklabs-io/certchain/database/plugin/metadata"
	_ "github.com/blinklabs-io/certchain/database/plugin/metadata/postgres"
	_ "github.com/blinklabs-io/certchain/database/plugin/metadata/sqlite"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	DefaultBlobPlugin     = "badger"
	DefaultMetadataPlugin = "sqlite"
)

// Config holds the storage settings. An empty DataDir keeps everything in memory.
type Config struct {
	Logger         *slog.Logger
	PromRegistry   prometheus.Registerer
	DataDir        string
	BlobPlugin     string
	MetadataPlugin string
	MetadataDSN    string
	BlobCacheSize  uint64
}

// Database pairs the blob store holding certificate records with the
// metadata store holding the transition log and blocks
type Database struct {
	logger   *slog.Logger
	blob     blob.BlobStore
	metadata metadata.MetadataStore
	dataDir  string
}

// Blob returns the underling blob store instance
func (d *Database) Blob() blob.BlobStore {
	return d.blob
}

// DataDir returns the path to the data directory used for storage
func (d *Database) DataDir() string {
	return d.dataDir
}

// Logger returns the logger instance
func (d *Database) Logger() *slog.Logger {
	return d.logger
}

// Metadata returns the underlying metadata store instance
func (d *Database) Metadata() metadata.MetadataStore {
	return d.metadata
}

// Transaction starts a new database transaction and returns a handle to it
func (d *Database) Transaction(readWrite bool) *Txn {
	return NewTxn(d, readWrite)
}

// Close cleans up the database connections
func (d *Database) Close() error {
	var err error
	if d.metadata != nil {
		err = errors.Join(err, d.metadata.Close())
	}
	if d.blob != nil {
		err = errors.Join(err, d.blob.Close())
	}
	return err
}

// New creates a new database instance with optional persistence using the
// configured data directory
func New(config *Config) (*Database, error) {
	if config == nil {
		config = &Config{}
	}
	logger := config.Logger
	if logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	blobPlugin := config.BlobPlugin
	if blobPlugin == "" {
		blobPlugin = DefaultBlobPlugin
	}
	metadataPlugin := config.MetadataPlugin
	if metadataPlugin == "" {
		metadataPlugin = DefaultMetadataPlugin
	}
	opts := plugin.Options{
		Logger:         logger,
		PromRegistry:   config.PromRegistry,
		DataDir:        config.DataDir,
		BlockCacheSize: config.BlobCacheSize,
		DSN:            config.MetadataDSN,
	}
	metadataDb, err := metadata.New(metadataPlugin, opts)
	if err != nil {
		return nil, err
	}
	blobDb, err := blob.New(blobPlugin, opts)
	if err != nil {
		_ = metadataDb.Close()
		return nil, err
	}
	db := &Database{
		logger:   logger,
		blob:     blobDb,
		metadata: metadataDb,
		dataDir:  config.DataDir,
	}
	if err := db.checkCommitTimestamp(); err != nil {
		// Database is available for recovery, so return it with error
		return db, err
	}
	return db, nil
}

// view runs fn in the given transaction, or in a short-lived read-only one
// when txn is nil
func (d *Database) view(txn *Txn, fn func(*Txn) error) error {
	if txn != nil {
		return fn(txn)
	}
	txn = d.Transaction(false)
	defer txn.Release()
	return fn(txn)
}

// update runs fn in the given transaction, or in a new read-write one that is
// committed on success when txn is nil
func (d *Database) update(txn *Txn, fn func(*Txn) error) error {
	if txn != nil {
		return fn(txn)
	}
	return d.Transaction(true).Do(fn)
}
