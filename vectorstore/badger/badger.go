// Copyright 2025 Calen Labs
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


// Package badger implements vectorstore.Store on an embedded BadgerDB.
//
// Search is a brute-force cosine scan over every record in the collection.
// That is linear in collection size and entirely adequate for local corpora
// of a few tens of thousands of chunks; it exists so ingestion and querying
// work without a running Qdrant service, and so tests are hermetic.
package badger

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/calenlabs/ragbook/core"
	"github.com/calenlabs/ragbook/vectorstore"
)

const (
	collectionMetaPrefix = "collection/"
	recordPrefix         = "record/"
	sequencePrefix       = "seq/"

	defaultSequenceBandwidth = 100
)

// Store is an embedded vectorstore.Store backed by BadgerDB.
type Store struct {
	db     *badger.DB
	logger *slog.Logger

	mu   sync.Mutex
	seqs map[string]*badger.Sequence
}

var _ vectorstore.Store = (*Store)(nil)

// collectionMeta is the persisted schema of a collection.
type collectionMeta struct {
	Dimension int `json:"dimension"`
}

// storedRecord is the persisted form of a core.Record. Seq preserves
// insertion order for deterministic tie-breaks among equal scores.
type storedRecord struct {
	Vector  []float32    `json:"vector"`
	Seq     uint64       `json:"seq"`
	Payload core.Payload `json:"payload"`
}

// badgerLoggerAdapter routes BadgerDB's internal logging through slog.
type badgerLoggerAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLoggerAdapter)(nil)

func (bl *badgerLoggerAdapter) Errorf(msg string, items ...any) {
	bl.logger.Error(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Warningf(msg string, items ...any) {
	bl.logger.Warn(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Infof(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Debugf(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

type openOptions struct {
	inMemory bool
	logger   *slog.Logger
}

// Option configures Open.
type Option func(*openOptions)

// InMemory opens the database without touching disk. All data is lost on
// Close; intended for tests and throwaway runs.
func InMemory() Option {
	return func(o *openOptions) {
		o.inMemory = true
	}
}

// WithLogger sets the logger for the store and BadgerDB internals.
func WithLogger(logger *slog.Logger) Option {
	return func(o *openOptions) {
		o.logger = logger
	}
}

// Open opens or creates a BadgerDB database at path. The directory is
// created if it does not exist.
func Open(path string, opts ...Option) (*Store, error) {
	oo := openOptions{logger: slog.Default().With("component", "badgerstore")}
	for _, opt := range opts {
		opt(&oo)
	}

	var badgerOpts badger.Options
	if oo.inMemory {
		badgerOpts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		info, err := os.Stat(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
			if err := os.MkdirAll(path, 0755); err != nil {
				return nil, err
			}
			info, err = os.Stat(path)
			if err != nil {
				return nil, err
			}
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%w: %s is not a directory", core.ErrConfig, path)
		}
		badgerOpts = badger.DefaultOptions(path)
	}

	badgerOpts.Logger = &badgerLoggerAdapter{logger: oo.logger}
	badgerOpts.Compression = options.None

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", path, err)
	}

	return &Store{
		db:     db,
		logger: oo.logger,
		seqs:   make(map[string]*badger.Sequence),
	}, nil
}

func metaKey(collection string) []byte {
	return []byte(collectionMetaPrefix + collection)
}

func seqKey(collection string) []byte {
	return []byte(sequencePrefix + collection + "/")
}

func recordKeyPrefix(collection string) []byte {
	return []byte(recordPrefix + collection + "/")
}

func recordKey(collection string, id core.ID) []byte {
	key := recordKeyPrefix(collection)
	key = binary.BigEndian.AppendUint64(key, uint64(id))
	return key
}

// withTx executes fn in a BadgerDB transaction, committing writes on success.
func (s *Store) withTx(fn func(tx *badger.Txn) error, isWrite bool) error {
	if s.db.IsClosed() {
		return vectorstore.ErrStoreClosed
	}
	tx := s.db.NewTransaction(isWrite)
	defer tx.Discard()
	if err := fn(tx); err != nil {
		return err
	}
	if isWrite {
		return tx.Commit()
	}
	return nil
}

// meta reads a collection's metadata within tx. Returns
// ErrCollectionNotFound if the collection has not been created.
func meta(tx *badger.Txn, collection string) (*collectionMeta, error) {
	item, err := tx.Get(metaKey(collection))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %q", vectorstore.ErrCollectionNotFound, collection)
	}
	if err != nil {
		return nil, err
	}

	var cm collectionMeta
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &cm)
	}); err != nil {
		return nil, err
	}
	return &cm, nil
}

func (s *Store) EnsureCollection(_ context.Context, name string, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("%w: collection dimension must be positive, got %d", core.ErrConfig, dimension)
	}

	return s.withTx(func(tx *badger.Txn) error {
		existing, err := meta(tx, name)
		if err == nil {
			if existing.Dimension != dimension {
				return fmt.Errorf("%w: collection %q has dimension %d, want %d",
					vectorstore.ErrDimensionMismatch, name, existing.Dimension, dimension)
			}
			return nil
		}
		if !errors.Is(err, vectorstore.ErrCollectionNotFound) {
			return err
		}

		data, err := json.Marshal(collectionMeta{Dimension: dimension})
		if err != nil {
			return err
		}
		if err := tx.Set(metaKey(name), data); err != nil {
			return err
		}
		s.logger.Info("created collection", "name", name, "dimension", dimension)
		return nil
	}, true)
}

func (s *Store) DeleteCollection(_ context.Context, name string) error {
	if s.db.IsClosed() {
		return vectorstore.ErrStoreClosed
	}

	s.mu.Lock()
	if seq, ok := s.seqs[name]; ok {
		_ = seq.Release()
		delete(s.seqs, name)
	}
	s.mu.Unlock()

	// Record keys carry a separator after the name, so the prefix cannot
	// bleed into a collection whose name shares this one as a prefix. The
	// meta and sequence keys are removed exactly.
	if err := s.db.DropPrefix(recordKeyPrefix(name)); err != nil {
		return fmt.Errorf("delete collection %q: %w", name, err)
	}

	err := s.withTx(func(tx *badger.Txn) error {
		if err := tx.Delete(metaKey(name)); err != nil {
			return err
		}
		return tx.Delete(seqKey(name))
	}, true)
	if err != nil {
		return fmt.Errorf("delete collection %q: %w", name, err)
	}
	return nil
}

// sequence returns the insertion-order sequence for a collection.
func (s *Store) sequence(collection string) (*badger.Sequence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if seq, ok := s.seqs[collection]; ok {
		return seq, nil
	}
	seq, err := s.db.GetSequence(seqKey(collection), defaultSequenceBandwidth)
	if err != nil {
		return nil, err
	}
	s.seqs[collection] = seq
	return seq, nil
}

func (s *Store) Upsert(_ context.Context, collection string, records []core.Record) error {
	if len(records) == 0 {
		return nil
	}

	seq, err := s.sequence(collection)
	if err != nil {
		if s.db.IsClosed() {
			return vectorstore.ErrStoreClosed
		}
		return err
	}

	return s.withTx(func(tx *badger.Txn) error {
		cm, err := meta(tx, collection)
		if err != nil {
			return err
		}

		for _, record := range records {
			if len(record.Vector) != cm.Dimension {
				return fmt.Errorf("%w: record %d has dimension %d, collection %q expects %d",
					vectorstore.ErrDimensionMismatch, record.Id, len(record.Vector), collection, cm.Dimension)
			}

			key := recordKey(collection, record.Id)
			stored := storedRecord{Vector: record.Vector, Payload: record.Payload}

			// Replacing an existing record keeps its insertion position.
			item, err := tx.Get(key)
			switch {
			case err == nil:
				var prev storedRecord
				if err := item.Value(func(val []byte) error {
					return json.Unmarshal(val, &prev)
				}); err != nil {
					return err
				}
				stored.Seq = prev.Seq
			case errors.Is(err, badger.ErrKeyNotFound):
				next, err := seq.Next()
				if err != nil {
					return err
				}
				stored.Seq = next
			default:
				return err
			}

			data, err := json.Marshal(stored)
			if err != nil {
				return err
			}
			if err := tx.Set(key, data); err != nil {
				return err
			}
		}
		return nil
	}, true)
}

func (s *Store) Search(_ context.Context, collection string, vector []float32, topK int) ([]core.Hit, error) {
	if err := core.ValidateTopK(topK); err != nil {
		return nil, err
	}

	type scoredRecord struct {
		hit core.Hit
		seq uint64
	}
	var scored []scoredRecord

	err := s.withTx(func(tx *badger.Txn) error {
		if _, err := meta(tx, collection); err != nil {
			return err
		}

		opts := badger.DefaultIteratorOptions
		opts.Prefix = recordKeyPrefix(collection)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var stored storedRecord
			if err := iter.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &stored)
			}); err != nil {
				return err
			}

			scored = append(scored, scoredRecord{
				hit: core.Hit{
					Payload: stored.Payload,
					Score:   vectorstore.CosineSimilarity(vector, stored.Vector),
				},
				seq: stored.Seq,
			})
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	// Descending score, earlier insertions first on ties.
	slices.SortFunc(scored, func(a, b scoredRecord) int {
		if a.hit.Score > b.hit.Score {
			return -1
		}
		if a.hit.Score < b.hit.Score {
			return 1
		}
		if a.seq < b.seq {
			return -1
		}
		if a.seq > b.seq {
			return 1
		}
		return 0
	})

	if len(scored) > topK {
		scored = scored[:topK]
	}

	hits := make([]core.Hit, len(scored))
	for i, sr := range scored {
		hits[i] = sr.hit
	}
	return hits, nil
}

func (s *Store) Info(_ context.Context, collection string) (*vectorstore.CollectionInfo, error) {
	var info *vectorstore.CollectionInfo

	err := s.withTx(func(tx *badger.Txn) error {
		cm, err := meta(tx, collection)
		if err != nil {
			return err
		}

		opts := badger.DefaultIteratorOptions
		opts.Prefix = recordKeyPrefix(collection)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		count := 0
		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}

		info = &vectorstore.CollectionInfo{
			Name:      collection,
			Dimension: cm.Dimension,
			Points:    count,
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return info, nil
}

// Close releases sequences and closes the database. Unreleased sequence
// numbers leave gaps, which the tie-break ordering tolerates.
func (s *Store) Close() error {
	s.mu.Lock()
	for name, seq := range s.seqs {
		_ = seq.Release()
		delete(s.seqs, name)
	}
	s.mu.Unlock()

	if s.db.IsClosed() {
		return nil
	}
	return s.db.Close()
}
