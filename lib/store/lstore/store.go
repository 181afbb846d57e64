package lstore

import (
	"context"
	"sync/atomic"

	"github.com/ValentinKolb/dTrie/lib/db"
	"github.com/ValentinKolb/dTrie/lib/store"
	"github.com/ValentinKolb/dTrie/lib/token"
)

type storeImpl struct {
	db    db.PathDB
	index atomic.Uint64
}

// NewLocalStore creates a new local store instance.
// This store implementation is not distributed and only works on a single node.
// It uses the database created by factory directly.
func NewLocalStore(factory store.DBFactory) store.IStore {
	return &storeImpl{
		db:    factory(),
		index: atomic.Uint64{},
	}
}

// incAndGetIndex increments the index and returns the new value.
// It is used to ensure that each write operation has a unique index.
//
// Thread-safety: This method is thread-safe since it uses atomic operations.
func (s *storeImpl) incAndGetIndex() uint64 {
	return s.index.Add(1)
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Insert(path token.Path, value []byte) (db.Outcome, error) {
	if err := store.CheckInsert(s.db, path, value); err != nil {
		return db.OutcomeNone, err
	}
	return s.db.Insert(path, value, s.incAndGetIndex()), nil
}

func (s *storeImpl) Delete(path token.Path) (db.Outcome, error) {
	if !s.db.SupportsFeature(db.FeatureDelete) {
		return db.OutcomeNone, store.Unsupported("Delete")
	}
	if err := path.Validate(); err != nil {
		return db.OutcomeNone, store.FromError(err)
	}
	return s.db.Delete(path, s.incAndGetIndex()), nil
}

func (s *storeImpl) Lookup(path token.Path) ([]byte, bool, error) {
	if !s.db.SupportsFeature(db.FeatureLookup) {
		return nil, false, store.Unsupported("Lookup")
	}
	if err := path.Validate(); err != nil {
		return nil, false, store.FromError(err)
	}
	value, found := s.db.Lookup(path)
	return value, found, nil
}

func (s *storeImpl) Prefix(ctx context.Context, prefix token.Path) (db.Cursor, error) {
	if !s.db.SupportsFeature(db.FeaturePrefix) {
		return nil, store.Unsupported("Prefix")
	}
	if err := prefix.Validate(); err != nil {
		return nil, store.FromError(err)
	}
	return s.db.Snapshot().Prefix(ctx, prefix), nil
}

func (s *storeImpl) Match(ctx context.Context, pattern token.Pattern) (db.Cursor, error) {
	if !s.db.SupportsFeature(db.FeatureMatch) {
		return nil, store.Unsupported("Match")
	}
	cur, err := s.db.Snapshot().Match(ctx, pattern)
	if err != nil {
		return nil, store.FromError(err)
	}
	return cur, nil
}

func (s *storeImpl) Explore(ctx context.Context, prefix token.Path) (db.Cursor, error) {
	if !s.db.SupportsFeature(db.FeatureExplore) {
		return nil, store.Unsupported("Explore")
	}
	if err := prefix.Validate(); err != nil {
		return nil, store.FromError(err)
	}
	return s.db.Snapshot().Children(ctx, prefix), nil
}

func (s *storeImpl) Clear() (int, error) {
	if !s.db.SupportsFeature(db.FeatureClear) {
		return 0, store.Unsupported("Clear")
	}
	return s.db.Clear(s.incAndGetIndex()), nil
}

func (s *storeImpl) GetDBInfo() (db.DatabaseInfo, error) {
	return s.db.GetInfo(), nil
}

func (s *storeImpl) Close() error {
	return s.db.Close()
}
