package tokenstore

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/tidwall/buntdb"

	"github.com/dmitrijs2005/harvesthub/internal/filex"
)

// BuntStore is an embedded Store backed by BuntDB. It suits single-instance
// deployments and development; ":memory:" keeps nothing on disk.
type BuntStore struct {
	db *buntdb.DB
}

// NewBuntStore opens the database at path, creating its directory if
// needed. Use ":memory:" for a store that keeps nothing on disk.
func NewBuntStore(path string) (*BuntStore, error) {
	if path != ":memory:" {
		if _, err := filex.EnsureParentDir(path); err != nil {
			return nil, unavailable("open", err)
		}
	}
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, unavailable("open", err)
	}
	return &BuntStore{db: db}, nil
}

func (s *BuntStore) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := checkTTL(ttl); err != nil {
		return err
	}
	err := s.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(key, value, &buntdb.SetOptions{Expires: true, TTL: ttl})
		return err
	})
	if err != nil {
		return unavailable("put", err)
	}
	return nil
}

func (s *BuntStore) Get(ctx context.Context, key string) (string, error) {
	var v string
	err := s.db.View(func(tx *buntdb.Tx) error {
		var err error
		v, err = tx.Get(key)
		return err
	})
	if err != nil {
		if errors.Is(err, buntdb.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", unavailable("get", err)
	}
	return v, nil
}

// IncrementWithExpiry reads, increments and writes the counter inside one
// read-write transaction. An existing counter keeps its remaining TTL.
func (s *BuntStore) IncrementWithExpiry(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if err := checkTTL(ttl); err != nil {
		return 0, err
	}

	var n int64
	err := s.db.Update(func(tx *buntdb.Tx) error {
		expiry := ttl

		cur, err := tx.Get(key)
		switch {
		case errors.Is(err, buntdb.ErrNotFound):
			n = 1
		case err != nil:
			return err
		default:
			prev, err := strconv.ParseInt(cur, 10, 64)
			if err != nil {
				return err
			}
			n = prev + 1
			if remaining, err := tx.TTL(key); err == nil && remaining > 0 {
				expiry = remaining
			}
		}

		_, _, err = tx.Set(key, strconv.FormatInt(n, 10), &buntdb.SetOptions{Expires: true, TTL: expiry})
		return err
	})
	if err != nil {
		return 0, unavailable("increment", err)
	}
	return n, nil
}

func (s *BuntStore) Delete(ctx context.Context, key string) error {
	err := s.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(key)
		return err
	})
	if err != nil && !errors.Is(err, buntdb.ErrNotFound) {
		return unavailable("delete", err)
	}
	return nil
}

// Ping fails once the database has been closed.
func (s *BuntStore) Ping(ctx context.Context) error {
	if err := s.db.View(func(tx *buntdb.Tx) error { return nil }); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

func (s *BuntStore) Close() error {
	return s.db.Close()
}
