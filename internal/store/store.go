// Eventscout - Local Event Discovery and Ingestion Pipeline
// Copyright 2026 D. Moreau (dmoreau-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/eventscout/eventscout

/*
Package store persists canonical events in BadgerDB.

Key layout:

	event:{id}                  -> CanonicalEvent JSON
	slug:{slug}                 -> event id (uniqueness index)
	ext:{source}:{external_id}  -> event id (upsert conflict key)
	progress:{session_id}       -> ProgressSnapshot JSON
	report:{session_id}         -> RunReport JSON

Upsert is idempotent on externalId+source: re-ingesting the same provider
record updates the stored event in place, preserving its id and slug. Slug
uniqueness is enforced inside the upsert transaction: a colliding slug is
re-suffixed atomically, so two concurrent normalizations of the same title
cannot commit duplicate slugs.
*/
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/eventscout/eventscout/internal/config"
	"github.com/eventscout/eventscout/internal/logging"
	"github.com/eventscout/eventscout/internal/metrics"
	"github.com/eventscout/eventscout/internal/models"
)

// Key prefixes for BadgerDB storage.
const (
	eventKeyPrefix    = "event:"
	slugKeyPrefix     = "slug:"
	extKeyPrefix      = "ext:"
	progressKeyPrefix = "progress:"
	reportKeyPrefix   = "report:"
)

// maxSlugRetries bounds in-transaction slug suffix resolution.
const maxSlugRetries = 100

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Store is a badger-backed event store.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) the store at the configured path.
func Open(cfg config.StoreConfig) (*Store, error) {
	opts := badger.DefaultOptions(cfg.Path).WithLogger(nil)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", cfg.Path, err)
	}
	return &Store{db: db}, nil
}

// OpenInMemory opens an ephemeral store. Used by tests.
func OpenInMemory() (*Store, error) {
	return Open(config.StoreConfig{InMemory: true})
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Upsert writes an event keyed on externalId+source. If a record with the
// same conflict key exists, its id and slug are preserved and the remaining
// fields are replaced. For new records a colliding slug is resolved with
// counter suffixes inside the transaction.
func (s *Store) Upsert(ctx context.Context, event *models.CanonicalEvent) error {
	start := time.Now()
	err := s.upsert(event)
	metrics.ObserveStoreOp("upsert", err, time.Since(start))
	return err
}

func (s *Store) upsert(event *models.CanonicalEvent) error {
	return s.db.Update(func(txn *badger.Txn) error {
		extKey := []byte(extKeyPrefix + event.SourceID + ":" + event.ExternalID)

		existingID, err := getString(txn, extKey)
		switch {
		case err == nil:
			// Conflict: keep the committed identity.
			prior, err := getEvent(txn, existingID)
			if err != nil {
				return fmt.Errorf("load prior event %s: %w", existingID, err)
			}
			event.ID = prior.ID
			event.Slug = prior.Slug
			event.CreatedAt = prior.CreatedAt
		case errors.Is(err, ErrNotFound):
			resolved, err := resolveSlug(txn, event.Slug, event.ID)
			if err != nil {
				return err
			}
			event.Slug = resolved
		default:
			return err
		}

		data, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("marshal event: %w", err)
		}
		if err := txn.Set([]byte(eventKeyPrefix+event.ID), data); err != nil {
			return fmt.Errorf("set event: %w", err)
		}
		if err := txn.Set([]byte(slugKeyPrefix+event.Slug), []byte(event.ID)); err != nil {
			return fmt.Errorf("set slug index: %w", err)
		}
		if err := txn.Set(extKey, []byte(event.ID)); err != nil {
			return fmt.Errorf("set conflict index: %w", err)
		}
		return nil
	})
}

// resolveSlug returns the first free variant of slug within the transaction.
// Collisions owned by a different event get -1, -2, ... suffixes; after
// maxSlugRetries a timestamp suffix guarantees termination.
func resolveSlug(txn *badger.Txn, slug, ownerID string) (string, error) {
	candidate := slug
	for i := 1; i <= maxSlugRetries; i++ {
		holder, err := getString(txn, []byte(slugKeyPrefix+candidate))
		if errors.Is(err, ErrNotFound) || (err == nil && holder == ownerID) {
			return candidate, nil
		}
		if err != nil && !errors.Is(err, ErrNotFound) {
			return "", err
		}
		candidate = fmt.Sprintf("%s-%d", slug, i)
	}
	return fmt.Sprintf("%s-%d", slug, time.Now().UnixMilli()), nil
}

// ExistsSlug reports whether slug is committed to an event other than
// excludingID. Pass "" to check against all events.
func (s *Store) ExistsSlug(ctx context.Context, slug, excludingID string) (bool, error) {
	start := time.Now()
	var exists bool
	err := s.db.View(func(txn *badger.Txn) error {
		holder, err := getString(txn, []byte(slugKeyPrefix+slug))
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		exists = holder != excludingID
		return nil
	})
	metrics.ObserveStoreOp("exists", err, time.Since(start))
	return exists, err
}

// GetBySlug loads one event by its slug.
func (s *Store) GetBySlug(ctx context.Context, slug string) (*models.CanonicalEvent, error) {
	var event *models.CanonicalEvent
	err := s.db.View(func(txn *badger.Txn) error {
		id, err := getString(txn, []byte(slugKeyPrefix+slug))
		if err != nil {
			return err
		}
		event, err = getEvent(txn, id)
		return err
	})
	return event, err
}

// QueryFilters narrows a Query. Zero values match everything.
type QueryFilters struct {
	Source   string
	Category string
	City     string
	From     time.Time
	To       time.Time
	Limit    int
}

// Query returns events matching the filters, up to Limit (default 100).
func (s *Store) Query(ctx context.Context, f QueryFilters) ([]*models.CanonicalEvent, error) {
	start := time.Now()
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}

	var out []*models.CanonicalEvent
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(eventKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix) && len(out) < limit; it.Next() {
			var event models.CanonicalEvent
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &event)
			})
			if err != nil {
				logging.Warn().Err(err).Msg("Skipping undecodable event record")
				continue
			}
			if matches(&event, f) {
				out = append(out, &event)
			}
		}
		return nil
	})
	metrics.ObserveStoreOp("query", err, time.Since(start))
	return out, err
}

func matches(e *models.CanonicalEvent, f QueryFilters) bool {
	if f.Source != "" && e.SourceID != f.Source {
		return false
	}
	if f.Category != "" && e.Category != f.Category {
		return false
	}
	if f.City != "" && !strings.EqualFold(e.City, f.City) {
		return false
	}
	if !f.From.IsZero() && e.Date.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && e.Date.After(f.To) {
		return false
	}
	return true
}

// Count returns the number of committed events.
func (s *Store) Count(ctx context.Context) (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(eventKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

// RunGC runs badger value-log garbage collection until ctx is canceled.
// Intended to run as a supervised background service.
func (s *Store) RunGC(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Badger suggests re-running while GC makes progress.
			for {
				if err := s.db.RunValueLogGC(0.5); err != nil {
					break
				}
			}
		}
	}
}

// getString reads a small string value by key inside a transaction.
func getString(txn *badger.Txn, key []byte) (string, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	var out string
	err = item.Value(func(val []byte) error {
		out = string(val)
		return nil
	})
	return out, err
}

// getEvent loads one event by id inside a transaction.
func getEvent(txn *badger.Txn, id string) (*models.CanonicalEvent, error) {
	item, err := txn.Get([]byte(eventKeyPrefix + id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var event models.CanonicalEvent
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &event)
	})
	if err != nil {
		return nil, err
	}
	return &event, nil
}
