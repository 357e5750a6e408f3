// Eventscout - Local Event Discovery and Ingestion Pipeline
// Copyright 2026 D. Moreau (dmoreau-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/eventscout/eventscout

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/eventscout/eventscout/internal/models"
)

// SaveProgress overwrites the progress snapshot for the snapshot's session.
// Called after each completed location so an external monitor can follow a
// run without polling full results.
func (s *Store) SaveProgress(ctx context.Context, snap *models.ProgressSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal progress snapshot: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(progressKeyPrefix+snap.SessionID), data)
	})
}

// LatestProgress returns the most recent snapshot for a session.
func (s *Store) LatestProgress(ctx context.Context, sessionID string) (*models.ProgressSnapshot, error) {
	var snap models.ProgressSnapshot
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(progressKeyPrefix + sessionID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &snap)
		})
	})
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// SaveReport persists the final report of a discovery run.
func (s *Store) SaveReport(ctx context.Context, report *models.RunReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal run report: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(reportKeyPrefix+report.SessionID), data)
	})
}

// GetReport loads the report for one session.
func (s *Store) GetReport(ctx context.Context, sessionID string) (*models.RunReport, error) {
	var report models.RunReport
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(reportKeyPrefix + sessionID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &report)
		})
	})
	if err != nil {
		return nil, err
	}
	return &report, nil
}
