// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

// Package pgstore is a Postgres-backed implementation of store.Store,
// for host applications that need the pickled blobs to survive beyond
// one process. It never interprets the blobs it stores — they remain
// opaque, symmetric-key-encrypted pickles end to end.
package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/matrix-org/go-e2ee-core/store"
)

// Schema is the DDL a host application runs once before using Store.
const Schema = `
CREATE TABLE IF NOT EXISTS e2ee_blobs (
	kind TEXT NOT NULL,
	id   TEXT NOT NULL,
	blob BYTEA NOT NULL,
	PRIMARY KEY (kind, id)
);
`

// Store is a store.Store backed by a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// New wraps an existing pool. The caller owns the pool's lifecycle.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Connect opens a pool from a DSN and wraps it.
func Connect(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgstore: connect: %w", err)
	}
	return New(pool), nil
}

func (s *Store) Put(ctx context.Context, kind store.Kind, id string, blob []byte) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO e2ee_blobs (kind, id, blob) VALUES ($1, $2, $3)
		ON CONFLICT (kind, id) DO UPDATE SET blob = EXCLUDED.blob`,
		string(kind), id, blob)
	if err != nil {
		return fmt.Errorf("pgstore: put: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, kind store.Kind, id string) ([]byte, bool, error) {
	var blob []byte
	err := s.pool.QueryRow(ctx, `SELECT blob FROM e2ee_blobs WHERE kind = $1 AND id = $2`,
		string(kind), id).Scan(&blob)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("pgstore: get: %w", err)
	}
	return blob, true, nil
}

func (s *Store) Delete(ctx context.Context, kind store.Kind, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM e2ee_blobs WHERE kind = $1 AND id = $2`,
		string(kind), id)
	if err != nil {
		return fmt.Errorf("pgstore: delete: %w", err)
	}
	return nil
}

func (s *Store) List(ctx context.Context, kind store.Kind) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT id FROM e2ee_blobs WHERE kind = $1`, string(kind))
	if err != nil {
		return nil, fmt.Errorf("pgstore: list: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("pgstore: list scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// PutMany applies every item inside one transaction, giving the
// account-plus-fresh-pairwise-session consistency spec §5 asks for.
func (s *Store) PutMany(ctx context.Context, items []store.Item) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("pgstore: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, it := range items {
		if _, err := tx.Exec(ctx, `
			INSERT INTO e2ee_blobs (kind, id, blob) VALUES ($1, $2, $3)
			ON CONFLICT (kind, id) DO UPDATE SET blob = EXCLUDED.blob`,
			string(it.Kind), it.ID, it.Blob); err != nil {
			return fmt.Errorf("pgstore: put many: %w", err)
		}
	}
	return tx.Commit(ctx)
}
