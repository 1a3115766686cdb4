// Copyright 2021 The Gradient Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package history records the outcome of training runs in a sqlite database.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNotFound is a run that isn't in the database
var ErrNotFound = errors.New("history: run not found")

// Run is a finished training run
type Run struct {
	ID         uuid.UUID
	Task       string
	Seed       uint32
	Activation string
	Hidden     string
	Epochs     int
	Loss       float64
	Checkpoint string // the file the weights were saved to, if any
	Finished   time.Time
}

// Store is a run history
type Store struct {
	db *sql.DB
}

// Open opens or creates the history at path. ":memory:" is a private
// in-memory database.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", path, err)
	}
	// a memory database only lives as long as its connection
	db.SetMaxOpenConns(1)
	_, err = db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS runs(
			id TEXT PRIMARY KEY,
			task TEXT NOT NULL,
			seed INTEGER NOT NULL,
			activation TEXT NOT NULL,
			hidden TEXT NOT NULL,
			epochs INTEGER NOT NULL,
			loss REAL NOT NULL,
			checkpoint TEXT NOT NULL,
			finished INTEGER NOT NULL
		)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("history: create %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Add records a run
func (s *Store) Add(ctx context.Context, run Run) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO runs(id, task, seed, activation, hidden, epochs, loss, checkpoint, finished) VALUES(?,?,?,?,?,?,?,?,?)",
		run.ID.String(), run.Task, int64(run.Seed), run.Activation, run.Hidden, run.Epochs, run.Loss,
		run.Checkpoint, run.Finished.UnixMilli())
	if err != nil {
		return fmt.Errorf("history: add %s: %w", run.ID, err)
	}
	return nil
}

const columns = "id, task, seed, activation, hidden, epochs, loss, checkpoint, finished"

type scanner interface {
	Scan(dest ...any) error
}

func scan(row scanner) (Run, error) {
	var (
		run      Run
		id       string
		seed     int64
		finished int64
	)
	err := row.Scan(&id, &run.Task, &seed, &run.Activation, &run.Hidden, &run.Epochs, &run.Loss,
		&run.Checkpoint, &finished)
	if err != nil {
		return run, err
	}
	run.ID, err = uuid.Parse(id)
	if err != nil {
		return run, fmt.Errorf("history: run id %q: %w", id, err)
	}
	run.Seed = uint32(seed)
	run.Finished = time.UnixMilli(finished)
	return run, nil
}

// Get returns a run by id
func (s *Store) Get(ctx context.Context, id uuid.UUID) (Run, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+columns+" FROM runs WHERE id = ?", id.String())
	run, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return run, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return run, err
}

// List returns the most recent runs of a task, newest first. An empty task
// lists every task.
func (s *Store) List(ctx context.Context, task string, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+columns+" FROM runs WHERE ? = '' OR task = ? ORDER BY finished DESC, rowid DESC LIMIT ?",
		task, task, limit)
	if err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}
	defer rows.Close()
	var runs []Run
	for rows.Next() {
		run, err := scan(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Best returns the run of a task with the lowest loss
func (s *Store) Best(ctx context.Context, task string) (Run, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+columns+" FROM runs WHERE task = ? ORDER BY loss ASC LIMIT 1", task)
	run, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return run, fmt.Errorf("%w: no %s runs", ErrNotFound, task)
	}
	return run, err
}
