// Package store defines the persistence boundary for games. The engine in
// internal/game never performs I/O; the application service loads a
// snapshot from a Store, applies an operation and writes the result back.
package store

import (
	"context"
	"errors"

	"battleship/internal/game"
)

var (
	ErrNotFound = errors.New("store: game not found")
	// ErrConflict means the stored version moved on since the snapshot was
	// read. The caller should reload and retry or give up.
	ErrConflict = errors.New("store: version conflict")
	ErrExists   = errors.New("store: game already exists")
)

type Store interface {
	Create(ctx context.Context, g game.Game) error
	Get(ctx context.Context, id string) (game.Game, error)
	// Update replaces the game if the stored version still equals prev.
	Update(ctx context.Context, g game.Game, prev int64) error
	// ListByStatus returns games with the given status, oldest first.
	ListByStatus(ctx context.Context, status game.Status) ([]game.Game, error)
	Close() error
}
