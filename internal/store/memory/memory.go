// Package memory keeps games in a map. Values are deep-copied on the way in
// and out so callers never share slices with the store.
package memory

import (
	"context"
	"sort"
	"sync"

	"battleship/internal/game"
	"battleship/internal/store"
)

type Store struct {
	mu    sync.RWMutex
	games map[string]game.Game
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{games: make(map[string]game.Game)}
}

func (s *Store) Create(_ context.Context, g game.Game) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.games[g.ID]; ok {
		return store.ErrExists
	}
	s.games[g.ID] = g.Clone()
	return nil
}

func (s *Store) Get(_ context.Context, id string) (game.Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.games[id]
	if !ok {
		return game.Game{}, store.ErrNotFound
	}
	return g.Clone(), nil
}

func (s *Store) Update(_ context.Context, g game.Game, prev int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.games[g.ID]
	if !ok {
		return store.ErrNotFound
	}
	if cur.Version != prev {
		return store.ErrConflict
	}
	s.games[g.ID] = g.Clone()
	return nil
}

func (s *Store) ListByStatus(_ context.Context, status game.Status) ([]game.Game, error) {
	s.mu.RLock()
	out := make([]game.Game, 0)
	for _, g := range s.games {
		if g.Status == status {
			out = append(out, g.Clone())
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) Close() error { return nil }
