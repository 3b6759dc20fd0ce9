package tui

import (
	"context"
	"errors"
	"sync"

	"battleship/internal/app"
	"battleship/internal/client"
	"battleship/internal/codec"
	"battleship/internal/game"
	"battleship/internal/notify"
)

// Backend is what the terminal client needs from a game server. Remote
// goes over HTTP, Local calls the service in-process.
type Backend interface {
	Rules(ctx context.Context) (game.Rules, error)
	RandomFleet(ctx context.Context) (game.Fleet, error)
	CreateGame(ctx context.Context, player game.PlayerID, ships []game.Placement, vsAI bool) (game.State, error)
	ListWaiting(ctx context.Context) ([]game.State, error)
	Join(ctx context.Context, id string, player game.PlayerID, ships []game.Placement) (game.State, error)
	Attack(ctx context.Context, id string, player game.PlayerID, target game.Coord) (game.Outcome, error)
	View(ctx context.Context, id string, player game.PlayerID) (game.View, error)
}

// Watcher is implemented by backends that push game changes. The channel
// closes when ctx ends or the backend drops the subscription.
type Watcher interface {
	Watch(ctx context.Context, id string) (<-chan notify.Event, error)
}

type Remote struct {
	c *client.Client

	mu     sync.Mutex
	cached cachedView
}

// cachedView is the last view fetched, keyed by game, player and the state
// ETag it was fetched under.
type cachedView struct {
	id     string
	player game.PlayerID
	etag   string
	view   game.View
}

func NewRemote(c *client.Client) *Remote { return &Remote{c: c} }

func (r *Remote) Rules(ctx context.Context) (game.Rules, error) {
	return r.c.Rules(ctx)
}

func (r *Remote) RandomFleet(ctx context.Context) (game.Fleet, error) {
	fr, err := r.c.RandomFleet(ctx)
	return fr.Fleet, err
}

func (r *Remote) CreateGame(ctx context.Context, player game.PlayerID, ships []game.Placement, vsAI bool) (game.State, error) {
	req := codec.CreateGameRequest{Player: player, Ships: ships}
	if vsAI {
		req.Opponent = codec.OpponentAI
	}
	return r.c.CreateGame(ctx, req)
}

func (r *Remote) ListWaiting(ctx context.Context) ([]game.State, error) {
	return r.c.ListWaiting(ctx)
}

func (r *Remote) Join(ctx context.Context, id string, player game.PlayerID, ships []game.Placement) (game.State, error) {
	return r.c.Join(ctx, id, codec.JoinGameRequest{Player: player, Ships: ships})
}

func (r *Remote) Attack(ctx context.Context, id string, player game.PlayerID, target game.Coord) (game.Outcome, error) {
	resp, err := r.c.Attack(ctx, id, player, target)
	return resp.Outcome, err
}

// View asks the server whether the game moved since the cached copy and
// only fetches the player's view when it did.
func (r *Remote) View(ctx context.Context, id string, player game.PlayerID) (game.View, error) {
	r.mu.Lock()
	cached := r.cached
	r.mu.Unlock()
	if cached.id != id || cached.player != player {
		cached = cachedView{}
	}

	_, etag, err := r.c.Poll(ctx, id, cached.etag)
	switch {
	case errors.Is(err, client.ErrNotModified):
		return cached.view, nil
	case err != nil:
		return game.View{}, err
	}
	v, err := r.c.View(ctx, id, player)
	if err != nil {
		return game.View{}, err
	}
	r.mu.Lock()
	r.cached = cachedView{id: id, player: player, etag: etag, view: v}
	r.mu.Unlock()
	return v, nil
}

func (r *Remote) Watch(ctx context.Context, id string) (<-chan notify.Event, error) {
	return r.c.Subscribe(ctx, id)
}

type Local struct {
	svc *app.Service
}

func NewLocal(svc *app.Service) *Local { return &Local{svc: svc} }

func (l *Local) Rules(context.Context) (game.Rules, error) {
	return l.svc.Rules(), nil
}

func (l *Local) RandomFleet(context.Context) (game.Fleet, error) {
	return l.svc.RandomFleet()
}

func (l *Local) CreateGame(ctx context.Context, player game.PlayerID, ships []game.Placement, vsAI bool) (game.State, error) {
	if vsAI {
		return l.svc.StartAIGame(ctx, player, ships)
	}
	return l.svc.StartGame(ctx, player, ships)
}

func (l *Local) ListWaiting(ctx context.Context) ([]game.State, error) {
	return l.svc.ListWaiting(ctx)
}

func (l *Local) Join(ctx context.Context, id string, player game.PlayerID, ships []game.Placement) (game.State, error) {
	return l.svc.JoinGame(ctx, id, player, ships)
}

func (l *Local) Attack(ctx context.Context, id string, player game.PlayerID, target game.Coord) (game.Outcome, error) {
	return l.svc.Attack(ctx, id, player, target)
}

func (l *Local) View(ctx context.Context, id string, player game.PlayerID) (game.View, error) {
	return l.svc.View(ctx, id, player)
}

func (l *Local) Watch(ctx context.Context, id string) (<-chan notify.Event, error) {
	events, cancel := l.svc.Hub().Subscribe(id)
	if _, err := l.svc.State(ctx, id); err != nil {
		cancel()
		return nil, err
	}
	go func() {
		<-ctx.Done()
		cancel()
	}()
	return events, nil
}
