// Package app is the serialized command path around the game engine. It
// loads a game, applies one engine operation under that game's lock, writes
// the result back and then notifies listeners. Bot moves re-enter the same
// path as deferred tasks.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"battleship/internal/ai"
	"battleship/internal/digest"
	"battleship/internal/game"
	"battleship/internal/notify"
	"battleship/internal/store"
)

// Scheduler runs task later, off the caller's goroutine or not.
type Scheduler func(task func())

type Option func(*Service)

func WithLogger(log zerolog.Logger) Option {
	return func(s *Service) { s.log = log }
}

func WithHub(h *notify.Hub) Option {
	return func(s *Service) { s.hub = h }
}

func WithOpponent(o *ai.Opponent) Option {
	return func(s *Service) { s.bot = o }
}

// WithScheduler replaces the default goroutine scheduler. Tests pass an
// inline scheduler to make bot moves synchronous.
func WithScheduler(fn Scheduler) Option {
	return func(s *Service) { s.schedule = fn }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithIDs(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

type Service struct {
	store    store.Store
	rules    game.Rules
	log      zerolog.Logger
	hub      *notify.Hub
	bot      *ai.Opponent
	schedule Scheduler
	now      func() time.Time
	newID    func() string
	locks    *keyedMutex

	wg        sync.WaitGroup
	botCtx    context.Context
	cancelBot context.CancelFunc
}

func New(st store.Store, rules game.Rules, opts ...Option) (*Service, error) {
	if st == nil {
		return nil, errors.New("app: store is required")
	}
	if err := rules.Validate(); err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	s := &Service{
		store: st,
		rules: rules,
		log:   zerolog.Nop(),
		now:   time.Now,
		newID: uuid.NewString,
		locks: newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.hub == nil {
		s.hub = notify.NewHub()
	}
	if s.bot == nil {
		s.bot = ai.NewOpponent(uint64(time.Now().UnixNano()), 0, s.log)
	}
	if s.schedule == nil {
		s.schedule = s.goSchedule
	}
	s.botCtx, s.cancelBot = context.WithCancel(context.Background())
	return s, nil
}

func (s *Service) goSchedule(task func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		task()
	}()
}

func (s *Service) Rules() game.Rules { return s.rules }

func (s *Service) Hub() *notify.Hub { return s.hub }

// Wait blocks until every scheduled bot move has returned.
func (s *Service) Wait() { s.wg.Wait() }

// Close stops pending bot moves and waits for them to return.
func (s *Service) Close() {
	s.cancelBot()
	s.wg.Wait()
}

// === Fleet setup ===

// RandomFleet returns a complete fleet for the configured rules.
func (s *Service) RandomFleet() (game.Fleet, error) {
	return s.bot.Fleet(s.rules)
}

// PlaceShip places ship id on f using the configured size.
func (s *Service) PlaceShip(f game.Fleet, id int, origin game.Coord, o game.Orientation) (game.Fleet, error) {
	if f.Ships == nil {
		f = game.NewFleet(s.rules)
	}
	spec, ok := s.rules.Spec(id)
	if !ok {
		return f, game.ErrUnknownShip
	}
	return f.PlaceShip(s.rules, id, origin, spec.Size, o)
}

// === Lifecycle ===

func (s *Service) StartGame(ctx context.Context, host game.PlayerID, placements []game.Placement) (game.State, error) {
	if ai.IsBot(host) {
		return game.State{}, reject(game.ErrInvalidPlayer, "reserved player id")
	}
	fleet, err := game.BuildFleet(s.rules, placements)
	if err != nil {
		return game.State{}, s.rejected("start", "", host, err)
	}
	g, err := game.Start(s.newID(), s.rules, host, fleet, s.now())
	if err != nil {
		return game.State{}, s.rejected("start", "", host, err)
	}
	if err := s.store.Create(ctx, g); err != nil {
		return game.State{}, fmt.Errorf("create game: %w", err)
	}
	s.log.Info().Str("game_id", g.ID).Str("player", string(host)).Msg("game created")
	s.publish(g)
	return g.State(), nil
}

// StartAIGame seats host against a computer opponent that joins at once
// with a random fleet. The host shoots first.
func (s *Service) StartAIGame(ctx context.Context, host game.PlayerID, placements []game.Placement) (game.State, error) {
	if ai.IsBot(host) {
		return game.State{}, reject(game.ErrInvalidPlayer, "reserved player id")
	}
	fleet, err := game.BuildFleet(s.rules, placements)
	if err != nil {
		return game.State{}, s.rejected("start", "", host, err)
	}
	botFleet, err := s.bot.Fleet(s.rules)
	if err != nil {
		return game.State{}, fmt.Errorf("bot fleet: %w", err)
	}
	now := s.now()
	g, err := game.Start(s.newID(), s.rules, host, fleet, now)
	if err != nil {
		return game.State{}, s.rejected("start", "", host, err)
	}
	g, err = game.Join(g, ai.NewBotID(), botFleet, now)
	if err != nil {
		return game.State{}, fmt.Errorf("seat bot: %w", err)
	}
	if err := s.store.Create(ctx, g); err != nil {
		return game.State{}, fmt.Errorf("create game: %w", err)
	}
	s.log.Info().Str("game_id", g.ID).Str("player", string(host)).Msg("game created against bot")
	s.publish(g)
	s.committed(g)
	return g.State(), nil
}

func (s *Service) JoinGame(ctx context.Context, id string, guest game.PlayerID, placements []game.Placement) (game.State, error) {
	if ai.IsBot(guest) {
		return game.State{}, reject(game.ErrInvalidPlayer, "reserved player id")
	}
	fleet, err := game.BuildFleet(s.rules, placements)
	if err != nil {
		return game.State{}, s.rejected("join", id, guest, err)
	}
	g, err := s.apply(ctx, id, func(g game.Game) (game.Game, error) {
		return game.Join(g, guest, fleet, s.now())
	})
	if err != nil {
		return game.State{}, s.rejected("join", id, guest, err)
	}
	s.log.Info().Str("game_id", id).Str("player", string(guest)).Msg("game joined")
	s.committed(g)
	return g.State(), nil
}

// === Play ===

// Attack fires player's shot at target. Only one operation per game runs at
// a time, so the turn and duplicate checks see the latest committed state.
func (s *Service) Attack(ctx context.Context, id string, player game.PlayerID, target game.Coord) (game.Outcome, error) {
	var out game.Outcome
	g, err := s.apply(ctx, id, func(g game.Game) (game.Game, error) {
		next, o, err := game.Attack(g, player, target, s.now())
		out = o
		return next, err
	})
	if err != nil {
		return game.Outcome{}, s.rejected("attack", id, player, err)
	}
	s.log.Debug().
		Str("game_id", id).
		Str("player", string(player)).
		Int("x", target.X).
		Int("y", target.Y).
		Bool("hit", out.Hit).
		Int("sunk", out.Sunk).
		Msg("attack")
	if out.GameOver {
		s.log.Info().Str("game_id", id).Str("winner", string(out.Winner)).Int("moves", len(g.Ledger)).Msg("game finished")
	}
	s.committed(g)
	return out, nil
}

// === Queries ===

func (s *Service) State(ctx context.Context, id string) (game.State, error) {
	g, err := s.load(ctx, id)
	if err != nil {
		return game.State{}, err
	}
	return g.State(), nil
}

func (s *Service) View(ctx context.Context, id string, player game.PlayerID) (game.View, error) {
	g, err := s.load(ctx, id)
	if err != nil {
		return game.View{}, err
	}
	return g.ViewFor(player)
}

// ListWaiting returns open games, oldest first.
func (s *Service) ListWaiting(ctx context.Context) ([]game.State, error) {
	games, err := s.store.ListByStatus(ctx, game.StatusWaiting)
	if err != nil {
		return nil, fmt.Errorf("list waiting: %w", err)
	}
	out := make([]game.State, len(games))
	for i, g := range games {
		out[i] = g.State()
	}
	return out, nil
}

// Finished returns completed games with their full ledgers.
func (s *Service) Finished(ctx context.Context) ([]game.Game, error) {
	games, err := s.store.ListByStatus(ctx, game.StatusFinished)
	if err != nil {
		return nil, fmt.Errorf("list finished: %w", err)
	}
	return games, nil
}

// === Helpers ===

func (s *Service) load(ctx context.Context, id string) (game.Game, error) {
	if strings.TrimSpace(id) == "" {
		return game.Game{}, game.ErrNotFound
	}
	g, err := s.store.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return game.Game{}, game.ErrNotFound
	}
	if err != nil {
		return game.Game{}, fmt.Errorf("load game %s: %w", id, err)
	}
	return g, nil
}

// apply runs fn on the stored game under the per-game lock and persists
// the result against the version it was read at. The change is published
// before the lock is released so subscribers see versions in order.
func (s *Service) apply(ctx context.Context, id string, fn func(game.Game) (game.Game, error)) (game.Game, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	g, err := s.load(ctx, id)
	if err != nil {
		return game.Game{}, err
	}
	next, err := fn(g)
	if err != nil {
		return game.Game{}, err
	}
	if err := s.store.Update(ctx, next, g.Version); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return game.Game{}, game.ErrNotFound
		}
		return game.Game{}, fmt.Errorf("save game %s: %w", id, err)
	}
	s.publish(next)
	return next, nil
}

func (s *Service) publish(g game.Game) {
	root, err := digest.Root(g.State())
	if err != nil {
		s.log.Warn().Err(err).Str("game_id", g.ID).Msg("state digest")
	}
	s.hub.Publish(notify.Event{GameID: g.ID, Version: g.Version, Digest: root, Status: g.Status})
}

// committed hands the turn to the bot when it is the bot's move.
func (s *Service) committed(g game.Game) {
	if g.Status != game.StatusPlaying {
		return
	}
	holder := g.TurnHolder()
	if !ai.IsBot(holder) {
		return
	}
	id := g.ID
	s.schedule(func() {
		_, _, err := s.bot.Move(s.botCtx, s, id, holder)
		if err != nil && !errors.Is(err, context.Canceled) {
			s.log.Error().Err(err).Str("game_id", id).Msg("bot move failed")
		}
	})
}

func (s *Service) rejected(op, id string, player game.PlayerID, err error) error {
	ev := s.log.Debug()
	if game.KindOf(err) == game.KindInfrastructure {
		ev = s.log.Error()
	}
	ev.Err(err).
		Str("op", op).
		Str("game_id", id).
		Str("player", string(player)).
		Str("code", string(game.CodeOf(err))).
		Msg("operation rejected")
	return err
}

func reject(base *game.Error, msg string) error {
	return &game.Error{Code: base.Code, Message: msg}
}
