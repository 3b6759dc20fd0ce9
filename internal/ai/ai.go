// Package ai is the computer opponent. It builds its own fleet at random
// and picks uniformly among the cells it has not attacked yet. Moves go
// through the same attack path as a human player.
package ai

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"battleship/internal/game"
)

// Prefix marks player ids that belong to the computer.
const Prefix = "ai:"

const (
	// maxTries bounds placement attempts per ship.
	maxTries    = 10000
	maxAttempts = 100
)

var (
	ErrNoTarget = errors.New("ai: no cell left to attack")
	ErrNoRoom   = errors.New("ai: could not fit fleet on board")
)

func NewBotID() game.PlayerID {
	return game.PlayerID(Prefix + uuid.NewString())
}

func IsBot(p game.PlayerID) bool {
	return strings.HasPrefix(string(p), Prefix)
}

// RandomFleet places every configured ship at a random origin and
// orientation. A ship that finds no room after maxTries throws the whole
// attempt away, since earlier ships may have boxed it in.
func RandomFleet(r game.Rules, rng *rand.Rand) (game.Fleet, error) {
	if err := r.Validate(); err != nil {
		return game.Fleet{}, err
	}
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if f, ok := placeAll(r, rng); ok {
			return f, nil
		}
	}
	return game.Fleet{}, ErrNoRoom
}

func placeAll(r game.Rules, rng *rand.Rand) (game.Fleet, bool) {
	f := game.NewFleet(r)
	for _, spec := range r.Ships {
		placed := false
		for tries := 0; tries < maxTries && !placed; tries++ {
			o := game.Horizontal
			if rng.IntN(2) == 0 {
				o = game.Vertical
			}
			origin := game.Coord{X: rng.IntN(r.Width), Y: rng.IntN(r.Height)}
			next, err := f.PlaceShip(r, spec.ID, origin, spec.Size, o)
			if err != nil {
				continue
			}
			f, placed = next, true
		}
		if !placed {
			return game.Fleet{}, false
		}
	}
	return f, true
}

// ChooseTarget picks uniformly among the in-bounds cells self has not yet
// attacked.
func ChooseTarget(st game.State, self game.PlayerID, rng *rand.Rand) (game.Coord, error) {
	tried := make(map[game.Coord]bool)
	for _, m := range st.Moves {
		if m.Attacker == self {
			tried[m.Target] = true
		}
	}
	open := make([]game.Coord, 0, st.Width*st.Height)
	for y := 0; y < st.Height; y++ {
		for x := 0; x < st.Width; x++ {
			c := game.Coord{X: x, Y: y}
			if !tried[c] {
				open = append(open, c)
			}
		}
	}
	if len(open) == 0 {
		return game.Coord{}, ErrNoTarget
	}
	return open[rng.IntN(len(open))], nil
}

// Attacker is the serialized path a bot move re-enters.
type Attacker interface {
	Attack(ctx context.Context, gameID string, player game.PlayerID, target game.Coord) (game.Outcome, error)
	State(ctx context.Context, gameID string) (game.State, error)
}

// Opponent owns the random source shared by all bot games.
type Opponent struct {
	mu    sync.Mutex
	rng   *rand.Rand
	delay time.Duration
	log   zerolog.Logger
}

func NewOpponent(seed uint64, delay time.Duration, log zerolog.Logger) *Opponent {
	return &Opponent{
		rng:   rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		delay: delay,
		log:   log.With().Str("component", "ai").Logger(),
	}
}

func (o *Opponent) Fleet(r game.Rules) (game.Fleet, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return RandomFleet(r, o.rng)
}

func (o *Opponent) target(st game.State, bot game.PlayerID) (game.Coord, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return ChooseTarget(st, bot, o.rng)
}

// Move waits out the configured delay and fires one shot for bot if it
// holds the turn. moved is false when there was nothing to do.
func (o *Opponent) Move(ctx context.Context, a Attacker, gameID string, bot game.PlayerID) (out game.Outcome, moved bool, err error) {
	if o.delay > 0 {
		t := time.NewTimer(o.delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return game.Outcome{}, false, ctx.Err()
		case <-t.C:
		}
	}

	st, err := a.State(ctx, gameID)
	if err != nil {
		return game.Outcome{}, false, err
	}
	if st.Status != game.StatusPlaying || st.TurnHolder != bot {
		return game.Outcome{}, false, nil
	}
	c, err := o.target(st, bot)
	if err != nil {
		return game.Outcome{}, false, err
	}
	out, err = a.Attack(ctx, gameID, bot, c)
	if err != nil {
		return game.Outcome{}, false, err
	}
	o.log.Debug().
		Str("game", gameID).
		Stringer("target", c).
		Bool("hit", out.Hit).
		Bool("retained", out.TurnRetained).
		Msg("bot move")
	return out, true, nil
}
