// Package sqlite persists games in a SQLite file through modernc.org/sqlite.
// Rows mirror the records the engine works with: one games row, one row per
// occupied ship cell and an append-only moves table.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"battleship/internal/game"
	"battleship/internal/store"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

type Store struct {
	sqlDB *sql.DB
}

var _ store.Store = (*Store)(nil)

// Open opens (creating if needed) the database at path and applies the
// embedded migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := "file:" + filepath.Clean(path) +
		"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// one writer at a time; the service already serializes per game
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, sqlDB, migrationFS, "migrations"); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close is nil-safe so callers can defer it on every path.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *Store) Create(ctx context.Context, g game.Game) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, "SELECT 1 FROM games WHERE id = ?", g.ID).Scan(&exists)
		if err == nil {
			return store.ErrExists
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("check game %s: %w", g.ID, err)
		}

		if _, err := tx.ExecContext(ctx, `
INSERT INTO games (id, width, height, ships, player1_id, player2_id, status, turn, winner, version, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			g.ID, g.Rules.Width, g.Rules.Height, g.Rules.ShipsString(),
			string(g.Players[game.SeatHost]), string(g.Players[game.SeatGuest]),
			string(g.Status), int(g.Turn), string(g.Winner), g.Version,
			toMillis(g.CreatedAt), toMillis(g.UpdatedAt),
		); err != nil {
			return fmt.Errorf("insert game %s: %w", g.ID, err)
		}
		if err := upsertCells(ctx, tx, g); err != nil {
			return err
		}
		return appendMoves(ctx, tx, g, 0)
	})
}

func (s *Store) Update(ctx context.Context, g game.Game, prev int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
UPDATE games SET player2_id = ?, status = ?, turn = ?, winner = ?, version = ?, updated_at = ?
WHERE id = ? AND version = ?`,
			string(g.Players[game.SeatGuest]), string(g.Status), int(g.Turn), string(g.Winner),
			g.Version, toMillis(g.UpdatedAt), g.ID, prev,
		)
		if err != nil {
			return fmt.Errorf("update game %s: %w", g.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("update game %s: %w", g.ID, err)
		}
		if n == 0 {
			var exists int
			err := tx.QueryRowContext(ctx, "SELECT 1 FROM games WHERE id = ?", g.ID).Scan(&exists)
			if errors.Is(err, sql.ErrNoRows) {
				return store.ErrNotFound
			}
			if err != nil {
				return fmt.Errorf("check game %s: %w", g.ID, err)
			}
			return store.ErrConflict
		}

		if err := upsertCells(ctx, tx, g); err != nil {
			return err
		}
		var last int
		if err := tx.QueryRowContext(ctx,
			"SELECT COALESCE(MAX(seq), 0) FROM moves WHERE game_id = ?", g.ID,
		).Scan(&last); err != nil {
			return fmt.Errorf("read last move %s: %w", g.ID, err)
		}
		return appendMoves(ctx, tx, g, last)
	})
}

// upsertCells writes every placed cell. Positions never change once a game
// exists, so only the struck flag is updated on conflict.
func upsertCells(ctx context.Context, tx *sql.Tx, g game.Game) error {
	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO ship_cells (game_id, seat, ship_id, idx, x, y, struck)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (game_id, seat, ship_id, idx) DO UPDATE SET struck = excluded.struck`)
	if err != nil {
		return fmt.Errorf("prepare ship cells: %w", err)
	}
	defer stmt.Close()

	for seat, f := range g.Fleets {
		for _, ship := range f.Ships {
			for i, c := range ship.Cells {
				if _, err := stmt.ExecContext(ctx, g.ID, seat, ship.ID, i, c.X, c.Y, boolInt(c.Struck)); err != nil {
					return fmt.Errorf("write ship cell %s/%d/%d: %w", g.ID, seat, ship.ID, err)
				}
			}
		}
	}
	return nil
}

// appendMoves inserts ledger entries after seq last. Existing rows are
// never rewritten.
func appendMoves(ctx context.Context, tx *sql.Tx, g game.Game, last int) error {
	for _, a := range g.Ledger {
		if a.Seq <= last {
			continue
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO moves (game_id, seq, player_id, x, y, hit, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			g.ID, a.Seq, string(a.Attacker), a.Target.X, a.Target.Y, boolInt(a.Hit), toMillis(g.UpdatedAt),
		); err != nil {
			return fmt.Errorf("insert move %s/%d: %w", g.ID, a.Seq, err)
		}
	}
	return nil
}

const gameColumns = `id, width, height, ships, player1_id, player2_id, status, turn, winner, version, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGame(row rowScanner) (game.Game, error) {
	var (
		g                  game.Game
		ships, host, guest string
		status, winner     string
		turn               int
		created, updated   int64
	)
	if err := row.Scan(&g.ID, &g.Rules.Width, &g.Rules.Height, &ships, &host, &guest,
		&status, &turn, &winner, &g.Version, &created, &updated); err != nil {
		return game.Game{}, err
	}
	specs, err := game.ParseShips(ships)
	if err != nil {
		return game.Game{}, fmt.Errorf("game %s: %w", g.ID, err)
	}
	g.Rules.Ships = specs
	g.Players = [2]game.PlayerID{game.PlayerID(host), game.PlayerID(guest)}
	g.Status = game.Status(status)
	g.Turn = game.Seat(turn)
	g.Winner = game.PlayerID(winner)
	g.CreatedAt = fromMillis(created)
	g.UpdatedAt = fromMillis(updated)
	return g, nil
}

// load fills fleets and ledger for a game whose row was already scanned.
func (s *Store) load(ctx context.Context, g *game.Game) error {
	g.Fleets[game.SeatHost] = game.NewFleet(g.Rules)
	if g.Players[game.SeatGuest] != "" {
		g.Fleets[game.SeatGuest] = game.NewFleet(g.Rules)
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT seat, ship_id, x, y, struck FROM ship_cells WHERE game_id = ? ORDER BY seat, ship_id, idx`, g.ID)
	if err != nil {
		return fmt.Errorf("query ship cells %s: %w", g.ID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var seat, shipID, x, y, struck int
		if err := rows.Scan(&seat, &shipID, &x, &y, &struck); err != nil {
			return fmt.Errorf("scan ship cell %s: %w", g.ID, err)
		}
		if seat < 0 || seat > 1 {
			return fmt.Errorf("game %s: bad seat %d", g.ID, seat)
		}
		f := &g.Fleets[seat]
		placed := false
		for i := range f.Ships {
			if f.Ships[i].ID == shipID {
				f.Ships[i].Cells = append(f.Ships[i].Cells, game.Cell{Coord: game.Coord{X: x, Y: y}, Struck: struck != 0})
				placed = true
				break
			}
		}
		if !placed {
			return fmt.Errorf("game %s: cell for unknown ship %d", g.ID, shipID)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate ship cells %s: %w", g.ID, err)
	}

	mrows, err := s.sqlDB.QueryContext(ctx, `
SELECT seq, player_id, x, y, hit FROM moves WHERE game_id = ? ORDER BY seq`, g.ID)
	if err != nil {
		return fmt.Errorf("query moves %s: %w", g.ID, err)
	}
	defer mrows.Close()
	for mrows.Next() {
		var (
			a      game.Move
			player string
			hit    int
		)
		if err := mrows.Scan(&a.Seq, &player, &a.Target.X, &a.Target.Y, &hit); err != nil {
			return fmt.Errorf("scan move %s: %w", g.ID, err)
		}
		a.Attacker = game.PlayerID(player)
		a.Hit = hit != 0
		g.Ledger = append(g.Ledger, a)
	}
	return mrows.Err()
}

func (s *Store) Get(ctx context.Context, id string) (game.Game, error) {
	g, err := scanGame(s.sqlDB.QueryRowContext(ctx, "SELECT "+gameColumns+" FROM games WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return game.Game{}, store.ErrNotFound
	}
	if err != nil {
		return game.Game{}, fmt.Errorf("get game %s: %w", id, err)
	}
	if err := s.load(ctx, &g); err != nil {
		return game.Game{}, err
	}
	return g, nil
}

func (s *Store) ListByStatus(ctx context.Context, status game.Status) ([]game.Game, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		"SELECT "+gameColumns+" FROM games WHERE status = ? ORDER BY created_at, id", string(status))
	if err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	out := make([]game.Game, 0)
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan game: %w", err)
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate games: %w", err)
	}
	rows.Close()

	// fleets and moves are loaded after the cursor is closed; the pool has
	// a single connection
	for i := range out {
		if err := s.load(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}
