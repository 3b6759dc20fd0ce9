// Package archive exports finished games to parquet, one row per attack.
package archive

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"

	"battleship/internal/game"
)

const schemaName = "battleship_move_v1"

// MoveRow is one ledger entry together with the game it belongs to.
// Winner and board size repeat on every row so a single file is
// self-describing.
type MoveRow struct {
	GameID     string `parquet:"game_id,dict"`
	Seq        int32  `parquet:"seq"`
	Attacker   string `parquet:"attacker,dict"`
	Seat       int32  `parquet:"seat"`
	X          int32  `parquet:"x"`
	Y          int32  `parquet:"y"`
	Hit        bool   `parquet:"hit"`
	Winner     string `parquet:"winner,dict"`
	Width      int32  `parquet:"width"`
	Height     int32  `parquet:"height"`
	FinishedAt int64  `parquet:"finished_at_ms"`
}

// Rows flattens finished games. Games still in progress are skipped.
func Rows(games []game.Game) []MoveRow {
	var rows []MoveRow
	for _, g := range games {
		if g.Status != game.StatusFinished {
			continue
		}
		for _, a := range g.Ledger {
			seat, _ := g.Seat(a.Attacker)
			rows = append(rows, MoveRow{
				GameID:     g.ID,
				Seq:        int32(a.Seq),
				Attacker:   string(a.Attacker),
				Seat:       int32(seat),
				X:          int32(a.Target.X),
				Y:          int32(a.Target.Y),
				Hit:        a.Hit,
				Winner:     string(g.Winner),
				Width:      int32(g.Rules.Width),
				Height:     int32(g.Rules.Height),
				FinishedAt: g.UpdatedAt.UnixMilli(),
			})
		}
	}
	return rows
}

// Write stores rows at outPath, going through a temp file so a crash never
// leaves a truncated archive behind.
func Write(outPath string, rows []MoveRow) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	tmpPath := outPath + ".tmp"
	_ = os.Remove(tmpPath)

	if err := parquet.WriteFile(tmpPath, rows,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedBetterCompression}),
		parquet.KeyValueMetadata("schema", schemaName),
	); err != nil {
		return fmt.Errorf("write parquet: %w", err)
	}
	if err := os.Rename(tmpPath, outPath); err != nil {
		return fmt.Errorf("rename parquet: %w", err)
	}
	return nil
}

func Read(path string) ([]MoveRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}
	pf, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("open parquet: %w", err)
	}
	if v, ok := pf.Lookup("schema"); !ok || v != schemaName {
		return nil, fmt.Errorf("%s: not a move archive", path)
	}

	reader := parquet.NewGenericReader[MoveRow](pf)
	defer reader.Close()

	rows := make([]MoveRow, reader.NumRows())
	n, err := reader.Read(rows)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read parquet: %w", err)
	}
	return rows[:n], nil
}
