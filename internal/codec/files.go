package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"battleship/internal/game"
)

func asGameError(err error) (*game.Error, bool) {
	var e *game.Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// SaveJSON writes v indented, through a temp file so readers never see a
// partial document.
func SaveJSON(path string, v any) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".battleship-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func LoadJSON(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewDecoder(f).Decode(v)
}

// LoadFleet reads a fleet file and checks it against rules.
func LoadFleet(path string, rules game.Rules) ([]game.Placement, error) {
	var ff FleetFile
	if err := LoadJSON(path, &ff); err != nil {
		return nil, fmt.Errorf("read fleet %s: %w", path, err)
	}
	if _, err := game.BuildFleet(rules, ff.Placements); err != nil {
		return nil, fmt.Errorf("fleet %s: %w", path, err)
	}
	return ff.Placements, nil
}
