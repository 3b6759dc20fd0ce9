package config

import (
	"flag"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"battleship/internal/game"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(flag.NewFlagSet("test", flag.ContinueOnError), nil)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, []int{3, 2, 1}, cfg.Ships)
	assert.Equal(t, time.Second, cfg.AIDelay)
	assert.Equal(t, 2*time.Second, cfg.PollInterval)
	assert.Equal(t, 10*time.Minute, cfg.PollTimeout)

	r, err := cfg.Rules()
	require.NoError(t, err)
	assert.Equal(t, game.DefaultRules(), r)
}

func TestPollTimeoutUsage(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	_, err := Load(fs, nil)
	require.NoError(t, err)
	f := fs.Lookup("poll-timeout")
	require.NotNil(t, f)
	// the window is measured from when polling starts, not from the last change
	assert.Contains(t, f.Usage, "once it starts")
}

func TestLoadEnvThenFlags(t *testing.T) {
	t.Setenv("BATTLESHIP_ADDR", ":9000")
	t.Setenv("BATTLESHIP_SHIPS", "4,2")
	t.Setenv("BATTLESHIP_BOARD_WIDTH", "6")

	cfg, err := Load(flag.NewFlagSet("test", flag.ContinueOnError), []string{"-addr", ":9100", "-height", "7"})
	require.NoError(t, err)
	assert.Equal(t, ":9100", cfg.Addr)
	assert.Equal(t, 6, cfg.BoardWidth)
	assert.Equal(t, 7, cfg.BoardHeight)
	assert.Equal(t, []int{4, 2}, cfg.Ships)

	cfg, err = Load(flag.NewFlagSet("test", flag.ContinueOnError), []string{"-ships", "2, 2,1"})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2, 1}, cfg.Ships)
}

func TestLoadEnvError(t *testing.T) {
	t.Setenv("BATTLESHIP_BOARD_WIDTH", "wide")
	_, err := Load(flag.NewFlagSet("test", flag.ContinueOnError), nil)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "parse env:"))
}

func TestRulesRejectsImpossibleBoards(t *testing.T) {
	cfg := Config{BoardWidth: 2, BoardHeight: 2, Ships: []int{3}}
	_, err := cfg.Rules()
	assert.Error(t, err)

	cfg = Config{BoardWidth: 5, BoardHeight: 5}
	_, err = cfg.Rules()
	assert.Error(t, err)
}
