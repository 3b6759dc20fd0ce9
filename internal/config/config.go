// Package config loads command settings: environment variables first, then
// command-line flags on top.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"battleship/internal/game"
)

type Config struct {
	Addr   string `env:"BATTLESHIP_ADDR" envDefault:":8080"`
	DBPath string `env:"BATTLESHIP_DB_PATH"`

	BoardWidth  int   `env:"BATTLESHIP_BOARD_WIDTH" envDefault:"5"`
	BoardHeight int   `env:"BATTLESHIP_BOARD_HEIGHT" envDefault:"5"`
	Ships       []int `env:"BATTLESHIP_SHIPS" envDefault:"3,2,1" envSeparator:","`

	LogLevel  string `env:"BATTLESHIP_LOG_LEVEL" envDefault:"info"`
	LogPretty bool   `env:"BATTLESHIP_LOG_PRETTY" envDefault:"false"`

	// AIDelay spaces out consecutive bot shots so a watching player can
	// follow a streak of hits.
	AIDelay time.Duration `env:"BATTLESHIP_AI_DELAY" envDefault:"1s"`

	ServerURL    string        `env:"BATTLESHIP_SERVER_URL" envDefault:"http://localhost:8080"`
	Player       string        `env:"BATTLESHIP_PLAYER"`
	PollInterval time.Duration `env:"BATTLESHIP_POLL_INTERVAL" envDefault:"2s"`
	PollTimeout  time.Duration `env:"BATTLESHIP_POLL_TIMEOUT" envDefault:"10m"`
}

// Load parses the environment into a Config and then lets flags in args
// override it.
func Load(fs *flag.FlagSet, args []string) (Config, error) {
	if fs == nil {
		return Config{}, errors.New("flag set is required")
	}
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "listen address")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "sqlite database path (empty keeps games in memory)")
	fs.IntVar(&cfg.BoardWidth, "width", cfg.BoardWidth, "board width")
	fs.IntVar(&cfg.BoardHeight, "height", cfg.BoardHeight, "board height")
	fs.Func("ships", "comma-separated ship sizes (default "+joinInts(cfg.Ships)+")", func(v string) error {
		sizes, err := parseInts(v)
		if err != nil {
			return err
		}
		cfg.Ships = sizes
		return nil
	})
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	fs.BoolVar(&cfg.LogPretty, "log-pretty", cfg.LogPretty, "human-readable console logs")
	fs.DurationVar(&cfg.AIDelay, "ai-delay", cfg.AIDelay, "pause between consecutive AI shots")
	fs.StringVar(&cfg.ServerURL, "server", cfg.ServerURL, "battleship server base URL")
	fs.StringVar(&cfg.Player, "player", cfg.Player, "player name")
	fs.DurationVar(&cfg.PollInterval, "poll", cfg.PollInterval, "state polling interval")
	fs.DurationVar(&cfg.PollTimeout, "poll-timeout", cfg.PollTimeout, "how long to keep polling once it starts; p in the client resumes")

	if args == nil {
		args = []string{}
	}
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Rules turns the board settings into engine rules.
func (c Config) Rules() (game.Rules, error) {
	r := game.RulesFromSizes(c.BoardWidth, c.BoardHeight, c.Ships)
	if err := r.Validate(); err != nil {
		return game.Rules{}, fmt.Errorf("invalid board configuration: %w", err)
	}
	return r, nil
}

// Exitf writes a formatted error message to stderr and exits with code 1.
func Exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func parseInts(v string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("ship size %q: %w", part, err)
		}
		out = append(out, n)
	}
	return out, nil
}

func joinInts(vs []int) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}
