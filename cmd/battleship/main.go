package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"battleship/internal/ai"
	"battleship/internal/app"
	"battleship/internal/archive"
	"battleship/internal/client"
	"battleship/internal/codec"
	"battleship/internal/config"
	"battleship/internal/game"
	"battleship/internal/logging"
	"battleship/internal/server"
	"battleship/internal/store"
	"battleship/internal/store/memory"
	"battleship/internal/store/sqlite"
	"battleship/internal/tui"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}
	var err error
	args := os.Args[2:]
	switch os.Args[1] {
	case "serve":
		err = cmdServe(args)
	case "play":
		err = cmdPlay(args)
	case "solo":
		err = cmdSolo(args)
	case "fleet":
		err = cmdFleet(args)
	case "export":
		err = cmdExport(args)
	default:
		usage()
		return
	}
	if err != nil {
		config.Exitf("battleship %s: %v", os.Args[1], err)
	}
}

func usage() {
	fmt.Println(`Battleship

Commands:
  serve   [-addr :8080] [-db games.db] [-ai-delay 1s]
  play    [-server URL] [-player NAME] [-fleet fleet.json]
  solo    [-player NAME] [-fleet fleet.json] [-ai-delay 1s]
  fleet   [-out fleet.json]
  export  -db games.db [-out finished.parquet]

Every flag can also be set through BATTLESHIP_* environment variables.`)
}

func newSeed() uint64 {
	return uint64(time.Now().UnixNano())
}

func openStore(ctx context.Context, path string) (store.Store, error) {
	if path == "" {
		return memory.New(), nil
	}
	return sqlite.Open(ctx, path)
}

func playerName(cfg config.Config) game.PlayerID {
	if cfg.Player != "" {
		return game.PlayerID(cfg.Player)
	}
	if u := os.Getenv("USER"); u != "" {
		return game.PlayerID(u)
	}
	return "player"
}

// === serve ===

func cmdServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	cfg, err := config.Load(fs, args)
	if err != nil {
		return err
	}
	rules, err := cfg.Rules()
	if err != nil {
		return err
	}
	log := logging.New(os.Stderr, cfg.LogLevel, cfg.LogPretty)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	svc, err := app.New(st, rules,
		app.WithLogger(log),
		app.WithOpponent(ai.NewOpponent(newSeed(), cfg.AIDelay, log)),
	)
	if err != nil {
		return err
	}
	defer svc.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.New(svc, log).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().
			Str("addr", cfg.Addr).
			Str("db", cfg.DBPath).
			Str("ships", rules.ShipsString()).
			Msg("serving")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		log.Info().Msg("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// === play / solo ===

func loadFleetFlag(path string, rules game.Rules) ([]game.Placement, error) {
	if path == "" {
		return nil, nil
	}
	return codec.LoadFleet(path, rules)
}

func cmdPlay(args []string) error {
	fs := flag.NewFlagSet("play", flag.ExitOnError)
	fleetPath := fs.String("fleet", "", "fleet file written by `battleship fleet`")
	cfg, err := config.Load(fs, args)
	if err != nil {
		return err
	}

	c := client.New(cfg.ServerURL, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	rules, err := c.Rules(ctx)
	cancel()
	if err != nil {
		return fmt.Errorf("reach %s: %w", cfg.ServerURL, err)
	}
	fleet, err := loadFleetFlag(*fleetPath, rules)
	if err != nil {
		return err
	}

	m := tui.New(tui.NewRemote(c), tui.Options{
		Player:       playerName(cfg),
		PollInterval: cfg.PollInterval,
		PollTimeout:  cfg.PollTimeout,
		Fleet:        fleet,
		Push:         true,
	})
	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

func cmdSolo(args []string) error {
	fs := flag.NewFlagSet("solo", flag.ExitOnError)
	fleetPath := fs.String("fleet", "", "fleet file written by `battleship fleet`")
	cfg, err := config.Load(fs, args)
	if err != nil {
		return err
	}
	rules, err := cfg.Rules()
	if err != nil {
		return err
	}
	fleet, err := loadFleetFlag(*fleetPath, rules)
	if err != nil {
		return err
	}

	// the terminal belongs to the UI, so the in-process service stays quiet
	svc, err := app.New(memory.New(), rules,
		app.WithLogger(zerolog.Nop()),
		app.WithOpponent(ai.NewOpponent(newSeed(), cfg.AIDelay, zerolog.Nop())),
	)
	if err != nil {
		return err
	}
	defer svc.Close()

	m := tui.New(tui.NewLocal(svc), tui.Options{
		Player:       playerName(cfg),
		Solo:         true,
		PollInterval: cfg.PollInterval,
		PollTimeout:  cfg.PollTimeout,
		Fleet:        fleet,
		Push:         true,
	})
	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

// === fleet ===

func cmdFleet(args []string) error {
	fs := flag.NewFlagSet("fleet", flag.ExitOnError)
	out := fs.String("out", "fleet.json", "output fleet file")
	cfg, err := config.Load(fs, args)
	if err != nil {
		return err
	}
	rules, err := cfg.Rules()
	if err != nil {
		return err
	}
	f, err := ai.RandomFleet(rules, rand.New(rand.NewPCG(newSeed(), newSeed())))
	if err != nil {
		return err
	}
	if err := codec.SaveJSON(*out, codec.FleetFile{Rules: rules, Placements: f.Placements()}); err != nil {
		return err
	}
	fmt.Println("wrote", *out)
	return nil
}

// === export ===

func cmdExport(args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	out := fs.String("out", "finished.parquet", "output parquet file")
	cfg, err := config.Load(fs, args)
	if err != nil {
		return err
	}
	if cfg.DBPath == "" {
		return errors.New("-db is required")
	}
	rules, err := cfg.Rules()
	if err != nil {
		return err
	}
	ctx := context.Background()
	st, err := sqlite.Open(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()
	svc, err := app.New(st, rules, app.WithLogger(zerolog.Nop()))
	if err != nil {
		return err
	}
	defer svc.Close()

	games, err := svc.Finished(ctx)
	if err != nil {
		return err
	}
	rows := archive.Rows(games)
	if err := archive.Write(*out, rows); err != nil {
		return err
	}
	fmt.Printf("wrote %d moves from %d games to %s\n", len(rows), len(games), *out)
	return nil
}
