// Command gspd runs the game-state-processor daemon: it maintains the
// consensus game state in SQLite, accepts the block feed from the
// chain driver, and serves the state over HTTP and websocket.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/dustin/go-humanize"

	"github.com/talgya/outpost/internal/api"
	"github.com/talgya/outpost/internal/logic"
	"github.com/talgya/outpost/internal/params"
	"github.com/talgya/outpost/internal/storage"
)

func main() {
	chainName := flag.String("chain", "main", "chain to run on (main, test, regtest)")
	dbPath := flag.String("db", "data/outpost.db", "path to the state database")
	port := flag.Int("port", 8532, "HTTP API port")
	overrides := flag.String("param-overrides", "", "YAML parameter overrides (regtest only)")
	validate := flag.Bool("validate", false, "run the state validator and exit")
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	flag.Parse()

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level %q\n", *logLevel)
		os.Exit(1)
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	var chain params.Chain
	switch *chainName {
	case "main":
		chain = params.ChainMain
	case "test":
		chain = params.ChainTest
	case "regtest":
		chain = params.ChainRegtest
	default:
		slog.Error("unknown chain", "chain", *chainName)
		os.Exit(1)
	}

	p := params.ForChain(chain)
	if *overrides != "" {
		if err := p.LoadOverrides(*overrides); err != nil {
			slog.Error("failed to load parameter overrides", "error", err)
			os.Exit(1)
		}
		slog.Info("applied parameter overrides", "path", *overrides)
	}

	// ── Database ──────────────────────────────────────────────────────
	os.MkdirAll(filepath.Dir(*dbPath), 0755)
	db, err := storage.Open(*dbPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if info, statErr := os.Stat(*dbPath); statErr == nil {
		slog.Info("database opened", "path", *dbPath,
			"size", humanize.Bytes(uint64(info.Size())))
	}

	// ── Engine ───────────────────────────────────────────────────────
	slog.Info("generating base map...", "chain", chain.String(),
		"seed", p.MapSeed, "radius", p.MapRadius)
	game := logic.NewGame(p, db)

	height, _ := strconv.ParseUint(db.Meta("height"), 10, 64)
	slog.Info("engine ready", "chain", chain.String(),
		"height", humanize.Comma(int64(height)))

	if *validate {
		runValidator(game, height)
		return
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	feedKey := os.Getenv("GSPD_FEED_KEY")
	if feedKey == "" && chain != params.ChainRegtest {
		slog.Warn("GSPD_FEED_KEY not set; the block feed is unauthenticated")
	}

	server := &api.Server{
		Game:    game,
		Port:    *port,
		FeedKey: feedKey,
	}
	server.Start()

	fmt.Printf("gspd serving %s chain at height %d on :%d\n",
		chain.String(), height, *port)

	// ── Shutdown ──────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("received signal, shutting down", "signal", sig)
	server.Stop()
}

// runValidator checks every documented invariant over the stored
// state and exits non-zero on the first violation.
func runValidator(game *logic.Game, height uint64) {
	tx, err := game.DB.BeginBlock()
	if err != nil {
		slog.Error("failed to open state", "error", err)
		os.Exit(1)
	}
	defer tx.Rollback()

	t := game.NewTables(tx, height, 0)
	defer t.Money.Release()

	if err := logic.ValidateState(t, height); err != nil {
		slog.Error("state validation failed", "error", err)
		os.Exit(1)
	}
	slog.Info("state is consistent", "height", height)
}
