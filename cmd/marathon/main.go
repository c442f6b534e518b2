package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ldi/marathon/internal/config"
	"github.com/ldi/marathon/internal/db"
	"github.com/ldi/marathon/internal/engine"
	"github.com/ldi/marathon/internal/export"
	"github.com/ldi/marathon/internal/scheduler"
	"github.com/ldi/marathon/internal/seed"
	"github.com/ldi/marathon/internal/telegram"
)

func main() {
	command := "serve"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	var err error
	switch command {
	case "serve":
		err = runServe()
	case "seed":
		err = runSeed()
	case "export":
		err = runExport(os.Args[2:])
	default:
		fmt.Printf("Unknown command: %s\n", command)
		fmt.Println("Commands: serve (default), seed, export <out.xlsx>")
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func openStore(ctx context.Context, cfg *config.Config) (*db.DB, error) {
	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	store, err := db.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if cfg.SeedOnStart {
		created, err := seed.FromJSON(ctx, store, cfg.SeedPath, cfg.SeedWipe)
		if err != nil {
			// A missing seed file is fine on an already-populated instance.
			log.Warn("seed skipped", "path", cfg.SeedPath, "error", err)
		} else {
			log.Info("catalog seeded", "path", cfg.SeedPath, "created", created)
		}
	}

	eng := engine.New(store, nil)
	bot, err := telegram.New(cfg.BotToken, store, eng, cfg.AdminIDs, log)
	if err != nil {
		return err
	}

	sched := scheduler.New(store, bot, scheduler.Options{
		Interval: cfg.TickInterval,
		Logger:   log,
	})
	if err := sched.Start(ctx); err != nil {
		return err
	}

	go bot.Start()
	log.Info("marathon bot started", "db", cfg.DBPath, "tick_interval", cfg.TickInterval.String())

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	bot.Stop()
	sched.Stop()
	cancel()
	return nil
}

func runSeed() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	ctx := context.Background()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	created, err := seed.FromJSON(ctx, store, cfg.SeedPath, cfg.SeedWipe)
	if err != nil {
		return err
	}
	fmt.Printf("Seeded catalog from %s (%d new)\n", cfg.SeedPath, created)
	return nil
}

func runExport(args []string) error {
	out := "responses.xlsx"
	if len(args) > 0 {
		out = args[0]
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	ctx := context.Background()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	data, err := export.BuildWorkbook(ctx, store)
	if err != nil {
		return err
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}
	fmt.Printf("Wrote %s (%d bytes)\n", out, len(data))
	return nil
}
