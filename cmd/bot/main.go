package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Edaad/gg-support-bot/core/buildinfo"
	"github.com/Edaad/gg-support-bot/core/database"
	"github.com/Edaad/gg-support-bot/core/logger"
	tg "github.com/Edaad/gg-support-bot/core/telegram"
	"github.com/Edaad/gg-support-bot/internal/bot"
	"github.com/Edaad/gg-support-bot/internal/links"
	"github.com/Edaad/gg-support-bot/internal/presets"

	"github.com/jmoiron/sqlx"
	"log/slog"
)

func main() {
	var (
		configPath  = flag.String("config", "config.yaml", "path to YAML configuration")
		token       = flag.String("token", "", "Telegram bot API token (overrides config and env)")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("gg-support-bot %s (%s, %s)\n", buildinfo.Version, buildinfo.Commit, buildinfo.Date)
		return
	}

	if *token != "" {
		os.Setenv("BOT_TOKEN", *token)
	}

	cfg, err := bot.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.InitLogger(&cfg.Core); err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Shutdown() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.L.LogAttrs(ctx, slog.LevelError, "fatal",
			slog.String("component", "app"),
			slog.String("event", "fatal"),
			slog.String("err", err.Error()),
		)
		_ = logger.Shutdown()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *bot.Config) error {
	// The store falls back to file persistence, so a dead database at
	// boot degrades to file-only instead of failing the process.
	var db *sqlx.DB
	if cfg.Database.Enabled() {
		if err := database.RunMigrations(cfg.Database); err != nil {
			logger.MIG.LogAttrs(ctx, slog.LevelWarn, "migrate.failed",
				slog.String("event", "migrate.failed"),
				slog.String("err", err.Error()),
			)
		} else if conn, err := database.Connect(cfg.Database); err != nil {
			logger.DB.LogAttrs(ctx, slog.LevelWarn, "connect.failed",
				slog.String("event", "connect.failed"),
				slog.String("err", err.Error()),
			)
		} else {
			db = conn
			defer db.Close()
		}
	}

	var (
		presetDurable presets.Backend
		linkDurable   links.Backend
	)
	if db != nil {
		presetDurable = presets.NewPostgresBackend(db)
		linkDurable = links.NewPostgresBackend(db)
	}

	store := presets.NewStore(presetDurable, presets.NewFileBackend(cfg.Core.Storage.PresetsFile))
	if err := store.Load(ctx); err != nil {
		return fmt.Errorf("load presets: %w", err)
	}

	linkReg := links.NewRegistry(linkDurable, links.NewFileBackend(cfg.Core.Storage.LinksFile))
	if err := linkReg.Load(ctx); err != nil {
		return fmt.Errorf("load links: %w", err)
	}

	b := bot.New(cfg, store, linkReg)
	return tg.RunTelegram(ctx, b.RunOptions())
}
