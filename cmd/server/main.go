// Command lotus-server loads the persisted tables and serves
// recommendation queries over HTTP.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"lotus/internal/cache"
	"lotus/internal/columnar"
	"lotus/internal/config"
	"lotus/internal/framebuilder"
	"lotus/internal/ledger"
	"lotus/internal/recommender"
	"lotus/internal/server"
)

func main() {
	cfg := config.ParseServer(os.Args[1:])
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{}))

	ctx := context.Background()

	paths := columnar.Paths{
		Articles: cfg.ArticleFile,
		Tags:     cfg.TagsFile,
		Users:    cfg.UsersFile,
		Votes:    cfg.VotesFile,
		Manifest: "manifest.yaml",
	}
	if _, err := columnar.ReadManifest(paths.Manifest); err != nil {
		logger.Warn("manifest unreadable, loading tables without it", "error", err)
	}

	frame, err := framebuilder.Load(ctx, paths, framebuilder.Options{MinVotes: cfg.MinVotes})
	if err != nil {
		log.Fatalf("frame load failed: %v", err)
	}

	rec := recommender.New(frame, recommender.Options{UsersToConsider: cfg.UsersToConsider})

	c := cache.New(os.Getenv("LOTUS_REDIS_ADDR"), logger)

	var l *ledger.Ledger
	if dsn := os.Getenv("LOTUS_LEDGER_DSN"); dsn != "" {
		if err := ledger.Migrate(dsn); err != nil {
			logger.Warn("ledger migration failed, continuing without a ledger", "error", err)
		} else if opened, err := ledger.Open(dsn, logger); err != nil {
			logger.Warn("ledger unavailable, continuing without one", "error", err)
		} else {
			l = opened
			defer l.Close()
		}
	}

	srv := server.New(frame, rec, c, l, logger)
	logger.Info("serving", "address", cfg.Address)
	if err := srv.Listen(cfg.Address); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
