// Command lotus-scraper runs the scrape pipeline end to end: discovery,
// the worker pool, and the columnar writer.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"lotus/internal/columnar"
	"lotus/internal/config"
	"lotus/internal/discovery"
	"lotus/internal/fetch"
	"lotus/internal/ledger"
	"lotus/internal/scrapepool"
	"lotus/internal/wiki"
	"lotus/internal/writer"
)

func main() {
	cfg := config.ParseScraper(os.Args[1:])
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{}))

	ctx := context.Background()
	scrapeRunID := uuid.NewString()

	var runLedger *ledger.Ledger
	if dsn := os.Getenv("LOTUS_LEDGER_DSN"); dsn != "" {
		if err := ledger.Migrate(dsn); err != nil {
			logger.Warn("ledger migration failed, continuing without a ledger", "error", err)
		} else if l, err := ledger.Open(dsn, logger); err != nil {
			logger.Warn("ledger unavailable, continuing without one", "error", err)
		} else {
			runLedger = l
			defer runLedger.Close()
		}
	}

	client := fetch.New(logger, cfg.DownloadDelay)
	client.LoadRobots(ctx, wiki.WikiPrefix)

	rootTagURLs := make([]string, len(wiki.RootTagCategories))
	for i, cat := range wiki.RootTagCategories {
		rootTagURLs[i] = wiki.WikiPrefix + wiki.TagIndexPath + cat
	}

	disco, err := discovery.Run(ctx, logger, client, rootTagURLs, cfg.DownloadDelay)
	if err != nil {
		log.Fatalf("discovery failed: %v", err)
	}

	articles := disco.Articles
	if cfg.ArticleLimit > 0 && cfg.ArticleLimit < len(articles) {
		articles = articles[:cfg.ArticleLimit]
	}

	tagIndex := make(map[string]uint16, len(disco.Tags))
	for i, t := range disco.Tags {
		tagIndex[t] = uint16(i)
	}

	poolCfg := scrapepool.Config{Workers: cfg.Concurrency, DownloadDelay: cfg.DownloadDelay}
	users, err := scrapepool.Run(ctx, logger, client, tagIndex, articles, poolCfg)
	summary := ledger.ScrapeRunSummary{
		Workers:  cfg.Concurrency,
		Articles: len(articles),
		Users:    len(users),
		Err:      err,
	}
	if err != nil {
		runLedger.RecordScrapeRun(ctx, summary)
		log.Fatalf("scrape pool failed: %v", err)
	}

	var voteCount int
	for _, a := range articles {
		voteCount += len(a.Votes)
	}
	summary.Votes = voteCount
	runLedger.RecordScrapeRun(ctx, summary)

	paths := columnar.NewPaths(".")
	paths.Articles = cfg.ArticleFile
	paths.Tags = cfg.TagsFile
	paths.Users = cfg.UsersFile
	paths.Votes = cfg.VotesFile

	if err := writer.Write(paths, scrapeRunID, disco.Tags, articles, users); err != nil {
		log.Fatalf("writer failed: %v", err)
	}

	logger.Info("scrape complete", "articles", len(articles), "users", len(users), "votes", voteCount)
}
