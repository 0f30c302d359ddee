// Package config parses the CLI surfaces for the scraper and server
// binaries. Both use stdlib flag, registering the long and short
// spelling of each option against the same variable: flag's own "last
// Set wins" behavior gives exactly the desired "rightmost wins on
// repetition" semantics.
package config

import (
	"flag"
	"fmt"
	"os"
	"time"
)

// Scraper holds the parsed scraper CLI surface.
type Scraper struct {
	ArticleFile   string
	TagsFile      string
	UsersFile     string
	VotesFile     string
	ArticleLimit  int
	Concurrency   int
	DownloadDelay time.Duration
}

// ParseScraper parses args (typically os.Args[1:]) into a Scraper. On
// --help/-h it prints usage and exits 1. On an unknown option it prints
// the error and exits 1.
func ParseScraper(args []string) Scraper {
	fs := flag.NewFlagSet("lotus-scraper", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var cfg Scraper
	var help bool
	var downloadDelayMs int

	register := func(value *string, long, short, def, usage string) {
		fs.StringVar(value, long, def, usage)
		fs.StringVar(value, short, def, usage)
	}
	registerInt := func(value *int, long, short string, def int, usage string) {
		fs.IntVar(value, long, def, usage)
		fs.IntVar(value, short, def, usage)
	}

	register(&cfg.ArticleFile, "article-file", "a", "articles.lotus", "articles output path")
	register(&cfg.TagsFile, "tags-file", "t", "tags.lotus", "tags output path")
	register(&cfg.UsersFile, "users-file", "u", "users.lotus", "users output path")
	register(&cfg.VotesFile, "votes-file", "v", "votes.lotus", "votes output path")
	registerInt(&cfg.ArticleLimit, "article-limit", "l", 0, "truncate discovery to n articles (0 = no limit)")
	registerInt(&cfg.Concurrency, "concurrent-requests", "r", 8, "worker count")
	registerInt(&downloadDelayMs, "download-delay", "d", 0, "per-request pacing, in ms")
	fs.BoolVar(&help, "help", false, "print usage")
	fs.BoolVar(&help, "h", false, "print usage")

	if err := fs.Parse(args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if help {
		fs.Usage()
		os.Exit(1)
	}

	cfg.DownloadDelay = time.Duration(downloadDelayMs) * time.Millisecond
	return cfg
}
