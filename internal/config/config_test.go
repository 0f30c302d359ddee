package config

import "testing"

func TestParseScraperDefaults(t *testing.T) {
	cfg := ParseScraper(nil)
	if cfg.ArticleFile != "articles.lotus" {
		t.Fatalf("got ArticleFile %q, want articles.lotus", cfg.ArticleFile)
	}
	if cfg.Concurrency != 8 {
		t.Fatalf("got Concurrency %d, want 8", cfg.Concurrency)
	}
	if cfg.DownloadDelay != 0 {
		t.Fatalf("got DownloadDelay %v, want 0", cfg.DownloadDelay)
	}
}

func TestParseScraperLongFlags(t *testing.T) {
	cfg := ParseScraper([]string{"--article-limit", "50", "--concurrent-requests", "4", "--download-delay", "200"})
	if cfg.ArticleLimit != 50 {
		t.Fatalf("got ArticleLimit %d, want 50", cfg.ArticleLimit)
	}
	if cfg.Concurrency != 4 {
		t.Fatalf("got Concurrency %d, want 4", cfg.Concurrency)
	}
	if cfg.DownloadDelay.Milliseconds() != 200 {
		t.Fatalf("got DownloadDelay %v, want 200ms", cfg.DownloadDelay)
	}
}

func TestParseScraperRightmostWinsOnRepetition(t *testing.T) {
	cfg := ParseScraper([]string{"-a", "first.lotus", "--article-file", "second.lotus"})
	if cfg.ArticleFile != "second.lotus" {
		t.Fatalf("got ArticleFile %q, want second.lotus (rightmost should win)", cfg.ArticleFile)
	}
}

func TestParseServerDefaults(t *testing.T) {
	cfg := ParseServer(nil)
	if cfg.Address != ":8080" {
		t.Fatalf("got Address %q, want :8080", cfg.Address)
	}
	if cfg.MinVotes != 10 {
		t.Fatalf("got MinVotes %d, want 10", cfg.MinVotes)
	}
	if cfg.UsersToConsider != 30 {
		t.Fatalf("got UsersToConsider %d, want 30", cfg.UsersToConsider)
	}
}

func TestParseServerShortFlags(t *testing.T) {
	cfg := ParseServer([]string{"-i", ":9090", "-m", "5", "-c", "10"})
	if cfg.Address != ":9090" {
		t.Fatalf("got Address %q, want :9090", cfg.Address)
	}
	if cfg.MinVotes != 5 {
		t.Fatalf("got MinVotes %d, want 5", cfg.MinVotes)
	}
	if cfg.UsersToConsider != 10 {
		t.Fatalf("got UsersToConsider %d, want 10", cfg.UsersToConsider)
	}
}
