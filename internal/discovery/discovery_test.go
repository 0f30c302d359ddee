package discovery

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"lotus/internal/fetch"
	"lotus/internal/wiki"
)

type redirectTransport struct{ base *url.URL }

func (t *redirectTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.URL.Scheme = t.base.Scheme
	clone.URL.Host = t.base.Host
	clone.Host = t.base.Host
	return http.DefaultTransport.RoundTrip(clone)
}

func TestRunCollectsTagsAndArticles(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/"+wiki.TagIndexPath, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<div class="tag-cloud-box"><a href="#">scp</a><a href="#">tale</a></div>`))
	})
	mux.HandleFunc("/tag/scp", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<div class="pages-list-item"><a href="/scp-173">SCP-173</a></div>`))
	})
	mux.HandleFunc("/tag/tale", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<div class="pages-list-item"><a href="/a-tale">A Tale</a></div>`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	base, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parsing test server URL: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := fetch.New(logger, 0)
	client.SetTransport(&redirectTransport{base: base})

	result, err := Run(context.Background(), logger, client, []string{
		wiki.WikiPrefix + "tag/scp",
		wiki.WikiPrefix + "tag/tale",
	}, time.Millisecond)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if len(result.Tags) != 2 {
		t.Fatalf("expected 2 tags, got %v", result.Tags)
	}
	if len(result.Articles) != 2 {
		t.Fatalf("expected 2 articles, got %v", result.Articles)
	}
	if result.Articles[0].URL != "scp-173" || result.Articles[1].URL != "a-tale" {
		t.Fatalf("unexpected article URLs: %+v", result.Articles)
	}
}
