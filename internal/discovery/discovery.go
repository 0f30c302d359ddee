// Package discovery enumerates all candidate article URLs from
// tag-index pages and builds the tag universe.
package discovery

import (
	"context"
	"log/slog"
	"time"

	"lotus/internal/extract"
	"lotus/internal/fetch"
	"lotus/internal/model"
	"lotus/internal/wiki"
)

// Result is discovery's output: the tag universe and one skeleton per
// article (name/url populated, page_id/tags/votes still zero-valued).
type Result struct {
	Tags     []string
	Articles []*model.Article
}

// Run fetches the global tag index, then every root tag URL in turn,
// sleeping between root pages to avoid a thundering herd. Article paths
// that the client's loaded robots.txt policy disallows are skipped.
func Run(ctx context.Context, log *slog.Logger, client *fetch.Client, rootTagURLs []string, downloadDelay time.Duration) (Result, error) {
	log.Info("fetching global tag index")
	tagIndexBody, err := client.GetBody(ctx, wiki.WikiPrefix+wiki.TagIndexPath)
	if err != nil {
		return Result{}, err
	}
	tags, err := extract.GlobalTags(tagIndexBody)
	if err != nil {
		return Result{}, err
	}
	log.Info("tag universe loaded", "count", len(tags))

	var articles []*model.Article
	for i, rootURL := range rootTagURLs {
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		default:
		}

		log.Info("fetching root tag page", "url", rootURL)
		body, err := client.GetBody(ctx, rootURL)
		if err != nil {
			return Result{}, err
		}

		items, err := extract.PageList(body)
		if err != nil {
			return Result{}, err
		}
		for _, item := range items {
			if !client.Allowed("/" + item.URL) {
				log.Info("skipping article disallowed by robots.txt", "url", item.URL)
				continue
			}
			articles = append(articles, &model.Article{Name: item.Name, URL: item.URL})
		}

		if i < len(rootTagURLs)-1 {
			time.Sleep(downloadDelay + 100*time.Millisecond)
		}
	}

	log.Info("discovery complete", "articles", len(articles), "tags", len(tags))
	return Result{Tags: tags, Articles: articles}, nil
}
