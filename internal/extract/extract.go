// Package extract parses the tag index, per-tag page lists, an
// article's page_id and tags, and a page's voter block out of raw
// wiki HTML.
package extract

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"lotus/internal/lotuserr"
	"lotus/internal/model"
	"lotus/internal/wiki"
)

// PageListItem is one entry from a tag-index page: a name and the URL
// path suffix (leading separator already stripped).
type PageListItem struct {
	Name string
	URL  string
}

// GlobalTags parses the global tag-index page into the ordered tag
// universe.
func GlobalTags(html []byte) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(html)))
	if err != nil {
		return nil, lotuserr.New(lotuserr.Parse, "extract.GlobalTags", err)
	}

	var tags []string
	doc.Find("div.tag-cloud-box a, div.tags a").Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		if text != "" {
			tags = append(tags, text)
		}
	})
	if len(tags) == 0 {
		return nil, lotuserr.New(lotuserr.Parse, "extract.GlobalTags", fmt.Errorf("no tags found"))
	}
	return tags, nil
}

// PageList parses a single tag's page-list page into article skeletons,
// skipping the blacklisted path and stripping the leading path
// separator from each href.
func PageList(html []byte) ([]PageListItem, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(html)))
	if err != nil {
		return nil, lotuserr.New(lotuserr.Parse, "extract.PageList", err)
	}

	var items []PageListItem
	doc.Find(".pages-list-item").Each(func(_ int, sel *goquery.Selection) {
		a := sel.Find("a").First()
		href, ok := a.Attr("href")
		if !ok {
			return
		}
		href = strings.TrimPrefix(href, "/")
		if href == wiki.BlacklistPath {
			return
		}
		name := strings.TrimSpace(a.Text())
		items = append(items, PageListItem{Name: name, URL: href})
	})
	return items, nil
}

// PageID extracts an article's numeric page_id from its inline script
// literal.
func PageID(html []byte) (uint64, error) {
	m := wiki.PageIDPattern.FindSubmatch(html)
	if m == nil {
		return 0, lotuserr.New(lotuserr.Parse, "extract.PageID", fmt.Errorf("pageId literal not found"))
	}
	pid, err := strconv.ParseUint(string(m[1]), 10, 64)
	if err != nil {
		return 0, lotuserr.New(lotuserr.Parse, "extract.PageID", err)
	}
	return pid, nil
}

// PageTags extracts the tag strings shown on an article page.
func PageTags(html []byte) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(html)))
	if err != nil {
		return nil, lotuserr.New(lotuserr.Parse, "extract.PageTags", err)
	}

	var tags []string
	doc.Find(".page-tags a").Each(func(_ int, sel *goquery.Selection) {
		text := strings.TrimSpace(sel.Text())
		if text != "" {
			tags = append(tags, text)
		}
	})
	return tags, nil
}

// VoterEntry is one parsed voter from the voter endpoint response.
type VoterEntry struct {
	User   model.User
	Rating int8
}

// Voters parses the ajax-module-connector voter-block response.
func Voters(body []byte) ([]VoterEntry, error) {
	matches := wiki.VoterPattern.FindAllSubmatch(body, -1)
	if matches == nil {
		// An empty voter list (a page with zero votes) is not an error;
		// the regex simply matches nothing.
		return nil, nil
	}

	entries := make([]VoterEntry, 0, len(matches))
	for _, m := range matches {
		uid, err := strconv.ParseUint(string(m[1]), 10, 64)
		if err != nil {
			return nil, lotuserr.New(lotuserr.Parse, "extract.Voters", err)
		}
		rating := int8(1)
		if string(m[4]) == "-" {
			rating = -1
		}
		entries = append(entries, VoterEntry{
			User: model.User{
				UserID: uid,
				URL:    string(m[2]),
				Name:   string(m[3]),
			},
			Rating: rating,
		})
	}
	return entries, nil
}
