// Package writer decomposes the completed (articles, users, tags)
// triple into column arrays and persists the four tables.
package writer

import (
	"lotus/internal/columnar"
	"lotus/internal/model"
)

// Write decomposes articles/tags/users into columnar tables and persists
// them via columnar.Write. Votes are split out of the article sequence
// into their own relation, keyed by page_id.
func Write(paths columnar.Paths, scrapeRunID string, tags []string, articles []*model.Article, users map[uint64]model.User) error {
	articleTable := columnar.ArticleTable{
		Name: make([]string, 0, len(articles)),
		URL:  make([]string, 0, len(articles)),
		Pid:  make([]uint64, 0, len(articles)),
		Tags: make([][]uint16, 0, len(articles)),
	}

	var votes columnar.VoteTable

	for _, a := range articles {
		articleTable.Name = append(articleTable.Name, a.Name)
		articleTable.URL = append(articleTable.URL, a.URL)
		articleTable.Pid = append(articleTable.Pid, a.PageID)
		articleTable.Tags = append(articleTable.Tags, a.Tags)

		for _, v := range a.Votes {
			votes.Pid = append(votes.Pid, a.PageID)
			votes.Uid = append(votes.Uid, v.UserID)
			votes.Rating = append(votes.Rating, v.Rating)
		}
	}

	userTable := columnar.UserTable{
		Name: make([]string, 0, len(users)),
		URL:  make([]string, 0, len(users)),
		Uid:  make([]uint64, 0, len(users)),
	}
	for _, u := range users {
		userTable.Name = append(userTable.Name, u.Name)
		userTable.URL = append(userTable.URL, u.URL)
		userTable.Uid = append(userTable.Uid, u.UserID)
	}

	tagTable := columnar.TagTable{Tag: append([]string(nil), tags...)}

	return columnar.Write(paths, scrapeRunID, articleTable, tagTable, userTable, votes)
}
