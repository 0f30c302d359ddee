// Package model holds the wiki content types shared by the scrape pipeline
// and the recommender core.
package model

// Article is a single wiki page. PageID, Tags and Votes are zero-valued
// until the scrape pool has filled them in; Name and URL are populated by
// discovery.
type Article struct {
	PageID uint64
	URL    string
	Name   string
	Tags   []uint16
	Votes  []Vote
}

// User identifies a wiki account. Equality is by UserID; Name and URL are
// descriptive only.
type User struct {
	UserID uint64
	URL    string
	Name   string
}

// Vote is a single up/down rating of a page by a user, as recorded on the
// article's own voter list.
type Vote struct {
	Rating int8 // +1 or -1
	UserID uint64
}

// Rating is the long-form (page, user, rating) relation. The Writer and
// the Frame Builder do not use this type; they carry the relation as the
// parallel slices of columnar.VoteTable.
type Rating struct {
	PageID uint64
	UserID uint64
	Rating int8
}
