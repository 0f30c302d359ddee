// Package wiki holds the wire-level constants that tie the scrape pipeline
// to this particular wiki's URL scheme.
package wiki

import "regexp"

const (
	// WikiPrefix is prepended to every relative article path.
	WikiPrefix = "https://scp-wiki.wikidot.com/"

	// TagIndexPath lists every tag known to the wiki.
	TagIndexPath = "system:page-tags/tag/"

	// AjaxModulePath is the voter-list endpoint.
	AjaxModulePath = "ajax-module-connector.php"

	// WikidotToken is a stable placeholder; the voter endpoint does not
	// validate it, it only requires the cookie and body copies to match.
	WikidotToken = "123456"

	// ModuleName identifies the ajax module that returns a page's voters.
	ModuleName = "pagerate/WhoRatedPageModule"

	// BlacklistPath is excluded at discovery time: it aliases another
	// record's page_id and would corrupt the pid-indexed tables.
	BlacklistPath = "scp-1047-j"

	// UserAgent is sent on every request.
	UserAgent = "Mozilla/5.0"
)

// RootTagCategories are the wiki's top-level tag categories enumerated by
// Discovery; each names a tag-index page under TagIndexPath.
var RootTagCategories = []string{"goi-format", "hub", "scp", "tale"}

// PageIDPattern extracts the numeric page_id from an article page's inline
// script literal.
var PageIDPattern = regexp.MustCompile(`WIKIREQUEST\.info\.pageId\s*=\s*(\d+);`)

// VoterPattern extracts one voter entry (user_id, user_url, user_name,
// vote_sign) from the JSON-embedded HTML fragment returned by the voter
// endpoint. The fragment is JSON-escaped HTML, so literal quotes and
// slashes inside it are backslash-escaped. The exact markup is a protocol
// dependency of the site and may need updating if it drifts.
var VoterPattern = regexp.MustCompile(
	`userInfo\((\d+)\); return false;\\"\s*><img class=\\"small\\" src=\\"https:\\/\\/www\.wikidot\.com\\/avatar\.php\?userid=(?:\d+)&amp;amp;size=small&amp;amp;timestamp=(?:\d+)\\" alt=\\"(?:[^\\]+)\\" style=\\"background-image:url\(https:\\/\\/www\.wikidot\.com\\/userkarma\.php\?u=(?:\d+)\)\\"\\/><\\/a><a href=\\"http:\\/\\/www\.wikidot\.com\\/user:info\\/([^\\]+)\\" onclick=\\"WIKIDOT\.page\.listeners\.userInfo\((?:\d+)\); return false;\\" >([^<]+)<\\/a><\\/span>\\n\s*<span style=\\"color:#777\\">\\n(?: +)(.)`,
)
