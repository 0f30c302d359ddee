// Package framebuilder loads the four persisted tables, filters sparse
// users, pivots the vote relation into a dense page×user matrix, and
// mean-centers + L2-normalizes each user column.
package framebuilder

import (
	"context"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"

	"lotus/internal/columnar"
	"lotus/internal/lotuserr"
)

// Page is one row of the article table, as returned by lookups.
type Page struct {
	Pid  uint64
	Name string
	URL  string
	Tags []uint16
}

// Options configures frame construction.
type Options struct {
	MinVotes int
}

// DefaultOptions returns the documented default thresholds.
func DefaultOptions() Options {
	return Options{MinVotes: 10}
}

// Frame is the immutable, loaded-once state the Recommender queries
// against. Once built it is never mutated: the four persisted tables
// are treated as immutable for the lifetime of any Recommender
// instance.
type Frame struct {
	Tags []string

	articles        columnar.ArticleTable
	articleRowByPid map[uint64]int

	userNames   []string // sorted ascending, parallel to userUids/userURLs
	userUids    []uint64
	userURLs    []string

	colToUid []uint64 // col -> uid
	colOfUid map[uint64]int

	rowToPid []uint64 // matrix row -> pid
	pidToRow map[uint64]int

	// matrix[col] is the normalized rating column for user col, one
	// entry per row (real pages only; the synthetic zero row used to
	// compute the mean has already been dropped).
	matrix [][]float64

	middleNorms map[uint64]float64
}

// Load reads the four tables and builds a queryable Frame. Running Load
// twice on the same persisted tables yields byte-identical middle-norm
// values (see MiddleNorm) and bit-identical normalized columns, modulo float associativity in
// the summation, because every ordering decision below (user columns,
// matrix rows) is made by sorting on a stable key rather than on map
// iteration order.
func Load(ctx context.Context, paths columnar.Paths, opts Options) (*Frame, error) {
	if opts.MinVotes <= 0 {
		opts.MinVotes = DefaultOptions().MinVotes
	}

	articleTable, err := columnar.ReadArticles(paths.Articles)
	if err != nil {
		return nil, err
	}
	tagTable, err := columnar.ReadTags(paths.Tags)
	if err != nil {
		return nil, err
	}
	userTable, err := columnar.ReadUsers(paths.Users)
	if err != nil {
		return nil, err
	}
	voteTable, err := columnar.ReadVotes(paths.Votes)
	if err != nil {
		return nil, err
	}

	articleTable, articleRowByPid := dedupArticles(articleTable)

	pid, uid, rating := dedupVotes(voteTable)

	voteCount := make(map[uint64]int, len(uid))
	for _, u := range uid {
		voteCount[u]++
	}

	retained := make(map[uint64]bool)
	for u, c := range voteCount {
		if c >= opts.MinVotes {
			retained[u] = true
		}
	}

	userNames, userUids, userURLs := filterSortUsers(userTable, retained)

	cols := make([]uint64, 0, len(retained))
	for u := range retained {
		cols = append(cols, u)
	}
	sort.Slice(cols, func(i, j int) bool { return cols[i] < cols[j] })
	colOfUid := make(map[uint64]int, len(cols))
	for i, u := range cols {
		colOfUid[u] = i
	}

	rowPids := make(map[uint64]bool)
	for i := range pid {
		if retained[uid[i]] {
			rowPids[pid[i]] = true
		}
	}
	rows := make([]uint64, 0, len(rowPids))
	for p := range rowPids {
		rows = append(rows, p)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i] < rows[j] })
	pidToRow := make(map[uint64]int, len(rows))
	for i, p := range rows {
		pidToRow[p] = i
	}

	raw := make([][]float64, len(cols))
	for c := range raw {
		raw[c] = make([]float64, len(rows))
	}
	for i := range pid {
		if !retained[uid[i]] {
			continue
		}
		raw[colOfUid[uid[i]]][pidToRow[pid[i]]] = float64(rating[i])
	}

	matrix, middle, err := normalize(ctx, raw, cols)
	if err != nil {
		return nil, err
	}

	return &Frame{
		Tags:            tagTable.Tag,
		articles:        articleTable,
		articleRowByPid: articleRowByPid,
		userNames:       userNames,
		userUids:        userUids,
		userURLs:        userURLs,
		colToUid:        cols,
		colOfUid:        colOfUid,
		rowToPid:        rows,
		pidToRow:        pidToRow,
		matrix:          matrix,
		middleNorms:     middle,
	}, nil
}

func dedupArticles(t columnar.ArticleTable) (columnar.ArticleTable, map[uint64]int) {
	seen := make(map[uint64]int, len(t.Pid))
	out := columnar.ArticleTable{}
	for i, p := range t.Pid {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = len(out.Pid)
		out.Pid = append(out.Pid, p)
		out.Name = append(out.Name, t.Name[i])
		out.URL = append(out.URL, t.URL[i])
		out.Tags = append(out.Tags, t.Tags[i])
	}
	return out, seen
}

func dedupVotes(t columnar.VoteTable) ([]uint64, []uint64, []int8) {
	type key struct{ pid, uid uint64 }
	seen := make(map[key]bool, len(t.Pid))
	pid := make([]uint64, 0, len(t.Pid))
	uid := make([]uint64, 0, len(t.Pid))
	rating := make([]int8, 0, len(t.Pid))
	for i := range t.Pid {
		k := key{t.Pid[i], t.Uid[i]}
		if seen[k] {
			continue
		}
		seen[k] = true
		pid = append(pid, t.Pid[i])
		uid = append(uid, t.Uid[i])
		rating = append(rating, t.Rating[i])
	}
	return pid, uid, rating
}

func filterSortUsers(t columnar.UserTable, retained map[uint64]bool) (names []string, uids []uint64, urls []string) {
	type row struct {
		name, url string
		uid       uint64
	}
	var rows []row
	for i, u := range t.Uid {
		if retained[u] {
			rows = append(rows, row{t.Name[i], t.URL[i], u})
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].name < rows[j].name })

	names = make([]string, len(rows))
	uids = make([]uint64, len(rows))
	urls = make([]string, len(rows))
	for i, r := range rows {
		names[i] = r.name
		uids[i] = r.uid
		urls[i] = r.url
	}
	return names, uids, urls
}

// normalize appends a synthetic zero row, centers and L2-normalizes
// every column, records each column's middle_norms value, then drops
// the synthetic row. Each column is independent, so columns are
// normalized concurrently.
func normalize(ctx context.Context, raw [][]float64, cols []uint64) ([][]float64, map[uint64]float64, error) {
	out := make([][]float64, len(raw))
	middle := make([]float64, len(raw))

	g, _ := errgroup.WithContext(ctx)
	for c := range raw {
		c := c
		g.Go(func() error {
			n := float64(len(raw[c]) + 1) // +1 for the synthetic zero row
			sum := 0.0
			for _, v := range raw[c] {
				sum += v
			}
			mean := sum / n

			sumSq := mean * mean // synthetic row's centered value is -mean
			centered := make([]float64, len(raw[c]))
			for i, v := range raw[c] {
				cv := v - mean
				centered[i] = cv
				sumSq += cv * cv
			}

			norm := math.Sqrt(sumSq)
			col := make([]float64, len(centered))
			if norm > 0 {
				for i, cv := range centered {
					col[i] = cv / norm
				}
				middle[c] = -mean / norm
			}
			out[c] = col
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	middleByUID := make(map[uint64]float64, len(cols))
	for i, u := range cols {
		middleByUID[u] = middle[i]
	}
	return out, middleByUID, nil
}

// GetPageByPid returns the page row for pid.
func (f *Frame) GetPageByPid(pid uint64) (Page, error) {
	idx, ok := f.articleRowByPid[pid]
	if !ok {
		return Page{}, lotuserr.New(lotuserr.Bounds, "framebuilder.GetPageByPid", nil)
	}
	return Page{
		Pid:  f.articles.Pid[idx],
		Name: f.articles.Name[idx],
		URL:  f.articles.URL[idx],
		Tags: f.articles.Tags[idx],
	}, nil
}

// GetUserByUsername binary-searches the name-sorted user table.
func (f *Frame) GetUserByUsername(name string) (uint64, string, error) {
	i := sort.SearchStrings(f.userNames, name)
	if i >= len(f.userNames) || f.userNames[i] != name {
		return 0, "", lotuserr.New(lotuserr.Bounds, "framebuilder.GetUserByUsername", nil)
	}
	return f.userUids[i], f.userURLs[i], nil
}

// GetTagByID returns the tag string at index i.
func (f *Frame) GetTagByID(i uint16) (string, error) {
	if int(i) >= len(f.Tags) {
		return "", lotuserr.New(lotuserr.Bounds, "framebuilder.GetTagByID", nil)
	}
	return f.Tags[i], nil
}

// GetTags returns the whole tag table.
func (f *Frame) GetTags() []string { return f.Tags }

// GetUsersList returns every retained user's name, in sorted order.
func (f *Frame) GetUsersList() []string { return f.userNames }

// Column returns the normalized rating column for uid and whether uid
// is a retained user.
func (f *Frame) Column(uid uint64) ([]float64, bool) {
	col, ok := f.colOfUid[uid]
	if !ok {
		return nil, false
	}
	return f.matrix[col], true
}

// MiddleNorm returns middle_norms[uid] and whether uid is retained.
func (f *Frame) MiddleNorm(uid uint64) (float64, bool) {
	v, ok := f.middleNorms[uid]
	return v, ok
}

// RetainedUids returns every retained user's id, in ascending order
// (the same order backing the matrix's columns).
func (f *Frame) RetainedUids() []uint64 { return f.colToUid }

// RowPid returns the page_id backing matrix row i.
func (f *Frame) RowPid(i int) uint64 { return f.rowToPid[i] }

// NumRows is the number of rated pages in the matrix.
func (f *Frame) NumRows() int { return len(f.rowToPid) }
