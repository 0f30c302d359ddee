// Package recommender computes user similarity, top-K neighbor
// selection, weighted page scoring and tag/ban filtering.
package recommender

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"lotus/internal/framebuilder"
	"lotus/internal/lotuserr"
)

const (
	// duplicateSimilarity is the threshold above which a neighbor is
	// treated as an exact duplicate (bot or alt account) and dropped.
	duplicateSimilarity = 0.999
	// uncertainty is the float tolerance used to decide whether a user
	// has already rated a page.
	uncertainty = 1e-6
	// maxSimilarityWorkers bounds the per-query neighbor fan-out so a
	// frame with a very large retained-user count doesn't spawn one
	// goroutine per user.
	maxSimilarityWorkers = 32
)

// Options configures query behavior.
type Options struct {
	UsersToConsider int
}

// DefaultOptions returns the documented default thresholds.
func DefaultOptions() Options {
	return Options{UsersToConsider: 30}
}

// Recommendation is one scored page.
type Recommendation struct {
	Pid    uint64
	Weight float64
}

// Recommender answers top-K recommendation queries against a loaded
// Frame. A Recommender never suspends: every query executes to
// completion on the calling goroutine tree, synchronously.
type Recommender struct {
	frame *framebuilder.Frame
	opts  Options
}

// New wraps a loaded Frame for querying.
func New(frame *framebuilder.Frame, opts Options) *Recommender {
	if opts.UsersToConsider <= 0 {
		opts = DefaultOptions()
	}
	return &Recommender{frame: frame, opts: opts}
}

type neighbor struct {
	uid        uint64
	similarity float64
}

// GetRecommendationsByUID answers a single query.
func (r *Recommender) GetRecommendationsByUID(ctx context.Context, uid uint64, requiredTags []uint16, externalBans []uint64) ([]Recommendation, error) {
	queryCol, ok := r.frame.Column(uid)
	if !ok {
		return nil, lotuserr.New(lotuserr.Bounds, "recommender.GetRecommendationsByUID", nil)
	}
	middle, _ := r.frame.MiddleNorm(uid)

	neighbors, err := r.similarity(ctx, uid, queryCol)
	if err != nil {
		return nil, err
	}

	sort.Slice(neighbors, func(i, j int) bool { return neighbors[i].similarity > neighbors[j].similarity })

	kept := make([]neighbor, 0, r.opts.UsersToConsider)
	for _, n := range neighbors {
		if n.similarity >= duplicateSimilarity {
			continue
		}
		kept = append(kept, n)
		if len(kept) == r.opts.UsersToConsider {
			break
		}
	}

	numRows := r.frame.NumRows()
	weights := make([]float64, numRows)
	for _, n := range kept {
		col, ok := r.frame.Column(n.uid)
		if !ok {
			continue
		}
		for row, v := range col {
			weights[row] += n.similarity * v
		}
	}

	banSet := make(map[uint64]bool, len(externalBans))
	for _, b := range externalBans {
		banSet[b] = true
	}

	recs := make([]Recommendation, 0, numRows)
	for row := 0; row < numRows; row++ {
		pid := r.frame.RowPid(row)

		queried := queryCol[row]
		if queried > middle+uncertainty || queried < middle-uncertainty {
			continue
		}
		if banSet[pid] {
			continue
		}
		if len(requiredTags) > 0 {
			page, err := r.frame.GetPageByPid(pid)
			if err != nil {
				continue
			}
			if !supersetOf(page.Tags, requiredTags) {
				continue
			}
		}

		recs = append(recs, Recommendation{Pid: pid, Weight: weights[row]})
	}

	sort.Slice(recs, func(i, j int) bool { return recs[i].Weight > recs[j].Weight })
	return recs, nil
}

// similarity computes sim[v] = column(uid) . column(v) for every other
// retained user v, bounded across a worker pool of at most
// maxSimilarityWorkers goroutines.
func (r *Recommender) similarity(ctx context.Context, uid uint64, queryCol []float64) ([]neighbor, error) {
	uids := r.frame.RetainedUids()
	results := make([]neighbor, len(uids))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(maxSimilarityWorkers)
	for i, v := range uids {
		i, v := i, v
		if v == uid {
			results[i] = neighbor{uid: v, similarity: -1} // excluded below
			continue
		}
		g.Go(func() error {
			col, ok := r.frame.Column(v)
			if !ok {
				return nil
			}
			results[i] = neighbor{uid: v, similarity: dot(queryCol, col)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]neighbor, 0, len(results))
	for _, n := range results {
		if n.uid == uid {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

func dot(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func supersetOf(tags []uint16, required []uint16) bool {
	set := make(map[uint16]struct{}, len(tags))
	for _, t := range tags {
		set[t] = struct{}{}
	}
	for _, req := range required {
		if _, ok := set[req]; !ok {
			return false
		}
	}
	return true
}
