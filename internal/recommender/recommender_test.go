package recommender

import (
	"context"
	"math"
	"testing"

	"lotus/internal/columnar"
	"lotus/internal/framebuilder"
	"lotus/internal/lotuserr"
)

// threePageFixture builds a small three-page, three-user fixture:
// pages {1,2,3} tagged {1,2}, {2,3}, {3}; U1:[-1,.,-1]
// U2:[+1,+1,+1] U3:[+1,-1,.].
func threePageFixture(dir string) columnar.Paths {
	paths := columnar.NewPaths(dir)

	articles := columnar.ArticleTable{
		Name: []string{"Page One", "Page Two", "Page Three"},
		URL:  []string{"page-one", "page-two", "page-three"},
		Pid:  []uint64{1, 2, 3},
		Tags: [][]uint16{{1, 2}, {2, 3}, {3}},
	}
	tags := columnar.TagTable{Tag: []string{"a", "b", "c", "d"}}
	users := columnar.UserTable{
		Name: []string{"u1", "u2", "u3"},
		URL:  []string{"u1", "u2", "u3"},
		Uid:  []uint64{1, 2, 3},
	}
	votes := columnar.VoteTable{
		Pid:    []uint64{1, 3, 1, 2, 3, 1, 2},
		Uid:    []uint64{1, 1, 2, 2, 2, 3, 3},
		Rating: []int8{-1, -1, 1, 1, 1, 1, -1},
	}

	if err := columnar.Write(paths, "fixture", articles, tags, users, votes); err != nil {
		panic(err)
	}
	return paths
}

func loadFixture(t *testing.T, minVotes int) *framebuilder.Frame {
	t.Helper()
	frame, err := framebuilder.Load(context.Background(), threePageFixture(t.TempDir()), framebuilder.Options{MinVotes: minVotes})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	return frame
}

func TestGetRecommendationsEmptyBansAndTags(t *testing.T) {
	frame := loadFixture(t, 2)
	rec := New(frame, Options{UsersToConsider: 30})

	recs, err := rec.GetRecommendationsByUID(context.Background(), 1, nil, nil)
	if err != nil {
		t.Fatalf("GetRecommendationsByUID returned error: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected exactly one recommendation, got %d: %v", len(recs), recs)
	}
	if recs[0].Pid != 2 {
		t.Fatalf("got pid %d, want 2 (the only page U1 has not rated)", recs[0].Pid)
	}
	if recs[0].Weight <= 0 {
		t.Fatalf("expected a positive weight, got %v", recs[0].Weight)
	}
}

func TestGetRecommendationsExternalBan(t *testing.T) {
	frame := loadFixture(t, 2)
	rec := New(frame, Options{UsersToConsider: 30})

	recs, err := rec.GetRecommendationsByUID(context.Background(), 1, nil, []uint64{2})
	if err != nil {
		t.Fatalf("GetRecommendationsByUID returned error: %v", err)
	}
	if len(recs) != 0 {
		t.Fatalf("expected an empty recommendation list, got %v", recs)
	}
}

func TestGetRecommendationsRequiredTag(t *testing.T) {
	frame := loadFixture(t, 2)
	rec := New(frame, Options{UsersToConsider: 30})

	// tag id 3 ("d" in the fixture's tag table) is in page 2's tag set {2,3}.
	recs, err := rec.GetRecommendationsByUID(context.Background(), 1, []uint16{3}, nil)
	if err != nil {
		t.Fatalf("GetRecommendationsByUID returned error: %v", err)
	}
	if len(recs) != 1 || recs[0].Pid != 2 {
		t.Fatalf("expected only page 2 to survive the tag filter, got %v", recs)
	}

	// tag id 0 ("a") is not in page 2's tag set, so it must be filtered out.
	recs, err = rec.GetRecommendationsByUID(context.Background(), 1, []uint16{0}, nil)
	if err != nil {
		t.Fatalf("GetRecommendationsByUID returned error: %v", err)
	}
	if len(recs) != 0 {
		t.Fatalf("expected an empty list when the required tag is absent, got %v", recs)
	}
}

func TestGetRecommendationsBelowMinVotesReturnsBoundsError(t *testing.T) {
	frame := loadFixture(t, 4)
	rec := New(frame, Options{UsersToConsider: 30})

	_, err := rec.GetRecommendationsByUID(context.Background(), 1, nil, nil)
	if err == nil {
		t.Fatal("expected a bounds error when no users are retained")
	}
	if !lotuserr.Is(err, lotuserr.Bounds) {
		t.Fatalf("expected a Bounds error, got %v", err)
	}
}

// duplicateFixture gives uid 1 and uid 4 identical votes over a handful of
// pages, and spreads a large number of filler pages across uid 2 so that
// the pair's cosine similarity (computed on stored, non-synthetic rows)
// clears the duplicateSimilarity threshold.
func duplicateFixture(dir string, includeDuplicate bool) columnar.Paths {
	paths := columnar.NewPaths(dir)

	const fillerPages = 48
	pid := []uint64{1, 2}
	name := []string{"Page One", "Page Two"}
	url := []string{"page-one", "page-two"}
	tagsCol := [][]uint16{nil, nil}
	for i := 0; i < fillerPages; i++ {
		pid = append(pid, uint64(3+i))
		name = append(name, "Filler")
		url = append(url, "filler")
		tagsCol = append(tagsCol, nil)
	}
	articles := columnar.ArticleTable{Name: name, URL: url, Pid: pid, Tags: tagsCol}
	tags := columnar.TagTable{}

	userNames := []string{"u1", "u2"}
	userURLs := []string{"u1", "u2"}
	userUids := []uint64{1, 2}
	if includeDuplicate {
		userNames = append(userNames, "u4")
		userURLs = append(userURLs, "u4")
		userUids = append(userUids, 4)
	}
	users := columnar.UserTable{Name: userNames, URL: userURLs, Uid: userUids}

	var votes columnar.VoteTable
	votes.Pid = append(votes.Pid, 1, 2)
	votes.Uid = append(votes.Uid, 1, 1)
	votes.Rating = append(votes.Rating, -1, -1)
	if includeDuplicate {
		votes.Pid = append(votes.Pid, 1, 2)
		votes.Uid = append(votes.Uid, 4, 4)
		votes.Rating = append(votes.Rating, -1, -1)
	}
	for i := 0; i < fillerPages; i++ {
		votes.Pid = append(votes.Pid, uint64(3+i))
		votes.Uid = append(votes.Uid, 2)
		votes.Rating = append(votes.Rating, 1)
	}

	if err := columnar.Write(paths, "fixture", articles, tags, users, votes); err != nil {
		panic(err)
	}
	return paths
}

func TestDuplicateUserDoesNotContributeToScoring(t *testing.T) {
	ctx := context.Background()

	withDup, err := framebuilder.Load(ctx, duplicateFixture(t.TempDir(), true), framebuilder.Options{MinVotes: 2})
	if err != nil {
		t.Fatalf("Load (with duplicate) returned error: %v", err)
	}
	withoutDup, err := framebuilder.Load(ctx, duplicateFixture(t.TempDir(), false), framebuilder.Options{MinVotes: 2})
	if err != nil {
		t.Fatalf("Load (without duplicate) returned error: %v", err)
	}

	recWith := New(withDup, Options{UsersToConsider: 30})
	recWithout := New(withoutDup, Options{UsersToConsider: 30})

	gotWith, err := recWith.GetRecommendationsByUID(ctx, 1, nil, nil)
	if err != nil {
		t.Fatalf("GetRecommendationsByUID (with duplicate) returned error: %v", err)
	}
	gotWithout, err := recWithout.GetRecommendationsByUID(ctx, 1, nil, nil)
	if err != nil {
		t.Fatalf("GetRecommendationsByUID (without duplicate) returned error: %v", err)
	}

	if len(gotWith) != len(gotWithout) {
		t.Fatalf("recommendation count changed when the near-duplicate user was added: %d vs %d", len(gotWith), len(gotWithout))
	}
	for i := range gotWith {
		if gotWith[i].Pid != gotWithout[i].Pid {
			t.Fatalf("pid[%d] differs: %d vs %d", i, gotWith[i].Pid, gotWithout[i].Pid)
		}
		if math.Abs(gotWith[i].Weight-gotWithout[i].Weight) > 1e-9 {
			t.Fatalf("weight[%d] differs: %v vs %v, the duplicate user must not contribute", i, gotWith[i].Weight, gotWithout[i].Weight)
		}
	}
}
