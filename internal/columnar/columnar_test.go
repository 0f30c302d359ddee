package columnar

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	paths := NewPaths(dir)

	articles := ArticleTable{
		Name: []string{"SCP-173", "SCP-682"},
		URL:  []string{"scp-173", "scp-682"},
		Pid:  []uint64{1, 2},
		Tags: [][]uint16{{0, 1}, {1}},
	}
	tags := TagTable{Tag: []string{"scp", "keter"}}
	users := UserTable{
		Name: []string{"alice"},
		URL:  []string{"alice"},
		Uid:  []uint64{7},
	}
	votes := VoteTable{
		Pid:    []uint64{1, 2},
		Uid:    []uint64{7, 7},
		Rating: []int8{1, -1},
	}

	if err := Write(paths, "run-1", articles, tags, users, votes); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}

	manifest, err := ReadManifest(paths.Manifest)
	if err != nil {
		t.Fatalf("ReadManifest returned error: %v", err)
	}
	if manifest.ScrapeRunID != "run-1" {
		t.Fatalf("got ScrapeRunID %q, want run-1", manifest.ScrapeRunID)
	}
	if manifest.Articles != 2 || manifest.Tags != 2 || manifest.Users != 1 || manifest.Votes != 2 {
		t.Fatalf("unexpected manifest counts: %+v", manifest)
	}

	gotArticles, err := ReadArticles(paths.Articles)
	if err != nil {
		t.Fatalf("ReadArticles returned error: %v", err)
	}
	if len(gotArticles.Pid) != 2 || gotArticles.Name[0] != "SCP-173" {
		t.Fatalf("unexpected articles: %+v", gotArticles)
	}

	gotVotes, err := ReadVotes(paths.Votes)
	if err != nil {
		t.Fatalf("ReadVotes returned error: %v", err)
	}
	if len(gotVotes.Pid) != 2 || gotVotes.Rating[1] != -1 {
		t.Fatalf("unexpected votes: %+v", gotVotes)
	}
}

func TestReadManifestRejectsUnknownVersion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "manifest.yaml")
	contents := "schemaVersion: 99\nscrapeRunId: x\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("failed to seed manifest: %v", err)
	}
	if _, err := ReadManifest(path); err == nil {
		t.Fatal("expected an error for an unsupported schema version")
	}
}
