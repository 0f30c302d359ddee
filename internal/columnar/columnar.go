// Package columnar persists and loads the four tables as whole files,
// one struct-of-slices per table, zstd-compressed, plus a small YAML
// manifest sidecar describing what was written (the matrix stays
// nameless and is keyed by a
// uid→column-index map built by the Frame Builder, not by this package).
package columnar

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
	"gopkg.in/yaml.v3"

	"lotus/internal/lotuserr"
)

const schemaVersion = 1

// ArticleTable is the `articles` schema: name:utf8, url:utf8, pid:u64,
// tags:list<u16>. Index i across all four slices describes one article.
type ArticleTable struct {
	Name []string
	URL  []string
	Pid  []uint64
	Tags [][]uint16
}

// TagTable is the `tags` schema: tag:utf8, row index is the tag-id.
type TagTable struct {
	Tag []string
}

// UserTable is the `users` schema: name:utf8, url:utf8, uid:u64.
type UserTable struct {
	Name []string
	URL  []string
	Uid  []uint64
}

// VoteTable is the `votes` schema: pid:u64, uid:u64, rating:i8.
type VoteTable struct {
	Pid    []uint64
	Uid    []uint64
	Rating []int8
}

// Manifest is the sidecar written next to the table files. cmd/server
// reads it at startup, before loading the tables, and only logs a warning
// when it is missing or has an unknown schema version; framebuilder.Load
// does not read it.
type Manifest struct {
	SchemaVersion int       `yaml:"schemaVersion"`
	ScrapeRunID   string    `yaml:"scrapeRunId"`
	WrittenAt     time.Time `yaml:"writtenAt"`
	Articles      int       `yaml:"articles"`
	Tags          int       `yaml:"tags"`
	Users         int       `yaml:"users"`
	Votes         int       `yaml:"votes"`
}

// Paths names the four table files plus the manifest, all rooted at dir.
type Paths struct {
	Articles string
	Tags     string
	Users    string
	Votes    string
	Manifest string
}

// NewPaths builds the default file layout under dir.
func NewPaths(dir string) Paths {
	return Paths{
		Articles: filepath.Join(dir, "articles.lotus"),
		Tags:     filepath.Join(dir, "tags.lotus"),
		Users:    filepath.Join(dir, "users.lotus"),
		Votes:    filepath.Join(dir, "votes.lotus"),
		Manifest: filepath.Join(dir, "manifest.yaml"),
	}
}

// Write persists all four tables and the manifest as whole files. No
// durability under crash is promised or needed, since nothing is
// written incrementally.
func Write(paths Paths, scrapeRunID string, articles ArticleTable, tags TagTable, users UserTable, votes VoteTable) error {
	if err := writeTable(paths.Articles, articles); err != nil {
		return err
	}
	if err := writeTable(paths.Tags, tags); err != nil {
		return err
	}
	if err := writeTable(paths.Users, users); err != nil {
		return err
	}
	if err := writeTable(paths.Votes, votes); err != nil {
		return err
	}

	manifest := Manifest{
		SchemaVersion: schemaVersion,
		ScrapeRunID:   scrapeRunID,
		WrittenAt:     time.Now().UTC(),
		Articles:      len(articles.Pid),
		Tags:          len(tags.Tag),
		Users:         len(users.Uid),
		Votes:         len(votes.Pid),
	}
	out, err := yaml.Marshal(manifest)
	if err != nil {
		return lotuserr.New(lotuserr.Write, "columnar.Write", err)
	}
	if err := os.WriteFile(paths.Manifest, out, 0o644); err != nil {
		return lotuserr.New(lotuserr.Write, "columnar.Write", err)
	}
	return nil
}

// ReadManifest loads the sidecar and rejects an unknown schema version.
func ReadManifest(path string) (Manifest, error) {
	var m Manifest
	raw, err := os.ReadFile(path)
	if err != nil {
		return m, lotuserr.New(lotuserr.Write, "columnar.ReadManifest", err)
	}
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return m, lotuserr.New(lotuserr.Write, "columnar.ReadManifest", err)
	}
	if m.SchemaVersion != schemaVersion {
		return m, lotuserr.New(lotuserr.Write, "columnar.ReadManifest", fmt.Errorf("unsupported schema version %d", m.SchemaVersion))
	}
	return m, nil
}

// ReadArticles, ReadTags, ReadUsers and ReadVotes decode one table file
// each. They are symmetric with Write: whole-file, no incremental read.
func ReadArticles(path string) (ArticleTable, error) {
	var t ArticleTable
	err := readTable(path, &t)
	return t, err
}

func ReadTags(path string) (TagTable, error) {
	var t TagTable
	err := readTable(path, &t)
	return t, err
}

func ReadUsers(path string) (UserTable, error) {
	var t UserTable
	err := readTable(path, &t)
	return t, err
}

func ReadVotes(path string) (VoteTable, error) {
	var t VoteTable
	err := readTable(path, &t)
	return t, err
}

func writeTable(path string, table any) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(table); err != nil {
		return lotuserr.New(lotuserr.Write, "columnar.writeTable", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return lotuserr.New(lotuserr.Write, "columnar.writeTable", err)
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f)
	if err != nil {
		return lotuserr.New(lotuserr.Write, "columnar.writeTable", err)
	}
	if _, err := enc.Write(buf.Bytes()); err != nil {
		enc.Close()
		return lotuserr.New(lotuserr.Write, "columnar.writeTable", err)
	}
	if err := enc.Close(); err != nil {
		return lotuserr.New(lotuserr.Write, "columnar.writeTable", err)
	}
	return nil
}

func readTable(path string, table any) error {
	f, err := os.Open(path)
	if err != nil {
		return lotuserr.New(lotuserr.Write, "columnar.readTable", err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return lotuserr.New(lotuserr.Write, "columnar.readTable", err)
	}
	defer dec.Close()

	raw, err := io.ReadAll(dec)
	if err != nil {
		return lotuserr.New(lotuserr.Write, "columnar.readTable", err)
	}
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(table); err != nil {
		return lotuserr.New(lotuserr.Write, "columnar.readTable", err)
	}
	return nil
}
