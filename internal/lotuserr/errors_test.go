package lotuserr

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsMatchesDirectKind(t *testing.T) {
	err := New(Bounds, "frame.GetPageByPid", nil)
	if !Is(err, Bounds) {
		t.Fatal("expected Is(err, Bounds) to be true")
	}
	if Is(err, Parse) {
		t.Fatal("expected Is(err, Parse) to be false")
	}
}

func TestIsUnwrapsWrappedErrors(t *testing.T) {
	inner := New(Transport, "fetch.bodyWithRetry", errors.New("timeout"))
	wrapped := fmt.Errorf("scrapepool.scrapeArticle: %w", inner)
	if !Is(wrapped, Transport) {
		t.Fatal("expected Is to see through fmt.Errorf wrapping")
	}
}

func TestErrorMessageIncludesOpAndKind(t *testing.T) {
	err := New(Parse, "extract.PageID", errors.New("pageId literal not found"))
	got := err.Error()
	want := "extract.PageID: parse: pageId literal not found"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestKindString(t *testing.T) {
	cases := map[Kind]string{
		Parse:     "parse",
		Transport: "transport",
		Write:     "write",
		Message:   "message",
		Bounds:    "bounds",
	}
	for k, want := range cases {
		if got := k.String(); got != want {
			t.Fatalf("Kind(%d).String() = %q, want %q", k, got, want)
		}
	}
}
