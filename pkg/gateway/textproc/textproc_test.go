package textproc

import (
	"strings"
	"testing"
)

func TestClean_StripsCitationMarkers(t *testing.T) {
	in := "The Penny Black was issued in 1840.【4:0†stamps_catalog.json】"
	out := Clean(in)
	if strings.Contains(out, "【") || strings.Contains(out, "catalog.json") {
		t.Fatalf("markers survived: %q", out)
	}
	if !strings.Contains(out, "Penny Black was issued in 1840") {
		t.Fatalf("prose damaged: %q", out)
	}
}

func TestClean_StripsStorageURLs(t *testing.T) {
	in := "See https://stamps.blob.core.windows.net/scans/pb.png for the scan."
	out := Clean(in)
	if strings.Contains(out, "blob.core.windows.net") {
		t.Fatalf("storage URL survived: %q", out)
	}
}

func TestClean_ReplacesInternalJargon(t *testing.T) {
	in := "I checked the vector store via file_search."
	out := Clean(in)
	if strings.Contains(strings.ToLower(out), "vector store") {
		t.Fatalf("jargon survived: %q", out)
	}
	if !strings.Contains(out, "knowledge base") {
		t.Fatalf("expected replacement, got %q", out)
	}
}

func TestClean_Idempotent(t *testing.T) {
	cases := []string{
		"Plain prose stays put.",
		"The Penny Black【1:2†catalog.json】 is from stamps.json, found via file_search.",
		"Issued  in   1840 , rare.",
		"",
	}
	for _, in := range cases {
		once := Clean(in)
		twice := Clean(once)
		if once != twice {
			t.Fatalf("not idempotent for %q: %q != %q", in, once, twice)
		}
	}
}

func TestExtractStamp_FromProse(t *testing.T) {
	text := `The "Penny Black" was issued by the United Kingdom in 1840. ` +
		`It is a black stamp with a face value of 1 penny. ` +
		`Image: https://example.com/penny-black.jpg`

	rec, ok := ExtractStamp(text)
	if !ok {
		t.Fatal("expected an identified record")
	}
	if rec.Name != "Penny Black" {
		t.Fatalf("name=%q", rec.Name)
	}
	if rec.Country != "United Kingdom" {
		t.Fatalf("country=%q", rec.Country)
	}
	if rec.IssueYear != "1840" {
		t.Fatalf("year=%q", rec.IssueYear)
	}
	if rec.Color != "black" {
		t.Fatalf("color=%q", rec.Color)
	}
	if rec.ImageURL != "https://example.com/penny-black.jpg" {
		t.Fatalf("imageURL=%q", rec.ImageURL)
	}
}

func TestExtractStamp_NothingIdentifying(t *testing.T) {
	if _, ok := ExtractStamp("I do not know anything about that."); ok {
		t.Fatal("expected no record from empty prose")
	}
}
