package catalog

import (
	"sort"
	"strings"
	"testing"
)

func TestEscapeTitleRoundTrip(t *testing.T) {
	titles := []string{
		"Red Shoe",
		"Blue: Hat",
		"100% Wool Scarf",
		"tab\there",
		"plain",
		"",
	}
	for _, title := range titles {
		escaped := EscapeTitle(title)
		if got := UnescapeTitle(escaped); got != title {
			t.Fatalf("round trip %q: got %q via %q", title, got, escaped)
		}
	}
}

func TestEscapeTitleRemovesSeparator(t *testing.T) {
	escaped := EscapeTitle("a:b:c")
	if strings.Contains(escaped, indexSeparator) {
		t.Fatalf("escaped title still contains separator: %q", escaped)
	}
}

func TestEscapeTitlePreservesOrder(t *testing.T) {
	titles := []string{"Blue Hat", "Green Bag", "Red Shoe", "Red Shoes", "aardvark", "zebra"}
	escaped := make([]string, len(titles))
	for i, title := range titles {
		escaped[i] = EscapeTitle(title)
	}
	if !sort.StringsAreSorted(titles) {
		t.Fatalf("fixture must be sorted")
	}
	if !sort.StringsAreSorted(escaped) {
		t.Fatalf("escaping broke lexical order: %v", escaped)
	}
}

func TestIndexEntryAndTitlePrefix(t *testing.T) {
	entry := IndexEntry("Blue: Hat", "42")
	if got := TitlePrefix(entry); got != EscapeTitle("Blue: Hat") {
		t.Fatalf("unexpected prefix %q", got)
	}
	if !strings.HasSuffix(entry, ":42") {
		t.Fatalf("entry should end with separator and id: %q", entry)
	}
}
