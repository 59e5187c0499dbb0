package types

import "testing"

func TestNewPresentation_Empty(t *testing.T) {
	if p := NewPresentation(nil); p != nil {
		t.Fatalf("expected nil presentation, got %+v", p)
	}
}

func TestNewPresentation_SingleIsCard(t *testing.T) {
	p := NewPresentation([]StampRecord{{Name: "Penny Black"}})
	if p.Type != PresentationCard {
		t.Fatalf("type=%q", p.Type)
	}
	if len(p.Items) != 1 {
		t.Fatalf("items=%d", len(p.Items))
	}
}

func TestNewPresentation_MultiIsCarouselCapped(t *testing.T) {
	records := make([]StampRecord, 7)
	for i := range records {
		records[i] = StampRecord{Name: "stamp", IssueYear: "1900"}
	}
	p := NewPresentation(records)
	if p.Type != PresentationCarousel {
		t.Fatalf("type=%q", p.Type)
	}
	if len(p.Items) != CarouselMaxItems {
		t.Fatalf("items=%d, want %d", len(p.Items), CarouselMaxItems)
	}
}

func TestNewPresentation_PreservesOrder(t *testing.T) {
	p := NewPresentation([]StampRecord{{Name: "a"}, {Name: "b"}, {Name: "c"}})
	for i, want := range []string{"a", "b", "c"} {
		if p.Items[i].Name != want {
			t.Fatalf("items[%d]=%q, want %q", i, p.Items[i].Name, want)
		}
	}
}

func TestIdentified(t *testing.T) {
	cases := []struct {
		rec  StampRecord
		want bool
	}{
		{StampRecord{ID: "abc"}, false},
		{StampRecord{ID: "abc", Color: "red"}, false},
		{StampRecord{Name: "Penny Black"}, true},
		{StampRecord{Country: "UK"}, true},
		{StampRecord{IssueYear: "1840"}, true},
		{StampRecord{Name: "  "}, false},
	}
	for i, c := range cases {
		if got := c.rec.Identified(); got != c.want {
			t.Fatalf("case %d: got %v, want %v", i, got, c.want)
		}
	}
}

func TestNormalizeMessage(t *testing.T) {
	if got := NormalizeMessage("  Penny BLACK \n"); got != "penny black" {
		t.Fatalf("got %q", got)
	}
}
