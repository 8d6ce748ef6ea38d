package query

import (
	"errors"
	"testing"
	"time"
)

func TestCursor_RoundTrip(t *testing.T) {
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	rec := Record{"id": "c3", "createdAt": created, "rank": 7, "nom": "Zed"}
	orderBy := []Sort{{Field: "createdAt", Direction: Desc}, {Field: "rank"}, {Field: IDField}}

	c, err := CursorFor(rec, orderBy)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if c.IsZero() {
		t.Fatal("expected a non-empty cursor")
	}

	p, err := DecodeCursor(c)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if p.ID != "c3" {
		t.Errorf("expected id c3, got %q", p.ID)
	}
	if len(p.Values) != 3 {
		t.Fatalf("expected 3 values, got %d", len(p.Values))
	}
	ts, ok := p.Values[0].(time.Time)
	if !ok || !ts.Equal(created) {
		t.Errorf("expected time %v, got %#v", created, p.Values[0])
	}
	if p.Values[1] != int64(7) {
		t.Errorf("expected int64(7), got %#v", p.Values[1])
	}
	if p.Values[2] != "c3" {
		t.Errorf("expected id value c3, got %#v", p.Values[2])
	}
}

func TestDecodeCursor_Invalid(t *testing.T) {
	for _, c := range []Cursor{"", "!!!not-base64", "AAAA"} {
		if _, err := DecodeCursor(c); !errors.Is(err, ErrInvalidCursor) {
			t.Errorf("cursor %q: expected ErrInvalidCursor, got %v", c, err)
		}
	}
}
