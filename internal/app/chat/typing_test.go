package chat

import "testing"

func TestMarkIsIdempotent(t *testing.T) {
	ts := NewTypingSet()

	ts.Mark("conn-1")
	ts.Mark("conn-1")

	if !ts.Contains("conn-1") {
		t.Fatal("expected conn-1 to be marked")
	}
	if ts.Len() != 1 {
		t.Fatalf("expected 1 member, got %d", ts.Len())
	}
}

func TestUnmarkRemovesMarker(t *testing.T) {
	ts := NewTypingSet()

	ts.Mark("conn-1")
	ts.Unmark("conn-1")

	if ts.Contains("conn-1") {
		t.Fatal("expected marker to be removed")
	}
}

func TestUnmarkAbsentIsNoop(t *testing.T) {
	ts := NewTypingSet()

	ts.Unmark("conn-1")

	if ts.Len() != 0 {
		t.Fatalf("expected empty set, got %d members", ts.Len())
	}
}
