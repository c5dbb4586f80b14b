package memory

import "testing"

func TestFeedStoreLifecycle(t *testing.T) {
	store := NewFeedStore()

	feed := store.GetOrCreate("8A")
	if feed == nil {
		t.Fatalf("expected feed")
	}
	if again := store.GetOrCreate("8A"); again != feed {
		t.Fatalf("expected the same feed for a section")
	}
	if _, ok := store.Get("8A"); !ok {
		t.Fatalf("expected feed present")
	}

	store.DeleteIfEmpty("8A")
	if _, ok := store.Get("8A"); ok {
		t.Fatalf("expected feed removed when empty")
	}
}
