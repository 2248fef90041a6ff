package docstore

import (
	"context"
	"errors"
	"testing"
	"time"
)

// ──────────────────────────────────────────────
// 1. CRUD AND FIELD TRANSFORMS
// ──────────────────────────────────────────────

func TestMemoryStore_GetMissing_ReturnsNotFound(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	_, err := store.Get(context.Background(), "users", "nobody")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_UpdateMissing_ReturnsNotFound(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	err := store.Update(context.Background(), "users", "nobody", []Update{{Path: "name", Value: "x"}})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_DottedPathUpdate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Set(ctx, "users", "u1", Document{"location": map[string]interface{}{"lat": 1.0, "isSharing": true}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := store.Update(ctx, "users", "u1", []Update{
		{Path: "location.isSharing", Value: false},
		{Path: "unreadCounts.u2", Value: Increment(2)},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snap, _ := store.Get(ctx, "users", "u1")
	if v, _ := Lookup(snap.Data, "location.isSharing"); v != false {
		t.Errorf("expected isSharing false, got %v", v)
	}
	if v, _ := Lookup(snap.Data, "location.lat"); v != 1.0 {
		t.Errorf("expected lat to be untouched, got %v", v)
	}
	if v, _ := Lookup(snap.Data, "unreadCounts.u2"); v != int64(2) {
		t.Errorf("expected counter 2, got %v", v)
	}
}

func TestMemoryStore_ArrayUnion_IsDuplicateSafe(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore()
	_ = store.Set(ctx, "users", "u1", Document{})

	entry := map[string]interface{}{"id": "n1", "title": "Free ride"}
	for i := 0; i < 3; i++ {
		if err := store.Update(ctx, "users", "u1", []Update{{Path: "notifications", Value: ArrayUnion(entry)}}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	snap, _ := store.Get(ctx, "users", "u1")
	arr, _ := snap.Data["notifications"].([]interface{})
	if len(arr) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(arr))
	}
}

func TestMemoryStore_DeleteFieldAndArrayRemove(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore()
	_ = store.Set(ctx, "users", "u1", Document{"tags": []string{"a", "b", "a"}, "temp": 1})

	err := store.Update(ctx, "users", "u1", []Update{
		{Path: "tags", Value: ArrayRemove("a")},
		{Path: "temp", Value: Delete},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snap, _ := store.Get(ctx, "users", "u1")
	if _, ok := snap.Data["temp"]; ok {
		t.Error("expected temp to be deleted")
	}
	tags, _ := snap.Data["tags"].([]interface{})
	if len(tags) != 1 || tags[0] != "b" {
		t.Errorf("expected [b], got %v", tags)
	}
}

func TestMemoryStore_ReturnedDocumentsAreCopies(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore()
	_ = store.Set(ctx, "users", "u1", Document{"name": "Ada"})

	snap, _ := store.Get(ctx, "users", "u1")
	snap.Data["name"] = "changed"

	again, _ := store.Get(ctx, "users", "u1")
	if again.Data["name"] != "Ada" {
		t.Errorf("expected stored document to be unaffected, got %v", again.Data["name"])
	}
}

// ──────────────────────────────────────────────
// 2. QUERIES
// ──────────────────────────────────────────────

func TestMemoryStore_Query_FiltersOrdersAndLimits(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	_ = store.Set(ctx, "chats", "c1", Document{"participants": []string{"a", "b"}, "lastActivity": base})
	_ = store.Set(ctx, "chats", "c2", Document{"participants": []string{"a", "c"}, "lastActivity": base.Add(time.Hour)})
	_ = store.Set(ctx, "chats", "c3", Document{"participants": []string{"b", "c"}, "lastActivity": base.Add(2 * time.Hour)})

	snaps, err := store.Query(ctx, Collection("chats").
		Where("participants", OpArrayContains, "a").
		Order("lastActivity", Desc))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snaps) != 2 || snaps[0].ID != "c2" || snaps[1].ID != "c1" {
		t.Fatalf("expected [c2 c1], got %v", ids(snaps))
	}

	snaps, _ = store.Query(ctx, Collection("chats").Where("lastActivity", OpLess, base.Add(90*time.Minute)).Take(1))
	if len(snaps) != 1 || snaps[0].ID != "c1" {
		t.Fatalf("expected [c1], got %v", ids(snaps))
	}
}

func TestMemoryStore_Query_RejectsUnknownOperator(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	_, err := store.Query(context.Background(), Collection("users").Where("name", Op("!="), "x"))
	if err == nil {
		t.Fatal("expected error for unsupported operator")
	}
}

func TestMemoryStore_Subcollections_AreIsolated(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore()
	_ = store.Set(ctx, SubcollectionPath("chats", "c1", "messages"), "m1", Document{"text": "hi"})
	_ = store.Set(ctx, SubcollectionPath("chats", "c2", "messages"), "m2", Document{"text": "yo"})

	snaps, _ := store.Query(ctx, Collection(SubcollectionPath("chats", "c1", "messages")))
	if len(snaps) != 1 || snaps[0].ID != "m1" {
		t.Fatalf("expected only m1, got %v", ids(snaps))
	}
}

// ──────────────────────────────────────────────
// 3. TRANSACTIONS AND BATCHES
// ──────────────────────────────────────────────

func TestMemoryStore_Transaction_RollsBackOnError(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore()
	_ = store.Set(ctx, "users", "u1", Document{"points": 1})

	boom := errors.New("boom")
	err := store.RunTransaction(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.Update("users", "u1", []Update{{Path: "points", Value: 99}}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	snap, _ := store.Get(ctx, "users", "u1")
	if snap.Data["points"] != int64(1) {
		t.Errorf("expected points to stay 1, got %v", snap.Data["points"])
	}
}

func TestMemoryStore_Transaction_FailedUpdateAbortsAllWrites(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore()

	err := store.RunTransaction(ctx, func(ctx context.Context, tx Tx) error {
		_ = tx.Set("users", "u1", Document{"name": "Ada"})
		return tx.Update("users", "missing", []Update{{Path: "x", Value: 1}})
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.Get(ctx, "users", "u1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected u1 not to be written, got %v", err)
	}
}

func TestMemoryStore_BatchDelete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore()
	for _, id := range []string{"a", "b", "c"} {
		_ = store.Set(ctx, "chats", id, Document{})
	}

	batch := store.Batch()
	batch.Delete("chats", "a")
	batch.Delete("chats", "c")
	batch.Delete("chats", "never-existed")
	if batch.Len() != 3 {
		t.Errorf("expected 3 queued writes, got %d", batch.Len())
	}
	if err := batch.Commit(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snaps, _ := store.Query(ctx, Collection("chats"))
	if len(snaps) != 1 || snaps[0].ID != "b" {
		t.Fatalf("expected only b to remain, got %v", ids(snaps))
	}
}

// ──────────────────────────────────────────────
// 4. SUBSCRIPTIONS
// ──────────────────────────────────────────────

func TestMemoryStore_Subscribe_DeliversInitialAndLatestState(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore()
	_ = store.Set(ctx, "trips", "t1", Document{"status": "active"})

	sub, err := store.Subscribe(ctx, "trips", "t1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer sub.Stop()

	ev := next(t, sub)
	if ev.Doc == nil || !ev.Doc.Exists || ev.Doc.Data["status"] != "active" {
		t.Fatalf("expected initial active snapshot, got %+v", ev.Doc)
	}

	_ = store.Update(ctx, "trips", "t1", []Update{{Path: "status", Value: "completed"}})
	ev = next(t, sub)
	if ev.Doc.Data["status"] != "completed" {
		t.Fatalf("expected completed snapshot, got %v", ev.Doc.Data["status"])
	}

	_ = store.Delete(ctx, "trips", "t1")
	ev = next(t, sub)
	if ev.Doc.Exists {
		t.Fatal("expected snapshot of deleted document")
	}
}

func TestMemoryStore_SubscribeQuery_SeesNewDocuments(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore()
	sub, err := store.SubscribeQuery(ctx, Collection("chats").Where("participants", OpArrayContains, "a"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer sub.Stop()

	if ev := next(t, sub); len(ev.Docs) != 0 {
		t.Fatalf("expected empty initial result, got %d", len(ev.Docs))
	}

	_ = store.Set(ctx, "chats", "c1", Document{"participants": []string{"a", "b"}})
	if ev := next(t, sub); len(ev.Docs) != 1 {
		t.Fatalf("expected 1 document, got %d", len(ev.Docs))
	}
}

func TestMemoryStore_Stop_IsIdempotentAndClosesEvents(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	sub, _ := store.Subscribe(context.Background(), "users", "u1")
	sub.Stop()
	sub.Stop()

	for range sub.Events() {
	}

	store.mu.RLock()
	defer store.mu.RUnlock()
	if len(store.watchers) != 0 {
		t.Errorf("expected watcher to be released, %d left", len(store.watchers))
	}
}

func next(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		if !ok {
			t.Fatal("subscription closed unexpectedly")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
	return Event{}
}

func ids(snaps []*Snapshot) []string {
	out := make([]string, len(snaps))
	for i, s := range snaps {
		out[i] = s.ID
	}
	return out
}
