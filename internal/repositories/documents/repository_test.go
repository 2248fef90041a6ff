package documents

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"carhire/internal/models"
	"carhire/internal/repositories/interfaces"
	"carhire/pkg/docstore"
)

func TestUserRepository_GetMissing_IsNotFound(t *testing.T) {
	t.Parallel()

	repo := NewUserRepository(docstore.NewMemoryStore())
	_, err := repo.GetByID(context.Background(), "nobody")
	if !errors.Is(err, interfaces.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if !errors.Is(err, docstore.ErrNotFound) {
		t.Errorf("expected the store error to stay reachable, got %v", err)
	}
	if got := err.Error(); strings.Count(got, "document not found") != 1 {
		t.Errorf("expected the cause once, got %q", got)
	}
}

func TestUserRepository_AddNotification_IsSetUnion(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewUserRepository(docstore.NewMemoryStore())
	_ = repo.Create(ctx, &models.User{ID: "u1", Name: "Ada"})

	n := models.Notification{ID: "ride-1", Type: models.NotificationReferralReward, Title: "Free ride",
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	for i := 0; i < 2; i++ {
		if err := repo.AddNotification(ctx, "u1", n); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	u, _ := repo.GetByID(ctx, "u1")
	if len(u.Notifications) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(u.Notifications))
	}
}

func TestUserRepository_Watch_StopIsIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewUserRepository(docstore.NewMemoryStore())
	_ = repo.Create(ctx, &models.User{ID: "u1", Name: "Ada"})

	w, err := repo.Watch(ctx, "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	select {
	case ch := <-w.Changes():
		if !ch.Exists || ch.Value.Name != "Ada" {
			t.Errorf("expected Ada, got %+v", ch)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for initial snapshot")
	}
	w.Stop()
	w.Stop()
}

func TestChatRepository_DeleteThreads_RemovesMessages(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := docstore.NewMemoryStore()
	repo := NewChatRepository(store)

	for _, id := range []string{"t1", "t2"} {
		_ = repo.CreateThread(ctx, &models.ChatThread{ID: id, Participants: []string{"a", "b"}})
		_ = store.Set(ctx, MessagesCollection(id), "m1", EncodeMessage(&models.Message{SenderID: "a", Text: "hi"}))
	}

	if err := repo.DeleteThreads(ctx, []string{"t1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := repo.GetThread(ctx, "t1"); !errors.Is(err, interfaces.ErrNotFound) {
		t.Errorf("expected t1 to be gone, got %v", err)
	}
	if msgs, _ := repo.GetMessages(ctx, "t1"); len(msgs) != 0 {
		t.Errorf("expected t1 messages to be gone, got %d", len(msgs))
	}
	if msgs, _ := repo.GetMessages(ctx, "t2"); len(msgs) != 1 {
		t.Errorf("expected t2 to keep its message, got %d", len(msgs))
	}
}

func TestChatRepository_FindInactiveSince(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewChatRepository(docstore.NewMemoryStore())
	now := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)
	_ = repo.CreateThread(ctx, &models.ChatThread{ID: "old", LastActivity: now.Add(-8 * 24 * time.Hour)})
	_ = repo.CreateThread(ctx, &models.ChatThread{ID: "recent", LastActivity: now.Add(-6 * 24 * time.Hour)})

	threads, err := repo.FindInactiveSince(ctx, now.Add(-7*24*time.Hour), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(threads) != 1 || threads[0].ID != "old" {
		t.Fatalf("expected only old, got %d threads", len(threads))
	}
}

func TestReferralCodeRepository_Reserve(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewReferralCodeRepository(docstore.NewMemoryStore())

	if err := repo.Reserve(ctx, &models.ReferralCode{Code: "ABCD2345", UserID: "u1"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := repo.Reserve(ctx, &models.ReferralCode{Code: "ABCD2345", UserID: "u1"}); err != nil {
		t.Errorf("expected re-reserving own code to succeed, got %v", err)
	}
	if err := repo.Reserve(ctx, &models.ReferralCode{Code: "ABCD2345", UserID: "u2"}); !errors.Is(err, interfaces.ErrCodeTaken) {
		t.Errorf("expected ErrCodeTaken, got %v", err)
	}

	code, err := repo.Get(ctx, "ABCD2345")
	if err != nil || code.UserID != "u1" {
		t.Fatalf("expected u1, got %+v (%v)", code, err)
	}
}
