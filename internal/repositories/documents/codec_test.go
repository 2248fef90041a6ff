package documents

import (
	"context"
	"testing"
	"time"

	"carhire/internal/models"
	"carhire/pkg/docstore"
)

// ──────────────────────────────────────────────
// 1. LEGACY SHAPES
// ──────────────────────────────────────────────

func TestDecodeLocation_AcceptsLegacyKeys(t *testing.T) {
	t.Parallel()

	loc := DecodeLocation(map[string]interface{}{
		"latitude":  12.5,
		"lon":       77.25,
		"isSharing": true,
	})
	if loc == nil || !loc.HasCoordinates {
		t.Fatalf("expected coordinates, got %+v", loc)
	}
	if loc.Lat != 12.5 || loc.Lng != 77.25 {
		t.Errorf("expected 12.5/77.25, got %v/%v", loc.Lat, loc.Lng)
	}
	if !loc.IsLive() {
		t.Error("expected live location")
	}
}

func TestDecodeLocation_WithoutLatitudeIsNotLive(t *testing.T) {
	t.Parallel()

	loc := DecodeLocation(map[string]interface{}{"lng": 1.0, "isSharing": true})
	if loc.HasCoordinates {
		t.Fatal("expected no coordinates without a latitude key")
	}
	if loc.Live() != nil {
		t.Error("expected Live to return nil")
	}
}

func TestDecodeLocation_NotSharingIsNotLive(t *testing.T) {
	t.Parallel()

	loc := DecodeLocation(map[string]interface{}{"lat": 1.0, "lng": 2.0, "isSharing": false})
	if loc.Live() != nil {
		t.Error("expected stale coordinates to be hidden")
	}
}

func TestInstant_AcceptsStoredTimeShapes(t *testing.T) {
	t.Parallel()

	want := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cases := map[string]interface{}{
		"native":  want,
		"rfc3339": "2026-03-01T12:00:00Z",
		"millis":  want.UnixMilli(),
		"float":   float64(want.UnixMilli()),
		"export":  map[string]interface{}{"seconds": want.Unix(), "nanoseconds": 0},
	}
	for name, raw := range cases {
		got, ok := instant(raw)
		if !ok || !got.Equal(want) {
			t.Errorf("%s: expected %v, got %v (ok=%v)", name, want, got, ok)
		}
	}
	if _, ok := instant("not a time"); ok {
		t.Error("expected garbage to be rejected")
	}
}

func TestDecodeUser_Version1Document(t *testing.T) {
	t.Parallel()

	u := DecodeUser(&docstore.Snapshot{ID: "user-1", Exists: true, Data: docstore.Document{
		"displayName":    "Ada",
		"referralPoints": "18",
		"referrals": []interface{}{
			map[string]interface{}{"userId": "u2", "date": "2026-01-01T00:00:00Z", "points": int64(2), "status": "completed"},
		},
	}})
	if u.Name != "Ada" {
		t.Errorf("expected displayName fallback, got %q", u.Name)
	}
	if u.SchemaVersion != 1 {
		t.Errorf("expected schema version 1, got %d", u.SchemaVersion)
	}
	if u.Referral.Points != 18 {
		t.Errorf("expected 18 points, got %d", u.Referral.Points)
	}
	if u.Referral.Count != 1 {
		t.Errorf("expected count derived from referrals, got %d", u.Referral.Count)
	}
}

func TestDecodeThread_EmbeddedMessagesDeriveCounters(t *testing.T) {
	t.Parallel()

	thread := DecodeThread(&docstore.Snapshot{ID: "a_b_car", Exists: true, Data: docstore.Document{
		"participants": []interface{}{"a", "b"},
		"messages": []interface{}{
			map[string]interface{}{"senderId": "a", "text": "hi", "read": false},
			map[string]interface{}{"senderId": "a", "text": "there?", "read": false},
			map[string]interface{}{"senderId": "b", "text": "yes", "read": true},
		},
	}})
	if got := thread.UnreadFor("b"); got != 2 {
		t.Errorf("expected 2 unread for b, got %d", got)
	}
	if got := thread.UnreadFor("a"); got != 0 {
		t.Errorf("expected 0 unread for a, got %d", got)
	}
	if thread.LastMessage == nil || thread.LastMessage.Text != "yes" {
		t.Errorf("expected preview of the last message, got %+v", thread.LastMessage)
	}
}

func TestDecode_MissingSnapshotIsNil(t *testing.T) {
	t.Parallel()

	missing := &docstore.Snapshot{ID: "x", Exists: false}
	if DecodeUser(missing) != nil || DecodeTrip(missing) != nil || DecodeThread(missing) != nil {
		t.Error("expected nil models for missing documents")
	}
}

// ──────────────────────────────────────────────
// 2. ROUND TRIPS THROUGH THE STORE
// ──────────────────────────────────────────────

func TestEncodeUser_SurvivesStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := docstore.NewMemoryStore()
	expiry := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	acc := 5.0
	in := &models.User{
		ID:       "u1",
		Name:     "Ada",
		Role:     models.RoleDriver,
		Location: &models.UserLocation{Lat: 1, Lng: 2, Accuracy: &acc, IsSharing: true, HasCoordinates: true},
		Referral: models.ReferralLedger{Code: "ABCD2345", Points: 4, Count: 2, ReferredBy: "u0"},
		VIP:      models.VIPSubscription{Level: 3, PurchasedLevel: 2, ExpiryDate: &expiry},
	}
	if err := store.Set(ctx, CollectionUsers, in.ID, EncodeUser(in)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snap, _ := store.Get(ctx, CollectionUsers, "u1")
	out := DecodeUser(snap)
	if out.Role != models.RoleDriver || out.Referral.Code != "ABCD2345" || out.Referral.ReferredBy != "u0" {
		t.Errorf("unexpected user: %+v", out)
	}
	if out.VIP.ExpiryDate == nil || !out.VIP.ExpiryDate.Equal(expiry) {
		t.Errorf("expected expiry %v, got %v", expiry, out.VIP.ExpiryDate)
	}
	if out.Location == nil || out.Location.Accuracy == nil || *out.Location.Accuracy != 5 {
		t.Errorf("expected accuracy 5, got %+v", out.Location)
	}
	if out.SchemaVersion != models.CurrentSchemaVersion {
		t.Errorf("expected schema version %d, got %d", models.CurrentSchemaVersion, out.SchemaVersion)
	}
}
