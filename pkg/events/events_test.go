package events

import (
	"encoding/json"
	"testing"
)

func TestNew_StampsIDAndTime(t *testing.T) {
	t.Parallel()

	a := New("referral.awarded", "u1", map[string]int{"points": 2})
	b := New("referral.awarded", "u1", nil)
	if a.ID == "" || a.ID == b.ID {
		t.Errorf("expected distinct ids, got %q and %q", a.ID, b.ID)
	}
	if a.OccurredAt.IsZero() {
		t.Error("expected occurred_at to be set")
	}

	data, err := a.Marshal()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var decoded map[string]interface{}
	_ = json.Unmarshal(data, &decoded)
	if decoded["type"] != "referral.awarded" || decoded["key"] != "u1" {
		t.Errorf("unexpected envelope: %v", decoded)
	}
}
