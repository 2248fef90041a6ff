package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORE_BACKEND", StoreBackendMemory)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Chat.ExpiryWindow != 7*24*time.Hour {
		t.Errorf("expected a 7 day chat expiry window, got %v", cfg.Chat.ExpiryWindow)
	}
	if cfg.Tracking.LinkTTL != 24*time.Hour {
		t.Errorf("expected 24h tracking links, got %v", cfg.Tracking.LinkTTL)
	}
	if cfg.Referral.PointsPerReferral != 2 || cfg.Referral.PointsPerFreeRide != 20 {
		t.Errorf("unexpected referral points %+v", cfg.Referral)
	}
}

func TestLoad_ReadsEnvironment(t *testing.T) {
	t.Setenv("STORE_BACKEND", StoreBackendMongo)
	t.Setenv("MONGODB_URI", "mongodb://db:27017/?replicaSet=rs1")
	t.Setenv("CHAT_EXPIRY_WINDOW", "72h")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Database.URI != "mongodb://db:27017/?replicaSet=rs1" {
		t.Errorf("unexpected uri %s", cfg.Database.URI)
	}
	if cfg.Chat.ExpiryWindow != 72*time.Hour {
		t.Errorf("expected 72h, got %v", cfg.Chat.ExpiryWindow)
	}
	if got := cfg.Events.Kafka.Brokers; len(got) != 2 || got[1] != "k2:9092" {
		t.Errorf("expected trimmed broker list, got %v", got)
	}
}

func TestLoad_ReportsEveryProblem(t *testing.T) {
	t.Setenv("STORE_BACKEND", "sqlite")
	t.Setenv("EVENTS_BROKER", "carrier-pigeon")
	t.Setenv("APP_ENV", "production")

	_, err := Load()
	if err == nil {
		t.Fatal("expected an error")
	}
	for _, want := range []string{"STORE_BACKEND", "EVENTS_BROKER", "JWT_SECRET"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %s in %q", want, err.Error())
		}
	}
}

func TestValidate_PingMustPrecedePong(t *testing.T) {
	t.Setenv("STORE_BACKEND", StoreBackendMemory)
	t.Setenv("WEBSOCKET_PING_INTERVAL", "90s")

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "WEBSOCKET_PING_INTERVAL") {
		t.Errorf("expected ping interval error, got %v", err)
	}
}
