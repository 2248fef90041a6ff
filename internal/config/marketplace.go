package config

import (
	"time"
)

type LocationConfig struct {
	HighAccuracy   bool          `yaml:"high_accuracy"`
	WatchTimeout   time.Duration `yaml:"watch_timeout"`
	MaximumAge     time.Duration `yaml:"maximum_age"`
	ResumeStateTTL time.Duration `yaml:"resume_state_ttl"`
}

// ChatConfig.ExpiryWindow has two observed production values (7 days and 48 hours);
// the default is 7 days until product settles it.
type ChatConfig struct {
	ExpiryWindow     time.Duration `yaml:"expiry_window"`
	SweepInterval    time.Duration `yaml:"sweep_interval"`
	MaxMessageLength int           `yaml:"max_message_length"`
}

type ReferralConfig struct {
	PointsPerReferral  int  `yaml:"points_per_referral"`
	PointsPerFreeRide  int  `yaml:"points_per_free_ride"`
	CodeLength         int  `yaml:"code_length"`
	LegacySuffixLookup bool `yaml:"legacy_suffix_lookup"`
	MaxCodeAttempts    int  `yaml:"max_code_attempts"`
	VIPFromReferrals   bool `yaml:"vip_from_referrals"`
}

type TrackingConfig struct {
	LinkTTL   time.Duration `yaml:"link_ttl"`
	PublicURL string        `yaml:"public_url"`
}

func loadLocationConfig() *LocationConfig {
	return &LocationConfig{
		HighAccuracy:   getEnvAsBool("LOCATION_HIGH_ACCURACY", true),
		WatchTimeout:   getEnvAsDuration("LOCATION_WATCH_TIMEOUT", 10*time.Second),
		MaximumAge:     getEnvAsDuration("LOCATION_MAXIMUM_AGE", 30*time.Second),
		ResumeStateTTL: getEnvAsDuration("LOCATION_RESUME_STATE_TTL", 12*time.Hour),
	}
}

func loadChatConfig() *ChatConfig {
	return &ChatConfig{
		ExpiryWindow:     getEnvAsDuration("CHAT_EXPIRY_WINDOW", 7*24*time.Hour),
		SweepInterval:    getEnvAsDuration("CHAT_SWEEP_INTERVAL", time.Hour),
		MaxMessageLength: getEnvAsInt("CHAT_MAX_MESSAGE_LENGTH", 1000),
	}
}

func loadReferralConfig() *ReferralConfig {
	return &ReferralConfig{
		PointsPerReferral:  getEnvAsInt("REFERRAL_POINTS_PER_REFERRAL", 2),
		PointsPerFreeRide:  getEnvAsInt("REFERRAL_POINTS_PER_FREE_RIDE", 20),
		CodeLength:         getEnvAsInt("REFERRAL_CODE_LENGTH", 8),
		LegacySuffixLookup: getEnvAsBool("REFERRAL_LEGACY_SUFFIX_LOOKUP", false),
		MaxCodeAttempts:    getEnvAsInt("REFERRAL_MAX_CODE_ATTEMPTS", 5),
		VIPFromReferrals:   getEnvAsBool("REFERRAL_VIP_FROM_REFERRALS", true),
	}
}

func loadTrackingConfig() *TrackingConfig {
	return &TrackingConfig{
		LinkTTL:   getEnvAsDuration("TRACKING_LINK_TTL", 24*time.Hour),
		PublicURL: getEnv("TRACKING_PUBLIC_URL", getEnv("APP_BASE_URL", "http://localhost:8080")),
	}
}
