package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	App        *AppConfig        `yaml:"app"`
	Store      *StoreConfig      `yaml:"store"`
	Database   *DatabaseConfig   `yaml:"database"`
	Redis      *RedisConfig      `yaml:"redis"`
	SMS        *SMSConfig        `yaml:"sms"`
	Push       *PushConfig       `yaml:"push"`
	Payment    *PaymentConfig    `yaml:"payment"`
	Maps       *MapsConfig       `yaml:"maps"`
	WebSocket  *WebSocketConfig  `yaml:"websocket"`
	Security   *SecurityConfig   `yaml:"security"`
	Location   *LocationConfig   `yaml:"location"`
	Chat       *ChatConfig       `yaml:"chat"`
	Referral   *ReferralConfig   `yaml:"referral"`
	Tracking   *TrackingConfig   `yaml:"tracking"`
	Events     *EventsConfig     `yaml:"events"`
	Monitoring *MonitoringConfig `yaml:"monitoring"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
	Port        int    `yaml:"port"`
	Host        string `yaml:"host"`
	BaseURL     string `yaml:"base_url"`
	Debug       bool   `yaml:"debug"`
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
}

type SecurityConfig struct {
	JWTSecret          string        `yaml:"jwt_secret"`
	OTPLength          int           `yaml:"otp_length"`
	OTPExpiry          time.Duration `yaml:"otp_expiry"`
	OTPMaxAttempts     int           `yaml:"otp_max_attempts"`
	CORSAllowedOrigins []string      `yaml:"cors_allowed_origins"`
	TrustedProxies     []string      `yaml:"trusted_proxies"`
}

func Load() (*Config, error) {
	config := &Config{
		App:        loadAppConfig(),
		Store:      loadStoreConfig(),
		Database:   loadDatabaseConfig(),
		Redis:      loadRedisConfig(),
		SMS:        loadSMSConfig(),
		Push:       loadPushConfig(),
		Payment:    loadPaymentConfig(),
		Maps:       loadMapsConfig(),
		WebSocket:  loadWebSocketConfig(),
		Security:   loadSecurityConfig(),
		Location:   loadLocationConfig(),
		Chat:       loadChatConfig(),
		Referral:   loadReferralConfig(),
		Tracking:   loadTrackingConfig(),
		Events:     loadEventsConfig(),
		Monitoring: loadMonitoringConfig(),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate rejects combinations the server cannot run with. Every problem is
// reported, not only the first.
func (c *Config) Validate() error {
	var errs []error
	switch c.Store.Backend {
	case StoreBackendFirestore:
		if c.Store.Firestore.ProjectID == "" {
			errs = append(errs, errors.New("FIRESTORE_PROJECT_ID is required for the firestore backend"))
		}
	case StoreBackendMongo:
		if c.Database.URI == "" {
			errs = append(errs, errors.New("MONGODB_URI is required for the mongodb backend"))
		}
	case StoreBackendMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_BACKEND %q", c.Store.Backend))
	}
	if c.Store.Retry.MaxRetries < 0 {
		errs = append(errs, errors.New("STORE_RETRY_MAX must not be negative"))
	}
	if c.Chat.ExpiryWindow <= 0 {
		errs = append(errs, errors.New("CHAT_EXPIRY_WINDOW must be positive"))
	}
	if c.Referral.PointsPerReferral <= 0 || c.Referral.PointsPerFreeRide <= 0 {
		errs = append(errs, errors.New("referral point settings must be positive"))
	}
	if c.Location.WatchTimeout <= 0 {
		errs = append(errs, errors.New("LOCATION_WATCH_TIMEOUT must be positive"))
	}
	if c.Tracking.LinkTTL <= 0 {
		errs = append(errs, errors.New("TRACKING_LINK_TTL must be positive"))
	}
	if c.Security.OTPLength < 4 || c.Security.OTPMaxAttempts <= 0 {
		errs = append(errs, errors.New("OTP_LENGTH must be at least 4 and OTP_MAX_ATTEMPTS positive"))
	}
	if c.WebSocket.PingInterval >= c.WebSocket.PongTimeout {
		errs = append(errs, errors.New("WEBSOCKET_PING_INTERVAL must be shorter than WEBSOCKET_PONG_TIMEOUT"))
	}
	if c.Payment.VerifyPurchases && c.Payment.Provider == "" {
		errs = append(errs, errors.New("PAYMENT_PROVIDER is required when purchase verification is on"))
	}
	switch c.Events.Broker {
	case "kafka", "rabbitmq", "none":
	default:
		errs = append(errs, fmt.Errorf("unknown EVENTS_BROKER %q", c.Events.Broker))
	}
	if c.App.Environment == "production" && c.Security.JWTSecret == defaultJWTSecret {
		errs = append(errs, errors.New("JWT_SECRET must be set in production"))
	}
	return errors.Join(errs...)
}

const defaultJWTSecret = "your-super-secret-jwt-key"

func loadAppConfig() *AppConfig {
	return &AppConfig{
		Name:        getEnv("APP_NAME", "CarHire"),
		Version:     getEnv("APP_VERSION", "1.0.0"),
		Environment: getEnv("APP_ENV", "development"),
		Port:        getEnvAsInt("APP_PORT", 8080),
		Host:        getEnv("APP_HOST", ""),
		BaseURL:     getEnv("APP_BASE_URL", "http://localhost:8080"),
		Debug:       getEnvAsBool("APP_DEBUG", true),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "json"),
	}
}

func loadSecurityConfig() *SecurityConfig {
	return &SecurityConfig{
		JWTSecret:          getEnv("JWT_SECRET", defaultJWTSecret),
		OTPLength:          getEnvAsInt("OTP_LENGTH", 6),
		OTPExpiry:          getEnvAsDuration("OTP_EXPIRY", 10*time.Minute),
		OTPMaxAttempts:     getEnvAsInt("OTP_MAX_ATTEMPTS", 5),
		CORSAllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
		TrustedProxies:     getEnvAsSlice("TRUSTED_PROXIES", []string{}),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}
