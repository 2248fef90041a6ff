package config

import (
	"time"
)

const (
	StoreBackendFirestore = "firestore"
	StoreBackendMongo     = "mongodb"
	StoreBackendMemory    = "memory"
)

type StoreConfig struct {
	Backend   string           `yaml:"backend"`
	Firestore *FirestoreConfig `yaml:"firestore"`
	Retry     *RetryConfig     `yaml:"retry"`
}

type FirestoreConfig struct {
	ProjectID       string `yaml:"project_id"`
	CredentialsFile string `yaml:"credentials_file"`
	EmulatorHost    string `yaml:"emulator_host"`
}

type RetryConfig struct {
	MaxRetries      int           `yaml:"max_retries"`
	InitialInterval time.Duration `yaml:"initial_interval"`
	MaxInterval     time.Duration `yaml:"max_interval"`
}

func loadStoreConfig() *StoreConfig {
	return &StoreConfig{
		Backend: getEnv("STORE_BACKEND", StoreBackendFirestore),
		Firestore: &FirestoreConfig{
			ProjectID:       getEnv("FIRESTORE_PROJECT_ID", getEnv("FCM_PROJECT_ID", "")),
			CredentialsFile: getEnv("FIRESTORE_CREDENTIALS_FILE", getEnv("FCM_CREDENTIALS_FILE", "")),
			EmulatorHost:    getEnv("FIRESTORE_EMULATOR_HOST", ""),
		},
		Retry: &RetryConfig{
			MaxRetries:      getEnvAsInt("STORE_RETRY_MAX", 3),
			InitialInterval: getEnvAsDuration("STORE_RETRY_INITIAL_INTERVAL", 100*time.Millisecond),
			MaxInterval:     getEnvAsDuration("STORE_RETRY_MAX_INTERVAL", 2*time.Second),
		},
	}
}

// DatabaseConfig configures the mongodb store backend. Snapshot subscriptions use
// change streams, so the URI must point at a replica set.
type DatabaseConfig struct {
	URI            string        `yaml:"uri"`
	Database       string        `yaml:"database"`
	MaxPoolSize    int           `yaml:"max_pool_size"`
	MinPoolSize    int           `yaml:"min_pool_size"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	SocketTimeout  time.Duration `yaml:"socket_timeout"`
	RunMigrations  bool          `yaml:"run_migrations"`
}

func loadDatabaseConfig() *DatabaseConfig {
	return &DatabaseConfig{
		URI:            getEnv("MONGODB_URI", "mongodb://localhost:27017/?replicaSet=rs0"),
		Database:       getEnv("MONGODB_DATABASE", "carhire"),
		MaxPoolSize:    getEnvAsInt("MONGODB_MAX_POOL_SIZE", 100),
		MinPoolSize:    getEnvAsInt("MONGODB_MIN_POOL_SIZE", 5),
		ConnectTimeout: getEnvAsDuration("MONGODB_CONNECT_TIMEOUT", 10*time.Second),
		SocketTimeout:  getEnvAsDuration("MONGODB_SOCKET_TIMEOUT", 30*time.Second),
		RunMigrations:  getEnvAsBool("MONGODB_RUN_MIGRATIONS", true),
	}
}
