package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"carhire/pkg/logger"
)

type Migration struct {
	Version     int
	Description string
	Up          func(*mongo.Database) error
	Down        func(*mongo.Database) error
}

type Migrator struct {
	db         *mongo.Database
	migrations []Migration
	log        *logger.Logger
}

// NewMigrator builds the index migrations of the document store collections.
func NewMigrator(db *mongo.Database, log *logger.Logger) *Migrator {
	return &Migrator{
		db:         db,
		migrations: getMigrations(),
		log:        log,
	}
}

func (m *Migrator) Up() error {
	// Create migrations collection if it doesn't exist
	err := m.createMigrationsCollection()
	if err != nil {
		return err
	}

	// Get current version
	currentVersion, err := m.getCurrentVersion()
	if err != nil {
		return err
	}

	// Run migrations
	for _, migration := range m.migrations {
		if migration.Version > currentVersion {
			m.log.Infof("Running migration %d: %s", migration.Version, migration.Description)

			err := migration.Up(m.db)
			if err != nil {
				return fmt.Errorf("migration %d failed: %w", migration.Version, err)
			}

			err = m.updateVersion(migration.Version)
			if err != nil {
				return fmt.Errorf("failed to update migration version: %w", err)
			}

			m.log.Infof("Migration %d completed successfully", migration.Version)
		}
	}

	return nil
}

func (m *Migrator) Down(targetVersion int) error {
	currentVersion, err := m.getCurrentVersion()
	if err != nil {
		return err
	}

	for i := len(m.migrations) - 1; i >= 0; i-- {
		migration := m.migrations[i]
		if migration.Version <= currentVersion && migration.Version > targetVersion {
			m.log.Infof("Reverting migration %d: %s", migration.Version, migration.Description)

			err := migration.Down(m.db)
			if err != nil {
				return fmt.Errorf("migration %d rollback failed: %w", migration.Version, err)
			}

			previousVersion := targetVersion
			if i > 0 {
				previousVersion = m.migrations[i-1].Version
			}

			err = m.updateVersion(previousVersion)
			if err != nil {
				return fmt.Errorf("failed to update migration version: %w", err)
			}

			m.log.Infof("Migration %d reverted successfully", migration.Version)
		}
	}

	return nil
}

func (m *Migrator) createMigrationsCollection() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	collections, err := m.db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return err
	}

	for _, name := range collections {
		if name == "migrations" {
			return nil
		}
	}

	return m.db.CreateCollection(ctx, "migrations")
}

func (m *Migrator) getCurrentVersion() (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var result struct {
		Version int `bson:"version"`
	}

	err := m.db.Collection("migrations").FindOne(ctx, bson.D{}).Decode(&result)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, nil
		}
		return 0, err
	}

	return result.Version, nil
}

func (m *Migrator) updateVersion(version int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := m.db.Collection("migrations").ReplaceOne(
		ctx,
		bson.D{},
		bson.D{{Key: "version", Value: version}, {Key: "updated_at", Value: time.Now()}},
		options.Replace().SetUpsert(true),
	)

	return err
}

func getMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create users indexes",
			Up:          createUsersIndexes,
			Down:        dropIndexes("users"),
		},
		{
			Version:     2,
			Description: "Create trips indexes",
			Up:          createTripsIndexes,
			Down:        dropIndexes("trips"),
		},
		{
			Version:     3,
			Description: "Create chats and messages indexes",
			Up:          createChatsIndexes,
			Down: func(db *mongo.Database) error {
				if err := dropIndexes("chats")(db); err != nil {
					return err
				}
				return dropIndexes("chats_messages")(db)
			},
		},
		{
			Version:     4,
			Description: "Create referral code and tracking token indexes",
			Up:          createLookupIndexes,
			Down: func(db *mongo.Database) error {
				if err := dropIndexes("referralCodes")(db); err != nil {
					return err
				}
				return dropIndexes("trackingTokens")(db)
			},
		},
	}
}

func createIndexes(db *mongo.Database, collection string, indexes []mongo.IndexModel) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err := db.Collection(collection).Indexes().CreateMany(ctx, indexes)
	return err
}

func dropIndexes(collection string) func(*mongo.Database) error {
	return func(db *mongo.Database) error {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_, err := db.Collection(collection).Indexes().DropAll(ctx)
		return err
	}
}

func createUsersIndexes(db *mongo.Database) error {
	return createIndexes(db, "users", []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "referralCode", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
		{
			// Legacy suffix lookup.
			Keys: bson.D{{Key: "referralShortId", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "role", Value: 1}},
		},
	})
}

func createTripsIndexes(db *mongo.Database) error {
	return createIndexes(db, "trips", []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "driverId", Value: 1}, {Key: "status", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "customerId", Value: 1}, {Key: "status", Value: 1}},
		},
	})
}

func createChatsIndexes(db *mongo.Database) error {
	if err := createIndexes(db, "chats", []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "participants", Value: 1}},
		},
		{
			// Expiry sweep.
			Keys: bson.D{{Key: "lastActivity", Value: 1}},
		},
	}); err != nil {
		return err
	}
	return createIndexes(db, "chats_messages", []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "_parent", Value: 1}, {Key: "timestamp", Value: 1}},
		},
	})
}

func createLookupIndexes(db *mongo.Database) error {
	if err := createIndexes(db, "referralCodes", []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "userId", Value: 1}},
		},
	}); err != nil {
		return err
	}
	return createIndexes(db, "trackingTokens", []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "userId", Value: 1}},
		},
		{
			// Elapsed links are removed by MongoDB itself.
			Keys:    bson.D{{Key: "expiresAt", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
	})
}
