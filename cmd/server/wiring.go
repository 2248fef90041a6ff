package main

import (
	"context"
	"fmt"
	"time"

	"carhire/internal/config"
	"carhire/internal/services"
	"carhire/pkg/cache"
	"carhire/pkg/database"
	"carhire/pkg/docstore"
	"carhire/pkg/events"
	"carhire/pkg/logger"
	"carhire/pkg/maps"
	"carhire/pkg/payment"
	"carhire/pkg/push"
	"carhire/pkg/sms"
)

// openStore opens the configured document store backend behind the retry policy.
func openStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (docstore.Store, error) {
	var store docstore.Store

	switch cfg.Store.Backend {
	case config.StoreBackendMemory:
		log.Warn("Using the in-memory document store, nothing is persisted")
		store = docstore.NewMemoryStore()

	case config.StoreBackendMongo:
		db, err := database.NewMongoDB(&database.DatabaseConfig{
			URI:            cfg.Database.URI,
			Database:       cfg.Database.Database,
			AppName:        cfg.App.Name,
			MaxPoolSize:    cfg.Database.MaxPoolSize,
			MinPoolSize:    cfg.Database.MinPoolSize,
			ConnectTimeout: cfg.Database.ConnectTimeout,
			SocketTimeout:  cfg.Database.SocketTimeout,
		})
		if err != nil {
			return nil, err
		}
		if cfg.Database.RunMigrations {
			if err := database.NewMigrator(db.Database, log).Up(); err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("failed to run migrations: %w", err)
			}
		}
		store = docstore.NewMongoStore(db.Database)

	case config.StoreBackendFirestore:
		fs, err := docstore.NewFirestoreStore(ctx, docstore.FirestoreConfig{
			ProjectID:       cfg.Store.Firestore.ProjectID,
			CredentialsFile: cfg.Store.Firestore.CredentialsFile,
			EmulatorHost:    cfg.Store.Firestore.EmulatorHost,
		})
		if err != nil {
			return nil, err
		}
		store = fs

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}

	return docstore.WithRetry(store, docstore.RetryPolicy{
		MaxRetries:      uint64(cfg.Store.Retry.MaxRetries),
		InitialInterval: cfg.Store.Retry.InitialInterval,
		MaxInterval:     cfg.Store.Retry.MaxInterval,
		OnRetry: func(op string, err error, wait time.Duration) {
			log.WithError(err).WithFields(map[string]interface{}{"op": op, "wait": wait.String()}).Warn("Retrying document store call")
		},
	}), nil
}

// newCache falls back to the process-local cache when Redis is off or
// unreachable. Resume state and OTP codes then live only as long as the process.
func newCache(cfg *config.Config, log *logger.Logger) cache.Cache {
	if !cfg.Redis.Enabled {
		return cache.NewMemoryCache()
	}
	redisCache, err := cache.NewRedisCache(&cache.RedisConfig{
		Host:         cfg.Redis.Host,
		Port:         cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		KeyPrefix:    cfg.Redis.KeyPrefix,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, using the in-memory cache")
		return cache.NewMemoryCache()
	}
	return redisCache
}

func newPublisher(cfg *config.Config, log *logger.Logger) events.Publisher {
	switch cfg.Events.Broker {
	case "kafka":
		return events.NewKafkaPublisher(cfg.Events.Kafka.Brokers)
	case "rabbitmq":
		publisher, err := events.NewRabbitPublisher(cfg.Events.RabbitMQ.URL, cfg.Events.RabbitMQ.Exchange, log)
		if err != nil {
			log.WithError(err).Warn("RabbitMQ unavailable, domain events are dropped")
			return events.NopPublisher{}
		}
		return publisher
	default:
		return events.NopPublisher{}
	}
}

// newGeocoder returns nil when no provider is configured. Locations are then
// written with the placeholder address.
func newGeocoder(cfg *config.Config, c cache.Cache, log *logger.Logger) maps.Geocoder {
	var provider maps.Geocoder
	switch cfg.Maps.Provider {
	case "google":
		google, err := maps.NewGoogleMapsProvider(cfg.Maps.GoogleMaps.APIKey, cfg.Maps.Timeout)
		if err != nil {
			log.WithError(err).Warn("Failed to initialize Google Maps")
			return nil
		}
		provider = google
	case "mapbox":
		provider = maps.NewMapboxProvider(cfg.Maps.Mapbox.AccessToken, cfg.Maps.Timeout)
	case "nominatim":
		provider = maps.NewNominatimProvider(cfg.Maps.Nominatim.BaseURL, cfg.Maps.Nominatim.UserAgent, cfg.Maps.Timeout)
	default:
		return nil
	}
	return maps.NewCachedGeocoder(provider, c, cfg.Maps.GeocodeCacheTTL)
}

func newPushRouter(ctx context.Context, cfg *config.Config, log *logger.Logger) services.Pusher {
	if !cfg.Push.Enabled {
		return nil
	}
	router := push.NewRouter(nil)
	if cfg.Push.FCM.ProjectID != "" {
		fcm, err := push.NewFCMProvider(ctx, cfg.Push.FCM.ProjectID, cfg.Push.FCM.Credentials)
		if err != nil {
			log.WithError(err).Warn("Failed to initialize FCM")
		} else {
			router.Register(push.PlatformAndroid, fcm)
		}
	}
	if cfg.Push.APNS.KeyFile != "" {
		apns, err := push.NewAPNSProvider(cfg.Push.APNS.KeyFile, cfg.Push.APNS.KeyID, cfg.Push.APNS.TeamID, cfg.Push.APNS.BundleID, cfg.Push.APNS.Production)
		if err != nil {
			log.WithError(err).Warn("Failed to initialize APNs")
		} else {
			router.Register(push.PlatformIOS, apns)
		}
	}
	return router
}

func newSMSProvider(ctx context.Context, cfg *config.Config, log *logger.Logger) sms.SMSProvider {
	switch cfg.SMS.Provider {
	case "twilio":
		return sms.NewTwilioProvider(cfg.SMS.Twilio.AccountSID, cfg.SMS.Twilio.AuthToken, cfg.SMS.Twilio.FromNumber)
	case "aws":
		provider, err := sms.NewAWSSNSProvider(ctx, cfg.SMS.AWS.Region, cfg.SMS.AWS.SenderID)
		if err != nil {
			log.WithError(err).Warn("Failed to initialize AWS SNS")
			return nil
		}
		return provider
	default:
		return nil
	}
}

func newPaymentProvider(cfg *config.Config, log *logger.Logger) payment.PaymentProvider {
	switch cfg.Payment.Provider {
	case "stripe":
		return payment.NewStripeProvider(cfg.Payment.Stripe.SecretKey, cfg.Payment.Stripe.WebhookSecret)
	case "razorpay":
		return payment.NewRazorpayProvider(cfg.Payment.Razorpay.KeyID, cfg.Payment.Razorpay.KeySecret, cfg.Payment.Razorpay.Webhook)
	default:
		if cfg.Payment.VerifyPurchases {
			log.Warn("Purchase verification is on but no payment provider is configured")
		}
		return nil
	}
}
