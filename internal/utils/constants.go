package utils

import "time"

// Application Constants
const (
	AppName    = "CarHire"
	AppVersion = "1.0.0"

	DefaultCurrency = "USD"

	// Authentication
	JWTAccessTokenTTL = 24 * time.Hour
	OTPLength         = 6
	OTPExpiry         = 10 * time.Minute

	// Chat
	MaxMessageLength = 1000

	// Referral
	ReferralCodeLength = 8
	ShortIDLength      = 8

	// Tracking links
	TrackingTokenLength = 32
)

// HTTP Status Messages
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Error Messages
const (
	ErrInvalidToken       = "invalid token"
	ErrInternalServer     = "internal server error"
	ErrUnauthorized       = "unauthorized"
	ErrForbidden          = "forbidden"
	ErrValidationFailed   = "validation failed"
	ErrServiceUnavailable = "service temporarily unavailable"
	ErrLinkExpired        = "this tracking link has expired"
)

// Cache Keys
const (
	CacheSharingPrefix = "sharing:"
	CacheGeocodePrefix = "geocode:"
	CacheOTPPrefix     = "otp:"
)

// Event Types
const (
	EventReferralAwarded    = "referral.awarded"
	EventVIPPurchased       = "vip.purchased"
	EventChatThreadsExpired = "chat.threads_expired"
	EventTripCompleted      = "trip.completed"
	EventTripCancelled      = "trip.cancelled"
	EventSharingStopped     = "location.sharing_stopped"
)

// WebSocket message types
const (
	WSTypePosition       = "position"
	WSTypePositionError  = "position_error"
	WSTypeStart          = "start"
	WSTypeStop           = "stop"
	WSTypeTrackTrip      = "track_trip"
	WSTypeUntrackTrip    = "untrack_trip"
	WSTypeWatchThreads   = "watch_threads"
	WSTypeUnwatchThreads = "unwatch_threads"
	WSTypeSharingStarted = "sharing_started"
	WSTypeSharingStopped = "sharing_stopped"
	WSTypeTripView       = "trip_view"
	WSTypeThreadList     = "thread_list"
	WSTypeNewMessage     = "new_message"
	WSTypeNotification   = "notification"
	WSTypePublicLocation = "public_location"
	WSTypeError          = "error"
)
