// Package documents maps stored documents to models and back. Every read passes
// through the decoders here, which accept the legacy shapes older clients wrote.
package documents

import (
	"strings"

	"carhire/pkg/docstore"
)

const (
	CollectionUsers          = "users"
	CollectionTrips          = "trips"
	CollectionChats          = "chats"
	CollectionMessages       = "messages"
	CollectionTrackingTokens = "trackingTokens"
	CollectionReferralCodes  = "referralCodes"
)

// MessagesCollection is the message subcollection of a chat thread.
func MessagesCollection(threadID string) string {
	return docstore.SubcollectionPath(CollectionChats, threadID, CollectionMessages)
}

// User fields
const (
	FieldName                 = "name"
	FieldEmail                = "email"
	FieldRole                 = "role"
	FieldContactPhone         = "contactPhone"
	FieldContactPhoneVerified = "contactPhoneVerified"
	FieldVehicleID            = "vehicleId"
	FieldPushToken            = "pushToken"
	FieldPushPlatform         = "pushPlatform"
	FieldLocation             = "location"
	FieldNotifications        = "notifications"
	FieldReferralCode         = "referralCode"
	FieldReferralShortID      = "referralShortId"
	FieldReferredBy           = "referredBy"
	FieldReferralPoints       = "referralPoints"
	FieldReferralCount        = "referralCount"
	FieldFreeRides            = "freeRides"
	FieldReferrals            = "referrals"
	FieldVIPLevel             = "vipLevel"
	FieldPurchasedVIPLevel    = "purchasedVipLevel"
	FieldVIPPurchaseDate      = "vipPurchaseDate"
	FieldVIPExpiryDate        = "vipExpiryDate"
	FieldVIPPurchaseHistory   = "vipPurchaseHistory"
	FieldSchemaVersion        = "schemaVersion"
	FieldCreatedAt            = "createdAt"
	FieldUpdatedAt            = "updatedAt"
)

// Location fields, relative to the location map.
const (
	FieldLat       = "lat"
	FieldLng       = "lng"
	FieldAccuracy  = "accuracy"
	FieldAddress   = "address"
	FieldTimestamp = "timestamp"
	FieldIsSharing = "isSharing"
)

// Trip fields
const (
	FieldPickupLocation   = "pickupLocation"
	FieldDestination      = "destination"
	FieldDriverID         = "driverId"
	FieldCustomerID       = "customerId"
	FieldDriverLocation   = "driverLocation"
	FieldCustomerLocation = "customerLocation"
	FieldStatus           = "status"
	FieldRating           = "rating"
	FieldReview           = "review"
	FieldCompletedAt      = "completedAt"
)

// Chat fields
const (
	FieldParticipants     = "participants"
	FieldParticipantNames = "participantNames"
	FieldCarInfo          = "carInfo"
	FieldLastActivity     = "lastActivity"
	FieldLastMessage      = "lastMessage"
	FieldUnreadCounts     = "unreadCounts"
	FieldSenderID         = "senderId"
	FieldText             = "text"
	FieldRead             = "read"
)

// Tracking token and referral code fields
const (
	FieldUserID    = "userId"
	FieldExpiresAt = "expiresAt"
)

// Path joins dotted field path segments.
func Path(parts ...string) string {
	return strings.Join(parts, ".")
}
