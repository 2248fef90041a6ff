package documents

import (
	"fmt"

	"carhire/internal/models"
	"carhire/pkg/docstore"
)

// ──────────────────────────────────────────────
// Locations
// ──────────────────────────────────────────────

// DecodeLocation reads a location map. Older clients wrote latitude/longitude (or
// lon); a record without any latitude key has no coordinates.
func DecodeLocation(v interface{}) *models.UserLocation {
	m, ok := v.(map[string]interface{})
	if !ok || m == nil {
		return nil
	}
	loc := &models.UserLocation{
		Accuracy:  floatPtr(m, FieldAccuracy),
		Address:   str(m, FieldAddress),
		Timestamp: timeValue(m, FieldTimestamp),
		IsSharing: boolean(m, FieldIsSharing),
	}
	if lat, ok := float(m, FieldLat); ok {
		loc.Lat, loc.HasCoordinates = lat, true
	} else if lat, ok := float(m, "latitude"); ok {
		loc.Lat, loc.HasCoordinates = lat, true
	}
	for _, key := range []string{FieldLng, "longitude", "lon"} {
		if lng, ok := float(m, key); ok {
			loc.Lng = lng
			break
		}
	}
	if vid := str(m, FieldVehicleID); vid != "" {
		loc.VehicleID = &vid
	}
	return loc
}

func EncodeLocation(loc *models.UserLocation) map[string]interface{} {
	if loc == nil {
		return nil
	}
	m := map[string]interface{}{
		FieldLat:       loc.Lat,
		FieldLng:       loc.Lng,
		FieldAccuracy:  nil,
		FieldAddress:   loc.Address,
		FieldTimestamp: loc.Timestamp.UTC(),
		FieldIsSharing: loc.IsSharing,
		FieldVehicleID: nil,
	}
	if loc.Accuracy != nil {
		m[FieldAccuracy] = *loc.Accuracy
	}
	if loc.VehicleID != nil {
		m[FieldVehicleID] = *loc.VehicleID
	}
	return m
}

// ──────────────────────────────────────────────
// Users
// ──────────────────────────────────────────────

// DecodeUser returns nil for a snapshot of a missing document.
func DecodeUser(snap *docstore.Snapshot) *models.User {
	if snap == nil || !snap.Exists {
		return nil
	}
	d := snap.Data
	u := &models.User{
		ID:                   snap.ID,
		Name:                 str(d, FieldName),
		Email:                str(d, FieldEmail),
		Role:                 models.UserRole(str(d, FieldRole)),
		ContactPhone:         str(d, FieldContactPhone),
		ContactPhoneVerified: boolean(d, FieldContactPhoneVerified),
		VehicleID:            str(d, FieldVehicleID),
		PushToken:            str(d, FieldPushToken),
		PushPlatform:         models.PushPlatform(str(d, FieldPushPlatform)),
		Location:             DecodeLocation(d[FieldLocation]),
		SchemaVersion:        integer(d, FieldSchemaVersion),
		CreatedAt:            timeValue(d, FieldCreatedAt),
		UpdatedAt:            timeValue(d, FieldUpdatedAt),
	}
	if u.Name == "" {
		u.Name = str(d, "displayName")
	}
	if u.SchemaVersion == 0 {
		u.SchemaVersion = 1
	}

	for _, raw := range slice(d, FieldNotifications) {
		if m, ok := raw.(map[string]interface{}); ok {
			u.Notifications = append(u.Notifications, decodeNotification(m))
		}
	}

	u.Referral = models.ReferralLedger{
		Code:       str(d, FieldReferralCode),
		ShortID:    str(d, FieldReferralShortID),
		ReferredBy: str(d, FieldReferredBy),
		Points:     integer(d, FieldReferralPoints),
		Count:      integer(d, FieldReferralCount),
		FreeRides:  integer(d, FieldFreeRides),
	}
	for _, raw := range slice(d, FieldReferrals) {
		if m, ok := raw.(map[string]interface{}); ok {
			u.Referral.Referrals = append(u.Referral.Referrals, decodeReferralEntry(m))
		}
	}
	// Version 1 documents did not keep a count.
	if u.Referral.Count == 0 && len(u.Referral.Referrals) > 0 {
		u.Referral.Count = len(u.Referral.Referrals)
	}

	u.VIP = models.VIPSubscription{
		Level:          integer(d, FieldVIPLevel),
		PurchasedLevel: integer(d, FieldPurchasedVIPLevel),
		PurchaseDate:   timePtr(d, FieldVIPPurchaseDate),
		ExpiryDate:     timePtr(d, FieldVIPExpiryDate),
	}
	for _, raw := range slice(d, FieldVIPPurchaseHistory) {
		if m, ok := raw.(map[string]interface{}); ok {
			u.VIP.History = append(u.VIP.History, decodeVIPPurchase(m))
		}
	}
	return u
}

// EncodeUser renders a complete user document.
func EncodeUser(u *models.User) docstore.Document {
	notifications := make([]interface{}, 0, len(u.Notifications))
	for _, n := range u.Notifications {
		notifications = append(notifications, EncodeNotification(n))
	}
	referrals := make([]interface{}, 0, len(u.Referral.Referrals))
	for _, r := range u.Referral.Referrals {
		referrals = append(referrals, EncodeReferralEntry(r))
	}
	history := make([]interface{}, 0, len(u.VIP.History))
	for _, p := range u.VIP.History {
		history = append(history, EncodeVIPPurchase(p))
	}

	doc := docstore.Document{
		FieldName:                 u.Name,
		FieldEmail:                u.Email,
		FieldRole:                 string(u.Role),
		FieldContactPhone:         u.ContactPhone,
		FieldContactPhoneVerified: u.ContactPhoneVerified,
		FieldVehicleID:            u.VehicleID,
		FieldPushToken:            u.PushToken,
		FieldPushPlatform:         string(u.PushPlatform),
		FieldNotifications:        notifications,
		FieldReferralCode:         u.Referral.Code,
		FieldReferralShortID:      u.Referral.ShortID,
		FieldReferredBy:           nil,
		FieldReferralPoints:       u.Referral.Points,
		FieldReferralCount:        u.Referral.Count,
		FieldFreeRides:            u.Referral.FreeRides,
		FieldReferrals:            referrals,
		FieldVIPLevel:             u.VIP.Level,
		FieldPurchasedVIPLevel:    u.VIP.PurchasedLevel,
		FieldVIPPurchaseDate:      optionalTime(u.VIP.PurchaseDate),
		FieldVIPExpiryDate:        optionalTime(u.VIP.ExpiryDate),
		FieldVIPPurchaseHistory:   history,
		FieldSchemaVersion:        models.CurrentSchemaVersion,
		FieldCreatedAt:            u.CreatedAt.UTC(),
		FieldUpdatedAt:            u.UpdatedAt.UTC(),
	}
	if u.Referral.ReferredBy != "" {
		doc[FieldReferredBy] = u.Referral.ReferredBy
	}
	if u.Location != nil {
		doc[FieldLocation] = EncodeLocation(u.Location)
	}
	return doc
}

func decodeNotification(m map[string]interface{}) models.Notification {
	return models.Notification{
		ID:        str(m, "id"),
		Type:      models.NotificationType(str(m, "type")),
		Title:     str(m, "title"),
		Message:   str(m, "message"),
		CreatedAt: timeValue(m, FieldCreatedAt),
		Read:      boolean(m, FieldRead),
	}
}

// EncodeNotification renders a notification for a set-union append. Equal
// notifications encode to equal maps.
func EncodeNotification(n models.Notification) map[string]interface{} {
	return map[string]interface{}{
		"id":           n.ID,
		"type":         string(n.Type),
		"title":        n.Title,
		"message":      n.Message,
		FieldCreatedAt: n.CreatedAt.UTC(),
		FieldRead:      n.Read,
	}
}

func decodeReferralEntry(m map[string]interface{}) models.ReferralEntry {
	return models.ReferralEntry{
		UserID: str(m, FieldUserID),
		Date:   timeValue(m, "date"),
		Points: integer(m, "points"),
		Status: models.ReferralStatus(str(m, FieldStatus)),
	}
}

func EncodeReferralEntry(r models.ReferralEntry) map[string]interface{} {
	return map[string]interface{}{
		FieldUserID: r.UserID,
		"date":      r.Date.UTC(),
		"points":    r.Points,
		FieldStatus: string(r.Status),
	}
}

func decodeVIPPurchase(m map[string]interface{}) models.VIPPurchase {
	price, _ := float(m, "price")
	return models.VIPPurchase{
		Level:         integer(m, "level"),
		PaymentID:     str(m, "paymentId"),
		Price:         price,
		PurchaseDate:  timeValue(m, "purchaseDate"),
		PreviousLevel: integer(m, "previousLevel"),
	}
}

func EncodeVIPPurchase(p models.VIPPurchase) map[string]interface{} {
	return map[string]interface{}{
		"level":         p.Level,
		"paymentId":     p.PaymentID,
		"price":         p.Price,
		"purchaseDate":  p.PurchaseDate.UTC(),
		"previousLevel": p.PreviousLevel,
	}
}

// ──────────────────────────────────────────────
// Trips
// ──────────────────────────────────────────────

func DecodeTrip(snap *docstore.Snapshot) *models.Trip {
	if snap == nil || !snap.Exists {
		return nil
	}
	d := snap.Data
	t := &models.Trip{
		ID:               snap.ID,
		PickupLocation:   str(d, FieldPickupLocation),
		Destination:      str(d, FieldDestination),
		DriverID:         str(d, FieldDriverID),
		CustomerID:       str(d, FieldCustomerID),
		DriverLocation:   DecodeLocation(d[FieldDriverLocation]),
		CustomerLocation: DecodeLocation(d[FieldCustomerLocation]),
		Status:           models.TripStatus(str(d, FieldStatus)),
		Review:           str(d, FieldReview),
		CreatedAt:        timeValue(d, FieldCreatedAt),
		UpdatedAt:        timeValue(d, FieldUpdatedAt),
		CompletedAt:      timePtr(d, FieldCompletedAt),
	}
	if t.Status == "" {
		t.Status = models.TripStatusActive
	}
	if _, ok := number(d[FieldRating]); ok {
		r := integer(d, FieldRating)
		t.Rating = &r
	}
	return t
}

func EncodeTrip(t *models.Trip) docstore.Document {
	doc := docstore.Document{
		FieldPickupLocation:   t.PickupLocation,
		FieldDestination:      t.Destination,
		FieldDriverID:         t.DriverID,
		FieldCustomerID:       t.CustomerID,
		FieldDriverLocation:   nil,
		FieldCustomerLocation: nil,
		FieldStatus:           string(t.Status),
		FieldRating:           nil,
		FieldReview:           t.Review,
		FieldCreatedAt:        t.CreatedAt.UTC(),
		FieldUpdatedAt:        t.UpdatedAt.UTC(),
		FieldCompletedAt:      optionalTime(t.CompletedAt),
		FieldSchemaVersion:    models.CurrentSchemaVersion,
	}
	if t.DriverLocation != nil {
		doc[FieldDriverLocation] = EncodeLocation(t.DriverLocation)
	}
	if t.CustomerLocation != nil {
		doc[FieldCustomerLocation] = EncodeLocation(t.CustomerLocation)
	}
	if t.Rating != nil {
		doc[FieldRating] = *t.Rating
	}
	return doc
}

// ──────────────────────────────────────────────
// Chat threads and messages
// ──────────────────────────────────────────────

// DecodeThread reads a thread. Threads written before messages moved to a
// subcollection embed them; their counters and preview are derived from the array.
func DecodeThread(snap *docstore.Snapshot) *models.ChatThread {
	if snap == nil || !snap.Exists {
		return nil
	}
	d := snap.Data
	c := &models.ChatThread{
		ID:               snap.ID,
		Participants:     stringSlice(d, FieldParticipants),
		ParticipantNames: stringMap(d, FieldParticipantNames),
		CreatedAt:        timeValue(d, FieldCreatedAt),
		LastActivity:     timeValue(d, FieldLastActivity),
		UnreadCounts:     intMap(d, FieldUnreadCounts),
	}
	if car, ok := mapValue(d, FieldCarInfo); ok {
		c.CarInfo = models.CarInfo{ID: str(car, "id"), Title: str(car, "title")}
	}
	if last, ok := mapValue(d, FieldLastMessage); ok {
		c.LastMessage = &models.MessagePreview{
			ID:        str(last, "id"),
			SenderID:  str(last, FieldSenderID),
			Text:      str(last, FieldText),
			Timestamp: timeValue(last, FieldTimestamp),
		}
	}

	if msgs := EmbeddedMessages(snap); len(msgs) > 0 {
		if !HasUnreadCounters(snap) {
			for _, p := range c.Participants {
				c.UnreadCounts[p] = models.UnreadCount(msgs, p)
			}
		}
		if c.LastMessage == nil && len(msgs) > 0 {
			c.LastMessage = msgs[len(msgs)-1].Preview()
		}
	}
	return c
}

// LegacyMessagesField holds the message array of threads written before messages
// moved to a subcollection.
const LegacyMessagesField = "messages"

// EmbeddedMessages decodes the legacy message array of a thread, oldest first.
func EmbeddedMessages(snap *docstore.Snapshot) []models.Message {
	if snap == nil || !snap.Exists {
		return nil
	}
	embedded := slice(snap.Data, LegacyMessagesField)
	msgs := make([]models.Message, 0, len(embedded))
	for i, raw := range embedded {
		if m, ok := raw.(map[string]interface{}); ok {
			msg := decodeMessageMap("", m)
			if msg.ID == "" {
				msg.ID = fmt.Sprintf("legacy-%d", i)
			}
			msgs = append(msgs, msg)
		}
	}
	return msgs
}

// HasUnreadCounters reports whether the thread stores its own unread counters.
func HasUnreadCounters(snap *docstore.Snapshot) bool {
	_, ok := snap.Data[FieldUnreadCounts]
	return ok
}

// MarkEmbeddedRead returns the legacy message array with every message not sent by
// viewer marked read, and whether the thread had such an array.
func MarkEmbeddedRead(snap *docstore.Snapshot, viewer string) ([]interface{}, bool) {
	embedded := slice(snap.Data, LegacyMessagesField)
	if len(embedded) == 0 {
		return nil, false
	}
	out := make([]interface{}, len(embedded))
	for i, raw := range embedded {
		m, ok := raw.(map[string]interface{})
		if !ok {
			out[i] = raw
			continue
		}
		copied := make(map[string]interface{}, len(m))
		for k, v := range m {
			copied[k] = v
		}
		if str(m, FieldSenderID) != viewer {
			copied[FieldRead] = true
		}
		out[i] = copied
	}
	return out, true
}

func EncodeThread(c *models.ChatThread) docstore.Document {
	participants := make([]interface{}, len(c.Participants))
	for i, p := range c.Participants {
		participants[i] = p
	}
	names := make(map[string]interface{}, len(c.ParticipantNames))
	for k, v := range c.ParticipantNames {
		names[k] = v
	}
	unread := make(map[string]interface{}, len(c.Participants))
	for _, p := range c.Participants {
		unread[p] = c.UnreadCounts[p]
	}
	doc := docstore.Document{
		FieldParticipants:     participants,
		FieldParticipantNames: names,
		FieldCarInfo:          map[string]interface{}{"id": c.CarInfo.ID, "title": c.CarInfo.Title},
		FieldCreatedAt:        c.CreatedAt.UTC(),
		FieldLastActivity:     c.LastActivity.UTC(),
		FieldUnreadCounts:     unread,
		FieldLastMessage:      nil,
		FieldSchemaVersion:    models.CurrentSchemaVersion,
	}
	if c.LastMessage != nil {
		doc[FieldLastMessage] = EncodePreview(c.LastMessage)
	}
	return doc
}

func EncodePreview(p *models.MessagePreview) map[string]interface{} {
	return map[string]interface{}{
		"id":           p.ID,
		FieldSenderID:  p.SenderID,
		FieldText:      p.Text,
		FieldTimestamp: p.Timestamp.UTC(),
	}
}

func DecodeMessage(snap *docstore.Snapshot) *models.Message {
	if snap == nil || !snap.Exists {
		return nil
	}
	m := decodeMessageMap(snap.ID, snap.Data)
	return &m
}

func decodeMessageMap(id string, d map[string]interface{}) models.Message {
	if id == "" {
		id = str(d, "id")
	}
	return models.Message{
		ID:        id,
		SenderID:  str(d, FieldSenderID),
		Text:      str(d, FieldText),
		Timestamp: timeValue(d, FieldTimestamp),
		Read:      boolean(d, FieldRead),
	}
}

func EncodeMessage(m *models.Message) docstore.Document {
	return docstore.Document{
		FieldSenderID:  m.SenderID,
		FieldText:      m.Text,
		FieldTimestamp: m.Timestamp.UTC(),
		FieldRead:      m.Read,
	}
}

// ──────────────────────────────────────────────
// Tracking tokens and referral codes
// ──────────────────────────────────────────────

func DecodeTrackingToken(snap *docstore.Snapshot) *models.TrackingToken {
	if snap == nil || !snap.Exists {
		return nil
	}
	return &models.TrackingToken{
		Token:     snap.ID,
		UserID:    str(snap.Data, FieldUserID),
		CreatedAt: timeValue(snap.Data, FieldCreatedAt),
		ExpiresAt: timeValue(snap.Data, FieldExpiresAt),
	}
}

func EncodeTrackingToken(t *models.TrackingToken) docstore.Document {
	return docstore.Document{
		FieldUserID:    t.UserID,
		FieldCreatedAt: t.CreatedAt.UTC(),
		FieldExpiresAt: t.ExpiresAt.UTC(),
	}
}

func DecodeReferralCode(snap *docstore.Snapshot) *models.ReferralCode {
	if snap == nil || !snap.Exists {
		return nil
	}
	return &models.ReferralCode{
		Code:      snap.ID,
		UserID:    str(snap.Data, FieldUserID),
		CreatedAt: timeValue(snap.Data, FieldCreatedAt),
	}
}

func EncodeReferralCode(c *models.ReferralCode) docstore.Document {
	return docstore.Document{
		FieldUserID:    c.UserID,
		FieldCreatedAt: c.CreatedAt.UTC(),
	}
}
