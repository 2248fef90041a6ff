package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"carhire/internal/config"
	"carhire/internal/models"
	"carhire/internal/repositories/documents"
	"carhire/internal/repositories/interfaces"
	"carhire/internal/utils"
	"carhire/pkg/docstore"
	"carhire/pkg/events"
	"carhire/pkg/logger"
	"carhire/pkg/websocket"
)

type ChatService interface {
	OpenOrCreateThread(ctx context.Context, subject models.Subject, otherUserID string, car models.CarInfo) (*models.ChatThread, error)
	SendMessage(ctx context.Context, subject models.Subject, threadID, text string) (*models.Message, error)
	MarkRead(ctx context.Context, subject models.Subject, threadID string) error
	DeleteThread(ctx context.Context, subject models.Subject, threadID string) error
	GetMessages(ctx context.Context, subject models.Subject, threadID string) ([]*models.Message, error)

	// ListThreadsFor streams the subject's live threads. Expired threads are left
	// out and queued for deletion.
	ListThreadsFor(ctx context.Context, subject models.Subject) (*ThreadListSubscription, error)

	// SweepExpired deletes every thread inactive for longer than the expiry window.
	SweepExpired(ctx context.Context) (int, error)
	// Run deletes queued expired threads and runs the periodic sweep until ctx ends.
	Run(ctx context.Context)
}

type chatService struct {
	store         docstore.Store
	chatRepo      interfaces.ChatRepository
	userRepo      interfaces.UserRepository
	notifications NotificationService
	messenger     UserMessenger
	publisher     events.Publisher
	logger        *logger.Logger

	window        time.Duration
	sweepInterval time.Duration
	maxLength     int
	now           func() time.Time

	expired  chan []string
	mu       sync.Mutex
	inFlight map[string]bool
}

func NewChatService(
	cfg *config.Config,
	store docstore.Store,
	chatRepo interfaces.ChatRepository,
	userRepo interfaces.UserRepository,
	notifications NotificationService,
	messenger UserMessenger,
	publisher events.Publisher,
	log *logger.Logger,
) ChatService {
	maxLength := cfg.Chat.MaxMessageLength
	if maxLength <= 0 {
		maxLength = utils.MaxMessageLength
	}
	return &chatService{
		store:         store,
		chatRepo:      chatRepo,
		userRepo:      userRepo,
		notifications: notifications,
		messenger:     messenger,
		publisher:     publisher,
		logger:        log,
		window:        cfg.Chat.ExpiryWindow,
		sweepInterval: cfg.Chat.SweepInterval,
		maxLength:     maxLength,
		now:           time.Now,
		expired:       make(chan []string, 16),
		inFlight:      make(map[string]bool),
	}
}

// ──────────────────────────────────────────────
// Threads
// ──────────────────────────────────────────────

func (s *chatService) OpenOrCreateThread(ctx context.Context, subject models.Subject, otherUserID string, car models.CarInfo) (*models.ChatThread, error) {
	if otherUserID == "" || car.ID == "" {
		return nil, validationError("participant and car are required")
	}
	if subject.Is(otherUserID) {
		return nil, validationError("cannot open a chat with yourself")
	}

	id := models.ThreadID(subject.UserID, otherUserID, car.ID)
	existing, err := s.chatRepo.GetThread(ctx, id)
	if err != nil && !errors.Is(err, interfaces.ErrNotFound) {
		return nil, storeFailure("get chat thread", err)
	}
	if existing != nil {
		if !existing.IsExpired(s.now(), s.window) {
			return existing, nil
		}
		if err := s.chatRepo.DeleteThreads(ctx, []string{id}); err != nil {
			return nil, storeFailure("delete expired thread", err)
		}
	}

	me, err := s.userRepo.GetByID(ctx, subject.UserID)
	if err != nil {
		return nil, storeFailure("get user", err)
	}
	other, err := s.userRepo.GetByID(ctx, otherUserID)
	if err != nil {
		return nil, storeFailure("get participant", err)
	}

	now := s.now().UTC()
	thread := &models.ChatThread{
		ID:           id,
		Participants: []string{subject.UserID, otherUserID},
		ParticipantNames: map[string]string{
			subject.UserID: me.DisplayName(),
			otherUserID:    other.DisplayName(),
		},
		CarInfo:      car,
		CreatedAt:    now,
		LastActivity: now,
		UnreadCounts: map[string]int{subject.UserID: 0, otherUserID: 0},
	}

	err = s.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		snap, err := tx.Get(documents.CollectionChats, id)
		if err != nil && !errors.Is(err, docstore.ErrNotFound) {
			return err
		}
		if current := documents.DecodeThread(snap); current != nil {
			thread = current
			return nil
		}
		return tx.Set(documents.CollectionChats, id, documents.EncodeThread(thread))
	})
	if err != nil {
		return nil, storeFailure("create chat thread", err)
	}

	s.logger.LogChatEvent(id, "thread_opened", map[string]interface{}{"car_id": car.ID})
	return thread, nil
}

func (s *chatService) DeleteThread(ctx context.Context, subject models.Subject, threadID string) error {
	thread, err := s.chatRepo.GetThread(ctx, threadID)
	if err != nil {
		return storeFailure("get chat thread", err)
	}
	if !thread.HasParticipant(subject.UserID) && !subject.IsAdmin() {
		return ErrNotParticipant
	}
	if err := s.chatRepo.DeleteThreads(ctx, []string{threadID}); err != nil {
		return storeFailure("delete chat thread", err)
	}
	s.logger.LogChatEvent(threadID, "thread_deleted", map[string]interface{}{"by": subject.UserID})
	return nil
}

// loadThread reads a thread inside a transaction and checks the subject may use it.
func (s *chatService) loadThread(tx docstore.Tx, subject models.Subject, threadID string) (*docstore.Snapshot, *models.ChatThread, error) {
	snap, err := tx.Get(documents.CollectionChats, threadID)
	if err != nil {
		return nil, nil, err
	}
	thread := documents.DecodeThread(snap)
	if !thread.HasParticipant(subject.UserID) {
		return nil, nil, ErrNotParticipant
	}
	if thread.IsExpired(s.now(), s.window) {
		return nil, nil, ErrThreadExpired
	}
	return snap, thread, nil
}

// ──────────────────────────────────────────────
// Messages
// ──────────────────────────────────────────────

func (s *chatService) SendMessage(ctx context.Context, subject models.Subject, threadID, text string) (*models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, validationError("message text is required")
	}
	if utf8.RuneCountInString(text) > s.maxLength {
		return nil, validationError("message exceeds %d characters", s.maxLength)
	}

	var (
		msg       *models.Message
		recipient string
		thread    *models.ChatThread
	)
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		snap, t, err := s.loadThread(tx, subject, threadID)
		if err != nil {
			return err
		}
		thread = t
		recipient = t.OtherParticipant(subject.UserID)

		now := s.now().UTC()
		msg = &models.Message{
			ID:        uuid.NewString(),
			SenderID:  subject.UserID,
			Text:      text,
			Timestamp: now,
		}

		updates := []docstore.Update{
			{Path: documents.FieldLastActivity, Value: now},
			{Path: documents.FieldLastMessage, Value: documents.EncodePreview(msg.Preview())},
		}
		if documents.HasUnreadCounters(snap) {
			updates = append(updates, docstore.Update{
				Path:  documents.Path(documents.FieldUnreadCounts, recipient),
				Value: docstore.Increment(1),
			})
		} else {
			updates = append(updates, docstore.Update{
				Path:  documents.FieldUnreadCounts,
				Value: counters(t, recipient, t.UnreadFor(recipient)+1),
			})
		}

		if err := tx.Set(documents.MessagesCollection(threadID), msg.ID, documents.EncodeMessage(msg)); err != nil {
			return err
		}
		return tx.Update(documents.CollectionChats, threadID, updates)
	})
	if err != nil {
		return nil, s.chatFailure("send message", err)
	}

	frame := websocket.NewMessage(utils.WSTypeNewMessage, map[string]interface{}{
		"thread_id": threadID,
		"message":   msg,
	})
	if s.messenger != nil {
		s.messenger.SendToUser(subject.UserID, frame)
		s.messenger.SendToUser(recipient, frame)
	}
	if s.notifications != nil && recipient != "" {
		s.notifications.Alert(ctx, recipient, models.Notification{
			ID:        "chat_" + msg.ID,
			Type:      models.NotificationChatMessage,
			Title:     "New message from " + thread.ParticipantNames[subject.UserID],
			Message:   previewText(text),
			CreatedAt: msg.Timestamp,
		}, map[string]string{"thread_id": threadID})
	}

	s.logger.LogChatEvent(threadID, "message_sent", map[string]interface{}{"sender_id": subject.UserID})
	return msg, nil
}

// MarkRead marks every incoming message of the viewer read and zeroes their counter
// in one transaction. The other participant's counter is untouched.
func (s *chatService) MarkRead(ctx context.Context, subject models.Subject, threadID string) error {
	err := s.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		snap, thread, err := s.loadThread(tx, subject, threadID)
		if err != nil {
			return err
		}
		unread, err := tx.Query(docstore.Collection(documents.MessagesCollection(threadID)).
			Where(documents.FieldRead, docstore.OpEqual, false))
		if err != nil {
			return err
		}

		for _, m := range unread {
			if documents.DecodeMessage(m).SenderID == subject.UserID {
				continue
			}
			if err := tx.Update(documents.MessagesCollection(threadID), m.ID, []docstore.Update{
				{Path: documents.FieldRead, Value: true},
			}); err != nil {
				return err
			}
		}

		var updates []docstore.Update
		if documents.HasUnreadCounters(snap) {
			updates = append(updates, docstore.Update{
				Path:  documents.Path(documents.FieldUnreadCounts, subject.UserID),
				Value: 0,
			})
		} else {
			updates = append(updates, docstore.Update{
				Path:  documents.FieldUnreadCounts,
				Value: counters(thread, subject.UserID, 0),
			})
		}
		if legacy, ok := documents.MarkEmbeddedRead(snap, subject.UserID); ok {
			updates = append(updates, docstore.Update{Path: documents.LegacyMessagesField, Value: legacy})
		}
		return tx.Update(documents.CollectionChats, threadID, updates)
	})
	if err != nil {
		return s.chatFailure("mark messages read", err)
	}
	return nil
}

func (s *chatService) GetMessages(ctx context.Context, subject models.Subject, threadID string) ([]*models.Message, error) {
	thread, err := s.chatRepo.GetThread(ctx, threadID)
	if err != nil {
		return nil, storeFailure("get chat thread", err)
	}
	if !thread.HasParticipant(subject.UserID) {
		return nil, ErrNotParticipant
	}
	if thread.IsExpired(s.now(), s.window) {
		return nil, ErrThreadExpired
	}
	msgs, err := s.chatRepo.GetMessages(ctx, threadID)
	if err != nil {
		return nil, storeFailure("get messages", err)
	}
	return msgs, nil
}

// counters returns the thread's full counter map with one entry replaced.
func counters(thread *models.ChatThread, userID string, value int) map[string]interface{} {
	out := make(map[string]interface{}, len(thread.Participants))
	for _, p := range thread.Participants {
		out[p] = thread.UnreadFor(p)
	}
	out[userID] = value
	return out
}

func previewText(text string) string {
	const max = 80
	if utf8.RuneCountInString(text) <= max {
		return text
	}
	return string([]rune(text)[:max]) + "…"
}

func (s *chatService) chatFailure(op string, err error) error {
	if errors.Is(err, ErrNotParticipant) || errors.Is(err, ErrThreadExpired) {
		return err
	}
	return storeFailure(op, err)
}

// ──────────────────────────────────────────────
// Thread lists and expiry
// ──────────────────────────────────────────────

// SummarizeThreads builds the list a viewer sees: live threads only, newest message
// first, ties kept in store order. It also returns the ids of expired threads.
func SummarizeThreads(threads []*models.ChatThread, viewer string, now time.Time, window time.Duration) (models.ThreadList, []string) {
	list := models.ThreadList{Summaries: make([]models.ChatSummary, 0, len(threads))}
	var expired []string
	for _, t := range threads {
		if t.IsExpired(now, window) {
			expired = append(expired, t.ID)
			continue
		}
		other := t.OtherParticipant(viewer)
		unread := t.UnreadFor(viewer)
		list.Summaries = append(list.Summaries, models.ChatSummary{
			ThreadID:        t.ID,
			OtherUserID:     other,
			OtherUserName:   t.ParticipantNames[other],
			CarInfo:         t.CarInfo,
			LastMessage:     t.LastMessage,
			LastMessageTime: t.LastMessageTime(),
			UnreadCount:     unread,
			LastActivity:    t.ActivityAt(),
		})
		list.UnreadTotal += unread
	}
	sort.SliceStable(list.Summaries, func(i, j int) bool {
		return list.Summaries[i].LastMessageTime.After(list.Summaries[j].LastMessageTime)
	})
	return list, expired
}

func (s *chatService) ListThreadsFor(ctx context.Context, subject models.Subject) (*ThreadListSubscription, error) {
	if subject.UserID == "" {
		return nil, fmt.Errorf("%w: no subject", ErrPermissionDenied)
	}
	watch, err := s.chatRepo.WatchThreadsFor(ctx, subject.UserID)
	if err != nil {
		return nil, storeFailure("watch chat threads", err)
	}

	sub := &ThreadListSubscription{
		lists: make(chan models.ThreadList, 1),
		stop:  watch.Stop,
	}
	go func() {
		defer close(sub.lists)
		for ch := range watch.Changes() {
			if ch.Err != nil {
				s.logger.WithUserID(subject.UserID).WithError(ch.Err).Warn("Thread list listener ended")
				sub.setErr(ch.Err)
				return
			}
			list, expired := SummarizeThreads(ch.Value, subject.UserID, s.now(), s.window)
			if len(expired) > 0 {
				s.queueExpired(expired)
			}
			sub.deliver(list)
		}
	}()
	return sub, nil
}

// queueExpired hands ids to the sweeper without blocking the list stream.
func (s *chatService) queueExpired(ids []string) {
	s.mu.Lock()
	fresh := ids[:0:0]
	for _, id := range ids {
		if !s.inFlight[id] {
			s.inFlight[id] = true
			fresh = append(fresh, id)
		}
	}
	s.mu.Unlock()
	if len(fresh) == 0 {
		return
	}

	select {
	case s.expired <- fresh:
	default:
		s.release(fresh)
	}
}

func (s *chatService) release(ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.inFlight, id)
	}
}

func (s *chatService) deleteExpired(ctx context.Context, ids []string) error {
	if err := s.chatRepo.DeleteThreads(ctx, ids); err != nil {
		return err
	}
	s.logger.LogChatEvent("", "threads_expired", map[string]interface{}{"count": len(ids), "thread_ids": ids})
	if s.publisher != nil {
		ev := events.New(utils.EventChatThreadsExpired, "", map[string]interface{}{"thread_ids": ids})
		if err := s.publisher.Publish(ctx, ev); err != nil {
			s.logger.WithError(err).Warn("Failed to publish chat expiry event")
		}
	}
	return nil
}

func (s *chatService) SweepExpired(ctx context.Context) (int, error) {
	now := s.now()
	threads, err := s.chatRepo.FindInactiveSince(ctx, now.Add(-s.window), 500)
	if err != nil {
		return 0, storeFailure("find inactive threads", err)
	}
	var ids []string
	for _, t := range threads {
		if t.IsExpired(now, s.window) {
			ids = append(ids, t.ID)
		}
	}
	if len(ids) == 0 {
		return 0, nil
	}
	if err := s.deleteExpired(ctx, ids); err != nil {
		return 0, storeFailure("delete expired threads", err)
	}
	return len(ids), nil
}

func (s *chatService) Run(ctx context.Context) {
	var tick <-chan time.Time
	if s.sweepInterval > 0 {
		ticker := time.NewTicker(s.sweepInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ids := <-s.expired:
			if err := s.deleteExpired(ctx, ids); err != nil {
				s.logger.WithError(err).Error("Failed to delete expired chat threads")
			}
			s.release(ids)
		case <-tick:
			if n, err := s.SweepExpired(ctx); err != nil {
				s.logger.WithError(err).Error("Chat expiry sweep failed")
			} else if n > 0 {
				s.logger.Infof("Chat expiry sweep deleted %d threads", n)
			}
		}
	}
}

// ThreadListSubscription delivers the latest ThreadList of a user.
type ThreadListSubscription struct {
	lists chan models.ThreadList
	stop  func()
	once  sync.Once

	mu  sync.Mutex
	err error
}

// Lists is closed when the listener ends.
func (s *ThreadListSubscription) Lists() <-chan models.ThreadList {
	return s.lists
}

func (s *ThreadListSubscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *ThreadListSubscription) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *ThreadListSubscription) deliver(list models.ThreadList) {
	select {
	case <-s.lists:
	default:
	}
	select {
	case s.lists <- list:
	default:
	}
}

func (s *ThreadListSubscription) Unsubscribe() {
	s.once.Do(s.stop)
}
