package handlers

import (
	"context"
	"sync"

	"github.com/gin-gonic/gin"

	"carhire/internal/middleware"
	"carhire/internal/models"
	"carhire/internal/services"
	"carhire/internal/utils"
	"carhire/pkg/geolocation"
	"carhire/pkg/logger"
	"carhire/pkg/websocket"
)

// RealtimeHandler serves the authenticated device socket. The device streams its
// position fixes over it and receives sharing, trip and thread list updates.
type RealtimeHandler struct {
	location services.LocationService
	tracker  services.TripTracker
	chats    services.ChatService
	log      *logger.Logger
}

func NewRealtimeHandler(location services.LocationService, tracker services.TripTracker, chats services.ChatService, log *logger.Logger) *RealtimeHandler {
	return &RealtimeHandler{location: location, tracker: tracker, chats: chats, log: log}
}

type tripPayload struct {
	TripID string `json:"trip_id"`
}

type positionErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// deviceSession is the server side of one device connection.
type deviceSession struct {
	h       *RealtimeHandler
	client  *websocket.Client
	subject models.Subject
	source  *geolocation.StreamSource
	ctx     context.Context
	cancel  context.CancelFunc
	log     *logger.Logger

	mu      sync.Mutex
	closed  bool
	sharing *services.SharingSession
	trip    *services.TripSubscription
	threads *services.ThreadListSubscription
}

// Attach is the websocket.ConnectFunc of the device socket. Sharing that was on
// when the device last disconnected resumes right away.
func (h *RealtimeHandler) Attach(c *gin.Context, client *websocket.Client) {
	ctx, cancel := context.WithCancel(context.Background())
	subject := middleware.Subject(c)
	s := &deviceSession{
		h:       h,
		client:  client,
		subject: subject,
		source:  geolocation.NewStreamSource(),
		ctx:     ctx,
		cancel:  cancel,
		log:     h.log.WithUserID(subject.UserID),
	}
	client.OnMessage(s.handle)
	client.OnClose(s.close)

	go s.resume()
}

func (s *deviceSession) handle(msg websocket.Message) {
	switch msg.Type {
	case utils.WSTypePosition:
		var pos geolocation.Position
		if err := msg.Decode(&pos); err != nil {
			s.sendError("VALIDATION_ERROR", "malformed position")
			return
		}
		s.source.Push(pos)

	case utils.WSTypePositionError:
		var payload positionErrorPayload
		if err := msg.Decode(&payload); err != nil {
			s.sendError("VALIDATION_ERROR", "malformed position error")
			return
		}
		s.source.Fail(&geolocation.PositionError{Code: geolocation.ErrorCode(payload.Code), Message: payload.Message})

	case utils.WSTypeStart:
		var payload tripPayload
		if err := msg.Decode(&payload); err != nil {
			s.sendError("VALIDATION_ERROR", "malformed start")
			return
		}
		// The first fix arrives on this same socket, so starting must not block
		// the reader.
		go s.start(payload.TripID)

	case utils.WSTypeStop:
		var payload tripPayload
		_ = msg.Decode(&payload)
		go s.stop(payload.TripID)

	case utils.WSTypeTrackTrip:
		var payload tripPayload
		if err := msg.Decode(&payload); err != nil || payload.TripID == "" {
			s.sendError("VALIDATION_ERROR", "trip_id is required")
			return
		}
		go s.trackTrip(payload.TripID)

	case utils.WSTypeUntrackTrip:
		s.untrackTrip()

	case utils.WSTypeWatchThreads:
		go s.watchThreads()

	case utils.WSTypeUnwatchThreads:
		s.unwatchThreads()

	default:
		s.sendError("BAD_REQUEST", "unknown message type "+msg.Type)
	}
}

// ──────────────────────────────────────────────
// Location sharing
// ──────────────────────────────────────────────

func (s *deviceSession) resume() {
	session, err := s.h.location.Resume(s.ctx, s.subject, s.source)
	if err != nil {
		s.log.WithError(err).Warn("Failed to resume location sharing")
		s.fail(err)
		return
	}
	if session != nil {
		s.started(session)
	}
}

func (s *deviceSession) start(tripID string) {
	session, err := s.h.location.StartSharing(s.ctx, s.subject, s.subject.UserID, tripID, s.source)
	if err != nil {
		s.fail(err)
		return
	}
	s.started(session)
}

func (s *deviceSession) started(session *services.SharingSession) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.h.location.Suspend(s.subject.UserID)
		return
	}
	s.sharing = session
	s.mu.Unlock()

	s.client.Send(websocket.NewMessage(utils.WSTypeSharingStarted, tripPayload{TripID: session.TripID}))

	go func() {
		select {
		case <-s.ctx.Done():
			return
		case <-session.Done():
		}
		frame := map[string]string{"trip_id": session.TripID}
		if err := session.Err(); err != nil {
			frame["code"] = errorCode(err)
			frame["reason"] = err.Error()
		}
		s.client.Send(websocket.NewMessage(utils.WSTypeSharingStopped, frame))
	}()
}

func (s *deviceSession) stop(tripID string) {
	if err := s.h.location.StopSharing(s.ctx, s.subject, s.subject.UserID, tripID); err != nil {
		s.fail(err)
		return
	}
	s.mu.Lock()
	session := s.sharing
	s.sharing = nil
	s.mu.Unlock()
	// A live session reports its own end through the watcher started with it.
	if session == nil {
		s.client.Send(websocket.NewMessage(utils.WSTypeSharingStopped, tripPayload{TripID: tripID}))
	}
}

// ──────────────────────────────────────────────
// Trip and thread streams
// ──────────────────────────────────────────────

func (s *deviceSession) trackTrip(tripID string) {
	sub, err := s.h.tracker.Subscribe(s.ctx, s.subject, tripID, "", "")
	if err != nil {
		s.fail(err)
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		sub.Unsubscribe()
		return
	}
	prev := s.trip
	s.trip = sub
	s.mu.Unlock()
	if prev != nil {
		prev.Unsubscribe()
	}

	go func() {
		for {
			select {
			case <-sub.Done():
				return
			case view := <-sub.Views():
				s.client.Send(websocket.NewMessage(utils.WSTypeTripView, view))
			}
		}
	}()
}

func (s *deviceSession) untrackTrip() {
	s.mu.Lock()
	sub := s.trip
	s.trip = nil
	s.mu.Unlock()
	if sub != nil {
		go sub.Unsubscribe()
	}
}

func (s *deviceSession) watchThreads() {
	sub, err := s.h.chats.ListThreadsFor(s.ctx, s.subject)
	if err != nil {
		s.fail(err)
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		sub.Unsubscribe()
		return
	}
	prev := s.threads
	s.threads = sub
	s.mu.Unlock()
	if prev != nil {
		prev.Unsubscribe()
	}

	go func() {
		for list := range sub.Lists() {
			s.client.Send(websocket.NewMessage(utils.WSTypeThreadList, list))
		}
		if err := sub.Err(); err != nil {
			s.fail(err)
		}
	}()
}

func (s *deviceSession) unwatchThreads() {
	s.mu.Lock()
	sub := s.threads
	s.threads = nil
	s.mu.Unlock()
	if sub != nil {
		sub.Unsubscribe()
	}
}

// close runs once the socket has been read to its end. A sharing session that is
// still live is suspended, not stopped, so the next connection resumes it.
func (s *deviceSession) close() {
	s.mu.Lock()
	s.closed = true
	sharing, trip, threads := s.sharing, s.trip, s.threads
	s.sharing, s.trip, s.threads = nil, nil, nil
	s.mu.Unlock()

	if sharing != nil {
		select {
		case <-sharing.Done():
		default:
			s.h.location.Suspend(s.subject.UserID)
		}
	}
	s.source.Close()
	if trip != nil {
		trip.Unsubscribe()
	}
	if threads != nil {
		threads.Unsubscribe()
	}
	s.cancel()
}

func (s *deviceSession) fail(err error) {
	s.client.Send(websocket.NewMessage(utils.WSTypeError, errorFrame(err)))
}

func (s *deviceSession) sendError(code, message string) {
	s.client.Send(websocket.NewMessage(utils.WSTypeError, map[string]string{"code": code, "message": message}))
}
