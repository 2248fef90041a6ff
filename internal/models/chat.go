package models

import (
	"sort"
	"strings"
	"time"
)

type CarInfo struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// MessagePreview is the denormalized last message kept on a thread.
type MessagePreview struct {
	ID        string    `json:"id"`
	SenderID  string    `json:"sender_id"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

type ChatThread struct {
	ID               string            `json:"id"`
	Participants     []string          `json:"participants"`
	ParticipantNames map[string]string `json:"participant_names"`
	CarInfo          CarInfo           `json:"car_info"`
	CreatedAt        time.Time         `json:"created_at"`
	LastActivity     time.Time         `json:"last_activity"`
	LastMessage      *MessagePreview   `json:"last_message,omitempty"`
	UnreadCounts     map[string]int    `json:"-"`
}

// ThreadID is deterministic for a pair of users and a vehicle, so reopening a
// conversation finds the existing thread.
func ThreadID(a, b, carID string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return strings.Join(ids, "_") + "_" + carID
}

func (c *ChatThread) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// OtherParticipant returns the participant that is not the viewer.
func (c *ChatThread) OtherParticipant(viewer string) string {
	for _, p := range c.Participants {
		if p != viewer {
			return p
		}
	}
	return ""
}

// ActivityAt is the later of lastActivity and createdAt.
func (c *ChatThread) ActivityAt() time.Time {
	if c.LastActivity.After(c.CreatedAt) {
		return c.LastActivity
	}
	return c.CreatedAt
}

// IsExpired reports whether the thread has been inactive for longer than window.
func (c *ChatThread) IsExpired(now time.Time, window time.Duration) bool {
	return now.Sub(c.ActivityAt()) > window
}

// LastMessageTime orders thread lists.
func (c *ChatThread) LastMessageTime() time.Time {
	if c.LastMessage != nil && !c.LastMessage.Timestamp.IsZero() {
		return c.LastMessage.Timestamp
	}
	return c.ActivityAt()
}

func (c *ChatThread) UnreadFor(viewer string) int {
	return c.UnreadCounts[viewer]
}

type ChatSummary struct {
	ThreadID        string          `json:"thread_id"`
	OtherUserID     string          `json:"other_user_id"`
	OtherUserName   string          `json:"other_user_name"`
	CarInfo         CarInfo         `json:"car_info"`
	LastMessage     *MessagePreview `json:"last_message,omitempty"`
	LastMessageTime time.Time       `json:"last_message_time"`
	UnreadCount     int             `json:"unread_count"`
	LastActivity    time.Time       `json:"last_activity"`
}

// ThreadList is one snapshot of a user's conversations.
type ThreadList struct {
	Summaries   []ChatSummary `json:"summaries"`
	UnreadTotal int           `json:"unread_total"`
}
