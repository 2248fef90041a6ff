package models

import "time"

type Message struct {
	ID        string    `json:"id"`
	SenderID  string    `json:"sender_id"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Read      bool      `json:"read"`
}

// UnreadCount counts messages the viewer has not read and did not send.
func UnreadCount(messages []Message, viewer string) int {
	n := 0
	for _, m := range messages {
		if m.SenderID != viewer && !m.Read {
			n++
		}
	}
	return n
}

func (m *Message) Preview() *MessagePreview {
	return &MessagePreview{ID: m.ID, SenderID: m.SenderID, Text: m.Text, Timestamp: m.Timestamp}
}
