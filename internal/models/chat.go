package models

import "time"

// ChatMessage is a message inside a rundezvous chat, stored in PostgreSQL.
// The auto-incrementing ID doubles as the polling cursor: clients fetch
// everything after the last ID they have.
type ChatMessage struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	RundezvousID string    `gorm:"type:uuid;not null;index:idx_rdv_msg" json:"rundezvous_id"`
	SenderID     string    `gorm:"not null;index:idx_rdv_msg" json:"sender_id"`
	Text         string    `gorm:"size:140;not null" json:"text"`
	SentAt       time.Time `gorm:"not null;index" json:"sent_at"`
}

// ChatEvent is the wire payload fanned out to connected clients over Redis
// pub/sub and WebSocket. Status changes ride the same channel as chat text.
type ChatEvent struct {
	RundezvousID string `json:"rundezvous_id"`
	SenderID     string `json:"sender_id"`
	// Type is "text", "system_match_found", "system_meetup_started",
	// "system_arrived" or "system_closed".
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
	// MessageID is set for persisted text messages.
	MessageID uint `json:"message_id,omitempty"`
}
