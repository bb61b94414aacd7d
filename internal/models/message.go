package models

import "time"

// Message is a unit of channel communication. Image holds the stored JPEG bytes
// and encodes to base64 in JSON; a nil Image encodes as null.
type Message struct {
	ID        int       `db:"id" json:"id"`
	ChannelID int       `db:"channel_id" json:"channel_id"`
	UserID    int       `db:"user_id" json:"user_id"`
	Content   *string   `db:"content" json:"content"`
	Image     []byte    `db:"image" json:"image"`
	Type      string    `db:"type" json:"type"`
	Read      bool      `db:"read" json:"read"`
	SentAt    time.Time `db:"sent_at" json:"sent_at"`
}

// NewMessage is an inbound message before persistence. Image carries the raw
// encoded upload.
type NewMessage struct {
	ChannelID int
	UserID    int
	Content   *string
	Image     []byte
	Type      string
}

// MessageFilter narrows a message listing.
type MessageFilter struct {
	ChannelID *int
	UserID    *int
}

// MessageEvent is the payload of a live new_message event.
type MessageEvent struct {
	Message
	ChannelParticipants Participants `json:"channelParticipants"`
}

// MessageReadEvent is the payload of a live message_read event.
type MessageReadEvent struct {
	MessageID int `json:"message_id"`
	ChannelID int `json:"channel_id"`
}

// DeliveryReport describes what happened to a stored message after the write.
// Delivered is false when the channel could not be resolved and both the live
// broadcast and push were skipped.
type DeliveryReport struct {
	Message         Message       `json:"message"`
	Participants    *Participants `json:"participants,omitempty"`
	Delivered       bool          `json:"delivered"`
	LiveConnections int           `json:"live_connections"`
}
