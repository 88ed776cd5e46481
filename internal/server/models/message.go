package models

import "time"

// Message is one chat message.
//
// In storage Content holds the encrypted envelope; once returned by the
// message service it holds plaintext. Undecryptable marks a message whose
// envelope could not be opened; its Content is empty.
type Message struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversationId"`
	SenderID       int64     `json:"senderId"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"createdAt"`
	Undecryptable  bool      `json:"undecryptable,omitempty"`
}
