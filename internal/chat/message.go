// Package chat defines the chat message model and the JSON wire protocol
// exchanged with WebSocket clients.
package chat

import (
	"net/url"
	"time"
	"unicode/utf16"

	"github.com/google/uuid"

	"github.com/Tyrowin/messenger/internal/presence"
)

// Kind distinguishes room-wide messages from addressed ones.
type Kind string

const (
	KindBroadcast Kind = "broadcast"
	KindPrivate   Kind = "private"
)

// Author is the sender's identity as it was when the message was sent.
type Author struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

// AuthorOf snapshots the display fields of u.
func AuthorOf(u presence.User) Author {
	return Author{ID: u.ID, Username: u.Username, Avatar: u.Avatar}
}

// Message is an immutable chat message.
type Message struct {
	ID          string    `json:"id"`
	Text        string    `json:"text"`
	Author      Author    `json:"user"`
	Timestamp   time.Time `json:"timestamp"`
	Kind        Kind      `json:"type"`
	RecipientID string    `json:"recipient,omitempty"`
}

// NewBroadcast builds a room-wide message with a fresh id.
func NewBroadcast(author presence.User, text string, at time.Time) Message {
	return Message{
		ID:        uuid.NewString(),
		Text:      text,
		Author:    AuthorOf(author),
		Timestamp: at,
		Kind:      KindBroadcast,
	}
}

// NewPrivate builds a message addressed to recipientID with a fresh id.
func NewPrivate(author presence.User, recipientID, text string, at time.Time) Message {
	return Message{
		ID:          uuid.NewString(),
		Text:        text,
		Author:      AuthorOf(author),
		Timestamp:   at,
		Kind:        KindPrivate,
		RecipientID: recipientID,
	}
}

// TypingEvent announces a change of a user's typing state.
type TypingEvent struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	IsTyping bool   `json:"isTyping"`
}

// DeliveryFailure tells a sender that a private message was not delivered.
type DeliveryFailure struct {
	Reason    string `json:"reason"`
	Recipient string `json:"recipient"`
	MessageID string `json:"messageId"`
}

// ReasonRecipientOffline is the DeliveryFailure reason for an absent recipient.
const ReasonRecipientOffline = "recipient_offline"

// DefaultAvatar returns the generated avatar URL used when a client joins
// without one.
func DefaultAvatar(username string) string {
	return "https://ui-avatars.com/api/?name=" + url.QueryEscape(username) + "&background=random"
}

// textLength counts UTF-16 code units, the unit browser clients measure in.
func textLength(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}
