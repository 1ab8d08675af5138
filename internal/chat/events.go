package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Inbound event names, client to server.
const (
	EventJoin           = "join"
	EventSendMessage    = "send_message"
	EventPrivateMessage = "private_message"
	EventTypingStart    = "typing_start"
	EventTypingStop     = "typing_stop"
)

// Outbound event names, server to client. private_message is shared with
// the inbound direction.
const (
	EventMessageHistory = "message_history"
	EventUsersList      = "users_list"
	EventNewMessage     = "new_message"
	EventUserJoined     = "user_joined"
	EventUserLeft       = "user_left"
	EventUserTyping     = "user_typing"
	EventDeliveryFailed = "delivery_failed"
)

// Payload limits.
const (
	MaxTextLength     = 1000 // UTF-16 code units
	MaxUsernameLength = 50
	MaxAvatarLength   = 2048
)

// ErrPayloadInvalid wraps every reason an inbound frame is rejected.
var ErrPayloadInvalid = errors.New("invalid payload")

// Envelope is the JSON frame carried by every WebSocket message.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// JoinPayload is the data of a join event.
type JoinPayload struct {
	Username string `json:"username"`
	Avatar   string `json:"avatar,omitempty"`
}

// SendPayload is the data of a send_message event.
type SendPayload struct {
	Text string `json:"text"`
}

// PrivatePayload is the data of an inbound private_message event.
type PrivatePayload struct {
	Text      string `json:"text"`
	Recipient string `json:"recipient"`
}

// Inbound is a decoded and validated client event. Only the fields relevant
// to Event are set.
type Inbound struct {
	Event     string
	Username  string
	Avatar    string
	Text      string
	Recipient string
}

// DecodeInbound parses and validates one client frame. Every failure wraps
// ErrPayloadInvalid.
func DecodeInbound(raw []byte) (Inbound, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Inbound{}, fmt.Errorf("%w: %v", ErrPayloadInvalid, err)
	}

	in := Inbound{Event: env.Event}
	switch env.Event {
	case EventJoin:
		var p JoinPayload
		if err := decodeData(env.Data, &p); err != nil {
			return Inbound{}, err
		}
		username, err := validateUsername(p.Username)
		if err != nil {
			return Inbound{}, err
		}
		avatar := strings.TrimSpace(p.Avatar)
		if len(avatar) > MaxAvatarLength {
			return Inbound{}, fmt.Errorf("%w: avatar exceeds %d bytes", ErrPayloadInvalid, MaxAvatarLength)
		}
		in.Username, in.Avatar = username, avatar

	case EventSendMessage:
		var p SendPayload
		if err := decodeData(env.Data, &p); err != nil {
			return Inbound{}, err
		}
		if err := validateText(p.Text); err != nil {
			return Inbound{}, err
		}
		in.Text = p.Text

	case EventPrivateMessage:
		var p PrivatePayload
		if err := decodeData(env.Data, &p); err != nil {
			return Inbound{}, err
		}
		if err := validateText(p.Text); err != nil {
			return Inbound{}, err
		}
		if strings.TrimSpace(p.Recipient) == "" {
			return Inbound{}, fmt.Errorf("%w: recipient is required", ErrPayloadInvalid)
		}
		in.Text, in.Recipient = p.Text, p.Recipient

	case EventTypingStart, EventTypingStop:
		// No payload.

	case "":
		return Inbound{}, fmt.Errorf("%w: event is required", ErrPayloadInvalid)

	default:
		return Inbound{}, fmt.Errorf("%w: unknown event %q", ErrPayloadInvalid, env.Event)
	}
	return in, nil
}

// Encode marshals an outbound frame.
func Encode(event string, data any) ([]byte, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", event, err)
	}
	return json.Marshal(Envelope{Event: event, Data: payload})
}

func decodeData(data json.RawMessage, v any) error {
	if len(data) == 0 || string(data) == "null" {
		return fmt.Errorf("%w: data is required", ErrPayloadInvalid)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrPayloadInvalid, err)
	}
	return nil
}

func validateUsername(username string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return "", fmt.Errorf("%w: username is required", ErrPayloadInvalid)
	}
	if utf8.RuneCountInString(username) > MaxUsernameLength {
		return "", fmt.Errorf("%w: username exceeds %d characters", ErrPayloadInvalid, MaxUsernameLength)
	}
	return username, nil
}

func validateText(text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: text is required", ErrPayloadInvalid)
	}
	if !utf8.ValidString(text) {
		return fmt.Errorf("%w: text is not valid UTF-8", ErrPayloadInvalid)
	}
	if textLength(text) > MaxTextLength {
		return fmt.Errorf("%w: text exceeds %d code units", ErrPayloadInvalid, MaxTextLength)
	}
	return nil
}
