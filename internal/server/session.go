package server

import (
	"errors"

	"github.com/Tyrowin/messenger/internal/chat"
	"github.com/Tyrowin/messenger/internal/metrics"
	"github.com/Tyrowin/messenger/internal/presence"
)

// SessionState is the lifecycle stage of a connection.
type SessionState int

const (
	StateConnecting SessionState = iota
	StateJoined
	StateDisconnected
)

func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateJoined:
		return "joined"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

func (h *Hub) handleInbound(c *Client, in chat.Inbound) {
	if _, ok := h.clients[c]; !ok {
		return
	}

	switch c.state {
	case StateConnecting:
		if in.Event != chat.EventJoin {
			c.logger.Debug("dropping event before join", "event", in.Event)
			h.dropped(metrics.DropNotJoined)
			return
		}
		h.handleJoin(c, in)

	case StateJoined:
		switch in.Event {
		case chat.EventJoin:
			c.logger.Debug("dropping repeated join")
			h.dropped(metrics.DropDuplicate)
		case chat.EventSendMessage:
			h.handleSend(c, in.Text)
		case chat.EventPrivateMessage:
			h.handlePrivate(c, in.Recipient, in.Text)
		case chat.EventTypingStart:
			h.handleTyping(c, true)
		case chat.EventTypingStop:
			h.handleTyping(c, false)
		}

	default:
		// Disconnected sessions take no further events.
	}
}

func (h *Hub) handleJoin(c *Client, in chat.Inbound) {
	avatar := in.Avatar
	if avatar == "" {
		avatar = chat.DefaultAvatar(in.Username)
	}

	users := h.presence.List()
	recent := h.history.Recent(h.cfg.ReplayLimit)

	user, err := h.presence.Register(c.id, in.Username, avatar)
	if err != nil {
		if errors.Is(err, presence.ErrDuplicateConnection) {
			c.logger.Error("duplicate registration", "error", err)
			h.dropped(metrics.DropDuplicate)
		}
		return
	}

	c.state = StateJoined
	h.joined[c.id] = c
	h.router.Add(c.id, c)
	h.metrics.UsersOnline.Set(float64(h.presence.Len()))
	c.logger.Info("user joined", "user", user.Username)

	if err := h.unicast(c.id, chat.EventUsersList, users); err != nil {
		return
	}
	if err := h.unicast(c.id, chat.EventMessageHistory, recent); err != nil {
		return
	}
	h.broadcast(chat.EventUserJoined, user, c.id)
}

func (h *Hub) handleSend(c *Client, text string) {
	user, err := h.presence.Get(c.id)
	if err != nil {
		return
	}

	if user.IsTyping {
		if user, err = h.presence.SetTyping(c.id, false); err != nil {
			return
		}
		h.broadcast(chat.EventUserTyping, typingEvent(user), c.id)
	}

	msg := chat.NewBroadcast(user, text, h.now())
	h.history.Append(msg)
	h.metrics.Messages.WithLabelValues(string(chat.KindBroadcast)).Inc()
	h.metrics.HistorySize.Set(float64(h.history.Len()))

	h.broadcast(chat.EventNewMessage, msg, "")
}

func (h *Hub) handlePrivate(c *Client, recipient, text string) {
	user, err := h.presence.Get(c.id)
	if err != nil {
		return
	}

	msg := chat.NewPrivate(user, recipient, text, h.now())

	err = h.unicast(recipient, chat.EventPrivateMessage, msg)
	if errors.Is(err, ErrRecipientOffline) {
		h.metrics.DeliveriesFailed.WithLabelValues(metrics.FailRecipientOffline).Inc()
		c.logger.Debug("private message recipient offline", "recipient", recipient)
		_ = h.unicast(c.id, chat.EventDeliveryFailed, chat.DeliveryFailure{
			Reason:    chat.ReasonRecipientOffline,
			Recipient: recipient,
			MessageID: msg.ID,
		})
		return
	}
	h.metrics.Messages.WithLabelValues(string(chat.KindPrivate)).Inc()

	if recipient != c.id {
		_ = h.unicast(c.id, chat.EventPrivateMessage, msg)
	}
}

func (h *Hub) handleTyping(c *Client, typing bool) {
	user, err := h.presence.SetTyping(c.id, typing)
	if err != nil {
		return
	}
	h.broadcast(chat.EventUserTyping, typingEvent(user), c.id)
}

// handleLeave ends a joined session. Only the call that actually removes the
// user announces user_left.
func (h *Hub) handleLeave(c *Client) {
	if c.state != StateJoined {
		c.state = StateDisconnected
		return
	}
	c.state = StateDisconnected
	delete(h.joined, c.id)
	h.router.Remove(c.id)

	user, err := h.presence.Deregister(c.id)
	if err != nil {
		return
	}
	h.metrics.UsersOnline.Set(float64(h.presence.Len()))
	c.logger.Info("user left", "user", user.Username)

	h.broadcast(chat.EventUserLeft, user, "")
}

func typingEvent(u presence.User) chat.TypingEvent {
	return chat.TypingEvent{UserID: u.ID, Username: u.Username, IsTyping: u.IsTyping}
}
