package realtime

import (
	"encoding/json"
	"errors"
	"fmt"

	"waveline/models"
)

// Outbound event names understood by the backend.
const (
	eventRegister      = "register"
	eventOpen          = "open"
	eventMarkAsRead    = "markAsRead"
	eventSendMessage   = "sendMessage"
	eventRecallMessage = "recallMessage"
	eventDeleteMessage = "deleteMessage"
	eventEditMessage   = "editMessage"
	eventClose         = "close"
	eventDeleteFriend  = "deleteFriend"
)

// Inbound event names emitted by the backend. Some arrive under two names
// depending on whether the backend routes them through the notify fan-out.
const (
	eventReceiveMessage      = "receiveMessage"
	eventMessageRecall       = "messageRecall"
	eventNotifyRecallMessage = "notifyRecallMessage"
	eventMessageDelete       = "messageDelete"
	eventNotifyMessageDelete = "notifyMessageDelete"
	eventMessageEdit         = "messageEdit"
	eventNotifyMessageEdit   = "notifyMessageEdit"
	eventUnreadCountUpdated  = "unreadCountUpdated"
	eventUserStatusUpdate    = "userStatusUpdate"
	eventSocketError         = "socketError"
	eventAck                 = "ack"
)

// ErrUnknownEvent indicates a frame whose event name is outside the closed
// set this client understands.
var ErrUnknownEvent = errors.New("realtime: unknown event")

// envelope is the wire frame: an event name plus its payload.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// RecallEvent retracts a message for every participant.
type RecallEvent struct {
	ConversationID string `json:"conversationId"`
	MessageID      string `json:"messageId"`
}

// DeleteEvent removes a message. TempID is the sender-local correlation hint
// some backends attach when the delete raced ahead of reconciliation.
type DeleteEvent struct {
	ConversationID string `json:"conversationId"`
	MessageID      string `json:"messageId"`
	TempID         string `json:"tempId,omitempty"`
}

// EditEvent replaces a message's content.
type EditEvent struct {
	ConversationID string `json:"conversationId"`
	MessageID      string `json:"messageId"`
	NewContent     string `json:"newContent"`
	UpdatedAt      int64  `json:"updatedAt,omitempty"`
}

// UnreadEvent updates a conversation's unread counter and preview.
type UnreadEvent struct {
	ConversationID string `json:"conversationId"`
	UnreadCount    int    `json:"unreadCount"`
	LastMessage    string `json:"lastMessage,omitempty"`
	LastMessageAt  int64  `json:"lastMessageAt,omitempty"`
}

// PresenceEvent reports another participant going online or offline.
type PresenceEvent struct {
	ProfileID  string `json:"profileId"`
	Status     string `json:"status"`
	LastSeenAt int64  `json:"lastSeenAt,omitempty"`
}

// SocketErrorEvent is a backend-reported channel error.
type SocketErrorEvent struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// ackEvent acknowledges one outbound acknowledged emit, correlated by the
// event name it answers.
type ackEvent struct {
	For   string `json:"for"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// decodeEvent turns a raw frame into one of the closed set of typed inbound
// payloads. Mutation code downstream never sees raw JSON.
func decodeEvent(payload []byte) (string, any, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return "", nil, fmt.Errorf("realtime: decode envelope: %w", err)
	}
	if env.Event == "" {
		return "", nil, errors.New("realtime: frame without event name")
	}

	var (
		value any
		err   error
	)
	switch env.Event {
	case eventReceiveMessage:
		var msg models.Message
		err = json.Unmarshal(env.Data, &msg)
		value = msg
	case eventMessageRecall, eventNotifyRecallMessage:
		var ev RecallEvent
		err = json.Unmarshal(env.Data, &ev)
		value = ev
	case eventMessageDelete, eventNotifyMessageDelete:
		var ev DeleteEvent
		err = json.Unmarshal(env.Data, &ev)
		value = ev
	case eventMessageEdit, eventNotifyMessageEdit:
		var ev EditEvent
		err = json.Unmarshal(env.Data, &ev)
		value = ev
	case eventUnreadCountUpdated:
		var ev UnreadEvent
		err = json.Unmarshal(env.Data, &ev)
		value = ev
	case eventUserStatusUpdate:
		var ev PresenceEvent
		err = json.Unmarshal(env.Data, &ev)
		value = ev
	case eventSocketError:
		var ev SocketErrorEvent
		err = json.Unmarshal(env.Data, &ev)
		value = ev
	case eventAck:
		var ev ackEvent
		err = json.Unmarshal(env.Data, &ev)
		value = ev
	default:
		return env.Event, nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}
	if err != nil {
		return env.Event, nil, fmt.Errorf("realtime: decode %q payload: %w", env.Event, err)
	}
	return env.Event, value, nil
}
