package models

// MessageType enumerates the supported message body kinds.
type MessageType string

const (
	MessageTypeText    MessageType = "TEXT"
	MessageTypeImage   MessageType = "IMAGE"
	MessageTypeVideo   MessageType = "VIDEO"
	MessageTypeRaw     MessageType = "RAW"
	MessageTypeSticker MessageType = "STICKER"
)

const (
	// DeliveryPending marks an optimistic entry awaiting backend acknowledgment.
	DeliveryPending = "pending"
	// DeliverySent marks a message the backend has acknowledged.
	DeliverySent = "sent"
	// DeliveryFailed marks an optimistic entry whose send request failed.
	DeliveryFailed = "failed"
)

// Message is one chat message as the client renders it.
//
// A confirmed message carries ID; an optimistic entry carries TempID and
// Delivery=pending until the backend acknowledges the send. Reconciliation
// moves an entry from the second shape to the first.
type Message struct {
	ID             string      `json:"id,omitempty"`
	TempID         string      `json:"tempId,omitempty"`
	ConversationID string      `json:"conversationId"`
	SenderID       string      `json:"senderId"`
	Content        string      `json:"content,omitempty"`
	Type           MessageType `json:"type"`
	AttachmentURL  string      `json:"attachmentUrl,omitempty"`
	AttachmentName string      `json:"attachmentName,omitempty"`
	AttachmentSize int64       `json:"attachmentSize,omitempty"`
	ThumbnailURL   string      `json:"thumbnailUrl,omitempty"`
	CreatedAt      int64       `json:"createdAt"`
	UpdatedAt      int64       `json:"updatedAt,omitempty"`
	IsRecalled     bool        `json:"isRecalled,omitempty"`
	IsEdited       bool        `json:"isEdited,omitempty"`

	// Delivery is client-local send state and never crosses the wire.
	Delivery string `json:"-"`
}

// Key returns the identity used for de-duplication: the server ID when the
// message is confirmed, the temp ID while it is still pending.
func (m Message) Key() string {
	if m.ID != "" {
		return m.ID
	}
	return m.TempID
}

// Pending reports whether the message is an optimistic entry that has not
// been acknowledged by the backend yet.
func (m Message) Pending() bool {
	return m.ID == "" && m.TempID != ""
}

// MessagePage is one page of conversation history.
type MessagePage struct {
	Messages []Message `json:"messages"`
	// NextCursor is the opaque token for the next (older) page. Empty means
	// no further history exists.
	NextCursor string `json:"nextCursor,omitempty"`
}
