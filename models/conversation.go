package models

const (
	// ConversationKindPrivate is a 1:1 conversation.
	ConversationKindPrivate = "private"
	// ConversationKindGroup is a multi-member group conversation.
	ConversationKindGroup = "group"
)

// Conversation is one chat thread the viewer participates in.
type Conversation struct {
	ID            string    `json:"id"`
	Kind          string    `json:"kind"`
	Title         string    `json:"title,omitempty"`
	AvatarURL     string    `json:"avatarUrl,omitempty"`
	Members       []Profile `json:"members,omitempty"`
	LastMessage   string    `json:"lastMessage,omitempty"`
	LastMessageAt int64     `json:"lastMessageAt,omitempty"`
	UnreadCount   int       `json:"unreadCount,omitempty"`
}

// Profile is a chat participant as exposed by the backend.
type Profile struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
	Status      string `json:"status,omitempty"`
	LastSeenAt  int64  `json:"lastSeenAt,omitempty"`
}
