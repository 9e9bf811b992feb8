package models

import "time"

type ConversationType string

const (
	ConversationDirect ConversationType = "direct"
	ConversationGroup  ConversationType = "group"
)

// PreviewLength caps the last-message preview stored on a conversation, in runes.
const PreviewLength = 100

type User struct {
	ID          string     `json:"id"`
	DisplayName string     `json:"display_name"`
	AvatarURL   string     `json:"avatar_url,omitempty"`
	LastSeen    *time.Time `json:"last_seen"`
}

type Conversation struct {
	ID                   string            `json:"id"`
	Type                 ConversationType  `json:"type"`
	Title                string            `json:"title,omitempty"`
	CreatedAt            time.Time         `json:"created_at"`
	Participants         []string          `json:"participants"`
	ParticipantNames     map[string]string `json:"participant_names,omitempty"`
	LastMessageID        string            `json:"last_message_id,omitempty"`
	LastMessagePreview   string            `json:"last_message_preview,omitempty"`
	LastMessageCreatedAt *time.Time        `json:"last_message_created_at,omitempty"`
}

type Message struct {
	ID                 string     `json:"id"`
	ConversationID     string     `json:"conversation_id"`
	SenderID           string     `json:"sender_id"`
	Body               string     `json:"body"`
	CreatedAt          time.Time  `json:"created_at"`
	EditedAt           *time.Time `json:"edited_at,omitempty"`
	DeletedForEveryone bool       `json:"deleted_for_everyone"`
	Reactions          Reactions  `json:"reactions"`
	DeliveredAt        Receipts   `json:"delivered_at"`
	SeenAt             Receipts   `json:"seen_at"`
}

// Preview truncates body to PreviewLength runes.
func Preview(body string) string {
	runes := []rune(body)
	if len(runes) <= PreviewLength {
		return body
	}
	return string(runes[:PreviewLength])
}
