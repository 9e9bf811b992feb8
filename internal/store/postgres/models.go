package postgres

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/00vDragos/RealTime-Chat/internal/models"
)

type user struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID          string     `bun:",pk,type:uuid,default:gen_random_uuid()"`
	DisplayName string     `bun:",notnull"`
	AvatarURL   string     `bun:",nullzero"`
	LastSeen    *time.Time `bun:",nullzero"`
}

type conversation struct {
	bun.BaseModel `bun:"table:conversations,alias:c"`

	ID                   string     `bun:",pk,type:uuid,default:gen_random_uuid()"`
	Type                 string     `bun:",notnull"`
	Title                string     `bun:",nullzero"`
	CreatedAt            time.Time  `bun:",nullzero,notnull,default:current_timestamp"`
	LastMessageID        string     `bun:",type:uuid,nullzero"`
	LastMessagePreview   string     `bun:",nullzero"`
	LastMessageCreatedAt *time.Time `bun:",nullzero"`
}

type participant struct {
	bun.BaseModel `bun:"table:conversation_participants,alias:cp"`

	ID                string    `bun:",pk,type:uuid,default:gen_random_uuid()"`
	ConversationID    string    `bun:",type:uuid,notnull,unique:conversation_user"`
	UserID            string    `bun:",type:uuid,notnull,unique:conversation_user"`
	JoinedAt          time.Time `bun:",nullzero,notnull,default:current_timestamp"`
	LastReadMessageID string    `bun:",type:uuid,nullzero"`
}

// A message represents a message in the database. The receipt and reaction
// maps are jsonb objects keyed by user id and emoji respectively.
type message struct {
	bun.BaseModel `bun:"table:messages,alias:m"`

	ID                 string           `bun:",pk,type:uuid,default:gen_random_uuid()"`
	ConversationID     string           `bun:",type:uuid,notnull"`
	SenderID           string           `bun:",type:uuid,notnull"`
	Body               string           `bun:",notnull"`
	CreatedAt          time.Time        `bun:",nullzero,notnull,default:current_timestamp"`
	EditedAt           *time.Time       `bun:",nullzero"`
	DeletedForEveryone bool             `bun:",notnull,default:false"`
	Reactions          models.Reactions `bun:",type:jsonb,notnull,default:'{}'"`
	DeliveredAt        models.Receipts  `bun:",type:jsonb,notnull,default:'{}'"`
	SeenAt             models.Receipts  `bun:",type:jsonb,notnull,default:'{}'"`
}

type messageDeletion struct {
	bun.BaseModel `bun:"table:message_deletions,alias:md"`

	ID        string    `bun:",pk,type:uuid,default:gen_random_uuid()"`
	MessageID string    `bun:",type:uuid,notnull"`
	UserID    string    `bun:",type:uuid,notnull"`
	DeletedAt time.Time `bun:",nullzero,notnull,default:current_timestamp"`
}

func (m message) model() models.Message {
	out := models.Message{
		ID:                 m.ID,
		ConversationID:     m.ConversationID,
		SenderID:           m.SenderID,
		Body:               m.Body,
		CreatedAt:          m.CreatedAt,
		EditedAt:           m.EditedAt,
		DeletedForEveryone: m.DeletedForEveryone,
		Reactions:          m.Reactions.Clone(),
		DeliveredAt:        m.DeliveredAt.Clone(),
		SeenAt:             m.SeenAt.Clone(),
	}
	return out
}

func (c conversation) model(participants []string, names map[string]string) models.Conversation {
	return models.Conversation{
		ID:                   c.ID,
		Type:                 models.ConversationType(c.Type),
		Title:                c.Title,
		CreatedAt:            c.CreatedAt,
		Participants:         participants,
		ParticipantNames:     names,
		LastMessageID:        c.LastMessageID,
		LastMessagePreview:   c.LastMessagePreview,
		LastMessageCreatedAt: c.LastMessageCreatedAt,
	}
}
