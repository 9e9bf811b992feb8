// Package postgres implements the chat store on PostgreSQL through bun.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/00vDragos/RealTime-Chat/internal/models"
)

// Postgres provides storage in PostgreSQL.
type Postgres struct {
	bun *bun.DB
}

// Connect connects to the database and ping the DB to ensure the connection is
// working.
func Connect(ctx context.Context, connStr string) (*Postgres, error) {
	sqlDB := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(connStr)))
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	db := bun.NewDB(sqlDB, pgdialect.New())
	return &Postgres{
		bun: db,
	}, nil
}

func (pg *Postgres) Close() error {
	return pg.bun.Close()
}

// Migrate creates any missing tables.
func (pg *Postgres) Migrate(ctx context.Context) error {
	for _, m := range []any{
		(*user)(nil),
		(*conversation)(nil),
		(*participant)(nil),
		(*message)(nil),
		(*messageDeletion)(nil),
	} {
		if _, err := pg.bun.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	return nil
}

// ids are uuid columns; anything else can never match a row
func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, models.ErrNotFound)
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func (pg *Postgres) ConversationParticipants(ctx context.Context, conversationID string) ([]string, error) {
	if !validID(conversationID) {
		return nil, nil
	}
	var ids []string
	err := pg.bun.NewSelect().
		Model((*participant)(nil)).
		Column("user_id").
		Where("conversation_id = ?", conversationID).
		Order("joined_at ASC").
		Scan(ctx, &ids)
	if err != nil && !isNoRows(err) {
		return nil, fmt.Errorf("select participants: %w", err)
	}
	return ids, nil
}

func (pg *Postgres) UserConversations(ctx context.Context, userID string) ([]string, error) {
	if !validID(userID) {
		return nil, nil
	}
	var ids []string
	err := pg.bun.NewSelect().
		Model((*participant)(nil)).
		Column("conversation_id").
		Where("user_id = ?", userID).
		Scan(ctx, &ids)
	if err != nil && !isNoRows(err) {
		return nil, fmt.Errorf("select conversations: %w", err)
	}
	return ids, nil
}

func (pg *Postgres) UserDisplayName(ctx context.Context, userID string) (string, error) {
	if !validID(userID) {
		return "", notFound("user", userID)
	}
	var name string
	err := pg.bun.NewSelect().
		Model((*user)(nil)).
		Column("display_name").
		Where("id = ?", userID).
		Scan(ctx, &name)
	if isNoRows(err) {
		return "", notFound("user", userID)
	}
	if err != nil {
		return "", fmt.Errorf("select display name: %w", err)
	}
	return name, nil
}

// MarkMessageDelivered adds userID to the delivered map unless an entry exists.
func (pg *Postgres) MarkMessageDelivered(ctx context.Context, messageID, userID string, at time.Time) error {
	if !validID(messageID) {
		return notFound("message", messageID)
	}
	_, err := pg.bun.NewUpdate().
		Model((*message)(nil)).
		Set("delivered_at = delivered_at || jsonb_build_object(?::text, ?::text)", userID, at.UTC().Format(time.RFC3339Nano)).
		Where("id = ?", messageID).
		Where("NOT jsonb_exists(delivered_at, ?)", userID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update delivered: %w", err)
	}
	return nil
}

func (pg *Postgres) SetUserLastSeen(ctx context.Context, userID string, at time.Time) error {
	if !validID(userID) {
		return notFound("user", userID)
	}
	_, err := pg.bun.NewUpdate().
		Model((*user)(nil)).
		Set("last_seen = ?", at).
		Where("id = ?", userID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update last seen: %w", err)
	}
	return nil
}

// CreateMessage inserts the message and moves the conversation's preview to it.
func (pg *Postgres) CreateMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	if !validID(msg.ConversationID) {
		return models.Message{}, notFound("conversation", msg.ConversationID)
	}
	m := &message{
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		Body:           msg.Body,
		CreatedAt:      msg.CreatedAt,
		Reactions:      models.Reactions{},
		DeliveredAt:    models.Receipts{},
		SeenAt:         models.Receipts{},
	}

	err := pg.bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().Model((*conversation)(nil)).Where("id = ?", msg.ConversationID).Exists(ctx)
		if err != nil {
			return fmt.Errorf("select conversation: %w", err)
		}
		if !exists {
			return notFound("conversation", msg.ConversationID)
		}
		if _, err := tx.NewInsert().Model(m).Returning("*").Exec(ctx); err != nil {
			return fmt.Errorf("insert: %w", err)
		}
		_, err = tx.NewUpdate().
			Model((*conversation)(nil)).
			Set("last_message_id = ?", m.ID).
			Set("last_message_preview = ?", models.Preview(m.Body)).
			Set("last_message_created_at = ?", m.CreatedAt).
			Where("id = ?", m.ConversationID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("update preview: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.Message{}, err
	}
	return m.model(), nil
}

func (pg *Postgres) GetMessage(ctx context.Context, messageID string) (models.Message, error) {
	return getMessage(ctx, pg.bun, messageID, false)
}

func (pg *Postgres) ListMessages(ctx context.Context, conversationID string, limit, offset int) ([]models.Message, error) {
	if !validID(conversationID) {
		return []models.Message{}, nil
	}
	var msgs []message
	err := pg.bun.NewSelect().
		Model(&msgs).
		Where("conversation_id = ?", conversationID).
		Where("deleted_for_everyone = false").
		Order("created_at ASC", "id ASC").
		Limit(limit).
		Offset(offset).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	out := make([]models.Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.model()
	}
	return out, nil
}

func getMessage(ctx context.Context, db bun.IDB, messageID string, forUpdate bool) (models.Message, error) {
	if !validID(messageID) {
		return models.Message{}, notFound("message", messageID)
	}
	var m message
	q := db.NewSelect().Model(&m).Where("id = ?", messageID)
	if forUpdate {
		q = q.For("UPDATE")
	}
	if err := q.Scan(ctx); err != nil {
		if isNoRows(err) {
			return models.Message{}, notFound("message", messageID)
		}
		return models.Message{}, fmt.Errorf("select message: %w", err)
	}
	return m.model(), nil
}

func (pg *Postgres) EditMessage(ctx context.Context, messageID, body string, at time.Time) (models.Message, error) {
	if !validID(messageID) {
		return models.Message{}, notFound("message", messageID)
	}
	res, err := pg.bun.NewUpdate().
		Model((*message)(nil)).
		Set("body = ?", body).
		Set("edited_at = ?", at).
		Where("id = ?", messageID).
		Exec(ctx)
	if err != nil {
		return models.Message{}, fmt.Errorf("update message: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.Message{}, notFound("message", messageID)
	}
	return pg.GetMessage(ctx, messageID)
}

// DeleteMessage records the deletion and hides the message for everyone.
func (pg *Postgres) DeleteMessage(ctx context.Context, messageID, userID string, at time.Time) (models.Message, error) {
	if !validID(messageID) {
		return models.Message{}, notFound("message", messageID)
	}
	var out models.Message
	err := pg.bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		d := &messageDeletion{MessageID: messageID, UserID: userID, DeletedAt: at}
		if _, err := tx.NewInsert().Model(d).Exec(ctx); err != nil {
			return fmt.Errorf("insert deletion: %w", err)
		}
		res, err := tx.NewUpdate().
			Model((*message)(nil)).
			Set("deleted_for_everyone = TRUE").
			Where("id = ?", messageID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("update message: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return notFound("message", messageID)
		}
		out, err = getMessage(ctx, tx, messageID, false)
		return err
	})
	return out, err
}

// UpdateReactions locks the message row, applies fn and writes the result back.
func (pg *Postgres) UpdateReactions(ctx context.Context, messageID string, fn func(models.Reactions) error) (models.Message, error) {
	var out models.Message
	err := pg.bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		msg, err := getMessage(ctx, tx, messageID, true)
		if err != nil {
			return err
		}
		reactions := msg.Reactions.Clone()
		if err := fn(reactions); err != nil {
			return err
		}
		b, err := json.Marshal(reactions)
		if err != nil {
			return fmt.Errorf("encode reactions: %w", err)
		}
		_, err = tx.NewUpdate().
			Model((*message)(nil)).
			Set("reactions = ?::jsonb", string(b)).
			Where("id = ?", messageID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("update reactions: %w", err)
		}
		msg.Reactions = reactions
		out = msg
		return nil
	})
	return out, err
}

func (pg *Postgres) CreateConversation(ctx context.Context, conv models.Conversation) (models.Conversation, error) {
	c := &conversation{
		Type:      string(conv.Type),
		Title:     conv.Title,
		CreatedAt: conv.CreatedAt,
	}
	err := pg.bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(c).Returning("*").Exec(ctx); err != nil {
			return fmt.Errorf("insert conversation: %w", err)
		}
		ps := make([]participant, len(conv.Participants))
		for i, id := range conv.Participants {
			ps[i] = participant{ConversationID: c.ID, UserID: id, JoinedAt: c.CreatedAt}
		}
		if _, err := tx.NewInsert().Model(&ps).Exec(ctx); err != nil {
			return fmt.Errorf("insert participants: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.Conversation{}, err
	}
	names, err := pg.displayNames(ctx, conv.Participants)
	if err != nil {
		return models.Conversation{}, err
	}
	return c.model(conv.Participants, names), nil
}

func (pg *Postgres) GetConversation(ctx context.Context, conversationID string) (models.Conversation, error) {
	if !validID(conversationID) {
		return models.Conversation{}, notFound("conversation", conversationID)
	}
	var c conversation
	if err := pg.bun.NewSelect().Model(&c).Where("id = ?", conversationID).Scan(ctx); err != nil {
		if isNoRows(err) {
			return models.Conversation{}, notFound("conversation", conversationID)
		}
		return models.Conversation{}, fmt.Errorf("select conversation: %w", err)
	}
	ids, err := pg.ConversationParticipants(ctx, conversationID)
	if err != nil {
		return models.Conversation{}, err
	}
	names, err := pg.displayNames(ctx, ids)
	if err != nil {
		return models.Conversation{}, err
	}
	return c.model(ids, names), nil
}

// FindDirectConversation returns the direct conversation between two users, if any.
func (pg *Postgres) FindDirectConversation(ctx context.Context, userA, userB string) (models.Conversation, bool, error) {
	if !validID(userA) || !validID(userB) {
		return models.Conversation{}, false, nil
	}
	var ids []string
	err := pg.bun.NewSelect().
		TableExpr("conversation_participants AS cp").
		ColumnExpr("cp.conversation_id").
		Join("JOIN conversations AS c ON c.id = cp.conversation_id").
		Where("c.type = ?", string(models.ConversationDirect)).
		Where("cp.user_id IN (?)", bun.In([]string{userA, userB})).
		Group("cp.conversation_id").
		Having("COUNT(DISTINCT cp.user_id) = 2").
		Limit(1).
		Scan(ctx, &ids)
	if err != nil && !isNoRows(err) {
		return models.Conversation{}, false, fmt.Errorf("select direct conversation: %w", err)
	}
	if len(ids) == 0 {
		return models.Conversation{}, false, nil
	}
	conv, err := pg.GetConversation(ctx, ids[0])
	if err != nil {
		return models.Conversation{}, false, err
	}
	return conv, true, nil
}

// MarkRead moves the last-read pointer and back-fills seen for every message
// created up to at that the user has not seen yet.
func (pg *Postgres) MarkRead(ctx context.Context, conversationID, userID, messageID string, at time.Time) error {
	if !validID(conversationID) {
		return notFound("conversation", conversationID)
	}
	return pg.bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		q := tx.NewUpdate().
			Model((*participant)(nil)).
			Where("conversation_id = ?", conversationID).
			Where("user_id = ?", userID)
		if validID(messageID) {
			q = q.Set("last_read_message_id = ?", messageID)
		} else {
			q = q.Set("last_read_message_id = NULL")
		}
		res, err := q.Exec(ctx)
		if err != nil {
			return fmt.Errorf("update last read: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return notFound("participant", userID)
		}

		_, err = tx.NewUpdate().
			Model((*message)(nil)).
			Set("seen_at = seen_at || jsonb_build_object(?::text, ?::text)", userID, at.UTC().Format(time.RFC3339Nano)).
			Where("conversation_id = ?", conversationID).
			Where("created_at <= ?", at).
			Where("NOT jsonb_exists(seen_at, ?)", userID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("update seen: %w", err)
		}
		return nil
	})
}

func (pg *Postgres) displayNames(ctx context.Context, ids []string) (map[string]string, error) {
	names := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	var users []user
	err := pg.bun.NewSelect().
		Model(&users).
		Column("id", "display_name").
		Where("id IN (?)", bun.In(ids)).
		Scan(ctx)
	if err != nil && !isNoRows(err) {
		return nil, fmt.Errorf("select users: %w", err)
	}
	for _, u := range users {
		names[u.ID] = u.DisplayName
	}
	return names, nil
}
