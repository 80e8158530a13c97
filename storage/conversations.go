package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"waveline/models"
)

// UpsertConversation inserts or refreshes one conversation summary row.
func (s *Store) UpsertConversation(conversation models.Conversation) error {
	if conversation.ID == "" {
		return errors.New("conversation_id is required")
	}
	if conversation.Kind == "" {
		conversation.Kind = models.ConversationKindPrivate
	}
	if err := validateConversationKind(conversation.Kind); err != nil {
		return err
	}

	members, err := json.Marshal(conversation.Members)
	if err != nil {
		return fmt.Errorf("encode members for conversation %q: %w", conversation.ID, err)
	}

	_, err = s.db.Exec(
		`INSERT INTO conversations (
			conversation_id,
			kind,
			title,
			avatar_url,
			members,
			last_message,
			last_message_at,
			unread_count
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(conversation_id) DO UPDATE SET
			kind = excluded.kind,
			title = excluded.title,
			avatar_url = excluded.avatar_url,
			members = excluded.members,
			last_message = excluded.last_message,
			last_message_at = excluded.last_message_at,
			unread_count = excluded.unread_count`,
		conversation.ID,
		conversation.Kind,
		conversation.Title,
		conversation.AvatarURL,
		string(members),
		conversation.LastMessage,
		conversation.LastMessageAt,
		conversation.UnreadCount,
	)
	if err != nil {
		return fmt.Errorf("upsert conversation %q: %w", conversation.ID, err)
	}

	return nil
}

// Conversations returns every cached conversation, most recent activity first.
func (s *Store) Conversations() ([]models.Conversation, error) {
	rows, err := s.db.Query(
		`SELECT
			conversation_id,
			kind,
			title,
			avatar_url,
			members,
			last_message,
			last_message_at,
			unread_count
		FROM conversations
		ORDER BY last_message_at DESC, conversation_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("get conversations: %w", err)
	}
	defer rows.Close()

	conversations := make([]models.Conversation, 0)
	for rows.Next() {
		conversation, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conversation row: %w", err)
		}
		conversations = append(conversations, *conversation)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversation rows: %w", err)
	}

	return conversations, nil
}

// Conversation fetches one cached conversation by ID.
func (s *Store) Conversation(conversationID string) (*models.Conversation, error) {
	if conversationID == "" {
		return nil, errors.New("conversation_id is required")
	}

	row := s.db.QueryRow(
		`SELECT
			conversation_id,
			kind,
			title,
			avatar_url,
			members,
			last_message,
			last_message_at,
			unread_count
		FROM conversations
		WHERE conversation_id = ?`,
		conversationID,
	)

	conversation, err := scanConversation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get conversation %q: %w", conversationID, err)
	}
	return conversation, nil
}

// RecordActivity bumps a conversation's preview, activity timestamp, and
// unread counter after an inbound message for a thread not on screen.
func (s *Store) RecordActivity(conversationID, preview string, at int64) error {
	if conversationID == "" {
		return errors.New("conversation_id is required")
	}
	if at == 0 {
		at = nowUnixMilli()
	}

	res, err := s.db.Exec(
		`UPDATE conversations
		SET last_message = ?, last_message_at = ?, unread_count = unread_count + 1
		WHERE conversation_id = ?`,
		preview,
		at,
		conversationID,
	)
	if err != nil {
		return fmt.Errorf("record activity for conversation %q: %w", conversationID, err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("read rows affected for record activity %q: %w", conversationID, err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// SetUnread overwrites the unread counter with an authoritative backend value.
func (s *Store) SetUnread(conversationID string, count int) error {
	if conversationID == "" {
		return errors.New("conversation_id is required")
	}
	if count < 0 {
		count = 0
	}

	res, err := s.db.Exec(
		`UPDATE conversations SET unread_count = ? WHERE conversation_id = ?`,
		count,
		conversationID,
	)
	if err != nil {
		return fmt.Errorf("set unread for conversation %q: %w", conversationID, err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("read rows affected for set unread %q: %w", conversationID, err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// ClearUnread zeroes the unread counter when the viewer opens a conversation.
func (s *Store) ClearUnread(conversationID string) error {
	return s.SetUnread(conversationID, 0)
}

// RemoveConversation deletes a conversation and its cached messages.
func (s *Store) RemoveConversation(conversationID string) error {
	if conversationID == "" {
		return errors.New("conversation_id is required")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin remove conversation %q: %w", conversationID, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM messages WHERE conversation_id = ?`, conversationID); err != nil {
		return fmt.Errorf("delete cached messages for conversation %q: %w", conversationID, err)
	}

	res, err := tx.Exec(`DELETE FROM conversations WHERE conversation_id = ?`, conversationID)
	if err != nil {
		return fmt.Errorf("delete conversation %q: %w", conversationID, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("read rows affected for delete conversation %q: %w", conversationID, err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	return tx.Commit()
}

func scanConversation(row scanner) (*models.Conversation, error) {
	var (
		conversation models.Conversation
		members      string
	)

	if err := row.Scan(
		&conversation.ID,
		&conversation.Kind,
		&conversation.Title,
		&conversation.AvatarURL,
		&members,
		&conversation.LastMessage,
		&conversation.LastMessageAt,
		&conversation.UnreadCount,
	); err != nil {
		return nil, err
	}

	if members != "" && members != "[]" {
		if err := json.Unmarshal([]byte(members), &conversation.Members); err != nil {
			return nil, fmt.Errorf("decode members: %w", err)
		}
	}

	return &conversation, nil
}
