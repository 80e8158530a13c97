package storage

import (
	"database/sql"
	"errors"
	"fmt"

	"waveline/models"
)

// SaveMessages upserts a batch of confirmed messages in one transaction.
// Optimistic entries without a server ID are skipped: the cache only holds
// state the backend has acknowledged.
func (s *Store) SaveMessages(messages []models.Message) error {
	if len(messages) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin message batch: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.Prepare(
		`INSERT INTO messages (
			message_id,
			conversation_id,
			sender_id,
			content,
			message_type,
			attachment_url,
			attachment_name,
			attachment_size,
			thumbnail_url,
			created_at,
			updated_at,
			is_recalled,
			is_edited
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(message_id) DO UPDATE SET
			content = excluded.content,
			message_type = excluded.message_type,
			attachment_url = excluded.attachment_url,
			attachment_name = excluded.attachment_name,
			attachment_size = excluded.attachment_size,
			thumbnail_url = excluded.thumbnail_url,
			updated_at = excluded.updated_at,
			is_recalled = excluded.is_recalled,
			is_edited = excluded.is_edited`,
	)
	if err != nil {
		return fmt.Errorf("prepare message upsert: %w", err)
	}
	defer stmt.Close()

	for _, message := range messages {
		if message.ID == "" {
			continue
		}
		if message.ConversationID == "" {
			return errors.New("conversation_id is required")
		}
		if message.Type == "" {
			message.Type = models.MessageTypeText
		}
		if err := validateMessageType(message.Type); err != nil {
			return err
		}
		if message.CreatedAt == 0 {
			message.CreatedAt = nowUnixMilli()
		}

		if _, err := stmt.Exec(
			message.ID,
			message.ConversationID,
			message.SenderID,
			message.Content,
			string(message.Type),
			nullString(message.AttachmentURL),
			nullString(message.AttachmentName),
			nullInt64(message.AttachmentSize),
			nullString(message.ThumbnailURL),
			message.CreatedAt,
			nullInt64(message.UpdatedAt),
			boolToInt(message.IsRecalled),
			boolToInt(message.IsEdited),
		); err != nil {
			return fmt.Errorf("upsert message %q: %w", message.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit message batch: %w", err)
	}

	return nil
}

// CachedMessages returns the newest cached messages of a conversation,
// newest first, ready for display before the backend answers.
func (s *Store) CachedMessages(conversationID string, limit int) ([]models.Message, error) {
	if conversationID == "" {
		return nil, errors.New("conversation_id is required")
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.Query(
		`SELECT
			message_id,
			conversation_id,
			sender_id,
			content,
			message_type,
			attachment_url,
			attachment_name,
			attachment_size,
			thumbnail_url,
			created_at,
			updated_at,
			is_recalled,
			is_edited
		FROM messages
		WHERE conversation_id = ?
		ORDER BY created_at DESC, message_id DESC
		LIMIT ?`,
		conversationID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("get cached messages for conversation %q: %w", conversationID, err)
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		message, err := scanCachedMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan cached message row: %w", err)
		}
		messages = append(messages, *message)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cached message rows: %w", err)
	}

	return messages, nil
}

// CachedMessage fetches one cached message by server ID.
func (s *Store) CachedMessage(messageID string) (*models.Message, error) {
	if messageID == "" {
		return nil, errors.New("message_id is required")
	}

	row := s.db.QueryRow(
		`SELECT
			message_id,
			conversation_id,
			sender_id,
			content,
			message_type,
			attachment_url,
			attachment_name,
			attachment_size,
			thumbnail_url,
			created_at,
			updated_at,
			is_recalled,
			is_edited
		FROM messages
		WHERE message_id = ?`,
		messageID,
	)

	message, err := scanCachedMessage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get cached message %q: %w", messageID, err)
	}
	return message, nil
}

// MarkRecalled flags a cached message as recalled and blanks its content,
// mirroring what every other participant sees.
func (s *Store) MarkRecalled(messageID string) error {
	if messageID == "" {
		return errors.New("message_id is required")
	}

	res, err := s.db.Exec(
		`UPDATE messages
		SET is_recalled = 1, content = ''
		WHERE message_id = ?`,
		messageID,
	)
	if err != nil {
		return fmt.Errorf("mark recalled for message %q: %w", messageID, err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("read rows affected for mark recalled %q: %w", messageID, err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// RemoveMessage deletes a cached message row.
func (s *Store) RemoveMessage(messageID string) error {
	if messageID == "" {
		return errors.New("message_id is required")
	}

	res, err := s.db.Exec(`DELETE FROM messages WHERE message_id = ?`, messageID)
	if err != nil {
		return fmt.Errorf("remove message %q: %w", messageID, err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("read rows affected for remove message %q: %w", messageID, err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// UpdateMessageContent rewrites a cached message after an edit.
func (s *Store) UpdateMessageContent(messageID, newContent string, updatedAt int64) error {
	if messageID == "" {
		return errors.New("message_id is required")
	}
	if updatedAt == 0 {
		updatedAt = nowUnixMilli()
	}

	res, err := s.db.Exec(
		`UPDATE messages
		SET content = ?, is_edited = 1, updated_at = ?
		WHERE message_id = ?`,
		newContent,
		updatedAt,
		messageID,
	)
	if err != nil {
		return fmt.Errorf("update content for message %q: %w", messageID, err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("read rows affected for update content %q: %w", messageID, err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// PruneConversationCache keeps only the newest keep messages per
// conversation so the local cache does not grow without bound.
func (s *Store) PruneConversationCache(conversationID string, keep int) (int64, error) {
	if conversationID == "" {
		return 0, errors.New("conversation_id is required")
	}
	if keep <= 0 {
		return 0, errors.New("keep count must be > 0")
	}

	res, err := s.db.Exec(
		`DELETE FROM messages
		WHERE conversation_id = ?
		AND message_id NOT IN (
			SELECT message_id FROM messages
			WHERE conversation_id = ?
			ORDER BY created_at DESC, message_id DESC
			LIMIT ?
		)`,
		conversationID,
		conversationID,
		keep,
	)
	if err != nil {
		return 0, fmt.Errorf("prune cache for conversation %q: %w", conversationID, err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("read rows affected for cache prune: %w", err)
	}

	return rowsAffected, nil
}

func scanCachedMessage(row scanner) (*models.Message, error) {
	var (
		message        models.Message
		messageType    string
		attachmentURL  sql.NullString
		attachmentName sql.NullString
		attachmentSize sql.NullInt64
		thumbnailURL   sql.NullString
		updatedAt      sql.NullInt64
		isRecalled     int
		isEdited       int
	)

	if err := row.Scan(
		&message.ID,
		&message.ConversationID,
		&message.SenderID,
		&message.Content,
		&messageType,
		&attachmentURL,
		&attachmentName,
		&attachmentSize,
		&thumbnailURL,
		&message.CreatedAt,
		&updatedAt,
		&isRecalled,
		&isEdited,
	); err != nil {
		return nil, err
	}

	message.Type = models.MessageType(messageType)
	message.AttachmentURL = stringValue(attachmentURL)
	message.AttachmentName = stringValue(attachmentName)
	message.AttachmentSize = int64Value(attachmentSize)
	message.ThumbnailURL = stringValue(thumbnailURL)
	message.UpdatedAt = int64Value(updatedAt)
	message.IsRecalled = isRecalled == 1
	message.IsEdited = isEdited == 1
	message.Delivery = models.DeliverySent

	return &message, nil
}
