package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"waveline/models"
)

var (
	// ErrNotFound indicates a requested row does not exist.
	ErrNotFound = errors.New("storage: record not found")
)

// scanner abstracts *sql.Row and *sql.Rows for shared scan helpers.
type scanner interface {
	Scan(dest ...any) error
}

func validateConversationKind(kind string) error {
	switch kind {
	case models.ConversationKindPrivate, models.ConversationKindGroup:
		return nil
	default:
		return fmt.Errorf("invalid conversation kind %q", kind)
	}
}

func validateMessageType(messageType models.MessageType) error {
	switch messageType {
	case models.MessageTypeText, models.MessageTypeImage, models.MessageTypeVideo,
		models.MessageTypeRaw, models.MessageTypeSticker:
		return nil
	default:
		return fmt.Errorf("invalid message type %q", messageType)
	}
}

func nullString(v string) sql.NullString {
	if v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}

func nullInt64(v int64) sql.NullInt64 {
	if v == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: v, Valid: true}
}

func stringValue(ns sql.NullString) string {
	if !ns.Valid {
		return ""
	}
	return ns.String
}

func int64Value(ni sql.NullInt64) int64 {
	if !ni.Valid {
		return 0
	}
	return ni.Int64
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func nowUnixMilli() int64 {
	return time.Now().UnixMilli()
}
