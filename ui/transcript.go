package ui

import (
	"time"

	"waveline/models"
)

const (
	rowKindMessage = iota
	rowKindDateSeparator
)

// senderGroupGap is the largest gap between two messages from the same
// sender that still renders as one visual group.
const senderGroupGap = 60 * time.Second

// transcriptRow is one renderable line of the conversation transcript,
// computed independently of any widget so layout decisions are testable.
type transcriptRow struct {
	Kind       int
	Label      string
	Message    models.Message
	ShowSender bool
}

// buildTranscriptRows turns a newest-first message list into the
// oldest-to-newest row sequence a transcript renders: date separators when
// the calendar day changes, and sender headers when the author changes or
// the pause between messages is long enough to break the group.
func buildTranscriptRows(messages []models.Message, now time.Time) []transcriptRow {
	if len(messages) == 0 {
		return nil
	}

	rows := make([]transcriptRow, 0, len(messages)+4)

	var (
		lastDay    time.Time
		haveDay    bool
		lastSender string
		lastAt     time.Time
	)

	for i := len(messages) - 1; i >= 0; i-- {
		message := messages[i]
		at := time.UnixMilli(message.CreatedAt)
		day := startOfDay(at)

		if !haveDay || !day.Equal(lastDay) {
			rows = append(rows, transcriptRow{
				Kind:  rowKindDateSeparator,
				Label: formatDaySeparator(at, now),
			})
			lastDay = day
			haveDay = true
			lastSender = ""
		}

		showSender := message.SenderID != lastSender || at.Sub(lastAt) > senderGroupGap
		rows = append(rows, transcriptRow{
			Kind:       rowKindMessage,
			Message:    message,
			ShowSender: showSender,
		})

		lastSender = message.SenderID
		lastAt = at
	}

	return rows
}

func startOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}

func formatDaySeparator(at, now time.Time) string {
	day := startOfDay(at)
	today := startOfDay(now)

	switch {
	case day.Equal(today):
		return "Today"
	case day.Equal(today.AddDate(0, 0, -1)):
		return "Yesterday"
	case day.After(today.AddDate(0, 0, -7)):
		return at.Format("Monday")
	default:
		return at.Format("Jan 2, 2006")
	}
}

func formatMessageTime(timestamp int64) string {
	if timestamp <= 0 {
		return ""
	}
	return time.UnixMilli(timestamp).Format("3:04 PM")
}

// deliveryMark renders the send-state suffix on the viewer's own bubbles.
func deliveryMark(delivery string) string {
	switch delivery {
	case models.DeliveryPending:
		return "…"
	case models.DeliveryFailed:
		return "✗"
	default:
		return "✓"
	}
}

// messagePreview is the one-line summary shown in the conversation list.
func messagePreview(message models.Message) string {
	if message.IsRecalled {
		return "Message recalled"
	}
	switch message.Type {
	case models.MessageTypeImage:
		return "[Photo]"
	case models.MessageTypeVideo:
		return "[Video]"
	case models.MessageTypeSticker:
		return "[Sticker]"
	case models.MessageTypeRaw:
		if message.AttachmentName != "" {
			return "[File] " + message.AttachmentName
		}
		return "[File]"
	default:
		return message.Content
	}
}
