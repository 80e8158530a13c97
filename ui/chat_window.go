package ui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/google/uuid"

	"waveline/api"
	"waveline/models"
	"waveline/storage"
)

type messageEntry struct {
	widget.Entry
	shiftDown bool
	onSend    func()
}

func newMessageEntry(onSend func()) *messageEntry {
	entry := &messageEntry{
		onSend: onSend,
	}
	entry.MultiLine = true
	entry.ExtendBaseWidget(entry)
	return entry
}

func (e *messageEntry) KeyDown(key *fyne.KeyEvent) {
	e.Entry.KeyDown(key)
	if key == nil {
		return
	}
	if key.Name == desktop.KeyShiftLeft || key.Name == desktop.KeyShiftRight {
		e.shiftDown = true
	}
}

func (e *messageEntry) KeyUp(key *fyne.KeyEvent) {
	e.Entry.KeyUp(key)
	if key == nil {
		return
	}
	if key.Name == desktop.KeyShiftLeft || key.Name == desktop.KeyShiftRight {
		e.shiftDown = false
	}
}

func (e *messageEntry) TypedKey(key *fyne.KeyEvent) {
	if key == nil {
		return
	}
	if key.Name == fyne.KeyReturn || key.Name == fyne.KeyEnter {
		if e.shiftDown {
			e.Entry.TypedKey(key)
			return
		}
		if e.onSend != nil {
			e.onSend()
		}
		return
	}
	e.Entry.TypedKey(key)
}

func (c *controller) buildChatPane() fyne.CanvasObject {
	c.chatHeader = newTapLabel("Select a conversation", "Conversation details", c.showConversationDetails, c.handleHoverHint)
	c.chatHeader.SetTextStyle(fyne.TextStyle{Bold: true})
	c.chatHeader.SetColor(colorMuted)
	mediaBtn := newHintButtonWithIcon("", theme.MediaPhotoIcon(), "Shared media", c.showMediaGallery, c.handleHoverHint)
	header := container.NewPadded(container.NewBorder(nil, nil, nil, mediaBtn, c.chatHeader))

	c.loadEarlierBtn = widget.NewButton("Load earlier messages", c.loadEarlierMessages)
	c.loadEarlierBtn.Importance = widget.LowImportance
	c.loadEarlierBtn.Hide()

	emptyLabel := widget.NewLabel("No messages yet")
	emptyLabel.Alignment = fyne.TextAlignCenter
	emptyLabel.Importance = widget.LowImportance
	c.chatMessagesBox = container.NewVBox(emptyLabel)
	c.chatScroll = container.NewVScroll(container.NewVBox(container.NewCenter(c.loadEarlierBtn), c.chatMessagesBox))

	c.messageInput = newMessageEntry(c.sendCurrentMessage)
	c.messageInput.SetPlaceHolder("Type a message...")
	c.messageInput.Wrapping = fyne.TextWrapWord
	c.messageInput.SetMinRowsVisible(2)

	attachBtn := newHintButtonWithIcon("", theme.MailAttachmentIcon(), "Attach file", c.attachFileToCurrentConversation, c.handleHoverHint)
	sendBtn := newHintButton("Send", "Send message", c.sendCurrentMessage, c.handleHoverHint)
	sendBtn.Importance = widget.HighImportance
	controls := container.NewVBox(sendBtn, attachBtn)
	inputPane := container.NewBorder(nil, nil, nil, container.NewPadded(controls), c.messageInput)
	c.chatComposer = container.NewPadded(inputPane)
	c.chatComposer.Hide()

	return container.NewBorder(
		container.NewVBox(header, widget.NewSeparator()),
		container.NewVBox(widget.NewSeparator(), c.chatComposer),
		nil, nil, c.chatScroll,
	)
}

func (c *controller) updateChatHeader() {
	conversationID := c.currentConversationID()
	title := "Select a conversation"
	hasConversation := false
	titleColor := colorMuted
	if conversationID != "" {
		if conversation := c.conversationByID(conversationID); conversation != nil {
			hasConversation = true
			title = conversationTitle(*conversation)
			titleColor = colorOnline
		}
	}

	if c.chatHeader == nil {
		return
	}
	fyne.Do(func() {
		c.chatHeader.SetText(title)
		c.chatHeader.SetColor(titleColor)
		if c.chatComposer != nil {
			if hasConversation {
				c.chatComposer.Show()
			} else {
				c.chatComposer.Hide()
				if c.messageInput != nil {
					c.messageInput.SetText("")
				}
			}
		}
	})
}

func conversationTitle(conversation models.Conversation) string {
	if strings.TrimSpace(conversation.Title) != "" {
		return conversation.Title
	}
	names := make([]string, 0, len(conversation.Members))
	for _, member := range conversation.Members {
		if member.DisplayName != "" {
			names = append(names, member.DisplayName)
		}
	}
	if len(names) > 0 {
		return strings.Join(names, ", ")
	}
	return conversation.ID
}

func (c *controller) showConversationDetails() {
	conversation := c.conversationByID(c.currentConversationID())
	if conversation == nil {
		return
	}

	lines := []string{"Kind: " + conversation.Kind}
	for _, member := range conversation.Members {
		entry := member.DisplayName
		if entry == "" {
			entry = member.ID
		}
		if member.Status != "" {
			entry += " (" + member.Status + ")"
		}
		lines = append(lines, entry)
	}
	info := widget.NewLabel(strings.Join(lines, "\n"))

	content := container.NewVBox(info)
	if conversation.Kind == models.ConversationKindPrivate {
		removeBtn := widget.NewButton("Remove Contact", func() {
			c.confirmRemoveContact(*conversation)
		})
		removeBtn.Importance = widget.DangerImportance
		content.Add(removeBtn)
	}

	dialog.ShowCustom(conversationTitle(*conversation), "Close", content, c.window)
}

func (c *controller) confirmRemoveContact(conversation models.Conversation) {
	otherID := ""
	for _, member := range conversation.Members {
		if member.ID != c.cfg.ProfileID {
			otherID = member.ID
			break
		}
	}
	if otherID == "" {
		return
	}

	dialog.ShowConfirm(
		"Remove Contact",
		"Remove this contact? The conversation disappears from your list.",
		func(confirm bool) {
			if !confirm {
				return
			}
			go c.removeContact(conversation.ID, otherID)
		},
		c.window,
	)
}

func (c *controller) removeContact(conversationID, friendID string) {
	c.bridge.AnnounceFriendRemoval(c.cfg.ProfileID, friendID)

	if err := c.store.RemoveConversation(conversationID); err != nil && !errors.Is(err, storage.ErrNotFound) {
		c.setStatus(fmt.Sprintf("Remove cached conversation failed: %v", err))
	}

	c.convMu.Lock()
	kept := c.conversations[:0]
	for _, conversation := range c.conversations {
		if conversation.ID != conversationID {
			kept = append(kept, conversation)
		}
	}
	c.conversations = kept
	wasOpen := c.selectedConvID == conversationID
	if wasOpen {
		c.selectedConvID = ""
	}
	c.convMu.Unlock()

	if wasOpen {
		c.chatMu.Lock()
		c.timeline = nil
		c.paginator = nil
		c.chatMu.Unlock()
		c.session.Close()
		c.updateChatHeader()
	}
	c.refreshConversationList()
	c.setStatus("Contact removed")
}

// showMediaGallery lists the shared photos of the open conversation.
func (c *controller) showMediaGallery() {
	conversationID := c.currentConversationID()
	if conversationID == "" {
		c.setStatus("Select a conversation first")
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(c.ctx, api.DefaultRequestTimeout)
		defer cancel()

		page, err := c.client.Media(ctx, conversationID, models.MessageTypeImage, 30)
		if err != nil {
			c.setStatus(fmt.Sprintf("Load media failed: %v", err))
			return
		}

		fyne.Do(func() {
			rows := container.NewVBox()
			if len(page.Messages) == 0 {
				empty := widget.NewLabel("No shared photos")
				empty.Importance = widget.LowImportance
				rows.Add(empty)
			}
			for _, message := range page.Messages {
				name := valueOrDefault(message.AttachmentName, "photo")
				line := widget.NewLabel(fmt.Sprintf("%s · %s", name, formatMessageTime(message.CreatedAt)))
				line.Truncation = fyne.TextTruncateEllipsis
				rows.Add(line)
				if path := localAttachmentPath(message); path != "" {
					img := canvas.NewImageFromFile(path)
					img.FillMode = canvas.ImageFillContain
					img.SetMinSize(fyne.NewSize(200, 150))
					rows.Add(img)
				}
			}
			scroll := container.NewVScroll(rows)
			scroll.SetMinSize(fyne.NewSize(380, 320))
			dialog.ShowCustom("Shared Media", "Close", scroll, c.window)
		})
	}()
}

// sendCurrentMessage runs the optimistic send flow: the entry appears in
// the transcript immediately under a temp ID, then the REST acknowledgment
// reconciles it and the socket announce fans it out to peers.
func (c *controller) sendCurrentMessage() {
	conversationID := c.currentConversationID()
	if conversationID == "" {
		c.setStatus("Select a conversation before sending")
		return
	}

	content := strings.TrimSpace(c.messageInput.Text)
	if content == "" {
		return
	}
	c.messageInput.SetText("")

	timeline, _ := c.currentChatState()
	if timeline == nil {
		return
	}

	tempID := uuid.NewString()
	optimistic := models.Message{
		TempID:         tempID,
		ConversationID: conversationID,
		SenderID:       c.cfg.ProfileID,
		Content:        content,
		Type:           models.MessageTypeText,
	}
	if !timeline.PrependOptimistic(optimistic) {
		return
	}
	c.renderTranscript()

	go func() {
		ctx, cancel := context.WithTimeout(c.ctx, api.DefaultRequestTimeout)
		defer cancel()

		confirmed, err := c.client.SendMessage(ctx, api.SendRequest{
			ConversationID: conversationID,
			SenderID:       c.cfg.ProfileID,
			Content:        content,
			Type:           models.MessageTypeText,
		})
		if err != nil {
			timeline.MarkFailed(tempID)
			c.renderTranscript()
			c.setStatus(fmt.Sprintf("Send failed: %v", err))
			return
		}

		timeline.Reconcile(tempID, confirmed)
		c.renderTranscript()
		if err := c.store.SaveMessages([]models.Message{confirmed}); err != nil {
			c.setStatus(fmt.Sprintf("Cache sent message failed: %v", err))
		}
		c.bridge.AnnounceSend(confirmed)
	}()
}

func (c *controller) attachFileToCurrentConversation() {
	conversationID := c.currentConversationID()
	if conversationID == "" {
		c.setStatus("Select a conversation before attaching a file")
		return
	}

	go func() {
		path, err := c.fileHandler.PickFile()
		if err != nil {
			if !errors.Is(err, errFilePickerCancelled) {
				c.setStatus(fmt.Sprintf("Pick file failed: %v", err))
			}
			return
		}
		c.sendAttachment(conversationID, path)
	}()
}

func (c *controller) sendAttachment(conversationID, path string) {
	timeline, _ := c.currentChatState()
	if timeline == nil {
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		c.setStatus(fmt.Sprintf("Read attachment failed: %v", err))
		return
	}

	messageType := attachmentMessageType(path)
	tempID := uuid.NewString()
	optimistic := models.Message{
		TempID:         tempID,
		ConversationID: conversationID,
		SenderID:       c.cfg.ProfileID,
		Type:           messageType,
		AttachmentURL:  path,
		AttachmentName: filepath.Base(path),
		AttachmentSize: info.Size(),
	}
	if !timeline.PrependOptimistic(optimistic) {
		return
	}
	c.renderTranscript()

	file, err := os.Open(path)
	if err != nil {
		timeline.MarkFailed(tempID)
		c.renderTranscript()
		c.setStatus(fmt.Sprintf("Open attachment failed: %v", err))
		return
	}
	defer file.Close()

	ctx, cancel := context.WithTimeout(c.ctx, 2*time.Minute)
	defer cancel()

	confirmed, err := c.client.SendAttachment(ctx, api.AttachmentRequest{
		ConversationID: conversationID,
		SenderID:       c.cfg.ProfileID,
		Type:           messageType,
		Filename:       filepath.Base(path),
		Size:           info.Size(),
		Body:           file,
	})
	if err != nil {
		timeline.MarkFailed(tempID)
		c.renderTranscript()
		c.setStatus(fmt.Sprintf("Send attachment failed: %v", err))
		return
	}

	timeline.Reconcile(tempID, confirmed)
	c.renderTranscript()
	if err := c.store.SaveMessages([]models.Message{confirmed}); err != nil {
		c.setStatus(fmt.Sprintf("Cache attachment message failed: %v", err))
	}
	c.bridge.AnnounceSend(confirmed)
}

// retryFailedSend resends a failed optimistic entry under its original
// temp ID so the bubble stays in place.
func (c *controller) retryFailedSend(message models.Message) {
	timeline, _ := c.currentChatState()
	if timeline == nil || message.TempID == "" {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(c.ctx, api.DefaultRequestTimeout)
		defer cancel()

		confirmed, err := c.client.SendMessage(ctx, api.SendRequest{
			ConversationID: message.ConversationID,
			SenderID:       message.SenderID,
			Content:        message.Content,
			Type:           message.Type,
		})
		if err != nil {
			timeline.MarkFailed(message.TempID)
			c.renderTranscript()
			c.setStatus(fmt.Sprintf("Retry failed: %v", err))
			return
		}

		timeline.Reconcile(message.TempID, confirmed)
		c.renderTranscript()
		if err := c.store.SaveMessages([]models.Message{confirmed}); err != nil {
			c.setStatus(fmt.Sprintf("Cache sent message failed: %v", err))
		}
		c.bridge.AnnounceSend(confirmed)
	}()
}

func (c *controller) recallMessage(message models.Message) {
	if message.ID == "" {
		return
	}
	fyne.Do(func() {
		dialog.NewConfirm("Recall Message", "Recall this message for everyone?", func(confirm bool) {
			if !confirm {
				return
			}
			go func() {
				ctx, cancel := context.WithTimeout(c.ctx, api.DefaultRequestTimeout)
				defer cancel()

				if err := c.client.RecallMessage(ctx, message.ID); err != nil {
					c.setStatus(fmt.Sprintf("Recall failed: %v", err))
					return
				}
				timeline, _ := c.currentChatState()
				if timeline != nil {
					timeline.MarkRecalled(message.ID)
				}
				if err := c.store.MarkRecalled(message.ID); err != nil && !errors.Is(err, storage.ErrNotFound) {
					c.setStatus(fmt.Sprintf("Cache recall failed: %v", err))
				}
				c.renderTranscript()
				c.bridge.AnnounceRecall(message.ConversationID, message.ID)
			}()
		}, c.window).Show()
	})
}

func (c *controller) deleteMessage(message models.Message) {
	if message.ID == "" {
		timeline, _ := c.currentChatState()
		if timeline != nil {
			timeline.Remove(message.TempID)
			c.renderTranscript()
		}
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(c.ctx, api.DefaultRequestTimeout)
		defer cancel()

		if err := c.client.DeleteMessage(ctx, message.ID); err != nil {
			c.setStatus(fmt.Sprintf("Delete failed: %v", err))
			return
		}
		timeline, _ := c.currentChatState()
		if timeline != nil {
			timeline.Remove(message.ID)
		}
		if err := c.store.RemoveMessage(message.ID); err != nil && !errors.Is(err, storage.ErrNotFound) {
			c.setStatus(fmt.Sprintf("Cache delete failed: %v", err))
		}
		c.renderTranscript()
		c.bridge.AnnounceDelete(message.ConversationID, message.ID)
	}()
}

func (c *controller) editMessage(message models.Message) {
	if message.ID == "" {
		return
	}

	entry := widget.NewMultiLineEntry()
	entry.SetText(message.Content)
	entry.Wrapping = fyne.TextWrapWord

	fyne.Do(func() {
		dlg := dialog.NewCustomConfirm("Edit Message", "Save", "Cancel", entry, func(save bool) {
			if !save {
				return
			}
			newContent := strings.TrimSpace(entry.Text)
			if newContent == "" || newContent == message.Content {
				return
			}
			go func() {
				ctx, cancel := context.WithTimeout(c.ctx, api.DefaultRequestTimeout)
				defer cancel()

				edited, err := c.client.EditMessage(ctx, message.ID, newContent)
				if err != nil {
					c.setStatus(fmt.Sprintf("Edit failed: %v", err))
					return
				}
				timeline, _ := c.currentChatState()
				if timeline != nil {
					timeline.UpdateContent(message.ID, edited.Content)
				}
				if err := c.store.UpdateMessageContent(message.ID, edited.Content, edited.UpdatedAt); err != nil && !errors.Is(err, storage.ErrNotFound) {
					c.setStatus(fmt.Sprintf("Cache edit failed: %v", err))
				}
				c.renderTranscript()
				c.bridge.AnnounceEdit(message.ConversationID, message.ID, edited.Content)
			}()
		}, c.window)
		dlg.Resize(fyne.NewSize(420, 220))
		dlg.Show()
	})
}

// renderTranscript rebuilds the chat pane from the current timeline
// snapshot. Safe to call from any goroutine; a no-op before the widgets
// exist.
func (c *controller) renderTranscript() {
	timeline, _ := c.currentChatState()
	if timeline == nil || c.chatMessagesBox == nil {
		return
	}

	messages := timeline.Messages()
	rows := buildTranscriptRows(messages, time.Now())

	fyne.Do(func() {
		c.chatMessagesBox.RemoveAll()
		if len(rows) == 0 {
			empty := widget.NewLabel("No messages yet")
			empty.Alignment = fyne.TextAlignCenter
			empty.Importance = widget.LowImportance
			c.chatMessagesBox.Add(empty)
		} else {
			for _, row := range rows {
				c.chatMessagesBox.Add(c.renderTranscriptRow(row))
			}
		}
		c.chatMessagesBox.Refresh()
		if c.chatScroll != nil {
			c.chatScroll.ScrollToBottom()
		}
	})
}

func (c *controller) updateLoadEarlier() {
	_, paginator := c.currentChatState()
	if paginator == nil || c.loadEarlierBtn == nil {
		return
	}
	hasMore := paginator.HasMore()
	fyne.Do(func() {
		if hasMore {
			c.loadEarlierBtn.Show()
		} else {
			c.loadEarlierBtn.Hide()
		}
	})
}

func (c *controller) renderTranscriptRow(row transcriptRow) fyne.CanvasObject {
	if row.Kind == rowKindDateSeparator {
		label := canvas.NewText(row.Label, colorMuted)
		label.TextSize = 11
		return container.NewCenter(label)
	}
	return c.renderMessageBubble(row.Message, row.ShowSender)
}

func (c *controller) renderMessageBubble(message models.Message, showSender bool) fyne.CanvasObject {
	own := message.SenderID == c.cfg.ProfileID

	items := make([]fyne.CanvasObject, 0, 4)
	if showSender && !own {
		sender := canvas.NewText(c.memberDisplayName(message.ConversationID, message.SenderID), ctpLavender)
		sender.TextSize = 11
		sender.TextStyle = fyne.TextStyle{Bold: true}
		items = append(items, sender)
	}

	switch {
	case message.IsRecalled:
		body := widget.NewLabel("Message recalled")
		body.TextStyle = fyne.TextStyle{Italic: true}
		body.Importance = widget.LowImportance
		items = append(items, body)
	case message.Type == models.MessageTypeText || message.Type == models.MessageTypeSticker:
		body := widget.NewLabel(message.Content)
		body.Wrapping = fyne.TextWrapWord
		items = append(items, body)
	default:
		items = append(items, c.renderAttachmentBody(message))
	}

	meta := formatMessageTime(message.CreatedAt)
	if message.IsEdited {
		meta = "edited · " + meta
	}
	if own {
		meta += " " + deliveryMark(message.Delivery)
	}
	ts := canvas.NewText(meta, colorMuted)
	ts.TextSize = 11
	ts.Alignment = fyne.TextAlignTrailing
	items = append(items, ts)

	if own {
		if actions := c.renderOwnMessageActions(message); actions != nil {
			items = append(items, actions)
		}
	}

	bgColor := colorIncomingMsg
	if own {
		bgColor = colorOutgoingMsg
	}
	bubble := newRoundedBg(bgColor, 10, container.NewVBox(items...))

	if own {
		return container.NewGridWithColumns(2, layout.NewSpacer(), bubble)
	}
	return container.NewGridWithColumns(2, bubble, layout.NewSpacer())
}

func (c *controller) renderAttachmentBody(message models.Message) fyne.CanvasObject {
	name := message.AttachmentName
	if name == "" {
		name = string(message.Type)
	}
	title := widget.NewLabel("📎 " + name)
	title.TextStyle = fyne.TextStyle{Bold: true}
	title.Truncation = fyne.TextTruncateEllipsis

	items := []fyne.CanvasObject{title}

	if message.Type == models.MessageTypeImage {
		if path := localAttachmentPath(message); path != "" {
			img := canvas.NewImageFromFile(path)
			img.FillMode = canvas.ImageFillContain
			img.SetMinSize(fyne.NewSize(200, 150))
			items = append(items, img)
		}
	}

	if message.AttachmentSize > 0 {
		size := canvas.NewText(formatBytes(message.AttachmentSize), colorMuted)
		size.TextSize = 11
		items = append(items, size)
	}

	return container.NewVBox(items...)
}

func (c *controller) renderOwnMessageActions(message models.Message) fyne.CanvasObject {
	if message.Delivery == models.DeliveryFailed {
		retryBtn := widget.NewButton("Retry", func() {
			c.retryFailedSend(message)
		})
		retryBtn.Importance = widget.DangerImportance
		discardBtn := widget.NewButton("Discard", func() {
			c.deleteMessage(message)
		})
		discardBtn.Importance = widget.LowImportance
		return container.NewHBox(layout.NewSpacer(), discardBtn, retryBtn)
	}

	if message.ID == "" || message.IsRecalled {
		return nil
	}

	recallBtn := newHintButtonWithIcon("", theme.ContentUndoIcon(), "Recall", func() {
		c.recallMessage(message)
	}, c.handleHoverHint)
	recallBtn.Importance = widget.LowImportance
	deleteBtn := newHintButtonWithIcon("", theme.DeleteIcon(), "Delete", func() {
		c.deleteMessage(message)
	}, c.handleHoverHint)
	deleteBtn.Importance = widget.LowImportance

	actions := container.NewHBox(layout.NewSpacer(), recallBtn, deleteBtn)
	if message.Type == models.MessageTypeText {
		editBtn := newHintButtonWithIcon("", theme.DocumentCreateIcon(), "Edit", func() {
			c.editMessage(message)
		}, c.handleHoverHint)
		editBtn.Importance = widget.LowImportance
		actions.Add(editBtn)
	}
	return actions
}

func (c *controller) memberDisplayName(conversationID, senderID string) string {
	if conversation := c.conversationByID(conversationID); conversation != nil {
		for _, member := range conversation.Members {
			if member.ID == senderID && member.DisplayName != "" {
				return member.DisplayName
			}
		}
	}
	return senderID
}

// localAttachmentPath returns the attachment URL only when it points at a
// readable local file, which is the case for just-sent optimistic entries.
func localAttachmentPath(message models.Message) string {
	path := strings.TrimSpace(message.AttachmentURL)
	if path == "" || strings.Contains(path, "://") {
		return ""
	}
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

func attachmentMessageType(path string) models.MessageType {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".bmp", ".webp":
		return models.MessageTypeImage
	case ".mp4", ".mov", ".webm", ".mkv", ".avi":
		return models.MessageTypeVideo
	default:
		return models.MessageTypeRaw
	}
}
