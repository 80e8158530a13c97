package ui

import (
	"strconv"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"waveline/models"
)

func (c *controller) buildConversationListPane() fyne.CanvasObject {
	c.conversationList = widget.NewList(
		func() int {
			c.convMu.RLock()
			defer c.convMu.RUnlock()
			return len(c.conversations)
		},
		func() fyne.CanvasObject {
			_, dotBox := newStatusDot(false)
			title := widget.NewLabel("")
			title.TextStyle = fyne.TextStyle{Bold: true}
			title.Truncation = fyne.TextTruncateEllipsis
			preview := canvas.NewText("", colorMuted)
			preview.TextSize = 11
			info := container.NewVBox(title, preview)
			unread := canvas.NewText("", ctpPeach)
			unread.TextSize = 12
			unread.TextStyle = fyne.TextStyle{Bold: true}
			return container.NewBorder(nil, nil, container.NewCenter(dotBox), container.NewCenter(unread), info)
		},
		func(id widget.ListItemID, object fyne.CanvasObject) {
			row := object.(*fyne.Container)
			// Border(nil, nil, left, right, center): Objects = [center, left, right]
			info := row.Objects[0].(*fyne.Container)
			dotCenter := row.Objects[1].(*fyne.Container)
			dotBox := dotCenter.Objects[0].(*fyne.Container)
			dot := dotBox.Objects[0].(*canvas.Circle)
			unreadCenter := row.Objects[2].(*fyne.Container)
			unread := unreadCenter.Objects[0].(*canvas.Text)
			title := info.Objects[0].(*widget.Label)
			preview := info.Objects[1].(*canvas.Text)

			conversation := c.conversationByIndex(int(id))
			if conversation == nil {
				title.SetText("")
				preview.Text = ""
				preview.Refresh()
				unread.Text = ""
				unread.Refresh()
				return
			}

			title.SetText(conversationTitle(*conversation))
			preview.Text = conversation.LastMessage
			preview.Refresh()

			if c.conversationOnline(*conversation) {
				dot.FillColor = colorOnline
			} else {
				dot.FillColor = colorOffline
			}
			dot.Refresh()

			if conversation.UnreadCount > 0 {
				unread.Text = unreadBadge(conversation.UnreadCount)
			} else {
				unread.Text = ""
			}
			unread.Refresh()
		},
	)
	c.conversationList.OnSelected = func(id widget.ListItemID) {
		if conversation := c.conversationByIndex(int(id)); conversation != nil {
			c.openConversation(conversation.ID)
		}
	}

	heading := widget.NewLabel("Chats")
	heading.TextStyle = fyne.TextStyle{Bold: true}
	reloadBtn := newHintButtonWithIcon("", theme.ViewRefreshIcon(), "Reload conversations", func() {
		go c.loadConversations()
	}, c.handleHoverHint)
	topBar := container.NewBorder(nil, nil, heading, reloadBtn)

	return container.NewBorder(
		container.NewVBox(container.NewPadded(topBar), widget.NewSeparator()),
		nil, nil, nil, c.conversationList,
	)
}

func (c *controller) conversationByIndex(index int) *models.Conversation {
	c.convMu.RLock()
	defer c.convMu.RUnlock()
	if index < 0 || index >= len(c.conversations) {
		return nil
	}
	conversation := c.conversations[index]
	return &conversation
}

func (c *controller) refreshConversationList() {
	if c.conversationList == nil {
		return
	}
	fyne.Do(func() {
		c.conversationList.Refresh()
	})
}

// conversationOnline reports whether any participant other than the viewer
// is online. Groups count as online when at least one member is.
func (c *controller) conversationOnline(conversation models.Conversation) bool {
	for _, member := range conversation.Members {
		if member.ID == c.cfg.ProfileID {
			continue
		}
		if strings.EqualFold(member.Status, "online") {
			return true
		}
	}
	return false
}

func unreadBadge(count int) string {
	if count > 99 {
		return "99+"
	}
	return strconv.Itoa(count)
}

func (c *controller) handleHoverHint(_ fyne.CanvasObject, hint string, active bool) {
	if active {
		c.setStatus(hint)
		return
	}
	c.setStatus("")
}
