package ui

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	fyneapp "fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"waveline/api"
	"waveline/chat"
	"waveline/config"
	"waveline/models"
	"waveline/realtime"
	"waveline/storage"
)

var errFilePickerCancelled = errors.New("file picker canceled")

// RunOptions configures the GUI runtime.
type RunOptions struct {
	Config     *config.AppConfig
	ConfigPath string
	DataDir    string
	Store      *storage.Store
	Client     *api.Client
	Bridge     *realtime.Bridge
}

// inboundEvent is one realtime frame held back while a refresh replaces the
// visible timeline, replayed once the refresh settles.
type inboundEvent struct {
	message *models.Message
	recall  *realtime.RecallEvent
	delete  *realtime.DeleteEvent
	edit    *realtime.EditEvent
}

type controller struct {
	app    fyne.App
	window fyne.Window

	cfg     *config.AppConfig
	cfgPath string
	dataDir string
	store   *storage.Store
	client  *api.Client
	bridge  *realtime.Bridge

	session *chat.Session

	fileHandler *FileHandler

	ctx        context.Context
	cancel     context.CancelFunc
	shutdownMu sync.Once

	convMu         sync.RWMutex
	conversations  []models.Conversation
	selectedConvID string

	chatMu    sync.RWMutex
	timeline  *chat.Timeline
	paginator *chat.Paginator

	pendingMu     sync.Mutex
	pendingEvents []inboundEvent

	conversationList *widget.List
	chatHeader       *tapLabel
	chatMessagesBox  *fyne.Container
	chatScroll       *container.Scroll
	messageInput     *messageEntry
	loadEarlierBtn   *widget.Button
	chatComposer     *fyne.Container
	statusLabel      *widget.Label
}

// Run starts the GUI.
func Run(options RunOptions) error {
	if err := options.validate(); err != nil {
		return err
	}

	app := fyneapp.NewWithID("waveline")
	app.Settings().SetTheme(newWavelineTheme())
	ctrl, err := newController(app, options)
	if err != nil {
		return err
	}
	return ctrl.run()
}

func (o RunOptions) validate() error {
	if o.Config == nil {
		return errors.New("config is required")
	}
	if o.ConfigPath == "" {
		return errors.New("config path is required")
	}
	if o.DataDir == "" {
		return errors.New("data dir is required")
	}
	if o.Store == nil {
		return errors.New("store is required")
	}
	if o.Client == nil {
		return errors.New("api client is required")
	}
	if o.Bridge == nil {
		return errors.New("realtime bridge is required")
	}
	if o.Config.ProfileID == "" {
		return errors.New("profile id is required")
	}
	return nil
}

func newController(app fyne.App, options RunOptions) (*controller, error) {
	ctx, cancel := context.WithCancel(context.Background())

	ctrl := &controller{
		app:     app,
		window:  app.NewWindow("Waveline"),
		cfg:     options.Config,
		cfgPath: options.ConfigPath,
		dataDir: options.DataDir,
		store:   options.Store,
		client:  options.Client,
		bridge:  options.Bridge,
		session: chat.NewSession(options.Config.ProfileID, options.Bridge),
		ctx:     ctx,
		cancel:  cancel,
	}

	ctrl.fileHandler = NewFileHandler(ctrl.pickFilePath)
	ctrl.window.Resize(fyne.NewSize(1100, 720))

	ctrl.buildMainWindow()
	ctrl.startServices()
	ctrl.loadConversations()
	ctrl.setStatus("Ready")

	return ctrl, nil
}

func (c *controller) startServices() {
	c.bridge.SetHandlers(c.bridgeHandlers())
	c.bridge.Start()

	go func() {
		ctx, cancel := context.WithTimeout(c.ctx, 15*time.Second)
		defer cancel()
		if err := c.bridge.Register(ctx, c.cfg.ProfileID, c.cfg.DeviceID); err != nil {
			c.setStatus(fmt.Sprintf("Realtime registration failed: %v", err))
		}
	}()
}

func (c *controller) run() error {
	c.window.SetCloseIntercept(func() {
		c.shutdown()
		c.window.SetCloseIntercept(nil)
		c.window.Close()
	})
	c.window.ShowAndRun()
	c.shutdown()
	return nil
}

func (c *controller) shutdown() {
	c.shutdownMu.Do(func() {
		if current := c.session.Current(); current != "" {
			c.session.Close()
		}
		c.cancel()
		if c.bridge != nil {
			c.bridge.Stop()
		}
		if c.store != nil {
			_ = c.store.Close()
		}
	})
}

func (c *controller) buildMainWindow() {
	left := c.buildConversationListPane()
	right := c.buildChatPane()

	split := container.NewHSplit(left, right)
	split.Offset = 0.3

	settingsBtn := widget.NewButtonWithIcon("Settings", theme.SettingsIcon(), c.showSettingsDialog)
	refreshBtn := widget.NewButtonWithIcon("Refresh", theme.ViewRefreshIcon(), func() {
		go c.refreshCurrentConversation()
	})
	toolbar := container.NewHBox(settingsBtn, refreshBtn, layout.NewSpacer())

	c.statusLabel = widget.NewLabel("Starting...")
	content := container.NewBorder(toolbar, c.statusLabel, nil, nil, split)
	c.window.SetContent(content)
}

func (c *controller) setStatus(message string) {
	if strings.TrimSpace(message) == "" {
		message = "Ready"
	}
	if c.statusLabel == nil {
		return
	}
	fyne.Do(func() {
		c.statusLabel.SetText(message)
	})
}

// loadConversations shows the cached list immediately, then replaces it
// with the backend's answer when it arrives.
func (c *controller) loadConversations() {
	if cached, err := c.store.Conversations(); err == nil && len(cached) > 0 {
		c.setConversations(cached)
	}

	go func() {
		ctx, cancel := context.WithTimeout(c.ctx, api.DefaultRequestTimeout)
		defer cancel()

		conversations, err := c.client.Conversations(ctx)
		if err != nil {
			c.setStatus(fmt.Sprintf("Load conversations failed: %v", err))
			return
		}
		for _, conversation := range conversations {
			if err := c.store.UpsertConversation(conversation); err != nil {
				c.setStatus(fmt.Sprintf("Cache conversation failed: %v", err))
			}
		}
		c.setConversations(conversations)
	}()
}

func (c *controller) setConversations(conversations []models.Conversation) {
	sorted := make([]models.Conversation, len(conversations))
	copy(sorted, conversations)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].LastMessageAt > sorted[j].LastMessageAt
	})

	selectedIndex := -1
	c.convMu.Lock()
	c.conversations = sorted
	if c.selectedConvID != "" {
		for i := range sorted {
			if sorted[i].ID == c.selectedConvID {
				selectedIndex = i
				break
			}
		}
	}
	c.convMu.Unlock()

	if c.conversationList == nil {
		return
	}
	fyne.Do(func() {
		c.conversationList.Refresh()
		if selectedIndex >= 0 {
			c.conversationList.Select(selectedIndex)
		}
	})
}

func (c *controller) currentConversationID() string {
	c.convMu.RLock()
	defer c.convMu.RUnlock()
	return c.selectedConvID
}

func (c *controller) conversationByID(conversationID string) *models.Conversation {
	if conversationID == "" {
		return nil
	}
	c.convMu.RLock()
	defer c.convMu.RUnlock()
	for i := range c.conversations {
		if c.conversations[i].ID == conversationID {
			conversation := c.conversations[i]
			return &conversation
		}
	}
	return nil
}

// openConversation switches the chat pane to a conversation: new timeline
// and paginator, cached history shown at once, then a refresh against the
// backend, with presence and read state announced over the socket.
func (c *controller) openConversation(conversationID string) {
	if conversationID == "" || conversationID == c.currentConversationID() {
		return
	}

	timeline := chat.NewTimeline(conversationID)
	paginator := chat.NewPaginator(timeline, c.fetchHistoryPage)

	c.convMu.Lock()
	c.selectedConvID = conversationID
	c.convMu.Unlock()

	c.chatMu.Lock()
	c.timeline = timeline
	c.paginator = paginator
	c.chatMu.Unlock()

	c.pendingMu.Lock()
	c.pendingEvents = nil
	c.pendingMu.Unlock()

	if cached, err := c.store.CachedMessages(conversationID, 50); err == nil && len(cached) > 0 {
		timeline.ReplaceAll(cached)
	}
	c.updateChatHeader()
	c.renderTranscript()

	if err := c.store.ClearUnread(conversationID); err != nil && !errors.Is(err, storage.ErrNotFound) {
		c.setStatus(fmt.Sprintf("Clear unread failed: %v", err))
	}
	c.clearUnreadLocally(conversationID)

	go func() {
		ctx, cancel := context.WithTimeout(c.ctx, 10*time.Second)
		defer cancel()
		if err := c.session.Open(ctx, conversationID); err != nil {
			c.setStatus(fmt.Sprintf("Open conversation announce failed: %v", err))
		}
	}()
	go c.refreshConversation(conversationID)
}

func (c *controller) clearUnreadLocally(conversationID string) {
	c.convMu.Lock()
	for i := range c.conversations {
		if c.conversations[i].ID == conversationID {
			c.conversations[i].UnreadCount = 0
			break
		}
	}
	c.convMu.Unlock()

	if c.conversationList == nil {
		return
	}
	fyne.Do(func() {
		c.conversationList.Refresh()
	})
}

func (c *controller) currentChatState() (*chat.Timeline, *chat.Paginator) {
	c.chatMu.RLock()
	defer c.chatMu.RUnlock()
	return c.timeline, c.paginator
}

func (c *controller) fetchHistoryPage(ctx context.Context, conversationID, cursor string) (models.MessagePage, error) {
	page, err := c.client.Messages(ctx, conversationID, cursor)
	if err != nil {
		return models.MessagePage{}, err
	}
	if err := c.store.SaveMessages(page.Messages); err != nil {
		c.setStatus(fmt.Sprintf("Cache messages failed: %v", err))
	}
	return page, nil
}

func (c *controller) refreshCurrentConversation() {
	conversationID := c.currentConversationID()
	if conversationID == "" {
		c.setStatus("Select a conversation first")
		return
	}
	c.refreshConversation(conversationID)
}

func (c *controller) refreshConversation(conversationID string) {
	timeline, paginator := c.currentChatState()
	if timeline == nil || paginator == nil || timeline.ConversationID() != conversationID {
		return
	}

	ctx, cancel := context.WithTimeout(c.ctx, api.DefaultRequestTimeout)
	defer cancel()

	err := paginator.Refresh(ctx)
	c.replayPendingEvents()
	if err != nil {
		if errors.Is(err, chat.ErrLoadInFlight) {
			c.setStatus("A history load is already running")
			return
		}
		c.setStatus(fmt.Sprintf("Refresh failed: %v", err))
		return
	}
	c.renderTranscript()
	c.updateLoadEarlier()
}

func (c *controller) loadEarlierMessages() {
	conversationID := c.currentConversationID()
	timeline, paginator := c.currentChatState()
	if conversationID == "" || timeline == nil || paginator == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(c.ctx, api.DefaultRequestTimeout)
		defer cancel()

		if err := paginator.LoadMore(ctx); err != nil {
			if errors.Is(err, chat.ErrLoadInFlight) {
				return
			}
			c.setStatus(fmt.Sprintf("Load earlier messages failed: %v", err))
			return
		}
		c.renderTranscript()
		c.updateLoadEarlier()
	}()
}
