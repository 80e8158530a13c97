package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"waveline/models"
)

const (
	// DefaultAckTimeout bounds acknowledgment-based emits (register, open).
	DefaultAckTimeout = 5 * time.Second
	// DefaultWriteTimeout bounds each frame write.
	DefaultWriteTimeout = 10 * time.Second
)

var (
	// ErrNotConnected indicates an emit was attempted without a live
	// connection.
	ErrNotConnected = errors.New("realtime: not connected")
	// ErrAckTimeout indicates the backend did not acknowledge within the
	// bounded wait. The caller reports it; the bridge does not retry, so a
	// flaky backend cannot trigger a retry storm.
	ErrAckTimeout = errors.New("realtime: acknowledgment timed out")
	// ErrStopped indicates the bridge has been stopped.
	ErrStopped = errors.New("realtime: bridge stopped")
)

// ConnectionState is the lifecycle state of the realtime channel.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "DISCONNECTED"
	StateConnecting   ConnectionState = "CONNECTING"
	StateConnected    ConnectionState = "CONNECTED"
)

var defaultReconnectBackoff = []time.Duration{
	0,
	2 * time.Second,
	5 * time.Second,
	15 * time.Second,
	60 * time.Second,
}

// Handlers receives decoded inbound events. Handlers run on the socket
// reader goroutine and must complete synchronously with respect to store
// mutation; a panicking handler is recovered and logged without killing the
// read loop. Nil fields are skipped.
type Handlers struct {
	OnMessage     func(models.Message)
	OnRecall      func(RecallEvent)
	OnDelete      func(DeleteEvent)
	OnEdit        func(EditEvent)
	OnUnread      func(UnreadEvent)
	OnPresence    func(PresenceEvent)
	OnSocketError func(SocketErrorEvent)

	OnConnected    func()
	OnDisconnected func(err error)
}

// Options configures a Bridge. Zero values select defaults.
type Options struct {
	// URL is the websocket endpoint, e.g. wss://backend.example.com/socket.
	URL      string
	Handlers Handlers

	Dialer           *websocket.Dialer
	ReconnectBackoff []time.Duration
	AckTimeout       time.Duration
	WriteTimeout     time.Duration
}

// Bridge owns the single persistent websocket connection: it translates
// local intents into outbound events and inbound frames into typed handler
// calls. Constructed explicitly and passed to the components that need it;
// connecting is an explicit lifecycle call, never an import side effect.
type Bridge struct {
	url      string
	handlers Handlers

	dialer       *websocket.Dialer
	backoff      []time.Duration
	ackTimeout   time.Duration
	writeTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	startOnce sync.Once
	stopOnce  sync.Once

	stateMu sync.RWMutex
	state   ConnectionState

	connMu  sync.RWMutex
	conn    *websocket.Conn
	writeMu sync.Mutex

	// Acknowledgments carry only the event name they answer, so waiters
	// for the same event queue up FIFO and acks resolve them in emit
	// order. Concurrent register emits (a caller racing the automatic
	// re-announce) each get their own ack instead of colliding.
	ackMu sync.Mutex
	acks  map[string][]chan ackEvent

	// identity re-announced on every connect, because a reconnect is
	// indistinguishable from a first connect and an unregistered socket
	// silently stops receiving events.
	identityMu sync.Mutex
	profileID  string
	deviceID   string
}

// NewBridge creates a disconnected bridge.
func NewBridge(options Options) (*Bridge, error) {
	if options.URL == "" {
		return nil, errors.New("realtime: websocket URL is required")
	}

	dialer := options.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	backoff := options.ReconnectBackoff
	if len(backoff) == 0 {
		backoff = defaultReconnectBackoff
	}
	ackTimeout := options.AckTimeout
	if ackTimeout <= 0 {
		ackTimeout = DefaultAckTimeout
	}
	writeTimeout := options.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Bridge{
		url:          options.URL,
		handlers:     options.Handlers,
		dialer:       dialer,
		backoff:      backoff,
		ackTimeout:   ackTimeout,
		writeTimeout: writeTimeout,
		ctx:          ctx,
		cancel:       cancel,
		state:        StateDisconnected,
		acks:         make(map[string][]chan ackEvent),
	}, nil
}

// SetHandlers replaces the handler set. Call before Start; the read loop
// reads handlers without locking.
func (b *Bridge) SetHandlers(handlers Handlers) {
	b.handlers = handlers
}

// Start launches the connect/read/reconnect loop.
func (b *Bridge) Start() {
	b.startOnce.Do(func() {
		b.wg.Add(1)
		go b.run()
	})
}

// Stop closes the connection and stops reconnecting.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		b.cancel()
		b.closeConn()
		b.wg.Wait()
	})
}

// State returns the current connection state.
func (b *Bridge) State() ConnectionState {
	b.stateMu.RLock()
	defer b.stateMu.RUnlock()
	return b.state
}

// Register announces the viewer to the backend and waits for the
// acknowledgment. The identity is remembered and re-announced automatically
// after every reconnect.
func (b *Bridge) Register(ctx context.Context, profileID, deviceID string) error {
	if profileID == "" {
		return errors.New("realtime: profile id is required")
	}

	b.identityMu.Lock()
	b.profileID = profileID
	b.deviceID = deviceID
	b.identityMu.Unlock()

	payload := struct {
		ProfileID string `json:"profileId"`
		DeviceID  string `json:"deviceId,omitempty"`
	}{ProfileID: profileID, DeviceID: deviceID}

	if err := b.emitAwait(ctx, eventRegister, payload); err != nil {
		return fmt.Errorf("register profile %q: %w", profileID, err)
	}
	return nil
}

// OpenConversation announces which conversation the viewer has on screen
// and waits for the acknowledgment.
func (b *Bridge) OpenConversation(ctx context.Context, profileID, conversationID string) error {
	payload := struct {
		ProfileID      string `json:"profileId"`
		ConversationID string `json:"conversationId"`
	}{ProfileID: profileID, ConversationID: conversationID}

	if err := b.emitAwait(ctx, eventOpen, payload); err != nil {
		return fmt.Errorf("open conversation %q: %w", conversationID, err)
	}
	return nil
}

// CloseConversation is the fire-and-forget counterpart of OpenConversation.
func (b *Bridge) CloseConversation(profileID, conversationID string) {
	b.emit(eventClose, struct {
		ProfileID      string `json:"profileId"`
		ConversationID string `json:"conversationId"`
	}{ProfileID: profileID, ConversationID: conversationID})
}

// MarkRead tells the backend the viewer has read a conversation.
func (b *Bridge) MarkRead(profileID, conversationID string) {
	b.emit(eventMarkAsRead, struct {
		ProfileID      string `json:"profileId"`
		ConversationID string `json:"conversationId"`
	}{ProfileID: profileID, ConversationID: conversationID})
}

// AnnounceSend notifies peers of a message the REST call already persisted.
// Loss here only delays peer convergence, so there is no acknowledgment.
func (b *Bridge) AnnounceSend(message models.Message) {
	b.emit(eventSendMessage, message)
}

// AnnounceRecall notifies peers of a recall already applied over REST.
func (b *Bridge) AnnounceRecall(conversationID, messageID string) {
	b.emit(eventRecallMessage, RecallEvent{ConversationID: conversationID, MessageID: messageID})
}

// AnnounceDelete notifies peers of a delete already applied over REST.
func (b *Bridge) AnnounceDelete(conversationID, messageID string) {
	b.emit(eventDeleteMessage, DeleteEvent{ConversationID: conversationID, MessageID: messageID})
}

// AnnounceEdit notifies peers of an edit already applied over REST.
func (b *Bridge) AnnounceEdit(conversationID, messageID, newContent string) {
	b.emit(eventEditMessage, EditEvent{ConversationID: conversationID, MessageID: messageID, NewContent: newContent})
}

// AnnounceFriendRemoval notifies a removed contact.
func (b *Bridge) AnnounceFriendRemoval(profileID, friendID string) {
	b.emit(eventDeleteFriend, struct {
		ProfileID string `json:"profileId"`
		FriendID  string `json:"friendId"`
	}{ProfileID: profileID, FriendID: friendID})
}

func (b *Bridge) run() {
	defer b.wg.Done()

	attempt := 0
	for {
		select {
		case <-b.ctx.Done():
			b.setState(StateDisconnected)
			return
		default:
		}

		b.setState(StateConnecting)
		conn, resp, err := b.dialer.DialContext(b.ctx, b.url, nil)
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		if err != nil {
			b.setState(StateDisconnected)
			if b.ctx.Err() != nil {
				return
			}
			wait := b.backoff[min(attempt, len(b.backoff)-1)]
			attempt++
			log.Printf("realtime: dial %s failed (attempt %d, retry in %s): %v", b.url, attempt, wait, err)
			if !b.sleep(wait) {
				return
			}
			continue
		}

		attempt = 0
		b.setConn(conn)
		b.setState(StateConnected)

		// The register acknowledgment arrives through this connection's
		// read loop, so the re-announce must not run ahead of it on this
		// goroutine or it would wait out the full ack timeout every time.
		registerDone := make(chan struct{})
		go func() {
			defer close(registerDone)
			b.reRegister()
		}()
		if b.handlers.OnConnected != nil {
			b.handlers.OnConnected()
		}

		readErr := b.readLoop(conn)

		b.setConn(nil)
		_ = conn.Close()
		b.setState(StateDisconnected)
		b.failPendingAcks(readErr)
		<-registerDone
		if b.handlers.OnDisconnected != nil {
			b.handlers.OnDisconnected(readErr)
		}
		if b.ctx.Err() != nil {
			return
		}
		log.Printf("realtime: connection lost: %v", readErr)
	}
}

// reRegister re-announces the remembered identity after a (re)connect. A
// timeout is logged only: the next reconnect will try again.
func (b *Bridge) reRegister() {
	b.identityMu.Lock()
	profileID, deviceID := b.profileID, b.deviceID
	b.identityMu.Unlock()
	if profileID == "" {
		return
	}

	ctx, cancel := context.WithTimeout(b.ctx, b.ackTimeout)
	defer cancel()
	if err := b.Register(ctx, profileID, deviceID); err != nil {
		log.Printf("realtime: re-register after connect failed: %v", err)
	}
}

func (b *Bridge) readLoop(conn *websocket.Conn) error {
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		b.dispatch(payload)
	}
}

// dispatch decodes one inbound frame and routes it to its handler. Each
// frame is isolated: a decode failure or handler panic is logged and the
// loop moves on.
func (b *Bridge) dispatch(payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("realtime: event handler panic recovered: %v", r)
		}
	}()

	event, value, err := decodeEvent(payload)
	if err != nil {
		log.Printf("realtime: dropping frame: %v", err)
		return
	}

	switch v := value.(type) {
	case models.Message:
		if b.handlers.OnMessage != nil {
			b.handlers.OnMessage(v)
		}
	case RecallEvent:
		if b.handlers.OnRecall != nil {
			b.handlers.OnRecall(v)
		}
	case DeleteEvent:
		if b.handlers.OnDelete != nil {
			b.handlers.OnDelete(v)
		}
	case EditEvent:
		if b.handlers.OnEdit != nil {
			b.handlers.OnEdit(v)
		}
	case UnreadEvent:
		if b.handlers.OnUnread != nil {
			b.handlers.OnUnread(v)
		}
	case PresenceEvent:
		if b.handlers.OnPresence != nil {
			b.handlers.OnPresence(v)
		}
	case SocketErrorEvent:
		if b.handlers.OnSocketError != nil {
			b.handlers.OnSocketError(v)
		}
	case ackEvent:
		b.resolveAck(v)
	default:
		log.Printf("realtime: no handler for event %q", event)
	}
}

// emit writes a fire-and-forget frame. Failures are logged, not returned:
// the authoritative state change already happened over REST and peers will
// converge on their next fetch or reconnect.
func (b *Bridge) emit(event string, data any) {
	if err := b.write(event, data); err != nil {
		log.Printf("realtime: emit %q failed: %v", event, err)
	}
}

// emitAwait writes a frame and waits for the backend's acknowledgment with
// a bounded timeout.
func (b *Bridge) emitAwait(ctx context.Context, event string, data any) error {
	ackCh := make(chan ackEvent, 1)
	b.ackMu.Lock()
	b.acks[event] = append(b.acks[event], ackCh)
	b.ackMu.Unlock()

	defer b.removeAckWaiter(event, ackCh)

	if err := b.write(event, data); err != nil {
		return err
	}

	timer := time.NewTimer(b.ackTimeout)
	defer timer.Stop()

	select {
	case ack := <-ackCh:
		if !ack.OK {
			return fmt.Errorf("realtime: %q rejected: %s", event, ack.Error)
		}
		return nil
	case <-timer.C:
		return ErrAckTimeout
	case <-ctx.Done():
		return ctx.Err()
	case <-b.ctx.Done():
		return ErrStopped
	}
}

// resolveAck hands an inbound acknowledgment to the oldest waiter for its
// event and retires that waiter from the queue.
func (b *Bridge) resolveAck(ack ackEvent) {
	b.ackMu.Lock()
	waiters := b.acks[ack.For]
	if len(waiters) == 0 {
		b.ackMu.Unlock()
		log.Printf("realtime: acknowledgment for %q with no waiter", ack.For)
		return
	}
	ch := waiters[0]
	if rest := waiters[1:]; len(rest) > 0 {
		b.acks[ack.For] = rest
	} else {
		delete(b.acks, ack.For)
	}
	b.ackMu.Unlock()

	ch <- ack
}

// removeAckWaiter drops a waiter that gave up (timeout or cancellation)
// before its acknowledgment arrived.
func (b *Bridge) removeAckWaiter(event string, ch chan ackEvent) {
	b.ackMu.Lock()
	defer b.ackMu.Unlock()
	waiters := b.acks[event]
	for i := range waiters {
		if waiters[i] == ch {
			b.acks[event] = append(waiters[:i], waiters[i+1:]...)
			break
		}
	}
	if len(b.acks[event]) == 0 {
		delete(b.acks, event)
	}
}

// failPendingAcks unblocks awaiting emits when the connection drops.
func (b *Bridge) failPendingAcks(err error) {
	if err == nil {
		err = ErrNotConnected
	}
	b.ackMu.Lock()
	defer b.ackMu.Unlock()
	for event, waiters := range b.acks {
		for _, ch := range waiters {
			select {
			case ch <- ackEvent{For: event, OK: false, Error: err.Error()}:
			default:
			}
		}
		delete(b.acks, event)
	}
}

func (b *Bridge) write(event string, data any) error {
	b.connMu.RLock()
	conn := b.conn
	b.connMu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %q payload: %w", event, err)
	}

	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(b.writeTimeout))
	if err := conn.WriteJSON(envelope{Event: event, Data: raw}); err != nil {
		return fmt.Errorf("write %q frame: %w", event, err)
	}
	return nil
}

func (b *Bridge) setConn(conn *websocket.Conn) {
	b.connMu.Lock()
	b.conn = conn
	b.connMu.Unlock()
}

func (b *Bridge) closeConn() {
	b.connMu.Lock()
	conn := b.conn
	b.conn = nil
	b.connMu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

func (b *Bridge) setState(state ConnectionState) {
	b.stateMu.Lock()
	b.state = state
	b.stateMu.Unlock()
}

func (b *Bridge) sleep(d time.Duration) bool {
	if d <= 0 {
		return b.ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-b.ctx.Done():
		return false
	}
}
