package connection

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// Manager owns the session to the exchange: one socket, its subscriptions,
// its heartbeat and its reconnects.
type Manager interface {
	// Connect opens the socket. Concurrent callers share one in-flight open;
	// it returns nil at once when already connected.
	Connect(ctx context.Context) error

	// Close terminates the socket and clears every subscription without
	// scheduling a reconnect. The manager can be connected again.
	Close() error

	// Stop closes the session for good and releases the output buffer.
	Stop(ctx context.Context) error

	// Subscribe registers handler for channel, replacing any previous one,
	// and sends a subscribe frame when connected. The returned function
	// unsubscribes; calling it more than once has no further effect.
	Subscribe(channel string, handler Handler) (unsubscribe func())

	// Send marshals frame and writes it. Returns ErrNotConnected unless
	// the socket is open.
	Send(frame any) error

	// Handler returns the handler currently registered for channel.
	Handler(channel string) (Handler, bool)

	// State returns the transport state.
	State() State

	// ReconnectState returns the reconnection controller state.
	ReconnectState() ReconnectState

	// Messages returns the ordered buffer of inbound frames for the router.
	Messages() *GrowableBuffer[RawMessage]

	// Events returns lifecycle notifications. Delivery is best effort and
	// the channel is closed by Stop.
	Events() <-chan Event

	// Stats returns current connection and subscription statistics.
	Stats() ManagerStats
}

// manager implements the Manager interface.
type manager struct {
	cfg       ManagerConfig
	logger    *slog.Logger
	newClient func(ClientConfig, *slog.Logger) Client

	output *GrowableBuffer[RawMessage]

	eventsMu     sync.RWMutex
	events       chan Event
	eventsClosed bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	opens singleflight.Group

	registry *Registry

	// Session state, guarded by mu. Frames are written while holding mu so
	// that registry changes and the subscribe/unsubscribe frames they cause
	// are observed by the server in the same order.
	mu             sync.Mutex
	state          State
	client         Client
	connID         string
	connectedSince time.Time
	gen            uint64 // Bumped on every open, disconnect and Close
	hb             *heartbeat
	reconnect      *reconnector
	retryTimer     *time.Timer
	stopped        bool
	everOpened     bool

	reconnects        atomic.Int64
	heartbeatTimeouts atomic.Int64
	framesReceived    atomic.Int64
	framesSent        atomic.Int64
}

// NewManager creates a new Connection Manager.
func NewManager(cfg ManagerConfig, logger *slog.Logger) Manager {
	return newManager(cfg, logger, NewClient)
}

func newManager(cfg ManagerConfig, logger *slog.Logger, newClient func(ClientConfig, *slog.Logger) Client) *manager {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultManagerConfig()
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = def.HeartbeatInterval
	}
	if cfg.HeartbeatTimeout <= 0 {
		cfg.HeartbeatTimeout = def.HeartbeatTimeout
	}
	if cfg.MessageBufferSize < 1 {
		cfg.MessageBufferSize = def.MessageBufferSize
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &manager{
		cfg:       cfg,
		logger:    logger,
		newClient: newClient,
		output:    NewGrowableBuffer[RawMessage](cfg.MessageBufferSize),
		events:    make(chan Event, 64),
		ctx:       ctx,
		cancel:    cancel,
		registry:  NewRegistry(),
		reconnect: newReconnector(cfg),
	}
}

// Connect opens the socket or joins an open already in flight.
func (m *manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return ErrManagerStopped
	}
	if m.state == StateConnected {
		m.mu.Unlock()
		return nil
	}
	// An explicit Connect after exhaustion starts with a fresh budget.
	if m.reconnect.state == ReconnectFailed {
		m.reconnect.reset()
	}
	m.mu.Unlock()

	return m.connectShared(ctx)
}

func (m *manager) connectShared(ctx context.Context) error {
	ch := m.opens.DoChan("open", func() (any, error) {
		return nil, m.open()
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	case <-m.ctx.Done():
		return ErrManagerStopped
	}
}

// open dials a new client and, on success, makes it the live connection.
func (m *manager) open() error {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return ErrManagerStopped
	}
	if m.state == StateConnected {
		m.mu.Unlock()
		return nil
	}
	m.state = StateConnecting
	m.reconnect.state = ReconnectConnecting
	m.stopRetryTimerLocked()
	m.gen++
	gen := m.gen
	m.mu.Unlock()

	connID := uuid.NewString()
	logger := m.logger.With("conn_id", connID)

	client := m.newClient(ClientConfig{
		URL:              m.cfg.WSURL,
		HandshakeTimeout: m.cfg.HandshakeTimeout,
		WriteTimeout:     m.cfg.WriteTimeout,
		BufferSize:       m.cfg.ClientBufferSize,
	}, logger)

	err := client.Connect(m.ctx)

	m.mu.Lock()
	if gen != m.gen || m.stopped {
		// Close or Stop ran while dialing.
		m.mu.Unlock()
		client.Close()
		return ErrClosedWhileOpen
	}
	if err != nil {
		m.mu.Unlock()
		logger.Warn("connect failed", "url", m.cfg.WSURL, "error", err)
		m.emit(Event{Kind: EventError, ConnID: connID, Err: err})
		m.handleDisconnect(gen, connID, fmt.Errorf("dial: %w", err))
		return fmt.Errorf("connect %s: %w", m.cfg.WSURL, err)
	}

	m.client = client
	m.connID = connID
	m.state = StateConnected
	m.connectedSince = time.Now()
	m.reconnect.opened()
	if m.everOpened {
		m.reconnects.Add(1)
	}
	m.everOpened = true

	m.hb = startHeartbeat(
		m.cfg.HeartbeatInterval,
		m.cfg.HeartbeatTimeout,
		client.LastMessageAt,
		func(time.Duration) {
			m.heartbeatTimeouts.Add(1)
			client.ForceDisconnect(ErrStaleConnection)
		},
		logger,
	)

	m.wg.Add(1)
	go m.readLoop(gen, connID, client)

	channels := m.registry.Channels()
	for _, channel := range channels {
		if err := m.sendLocked(SubscribeFrame{Type: TypeSubscribe, Channel: channel}); err != nil {
			logger.Warn("resubscribe failed", "channel", channel, "error", err)
		}
	}
	m.mu.Unlock()

	logger.Info("connected", "url", m.cfg.WSURL, "resubscribed", len(channels))
	m.emit(Event{Kind: EventOpen, ConnID: connID})

	return nil
}

// handleDisconnect runs the unplanned-close path for generation gen. connID
// names the connection that was lost or failed to dial.
func (m *manager) handleDisconnect(gen uint64, connID string, cause error) {
	m.mu.Lock()
	if gen != m.gen || m.stopped {
		m.mu.Unlock()
		return
	}
	m.gen++
	m.stopHeartbeatLocked()

	client := m.client
	m.client = nil
	m.connID = ""
	m.state = StateDisconnected

	delay, ok := m.reconnect.next()
	attempt := m.reconnect.attempts
	if ok {
		retryGen := m.gen
		m.retryTimer = time.AfterFunc(delay, func() { m.retry(retryGen) })
	}
	m.mu.Unlock()

	if client != nil {
		client.Close()
		m.emit(Event{Kind: EventClose, ConnID: connID, Err: cause})
	}

	if !ok {
		m.logger.Error("max reconnection attempts reached",
			"attempts", attempt,
			"error", cause,
		)
		m.emit(Event{
			Kind:    EventReconnectFailed,
			ConnID:  connID,
			Err:     fmt.Errorf("%w: %w", ErrReconnectExhausted, cause),
			Attempt: attempt,
		})
		return
	}

	m.logger.Warn("connection lost, scheduling reconnect",
		"conn_id", connID,
		"attempt", attempt,
		"max_attempts", m.reconnect.maxAttempts,
		"delay", delay,
		"error", cause,
	)
	m.emit(Event{Kind: EventReconnectScheduled, ConnID: connID, Err: cause, Attempt: attempt, Delay: delay})
}

// retry fires from the reconnect timer.
func (m *manager) retry(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || m.stopped || m.state == StateConnected {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	m.logger.Info("attempting reconnection")
	if err := m.connectShared(m.ctx); err != nil {
		m.logger.Debug("reconnection attempt failed", "error", err)
	}
}

// Close terminates the socket and clears all subscription state.
func (m *manager) Close() error {
	m.mu.Lock()
	m.gen++
	m.stopRetryTimerLocked()
	m.stopHeartbeatLocked()

	client := m.client
	connID := m.connID
	wasOpen := client != nil
	m.client = nil
	m.connID = ""
	m.state = StateDisconnected
	m.registry.Clear()
	m.reconnect.reset()
	m.mu.Unlock()

	if !wasOpen {
		return nil
	}

	err := client.Close()
	m.logger.Info("connection closed", "conn_id", connID)
	m.emit(Event{Kind: EventClose, ConnID: connID})
	return err
}

// Stop gracefully shuts down.
func (m *manager) Stop(ctx context.Context) error {
	m.logger.Info("stopping connection manager")

	m.Close()

	m.mu.Lock()
	m.stopped = true
	m.mu.Unlock()

	m.cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		m.logger.Warn("shutdown timeout, forcing close")
		err = ctx.Err()
	}

	m.output.Close()

	m.eventsMu.Lock()
	if !m.eventsClosed {
		m.eventsClosed = true
		close(m.events)
	}
	m.eventsMu.Unlock()

	m.logger.Info("connection manager stopped")
	return err
}

// Subscribe registers handler for channel.
func (m *manager) Subscribe(channel string, handler Handler) func() {
	m.mu.Lock()
	id := m.registry.Set(channel, handler)
	if m.state == StateConnected {
		if err := m.sendLocked(SubscribeFrame{Type: TypeSubscribe, Channel: channel}); err != nil {
			m.logger.Warn("subscribe send failed", "channel", channel, "error", err)
		}
	}
	m.mu.Unlock()

	m.logger.Debug("subscribed", "channel", channel)

	var once sync.Once
	return func() {
		once.Do(func() { m.unsubscribe(channel, id) })
	}
}

func (m *manager) unsubscribe(channel string, id uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// A later Subscribe for the same channel owns it now.
	if !m.registry.Remove(channel, id) {
		return
	}
	if m.state == StateConnected {
		if err := m.sendLocked(SubscribeFrame{Type: TypeUnsubscribe, Channel: channel}); err != nil {
			m.logger.Warn("unsubscribe send failed", "channel", channel, "error", err)
		}
	}
	m.logger.Debug("unsubscribed", "channel", channel)
}

// Send writes a frame when connected.
func (m *manager) Send(frame any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateConnected || m.client == nil {
		return ErrNotConnected
	}
	return m.sendLocked(frame)
}

func (m *manager) sendLocked(frame any) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	if err := m.client.Send(data); err != nil {
		return err
	}
	m.framesSent.Add(1)
	return nil
}

// Handler returns the registered handler for channel.
func (m *manager) Handler(channel string) (Handler, bool) {
	return m.registry.Handler(channel)
}

// State returns the transport state.
func (m *manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// ReconnectState returns the reconnection controller state.
func (m *manager) ReconnectState() ReconnectState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reconnect.state
}

// Messages returns the output buffer for the Message Router.
func (m *manager) Messages() *GrowableBuffer[RawMessage] {
	return m.output
}

// Events returns the lifecycle event channel.
func (m *manager) Events() <-chan Event {
	return m.events
}

// Stats returns current statistics.
func (m *manager) Stats() ManagerStats {
	m.mu.Lock()
	stats := ManagerStats{
		State:             m.state,
		ReconnectState:    m.reconnect.state,
		ConnID:            m.connID,
		ReconnectAttempts: m.reconnect.attempts,
	}
	if m.state == StateConnected {
		stats.ConnectedSince = m.connectedSince
	}
	m.mu.Unlock()

	stats.Subscriptions = m.registry.Len()
	stats.Reconnects = m.reconnects.Load()
	stats.HeartbeatTimeouts = m.heartbeatTimeouts.Load()
	stats.FramesReceived = m.framesReceived.Load()
	stats.FramesSent = m.framesSent.Load()
	stats.Buffer = m.output.Stats()
	return stats
}

// readLoop forwards frames from one client until it fails or is closed.
func (m *manager) readLoop(gen uint64, connID string, client Client) {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			return

		case err := <-client.Errors():
			m.drain(connID, client)
			m.handleDisconnect(gen, connID, err)
			return

		case <-client.Done():
			// ForceDisconnect queues its error before closing Done.
			select {
			case err := <-client.Errors():
				m.drain(connID, client)
				m.handleDisconnect(gen, connID, err)
			default:
			}
			return

		case msg := <-client.Messages():
			m.forward(connID, msg)
		}
	}
}

// drain forwards frames that arrived before the failure.
func (m *manager) drain(connID string, client Client) {
	for {
		select {
		case msg := <-client.Messages():
			m.forward(connID, msg)
		default:
			return
		}
	}
}

func (m *manager) forward(connID string, msg TimestampedMessage) {
	m.framesReceived.Add(1)
	m.output.Send(RawMessage{
		Data:       msg.Data,
		ConnID:     connID,
		ReceivedAt: msg.ReceivedAt,
	})
}

func (m *manager) emit(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	m.eventsMu.RLock()
	defer m.eventsMu.RUnlock()
	if m.eventsClosed {
		return
	}
	select {
	case m.events <- ev:
	default:
		m.logger.Debug("event dropped, no reader", "kind", ev.Kind)
	}
}

func (m *manager) stopHeartbeatLocked() {
	if m.hb != nil {
		m.hb.Stop()
		m.hb = nil
	}
}

func (m *manager) stopRetryTimerLocked() {
	if m.retryTimer != nil {
		m.retryTimer.Stop()
		m.retryTimer = nil
	}
}
