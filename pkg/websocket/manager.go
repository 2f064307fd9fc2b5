package websocket

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/crossvenue/predictarb/pkg/types"
)

// Manager owns the single process-wide market-data connection to the hedge
// venue. All token subscriptions multiplex over it; subscriptions are
// reference-counted so independent consumers can share a token.
type Manager struct {
	url          string
	conn         *websocket.Conn
	logger       *zap.Logger
	reconnectMgr *ReconnectManager
	config       Config

	messageChan chan *types.MarketMessage
	stateChan   chan bool // true = connected, false = dropped

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.RWMutex
	refs      map[string]int // token id -> subscriber count
	connected atomic.Bool
}

// Config holds WebSocket manager configuration.
type Config struct {
	URL                   string
	DialTimeout           time.Duration
	PingInterval          time.Duration
	ReconnectInitialDelay time.Duration
	ReconnectMaxDelay     time.Duration
	ReconnectBackoffMult  float64
	MessageBufferSize     int
	Logger                *zap.Logger
}

// New creates a new WebSocket manager.
func New(cfg Config) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	reconnectCfg := ReconnectConfig{
		InitialDelay:      cfg.ReconnectInitialDelay,
		MaxDelay:          cfg.ReconnectMaxDelay,
		BackoffMultiplier: cfg.ReconnectBackoffMult,
		JitterPercent:     0.2,
	}

	return &Manager{
		url:          cfg.URL,
		logger:       cfg.Logger,
		reconnectMgr: NewReconnectManager(reconnectCfg, cfg.Logger),
		config:       cfg,
		messageChan:  make(chan *types.MarketMessage, cfg.MessageBufferSize),
		stateChan:    make(chan bool, 8),
		ctx:          ctx,
		cancel:       cancel,
		refs:         make(map[string]int),
	}
}

// Start dials the venue and launches the read, ping and reconnect loops.
func (m *Manager) Start() error {
	m.logger.Info("market-ws-starting", zap.String("url", m.url))

	err := m.connect(m.ctx)
	if err != nil {
		return fmt.Errorf("initial connection: %w", err)
	}

	m.wg.Add(3)
	go m.readLoop()
	go m.pingLoop()
	go m.reconnectLoop()

	return nil
}

func (m *Manager) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: m.config.DialTimeout}

	conn, _, err := dialer.DialContext(ctx, m.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	m.mu.Lock()
	m.conn = conn
	m.mu.Unlock()

	m.connected.Store(true)
	ActiveConnections.Set(1)
	m.notifyState(true)

	m.logger.Info("market-ws-connected")

	return nil
}

// Subscribe adds a reference to each token, sending a subscription message
// only for tokens that were previously unreferenced.
func (m *Manager) Subscribe(ctx context.Context, tokenIDs []string) error {
	if len(tokenIDs) == 0 {
		return nil
	}

	m.mu.Lock()
	newTokens := make([]string, 0, len(tokenIDs))
	for _, id := range tokenIDs {
		if m.refs[id] == 0 {
			newTokens = append(newTokens, id)
		}
		m.refs[id]++
	}
	initial := len(m.refs) == len(newTokens)
	total := len(m.refs)
	conn := m.conn
	m.mu.Unlock()

	if len(newTokens) == 0 {
		return nil
	}

	msg := map[string]interface{}{"assets_ids": newTokens, "operation": "subscribe"}
	if initial {
		msg = map[string]interface{}{"assets_ids": newTokens, "type": "market"}
	}

	err := conn.WriteJSON(msg)
	if err != nil {
		m.mu.Lock()
		for _, id := range newTokens {
			if m.refs[id]--; m.refs[id] <= 0 {
				delete(m.refs, id)
			}
		}
		m.mu.Unlock()
		return fmt.Errorf("write subscribe message: %w", err)
	}

	SubscriptionCount.Set(float64(total))
	m.logger.Info("market-ws-subscribed",
		zap.Int("new-count", len(newTokens)),
		zap.Int("total-count", total))

	return nil
}

// Unsubscribe drops one reference per token; the wire unsubscribe is only
// sent once the last reference is released.
func (m *Manager) Unsubscribe(ctx context.Context, tokenIDs []string) error {
	if len(tokenIDs) == 0 {
		return nil
	}

	m.mu.Lock()
	released := make([]string, 0, len(tokenIDs))
	for _, id := range tokenIDs {
		if m.refs[id] == 0 {
			continue
		}
		m.refs[id]--
		if m.refs[id] == 0 {
			delete(m.refs, id)
			released = append(released, id)
		}
	}
	total := len(m.refs)
	conn := m.conn
	m.mu.Unlock()

	if len(released) == 0 {
		return nil
	}

	msg := map[string]interface{}{"assets_ids": released, "operation": "unsubscribe"}
	err := conn.WriteJSON(msg)
	if err != nil {
		return fmt.Errorf("write unsubscribe message: %w", err)
	}

	SubscriptionCount.Set(float64(total))
	m.logger.Info("market-ws-unsubscribed",
		zap.Int("count", len(released)),
		zap.Int("remaining-count", total))

	return nil
}

func (m *Manager) readLoop() {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			return
		default:
		}

		m.mu.RLock()
		conn := m.conn
		m.mu.RUnlock()

		if conn == nil {
			time.Sleep(100 * time.Millisecond)
			continue
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			m.logger.Warn("market-ws-read-error", zap.Error(err))
			m.connected.Store(false)
			ActiveConnections.Set(0)
			m.notifyState(false)
			return
		}

		// The venue replies PONG to our text PING.
		if string(message) == "PONG" {
			continue
		}

		// The venue sends arrays of messages.
		var msgs []types.MarketMessage
		err = json.Unmarshal(message, &msgs)
		if err != nil {
			if len(message) < 10 {
				continue
			}
			m.logger.Debug("market-ws-unparseable-message",
				zap.Error(err),
				zap.Int("bytes", len(message)))
			continue
		}

		for i := range msgs {
			msg := &msgs[i]
			MessagesReceivedTotal.WithLabelValues(msg.EventType).Inc()

			select {
			case m.messageChan <- msg:
			default:
				m.logger.Warn("market-ws-channel-full", zap.String("event-type", msg.EventType))
				MessagesDroppedTotal.Inc()
			}
		}
	}
}

// pingLoop sends the venue's application-level text PING every interval.
func (m *Manager) pingLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			if !m.connected.Load() {
				continue
			}

			m.mu.RLock()
			conn := m.conn
			m.mu.RUnlock()
			if conn == nil {
				continue
			}

			err := conn.WriteMessage(websocket.TextMessage, []byte("PING"))
			if err != nil {
				m.logger.Warn("market-ws-ping-error", zap.Error(err))
			}
		}
	}
}

func (m *Manager) reconnectLoop() {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			return
		default:
		}

		if m.connected.Load() {
			time.Sleep(time.Second)
			continue
		}

		m.logger.Warn("market-ws-connection-lost")

		err := m.reconnectMgr.Reconnect(m.ctx, m.connect)
		if err != nil {
			if err == context.Canceled {
				return
			}
			m.logger.Error("market-ws-reconnect-failed", zap.Error(err))
			continue
		}

		err = m.resubscribeAll()
		if err != nil {
			m.logger.Error("market-ws-resubscribe-failed", zap.Error(err))
			m.connected.Store(false)
			continue
		}

		m.wg.Add(1)
		go m.readLoop()
	}
}

func (m *Manager) resubscribeAll() error {
	m.mu.RLock()
	tokenIDs := make([]string, 0, len(m.refs))
	for id := range m.refs {
		tokenIDs = append(tokenIDs, id)
	}
	conn := m.conn
	m.mu.RUnlock()

	if len(tokenIDs) == 0 {
		return nil
	}

	msg := map[string]interface{}{"assets_ids": tokenIDs, "type": "market"}
	err := conn.WriteJSON(msg)
	if err != nil {
		return fmt.Errorf("write resubscribe message: %w", err)
	}

	m.logger.Info("market-ws-resubscribed", zap.Int("count", len(tokenIDs)))
	return nil
}

func (m *Manager) notifyState(up bool) {
	select {
	case m.stateChan <- up:
	default:
	}
}

// MessageChan returns the stream of market messages.
func (m *Manager) MessageChan() <-chan *types.MarketMessage {
	return m.messageChan
}

// StateChan reports connection up/down transitions. Consumers must treat a
// false as "mark all cached books stale until a fresh snapshot arrives".
func (m *Manager) StateChan() <-chan bool {
	return m.stateChan
}

// Connected reports whether the stream is currently up.
func (m *Manager) Connected() bool {
	return m.connected.Load()
}

// Close tears down the connection and all loops.
func (m *Manager) Close() error {
	m.logger.Info("market-ws-closing")
	m.cancel()

	m.mu.RLock()
	if m.conn != nil {
		m.conn.Close()
	}
	m.mu.RUnlock()

	m.wg.Wait()
	close(m.messageChan)
	ActiveConnections.Set(0)

	return nil
}
