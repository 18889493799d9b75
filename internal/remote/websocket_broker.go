package remote

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teranos/agora/internal/errors"
	"github.com/teranos/agora/internal/logging"
)

// KeepaliveConfig mirrors the teacher's plugin/grpc KeepaliveConfig: a
// WebSocket connection has no built-in MQTT keep-alive, so the broker
// binding runs its own ping/pong loop with exponential-backoff
// reconnect, grounded on the teacher's KeepaliveHandler.
type KeepaliveConfig struct {
	PingInterval      time.Duration
	PongTimeout       time.Duration
	ReconnectAttempts int
	ReconnectBaseWait time.Duration
}

// DefaultKeepaliveConfig matches the spec's 30s broker keep-alive (§5).
func DefaultKeepaliveConfig() KeepaliveConfig {
	return KeepaliveConfig{
		PingInterval:      30 * time.Second,
		PongTimeout:       60 * time.Second,
		ReconnectAttempts: 5,
		ReconnectBaseWait: time.Second,
	}
}

// WebSocketBroker is the Broker binding used when --mqtt-implementation
// is "paho" but no MQTT client library is available in the reference
// corpus (see SPEC_FULL.md §4.3): it speaks to a broker-side relay over
// a persistent gorilla/websocket connection, preserving the same
// contract a real MQTT client would: single-writer publish, a read
// goroutine whose only job is sanitize-and-enqueue, keepalive ping/pong,
// and an explicit last-will publish on graceful disconnect.
type WebSocketBroker struct {
	url      string
	clientID string
	keepalive KeepaliveConfig
	log      *logging.Logger

	mu   sync.Mutex // serializes writes; the underlying library is not documented safe for concurrent WriteMessage
	conn *websocket.Conn

	lastWillTopic   string
	lastWillPayload string
	lastWillQoS     int

	subsMu sync.Mutex
	subs   map[string]struct{} // durable subscription set, re-applied on reconnect

	onMessage    func(topic, payload string)
	onDisconnect func()

	cancel context.CancelFunc
	done   chan struct{}
}

// NewWebSocketBroker constructs a broker bound to brokerURL with the
// given client id. Dial happens in Connect.
func NewWebSocketBroker(brokerURL, clientID string, keepalive KeepaliveConfig, log *logging.Logger) *WebSocketBroker {
	return &WebSocketBroker{
		url:       brokerURL,
		clientID:  clientID,
		keepalive: keepalive,
		log:       log,
		subs:      make(map[string]struct{}),
	}
}

func (b *WebSocketBroker) ClientID() string { return b.clientID }

func (b *WebSocketBroker) RegisterLastWill(topic, payload string, qos int) {
	b.lastWillTopic, b.lastWillPayload, b.lastWillQoS = topic, payload, qos
}

// Connect dials the broker and starts the read and keepalive loops. The
// read loop reconnects with exponential backoff on failure; each
// successful reconnect replays the durable subscription set.
func (b *WebSocketBroker) Connect(ctx context.Context, onMessage func(topic, payload string), onDisconnect func()) error {
	b.onMessage = onMessage
	b.onDisconnect = onDisconnect

	ctx, b.cancel = context.WithCancel(ctx)
	b.done = make(chan struct{})

	if err := b.dial(); err != nil {
		return errors.Wrapf(err, "failed to connect to broker %s", b.url)
	}

	go b.readLoop(ctx)
	go b.keepaliveLoop(ctx)

	return nil
}

func (b *WebSocketBroker) dial() error {
	u, err := url.Parse(b.url)
	if err != nil {
		return errors.Wrapf(err, "invalid broker url %q", b.url)
	}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return err
	}

	b.mu.Lock()
	b.conn = conn
	b.mu.Unlock()

	return nil
}

func (b *WebSocketBroker) resubscribeAll() {
	b.subsMu.Lock()
	topics := make([]string, 0, len(b.subs))
	for t := range b.subs {
		topics = append(topics, t)
	}
	b.subsMu.Unlock()

	for _, t := range topics {
		if err := b.writeControl("subscribe", t); err != nil {
			b.log.Warnw("failed to resubscribe after reconnect", "topic", t, "error", err)
		}
	}
}

// readLoop owns the connection's read side. Its only job, per §9's
// "callback does nothing but sanitize + enqueue" contract, is to decode
// one wire frame into (topic, payload) and hand it to onMessage — the
// RemoteHandler does the sanitizing.
func (b *WebSocketBroker) readLoop(ctx context.Context) {
	defer close(b.done)

	attempt := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		b.mu.Lock()
		conn := b.conn
		b.mu.Unlock()

		if conn == nil {
			if !b.reconnect(ctx, &attempt) {
				return
			}
			continue
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			b.log.Warnw("broker connection lost", "error", err)
			if b.onDisconnect != nil {
				b.onDisconnect()
			}
			b.mu.Lock()
			b.conn = nil
			b.mu.Unlock()
			if !b.reconnect(ctx, &attempt) {
				return
			}
			continue
		}
		attempt = 0

		topic, payload, ok := decodeFrame(data)
		if !ok {
			continue
		}
		if b.onMessage != nil {
			b.onMessage(topic, payload)
		}
	}
}

func (b *WebSocketBroker) reconnect(ctx context.Context, attempt *int) bool {
	if *attempt >= b.keepalive.ReconnectAttempts {
		b.log.Errorw("exhausted reconnect attempts, giving up", "attempts", *attempt)
		return false
	}
	wait := b.keepalive.ReconnectBaseWait * time.Duration(1<<uint(*attempt))
	*attempt++

	select {
	case <-ctx.Done():
		return false
	case <-time.After(wait):
	}

	if err := b.dial(); err != nil {
		b.log.Warnw("reconnect attempt failed", "attempt", *attempt, "error", err)
		return true // keep trying until attempts exhausted
	}
	b.log.Infow("reconnected to broker", "attempt", *attempt)
	b.resubscribeAll()
	return true
}

func (b *WebSocketBroker) keepaliveLoop(ctx context.Context) {
	ticker := time.NewTicker(b.keepalive.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.mu.Lock()
			conn := b.conn
			b.mu.Unlock()
			if conn == nil {
				continue
			}
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				b.log.Debugw("ping failed", "error", err)
			}
		}
	}
}

func (b *WebSocketBroker) Publish(topic, payload string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn == nil {
		return errors.New("broker: not connected")
	}
	return b.conn.WriteMessage(websocket.TextMessage, encodeFrame(topic, payload))
}

func (b *WebSocketBroker) Subscribe(topic string) error {
	b.subsMu.Lock()
	b.subs[topic] = struct{}{}
	b.subsMu.Unlock()
	return b.writeControl("subscribe", topic)
}

func (b *WebSocketBroker) Unsubscribe(topic string) error {
	b.subsMu.Lock()
	delete(b.subs, topic)
	b.subsMu.Unlock()
	return b.writeControl("unsubscribe", topic)
}

func (b *WebSocketBroker) writeControl(verb, topic string) error {
	return b.Publish("$control/"+verb, topic)
}

// Close publishes the last will explicitly (§4.3's "the disconnect path
// publishes the same message before tearing down") and tears the
// connection down.
func (b *WebSocketBroker) Close() error {
	if b.lastWillTopic != "" {
		if err := b.Publish(b.lastWillTopic, b.lastWillPayload); err != nil {
			b.log.Warnw("failed to publish explicit last will on disconnect", "error", err)
		}
	}
	if b.cancel != nil {
		b.cancel()
	}

	b.mu.Lock()
	conn := b.conn
	b.conn = nil
	b.mu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.Close()
}

// encodeFrame/decodeFrame use a minimal "topic\npayload" wire framing;
// a real MQTT client library would not need this since topic/payload are
// already distinct PUBLISH fields, but the websocket relay has a single
// byte-stream frame to carry both.
func encodeFrame(topic, payload string) []byte {
	return []byte(topic + "\n" + payload)
}

func decodeFrame(data []byte) (topic, payload string, ok bool) {
	for i, b := range data {
		if b == '\n' {
			return string(data[:i]), string(data[i+1:]), true
		}
	}
	return "", "", false
}
