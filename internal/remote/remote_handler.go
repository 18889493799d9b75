// Package remote implements the Remote Handler of §4.3: a sanitizing,
// durable-subscription wrapper around a pub/sub Broker, exposing a
// blocking receive queue to the Worker Pool.
package remote

import (
	"context"
	"sync"

	"github.com/teranos/agora/internal/errors"
	"github.com/teranos/agora/internal/logging"
	"github.com/teranos/agora/internal/model"
)

// RemoteHandler owns one Broker connection and the inbox every inbound
// message lands in after sanitization. It is safe for concurrent use:
// SendMessage serializes publishes, RecvMessage may be called from any
// number of worker goroutines draining the same inbox.
type RemoteHandler struct {
	broker Broker
	inbox  *inbox
	log    *logging.Logger

	sendMu sync.Mutex

	mu            sync.Mutex
	subscriptions map[string]struct{}
	connected     bool
}

// NewRemoteHandler wires broker to a fresh inbox. The broker is not
// dialed until Connect is called.
func NewRemoteHandler(broker Broker, log *logging.Logger) *RemoteHandler {
	return &RemoteHandler{
		broker:        broker,
		inbox:         newInbox(),
		log:           log.Named("remote"),
		subscriptions: make(map[string]struct{}),
	}
}

// Connect dials the broker, registers the last-will message and starts
// routing inbound publishes through the sanitizer into the inbox. A
// broker-level disconnect enqueues the synthetic disconnect message so
// RecvMessage callers observe it like any other message (§3 "ownership").
func (h *RemoteHandler) Connect(ctx context.Context, lastWillTopic, lastWillPayload string, lastWillQoS int) error {
	h.broker.RegisterLastWill(lastWillTopic, lastWillPayload, lastWillQoS)

	err := h.broker.Connect(ctx, h.onMessage, h.onDisconnect)
	if err != nil {
		return errors.Wrap(err, "remote handler: connect failed")
	}

	h.mu.Lock()
	h.connected = true
	h.mu.Unlock()

	return nil
}

func (h *RemoteHandler) onMessage(topic, payload string) {
	clean, ok := Sanitize(model.Message{Topic: topic, Payload: payload})
	if !ok {
		h.log.Warnw("dropped message failing sanitization", "topic", topic)
	}
	h.inbox.enqueue(clean)
}

func (h *RemoteHandler) onDisconnect() {
	h.mu.Lock()
	h.connected = false
	h.mu.Unlock()
	h.inbox.enqueue(model.Message{Topic: model.DisconnectTopic})
}

// SendMessage publishes one message, serialized against concurrent
// callers per §4.3.
func (h *RemoteHandler) SendMessage(topic, payload string) error {
	h.sendMu.Lock()
	defer h.sendMu.Unlock()
	if err := h.broker.Publish(topic, payload); err != nil {
		return errors.Wrapf(err, "failed to publish to %q", topic)
	}
	return nil
}

// RecvMessage blocks until a message is available or the handler is shut
// down, in which case ok is false.
func (h *RemoteHandler) RecvMessage() (model.Message, bool) {
	return h.inbox.recv()
}

// Subscribe adds topic to the durable subscription set and subscribes on
// the broker.
func (h *RemoteHandler) Subscribe(topic string) error {
	h.mu.Lock()
	h.subscriptions[topic] = struct{}{}
	h.mu.Unlock()

	if err := h.broker.Subscribe(topic); err != nil {
		return errors.Wrapf(err, "failed to subscribe to %q", topic)
	}
	return nil
}

// Unsubscribe removes topic from the durable subscription set.
func (h *RemoteHandler) Unsubscribe(topic string) error {
	h.mu.Lock()
	delete(h.subscriptions, topic)
	h.mu.Unlock()

	if err := h.broker.Unsubscribe(topic); err != nil {
		return errors.Wrapf(err, "failed to unsubscribe from %q", topic)
	}
	return nil
}

// Subscriptions returns a snapshot of the durable subscription set.
func (h *RemoteHandler) Subscriptions() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	topics := make([]string, 0, len(h.subscriptions))
	for t := range h.subscriptions {
		topics = append(topics, t)
	}
	return topics
}

// Disconnect closes the broker connection (publishing the last will) and
// unblocks every RecvMessage waiter.
func (h *RemoteHandler) Disconnect() error {
	err := h.broker.Close()
	h.inbox.stop()
	if err != nil {
		return errors.Wrap(err, "remote handler: disconnect failed")
	}
	return nil
}

// MyClientID returns the broker-assigned client identifier.
func (h *RemoteHandler) MyClientID() string {
	return h.broker.ClientID()
}

// Connected reports whether the last Connect/onDisconnect transition left
// the handler believing it has a live broker connection.
func (h *RemoteHandler) Connected() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.connected
}
