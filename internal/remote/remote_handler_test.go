package remote

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/agora/internal/logging"
)

// fakeBroker is an in-memory Broker double so RemoteHandler tests never
// touch a real socket.
type fakeBroker struct {
	mu sync.Mutex

	clientID     string
	published    []fakeMessage
	subscribed   map[string]int
	lastWillTop  string
	lastWillPay  string
	closeErr     error
	onMessage    func(topic, payload string)
	onDisconnect func()
	closed       bool
}

type fakeMessage struct{ Topic, Payload string }

func newFakeBroker(clientID string) *fakeBroker {
	return &fakeBroker{clientID: clientID, subscribed: make(map[string]int)}
}

func (f *fakeBroker) Connect(ctx context.Context, onMessage func(topic, payload string), onDisconnect func()) error {
	f.onMessage = onMessage
	f.onDisconnect = onDisconnect
	return nil
}

func (f *fakeBroker) Publish(topic, payload string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, fakeMessage{topic, payload})
	return nil
}

func (f *fakeBroker) Subscribe(topic string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribed[topic]++
	return nil
}

func (f *fakeBroker) Unsubscribe(topic string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subscribed, topic)
	return nil
}

func (f *fakeBroker) RegisterLastWill(topic, payload string, qos int) {
	f.lastWillTop, f.lastWillPay = topic, payload
}

func (f *fakeBroker) Close() error {
	f.closed = true
	if f.lastWillTop != "" {
		_ = f.Publish(f.lastWillTop, f.lastWillPay)
	}
	return f.closeErr
}

func (f *fakeBroker) ClientID() string { return f.clientID }

// deliver simulates an inbound publish arriving from the broker.
func (f *fakeBroker) deliver(topic, payload string) {
	f.onMessage(topic, payload)
}

func (f *fakeBroker) simulateDisconnect() {
	f.onDisconnect()
}

func TestRemoteHandler_SendMessagePublishesVerbatim(t *testing.T) {
	fb := newFakeBroker("client-1")
	h := NewRemoteHandler(fb, logging.NewNop())
	require.NoError(t, h.Connect(context.Background(), "margot/will", "", 2))

	require.NoError(t, h.SendMessage("margot/app/block/1/observation/client-1", "foo=bar"))

	require.Len(t, fb.published, 1)
	assert.Equal(t, "margot/app/block/1/observation/client-1", fb.published[0].Topic)
}

func TestRemoteHandler_OnMessageSanitizesBeforeEnqueue(t *testing.T) {
	fb := newFakeBroker("client-1")
	h := NewRemoteHandler(fb, logging.NewNop())
	require.NoError(t, h.Connect(context.Background(), "margot/will", "", 2))

	fb.deliver("margot/app/block/1/info/client_1", "ok")
	msg, ok := h.RecvMessage()
	require.True(t, ok)
	assert.Equal(t, "ok", msg.Payload)

	fb.deliver("margot/app/block/1/info/client_1", "bad payload with # forbidden char")
	msg, ok = h.RecvMessage()
	require.True(t, ok)
	assert.True(t, msg.IsError())
}

func TestRemoteHandler_DisconnectEnqueuesSentinelAndUnblocks(t *testing.T) {
	fb := newFakeBroker("client-1")
	h := NewRemoteHandler(fb, logging.NewNop())
	require.NoError(t, h.Connect(context.Background(), "margot/will", "", 2))

	fb.simulateDisconnect()
	msg, ok := h.RecvMessage()
	require.True(t, ok)
	assert.True(t, msg.IsDisconnect())
	assert.False(t, h.Connected())
}

func TestRemoteHandler_SubscribeUnsubscribeTracksDurableSet(t *testing.T) {
	fb := newFakeBroker("client-1")
	h := NewRemoteHandler(fb, logging.NewNop())
	require.NoError(t, h.Connect(context.Background(), "margot/will", "", 2))

	require.NoError(t, h.Subscribe("margot/app/block/1/+/+"))
	assert.Contains(t, h.Subscriptions(), "margot/app/block/1/+/+")

	require.NoError(t, h.Unsubscribe("margot/app/block/1/+/+"))
	assert.NotContains(t, h.Subscriptions(), "margot/app/block/1/+/+")
}

func TestRemoteHandler_DisconnectPublishesLastWillAndClosesInbox(t *testing.T) {
	fb := newFakeBroker("client-1")
	h := NewRemoteHandler(fb, logging.NewNop())
	require.NoError(t, h.Connect(context.Background(), "margot/will", "gone", 2))

	require.NoError(t, h.Disconnect())
	require.Len(t, fb.published, 1)
	assert.Equal(t, "margot/will", fb.published[0].Topic)
	assert.Equal(t, "gone", fb.published[0].Payload)

	_, ok := h.RecvMessage()
	assert.False(t, ok)
}

func TestRemoteHandler_MyClientID(t *testing.T) {
	fb := newFakeBroker("client-42")
	h := NewRemoteHandler(fb, logging.NewNop())
	assert.Equal(t, "client-42", h.MyClientID())
}
