package workerpool

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/agora/internal/logging"
	"github.com/teranos/agora/internal/model"
)

// fakeSource is an in-memory MessageSource double.
type fakeSource struct {
	mu        sync.Mutex
	messages  chan model.Message
	published []model.Message
}

func newFakeSource(buf int) *fakeSource {
	return &fakeSource{messages: make(chan model.Message, buf)}
}

func (f *fakeSource) RecvMessage() (model.Message, bool) {
	m, ok := <-f.messages
	return m, ok
}

func (f *fakeSource) SendMessage(topic, payload string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, model.Message{Topic: topic, Payload: payload})
	return nil
}

func (f *fakeSource) push(m model.Message) { f.messages <- m }
func (f *fakeSource) close()               { close(f.messages) }

// fakeDispatcher records every Route it receives.
type fakeDispatcher struct {
	mu     sync.Mutex
	routes []Route
	seen   chan struct{}
}

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{seen: make(chan struct{}, 64)}
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, route Route) {
	f.mu.Lock()
	f.routes = append(f.routes, route)
	f.mu.Unlock()
	f.seen <- struct{}{}
}

func (f *fakeDispatcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.routes)
}

func TestPool_DispatchesParsedRoutes(t *testing.T) {
	src := newFakeSource(8)
	disp := newFakeDispatcher()
	p := New(src, disp, "worker-1", logging.NewNop())
	p.Start(context.Background(), Config{Workers: 2})

	src.push(model.Message{Topic: "margot/app^b^1/observation/client-1", Payload: "1@0@@k=v@lat=1"})
	src.push(model.Message{Topic: "margot/app^b^1/welcome/client-1"})

	for i := 0; i < 2; i++ {
		select {
		case <-disp.seen:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for dispatch")
		}
	}

	assert.Equal(t, 2, disp.count())
	src.close()
	p.Stop()
}

func TestPool_ShutdownRebroadcastsAndStops(t *testing.T) {
	src := newFakeSource(8)
	disp := newFakeDispatcher()
	p := New(src, disp, "worker-1", logging.NewNop())
	p.Start(context.Background(), Config{Workers: 1})

	src.push(model.Message{Topic: "margot/system/operator-1", Payload: "shutdown"})

	require.Eventually(t, func() bool {
		src.mu.Lock()
		defer src.mu.Unlock()
		return len(src.published) == 1
	}, 2*time.Second, 10*time.Millisecond)

	src.mu.Lock()
	assert.Equal(t, "margot/system/worker-1", src.published[0].Topic)
	src.mu.Unlock()

	src.close()
}

func TestPool_TestCommandRepliesOnOwnTopic(t *testing.T) {
	src := newFakeSource(8)
	disp := newFakeDispatcher()
	p := New(src, disp, "worker-1", logging.NewNop())
	p.Start(context.Background(), Config{Workers: 1})

	src.push(model.Message{Topic: "margot/system/peer-2", Payload: "test@ping"})

	require.Eventually(t, func() bool {
		src.mu.Lock()
		defer src.mu.Unlock()
		return len(src.published) == 1
	}, 2*time.Second, 10*time.Millisecond)

	src.mu.Lock()
	assert.Equal(t, "margot/worker-1/test", src.published[0].Topic)
	src.mu.Unlock()

	src.close()
	p.Stop()
}
