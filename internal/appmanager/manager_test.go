package appmanager

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/agora/internal/apphandler"
	"github.com/teranos/agora/internal/appid"
	"github.com/teranos/agora/internal/logging"
	"github.com/teranos/agora/internal/storage"
	"github.com/teranos/agora/internal/workerpool"
)

type fakeSender struct {
	mu    sync.Mutex
	sent  []string
}

func (f *fakeSender) SendMessage(topic, payload string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, topic+"|"+payload)
	return nil
}

func testID(t *testing.T) appid.ID {
	t.Helper()
	id, err := appid.New("app", "block", "1.0")
	require.NoError(t, err)
	return id
}

func newManager(t *testing.T) (*Manager, *fakeSender) {
	t.Helper()
	root := t.TempDir()
	sender := &fakeSender{}
	cfg := apphandler.Config{
		WorkspaceRoot:    t.TempDir(),
		PluginRoot:       t.TempDir(),
		ModelsRoot:       t.TempDir(),
		DoEPlugin:        "doe_plugin",
		ClusterPlugin:    "cluster_plugin",
		PredictionPlugin: "prediction_plugin",
	}
	m := New(cfg, sender, func(appid.ID) *storage.Handler { return storage.NewHandler(root) }, logging.NewNop())
	return m, sender
}

func TestGetHandler_ConstructsOnceAndReuses(t *testing.T) {
	m, _ := newManager(t)
	id := testID(t)

	h1 := m.GetHandler(context.Background(), id)
	h2 := m.GetHandler(context.Background(), id)
	assert.Same(t, h1, h2)
}

func TestRemoveHandler_ForcesFreshRecoveryOnNextReference(t *testing.T) {
	m, _ := newManager(t)
	id := testID(t)

	h1 := m.GetHandler(context.Background(), id)
	m.RemoveHandler(id)
	h2 := m.GetHandler(context.Background(), id)

	assert.NotSame(t, h1, h2)
}

func TestEvictIdle_EvictsAtRestHandlers(t *testing.T) {
	m, _ := newManager(t)

	ids := make([]appid.ID, 0, 3)
	for i := 0; i < 3; i++ {
		id, err := appid.New("app", "block", string(rune('1'+i)))
		require.NoError(t, err)
		ids = append(ids, id)
		m.GetHandler(context.Background(), id)
	}

	evicted := m.EvictIdle(1)
	assert.GreaterOrEqual(t, evicted, 1)

	m.mu.Lock()
	remaining := len(m.handlers)
	m.mu.Unlock()
	assert.LessOrEqual(t, remaining, 3)
}

func TestDispatch_WelcomeRoutesToHandler(t *testing.T) {
	m, sender := newManager(t)
	id := testID(t)

	route := workerpool.Route{
		Kind:     workerpool.KindWelcome,
		AppID:    id,
		ClientID: "client-1",
		Payload:  "knob=threads,int,1;2;4@metric=latency,float,false,0.1,latency_model",
	}
	m.Dispatch(context.Background(), route)

	sender.mu.Lock()
	defer sender.mu.Unlock()
	assert.NotEmpty(t, sender.sent, "bootstrap should have tried to launch the doe plugin and, failing, aborted the client")
}

func TestDispatch_ErrorRouteIsDroppedNotPanicked(t *testing.T) {
	m, _ := newManager(t)
	assert.NotPanics(t, func() {
		m.Dispatch(context.Background(), workerpool.Route{Kind: workerpool.KindError, Payload: ""})
	})
}
