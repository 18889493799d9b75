// Package appmanager implements the Application Manager of §4.1: the
// single registry that owns every Application Handler, creating one on
// first reference, recovering it from storage, and routing dispatched
// messages to it. It implements workerpool.Dispatcher so the Worker
// Pool can hand it parsed routes directly.
package appmanager

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/teranos/agora/internal/apphandler"
	"github.com/teranos/agora/internal/appid"
	"github.com/teranos/agora/internal/logging"
	"github.com/teranos/agora/internal/storage"
	"github.com/teranos/agora/internal/workerpool"
)

// idleCacheSize bounds the recency cache used by EvictIdle; it is sized
// generously since the cache only tracks candidates for eviction, not a
// hard cap on live handlers.
const idleCacheSize = 4096

// Manager is the Application Manager. One instance per process, shared
// by every worker goroutine; GetHandler takes the registry lock only
// long enough to look up or insert, never while a handler's own
// app_mutex is held.
type Manager struct {
	cfg    apphandler.Config
	remote apphandler.Sender
	store  func(appid.ID) *storage.Handler
	log    *logging.Logger

	mu       sync.Mutex
	handlers map[string]*apphandler.Handler

	idle *lru.Cache[string, struct{}]
}

// New constructs a Manager. storageFor builds (or reuses) the Filesystem
// Handler rooted at the directory for id — the Manager does not assume
// a single shared root, matching the per-application sub-directory
// layout of §4.5.
func New(cfg apphandler.Config, remote apphandler.Sender, storageFor func(appid.ID) *storage.Handler, log *logging.Logger) *Manager {
	idle, _ := lru.New[string, struct{}](idleCacheSize)
	return &Manager{
		cfg:      cfg,
		remote:   remote,
		store:    storageFor,
		log:      log.Named("appmanager"),
		handlers: make(map[string]*apphandler.Handler),
		idle:     idle,
	}
}

// GetHandler returns the Handler for id, constructing and kicking off
// recovery on first reference (the Manager's "first reference after
// restart triggers RECOVERING" contract).
func (m *Manager) GetHandler(ctx context.Context, id appid.ID) *apphandler.Handler {
	key := id.String()

	m.mu.Lock()
	h, ok := m.handlers[key]
	if !ok {
		h = apphandler.New(id, m.cfg, m.store(id), m.remote, m.log)
		m.handlers[key] = h
	}
	m.idle.Add(key, struct{}{})
	m.mu.Unlock()

	if !ok {
		h.Recover(ctx)
	}
	return h
}

// RemoveHandler drops id from the registry without touching its
// persisted state; the next GetHandler reconstructs it and recovers
// from storage as if the process had just restarted.
func (m *Manager) RemoveHandler(id appid.ID) {
	key := id.String()
	m.mu.Lock()
	delete(m.handlers, key)
	m.idle.Remove(key)
	m.mu.Unlock()
}

// EvictIdle drops every handler currently at rest (not mid-build) from
// the registry, oldest-referenced first, keeping at most keep handlers
// resident. It never evicts a handler with a BUILDING_* bit set, since
// dropping it would abandon an in-flight plugin launch with nothing
// left to observe its completion. This is operator-triggered, not
// automatic — nothing in the Manager calls it on its own.
func (m *Manager) EvictIdle(keep int) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := m.idle.Keys()
	evicted := 0
	for _, key := range keys {
		if len(m.handlers)-evicted <= keep {
			break
		}
		h, ok := m.handlers[key]
		if !ok {
			m.idle.Remove(key)
			continue
		}
		status := h.Status()
		if status.String() == "NONE" {
			continue
		}
		if hasBuildingBit(status) {
			continue
		}
		delete(m.handlers, key)
		m.idle.Remove(key)
		evicted++
	}
	return evicted
}

// Dispatch implements workerpool.Dispatcher: look up (or create) the
// target handler and invoke the method matching route.Kind. KindSystem
// never reaches here (the pool handles it internally); KindError is
// logged and dropped.
func (m *Manager) Dispatch(ctx context.Context, route workerpool.Route) {
	switch route.Kind {
	case workerpool.KindError:
		m.log.Warnw("dropping unroutable message", "payload", route.Payload)
		return
	case workerpool.KindWelcome:
		m.GetHandler(ctx, route.AppID).WelcomeClient(ctx, route.ClientID, route.Payload)
	case workerpool.KindInfo:
		m.GetHandler(ctx, route.AppID).ProcessInfo(ctx, route.ClientID, route.Payload)
	case workerpool.KindObservation:
		m.GetHandler(ctx, route.AppID).ProcessObservation(ctx, route.ClientID, route.Payload)
	case workerpool.KindKia:
		m.GetHandler(ctx, route.AppID).ByeClient(route.ClientID)
	default:
		m.log.Warnw("unhandled route kind", "kind", route.Kind.String())
	}
}
