package remote

import (
	"sync"

	"github.com/teranos/agora/internal/model"
)

// inbox is the bounded MPMC queue of §4.3. The source's mutex + condition
// variable queue is expressed here as a buffered channel: closing it
// wakes every blocked receiver at once, exactly like the source's
// termination signal, which is the idiomatic Go substitute for a
// broadcast condvar wakeup.
type inbox struct {
	messages chan model.Message
	closeOnce sync.Once
}

// inboxCapacity is generous enough that the receive callback never
// blocks on a live connection; it is not meant to bound
// memory, matching §4.3's "effectively unbounded in practice".
const inboxCapacity = 4096

func newInbox() *inbox {
	return &inbox{messages: make(chan model.Message, inboxCapacity)}
}

// enqueue adds a message, used by the receive callback and by
// onDisconnect to post the synthetic disconnect message.
func (b *inbox) enqueue(m model.Message) {
	defer func() { recover() }() // swallow send-on-closed-channel during shutdown races
	b.messages <- m
}

// recv blocks until a message is available or the inbox is closed,
// mirroring RemoteHandler.recv_message's bool return.
func (b *inbox) recv() (model.Message, bool) {
	m, ok := <-b.messages
	return m, ok
}

// stop closes the channel, unblocking every waiter exactly once.
func (b *inbox) stop() {
	b.closeOnce.Do(func() { close(b.messages) })
}
