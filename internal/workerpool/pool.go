package workerpool

import (
	"context"
	"strings"
	"sync"

	"github.com/teranos/agora/internal/logging"
	"github.com/teranos/agora/internal/model"
)

// MessageSource is the subset of RemoteHandler the pool depends on; a
// narrow interface here keeps this package free of any import on
// internal/remote and lets tests substitute an in-memory fake.
type MessageSource interface {
	RecvMessage() (model.Message, bool)
	SendMessage(topic, payload string) error
}

// Dispatcher receives one parsed Route per dequeued message. The
// Application Manager implements this, looking up or creating the
// target Application Handler and invoking the method for route.Kind.
type Dispatcher interface {
	Dispatch(ctx context.Context, route Route)
}

// Config is the Worker Pool's configuration, grounded on the teacher's
// WorkerPoolConfig shape (workers count, graceful shutdown), trimmed to
// what an in-memory pool needs — there is no DB-backed job queue here,
// so polling interval and budget/rate-limit knobs do not apply.
type Config struct {
	Workers int
}

// DefaultConfig mirrors the CLI's --num-threads default of 3 (§6).
func DefaultConfig() Config {
	return Config{Workers: 3}
}

// Pool is the Worker Pool of §4.4: a fixed number of goroutines each
// draining the same MessageSource, parsing topics via ParseTopic and
// handing routes to a Dispatcher.
type Pool struct {
	source     MessageSource
	dispatcher Dispatcher
	log        *logging.Logger

	workerID string // this process's identity on the margot/system/<id> channel

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs a Pool. workerID identifies this process on the
// internal shutdown-broadcast channel.
func New(source MessageSource, dispatcher Dispatcher, workerID string, log *logging.Logger) *Pool {
	return &Pool{
		source:     source,
		dispatcher: dispatcher,
		workerID:   workerID,
		log:        log.Named("workerpool"),
	}
}

// Start launches cfg.Workers goroutines, each looping RecvMessage →
// ParseTopic → Dispatch until the source is closed or Stop is called.
func (p *Pool) Start(ctx context.Context, cfg Config) {
	p.ctx, p.cancel = context.WithCancel(ctx)

	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultConfig().Workers
	}

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	for {
		msg, ok := p.source.RecvMessage()
		if !ok {
			return
		}

		route := ParseTopic(msg)

		if route.Kind == KindSystem {
			if p.handleSystem(route) {
				return
			}
			continue
		}

		if route.Kind == KindError {
			p.log.Warnw("dropped malformed or sanitized message", "payload", route.Payload)
			p.dispatcher.Dispatch(p.ctx, route)
			continue
		}

		p.dispatcher.Dispatch(p.ctx, route)
	}
}

// handleSystem implements §4.4's shutdown chain: every worker that
// observes a "shutdown" payload, whether from an operator or from
// another worker's rebroadcast, rebroadcasts it once on
// margot/system/<workerID>, starts Stop and exits, so each exiting
// worker hands the shutdown on to the next one still receiving. The
// last rebroadcast is left for whoever else is subscribed. "test" is
// acknowledged on the reply topic and otherwise ignored.
func (p *Pool) handleSystem(route Route) (shutdown bool) {
	command, _, _ := strings.Cut(route.Payload, "@")

	switch command {
	case "shutdown":
		if err := p.source.SendMessage("margot/system/"+p.workerID, route.Payload); err != nil {
			p.log.Warnw("failed to rebroadcast shutdown", "error", err)
		}
		p.log.Infow("shutdown received, stopping pool", "from", route.ClientID)
		go p.Stop()
		return true
	case "test":
		if err := p.source.SendMessage("margot/"+p.workerID+"/test", route.Payload); err != nil {
			p.log.Warnw("failed to send test reply", "error", err)
		}
		return false
	default:
		p.log.Warnw("unrecognized system command", "command", command)
		return false
	}
}

// Stop cancels the pool context and waits for every worker to exit.
// Workers exit as soon as RecvMessage returns false (the Remote
// Handler's disconnect/shutdown path) or a shutdown system message was
// observed; Stop itself does not forcibly unblock a RecvMessage call —
// that is the Remote Handler's responsibility.
func (p *Pool) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}
