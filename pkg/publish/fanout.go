package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eipdev/eipdev-go/pkg/log"
)

// DefaultQueueSize is the number of events buffered by a Fanout.
const DefaultQueueSize = 256

// Publisher sends messages to one broker.
type Publisher interface {
	Name() string
	Start(ctx context.Context) error
	Publish(ctx context.Context, msg Message) error
	Stop() error
}

// FanoutConfig configures a Fanout.
type FanoutConfig struct {
	// QueueSize bounds the event queue. Defaults to DefaultQueueSize.
	QueueSize int

	// Categories limits forwarding to these categories. Empty forwards all.
	Categories []log.Category

	// PublishTimeout bounds each Publish call. Defaults to 2s.
	PublishTimeout time.Duration

	// Logger for publish failures (optional).
	Logger *slog.Logger
}

// Fanout queues trace events and publishes them to every publisher.
type Fanout struct {
	config     FanoutConfig
	publishers []Publisher
	categories map[log.Category]bool
	logger     *slog.Logger

	queue chan Message
	stop  chan struct{}
	wg    sync.WaitGroup
	once  sync.Once

	sent    atomic.Uint64
	dropped atomic.Uint64
	failed  atomic.Uint64
}

// NewFanout creates a fanout over publishers. Call Start before logging.
func NewFanout(config FanoutConfig, publishers ...Publisher) *Fanout {
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultQueueSize
	}
	if config.PublishTimeout <= 0 {
		config.PublishTimeout = 2 * time.Second
	}
	f := &Fanout{
		config:     config,
		publishers: publishers,
		logger:     config.Logger,
		queue:      make(chan Message, config.QueueSize),
		stop:       make(chan struct{}),
	}
	if len(config.Categories) > 0 {
		f.categories = make(map[log.Category]bool, len(config.Categories))
		for _, c := range config.Categories {
			f.categories[c] = true
		}
	}
	return f
}

// Len returns the number of publishers.
func (f *Fanout) Len() int {
	return len(f.publishers)
}

// Start starts every publisher and the publishing worker. Publishers that
// fail to start are stopped again and the joined errors are returned.
func (f *Fanout) Start(ctx context.Context) error {
	var errs []error
	started := f.publishers[:0:0]
	for _, p := range f.publishers {
		if err := p.Start(ctx); err != nil {
			errs = append(errs, fmt.Errorf("start %s: %w", p.Name(), err))
			continue
		}
		started = append(started, p)
	}
	if len(errs) > 0 {
		for _, p := range started {
			_ = p.Stop()
		}
		return errors.Join(errs...)
	}

	f.wg.Add(1)
	go f.worker()
	return nil
}

// Log queues event for publishing. It never blocks.
func (f *Fanout) Log(event log.Event) {
	if f.categories != nil && !f.categories[event.Category] {
		return
	}
	select {
	case f.queue <- FromEvent(event):
	default:
		f.dropped.Add(1)
	}
}

// Stats returns the number of published, dropped and failed messages.
func (f *Fanout) Stats() (sent, dropped, failed uint64) {
	return f.sent.Load(), f.dropped.Load(), f.failed.Load()
}

// Close drains the queue and stops every publisher.
func (f *Fanout) Close() error {
	var errs []error
	f.once.Do(func() {
		close(f.stop)
		f.wg.Wait()
		for _, p := range f.publishers {
			if err := p.Stop(); err != nil {
				errs = append(errs, fmt.Errorf("stop %s: %w", p.Name(), err))
			}
		}
	})
	return errors.Join(errs...)
}

func (f *Fanout) worker() {
	defer f.wg.Done()
	for {
		select {
		case msg := <-f.queue:
			f.publish(msg)
		case <-f.stop:
			for {
				select {
				case msg := <-f.queue:
					f.publish(msg)
				default:
					return
				}
			}
		}
	}
}

func (f *Fanout) publish(msg Message) {
	for _, p := range f.publishers {
		ctx, cancel := context.WithTimeout(context.Background(), f.config.PublishTimeout)
		err := p.Publish(ctx, msg)
		cancel()
		if err != nil {
			f.failed.Add(1)
			if f.logger != nil {
				f.logger.Warn("publish failed", "publisher", p.Name(), "category", msg.Category, "error", err)
			}
			continue
		}
		f.sent.Add(1)
	}
}

// Compile-time interface satisfaction check.
var _ log.Logger = (*Fanout)(nil)
