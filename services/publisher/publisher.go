// Package publisher ships domain events to RabbitMQ. Events handed to Publish
// are queued and encoded by whichever worker picks them up; the routing key
// is derived from the event type.
//
// A publisher is single use. Once it has been stopped (directly or via the
// external shutdown context) it must be discarded and re-created.
package publisher

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/streamdal/rabbit"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dselans/blastbeat-albums/clog"
	"github.com/dselans/blastbeat-albums/events"
	"github.com/dselans/blastbeat-albums/services/state"
	"github.com/dselans/blastbeat-albums/validate"
)

const (
	DefaultNumWorkers = 10
	QueueSize         = 1000
	StopTimeout       = 5 * time.Second

	DefaultAlbumsImportedRoutingKey = "albums.imported"
)

// StartupWait is how long Start() watches the workers for an early exit.
var StartupWait = 5 * time.Second

var (
	ErrNotRunning     = errors.New("publisher is not running")
	ErrAlreadyStarted = errors.New("publisher was already started")
	ErrShuttingDown   = errors.New("publisher is shutting down")
)

const (
	stateIdle int32 = iota
	stateRunning
	stateStopped
)

type IPublisher interface {
	Start() error
	Stop() error

	// Publish queues an event for delivery. The event is validated here and
	// encoded by a worker.
	Publish(ctx context.Context, event *events.Event) error

	// PublishAlbumsImported announces a finished bookmarks import.
	PublishAlbumsImported(ctx context.Context, imp *state.Import) error
}

type Options struct {
	RabbitBackend rabbit.IRabbit
	NumWorkers    int

	AlbumsImportedRoutingKey string

	// Cancelled by main() when the service is going down
	ExternalShutdownCtx context.Context

	// Signalled once every worker has exited after an external shutdown
	ExternalShutdownDoneCh chan<- struct{}

	NewRelic *newrelic.Application
	Log      clog.ICustomLog
}

type Publisher struct {
	state  atomic.Int32
	queue  chan *outbound
	routes map[string]string

	workers   *errgroup.Group
	workerCtx context.Context
	cancel    context.CancelFunc

	opts *Options
	log  clog.ICustomLog
}

type outbound struct {
	event      *events.Event
	routingKey string
}

func New(opts *Options) (*Publisher, error) {
	if err := validateOptions(opts); err != nil {
		return nil, errors.Wrap(err, "failed to validate options")
	}

	p := newPublisher(opts)

	go p.watchShutdown()

	return p, nil
}

func newPublisher(opts *Options) *Publisher {
	ctx, cancel := context.WithCancel(opts.ExternalShutdownCtx)
	workers, workerCtx := errgroup.WithContext(ctx)

	return &Publisher{
		queue: make(chan *outbound, QueueSize),
		routes: map[string]string{
			events.TypeAlbumsImported: opts.AlbumsImportedRoutingKey,
		},
		workers:   workers,
		workerCtx: workerCtx,
		cancel:    cancel,
		opts:      opts,
		log:       opts.Log.With(zap.String("pkg", "publisher")),
	}
}

func validateOptions(opts *Options) error {
	if opts == nil {
		return errors.New("options cannot be nil")
	}

	if opts.RabbitBackend == nil {
		return errors.New("rabbit backend cannot be nil")
	}

	if opts.Log == nil {
		return errors.New("log cannot be nil")
	}

	if opts.ExternalShutdownCtx == nil {
		return errors.New("external shutdown context cannot be nil")
	}

	if opts.ExternalShutdownDoneCh == nil {
		return errors.New("external shutdown done channel cannot be nil")
	}

	if opts.NumWorkers <= 0 {
		opts.NumWorkers = DefaultNumWorkers
	}

	if opts.AlbumsImportedRoutingKey == "" {
		opts.AlbumsImportedRoutingKey = DefaultAlbumsImportedRoutingKey
	}

	return nil
}

// routingKey returns the configured key for an event type, or the type
// itself when none is configured.
func (p *Publisher) routingKey(eventType string) string {
	if key, ok := p.routes[eventType]; ok && key != "" {
		return key
	}

	return eventType
}

func (p *Publisher) Publish(ctx context.Context, event *events.Event) error {
	if p.state.Load() != stateRunning {
		return ErrNotRunning
	}

	if err := validate.Event(event); err != nil {
		return errors.Wrap(err, "refusing to publish invalid event")
	}

	segment := newrelic.FromContext(ctx).StartSegment("publisher_enqueue")
	defer segment.End()

	msg := &outbound{event: event, routingKey: p.routingKey(event.Type)}

	select {
	case p.queue <- msg:
		return nil
	case <-p.workerCtx.Done():
		return ErrShuttingDown
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "publish aborted")
	}
}

// Start launches the worker pool. It returns an error if the pool goes down
// within StartupWait.
func (p *Publisher) Start() error {
	if !p.state.CompareAndSwap(stateIdle, stateRunning) {
		return ErrAlreadyStarted
	}

	for i := 0; i < p.opts.NumWorkers; i++ {
		id := i

		p.workers.Go(func() error {
			return p.work(id)
		})
	}

	exited := make(chan error, 1)

	go func() {
		exited <- p.workers.Wait()
	}()

	select {
	case <-time.After(StartupWait):
		return nil
	case err := <-exited:
		p.state.Store(stateStopped)

		if err == nil {
			err = ErrShuttingDown
		}

		return errors.Wrap(err, "publisher workers exited during startup")
	}
}

func (p *Publisher) work(id int) error {
	llog := p.log.With(zap.String("method", "work"), zap.Int("worker", id))
	llog.Debug("worker start")
	defer llog.Debug("worker exit")

	for {
		select {
		case <-p.workerCtx.Done():
			return nil
		case msg := <-p.queue:
			p.deliver(msg, llog)
		}
	}
}

func (p *Publisher) deliver(msg *outbound, llog clog.ICustomLog) {
	txn := p.opts.NewRelic.StartTransaction("publish_rabbit")
	defer txn.End()

	txn.AddAttribute("routingKey", msg.routingKey)
	txn.AddAttribute("eventType", msg.event.Type)

	data, err := msg.event.Marshal()
	if err != nil {
		llog.Error("unable to encode event", zap.String("type", msg.event.Type), zap.Error(err))
		txn.NoticeError(errors.Wrap(err, "unable to encode event"))

		return
	}

	if err := p.opts.RabbitBackend.Publish(p.workerCtx, msg.routingKey, data); err != nil {
		llog.Error("failed to publish event",
			zap.String("routingKey", msg.routingKey),
			zap.String("eventID", msg.event.ID),
			zap.Error(err))
		txn.NoticeError(errors.Wrap(err, "failed to publish event"))
	}
}

// Stop cancels the workers and waits up to StopTimeout for them to exit.
// Events still queued are dropped.
func (p *Publisher) Stop() error {
	if !p.state.CompareAndSwap(stateRunning, stateStopped) {
		return ErrNotRunning
	}

	p.cancel()

	exited := make(chan error, 1)

	go func() {
		exited <- p.workers.Wait()
	}()

	select {
	case <-time.After(StopTimeout):
		return errors.Errorf("timed out after %s waiting for publisher workers", StopTimeout)
	case err := <-exited:
		return err
	}
}

func (p *Publisher) watchShutdown() {
	<-p.opts.ExternalShutdownCtx.Done()

	if err := p.Stop(); err != nil && !errors.Is(err, ErrNotRunning) {
		p.log.Error("failed to stop publisher", zap.String("method", "watchShutdown"), zap.Error(err))
	}

	_ = p.workers.Wait()

	p.opts.ExternalShutdownDoneCh <- struct{}{}
}
