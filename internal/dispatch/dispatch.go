// Package dispatch accepts inbound webhook calls, acknowledges them at once
// and processes each message on a bounded worker pool.
//
// Messages of the same contact are processed one at a time and in arrival
// order; different contacts run in parallel. Every task ends by attempting a reply: the bot's
// answer, or a generic failure message if processing failed or panicked.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/voxbridge/internal/bot"
	"github.com/MrWong99/voxbridge/internal/media"
	"github.com/MrWong99/voxbridge/internal/messaging"
	"github.com/MrWong99/voxbridge/internal/observe"
)

// ErrQueueFull is returned by [Dispatcher.Enqueue] when no slot is free.
var ErrQueueFull = errors.New("dispatch: queue full")

// ErrStopped is returned by [Dispatcher.Enqueue] after Run has returned.
var ErrStopped = errors.New("dispatch: stopped")

const (
	defaultWorkers     = 4
	defaultQueueSize   = 256
	defaultTaskTimeout = 2 * time.Minute
	replyTimeout       = 15 * time.Second
)

// Handler processes one message. Implemented by *bot.Bot.
type Handler interface {
	HandleMessage(ctx context.Context, msg bot.Message) (*bot.Reply, error)
}

// MediaHost stores reply audio and returns its id. Implemented by
// *media.Store.
type MediaHost interface {
	Put(data []byte, contentType string) (string, error)
}

// Config tunes the dispatcher.
type Config struct {
	// Workers is the number of concurrent tasks. Default 4.
	Workers int

	// QueueSize bounds waiting tasks. Default 256.
	QueueSize int

	// TaskTimeout bounds one message's processing. Default 2m.
	TaskTimeout time.Duration

	// PublicBaseURL is this service's externally reachable URL. It prefixes
	// hosted media links and is the signed URL for webhook validation.
	PublicBaseURL string

	// AuthToken enables X-Twilio-Signature validation when non-empty and
	// ValidateSignature is set.
	AuthToken         string
	ValidateSignature bool
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = defaultWorkers
	}
	if c.QueueSize <= 0 {
		c.QueueSize = defaultQueueSize
	}
	if c.TaskTimeout <= 0 {
		c.TaskTimeout = defaultTaskTimeout
	}
	return c
}

// Task is one queued message.
type Task struct {
	Msg           bot.Message
	CorrelationID string
	Received      time.Time
}

// Option configures a [Dispatcher].
type Option func(*Dispatcher)

// WithMetrics sets the metrics sink. Default: observe.DefaultMetrics().
func WithMetrics(m *observe.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithMediaHost enables audio replies. Without it replies are text only.
func WithMediaHost(h MediaHost) Option {
	return func(d *Dispatcher) { d.media = h }
}

// Dispatcher is the inbound queue and worker pool.
//
// A router goroutine reads the intake queue in arrival order. A message for
// an idle contact is handed to a free worker; a message for a contact that
// already has one in flight joins that contact's backlog, which the same
// worker drains in order. Workers therefore never wait on a busy contact.
type Dispatcher struct {
	handler Handler
	sender  messaging.Sender
	media   MediaHost
	cfg     Config
	metrics *observe.Metrics

	queue   chan Task
	ready   chan Task
	pending atomic.Int64 // accepted and not yet started, backlogs included
	dropped atomic.Int64
	stopped atomic.Bool

	mu      sync.Mutex
	backlog map[string][]Task // keyed by busy contact
}

// New creates a Dispatcher. Call [Dispatcher.Run] to start the workers.
func New(h Handler, sender messaging.Sender, cfg Config, opts ...Option) *Dispatcher {
	cfg = cfg.withDefaults()
	d := &Dispatcher{
		handler: h,
		sender:  sender,
		cfg:     cfg,
		queue:   make(chan Task, cfg.QueueSize),
		ready:   make(chan Task),
		backlog: make(map[string][]Task),
	}
	for _, o := range opts {
		o(d)
	}
	if d.metrics == nil {
		d.metrics = observe.DefaultMetrics()
	}
	return d
}

// Enqueue submits t without blocking. QueueSize bounds every accepted task
// that has not started yet.
func (d *Dispatcher) Enqueue(ctx context.Context, t Task) error {
	if d.stopped.Load() {
		return ErrStopped
	}
	if d.pending.Add(1) > int64(d.cfg.QueueSize) {
		d.pending.Add(-1)
		return ErrQueueFull
	}
	select {
	case d.queue <- t:
		d.metrics.QueueDepth.Add(ctx, 1)
		return nil
	default:
		d.pending.Add(-1)
		return ErrQueueFull
	}
}

// Run starts the router and the workers and blocks until ctx is cancelled.
// Tasks already being processed finish under their own timeout; tasks still
// waiting are dropped and logged.
func (d *Dispatcher) Run(ctx context.Context) error {
	g := new(errgroup.Group)
	g.Go(func() error {
		d.route(ctx)
		return nil
	})
	for range d.cfg.Workers {
		g.Go(func() error {
			d.work(ctx)
			return nil
		})
	}
	err := g.Wait()
	d.stopped.Store(true)

drain:
	for {
		select {
		case <-d.queue:
			d.discard(1)
		default:
			break drain
		}
	}
	if n := d.dropped.Swap(0); n > 0 {
		observe.Logger(ctx).Warn("dispatch: dropped queued messages on shutdown", "count", n)
	}
	return err
}

func (d *Dispatcher) route(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-d.queue:
			if !d.claim(t) {
				continue
			}
			select {
			case d.ready <- t:
			case <-ctx.Done():
				d.discard(1)
				d.release(t.Msg.ContactID)
				return
			}
		}
	}
}

func (d *Dispatcher) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-d.ready:
			for ok := true; ok; t, ok = d.next(ctx, t.Msg.ContactID) {
				d.pending.Add(-1)
				d.metrics.QueueDepth.Add(ctx, -1)
				// In-flight work outlives shutdown; it is bounded by TaskTimeout.
				d.process(context.WithoutCancel(ctx), t)
			}
		}
	}
}

// process is the error boundary of one task.
func (d *Dispatcher) process(ctx context.Context, t Task) {
	ctx, span := observe.StartSpan(observe.WithContact(ctx, t.Msg.ContactID), "dispatch.task")
	defer span.End()

	kind := t.Msg.Kind()
	log := observe.Logger(ctx).With("kind", kind, "correlation_id", t.CorrelationID)

	defer func() {
		if r := recover(); r != nil {
			log.Error("dispatch: panic while handling message", "panic", r, "stack", string(debug.Stack()))
			d.metrics.RecordMessage(ctx, kind, "panic")
			d.sendGeneric(ctx, t)
		}
	}()

	tctx, cancel := context.WithTimeout(ctx, d.cfg.TaskTimeout)
	defer cancel()

	start := time.Now()
	reply, err := d.handler.HandleMessage(tctx, t.Msg)
	if err != nil {
		log.Error("dispatch: message processing failed", "err", err, "elapsed", time.Since(start))
		d.metrics.RecordMessage(ctx, kind, "error")
		d.sendGeneric(ctx, t)
		return
	}
	if reply == nil || (reply.Text == "" && reply.Audio == nil) {
		d.metrics.RecordMessage(ctx, kind, "empty")
		return
	}

	if err := d.deliver(ctx, t.Msg.ContactID, reply); err != nil {
		log.Error("dispatch: reply delivery failed", "err", err)
		d.metrics.RecordMessage(ctx, kind, "undelivered")
		return
	}
	d.metrics.RecordMessage(ctx, kind, string(reply.Outcome))
	log.Debug("dispatch: message handled", "outcome", reply.Outcome, "elapsed", time.Since(start))
}

// deliver sends reply, hosting its audio first. A failure to host audio
// degrades to a text-only reply.
func (d *Dispatcher) deliver(ctx context.Context, to string, reply *bot.Reply) (err error) {
	ctx, cancel := context.WithTimeout(ctx, replyTimeout)
	defer cancel()
	defer func(start time.Time) { d.metrics.ObserveStage(ctx, observe.StageDelivery, start, err) }(time.Now())

	msg := messaging.Message{To: to, Body: reply.Text}
	if reply.Audio != nil && len(reply.Audio.Data) > 0 && d.media != nil && d.cfg.PublicBaseURL != "" {
		id, err := d.media.Put(reply.Audio.Data, reply.Audio.ContentType)
		if err != nil {
			observe.Logger(ctx).Warn("dispatch: hosting reply audio failed", "err", err)
		} else {
			msg.MediaURL = media.URL(d.cfg.PublicBaseURL, id)
		}
	}
	if err := d.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("dispatch: send: %w", err)
	}
	return nil
}

func (d *Dispatcher) sendGeneric(ctx context.Context, t Task) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), replyTimeout)
	defer cancel()
	err := d.sender.Send(ctx, messaging.Message{To: t.Msg.ContactID, Body: bot.GenericErrorText})
	if err != nil {
		observe.Logger(ctx).Error("dispatch: sending failure reply failed", "err", err)
	}
}
