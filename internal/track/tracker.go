package track

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/orbit-tracker/internal/logging"
)

// DefaultInterval is the wait between poll ticks.
const DefaultInterval = 3 * time.Second

// DefaultFetchTimeout bounds a single fetch so a hung upstream cannot stall
// the loop forever. Zero disables the bound.
const DefaultFetchTimeout = 10 * time.Second

// Source supplies one position observation per call. Implementations live in
// the feed package; the tracker only sees this seam.
type Source interface {
	Fetch(ctx context.Context) (Position, error)
}

// PollRecorder receives the outcome and duration of every poll tick. Wired to
// the observability collector in main; nil disables recording.
type PollRecorder interface {
	ObservePoll(err error, d time.Duration)
}

// Options configures a Tracker. OnUpdate and OnError are invoked from the
// tracker's own goroutine, one at a time, in poll order; they must not block
// for long or they delay subsequent ticks.
type Options struct {
	Interval     time.Duration
	FetchTimeout time.Duration
	OnUpdate     func(Position)
	OnError      func(error)
	Log          logging.Logger
	Recorder     PollRecorder
}

// Tracker polls a Source on a fixed interval and pushes each normalized
// observation to the OnUpdate handler. Failures are pushed to OnError and the
// loop keeps going: there is no backoff, no retry cap, and no giving up. The
// caller decides what a persistently failing upstream means.
type Tracker struct {
	source   Source
	interval time.Duration
	timeout  time.Duration
	onUpdate func(Position)
	onError  func(error)
	log      logging.Logger
	recorder PollRecorder
	tracer   trace.Tracer

	startOnce sync.Once
	done      chan struct{}
}

// New constructs a tracker. Zero-value options fall back to defaults; nil
// handlers are replaced with no-ops.
func New(source Source, opts Options) *Tracker {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.FetchTimeout < 0 {
		opts.FetchTimeout = DefaultFetchTimeout
	}
	if opts.OnUpdate == nil {
		opts.OnUpdate = func(Position) {}
	}
	if opts.OnError == nil {
		opts.OnError = func(error) {}
	}
	if opts.Log == nil {
		opts.Log = logging.Noop()
	}
	return &Tracker{
		source:   source,
		interval: opts.Interval,
		timeout:  opts.FetchTimeout,
		onUpdate: opts.OnUpdate,
		onError:  opts.OnError,
		log:      opts.Log,
		recorder: opts.Recorder,
		tracer:   otel.Tracer("orbit-tracker/track"),
		done:     make(chan struct{}),
	}
}

// Start launches the poll loop in its own goroutine and returns a stop
// function. Stopping is idempotent: it cancels the in-flight fetch (if any)
// and prevents further ticks. The loop checks for cancellation at the top of
// each iteration, so at most one idle interval may elapse after stop before
// the goroutine exits; no callbacks fire in that window.
//
// Start may be called once; subsequent calls return a stop function for the
// already-running loop.
func (t *Tracker) Start(ctx context.Context) (stop func()) {
	var cancel context.CancelFunc
	t.startOnce.Do(func() {
		ctx, cancel = context.WithCancel(ctx)
		go t.run(ctx)
	})
	var stopOnce sync.Once
	return func() {
		stopOnce.Do(func() {
			if cancel != nil {
				cancel()
			}
		})
	}
}

// Done is closed when the poll loop has fully exited.
func (t *Tracker) Done() <-chan struct{} { return t.done }

func (t *Tracker) run(ctx context.Context) {
	defer close(t.done)

	t.log.Info(ctx, "tracker started",
		logging.String("interval", t.interval.String()))

	for {
		if ctx.Err() != nil {
			t.log.Info(ctx, "tracker stopped")
			return
		}

		t.poll(ctx)

		select {
		case <-ctx.Done():
			t.log.Info(ctx, "tracker stopped")
			return
		case <-time.After(t.interval):
		}
	}
}

// poll performs one tick: fetch, then deliver to exactly one of the two
// handlers. A fetch aborted by stop is delivered to neither.
func (t *Tracker) poll(ctx context.Context) {
	tickCtx, span := t.tracer.Start(ctx, "tracker.poll")
	defer span.End()

	fetchCtx := tickCtx
	if t.timeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(tickCtx, t.timeout)
		defer cancel()
	}

	start := time.Now()
	pos, err := t.source.Fetch(fetchCtx)
	if t.recorder != nil {
		t.recorder.ObservePoll(err, time.Since(start))
	}

	if ctx.Err() != nil {
		// Stopped mid-fetch; the aborted result is not an observation.
		return
	}

	if err != nil {
		span.RecordError(err)
		t.log.Warn(tickCtx, "poll failed", logging.String("error", err.Error()))
		t.onError(err)
		return
	}

	span.SetAttributes(
		attribute.Float64("position.latitude", pos.Latitude),
		attribute.Float64("position.longitude", pos.Longitude),
	)
	t.log.Debug(tickCtx, "position update",
		logging.Any("latitude", pos.Latitude),
		logging.Any("longitude", pos.Longitude))
	t.onUpdate(pos)
}
