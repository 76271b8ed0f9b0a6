package track

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// scriptedSource returns canned positions or errors and counts fetches.
type scriptedSource struct {
	mu      sync.Mutex
	fetches int
	err     error
	lon     float64
	block   bool // wait for ctx cancellation instead of returning
}

func (s *scriptedSource) Fetch(ctx context.Context) (Position, error) {
	s.mu.Lock()
	s.fetches++
	s.lon++
	err := s.err
	lon := s.lon
	block := s.block
	s.mu.Unlock()

	if block {
		<-ctx.Done()
		return Position{}, ctx.Err()
	}
	if err != nil {
		return Position{}, err
	}
	return Position{Latitude: 10, Longitude: lon, AltitudeKm: ISSAltitudeKm, VelocityKmS: ISSVelocityKmS}, nil
}

func (s *scriptedSource) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches
}

func TestTracker_DeliversUpdatesInOrder(t *testing.T) {
	src := &scriptedSource{}
	updates := make(chan Position, 16)

	tracker := New(src, Options{
		Interval: time.Millisecond,
		OnUpdate: func(p Position) { updates <- p },
	})
	stop := tracker.Start(context.Background())
	defer stop()

	var got []Position
	deadline := time.After(2 * time.Second)
	for len(got) < 5 {
		select {
		case p := <-updates:
			got = append(got, p)
		case <-deadline:
			t.Fatalf("timed out after %d updates", len(got))
		}
	}

	for i := 1; i < len(got); i++ {
		if got[i].Longitude <= got[i-1].Longitude {
			t.Fatalf("updates out of order: %v after %v", got[i].Longitude, got[i-1].Longitude)
		}
	}
}

func TestTracker_RetriesForeverAndStops(t *testing.T) {
	src := &scriptedSource{err: errors.New("upstream down")}
	errs := make(chan error, 16)
	var updated atomic.Bool

	tracker := New(src, Options{
		Interval: 5 * time.Millisecond,
		OnUpdate: func(Position) { updated.Store(true) },
		OnError:  func(err error) { errs <- err },
	})
	stop := tracker.Start(context.Background())

	// At least two failures within a couple of intervals; no give-up.
	for i := 0; i < 2; i++ {
		select {
		case <-errs:
		case <-time.After(time.Second):
			t.Fatalf("only %d errors delivered, want at least 2", i)
		}
	}
	if updated.Load() {
		t.Fatal("OnUpdate fired for a source that always fails")
	}

	stop()
	select {
	case <-tracker.Done():
	case <-time.After(time.Second):
		t.Fatal("loop did not exit after stop")
	}

	// Drain anything delivered before the stop landed, then confirm silence.
	for {
		select {
		case <-errs:
			continue
		default:
		}
		break
	}
	select {
	case err := <-errs:
		t.Fatalf("OnError fired after stop: %v", err)
	case <-time.After(25 * time.Millisecond):
	}
}

func TestTracker_NoFetchAfterStop(t *testing.T) {
	src := &scriptedSource{}
	var stop func()
	firstUpdate := make(chan struct{})

	tracker := New(src, Options{
		Interval: 5 * time.Millisecond,
		OnUpdate: func(Position) {
			stop()
			close(firstUpdate)
		},
	})
	stop = tracker.Start(context.Background())

	select {
	case <-firstUpdate:
	case <-time.After(time.Second):
		t.Fatal("no update delivered")
	}
	select {
	case <-tracker.Done():
	case <-time.After(time.Second):
		t.Fatal("loop did not exit after stop")
	}

	if n := src.count(); n != 1 {
		t.Fatalf("fetch count after stop = %d, want 1", n)
	}
}

func TestTracker_StopIsIdempotent(t *testing.T) {
	src := &scriptedSource{}
	tracker := New(src, Options{Interval: time.Millisecond})
	stop := tracker.Start(context.Background())

	stop()
	stop()

	select {
	case <-tracker.Done():
	case <-time.After(time.Second):
		t.Fatal("loop did not exit")
	}
}

func TestTracker_StopAbortsInFlightFetch(t *testing.T) {
	src := &scriptedSource{block: true}
	var called sync.Map

	tracker := New(src, Options{
		Interval: time.Millisecond,
		OnUpdate: func(Position) { called.Store("update", true) },
		OnError:  func(error) { called.Store("error", true) },
	})
	stop := tracker.Start(context.Background())

	// Give the loop time to enter the blocking fetch, then abort it.
	time.Sleep(10 * time.Millisecond)
	stop()

	select {
	case <-tracker.Done():
	case <-time.After(time.Second):
		t.Fatal("stop did not abort the in-flight fetch")
	}

	if _, ok := called.Load("update"); ok {
		t.Error("OnUpdate fired for an aborted fetch")
	}
	if _, ok := called.Load("error"); ok {
		t.Error("OnError fired for an aborted fetch")
	}
}

func TestTracker_FetchTimeoutKeepsLoopAlive(t *testing.T) {
	src := &scriptedSource{block: true}
	errs := make(chan error, 4)

	tracker := New(src, Options{
		Interval:     time.Millisecond,
		FetchTimeout: 5 * time.Millisecond,
		OnError:      func(err error) { errs <- err },
	})
	stop := tracker.Start(context.Background())
	defer stop()

	for i := 0; i < 2; i++ {
		select {
		case err := <-errs:
			if !errors.Is(err, context.DeadlineExceeded) {
				t.Fatalf("timeout error = %v, want deadline exceeded", err)
			}
		case <-time.After(time.Second):
			t.Fatalf("hung fetch was not timed out (got %d errors)", i)
		}
	}
}

func TestTracker_DrivesTrailUpdates(t *testing.T) {
	src := &scriptedSource{}
	trail := NewTrail(DefaultSphereRadius, 100, 200)
	type result struct {
		past   []Vec3
		future []Vec3
	}
	results := make(chan result, 16)

	tracker := New(src, Options{
		Interval: time.Millisecond,
		OnUpdate: func(pos Position) {
			past, future, err := trail.Update(pos)
			if err != nil {
				t.Errorf("trail update: %v", err)
				return
			}
			results <- result{past: past, future: future}
		},
	})
	stop := tracker.Start(context.Background())
	defer stop()

	var last result
	for i := 0; i < 3; i++ {
		select {
		case last = <-results:
		case <-time.After(time.Second):
			t.Fatalf("timed out after %d updates", i)
		}
	}
	stop()

	if len(last.past) != 3 {
		t.Fatalf("past trail = %d points, want 3", len(last.past))
	}
	if len(last.future) != 200 {
		t.Fatalf("future arc = %d points, want 200", len(last.future))
	}
	want := last.past[2].Norm()
	for i, p := range last.future {
		if d := p.Norm() - want; d > 1e-6 || d < -1e-6 {
			t.Fatalf("future[%d] norm = %v, want %v", i, p.Norm(), want)
		}
	}
}

type countingRecorder struct {
	mu    sync.Mutex
	calls int
	errs  int
}

func (r *countingRecorder) ObservePoll(err error, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if err != nil {
		r.errs++
	}
}

func TestTracker_RecordsEveryPoll(t *testing.T) {
	src := &scriptedSource{err: errors.New("boom")}
	rec := &countingRecorder{}
	errs := make(chan error, 8)

	tracker := New(src, Options{
		Interval: time.Millisecond,
		OnError:  func(err error) { errs <- err },
		Recorder: rec,
	})
	stop := tracker.Start(context.Background())
	defer stop()

	for i := 0; i < 3; i++ {
		select {
		case <-errs:
		case <-time.After(time.Second):
			t.Fatal("missing error deliveries")
		}
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.calls < 3 || rec.errs < 3 {
		t.Fatalf("recorder saw %d calls / %d errors, want at least 3 each", rec.calls, rec.errs)
	}
}
