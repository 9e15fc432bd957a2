package krunloop

import (
	"context"
	"sync"
	"time"

	"github.com/sugartom/nexus/internal/kcommon"
	"github.com/sugartom/nexus/internal/klogging"
	"github.com/sugartom/nexus/internal/metrics"
)

// CriticalResource marks a type whose mutable state is owned by exactly one
// RunLoop. All invariant-coupled mutation happens inside event processing,
// so no finer-grained locking is needed anywhere else.
type CriticalResource interface {
	IsResource()
}

// IEvent is one unit of work against the critical resource.
type IEvent[T CriticalResource] interface {
	GetName() string
	Process(ctx context.Context, resource T)
}

type EventPoster[T CriticalResource] interface {
	PostEvent(event IEvent[T])
}

// RunLoop processes events one at a time against its resource. It is the
// single serialization domain for that resource.
type RunLoop[T CriticalResource] struct {
	name     string // for logging/metrics only
	resource T
	queue    *UnboundedQueue[T]

	mu     sync.Mutex // guards ctx/cancel
	cancel context.CancelFunc
	exited chan struct{}
}

func NewRunLoop[T CriticalResource](ctx context.Context, resource T, name string) *RunLoop[T] {
	return &RunLoop[T]{
		name:     name,
		resource: resource,
		queue:    NewUnboundedQueue[T](ctx),
		exited:   make(chan struct{}),
	}
}

// PostEvent enqueues an event. Never blocks.
func (rl *RunLoop[T]) PostEvent(event IEvent[T]) {
	rl.queue.Enqueue(event)
}

func (rl *RunLoop[T]) Run(ctx context.Context) {
	rl.mu.Lock()
	ctx, rl.cancel = context.WithCancel(ctx)
	rl.mu.Unlock()

	defer func() {
		rl.queue.Close()
		close(rl.exited)
	}()

	for {
		select {
		case <-ctx.Done():
			klogging.Info(ctx).With("name", rl.name).Log("RunLoopCtxCanceled", "run loop stopped")
			return
		case event, ok := <-rl.queue.OutputChan():
			if !ok {
				klogging.Info(ctx).With("name", rl.name).Log("EventQueueClosed", "event queue closed")
				return
			}
			startMs := kcommon.GetMonoTimeMs()
			event.Process(ctx, rl.resource)
			metrics.RecordRunloopElapsed(ctx, event.GetName(), kcommon.GetMonoTimeMs()-startMs)
		}
	}
}

// StopAndWaitForExit cancels the loop and waits for the in-flight event to
// finish. Bounded wait to avoid hanging a shutdown.
func (rl *RunLoop[T]) StopAndWaitForExit() {
	rl.mu.Lock()
	cancel := rl.cancel
	rl.mu.Unlock()

	if cancel == nil {
		// Run was never called
		return
	}
	cancel()
	select {
	case <-rl.exited:
	case <-time.After(1000 * time.Millisecond):
		klogging.Warning(context.Background()).With("name", rl.name).Log("RunLoopStopTimeout", "run loop did not exit in time")
	}
}
