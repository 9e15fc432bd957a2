package krunloop

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// counterResource implements CriticalResource
type counterResource struct {
	mu     sync.Mutex
	values []int
}

func (cr *counterResource) IsResource() {}

func (cr *counterResource) snapshot() []int {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	out := make([]int, len(cr.values))
	copy(out, cr.values)
	return out
}

// appendEvent implements IEvent[*counterResource]
type appendEvent struct {
	value int
	done  chan struct{}
}

func (eve *appendEvent) GetName() string { return "AppendEvent" }

func (eve *appendEvent) Process(ctx context.Context, cr *counterResource) {
	cr.mu.Lock()
	cr.values = append(cr.values, eve.value)
	cr.mu.Unlock()
	if eve.done != nil {
		close(eve.done)
	}
}

func TestRunLoopProcessesInOrder(t *testing.T) {
	ctx := context.Background()
	cr := &counterResource{}
	rl := NewRunLoop[*counterResource](ctx, cr, "test")
	go rl.Run(ctx)
	defer rl.StopAndWaitForExit()

	last := make(chan struct{})
	for i := 0; i < 100; i++ {
		eve := &appendEvent{value: i}
		if i == 99 {
			eve.done = last
		}
		rl.PostEvent(eve)
	}

	select {
	case <-last:
	case <-time.After(2 * time.Second):
		t.Fatal("run loop did not drain events")
	}

	values := cr.snapshot()
	assert.Len(t, values, 100)
	for i, v := range values {
		assert.Equal(t, i, v)
	}
}

func TestRunLoopStopBeforeRunIsNoop(t *testing.T) {
	ctx := context.Background()
	rl := NewRunLoop[*counterResource](ctx, &counterResource{}, "idle")
	// must not hang
	rl.StopAndWaitForExit()
}

func TestRunLoopStopAndWait(t *testing.T) {
	ctx := context.Background()
	cr := &counterResource{}
	rl := NewRunLoop[*counterResource](ctx, cr, "stop")
	go rl.Run(ctx)

	done := make(chan struct{})
	rl.PostEvent(&appendEvent{value: 1, done: done})
	<-done
	rl.StopAndWaitForExit()

	// events posted after stop are not processed
	rl.PostEvent(&appendEvent{value: 2})
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, []int{1}, cr.snapshot())
}
