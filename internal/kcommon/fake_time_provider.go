package kcommon

import (
	"container/heap"
	"context"
	"sync"
	"time"
)

// FakeTimeProvider implements TimeProvider with a virtual clock. Scheduled
// tasks sit in a heap and only fire when VirtualTimeForward advances past
// their deadline.
type FakeTimeProvider struct {
	WallTime int64
	MonoTime int64

	mu        sync.Mutex
	taskQueue *fakeTaskQueue
}

func NewFakeTimeProvider(currentTimeMs int64) *FakeTimeProvider {
	return &FakeTimeProvider{
		WallTime:  currentTimeMs,
		MonoTime:  currentTimeMs,
		taskQueue: &fakeTaskQueue{},
	}
}

func (provider *FakeTimeProvider) GetWallTimeMs() int64 {
	return provider.WallTime
}

func (provider *FakeTimeProvider) GetMonoTimeMs() int64 {
	return provider.MonoTime
}

func (provider *FakeTimeProvider) ScheduleRun(delayMs int, fn func()) {
	task := &fakeTimerTask{
		taskFunc:       fn,
		scheduledForMs: provider.GetMonoTimeMs() + int64(delayMs),
	}
	RunWithLock(&provider.mu, func() {
		heap.Push(provider.taskQueue, task)
	})
}

func (provider *FakeTimeProvider) SleepMs(ctx context.Context, ms int) {
	provider.VirtualTimeForward(ctx, ms)
}

// VirtualTimeForward advances virtual time by forwardMs, running every task
// whose deadline falls inside the window, in deadline order. Between steps
// it yields 1ms of real time so the run loop can drain events posted by the
// fired timers. Returns false if the idle counter trips before the deadline
// is reached (guards against a dead-locked test).
func (provider *FakeTimeProvider) VirtualTimeForward(ctx context.Context, forwardMs int) bool {
	vtDeadline := false
	provider.ScheduleRun(forwardMs, func() {
		vtDeadline = true
	})

	sleepCounter := 0
	sleptAtThisTime := false
	for !vtDeadline && sleepCounter < 20 {
		var needRunTask *fakeTimerTask
		needSleep := false
		RunWithLock(&provider.mu, func() {
			topTask := provider.taskQueue.Peek()
			if topTask == nil {
				needSleep = true
				sleepCounter++
				return
			}
			if topTask.scheduledForMs <= provider.MonoTime {
				needRunTask = topTask
				heap.Pop(provider.taskQueue)
				return
			}
			if !sleptAtThisTime {
				// let in-flight run-loop events land before the clock jumps
				needSleep = true
				sleptAtThisTime = true
				return
			}
			provider.MonoTime = topTask.scheduledForMs
			provider.WallTime = topTask.scheduledForMs
			sleptAtThisTime = false
			needRunTask = topTask
			heap.Pop(provider.taskQueue)
		})
		if needSleep {
			time.Sleep(time.Millisecond)
			continue
		}
		if needRunTask != nil {
			needRunTask.taskFunc()
		}
	}
	return vtDeadline
}

type fakeTimerTask struct {
	taskFunc       func()
	scheduledForMs int64
	seq            int64 // FIFO among tasks with the same deadline
}

// fakeTaskQueue implements heap.Interface ordered by deadline then seq.
type fakeTaskQueue struct {
	tasks   []*fakeTimerTask
	nextSeq int64
}

func (q *fakeTaskQueue) Len() int { return len(q.tasks) }

func (q *fakeTaskQueue) Less(i, j int) bool {
	if q.tasks[i].scheduledForMs != q.tasks[j].scheduledForMs {
		return q.tasks[i].scheduledForMs < q.tasks[j].scheduledForMs
	}
	return q.tasks[i].seq < q.tasks[j].seq
}

func (q *fakeTaskQueue) Swap(i, j int) {
	q.tasks[i], q.tasks[j] = q.tasks[j], q.tasks[i]
}

func (q *fakeTaskQueue) Push(x interface{}) {
	task := x.(*fakeTimerTask)
	task.seq = q.nextSeq
	q.nextSeq++
	q.tasks = append(q.tasks, task)
}

func (q *fakeTaskQueue) Pop() interface{} {
	old := q.tasks
	n := len(old)
	task := old[n-1]
	old[n-1] = nil
	q.tasks = old[:n-1]
	return task
}

func (q *fakeTaskQueue) Peek() *fakeTimerTask {
	if len(q.tasks) == 0 {
		return nil
	}
	return q.tasks[0]
}
