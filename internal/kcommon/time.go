package kcommon

import (
	"context"
	"time"
)

var currentTimeProvider TimeProvider = NewSystemTimeProvider()

// TimeProvider abstracts wall/mono clocks and timer scheduling so tests can
// drive beacon/epoch cadence with a FakeTimeProvider instead of sleeping.
type TimeProvider interface {
	GetWallTimeMs() int64
	GetMonoTimeMs() int64
	ScheduleRun(delayMs int, fn func())
	SleepMs(ctx context.Context, ms int)
}

// RunWithTimeProvider temporarily swaps the process-wide provider while fn
// runs. Test-only entry point.
func RunWithTimeProvider(tp TimeProvider, fn func()) {
	old := currentTimeProvider
	currentTimeProvider = tp
	defer func() {
		currentTimeProvider = old
	}()
	fn()
}

func GetWallTimeMs() int64 {
	return currentTimeProvider.GetWallTimeMs()
}

func GetMonoTimeMs() int64 {
	return currentTimeProvider.GetMonoTimeMs()
}

func ScheduleRun(delayMs int, fn func()) {
	currentTimeProvider.ScheduleRun(delayMs, fn)
}

func SleepMs(ctx context.Context, ms int) {
	currentTimeProvider.SleepMs(ctx, ms)
}

// SystemTimeProvider implements TimeProvider on the real clock.
type SystemTimeProvider struct {
	startTime time.Time
}

func NewSystemTimeProvider() *SystemTimeProvider {
	return &SystemTimeProvider{
		startTime: time.Now(),
	}
}

func (provider *SystemTimeProvider) GetWallTimeMs() int64 {
	return time.Now().UnixMilli()
}

func (provider *SystemTimeProvider) GetMonoTimeMs() int64 {
	return time.Since(provider.startTime).Milliseconds()
}

func (provider *SystemTimeProvider) ScheduleRun(delayMs int, fn func()) {
	time.AfterFunc(time.Duration(delayMs)*time.Millisecond, fn)
}

func (provider *SystemTimeProvider) SleepMs(ctx context.Context, ms int) {
	time.Sleep(time.Duration(ms) * time.Millisecond)
}
