package core

import "context"

// ActionEvent implements krunloop.IEvent[*SchedulerState]; it wraps an
// arbitrary closure so the RPC boundary can enter the run loop.
type ActionEvent struct {
	name string
	fn   func(ctx context.Context, ss *SchedulerState)
}

func NewActionEvent(name string, fn func(ctx context.Context, ss *SchedulerState)) *ActionEvent {
	return &ActionEvent{name: name, fn: fn}
}

func (eve *ActionEvent) GetName() string {
	return eve.name
}

func (eve *ActionEvent) Process(ctx context.Context, ss *SchedulerState) {
	eve.fn(ctx, ss)
	ss.flushNotifications(ctx)
}
