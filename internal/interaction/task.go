package interaction

import "github.com/ayusman/holovis/internal/gesture"

// Context is passed to task hooks.
type Context struct {
	// State is the name of the state the binding belongs to.
	State string
	// Command is the dispatched command.
	Command Command
	// Binding is the registered command that matched.
	Binding Command
	// Event is the gesture that produced the command.
	Event gesture.Event
}

// Task is a unit of interaction behaviour driven through the lifecycle of a
// gesture. Manipulation starts call OnStart, updates OnUpdate and ends OnEnd.
// Discrete gestures such as taps call OnStart followed by OnEnd.
type Task interface {
	OnStart(ctx Context) error
	OnUpdate(ctx Context) error
	OnEnd(ctx Context) error
}

// NopTask implements every hook as a no-op. Embed it to implement only the
// hooks a task needs.
type NopTask struct{}

func (NopTask) OnStart(Context) error  { return nil }
func (NopTask) OnUpdate(Context) error { return nil }
func (NopTask) OnEnd(Context) error    { return nil }

// TaskFuncs builds a Task from optional hook functions.
type TaskFuncs struct {
	Start  func(ctx Context) error
	Update func(ctx Context) error
	End    func(ctx Context) error
}

func (f TaskFuncs) OnStart(ctx Context) error {
	if f.Start == nil {
		return nil
	}
	return f.Start(ctx)
}

func (f TaskFuncs) OnUpdate(ctx Context) error {
	if f.Update == nil {
		return nil
	}
	return f.Update(ctx)
}

func (f TaskFuncs) OnEnd(ctx Context) error {
	if f.End == nil {
		return nil
	}
	return f.End(ctx)
}
