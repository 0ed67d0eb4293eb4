// Package notify adapts UI side effects (loading indicator, toast, navigation) to the
// api package's Loading and Reactor hooks.
//
// The gateway classifies a failure; a [Reactor] decides what the user sees. Keeping
// the two apart lets headless callers (CLI, tests, load generators) run the same
// request pipeline with a [Nop], [Recorder] or [Logger] notifier.
package notify
