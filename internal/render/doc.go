// Package render draws a comment wall in the terminal.
//
// Model is a bubbletea model with one row per lane. It learns about
// instances from the engine through Observer, which forwards every
// notification into the running program, and it positions each label from
// the instance's start time and duration on every tick.
//
// # Completion
//
// When an instance's traversal has elapsed the model calls
// Completer.Complete exactly once for it. The engine then removes the
// instance and, if the message still exists, schedules the next loop,
// which arrives back here as a new added notification.
//
// # Thread Safety
//
// Model is used from the bubbletea event loop only. Observer is safe to
// call from the engine goroutine.
package render
