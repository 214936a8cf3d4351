package concurrency

import (
	"log/slog"
	"runtime/debug"
)

// Recover runs fn and turns a panic into a log line and an onPanic call.
func Recover(fn func(), onPanic func(any)) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Panic recovered", "panic", r, "stack", string(debug.Stack()))
			if onPanic != nil {
				onPanic(r)
			}
		}
	}()
	fn()
}
