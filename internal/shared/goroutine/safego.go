// Package goroutine launches detached goroutines with panic recovery.
package goroutine

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
)

// SafeGo runs fn in a goroutine tracked by wg (if non-nil). A panic is logged
// with its stack instead of crashing the process.
func SafeGo(log *slog.Logger, wg *sync.WaitGroup, name string, fn func()) {
	if wg != nil {
		wg.Add(1)
	}
	go func() {
		if wg != nil {
			defer wg.Done()
		}
		defer func() {
			if r := recover(); r != nil {
				log.Error("goroutine panicked",
					"goroutine", name,
					"panic", fmt.Sprintf("%v", r),
					"stack", string(debug.Stack()),
				)
			}
		}()
		fn()
	}()
}
