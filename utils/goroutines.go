package utils

import (
	"runtime/debug"

	"github.com/stagecraft/scenecore/logging"
)

// PanicCapturingGo spawns a goroutine to run the given function and captures
// any panic that occurs and logs it.
func PanicCapturingGo(f func()) {
	PanicCapturingGoWithCallback(f, func(err interface{}) {
		logging.Global().Errorw("panic while running function", "error", err, "stack", string(debug.Stack()))
	})
}

// PanicCapturingGoWithCallback spawns a goroutine to run the given function and captures
// any panic that occurs, passing it to the given callback.
func PanicCapturingGoWithCallback(f func(), callback func(err interface{})) {
	go func() {
		defer func() {
			if err := recover(); err != nil {
				callback(err)
			}
		}()
		f()
	}()
}
