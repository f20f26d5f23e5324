package utils

import "github.com/stagecraft/scenecore/logging"

// Guard releases what a constructor acquired when the constructor returns early. Register cleanups as
// resources are acquired, defer OnFail, and call Success just before returning the finished value:
//
//	guard := NewGuard(fsWatcher.Close)
//	defer guard.OnFail()
//	if err := fsWatcher.Add(dir); err != nil {
//		return nil, err
//	}
//	guard.Success()
type Guard struct {
	cleanups []func() error
	success  bool
}

// NewGuard returns a guard holding the given cleanups.
func NewGuard(cleanups ...func() error) *Guard {
	return &Guard{cleanups: cleanups}
}

// Add registers another cleanup. Cleanups run in reverse order of registration.
func (guard *Guard) Add(cleanup func() error) {
	guard.cleanups = append(guard.cleanups, cleanup)
}

// OnFail runs the cleanups unless Success was called. Cleanup errors are logged.
func (guard *Guard) OnFail() {
	if guard.success {
		return
	}
	for i := len(guard.cleanups) - 1; i >= 0; i-- {
		if err := guard.cleanups[i](); err != nil {
			logging.Global().Warnw("cleanup after failure did not succeed", "error", err)
		}
	}
}

// Success declares the constructor finished, so OnFail does nothing.
func (guard *Guard) Success() {
	guard.success = true
}
