package console

import (
	"io"
	"sync/atomic"
)

// KeyWatcher latches once any byte arrives on its reader.
type KeyWatcher struct {
	pressed atomic.Bool
}

// WatchKeys starts reading r in the background. The reader goroutine lives
// until r returns an error; a blocked terminal read cannot be interrupted.
func WatchKeys(r io.Reader) *KeyWatcher {
	k := &KeyWatcher{}
	go func() {
		buf := make([]byte, 1)
		for {
			n, err := r.Read(buf)
			if n > 0 {
				k.pressed.Store(true)
				return
			}
			if err != nil {
				return
			}
		}
	}()
	return k
}

// PollAbort reports whether a key was pressed. It never blocks.
func (k *KeyWatcher) PollAbort() bool {
	return k.pressed.Load()
}

// Personal.AI order the ending
