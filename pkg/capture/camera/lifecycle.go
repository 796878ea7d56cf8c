package camera

import "sync"

// lifecycle releases an opened handle exactly once. A stop that arrives
// while a scan is running only signals the scan; the scan releases the
// handle when it returns.
type lifecycle struct {
	mu       sync.Mutex
	open     bool
	scanning bool
	stopping bool
	stopped  chan struct{}
	release  func()
}

func (l *lifecycle) start(release func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.open = true
	l.scanning = false
	l.stopping = false
	l.stopped = make(chan struct{})
	l.release = release
}

// begin marks a scan as running and returns the channel closed by stop.
func (l *lifecycle) begin() (<-chan struct{}, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.open || l.stopping {
		return nil, false
	}
	l.scanning = true
	return l.stopped, true
}

// end finishes a scan. It reports whether the scan produced a code and the
// handle is still open; otherwise the handle has been released.
func (l *lifecycle) end(found bool) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.scanning = false
	if found && !l.stopping {
		return true
	}
	l.releaseLocked()
	return false
}

func (l *lifecycle) stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.open || l.stopping {
		return
	}
	l.stopping = true
	close(l.stopped)
	if !l.scanning {
		l.releaseLocked()
	}
}

func (l *lifecycle) releaseLocked() {
	if !l.open {
		return
	}
	l.open = false
	if l.release != nil {
		l.release()
	}
}
