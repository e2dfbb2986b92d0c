// Package status turns combined connection state into a visible
// indicator. The LED patterns mirror the classic single-LED convention:
// slow blink while searching, fast blink with one side up, solid when
// the relay is fully active.
package status

import (
	"log/slog"
	"os"
	"sync"
	"time"
)

const (
	slowBlink = time.Second
	fastBlink = 200 * time.Millisecond
)

// LED drives a sysfs LED brightness file. SetConnectionState is expected
// to be polled at a shorter interval than the blink periods; each call
// decides whether the LED should toggle.
type LED struct {
	path string
	now  func() time.Time

	mu         sync.Mutex
	on         bool
	lastToggle time.Time
	warned     bool
}

// NewLED returns an LED writing to the given brightness file.
func NewLED(path string) *LED {
	return &LED{path: path, now: time.Now}
}

// SetConnectionState implements relay.StatusIndicator.
func (l *LED) SetConnectionState(boardConnected, appConnected bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch {
	case boardConnected && appConnected:
		l.set(true)
	case boardConnected || appConnected:
		l.toggleAfter(fastBlink)
	default:
		l.toggleAfter(slowBlink)
	}
}

func (l *LED) toggleAfter(period time.Duration) {
	now := l.now()
	if now.Sub(l.lastToggle) < period {
		return
	}
	l.lastToggle = now
	l.set(!l.on)
}

func (l *LED) set(on bool) {
	l.on = on
	val := []byte("0")
	if on {
		val = []byte("1")
	}
	if err := os.WriteFile(l.path, val, 0644); err != nil && !l.warned {
		// Warn once; a missing LED must not spam the traffic console.
		slog.Warn("[status] LED write failed", "path", l.path, "error", err)
		l.warned = true
	}
}

// Noop is a status indicator that does nothing, for setups without an
// LED.
type Noop struct{}

// SetConnectionState implements relay.StatusIndicator.
func (Noop) SetConnectionState(boardConnected, appConnected bool) {}
