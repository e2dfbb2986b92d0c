package relay

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/okrause/millproxy/internal/protocol"
)

const (
	// maxCachedFrame caps the data-out value cached for reads; matches
	// the largest payload a single BLE packet can carry.
	maxCachedFrame = 244

	// configBufSize is the size of the config characteristic's echo
	// store, matching the real board's attribute length.
	configBufSize = 20
)

// PeripheralLink owns the inbound connection from the chess app. It
// serves the cloned Millennium service, forwards writes on the data-in
// characteristic, and notifies relayed board data on the data-out
// characteristic. Advertising restarts unconditionally whenever the app
// disconnects.
type PeripheralLink struct {
	radio  PeripheralRadio
	sink   TrafficSink
	onData func(data []byte)

	mu            sync.Mutex
	localName     string
	connected     bool
	notifyEnabled bool
	cached        []byte
	config        [configBufSize]byte
	advRestarts   int
}

// NewPeripheralLink wires a PeripheralLink to its radio. onData receives
// every frame the app writes to the data-in characteristic.
func NewPeripheralLink(radio PeripheralRadio, sink TrafficSink, onData func(data []byte)) *PeripheralLink {
	l := &PeripheralLink{
		radio:  radio,
		sink:   sink,
		onData: onData,
	}
	radio.SetHandler(l)
	return l
}

// Advertise starts connectable advertising under the given local name.
// The name is stored and reused for every restart.
func (l *PeripheralLink) Advertise(localName string) error {
	l.mu.Lock()
	l.localName = localName
	l.mu.Unlock()

	if err := l.radio.Advertise(localName, protocol.ServiceUUID); err != nil {
		return fmt.Errorf("relay: start advertising: %w", err)
	}
	l.sink.LogStatus(fmt.Sprintf("Advertising as '%s' - waiting for app...", localName))
	return nil
}

// Connected implements GATTHandler.
func (l *PeripheralLink) Connected(addr string) {
	l.mu.Lock()
	l.connected = true
	l.mu.Unlock()

	slog.Info("[periph] app connected", "addr", addr)
	l.sink.LogStatus(fmt.Sprintf("Chess app connected: %s", addr))
}

// Disconnected implements GATTHandler. Advertising restarts immediately;
// this is the only way the proxy becomes reachable again.
func (l *PeripheralLink) Disconnected(reason uint8) {
	l.mu.Lock()
	l.connected = false
	l.notifyEnabled = false
	l.advRestarts++
	name := l.localName
	l.mu.Unlock()

	slog.Info("[periph] app disconnected", "reason", reason)
	l.sink.LogStatus(fmt.Sprintf("Chess app disconnected (reason: %d)", reason))

	if err := l.radio.Advertise(name, protocol.ServiceUUID); err != nil {
		slog.Error("[periph] advertising restart failed", "error", err)
		return
	}
	l.sink.LogStatus(fmt.Sprintf("Advertising as '%s' - waiting for app...", name))
}

// WriteData implements GATTHandler: a write to the data-in
// characteristic. Long writes are not supported.
func (l *PeripheralLink) WriteData(offset int, data []byte) byte {
	if offset > 0 {
		return StatusInvalidOffset
	}
	slog.Debug("[periph] data write", "len", len(data))
	if len(data) > 0 {
		l.onData(data)
	}
	return StatusSuccess
}

// ReadData implements GATTHandler: a read of the data-out characteristic
// returns the most recently relayed frame.
func (l *PeripheralLink) ReadData(offset, maxLen int) ([]byte, byte) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if offset > len(l.cached) {
		return nil, StatusInvalidOffset
	}
	val := l.cached[offset:]
	if len(val) > maxLen {
		val = val[:maxLen]
	}
	return val, StatusSuccess
}

// WriteConfig implements GATTHandler: a simple echo store.
func (l *PeripheralLink) WriteConfig(offset int, data []byte) byte {
	if offset > 0 {
		return StatusInvalidOffset
	}
	if len(data) > configBufSize {
		return StatusInvalidLength
	}

	l.mu.Lock()
	copy(l.config[:], data)
	l.mu.Unlock()

	slog.Debug("[periph] config write", "len", len(data))
	return StatusSuccess
}

// ReadConfig implements GATTHandler.
func (l *PeripheralLink) ReadConfig(offset, maxLen int) ([]byte, byte) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if offset > configBufSize {
		return nil, StatusInvalidOffset
	}
	val := l.config[offset:]
	if len(val) > maxLen {
		val = val[:maxLen]
	}
	return val, StatusSuccess
}

// SubscriptionChanged implements GATTHandler.
func (l *PeripheralLink) SubscriptionChanged(enabled bool) {
	l.mu.Lock()
	l.notifyEnabled = enabled
	l.mu.Unlock()

	if enabled {
		l.sink.LogStatus("App subscribed to TX notifications")
	} else {
		l.sink.LogStatus("App unsubscribed from TX notifications")
	}
}

// Notify forwards a board frame to the app. The frame is cached
// (truncated if oversized) so subsequent reads of the data-out
// characteristic return it.
func (l *PeripheralLink) Notify(data []byte) error {
	l.mu.Lock()
	if !l.connected {
		l.mu.Unlock()
		return ErrNotConnected
	}
	if !l.notifyEnabled {
		l.mu.Unlock()
		return ErrNotSubscribed
	}
	n := len(data)
	if n > maxCachedFrame {
		n = maxCachedFrame
	}
	l.cached = append(l.cached[:0], data[:n]...)
	l.mu.Unlock()

	if err := l.radio.Notify(data); err != nil {
		return fmt.Errorf("relay: notify app: %w", err)
	}
	return nil
}

// IsConnected reports whether the app is connected with notifications
// enabled on the data-out characteristic.
func (l *PeripheralLink) IsConnected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connected && l.notifyEnabled
}

// AdvertisingRestarts returns how many times advertising was restarted
// after an app disconnect.
func (l *PeripheralLink) AdvertisingRestarts() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.advRestarts
}
