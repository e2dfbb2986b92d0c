// Package relay implements the core of the proxy: two independent BLE
// link state machines (central toward the real board, peripheral toward
// the chess app) and the coordinator that forwards frames between them.
//
// The radio hardware is abstracted behind the CentralRadio and
// PeripheralRadio interfaces so the links can be exercised against mocks.
// Each radio delivers its callbacks sequentially, never concurrently with
// itself; callbacks from the two radios may interleave with each other,
// so every link guards its state with its own mutex.
package relay

import (
	"errors"
	"time"

	"github.com/okrause/millproxy/internal/protocol"
)

// ATT status bytes returned from GATT request handlers.
const (
	StatusSuccess       byte = 0x00
	StatusInvalidOffset byte = 0x07
	StatusInvalidLength byte = 0x0D
)

var (
	// ErrNotConnected is returned when a send or notify is attempted
	// without a live connection on that side.
	ErrNotConnected = errors.New("relay: not connected")

	// ErrNotSubscribed is returned when the peer has not enabled
	// notifications.
	ErrNotSubscribed = errors.New("relay: notifications not enabled")

	// ErrHandleUnresolved is returned when a write is attempted before
	// discovery resolved the target characteristic handle.
	ErrHandleUnresolved = errors.New("relay: handle not discovered")
)

// Advertisement is one scan result. HasService reports whether the
// advertisement carries the given 128-bit service UUID; nil means the
// advertisement carried no service list.
type Advertisement struct {
	Addr       string
	LocalName  string
	RSSI       int
	HasService func(uuid string) bool
}

// Attribute is one entry of a GATT attribute walk, in discovery order.
// Handle 0 is never a valid attribute handle.
type Attribute struct {
	Handle uint16
	UUID   string
}

// ConnParams are the link-layer connection parameters for the outbound
// connection to the board.
type ConnParams struct {
	IntervalMin time.Duration
	IntervalMax time.Duration
	Latency     int
	Timeout     time.Duration
}

// CentralRadio is the scanner/initiator half of the radio. Connect and
// DiscoverAttributes are asynchronous requests; their outcomes arrive via
// the registered handlers and the per-call callbacks.
type CentralRadio interface {
	// SetConnectionHandlers registers the connection lifecycle callbacks.
	// Must be called before Connect.
	SetConnectionHandlers(onConnected func(), onConnectFailed func(err error), onDisconnected func(reason uint8))

	// StartScan reports every advertisement to onAdv until StopScan.
	StartScan(onAdv func(adv Advertisement)) error

	StopScan() error

	// Connect initiates a connection to addr. An immediate error means
	// initiation itself failed; otherwise the result arrives through the
	// connection handlers.
	Connect(addr string, params ConnParams) error

	Disconnect() error

	// DiscoverAttributes walks the attribute table of the named service,
	// invoking onAttr for each attribute in discovery order and onDone
	// exactly once when the walk ends.
	DiscoverAttributes(serviceUUID string, onAttr func(Attribute), onDone func(err error))

	// Subscribe enables notifications on valueHandle via cccHandle.
	// onNotify receives each notification payload; a nil payload signals
	// a server-initiated unsubscribe.
	Subscribe(valueHandle, cccHandle uint16, onNotify func(data []byte)) error

	WriteWithoutResponse(handle uint16, data []byte) error
}

// GATTHandler receives GATT requests from the app connected to the
// peripheral side. Write and read handlers return an ATT status byte.
type GATTHandler interface {
	Connected(addr string)
	Disconnected(reason uint8)

	// WriteData handles a write to the data-in (RX) characteristic.
	WriteData(offset int, data []byte) byte

	// ReadData handles a read of the data-out (TX) characteristic.
	ReadData(offset, maxLen int) ([]byte, byte)

	WriteConfig(offset int, data []byte) byte
	ReadConfig(offset, maxLen int) ([]byte, byte)

	// SubscriptionChanged fires when the app toggles notifications on
	// the data-out characteristic.
	SubscriptionChanged(enabled bool)
}

// PeripheralRadio is the advertiser/server half of the radio.
type PeripheralRadio interface {
	// SetHandler registers the GATT request sink. Must be called before
	// Advertise.
	SetHandler(h GATTHandler)

	// Advertise starts connectable advertising of the cloned service.
	Advertise(localName, serviceUUID string) error

	StopAdvertising() error

	// Notify pushes data to the connected app on the data-out
	// characteristic.
	Notify(data []byte) error
}

// TrafficSink consumes the relay's observable output. Implemented by
// *console.Console.
type TrafficSink interface {
	LogRaw(dir protocol.Direction, data []byte)
	LogDecoded(dir protocol.Direction, msg string)
	LogStatus(msg string)
}

// StatusIndicator reflects combined connection state, purely
// observational (LED patterns, dashboards).
type StatusIndicator interface {
	SetConnectionState(boardConnected, appConnected bool)
}
