package relay

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/okrause/millproxy/internal/protocol"
)

// Connection parameters for the outbound link to the board: 30-50ms
// interval, no peripheral latency, 4s supervision timeout.
var boardConnParams = ConnParams{
	IntervalMin: 30 * time.Millisecond,
	IntervalMax: 50 * time.Millisecond,
	Latency:     0,
	Timeout:     4 * time.Second,
}

// CentralLink owns the connection to the real board: scan filter,
// connect, attribute discovery, notification subscription and the write
// path. It recovers from any link loss by rescanning with the original
// filter, indefinitely.
type CentralLink struct {
	radio  CentralRadio
	sink   TrafficSink
	onData func(data []byte)

	mu           sync.Mutex
	nameFilter   string
	connected    bool
	subscribed   bool
	txHandle     uint16
	cccHandle    uint16
	rxHandle     uint16
	scanRestarts int
}

// NewCentralLink wires a CentralLink to its radio. onData receives every
// notification payload from the board.
func NewCentralLink(radio CentralRadio, sink TrafficSink, onData func(data []byte)) *CentralLink {
	l := &CentralLink{
		radio:  radio,
		sink:   sink,
		onData: onData,
	}
	radio.SetConnectionHandlers(l.handleConnected, l.handleConnectFailed, l.handleDisconnected)
	return l
}

// StartScan begins scanning for the board. nameFilter is an optional
// case-insensitive substring matched against advertised names; it is
// stored once and reused for every reconnect cycle. A no-op while a
// connection is established.
func (l *CentralLink) StartScan(nameFilter string) error {
	l.mu.Lock()
	if l.connected {
		l.mu.Unlock()
		slog.Warn("[central] already connected, not scanning")
		return nil
	}
	l.nameFilter = nameFilter
	l.mu.Unlock()

	if err := l.radio.StartScan(l.handleAdvertisement); err != nil {
		return fmt.Errorf("relay: start scan: %w", err)
	}

	l.sink.LogStatus("Scanning for real Millennium board...")
	return nil
}

// handleAdvertisement applies the scan filter to each advertisement. A
// service-UUID match takes precedence over the name substring.
func (l *CentralLink) handleAdvertisement(adv Advertisement) {
	l.mu.Lock()
	filter := l.nameFilter
	l.mu.Unlock()

	match := adv.HasService != nil && adv.HasService(protocol.ServiceUUID)
	if !match && filter != "" {
		match = strings.Contains(strings.ToLower(adv.LocalName), strings.ToLower(filter))
	}
	if !match {
		return
	}

	l.radio.StopScan()
	l.sink.LogStatus(fmt.Sprintf("Found Millennium board: %s (RSSI: %d)", adv.Addr, adv.RSSI))

	if err := l.radio.Connect(adv.Addr, boardConnParams); err != nil {
		slog.Warn("[central] connect initiation failed", "error", err)
		l.sink.LogStatus("Failed to initiate connection")
		l.restartScan()
	}
}

func (l *CentralLink) handleConnected() {
	l.mu.Lock()
	l.connected = true
	l.mu.Unlock()

	slog.Info("[central] connected to real board")
	l.sink.LogStatus("Connected to real Millennium board")

	l.radio.DiscoverAttributes(protocol.ServiceUUID, l.reduceAttribute, l.discoveryDone)
}

func (l *CentralLink) handleConnectFailed(err error) {
	slog.Warn("[central] connection failed", "error", err)
	l.sink.LogStatus("Failed to connect to real board")
	l.restartScan()
}

func (l *CentralLink) handleDisconnected(reason uint8) {
	l.mu.Lock()
	l.connected = false
	l.subscribed = false
	l.txHandle = 0
	l.cccHandle = 0
	l.rxHandle = 0
	l.mu.Unlock()

	slog.Info("[central] disconnected", "reason", reason)
	l.sink.LogStatus(fmt.Sprintf("Disconnected from real board (reason: %d)", reason))

	l.restartScan()
}

// restartScan re-arms scanning with the stored filter and bumps the
// restart counter. This is the sole recovery path and it never gives up.
func (l *CentralLink) restartScan() {
	l.mu.Lock()
	l.scanRestarts++
	l.mu.Unlock()

	if err := l.radio.StartScan(l.handleAdvertisement); err != nil {
		slog.Error("[central] scan restart failed", "error", err)
		return
	}
	l.sink.LogStatus("Scanning for real Millennium board...")
}

// reduceAttribute folds one discovered attribute into the handle table.
//
// The CCC descriptor is bound by position: descriptors are emitted
// immediately after their owning characteristic in discovery order, so
// the first CCC seen after the TX characteristic is taken as the TX CCC.
// This is an assumption about the board's attribute table, not a protocol
// guarantee; a declared-handle-range walk would replace this method.
func (l *CentralLink) reduceAttribute(attr Attribute) {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch {
	case strings.EqualFold(attr.UUID, protocol.TXCharUUID):
		l.txHandle = attr.Handle
		slog.Debug("[central] found TX characteristic", "handle", attr.Handle)
	case strings.EqualFold(attr.UUID, protocol.RXCharUUID):
		l.rxHandle = attr.Handle
		slog.Debug("[central] found RX characteristic", "handle", attr.Handle)
	case strings.EqualFold(attr.UUID, protocol.CCCDescriptorUUID):
		if l.txHandle != 0 && l.cccHandle == 0 {
			l.cccHandle = attr.Handle
			slog.Debug("[central] found TX CCC", "handle", attr.Handle)
		}
	}
}

func (l *CentralLink) discoveryDone(err error) {
	if err != nil {
		slog.Error("[central] discovery failed", "error", err)
		l.sink.LogStatus("Service discovery failed")
		return
	}

	l.mu.Lock()
	tx, ccc := l.txHandle, l.cccHandle
	l.mu.Unlock()

	if tx == 0 || ccc == 0 {
		slog.Error("[central] TX handles not discovered", "tx", tx, "ccc", ccc)
		l.sink.LogStatus("TX characteristic not found on real board")
		return
	}

	if err := l.radio.Subscribe(tx, ccc, l.handleNotify); err != nil {
		slog.Error("[central] subscribe failed", "error", err)
		l.sink.LogStatus("Failed to subscribe to real board notifications")
		return
	}

	l.mu.Lock()
	l.subscribed = true
	l.mu.Unlock()
	l.sink.LogStatus("Subscribed to real board notifications")
}

// handleNotify receives board notifications. A nil payload is a
// server-initiated unsubscribe: the link stays up but leaves Ready.
func (l *CentralLink) handleNotify(data []byte) {
	if data == nil {
		slog.Warn("[central] unsubscribed from TX notifications")
		l.mu.Lock()
		l.subscribed = false
		l.mu.Unlock()
		return
	}

	l.sink.LogRaw(protocol.DirBoardToApp, data)
	l.onData(data)
}

// Send forwards a frame to the board's data-in characteristic with an
// unacknowledged write.
func (l *CentralLink) Send(data []byte) error {
	l.mu.Lock()
	connected, rx := l.connected, l.rxHandle
	l.mu.Unlock()

	if !connected {
		return ErrNotConnected
	}
	if rx == 0 {
		return ErrHandleUnresolved
	}

	l.sink.LogRaw(protocol.DirAppToBoard, data)

	if err := l.radio.WriteWithoutResponse(rx, data); err != nil {
		return fmt.Errorf("relay: write to board: %w", err)
	}
	return nil
}

// IsConnected reports whether the link is fully ready: connected with an
// active notification subscription.
func (l *CentralLink) IsConnected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connected && l.subscribed
}

// Handles returns the discovered attribute handles (tx, ccc, rx);
// all zero when unresolved.
func (l *CentralLink) Handles() (tx, ccc, rx uint16) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.txHandle, l.cccHandle, l.rxHandle
}

// ScanRestarts returns how many times scanning was re-armed after a
// disconnect or failed connection attempt.
func (l *CentralLink) ScanRestarts() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.scanRestarts
}
