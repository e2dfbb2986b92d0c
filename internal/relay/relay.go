package relay

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/okrause/millproxy/internal/protocol"
)

// Relay wires the two links together: frames received on either side are
// decoded for the traffic console and forwarded synchronously to the
// other side, or dropped with a status notice when the other side is not
// ready. Nothing is ever buffered or retried.
type Relay struct {
	central    *CentralLink
	peripheral *PeripheralLink
	sink       TrafficSink
	status     StatusIndicator
}

// New builds a relay over the two radios.
func New(centralRadio CentralRadio, peripheralRadio PeripheralRadio, sink TrafficSink, status StatusIndicator) *Relay {
	r := &Relay{sink: sink, status: status}
	r.central = NewCentralLink(centralRadio, sink, r.forwardToApp)
	r.peripheral = NewPeripheralLink(peripheralRadio, sink, r.forwardToBoard)
	return r
}

// Start begins advertising for the app and scanning for the board. Errors
// here are fatal startup failures; once running, all recovery is
// automatic and unbounded.
func (r *Relay) Start(boardNameFilter, localName string) error {
	if err := r.peripheral.Advertise(localName); err != nil {
		return fmt.Errorf("relay: %w", err)
	}
	if err := r.central.StartScan(boardNameFilter); err != nil {
		return fmt.Errorf("relay: %w", err)
	}
	r.sink.LogStatus("Proxy initialized - scanning for board, advertising for app")
	return nil
}

// forwardToBoard handles a frame the app wrote to the proxy.
func (r *Relay) forwardToBoard(data []byte) {
	if msg := protocol.Decode(data); msg != "" {
		r.sink.LogDecoded(protocol.DirAppToBoard, msg)
	}

	if !r.central.IsConnected() {
		r.sink.LogStatus("Board not connected, dropping app data")
		return
	}
	if err := r.central.Send(data); err != nil {
		slog.Error("[relay] forward to board failed", "error", err)
	}
}

// forwardToApp handles a frame the board notified to the proxy.
func (r *Relay) forwardToApp(data []byte) {
	if msg := protocol.Decode(data); msg != "" {
		r.sink.LogDecoded(protocol.DirBoardToApp, msg)
	}

	if !r.peripheral.IsConnected() {
		r.sink.LogStatus("App not connected, dropping board data")
		return
	}
	if err := r.peripheral.Notify(data); err != nil {
		slog.Error("[relay] forward to app failed", "error", err)
	}
}

// Central returns the board-side link.
func (r *Relay) Central() *CentralLink { return r.central }

// Peripheral returns the app-side link.
func (r *Relay) Peripheral() *PeripheralLink { return r.peripheral }

// RunStatusLoop polls combined connection state and feeds the status
// indicator until ctx is done. It performs no data-path work.
func (r *Relay) RunStatusLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.status.SetConnectionState(r.central.IsConnected(), r.peripheral.IsConnected())
		}
	}
}
