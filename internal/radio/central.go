// Package radio provides the hardware radio drivers behind the relay's
// CentralRadio and PeripheralRadio interfaces: tinygo-org/bluetooth for
// the outbound connection to the real board, and a gatt server for the
// inbound connection from the chess app. Running both roles needs two
// controllers; see the adapter and HCI device config fields.
package radio

import (
	"fmt"
	"log/slog"
	"sync"

	"tinygo.org/x/bluetooth"

	"github.com/okrause/millproxy/internal/protocol"
	"github.com/okrause/millproxy/internal/relay"
)

// Central drives the board-side connection over BlueZ.
//
// BlueZ does not expose raw attribute handles or descriptor objects, so
// discovery synthesizes a pseudo-handle walk: characteristics get
// sequential handles in discovery order, each followed by a synthetic
// client-configuration descriptor (every characteristic on the board's
// service carries one). Writes and subscriptions resolve those
// pseudo-handles back to the underlying characteristic objects.
type Central struct {
	adapter *bluetooth.Adapter

	mu              sync.Mutex
	onConnected     func()
	onConnectFailed func(err error)
	onDisconnected  func(reason uint8)
	device          bluetooth.Device
	connected       bool
	chars           map[uint16]bluetooth.DeviceCharacteristic
	scanning        bool
	scanGen         int
}

// NewCentral enables the default adapter and registers the disconnect
// watcher.
func NewCentral() (*Central, error) {
	c := &Central{
		adapter: bluetooth.DefaultAdapter,
		chars:   make(map[uint16]bluetooth.DeviceCharacteristic),
	}
	if err := c.adapter.Enable(); err != nil {
		return nil, fmt.Errorf("radio: enable adapter: %w", err)
	}

	// Connects are reported by our own Connect goroutine; this handler
	// only watches for link loss. The stack gives no HCI reason code.
	c.adapter.SetConnectHandler(func(device bluetooth.Device, connected bool) {
		if connected {
			return
		}
		c.mu.Lock()
		wasConnected := c.connected
		c.connected = false
		c.chars = make(map[uint16]bluetooth.DeviceCharacteristic)
		cb := c.onDisconnected
		c.mu.Unlock()
		if wasConnected && cb != nil {
			cb(0)
		}
	})

	return c, nil
}

// SetConnectionHandlers implements relay.CentralRadio.
func (c *Central) SetConnectionHandlers(onConnected func(), onConnectFailed func(error), onDisconnected func(uint8)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onConnected = onConnected
	c.onConnectFailed = onConnectFailed
	c.onDisconnected = onDisconnected
}

// StartScan implements relay.CentralRadio. The underlying Scan call
// blocks until StopScan, so it runs on its own goroutine.
func (c *Central) StartScan(onAdv func(relay.Advertisement)) error {
	c.mu.Lock()
	if c.scanning {
		c.mu.Unlock()
		return nil
	}
	c.scanning = true
	c.scanGen++
	gen := c.scanGen
	c.mu.Unlock()

	go func() {
		err := c.adapter.Scan(func(_ *bluetooth.Adapter, result bluetooth.ScanResult) {
			onAdv(relay.Advertisement{
				Addr:      result.Address.String(),
				LocalName: result.LocalName(),
				RSSI:      int(result.RSSI),
				HasService: func(uuid string) bool {
					u, err := bluetooth.ParseUUID(uuid)
					if err != nil {
						return false
					}
					return result.HasServiceUUID(u)
				},
			})
		})
		if err != nil {
			slog.Error("[radio] scan ended with error", "error", err)
		}
		c.mu.Lock()
		if c.scanGen == gen {
			c.scanning = false
		}
		c.mu.Unlock()
	}()

	return nil
}

// StopScan implements relay.CentralRadio.
func (c *Central) StopScan() error {
	c.mu.Lock()
	c.scanning = false
	c.mu.Unlock()
	return c.adapter.StopScan()
}

// Connect implements relay.CentralRadio. Initiation happens here; the
// blocking connect runs on a goroutine and reports through the
// registered handlers. Peripheral latency is fixed at zero by the stack,
// which is what the board link wants anyway.
func (c *Central) Connect(addr string, params relay.ConnParams) error {
	var target bluetooth.Address
	target.Set(addr)

	connParams := bluetooth.ConnectionParams{
		MinInterval: bluetooth.NewDuration(params.IntervalMin),
		MaxInterval: bluetooth.NewDuration(params.IntervalMax),
		Timeout:     bluetooth.NewDuration(params.Timeout),
	}

	go func() {
		device, err := c.adapter.Connect(target, connParams)

		c.mu.Lock()
		onConnected, onFailed := c.onConnected, c.onConnectFailed
		if err == nil {
			c.device = device
			c.connected = true
		}
		c.mu.Unlock()

		if err != nil {
			if onFailed != nil {
				onFailed(err)
			}
			return
		}
		if onConnected != nil {
			onConnected()
		}
	}()

	return nil
}

// Disconnect implements relay.CentralRadio.
func (c *Central) Disconnect() error {
	c.mu.Lock()
	device, connected := c.device, c.connected
	c.mu.Unlock()
	if !connected {
		return nil
	}
	return device.Disconnect()
}

// DiscoverAttributes implements relay.CentralRadio. See the type comment
// for the pseudo-handle scheme.
func (c *Central) DiscoverAttributes(serviceUUID string, onAttr func(relay.Attribute), onDone func(error)) {
	svcUUID, err := bluetooth.ParseUUID(serviceUUID)
	if err != nil {
		onDone(fmt.Errorf("radio: parse service UUID: %w", err))
		return
	}

	c.mu.Lock()
	device, connected := c.device, c.connected
	c.mu.Unlock()
	if !connected {
		onDone(relay.ErrNotConnected)
		return
	}

	svcs, err := device.DiscoverServices([]bluetooth.UUID{svcUUID})
	if err != nil {
		onDone(fmt.Errorf("radio: discover services: %w", err))
		return
	}
	if len(svcs) == 0 {
		onDone(fmt.Errorf("radio: service %s not found", serviceUUID))
		return
	}

	chars, err := svcs[0].DiscoverCharacteristics(nil)
	if err != nil {
		onDone(fmt.Errorf("radio: discover characteristics: %w", err))
		return
	}

	c.mu.Lock()
	c.chars = make(map[uint16]bluetooth.DeviceCharacteristic, len(chars))
	var handle uint16
	walk := make([]relay.Attribute, 0, 2*len(chars))
	for _, char := range chars {
		handle++
		c.chars[handle] = char
		walk = append(walk, relay.Attribute{Handle: handle, UUID: char.UUID().String()})
		handle++
		walk = append(walk, relay.Attribute{Handle: handle, UUID: protocol.CCCDescriptorUUID})
	}
	c.mu.Unlock()

	for _, attr := range walk {
		onAttr(attr)
	}
	onDone(nil)
}

// Subscribe implements relay.CentralRadio. BlueZ writes the
// client-configuration descriptor itself; cccHandle only confirms that
// discovery resolved one for the characteristic.
func (c *Central) Subscribe(valueHandle, cccHandle uint16, onNotify func([]byte)) error {
	c.mu.Lock()
	char, ok := c.chars[valueHandle]
	c.mu.Unlock()
	if !ok {
		return relay.ErrHandleUnresolved
	}

	return char.EnableNotifications(func(buf []byte) {
		onNotify(buf)
	})
}

// WriteWithoutResponse implements relay.CentralRadio.
func (c *Central) WriteWithoutResponse(handle uint16, data []byte) error {
	c.mu.Lock()
	char, ok := c.chars[handle]
	c.mu.Unlock()
	if !ok {
		return relay.ErrHandleUnresolved
	}

	if _, err := char.WriteWithoutResponse(data); err != nil {
		return fmt.Errorf("radio: write without response: %w", err)
	}
	return nil
}

var _ relay.CentralRadio = (*Central)(nil)
