package radio

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/XC-/gatt"

	"github.com/okrause/millproxy/internal/protocol"
	"github.com/okrause/millproxy/internal/relay"
)

// subscriptionPoll is how often the notify handler checks whether the
// app has torn down its subscription. The gatt server exposes no
// unsubscribe callback, only Notifier.Done.
const subscriptionPoll = 50 * time.Millisecond

// Peripheral serves the cloned Millennium service to the chess app over
// a dedicated HCI device. All GATT requests are forwarded to the
// registered relay.GATTHandler; this type only adapts the gatt server's
// callback shapes.
type Peripheral struct {
	hciDevice int

	mu        sync.Mutex
	handler   relay.GATTHandler
	device    gatt.Device
	notifier  gatt.Notifier
	localName string
	poweredOn bool
	wantAdv   bool
}

// NewPeripheral prepares a server on the given HCI device index
// (-1 tries all). The device is not opened until Advertise.
func NewPeripheral(hciDevice int) *Peripheral {
	return &Peripheral{hciDevice: hciDevice}
}

// SetHandler implements relay.PeripheralRadio.
func (p *Peripheral) SetHandler(h relay.GATTHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handler = h
}

// Advertise implements relay.PeripheralRadio. The first call opens the
// HCI device and registers the service; the gatt stack powers up
// asynchronously and advertising starts from the state callback. Later
// calls re-arm advertising directly.
func (p *Peripheral) Advertise(localName, serviceUUID string) error {
	p.mu.Lock()
	p.localName = localName
	p.wantAdv = true
	device := p.device
	poweredOn := p.poweredOn
	p.mu.Unlock()

	if device == nil {
		return p.open(serviceUUID)
	}
	if poweredOn {
		return device.AdvertiseNameAndServices(localName, []gatt.UUID{gatt.MustParseUUID(serviceUUID)})
	}
	return nil
}

func (p *Peripheral) open(serviceUUID string) error {
	device, err := gatt.NewDevice(
		gatt.LnxMaxConnections(1),
		gatt.LnxDeviceID(p.hciDevice, true),
	)
	if err != nil {
		return fmt.Errorf("radio: open gatt device: %w", err)
	}

	device.Handle(
		gatt.CentralConnected(func(c gatt.Central) {
			p.mu.Lock()
			h := p.handler
			p.mu.Unlock()
			if h != nil {
				h.Connected(c.ID())
			}
		}),
		gatt.CentralDisconnected(func(c gatt.Central) {
			p.mu.Lock()
			h := p.handler
			p.mu.Unlock()
			if h != nil {
				h.Disconnected(0)
			}
		}),
	)

	svcUUID := gatt.MustParseUUID(serviceUUID)
	svc := p.buildService(svcUUID)

	onStateChanged := func(d gatt.Device, s gatt.State) {
		slog.Info("[radio] gatt state", "state", s.String())
		switch s {
		case gatt.StatePoweredOn:
			d.AddService(svc)

			p.mu.Lock()
			p.poweredOn = true
			name, want := p.localName, p.wantAdv
			p.mu.Unlock()

			if want {
				if err := d.AdvertiseNameAndServices(name, []gatt.UUID{svcUUID}); err != nil {
					slog.Error("[radio] advertising failed", "error", err)
				}
			}
		default:
			p.mu.Lock()
			p.poweredOn = false
			p.mu.Unlock()
		}
	}

	if err := device.Init(onStateChanged); err != nil {
		return fmt.Errorf("radio: init gatt device: %w", err)
	}

	p.mu.Lock()
	p.device = device
	p.mu.Unlock()
	return nil
}

// buildService assembles the five-characteristic service the real board
// exposes. The two auxiliary notify characteristics are served as sinks
// so the app's discovery sees the full layout.
func (p *Peripheral) buildService(svcUUID gatt.UUID) *gatt.Service {
	svc := gatt.NewService(svcUUID)

	config := svc.AddCharacteristic(gatt.MustParseUUID(protocol.ConfigCharUUID))
	config.HandleReadFunc(p.serveConfigRead)
	config.HandleWriteFunc(p.serveConfigWrite)

	aux1 := svc.AddCharacteristic(gatt.MustParseUUID(protocol.Notify1CharUUID))
	aux1.HandleWriteFunc(p.serveDiscard)
	aux1.HandleNotifyFunc(p.serveAuxNotify)

	tx := svc.AddCharacteristic(gatt.MustParseUUID(protocol.TXCharUUID))
	tx.HandleReadFunc(p.serveDataRead)
	tx.HandleWriteFunc(p.serveDiscard)
	tx.HandleNotifyFunc(p.serveDataNotify)

	rx := svc.AddCharacteristic(gatt.MustParseUUID(protocol.RXCharUUID))
	rx.HandleWriteFunc(p.serveDataWrite)

	aux2 := svc.AddCharacteristic(gatt.MustParseUUID(protocol.Notify2CharUUID))
	aux2.HandleWriteFunc(p.serveDiscard)
	aux2.HandleNotifyFunc(p.serveAuxNotify)

	return svc
}

func (p *Peripheral) serveDataWrite(r gatt.Request, data []byte) byte {
	p.mu.Lock()
	h := p.handler
	p.mu.Unlock()
	if h == nil {
		return relay.StatusSuccess
	}
	// The server reassembles long writes before calling us.
	return h.WriteData(0, data)
}

func (p *Peripheral) serveDataRead(resp gatt.ResponseWriter, req *gatt.ReadRequest) {
	p.mu.Lock()
	h := p.handler
	p.mu.Unlock()
	if h == nil {
		return
	}
	val, status := h.ReadData(req.Offset, req.Cap)
	if status != relay.StatusSuccess {
		resp.SetStatus(status)
		return
	}
	resp.Write(val)
}

func (p *Peripheral) serveConfigWrite(r gatt.Request, data []byte) byte {
	p.mu.Lock()
	h := p.handler
	p.mu.Unlock()
	if h == nil {
		return relay.StatusSuccess
	}
	return h.WriteConfig(0, data)
}

func (p *Peripheral) serveConfigRead(resp gatt.ResponseWriter, req *gatt.ReadRequest) {
	p.mu.Lock()
	h := p.handler
	p.mu.Unlock()
	if h == nil {
		return
	}
	val, status := h.ReadConfig(req.Offset, req.Cap)
	if status != relay.StatusSuccess {
		resp.SetStatus(status)
		return
	}
	resp.Write(val)
}

// serveDiscard accepts and drops writes on characteristics the relay has
// no use for; the real board's auxiliary characteristics behave the same.
func (p *Peripheral) serveDiscard(r gatt.Request, data []byte) byte {
	return relay.StatusSuccess
}

// serveAuxNotify parks until the subscription ends without ever sending.
func (p *Peripheral) serveAuxNotify(r gatt.Request, n gatt.Notifier) {
	for !n.Done() {
		time.Sleep(subscriptionPoll)
	}
}

// serveDataNotify runs for the lifetime of the app's subscription to the
// data-out characteristic. The server invokes it on its own goroutine
// when the app enables notifications.
func (p *Peripheral) serveDataNotify(r gatt.Request, n gatt.Notifier) {
	p.mu.Lock()
	p.notifier = n
	h := p.handler
	p.mu.Unlock()

	if h != nil {
		h.SubscriptionChanged(true)
	}

	for !n.Done() {
		time.Sleep(subscriptionPoll)
	}

	p.mu.Lock()
	if p.notifier == n {
		p.notifier = nil
	}
	p.mu.Unlock()

	if h != nil {
		h.SubscriptionChanged(false)
	}
}

// StopAdvertising implements relay.PeripheralRadio.
func (p *Peripheral) StopAdvertising() error {
	p.mu.Lock()
	p.wantAdv = false
	device := p.device
	p.mu.Unlock()
	if device == nil {
		return nil
	}
	return device.StopAdvertising()
}

// Notify implements relay.PeripheralRadio.
func (p *Peripheral) Notify(data []byte) error {
	p.mu.Lock()
	n := p.notifier
	p.mu.Unlock()
	if n == nil {
		return relay.ErrNotSubscribed
	}

	if len(data) > n.Cap() {
		data = data[:n.Cap()]
	}
	if _, err := n.Write(data); err != nil {
		return fmt.Errorf("radio: notify: %w", err)
	}
	return nil
}

var _ relay.PeripheralRadio = (*Peripheral)(nil)
