// Package console renders the relay's traffic stream: every frame in both
// directions, decoded protocol messages, and connection status changes,
// each prefixed with an uptime timestamp. This is the product output of
// the proxy, distinct from diagnostic logging.
package console

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/okrause/millproxy/internal/protocol"
)

// Console writes timestamped traffic records to a single writer. Calls
// are serialized so multi-part records from interleaving relay directions
// never shear.
type Console struct {
	mu    sync.Mutex
	w     io.Writer
	start time.Time
	now   func() time.Time
}

// New returns a Console writing to w. Timestamps count from the moment of
// the call.
func New(w io.Writer) *Console {
	c := &Console{w: w, now: time.Now}
	c.start = c.now()
	return c
}

// timestamp formats uptime as HH:MM:SS.mmm, hours wrapping at 24.
func (c *Console) timestamp() string {
	up := c.now().Sub(c.start)
	ms := up.Milliseconds()
	return fmt.Sprintf("%02d:%02d:%02d.%03d",
		(ms/3600000)%24, (ms/60000)%60, (ms/1000)%60, ms%1000)
}

// LogRaw writes a frame as hex: [HH:MM:SS.mmm] APP->BOARD: 56 33 ...
// Empty frames are dropped.
func (c *Console) LogRaw(dir protocol.Direction, data []byte) {
	if len(data) == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s:", c.timestamp(), dir)
	for _, b := range data {
		fmt.Fprintf(&sb, " %02x", b)
	}
	sb.WriteByte('\n')
	io.WriteString(c.w, sb.String())
}

// LogDecoded writes a decoded protocol message under the direction label.
func (c *Console) LogDecoded(dir protocol.Direction, msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, "[%s] %s: %s\n", c.timestamp(), dir, msg)
}

// LogStatus writes a connection/lifecycle message.
func (c *Console) LogStatus(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, "[%s] STATUS: %s\n", c.timestamp(), msg)
}

// Printf writes unprefixed output, used for the startup banner.
func (c *Console) Printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, format, args...)
}
