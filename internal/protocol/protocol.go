// Package protocol implements the Millennium ChessLink wire format:
// ASCII command bytes with 7-bit parity, an optional payload, and a
// trailing XOR checksum. The relay never interprets commands beyond
// rendering them human-readable for the traffic console.
package protocol

import (
	"fmt"
	"strings"
)

// Millennium BLE service and characteristic UUIDs. These must match the
// real board byte for byte so the chess app's own discovery succeeds
// identically against the proxy.
const (
	ServiceUUID     = "49535343-fe7d-4ae5-8fa9-9fafd205e455"
	ConfigCharUUID  = "49535343-6daa-4d02-abf6-19569aca69fe"
	Notify1CharUUID = "49535343-aca3-481c-91ec-d85e28a60318"
	TXCharUUID      = "49535343-1e4d-4bd9-ba61-23c647249616"
	RXCharUUID      = "49535343-8841-43f4-a8d4-ecbe34729bb3"
	Notify2CharUUID = "49535343-026e-3a9b-954c-97daef17e26e"

	// Client characteristic configuration descriptor (notifications on/off).
	CCCDescriptorUUID = "00002902-0000-1000-8000-00805f9b34fb"

	// LocalName is the name the real board advertises.
	LocalName = "MILLENNIUM CHESS"
)

// Command and response bytes (before parity encoding).
const (
	CmdVersion    = 'V' // request version info
	CmdBoardState = 'S' // request board state
	CmdLEDSet     = 'L' // set a single LED
	CmdLEDOff     = 'X' // all LEDs off
	CmdReset      = 'R' // reset board
	CmdBeep       = 'B' // beep
	CmdScanOn     = 'W' // enable board scanning
	CmdScanOff    = 'I' // disable board scanning

	RespVersion = 'v' // version string
	RespBoard   = 's' // board state, 64 square chars
	RespOK      = 'r' // command acknowledged
)

// Direction tags a relayed frame.
type Direction int

const (
	DirAppToBoard Direction = iota
	DirBoardToApp
)

func (d Direction) String() string {
	if d == DirAppToBoard {
		return "APP->BOARD"
	}
	return "BOARD->APP"
}

// Checksum returns the XOR of all bytes, the trailing check byte of every
// Millennium frame.
func Checksum(data []byte) byte {
	var crc byte
	for _, b := range data {
		crc ^= b
	}
	return crc
}

// ValidChecksum reports whether the last byte of data is the XOR checksum
// of everything before it. Frames shorter than two bytes cannot carry a
// checksum and are never valid.
func ValidChecksum(data []byte) bool {
	if len(data) < 2 {
		return false
	}
	return Checksum(data[:len(data)-1]) == data[len(data)-1]
}

// AddParity sets bit 7 of b so the low seven bits have even parity.
func AddParity(b byte) byte {
	var parity byte
	val := b & 0x7F
	for i := 0; i < 7; i++ {
		if val&(1<<i) != 0 {
			parity ^= 1
		}
	}
	if parity != 0 {
		return b | 0x80
	}
	return b & 0x7F
}

// CheckParity reports whether b has even parity across all eight bits.
func CheckParity(b byte) bool {
	count := 0
	for i := 0; i < 8; i++ {
		if b&(1<<i) != 0 {
			count++
		}
	}
	return count%2 == 0
}

func printable(b byte) bool {
	return b >= 0x20 && b <= 0x7E
}

// Decode renders a frame human-readable. It never fails: short or
// malformed frames degrade to a descriptive fallback. Returns "" for
// empty input.
func Decode(data []byte) string {
	if len(data) == 0 {
		return ""
	}

	cmd := data[0] & 0x7F

	if !printable(cmd) && cmd != '\r' && cmd != '\n' {
		// Not ASCII, show raw hex.
		var sb strings.Builder
		fmt.Fprintf(&sb, "RAW[%d]:", len(data))
		for _, b := range data {
			fmt.Fprintf(&sb, " %02x", b)
		}
		return sb.String()
	}

	switch cmd {
	case CmdVersion:
		return "CMD: VERSION request"

	case RespVersion:
		if len(data) > 2 {
			version := make([]byte, 0, len(data)-2)
			for _, b := range data[1 : len(data)-1] {
				version = append(version, b&0x7F)
			}
			return fmt.Sprintf("RESP: VERSION = %q", version)
		}
		return "RESP: VERSION (empty)"

	case CmdBoardState:
		return "CMD: BOARD STATE request"

	case RespBoard:
		return decodeBoardState(data)

	case CmdLEDSet:
		return decodeLED(data)

	case CmdLEDOff:
		return "CMD: ALL LEDs OFF"

	case CmdReset:
		return "CMD: RESET"

	case RespOK:
		return "RESP: ACK"

	case CmdBeep:
		return "CMD: BEEP"

	case CmdScanOn:
		return "CMD: SCAN ON (enable board scanning)"

	case CmdScanOff:
		return "CMD: SCAN OFF (disable board scanning)"
	}

	// Unknown command: show the command byte both ways and the whole
	// frame as ASCII with hex escapes.
	var sb strings.Builder
	if printable(cmd) {
		fmt.Fprintf(&sb, "CMD: '%c' (0x%02x) [", cmd, cmd)
	} else {
		fmt.Fprintf(&sb, "CMD: 0x%02x [", cmd)
	}
	for _, b := range data {
		if c := b & 0x7F; printable(c) {
			sb.WriteByte(c)
		} else {
			fmt.Fprintf(&sb, "\\x%02x", b)
		}
	}
	sb.WriteByte(']')
	return sb.String()
}

// decodeBoardState renders the 's' response as an 8x8 grid, rank 8 at the
// top. A full frame is exactly 66 bytes: 's' + 64 square chars + checksum.
func decodeBoardState(data []byte) string {
	if len(data) != 66 {
		return fmt.Sprintf("RESP: BOARD STATE (%d bytes, expected 66)", len(data))
	}

	var sb strings.Builder
	sb.WriteString("RESP: BOARD STATE\n")
	for rank := 7; rank >= 0; rank-- {
		fmt.Fprintf(&sb, "    %d: ", rank+1)
		for file := 0; file < 8; file++ {
			sq := data[rank*8+file+1] & 0x7F
			sb.WriteByte(sq)
			sb.WriteByte(' ')
		}
		sb.WriteByte('\n')
	}
	sb.WriteString("       a b c d e f g h")
	return sb.String()
}

// decodeLED renders the 'L' command. The board addresses LEDs on a 9x9
// corner grid, so file = square mod 9 and rank = square div 9; file 0 and
// anything past 8 have no algebraic name.
func decodeLED(data []byte) string {
	if len(data) < 3 {
		return "CMD: LED (incomplete)"
	}
	square := data[1] & 0x7F
	state := data[2] & 0x7F
	file := int(square % 9)
	rank := int(square / 9)
	fileChar := byte('?')
	if file >= 1 && file <= 8 {
		fileChar = byte('a' + file - 1)
	}
	return fmt.Sprintf("CMD: LED square=%d (%c%d) state=%c", square, fileChar, rank, state)
}
