package protocol

import (
	"strings"
	"testing"
)

func TestChecksum(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want byte
	}{
		{"empty", nil, 0x00},
		{"single byte", []byte{0x56}, 0x56},
		{"two bytes", []byte{0x56, 0x33}, 0x65},
		{"self cancelling", []byte{0xAA, 0xAA}, 0x00},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Checksum(tt.data); got != tt.want {
				t.Errorf("Checksum(% x) = %#02x, want %#02x", tt.data, got, tt.want)
			}
		})
	}
}

func TestValidChecksumShortInput(t *testing.T) {
	if ValidChecksum(nil) {
		t.Error("ValidChecksum(nil) = true, want false")
	}
	if ValidChecksum([]byte{}) {
		t.Error("ValidChecksum(empty) = true, want false")
	}
	if ValidChecksum([]byte{0x00}) {
		t.Error("ValidChecksum(1 byte) = true, want false")
	}
}

func TestValidChecksumRoundTrip(t *testing.T) {
	payloads := [][]byte{
		{0x56},
		{'V'},
		{'L', 0x0A, '1'},
		{0x00, 0xFF, 0x7F, 0x80},
	}

	for _, payload := range payloads {
		frame := append(append([]byte{}, payload...), Checksum(payload))
		if !ValidChecksum(frame) {
			t.Errorf("ValidChecksum(% x) = false, want true", frame)
			continue
		}

		// Any single bit flip, in payload or checksum, must invalidate.
		for i := range frame {
			for bit := 0; bit < 8; bit++ {
				flipped := append([]byte{}, frame...)
				flipped[i] ^= 1 << bit
				if ValidChecksum(flipped) {
					t.Errorf("ValidChecksum accepted frame % x with byte %d bit %d flipped", frame, i, bit)
				}
			}
		}
	}
}

func TestAddParity(t *testing.T) {
	// 'V' = 0x56 has four set bits -> parity bit stays clear.
	if got := AddParity('V'); got != 0x56 {
		t.Errorf("AddParity('V') = %#02x, want 0x56", got)
	}
	// 'S' = 0x53 has four set bits -> clear.
	if got := AddParity('S'); got != 0x53 {
		t.Errorf("AddParity('S') = %#02x, want 0x53", got)
	}
	// 'L' = 0x4C has three set bits -> parity bit set.
	if got := AddParity('L'); got != 0xCC {
		t.Errorf("AddParity('L') = %#02x, want 0xcc", got)
	}

	for b := 0; b < 128; b++ {
		if !CheckParity(AddParity(byte(b))) {
			t.Errorf("CheckParity(AddParity(%#02x)) = false, want true", b)
		}
	}
}

func TestDecodeEmpty(t *testing.T) {
	if got := Decode(nil); got != "" {
		t.Errorf("Decode(nil) = %q, want empty", got)
	}
}

func TestDecodeCommands(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"version request", []byte{'V', 0x56}, "CMD: VERSION request"},
		{"version request with parity", []byte{AddParity('V'), 0x56}, "CMD: VERSION request"},
		{"board state request", []byte{'S', 0x53}, "CMD: BOARD STATE request"},
		{"all leds off", []byte{'X', 0x58}, "CMD: ALL LEDs OFF"},
		{"reset", []byte{'R', 0x52}, "CMD: RESET"},
		{"ack", []byte{'r', 0x72}, "RESP: ACK"},
		{"beep", []byte{'B', 0x42}, "CMD: BEEP"},
		{"scan on", []byte{'W', 0x57}, "CMD: SCAN ON (enable board scanning)"},
		{"scan off", []byte{'I', 0x49}, "CMD: SCAN OFF (disable board scanning)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Decode(tt.data); got != tt.want {
				t.Errorf("Decode(% x) = %q, want %q", tt.data, got, tt.want)
			}
		})
	}
}

func TestDecodeVersionResponse(t *testing.T) {
	frame := []byte{'v'}
	for _, c := range []byte("1.23") {
		frame = append(frame, AddParity(c))
	}
	frame = append(frame, Checksum(frame))

	got := Decode(frame)
	want := `RESP: VERSION = "1.23"`
	if got != want {
		t.Errorf("Decode(version response) = %q, want %q", got, want)
	}

	if got := Decode([]byte{'v', 0x76}); got != "RESP: VERSION (empty)" {
		t.Errorf("Decode(empty version) = %q", got)
	}
}

func TestDecodeBoardStateGrid(t *testing.T) {
	frame := make([]byte, 0, 66)
	frame = append(frame, 's')
	// Standard starting position as the board reports it: index 0 is a1.
	layout := "RNBQKBNR" + "PPPPPPPP" + strings.Repeat(".", 32) + "pppppppp" + "rnbqkbnr"
	frame = append(frame, []byte(layout)...)
	frame = append(frame, Checksum(frame))
	if len(frame) != 66 {
		t.Fatalf("test frame is %d bytes, want 66", len(frame))
	}

	got := Decode(frame)
	lines := strings.Split(got, "\n")
	if len(lines) != 10 {
		t.Fatalf("board decode has %d lines, want 10:\n%s", len(lines), got)
	}
	if lines[0] != "RESP: BOARD STATE" {
		t.Errorf("first line = %q", lines[0])
	}
	// Ranks print top-down, 8 to 1.
	if lines[1] != "    8: r n b q k b n r " {
		t.Errorf("rank 8 line = %q", lines[1])
	}
	if lines[8] != "    1: R N B Q K B N R " {
		t.Errorf("rank 1 line = %q", lines[8])
	}
	if lines[9] != "       a b c d e f g h" {
		t.Errorf("file legend = %q", lines[9])
	}
}

func TestDecodeBoardStateWrongLength(t *testing.T) {
	// Any length other than 66 must never render the grid.
	for _, n := range []int{2, 10, 65, 67} {
		frame := make([]byte, n)
		frame[0] = 's'
		got := Decode(frame)
		want := "RESP: BOARD STATE (" // prefix of the fallback
		if !strings.HasPrefix(got, want) || strings.Contains(got, "\n") {
			t.Errorf("Decode(%d-byte 's' frame) = %q, want length fallback", n, got)
		}
		if !strings.Contains(got, "expected 66") {
			t.Errorf("fallback %q does not name the expected length", got)
		}
	}
}

func TestDecodeLED(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"incomplete one byte", []byte{'L'}, "CMD: LED (incomplete)"},
		{"incomplete two bytes", []byte{'L', 10}, "CMD: LED (incomplete)"},
		{"square 10 is a1", []byte{'L', 10, '1'}, "CMD: LED square=10 (a1) state=1"},
		{"square 20 is b2", []byte{'L', 20, '1'}, "CMD: LED square=20 (b2) state=1"},
		{"square 0 has no file", []byte{'L', 0, '0'}, "CMD: LED square=0 (?0) state=0"},
		{"square 9 has no file", []byte{'L', 9, '1'}, "CMD: LED square=9 (?1) state=1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Decode(tt.data); got != tt.want {
				t.Errorf("Decode(% x) = %q, want %q", tt.data, got, tt.want)
			}
		})
	}
}

func TestDecodeRawFallback(t *testing.T) {
	got := Decode([]byte{0x01, 0x02, 0xFF})
	want := "RAW[3]: 01 02 ff"
	if got != want {
		t.Errorf("Decode(non-ascii) = %q, want %q", got, want)
	}
}

func TestDecodeUnknownCommand(t *testing.T) {
	got := Decode([]byte{'Z', 'a', 0x01})
	want := "CMD: 'Z' (0x5a) [Za\\x01]"
	if got != want {
		t.Errorf("Decode(unknown cmd) = %q, want %q", got, want)
	}
}

func TestDirectionString(t *testing.T) {
	if got := DirAppToBoard.String(); got != "APP->BOARD" {
		t.Errorf("DirAppToBoard = %q", got)
	}
	if got := DirBoardToApp.String(); got != "BOARD->APP" {
		t.Errorf("DirBoardToApp = %q", got)
	}
}
