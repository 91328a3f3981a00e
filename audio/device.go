package audio

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/term"
)

// ErrSelectionCancelled is returned when the user backs out of the
// microphone picker without choosing a device.
var ErrSelectionCancelled = errors.New("microphone selection cancelled")

type pickerKey int

const (
	keyNone pickerKey = iota
	keyUp
	keyDown
	keyConfirm
	keyCancel
	keyDigit
)

// SelectDevice prompts for the microphone to use for the session.
// With a single capture device there is nothing to choose, so it is
// returned directly.
func SelectDevice(ctx Context) (*DeviceInfo, error) {
	devices, err := ctx.Devices()
	if err != nil {
		return nil, fmt.Errorf("list capture devices: %w", err)
	}
	switch len(devices) {
	case 0:
		return nil, errors.New("no capture devices available")
	case 1:
		return &devices[0], nil
	}

	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("raw terminal mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	row := 0
	draw := func() {
		fmt.Print("\r\x1b[J")
		fmt.Print("Microphone for this session (arrows or 1-9, Enter to start, q to quit):\r\n\r\n")
		for i, d := range devices {
			marker := "  "
			if i == row {
				marker = "\x1b[1;32m> \x1b[0m"
			}
			note := ""
			if IsBluetooth(d.Name) {
				note = " \x1b[33m(bluetooth, adds capture latency)\x1b[0m"
			}
			fmt.Printf(" %s%d. %s%s\r\n", marker, i+1, d.Name, note)
		}
	}

	draw()
	buf := make([]byte, 3)
	for {
		n, err := os.Stdin.Read(buf)
		if err != nil {
			return nil, fmt.Errorf("read key: %w", err)
		}
		key, digitRow := decodeKey(buf[:n])
		switch key {
		case keyUp:
			if row > 0 {
				row--
			}
		case keyDown:
			if row < len(devices)-1 {
				row++
			}
		case keyDigit:
			if digitRow < len(devices) {
				fmt.Print("\r\n")
				return &devices[digitRow], nil
			}
		case keyConfirm:
			fmt.Print("\r\n")
			return &devices[row], nil
		case keyCancel:
			fmt.Print("\r\n")
			return nil, ErrSelectionCancelled
		}
		fmt.Printf("\x1b[%dA", len(devices)+2)
		draw()
	}
}

// decodeKey maps one raw stdin read to a picker action. For digits it
// also reports the zero-based row the digit names.
func decodeKey(b []byte) (pickerKey, int) {
	if len(b) == 3 && b[0] == 0x1b && b[1] == '[' {
		switch b[2] {
		case 'A':
			return keyUp, 0
		case 'B':
			return keyDown, 0
		}
		return keyNone, 0
	}
	if len(b) != 1 {
		return keyNone, 0
	}
	switch b[0] {
	case '\r':
		return keyConfirm, 0
	case 3, 0x1b, 'q': // Ctrl+C, Esc
		return keyCancel, 0
	case 'k':
		return keyUp, 0
	case 'j':
		return keyDown, 0
	}
	if b[0] >= '1' && b[0] <= '9' {
		return keyDigit, int(b[0] - '1')
	}
	return keyNone, 0
}
