// services/rf/internal/platform/boards.go
package platform

import "rf433-go/errcode"

// BoardPins names the radio data pins for one board.
type BoardPins struct {
	Board string
	RX    int // receiver data out -> MCU input
	TX    int // MCU output -> transmitter data in
}

var boards = map[string]BoardPins{
	"pico":  {Board: "pico", RX: 17, TX: 16},
	"pico2": {Board: "pico2", RX: 17, TX: 16},
	"esp32": {Board: "esp32", RX: 27, TX: 23},
}

// Boards known to lack a usable radio pin arrangement.
var unsupported = map[string]string{
	"esp8266":    "no timer callback path fast enough for capture",
	"esp32_lobo": "no pulse generator support",
}

// Pins returns the radio pins for board, with overrides applied when >= 0.
func Pins(board string, rxOverride, txOverride int) (BoardPins, error) {
	if why, ok := unsupported[board]; ok {
		return BoardPins{}, errcode.New(errcode.UnsupportedPlatform, "platform", board+": "+why)
	}
	bp, ok := boards[board]
	if !ok {
		return BoardPins{}, errcode.New(errcode.UnsupportedPlatform, "platform", "unknown board "+board)
	}
	if rxOverride >= 0 {
		bp.RX = rxOverride
	}
	if txOverride >= 0 {
		bp.TX = txOverride
	}
	return bp, nil
}
