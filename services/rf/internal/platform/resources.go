// services/rf/internal/platform/resources.go
package platform

import "rf433-go/services/rf/halcore"

// Resources is everything the rf service needs from the board.
// Gen is nil when the board has no pulse generator.
type Resources struct {
	RX, TX   halcore.Pin
	Clock    halcore.Clock
	Timer    halcore.Timer
	Gen      halcore.PulseGenerator
	Critical halcore.CriticalSection
}
