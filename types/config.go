package types

// RFConfig is supplied on topic "config/rf". Pin numbers below zero select
// the board default.
type RFConfig struct {
	Board     string `json:"board"`
	RXPin     int    `json:"rx_pin"`
	TXPin     int    `json:"tx_pin"`
	NEdges    int    `json:"nedges,omitempty"`
	Reps      int    `json:"reps,omitempty"`
	ActiveLow bool   `json:"active_low,omitempty"`
	Strategy  string `json:"strategy,omitempty"` // chain | generator | blocking
	Store     string `json:"store,omitempty"`    // codes file; empty keeps codes in memory
	TimeoutUS uint32 `json:"timeout_us,omitempty"`
}

// HeartbeatConfig is supplied on topic "config/heartbeat".
type HeartbeatConfig struct {
	Interval float64 `json:"interval"` // seconds
}
