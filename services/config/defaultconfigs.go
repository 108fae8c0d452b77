package config

// -----------------------------------------------------------------------------
// Embedded configuration
//
// Key: board name (same value placed in ctx under CtxDeviceKey)
// Val: raw JSON bytes for that board
// -----------------------------------------------------------------------------

const cfgPico = `{
  "rf": {
    "board": "pico",
    "nedges": 800,
    "reps": 5,
    "strategy": "chain",
    "timeout_us": 5000000
  },
  "heartbeat": {
    "interval": 10
  },
  "bridge": {
    "transport": {
      "type": "uart",
      "uart": {"baud": 115200, "tx_pin": 4, "rx_pin": 5}
    },
    "request_timeout_ms": 30000,
    "forward": ["rf/status", "rf/event/#"]
  }
}`

const cfgPico2 = `{
  "rf": {
    "board": "pico2",
    "nedges": 800,
    "reps": 5,
    "strategy": "chain",
    "timeout_us": 5000000
  },
  "heartbeat": {
    "interval": 10
  },
  "bridge": {
    "transport": {
      "type": "uart",
      "uart": {"baud": 115200, "tx_pin": 4, "rx_pin": 5}
    },
    "request_timeout_ms": 30000,
    "forward": ["rf/status", "rf/event/#"]
  }
}`

const cfgHost = `{
  "rf": {
    "board": "pico",
    "reps": 5,
    "strategy": "chain",
    "store": "rf_codes.json",
    "timeout_us": 2000000
  },
  "heartbeat": {
    "interval": 5
  }
}`

var embeddedConfigs = map[string][]byte{
	"pico":  []byte(cfgPico),
	"pico2": []byte(cfgPico2),
	"host":  []byte(cfgHost),
}
