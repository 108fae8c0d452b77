package types

// ---- Service state (retained on rf/status) ----

type Level string

const (
	LevelIdle     Level = "idle" // awaiting config
	LevelReady    Level = "ready"
	LevelLearning Level = "learning"
	LevelSending  Level = "sending"
	LevelError    Level = "error"
	LevelStopped  Level = "stopped"
)

type RFState struct {
	Level  Level  `json:"level"`
	Status string `json:"status"` // short machine-readable reason
	Keys   int    `json:"keys"`
	Error  string `json:"error,omitempty"`
	TS     int64  `json:"ts_ms"`
}

// ---- Requests ----

// KeyReq addresses one stored code (rf/learn, rf/delete, rf/show).
type KeyReq struct {
	Key string `json:"key"`
}

// SendReq is carried on rf/send.
type SendReq struct {
	Key      string `json:"key"`
	Blocking bool   `json:"blocking,omitempty"`
}

// PathReq is carried on rf/load and rf/save. An empty path means the
// configured store file.
type PathReq struct {
	Path string `json:"path,omitempty"`
}

// ---- Replies ----

type OKReply struct {
	OK bool `json:"ok"`
}

type ErrorReply struct {
	OK    bool   `json:"ok"`
	Code  string `json:"code"`
	Error string `json:"error"`
}

type KeysReply struct {
	OK   bool     `json:"ok"`
	Keys []string `json:"keys"`
}

type ShowReply struct {
	OK   bool     `json:"ok"`
	Key  string   `json:"key"`
	Code []uint32 `json:"code"`
}

type LatencyReply struct {
	OK        bool `json:"ok"`
	LatencyMS int  `json:"latency_ms"`
}

type SendReply struct {
	OK        bool `json:"ok"`
	Blocking  bool `json:"blocking"`
	LatencyMS int  `json:"latency_ms"` // time until the send is over
}

// LearnReport describes one capture; it is both the rf/learn reply body and
// the rf/event/learned event.
type LearnReport struct {
	OK        bool     `json:"ok"`
	Key       string   `json:"key"`
	Edges     int      `json:"edges"`
	Frames    int      `json:"frames"`
	FrameLen  int      `json:"frame_len"`
	Discarded int      `json:"discarded"`
	Averaged  int      `json:"averaged"`
	Threshold uint32   `json:"threshold_us"`
	Quality   float64  `json:"quality"`
	Code      []uint32 `json:"code,omitempty"`
}

// ---- Heartbeat ----

type Heartbeat struct {
	Seq    uint32 `json:"seq"`
	Uptime int64  `json:"uptime_s"`
}

// ---- Serial bridge (retained on bridge/state) ----

type LinkLevel string

const (
	LinkIdle     LinkLevel = "idle"
	LinkUp       LinkLevel = "up"
	LinkDegraded LinkLevel = "degraded"
	LinkError    LinkLevel = "error"
)

type BridgeState struct {
	Level     LinkLevel `json:"level"`
	Status    string    `json:"status"`
	Transport string    `json:"transport,omitempty"`
	Error     string    `json:"error,omitempty"`
	RetryMS   int64     `json:"retry_ms,omitempty"`
	TS        int64     `json:"ts_ms"`
}
