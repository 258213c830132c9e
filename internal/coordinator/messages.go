package coordinator

import (
	"time"

	"vitalvest/internal/sensor"
	"vitalvest/internal/state"
)

// Command tags a tab may send. The wire names are the contract with the
// tab-side binding.
const (
	CmdStartWebSocket  = "START_WEBSOCKET"
	CmdStopWebSocket   = "STOP_WEBSOCKET"
	CmdStartAPIPolling = "START_API_POLLING"
	CmdStopAPIPolling  = "STOP_API_POLLING"
	CmdSetAuthToken    = "SET_AUTH_TOKEN"
	CmdGetState        = "GET_STATE"
	CmdPing            = "PING"
)

// Command is one tab request. Unknown types are ignored with a log line.
type Command struct {
	Type     string `json:"type"`
	Interval int    `json:"interval,omitempty"` // milliseconds, START_API_POLLING only
	Token    string `json:"token,omitempty"`    // SET_AUTH_TOKEN only
}

// Broadcast tags emitted by the coordinator.
const (
	MsgWorkerReady = "WORKER_READY"
	MsgWSStatus    = "WS_STATUS"
	MsgWSData      = "WS_DATA"
	MsgAPIData     = "API_DATA"
	MsgWSError     = "WS_ERROR"
	MsgAPIError    = "API_ERROR"
	MsgStateUpdate = "STATE_UPDATE"
	MsgPong        = "PONG"
)

// Broadcast is one coordinator-to-tab message. Exactly the fields relevant
// to the type are set; the rest are omitted from the JSON.
type Broadcast struct {
	Type      string                  `json:"type"`
	State     *StateSnapshot          `json:"state,omitempty"`
	Connected *bool                   `json:"connected,omitempty"`
	Data      *sensor.Reading         `json:"data,omitempty"`
	Stats     map[string]sensor.Stats `json:"stats,omitempty"`
	Timestamp *time.Time              `json:"timestamp,omitempty"`
	Error     string                  `json:"error,omitempty"`
}

// StateSnapshot is the coordinator's connection state as sent to tabs in
// WORKER_READY and STATE_UPDATE. The token itself never leaves the daemon;
// tabs only learn whether one is set.
type StateSnapshot struct {
	SocketStatus  state.SocketStatus `json:"socketStatus"`
	PollingActive bool               `json:"pollingActive"`
	IntervalMs    int                `json:"intervalMs"`
	HasToken      bool               `json:"hasToken"`
	Latest        *sensor.Reading    `json:"latestReading,omitempty"`
	LastUpdate    *time.Time         `json:"lastUpdateTimestamp,omitempty"`
	Tabs          int                `json:"tabs"`
	DemoMode      bool               `json:"demoMode"`
}
