// Package coordinator is the single authority for network connectivity to
// the vest backend. One coordinator goroutine owns at most one upstream
// WebSocket and at most one REST polling loop, no matter how many browser
// tabs are open, and fans every inbound reading out to all registered tab
// ports. All state mutation happens inside the run loop; the outside world
// talks to it exclusively through channels.
package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"vitalvest/internal/backend"
	"vitalvest/internal/metrics"
	"vitalvest/internal/retry"
	"vitalvest/internal/sensor"
	"vitalvest/internal/state"
)

const defaultIntervalMs = 5000

// SensorAPI is the slice of the backend client the poll cycle needs.
type SensorAPI interface {
	SetToken(token string)
	FetchBME(ctx context.Context) ([]sensor.BMERecord, error)
	FetchGSR(ctx context.Context) ([]sensor.GSRRecord, error)
	FetchMLX(ctx context.Context) ([]sensor.MLXRecord, error)
	FetchMPU(ctx context.Context) ([]sensor.MPURecord, error)
	FetchUsers(ctx context.Context) ([]backend.User, error)
}

// FrameConn is one live upstream frame connection.
type FrameConn interface {
	Frames() <-chan []byte
	Close() error
}

// FrameSource opens upstream frame connections. The real implementation
// dials the backend WebSocket; the demo source synthesises frames.
type FrameSource interface {
	Connect(ctx context.Context) (FrameConn, error)
}

// SourceFunc adapts a connect function to a FrameSource.
type SourceFunc func(ctx context.Context) (FrameConn, error)

// Connect implements FrameSource.
func (f SourceFunc) Connect(ctx context.Context) (FrameConn, error) {
	return f(ctx)
}

// Recorder persists applied readings. May be left nil.
type Recorder interface {
	Record(ctx context.Context, r sensor.Reading, source string) error
}

// portCommand pairs a command with the port that sent it (nil for commands
// issued by the daemon itself).
type portCommand struct {
	port *Port
	cmd  Command
}

// Internal events, produced by socket and poll goroutines and consumed by
// the run loop. Each socket event carries the generation it belongs to so
// events from a torn-down socket are ignored.
type socketOpened struct {
	gen  int
	conn FrameConn
}

type socketDialFailed struct {
	gen int
	err error
}

type socketFrame struct {
	gen  int
	data []byte
}

type socketClosed struct {
	gen int
}

type pollDone struct {
	snap      sensor.Snapshot
	users     []backend.User
	failures  []string
	attempted int
	at        time.Time
}

// Coordinator is the shared connection process. Create with New, then call
// Run in its own goroutine.
type Coordinator struct {
	api      SensorAPI
	source   FrameSource
	policy   retry.Policy
	dash     *state.DashState
	recorder Recorder
	met      *metrics.Metrics
	demoMode bool

	register   chan *Port
	unregister chan *Port
	commands   chan portCommand
	events     chan any

	// Everything below is owned by the run loop. No mutex: mutation by
	// message is the only discipline.
	ctx          context.Context
	ports        map[*Port]bool
	socketStatus state.SocketStatus
	sockGen      int
	sockCancel   context.CancelFunc
	userStopped  bool
	attempts     int
	reconTimer   *time.Timer
	reconnectC   <-chan time.Time

	pollingActive bool
	intervalMs    int
	ticker        *time.Ticker
	tickC         <-chan time.Time

	authToken  string
	latest     *sensor.Reading
	lastUpdate time.Time
}

// New wires a coordinator. recorder and met may be nil.
func New(api SensorAPI, source FrameSource, policy retry.Policy, dash *state.DashState, recorder Recorder, met *metrics.Metrics, demoMode bool) *Coordinator {
	return &Coordinator{
		api:          api,
		source:       source,
		policy:       policy,
		dash:         dash,
		recorder:     recorder,
		met:          met,
		demoMode:     demoMode,
		register:     make(chan *Port, 8),
		unregister:   make(chan *Port, 8),
		commands:     make(chan portCommand, 64),
		events:       make(chan any, 64),
		ports:        make(map[*Port]bool),
		socketStatus: state.SocketDisconnected,
		intervalMs:   defaultIntervalMs,
	}
}

// Register adds a port. The port immediately receives a WORKER_READY
// broadcast with the full current connection state.
func (c *Coordinator) Register(p *Port) {
	c.register <- p
}

// Unregister removes a port. Idempotent; unknown ports are ignored.
func (c *Coordinator) Unregister(p *Port) {
	c.unregister <- p
}

// Send enqueues a command. port may be nil for commands issued by the
// daemon itself (login handler, config page); replies to nil ports go to
// every registered port.
func (c *Coordinator) Send(port *Port, cmd Command) {
	c.commands <- portCommand{port: port, cmd: cmd}
}

// Run processes messages until ctx is cancelled. It never panics out: every
// network failure becomes a broadcast or a log line.
func (c *Coordinator) Run(ctx context.Context) {
	c.ctx = ctx
	slog.Info("Coordinator started", "component", "Coordinator", "demo", c.demoMode)

	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return
		case p := <-c.register:
			c.handleRegister(p)
		case p := <-c.unregister:
			c.dropPort(p)
		case pc := <-c.commands:
			c.handleCommand(pc)
		case ev := <-c.events:
			c.handleEvent(ev)
		case <-c.tickC:
			c.runPollCycle()
		case <-c.reconnectC:
			c.reconnectC = nil
			if c.socketStatus == state.SocketDisconnected {
				c.met.SocketReconnect()
				c.dial()
			}
		}
	}
}

func (c *Coordinator) shutdown() {
	if c.ticker != nil {
		c.ticker.Stop()
	}
	if c.sockCancel != nil {
		c.sockCancel()
	}
	if c.reconTimer != nil {
		c.reconTimer.Stop()
	}
	for p := range c.ports {
		delete(c.ports, p)
		close(p.send)
	}
	slog.Info("Coordinator stopped", "component", "Coordinator")
}

// ============================================================
// Ports and fan-out
// ============================================================

func (c *Coordinator) handleRegister(p *Port) {
	c.ports[p] = true
	c.met.SetTabs(len(c.ports))
	slog.Debug("Port registered", "component", "Coordinator", "port", p.ID, "tabs", len(c.ports))
	c.replyTo(p, Broadcast{Type: MsgWorkerReady, State: c.snapshot()})
}

func (c *Coordinator) dropPort(p *Port) {
	if !c.ports[p] {
		return
	}
	delete(c.ports, p)
	close(p.send)
	c.met.SetTabs(len(c.ports))
	slog.Debug("Port dropped", "component", "Coordinator", "port", p.ID, "tabs", len(c.ports))
}

// broadcast sends one message to every port. A port whose buffer is full is
// dropped; one bad port never blocks delivery to the others.
func (c *Coordinator) broadcast(b Broadcast) {
	data, err := json.Marshal(b)
	if err != nil {
		slog.Error("Marshal broadcast failed", "component", "Coordinator", "error", err)
		return
	}
	c.met.Broadcast(b.Type)
	for p := range c.ports {
		if !p.deliver(data) {
			slog.Warn("Port buffer full, dropping tab", "component", "Coordinator", "port", p.ID)
			c.dropPort(p)
		}
	}
}

// replyTo sends one message to a single port, or to everyone when the
// command came from the daemon itself.
func (c *Coordinator) replyTo(p *Port, b Broadcast) {
	if p == nil {
		c.broadcast(b)
		return
	}
	data, err := json.Marshal(b)
	if err != nil {
		return
	}
	c.met.Broadcast(b.Type)
	if !p.deliver(data) {
		c.dropPort(p)
	}
}

func (c *Coordinator) snapshot() *StateSnapshot {
	s := &StateSnapshot{
		SocketStatus:  c.socketStatus,
		PollingActive: c.pollingActive,
		IntervalMs:    c.intervalMs,
		HasToken:      c.authToken != "",
		Latest:        c.latest,
		Tabs:          len(c.ports),
		DemoMode:      c.demoMode,
	}
	if !c.lastUpdate.IsZero() {
		t := c.lastUpdate
		s.LastUpdate = &t
	}
	return s
}

// ============================================================
// Commands
// ============================================================

func (c *Coordinator) handleCommand(pc portCommand) {
	switch pc.cmd.Type {
	case CmdStartWebSocket:
		c.startSocket()
	case CmdStopWebSocket:
		c.stopSocket()
	case CmdStartAPIPolling:
		c.startPolling(pc.cmd.Interval)
	case CmdStopAPIPolling:
		c.stopPolling()
	case CmdSetAuthToken:
		c.authToken = pc.cmd.Token
		c.api.SetToken(pc.cmd.Token)
		slog.Info("Auth token updated", "component", "Coordinator", "hasToken", pc.cmd.Token != "")
	case CmdGetState:
		c.replyTo(pc.port, Broadcast{Type: MsgStateUpdate, State: c.snapshot()})
	case CmdPing:
		c.replyTo(pc.port, Broadcast{Type: MsgPong})
	default:
		slog.Warn("Unknown command ignored", "component", "Coordinator", "type", pc.cmd.Type)
	}
}

// ============================================================
// Upstream socket
// ============================================================

func (c *Coordinator) startSocket() {
	if c.socketStatus != state.SocketDisconnected {
		return // already connecting or connected
	}
	// An explicit start supersedes any scheduled reconnect.
	if c.reconTimer != nil {
		c.reconTimer.Stop()
		c.reconTimer = nil
		c.reconnectC = nil
	}
	c.userStopped = false
	c.attempts = 0
	c.dial()
}

func (c *Coordinator) dial() {
	c.setSocketStatus(state.SocketConnecting)
	c.sockGen++
	gen := c.sockGen

	ctx, cancel := context.WithCancel(c.ctx)
	c.sockCancel = cancel

	go func() {
		conn, err := c.source.Connect(ctx)
		if err != nil {
			c.events <- socketDialFailed{gen: gen, err: err}
			return
		}
		c.events <- socketOpened{gen: gen, conn: conn}
		for data := range conn.Frames() {
			c.events <- socketFrame{gen: gen, data: data}
		}
		c.events <- socketClosed{gen: gen}
	}()
}

func (c *Coordinator) stopSocket() {
	c.userStopped = true
	if c.reconTimer != nil {
		c.reconTimer.Stop()
		c.reconTimer = nil
		c.reconnectC = nil
	}
	if c.socketStatus == state.SocketDisconnected {
		return
	}
	// Invalidate in-flight events from the old socket.
	c.sockGen++
	if c.sockCancel != nil {
		c.sockCancel()
		c.sockCancel = nil
	}
	wasConnected := c.socketStatus == state.SocketConnected
	c.setSocketStatus(state.SocketDisconnected)
	if wasConnected {
		c.broadcast(Broadcast{Type: MsgWSStatus, Connected: boolPtr(false)})
	}
}

func (c *Coordinator) handleEvent(ev any) {
	switch e := ev.(type) {
	case socketOpened:
		if e.gen != c.sockGen {
			e.conn.Close()
			return
		}
		c.attempts = 0
		c.setSocketStatus(state.SocketConnected)
		c.broadcast(Broadcast{Type: MsgWSStatus, Connected: boolPtr(true)})
	case socketDialFailed:
		if e.gen != c.sockGen {
			return
		}
		slog.Warn("Upstream dial failed", "component", "Coordinator", "error", e.err)
		c.handleSocketDown()
	case socketFrame:
		if e.gen != c.sockGen {
			return
		}
		c.handleFrame(e.data)
	case socketClosed:
		if e.gen != c.sockGen {
			return
		}
		c.handleSocketDown()
	case pollDone:
		c.handlePollDone(e)
	}
}

// handleSocketDown runs reconnect policy after a drop or failed dial. The
// coordinator owns retry: bounded fixed-delay attempts, uniform for every
// tab, reset on success.
func (c *Coordinator) handleSocketDown() {
	wasConnected := c.socketStatus == state.SocketConnected
	c.setSocketStatus(state.SocketDisconnected)
	if c.sockCancel != nil {
		c.sockCancel()
		c.sockCancel = nil
	}
	if wasConnected {
		c.broadcast(Broadcast{Type: MsgWSStatus, Connected: boolPtr(false)})
	}
	if c.userStopped {
		return
	}

	d := c.policy.Decide(c.attempts)
	if !d.Retry {
		msg := fmt.Sprintf("upstream socket lost, giving up after %d attempts", c.attempts)
		slog.Error("Reconnect attempts exhausted", "component", "Coordinator", "attempts", c.attempts)
		c.dash.AddLog("ERROR", "Coordinator", msg)
		c.broadcast(Broadcast{Type: MsgWSError, Error: msg})
		c.attempts = 0
		return
	}
	c.attempts++
	slog.Info("Scheduling reconnect", "component", "Coordinator", "attempt", c.attempts, "delay", d.Delay)
	c.reconTimer = time.NewTimer(d.Delay)
	c.reconnectC = c.reconTimer.C
}

// handleFrame normalizes one inbound stream frame. Malformed frames are
// logged and dropped: no broadcast, no change to the latest reading.
func (c *Coordinator) handleFrame(data []byte) {
	now := time.Now().UTC()
	r, err := sensor.NormalizeStream(data, now)
	if err != nil {
		slog.Warn("Dropping malformed frame", "component", "Coordinator", "error", err)
		c.met.DroppedFrame()
		return
	}
	c.applyReading(r, nil, c.streamSourceLabel())
	c.broadcast(Broadcast{Type: MsgWSData, Data: &r, Timestamp: &now})
}

func (c *Coordinator) streamSourceLabel() string {
	if c.demoMode {
		return "demo"
	}
	return "stream"
}

// applyReading updates the latest snapshot, mirrors it into dashboard state
// and persists it.
func (c *Coordinator) applyReading(r sensor.Reading, stats map[string]sensor.Stats, source string) {
	c.latest = &r
	c.lastUpdate = r.SourceTimestamp
	c.dash.SetLatest(r, stats, r.SourceTimestamp)
	c.met.ReadingApplied(float64(r.SourceTimestamp.Unix()))
	if c.recorder != nil {
		if err := c.recorder.Record(c.ctx, r, source); err != nil {
			slog.Warn("Recording reading failed", "component", "Coordinator", "error", err)
		}
	}
}

func (c *Coordinator) setSocketStatus(st state.SocketStatus) {
	c.socketStatus = st
	c.dash.SetSocketStatus(st)
}

// ============================================================
// Polling
// ============================================================

func (c *Coordinator) startPolling(intervalMs int) {
	if c.pollingActive {
		return // no double timers
	}
	if intervalMs <= 0 {
		intervalMs = defaultIntervalMs
	}
	c.pollingActive = true
	c.intervalMs = intervalMs
	c.ticker = time.NewTicker(time.Duration(intervalMs) * time.Millisecond)
	c.tickC = c.ticker.C
	c.dash.SetPolling(true, intervalMs)
	slog.Info("Polling started", "component", "Coordinator", "intervalMs", intervalMs)
	c.runPollCycle()
}

func (c *Coordinator) stopPolling() {
	if !c.pollingActive {
		return
	}
	c.ticker.Stop()
	c.ticker = nil
	c.tickC = nil
	c.pollingActive = false
	c.dash.SetPolling(false, 0)
	slog.Info("Polling stopped", "component", "Coordinator")
}

// runPollCycle launches one fetch cycle. Without a token the cycle is a
// silent no-op tick, not an error. Ticks are independent: a slow cycle does
// not delay or cancel the next one.
func (c *Coordinator) runPollCycle() {
	if c.authToken == "" {
		slog.Debug("Poll tick skipped, no auth token yet", "component", "Coordinator")
		c.met.PollCycle("skipped")
		return
	}
	go func() {
		c.events <- fetchAll(c.ctx, c.api, time.Now().UTC())
	}()
}

func (c *Coordinator) handlePollDone(e pollDone) {
	if len(e.failures) == e.attempted {
		detail := strings.Join(e.failures, "; ")
		slog.Error("Poll cycle failed on every endpoint", "component", "Coordinator", "detail", detail)
		c.dash.AddLog("ERROR", "Polling", detail)
		c.broadcast(Broadcast{Type: MsgAPIError, Error: detail})
		c.met.PollCycle("failed")
		return
	}
	if len(e.failures) > 0 {
		// Partial failure degrades those sensors to null, nothing more.
		slog.Warn("Poll cycle partially failed", "component", "Coordinator", "detail", strings.Join(e.failures, "; "))
		c.met.PollCycle("partial")
	} else {
		c.met.PollCycle("ok")
	}
	slog.Debug("Poll cycle complete", "component", "Coordinator", "failures", len(e.failures), "users", len(e.users))
	c.applyReading(e.snap.Reading, e.snap.Stats, "poll")
	c.broadcast(Broadcast{
		Type:      MsgAPIData,
		Data:      &e.snap.Reading,
		Stats:     e.snap.Stats,
		Timestamp: &e.at,
	})
}

func boolPtr(b bool) *bool {
	return &b
}
