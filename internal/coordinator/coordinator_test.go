package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vitalvest/internal/backend"
	"vitalvest/internal/retry"
	"vitalvest/internal/sensor"
	"vitalvest/internal/state"
)

// fakeConn is a scriptable upstream connection.
type fakeConn struct {
	frames    chan []byte
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{frames: make(chan []byte, 16)}
}

func (f *fakeConn) Frames() <-chan []byte { return f.frames }

func (f *fakeConn) Close() error {
	f.closeOnce.Do(func() { close(f.frames) })
	return nil
}

// countingSource hands out fakeConns and records how many dials happened.
type countingSource struct {
	mu        sync.Mutex
	dials     int
	failAll   bool
	failFirst int // fail the first N dials
	conns     chan *fakeConn
}

func newCountingSource() *countingSource {
	return &countingSource{conns: make(chan *fakeConn, 16)}
}

func (s *countingSource) Connect(ctx context.Context) (FrameConn, error) {
	s.mu.Lock()
	s.dials++
	n := s.dials
	fail := s.failAll || n <= s.failFirst
	s.mu.Unlock()
	if fail {
		return nil, errors.New("dial refused")
	}
	conn := newFakeConn()
	s.conns <- conn
	return conn, nil
}

func (s *countingSource) dialCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dials
}

// stubAPI serves canned REST payloads with optional per-endpoint failures.
type stubAPI struct {
	mu       sync.Mutex
	fetches  int
	bmeErr   error
	gsrErr   error
	mlxErr   error
	mpuErr   error
	usersErr error
	token    string
}

func (s *stubAPI) SetToken(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

func (s *stubAPI) count() {
	s.mu.Lock()
	s.fetches++
	s.mu.Unlock()
}

func (s *stubAPI) fetchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches
}

func (s *stubAPI) FetchBME(ctx context.Context) ([]sensor.BMERecord, error) {
	s.count()
	if s.bmeErr != nil {
		return nil, s.bmeErr
	}
	return []sensor.BMERecord{{Temperatura: sensor.FloatOf(22.5), Humedad: sensor.FloatOf(40)}}, nil
}

func (s *stubAPI) FetchGSR(ctx context.Context) ([]sensor.GSRRecord, error) {
	s.count()
	if s.gsrErr != nil {
		return nil, s.gsrErr
	}
	return []sensor.GSRRecord{{Conductancia: sensor.FloatOf(0.8)}}, nil
}

func (s *stubAPI) FetchMLX(ctx context.Context) ([]sensor.MLXRecord, error) {
	s.count()
	if s.mlxErr != nil {
		return nil, s.mlxErr
	}
	return []sensor.MLXRecord{{TempObj: sensor.FloatOf(36.6)}}, nil
}

func (s *stubAPI) FetchMPU(ctx context.Context) ([]sensor.MPURecord, error) {
	s.count()
	if s.mpuErr != nil {
		return nil, s.mpuErr
	}
	return []sensor.MPURecord{{}}, nil
}

func (s *stubAPI) FetchUsers(ctx context.Context) ([]backend.User, error) {
	s.count()
	if s.usersErr != nil {
		return nil, s.usersErr
	}
	return []backend.User{{ID: 1, Username: "ana"}}, nil
}

type fixture struct {
	coord  *Coordinator
	api    *stubAPI
	source *countingSource
	dash   *state.DashState
	cancel context.CancelFunc
}

func newFixture(t *testing.T, policy retry.Policy) *fixture {
	t.Helper()
	api := &stubAPI{}
	source := newCountingSource()
	dash := state.New(50, "http://backend.test", filepath.Join(t.TempDir(), "state.json"), false)
	coord := New(api, source, policy, dash, nil, nil, false)
	ctx, cancel := context.WithCancel(context.Background())
	go coord.Run(ctx)
	t.Cleanup(cancel)
	return &fixture{coord: coord, api: api, source: source, dash: dash, cancel: cancel}
}

// recv reads the next broadcast from a port, failing the test on timeout or
// port close.
func recv(t *testing.T, p *Port, timeout time.Duration) Broadcast {
	t.Helper()
	select {
	case data, ok := <-p.Messages():
		require.True(t, ok, "port closed unexpectedly")
		var b Broadcast
		require.NoError(t, json.Unmarshal(data, &b))
		return b
	case <-time.After(timeout):
		t.Fatal("timed out waiting for broadcast")
		return Broadcast{}
	}
}

// waitFor discards broadcasts until one of the wanted type arrives.
func waitFor(t *testing.T, p *Port, msgType string) Broadcast {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case data, ok := <-p.Messages():
			require.True(t, ok, "port closed while waiting for %s", msgType)
			var b Broadcast
			require.NoError(t, json.Unmarshal(data, &b))
			if b.Type == msgType {
				return b
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", msgType)
		}
	}
}

func register(t *testing.T, f *fixture) *Port {
	t.Helper()
	p := NewPort()
	f.coord.Register(p)
	ready := recv(t, p, 2*time.Second)
	require.Equal(t, MsgWorkerReady, ready.Type)
	require.NotNil(t, ready.State)
	return p
}

func TestRegisterSendsWorkerReady(t *testing.T) {
	f := newFixture(t, retry.Default())
	p := register(t, f)
	_ = p
}

func TestSingleUpstreamConnection(t *testing.T) {
	f := newFixture(t, retry.Default())
	p1 := register(t, f)
	p2 := register(t, f)

	f.coord.Send(p1, Command{Type: CmdStartWebSocket})
	f.coord.Send(p2, Command{Type: CmdStartWebSocket})

	b1 := waitFor(t, p1, MsgWSStatus)
	b2 := waitFor(t, p2, MsgWSStatus)
	require.NotNil(t, b1.Connected)
	assert.True(t, *b1.Connected)
	require.NotNil(t, b2.Connected)
	assert.True(t, *b2.Connected)

	assert.Equal(t, 1, f.source.dialCount(), "two tabs must share one upstream socket")
}

func TestFanOutDeliversIdenticalReadings(t *testing.T) {
	f := newFixture(t, retry.Default())
	p1 := register(t, f)
	p2 := register(t, f)

	f.coord.Send(p1, Command{Type: CmdStartWebSocket})
	waitFor(t, p1, MsgWSStatus)
	waitFor(t, p2, MsgWSStatus)
	conn := <-f.source.conns

	conn.frames <- []byte(`{"bme280":{"temperatura":22.5,"humedad":41}}`)

	b1 := waitFor(t, p1, MsgWSData)
	b2 := waitFor(t, p2, MsgWSData)
	require.NotNil(t, b1.Data)
	require.NotNil(t, b2.Data)
	require.NotNil(t, b1.Data.Ambient.Temperature)
	assert.Equal(t, 22.5, *b1.Data.Ambient.Temperature)
	assert.Equal(t, *b1.Data.Ambient.Temperature, *b2.Data.Ambient.Temperature)
	assert.Equal(t, *b1.Data.Ambient.Humidity, *b2.Data.Ambient.Humidity)
	assert.Nil(t, b1.Data.Ambient.Pressure)
}

func TestMalformedFrameIsDroppedNotFatal(t *testing.T) {
	f := newFixture(t, retry.Default())
	p := register(t, f)

	f.coord.Send(p, Command{Type: CmdStartWebSocket})
	waitFor(t, p, MsgWSStatus)
	conn := <-f.source.conns

	conn.frames <- []byte(`{"bme280":{"temperatura":20}}`)
	first := waitFor(t, p, MsgWSData)
	require.NotNil(t, first.Data.Ambient.Temperature)
	assert.Equal(t, 20.0, *first.Data.Ambient.Temperature)

	conn.frames <- []byte(`this is not json`)
	time.Sleep(100 * time.Millisecond)
	snap := f.dash.Snapshot()
	require.NotNil(t, snap.Latest)
	require.NotNil(t, snap.Latest.Ambient.Temperature)
	assert.Equal(t, 20.0, *snap.Latest.Ambient.Temperature, "garbage frame must not alter the latest reading")

	conn.frames <- []byte(`{"bme280":{"temperatura":21}}`)

	next := waitFor(t, p, MsgWSData)
	require.NotNil(t, next.Data.Ambient.Temperature)
	assert.Equal(t, 21.0, *next.Data.Ambient.Temperature, "garbage frame must not produce a broadcast")
}

func TestTabLeavingDoesNotStopDeliveryToOthers(t *testing.T) {
	f := newFixture(t, retry.Default())
	pa := register(t, f)
	pb := register(t, f)

	f.coord.Send(pa, Command{Type: CmdStartWebSocket})
	waitFor(t, pa, MsgWSStatus)
	waitFor(t, pb, MsgWSStatus)
	conn := <-f.source.conns

	f.coord.Unregister(pa)
	conn.frames <- []byte(`{"bme280":{"temperatura":23}}`)

	b := waitFor(t, pb, MsgWSData)
	require.NotNil(t, b.Data.Ambient.Temperature)
	assert.Equal(t, 23.0, *b.Data.Ambient.Temperature)
}

func TestStartSocketIsIdempotent(t *testing.T) {
	f := newFixture(t, retry.Default())
	p := register(t, f)

	f.coord.Send(p, Command{Type: CmdStartWebSocket})
	f.coord.Send(p, Command{Type: CmdStartWebSocket})
	f.coord.Send(p, Command{Type: CmdStartWebSocket})
	waitFor(t, p, MsgWSStatus)

	assert.Equal(t, 1, f.source.dialCount())

	// Stopping twice is harmless too.
	f.coord.Send(p, Command{Type: CmdStopWebSocket})
	f.coord.Send(p, Command{Type: CmdStopWebSocket})
	b := waitFor(t, p, MsgWSStatus)
	require.NotNil(t, b.Connected)
	assert.False(t, *b.Connected)

	// And the socket restarts cleanly after a user stop.
	f.coord.Send(p, Command{Type: CmdStartWebSocket})
	b = waitFor(t, p, MsgWSStatus)
	assert.True(t, *b.Connected)
	assert.Equal(t, 2, f.source.dialCount())
}

func TestPollingWithoutTokenIsSkipped(t *testing.T) {
	f := newFixture(t, retry.Default())
	p := register(t, f)

	f.coord.Send(p, Command{Type: CmdStartAPIPolling, Interval: 30})
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 0, f.api.fetchCount(), "cycles without a token must not hit the backend")

	f.coord.Send(p, Command{Type: CmdSetAuthToken, Token: "tok-123"})
	b := waitFor(t, p, MsgAPIData)
	require.NotNil(t, b.Data)
	require.NotNil(t, b.Data.Ambient.Temperature)
	assert.Equal(t, 22.5, *b.Data.Ambient.Temperature)
	assert.NotEmpty(t, b.Stats)
}

func TestPartialEndpointFailureDegradesToNull(t *testing.T) {
	f := newFixture(t, retry.Default())
	f.api.gsrErr = errors.New("boom")
	p := register(t, f)

	f.coord.Send(p, Command{Type: CmdSetAuthToken, Token: "tok"})
	f.coord.Send(p, Command{Type: CmdStartAPIPolling, Interval: 10000})

	b := waitFor(t, p, MsgAPIData)
	require.NotNil(t, b.Data)
	assert.Nil(t, b.Data.Hydration.Conductance, "failed endpoint becomes null")
	require.NotNil(t, b.Data.Ambient.Temperature)
	assert.Equal(t, 22.5, *b.Data.Ambient.Temperature, "healthy endpoints still deliver")
}

func TestAllEndpointsFailingBroadcastsAPIError(t *testing.T) {
	f := newFixture(t, retry.Default())
	boom := errors.New("backend down")
	f.api.bmeErr, f.api.gsrErr, f.api.mlxErr, f.api.mpuErr, f.api.usersErr = boom, boom, boom, boom, boom
	p := register(t, f)

	f.coord.Send(p, Command{Type: CmdSetAuthToken, Token: "tok"})
	f.coord.Send(p, Command{Type: CmdStartAPIPolling, Interval: 10000})

	b := waitFor(t, p, MsgAPIError)
	assert.Contains(t, b.Error, "backend down")
}

func TestStartPollingIsIdempotent(t *testing.T) {
	f := newFixture(t, retry.Default())
	p := register(t, f)
	f.coord.Send(p, Command{Type: CmdSetAuthToken, Token: "tok"})

	f.coord.Send(p, Command{Type: CmdStartAPIPolling, Interval: 10000})
	f.coord.Send(p, Command{Type: CmdStartAPIPolling, Interval: 10000})
	waitFor(t, p, MsgAPIData)
	time.Sleep(100 * time.Millisecond)

	// One immediate cycle of five endpoints, no second timer.
	assert.Equal(t, 5, f.api.fetchCount())

	f.coord.Send(p, Command{Type: CmdStopAPIPolling})
	f.coord.Send(p, Command{Type: CmdStopAPIPolling})
	f.coord.Send(p, Command{Type: CmdGetState})
	st := waitFor(t, p, MsgStateUpdate)
	assert.False(t, st.State.PollingActive)
}

func TestReconnectAfterDrop(t *testing.T) {
	f := newFixture(t, retry.Policy{MaxAttempts: 3, Delay: 20 * time.Millisecond})
	p := register(t, f)

	f.coord.Send(p, Command{Type: CmdStartWebSocket})
	waitFor(t, p, MsgWSStatus)
	conn := <-f.source.conns

	// Server-side drop.
	conn.Close()
	down := waitFor(t, p, MsgWSStatus)
	require.NotNil(t, down.Connected)
	assert.False(t, *down.Connected)

	up := waitFor(t, p, MsgWSStatus)
	require.NotNil(t, up.Connected)
	assert.True(t, *up.Connected, "coordinator must redial after a drop")
	assert.Equal(t, 2, f.source.dialCount())
}

func TestReconnectGivesUpAfterMaxAttempts(t *testing.T) {
	f := newFixture(t, retry.Policy{MaxAttempts: 2, Delay: 10 * time.Millisecond})
	f.source.failAll = true
	p := register(t, f)

	f.coord.Send(p, Command{Type: CmdStartWebSocket})
	b := waitFor(t, p, MsgWSError)
	assert.Contains(t, b.Error, "giving up")
	// Initial dial plus two retries.
	assert.Equal(t, 3, f.source.dialCount())
}

func TestUserStopCancelsReconnect(t *testing.T) {
	f := newFixture(t, retry.Policy{MaxAttempts: 5, Delay: 300 * time.Millisecond})
	p := register(t, f)

	f.coord.Send(p, Command{Type: CmdStartWebSocket})
	waitFor(t, p, MsgWSStatus)
	conn := <-f.source.conns

	conn.Close()
	waitFor(t, p, MsgWSStatus) // disconnected
	f.coord.Send(p, Command{Type: CmdStopWebSocket})

	time.Sleep(450 * time.Millisecond)
	assert.Equal(t, 1, f.source.dialCount(), "explicit stop must cancel pending reconnects")
}

func TestGetStateAnswersOnlyRequester(t *testing.T) {
	f := newFixture(t, retry.Default())
	p1 := register(t, f)
	p2 := register(t, f)

	f.coord.Send(p1, Command{Type: CmdSetAuthToken, Token: "secret-token"})
	f.coord.Send(p1, Command{Type: CmdGetState})
	st := waitFor(t, p1, MsgStateUpdate)
	require.NotNil(t, st.State)
	assert.True(t, st.State.HasToken)
	assert.Equal(t, 2, st.State.Tabs)

	// The raw token never appears on the wire.
	f.coord.Send(p1, Command{Type: CmdGetState})
	data := <-p1.Messages()
	assert.NotContains(t, string(data), "secret-token")

	select {
	case msg := <-p2.Messages():
		var b Broadcast
		require.NoError(t, json.Unmarshal(msg, &b))
		t.Fatalf("other tab received %s reply meant for requester", b.Type)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestPingPong(t *testing.T) {
	f := newFixture(t, retry.Default())
	p := register(t, f)
	f.coord.Send(p, Command{Type: CmdPing})
	b := recv(t, p, 2*time.Second)
	assert.Equal(t, MsgPong, b.Type)
}

func TestSlowTabIsDroppedOthersKeepReceiving(t *testing.T) {
	f := newFixture(t, retry.Default())
	slow := register(t, f)
	fast := register(t, f)

	f.coord.Send(slow, Command{Type: CmdStartWebSocket})
	waitFor(t, fast, MsgWSStatus)
	conn := <-f.source.conns

	// Never read from slow; its buffer fills and it gets evicted.
	for i := 0; i < portBuffer+8; i++ {
		conn.frames <- []byte(`{"bme280":{"temperatura":20}}`)
		waitFor(t, fast, MsgWSData)
	}

	conn.frames <- []byte(`{"bme280":{"temperatura":25}}`)
	b := waitFor(t, fast, MsgWSData)
	require.NotNil(t, b.Data.Ambient.Temperature)
	assert.Equal(t, 25.0, *b.Data.Ambient.Temperature, "one stalled tab must not block the rest")

	// The slow port's channel ends up closed.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-slow.Messages():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("slow port was never closed")
		}
	}
}

func TestUnknownCommandIgnored(t *testing.T) {
	f := newFixture(t, retry.Default())
	p := register(t, f)
	f.coord.Send(p, Command{Type: "MAKE_COFFEE"})
	f.coord.Send(p, Command{Type: CmdPing})
	b := recv(t, p, 2*time.Second)
	assert.Equal(t, MsgPong, b.Type)
}

func TestDashboardStateMirrorsConnection(t *testing.T) {
	f := newFixture(t, retry.Default())
	p := register(t, f)

	f.coord.Send(p, Command{Type: CmdStartWebSocket})
	waitFor(t, p, MsgWSStatus)
	conn := <-f.source.conns
	conn.frames <- []byte(`{"bme280":{"temperatura":19.5}}`)
	waitFor(t, p, MsgWSData)

	snap := f.dash.Snapshot()
	assert.Equal(t, state.SocketConnected, snap.SocketStatus)
	require.NotNil(t, snap.Latest)
	require.NotNil(t, snap.Latest.Ambient.Temperature)
	assert.Equal(t, 19.5, *snap.Latest.Ambient.Temperature)
}
