package state

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vitalvest/internal/backend"
	"vitalvest/internal/sensor"
)

func TestAuthPersistsAcrossRestart(t *testing.T) {
	file := filepath.Join(t.TempDir(), "state.json")

	s := New(100, "http://backend", file, false)
	s.SetAuth("tok-1", &backend.User{ID: 1, Username: "juan"})

	reloaded := New(100, "http://backend", file, false)
	assert.True(t, reloaded.IsAuthenticated())
	assert.Equal(t, "tok-1", reloaded.AuthToken())
	require.NotNil(t, reloaded.User())
	assert.Equal(t, "juan", reloaded.User().Username)

	reloaded.ClearAuth()
	again := New(100, "http://backend", file, false)
	assert.False(t, again.IsAuthenticated())
	assert.Empty(t, again.AuthToken())
}

func TestSnapshotOmitsToken(t *testing.T) {
	s := New(100, "http://backend", "", false)
	s.SetAuth("secret", &backend.User{ID: 2, Username: "ana"})

	snap := s.Snapshot()
	assert.True(t, snap.IsAuthenticated)
	require.NotNil(t, snap.User)
	assert.Equal(t, "ana", snap.User.Username)
	// SnapshotData has no token field by construction; spot-check the user
	// record carries none either.
	assert.Empty(t, snap.User.Token)
}

func TestLogRingTrims(t *testing.T) {
	s := New(3, "http://backend", "", false)
	for i := 0; i < 5; i++ {
		s.AddLog("INFO", "Test", "entry")
	}
	assert.Len(t, s.Snapshot().Logs, 3)
}

func TestChangeNotification(t *testing.T) {
	s := New(10, "http://backend", "", false)
	s.SetSocketStatus(SocketConnected)

	select {
	case <-s.ChangeCh():
	default:
		t.Fatal("expected a change notification")
	}
}

func TestSetLatestKeepsStatsWhenNil(t *testing.T) {
	s := New(10, "http://backend", "", false)
	temp := 22.5
	now := time.Now()

	s.SetLatest(sensor.Reading{Ambient: sensor.Ambient{Temperature: &temp}},
		map[string]sensor.Stats{"ambient.temperature": {Min: 20, Max: 25, Avg: 22.5, Count: 4}}, now)
	// A stream update carries no aggregates; the last poll aggregates stay.
	s.SetLatest(sensor.Reading{}, nil, now.Add(time.Second))

	snap := s.Snapshot()
	assert.Contains(t, snap.Stats, "ambient.temperature")
	assert.Equal(t, now.Add(time.Second), snap.LastUpdate)
}
