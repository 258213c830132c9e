package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vitalvest/internal/sensor"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func reading(ts time.Time, ambientTemp, bodyTemp float64) sensor.Reading {
	return sensor.Reading{
		Ambient:         sensor.Ambient{Temperature: &ambientTemp},
		Body:            sensor.Body{ObjectTemperature: &bodyTemp},
		SourceTimestamp: ts,
	}
}

func TestRecordAndRecent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.Record(ctx, reading(base, 21.0, 36.5), "poll"))
	require.NoError(t, s.Record(ctx, reading(base.Add(time.Minute), 22.0, 36.7), "stream"))

	rows, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	// Newest first.
	assert.Equal(t, "stream", rows[0].Source)
	require.NotNil(t, rows[0].AmbientTemp)
	assert.Equal(t, 22.0, *rows[0].AmbientTemp)
	assert.Nil(t, rows[0].Conductance, "absent sensor stays null")
}

func TestRecordNullFields(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, sensor.Reading{SourceTimestamp: time.Now()}, "demo"))

	rows, err := s.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Nil(t, rows[0].AmbientTemp)
	assert.Nil(t, rows[0].BodyTemp)
	assert.Nil(t, rows[0].HydrationState)
}

func TestSessionsGroupByHour(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	h1 := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	h2 := time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC)

	require.NoError(t, s.Record(ctx, reading(h1.Add(5*time.Minute), 20, 36.5), "poll"))
	require.NoError(t, s.Record(ctx, reading(h1.Add(25*time.Minute), 24, 36.9), "poll"))
	require.NoError(t, s.Record(ctx, reading(h2.Add(2*time.Minute), 30, 37.1), "poll"))

	sessions, err := s.Sessions(ctx, 24)
	require.NoError(t, err)
	require.Len(t, sessions, 2)

	// Newest hour first.
	assert.Equal(t, h2, sessions[0].Hour)
	assert.Equal(t, 1, sessions[0].Count)

	assert.Equal(t, h1, sessions[1].Hour)
	assert.Equal(t, 2, sessions[1].Count)
	require.NotNil(t, sessions[1].AvgAmbientTemp)
	assert.InDelta(t, 22.0, *sessions[1].AvgAmbientTemp, 1e-9)
	require.NotNil(t, sessions[1].MinAmbientTemp)
	assert.Equal(t, 20.0, *sessions[1].MinAmbientTemp)
	require.NotNil(t, sessions[1].MaxAmbientTemp)
	assert.Equal(t, 24.0, *sessions[1].MaxAmbientTemp)
}

func TestCount(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	require.NoError(t, s.Record(ctx, reading(time.Now(), 20, 36.5), "poll"))
	n, err = s.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}
