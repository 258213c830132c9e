package demo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vitalvest/internal/sensor"
)

func TestFramesNormalizeCleanly(t *testing.T) {
	src := NewSource(10 * time.Millisecond)
	conn, err := src.Connect(context.Background())
	require.NoError(t, err)
	defer conn.Close()

	select {
	case frame := <-conn.Frames():
		r, err := sensor.NormalizeStream(frame, time.Now())
		require.NoError(t, err)
		require.NotNil(t, r.Ambient.Temperature)
		assert.InDelta(t, 22.0, *r.Ambient.Temperature, 5)
		require.NotNil(t, r.Hydration.State)
		assert.NotEmpty(t, *r.Hydration.State)
		require.NotNil(t, r.Motion.Acceleration.Z)
	case <-time.After(2 * time.Second):
		t.Fatal("no demo frame produced")
	}
}

func TestCloseEndsStream(t *testing.T) {
	src := NewSource(10 * time.Millisecond)
	conn, err := src.Connect(context.Background())
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-conn.Frames():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("frame channel never closed")
		}
	}
}

func TestContextCancelEndsStream(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := NewSource(10 * time.Millisecond)
	conn, err := src.Connect(ctx)
	require.NoError(t, err)
	cancel()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-conn.Frames():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("frame channel never closed after cancel")
		}
	}
}
