// Package demo provides a synthetic frame source for running the dashboard
// without a vest. It emits the same nested JSON shape the real backend
// streams, with values drifting around plausible baselines.
package demo

import (
	"context"
	"encoding/json"
	"math"
	"math/rand"
	"sync"
	"time"
)

// Source generates frames at a fixed cadence.
type Source struct {
	interval time.Duration
	rng      *rand.Rand
	mu       sync.Mutex
	tick     float64
}

// NewSource creates a demo source. interval <= 0 defaults to one second.
func NewSource(interval time.Duration) *Source {
	if interval <= 0 {
		interval = time.Second
	}
	return &Source{
		interval: interval,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Connect starts a generator goroutine. It never fails; closing happens via
// ctx or Close.
func (s *Source) Connect(ctx context.Context) (*Conn, error) {
	c := &Conn{
		frames: make(chan []byte, 16),
		closed: make(chan struct{}),
	}
	go s.generate(ctx, c)
	return c, nil
}

// generate owns the frame channel and closes it on exit.
func (s *Source) generate(ctx context.Context, c *Conn) {
	defer close(c.frames)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.closed:
			return
		case <-ticker.C:
			frame := s.nextFrame()
			select {
			case c.frames <- frame:
			default:
				// coordinator lagging, skip this frame
			}
		}
	}
}

// nextFrame synthesises one nested frame. Slow sinusoidal drift plus noise
// keeps the charts moving without looking random.
func (s *Source) nextFrame() []byte {
	s.mu.Lock()
	s.tick++
	t := s.tick
	r := s.rng
	noise := func(amp float64) float64 { return (r.Float64() - 0.5) * amp }
	frame := map[string]any{
		"bme280": map[string]any{
			"temperatura": round1(22.0 + 2*math.Sin(t/30) + noise(0.4)),
			"humedad":     round1(45.0 + 5*math.Sin(t/50) + noise(1.0)),
			"presion":     round1(1013.0 + noise(0.6)),
		},
		"mlx90614": map[string]any{
			"temp_obj": round1(36.5 + 0.3*math.Sin(t/40) + noise(0.1)),
			"temp_amb": round1(24.0 + noise(0.3)),
		},
		"mpu6050": map[string]any{
			"aceleracion": map[string]any{
				"x": round2(noise(0.4)),
				"y": round2(noise(0.4)),
				"z": round2(0.98 + noise(0.05)),
			},
			"giroscopio": map[string]any{
				"x": round2(noise(2)),
				"y": round2(noise(2)),
				"z": round2(noise(2)),
			},
		},
		"gsr": map[string]any{
			"conductancia": round2(0.7 + 0.2*math.Sin(t/60) + noise(0.05)),
			"porcentaje":   round1(60 + 10*math.Sin(t/60) + noise(2)),
			"estado":       hydrationLabel(60 + 10*math.Sin(t/60)),
		},
	}
	s.mu.Unlock()

	data, err := json.Marshal(frame)
	if err != nil {
		return []byte("{}")
	}
	return data
}

func hydrationLabel(pct float64) string {
	switch {
	case pct >= 65:
		return "Hidratado"
	case pct >= 45:
		return "Normal"
	default:
		return "Deshidratado"
	}
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }

// Conn is one live demo stream.
type Conn struct {
	frames chan []byte
	closed chan struct{}
	once   sync.Once
}

// Frames returns the frame channel. It is closed when the stream ends.
func (c *Conn) Frames() <-chan []byte { return c.frames }

// Close stops the generator, which then closes the frame channel.
func (c *Conn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}
