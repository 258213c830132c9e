package coordinator

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"vitalvest/internal/backend"
	"vitalvest/internal/sensor"
)

// fetchAll runs one poll cycle: all endpoints in parallel, all settle. A
// failed endpoint contributes null values and a failure note, never an
// aborted cycle.
func fetchAll(ctx context.Context, api SensorAPI, now time.Time) pollDone {
	var (
		mu       sync.Mutex
		data     sensor.RESTData
		users    []backend.User
		failures []string
	)
	note := func(endpoint string, err error) {
		mu.Lock()
		failures = append(failures, endpoint+": "+err.Error())
		mu.Unlock()
	}

	var g errgroup.Group
	g.Go(func() error {
		recs, err := api.FetchBME(ctx)
		if err != nil {
			note("bme", err)
			return nil
		}
		data.BME = recs
		return nil
	})
	g.Go(func() error {
		recs, err := api.FetchGSR(ctx)
		if err != nil {
			note("gsr", err)
			return nil
		}
		data.GSR = recs
		return nil
	})
	g.Go(func() error {
		recs, err := api.FetchMLX(ctx)
		if err != nil {
			note("mlx", err)
			return nil
		}
		data.MLX = recs
		return nil
	})
	g.Go(func() error {
		recs, err := api.FetchMPU(ctx)
		if err != nil {
			note("mpu", err)
			return nil
		}
		data.MPU = recs
		return nil
	})
	g.Go(func() error {
		us, err := api.FetchUsers(ctx)
		if err != nil {
			note("users", err)
			return nil
		}
		users = us
		return nil
	})
	g.Wait()

	return pollDone{
		snap:      sensor.NormalizeREST(data, now),
		users:     users,
		failures:  failures,
		attempted: 5,
		at:        now,
	}
}
