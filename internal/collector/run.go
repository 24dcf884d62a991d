package collector

import (
	"context"
	"time"

	"github.com/junoscope/junoscope/internal/config"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"
)

// Options bound a fleet run
type Options struct {
	Workers       int
	Retries       int
	DeviceTimeout time.Duration
	// SaveDir, when set, receives every device's raw captures
	SaveDir string
}

// Run collects from every device with at most Workers in flight. Devices
// that fail are retried up to Retries more times; successful commands are
// served from the capture cache on retry. Results keep the device order.
func Run(ctx context.Context, devices []config.Device, dial Dialer, opts Options, deps Deps) []*DeviceResult {
	deps.defaults()
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	results := make([]*DeviceResult, len(devices))
	pending := make([]int, len(devices))
	for i := range devices {
		pending[i] = i
	}

	for attempt := 1; attempt <= opts.Retries+1 && len(pending) > 0; attempt++ {
		if attempt > 1 {
			expired := deps.Cache.Cleanup()
			deps.Log.WithFields(logrus.Fields{
				"attempt":         attempt,
				"devices":         len(pending),
				"cached_captures": deps.Cache.Len(),
				"expired":         expired,
			}).Info("retrying failed devices")
		}

		p := pool.New().WithMaxGoroutines(workers)
		for _, i := range pending {
			i := i
			p.Go(func() {
				res := collectOne(ctx, devices[i], dial, opts, deps)
				res.Attempts = attempt
				results[i] = res
				// only devices that will be retried need their captures
				if res.OK() {
					deps.Cache.Forget(devices[i].Name)
				}
			})
		}
		p.Wait()

		var failed []int
		for _, i := range pending {
			if !results[i].OK() {
				failed = append(failed, i)
			}
		}
		pending = failed
		if ctx.Err() != nil {
			break
		}
	}
	return results
}

func collectOne(ctx context.Context, dev config.Device, dial Dialer, opts Options, deps Deps) *DeviceResult {
	log := deps.Log.WithField("node", dev.Name)
	if opts.DeviceTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.DeviceTimeout)
		defer cancel()
	}

	start := time.Now()
	runner, err := dial(ctx, dev)
	if err != nil {
		log.WithError(err).Warn("connect failed")
		return &DeviceResult{Device: dev, Err: errors.Wrap(err, "connect"), Elapsed: time.Since(start)}
	}
	defer func() {
		if err := runner.Close(); err != nil {
			log.WithError(err).Debug("close session")
		}
	}()

	res := CollectDevice(ctx, dev, runner, deps)
	if opts.SaveDir != "" && len(res.Captures) > 0 {
		if err := SaveCaptures(opts.SaveDir, dev.Name, res.Captures); err != nil {
			log.WithError(err).Warn("could not save captures")
		}
	}

	entry := log.WithFields(logrus.Fields{"elapsed": res.Elapsed.Round(time.Millisecond), "failed_commands": len(res.Failed)})
	if res.OK() {
		entry.Info("device collected")
	} else {
		entry.WithError(res.Err).Warn("device produced no data")
	}
	return res
}

// Failed counts the devices without data
func Failed(results []*DeviceResult) int {
	n := 0
	for _, r := range results {
		if !r.OK() {
			n++
		}
	}
	return n
}
