package collector

import (
	"context"
	"os"
	"path/filepath"

	"github.com/junoscope/junoscope/internal/config"
	"github.com/junoscope/junoscope/internal/session"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Runner executes CLI commands on one device
type Runner interface {
	Run(ctx context.Context, command string) (string, error)
	Close() error
}

// Dialer opens a Runner for a device
type Dialer func(ctx context.Context, dev config.Device) (Runner, error)

// SessionDialer returns a Dialer that logs in over SSH through the jump host
func SessionDialer(cfg session.Config, log logrus.FieldLogger) Dialer {
	return func(ctx context.Context, dev config.Device) (Runner, error) {
		c, err := session.Dial(ctx, cfg, dev.Host(), log.WithField("node", dev.Name))
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

// DirRunner replays captures saved as <dir>/<node>/<key>.txt
type DirRunner struct {
	dir string
}

func NewDirRunner(dir, node string) *DirRunner {
	return &DirRunner{dir: filepath.Join(dir, node)}
}

// DirDialer returns a Dialer that replays saved captures from dir
func DirDialer(dir string) Dialer {
	return func(ctx context.Context, dev config.Device) (Runner, error) {
		r := NewDirRunner(dir, dev.Name)
		if _, err := os.Stat(r.dir); err != nil {
			return nil, errors.Wrapf(err, "no captures for %s", dev.Name)
		}
		return r, nil
	}
}

func (r *DirRunner) Run(ctx context.Context, command string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key, ok := commandKey(command)
	if !ok {
		return "", errors.Errorf("no capture file for %q", command)
	}
	data, err := os.ReadFile(filepath.Join(r.dir, key+".txt"))
	if err != nil {
		return "", errors.Wrap(err, "read capture")
	}
	return string(data), nil
}

func (r *DirRunner) Close() error { return nil }

// SaveCaptures writes a device's raw captures in the layout DirRunner reads
func SaveCaptures(dir, node string, captures map[string]string) error {
	target := filepath.Join(dir, node)
	if err := os.MkdirAll(target, 0755); err != nil {
		return errors.Wrap(err, "create capture directory")
	}
	for key, out := range captures {
		if err := os.WriteFile(filepath.Join(target, key+".txt"), []byte(out), 0644); err != nil {
			return errors.Wrapf(err, "write %s capture", key)
		}
	}
	return nil
}

// ListCaptureDevices returns the devices that have a capture directory
func ListCaptureDevices(dir string) ([]config.Device, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "read capture directory")
	}
	var out []config.Device
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, config.Device{Name: e.Name()})
		}
	}
	return out, nil
}
