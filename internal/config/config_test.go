package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, "config.yaml", `
ssh:
  jump_host: tacacs.example.net:22
  username: netops
  command_timeout: 45s
collect:
  workers: 4
policy:
  synthetic_serial_nodes: [R9]
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, path, cfg.File)
	assert.Equal(t, "tacacs.example.net:22", cfg.SSH.JumpHost)
	assert.Equal(t, 45*time.Second, cfg.SSH.CommandTimeout)
	assert.Equal(t, 3, cfg.SSH.AuthRetries)
	assert.Equal(t, 4, cfg.Collect.Workers)
	assert.Equal(t, 10*time.Minute, cfg.Collect.DeviceTimeout)
	assert.Equal(t, []string{"R9"}, cfg.Policy.SyntheticSerialNodes)
	assert.NotEmpty(t, cfg.Policy.TestSerials)
	assert.True(t, cfg.DB.Enabled)

	s := cfg.Session()
	assert.Equal(t, "netops", s.Username)
	assert.Equal(t, 22, s.Port)
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("JUNOSCOPE_SSH_PASSWORD", "s3cret")
	t.Setenv("JUNOSCOPE_COLLECT_WORKERS", "0")
	t.Setenv("JUNOSCOPE_DB_ENABLED", "false")

	cfg, err := Load(writeFile(t, "config.yaml", "log:\n  level: debug\n"))
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.SSH.Password)
	assert.Equal(t, 1, cfg.Collect.Workers)
	assert.False(t, cfg.DB.Enabled)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadClampsTimeouts(t *testing.T) {
	cfg, err := Load(writeFile(t, "config.yaml", "ssh:\n  command_timeout: 0s\n  dial_timeout: -1s\n"))
	require.NoError(t, err)
	assert.Equal(t, DefaultCommandTimeout, cfg.SSH.CommandTimeout)
	assert.Equal(t, DefaultDialTimeout, cfg.SSH.DialTimeout)

	t.Setenv("JUNOSCOPE_SSH_COMMAND_TIMEOUT", "0")
	cfg, err = Load(writeFile(t, "config.yaml", "log:\n  level: info\n"))
	require.NoError(t, err)
	assert.Equal(t, 120*time.Second, cfg.Session().CommandTimeout)
	assert.Equal(t, 15*time.Second, cfg.Session().DialTimeout)
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadTargetsCSV(t *testing.T) {
	path := writeFile(t, "devices.csv", `hostname,address,site
# lab
R1,10.0.0.1,KYA
R2
R3, 10.0.0.3
R1,10.9.9.9,dup
`)
	got, err := LoadTargets(path)
	require.NoError(t, err)
	assert.Equal(t, []Device{
		{Name: "R1", Address: "10.0.0.1", Site: "KYA"},
		{Name: "R2"},
		{Name: "R3", Address: "10.0.0.3"},
	}, got)
	assert.Equal(t, "R2", got[1].Host())
	assert.Equal(t, "10.0.0.1", got[0].Host())
}

func TestLoadTargetsYAML(t *testing.T) {
	path := writeFile(t, "devices.yaml", `
- name: R3.KYA.PE-MOBILE.2
  address: 10.1.1.2
  site: KYA
- name: R4
`)
	got, err := LoadTargets(path)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "KYA", got[0].Site)
	assert.Equal(t, "R4", got[1].Host())
}

func TestLoadTargetsMissing(t *testing.T) {
	_, err := LoadTargets(filepath.Join(t.TempDir(), "devices.csv"))
	assert.Error(t, err)
}
