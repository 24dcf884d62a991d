package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/junoscope/junoscope/internal/chassis"
	"github.com/junoscope/junoscope/internal/session"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type Config struct {
	SSH     SSH            `mapstructure:"ssh"`
	Collect Collect        `mapstructure:"collect"`
	Log     Log            `mapstructure:"log"`
	DB      DB             `mapstructure:"db"`
	Output  Output         `mapstructure:"output"`
	Rules   Rules          `mapstructure:"rules"`
	Policy  chassis.Policy `mapstructure:"policy"`

	// File is the config file that was read, empty when running on defaults
	File string `mapstructure:"-"`
}

type SSH struct {
	JumpHost       string        `mapstructure:"jump_host"`
	Username       string        `mapstructure:"username"`
	Password       string        `mapstructure:"password"`
	Port           int           `mapstructure:"port"`
	KnownHosts     string        `mapstructure:"known_hosts"`
	DialTimeout    time.Duration `mapstructure:"dial_timeout"`
	CommandTimeout time.Duration `mapstructure:"command_timeout"`
	AuthRetries    int           `mapstructure:"auth_retries"`
	RetryDelay     time.Duration `mapstructure:"retry_delay"`
}

type Collect struct {
	Devices       string        `mapstructure:"devices"`
	Workers       int           `mapstructure:"workers"`
	Retries       int           `mapstructure:"retries"`
	DeviceTimeout time.Duration `mapstructure:"device_timeout"`
	CacheTTL      time.Duration `mapstructure:"cache_ttl"`
}

type Log struct {
	Level string `mapstructure:"level"`
	Dir   string `mapstructure:"dir"`
	File  string `mapstructure:"file"`
}

type DB struct {
	Path    string `mapstructure:"path"`
	Enabled bool   `mapstructure:"enabled"`
}

type Output struct {
	Path string `mapstructure:"path"`
}

type Rules struct {
	Path string `mapstructure:"path"`
}

const envPrefix = "JUNOSCOPE"

const (
	DefaultDialTimeout    = 15 * time.Second
	DefaultCommandTimeout = 120 * time.Second
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("ssh.jump_host", "")
	v.SetDefault("ssh.username", "")
	v.SetDefault("ssh.password", "")
	v.SetDefault("ssh.port", 22)
	v.SetDefault("ssh.known_hosts", "")
	v.SetDefault("ssh.dial_timeout", DefaultDialTimeout)
	v.SetDefault("ssh.command_timeout", DefaultCommandTimeout)
	v.SetDefault("ssh.auth_retries", 3)
	v.SetDefault("ssh.retry_delay", "5s")

	v.SetDefault("collect.devices", "devices.csv")
	v.SetDefault("collect.workers", 1)
	v.SetDefault("collect.retries", 1)
	v.SetDefault("collect.device_timeout", "10m")
	v.SetDefault("collect.cache_ttl", "10m")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.dir", "logs")
	v.SetDefault("log.file", "junoscope.log")

	v.SetDefault("db.path", "junoscope.db")
	v.SetDefault("db.enabled", true)

	v.SetDefault("output.path", "junoscope_report.xlsx")
	v.SetDefault("rules.path", "")

	p := chassis.DefaultPolicy()
	v.SetDefault("policy.test_serials", p.TestSerials)
	v.SetDefault("policy.test_part_numbers", p.TestPartNumbers)
	v.SetDefault("policy.synthetic_serial_nodes", p.SyntheticSerialNodes)
}

// envBindings lists the keys that may be overridden from the environment
var envBindings = []string{
	"ssh.jump_host",
	"ssh.username",
	"ssh.password",
	"ssh.port",
	"ssh.known_hosts",
	"ssh.command_timeout",
	"ssh.auth_retries",
	"collect.devices",
	"collect.workers",
	"collect.retries",
	"collect.device_timeout",
	"log.level",
	"log.dir",
	"db.path",
	"db.enabled",
	"output.path",
	"rules.path",
}

// Candidates returns the default config locations in search order
func Candidates() []string {
	return []string{
		"/etc/junoscope/config.yaml",
		filepath.Join(os.Getenv("HOME"), ".config/junoscope/config.yaml"),
		"config.yaml",
	}
}

// Load reads the config file at path, or the first existing default
// location when path is empty. With no file at all the defaults apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range envBindings {
		_ = v.BindEnv(key, envPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")))
	}

	if path == "" {
		for _, c := range Candidates() {
			if _, err := os.Stat(c); err == nil {
				path = c
				break
			}
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	cfg.File = path

	if cfg.Collect.Workers < 1 {
		cfg.Collect.Workers = 1
	}
	if cfg.Collect.Retries < 0 {
		cfg.Collect.Retries = 0
	}
	// a zero timer fires at once, which would fail every command
	if cfg.SSH.DialTimeout <= 0 {
		cfg.SSH.DialTimeout = DefaultDialTimeout
	}
	if cfg.SSH.CommandTimeout <= 0 {
		cfg.SSH.CommandTimeout = DefaultCommandTimeout
	}
	return cfg, nil
}

// Session returns the transport settings for the SSH layer
func (c *Config) Session() session.Config {
	return session.Config{
		JumpHost:       c.SSH.JumpHost,
		Username:       c.SSH.Username,
		Password:       c.SSH.Password,
		Port:           c.SSH.Port,
		KnownHosts:     c.SSH.KnownHosts,
		DialTimeout:    c.SSH.DialTimeout,
		CommandTimeout: c.SSH.CommandTimeout,
		AuthRetries:    c.SSH.AuthRetries,
		RetryDelay:     c.SSH.RetryDelay,
	}
}
