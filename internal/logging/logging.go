package logging

import (
	"io"
	"os"
	"path/filepath"

	"github.com/orandin/lumberjackrus"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Advisory debug log file names. Their content is for troubleshooting only.
const (
	ChassisParseLog = "chassis_parse_debug.log"
	SFPLog          = "sfp_debug.log"
	ModuleMapLog    = "module_map_summary.log"
)

// Options controls the main application logger
type Options struct {
	Level   string
	Dir     string
	File    string
	Verbose bool
}

// New builds the main logger: text to stderr, JSON to a rotated file under Dir
func New(opts Options) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	level, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	if opts.Verbose {
		level = logrus.DebugLevel
	}
	logger.SetLevel(level)

	if opts.Dir == "" || opts.File == "" {
		return logger, nil
	}
	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return nil, errors.Wrap(err, "create log directory")
	}

	hook, err := lumberjackrus.NewHook(
		&lumberjackrus.LogFile{
			Filename:   filepath.Join(opts.Dir, opts.File),
			MaxSize:    50,
			MaxBackups: 5,
			MaxAge:     30,
			Compress:   true,
		},
		level,
		&logrus.JSONFormatter{},
		&lumberjackrus.LogFileOpts{},
	)
	if err != nil {
		return nil, errors.Wrap(err, "create log file hook")
	}
	logger.AddHook(hook)
	return logger, nil
}

// DebugLogs holds the named advisory logs written during parsing and inference
type DebugLogs struct {
	Chassis   logrus.FieldLogger
	SFP       logrus.FieldLogger
	ModuleMap logrus.FieldLogger
}

// NewDebugLogs opens one rotated file per advisory log under dir.
// An empty dir yields discarding loggers.
func NewDebugLogs(dir string) (*DebugLogs, error) {
	if dir == "" {
		return Discard(), nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(err, "create debug log directory")
	}

	open := func(name string) (logrus.FieldLogger, error) {
		l := logrus.New()
		l.SetOutput(io.Discard)
		l.SetLevel(logrus.DebugLevel)
		hook, err := lumberjackrus.NewHook(
			&lumberjackrus.LogFile{
				Filename:   filepath.Join(dir, name),
				MaxSize:    20,
				MaxBackups: 2,
				MaxAge:     7,
			},
			logrus.DebugLevel,
			&logrus.TextFormatter{DisableColors: true, FullTimestamp: true},
			&lumberjackrus.LogFileOpts{},
		)
		if err != nil {
			return nil, errors.Wrapf(err, "open %s", name)
		}
		l.AddHook(hook)
		return l, nil
	}

	chassis, err := open(ChassisParseLog)
	if err != nil {
		return nil, err
	}
	sfp, err := open(SFPLog)
	if err != nil {
		return nil, err
	}
	modules, err := open(ModuleMapLog)
	if err != nil {
		return nil, err
	}
	return &DebugLogs{Chassis: chassis, SFP: sfp, ModuleMap: modules}, nil
}

// Discard returns debug logs that drop everything
func Discard() *DebugLogs {
	return &DebugLogs{
		Chassis:   NullLogger(),
		SFP:       NullLogger(),
		ModuleMap: NullLogger(),
	}
}

// NullLogger returns a logger that writes nowhere
func NullLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// Once records keys that have already been logged during one device capture.
// It is not safe for concurrent use; each capture owns its own.
type Once struct {
	seen map[string]struct{}
}

func NewOnce() *Once {
	return &Once{seen: make(map[string]struct{})}
}

// First reports whether key is seen for the first time
func (o *Once) First(key string) bool {
	if _, ok := o.seen[key]; ok {
		return false
	}
	o.seen[key] = struct{}{}
	return true
}
