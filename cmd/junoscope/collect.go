package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/junoscope/junoscope/internal/cache"
	"github.com/junoscope/junoscope/internal/collector"
	"github.com/junoscope/junoscope/internal/config"
	"github.com/junoscope/junoscope/internal/db"
	"github.com/junoscope/junoscope/internal/logging"
	"github.com/junoscope/junoscope/internal/report"
	"github.com/junoscope/junoscope/internal/sfp"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Collect from the device list and write the report",
	Long: `Log in to every device through the jump host, run the show command
sequence and write the workbook.

The device list is CSV (hostname,address[,site]), one hostname per line,
or a YAML list. The password is prompted for when it is not configured.`,
	RunE: runCollect,
}

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Build the report from saved captures",
	Long: `Rebuild the workbook offline from captures saved by 'collect --save-captures'
(one directory per device holding <key>.txt files).`,
	RunE: runReplay,
}

func init() {
	collectCmd.Flags().String("devices", "", "device list (default from config collect.devices)")
	collectCmd.Flags().StringP("output", "o", "", "workbook path (default from config output.path)")
	collectCmd.Flags().Int("workers", 0, "concurrent devices (default from config collect.workers)")
	collectCmd.Flags().Bool("no-db", false, "do not record the run in the inventory database")
	collectCmd.Flags().String("save-captures", "", "directory to save raw captures in")

	replayCmd.Flags().String("captures", "", "capture directory")
	replayCmd.Flags().StringP("output", "o", "", "workbook path (default from config output.path)")
	replayCmd.Flags().Bool("no-db", false, "do not record the run in the inventory database")
	replayCmd.MarkFlagRequired("captures")
}

func runCollect(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}

	devicesPath, _ := cmd.Flags().GetString("devices")
	if devicesPath == "" {
		devicesPath = cfg.Collect.Devices
	}
	devices, err := config.LoadTargets(devicesPath)
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		return errors.Errorf("no devices in %s", devicesPath)
	}

	if workers, _ := cmd.Flags().GetInt("workers"); workers > 0 {
		cfg.Collect.Workers = workers
	}
	if cfg.SSH.JumpHost == "" {
		return errors.New("ssh.jump_host is not configured")
	}
	if cfg.SSH.Username == "" {
		cfg.SSH.Username = os.Getenv("USER")
	}
	if cfg.SSH.Password == "" {
		pw, err := promptPassword(cfg.SSH.Username, cfg.SSH.JumpHost)
		if err != nil {
			return err
		}
		cfg.SSH.Password = pw
	}

	saveDir, _ := cmd.Flags().GetString("save-captures")
	noDB, _ := cmd.Flags().GetBool("no-db")
	output, _ := cmd.Flags().GetString("output")

	dial := collector.SessionDialer(cfg.Session(), log)
	return execute(cmd.Context(), cfg, log, devices, dial, runSettings{
		source:  db.SourceLive,
		output:  output,
		noDB:    noDB,
		saveDir: saveDir,
	})
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	dir, _ := cmd.Flags().GetString("captures")
	devices, err := collector.ListCaptureDevices(dir)
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		return errors.Errorf("no device captures under %s", dir)
	}
	// replays never need a second attempt
	cfg.Collect.Retries = 0

	noDB, _ := cmd.Flags().GetBool("no-db")
	output, _ := cmd.Flags().GetString("output")
	return execute(cmd.Context(), cfg, log, devices, collector.DirDialer(dir), runSettings{
		source: db.SourceReplay,
		output: output,
		noDB:   noDB,
	})
}

type runSettings struct {
	source  string
	output  string
	noDB    bool
	saveDir string
}

// execute runs the fleet collection, writes the workbook and records the run
func execute(ctx context.Context, cfg *config.Config, log *logrus.Logger, devices []config.Device, dial collector.Dialer, rs runSettings) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	rules, err := sfp.Load(cfg.Rules.Path)
	if err != nil {
		return err
	}
	debug, err := logging.NewDebugLogs(cfg.Log.Dir)
	if err != nil {
		return err
	}

	var store *db.DB
	var run *db.Run
	if cfg.DB.Enabled && !rs.noDB {
		store, err = db.New(cfg.DB.Path)
		if err != nil {
			return err
		}
		defer store.Close()
		if run, err = store.StartRun(rs.source); err != nil {
			return err
		}
	}

	log.WithFields(logrus.Fields{
		"devices": len(devices),
		"workers": cfg.Collect.Workers,
		"source":  rs.source,
	}).Info("collection started")
	start := time.Now()

	deps := collector.Deps{
		Rules:  rules,
		Policy: cfg.Policy,
		Cache:  cache.New(cfg.Collect.CacheTTL),
		Debug:  debug,
		Log:    log,
	}
	results := collector.Run(ctx, devices, dial, collector.Options{
		Workers:       cfg.Collect.Workers,
		Retries:       cfg.Collect.Retries,
		DeviceTimeout: cfg.Collect.DeviceTimeout,
		SaveDir:       rs.saveDir,
	}, deps)
	elapsed := time.Since(start)
	failed := collector.Failed(results)

	rep := report.Run{Source: rs.source, Started: start, Elapsed: elapsed, Results: results}
	if run != nil {
		rep.ID = run.ID
		for _, r := range results {
			if err := store.RecordDevice(run.ID, r.Snapshot()); err != nil {
				log.WithError(err).WithField("node", r.Device.Name).Error("could not record device")
			}
		}
		if err := store.FinishRun(run.ID, len(results), failed); err != nil {
			log.WithError(err).Error("could not finish run")
		}
	}

	output := rs.output
	if output == "" {
		output = cfg.Output.Path
	}
	if err := report.Write(output, rep); err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"devices": len(results),
		"failed":  failed,
		"elapsed": elapsed.Round(time.Second),
		"report":  output,
	}).Info("collection finished")

	if failed > 0 {
		var names []string
		for _, r := range results {
			if !r.OK() {
				names = append(names, r.Device.Name)
			}
		}
		fmt.Fprintf(os.Stderr, "No data from %d device(s): %s\n", failed, strings.Join(names, ", "))
	}
	fmt.Printf("Report written to %s\n", output)
	return nil
}

func promptPassword(user, host string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("ssh.password is not configured and stdin is not a terminal")
	}
	fmt.Fprintf(os.Stderr, "Password for %s@%s: ", user, host)
	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", errors.Wrap(err, "read password")
	}
	return string(pw), nil
}
