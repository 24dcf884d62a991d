package main

import (
	"fmt"
	"os"

	"github.com/junoscope/junoscope/internal/config"
	"github.com/junoscope/junoscope/internal/logging"
	"github.com/junoscope/junoscope/internal/sfp"
	"github.com/junoscope/junoscope/internal/version"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "junoscope",
	Short: "Juniper fleet hardware, port and transceiver inventory",
	Long: `junoscope logs in to Juniper routers through a TACACS jump host, runs a
fixed set of show commands and turns the (often damaged) XML output into an
XLSX report of interface utilization, port and SFP inventory, chassis alarms
and hardware. Every run is also recorded in a local SQLite inventory so
hardware changes can be tracked across runs.`,
	SilenceUsage: true,
}

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Print the effective SFP inference rules as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		rules, err := sfp.Load(cfg.Rules.Path)
		if err != nil {
			return err
		}
		out, err := rules.YAML()
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(out)
		return err
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("junoscope", version.Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is /etc/junoscope/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(collectCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(inventoryCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(versionCmd)
}

// setup loads the config and builds the main logger
func setup() (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	log, err := logging.New(logging.Options{
		Level:   cfg.Log.Level,
		Dir:     cfg.Log.Dir,
		File:    cfg.Log.File,
		Verbose: verbose,
	})
	if err != nil {
		return nil, nil, err
	}
	if cfg.File != "" {
		log.WithField("file", cfg.File).Debug("config loaded")
	}
	return cfg, log, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
