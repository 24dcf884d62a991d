package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/junoscope/junoscope/internal/config"
	"github.com/junoscope/junoscope/internal/db"
	"github.com/spf13/cobra"
)

var inventoryCmd = &cobra.Command{
	Use:   "inventory",
	Short: "Query the hardware inventory database",
	Long: `Query the persistent hardware inventory.

Every collection run records the chassis components of each device. Between
runs components are diffed by slot, so replaced, missing and returned parts
show up as events.`,
}

var inventoryListCmd = &cobra.Command{
	Use:   "list [device]",
	Short: "List known components",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runInventoryList,
}

var inventoryDevicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List known devices and their last result",
	RunE:  runInventoryDevices,
}

var inventoryShowCmd = &cobra.Command{
	Use:   "show <serial>",
	Short: "Show where a serial number has been seen",
	Args:  cobra.ExactArgs(1),
	RunE:  runInventoryShow,
}

var inventoryEventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show recent component events",
	RunE:  runInventoryEvents,
}

var inventoryRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Show recent collection runs",
	RunE:  runInventoryRuns,
}

var inventoryAlarmsCmd = &cobra.Command{
	Use:   "alarms",
	Short: "Show chassis alarms recorded by a run",
	RunE:  runInventoryAlarms,
}

func init() {
	inventoryCmd.AddCommand(inventoryListCmd)
	inventoryCmd.AddCommand(inventoryDevicesCmd)
	inventoryCmd.AddCommand(inventoryShowCmd)
	inventoryCmd.AddCommand(inventoryEventsCmd)
	inventoryCmd.AddCommand(inventoryRunsCmd)
	inventoryCmd.AddCommand(inventoryAlarmsCmd)

	inventoryCmd.PersistentFlags().Bool("json", false, "Output as JSON")

	inventoryEventsCmd.Flags().Int("limit", 50, "Maximum number of events to show")
	inventoryEventsCmd.Flags().String("type", "", "Filter by event type (discovered, replaced, missing, returned)")
	inventoryEventsCmd.Flags().String("device", "", "Filter by device")
	inventoryEventsCmd.Flags().String("run", "", "Events of one run")

	inventoryRunsCmd.Flags().Int("limit", 20, "Maximum number of runs to show")

	inventoryAlarmsCmd.Flags().String("run", "", "Run ID (default latest run)")
}

func openDB() (*db.DB, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	return db.New(cfg.DB.Path)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func clip(s string, n int) string {
	if len(s) > n {
		return s[:n-3] + "..."
	}
	return s
}

func runInventoryList(cmd *cobra.Command, args []string) error {
	database, err := openDB()
	if err != nil {
		return err
	}
	defer database.Close()

	device := ""
	if len(args) == 1 {
		device = args[0]
	}
	components, err := database.ListComponents(device)
	if err != nil {
		return err
	}

	if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
		return printJSON(components)
	}
	if len(components) == 0 {
		fmt.Println("No components in inventory. Run 'junoscope collect' to populate.")
		return nil
	}

	fmt.Printf("%-16s %-22s %-14s %-20s %-16s %-8s %s\n", "DEVICE", "SLOT", "TYPE", "PART", "SERIAL", "STATE", "MODEL")
	fmt.Println(strings.Repeat("-", 120))
	missing := 0
	for _, c := range components {
		if c.State == db.StateMissing {
			missing++
		}
		fmt.Printf("%-16s %-22s %-14s %-20s %-16s %-8s %s\n",
			clip(c.Device, 16), clip(c.Slot, 22), c.Type, dash(c.PartNumber), dash(c.Serial),
			strings.ToUpper(c.State), clip(c.Model, 40))
	}
	fmt.Println(strings.Repeat("-", 120))
	fmt.Printf("Total: %d | Present: %d | Missing: %d\n", len(components), len(components)-missing, missing)
	return nil
}

func runInventoryDevices(cmd *cobra.Command, args []string) error {
	database, err := openDB()
	if err != nil {
		return err
	}
	defer database.Close()

	devices, err := database.ListDevices()
	if err != nil {
		return err
	}
	if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
		return printJSON(devices)
	}
	if len(devices) == 0 {
		fmt.Println("No devices recorded yet.")
		return nil
	}

	fmt.Printf("%-20s %-18s %-10s %-8s %-16s %s\n", "DEVICE", "ADDRESS", "SITE", "STATUS", "LAST SEEN", "ERROR")
	fmt.Println(strings.Repeat("-", 100))
	for _, d := range devices {
		fmt.Printf("%-20s %-18s %-10s %-8s %-16s %s\n",
			clip(d.Name, 20), dash(d.Address), dash(d.Site), strings.ToUpper(d.LastStatus),
			humanize.Time(d.LastSeen), clip(d.LastError, 40))
	}
	return nil
}

func runInventoryShow(cmd *cobra.Command, args []string) error {
	database, err := openDB()
	if err != nil {
		return err
	}
	defer database.Close()

	components, err := database.FindSerial(args[0])
	if err != nil {
		return err
	}
	if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
		return printJSON(components)
	}
	if len(components) == 0 {
		fmt.Printf("Serial %s not found in inventory\n", args[0])
		return nil
	}

	for _, c := range components {
		fmt.Printf("Serial:      %s\n", c.Serial)
		fmt.Printf("Device:      %s\n", c.Device)
		fmt.Printf("Slot:        %s\n", c.Slot)
		fmt.Printf("Type:        %s\n", c.Type)
		fmt.Printf("Part Number: %s\n", dash(c.PartNumber))
		fmt.Printf("Model:       %s\n", dash(c.Model))
		fmt.Printf("State:       %s\n", strings.ToUpper(c.State))
		fmt.Printf("First Seen:  %s\n", c.FirstSeen.Format("2006-01-02 15:04:05"))
		fmt.Printf("Last Seen:   %s (%s)\n", c.LastSeen.Format("2006-01-02 15:04:05"), humanize.Time(c.LastSeen))

		events, err := database.GetRecentEvents(c.Device, 200)
		if err != nil {
			return err
		}
		var history []*db.ComponentEvent
		for _, e := range events {
			if e.ComponentID == c.ID {
				history = append(history, e)
			}
		}
		if len(history) > 0 {
			fmt.Println("\nHistory:")
			for _, e := range history {
				fmt.Printf("  %s  %-10s %s\n", e.Timestamp.Format("2006-01-02 15:04:05"), e.EventType, e.Details)
			}
		}
		fmt.Println()
	}
	return nil
}

func runInventoryEvents(cmd *cobra.Command, args []string) error {
	database, err := openDB()
	if err != nil {
		return err
	}
	defer database.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	eventType, _ := cmd.Flags().GetString("type")
	device, _ := cmd.Flags().GetString("device")
	runID, _ := cmd.Flags().GetString("run")

	var events []*db.ComponentEvent
	switch {
	case runID != "":
		events, err = database.GetRunEvents(runID)
	case eventType != "":
		events, err = database.GetEventsByType(eventType, limit)
	default:
		events, err = database.GetRecentEvents(device, limit)
	}
	if err != nil {
		return err
	}
	if device != "" && (runID != "" || eventType != "") {
		filtered := events[:0]
		for _, e := range events {
			if e.Device == device {
				filtered = append(filtered, e)
			}
		}
		events = filtered
	}

	if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
		return printJSON(events)
	}
	if len(events) == 0 {
		fmt.Println("No events recorded.")
		return nil
	}

	fmt.Printf("%-20s %-16s %-11s %-22s %-16s %s\n", "TIME", "DEVICE", "EVENT", "SLOT", "OLD SERIAL", "NEW SERIAL")
	fmt.Println(strings.Repeat("-", 110))
	for _, e := range events {
		fmt.Printf("%-20s %-16s %-11s %-22s %-16s %s\n",
			e.Timestamp.Format("2006-01-02 15:04:05"), clip(e.Device, 16), strings.ToUpper(e.EventType),
			clip(e.Slot, 22), dash(e.OldSerial), dash(e.NewSerial))
	}
	return nil
}

func runInventoryRuns(cmd *cobra.Command, args []string) error {
	database, err := openDB()
	if err != nil {
		return err
	}
	defer database.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	runs, err := database.ListRuns(limit)
	if err != nil {
		return err
	}
	if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
		return printJSON(runs)
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}

	fmt.Printf("%-36s %-7s %-20s %-10s %-8s %s\n", "RUN", "SOURCE", "STARTED", "DURATION", "DEVICES", "FAILED")
	fmt.Println(strings.Repeat("-", 95))
	for _, r := range runs {
		duration := "running"
		if r.FinishedAt != nil {
			duration = r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		fmt.Printf("%-36s %-7s %-20s %-10s %-8d %d\n",
			r.ID, r.Source, r.StartedAt.Local().Format("2006-01-02 15:04:05"), duration, r.Devices, r.Failed)
	}
	return nil
}

func runInventoryAlarms(cmd *cobra.Command, args []string) error {
	database, err := openDB()
	if err != nil {
		return err
	}
	defer database.Close()

	runID, _ := cmd.Flags().GetString("run")
	alarms, err := database.GetAlarms(runID)
	if err != nil {
		return err
	}
	if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
		return printJSON(alarms)
	}
	if len(alarms) == 0 {
		fmt.Println("No alarms recorded.")
		return nil
	}

	fmt.Printf("%-16s %-8s %-26s %s\n", "DEVICE", "CLASS", "TIME", "DESCRIPTION")
	fmt.Println(strings.Repeat("-", 90))
	for _, a := range alarms {
		fmt.Printf("%-16s %-8s %-26s %s\n", clip(a.Device, 16), a.Class, dash(a.AlarmTime), a.Description)
	}
	return nil
}
