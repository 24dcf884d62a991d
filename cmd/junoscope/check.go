package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/junoscope/junoscope/internal/chassis"
	"github.com/junoscope/junoscope/internal/junos"
	"github.com/junoscope/junoscope/internal/junosxml"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/spf13/cobra"
)

// CheckResult describes what the parsers recovered from one capture
type CheckResult struct {
	File       string        `json:"file"`
	Status     string        `json:"status"` // ok, repaired, failed
	Bytes      int           `json:"bytes"`
	Fragments  int           `json:"fragments"`
	Root       string        `json:"root,omitempty"`
	Modules    int           `json:"modules"`
	Xcvrs      int           `json:"transceivers"`
	Components int           `json:"components"`
	Alarms     int           `json:"alarms"`
	Optics     int           `json:"optics"`
	Warnings   []string      `json:"warnings,omitempty"`
	Duration   time.Duration `json:"duration_ns"`
}

var checkCmd = &cobra.Command{
	Use:   "check <capture>...",
	Short: "Run the XML repair and parsers over saved captures",
	Long: `Feed raw command output through fragment extraction, repair and the
chassis parsers and report what was recovered. Useful for diagnosing
devices whose output breaks the report.

Exit status is non-zero when any capture yields no document.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().Bool("json", false, "Output as JSON")
}

// repairNotes returns what the parsers had to fix, one line per log entry
func repairNotes(h *test.Hook) []string {
	var out []string
	for _, e := range h.AllEntries() {
		msg := e.Message
		if len(e.Data) > 0 {
			var kv []string
			for k, v := range e.Data {
				kv = append(kv, fmt.Sprintf("%s=%v", k, v))
			}
			sort.Strings(kv)
			msg += " (" + strings.Join(kv, " ") + ")"
		}
		out = append(out, msg)
	}
	return out
}

func checkCapture(path string) (*CheckResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read capture")
	}
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	start := time.Now()

	res := &CheckResult{File: path, Bytes: len(data), Status: "ok"}
	raw := string(data)
	fragments := junosxml.Extract(raw, log)
	res.Fragments = len(fragments)
	doc := junosxml.Parse(fragments, log)
	res.Warnings = repairNotes(hook)
	hook.Reset()
	if doc == nil || doc.Root() == nil {
		res.Status = "failed"
		res.Duration = time.Since(start)
		return res, nil
	}
	if len(res.Warnings) > 0 {
		res.Status = "repaired"
	}
	res.Root = doc.Root().Tag

	node := filepath.Base(filepath.Dir(path))
	res.Modules = len(chassis.BuildModuleMap(doc, log))
	res.Xcvrs = chassis.BuildXcvrMap(doc, log).Len()
	if hw := chassis.WalkHardware(doc, node, log); !chassis.Unavailable(hw) {
		res.Components = len(hw)
	}
	res.Alarms = len(junos.ParseAlarms(doc))
	res.Optics = len(junos.ParseOptics(doc))
	res.Warnings = append(res.Warnings, repairNotes(hook)...)

	res.Duration = time.Since(start)
	return res, nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	jsonOut, _ := cmd.Flags().GetBool("json")

	var results []*CheckResult
	failed := 0
	for _, path := range args {
		res, err := checkCapture(path)
		if err != nil {
			return errors.Wrap(err, path)
		}
		if res.Status == "failed" {
			failed++
		}
		results = append(results, res)
	}

	if jsonOut {
		if err := printJSON(results); err != nil {
			return err
		}
	} else {
		for _, r := range results {
			fmt.Printf("%s: %s\n", r.File, strings.ToUpper(r.Status))
			fmt.Printf("  bytes=%d fragments=%d root=%s\n", r.Bytes, r.Fragments, dash(r.Root))
			fmt.Printf("  modules=%d transceivers=%d components=%d alarms=%d optics=%d\n",
				r.Modules, r.Xcvrs, r.Components, r.Alarms, r.Optics)
			for _, w := range r.Warnings {
				fmt.Printf("  ! %s\n", w)
			}
		}
	}

	if failed > 0 {
		return errors.Errorf("%d of %d captures yielded no document", failed, len(results))
	}
	return nil
}
