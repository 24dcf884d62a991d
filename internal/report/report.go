// Package report writes the fleet workbook.
package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/junoscope/junoscope/internal/collector"
	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
)

// Sheet names, in workbook order
const (
	SheetSummary     = "Summary"
	SheetUtilization = "Utilization"
	SheetPorts       = "Ports"
	SheetAlarms      = "Alarms"
	SheetHardware    = "Hardware"
)

// Run describes the collection the workbook reports on
type Run struct {
	ID      string
	Source  string
	Started time.Time
	Elapsed time.Duration
	Results []*collector.DeviceResult
}

// portSpeeds is the nominal line rate per interface prefix, in bits/s
var portSpeeds = map[string]float64{
	"fe":  1e8,
	"ge":  1e9,
	"mge": 1e10,
	"xe":  1e10,
	"et":  1e11,
	"ce":  1e11,
}

func portPrefix(name string) string {
	if i := strings.IndexByte(name, '-'); i > 0 {
		return name[:i]
	}
	return ""
}

// Speed returns the nominal speed of an interface, e.g. "10 Gbps"
func Speed(iface string) string {
	bps, ok := portSpeeds[portPrefix(iface)]
	if !ok {
		return ""
	}
	return humanize.SI(bps, "bps")
}

type sheet struct {
	name    string
	headers []string
	rows    [][]interface{}
}

// Write builds the workbook and saves it to path
func Write(path string, run Run) error {
	f := excelize.NewFile()
	defer f.Close()

	sheets := []sheet{
		summarySheet(run),
		utilizationSheet(run.Results),
		portsSheet(run.Results),
		alarmsSheet(run.Results),
		hardwareSheet(run.Results),
	}

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"1F4E78"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Vertical: "center",
			WrapText: true,
		},
	})
	if err != nil {
		return errors.Wrap(err, "header style")
	}

	for i, s := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", s.name); err != nil {
				return errors.Wrap(err, "rename first sheet")
			}
		} else if _, err := f.NewSheet(s.name); err != nil {
			return errors.Wrapf(err, "add sheet %s", s.name)
		}
		if err := writeSheet(f, s, header); err != nil {
			return errors.Wrapf(err, "sheet %s", s.name)
		}
	}
	f.SetActiveSheet(0)

	if err := f.SaveAs(path); err != nil {
		return errors.Wrap(err, "save workbook")
	}
	return nil
}

func writeSheet(f *excelize.File, s sheet, headerStyle int) error {
	headers := make([]interface{}, len(s.headers))
	widths := make([]int, len(s.headers))
	for i, h := range s.headers {
		headers[i] = h
		widths[i] = len(h)
	}
	if err := f.SetSheetRow(s.name, "A1", &headers); err != nil {
		return err
	}

	for r, row := range s.rows {
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		row := row
		if err := f.SetSheetRow(s.name, cell, &row); err != nil {
			return err
		}
		for c, v := range row {
			if c < len(widths) {
				if n := len(fmt.Sprint(v)); n > widths[c] {
					widths[c] = n
				}
			}
		}
	}

	last, err := excelize.ColumnNumberToName(len(s.headers))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(s.name, "A1", last+"1", headerStyle); err != nil {
		return err
	}
	if err := f.SetPanes(s.name, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return err
	}
	if len(s.rows) > 0 {
		ref := fmt.Sprintf("A1:%s%d", last, len(s.rows)+1)
		if err := f.AutoFilter(s.name, ref, nil); err != nil {
			return err
		}
	}
	for i, w := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(s.name, col, col, columnWidth(w)); err != nil {
			return err
		}
	}
	return nil
}

func columnWidth(chars int) float64 {
	switch {
	case chars < 8:
		return 10
	case chars > 60:
		return 62
	}
	return float64(chars) + 2
}

func summarySheet(run Run) sheet {
	var ports, used, sfps, alarms, failed int
	var capacity float64
	for _, r := range run.Results {
		if !r.OK() {
			failed++
		}
		alarms += len(r.Alarms)
		for _, p := range r.Ports {
			ports++
			if p.Status == collector.StatusUsed {
				used++
				capacity += portSpeeds[portPrefix(p.Interface)]
			}
			if p.SFP.Detected() {
				sfps++
			}
		}
	}

	s := sheet{name: SheetSummary, headers: []string{"Item", "Value"}}
	add := func(k string, v interface{}) { s.rows = append(s.rows, []interface{}{k, v}) }
	add("Run ID", run.ID)
	add("Source", run.Source)
	add("Started", run.Started.Format(time.RFC3339))
	add("Duration", run.Elapsed.Round(time.Second).String())
	add("Devices", humanize.Comma(int64(len(run.Results))))
	add("Devices without data", humanize.Comma(int64(failed)))
	add("Physical ports", humanize.Comma(int64(ports)))
	add("Used ports", humanize.Comma(int64(used)))
	add("Unused ports", humanize.Comma(int64(ports-used)))
	add("Transceivers detected or inferred", humanize.Comma(int64(sfps)))
	add("Used port capacity", humanize.SI(capacity, "bps"))
	add("Active alarms", humanize.Comma(int64(alarms)))

	s.rows = append(s.rows, []interface{}{"", ""})
	s.rows = append(s.rows, []interface{}{"Device", "Result"})
	results := append([]*collector.DeviceResult(nil), run.Results...)
	sort.SliceStable(results, func(i, j int) bool { return results[i].Device.Name < results[j].Device.Name })
	for _, r := range results {
		outcome := r.String()
		if len(r.Failed) > 0 {
			outcome += " (failed: " + strings.Join(r.Failed, ", ") + ")"
		}
		s.rows = append(s.rows, []interface{}{r.Device.Name, outcome})
	}
	return s
}

func utilizationSheet(results []*collector.DeviceResult) sheet {
	s := sheet{name: SheetUtilization, headers: []string{
		"Node", "FPC", "Module", "State", "Temperature (C)", "CPU %", "Heap %",
		"Total Ports", "Used", "Unused", "SFPs", "Utilization %",
	}}
	for _, r := range results {
		for _, u := range r.Utilization {
			s.rows = append(s.rows, []interface{}{
				u.Node, u.Slot, u.Module, u.State, u.TemperatureC, u.CPU, u.HeapMemory,
				u.Total, u.Used, u.Unused, u.SFPs, fmt.Sprintf("%.1f", u.Percent()),
			})
		}
	}
	return s
}

func portsSheet(results []*collector.DeviceResult) sheet {
	s := sheet{name: SheetPorts, headers: []string{
		"Node", "Interface", "Speed", "FPC", "PIC", "Port", "Module", "Status", "Admin", "Link",
		"Description", "LLDP Neighbor", "SFP", "SFP Method", "Confidence", "Evidence",
		"Rx dBm", "Tx dBm",
	}}
	for _, r := range results {
		for _, p := range r.Ports {
			s.rows = append(s.rows, []interface{}{
				p.Node, p.Interface, Speed(p.Interface), p.FPC, p.PIC, p.Port, p.Module, p.Status,
				p.Admin, p.Link, p.Description, p.Neighbor, p.SFP.Status, p.SFP.Method,
				p.SFP.Confidence, strings.Join(p.SFP.Evidence, "; "), p.RxPower, p.TxPower,
			})
		}
	}
	return s
}

func alarmsSheet(results []*collector.DeviceResult) sheet {
	s := sheet{name: SheetAlarms, headers: []string{"Node", "Time", "Class", "Description", "Type"}}
	for _, r := range results {
		for _, a := range r.Alarms {
			desc := a.Description
			if desc == "" {
				desc = a.ShortDescription
			}
			s.rows = append(s.rows, []interface{}{r.Device.Name, a.Time, a.Class, desc, a.Type})
		}
	}
	return s
}

func hardwareSheet(results []*collector.DeviceResult) sheet {
	s := sheet{name: SheetHardware, headers: []string{
		"Node", "Type", "Slot", "Part Number", "Serial", "Model", "Version", "Status", "Comments",
	}}
	for _, r := range results {
		for _, c := range r.Hardware {
			s.rows = append(s.rows, []interface{}{
				r.Device.Name, c.Type, c.Slot, c.PartNumber, c.Serial, c.Model, c.Version, c.Status, c.Comments,
			})
		}
	}
	return s
}
