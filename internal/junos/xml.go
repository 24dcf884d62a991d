package junos

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// Alarm is one active chassis alarm
type Alarm struct {
	Time             string `json:"time"`
	Class            string `json:"class"`
	Description      string `json:"description"`
	ShortDescription string `json:"short_description"`
	Type             string `json:"type"`
}

// Optics holds the diagnostics of one physical interface
type Optics struct {
	Interface   string `json:"interface"`
	TxPower     string `json:"tx_dbm"`
	RxPower     string `json:"rx_dbm"`
	Temperature string `json:"temperature"`
	Voltage     string `json:"voltage"`
}

// ConfiguredInterface is an interface stanza of the configuration
type ConfiguredInterface struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Disabled    bool   `json:"disabled"`
	Units       int    `json:"units"`
}

// FPCStatus is one line card from "show chassis fpc"
type FPCStatus struct {
	Slot         string `json:"slot"`
	State        string `json:"state"`
	Description  string `json:"description"`
	TemperatureC int    `json:"temperature_c"`
	CPUTotal     int    `json:"cpu_total"`
	HeapMemory   int    `json:"heap_memory"`
	BufferMemory int    `json:"buffer_memory"`
}

func text(el *etree.Element, names ...string) string {
	for _, n := range names {
		if c := el.SelectElement(n); c != nil {
			if t := strings.Join(strings.Fields(c.Text()), " "); t != "" {
				return t
			}
		}
	}
	return ""
}

var leadingInt = regexp.MustCompile(`^-?\d+`)

func number(s string) int {
	v, _ := strconv.Atoi(leadingInt.FindString(strings.TrimSpace(s)))
	return v
}

// ParseAlarms returns the active alarms. A nil document or
// no-active-alarms gives none.
func ParseAlarms(doc *etree.Document) []Alarm {
	if doc == nil {
		return nil
	}
	var out []Alarm
	for _, el := range doc.FindElements("//alarm-detail") {
		a := Alarm{
			Time:             text(el, "alarm-time"),
			Class:            text(el, "alarm-class"),
			Description:      text(el, "alarm-description"),
			ShortDescription: text(el, "alarm-short-description"),
			Type:             text(el, "alarm-type"),
		}
		if a.Description == "" && a.ShortDescription == "" {
			continue
		}
		out = append(out, a)
	}
	return out
}

// ParseOptics returns diagnostics for interfaces that report them. Multi-lane
// optics fall back to lane 0 when the module level values are missing.
func ParseOptics(doc *etree.Document) map[string]Optics {
	out := make(map[string]Optics)
	if doc == nil {
		return out
	}
	for _, pi := range doc.FindElements("//physical-interface") {
		diag := pi.SelectElement("optics-diagnostics")
		name := text(pi, "name")
		if diag == nil || name == "" {
			continue
		}
		o := Optics{
			Interface:   name,
			TxPower:     text(diag, "laser-output-power-dbm"),
			RxPower:     text(diag, "rx-signal-avg-optical-power-dbm", "laser-rx-optical-power-dbm"),
			Temperature: text(diag, "module-temperature"),
			Voltage:     text(diag, "module-voltage"),
		}
		if lane := diag.SelectElement("optics-diagnostics-lane-values"); lane != nil {
			if o.TxPower == "" {
				o.TxPower = text(lane, "laser-output-power-dbm")
			}
			if o.RxPower == "" {
				o.RxPower = text(lane, "laser-rx-optical-power-dbm")
			}
		}
		out[name] = o
	}
	return out
}

// ParseInterfaceConfig reads the interfaces stanza of the configuration
func ParseInterfaceConfig(doc *etree.Document) map[string]ConfiguredInterface {
	out := make(map[string]ConfiguredInterface)
	if doc == nil {
		return out
	}
	for _, el := range doc.FindElements("//interfaces/interface") {
		name := text(el, "name")
		if name == "" {
			continue
		}
		out[name] = ConfiguredInterface{
			Name:        name,
			Description: text(el, "description"),
			Disabled:    el.SelectElement("disable") != nil,
			Units:       len(el.SelectElements("unit")),
		}
	}
	return out
}

// ParseFPCStatus returns line card state keyed by decimal slot
func ParseFPCStatus(doc *etree.Document) map[string]FPCStatus {
	out := make(map[string]FPCStatus)
	if doc == nil {
		return out
	}
	for _, el := range doc.FindElements("//fpc") {
		slotText := text(el, "slot")
		state := text(el, "state")
		if slotText == "" || state == "" {
			continue
		}
		slot, err := strconv.Atoi(slotText)
		if err != nil {
			continue
		}
		st := FPCStatus{
			Slot:         strconv.Itoa(slot),
			State:        state,
			Description:  text(el, "description"),
			CPUTotal:     number(text(el, "cpu-total")),
			HeapMemory:   number(text(el, "memory-heap-utilization")),
			BufferMemory: number(text(el, "memory-buffer-utilization")),
		}
		if t := el.SelectElement("temperature"); t != nil {
			if c := t.SelectAttrValue("junos:celsius", ""); c != "" {
				st.TemperatureC = number(c)
			} else {
				st.TemperatureC = number(t.Text())
			}
		}
		out[st.Slot] = st
	}
	return out
}
