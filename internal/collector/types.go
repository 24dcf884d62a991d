package collector

import (
	"time"

	"github.com/junoscope/junoscope/internal/chassis"
	"github.com/junoscope/junoscope/internal/config"
	"github.com/junoscope/junoscope/internal/db"
	"github.com/junoscope/junoscope/internal/junos"
	"github.com/junoscope/junoscope/internal/sfp"
)

// Port statuses
const (
	StatusUsed   = "USED"
	StatusUnused = "UNUSED"
)

// Port is one physical interface row
type Port struct {
	Node        string     `json:"node"`
	Interface   string     `json:"interface"`
	FPC         int        `json:"fpc"`
	PIC         int        `json:"pic"`
	Port        int        `json:"port"`
	Module      string     `json:"module"`
	Status      string     `json:"status"`
	Admin       string     `json:"admin"`
	Link        string     `json:"link"`
	Description string     `json:"description"`
	Neighbor    string     `json:"neighbor,omitempty"`
	SFP         sfp.Result `json:"sfp"`
	RxPower     string     `json:"rx_dbm,omitempty"`
	TxPower     string     `json:"tx_dbm,omitempty"`
}

// FPCUtilization summarizes port usage on one line card
type FPCUtilization struct {
	Node         string `json:"node"`
	Slot         string `json:"slot"`
	Module       string `json:"module"`
	State        string `json:"state"`
	TemperatureC int    `json:"temperature_c"`
	CPU          int    `json:"cpu"`
	HeapMemory   int    `json:"heap_memory"`
	Total        int    `json:"total"`
	Used         int    `json:"used"`
	Unused       int    `json:"unused"`
	SFPs         int    `json:"sfps"`
}

// Percent is the share of used ports, 0 when the card has none
func (u FPCUtilization) Percent() float64 {
	if u.Total == 0 {
		return 0
	}
	return float64(u.Used) * 100 / float64(u.Total)
}

// DeviceResult is everything collected and derived for one router
type DeviceResult struct {
	Device   config.Device
	Captures map[string]string

	// Failed lists commands that returned an error; their captures are empty
	Failed []string
	// Err is set when the device produced no usable data
	Err error

	Modules       chassis.ModuleMap
	Ports         []Port
	Utilization   []FPCUtilization
	Hardware      []chassis.HardwareComponent
	HardwareKnown bool
	Alarms        []junos.Alarm

	Attempts int
	Elapsed  time.Duration
}

// OK reports whether the device produced data
func (r *DeviceResult) OK() bool {
	return r != nil && r.Err == nil
}

// Snapshot converts the result for the inventory database
func (r *DeviceResult) Snapshot() db.Snapshot {
	s := db.Snapshot{
		Name:          r.Device.Name,
		Address:       r.Device.Address,
		Site:          r.Device.Site,
		HardwareKnown: r.HardwareKnown,
		Components:    r.Hardware,
		Alarms:        r.Alarms,
	}
	if r.Err != nil {
		s.Error = r.Err.Error()
		s.HardwareKnown = false
	}
	return s
}
