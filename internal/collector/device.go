package collector

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/junoscope/junoscope/internal/cache"
	"github.com/junoscope/junoscope/internal/chassis"
	"github.com/junoscope/junoscope/internal/config"
	"github.com/junoscope/junoscope/internal/junos"
	"github.com/junoscope/junoscope/internal/junosxml"
	"github.com/junoscope/junoscope/internal/logging"
	"github.com/junoscope/junoscope/internal/sfp"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ErrNoData is recorded when no command returned anything
var ErrNoData = errors.New("no data collected")

// Deps are the shared collaborators of every device capture
type Deps struct {
	Rules  *sfp.Rules
	Policy chassis.Policy
	Cache  *cache.Cache
	Debug  *logging.DebugLogs
	Log    logrus.FieldLogger
}

func (d *Deps) defaults() {
	if d.Rules == nil {
		d.Rules = sfp.Default()
	}
	if d.Debug == nil {
		d.Debug = logging.Discard()
	}
	if d.Log == nil {
		d.Log = logging.NullLogger()
	}
}

// CollectDevice issues the command sequence on runner and analyzes the
// output. A failed command leaves its capture empty and the sequence goes
// on. A panic anywhere degrades to an empty result with the error set.
func CollectDevice(ctx context.Context, dev config.Device, runner Runner, deps Deps) (res *DeviceResult) {
	deps.defaults()
	start := time.Now()
	log := deps.Log.WithField("node", dev.Name)

	captures := make(map[string]string, len(Commands))
	var failed []string

	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("device capture aborted")
			res = &DeviceResult{
				Device:   dev,
				Captures: captures,
				Failed:   failed,
				Err:      errors.Errorf("panic: %v", r),
			}
		}
		res.Elapsed = time.Since(start)
	}()

	for _, cmd := range Commands {
		if err := ctx.Err(); err != nil {
			log.WithError(err).Warn("device deadline reached, discarding partial capture")
			return &DeviceResult{Device: dev, Captures: captures, Failed: failed, Err: errors.Wrap(err, "collect")}
		}
		if entry := deps.Cache.GetEntry(dev.Name, cmd.CLI); entry != nil {
			log.WithFields(logrus.Fields{"command": cmd.Key, "age": entry.Age().Round(time.Second)}).Debug("using cached capture")
			captures[cmd.Key] = entry.Value
			continue
		}
		out, err := runner.Run(ctx, cmd.CLI)
		if err != nil {
			log.WithError(err).WithField("command", cmd.Key).Warn("command failed")
			failed = append(failed, cmd.Key)
			continue
		}
		deps.Cache.Set(dev.Name, cmd.CLI, out, cmd.TTL)
		captures[cmd.Key] = out
	}

	res = Analyze(dev, captures, deps)
	res.Failed = failed
	if len(failed) == len(Commands) {
		res.Err = ErrNoData
	}
	return res
}

// parsed holds the documents and tables built from one device's captures
type parsed struct {
	hardware *etree.Document
	fpc      *etree.Document
	pic      *etree.Document
	optics   map[string]junos.Optics
	status   map[string]junos.FPCStatus
	descs    map[string]junos.Description
	lldp     map[string]junos.Neighbor
	ifconfig map[string]junos.ConfiguredInterface
	alarms   []junos.Alarm
}

func parseCaptures(captures map[string]string, dbg *logging.DebugLogs) *parsed {
	load := func(key string) *etree.Document {
		raw := captures[key]
		if strings.TrimSpace(raw) == "" {
			return nil
		}
		return junosxml.Load(raw, dbg.Chassis.WithField("capture", key))
	}
	p := &parsed{
		hardware: load(KeyHardware),
		fpc:      load(KeyFPC),
		pic:      load(KeyPIC),
		descs:    junos.ParseDescriptions(captures[KeyDescriptions]),
		lldp:     junos.ParseLLDP(captures[KeyLLDP]),
	}
	p.status = junos.ParseFPCStatus(p.fpc)
	p.optics = junos.ParseOptics(load(KeyOptics))
	p.alarms = junos.ParseAlarms(load(KeyAlarms))
	p.ifconfig = junos.ParseInterfaceConfig(load(KeyIfConfig))
	return p
}

// Analyze derives the report rows for one device from its raw captures.
// Missing or unparseable captures leave their part of the result empty.
func Analyze(dev config.Device, captures map[string]string, deps Deps) *DeviceResult {
	deps.defaults()
	node := dev.Name
	log := deps.Log.WithField("node", node)
	dbg := deps.Debug
	p := parseCaptures(captures, dbg)

	res := &DeviceResult{Device: dev, Captures: captures, Alarms: p.alarms}

	res.Modules = chassis.BuildModuleMap(p.hardware, dbg.ModuleMap.WithField("node", node))
	for slot, label := range chassis.BuildModuleMap(p.fpc, dbg.ModuleMap.WithField("node", node)) {
		if _, ok := res.Modules[slot]; !ok {
			res.Modules[slot] = label
		}
	}

	xcvr := chassis.BuildXcvrMap(p.hardware, dbg.Chassis.WithField("node", node))
	xcvr.Merge(chassis.BuildXcvrMap(p.pic, dbg.Chassis.WithField("node", node)))

	hw := chassis.WalkHardware(p.hardware, node, dbg.Chassis)
	res.HardwareKnown = !chassis.Unavailable(hw)
	if res.HardwareKnown {
		hw = chassis.Validate(hw, node, deps.Policy, log)
		overlayFPCState(hw, p.status)
	}
	res.Hardware = hw

	res.Ports = buildPorts(node, p, res.Modules, xcvr, deps, logging.NewOnce())
	res.Utilization = buildUtilization(node, res.Ports, res.Modules, p.status)

	log.WithFields(logrus.Fields{
		"modules":  len(res.Modules),
		"xcvrs":    xcvr.Len(),
		"hardware": len(res.Hardware),
		"ports":    len(res.Ports),
		"alarms":   len(res.Alarms),
	}).Info("device analyzed")
	return res
}

// overlayFPCState replaces the generic status of line cards with the state
// reported by "show chassis fpc"
func overlayFPCState(hw []chassis.HardwareComponent, status map[string]junos.FPCStatus) {
	for i := range hw {
		if hw[i].Type != chassis.TypeFPC {
			continue
		}
		slot := strings.TrimSpace(strings.TrimPrefix(strings.ToUpper(hw[i].Slot), "FPC"))
		if st, ok := status[slot]; ok && st.State != "" {
			hw[i].Status = st.State
		}
	}
}

// physicalInterfaces gathers every physical port name any capture mentions
func physicalInterfaces(p *parsed) []string {
	seen := map[string]bool{}
	add := func(name string) {
		if pn, ok := junos.ParseName(name); ok {
			seen[pn.Physical()] = true
		}
	}
	for name := range p.descs {
		add(name)
	}
	for name := range p.ifconfig {
		add(name)
	}
	for name := range p.optics {
		add(name)
	}
	for name := range p.lldp {
		add(name)
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	return out
}

// portUsed applies the USED rule: link up, an LLDP neighbour, or a
// description on an admin-up port that is not marked spare
func portUsed(desc string, adminUp, linkUp, neighbor bool, rules *sfp.Rules) bool {
	if linkUp || neighbor {
		return true
	}
	return desc != "" && adminUp && !rules.IsSpare(desc)
}

func buildPorts(node string, p *parsed, modules chassis.ModuleMap, xcvr *chassis.XcvrMap, deps Deps, once *logging.Once) []Port {
	var ifaces []sfp.Interface
	meta := map[string]Port{}

	for _, name := range physicalInterfaces(p) {
		pn, _ := junos.ParseName(name)
		d, hasDesc := p.descs[name]
		cfg := p.ifconfig[name]

		desc := d.Description
		if desc == "" {
			desc = cfg.Description
		}
		adminUp := !cfg.Disabled
		if hasDesc {
			adminUp = d.AdminUp()
		}
		nb, hasNeighbor := p.lldp[name]

		in := sfp.Interface{
			Name:        name,
			Prefix:      pn.Prefix,
			FPC:         pn.FPC,
			PIC:         pn.PIC,
			Port:        pn.Port,
			Channel:     pn.Channel,
			LinkUp:      d.LinkUp(),
			Description: desc,
		}
		in.Used = portUsed(desc, adminUp, in.LinkUp, hasNeighbor, deps.Rules)
		ifaces = append(ifaces, in)

		row := Port{
			Node:        node,
			Interface:   name,
			FPC:         pn.FPC,
			PIC:         pn.PIC,
			Port:        pn.Port,
			Status:      StatusUnused,
			Admin:       d.Admin,
			Link:        d.Link,
			Description: desc,
			Neighbor:    nb.SystemName,
		}
		if in.Used {
			row.Status = StatusUsed
		}
		if o, ok := p.optics[name]; ok {
			row.RxPower = o.RxPower
			row.TxPower = o.TxPower
		}
		slot := strconv.Itoa(pn.FPC)
		if label, ok := modules[slot]; ok {
			row.Module = label
		} else if once.First(slot) {
			deps.Debug.ModuleMap.WithFields(logrus.Fields{"node": node, "slot": slot}).
				Debug("no module label for slot")
		}
		meta[name] = row
	}
	sfp.SortInterfaces(ifaces)

	known := map[string]string{}
	opticsPresent := map[string]bool{}
	neighbors := map[string]string{}
	for _, in := range ifaces {
		if label, ok := xcvr.Lookup(in.FPC, in.PIC, in.Port); ok {
			known[in.Name] = label
		}
		if _, ok := p.optics[in.Name]; ok {
			opticsPresent[in.Name] = true
			if known[in.Name] == "" {
				known[in.Name] = deps.Rules.SpeedFamilies[in.Prefix]
			}
		}
		if nb, ok := p.lldp[in.Name]; ok {
			neighbors[in.Name] = nb.SystemName
		}
	}
	evidence := sfp.Survey(node, ifaces, known, neighbors)
	src := sfp.Sources{Optics: opticsPresent, Xcvr: xcvr}

	sfpLog := deps.Debug.SFP.WithField("node", node)
	ports := make([]Port, 0, len(ifaces))
	for _, in := range ifaces {
		row := meta[in.Name]
		row.SFP = sfp.Resolve(in, src, evidence[in.Name], deps.Rules, sfpLog)
		ports = append(ports, row)
	}
	return ports
}

func buildUtilization(node string, ports []Port, modules chassis.ModuleMap, status map[string]junos.FPCStatus) []FPCUtilization {
	bySlot := map[string]*FPCUtilization{}
	get := func(slot string) *FPCUtilization {
		u, ok := bySlot[slot]
		if !ok {
			u = &FPCUtilization{Node: node, Slot: slot, Module: modules[slot]}
			if st, ok := status[slot]; ok {
				u.State = st.State
				u.TemperatureC = st.TemperatureC
				u.CPU = st.CPUTotal
				u.HeapMemory = st.HeapMemory
			}
			bySlot[slot] = u
		}
		return u
	}

	for slot, st := range status {
		if strings.EqualFold(st.State, "Empty") {
			continue
		}
		get(slot)
	}
	for _, p := range ports {
		u := get(strconv.Itoa(p.FPC))
		u.Total++
		if p.Status == StatusUsed {
			u.Used++
		} else {
			u.Unused++
		}
		if p.SFP.Detected() {
			u.SFPs++
		}
	}

	out := make([]FPCUtilization, 0, len(bySlot))
	for _, u := range bySlot {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool {
		a, _ := strconv.Atoi(out[i].Slot)
		b, _ := strconv.Atoi(out[j].Slot)
		return a < b
	})
	return out
}

// String is a one-line outcome used in logs and the summary sheet
func (r *DeviceResult) String() string {
	if r.Err != nil {
		return fmt.Sprintf("%s: %v", r.Device.Name, r.Err)
	}
	return fmt.Sprintf("%s: %d ports, %d components, %d alarms", r.Device.Name, len(r.Ports), len(r.Hardware), len(r.Alarms))
}
