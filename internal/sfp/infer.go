package sfp

import (
	"fmt"
	"sort"
	"strings"
)

// NoSFP is reported when nothing clears the threshold
const NoSFP = "No SFP"

// Result methods
const (
	MethodOptics    = "optics"
	MethodChassis   = "chassis"
	MethodHeuristic = "heuristic"
	MethodNone      = "none"
)

// Interface is a physical port as the inference chain sees it
type Interface struct {
	Name        string
	Prefix      string // ge, xe, et...
	FPC         int
	PIC         int
	Port        int
	Channel     int // -1 when not channelized
	Used        bool
	LinkUp      bool
	Description string
}

// Evidence is what the rest of the device says about a port
type Evidence struct {
	Node           string
	LLDP           bool
	Neighbor       string
	AdjacentSFP    string
	ConsecutiveRun int
}

// Result is the transceiver verdict for one port
type Result struct {
	Status     string   `json:"status"`
	Confidence int      `json:"confidence"`
	Evidence   []string `json:"evidence"`
	Method     string   `json:"method"`
}

// Detected reports whether a transceiver was found or inferred
func (r Result) Detected() bool {
	return r.Status != "" && r.Status != NoSFP
}

// Infer scores the evidence for a port and suggests a transceiver type.
// Used ports need UsedThreshold points; unused ports only qualify when a
// high-probability deployment covers them, and then need UnusedThreshold.
func Infer(in Interface, ev Evidence, rules *Rules) Result {
	w := rules.Weights
	var notes []string
	score := 0
	add := func(points int, format string, args ...interface{}) {
		if points == 0 {
			return
		}
		score += points
		notes = append(notes, fmt.Sprintf(format, args...)+fmt.Sprintf(" (+%d)", points))
	}

	if kw := rules.matchKeyword(in.Description); kw != "" {
		add(w.Description, "description mentions %q", kw)
	}
	if ev.LLDP {
		if ev.Neighbor != "" {
			add(w.LLDP, "LLDP neighbor %s", ev.Neighbor)
		} else {
			add(w.LLDP, "LLDP neighbor present")
		}
	}
	if in.LinkUp {
		add(w.LinkUp, "link up")
	}
	if ev.AdjacentSFP != "" {
		add(w.AdjacentSFP, "adjacent port carries %s", ev.AdjacentSFP)
	}
	if rules.MinRun > 0 && ev.ConsecutiveRun >= rules.MinRun {
		add(w.ConsecutiveRun, "%d consecutive ports in use", ev.ConsecutiveRun)
	}
	family, hasFamily := rules.SpeedFamilies[in.Prefix]
	if hasFamily {
		add(w.SpeedPrior, "%s- ports usually take %s", in.Prefix, family)
	}
	rule := rules.Match(ev.Node, in)
	if rule != nil {
		add(rule.Boost, "deployment pattern %s", rule.Name)
	}
	if score > 100 {
		score = 100
	}

	threshold := rules.UsedThreshold
	if !in.Used {
		if rule == nil || !rule.HighProbability {
			return Result{
				Status:   NoSFP,
				Evidence: append(notes, "unused and not a high-probability deployment"),
				Method:   MethodNone,
			}
		}
		threshold = rules.UnusedThreshold
	}
	if score < threshold {
		return Result{
			Status:   NoSFP,
			Evidence: append(notes, fmt.Sprintf("score %d below threshold %d", score, threshold)),
			Method:   MethodNone,
		}
	}

	var status string
	switch {
	case rule != nil && rule.SFP != "":
		status = rule.SFP
	case ev.AdjacentSFP != "":
		status = ev.AdjacentSFP
	case hasFamily:
		status = family
		if reach := rules.reachOf(in.Description); reach != "" {
			status += " " + reach
		}
	default:
		status = "Unknown SFP"
	}
	return Result{Status: status, Confidence: score, Evidence: notes, Method: MethodHeuristic}
}

type picKey struct{ fpc, pic int }

// Survey derives the neighbourhood evidence for every interface of a device.
// known maps interface names to authoritative transceiver labels and lldp
// maps interface names to the neighbour's system name.
func Survey(node string, ifaces []Interface, known, lldp map[string]string) map[string]Evidence {
	used := map[picKey]map[int]bool{}
	labels := map[picKey]map[int]string{}
	for _, in := range ifaces {
		k := picKey{in.FPC, in.PIC}
		if used[k] == nil {
			used[k] = map[int]bool{}
			labels[k] = map[int]string{}
		}
		if in.Used {
			used[k][in.Port] = true
		}
		if l, ok := known[in.Name]; ok && l != "" && labels[k][in.Port] == "" {
			labels[k][in.Port] = l
		}
	}

	out := make(map[string]Evidence, len(ifaces))
	for _, in := range ifaces {
		k := picKey{in.FPC, in.PIC}
		ev := Evidence{Node: node}
		if n, ok := lldp[in.Name]; ok {
			ev.LLDP = true
			ev.Neighbor = n
		}
		if l := labels[k][in.Port-1]; l != "" {
			ev.AdjacentSFP = l
		} else if l := labels[k][in.Port+1]; l != "" {
			ev.AdjacentSFP = l
		}
		ev.ConsecutiveRun = runLength(used[k], in.Port)
		out[in.Name] = ev
	}
	return out
}

// runLength is the length of the in-use run through port. For a free port
// it is the longer run touching it on either side.
func runLength(used map[int]bool, port int) int {
	count := func(from, step int) int {
		n := 0
		for p := from; used[p]; p += step {
			n++
		}
		return n
	}
	if used[port] {
		return count(port, -1) + count(port+1, 1)
	}
	left, right := count(port-1, -1), count(port+1, 1)
	if left > right {
		return left
	}
	return right
}

// SortInterfaces orders interfaces by fpc, pic, port, channel
func SortInterfaces(ifaces []Interface) {
	sort.SliceStable(ifaces, func(i, j int) bool {
		a, b := ifaces[i], ifaces[j]
		if a.FPC != b.FPC {
			return a.FPC < b.FPC
		}
		if a.PIC != b.PIC {
			return a.PIC < b.PIC
		}
		if a.Port != b.Port {
			return a.Port < b.Port
		}
		if a.Channel != b.Channel {
			return a.Channel < b.Channel
		}
		return strings.Compare(a.Prefix, b.Prefix) < 0
	})
}
