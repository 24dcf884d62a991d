// Package junos parses the text and XML output of Junos show commands into
// plain records.
package junos

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// PortName is a physical interface name split into its coordinates
type PortName struct {
	Prefix  string
	FPC     int
	PIC     int
	Port    int
	Channel int // -1 when not channelized
	Unit    int // -1 for the physical interface
}

var portNamePattern = regexp.MustCompile(`^(ge|xe|et|ce|mge|fe)-(\d+)/(\d+)/(\d+)(?::(\d+))?(?:\.(\d+))?$`)

// ParseName splits names like xe-1/2/3, et-0/0/1:2 or ge-0/0/0.100
func ParseName(name string) (PortName, bool) {
	m := portNamePattern.FindStringSubmatch(strings.TrimSpace(name))
	if m == nil {
		return PortName{}, false
	}
	p := PortName{Prefix: m[1], Channel: -1, Unit: -1}
	p.FPC, _ = strconv.Atoi(m[2])
	p.PIC, _ = strconv.Atoi(m[3])
	p.Port, _ = strconv.Atoi(m[4])
	if m[5] != "" {
		p.Channel, _ = strconv.Atoi(m[5])
	}
	if m[6] != "" {
		p.Unit, _ = strconv.Atoi(m[6])
	}
	return p, true
}

// Physical returns the interface name without its logical unit
func (p PortName) Physical() string {
	s := fmt.Sprintf("%s-%d/%d/%d", p.Prefix, p.FPC, p.PIC, p.Port)
	if p.Channel >= 0 {
		s += fmt.Sprintf(":%d", p.Channel)
	}
	return s
}

// PhysicalName strips the logical unit from any interface name
func PhysicalName(name string) string {
	if i := strings.LastIndex(name, "."); i > 0 {
		return name[:i]
	}
	return name
}
