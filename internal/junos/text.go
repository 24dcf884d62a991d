package junos

import (
	"regexp"
	"strings"
)

// Description is one line of "show interfaces descriptions"
type Description struct {
	Interface   string `json:"interface"`
	Admin       string `json:"admin"`
	Link        string `json:"link"`
	Description string `json:"description"`
}

func (d Description) AdminUp() bool { return strings.EqualFold(d.Admin, "up") }
func (d Description) LinkUp() bool  { return strings.EqualFold(d.Link, "up") }

var descLinePattern = regexp.MustCompile(`^(\S+)\s+(up|down)\s+(up|down)(?:\s+(.*))?$`)

// ParseDescriptions reads "show interfaces descriptions". Logical units are
// folded onto their physical port when the port has no line of its own.
func ParseDescriptions(text string) map[string]Description {
	out := make(map[string]Description)
	units := make(map[string]Description)

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "Interface") {
			continue
		}
		m := descLinePattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		d := Description{
			Interface:   m[1],
			Admin:       m[2],
			Link:        m[3],
			Description: strings.TrimSpace(m[4]),
		}
		if phys := PhysicalName(d.Interface); phys != d.Interface {
			if _, seen := units[phys]; !seen {
				d.Interface = phys
				units[phys] = d
			}
			continue
		}
		out[d.Interface] = d
	}

	for phys, d := range units {
		if _, ok := out[phys]; !ok {
			out[phys] = d
		}
	}
	return out
}

// Neighbor is one line of "show lldp neighbors"
type Neighbor struct {
	LocalInterface  string `json:"local_interface"`
	ParentInterface string `json:"parent_interface"`
	ChassisID       string `json:"chassis_id"`
	PortInfo        string `json:"port_info"`
	SystemName      string `json:"system_name"`
}

// ParseLLDP reads "show lldp neighbors" keyed by local interface. Port info
// may contain spaces; the system name is the last column.
func ParseLLDP(text string) map[string]Neighbor {
	out := make(map[string]Neighbor)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "Local Interface") || strings.HasPrefix(line, "{") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 5 {
			continue
		}
		if _, ok := ParseName(fields[0]); !ok {
			continue
		}
		n := Neighbor{
			LocalInterface:  fields[0],
			ParentInterface: fields[1],
			ChassisID:       fields[2],
			PortInfo:        strings.Join(fields[3:len(fields)-1], " "),
			SystemName:      fields[len(fields)-1],
		}
		if n.ParentInterface == "-" {
			n.ParentInterface = ""
		}
		out[PhysicalName(n.LocalInterface)] = n
	}
	return out
}
