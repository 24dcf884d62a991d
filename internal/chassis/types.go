// Package chassis maps a parsed Junos chassis inventory into module labels,
// transceiver labels and flat hardware records.
package chassis

import (
	"html"
	"regexp"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// HardwareComponent is one node of the chassis hierarchy
type HardwareComponent struct {
	Type       string `json:"type"`
	Slot       string `json:"slot"`
	PartNumber string `json:"part_number"`
	Serial     string `json:"serial"`
	Model      string `json:"model"`
	Version    string `json:"version"`
	Status     string `json:"status"`
	Comments   string `json:"comments"`
}

// Component types as classified from the inventory name
const (
	TypeChassis       = "Chassis"
	TypeMidplane      = "Midplane"
	TypeFPM           = "FPM"
	TypePDM           = "PDM"
	TypePEM           = "PEM"
	TypeRoutingEngine = "Routing Engine"
	TypeControlBoard  = "Control Board"
	TypeFPC           = "FPC"
	TypeCPU           = "CPU"
	TypeMIC           = "MIC"
	TypePIC           = "PIC"
	TypeTransceiver   = "Transceiver"
	TypeFan           = "Fan"
	TypePower         = "Power Supply"
	TypeDisk          = "Disk"
	TypeUSB           = "USB"
	TypeComponent     = "Component"
)

// ModuleMap maps a decimal FPC slot to its module label
type ModuleMap map[string]string

var (
	fpcNamePattern  = regexp.MustCompile(`(?i)FPC\s*(\d+)`)
	picNamePattern  = regexp.MustCompile(`(?i)PIC\s*(\d+)`)
	xcvrNamePattern = regexp.MustCompile(`(?i)^Xcvr\s*(\d+)`)
)

var placeholders = map[string]bool{
	"":        true,
	"N/A":     true,
	"NA":      true,
	"NONE":    true,
	"UNKNOWN": true,
	"-":       true,
}

// IsPlaceholder reports whether s carries no real value
func IsPlaceholder(s string) bool {
	return placeholders[strings.ToUpper(strings.TrimSpace(s))]
}

// cleanText unescapes entities and collapses whitespace
func cleanText(s string) string {
	return strings.Join(strings.Fields(html.UnescapeString(s)), " ")
}

// childText returns the cleaned text of the first named direct child that
// has a value.
func childText(el *etree.Element, names ...string) string {
	for _, n := range names {
		if c := el.SelectElement(n); c != nil {
			if t := cleanText(c.Text()); t != "" {
				return t
			}
		}
	}
	return ""
}

// childInt parses the first named direct child holding an integer
func childInt(el *etree.Element, names ...string) (int, bool) {
	for _, n := range names {
		if c := el.SelectElement(n); c != nil {
			if v, err := strconv.Atoi(strings.TrimSpace(c.Text())); err == nil {
				return v, true
			}
		}
	}
	return 0, false
}

func matchInt(re *regexp.Regexp, s string) (int, bool) {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	v, err := strconv.Atoi(m[1])
	return v, err == nil
}
