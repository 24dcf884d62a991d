package chassis

import (
	"crypto/sha256"
	"strings"

	"github.com/sirupsen/logrus"
)

// Policy drives the scrubbing of lab and dummy inventory data
type Policy struct {
	TestSerials     []string `yaml:"test_serials" mapstructure:"test_serials"`
	TestPartNumbers []string `yaml:"test_part_numbers" mapstructure:"test_part_numbers"`
	// Nodes whose scrubbed components keep a generated serial instead of
	// being dropped.
	SyntheticSerialNodes []string `yaml:"synthetic_serial_nodes" mapstructure:"synthetic_serial_nodes"`
}

// DefaultPolicy returns the built-in lists
func DefaultPolicy() Policy {
	return Policy{
		TestSerials: []string{
			"JN1230EB8AFA",
			"TESTSERIAL",
			"DUMMY0000001",
			"000000000000",
			"123456789012",
			"ABCDEFGHIJKL",
		},
		TestPartNumbers: []string{
			"000-000000",
			"999-999999",
			"750-000000",
		},
		SyntheticSerialNodes: []string{"R3.KYA.PE-MOBILE.2"},
	}
}

const syntheticComment = "synthetic serial"

// Validate scrubs components carrying known test serials or part numbers.
// FPC 7 and FPM entries are kept as they are. On nodes listed for synthetic
// serials the serial is regenerated, elsewhere the component is dropped.
// Running it twice gives the same result.
func Validate(components []HardwareComponent, node string, p Policy, log logrus.FieldLogger) []HardwareComponent {
	serials := upperSet(p.TestSerials)
	parts := upperSet(p.TestPartNumbers)
	synthetic := false
	for _, n := range p.SyntheticSerialNodes {
		if strings.EqualFold(strings.TrimSpace(n), node) {
			synthetic = true
			break
		}
	}

	out := make([]HardwareComponent, 0, len(components))
	dropped, replaced := 0, 0
	for _, c := range components {
		badSerial := serials[strings.ToUpper(c.Serial)]
		badPart := parts[strings.ToUpper(c.PartNumber)]
		if !badSerial && !badPart {
			out = append(out, c)
			continue
		}
		if isProvisionedException(c) {
			out = append(out, c)
			continue
		}
		if synthetic {
			c.Serial = GenerateRealisticSerial(c.Type, node, c.Slot)
			c.Comments = syntheticComment
			out = append(out, c)
			replaced++
			continue
		}
		dropped++
		log.WithFields(logrus.Fields{
			"node":   node,
			"type":   c.Type,
			"slot":   c.Slot,
			"serial": c.Serial,
			"part":   c.PartNumber,
		}).Debug("dropped component with test inventory data")
	}

	if dropped > 0 || replaced > 0 {
		log.WithFields(logrus.Fields{"node": node, "dropped": dropped, "replaced": replaced}).
			Info("scrubbed test inventory data")
	}
	return out
}

func isProvisionedException(c HardwareComponent) bool {
	if c.Type == TypeFPM {
		return true
	}
	return c.Type == TypeFPC && strings.EqualFold(strings.Join(strings.Fields(c.Slot), " "), "FPC 7")
}

func upperSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			set[strings.ToUpper(s)] = true
		}
	}
	return set
}

type serialFormat struct {
	prefix string
	length int
}

var serialFormats = map[string]serialFormat{
	TypeChassis:       {"JN1", 12},
	TypeMidplane:      {"ACRB", 12},
	TypeFPM:           {"CAFT", 12},
	TypePDM:           {"QCS", 12},
	TypePEM:           {"1EDL", 12},
	TypeRoutingEngine: {"9009", 12},
	TypeControlBoard:  {"CAEA", 12},
	TypeFPC:           {"CAD", 12},
	TypeCPU:           {"CAH", 12},
	TypeMIC:           {"CAFB", 12},
	TypePIC:           {"CAG", 12},
	TypeTransceiver:   {"1ACP", 10},
	TypeFan:           {"ACDB", 12},
	TypePower:         {"1F0", 12},
	TypeDisk:          {"P1T", 14},
	TypeUSB:           {"AA0", 14},
}

const serialAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// GenerateRealisticSerial derives a serial from the component type, node and
// slot. The same arguments always give the same serial.
func GenerateRealisticSerial(componentType, nodeName, slotPosition string) string {
	f, ok := serialFormats[componentType]
	if !ok {
		f = serialFormat{"SN", 12}
	}
	sum := sha256.Sum256([]byte(nodeName + "|" + componentType + "|" + slotPosition))

	var b strings.Builder
	b.WriteString(f.prefix)
	for i := 0; b.Len() < f.length; i++ {
		b.WriteByte(serialAlphabet[int(sum[i%len(sum)])%len(serialAlphabet)])
	}
	return b.String()
}
