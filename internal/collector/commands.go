package collector

import (
	"time"

	"github.com/junoscope/junoscope/internal/cache"
)

// Capture keys, also the file names used for saved captures
const (
	KeyHardware     = "hardware"
	KeyFPC          = "fpc"
	KeyPIC          = "pic"
	KeyOptics       = "optics"
	KeyDescriptions = "descriptions"
	KeyLLDP         = "lldp"
	KeyAlarms       = "alarms"
	KeyIfConfig     = "ifconfig"
)

// Command is one show command issued to every device
type Command struct {
	Key string
	CLI string
	// TTL is how long a capture may be reused when a device is retried
	TTL time.Duration
}

// Commands is the fixed per-device sequence, in issue order
var Commands = []Command{
	{KeyHardware, "show chassis hardware detail | display xml", cache.TTLInventory},
	{KeyFPC, "show chassis fpc | display xml", cache.TTLInventory},
	{KeyPIC, "show chassis pic | display xml", cache.TTLInventory},
	{KeyOptics, "show interfaces diagnostics optics | display xml", cache.TTLState},
	{KeyDescriptions, "show interfaces descriptions", cache.TTLState},
	{KeyLLDP, "show lldp neighbors", cache.TTLState},
	{KeyAlarms, "show chassis alarms | display xml", cache.TTLState},
	{KeyIfConfig, "show configuration interfaces | display xml", cache.TTLState},
}

// commandKey returns the capture key of a CLI command
func commandKey(cli string) (string, bool) {
	for _, c := range Commands {
		if c.CLI == cli {
			return c.Key, true
		}
	}
	return "", false
}
