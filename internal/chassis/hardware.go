package chassis

import (
	"strings"

	"github.com/beevik/etree"
	"github.com/sirupsen/logrus"
)

const (
	statusPresent = "Present"
	unavailable   = "hardware data unavailable"
)

// Classify derives a component type from an inventory name
func Classify(name string) string {
	n := strings.ToUpper(strings.TrimSpace(name))
	switch {
	case n == "CHASSIS":
		return TypeChassis
	case strings.HasPrefix(n, "MIDPLANE"):
		return TypeMidplane
	case strings.HasPrefix(n, "FPM"):
		return TypeFPM
	case strings.HasPrefix(n, "PDM"):
		return TypePDM
	case strings.HasPrefix(n, "PEM"):
		return TypePEM
	case strings.HasPrefix(n, "ROUTING ENGINE"):
		return TypeRoutingEngine
	case strings.HasPrefix(n, "CB"):
		return TypeControlBoard
	case strings.HasPrefix(n, "FPC"):
		return TypeFPC
	case strings.HasPrefix(n, "CPU"):
		return TypeCPU
	case strings.HasPrefix(n, "MIC"):
		return TypeMIC
	case strings.HasPrefix(n, "PIC"):
		return TypePIC
	case strings.HasPrefix(n, "XCVR"):
		return TypeTransceiver
	case strings.Contains(n, "FAN"):
		return TypeFan
	case strings.Contains(n, "POWER"), strings.Contains(n, "PSU"):
		return TypePower
	}
	return TypeComponent
}

// walker accumulates components for one device
type walker struct {
	log   logrus.FieldLogger
	out   []HardwareComponent
	seen  map[string]bool
	fails int
	dups  int
}

// emit appends c unless a component with the same slot and type is already
// recorded. Merged replies often repeat part of the inventory.
func (w *walker) emit(c HardwareComponent) {
	key := c.Type + "|" + c.Slot
	if w.seen[key] {
		w.dups++
		return
	}
	w.seen[key] = true
	w.out = append(w.out, c)
}

// WalkHardware flattens the chassis inventory depth first. Every chassis
// element is walked, so documents merged from several replies keep the
// modules of each; the chassis row and repeated slots are emitted once.
// A device without chassis data yields a single placeholder row.
func WalkHardware(doc *etree.Document, node string, log logrus.FieldLogger) []HardwareComponent {
	w := &walker{log: log.WithField("node", node), seen: make(map[string]bool)}

	var chassis []*etree.Element
	if doc != nil {
		chassis = doc.FindElements("//chassis-inventory/chassis")
		if len(chassis) == 0 {
			chassis = doc.FindElements("//chassis")
		}
	}
	if len(chassis) == 0 {
		w.log.Debug("no chassis element, emitting placeholder")
		return []HardwareComponent{{
			Type:     TypeChassis,
			Status:   "Unknown",
			Comments: unavailable,
		}}
	}

	for _, ch := range chassis {
		// salvaged inventories carry no chassis name of their own
		if childText(ch, "name") != "" {
			w.add(ch, "")
		}
		for _, mod := range ch.SelectElements("chassis-module") {
			w.walk(mod, "", 0)
		}
	}
	if w.fails > 0 {
		w.log.WithField("skipped", w.fails).Debug("skipped unnamed inventory nodes")
	}
	if w.dups > 0 {
		w.log.WithFields(logrus.Fields{"chassis": len(chassis), "duplicates": w.dups}).Debug("merged repeated inventory entries")
	}
	return w.out
}

// Unavailable reports whether components is the placeholder emitted when a
// device had no chassis data
func Unavailable(components []HardwareComponent) bool {
	return len(components) == 1 && components[0].Comments == unavailable
}

var levels = []string{"chassis-module", "chassis-sub-module", "chassis-sub-sub-module", "chassis-sub-sub-sub-module"}

func (w *walker) walk(el *etree.Element, parent string, depth int) {
	path, ok := w.add(el, parent)
	if !ok {
		return
	}

	if Classify(childText(el, "name")) == TypeRoutingEngine {
		for _, tag := range []string{"chassis-re-disk-module", "chassis-re-usb-module"} {
			for _, sub := range el.SelectElements(tag) {
				w.addStorage(sub, path, tag)
			}
		}
	}

	if depth+1 >= len(levels) {
		return
	}
	for _, child := range el.SelectElements(levels[depth+1]) {
		w.walk(child, path, depth+1)
	}
	// nested chassis-module left behind by tag balancing
	if depth == 0 {
		for _, child := range el.SelectElements("chassis-module") {
			w.walk(child, "", 0)
		}
	}
}

// add records el and returns its slot path. Builtin PICs are not recorded
// but their children are still walked.
func (w *walker) add(el *etree.Element, parent string) (string, bool) {
	name := childText(el, "name")
	if name == "" {
		w.fails++
		return "", false
	}
	path := name
	if parent != "" {
		path = parent + "/" + name
	}

	c := HardwareComponent{
		Type:       Classify(name),
		Slot:       path,
		PartNumber: childText(el, "part-number"),
		Serial:     childText(el, "serial-number"),
		Model:      childText(el, "description"),
		Version:    childText(el, "version"),
		Status:     statusPresent,
	}
	if c.Model == "" {
		c.Model = childText(el, "model-number")
	} else if mn := childText(el, "model-number"); mn != "" {
		c.Comments = mn
	}
	if c.Type == TypeChassis {
		c.Slot = ""
	}

	if c.Type == TypePIC && strings.EqualFold(c.PartNumber, "BUILTIN") {
		return path, true
	}
	w.emit(c)
	return path, true
}

func (w *walker) addStorage(el *etree.Element, parent, tag string) {
	name := childText(el, "name")
	if name == "" {
		w.fails++
		return
	}
	typ := TypeDisk
	if tag == "chassis-re-usb-module" {
		typ = TypeUSB
	}
	model := childText(el, "model", "description")
	c := HardwareComponent{
		Type:       typ,
		Slot:       parent + "/" + name,
		PartNumber: childText(el, "part-number"),
		Serial:     childText(el, "serial-number"),
		Model:      model,
		Version:    childText(el, "version"),
		Status:     statusPresent,
	}
	if size := childText(el, "disk-size"); size != "" {
		c.Comments = size + " MB"
	}
	w.emit(c)
}
