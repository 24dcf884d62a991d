package chassis

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/beevik/etree"
	"github.com/sirupsen/logrus"
)

// Any marks a coordinate component as unknown
const Any = -1

// Coord locates a transceiver. Components may be Any.
type Coord struct {
	FPC  int
	PIC  int
	Port int
}

func (c Coord) String() string {
	part := func(v int) string {
		if v == Any {
			return "*"
		}
		return fmt.Sprint(v)
	}
	return part(c.FPC) + "/" + part(c.PIC) + "/" + part(c.Port)
}

// XcvrMap holds transceiver labels keyed by coordinate
type XcvrMap struct {
	entries map[Coord]string
}

func NewXcvrMap() *XcvrMap {
	return &XcvrMap{entries: make(map[Coord]string)}
}

// Set records label at c unless something is already known there
func (m *XcvrMap) Set(c Coord, label string) bool {
	label = cleanText(label)
	if IsPlaceholder(label) {
		return false
	}
	if _, ok := m.entries[c]; ok {
		return false
	}
	m.entries[c] = label
	return true
}

// Lookup tries the exact coordinate, then without the FPC, then the port alone
func (m *XcvrMap) Lookup(fpc, pic, port int) (string, bool) {
	if m == nil {
		return "", false
	}
	for _, c := range []Coord{
		{FPC: fpc, PIC: pic, Port: port},
		{FPC: Any, PIC: pic, Port: port},
		{FPC: Any, PIC: Any, Port: port},
	} {
		if label, ok := m.entries[c]; ok {
			return label, true
		}
	}
	return "", false
}

// Merge copies entries of other that m does not have yet
func (m *XcvrMap) Merge(other *XcvrMap) {
	if other == nil {
		return
	}
	for c, label := range other.entries {
		if _, ok := m.entries[c]; !ok {
			m.entries[c] = label
		}
	}
}

func (m *XcvrMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}

// generic transceiver shapes and the children that may carry a label
var (
	genericXcvrTags   = []string{"transceiver", "optical-transceiver", "media", "component"}
	genericLabelTags  = []string{"description", "model", "model-number", "type", "media-type", "cable-type", "part-number", "name"}
	subModuleChildren = []string{"chassis-sub-module", "chassis-sub-sub-module", "chassis-sub-sub-sub-module"}
)

// BuildXcvrMap collects transceiver labels from generic transceiver nodes,
// pic port details and the nested chassis module hierarchy.
func BuildXcvrMap(doc *etree.Document, log logrus.FieldLogger) *XcvrMap {
	m := NewXcvrMap()
	if doc == nil {
		return m
	}

	// the hardware hierarchy is the most specific source, so it goes first
	for _, mod := range doc.FindElements("//chassis-module") {
		fpc, ok := matchInt(fpcNamePattern, childText(mod, "name"))
		if !ok {
			continue
		}
		walkXcvr(m, mod, fpc, Any, log)
	}

	for _, tag := range []string{"pic-detail", "pic"} {
		for _, pic := range doc.FindElements("//" + tag) {
			addPicPorts(m, pic, log)
		}
	}

	for _, tag := range genericXcvrTags {
		for _, el := range doc.FindElements("//" + tag) {
			addGeneric(m, el, log)
		}
	}

	log.WithField("entries", m.Len()).Debug("transceiver map built")
	return m
}

// walkXcvr descends the sub-module levels carrying the FPC and PIC seen so far
func walkXcvr(m *XcvrMap, el *etree.Element, fpc, pic int, log logrus.FieldLogger) {
	for _, tag := range subModuleChildren {
		for _, child := range el.SelectElements(tag) {
			name := childText(child, "name")
			childFPC, childPIC := fpc, pic
			if v, ok := matchInt(fpcNamePattern, name); ok {
				childFPC = v
			} else if v, ok := childInt(child, "fpc"); ok {
				childFPC = v
			}
			if v, ok := matchInt(picNamePattern, name); ok {
				childPIC = v
			} else if v, ok := childInt(child, "pic"); ok {
				childPIC = v
			}

			if port, ok := matchInt(xcvrNamePattern, name); ok {
				label := childText(child, "description", "model-number", "part-number")
				c := Coord{FPC: childFPC, PIC: childPIC, Port: port}
				if m.Set(c, label) {
					log.WithFields(logrus.Fields{"coord": c.String(), "label": label}).Debug("transceiver from hardware hierarchy")
				}
				continue
			}
			walkXcvr(m, child, childFPC, childPIC, log)
		}
	}
}

func addPicPorts(m *XcvrMap, pic *etree.Element, log logrus.FieldLogger) {
	fpc, ok := childInt(pic, "fpc-slot")
	if !ok {
		fpc = Any
		if parent := pic.Parent(); parent != nil && parent.Tag == "fpc" {
			if v, found := childInt(parent, "slot"); found {
				fpc = v
			}
		}
	}
	picSlot, ok := childInt(pic, "pic-slot")
	if !ok {
		picSlot = Any
	}

	for _, port := range pic.FindElements(".//port") {
		n, ok := childInt(port, "port-number")
		if !ok {
			continue
		}
		cable := childText(port, "cable-type")
		if cable == "" {
			continue
		}
		if wl := childText(port, "wavelength"); wl != "" && !IsPlaceholder(wl) {
			cable += " " + wl
		}
		c := Coord{FPC: fpc, PIC: picSlot, Port: n}
		if m.Set(c, cable) {
			log.WithFields(logrus.Fields{"coord": c.String(), "label": cable}).Debug("transceiver from pic port detail")
		}
	}
}

func addGeneric(m *XcvrMap, el *etree.Element, log logrus.FieldLogger) {
	port, ok := childInt(el, "port", "port-number")
	if !ok {
		if port, ok = matchInt(xcvrNamePattern, childText(el, "name")); !ok {
			return
		}
	}
	fpc, ok := childInt(el, "fpc", "fpc-slot")
	if !ok {
		fpc = Any
	}
	pic, ok := childInt(el, "pic", "pic-slot")
	if !ok {
		pic = Any
	}

	var candidates []string
	for _, tag := range genericLabelTags {
		if t := childText(el, tag); t != "" && !IsPlaceholder(t) {
			candidates = append(candidates, t)
		}
	}
	label := pickLabel(candidates)
	if label == "" {
		return
	}
	c := Coord{FPC: fpc, PIC: pic, Port: port}
	if m.Set(c, label) {
		log.WithFields(logrus.Fields{"coord": c.String(), "label": label, "tag": el.Tag}).Debug("transceiver from generic node")
	}
}

// pickLabel prefers the first candidate that reads like a description:
// it has a letter and either a space or more than six characters.
func pickLabel(candidates []string) string {
	var longest string
	for _, c := range candidates {
		hasLetter := strings.IndexFunc(c, unicode.IsLetter) >= 0
		if hasLetter && (strings.Contains(c, " ") || len(c) > 6) {
			return c
		}
		if len(c) > len(longest) {
			longest = c
		}
	}
	return longest
}
