package chassis

import (
	"sort"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"github.com/sirupsen/logrus"
)

// mpcFormat appends a port summary to recognisable MPC models
type mpcFormat struct {
	model  string // substring of the model number
	desc   string // substring the description must also carry, if set
	suffix string
}

var mpcFormats = []mpcFormat{
	{model: "MRATE", desc: "12x", suffix: "(12x QSFP+ Ports)"},
	{model: "MRATE", desc: "", suffix: "(Multi-Rate QSFP Ports)"},
	{model: "MPC7E-10G", suffix: "(40x SFP+ Ports)"},
	{model: "MPC10E-15C", suffix: "(15x QSFP28 Ports)"},
	{model: "MPC10E-10C", suffix: "(10x QSFP28 Ports)"},
	{model: "MPC4E-3D-32XGE", suffix: "(32x SFP+ Ports)"},
	{model: "MPC4E-3D-2CGE-8XGE", suffix: "(2x CFP + 8x SFP+ Ports)"},
	{model: "MPC-3D-16XGE", suffix: "(16x SFP+ Ports)"},
	{model: "MPC5E-40G10G", suffix: "(24x SFP+ / 6x QSFP+ Ports)"},
	{model: "MPC5E-100G10G", suffix: "(2x CFP2 / 4x QSFP+ Ports)"},
}

func formatModel(model, desc string) string {
	upperModel := strings.ToUpper(model)
	lowerDesc := strings.ToLower(desc)
	for _, f := range mpcFormats {
		if !strings.Contains(upperModel, f.model) {
			continue
		}
		if f.desc != "" && !strings.Contains(lowerDesc, strings.ToLower(f.desc)) {
			continue
		}
		if strings.Contains(model, f.suffix) {
			return model
		}
		return model + " " + f.suffix
	}
	return model
}

func moduleLabel(el *etree.Element) string {
	desc := childText(el, "description")
	if model := childText(el, "model-number"); !IsPlaceholder(model) {
		return formatModel(model, desc)
	}
	if !IsPlaceholder(desc) {
		return desc
	}
	return ""
}

// BuildModuleMap maps FPC slots to module labels. fpc elements are read
// first; chassis-module entries override them. Slots without a usable
// label stay unmapped.
func BuildModuleMap(doc *etree.Document, log logrus.FieldLogger) ModuleMap {
	mm := ModuleMap{}
	if doc == nil {
		return mm
	}

	for _, el := range doc.FindElements("//fpc") {
		slot, ok := childInt(el, "slot")
		if !ok {
			slot, ok = matchInt(fpcNamePattern, childText(el, "name"))
		}
		if !ok {
			continue
		}
		if label := moduleLabel(el); label != "" {
			mm[strconv.Itoa(slot)] = label
		}
	}

	for _, el := range doc.FindElements("//chassis-module") {
		name := childText(el, "name")
		slot, ok := matchInt(fpcNamePattern, name)
		if !ok {
			if strings.TrimSpace(name) != "" && !strings.HasPrefix(strings.ToUpper(name), "FPC") {
				// PEM, Routing Engine and friends have no FPC slot
				continue
			}
			slot, ok = childInt(el, "slot", "slot-number", "fpc")
		}
		if !ok {
			log.WithField("name", name).Debug("chassis-module without a resolvable slot")
			continue
		}
		label := moduleLabel(el)
		if label == "" {
			log.WithFields(logrus.Fields{"slot": slot, "name": name}).Debug("chassis-module has no usable label")
			continue
		}
		mm[strconv.Itoa(slot)] = label
	}

	for _, s := range mm.Slots() {
		log.WithFields(logrus.Fields{"slot": s, "label": mm[s]}).Debug("module mapped")
	}
	return mm
}

// Slots returns the mapped slots in numeric order
func (m ModuleMap) Slots() []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		a, _ := strconv.Atoi(out[i])
		b, _ := strconv.Atoi(out[j])
		return a < b
	})
	return out
}
