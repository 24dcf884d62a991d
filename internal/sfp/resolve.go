package sfp

import (
	"strings"

	"github.com/junoscope/junoscope/internal/chassis"
	"github.com/sirupsen/logrus"
)

// Sources are the authoritative inputs for one device
type Sources struct {
	// Optics holds the interfaces that returned optics diagnostics
	Optics map[string]bool
	Xcvr   *chassis.XcvrMap
}

// Resolve picks the transceiver for one port: optics diagnostics first,
// then the chassis transceiver map, then Infer.
func Resolve(in Interface, src Sources, ev Evidence, rules *Rules, log logrus.FieldLogger) Result {
	label, inChassis := src.Xcvr.Lookup(in.FPC, in.PIC, in.Port)

	var res Result
	switch {
	case src.Optics[in.Name]:
		status := label
		if status == "" {
			status = rules.SpeedFamilies[in.Prefix]
		}
		if status == "" {
			status = "Optic present"
		}
		res = Result{
			Status:     status,
			Confidence: 100,
			Evidence:   []string{"optics diagnostics reported"},
			Method:     MethodOptics,
		}
	case inChassis:
		res = Result{
			Status:     label,
			Confidence: 95,
			Evidence:   []string{"listed in chassis hardware"},
			Method:     MethodChassis,
		}
	default:
		res = Infer(in, ev, rules)
	}

	if res.Detected() && !Consistent(in, res.Status) {
		fields := logrus.Fields{"interface": in.Name, "label": res.Status, "method": res.Method}
		if rules.ValidateConsistency {
			if family, ok := rules.SpeedFamilies[in.Prefix]; ok {
				log.WithFields(fields).Warn("transceiver label does not fit interface speed, using speed family")
				res.Evidence = append(res.Evidence, "label "+res.Status+" replaced, inconsistent with "+in.Prefix+"- speed")
				res.Status = family
			}
		} else {
			log.WithFields(fields).Debug("transceiver label does not fit interface speed")
		}
	}

	log.WithFields(logrus.Fields{
		"interface":  in.Name,
		"status":     res.Status,
		"confidence": res.Confidence,
		"method":     res.Method,
		"evidence":   strings.Join(res.Evidence, "; "),
	}).Debug("sfp resolved")
	return res
}

func labelFamily(label string) string {
	l := strings.ToUpper(label)
	switch {
	case strings.Contains(l, "QSFP"), strings.Contains(l, "CFP"):
		return "qsfp"
	case strings.Contains(l, "SFP+"), strings.Contains(l, "XFP"), strings.Contains(l, "SFPP"):
		return "sfp+"
	case strings.Contains(l, "SFP"):
		return "sfp"
	}
	return ""
}

var prefixFamily = map[string]string{
	"ge": "sfp",
	"xe": "sfp+",
	"et": "qsfp",
	"ce": "qsfp",
}

// Consistent reports whether label fits the speed class implied by the
// interface prefix. Channelized ports and unknown labels always fit.
func Consistent(in Interface, label string) bool {
	if in.Channel >= 0 {
		return true
	}
	want, ok := prefixFamily[in.Prefix]
	got := labelFamily(label)
	if !ok || got == "" {
		return true
	}
	return want == got
}
