// Package sfp decides what transceiver, if any, sits in a port. Authoritative
// optics and chassis data win; otherwise a scored evidence chain guesses.
package sfp

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Range is an inclusive integer range. The zero value matches anything.
type Range struct {
	Lo, Hi int
	Set    bool
}

// UnmarshalYAML accepts "3", 3 or "0-11"
func (r *Range) UnmarshalYAML(n *yaml.Node) error {
	v := strings.TrimSpace(n.Value)
	if v == "" || v == "*" {
		*r = Range{}
		return nil
	}
	lo, hi, found := strings.Cut(v, "-")
	a, err := strconv.Atoi(strings.TrimSpace(lo))
	if err != nil {
		return errors.Errorf("line %d: bad range %q", n.Line, v)
	}
	b := a
	if found {
		if b, err = strconv.Atoi(strings.TrimSpace(hi)); err != nil || b < a {
			return errors.Errorf("line %d: bad range %q", n.Line, v)
		}
	}
	*r = Range{Lo: a, Hi: b, Set: true}
	return nil
}

func (r Range) MarshalYAML() (interface{}, error) {
	switch {
	case !r.Set:
		return "*", nil
	case r.Lo == r.Hi:
		return r.Lo, nil
	}
	return fmt.Sprintf("%d-%d", r.Lo, r.Hi), nil
}

func (r Range) Contains(v int) bool {
	return !r.Set || (v >= r.Lo && v <= r.Hi)
}

// Deployment is a known install pattern: ports of a node family that are
// usually populated, with the optic they usually carry.
type Deployment struct {
	Name            string `yaml:"name"`
	Node            string `yaml:"node"`
	Prefix          string `yaml:"prefix"`
	FPC             Range  `yaml:"fpc"`
	PIC             Range  `yaml:"pic"`
	Port            Range  `yaml:"port"`
	Boost           int    `yaml:"boost"`
	SFP             string `yaml:"sfp"`
	HighProbability bool   `yaml:"high_probability"`

	node *regexp.Regexp
}

// Weights are the points each kind of evidence adds to the score
type Weights struct {
	Description    int `yaml:"description"`
	LLDP           int `yaml:"lldp"`
	LinkUp         int `yaml:"link_up"`
	AdjacentSFP    int `yaml:"adjacent_sfp"`
	ConsecutiveRun int `yaml:"consecutive_run"`
	SpeedPrior     int `yaml:"speed_prior"`
}

// Rules is the data side of the inference chain
type Rules struct {
	UsedThreshold       int               `yaml:"used_threshold"`
	UnusedThreshold     int               `yaml:"unused_threshold"`
	MinRun              int               `yaml:"min_run"`
	ValidateConsistency bool              `yaml:"validate_consistency"`
	Weights             Weights           `yaml:"weights"`
	SpeedFamilies       map[string]string `yaml:"speed_families"`
	Keywords            []string          `yaml:"keywords"`
	Reach               []string          `yaml:"reach"`
	SpareMarkers        []string          `yaml:"spare_markers"`
	Deployments         []Deployment      `yaml:"deployments"`
}

const defaultRulesYAML = `
used_threshold: 30
unused_threshold: 40
min_run: 3
validate_consistency: false

weights:
  description: 20
  lldp: 25
  link_up: 25
  adjacent_sfp: 15
  consecutive_run: 10
  speed_prior: 10

speed_families:
  ge: SFP (1G)
  xe: SFP+ (10G)
  et: QSFP+/QSFP28
  ce: QSFP28 (100G)

keywords: [uplink, downlink, core, transit, peer, backhaul, link, to-, cust, olt, ran, enb, gnb, mw, bng, agg, fiber, optic, 10g, 100g]
reach: [LR4, SR4, ER4, CWDM4, LR, SR, ER, ZR, LX, SX, BX]
spare_markers: [spare, unused, free, reserved, available]

deployments:
  - name: mobile-pe-10g-access
    node: '^R3\.KYA\.PE-MOBILE\.2$'
    prefix: xe
    fpc: 0-1
    pic: 0-3
    port: 0-11
    boost: 20
    sfp: SFP+ (10G) LR
    high_probability: true
  - name: mobile-pe-100g-core
    node: 'PE-MOBILE'
    prefix: et
    port: 0-5
    boost: 15
    sfp: QSFP28 (100G) LR4
`

// Default returns the built-in rules
func Default() *Rules {
	r, err := parse([]byte(defaultRulesYAML))
	if err != nil {
		panic(fmt.Sprintf("built-in sfp rules: %v", err))
	}
	return r
}

// Load overlays the rules file at path on the built-in rules. An empty
// path returns the defaults.
func Load(path string) (*Rules, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read sfp rules")
	}
	r := Default()
	if err := yaml.Unmarshal(data, r); err != nil {
		return nil, errors.Wrapf(err, "parse sfp rules %s", path)
	}
	if err := r.compile(); err != nil {
		return nil, errors.Wrapf(err, "sfp rules %s", path)
	}
	return r, nil
}

func parse(data []byte) (*Rules, error) {
	r := &Rules{}
	if err := yaml.Unmarshal(data, r); err != nil {
		return nil, err
	}
	return r, r.compile()
}

func (r *Rules) compile() error {
	for i := range r.Deployments {
		d := &r.Deployments[i]
		d.Prefix = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(d.Prefix)), "-")
		if d.Node == "" {
			d.node = nil
			continue
		}
		re, err := regexp.Compile(d.Node)
		if err != nil {
			return errors.Wrapf(err, "deployment %q node pattern", d.Name)
		}
		d.node = re
	}
	return nil
}

// YAML renders the effective rules
func (r *Rules) YAML() ([]byte, error) {
	return yaml.Marshal(r)
}

// Match returns the first deployment covering the interface on node
func (r *Rules) Match(node string, in Interface) *Deployment {
	for i := range r.Deployments {
		d := &r.Deployments[i]
		if d.node != nil && !d.node.MatchString(node) {
			continue
		}
		if d.Prefix != "" && d.Prefix != in.Prefix {
			continue
		}
		if d.FPC.Contains(in.FPC) && d.PIC.Contains(in.PIC) && d.Port.Contains(in.Port) {
			return d
		}
	}
	return nil
}

// IsSpare reports whether a description marks the port as intentionally free
func (r *Rules) IsSpare(desc string) bool {
	d := strings.ToLower(desc)
	for _, m := range r.SpareMarkers {
		if m != "" && strings.Contains(d, strings.ToLower(m)) {
			return true
		}
	}
	return false
}

func (r *Rules) matchKeyword(desc string) string {
	d := strings.ToLower(desc)
	for _, k := range r.Keywords {
		if k != "" && strings.Contains(d, strings.ToLower(k)) {
			return k
		}
	}
	return ""
}

var wordSplit = regexp.MustCompile(`[^A-Za-z0-9]+`)

// reachOf finds an optic reach code such as LR or SR4 in a description
func (r *Rules) reachOf(desc string) string {
	words := map[string]bool{}
	for _, w := range wordSplit.Split(strings.ToUpper(desc), -1) {
		words[w] = true
	}
	for _, code := range r.Reach {
		if words[strings.ToUpper(code)] {
			return strings.ToUpper(code)
		}
	}
	return ""
}
