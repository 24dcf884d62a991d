package sfp

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/junoscope/junoscope/internal/chassis"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func xe(port int) Interface {
	return Interface{Name: "xe-0/0/" + strconv.Itoa(port), Prefix: "xe", FPC: 0, PIC: 0, Port: port, Channel: -1}
}

func TestInferUnusedWithoutPattern(t *testing.T) {
	in := xe(4)
	in.Description = "uplink to core"
	res := Infer(in, Evidence{Node: "X", LLDP: true}, Default())

	assert.Equal(t, NoSFP, res.Status)
	assert.Equal(t, 0, res.Confidence)
	assert.Equal(t, MethodNone, res.Method)
	assert.False(t, res.Detected())
}

func TestInferUsedWithLLDP(t *testing.T) {
	in := xe(1)
	in.Used = true
	res := Infer(in, Evidence{Node: "X", LLDP: true, Neighbor: "r2"}, Default())

	assert.Contains(t, res.Status, "SFP+")
	assert.GreaterOrEqual(t, res.Confidence, 30)
	assert.Equal(t, MethodHeuristic, res.Method)
	assert.Contains(t, res.Evidence, "LLDP neighbor r2 (+25)")
}

func TestInferBelowThreshold(t *testing.T) {
	in := Interface{Name: "ge-1/0/0", Prefix: "ge", FPC: 1, Port: 0, Channel: -1, Used: true}
	res := Infer(in, Evidence{Node: "X"}, Default())

	assert.Equal(t, NoSFP, res.Status)
	assert.Equal(t, 0, res.Confidence)
	assert.Contains(t, res.Evidence[len(res.Evidence)-1], "below threshold 30")
}

func TestInferSuggestionOrder(t *testing.T) {
	rules := Default()

	in := xe(2)
	in.Used = true
	in.LinkUp = true
	in.Description = "Backhaul LR to site 4"
	res := Infer(in, Evidence{Node: "X"}, rules)
	assert.Equal(t, "SFP+ (10G) LR", res.Status)
	assert.Equal(t, 20+25+10, res.Confidence)

	res = Infer(in, Evidence{Node: "X", AdjacentSFP: "SFP+-10G-ER"}, rules)
	assert.Equal(t, "SFP+-10G-ER", res.Status)

	res = Infer(in, Evidence{Node: "R3.KYA.PE-MOBILE.2", LLDP: true, AdjacentSFP: "SFP+-10G-ER"}, rules)
	assert.Equal(t, "SFP+ (10G) LR", res.Status)
	assert.Equal(t, 100, res.Confidence, "score is capped")
}

func TestInferUnusedHighProbability(t *testing.T) {
	rules := Default()
	node := "R3.KYA.PE-MOBILE.2"

	in := xe(5)
	res := Infer(in, Evidence{Node: node}, rules)
	assert.Equal(t, NoSFP, res.Status, "boost and speed prior alone stay under 40")

	res = Infer(in, Evidence{Node: node, ConsecutiveRun: 4, AdjacentSFP: "SFP+-10G-LR"}, rules)
	assert.Equal(t, "SFP+ (10G) LR", res.Status)
	assert.Equal(t, 20+10+15+10, res.Confidence)

	out := Interface{Name: "xe-0/0/20", Prefix: "xe", Port: 20, Channel: -1}
	res = Infer(out, Evidence{Node: node, ConsecutiveRun: 4, AdjacentSFP: "SFP+-10G-LR"}, rules)
	assert.Equal(t, NoSFP, res.Status, "port outside the pattern range")
}

func TestSurvey(t *testing.T) {
	ifaces := []Interface{xe(0), xe(1), xe(2), xe(3), xe(5)}
	for i := range ifaces[:3] {
		ifaces[i].Used = true
	}
	ifaces[4].Used = true
	other := Interface{Name: "xe-0/1/1", Prefix: "xe", PIC: 1, Port: 1, Channel: -1}
	ifaces = append(ifaces, other)

	ev := Survey("r1", ifaces,
		map[string]string{"xe-0/0/2": "SFP+-10G-LR"},
		map[string]string{"xe-0/0/0": "r2"})

	assert.True(t, ev["xe-0/0/0"].LLDP)
	assert.Equal(t, "r2", ev["xe-0/0/0"].Neighbor)
	assert.Equal(t, "r1", ev["xe-0/0/0"].Node)
	assert.Equal(t, 3, ev["xe-0/0/1"].ConsecutiveRun)
	assert.Equal(t, "SFP+-10G-LR", ev["xe-0/0/1"].AdjacentSFP)
	assert.Equal(t, "SFP+-10G-LR", ev["xe-0/0/3"].AdjacentSFP)
	assert.Equal(t, 3, ev["xe-0/0/3"].ConsecutiveRun)
	assert.Equal(t, 1, ev["xe-0/0/5"].ConsecutiveRun)
	assert.Empty(t, ev["xe-0/1/1"].AdjacentSFP)
	assert.Equal(t, 0, ev["xe-0/1/1"].ConsecutiveRun)
}

func TestResolveOrder(t *testing.T) {
	log, _ := test.NewNullLogger()
	rules := Default()
	xcvr := chassis.NewXcvrMap()
	xcvr.Set(chassis.Coord{FPC: 0, PIC: 0, Port: 1}, "SFP+-10G-SR")

	in := xe(1)
	res := Resolve(in, Sources{Optics: map[string]bool{"xe-0/0/1": true}, Xcvr: xcvr}, Evidence{}, rules, log)
	assert.Equal(t, MethodOptics, res.Method)
	assert.Equal(t, "SFP+-10G-SR", res.Status)
	assert.Equal(t, 100, res.Confidence)

	res = Resolve(xe(3), Sources{Optics: map[string]bool{"xe-0/0/3": true}, Xcvr: xcvr}, Evidence{}, rules, log)
	assert.Equal(t, "SFP+ (10G)", res.Status)

	res = Resolve(in, Sources{Xcvr: xcvr}, Evidence{}, rules, log)
	assert.Equal(t, MethodChassis, res.Method)
	assert.Equal(t, "SFP+-10G-SR", res.Status)

	res = Resolve(xe(7), Sources{Xcvr: xcvr}, Evidence{Node: "X"}, rules, log)
	assert.Equal(t, NoSFP, res.Status)
	assert.Equal(t, 0, res.Confidence)

	res = Resolve(xe(7), Sources{}, Evidence{Node: "X"}, rules, log)
	assert.Equal(t, MethodNone, res.Method, "nil xcvr map is tolerated")
}

func TestResolveConsistencyToggle(t *testing.T) {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	xcvr := chassis.NewXcvrMap()
	xcvr.Set(chassis.Coord{FPC: 0, PIC: 0, Port: 0}, "QSFP-100GBASE-LR4")
	in := Interface{Name: "ge-0/0/0", Prefix: "ge", Channel: -1}

	rules := Default()
	res := Resolve(in, Sources{Xcvr: xcvr}, Evidence{}, rules, log)
	assert.Equal(t, "QSFP-100GBASE-LR4", res.Status, "check disabled by default")

	var logged bool
	for _, e := range hook.AllEntries() {
		if e.Message == "transceiver label does not fit interface speed" {
			logged = true
		}
	}
	assert.True(t, logged)

	rules.ValidateConsistency = true
	res = Resolve(in, Sources{Xcvr: xcvr}, Evidence{}, rules, log)
	assert.Equal(t, "SFP (1G)", res.Status)
	assert.Equal(t, MethodChassis, res.Method)
}

func TestConsistent(t *testing.T) {
	assert.True(t, Consistent(Interface{Prefix: "xe", Channel: -1}, "SFP+-10G-LR"))
	assert.True(t, Consistent(Interface{Prefix: "xe", Channel: -1}, "XFP-10G-SR"))
	assert.False(t, Consistent(Interface{Prefix: "xe", Channel: -1}, "QSFP+-40G-SR4"))
	assert.True(t, Consistent(Interface{Prefix: "xe", Channel: 2}, "QSFP+-40G-SR4"))
	assert.True(t, Consistent(Interface{Prefix: "et", Channel: -1}, "QSFP28 (100G) LR4"))
	assert.True(t, Consistent(Interface{Prefix: "ge", Channel: -1}, "1000BASE-T"))
	assert.False(t, Consistent(Interface{Prefix: "et", Channel: -1}, "SFP-1G-LX"))
}

func TestLoadOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
used_threshold: 50
validate_consistency: true
deployments:
  - name: lab
    node: '^lab-'
    prefix: xe-
    fpc: 2
    port: 0-3
    boost: 40
    sfp: SFP+ (10G) SR
    high_probability: true
`), 0644))

	rules, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 50, rules.UsedThreshold)
	assert.Equal(t, 40, rules.UnusedThreshold, "unset keys keep defaults")
	assert.True(t, rules.ValidateConsistency)
	require.Len(t, rules.Deployments, 1)

	d := rules.Deployments[0]
	assert.Equal(t, "xe", d.Prefix)
	assert.Equal(t, Range{Lo: 2, Hi: 2, Set: true}, d.FPC)
	assert.False(t, d.PIC.Set)

	in := Interface{Name: "xe-2/1/3", Prefix: "xe", FPC: 2, PIC: 1, Port: 3, Channel: -1}
	assert.NotNil(t, rules.Match("lab-r1", in))
	assert.Nil(t, rules.Match("prod-r1", in))
	in.FPC = 3
	assert.Nil(t, rules.Match("lab-r1", in))
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("deployments:\n  - name: x\n    port: 9-2\n"), 0644))
	_, err = Load(bad)
	assert.Error(t, err)

	badRe := filepath.Join(dir, "badre.yaml")
	require.NoError(t, os.WriteFile(badRe, []byte("deployments:\n  - name: x\n    node: '(['\n"), 0644))
	_, err = Load(badRe)
	assert.Error(t, err)

	rules, err := Load("")
	require.NoError(t, err)
	assert.Len(t, rules.Deployments, 2)
}

func TestRulesYAMLRoundTrip(t *testing.T) {
	out, err := Default().YAML()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, out, 0644))
	rules, err := Load(path)
	require.NoError(t, err)

	def := Default()
	assert.Equal(t, def.Weights, rules.Weights)
	require.Len(t, rules.Deployments, len(def.Deployments))
	for i := range def.Deployments {
		assert.Equal(t, def.Deployments[i].Port, rules.Deployments[i].Port)
		assert.Equal(t, def.Deployments[i].PIC, rules.Deployments[i].PIC)
	}
}

func TestIsSpare(t *testing.T) {
	rules := Default()
	assert.True(t, rules.IsSpare("SPARE - do not use"))
	assert.True(t, rules.IsSpare("reserved for OLT-4"))
	assert.False(t, rules.IsSpare("to-R2 xe-0/0/1"))
}
