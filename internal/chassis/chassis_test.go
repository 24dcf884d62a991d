package chassis

import (
	"testing"

	"github.com/beevik/etree"
	"github.com/junoscope/junoscope/internal/junosxml"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDoc(t *testing.T, s string) *etree.Document {
	t.Helper()
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromString(s))
	return doc
}

const hardwareXML = `<rpc-reply>
<chassis-inventory>
  <chassis junos:style="inventory">
    <name>Chassis</name>
    <serial-number>JN11F2A3BAFA</serial-number>
    <description>MX480</description>
    <chassis-module>
      <name>Midplane</name>
      <version>REV 08</version>
      <part-number>750-047862</part-number>
      <serial-number>ACRB1234</serial-number>
      <description>Enhanced MX480 Midplane</description>
    </chassis-module>
    <chassis-module>
      <name>Routing Engine 0</name>
      <version>REV 01</version>
      <part-number>750-072923</part-number>
      <serial-number>9009301234</serial-number>
      <description>RE-S-2X00x6</description>
      <chassis-re-disk-module>
        <name>disk1</name>
        <disk-size>15012</disk-size>
        <model>StorFly VSFA18PI016G-</model>
        <serial-number>P1T13003</serial-number>
        <description>SSD</description>
      </chassis-re-disk-module>
      <chassis-re-usb-module>
        <name>usb0 (addr 1)</name>
        <description>EHCI root hub 0</description>
      </chassis-re-usb-module>
    </chassis-module>
    <chassis-module>
      <name>FPC 0</name>
      <version>REV 15</version>
      <part-number>750-056519</part-number>
      <serial-number>CAHF5432</serial-number>
      <description>MPC7E 3D MRATE-12xQSFPP-XGE-XLGE-CGE</description>
      <model-number>MPC7E-MRATE</model-number>
      <chassis-sub-module>
        <name>CPU</name>
        <version>REV 12</version>
        <part-number>750-057177</part-number>
        <serial-number>CAHE1111</serial-number>
        <description>SMPC PMB</description>
      </chassis-sub-module>
      <chassis-sub-module>
        <name>PIC 0</name>
        <part-number>BUILTIN</part-number>
        <serial-number>BUILTIN</serial-number>
        <description>MRATE-6xQSFPP-XGE-XLGE-CGE</description>
        <chassis-sub-sub-module>
          <name>Xcvr 0</name>
          <version>REV 01</version>
          <part-number>740-058734</part-number>
          <serial-number>1ACPQ0012</serial-number>
          <description>QSFP-100GBASE-SR4</description>
        </chassis-sub-sub-module>
        <chassis-sub-sub-module>
          <name>Xcvr 3</name>
          <part-number>740-021308</part-number>
          <serial-number>ALP12345</serial-number>
          <description>QSFP+-40G-LR4</description>
        </chassis-sub-sub-module>
      </chassis-sub-module>
    </chassis-module>
    <chassis-module>
      <name>FPC 2</name>
      <description>MPC 3D 16x 10GE</description>
      <chassis-sub-module>
        <name>MIC 0</name>
        <part-number>750-028387</part-number>
        <description>3D 4x 10GE  XFP</description>
        <chassis-sub-sub-module>
          <name>PIC 1</name>
          <part-number>BUILTIN</part-number>
          <description>2x 10GE  XFP</description>
          <chassis-sub-sub-sub-module>
            <name>Xcvr 1</name>
            <part-number>740-014289</part-number>
            <description>XFP-10G-SR</description>
          </chassis-sub-sub-sub-module>
        </chassis-sub-sub-module>
      </chassis-sub-module>
    </chassis-module>
    <chassis-module>
      <name>PEM 0</name>
      <part-number>740-029970</part-number>
      <description>PS 1.4-2.52kW; 90-264V AC in</description>
    </chassis-module>
    <chassis-module>
      <name>Fan Tray</name>
      <description>Enhanced Fan Tray</description>
    </chassis-module>
  </chassis>
</chassis-inventory>
</rpc-reply>`

func TestBuildModuleMapMPC7E(t *testing.T) {
	log, _ := test.NewNullLogger()
	doc := mustDoc(t, `<root>
<fpc-information><fpc><slot>3</slot><state>Online</state></fpc></fpc-information>
<chassis-inventory><chassis>
  <chassis-module><name>FPC 3</name><model-number>MPC7E-MRATE</model-number>
    <description>MPC7E 3D MRATE-12xQSFPP-XGE-XLGE-CGE</description></chassis-module>
</chassis></chassis-inventory></root>`)

	mm := BuildModuleMap(doc, log)
	require.Contains(t, mm, "3")
	assert.Contains(t, mm["3"], "MPC7E")
	assert.Equal(t, "MPC7E-MRATE (12x QSFP+ Ports)", mm["3"])
}

func TestBuildModuleMapSources(t *testing.T) {
	log, _ := test.NewNullLogger()
	doc := mustDoc(t, `<root>
<fpc-information>
  <fpc><slot> 05</slot><description>MPC 3D 16x 10GE</description></fpc>
  <fpc><name>FPC 6</name><description>MPC5E</description></fpc>
  <fpc><slot>1</slot><description>old label</description></fpc>
</fpc-information>
<chassis-inventory><chassis>
  <chassis-module><name>FPC 1</name><description>MPC10E 3D MRATE-15xQSFP28</description><model-number>MPC10E-15C-MRATE</model-number></chassis-module>
  <chassis-module><name>FPC 4</name><model-number>N/A</model-number><description>Unknown</description></chassis-module>
  <chassis-module><name>PEM 0</name><slot>9</slot><description>DC Power</description></chassis-module>
  <chassis-module><slot-number>8</slot-number><description>Line card &amp; spare</description></chassis-module>
</chassis></chassis-inventory></root>`)

	mm := BuildModuleMap(doc, log)
	assert.Equal(t, ModuleMap{
		"1": "MPC10E-15C-MRATE (Multi-Rate QSFP Ports)",
		"5": "MPC 3D 16x 10GE",
		"6": "MPC5E",
		"8": "Line card & spare",
	}, mm)
	assert.Equal(t, []string{"1", "5", "6", "8"}, mm.Slots())
}

func TestBuildModuleMapNilDocument(t *testing.T) {
	log, _ := test.NewNullLogger()
	assert.Empty(t, BuildModuleMap(nil, log))
}

func TestBuildXcvrMapHierarchy(t *testing.T) {
	log, _ := test.NewNullLogger()
	m := BuildXcvrMap(mustDoc(t, hardwareXML), log)

	label, ok := m.Lookup(0, 0, 0)
	require.True(t, ok)
	assert.Equal(t, "QSFP-100GBASE-SR4", label)

	label, ok = m.Lookup(0, 0, 3)
	require.True(t, ok)
	assert.Equal(t, "QSFP+-40G-LR4", label)

	label, ok = m.Lookup(2, 1, 1)
	require.True(t, ok)
	assert.Equal(t, "XFP-10G-SR", label)

	_, ok = m.Lookup(0, 1, 0)
	assert.False(t, ok)
	assert.Equal(t, 3, m.Len())
}

func TestBuildXcvrMapPicDetailAndGeneric(t *testing.T) {
	log, _ := test.NewNullLogger()
	doc := mustDoc(t, `<root>
<fpc-information><fpc><slot>0</slot>
  <pic-detail><slot>0</slot><pic-slot>1</pic-slot><pic-type>10x 10GE SFPP</pic-type>
    <port-information>
      <port><port-number>3</port-number><cable-type>10GBASE LR</cable-type><wavelength>1310 nm</wavelength></port>
      <port><port-number>4</port-number><cable-type>n/a</cable-type></port>
    </port-information>
  </pic-detail>
</fpc></fpc-information>
<transceiver><pic>0</pic><port>7</port><model>SFP</model><description>SFP-1G-SX</description></transceiver>
<media><port>9</port><type>10G</type><part-number>LR</part-number></media>
</root>`)

	m := BuildXcvrMap(doc, log)

	label, ok := m.Lookup(0, 1, 3)
	require.True(t, ok)
	assert.Equal(t, "10GBASE LR 1310 nm", label)

	_, ok = m.Lookup(0, 1, 4)
	assert.False(t, ok)

	label, ok = m.Lookup(4, 0, 7)
	require.True(t, ok, "generic entry has no fpc and matches any")
	assert.Equal(t, "SFP-1G-SX", label)

	label, ok = m.Lookup(1, 2, 9)
	require.True(t, ok)
	assert.Equal(t, "10G", label)
}

func TestXcvrMapLookupOrder(t *testing.T) {
	m := NewXcvrMap()
	assert.True(t, m.Set(Coord{FPC: Any, PIC: Any, Port: 1}, "port only"))
	assert.True(t, m.Set(Coord{FPC: Any, PIC: 0, Port: 1}, "pic and port"))
	assert.True(t, m.Set(Coord{FPC: 2, PIC: 0, Port: 1}, "exact"))
	assert.False(t, m.Set(Coord{FPC: 2, PIC: 0, Port: 1}, "second"))
	assert.False(t, m.Set(Coord{FPC: 3, PIC: 0, Port: 1}, "None"))

	for _, tc := range []struct {
		fpc, pic, port int
		want           string
	}{
		{2, 0, 1, "exact"},
		{5, 0, 1, "pic and port"},
		{5, 3, 1, "port only"},
	} {
		got, ok := m.Lookup(tc.fpc, tc.pic, tc.port)
		assert.True(t, ok)
		assert.Equal(t, tc.want, got)
	}
	_, ok := m.Lookup(2, 0, 2)
	assert.False(t, ok)
	assert.Equal(t, "2/*/1", Coord{FPC: 2, PIC: Any, Port: 1}.String())
}

func TestPickLabel(t *testing.T) {
	assert.Equal(t, "SFP+ LR", pickLabel([]string{"ab", "SFP+ LR"}))
	assert.Equal(t, "SFP-10G-LR", pickLabel([]string{"10", "SFP-10G-LR", "other label"}))
	assert.Equal(t, "10G", pickLabel([]string{"10G", "LR"}))
	assert.Equal(t, "", pickLabel(nil))
}

func TestWalkHardware(t *testing.T) {
	log, _ := test.NewNullLogger()
	components := WalkHardware(mustDoc(t, hardwareXML), "r1", log)

	var types []string
	bySlot := map[string]HardwareComponent{}
	for _, c := range components {
		types = append(types, c.Type)
		bySlot[c.Slot] = c
	}
	assert.Equal(t, []string{
		TypeChassis,
		TypeMidplane,
		TypeRoutingEngine, TypeDisk, TypeUSB,
		TypeFPC, TypeCPU, TypeTransceiver, TypeTransceiver,
		TypeFPC, TypeMIC, TypeTransceiver,
		TypePEM,
		TypeFan,
	}, types)

	chassis := components[0]
	assert.Equal(t, "JN11F2A3BAFA", chassis.Serial)
	assert.Equal(t, "MX480", chassis.Model)
	assert.Empty(t, chassis.Slot)

	fpc := bySlot["FPC 0"]
	assert.Equal(t, "MPC7E 3D MRATE-12xQSFPP-XGE-XLGE-CGE", fpc.Model)
	assert.Equal(t, "MPC7E-MRATE", fpc.Comments)
	assert.Equal(t, "REV 15", fpc.Version)

	xcvr, ok := bySlot["FPC 0/PIC 0/Xcvr 3"]
	require.True(t, ok)
	assert.Equal(t, "740-021308", xcvr.PartNumber)

	_, ok = bySlot["FPC 2/MIC 0/PIC 1/Xcvr 1"]
	assert.True(t, ok)

	disk := bySlot["Routing Engine 0/disk1"]
	assert.Equal(t, "StorFly VSFA18PI016G-", disk.Model)
	assert.Equal(t, "15012 MB", disk.Comments)

	for _, c := range components {
		assert.NotEqual(t, "BUILTIN", c.PartNumber, c.Slot)
	}
}

func TestWalkHardwarePlaceholder(t *testing.T) {
	log, _ := test.NewNullLogger()
	for _, doc := range []*etree.Document{nil, mustDoc(t, "<rpc-reply><fpc-information/></rpc-reply>")} {
		components := WalkHardware(doc, "r1", log)
		require.Len(t, components, 1)
		assert.Equal(t, unavailable, components[0].Comments)
	}
}

func TestClassify(t *testing.T) {
	for name, want := range map[string]string{
		"Chassis":          TypeChassis,
		"Midplane":         TypeMidplane,
		"FPM Board":        TypeFPM,
		"PDM 1":            TypePDM,
		"PEM 3":            TypePEM,
		"Routing Engine 1": TypeRoutingEngine,
		"CB 0":             TypeControlBoard,
		"FPC 11":           TypeFPC,
		"CPU":              TypeCPU,
		"MIC 1":            TypeMIC,
		"PIC 2":            TypePIC,
		"Xcvr 0":           TypeTransceiver,
		"Fan Tray 0":       TypeFan,
		"Power Supply 1":   TypePower,
		"PSU 0":            TypePower,
		"QXM 0":            TypeComponent,
	} {
		assert.Equal(t, want, Classify(name), name)
	}
}

func testComponents() []HardwareComponent {
	return []HardwareComponent{
		{Type: TypeChassis, Serial: "JN1230EB8AFA", Model: "MX960"},
		{Type: TypeFPC, Slot: "FPC 7", Serial: "JN1230EB8AFA"},
		{Type: TypeFPM, Slot: "FPM Board", Serial: "JN1230EB8AFA"},
		{Type: TypeFPC, Slot: "FPC 1", Serial: "CAHF5432", PartNumber: "750-056519"},
		{Type: TypePEM, Slot: "PEM 0", Serial: "1EDL9999", PartNumber: "999-999999"},
	}
}

func TestValidateDropsTestSerials(t *testing.T) {
	log, _ := test.NewNullLogger()
	cleaned := Validate(testComponents(), "X", DefaultPolicy(), log)

	var slots []string
	for _, c := range cleaned {
		slots = append(slots, c.Slot)
		assert.NotEqual(t, TypeChassis, c.Type)
	}
	assert.Equal(t, []string{"FPC 7", "FPM Board", "FPC 1"}, slots)

	assert.Equal(t, cleaned, Validate(cleaned, "X", DefaultPolicy(), log))
}

func TestValidateSyntheticSerialNode(t *testing.T) {
	log, hook := test.NewNullLogger()
	node := "R3.KYA.PE-MOBILE.2"
	cleaned := Validate(testComponents(), node, DefaultPolicy(), log)
	require.Len(t, cleaned, 5)

	chassis := cleaned[0]
	assert.NotEqual(t, "JN1230EB8AFA", chassis.Serial)
	assert.Len(t, chassis.Serial, 12)
	assert.Equal(t, "JN1", chassis.Serial[:3])
	assert.Equal(t, syntheticComment, chassis.Comments)

	assert.Equal(t, "JN1230EB8AFA", cleaned[1].Serial, "FPC 7 is left alone")
	assert.Equal(t, "1EDL", cleaned[4].Serial[:4])

	assert.Equal(t, cleaned, Validate(cleaned, node, DefaultPolicy(), log))
	require.NotNil(t, hook.LastEntry())
}

func TestGenerateRealisticSerial(t *testing.T) {
	a := GenerateRealisticSerial(TypeFPC, "r1", "FPC 0")
	assert.Equal(t, a, GenerateRealisticSerial(TypeFPC, "r1", "FPC 0"))
	assert.NotEqual(t, a, GenerateRealisticSerial(TypeFPC, "r1", "FPC 1"))
	assert.NotEqual(t, a, GenerateRealisticSerial(TypeFPC, "r2", "FPC 0"))
	assert.Regexp(t, `^CAD[0-9A-Z]{9}$`, a)
	assert.Regexp(t, `^1ACP[0-9A-Z]{6}$`, GenerateRealisticSerial(TypeTransceiver, "r1", "FPC 0/PIC 0/Xcvr 1"))
	assert.Regexp(t, `^SN[0-9A-Z]{10}$`, GenerateRealisticSerial("Widget", "r1", "x"))
}

func TestWalkHardwareMergedReplies(t *testing.T) {
	log, _ := test.NewNullLogger()
	first := `<rpc-reply><chassis-inventory><chassis><name>Chassis</name>` +
		`<serial-number>JN11F2A3BAFA</serial-number><description>MX480</description>` +
		`<chassis-module><name>FPC 0</name><serial-number>CAGE1001</serial-number><model-number>MPC7E-MRATE</model-number></chassis-module>` +
		`<chassis-module><name>FPC 1</name><description>MPC 3D 16x 10GE`
	second := `<rpc-reply><chassis-inventory><chassis><name>Chassis</name>` +
		`<serial-number>JN11F2A3BAFA</serial-number><description>MX480</description>` +
		`<chassis-module><name>FPC 0</name><serial-number>CAGE1001</serial-number><model-number>MPC7E-MRATE</model-number></chassis-module>` +
		`<chassis-module><name>FPC 2</name><serial-number>CAGE1003</serial-number><model-number>MPC7E-10G</model-number></chassis-module>` +
		`</chassis></chassis-inventory></rpc-reply>`

	doc := junosxml.Load(first+"\n"+second, log)
	require.NotNil(t, doc)

	components := WalkHardware(doc, "r1", log)
	counts := map[string]int{}
	for _, c := range components {
		counts[c.Type+"|"+c.Slot]++
	}
	assert.Equal(t, 1, counts[TypeChassis+"|"], "one chassis row")
	assert.Equal(t, 1, counts[TypeFPC+"|FPC 0"], "repeated slot recorded once")
	assert.Equal(t, 1, counts[TypeFPC+"|FPC 2"], "module from the second reply")

	for slot := range BuildModuleMap(doc, log) {
		assert.Equal(t, 1, counts[TypeFPC+"|FPC "+slot], "module map slot %s missing from hardware", slot)
	}
}

func TestWalkHardwareSalvagedChassis(t *testing.T) {
	log, _ := test.NewNullLogger()
	doc := mustDoc(t, `<root>`+
		`<rpc-reply><chassis-inventory><chassis><name>Chassis</name><chassis-module><name>FPC 0</name></chassis-module></chassis></chassis-inventory></rpc-reply>`+
		`<rpc-reply><chassis-inventory><chassis><chassis-module><name>FPC 5</name></chassis-module></chassis></chassis-inventory></rpc-reply>`+
		`</root>`)

	components := WalkHardware(doc, "r1", log)
	var slots []string
	for _, c := range components {
		slots = append(slots, c.Slot)
	}
	assert.Equal(t, []string{"", "FPC 0", "FPC 5"}, slots)
}
