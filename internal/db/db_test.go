package db

import (
	"path/filepath"
	"testing"

	"github.com/junoscope/junoscope/internal/chassis"
	"github.com/junoscope/junoscope/internal/junos"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTest(t *testing.T) *DB {
	t.Helper()
	d, err := New(filepath.Join(t.TempDir(), "inventory.db"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d
}

func inventory(fpcSerial string) []chassis.HardwareComponent {
	return []chassis.HardwareComponent{
		{Type: chassis.TypeChassis, Serial: "JN11E0C1AAFA", Model: "MX480", Status: "Present"},
		{Type: chassis.TypeFPC, Slot: "FPC 0", PartNumber: "750-056519", Serial: fpcSerial, Model: "MPC7E-MRATE", Status: "Online"},
		{Type: chassis.TypePEM, Slot: "PEM 0", PartNumber: "740-029970", Serial: "QCS1234A0BC", Status: "Present"},
	}
}

func TestMigrateIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inventory.db")
	d, err := New(path)
	require.NoError(t, err)
	require.NoError(t, d.Close())

	d, err = New(path)
	require.NoError(t, err)
	defer d.Close()

	var version int
	require.NoError(t, d.conn.QueryRow("SELECT MAX(version) FROM schema_version").Scan(&version))
	assert.Equal(t, 2, version)
	assert.Equal(t, path, d.Path())
}

func TestRuns(t *testing.T) {
	d := openTest(t)

	run, err := d.StartRun(SourceReplay)
	require.NoError(t, err)
	assert.Len(t, run.ID, 36)

	require.NoError(t, d.FinishRun(run.ID, 3, 1))
	got, err := d.GetRun(run.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 3, got.Devices)
	assert.Equal(t, 1, got.Failed)
	assert.NotNil(t, got.FinishedAt)

	missing, err := d.GetRun("nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
	assert.Error(t, d.FinishRun("nope", 0, 0))

	runs, err := d.ListRuns(0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestRecordDeviceEvents(t *testing.T) {
	d := openTest(t)

	first, err := d.StartRun(SourceLive)
	require.NoError(t, err)
	require.NoError(t, d.RecordDevice(first.ID, Snapshot{
		Name:          "R1",
		Address:       "10.0.0.1",
		HardwareKnown: true,
		Components:    inventory("CAFB1234"),
		Alarms:        []junos.Alarm{{Class: "Major", Description: "PEM 1 Not OK"}},
	}))

	events, err := d.GetRunEvents(first.ID)
	require.NoError(t, err)
	require.Len(t, events, 3)
	for _, e := range events {
		assert.Equal(t, EventDiscovered, e.EventType)
		assert.Equal(t, "R1", e.Device)
		assert.NotZero(t, e.ComponentID)
	}

	// FPC swapped, PEM pulled
	second, err := d.StartRun(SourceLive)
	require.NoError(t, err)
	require.NoError(t, d.RecordDevice(second.ID, Snapshot{
		Name:          "R1",
		HardwareKnown: true,
		Components:    inventory("CAFB9999")[:2],
	}))

	events, err = d.GetRunEvents(second.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	byType := map[string]*ComponentEvent{}
	for _, e := range events {
		byType[e.EventType] = e
	}
	require.Contains(t, byType, EventReplaced)
	assert.Equal(t, "CAFB1234", byType[EventReplaced].OldSerial)
	assert.Equal(t, "CAFB9999", byType[EventReplaced].NewSerial)
	assert.Equal(t, "FPC 0", byType[EventReplaced].Slot)
	require.Contains(t, byType, EventMissing)
	assert.Equal(t, "PEM 0", byType[EventMissing].Slot)

	comps, err := d.ListComponents("R1")
	require.NoError(t, err)
	require.Len(t, comps, 3)
	states := map[string]string{}
	for _, c := range comps {
		states[c.Slot] = c.State
	}
	assert.Equal(t, StateMissing, states["PEM 0"])
	assert.Equal(t, StatePresent, states["FPC 0"])

	found, err := d.FindSerial("CAFB9999")
	require.NoError(t, err)
	assert.Len(t, found, 1)

	// address survives a snapshot without one
	devices, err := d.ListDevices()
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "10.0.0.1", devices[0].Address)
	assert.Equal(t, second.ID, devices[0].LastRun)

	// PEM back
	third, err := d.StartRun(SourceLive)
	require.NoError(t, err)
	require.NoError(t, d.RecordDevice(third.ID, Snapshot{Name: "R1", HardwareKnown: true, Components: inventory("CAFB9999")}))
	events, err = d.GetRunEvents(third.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventReturned, events[0].EventType)

	replaced, err := d.GetEventsByType(EventReplaced, 0)
	require.NoError(t, err)
	assert.Len(t, replaced, 1)

	recent, err := d.GetRecentEvents("R1", 2)
	require.NoError(t, err)
	assert.Len(t, recent, 2)
}

func TestRecordDeviceUnknownHardware(t *testing.T) {
	d := openTest(t)

	run, err := d.StartRun(SourceLive)
	require.NoError(t, err)
	require.NoError(t, d.RecordDevice(run.ID, Snapshot{Name: "R2", HardwareKnown: true, Components: inventory("X1")}))

	failed, err := d.StartRun(SourceLive)
	require.NoError(t, err)
	require.NoError(t, d.RecordDevice(failed.ID, Snapshot{Name: "R2", Error: "dial: connection refused"}))

	events, err := d.GetRunEvents(failed.ID)
	require.NoError(t, err)
	assert.Empty(t, events)

	devices, err := d.ListDevices()
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, StatusFailed, devices[0].LastStatus)
	assert.Equal(t, "dial: connection refused", devices[0].LastError)
}

func TestAlarms(t *testing.T) {
	d := openTest(t)

	none, err := d.GetAlarms("")
	require.NoError(t, err)
	assert.Empty(t, none)

	run, err := d.StartRun(SourceLive)
	require.NoError(t, err)
	require.NoError(t, d.RecordDevice(run.ID, Snapshot{
		Name: "R1",
		Alarms: []junos.Alarm{
			{Time: "2023-11-14 22:13:20 UTC", Class: "Major", Description: "PEM 1 Not OK", Type: "Chassis"},
			{Class: "Minor", ShortDescription: "Backup RE Active"},
		},
	}))

	got, err := d.GetAlarms("")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "PEM 1 Not OK", got[0].Description)
	assert.Equal(t, "Backup RE Active", got[1].Description)
	assert.Equal(t, run.ID, got[1].RunID)
}
