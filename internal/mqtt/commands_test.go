package mqtt

import (
	"testing"
	"time"

	"github.com/HerbHall/bambulink/internal/command"
	"github.com/HerbHall/bambulink/internal/printer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// connected starts a client and waits for the initial requests so later
// publishes are easy to pick out.
func connected(t *testing.T) (*Client, *fakeSession, *recorder) {
	t.Helper()
	d := newFakeDialer()
	c, rec := startClient(t, testConfig(), d)
	s := d.next(t)
	eventually(t, func() bool { return len(s.commands()) == 2 }, "initial requests")
	return c, s, rec
}

func deliverAndWait(t *testing.T, s *fakeSession, rec *recorder, js string, want printer.Event) {
	t.Helper()
	s.deliver(js)
	rec.until(t, want)
}

func TestExtrude_RejectsColdNozzle(t *testing.T) {
	c, s, rec := connected(t)
	deliverAndWait(t, s, rec, `{"print": {"nozzle_temper": 25}}`, printer.EventDataUpdated)

	err := c.Extrude(false)
	assert.ErrorIs(t, err, command.ErrNozzleTooCold)
	assert.Len(t, s.commands(), 2, "nothing published")

	deliverAndWait(t, s, rec, `{"print": {"nozzle_temper": 221}}`, printer.EventDataUpdated)
	require.NoError(t, c.Extrude(true))
	assert.Equal(t, "gcode_line", s.commands()[2])
	assert.Contains(t, s.last()["param"], "E-10.0")
}

func TestSetFanSpeed_FeatureGated(t *testing.T) {
	c, s, rec := connected(t)
	deliverAndWait(t, s, rec, `{"info": {"command": "get_version", "module": [
		{"name": "ota", "sw_ver": "01.04.00.00"},
		{"name": "esp32", "hw_ver": "AP05", "project_name": "N2S"}
	]}}`, printer.EventInfoUpdated)

	assert.ErrorIs(t, c.SetFanSpeed(command.FanAux, 50), ErrUnsupportedFeature)
	assert.ErrorIs(t, c.SetFanSpeed(command.FanChamber, 50), ErrUnsupportedFeature)
	require.NoError(t, c.SetFanSpeed(command.FanPartCooling, 50))
	assert.Equal(t, "M106 P1 S128\n", s.last()["param"])
}

func TestSetLight_OptimisticOverride(t *testing.T) {
	c, s, rec := connected(t)
	deliverAndWait(t, s, rec, `{"print": {"lights_report": [{"node": "chamber_light", "mode": "off"}]}}`, printer.EventDataUpdated)

	require.NoError(t, c.SetLight(command.ChamberLight, true))
	assert.Equal(t, "ledctrl", s.last()["command"])
	rec.until(t, printer.EventDataUpdated)
	c.View(func(d *printer.Device) { assert.Equal(t, printer.LightOn, d.Lights.Chamber) })

	s.deliver(`{"print": {"lights_report": [{"node": "chamber_light", "mode": "off"}], "mc_percent": 3}}`)
	rec.until(t, printer.EventDataUpdated)
	c.View(func(d *printer.Device) { assert.Equal(t, printer.LightOn, d.Lights.Chamber, "stale report ignored") })
}

func TestLoadFilament_UsesTrayRange(t *testing.T) {
	c, s, rec := connected(t)
	deliverAndWait(t, s, rec, `{"print": {"ams": {"ams": [{"id": "1", "tray": [
		{"id": "1", "tray_type": "PETG", "nozzle_temp_min": 230, "nozzle_temp_max": 260}
	]}]}}}`, printer.EventDataUpdated)

	require.NoError(t, c.LoadFilament(5))
	params := s.last()
	assert.Equal(t, "ams_change_filament", params["command"])
	assert.EqualValues(t, 5, params["target"])
	assert.EqualValues(t, 245, params["tar_temp"])

	require.NoError(t, c.LoadFilament(2))
	assert.EqualValues(t, command.DefaultChangeTemp, s.last()["tar_temp"], "unknown tray uses the default")

	assert.ErrorIs(t, c.LoadFilament(16), command.ErrTraySelectionRequired)
}

func TestValidationErrorsNeverPublish(t *testing.T) {
	c, s, _ := connected(t)

	assert.ErrorIs(t, c.MoveAxis(command.AxisZ, 500), command.ErrDistanceOutOfRange)
	assert.ErrorIs(t, c.SetTemperature(command.HeaterBed, 400), command.ErrTemperatureOutOfRange)
	assert.ErrorIs(t, c.SendGcode(), command.ErrGcodeEmpty)
	assert.ErrorIs(t, c.SkipObjects(nil), command.ErrNoObjects)
	assert.Len(t, s.commands(), 2)
}

func TestDrying_RequiresFeature(t *testing.T) {
	c, s, rec := connected(t)
	deliverAndWait(t, s, rec, `{"info": {"command": "get_version", "module": [
		{"name": "ota", "sw_ver": "01.07.00.00"},
		{"name": "rv1126", "hw_ver": "AP04", "project_name": "C12"}
	]}}`, printer.EventInfoUpdated)
	assert.ErrorIs(t, c.StartDrying(0, 55, 4), ErrUnsupportedFeature)

	deliverAndWait(t, s, rec, `{"info": {"command": "get_version", "module": [{"name": "ota", "sw_ver": "01.08.00.00"}]}}`, printer.EventInfoUpdated)
	require.NoError(t, c.StartDrying(0, 55, 4))
	assert.Equal(t, "ams_filament_drying", s.last()["command"])
}

func TestPrintControl(t *testing.T) {
	c, s, _ := connected(t)
	require.NoError(t, c.Pause())
	require.NoError(t, c.Resume())
	require.NoError(t, c.Stop())
	require.NoError(t, c.SetSpeed(command.SpeedSport))
	require.NoError(t, c.Home())

	cmds := s.commands()
	assert.Equal(t, []string{"pause", "resume", "stop", "print_speed", "gcode_line"}, cmds[2:])
}

func TestWaitForEvents(t *testing.T) {
	_, s, rec := connected(t)
	s.deliver(`{"print": {"home_flag": 7}}`)
	seen := rec.until(t, printer.EventDataUpdated)
	assert.Equal(t, []printer.Event{printer.EventNoExternalStorage, printer.EventDataUpdated}, seen)
	assert.Empty(t, rec.drain(20*time.Millisecond))
}
