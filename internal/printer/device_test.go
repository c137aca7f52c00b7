package printer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullReport = `{
	"command": "push_status",
	"msg": 0,
	"sequence_id": "1",
	"mc_percent": 42,
	"gcode_state": "RUNNING",
	"layer_num": 10,
	"total_layer_num": 200,
	"mc_remaining_time": 55,
	"bed_temper": 59.6,
	"bed_target_temper": 60.0,
	"nozzle_temper": 219.7,
	"nozzle_target_temper": 220,
	"cooling_fan_speed": "15",
	"spd_lvl": 3,
	"spd_mag": 124,
	"stg_cur": 0,
	"wifi_signal": "-53dBm",
	"home_flag": 256,
	"lights_report": [{"node": "chamber_light", "mode": "on"}],
	"ipcam": {"ipcam_record": "enable", "timelapse": "disable", "resolution": "1080p"},
	"hms": [{"attr": 50333184, "code": 65538}],
	"ams": {
		"tray_now": "5",
		"ams": [{
			"id": "1",
			"humidity": "4",
			"temp": "24.5",
			"tray": [
				{"id": "0"},
				{"id": "1", "tray_type": "PLA", "tray_info_idx": "GFA00", "tray_color": "FF0000FF",
				 "nozzle_temp_min": "190", "nozzle_temp_max": "230", "remain": 80, "tag_uid": "0123456789ABCDEF"}
			]
		}]
	},
	"vt_tray": {"id": "254", "tray_type": "PETG", "tray_color": "00FF00FF"}
}`

func TestMergeStateDelta_Idempotent(t *testing.T) {
	d, _ := newTestDevice(t, ModelX1C)

	if !merge(t, d, fullReport) {
		t.Fatal("first merge should report a change")
	}
	if merge(t, d, fullReport) {
		t.Error("second merge of the same delta should report no change")
	}
}

func TestMergeStateDelta_AbsentFieldsUnchanged(t *testing.T) {
	d, _ := newTestDevice(t, ModelX1C)
	merge(t, d, fullReport)

	before := *d
	beforeUnit, _ := d.AMS.Unit(1)

	if merge(t, d, `{"mc_percent": 43}`) != true {
		t.Error("percent change should be reported")
	}
	assert.Equal(t, 43, d.PrintJob.Percent)
	assert.Equal(t, before.PrintJob.State, d.PrintJob.State)
	assert.Equal(t, before.PrintJob.CurrentLayer, d.PrintJob.CurrentLayer)
	assert.Equal(t, before.Temperature, d.Temperature)
	assert.Equal(t, before.Fans, d.Fans)
	assert.Equal(t, before.Speed, d.Speed)
	assert.Equal(t, before.Stage, d.Stage)
	assert.Equal(t, before.Lights.snapshot(), d.Lights.snapshot())
	assert.Equal(t, before.Camera, d.Camera)
	assert.Equal(t, before.HomeFlags, d.HomeFlags)
	assert.Equal(t, before.Diagnostics.Notifications, d.Diagnostics.Notifications)
	assert.Equal(t, before.Spools, d.Spools)
	afterUnit, _ := d.AMS.Unit(1)
	assert.Equal(t, beforeUnit, afterUnit)
	assert.Equal(t, before.AMS.Active, d.AMS.Active)
}

func TestMergeStateDelta_FullReportFields(t *testing.T) {
	d, _ := newTestDevice(t, ModelX1C)
	merge(t, d, fullReport)

	assert.Equal(t, StateRunning, d.PrintJob.State)
	assert.Equal(t, 60, d.Temperature.Bed)
	assert.Equal(t, 60, d.Temperature.BedTarget)
	assert.Equal(t, 220, d.Temperature.Nozzle[0])
	assert.Equal(t, 15, d.Fans.PartCooling)
	assert.Equal(t, "sport", d.Speed.Name)
	assert.Equal(t, 124, d.Speed.Modifier)
	assert.Equal(t, LightOn, d.Lights.Chamber)
	assert.True(t, d.Camera.Recording)
	assert.Equal(t, SDCardNormal, d.HomeFlags.SDCard())
	require.Len(t, d.Diagnostics.Notifications, 1)
	assert.Equal(t, "0300_0600_0001_0002", d.Diagnostics.Notifications[0].Formatted)
	assert.Equal(t, TrayRef{Kind: TrayAMS, Unit: 1, Tray: 1}, d.ActiveTray())
	assert.Equal(t, "PETG", d.Spools[0].Type)
	assert.NotNil(t, d.LastFullReport)
}

func TestMergeInfo_Readiness(t *testing.T) {
	d, _ := newTestDevice(t, ModelUnknown)

	merge(t, d, fullReport)
	assert.False(t, d.Ready())
	assert.NotContains(t, d.TakeEvents(), EventPrinterReady)

	d.MergeInfo(mustDecode(t, `{
		"command": "get_version",
		"sequence_id": "0",
		"module": [
			{"name": "ota", "sw_ver": "01.08.02.00", "hw_ver": "", "sn": ""},
			{"name": "mc", "sw_ver": "00.00.30.74", "hw_ver": "MC07", "sn": "x"},
			{"name": "rv1126", "hw_ver": "AP05", "sw_ver": "00.00.26.38", "sn": "01S00C000000001", "project_name": ""}
		]
	}`))

	assert.True(t, d.Ready())
	assert.Equal(t, ModelX1C, d.Info.Model)
	assert.Equal(t, "AP05", d.Info.HWVersion)
	assert.Equal(t, "01.08.02.00", d.Info.SWVersion)
	assert.Contains(t, d.TakeEvents(), EventPrinterReady)

	d.MergeInfo(mustDecode(t, `{"command": "get_version", "module": []}`))
	assert.NotContains(t, d.TakeEvents(), EventPrinterReady, "ready fires once per session")

	d.ResetSession()
	assert.False(t, d.Ready())
}

func TestSafely_RecoversPanic(t *testing.T) {
	d, _ := newTestDevice(t, ModelX1C)
	changed := d.safely("boom", func() bool { panic("boom") })
	assert.False(t, changed)
}

func TestMergeStateDelta_BadTypesIgnored(t *testing.T) {
	d, _ := newTestDevice(t, ModelX1C)
	merge(t, d, `{"mc_percent": 10, "bed_temper": 50}`)

	merge(t, d, `{"mc_percent": {"nested": true}, "bed_temper": "hot", "ams": "nope", "hms": 7}`)
	assert.Equal(t, 10, d.PrintJob.Percent)
	assert.Equal(t, 50, d.Temperature.Bed)
}

func TestSetOnline(t *testing.T) {
	d, _ := newTestDevice(t, ModelX1C)
	assert.True(t, d.SetOnline(true))
	assert.False(t, d.SetOnline(true))
	assert.True(t, d.SetOnline(false))
}
