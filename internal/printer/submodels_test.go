package printer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemperature_Packed(t *testing.T) {
	d, _ := newTestDevice(t, ModelH2D)
	merge(t, d, `{
		"bed_temper": 20,
		"device": {
			"bed": {"info": {"temp": 3932220}},
			"ctc": {"info": {"temp": 42}},
			"extruder": {"state": 16, "info": [{"id": 0, "temp": 14417950}, {"id": 1, "temp": 14418140}]}
		}
	}`)

	assert.Equal(t, 60, d.Temperature.Bed)
	assert.Equal(t, 60, d.Temperature.BedTarget)
	assert.Equal(t, 42, d.Temperature.Chamber)
	assert.Equal(t, [2]int{30, 220}, d.Temperature.Nozzle)
	assert.Equal(t, [2]int{220, 220}, d.Temperature.NozzleTarget)
	assert.Equal(t, 220, d.ActiveNozzleTemp())
}

func TestTemperature_Legacy(t *testing.T) {
	d, _ := newTestDevice(t, ModelP1S)
	merge(t, d, `{"bed_temper": 54.5, "bed_target_temper": 55.9, "nozzle_temper": 199.4, "nozzle_target_temper": 200, "chamber_temper": 31.2}`)

	assert.Equal(t, 55, d.Temperature.Bed)
	assert.Equal(t, 55, d.Temperature.BedTarget)
	assert.Equal(t, 199, d.Temperature.Nozzle[0])
	assert.Equal(t, 200, d.Temperature.NozzleTarget[0])
	assert.Equal(t, 31, d.Temperature.Chamber)
}

func TestFans_Gating(t *testing.T) {
	const delta = `{"big_fan1_speed": "10", "big_fan2_speed": "5", "cooling_fan_speed": "15", "heatbreak_fan_speed": "15"}`

	t.Run("firmware unknown merges everything", func(t *testing.T) {
		d, _ := newTestDevice(t, ModelA1)
		merge(t, d, delta)
		assert.Equal(t, Fans{Aux: 10, Chamber: 5, PartCooling: 15, Heatbreak: 15}, d.Fans)
	})

	t.Run("unsupported fans skipped", func(t *testing.T) {
		d, _ := newTestDevice(t, ModelA1)
		withFirmware(d, "01.04.00.00")
		merge(t, d, delta)
		assert.Zero(t, d.Fans.Aux)
		assert.Zero(t, d.Fans.Chamber)
		assert.Equal(t, 15, d.Fans.PartCooling)
	})
}

func TestFanPercent(t *testing.T) {
	tests := map[int]int{0: 0, 1: 7, 8: 53, 15: 100}
	for raw, want := range tests {
		if got := FanPercent(raw); got != want {
			t.Errorf("FanPercent(%d) = %d, want %d", raw, got, want)
		}
	}
}

func TestLights_Override(t *testing.T) {
	d, clk := newTestDevice(t, ModelX1C)
	merge(t, d, `{"lights_report": [{"node": "chamber_light", "mode": "off"}, {"node": "work_light", "mode": "flashing"}]}`)
	require.Equal(t, LightOff, d.Lights.Chamber)
	assert.Equal(t, LightFlashing, d.Lights.Work)

	assert.True(t, d.SetLightOverride("chamber_light", LightOn))
	assert.False(t, d.SetLightOverride("no_such_light", LightOn))

	merge(t, d, `{"lights_report": [{"node": "chamber_light", "mode": "off"}]}`)
	assert.Equal(t, LightOn, d.Lights.Chamber, "stale report ignored inside the window")

	clk.advance(6 * time.Second)
	merge(t, d, `{"lights_report": [{"node": "chamber_light", "mode": "off"}]}`)
	assert.Equal(t, LightOff, d.Lights.Chamber, "report wins once the window expires")
}

func TestLights_OverrideConfirmed(t *testing.T) {
	d, _ := newTestDevice(t, ModelX1C)
	d.SetLightOverride("chamber_light", LightOn)
	merge(t, d, `{"lights_report": [{"node": "chamber_light", "mode": "on"}]}`)
	merge(t, d, `{"lights_report": [{"node": "chamber_light", "mode": "off"}]}`)
	assert.Equal(t, LightOff, d.Lights.Chamber, "confirmation releases the override")
}

func TestSpeed(t *testing.T) {
	d, _ := newTestDevice(t, ModelP1S)
	assert.Equal(t, Speed{Level: 2, Name: "standard", Modifier: 100}, d.Speed)

	merge(t, d, `{"spd_lvl": 4, "spd_mag": 166}`)
	assert.Equal(t, Speed{Level: 4, Name: "ludicrous", Modifier: 166}, d.Speed)

	merge(t, d, `{"spd_lvl": 9}`)
	assert.Equal(t, "unknown", d.Speed.Name)
}

func TestStage(t *testing.T) {
	tests := []struct {
		name  string
		delta string
		id    int
		desc  string
	}{
		{"stg_cur", `{"stg_cur": 2}`, 2, "heatbed_preheating"},
		{"stage object wins", `{"stage": {"_id": 13}, "stg_cur": 2}`, 13, "homing_toolhead"},
		{"idle printing maps to idle", `{"stg_cur": 0, "print_type": "idle"}`, 255, "idle"},
		{"printing", `{"stg_cur": 0, "print_type": "cloud"}`, 0, "printing"},
		{"unknown", `{"stg_cur": 77}`, 77, "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, _ := newTestDevice(t, ModelP1S)
			merge(t, d, tt.delta)
			assert.Equal(t, Stage{ID: tt.id, Description: tt.desc}, d.Stage)
		})
	}
}

func TestCamera_LiveViewDisabledOnce(t *testing.T) {
	d, _ := newTestDevice(t, ModelX1C)
	merge(t, d, `{"ipcam": {"rtsp_url": "disable", "ipcam_record": "enable", "resolution": "1080p"}}`)
	merge(t, d, `{"ipcam": {"rtsp_url": "disable"}}`)

	got := countEvents(d.TakeEvents())
	assert.Equal(t, 1, got[EventLiveViewDisabled])
	assert.True(t, d.Camera.Recording)
	assert.Equal(t, "1080p", d.Camera.Resolution)

	merge(t, d, `{"ipcam": {"rtsp_url": "rtsps://192.168.1.20/streaming/live/1"}}`)
	merge(t, d, `{"ipcam": {"rtsp_url": "disable"}}`)
	assert.Equal(t, 1, countEvents(d.TakeEvents())[EventLiveViewDisabled], "re-armed after being enabled")
}

func TestCamera_NoRTSPModelNoEvent(t *testing.T) {
	d, _ := newTestDevice(t, ModelP1S)
	merge(t, d, `{"ipcam": {"rtsp_url": "disable"}}`)
	assert.NotContains(t, d.TakeEvents(), EventLiveViewDisabled)
}

func TestHomeFlags(t *testing.T) {
	d, _ := newTestDevice(t, ModelP1S)
	merge(t, d, `{"home_flag": 7}`)
	merge(t, d, `{"home_flag": 7}`)

	assert.True(t, d.HomeFlags.Homed())
	assert.Equal(t, SDCardMissing, d.HomeFlags.SDCard())
	assert.Equal(t, 1, countEvents(d.TakeEvents())[EventNoExternalStorage])

	merge(t, d, `{"home_flag": 263}`)
	assert.Equal(t, SDCardNormal, d.HomeFlags.SDCard())
	merge(t, d, `{"home_flag": 775}`)
	assert.Equal(t, SDCardAbnormal, d.HomeFlags.SDCard())
	assert.NotContains(t, d.TakeEvents(), EventNoExternalStorage)
}

func TestInfo_Fields(t *testing.T) {
	d, _ := newTestDevice(t, ModelH2D)
	merge(t, d, `{
		"net": {"info": [{"ip": 0}, {"ip": 335653056}]},
		"upgrade_state": {"new_version_state": 1},
		"device": {"nozzle": {"info": [{"id": 0, "diameter": 0.4, "type": "HS01"}, {"id": 1, "diameter": 0.6, "type": "HH00"}]}},
		"stat": "800000",
		"hw_switch_state": 1
	}`)

	assert.Equal(t, "192.168.1.20", d.Info.IPAddress)
	assert.Equal(t, 1, d.Info.NewVersionState)
	assert.Equal(t, [2]float64{0.4, 0.6}, d.Info.NozzleDiameter)
	assert.Equal(t, [2]string{"hardened_steel", "high_flow_stainless_steel"}, d.Info.NozzleType)
	assert.True(t, d.Info.DoorOpen)
	assert.True(t, d.Info.ExtruderFilament)
	assert.True(t, d.Info.Online)
}

func TestInfo_DoorFromHomeFlagOnX1(t *testing.T) {
	d, _ := newTestDevice(t, ModelX1C)
	merge(t, d, `{"home_flag": 8388615, "stat": "0"}`)
	assert.True(t, d.Info.DoorOpen)
}

func TestInfo_WifiThrottled(t *testing.T) {
	d, clk := newTestDevice(t, ModelP1S)
	merge(t, d, `{"wifi_signal": "-40dBm"}`)
	assert.False(t, merge(t, d, `{"wifi_signal": "-42dBm"}`))
	assert.Equal(t, "-40dBm", d.Info.WifiSignal)

	clk.advance(time.Minute)
	assert.True(t, merge(t, d, `{"wifi_signal": "-42dBm"}`))
	assert.Equal(t, "-42dBm", d.Info.WifiSignal)
}

func TestInfo_EncryptionEventOnce(t *testing.T) {
	d, _ := newTestDevice(t, ModelP1S)
	merge(t, d, `{"fun": "2000FFFF"}`)
	merge(t, d, `{"fun": "2000FFFF"}`)
	assert.True(t, d.Info.SignatureRequired)
	assert.Equal(t, 1, countEvents(d.TakeEvents())[EventEncryptionEnabled])
}

func TestNozzleTypeFromCode(t *testing.T) {
	tests := map[string]string{
		"HS00": "stainless_steel",
		"HH01": "high_flow_hardened_steel",
		"HS05": "tungsten_carbide",
		"HS99": "unknown",
		"H":    "unknown",
	}
	for code, want := range tests {
		if got := nozzleTypeFromCode(code); got != want {
			t.Errorf("nozzleTypeFromCode(%q) = %q, want %q", code, got, want)
		}
	}
}

func TestDiagnostics(t *testing.T) {
	d, _ := newTestDevice(t, ModelX1C)
	merge(t, d, `{"hms": [{"attr": 50333184, "code": 65538}, {"attr": 0, "code": 0}]}`)

	require.Equal(t, 1, d.Diagnostics.Count())
	n := d.Diagnostics.Notifications[0]
	assert.Equal(t, "0300_0600_0001_0002", n.Formatted)
	assert.Equal(t, "Motor-A has a short circuit. It may have failed.", n.Text)
	assert.Equal(t, 1, countEvents(d.TakeEvents())[EventHMSErrors])

	merge(t, d, `{"hms": [{"attr": 50333184, "code": 65538}]}`)
	assert.NotContains(t, d.TakeEvents(), EventHMSErrors, "unchanged list")

	merge(t, d, `{"hms": []}`)
	assert.Zero(t, d.Diagnostics.Count())
	assert.Contains(t, d.TakeEvents(), EventHMSErrors)
}

func TestDiagnostics_PrintError(t *testing.T) {
	d, _ := newTestDevice(t, ModelX1C)
	merge(t, d, `{"print_error": 50348044}`)
	assert.Equal(t, "0300_400C", d.Diagnostics.PrintErrorCode)
	assert.Equal(t, "The task was canceled.", d.Diagnostics.PrintErrorText)
	assert.Contains(t, d.TakeEvents(), EventPrintError)

	merge(t, d, `{"print_error": 0}`)
	assert.Empty(t, d.Diagnostics.PrintErrorCode)
	assert.Empty(t, d.Diagnostics.PrintErrorText)
}
