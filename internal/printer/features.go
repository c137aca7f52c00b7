package printer

import "go.uber.org/zap"

// Feature names a device capability.
type Feature string

const (
	FeatureCameraRTSP              Feature = "camera_rtsp"
	FeatureCameraImage             Feature = "camera_image"
	FeatureAuxFan                  Feature = "aux_fan"
	FeatureChamberFan              Feature = "chamber_fan"
	FeatureChamberTemperature      Feature = "chamber_temperature"
	FeatureAMS                     Feature = "ams"
	FeatureKValue                  Feature = "k_value"
	FeatureAMSTemperature          Feature = "ams_temperature"
	FeatureAMSHumidity             Feature = "ams_humidity"
	FeatureAMSDrying               Feature = "ams_drying"
	FeatureAMSSwitchCommand        Feature = "ams_switch_command"
	FeatureAMSReadRFID             Feature = "ams_read_rfid"
	FeatureAMSFilamentRemaining    Feature = "ams_filament_remaining"
	FeatureAirductMode             Feature = "airduct_mode"
	FeatureHybridModeBlocksControl Feature = "hybrid_mode_blocks_control"
	FeatureDoorSensor              Feature = "door_sensor"
	FeaturePromptSound             Feature = "prompt_sound"
	FeatureChamberLight2           Feature = "chamber_light_2"
	FeatureDualNozzles             Feature = "dual_nozzles"
	FeatureExtruderTool            Feature = "extruder_tool"
	FeatureMQTTEncryption          Feature = "mqtt_encryption_firmware"
	FeatureFireAlarmBuzzer         Feature = "fire_alarm_buzzer"
	FeatureHeatbedLight            Feature = "heatbed_light"
	FeatureStartTime               Feature = "start_time"
)

var (
	x1Family    = []Model{ModelX1, ModelX1C, ModelX1E}
	p1Family    = []Model{ModelP1P, ModelP1S}
	a1Family    = []Model{ModelA1, ModelA1Mini}
	h2Family    = []Model{ModelH2C, ModelH2D, ModelH2DPro, ModelH2S}
	enclosedNew = append(append([]Model{}, h2Family...), ModelP2S)
)

// Supports reports whether the device has a capability. Camera features
// depend only on the device type; everything else also needs the firmware
// version to be known. FeatureAMS and FeaturePromptSound additionally
// depend on runtime state.
func (d *Device) Supports(f Feature) bool {
	model := d.Info.Model
	switch f {
	case FeatureCameraRTSP:
		return model.in(enclosedNew...) || model.in(x1Family...)
	case FeatureCameraImage:
		return model.in(a1Family...) || model.in(p1Family...)
	}

	if d.Info.SWVersion == "" || d.Info.SWVersion == unknownVersion {
		d.log.Debug("feature queried before firmware version is known", zap.String("feature", string(f)))
		return false
	}
	fw := func(minimum string) bool { return firmwareAtLeast(d.Info.SWVersion, minimum) }

	switch f {
	case FeatureAuxFan, FeatureChamberFan:
		return !model.in(a1Family...)
	case FeatureChamberTemperature:
		return model.in(enclosedNew...) || model.in(x1Family...)
	case FeatureAMS:
		return d.AMS.Len() > 0
	case FeatureKValue:
		return model.in(a1Family...) || model.in(p1Family...)
	case FeatureAMSTemperature:
		switch {
		case model.in(a1Family...):
			return fw("01.06.10.33")
		case model.in(enclosedNew...) || model.in(x1Family...):
			return true
		case model.in(p1Family...):
			return fw("01.07.50.18")
		}
	case FeatureAMSHumidity, FeatureAMSDrying:
		switch {
		case model.in(a1Family...):
			return fw("01.06.10.33")
		case model.in(enclosedNew...):
			return true
		case model.in(ModelX1, ModelX1C):
			return fw("01.08.50.18")
		case model.in(p1Family...):
			return fw("01.07.50.18")
		}
	case FeatureAirductMode:
		return model == ModelP2S
	case FeatureHybridModeBlocksControl:
		return model.in(p1Family...) && fw("01.07.00.00")
	case FeatureDoorSensor:
		if model.in(ModelX1, ModelX1C) {
			return fw("01.07.00.00")
		}
		return model.in(enclosedNew...) || model == ModelX1E
	case FeatureAMSReadRFID:
		switch {
		case model.in(a1Family...):
			return fw("01.06.00.00")
		case model.in(p1Family...):
			return fw("01.08.01.00")
		case model.in(x1Family...):
			return fw("01.09.00.00")
		}
		return true
	case FeatureAMSFilamentRemaining:
		return !model.in(a1Family...)
	case FeaturePromptSound:
		if model.in(a1Family...) || model.in(enclosedNew...) {
			return !d.Info.SignatureRequired
		}
	case FeatureAMSSwitchCommand:
		switch {
		case model.in(a1Family...) || model.in(ModelH2C, ModelH2D, ModelH2DPro, ModelP2S, ModelX1E):
			return true
		case model.in(p1Family...):
			return fw("01.02.99.10")
		case model.in(ModelX1, ModelX1C):
			return fw("01.05.06.01")
		}
	case FeatureChamberLight2, FeatureExtruderTool, FeatureHeatbedLight:
		return model.in(h2Family...)
	case FeatureDualNozzles:
		return model.in(ModelH2C, ModelH2D, ModelH2DPro)
	case FeatureMQTTEncryption:
		switch {
		case model.in(a1Family...):
			return fw("01.05.00.00")
		case model.in(ModelH2D, ModelH2DPro):
			return fw("01.01.01.00")
		case model.in(ModelH2S, ModelP2S):
			return true
		case model.in(p1Family...):
			return fw("01.08.02.00")
		case model.in(ModelX1, ModelX1C):
			return fw("01.08.50.32")
		}
	case FeatureFireAlarmBuzzer:
		return model.in(ModelH2D, ModelH2DPro, ModelH2S)
	case FeatureStartTime:
		return model.in(x1Family...)
	}
	return false
}
