package printer

// Home flag bits.
const (
	HomeXAxis                 = 0x00000001
	HomeYAxis                 = 0x00000002
	HomeZAxis                 = 0x00000004
	HomeVoltage220            = 0x00000008
	HomeXcamStepLossRecovery  = 0x00000010
	HomeCameraRecording       = 0x00000020
	HomeAMSCalibrateRemaining = 0x00000080
	HomeSDCardPresent         = 0x00000100
	HomeSDCardAbnormal        = 0x00000200
	HomeAMSAutoSwitch         = 0x00000400
	HomeXcamPromptSound       = 0x00020000
	HomeWiredNetwork          = 0x00040000
	HomeMotorCalibration      = 0x00200000
	HomeDoorOpen              = 0x00800000
	HomeInstalledPlus         = 0x04000000
	HomeSupportedPlus         = 0x08000000
)

// SD card states.
const (
	SDCardNormal   = "normal"
	SDCardAbnormal = "abnormal"
	SDCardMissing  = "missing"
)

// HomeFlags wraps the home_flag bitmask.
type HomeFlags struct {
	Value uint32

	missingWarned bool
}

func (h *HomeFlags) applyDelta(d *Device, p payload) bool {
	v, ok := p.int64("home_flag")
	if !ok {
		return false
	}
	before := *h
	h.Value = uint32(v)

	if h.SDCard() == SDCardMissing {
		if !h.missingWarned {
			h.missingWarned = true
			d.emit(EventNoExternalStorage)
		}
	} else {
		h.missingWarned = false
	}
	return h.Value != before.Value
}

// Has reports whether all bits in mask are set.
func (h HomeFlags) Has(mask uint32) bool { return h.Value&mask == mask }

// Homed reports whether all three axes are homed.
func (h HomeFlags) Homed() bool { return h.Has(HomeXAxis | HomeYAxis | HomeZAxis) }

// SDCard reports the storage state.
func (h HomeFlags) SDCard() string {
	switch {
	case h.Value&HomeSDCardAbnormal != 0:
		return SDCardAbnormal
	case h.Value&HomeSDCardPresent != 0:
		return SDCardNormal
	}
	return SDCardMissing
}
