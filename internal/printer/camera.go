package printer

// Camera describes the device camera.
type Camera struct {
	Recording  bool
	Timelapse  bool
	Resolution string
	RTSPURL    string

	liveViewWarned bool
}

// rtspDisabled is reported in rtsp_url when LAN live view is turned off.
const rtspDisabled = "disable"

func (c *Camera) applyDelta(d *Device, p payload) bool {
	ipcam := p.object("ipcam")
	if ipcam.empty() {
		return false
	}
	before := *c

	if s, ok := ipcam.str("ipcam_record"); ok {
		c.Recording = s == "enable"
	}
	if s, ok := ipcam.str("timelapse"); ok {
		c.Timelapse = s == "enable"
	}
	if s, ok := ipcam.str("resolution"); ok {
		c.Resolution = s
	}
	if s, ok := ipcam.str("rtsp_url"); ok {
		c.RTSPURL = s
		if s == rtspDisabled && d.Supports(FeatureCameraRTSP) && !c.liveViewWarned {
			c.liveViewWarned = true
			d.emit(EventLiveViewDisabled)
		}
		if s != rtspDisabled {
			c.liveViewWarned = false
		}
	}
	return *c != before
}
