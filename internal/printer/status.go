package printer

// Speed holds the active speed profile.
type Speed struct {
	Level    int
	Name     string
	Modifier int
}

var speedProfiles = map[int]string{
	1: "silent",
	2: "standard",
	3: "sport",
	4: "ludicrous",
}

func newSpeed() Speed {
	return Speed{Level: 2, Name: speedProfiles[2], Modifier: 100}
}

func (s *Speed) applyDelta(p payload) bool {
	before := *s
	if v, ok := p.int("spd_lvl"); ok {
		s.Level = v
		if name, known := speedProfiles[v]; known {
			s.Name = name
		} else {
			s.Name = "unknown"
		}
	}
	if v, ok := p.int("spd_mag"); ok {
		s.Modifier = v
	}
	return *s != before
}

// Stage is the printer's current activity within a print.
type Stage struct {
	ID          int
	Description string
}

// stageIdle is reported in place of stage 0 while the printer is idle.
const stageIdle = 255

var stageDescriptions = map[int]string{
	-1:  "idle",
	0:   "printing",
	1:   "auto_bed_leveling",
	2:   "heatbed_preheating",
	3:   "sweeping_xy_mech_mode",
	4:   "changing_filament",
	5:   "m400_pause",
	6:   "paused_filament_runout",
	7:   "heating_hotend",
	8:   "calibrating_extrusion",
	9:   "scanning_bed_surface",
	10:  "inspecting_first_layer",
	11:  "identifying_build_plate_type",
	12:  "calibrating_micro_lidar",
	13:  "homing_toolhead",
	14:  "cleaning_nozzle_tip",
	15:  "checking_extruder_temperature",
	16:  "paused_user",
	17:  "paused_front_cover_falling",
	18:  "calibrating_micro_lidar",
	19:  "calibrating_extrusion_flow",
	20:  "paused_nozzle_temperature_malfunction",
	21:  "paused_heat_bed_temperature_malfunction",
	255: "idle",
}

func newStage() Stage {
	return Stage{ID: stageIdle, Description: "idle"}
}

func (s *Stage) applyDelta(p payload) bool {
	before := *s
	id, ok := p.object("stage").int("_id")
	if !ok {
		id, ok = p.int("stg_cur")
	}
	if !ok {
		return false
	}
	if t, _ := p.str("print_type"); t == "idle" && id == 0 {
		id = stageIdle
	}
	s.ID = id
	if desc, known := stageDescriptions[id]; known {
		s.Description = desc
	} else {
		s.Description = "unknown"
	}
	return *s != before
}
