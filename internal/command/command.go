// Package command builds the outbound control messages understood by the
// printer. Builders are pure: they validate their arguments and return a
// Command without touching any connection or device state.
package command

import (
	"encoding/json"
	"fmt"
	"maps"
	"strconv"
)

// Category is the top-level key that routes a command on the device.
type Category string

const (
	CategoryPrint   Category = "print"
	CategorySystem  Category = "system"
	CategoryInfo    Category = "info"
	CategoryPushing Category = "pushing"
	CategoryUpgrade Category = "upgrade"
)

// Command is one outbound message before a sequence id is assigned.
type Command struct {
	Category Category
	Name     string
	Params   map[string]any
}

func newCommand(cat Category, name string, params map[string]any) Command {
	return Command{Category: cat, Name: name, Params: params}
}

// Encode renders the wire form {"<category>": {"sequence_id": "<n>",
// "command": "<name>", ...params}}.
func (c Command) Encode(sequence uint64) ([]byte, error) {
	if c.Category == "" || c.Name == "" {
		return nil, fmt.Errorf("encode command: missing category or name")
	}
	body := make(map[string]any, len(c.Params)+2)
	maps.Copy(body, c.Params)
	body["sequence_id"] = strconv.FormatUint(sequence, 10)
	body["command"] = c.Name

	data, err := json.Marshal(map[string]any{string(c.Category): body})
	if err != nil {
		return nil, fmt.Errorf("encode %s/%s: %w", c.Category, c.Name, err)
	}
	return data, nil
}

func (c Command) String() string {
	return string(c.Category) + "/" + c.Name
}

// GetVersion requests the module/version report.
func GetVersion() Command { return newCommand(CategoryInfo, "get_version", nil) }

// PushAll requests a full state report.
func PushAll() Command { return newCommand(CategoryPushing, "pushall", nil) }

// StartPush wakes a stalled report stream.
func StartPush() Command { return newCommand(CategoryPushing, "start", nil) }

// GetAccessories asks for attached accessories.
func GetAccessories() Command {
	return newCommand(CategorySystem, "get_accessories", map[string]any{"accessory_type": "none"})
}

func Pause() Command  { return newCommand(CategoryPrint, "pause", nil) }
func Resume() Command { return newCommand(CategoryPrint, "resume", nil) }
func Stop() Command   { return newCommand(CategoryPrint, "stop", nil) }

// SpeedLevel is a print speed profile.
type SpeedLevel int

const (
	SpeedSilent    SpeedLevel = 1
	SpeedStandard  SpeedLevel = 2
	SpeedSport     SpeedLevel = 3
	SpeedLudicrous SpeedLevel = 4
)

var speedNames = map[SpeedLevel]string{
	SpeedSilent:    "silent",
	SpeedStandard:  "standard",
	SpeedSport:     "sport",
	SpeedLudicrous: "ludicrous",
}

func (l SpeedLevel) String() string {
	if n, ok := speedNames[l]; ok {
		return n
	}
	return "unknown"
}

// ParseSpeedLevel accepts a profile name such as "sport".
func ParseSpeedLevel(name string) (SpeedLevel, bool) {
	for l, n := range speedNames {
		if n == name {
			return l, true
		}
	}
	return 0, false
}

// SetSpeed selects a speed profile.
func SetSpeed(level SpeedLevel) (Command, error) {
	if _, ok := speedNames[level]; !ok {
		return Command{}, invalid("print_speed", ErrSpeedInvalid, "level %d not in 1-4", level)
	}
	return newCommand(CategoryPrint, "print_speed", map[string]any{"param": strconv.Itoa(int(level))}), nil
}

// LightNode names a controllable light.
type LightNode string

const (
	ChamberLight  LightNode = "chamber_light"
	ChamberLight2 LightNode = "chamber_light2"
	HeatbedLight  LightNode = "heatbed_light"
)

// SetLight switches a light on or off.
func SetLight(node LightNode, on bool) Command {
	mode := "off"
	if on {
		mode = "on"
	}
	return newCommand(CategorySystem, "ledctrl", map[string]any{
		"led_node":      string(node),
		"led_mode":      mode,
		"led_on_time":   500,
		"led_off_time":  500,
		"loop_times":    0,
		"interval_time": 0,
	})
}

// SetPromptSound toggles the print-completion sound.
func SetPromptSound(enabled bool) Command {
	return newCommand(CategoryPrint, "print_option", map[string]any{"sound_enable": enabled})
}

// SkipObjects removes objects from the running print.
func SkipObjects(ids []int) (Command, error) {
	if len(ids) == 0 {
		return Command{}, invalid("skip_objects", ErrNoObjects, "object list is empty")
	}
	list := make([]int, len(ids))
	copy(list, ids)
	return newCommand(CategoryPrint, "skip_objects", map[string]any{"obj_list": list}), nil
}

// Upgrade starts an over-the-air firmware update.
func Upgrade(url, version string) (Command, error) {
	if url == "" || version == "" {
		return Command{}, invalid("upgrade", ErrFirmwareRequired, "url and version are required")
	}
	return newCommand(CategoryUpgrade, "start", map[string]any{
		"src_id":  1,
		"url":     url,
		"module":  "ota",
		"version": version,
	}), nil
}

// PrintOptions describes a project file to print from the device's storage.
type PrintOptions struct {
	Plate        int
	File         string
	BedType      string
	Timelapse    bool
	BedLeveling  bool
	FlowCali     bool
	VibrationCal bool
	LayerInspect bool
	UseAMS       bool
	AMSMapping   []int
	SubtaskName  string
}

// StartPrint starts a 3MF project already on the device.
func StartPrint(opts PrintOptions) (Command, error) {
	if opts.File == "" {
		return Command{}, invalid("project_file", ErrFileRequired, "file is required")
	}
	plate := opts.Plate
	if plate < 1 {
		plate = 1
	}
	bed := opts.BedType
	if bed == "" {
		bed = "auto"
	}
	mapping := opts.AMSMapping
	if len(mapping) == 0 {
		mapping = []int{0}
	}
	return newCommand(CategoryPrint, "project_file", map[string]any{
		"param":          fmt.Sprintf("Metadata/plate_%d.gcode", plate),
		"url":            "ftp://" + opts.File,
		"bed_type":       bed,
		"timelapse":      opts.Timelapse,
		"bed_leveling":   opts.BedLeveling,
		"flow_cali":      opts.FlowCali,
		"vibration_cali": opts.VibrationCal,
		"layer_inspect":  opts.LayerInspect,
		"use_ams":        opts.UseAMS,
		"ams_mapping":    mapping,
		"subtask_name":   opts.SubtaskName,
		"profile_id":     "0",
		"project_id":     "0",
		"subtask_id":     "0",
		"task_id":        "0",
	}), nil
}
