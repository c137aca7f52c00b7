package command

import (
	"regexp"
	"strings"
)

// Slot values in the global tray address space.
const (
	SlotExternal = 254
	SlotNone     = 255
)

// DefaultChangeTemp is used when the target tray has no temperature range.
const DefaultChangeTemp = 220

func changeFilament(target, temp int) Command {
	return newCommand(CategoryPrint, "ams_change_filament", map[string]any{
		"target":    target,
		"curr_temp": temp,
		"tar_temp":  temp,
	})
}

// LoadFilament switches to the given slot. The change temperature is the
// midpoint of the tray's nozzle range when known.
func LoadFilament(slot, tempMin, tempMax int) (Command, error) {
	if !validSlot(slot) {
		return Command{}, invalid("ams_change_filament", ErrTraySelectionRequired, "slot %d", slot)
	}
	temp := DefaultChangeTemp
	if tempMin > 0 && tempMax >= tempMin {
		temp = (tempMin + tempMax) / 2
	}
	return changeFilament(slot, temp), nil
}

// UnloadFilament retracts whatever is loaded.
func UnloadFilament() Command {
	return changeFilament(SlotNone, DefaultChangeTemp)
}

// FilamentSetting describes the filament loaded in a tray.
type FilamentSetting struct {
	InfoIdx string
	Type    string
	Color   string
	TempMin int
	TempMax int
}

var colorPattern = regexp.MustCompile(`^[0-9A-Fa-f]{6}([0-9A-Fa-f]{2})?$`)

// SetFilament writes filament metadata to a tray. Use amsID 255 and trayID
// 254 for the external spool.
func SetFilament(amsID, trayID int, s FilamentSetting) (Command, error) {
	if !validTrayAddress(amsID, trayID) {
		return Command{}, invalid("ams_filament_setting", ErrTraySelectionRequired, "ams %d tray %d", amsID, trayID)
	}
	if strings.TrimSpace(s.Type) == "" {
		return Command{}, invalid("ams_filament_setting", ErrFilamentTypeRequired, "empty type")
	}
	color := strings.TrimPrefix(s.Color, "#")
	if !colorPattern.MatchString(color) {
		return Command{}, invalid("ams_filament_setting", ErrColorInvalid, "color %q", s.Color)
	}
	if len(color) == 6 {
		color += "FF"
	}
	if s.TempMin <= 0 || s.TempMax < s.TempMin || s.TempMax > 350 {
		return Command{}, invalid("ams_filament_setting", ErrTemperatureOutOfRange,
			"range %d-%d", s.TempMin, s.TempMax)
	}
	return newCommand(CategoryPrint, "ams_filament_setting", map[string]any{
		"ams_id":          amsID,
		"tray_id":         trayID,
		"tray_info_idx":   s.InfoIdx,
		"tray_color":      strings.ToUpper(color),
		"nozzle_temp_min": s.TempMin,
		"nozzle_temp_max": s.TempMax,
		"tray_type":       s.Type,
	}), nil
}

// RefreshRFID asks the AMS to re-read a tray's tag.
func RefreshRFID(amsID, trayID int) (Command, error) {
	if !validTrayAddress(amsID, trayID) || amsID == 255 {
		return Command{}, invalid("ams_get_rfid", ErrTraySelectionRequired, "ams %d tray %d", amsID, trayID)
	}
	return newCommand(CategoryPrint, "ams_get_rfid", map[string]any{
		"ams_id":  amsID,
		"slot_id": trayID,
	}), nil
}

// StartDrying runs the drying cycle of an AMS unit.
func StartDrying(amsID, temp, hours int) (Command, error) {
	if !validUnit(amsID) {
		return Command{}, invalid("ams_filament_drying", ErrTraySelectionRequired, "ams %d", amsID)
	}
	if temp < 40 || temp > 85 || hours < 1 || hours > 24 {
		return Command{}, invalid("ams_filament_drying", ErrDryingOutOfRange,
			"temp %d°C for %dh", temp, hours)
	}
	return drying(amsID, temp, hours, 1), nil
}

// StopDrying cancels a drying cycle.
func StopDrying(amsID int) (Command, error) {
	if !validUnit(amsID) {
		return Command{}, invalid("ams_filament_drying", ErrTraySelectionRequired, "ams %d", amsID)
	}
	return drying(amsID, 0, 0, 0), nil
}

func drying(amsID, temp, hours, mode int) Command {
	return newCommand(CategoryPrint, "ams_filament_drying", map[string]any{
		"ams_id":       amsID,
		"temp":         temp,
		"cooling_temp": 45,
		"duration":     hours,
		"humidity":     0,
		"mode":         mode,
		"rotate_tray":  false,
	})
}

func validSlot(slot int) bool {
	return (slot >= 0 && slot <= 15) || (slot >= 128 && slot <= 135) || slot == SlotExternal
}

func validUnit(amsID int) bool {
	return (amsID >= 0 && amsID <= 3) || (amsID >= 128 && amsID <= 135)
}

func validTrayAddress(amsID, trayID int) bool {
	switch {
	case amsID == 255:
		return trayID == 254 || trayID == 255
	case amsID >= 128 && amsID <= 135:
		return trayID == 0
	case amsID >= 0 && amsID <= 3:
		return trayID >= 0 && trayID <= 3
	}
	return false
}
