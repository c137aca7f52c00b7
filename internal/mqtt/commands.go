package mqtt

import (
	"fmt"

	"github.com/HerbHall/bambulink/internal/command"
	"github.com/HerbHall/bambulink/internal/printer"
)

// send publishes a command built by a constructor that may reject its
// arguments. Nothing is published when validation fails.
func (c *Client) send(cmd command.Command, err error) error {
	if err != nil {
		return err
	}
	return c.publish(cmd)
}

// requireFeature returns ErrUnsupportedFeature unless the device has f.
func (c *Client) requireFeature(f printer.Feature) error {
	var ok bool
	c.View(func(d *printer.Device) { ok = d.Supports(f) })
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedFeature, f)
	}
	return nil
}

// Pause pauses the running print.
func (c *Client) Pause() error { return c.publish(command.Pause()) }

// Resume resumes a paused print.
func (c *Client) Resume() error { return c.publish(command.Resume()) }

// Stop cancels the running print.
func (c *Client) Stop() error { return c.publish(command.Stop()) }

// SendGcode sends free-form gcode lines.
func (c *Client) SendGcode(lines ...string) error { return c.send(command.Gcode(lines...)) }

// Home homes all axes.
func (c *Client) Home() error { return c.publish(command.Home()) }

// MoveAxis jogs one axis by distance millimetres.
func (c *Client) MoveAxis(axis command.Axis, distance float64) error {
	return c.send(command.MoveAxis(axis, distance))
}

// Extrude pushes or retracts filament, refusing when the active nozzle is
// too cold.
func (c *Client) Extrude(retract bool) error {
	var temp int
	c.View(func(d *printer.Device) { temp = d.ActiveNozzleTemp() })
	return c.send(command.Extrude(retract, temp))
}

// SetTemperature sets a heater target. The chamber heater needs a
// chamber-temperature capable printer.
func (c *Client) SetTemperature(h command.Heater, target int) error {
	if h == command.HeaterChamber {
		if err := c.requireFeature(printer.FeatureChamberTemperature); err != nil {
			return err
		}
	}
	return c.send(command.SetTemperature(h, target))
}

// SetFanSpeed sets a fan speed percentage.
func (c *Client) SetFanSpeed(f command.Fan, percent int) error {
	switch f {
	case command.FanAux:
		if err := c.requireFeature(printer.FeatureAuxFan); err != nil {
			return err
		}
	case command.FanChamber:
		if err := c.requireFeature(printer.FeatureChamberFan); err != nil {
			return err
		}
	}
	return c.send(command.SetFanSpeed(f, percent))
}

// SetSpeed selects a speed profile.
func (c *Client) SetSpeed(level command.SpeedLevel) error {
	return c.send(command.SetSpeed(level))
}

// SetLight switches a light and shows the new state until a report
// confirms it or the override window passes.
func (c *Client) SetLight(node command.LightNode, on bool) error {
	switch node {
	case command.ChamberLight2:
		if err := c.requireFeature(printer.FeatureChamberLight2); err != nil {
			return err
		}
	case command.HeatbedLight:
		if err := c.requireFeature(printer.FeatureHeatbedLight); err != nil {
			return err
		}
	}
	if err := c.publish(command.SetLight(node, on)); err != nil {
		return err
	}
	mode := printer.LightOff
	if on {
		mode = printer.LightOn
	}
	c.mutate(func(d *printer.Device) bool { return d.SetLightOverride(string(node), mode) })
	return nil
}

// LoadFilament loads from a global slot, heating to the middle of the
// tray's nozzle temperature range.
func (c *Client) LoadFilament(slot int) error {
	ref := printer.ResolveSlot(slot)
	var (
		tray  printer.Tray
		found bool
	)
	c.View(func(d *printer.Device) { tray, found = d.Tray(ref) })
	if !found {
		return c.send(command.LoadFilament(slot, 0, 0))
	}
	return c.send(command.LoadFilament(slot, tray.NozzleTempMin, tray.NozzleTempMax))
}

// UnloadFilament retracts the loaded filament.
func (c *Client) UnloadFilament() error { return c.publish(command.UnloadFilament()) }

// SetFilament writes filament metadata for a tray.
func (c *Client) SetFilament(amsID, trayID int, s command.FilamentSetting) error {
	return c.send(command.SetFilament(amsID, trayID, s))
}

// RefreshRFID rereads a tray's RFID tag.
func (c *Client) RefreshRFID(amsID, trayID int) error {
	if err := c.requireFeature(printer.FeatureAMSReadRFID); err != nil {
		return err
	}
	return c.send(command.RefreshRFID(amsID, trayID))
}

// StartDrying starts drying filament in an AMS.
func (c *Client) StartDrying(amsID, temp, hours int) error {
	if err := c.requireFeature(printer.FeatureAMSDrying); err != nil {
		return err
	}
	return c.send(command.StartDrying(amsID, temp, hours))
}

// StopDrying stops drying in an AMS.
func (c *Client) StopDrying(amsID int) error {
	if err := c.requireFeature(printer.FeatureAMSDrying); err != nil {
		return err
	}
	return c.send(command.StopDrying(amsID))
}

// SkipObjects skips objects of the running print.
func (c *Client) SkipObjects(ids []int) error { return c.send(command.SkipObjects(ids)) }

// SetPromptSound toggles the completion sound.
func (c *Client) SetPromptSound(enabled bool) error {
	if err := c.requireFeature(printer.FeaturePromptSound); err != nil {
		return err
	}
	return c.publish(command.SetPromptSound(enabled))
}

// Upgrade starts a firmware upgrade.
func (c *Client) Upgrade(url, version string) error { return c.send(command.Upgrade(url, version)) }
