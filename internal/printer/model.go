package printer

import (
	"strings"

	"go.uber.org/zap"
)

// Model is a printer device type.
type Model string

const (
	ModelUnknown Model = "unknown"
	ModelA1      Model = "A1"
	ModelA1Mini  Model = "A1MINI"
	ModelP1P     Model = "P1P"
	ModelP1S     Model = "P1S"
	ModelP2S     Model = "P2S"
	ModelX1      Model = "X1"
	ModelX1C     Model = "X1C"
	ModelX1E     Model = "X1E"
	ModelH2C     Model = "H2C"
	ModelH2D     Model = "H2D"
	ModelH2DPro  Model = "H2DPRO"
	ModelH2S     Model = "H2S"
)

var productNames = map[string]Model{
	"Bambu Lab A1":        ModelA1,
	"Bambu Lab A1 mini":   ModelA1Mini,
	"Bambu Lab P1P":       ModelP1P,
	"Bambu Lab P1S":       ModelP1S,
	"Bambu Lab P2S":       ModelP2S,
	"Bambu Lab X1":        ModelX1,
	"Bambu Lab X1 Carbon": ModelX1C,
	"Bambu Lab X1E":       ModelX1E,
	"Bambu Lab H2C":       ModelH2C,
	"Bambu Lab H2D":       ModelH2D,
	"Bambu Lab H2D Pro":   ModelH2DPro,
	"Bambu Lab H2S":       ModelH2S,
}

// ParseModel normalizes a configured or cloud-reported device type such as
// "X1 Carbon" or "a1mini".
func ParseModel(s string) Model {
	s = strings.TrimSpace(s)
	if m, ok := productNames[s]; ok {
		return m
	}
	if s == "X1 Carbon" {
		return ModelX1C
	}
	norm := Model(strings.ToUpper(strings.ReplaceAll(s, " ", "")))
	switch norm {
	case ModelA1, ModelA1Mini, ModelP1P, ModelP1S, ModelP2S, ModelX1, ModelX1C,
		ModelX1E, ModelH2C, ModelH2D, ModelH2DPro, ModelH2S:
		return norm
	}
	return ModelUnknown
}

func (m Model) in(models ...Model) bool {
	for _, o := range models {
		if m == o {
			return true
		}
	}
	return false
}

// versionModule is one entry of a version report's module list.
type versionModule struct {
	Name        string
	HWVersion   string
	SWVersion   string
	Serial      string
	ProductName string
	ProjectName string
}

func parseModules(p payload) []versionModule {
	var out []versionModule
	for _, m := range p.list("module") {
		vm := versionModule{}
		vm.Name, _ = m.str("name")
		vm.HWVersion, _ = m.str("hw_ver")
		vm.SWVersion, _ = m.str("sw_ver")
		vm.Serial, _ = m.str("sn")
		vm.ProductName, _ = m.str("product_name")
		vm.ProjectName, _ = m.str("project_name")
		out = append(out, vm)
	}
	return out
}

// apNode returns the main board module, identified by an AP0 hardware
// version prefix.
func apNode(modules []versionModule) (versionModule, bool) {
	for _, m := range modules {
		if strings.HasPrefix(m.HWVersion, "AP0") {
			return m, true
		}
	}
	return versionModule{}, false
}

// detectModel resolves the device type from a version report. An
// unrecognized combination keeps the previous value.
func detectModel(modules []versionModule, previous Model, log *zap.Logger) Model {
	for _, m := range modules {
		if m.ProductName == "" {
			continue
		}
		if model, ok := productNames[m.ProductName]; ok {
			return model
		}
	}

	ap, ok := apNode(modules)
	if !ok {
		return previous
	}
	switch {
	case ap.HWVersion == "AP02":
		return ModelX1E
	case ap.ProjectName == "N1":
		return ModelA1Mini
	case ap.HWVersion == "AP04" && ap.ProjectName == "C11":
		return ModelP1P
	case ap.HWVersion == "AP04" && ap.ProjectName == "C12":
		return ModelP1S
	case ap.HWVersion == "AP05" && ap.ProjectName == "N2S":
		return ModelA1
	case ap.HWVersion == "AP05" && ap.ProjectName == "":
		return ModelX1C
	}

	log.Error("unknown device",
		zap.String("hw_ver", ap.HWVersion),
		zap.String("project_name", ap.ProjectName),
		zap.String("keeping", string(previous)))
	return previous
}
