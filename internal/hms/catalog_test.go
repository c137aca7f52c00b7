package hms

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	fsys := fstest.MapFS{
		"hms_X1C_en.json": {Data: []byte(`{
			"device_hms": {"0300060000010002": "Motor-A has a short circuit."},
			"device_error": {"0500400C": "Please insert an SD card."}
		}`)},
		"hms_X1C_pt-BR.json": {Data: []byte(`{
			"device_hms": {"0300_0600_0001_0002": "O Motor-A tem um curto-circuito."}
		}`)},
		"hms_H2D_de.json": {Data: []byte(`{
			"device_hms": {"0500010000030006": "SD-Karte nicht formatiert."}
		}`)},
		"hms_H2D_en.json": {Data: []byte(`{
			"device_hms": {
				"0500010000030006": "SD card not formatted.",
				"0300990000010001": "Right side window open."
			}
		}`)},
		"README.md": {Data: []byte("ignored")},
	}
	c, err := Load(fsys)
	require.NoError(t, err)
	return c
}

func TestCatalog_LanguageFallback(t *testing.T) {
	c := testCatalog(t)

	tests := []struct {
		name  string
		code  string
		model string
		lang  string
		want  string
	}{
		{"exact locale", "0300_0600_0001_0002", "X1C", "pt-BR", "O Motor-A tem um curto-circuito."},
		{"english fallback", "0300_0600_0001_0002", "X1C", "fr", "Motor-A has a short circuit."},
		{"base language", "0500_0100_0003_0006", "H2D", "de-CH", "SD-Karte nicht formatiert."},
		{"sibling model", "0300_9900_0001_0001", "H2S", "en", "Right side window open."},
		{"cross model before next language", "0500_0100_0003_0006", "X1C", "de", "SD-Karte nicht formatiert."},
		{"unknown model searches all", "0300_9900_0001_0001", "", "en", "Right side window open."},
		{"missing code", "0F00_0000_0009_0001", "X1C", "en", Unknown},
		{"empty code", "", "X1C", "en", Unknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.HMSText(tt.code, tt.model, tt.lang))
		})
	}
}

func TestCatalog_ErrorText(t *testing.T) {
	c := testCatalog(t)
	assert.Equal(t, "Please insert an SD card.", c.ErrorText("0500_400C", "X1C", "en"))
	assert.Equal(t, Unknown, c.ErrorText("0300_400C", "X1C", "en"))
}

func TestCatalog_Models(t *testing.T) {
	c := testCatalog(t)
	assert.Equal(t, []string{"H2D", "X1C"}, c.Models())
}

func TestCatalog_Nil(t *testing.T) {
	var c *Catalog
	assert.Equal(t, Unknown, c.HMSText("0300_0600_0001_0002", "X1C", "en"))
	assert.Nil(t, c.Models())
}

func TestCatalog_BadJSON(t *testing.T) {
	_, err := Load(fstest.MapFS{"hms_X1C_en.json": {Data: []byte("{")}})
	require.Error(t, err)
}

func TestLanguageCandidates(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", []string{"en"}},
		{"en", []string{"en"}},
		{"pt-BR", []string{"pt_br", "pt", "en"}},
		{"zh", []string{"zh_cn", "zh", "en"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, languageCandidates(tt.in), "languageCandidates(%q)", tt.in)
	}
}

func TestDefaultCatalog(t *testing.T) {
	c := Default()
	require.NotNil(t, c)
	assert.Contains(t, c.Models(), "X1C")
	assert.NotEqual(t, Unknown, c.HMSText("0300_9900_0001_0001", "H2D", "en"))
}

func TestDefaultCatalog_SeedMissesAreUnknown(t *testing.T) {
	c := Default()
	assert.Equal(t, Unknown, c.HMSText("0C00_0100_0001_0004", "X1C", "en"))
	assert.Equal(t, Unknown, c.ErrorText("0C004019", "X1C", "en"))
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	table := `{
		"device_hms": {"0C00010000010004": "The Micro Lidar LED may be broken."},
		"device_error": {"0C004019": "Foreign objects detected on the heatbed."}
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hms_X1C_en.json"), []byte(table), 0o600))

	c, err := LoadDir(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"X1C"}, c.Models())
	assert.Equal(t, "The Micro Lidar LED may be broken.", c.HMSText("0C00_0100_0001_0004", "X1C", "en"))
	assert.Equal(t, "Foreign objects detected on the heatbed.", c.ErrorText("0C004019", "X1C", "en"))
	// The directory replaces the embedded seed.
	assert.Equal(t, Unknown, c.HMSText("0300_0600_0001_0002", "X1C", "en"))
}
