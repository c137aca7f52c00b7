// Package hms decodes the compact numeric diagnostics reported by a printer
// into structured, severity-ranked notifications.
package hms

import (
	"fmt"
	"strings"
)

// Severity ranks a notification by the high 16 bits of its code word.
type Severity string

const (
	SeverityFatal   Severity = "fatal"
	SeveritySerious Severity = "serious"
	SeverityCommon  Severity = "common"
	SeverityInfo    Severity = "info"
	SeverityUnknown Severity = "unknown"
)

// Rank orders severities so that fatal sorts first.
func (s Severity) Rank() int {
	switch s {
	case SeverityFatal:
		return 0
	case SeveritySerious:
		return 1
	case SeverityCommon:
		return 2
	case SeverityInfo:
		return 3
	default:
		return 4
	}
}

// Unknown is returned for any code the catalog does not describe.
const Unknown = "unknown"

const wikiBase = "https://wiki.bambulab.com/en/x1/troubleshooting/hmscode/"

var severities = map[uint32]Severity{
	1: SeverityFatal,
	2: SeveritySerious,
	3: SeverityCommon,
	4: SeverityInfo,
}

var modules = map[uint32]string{
	0x03: "mc",
	0x05: "mainboard",
	0x07: "ams",
	0x08: "toolhead",
	0x0C: "xcam",
}

// SeverityOf looks up the severity tier of a code word.
func SeverityOf(code uint32) Severity {
	if s, ok := severities[code>>16]; ok {
		return s
	}
	return SeverityUnknown
}

// ModuleOf looks up the originating subsystem from bits 24-31 of the
// attribute word.
func ModuleOf(attr uint32) string {
	if m, ok := modules[(attr>>24)&0xFF]; ok {
		return m
	}
	return Unknown
}

// FormatCode assembles the canonical AAAA_BBBB_CCCC_DDDD form. Both words
// must be non-zero; otherwise the empty string is returned.
func FormatCode(attr, code uint32) string {
	if attr == 0 || code == 0 {
		return ""
	}
	return fmt.Sprintf("%04X_%04X_%04X_%04X", attr>>16, attr&0xFFFF, code>>16, code&0xFFFF)
}

// WikiURL returns the troubleshooting page for a formatted code.
func WikiURL(formatted string) string {
	if formatted == "" {
		return ""
	}
	return wikiBase + formatted
}

// Notification is one active entry from the device's HMS list.
type Notification struct {
	Attr      uint32
	Code      uint32
	Formatted string
	Text      string
	Severity  Severity
	Module    string
	URL       string
}

// Decoder resolves notification text for a specific device model and
// language. The zero value has no catalog and decodes every text as Unknown.
type Decoder struct {
	Catalog  *Catalog
	Model    string
	Language string
}

// Decode builds a Notification from the raw attribute and code words.
func (d Decoder) Decode(attr, code uint32) Notification {
	formatted := FormatCode(attr, code)
	return Notification{
		Attr:      attr,
		Code:      code,
		Formatted: formatted,
		Text:      d.Catalog.HMSText(formatted, d.Model, d.Language),
		Severity:  SeverityOf(code),
		Module:    ModuleOf(attr),
		URL:       WikiURL(formatted),
	}
}

// FormatPrintError renders a print_error value as XXXX_XXXX, or "" for zero.
func FormatPrintError(code uint32) string {
	if code == 0 {
		return ""
	}
	hex := fmt.Sprintf("%08X", code)
	return hex[:4] + "_" + hex[4:]
}

// PrintErrorText resolves a print_error value to catalog text.
func (d Decoder) PrintErrorText(code uint32) string {
	return d.Catalog.ErrorText(FormatPrintError(code), d.Model, d.Language)
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.ReplaceAll(code, "_", ""))
}
