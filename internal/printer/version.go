package printer

import (
	"strconv"
	"strings"
)

// compareVersion compares dotted firmware versions numerically, returning
// -1, 0 or 1. Missing or non-numeric components count as zero.
func compareVersion(a, b string) int {
	pa, pb := strings.Split(a, "."), strings.Split(b, ".")
	n := max(len(pa), len(pb))
	for i := range n {
		va, vb := versionPart(pa, i), versionPart(pb, i)
		switch {
		case va < vb:
			return -1
		case va > vb:
			return 1
		}
	}
	return 0
}

func versionPart(parts []string, i int) int {
	if i >= len(parts) {
		return 0
	}
	v, err := strconv.Atoi(strings.TrimSpace(parts[i]))
	if err != nil {
		return 0
	}
	return v
}

// x1PlusVersion is the stock firmware an X1Plus build (99.x) is treated as.
const x1PlusVersion = "01.08.02.00"

func firmwareAtLeast(current, minimum string) bool {
	if compareVersion(current, "99.0.0.0") >= 0 {
		current = x1PlusVersion
	}
	return compareVersion(current, minimum) >= 0
}
