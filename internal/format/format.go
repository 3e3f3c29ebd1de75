// Package format provides display formatting for the dashboard and the
// console. These helpers shape text only; they are not part of any
// aggregation contract.
package format

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Number formats a value with K/M/B/T magnitude abbreviation.
// Examples: 30 → "30", 1500 → "1.5K", -2300000 → "-2.3M", 0.5 → "0.5".
func Number(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "0"
	}

	abs := math.Abs(f)
	sign := ""
	if f < 0 {
		sign = "-"
	}

	const (
		k = 1e3
		m = 1e6
		b = 1e9
		t = 1e12
	)

	switch {
	case abs < k:
		return sign + trimZero(abs)
	case abs < m:
		return sign + trimZero(abs/k) + "K"
	case abs < b:
		return sign + trimZero(abs/m) + "M"
	case abs < t:
		return sign + trimZero(abs/b) + "B"
	default:
		return sign + trimZero(abs/t) + "T"
	}
}

// Bytes formats a byte count in binary units with one decimal place.
func Bytes(n float64) string {
	const (
		kib = 1024
		mib = kib * 1024
		gib = mib * 1024
		tib = gib * 1024
	)
	abs := math.Abs(n)
	switch {
	case abs < kib:
		return fmt.Sprintf("%.0f B", n)
	case abs < mib:
		return fmt.Sprintf("%.1f KiB", n/kib)
	case abs < gib:
		return fmt.Sprintf("%.1f MiB", n/mib)
	case abs < tib:
		return fmt.Sprintf("%.1f GiB", n/gib)
	default:
		return fmt.Sprintf("%.1f TiB", n/tib)
	}
}

// trimZero renders one decimal place and strips a trailing ".0", so
// whole numbers stay whole.
func trimZero(f float64) string {
	s := strconv.FormatFloat(f, 'f', 1, 64)
	return strings.TrimSuffix(s, ".0")
}
