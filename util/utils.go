package util

import (
	"cmp"
	"fmt"
	"slices"

	"golang.org/x/exp/maps"
)

/*
Small helpers shared by the CLI and the service.
*/

////////////////////////////////////////////////////////////////////////////////

// Okeys returns the keys of a map in ascending order.
func Okeys[K cmp.Ordered, V any](m map[K]V) []K {
	keys := maps.Keys(m)
	slices.Sort(keys)
	return keys
}

// HumanBytes formats a byte count with a binary unit. Counts below ten units
// keep one decimal place, e.g. "1.5 MB"; larger ones are truncated to whole
// units.
func HumanBytes(n uint64) string {
	units := []string{"B", "KB", "MB", "GB", "TB", "PB", "EB"}
	if n < 1024 {
		return fmt.Sprintf("%d B", n)
	}
	value := float64(n)
	i := 0
	for value >= 1024 && i < len(units)-1 {
		value /= 1024
		i++
	}
	if value < 10 {
		return fmt.Sprintf("%.1f %s", float64(int(value*10))/10, units[i])
	}
	return fmt.Sprintf("%d %s", int(value), units[i])
}
