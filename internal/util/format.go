package util

import "fmt"

var sizeUnits = []string{"B", "KB", "MB", "GB", "TB", "PB"}

// FormatSize renders a byte count with a binary unit, keeping up to three
// decimals and dropping trailing zeros except a single one.
func FormatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}

	exp := 0
	div := int64(1)
	for size/div >= unit && exp < len(sizeUnits)-1 {
		div *= unit
		exp++
	}

	whole, rem := size/div, size%div
	if rem == 0 {
		return fmt.Sprintf("%d %s", whole, sizeUnits[exp])
	}

	milli := rem * 1000 / div
	switch {
	case milli%10 != 0:
		return fmt.Sprintf("%d.%03d %s", whole, milli, sizeUnits[exp])
	case milli%100 != 0:
		return fmt.Sprintf("%d.%02d %s", whole, milli/10, sizeUnits[exp])
	default:
		return fmt.Sprintf("%d.%d %s", whole, milli/100, sizeUnits[exp])
	}
}
