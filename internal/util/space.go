package util

import "github.com/mattn/go-runewidth"

const ellipsis = "..."

// PadRight fits str into exactly width terminal cells, padding with spaces or
// truncating with an ellipsis. Wide runes count as two cells.
func PadRight(str string, width int) string {
	if runewidth.StringWidth(str) > width {
		return runewidth.Truncate(str, width, ellipsis)
	}
	return runewidth.FillRight(str, width)
}
