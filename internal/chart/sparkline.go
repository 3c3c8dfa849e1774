package chart

import (
	"bytes"
	"fmt"
	"math"
)

// Braille blocks, empty to full, four sub-blocks per line
var blocks = []rune{'⠀', '⣀', '⣤', '⣶', '⣿'}

// Sparkline renders values as a multi-line Braille chart with min/max labels.
// It returns "" for fewer than two values.
func Sparkline(values []float64, height int) string {
	if len(values) < 2 || height < 1 {
		return ""
	}

	minVal, maxVal := bounds(values)

	// Dynamic scaling with buffer
	buffer := 10.0
	minVal = math.Max(0, minVal-buffer)
	maxVal += buffer
	rangeVal := maxVal - minVal

	subBlocksPerLine := float64(len(blocks) - 1)

	rows := make([][]rune, height)
	for i := range rows {
		rows[i] = make([]rune, len(values))
		for j := range rows[i] {
			rows[i][j] = blocks[0]
		}
	}

	for x, val := range values {
		totalSubBlocks := (val - minVal) / rangeVal * float64(height) * subBlocksPerLine

		// Fill lines from bottom up
		for y := 0; y < height; y++ {
			lineIdx := height - 1 - y
			lineStart := float64(y) * subBlocksPerLine
			lineEnd := float64(y+1) * subBlocksPerLine

			if totalSubBlocks >= lineEnd {
				rows[lineIdx][x] = blocks[len(blocks)-1]
			} else if totalSubBlocks > lineStart {
				remainder := int(math.Round(totalSubBlocks - lineStart))
				remainder = max(0, min(len(blocks)-1, remainder))
				rows[lineIdx][x] = blocks[remainder]
			}
		}
	}

	var result bytes.Buffer
	fmt.Fprintf(&result, "Max: %.0f\n", maxVal)
	for _, row := range rows {
		result.WriteString(string(row))
		result.WriteString("\n")
	}
	fmt.Fprintf(&result, "Min: %.0f", minVal)

	return result.String()
}

// CompactSparkline renders values as a two-line Braille chart without labels
func CompactSparkline(values []float64) string {
	if len(values) < 2 {
		return ""
	}

	minVal, maxVal := bounds(values)
	rangeVal := maxVal - minVal
	if rangeVal == 0 {
		rangeVal = 1 // Avoid division by zero
	}

	// Each column is a bar growing from the bottom line into the top line
	var topLine, bottomLine bytes.Buffer
	for _, val := range values {
		height := (val - minVal) / rangeVal * 8

		bottom := int(math.Min(4, math.Floor(height)))
		top := int(math.Max(0, math.Min(4, math.Floor(height-4))))
		if bottom == 0 {
			bottom = 1 // An empty column reads as missing data
		}

		topLine.WriteRune(blocks[top])
		bottomLine.WriteRune(blocks[bottom])
	}

	return topLine.String() + "\n" + bottomLine.String()
}

func bounds(values []float64) (float64, float64) {
	minVal, maxVal := values[0], values[0]
	for _, v := range values {
		minVal = math.Min(minVal, v)
		maxVal = math.Max(maxVal, v)
	}
	return minVal, maxVal
}
