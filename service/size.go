package service

import (
	"fmt"
	"strings"
)

var sizeUnits = []string{"Bytes", "KB", "MB", "GB", "TB"}

// formatSize renders a byte count as a human label, e.g. "1.46 MB".
func formatSize(size int64) string {
	if size <= 0 {
		return "0 Bytes"
	}
	value := float64(size)
	exp := 0
	for value >= 1024 && exp < len(sizeUnits)-1 {
		value /= 1024
		exp++
	}
	label := fmt.Sprintf("%.2f", value)
	label = strings.TrimRight(label, "0")
	label = strings.TrimRight(label, ".")
	return label + " " + sizeUnits[exp]
}
