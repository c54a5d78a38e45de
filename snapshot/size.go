package snapshot

import (
	"fmt"
	"math"
)

var sizeUnits = [...]string{"B", "KB", "MB", "GB"}

// HumanSize formats a byte count with binary units and two decimal places:
// size / 1024^order, order = floor(log1024(size)), capped at GB.
func HumanSize(size int64) string {
	if size <= 0 {
		return "0 B"
	}
	order := int(math.Floor(math.Log(float64(size)) / math.Log(1024)))
	if order >= len(sizeUnits) {
		order = len(sizeUnits) - 1
	}
	scaled := float64(size) / math.Pow(1024, float64(order))
	return fmt.Sprintf("%.2f %s", scaled, sizeUnits[order])
}
