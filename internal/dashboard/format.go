package dashboard

import "fmt"

// FormatUptime renders an uptime in seconds as "3h 12m", or "12m" under an
// hour.
func FormatUptime(seconds int) string {
	hours := seconds / 3600
	minutes := seconds % 3600 / 60

	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}

var osNames = map[string]string{
	"win32":  "Windows",
	"darwin": "macOS",
	"linux":  "Linux (VPS)",
}

// OSName maps a server platform identifier to a display name. Unknown
// platforms come back unchanged.
func OSName(platform string) string {
	if name, ok := osNames[platform]; ok {
		return name
	}
	return platform
}

// MemoryPercent returns used memory as a whole percentage of total, 0 when
// total is unknown.
func MemoryPercent(used, total float64) int {
	if total <= 0 {
		return 0
	}
	return int(used/total*100 + 0.5)
}

// QueueLabel renders the queue status for display.
func QueueLabel(queueStatus string) string {
	if queueStatus == "busy" {
		return "Busy"
	}
	return "Ready"
}
