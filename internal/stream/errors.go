package stream

import "strings"

// ErrorCategory groups capture failures for logs and stats
type ErrorCategory int

const (
	ErrCategoryDevice ErrorCategory = iota
	ErrCategoryFormat
	ErrCategoryUnknown
)

func (e ErrorCategory) String() string {
	switch e {
	case ErrCategoryDevice:
		return "device"
	case ErrCategoryFormat:
		return "format"
	default:
		return "unknown"
	}
}

var (
	deviceKeywords = []string{
		"device", "busy", "no such file", "permission denied", "v4l2", "cannot identify",
		"resource", "could not open", "disconnected",
	}
	formatKeywords = []string{
		"not negotiated", "negotiation", "caps", "format", "jpeg", "encode", "missing plugin",
	}
)

// classifyError maps a GStreamer error message and its debug string to a category.
// Format problems win over device ones: a negotiation failure often names the device too.
func classifyError(message, debug string) ErrorCategory {
	combined := strings.ToLower(message + " " + debug)

	for _, kw := range formatKeywords {
		if strings.Contains(combined, kw) {
			return ErrCategoryFormat
		}
	}
	for _, kw := range deviceKeywords {
		if strings.Contains(combined, kw) {
			return ErrCategoryDevice
		}
	}
	return ErrCategoryUnknown
}
