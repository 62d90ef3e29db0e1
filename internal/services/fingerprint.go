package services

import (
	"strings"

	"github.com/mileusna/useragent"
)

// DeviceFingerprint is the normalized descriptor of the client device a
// session was created from.
type DeviceFingerprint struct {
	Browser     string `json:"browser"`
	OS          string `json:"os"`
	DeviceClass string `json:"device_class"`
}

const unknownDevicePart = "Unknown"

// FingerprintDevice parses a user-agent string into a device descriptor.
// Malformed or empty input degrades to "Unknown" fields, never fails.
func FingerprintDevice(uaString string) DeviceFingerprint {
	fp := DeviceFingerprint{
		Browser:     unknownDevicePart,
		OS:          unknownDevicePart,
		DeviceClass: unknownDevicePart,
	}

	if strings.TrimSpace(uaString) == "" {
		return fp
	}

	ua := useragent.Parse(uaString)
	if ua.Name != "" {
		fp.Browser = ua.Name
	}
	if ua.OS != "" {
		fp.OS = ua.OS
	}

	switch {
	case ua.Bot:
		fp.DeviceClass = "Bot"
	case ua.Tablet:
		fp.DeviceClass = "Tablet"
	case ua.Mobile:
		fp.DeviceClass = "Mobile"
	case ua.Desktop:
		fp.DeviceClass = "Desktop"
	}

	return fp
}
