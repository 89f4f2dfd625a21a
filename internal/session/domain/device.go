package domain

import "strings"

// DeviceInfo is the coarse client description derived from a User-Agent header.
type DeviceInfo struct {
	Device  string `json:"device"`
	Browser string `json:"browser"`
	OS      string `json:"os"`
}

const unknown = "Unknown"

// ParseUserAgent classifies a User-Agent string into device, browser and OS.
func ParseUserAgent(userAgent string) DeviceInfo {
	if strings.TrimSpace(userAgent) == "" {
		return DeviceInfo{Device: unknown, Browser: unknown, OS: unknown}
	}
	ua := strings.ToLower(userAgent)

	info := DeviceInfo{Device: "Desktop", Browser: unknown, OS: unknown}
	switch {
	case strings.Contains(ua, "tablet") || strings.Contains(ua, "ipad"):
		info.Device = "Tablet"
	case strings.Contains(ua, "mobile") || strings.Contains(ua, "android"):
		info.Device = "Mobile"
	}

	// Edge and Chrome both advertise Safari; order matters.
	switch {
	case strings.Contains(ua, "edg"):
		info.Browser = "Edge"
	case strings.Contains(ua, "chrome") || strings.Contains(ua, "crios"):
		info.Browser = "Chrome"
	case strings.Contains(ua, "firefox") || strings.Contains(ua, "fxios"):
		info.Browser = "Firefox"
	case strings.Contains(ua, "safari"):
		info.Browser = "Safari"
	}

	switch {
	case strings.Contains(ua, "windows"):
		info.OS = "Windows"
	case strings.Contains(ua, "android"):
		info.OS = "Android"
	case strings.Contains(ua, "iphone") || strings.Contains(ua, "ipad"):
		info.OS = "iOS"
	case strings.Contains(ua, "mac"):
		info.OS = "macOS"
	case strings.Contains(ua, "linux"):
		info.OS = "Linux"
	}
	return info
}
