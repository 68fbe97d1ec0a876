package serp

import (
	"fmt"
	"strings"
)

// Engine identifiers accepted by the SERP API.
const (
	EngineGoogle = "google"
	EngineBing   = "bing"
)

// Engines lists every supported engine in query order.
var Engines = []string{EngineGoogle, EngineBing}

// Device types accepted by the SERP API.
const (
	DeviceDesktop = "desktop"
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
)

// KeywordQuery describes one SERP lookup: the keyword text plus the
// location/device/language context the engine should simulate.
// Immutable once built.
type KeywordQuery struct {
	Text     string `json:"text"`
	Location string `json:"location"`
	Device   string `json:"device"`
	Language string `json:"language"`
}

// Validate rejects queries that must never reach the wire.
func (q KeywordQuery) Validate() error {
	if strings.TrimSpace(q.Text) == "" {
		return &ConfigurationError{Field: "keyword", Reason: "must not be empty"}
	}
	if !ValidDevice(q.Device) {
		return &ConfigurationError{Field: "device", Reason: fmt.Sprintf("unknown device %q (desktop, mobile, tablet)", q.Device)}
	}
	return nil
}

// ValidDevice reports whether the device string is one the API accepts.
func ValidDevice(device string) bool {
	switch device {
	case DeviceDesktop, DeviceMobile, DeviceTablet:
		return true
	}
	return false
}

// ValidEngine reports whether the engine is supported.
func ValidEngine(engine string) bool {
	switch engine {
	case EngineGoogle, EngineBing:
		return true
	}
	return false
}

// taskRequest is the wire payload for one live SERP task. The API expects
// an array of these even for single lookups.
type taskRequest struct {
	Keyword      string `json:"keyword"`
	LocationCode int    `json:"location_code"`
	LanguageCode string `json:"language_code"`
	Device       string `json:"device"`
	OS           string `json:"os"`
}

// osForDevice mirrors the API's device/os pairing rules.
func osForDevice(device string) string {
	if device == DeviceDesktop {
		return "windows"
	}
	return "android"
}
