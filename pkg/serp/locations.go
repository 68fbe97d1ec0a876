package serp

import "strings"

// Location and language tables for the SERP API. The API addresses markets
// by numeric location codes and ISO language codes; callers supply plain
// names. Unknown values fall back to the US/English defaults rather than
// failing; the API itself rejects combinations it cannot serve.

const (
	defaultLocationCode = 2840 // United States
	defaultLanguageCode = "en"
)

var locationCodes = map[string]int{
	"united states":  2840,
	"united kingdom": 2826,
	"australia":      2036,
	"canada":         2124,
	"new zealand":    2554,
}

// Common short forms seen in user input.
var locationAliases = map[string]string{
	"us":  "united states",
	"usa": "united states",
	"uk":  "united kingdom",
	"gb":  "united kingdom",
	"au":  "australia",
	"ca":  "canada",
	"nz":  "new zealand",
}

var languageCodes = map[string]string{
	"english": "en",
	"spanish": "es",
	"french":  "fr",
	"german":  "de",
}

// LocationCode resolves a location name to the API's numeric code.
// The second return reports whether the name was recognized.
func LocationCode(location string) (int, bool) {
	key := strings.ToLower(strings.TrimSpace(location))
	if alias, ok := locationAliases[key]; ok {
		key = alias
	}
	if code, ok := locationCodes[key]; ok {
		return code, true
	}
	return defaultLocationCode, false
}

// LanguageCode resolves a language name to the API's ISO code. Two-letter
// input is passed through as an already-coded value.
func LanguageCode(language string) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(language))
	if code, ok := languageCodes[key]; ok {
		return code, true
	}
	if len(key) == 2 {
		return key, true
	}
	return defaultLanguageCode, false
}

// SupportedLocations returns the recognized location names, for CLI help.
func SupportedLocations() []string {
	names := make([]string, 0, len(locationCodes))
	for name := range locationCodes {
		names = append(names, name)
	}
	return names
}
