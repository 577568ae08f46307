// README: Normalizes free-text country identifiers to a tariff country code.
package pricing

import (
	"strings"
	"unicode/utf8"
)

// countryNames maps uppercased English/Spanish country names, with and without
// accents, to their two-letter code.
var countryNames = map[string]string{
	"CHILE": "CL",

	"ARGENTINA": "AR",

	"MEXICO": "MX",
	"MÉXICO": "MX",

	"COLOMBIA": "CO",

	"PERU": "PE",
	"PERÚ": "PE",

	"UNITED STATES":            "US",
	"UNITED STATES OF AMERICA": "US",
	"USA":                      "US",
	"ESTADOS UNIDOS":           "US",
	"EEUU":                     "US",
	"EE.UU.":                   "US",

	"SPAIN":  "ES",
	"ESPAÑA": "ES",
	"ESPANA": "ES",

	"BRAZIL": "BR",
	"BRASIL": "BR",
}

// ResolveCountry maps an ISO-2 code or a country name to a country code.
//
// Any two-character input is returned as-is, supported or not; LookupTariff
// handles unsupported codes. Unknown names resolve to DefaultCountry.
func ResolveCountry(country string) string {
	if country == "" {
		return DefaultCountry
	}
	normalized := strings.TrimSpace(strings.ToUpper(country))
	if utf8.RuneCountInString(normalized) == 2 {
		return normalized
	}
	if code, ok := countryNames[normalized]; ok {
		return code
	}
	return DefaultCountry
}
