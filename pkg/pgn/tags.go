// Package pgn reads opening information from Portable Game Notation text.
package pgn

import "regexp"

var reECO = regexp.MustCompile(`\[ECO\s+"([A-Z][0-9]{2})"\]`)

// ExtractECO returns the opening classification code (one uppercase letter,
// two digits) from the ECO tag of pgn, or "" when the tag is missing or
// does not hold a valid code.
func ExtractECO(pgn string) string {
	m := reECO.FindStringSubmatch(pgn)
	if m == nil {
		return ""
	}
	return m[1]
}
