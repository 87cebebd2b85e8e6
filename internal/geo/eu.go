package geo

// euMembers is the hand-maintained roster of EU member states.
// Membership changes require a code change.
var euMembers = map[string]struct{}{
	"AT": {}, "BE": {}, "BG": {}, "HR": {}, "CY": {}, "CZ": {}, "DK": {},
	"EE": {}, "FI": {}, "FR": {}, "DE": {}, "GR": {}, "HU": {}, "IE": {},
	"IT": {}, "LV": {}, "LT": {}, "LU": {}, "MT": {}, "NL": {}, "PL": {},
	"PT": {}, "RO": {}, "SK": {}, "SI": {}, "ES": {}, "SE": {},
}

// IsEUMember reports whether code is the ISO 3166-1 alpha-2 code of an EU
// member state. The match is exact, so lower-case or unknown codes are false.
func IsEUMember(code string) bool {
	_, ok := euMembers[code]
	return ok
}

// EUFlag returns the string-encoded membership flag used in responses.
func EUFlag(code string) string {
	if IsEUMember(code) {
		return "1"
	}
	return "0"
}
