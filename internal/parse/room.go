package parse

import "strings"

// Campus names for the known room prefixes.
const (
	CampusPushkina8  = "Pushkina 8"
	CampusPushkina10 = "Pushkina 10"
)

// ParsedRoom holds the campus and room number encoded in a room code.
type ParsedRoom struct {
	Campus string
	Number string
	Remote bool
}

// roomPrefixes is checked in order; remote codes come before "СО" since they share a letter.
var roomPrefixes = []struct {
	prefix string
	campus string
	remote bool
}{
	{"СДО", "", true},
	{"SDO", "", true},
	{"П8-", CampusPushkina8, false},
	{"P8-", CampusPushkina8, false},
	{"СО", CampusPushkina10, false},
	{"SO", CampusPushkina10, false},
}

// ParseRoom maps a free-text room code to a campus and room number.
// Unrecognized codes are passed through with an empty campus.
func ParseRoom(room string) ParsedRoom {
	s := strings.TrimSpace(room)
	for _, rp := range roomPrefixes {
		if !strings.HasPrefix(s, rp.prefix) {
			continue
		}
		if rp.remote {
			return ParsedRoom{Remote: true}
		}
		number := strings.TrimSpace(strings.TrimPrefix(s, rp.prefix))
		number = strings.TrimLeft(number, "- ")
		return ParsedRoom{Campus: rp.campus, Number: number}
	}
	return ParsedRoom{Number: s}
}
