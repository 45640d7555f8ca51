package domain

// Tag classifies how a mod takes part in file conflicts
type Tag int

const (
	TagEnabled       Tag = iota // Enabled with no conflicts
	TagWinner                   // Overwrites files of lower-ranked mods only
	TagLoser                    // Overwritten by higher-ranked mods only
	TagCompleteLoser            // Every file is overwritten by a higher-ranked mod
	TagConflict                 // Both wins and loses
	TagDisabled
)

func (t Tag) String() string {
	switch t {
	case TagEnabled:
		return "Enabled"
	case TagWinner:
		return "Winner"
	case TagLoser:
		return "Loser"
	case TagCompleteLoser:
		return "All Files Overwritten"
	case TagConflict:
		return "Conflict"
	case TagDisabled:
		return "Disabled"
	default:
		return "Unknown"
	}
}

// Char is the one-letter code used in compact listings
func (t Tag) Char() string {
	switch t {
	case TagEnabled:
		return "e"
	case TagWinner:
		return "w"
	case TagLoser:
		return "l"
	case TagCompleteLoser:
		return "L"
	case TagConflict:
		return "c"
	case TagDisabled:
		return "D"
	default:
		return "?"
	}
}

func (t Tag) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}
