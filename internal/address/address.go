// Package address models the street/house pair a subscriber watches.
//
// The street value must match the exact text the provider's form expects, so
// normalization here follows the portal's own conventions: a bare street name
// gets the canonical "вул." prefix, recognized prefixes pass through as-is.
package address

import (
	"errors"
	"strings"
	"unicode"
)

// MaxHouseLen bounds the house field; anything longer is junk input.
const MaxHouseLen = 16

// Recognized street-type prefixes that must not be duplicated.
var streetPrefixes = []string{
	"вул.", "вулиця", "просп.", "проспект", "пров.", "провулок",
	"бульв.", "пл.", "площа",
}

// Validation errors returned by New.
var (
	ErrStreetTooShort = errors.New("street name is too short")
	ErrHouseInvalid   = errors.New("house must contain a digit and be at most 16 chars")
)

// Address is a validated street/house pair. Immutable once built; replacing
// a subscriber's address resets their monitoring state.
type Address struct {
	Street string `json:"street"`
	House  string `json:"house"`
}

// New normalizes and validates the raw street and house input.
func New(street, house string) (Address, error) {
	street = NormalizeStreet(street)
	house = NormalizeHouse(house)
	if len([]rune(street)) < 3 {
		return Address{}, ErrStreetTooShort
	}
	if !ValidHouse(house) {
		return Address{}, ErrHouseInvalid
	}
	return Address{Street: street, House: house}, nil
}

// IsZero reports whether the address is empty; zero addresses are inactive
// and skipped by the monitor.
func (a Address) IsZero() bool {
	return a.Street == "" || a.House == ""
}

// String renders the address the way it is shown to the subscriber.
func (a Address) String() string {
	if a.IsZero() {
		return ""
	}
	return a.Street + ", " + a.House
}

// NormalizeStreet collapses whitespace and prepends the canonical street
// prefix unless the input already carries one.
func NormalizeStreet(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return s
	}
	low := strings.ToLower(s)
	for _, p := range streetPrefixes {
		if strings.HasPrefix(low, p) {
			return s
		}
	}
	return "вул. " + s
}

// NormalizeHouse trims surrounding whitespace.
func NormalizeHouse(s string) string {
	return strings.TrimSpace(s)
}

// ValidHouse reports whether the house field is plausible: non-empty, short,
// and containing at least one digit.
func ValidHouse(h string) bool {
	if h == "" || len([]rune(h)) > MaxHouseLen {
		return false
	}
	for _, r := range h {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
