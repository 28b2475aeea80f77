package broker

import (
	"fmt"
	"strings"
)

// RoomSeparator joins the two user ids of a room. User ids may not contain it,
// so no two distinct pairs can produce the same room id.
const RoomSeparator = "-"

// ValidateUserID checks that id can take part in a room id.
func ValidateUserID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidUserID)
	}
	if strings.Contains(id, RoomSeparator) {
		return fmt.Errorf("%w: %q contains %q", ErrInvalidUserID, id, RoomSeparator)
	}
	return nil
}

// RoomID returns the canonical room id for the unordered pair (a, b).
// RoomID(a, b) == RoomID(b, a) for every valid a != b.
func RoomID(a, b string) (string, error) {
	if err := ValidateUserID(a); err != nil {
		return "", err
	}
	if err := ValidateUserID(b); err != nil {
		return "", err
	}
	if a == b {
		return "", ErrSameUser
	}
	if b < a {
		a, b = b, a
	}
	return a + RoomSeparator + b, nil
}
