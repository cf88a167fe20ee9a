package uid

import "github.com/google/uuid"

// New generates a new unique identifier.
func New() uuid.UUID {
	return uuid.New()
}

// Parse parses a string identifier.
func Parse(s string) (uuid.UUID, error) {
	return uuid.Parse(s)
}

// IsValid checks if a string is a valid identifier.
func IsValid(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
