package domain

import "github.com/google/uuid"

// NewID returns a prefixed unique identifier, e.g. "sug_3f0c...".
func NewID(prefix string) string {
	return prefix + "_" + uuid.New().String()
}
