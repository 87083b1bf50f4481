package pipeline

import "github.com/google/uuid"

// NewBuildID returns a time-ordered build identifier.
func NewBuildID() string {
	return uuid.Must(uuid.NewV7()).String()
}
