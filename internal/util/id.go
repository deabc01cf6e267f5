package util

import "github.com/google/uuid"

// NewID generates a globally unique identifier for conversations, sessions
// and batches.
func NewID() string { return uuid.NewString() }
