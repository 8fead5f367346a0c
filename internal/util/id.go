// Package util contains small internal helpers that have not earned a public
// API commitment.
package util

import "github.com/google/uuid"

// NewID returns a new opaque unique identifier (UUID v4 string).
func NewID() string {
	return uuid.NewString()
}
