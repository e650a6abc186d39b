package common

import (
	"github.com/google/uuid"
)

// NewPassageID generates a unique passage ID with the "psg_" prefix
func NewPassageID() string {
	return "psg_" + uuid.New().String()
}

// NewSessionID generates a unique session ID with the "ses_" prefix
func NewSessionID() string {
	return "ses_" + uuid.New().String()
}
