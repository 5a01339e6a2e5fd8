package tts

import (
	"errors"
	"fmt"
)

var (
	ErrNoAPIKey  = errors.New("tts: API key required")
	ErrNoVoiceID = errors.New("tts: voice ID required")
	ErrEmptyText = errors.New("tts: text required")
)

// APIError is an error response from the ElevenLabs API.
type APIError struct {
	StatusCode int
	Message    string
	Code       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tts: API error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("tts: API error %d: %s", e.StatusCode, e.Message)
}

// IsRateLimited returns true if this is a rate limit error (HTTP 429).
func (e *APIError) IsRateLimited() bool { return e.StatusCode == 429 }

func (e *APIError) IsUnauthorized() bool { return e.StatusCode == 401 }
