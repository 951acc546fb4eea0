// Package auth tracks whether the broker access token is currently usable.
package auth

import "time"

// State is the verified state of the broker session
type State string

const (
	// StateUnknown is reported before the first verification
	StateUnknown State = "UNKNOWN"
	// StateValid means the last verification succeeded
	StateValid State = "VALID"
	// StateExpired means a token is configured but the broker rejected it (or could not be reached)
	StateExpired State = "EXPIRED"
	// StateRequired means no token is configured at all
	StateRequired State = "REQUIRED"
)

// RequiresLogin reports whether the user has to log in again.
func (s State) RequiresLogin() bool {
	return s == StateExpired || s == StateRequired
}

// TokenInfo is the configured access token and when it was issued
type TokenInfo struct {
	Token    string
	IssuedAt time.Time // zero when unknown
}

// StateInfo is the read-only projection of the tracker
type StateInfo struct {
	State               State      `json:"state"`
	IsValid             bool       `json:"is_valid"`
	RequiresLogin       bool       `json:"requires_login"`
	TokenAgeHours       *float64   `json:"token_age_hours"`
	LastSuccess         *time.Time `json:"last_success"`
	LastCheck           *time.Time `json:"last_check"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	HasToken            bool       `json:"has_token"`
	LastError           string     `json:"last_error,omitempty"`
}
