package auth

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/marketpulse/internal/config"
	"github.com/aristath/marketpulse/internal/events"
)

// ErrEmptyToken is returned when an empty access token is submitted
var ErrEmptyToken = errors.New("access token must not be empty")

// SettingsWriter is the subset of the settings repository used to persist tokens
type SettingsWriter interface {
	SetMany(values map[string]string) error
}

// SettingsTokenSource holds the current access token in memory and persists
// replacements to the settings database.
type SettingsTokenSource struct {
	mu       sync.RWMutex
	info     TokenInfo
	settings SettingsWriter
	emitter  EventEmitter
	now      func() time.Time
	log      zerolog.Logger
}

// NewSettingsTokenSource creates a token source seeded from configuration
func NewSettingsTokenSource(initial TokenInfo, settings SettingsWriter, log zerolog.Logger) *SettingsTokenSource {
	return &SettingsTokenSource{
		info:     initial,
		settings: settings,
		now:      time.Now,
		log:      log.With().Str("component", "token_source").Logger(),
	}
}

// SetEventEmitter wires SETTINGS_CHANGED notifications for persisted tokens
func (s *SettingsTokenSource) SetEventEmitter(emitter EventEmitter) {
	s.emitter = emitter
}

// Token returns the configured token. ok is false when none is set.
func (s *SettingsTokenSource) Token() (TokenInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.info, s.info.Token != ""
}

// AccessToken returns the raw token string (empty when unset)
func (s *SettingsTokenSource) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.info.Token
}

// SaveToken persists a new token and makes it current.
// The in-memory token only changes once the write succeeded.
func (s *SettingsTokenSource) SaveToken(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrEmptyToken
	}

	issuedAt := s.now().UTC()
	if s.settings != nil {
		err := s.settings.SetMany(map[string]string{
			config.SettingAccessToken:   token,
			config.SettingTokenIssuedAt: issuedAt.Format(time.RFC3339),
		})
		if err != nil {
			return fmt.Errorf("failed to persist access token: %w", err)
		}
	}

	s.mu.Lock()
	s.info = TokenInfo{Token: token, IssuedAt: issuedAt}
	s.mu.Unlock()

	s.log.Info().Time("issued_at", issuedAt).Msg("Access token replaced")
	if s.emitter != nil && s.settings != nil {
		s.emitter.EmitTyped("settings", &events.SettingsChangedData{
			Keys: []string{config.SettingAccessToken, config.SettingTokenIssuedAt},
		})
	}
	return nil
}
