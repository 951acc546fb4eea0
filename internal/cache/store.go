// Package cache provides the in-memory market data store with live and backup slots.
package cache

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Annotation keys added to payloads served from the backup slot
const (
	FieldIsCached    = "is_cached"
	FieldCacheSource = "cache_source"
	FieldCachedAt    = "cached_at"

	SourceBackup = "backup"
)

type entry struct {
	value     []byte
	ttl       time.Duration
	writtenAt time.Time
}

// Store is an in-memory key/value store with list support.
// A single RWMutex guards all state, so every exported operation is atomic.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
	lists   map[string][][]byte
	symbols map[string]struct{} // every symbol ever written via SetMarketData

	liveTTL   time.Duration
	backupTTL time.Duration
	now       func() time.Time
	log       zerolog.Logger
}

// NewStore creates an empty store. Non-positive TTLs fall back to the defaults.
func NewStore(liveTTL, backupTTL time.Duration, log zerolog.Logger) *Store {
	if liveTTL <= 0 {
		liveTTL = TTLLive
	}
	if backupTTL <= 0 {
		backupTTL = TTLBackup
	}
	return &Store{
		entries:   make(map[string]*entry),
		lists:     make(map[string][][]byte),
		symbols:   make(map[string]struct{}),
		liveTTL:   liveTTL,
		backupTTL: backupTTL,
		now:       time.Now,
		log:       log.With().Str("component", "cache").Logger(),
	}
}

// Set overwrites the value for key unconditionally.
func (s *Store) Set(key string, value Payload, ttl time.Duration) error {
	data, err := Encode(value)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(key, data, ttl, s.now())
	return nil
}

// Get returns the value for key. Missing, expired and undecodable entries are all absent.
func (s *Store) Get(key string) (Payload, bool) {
	s.mu.RLock()
	e, ok := s.lookupLocked(key, s.now())
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return s.decode(key, e.value)
}

// Delete removes a key and its list, if any.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	delete(s.lists, key)
}

// SetMarketData writes the live and backup slots for symbol in one critical section,
// so the backup is never older than the latest live write.
func (s *Store) SetMarketData(symbol string, data Payload) error {
	encoded, err := Encode(data)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.setLocked(LiveKey(symbol), encoded, s.liveTTL, now)
	s.setLocked(BackupKey(symbol), encoded, s.backupTTL, now)
	s.symbols[symbol] = struct{}{}
	return nil
}

// GetMarketData returns live data for symbol, falling back to the backup slot.
// Backup hits are annotated with is_cached, cache_source and cached_at.
func (s *Store) GetMarketData(symbol string) (Payload, bool) {
	now := s.now()

	s.mu.RLock()
	live, liveOK := s.lookupLocked(LiveKey(symbol), now)
	backup, backupOK := s.lookupLocked(BackupKey(symbol), now)
	s.mu.RUnlock()

	if liveOK {
		if p, ok := s.decode(LiveKey(symbol), live.value); ok {
			return p, true
		}
	}
	if !backupOK {
		return nil, false
	}

	p, ok := s.decode(BackupKey(symbol), backup.value)
	if !ok {
		return nil, false
	}
	p[FieldIsCached] = true
	p[FieldCacheSource] = SourceBackup
	p[FieldCachedAt] = backup.writtenAt.UTC().Format(time.RFC3339)
	return p, true
}

// GetAllMarketData returns the last-known payload for every symbol ever written.
func (s *Store) GetAllMarketData() map[string]Payload {
	out := make(map[string]Payload)
	for _, symbol := range s.Symbols() {
		if p, ok := s.GetMarketData(symbol); ok {
			out[symbol] = p
		}
	}
	return out
}

// Symbols returns every symbol with market data, sorted.
func (s *Store) Symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	symbols := make([]string, 0, len(s.symbols))
	for sym := range s.symbols {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	return symbols
}

// Stats describes store occupancy
type Stats struct {
	Keys    int `json:"keys"`
	Lists   int `json:"lists"`
	Symbols int `json:"symbols"`
}

// Stats returns store occupancy counts.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{Keys: len(s.entries), Lists: len(s.lists), Symbols: len(s.symbols)}
}

// BackupEntry is a backup slot in its encoded form, used for persistence.
type BackupEntry struct {
	Symbol    string
	Value     []byte
	TTL       time.Duration
	WrittenAt time.Time
}

// Backups returns all unexpired backup slots.
func (s *Store) Backups() []BackupEntry {
	now := s.now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var backups []BackupEntry
	for key, e := range s.entries {
		if !strings.HasPrefix(key, backupKeyPrefix) || expired(e.writtenAt, e.ttl, now) {
			continue
		}
		backups = append(backups, BackupEntry{
			Symbol:    strings.TrimPrefix(key, backupKeyPrefix),
			Value:     e.value,
			TTL:       e.ttl,
			WrittenAt: e.writtenAt,
		})
	}
	sort.Slice(backups, func(i, j int) bool { return backups[i].Symbol < backups[j].Symbol })
	return backups
}

// RestoreBackup loads a persisted backup slot, keeping its original write time.
// A newer in-memory backup is never replaced.
func (s *Store) RestoreBackup(b BackupEntry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := BackupKey(b.Symbol)
	if cur, ok := s.entries[key]; ok && !cur.writtenAt.Before(b.WrittenAt) {
		return false
	}
	s.setLocked(key, b.Value, b.TTL, b.WrittenAt)
	s.symbols[b.Symbol] = struct{}{}
	return true
}

func (s *Store) setLocked(key string, data []byte, ttl time.Duration, at time.Time) {
	s.entries[key] = &entry{value: data, ttl: ttl, writtenAt: at}
}

// lookupLocked returns a copy of the entry if present and unexpired. Caller holds mu.
func (s *Store) lookupLocked(key string, now time.Time) (entry, bool) {
	e, ok := s.entries[key]
	if !ok || expired(e.writtenAt, e.ttl, now) {
		return entry{}, false
	}
	return *e, true
}

func (s *Store) decode(key string, data []byte) (Payload, bool) {
	p, err := Decode(data)
	if err != nil {
		s.log.Debug().Err(err).Str("key", key).Msg("Discarding malformed cache payload")
		return nil, false
	}
	return p, true
}
