// Package market_hours derives the market session phase from wall-clock time.
package market_hours

import (
	"fmt"
	"time"

	"github.com/aristath/marketpulse/internal/config"
	"github.com/rs/zerolog"
)

// maxLookaheadDays bounds the search for the next trading day
const maxLookaheadDays = 14

// SessionService computes session phases from the configured boundaries.
// It holds no mutable state; every query is a pure function of now.
//
// Every interval is start-inclusive and end-exclusive:
//
//	[preOpenStart, preOpenEnd)  PRE_OPEN
//	[preOpenEnd,   marketOpen)  FREEZE
//	[marketOpen,   marketClose) LIVE
//
// so an instant exactly at market close is CLOSED.
type SessionService struct {
	session config.MarketSession
	log     zerolog.Logger
}

// NewSessionService creates a new session service
func NewSessionService(session config.MarketSession, log zerolog.Logger) *SessionService {
	return &SessionService{
		session: session,
		log:     log.With().Str("service", "market_hours").Logger(),
	}
}

// Session returns the configured boundaries
func (s *SessionService) Session() config.MarketSession {
	return s.session
}

// GetCurrentPhase returns the session phase at now
func (s *SessionService) GetCurrentPhase(now time.Time) Phase {
	local := now.In(s.session.Location)

	if s.session.IsWeekend(local.Weekday()) {
		return PhaseWeekend
	}
	if _, ok := s.session.Holiday(local); ok {
		return PhaseClosed
	}

	return s.phaseAtSecond(local.Hour()*3600 + local.Minute()*60 + local.Second())
}

// phaseAtSecond maps a second-of-day on a trading day to a phase
func (s *SessionService) phaseAtSecond(sec int) Phase {
	switch {
	case sec < s.session.PreOpenStart.Seconds():
		return PhaseClosed
	case sec < s.session.PreOpenEnd.Seconds():
		return PhasePreOpen
	case sec < s.session.MarketOpen.Seconds():
		return PhaseFreeze
	case sec < s.session.MarketClose.Seconds():
		return PhaseLive
	default:
		return PhaseClosed
	}
}

// SecondsUntilNextPhase returns the whole seconds from now (truncated to the second)
// to the next configured boundary strictly after it. On non-trading days and after
// close this is the next trading day's pre-open start. Never negative.
func (s *SessionService) SecondsUntilNextPhase(now time.Time) int {
	next, ok := s.nextBoundary(now)
	if !ok {
		return 0
	}
	return int(next.Sub(now.Truncate(time.Second)) / time.Second)
}

// NextPhase returns the phase that starts at the next boundary and when it starts
func (s *SessionService) NextPhase(now time.Time) (Phase, time.Time, bool) {
	next, ok := s.nextBoundary(now)
	if !ok {
		return "", time.Time{}, false
	}
	return s.GetCurrentPhase(next), next, true
}

// nextBoundary finds the first boundary instant strictly after now on a trading day
func (s *SessionService) nextBoundary(now time.Time) (time.Time, bool) {
	loc := s.session.Location
	current := now.Truncate(time.Second).In(loc)

	boundaries := []config.ClockTime{
		s.session.PreOpenStart,
		s.session.PreOpenEnd,
		s.session.MarketOpen,
		s.session.MarketClose,
	}

	for offset := 0; offset <= maxLookaheadDays; offset++ {
		day := time.Date(current.Year(), current.Month(), current.Day()+offset, 12, 0, 0, 0, loc)
		if !s.IsTradingDay(day) {
			continue
		}
		for _, b := range boundaries {
			at := b.On(day.Year(), day.Month(), day.Day(), loc)
			if at.After(current) {
				return at, true
			}
		}
	}

	s.log.Warn().
		Time("now", now).
		Int("lookahead_days", maxLookaheadDays).
		Msg("No trading day found within lookahead window")
	return time.Time{}, false
}

// IsTradingDay reports whether the date of t is neither a weekend day nor a holiday
func (s *SessionService) IsTradingDay(t time.Time) bool {
	local := t.In(s.session.Location)
	if s.session.IsWeekend(local.Weekday()) {
		return false
	}
	_, holiday := s.session.Holiday(local)
	return !holiday
}

// IsTradingHours reports whether now is in PRE_OPEN, FREEZE or LIVE
func (s *SessionService) IsTradingHours(now time.Time) bool {
	return s.GetCurrentPhase(now).IsTrading()
}

// ExpectsDataFlow reports whether ticks should be arriving at now (LIVE only)
func (s *SessionService) ExpectsDataFlow(now time.Time) bool {
	return s.GetCurrentPhase(now) == PhaseLive
}

// GetStatus returns the full session status at now
func (s *SessionService) GetStatus(now time.Time) SessionStatus {
	local := now.In(s.session.Location)
	phase := s.GetCurrentPhase(now)

	status := SessionStatus{
		Phase:              phase,
		Description:        phase.Description(),
		IsTradingHours:     phase.IsTrading(),
		ExpectsDataFlow:    phase == PhaseLive,
		SecondsToNextPhase: s.SecondsUntilNextPhase(now),
		Timezone:           s.session.Location.String(),
		Date:               local.Format("2006-01-02"),
		LocalTime:          local.Format("15:04:05"),
	}

	if name, ok := s.session.Holiday(local); ok {
		status.IsHoliday = true
		status.HolidayName = name
		if phase == PhaseClosed {
			status.Description = fmt.Sprintf("Market closed for %s", name)
		}
	}

	if next, at, ok := s.NextPhase(now); ok {
		status.NextPhase = next
		status.NextPhaseAt = at.Format(time.RFC3339)
	}

	return status
}

// UpcomingHolidays returns up to n configured holidays on or after the date of from
func (s *SessionService) UpcomingHolidays(from time.Time, n int) []Holiday {
	today := from.In(s.session.Location).Format("2006-01-02")

	holidays := make([]Holiday, 0)
	for _, date := range s.session.HolidayDates() {
		if date < today {
			continue
		}
		if n > 0 && len(holidays) >= n {
			break
		}
		holidays = append(holidays, Holiday{Date: date, Name: s.session.Holidays[date]})
	}
	return holidays
}
