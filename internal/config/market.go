package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"
	_ "time/tzdata" // session timezone must resolve on hosts without zoneinfo

	"gopkg.in/yaml.v3"
)

// ErrInvalidBoundaries is returned when session boundaries are not ordered.
var ErrInvalidBoundaries = errors.New("invalid market session boundaries")

const dateLayout = "2006-01-02"

// ClockTime is a wall-clock time of day in the session timezone.
type ClockTime struct {
	Hour   int
	Minute int
}

// ParseClockTime parses "HH:MM".
func ParseClockTime(s string) (ClockTime, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return ClockTime{}, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return ClockTime{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// Seconds returns the offset from midnight in seconds.
func (c ClockTime) Seconds() int {
	return c.Hour*3600 + c.Minute*60
}

// On returns the instant of this time of day on the given date in loc.
func (c ClockTime) On(year int, month time.Month, day int, loc *time.Location) time.Time {
	return time.Date(year, month, day, c.Hour, c.Minute, 0, 0, loc)
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// MarketSession is the single source of market session boundaries.
// Both the live session tracker and any tooling read boundaries from here.
type MarketSession struct {
	Location     *time.Location
	PreOpenStart ClockTime
	PreOpenEnd   ClockTime
	MarketOpen   ClockTime
	MarketClose  ClockTime
	WeekendDays  []time.Weekday
	// Holidays maps YYYY-MM-DD (session timezone) to a holiday name
	Holidays map[string]string
}

// DefaultMarketSession returns the NSE cash/F&O session.
func DefaultMarketSession() MarketSession {
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		loc = time.FixedZone("IST", 5*3600+30*60)
	}
	return MarketSession{
		Location:     loc,
		PreOpenStart: ClockTime{Hour: 9, Minute: 0},
		PreOpenEnd:   ClockTime{Hour: 9, Minute: 8},
		MarketOpen:   ClockTime{Hour: 9, Minute: 15},
		MarketClose:  ClockTime{Hour: 15, Minute: 30},
		WeekendDays:  []time.Weekday{time.Saturday, time.Sunday},
		Holidays:     map[string]string{},
	}
}

// Validate checks preOpenStart < preOpenEnd <= marketOpen < marketClose.
// A zero-length freeze window (preOpenEnd == marketOpen) is allowed.
func (m MarketSession) Validate() error {
	if m.Location == nil {
		return fmt.Errorf("%w: timezone not set", ErrInvalidBoundaries)
	}
	if m.PreOpenStart.Seconds() >= m.PreOpenEnd.Seconds() {
		return fmt.Errorf("%w: pre-open start %s must be before pre-open end %s",
			ErrInvalidBoundaries, m.PreOpenStart, m.PreOpenEnd)
	}
	if m.PreOpenEnd.Seconds() > m.MarketOpen.Seconds() {
		return fmt.Errorf("%w: pre-open end %s must not be after market open %s",
			ErrInvalidBoundaries, m.PreOpenEnd, m.MarketOpen)
	}
	if m.MarketOpen.Seconds() >= m.MarketClose.Seconds() {
		return fmt.Errorf("%w: market open %s must be before market close %s",
			ErrInvalidBoundaries, m.MarketOpen, m.MarketClose)
	}
	return nil
}

// IsWeekend reports whether the weekday is configured as non-trading.
func (m MarketSession) IsWeekend(day time.Weekday) bool {
	for _, d := range m.WeekendDays {
		if d == day {
			return true
		}
	}
	return false
}

// Holiday returns the holiday name for the date of t (in session timezone).
func (m MarketSession) Holiday(t time.Time) (string, bool) {
	name, ok := m.Holidays[t.In(m.Location).Format(dateLayout)]
	return name, ok
}

// HolidayDates returns configured holiday dates in ascending order.
func (m MarketSession) HolidayDates() []string {
	dates := make([]string, 0, len(m.Holidays))
	for d := range m.Holidays {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates
}

// holidayFile is the YAML layout of MARKET_HOLIDAYS_FILE
type holidayFile struct {
	Holidays []struct {
		Date string `yaml:"date"`
		Name string `yaml:"name"`
	} `yaml:"holidays"`
}

// LoadHolidayFile reads holidays from a YAML file.
func LoadHolidayFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read holiday file: %w", err)
	}

	var file holidayFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse holiday file %s: %w", path, err)
	}

	holidays := make(map[string]string, len(file.Holidays))
	for _, h := range file.Holidays {
		date, err := normalizeDate(h.Date)
		if err != nil {
			return nil, fmt.Errorf("holiday file %s: %w", path, err)
		}
		holidays[date] = h.Name
	}
	return holidays, nil
}

// ParseHolidayList parses a comma-separated list of YYYY-MM-DD dates.
func ParseHolidayList(list string) (map[string]string, error) {
	holidays := make(map[string]string)
	for _, item := range strings.Split(list, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		date, err := normalizeDate(item)
		if err != nil {
			return nil, err
		}
		holidays[date] = "Market holiday"
	}
	return holidays, nil
}

// ParseWeekdays parses a comma-separated list of weekday names ("sat,sun").
func ParseWeekdays(list string) ([]time.Weekday, error) {
	names := map[string]time.Weekday{
		"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday, "wed": time.Wednesday,
		"thu": time.Thursday, "fri": time.Friday, "sat": time.Saturday,
	}

	var days []time.Weekday
	for _, item := range strings.Split(list, ",") {
		item = strings.ToLower(strings.TrimSpace(item))
		if item == "" {
			continue
		}
		if len(item) > 3 {
			item = item[:3]
		}
		day, ok := names[item]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", item)
		}
		days = append(days, day)
	}
	return days, nil
}

func normalizeDate(s string) (string, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("invalid holiday date %q (want YYYY-MM-DD): %w", s, err)
	}
	return t.Format(dateLayout), nil
}

// loadMarketSession builds the session from env, starting from NSE defaults
func loadMarketSession() (MarketSession, error) {
	m := DefaultMarketSession()

	if tz := os.Getenv("MARKET_TIMEZONE"); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return m, fmt.Errorf("invalid MARKET_TIMEZONE: %w", err)
		}
		m.Location = loc
	}

	boundaries := []struct {
		key string
		dst *ClockTime
	}{
		{"MARKET_PRE_OPEN_START", &m.PreOpenStart},
		{"MARKET_PRE_OPEN_END", &m.PreOpenEnd},
		{"MARKET_OPEN", &m.MarketOpen},
		{"MARKET_CLOSE", &m.MarketClose},
	}
	for _, b := range boundaries {
		value := os.Getenv(b.key)
		if value == "" {
			continue
		}
		ct, err := ParseClockTime(value)
		if err != nil {
			return m, fmt.Errorf("%s: %w", b.key, err)
		}
		*b.dst = ct
	}

	if value := os.Getenv("MARKET_WEEKEND_DAYS"); value != "" {
		days, err := ParseWeekdays(value)
		if err != nil {
			return m, fmt.Errorf("MARKET_WEEKEND_DAYS: %w", err)
		}
		m.WeekendDays = days
	}

	if value := os.Getenv("MARKET_HOLIDAYS"); value != "" {
		holidays, err := ParseHolidayList(value)
		if err != nil {
			return m, fmt.Errorf("MARKET_HOLIDAYS: %w", err)
		}
		for d, name := range holidays {
			m.Holidays[d] = name
		}
	}

	if path := os.Getenv("MARKET_HOLIDAYS_FILE"); path != "" {
		holidays, err := LoadHolidayFile(path)
		if err != nil {
			return m, err
		}
		for d, name := range holidays {
			m.Holidays[d] = name
		}
	}

	return m, nil
}
