package market_hours

// Phase is the market session phase
type Phase string

const (
	PhasePreOpen Phase = "PRE_OPEN" // order collection
	PhaseFreeze  Phase = "FREEZE"   // pre-open order matching, no new orders
	PhaseLive    Phase = "LIVE"
	PhaseClosed  Phase = "CLOSED"
	PhaseWeekend Phase = "WEEKEND"
)

// IsTrading reports whether the phase is PRE_OPEN, FREEZE or LIVE.
func (p Phase) IsTrading() bool {
	return p == PhasePreOpen || p == PhaseFreeze || p == PhaseLive
}

// Description returns a human readable description of the phase
func (p Phase) Description() string {
	switch p {
	case PhasePreOpen:
		return "Pre-open session, collecting orders"
	case PhaseFreeze:
		return "Pre-open matching, market opens shortly"
	case PhaseLive:
		return "Market is live"
	case PhaseWeekend:
		return "Market closed for the weekend"
	default:
		return "Market closed"
	}
}

// SessionStatus is a point-in-time view of the market session
type SessionStatus struct {
	Phase              Phase  `json:"phase"`
	Description        string `json:"description"`
	IsTradingHours     bool   `json:"is_trading_hours"`
	ExpectsDataFlow    bool   `json:"expects_data_flow"`
	SecondsToNextPhase int    `json:"seconds_to_next_phase"`
	NextPhase          Phase  `json:"next_phase,omitempty"`
	NextPhaseAt        string `json:"next_phase_at,omitempty"`
	IsHoliday          bool   `json:"is_holiday"`
	HolidayName        string `json:"holiday_name,omitempty"`
	Timezone           string `json:"timezone"`
	Date               string `json:"date"`
	LocalTime          string `json:"local_time"`
}

// Holiday is a configured market holiday
type Holiday struct {
	Date string `json:"date"`
	Name string `json:"name"`
}
